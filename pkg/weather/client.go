package weather

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

const DefaultBaseURL = "https://api.openweathermap.org"

// Endpoint names reported to a RequestObserver.
const (
	EndpointGeocode      = "geocode"
	EndpointReverse      = "reverse_geocode"
	EndpointCurrent      = "current"
	EndpointForecast     = "forecast"
	EndpointAirPollution = "air_pollution"
)

// RequestObserver receives the outcome of every provider request.
type RequestObserver interface {
	ObserveRequest(endpoint, status string, elapsed time.Duration)
}

// Client represents an OpenWeather API client
type Client struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
	observer   RequestObserver
	userAgent  string
}

// Option configures a Client
type Option func(*Client)

// WithBaseURL points the client at a different API host
func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		if baseURL != "" {
			c.baseURL = baseURL
		}
	}
}

// WithHTTPClient replaces the underlying HTTP client
func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		if httpClient != nil {
			c.httpClient = httpClient
		}
	}
}

// WithObserver attaches a request observer (metrics)
func WithObserver(observer RequestObserver) Option {
	return func(c *Client) {
		c.observer = observer
	}
}

// WithUserAgent sets the User-Agent header on every request
func WithUserAgent(ua string) Option {
	return func(c *Client) {
		c.userAgent = ua
	}
}

// NewClient creates a new weather API client
func NewClient(apiKey string, opts ...Option) *Client {
	c := &Client{
		apiKey:  apiKey,
		baseURL: DefaultBaseURL,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// GeocodeCity resolves a free-text city name. Only the first match is requested.
func (c *Client) GeocodeCity(ctx context.Context, city string) ([]GeoResult, error) {
	params := url.Values{}
	params.Set("q", city)
	params.Set("limit", "1")

	var results []GeoResult
	if err := c.getJSON(ctx, EndpointGeocode, "/geo/1.0/direct", params, &results); err != nil {
		return nil, err
	}
	return results, nil
}

// ReverseGeocode looks up the place name for a coordinate
func (c *Client) ReverseGeocode(ctx context.Context, lat, lon float64) ([]GeoResult, error) {
	params := coordParams(lat, lon)
	params.Set("limit", "1")

	var results []GeoResult
	if err := c.getJSON(ctx, EndpointReverse, "/geo/1.0/reverse", params, &results); err != nil {
		return nil, err
	}
	return results, nil
}

// CurrentWeather retrieves current conditions for a coordinate. Temperatures are Kelvin.
func (c *Client) CurrentWeather(ctx context.Context, lat, lon float64) (*CurrentResponse, error) {
	var resp CurrentResponse
	if err := c.getJSON(ctx, EndpointCurrent, "/data/2.5/weather", coordParams(lat, lon), &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Forecast retrieves the 5 day / 3 hour forecast list for a coordinate
func (c *Client) Forecast(ctx context.Context, lat, lon float64) (*ForecastResponse, error) {
	var resp ForecastResponse
	if err := c.getJSON(ctx, EndpointForecast, "/data/2.5/forecast", coordParams(lat, lon), &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// AirPollution retrieves the current air pollution reading for a coordinate
func (c *Client) AirPollution(ctx context.Context, lat, lon float64) (*AirPollutionResponse, error) {
	var resp AirPollutionResponse
	if err := c.getJSON(ctx, EndpointAirPollution, "/data/2.5/air_pollution", coordParams(lat, lon), &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) getJSON(ctx context.Context, endpoint, path string, params url.Values, out interface{}) error {
	params.Set("appid", c.apiKey)
	requestURL := fmt.Sprintf("%s%s?%s", c.baseURL, path, params.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, requestURL, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req) // nosec G704
	if err != nil {
		c.observe(endpoint, "error", start)
		return fmt.Errorf("failed to make request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		c.observe(endpoint, strconv.Itoa(resp.StatusCode), start)
		return fmt.Errorf("API request failed with status: %d", resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		c.observe(endpoint, "decode_error", start)
		return fmt.Errorf("failed to decode response: %w", err)
	}

	c.observe(endpoint, "ok", start)
	return nil
}

func (c *Client) observe(endpoint, status string, start time.Time) {
	if c.observer != nil {
		c.observer.ObserveRequest(endpoint, status, time.Since(start))
	}
}

func coordParams(lat, lon float64) url.Values {
	params := url.Values{}
	params.Set("lat", strconv.FormatFloat(lat, 'f', 6, 64))
	params.Set("lon", strconv.FormatFloat(lon, 'f', 6, 64))
	return params
}
