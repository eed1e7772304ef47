package weather

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingObserver struct {
	mu    sync.Mutex
	calls []string
}

func (o *recordingObserver) ObserveRequest(endpoint, status string, _ time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.calls = append(o.calls, endpoint+":"+status)
}

func TestNewClient(t *testing.T) {
	apiKey := "test_api_key"
	client := NewClient(apiKey)

	assert.NotNil(t, client)
	assert.Equal(t, apiKey, client.apiKey)
	assert.Equal(t, "https://api.openweathermap.org", client.baseURL)
	assert.NotNil(t, client.httpClient)
	assert.Equal(t, 10*time.Second, client.httpClient.Timeout)
}

func TestNewClient_Options(t *testing.T) {
	httpClient := &http.Client{Timeout: time.Second}
	observer := &recordingObserver{}

	client := NewClient("key", WithBaseURL("http://localhost:9999"), WithHTTPClient(httpClient), WithObserver(observer))

	assert.Equal(t, "http://localhost:9999", client.baseURL)
	assert.Same(t, httpClient, client.httpClient)
	assert.Equal(t, observer, client.observer)

	// empty values keep the defaults
	client = NewClient("key", WithBaseURL(""), WithHTTPClient(nil))
	assert.Equal(t, DefaultBaseURL, client.baseURL)
	assert.NotNil(t, client.httpClient)
}

func TestClient_GeocodeCity_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/geo/1.0/direct", r.URL.Path)
		assert.Equal(t, "São Paulo", r.URL.Query().Get("q"))
		assert.Equal(t, "1", r.URL.Query().Get("limit"))
		assert.Equal(t, "test_key", r.URL.Query().Get("appid"))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[{"name":"São Paulo","lat":-23.55,"lon":-46.63,"country":"BR"}]`))
	}))
	defer server.Close()

	client := NewClient("test_key", WithBaseURL(server.URL))

	results, err := client.GeocodeCity(context.Background(), "São Paulo")

	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "São Paulo", results[0].Name)
	assert.Equal(t, -23.55, results[0].Lat)
	assert.Equal(t, -46.63, results[0].Lon)
}

func TestClient_GeocodeCity_Empty(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[]`))
	}))
	defer server.Close()

	client := NewClient("test_key", WithBaseURL(server.URL))

	results, err := client.GeocodeCity(context.Background(), "Nowhere123")

	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestClient_ReverseGeocode(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/geo/1.0/reverse", r.URL.Path)
		assert.Equal(t, "51.500000", r.URL.Query().Get("lat"))
		assert.Equal(t, "-0.130000", r.URL.Query().Get("lon"))
		_, _ = w.Write([]byte(`[{"name":"London","lat":51.5,"lon":-0.13,"country":"GB"}]`))
	}))
	defer server.Close()

	client := NewClient("test_key", WithBaseURL(server.URL))

	results, err := client.ReverseGeocode(context.Background(), 51.5, -0.13)

	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "London", results[0].Name)
}

func TestClient_CurrentWeather_Success(t *testing.T) {
	observer := &recordingObserver{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/data/2.5/weather", r.URL.Path)
		assert.Contains(t, r.URL.Query().Get("lat"), "40.7")
		assert.Contains(t, r.URL.Query().Get("lon"), "-74.0")
		assert.Equal(t, "test_key", r.URL.Query().Get("appid"))
		assert.Empty(t, r.URL.Query().Get("units"), "temperatures must come back in Kelvin")

		response := map[string]interface{}{
			"name":     "New York",
			"timezone": -14400,
			"main": map[string]interface{}{
				"temp":     288.65,
				"humidity": 65,
			},
			"wind": map[string]interface{}{
				"speed": 5.5,
			},
			"weather": []map[string]interface{}{
				{"id": 802, "main": "Clouds", "description": "scattered clouds", "icon": "03d"},
			},
			"sys": map[string]interface{}{
				"sunrise": 1700000000,
				"sunset":  1700040000,
			},
		}

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(response)
	}))
	defer server.Close()

	client := NewClient("test_key", WithBaseURL(server.URL), WithObserver(observer))

	current, err := client.CurrentWeather(context.Background(), 40.7128, -74.0060)

	require.NoError(t, err)
	require.NotNil(t, current)
	assert.Equal(t, "New York", current.Name)
	assert.Equal(t, 288.65, current.Main.Temp)
	assert.Equal(t, 65, current.Main.Humidity)
	assert.Equal(t, 5.5, current.Wind.Speed)
	require.Len(t, current.Weather, 1)
	assert.Equal(t, 802, current.Weather[0].ID)
	assert.Equal(t, int64(1700000000), current.Sys.Sunrise)
	require.NotNil(t, current.Timezone)
	assert.Equal(t, -14400, *current.Timezone)
	assert.Nil(t, current.Current, "plain weather endpoint carries no uvi block")
	assert.Equal(t, []string{"current:ok"}, observer.calls)
}

func TestClient_CurrentWeather_APIError(t *testing.T) {
	observer := &recordingObserver{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	client := NewClient("test_key", WithBaseURL(server.URL), WithObserver(observer))

	current, err := client.CurrentWeather(context.Background(), 40.7128, -74.0060)

	assert.Error(t, err)
	assert.Nil(t, current)
	assert.Contains(t, err.Error(), "API request failed with status: 401")
	assert.Equal(t, []string{"current:401"}, observer.calls)
}

func TestClient_CurrentWeather_InvalidJSON(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte("invalid json"))
	}))
	defer server.Close()

	client := NewClient("test_key", WithBaseURL(server.URL))

	current, err := client.CurrentWeather(context.Background(), 40.7128, -74.0060)

	assert.Error(t, err)
	assert.Nil(t, current)
	assert.Contains(t, err.Error(), "failed to decode response")
}

func TestClient_CurrentWeather_TransportError(t *testing.T) {
	observer := &recordingObserver{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close()

	client := NewClient("test_key", WithBaseURL(server.URL), WithObserver(observer))

	_, err := client.CurrentWeather(context.Background(), 1, 2)

	assert.Error(t, err)
	assert.Contains(t, err.Error(), "failed to make request")
	assert.Equal(t, []string{"current:error"}, observer.calls)
}

func TestClient_CurrentWeather_WithUVBlock(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"name":"Lima","main":{"temp":290},"current":{"uvi":7.5}}`))
	}))
	defer server.Close()

	client := NewClient("test_key", WithBaseURL(server.URL))

	current, err := client.CurrentWeather(context.Background(), -12.04, -77.04)

	require.NoError(t, err)
	require.NotNil(t, current.Current)
	require.NotNil(t, current.Current.UVI)
	assert.Equal(t, 7.5, *current.Current.UVI)
	assert.Empty(t, current.Weather)
}

func TestClient_Forecast_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/data/2.5/forecast", r.URL.Path)

		_, _ = w.Write([]byte(`{
			"list": [
				{"dt": 1700006400, "dt_txt": "2023-11-15 00:00:00", "main": {"temp": 280.1}, "weather": [{"id": 800, "description": "clear sky"}]},
				{"dt": 1700049600, "dt_txt": "2023-11-15 12:00:00", "main": {"temp": 284.3}, "weather": [{"id": 500, "description": "light rain"}]}
			],
			"city": {"name": "London", "timezone": 0}
		}`))
	}))
	defer server.Close()

	client := NewClient("test_key", WithBaseURL(server.URL))

	forecast, err := client.Forecast(context.Background(), 51.5, -0.13)

	require.NoError(t, err)
	require.Len(t, forecast.List, 2)
	assert.Equal(t, "2023-11-15 12:00:00", forecast.List[1].DtTxt)
	assert.Equal(t, 284.3, forecast.List[1].Main.Temp)
	assert.Equal(t, 500, forecast.List[1].Weather[0].ID)
	assert.Equal(t, "London", forecast.City.Name)
}

func TestClient_AirPollution(t *testing.T) {
	t.Run("with reading", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/data/2.5/air_pollution", r.URL.Path)
			_, _ = w.Write([]byte(`{"list":[{"main":{"aqi":2}}]}`))
		}))
		defer server.Close()

		client := NewClient("test_key", WithBaseURL(server.URL))
		air, err := client.AirPollution(context.Background(), 51.5, -0.13)

		require.NoError(t, err)
		require.Len(t, air.List, 1)
		require.NotNil(t, air.List[0].Main.AQI)
		assert.Equal(t, 2, *air.List[0].Main.AQI)
	})

	t.Run("empty list is not an error", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"list":[]}`))
		}))
		defer server.Close()

		client := NewClient("test_key", WithBaseURL(server.URL))
		air, err := client.AirPollution(context.Background(), 51.5, -0.13)

		require.NoError(t, err)
		assert.Empty(t, air.List)
	})
}

func TestClient_UserAgent(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Nebo/1.0", r.Header.Get("User-Agent"))
		_, _ = w.Write([]byte(`[]`))
	}))
	defer server.Close()

	client := NewClient("test_key", WithBaseURL(server.URL), WithUserAgent("Nebo/1.0"))

	_, err := client.GeocodeCity(context.Background(), "Paris")
	require.NoError(t, err)
}
