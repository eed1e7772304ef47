package services

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/valpere/nebo/pkg/weather"
)

// WeatherProvider serves the three per-coordinate calls. *weather.Client satisfies it.
type WeatherProvider interface {
	CurrentWeather(ctx context.Context, lat, lon float64) (*weather.CurrentResponse, error)
	Forecast(ctx context.Context, lat, lon float64) (*weather.ForecastResponse, error)
	AirPollution(ctx context.Context, lat, lon float64) (*weather.AirPollutionResponse, error)
}

// RawBundle is the joined result of one fetch. All three parts come from the same run.
type RawBundle struct {
	Current  *weather.CurrentResponse
	Forecast *weather.ForecastResponse
	Air      *weather.AirPollutionResponse
}

type FetcherService struct {
	provider WeatherProvider
	logger   *zerolog.Logger
}

func NewFetcherService(provider WeatherProvider, logger *zerolog.Logger) *FetcherService {
	return &FetcherService{provider: provider, logger: logger}
}

// Fetch issues the current, forecast and air-pollution requests concurrently and waits for all of them.
// The first failure cancels the others and fails the whole fetch; nothing partial is returned.
func (s *FetcherService) Fetch(ctx context.Context, coord weather.Coordinate) (*RawBundle, error) {
	var bundle RawBundle
	lat, lon := coord.Latitude, coord.Longitude

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		resp, err := s.provider.CurrentWeather(gctx, lat, lon)
		if err != nil {
			return fmt.Errorf("current weather: %w", err)
		}
		bundle.Current = resp
		return nil
	})

	g.Go(func() error {
		resp, err := s.provider.Forecast(gctx, lat, lon)
		if err != nil {
			return fmt.Errorf("forecast: %w", err)
		}
		bundle.Forecast = resp
		return nil
	})

	g.Go(func() error {
		resp, err := s.provider.AirPollution(gctx, lat, lon)
		if err != nil {
			return fmt.Errorf("air pollution: %w", err)
		}
		bundle.Air = resp
		return nil
	})

	if err := g.Wait(); err != nil {
		s.logger.Warn().Err(err).
			Float64("lat", lat).
			Float64("lon", lon).
			Msg("Weather fetch failed")
		return nil, fmt.Errorf("%w: %w", ErrWeatherFetchFailed, err)
	}

	// a provider returning (nil, nil) is treated as a malformed body
	if bundle.Current == nil || bundle.Forecast == nil || bundle.Air == nil {
		return nil, fmt.Errorf("%w: empty provider response", ErrWeatherFetchFailed)
	}

	return &bundle, nil
}
