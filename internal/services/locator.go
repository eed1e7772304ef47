package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/valpere/nebo/pkg/weather"
)

// Geocoder resolves names to coordinates and back. *weather.Client satisfies it.
type Geocoder interface {
	GeocodeCity(ctx context.Context, city string) ([]weather.GeoResult, error)
	ReverseGeocode(ctx context.Context, lat, lon float64) ([]weather.GeoResult, error)
}

// DeviceLocation is the front-end's access to the device position.
// RequestPermission returns an error when the user refused.
type DeviceLocation interface {
	RequestPermission(ctx context.Context) error
	CurrentPosition(ctx context.Context) (weather.Coordinate, error)
}

// StaticDevice is a DeviceLocation backed by a position the client already shared.
// A nil position means the user did not grant access.
type StaticDevice struct {
	Position *weather.Coordinate
}

func (d StaticDevice) RequestPermission(_ context.Context) error {
	if d.Position == nil {
		return ErrPermissionDenied
	}
	return nil
}

func (d StaticDevice) CurrentPosition(_ context.Context) (weather.Coordinate, error) {
	if d.Position == nil {
		return weather.Coordinate{}, ErrPermissionDenied
	}
	return *d.Position, nil
}

type LocatorService struct {
	geocoder Geocoder
	logger   *zerolog.Logger
}

func NewLocatorService(geocoder Geocoder, logger *zerolog.Logger) *LocatorService {
	return &LocatorService{geocoder: geocoder, logger: logger}
}

// ByCity geocodes a free-text city name. Only the first match is used.
func (s *LocatorService) ByCity(ctx context.Context, query string) (*Place, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, ErrEmptyQuery
	}

	results, err := s.geocoder.GeocodeCity(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("%w: geocoding %q: %w", ErrWeatherFetchFailed, query, err)
	}
	if len(results) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrCityNotFound, query)
	}

	first := results[0]
	name := strings.TrimSpace(first.Name)
	if name == "" {
		name = query
	}

	s.logger.Debug().
		Str("query", query).
		Str("city", name).
		Float64("lat", first.Lat).
		Float64("lon", first.Lon).
		Msg("City resolved")

	return &Place{
		Coordinate: weather.Coordinate{Latitude: first.Lat, Longitude: first.Lon},
		CityName:   name,
	}, nil
}

// ByDevice asks the device for its position and reverse-geocodes it to a city name
func (s *LocatorService) ByDevice(ctx context.Context, device DeviceLocation) (*Place, error) {
	if err := device.RequestPermission(ctx); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrPermissionDenied, err)
	}

	coord, err := device.CurrentPosition(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrPermissionDenied, err)
	}

	results, err := s.geocoder.ReverseGeocode(ctx, coord.Latitude, coord.Longitude)
	if err != nil {
		return nil, fmt.Errorf("%w: reverse geocoding: %w", ErrWeatherFetchFailed, err)
	}
	if len(results) == 0 || strings.TrimSpace(results[0].Name) == "" {
		return nil, fmt.Errorf("%w: %.4f,%.4f", ErrCityUndetermined, coord.Latitude, coord.Longitude)
	}

	name := strings.TrimSpace(results[0].Name)
	s.logger.Debug().
		Str("city", name).
		Float64("lat", coord.Latitude).
		Float64("lon", coord.Longitude).
		Msg("Device location resolved")

	// keep the device coordinate; the reverse lookup only supplies the name
	return &Place{Coordinate: coord, CityName: name}, nil
}
