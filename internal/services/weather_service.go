package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/valpere/nebo/pkg/metrics"
)

// Locator sources, used as metric labels
const (
	SourceCity   = "city"
	SourceDevice = "device"
)

// WeatherService runs Locator -> Fetcher -> Aggregator and installs results into sessions
type WeatherService struct {
	locator  *LocatorService
	fetcher  *FetcherService
	sessions *SessionManager
	metrics  *metrics.Metrics
	logger   *zerolog.Logger
	now      func() time.Time
}

func NewWeatherService(locator *LocatorService, fetcher *FetcherService, sessions *SessionManager, metricsCollector *metrics.Metrics, logger *zerolog.Logger) *WeatherService {
	return &WeatherService{
		locator:  locator,
		fetcher:  fetcher,
		sessions: sessions,
		metrics:  metricsCollector,
		logger:   logger,
		now:      time.Now,
	}
}

// SnapshotForPlace fetches and aggregates weather for an already resolved place
func (s *WeatherService) SnapshotForPlace(ctx context.Context, place *Place) (*WeatherSnapshot, error) {
	bundle, err := s.fetcher.Fetch(ctx, place.Coordinate)
	if err != nil {
		return nil, err
	}
	return bundle.Snapshot(place.CityName, s.now()), nil
}

// SnapshotForCity runs the whole pipeline for a city name without touching any session
func (s *WeatherService) SnapshotForCity(ctx context.Context, city string) (*WeatherSnapshot, error) {
	return s.observe(SourceCity, func() (*WeatherSnapshot, error) {
		place, err := s.locator.ByCity(ctx, city)
		if err != nil {
			return nil, err
		}
		return s.SnapshotForPlace(ctx, place)
	})
}

// SnapshotForDevice runs the whole pipeline for a device position without touching any session
func (s *WeatherService) SnapshotForDevice(ctx context.Context, device DeviceLocation) (*WeatherSnapshot, error) {
	return s.observe(SourceDevice, func() (*WeatherSnapshot, error) {
		place, err := s.locator.ByDevice(ctx, device)
		if err != nil {
			return nil, err
		}
		return s.SnapshotForPlace(ctx, place)
	})
}

// LoadCity refreshes a session from a city name. An empty query is rejected before
// the session is touched. On failure the returned state carries the error and no snapshot.
func (s *WeatherService) LoadCity(ctx context.Context, sessionID, city string) (*SessionState, error) {
	if strings.TrimSpace(city) == "" {
		return nil, ErrEmptyQuery
	}
	return s.load(ctx, sessionID, func() (*WeatherSnapshot, error) {
		return s.SnapshotForCity(ctx, city)
	})
}

// LoadDevice refreshes a session from the device position
func (s *WeatherService) LoadDevice(ctx context.Context, sessionID string, device DeviceLocation) (*SessionState, error) {
	return s.load(ctx, sessionID, func() (*WeatherSnapshot, error) {
		return s.SnapshotForDevice(ctx, device)
	})
}

func (s *WeatherService) load(ctx context.Context, sessionID string, run func() (*WeatherSnapshot, error)) (*SessionState, error) {
	seq, err := s.sessions.BeginFetch(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	snap, runErr := run()

	// a cancelled request still has to clear Loading
	done := context.WithoutCancel(ctx)
	state, err := s.sessions.CompleteFetch(done, sessionID, seq, snap, runErr)
	if err != nil && !errors.Is(err, ErrSupersededFetch) {
		s.logger.Warn().Err(err).Str("session_id", sessionID).Msg("Retrying fetch completion")
		state, err = s.sessions.CompleteFetch(done, sessionID, seq, snap, runErr)
	}
	if err != nil {
		if errors.Is(err, ErrSupersededFetch) {
			s.metrics.IncrementCounter(metrics.SnapshotLoadsTotal, "session", "superseded")
		}
		return nil, err
	}

	if runErr != nil {
		s.logger.Info().
			Err(runErr).
			Str("session_id", sessionID).
			Str("kind", string(state.ErrorKind)).
			Msg("Weather load failed")
		return state, runErr
	}

	s.logger.Debug().
		Str("session_id", sessionID).
		Str("city", snap.CityName).
		Uint64("seq", seq).
		Msg("Snapshot installed")
	return state, nil
}

func (s *WeatherService) observe(source string, run func() (*WeatherSnapshot, error)) (*WeatherSnapshot, error) {
	start := time.Now()
	snap, err := run()

	result := "ok"
	if err != nil {
		result = string(ErrorKindOf(err))
	}
	s.metrics.IncrementCounter(metrics.SnapshotLoadsTotal, source, result)
	s.metrics.ObserveHistogram(metrics.SnapshotLoadDuration, time.Since(start).Seconds(), source)

	return snap, err
}
