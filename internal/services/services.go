// Package services implements the Nebo weather pipeline: resolving a location,
// fetching provider data, aggregating it into a snapshot, and relaying chat
// questions to the assistant. Sessions hold the per-client view state.
package services

import (
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/valpere/nebo/internal/config"
	"github.com/valpere/nebo/internal/version"
	"github.com/valpere/nebo/pkg/assistant"
	"github.com/valpere/nebo/pkg/metrics"
	"github.com/valpere/nebo/pkg/weather"
)

// Services is the container handed to the bot and HTTP handlers.
//
// Usage:
//
//	svcs, err := services.New(cfg, redisClient, logger, metrics)
//	state, err := svcs.Weather.LoadCity(ctx, sessionID, "London")
//	state, err = svcs.Assistant.Ask(ctx, sessionID, "Do I need an umbrella?")
type Services struct {
	Locator   *LocatorService
	Fetcher   *FetcherService
	Weather   *WeatherService
	Sessions  *SessionManager
	Assistant *AssistantService
	startTime time.Time
}

// New wires every service from configuration. redisClient may be nil unless
// the session backend is redis.
func New(cfg *config.Config, redisClient *redis.Client, logger *zerolog.Logger, metricsCollector *metrics.Metrics) (*Services, error) {
	client := weather.NewClient(cfg.Weather.OpenWeatherAPIKey,
		weather.WithBaseURL(cfg.Weather.BaseURL),
		weather.WithObserver(metricsCollector),
		weather.WithUserAgent(version.GetInfo().UserAgent()),
	)

	generator, err := assistant.New(assistant.Options{
		Provider: cfg.Assistant.Provider,
		APIKey:   cfg.Assistant.APIKey,
		BaseURL:  cfg.Assistant.BaseURL,
		Model:    cfg.Assistant.Model,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create assistant: %w", err)
	}

	var store SessionStore
	switch cfg.Session.Backend {
	case config.SessionBackendRedis:
		if redisClient == nil {
			return nil, fmt.Errorf("session backend redis requires a redis client")
		}
		store = NewRedisSessionStore(redisClient, cfg.Session.TTL)
	default:
		store = NewMemorySessionStore()
	}

	unit, err := weather.ParseUnit(cfg.Weather.DefaultUnit)
	if err != nil {
		return nil, err
	}

	return NewWithDependencies(client, generator, store, unit, logger, metricsCollector), nil
}

// NewWithDependencies builds the container from already constructed collaborators
func NewWithDependencies(client interface {
	Geocoder
	WeatherProvider
}, generator assistant.Generator, store SessionStore, defaultUnit weather.Unit, logger *zerolog.Logger, metricsCollector *metrics.Metrics) *Services {
	locator := NewLocatorService(client, logger)
	fetcher := NewFetcherService(client, logger)
	sessions := NewSessionManager(store, defaultUnit, metricsCollector, logger)

	return &Services{
		Locator:   locator,
		Fetcher:   fetcher,
		Weather:   NewWeatherService(locator, fetcher, sessions, metricsCollector, logger),
		Sessions:  sessions,
		Assistant: NewAssistantService(generator, sessions, metricsCollector, logger),
		startTime: time.Now(),
	}
}

// Uptime reports how long the container has existed
func (s *Services) Uptime() time.Duration {
	return time.Since(s.startTime)
}
