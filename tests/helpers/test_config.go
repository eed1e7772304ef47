package helpers

import (
	"time"

	"github.com/valpere/nebo/internal/config"
)

// GetTestConfig returns a configuration pointing at no real services.
// Override Weather.BaseURL and Assistant.BaseURL with httptest servers as needed.
func GetTestConfig() *config.Config {
	return &config.Config{
		Bot: config.BotConfig{
			Token:       "test_bot_token",
			Debug:       true,
			WebhookPort: 0,
		},
		Redis: config.RedisConfig{
			Host: "localhost",
			Port: 6379,
			DB:   1,
		},
		Weather: config.WeatherConfig{
			OpenWeatherAPIKey: "test_weather_api_key",
			BaseURL:           "http://127.0.0.1:0",
			DefaultUnit:       "celsius",
		},
		Assistant: config.AssistantConfig{
			Provider: "gemini",
			APIKey:   "test_gemini_key",
			BaseURL:  "http://127.0.0.1:0",
		},
		Session: config.SessionConfig{
			Backend: config.SessionBackendMemory,
			TTL:     time.Hour,
		},
		Logging: config.LoggingConfig{
			Level:  "debug",
			Format: "console",
		},
		RateLimit: config.RateLimitConfig{
			PerSecond: 100,
			Burst:     100,
		},
	}
}
