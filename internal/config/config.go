package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/valpere/nebo/pkg/weather"
)

type Config struct {
	Bot       BotConfig       `mapstructure:"bot"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Weather   WeatherConfig   `mapstructure:"weather"`
	Assistant AssistantConfig `mapstructure:"assistant"`
	Session   SessionConfig   `mapstructure:"session"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
}

type BotConfig struct {
	Token       string `mapstructure:"token"`
	Debug       bool   `mapstructure:"debug"`
	WebhookURL  string `mapstructure:"webhook_url"`
	WebhookPort int    `mapstructure:"webhook_port"`
}

type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type WeatherConfig struct {
	OpenWeatherAPIKey string `mapstructure:"openweather_api_key"`
	BaseURL           string `mapstructure:"base_url"`
	DefaultUnit       string `mapstructure:"default_unit"`
}

type AssistantConfig struct {
	Provider string `mapstructure:"provider"`
	// APIKey wins over the provider-specific keys when set
	APIKey       string `mapstructure:"api_key"`
	GeminiAPIKey string `mapstructure:"gemini_api_key"`
	OpenAIAPIKey string `mapstructure:"openai_api_key"`
	BaseURL      string `mapstructure:"base_url"`
	Model        string `mapstructure:"model"`
}

// resolveAPIKey picks the key of the selected provider when no explicit key is set
func (a *AssistantConfig) resolveAPIKey() {
	if a.APIKey != "" {
		return
	}
	switch a.Provider {
	case "openai":
		a.APIKey = a.OpenAIAPIKey
	default:
		a.APIKey = a.GeminiAPIKey
	}
}

type SessionConfig struct {
	Backend string        `mapstructure:"backend"`
	TTL     time.Duration `mapstructure:"ttl"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type RateLimitConfig struct {
	PerSecond float64 `mapstructure:"per_second"`
	Burst     int     `mapstructure:"burst"`
}

const (
	SessionBackendMemory = "memory"
	SessionBackendRedis  = "redis"
)

func Load() (*Config, error) {
	// Load .env file if it exists
	if _, err := os.Stat(".env"); err == nil {
		if err := godotenv.Load(); err != nil {
			return nil, fmt.Errorf("error loading .env file: %w", err)
		}
	}

	// Configure YAML config file search
	viper.SetConfigName("nebo")
	viper.SetConfigType("yaml")

	// Add search paths in order of precedence (first found wins)
	viper.AddConfigPath(".")             // ./nebo.yaml (current directory)
	viper.AddConfigPath("$HOME")         // ~/nebo.yaml (home directory)
	viper.AddConfigPath("$HOME/.config") // ~/.config/nebo.yaml
	viper.AddConfigPath("/etc")          // /etc/nebo.yaml (system-wide)

	// Environment variables
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	// Map specific environment variables to config keys
	viper.BindEnv("bot.token", "TELEGRAM_BOT_TOKEN")
	viper.BindEnv("bot.debug", "BOT_DEBUG")
	viper.BindEnv("bot.webhook_url", "BOT_WEBHOOK_URL")
	viper.BindEnv("bot.webhook_port", "BOT_WEBHOOK_PORT")

	viper.BindEnv("redis.host", "REDIS_HOST")
	viper.BindEnv("redis.port", "REDIS_PORT")
	viper.BindEnv("redis.password", "REDIS_PASSWORD")
	viper.BindEnv("redis.db", "REDIS_DB")

	viper.BindEnv("weather.openweather_api_key", "OPENWEATHER_API_KEY")
	viper.BindEnv("weather.base_url", "OPENWEATHER_BASE_URL")
	viper.BindEnv("weather.default_unit", "DEFAULT_UNIT")

	viper.BindEnv("assistant.provider", "ASSISTANT_PROVIDER")
	viper.BindEnv("assistant.api_key", "ASSISTANT_API_KEY")
	viper.BindEnv("assistant.gemini_api_key", "GEMINI_API_KEY")
	viper.BindEnv("assistant.openai_api_key", "OPENAI_API_KEY")
	viper.BindEnv("assistant.base_url", "ASSISTANT_BASE_URL")
	viper.BindEnv("assistant.model", "ASSISTANT_MODEL")

	viper.BindEnv("session.backend", "SESSION_BACKEND")
	viper.BindEnv("session.ttl", "SESSION_TTL")

	viper.BindEnv("logging.level", "LOG_LEVEL")
	viper.BindEnv("logging.format", "LOG_FORMAT")

	viper.BindEnv("rate_limit.per_second", "RATE_LIMIT_PER_SECOND")
	viper.BindEnv("rate_limit.burst", "RATE_LIMIT_BURST")

	// Set defaults
	setDefaults()

	// Read config file if exists
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("error unmarshalling config: %w", err)
	}
	config.Assistant.resolveAPIKey()

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

// Validate rejects values the services cannot start with
func (c *Config) Validate() error {
	if _, err := weather.ParseUnit(c.Weather.DefaultUnit); err != nil {
		return fmt.Errorf("invalid weather.default_unit: %w", err)
	}

	switch c.Assistant.Provider {
	case "gemini", "openai":
	default:
		return fmt.Errorf("invalid assistant.provider %q: expected gemini or openai", c.Assistant.Provider)
	}

	switch c.Session.Backend {
	case SessionBackendMemory, SessionBackendRedis:
	default:
		return fmt.Errorf("invalid session.backend %q: expected memory or redis", c.Session.Backend)
	}

	if c.Session.TTL <= 0 {
		return fmt.Errorf("session.ttl must be positive, got %s", c.Session.TTL)
	}

	return nil
}

func setDefaults() {
	// Bot defaults
	viper.SetDefault("bot.debug", false)
	viper.SetDefault("bot.webhook_port", 8080)

	// Redis defaults
	viper.SetDefault("redis.host", "localhost")
	viper.SetDefault("redis.port", 6379)
	viper.SetDefault("redis.db", 0)

	// Weather defaults
	viper.SetDefault("weather.base_url", weather.DefaultBaseURL)
	viper.SetDefault("weather.default_unit", string(weather.Celsius))

	// Assistant defaults
	viper.SetDefault("assistant.provider", "gemini")

	// Session defaults
	viper.SetDefault("session.backend", SessionBackendMemory)
	viper.SetDefault("session.ttl", 24*time.Hour)

	// Logging defaults
	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.format", "json")

	// Inbound update throttling
	viper.SetDefault("rate_limit.per_second", 1.0)
	viper.SetDefault("rate_limit.burst", 5)
}
