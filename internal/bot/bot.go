package bot

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/PaulSonOfLars/gotgbot/v2"
	"github.com/PaulSonOfLars/gotgbot/v2/ext"
	"github.com/PaulSonOfLars/gotgbot/v2/ext/handlers"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/valpere/nebo/internal/config"
	"github.com/valpere/nebo/internal/database"
	"github.com/valpere/nebo/internal/handlers/commands"
	"github.com/valpere/nebo/internal/middleware"
	"github.com/valpere/nebo/internal/services"
	"github.com/valpere/nebo/pkg/metrics"
	"github.com/valpere/nebo/pkg/weather"
)

const (
	limiterCleanupInterval = 5 * time.Minute
	limiterIdleTimeout     = 30 * time.Minute
	sessionCleanupInterval = 10 * time.Minute
)

type Bot struct {
	bot        *gotgbot.Bot
	updater    *ext.Updater
	dispatcher *ext.Dispatcher
	config     *config.Config
	logger     zerolog.Logger
	services   *services.Services
	server     *http.Server
	metrics    *metrics.Metrics
	limiter    *middleware.UserRateLimiter
	redis      *redis.Client
}

// NewLogger builds the process logger from the logging section
func NewLogger(cfg config.LoggingConfig, out io.Writer) zerolog.Logger {
	level, err := zerolog.ParseLevel(strings.ToLower(cfg.Level))
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}

	if cfg.Format == "console" {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}
	}

	return zerolog.New(out).
		Level(level).
		With().
		Timestamp().
		Str("component", "bot").
		Logger()
}

func New(cfg *config.Config) (*Bot, error) {
	logger := NewLogger(cfg.Logging, os.Stdout)

	metricsCollector := metrics.New()

	var rdb *redis.Client
	if cfg.Session.Backend == config.SessionBackendRedis {
		var err error
		rdb, err = database.ConnectRedis(&cfg.Redis)
		if err != nil {
			return nil, err
		}
	}

	svcs, err := services.New(cfg, rdb, &logger, metricsCollector)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize services: %w", err)
	}

	botInstance, err := gotgbot.NewBot(cfg.Bot.Token, &gotgbot.BotOpts{
		BotClient: &gotgbot.BaseBotClient{
			Client: http.Client{Timeout: 30 * time.Second},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create bot: %w", err)
	}

	dispatcher := ext.NewDispatcher(&ext.DispatcherOpts{
		Error: func(b *gotgbot.Bot, ctx *ext.Context, err error) ext.DispatcherAction {
			logger.Error().Err(err).Str("update_type", middleware.UpdateType(ctx)).Msg("Handler failed")
			metricsCollector.IncrementCounter(metrics.BotErrorsTotal, "handler")
			return ext.DispatcherActionNoop
		},
	})
	updater := ext.NewUpdater(dispatcher, &ext.UpdaterOpts{})

	weatherBot := &Bot{
		bot:        botInstance,
		updater:    updater,
		dispatcher: dispatcher,
		config:     cfg,
		logger:     logger,
		services:   svcs,
		metrics:    metricsCollector,
		limiter:    middleware.NewUserRateLimiter(rate.Limit(cfg.RateLimit.PerSecond), cfg.RateLimit.Burst),
		redis:      rdb,
	}

	weatherBot.setupHandlers()

	if err := weatherBot.setupHTTPServer(); err != nil {
		return nil, err
	}

	return weatherBot, nil
}

func (b *Bot) setupHandlers() {
	// The dispatcher runs one handler per group, so each middleware owns a group.
	// RateLimit may end processing before the commands see the update.
	b.dispatcher.AddHandlerToGroup(middleware.Logging(&b.logger), -3)
	b.dispatcher.AddHandlerToGroup(middleware.Metrics(b.metrics), -2)
	b.dispatcher.AddHandlerToGroup(middleware.RateLimit(b.limiter, b.metrics), -1)

	cmdHandler := commands.New(b.services, &b.logger)

	b.dispatcher.AddHandler(handlers.NewCommand("start", cmdHandler.Start))
	b.dispatcher.AddHandler(handlers.NewCommand("help", cmdHandler.Help))
	b.dispatcher.AddHandler(handlers.NewCommand("version", cmdHandler.Version))
	b.dispatcher.AddHandler(handlers.NewCommand("weather", cmdHandler.Weather))
	b.dispatcher.AddHandler(handlers.NewCommand("units", cmdHandler.Units))
	b.dispatcher.AddHandler(handlers.NewCommand("ask", cmdHandler.Ask))
	b.dispatcher.AddHandler(handlers.NewCommand("chat", cmdHandler.Chat))

	b.dispatcher.AddHandler(handlers.NewCallback(nil, cmdHandler.HandleCallback))

	// Shared location runs the device path
	b.dispatcher.AddHandler(handlers.NewMessage(func(msg *gotgbot.Message) bool {
		return msg.Location != nil
	}, cmdHandler.HandleLocationMessage))

	// Plain text is a city query
	b.dispatcher.AddHandler(handlers.NewMessage(func(msg *gotgbot.Message) bool {
		return msg.Text != "" && msg.Location == nil && !strings.HasPrefix(msg.Text, "/")
	}, cmdHandler.HandleTextMessage))

	b.dispatcher.AddHandler(handlers.NewMessage(func(msg *gotgbot.Message) bool {
		return strings.HasPrefix(msg.Text, "/")
	}, cmdHandler.UnknownCommand))
}

func (b *Bot) setupHTTPServer() error {
	unit, err := weather.ParseUnit(b.config.Weather.DefaultUnit)
	if err != nil {
		return err
	}

	api := NewAPI(b.services, b.metrics, b.redis, &b.logger, unit)
	router := api.Router(b.limiter)

	if b.config.Bot.WebhookURL != "" {
		router.POST("/webhook", gin.WrapF(b.ServeWebhook))
	}

	b.server = &http.Server{
		Addr:         ":" + strconv.Itoa(b.config.Bot.WebhookPort),
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 2 * time.Minute,
	}
	return nil
}

// ServeWebhook decodes one Telegram update and runs it through the dispatcher
func (b *Bot) ServeWebhook(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method Not Allowed", http.StatusMethodNotAllowed)
		return
	}

	var update gotgbot.Update
	if err := json.NewDecoder(r.Body).Decode(&update); err != nil {
		b.logger.Error().Err(err).Msg("Failed to parse webhook update")
		http.Error(w, "Bad Request", http.StatusBadRequest)
		return
	}

	if err := b.dispatcher.ProcessUpdate(b.bot, &update, nil); err != nil {
		b.logger.Error().Err(err).Int64("update_id", update.UpdateId).Msg("Failed to process update")
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusOK)
}

func (b *Bot) Start(ctx context.Context) error {
	b.logger.Info().Msg("Starting Nebo bot...")

	go func() {
		if err := b.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			b.logger.Fatal().Err(err).Msg("HTTP server failed to start")
		}
	}()

	b.logger.Info().
		Int("port", b.config.Bot.WebhookPort).
		Msg("HTTP server started")

	b.StartMaintenance(ctx)

	if b.config.Bot.WebhookURL != "" {
		if err := b.setupWebhook(); err != nil {
			return fmt.Errorf("failed to setup webhook: %w", err)
		}
	} else {
		b.logger.Info().Msg("Starting polling...")
		if err := b.updater.StartPolling(b.bot, &ext.PollingOpts{
			DropPendingUpdates: true,
			GetUpdatesOpts: &gotgbot.GetUpdatesOpts{
				Timeout: 10,
				RequestOpts: &gotgbot.RequestOpts{
					Timeout: time.Second * 15,
				},
			},
		}); err != nil {
			return fmt.Errorf("failed to start polling: %w", err)
		}
	}

	b.logger.Info().
		Str("bot_username", b.bot.Username).
		Str("session_backend", b.config.Session.Backend).
		Msg("Nebo bot started successfully")

	<-ctx.Done()
	return nil
}

// StartMaintenance evicts idle rate limiters and sessions until ctx is done
func (b *Bot) StartMaintenance(ctx context.Context) {
	b.limiter.StartCleanup(ctx, limiterCleanupInterval, limiterIdleTimeout)
	b.services.Sessions.StartCleanup(ctx, sessionCleanupInterval, b.config.Session.TTL)
}

func (b *Bot) setupWebhook() error {
	webhookURL := b.config.Bot.WebhookURL + "/webhook"

	_, err := b.bot.SetWebhook(webhookURL, &gotgbot.SetWebhookOpts{
		MaxConnections:     100,
		DropPendingUpdates: true,
	})
	if err != nil {
		return fmt.Errorf("failed to set webhook: %w", err)
	}

	b.logger.Info().
		Str("webhook_url", webhookURL).
		Msg("Webhook configured")

	return nil
}

func (b *Bot) Stop() error {
	b.logger.Info().Msg("Stopping Nebo bot...")

	if b.config.Bot.WebhookURL == "" {
		if err := b.updater.Stop(); err != nil {
			b.logger.Error().Err(err).Msg("Updater stop error")
		}
	}

	if b.server != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := b.server.Shutdown(ctx); err != nil {
			b.logger.Error().Err(err).Msg("HTTP server shutdown error")
		}
	}

	if b.redis != nil {
		if err := b.redis.Close(); err != nil {
			b.logger.Error().Err(err).Msg("Redis close error")
		}
	}

	b.logger.Info().Msg("Nebo bot stopped")
	return nil
}
