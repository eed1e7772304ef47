package handler

import (
	"context"
	"errors"
	"net/http"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/valpere/nebo/internal/bot"
	"github.com/valpere/nebo/internal/config"
)

var (
	webhookBot *bot.Bot
	initOnce   sync.Once
	initErr    error
)

// Handler is the serverless entry point for Telegram webhooks. Sessions live
// as long as the warm instance that serves them.
func Handler(w http.ResponseWriter, r *http.Request) {
	initOnce.Do(func() {
		initErr = initialize()
	})

	if initErr != nil {
		log.Error().Err(initErr).Msg("Bot initialization failed")
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	webhookBot.ServeWebhook(w, r)
}

func initialize() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	if cfg.Bot.Token == "" {
		return errors.New("TELEGRAM_BOT_TOKEN is required")
	}
	if cfg.Weather.OpenWeatherAPIKey == "" {
		return errors.New("OPENWEATHER_API_KEY is required")
	}

	webhookBot, err = bot.New(cfg)
	if err != nil {
		return err
	}
	webhookBot.StartMaintenance(context.Background())

	log.Info().Msg("Bot initialized for serverless webhooks")
	return nil
}
