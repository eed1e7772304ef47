package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"

	"github.com/valpere/nebo/internal/bot"
	"github.com/valpere/nebo/internal/config"
	"github.com/valpere/nebo/internal/version"
)

func main() {
	versionFlag := flag.Bool("version", false, "Print version information and exit")
	flag.Parse()

	if *versionFlag {
		fmt.Println(version.GetInfo().String())
		os.Exit(0)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logger := bot.NewLogger(cfg.Logging, os.Stdout)
	logger.Info().
		Str("version", version.GetInfo().Short()).
		Str("session_backend", cfg.Session.Backend).
		Str("assistant", cfg.Assistant.Provider).
		Msg("Starting " + version.AppName)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	weatherBot, err := bot.New(cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to create bot")
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- weatherBot.Start(ctx)
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil {
			logger.Error().Err(err).Msg("Bot stopped with error")
		}
	}

	logger.Info().Msg("Shutting down...")
	stop()

	if err := weatherBot.Stop(); err != nil {
		logger.Error().Err(err).Msg("Error during shutdown")
	}

	logger.Info().Msg(version.AppName + " stopped gracefully")
}
