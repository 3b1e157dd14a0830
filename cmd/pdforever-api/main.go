// Package main provides the pdforever API server entrypoint.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/akosicedzkii/pdforever/internal/config"
	"github.com/akosicedzkii/pdforever/internal/events"
	"github.com/akosicedzkii/pdforever/internal/observability"
	"github.com/akosicedzkii/pdforever/internal/pipeline"
)

func main() {
	cfgPath := os.Getenv("CONFIG_PATH")
	if len(os.Args) > 2 && os.Args[1] == "--config" {
		cfgPath = os.Args[2]
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(observability.LogConfig{
		Level:       cfg.Observability.LogLevel,
		Format:      cfg.Observability.LogFormat,
		ServiceName: cfg.Observability.ServiceName,
	})

	logger.Info().
		Str("host", cfg.Server.Host).
		Int("port", cfg.Server.Port).
		Str("storage_root", cfg.Storage.Root).
		Str("decoder", cfg.Convert.Decoder).
		Str("events", cfg.Events.Driver).
		Msg("Starting pdforever API")

	publisher, err := events.New(cfg.Events, logger)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to create event publisher, logging events instead")
		publisher = events.NewLogPublisher(logger)
	}
	defer publisher.Close()

	p, err := pipeline.FromConfig(cfg, publisher, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to build conversion pipeline")
	}

	if cfg.Storage.SweepOnStart {
		if _, err := p.Workspace().Sweep(context.Background(), cfg.Storage.StaleAfter); err != nil {
			logger.Warn().Err(err).Msg("Orphan sweep failed")
		}
	}

	srv := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      NewRouter(logger, cfg, p),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	serverErrors := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", srv.Addr).Msg("HTTP server listening")
		serverErrors <- srv.ListenAndServe()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		logger.Error().Err(err).Msg("Server error")
	case sig := <-shutdown:
		logger.Info().Str("signal", sig.String()).Msg("Shutdown signal received")
	}

	// In-flight requests finish and close their sessions before Shutdown returns.
	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.GracefulShutdown)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error().Err(err).Msg("Graceful shutdown failed")
		if err := srv.Close(); err != nil {
			logger.Error().Err(err).Msg("Forced shutdown failed")
		}
	}

	logger.Info().Msg("Server stopped")
}
