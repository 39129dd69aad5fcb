package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/geoserve/confgen/pkg/api"
	"github.com/geoserve/confgen/pkg/assembler"
	"github.com/geoserve/confgen/pkg/config"
	"github.com/geoserve/confgen/pkg/generator"
	"github.com/geoserve/confgen/pkg/observability"
	"github.com/geoserve/confgen/pkg/schema"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		observability.NewLogger(observability.ErrorLevel, os.Stderr).
			WithError(err).Error("invalid configuration")
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg.Observability.LogLevel, os.Stdout)

	var metrics *observability.Metrics
	if cfg.Observability.MetricsEnabled {
		metrics = observability.NewMetrics(nil)
	}

	var validator assembler.Validator
	if cfg.Generator.SchemaDir != "" {
		validator = schema.NewRegistry(cfg.Generator.SchemaDir)
		logger.WithField("dir", cfg.Generator.SchemaDir).Info("schema validation enabled")
	}

	manager := generator.NewManager(generator.ManagerOptions{
		InputDir:  cfg.Generator.InputDir,
		OutputDir: cfg.Generator.OutputDir,
		Retention: cfg.Generator.TaskRetention,
		Logger:    logger,
		Metrics:   metrics,
		Validator: validator,
	})
	defer manager.Close()

	scheduler := generator.NewScheduler(manager, logger)
	if err := scheduler.Refresh(); err != nil {
		logger.WithError(err).Warn("could not read tenant schedules")
	}
	scheduler.Start()
	defer scheduler.Stop()

	server := api.NewServer(manager, cfg.Generator.DefaultTenant, logger, metrics)
	httpServer := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      server.Handler(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		logger.WithField("addr", httpServer.Addr).Info("server listening")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Error("server failed")
			os.Exit(1)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan
	logger.Info("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		logger.WithError(err).Error("shutdown did not complete cleanly")
	}
}
