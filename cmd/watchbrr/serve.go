// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/autobrr/watchbrr/internal/api"
	"github.com/autobrr/watchbrr/internal/api/handlers"
	"github.com/autobrr/watchbrr/internal/buildinfo"
	"github.com/autobrr/watchbrr/internal/config"
	"github.com/autobrr/watchbrr/internal/domain"
	"github.com/autobrr/watchbrr/internal/metrics"
	"github.com/autobrr/watchbrr/internal/services/scheduler"
)

const (
	backendHealthInterval = time.Minute
	shutdownTimeout       = 30 * time.Second
)

func RunServeCommand() *cobra.Command {
	var (
		flags   configFlags
		logPath string
	)

	var command = &cobra.Command{
		Use:   "serve",
		Short: "Run cycles on an interval and serve the status API",
	}

	flags.register(command)
	command.Flags().StringVar(&logPath, "log-path", "", "log file path (default is stdout)")

	command.RunE = func(cmd *cobra.Command, args []string) error {
		cfg, err := flags.load()
		if err != nil {
			return err
		}
		if logPath != "" {
			cfg.Config.LogPath = logPath
		}
		cfg.ApplyLogConfig()

		return runServer(cmd.Context(), cfg)
	}

	return command
}

func runServer(parent context.Context, cfg *config.AppConfig) error {
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	conf := cfg.Current()
	log.Info().Str("version", buildinfo.Version).Msg("Starting watchbrr")
	log.Debug().Interface("config", conf.Redacted()).Msg("Loaded configuration")

	app, err := newApplication(ctx, cfg)
	if err != nil {
		return err
	}
	defer app.close()

	var observers []scheduler.CycleObserver
	var metricsServer *metrics.MetricsServer
	if conf.MetricsEnabled {
		metricsManager := metrics.NewManager(app.ledger, app.backendHealth()...)
		observers = append(observers, metricsManager)
		metricsServer = metrics.NewMetricsServer(metricsManager, conf.MetricsHost, conf.MetricsPort, conf.MetricsBasicAuthUsers)
	}

	sched := scheduler.NewService(scheduler.Config{Interval: conf.CycleInterval()}, app.watchlists, app.orchestrator, observers...)

	cfg.RegisterReloadListener(func(c *domain.Config) {
		app.applyReload(c)
		sched.SetInterval(c.CycleInterval())
	})
	cfg.Watch()
	defer cfg.StopWatching()

	var checks []handlers.ReadinessCheck
	if app.qbt != nil {
		checks = append(checks, func() error {
			if !app.qbt.IsHealthy() {
				return errors.New("qbittorrent is unreachable")
			}
			return nil
		})
		go app.monitorBackend(ctx)
	}

	httpServer := api.NewServer(&api.Dependencies{
		Host:            conf.Host,
		Port:            conf.Port,
		Version:         buildinfo.Get(),
		Ledger:          app.store,
		Cycles:          sched,
		ReadinessChecks: checks,
	})

	errorChannel := make(chan error, 2)
	serverReady := make(chan struct{}, 1)
	go func() {
		if err := httpServer.ListenAndServeReady(serverReady); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errorChannel <- err
		}
	}()

	select {
	case <-serverReady:
	case err := <-errorChannel:
		return fmt.Errorf("failed to start HTTP server: %w", err)
	}

	if metricsServer != nil {
		go func() {
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errorChannel <- err
			}
		}()
	}

	sched.Start(ctx)

	select {
	case <-ctx.Done():
		log.Info().Msg("Shutting down")
	case err := <-errorChannel:
		log.Error().Err(err).Msg("Server failed, shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Failed to shut down API server")
	}
	if metricsServer != nil {
		if err := metricsServer.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("Failed to shut down metrics server")
		}
	}

	log.Info().Msg("Shutdown complete")
	return nil
}

func (app *application) monitorBackend(ctx context.Context) {
	ticker := time.NewTicker(backendHealthInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			checkCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
			if err := app.qbt.HealthCheck(checkCtx); err != nil {
				log.Warn().Err(err).Msg("qBittorrent health check failed")
			}
			cancel()
		}
	}
}
