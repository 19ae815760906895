package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/couchcryptid/floodguard/internal/adapter/firebase"
	httpadapter "github.com/couchcryptid/floodguard/internal/adapter/http"
	kafkaadapter "github.com/couchcryptid/floodguard/internal/adapter/kafka"
	"github.com/couchcryptid/floodguard/internal/config"
	"github.com/couchcryptid/floodguard/internal/connectivity"
	"github.com/couchcryptid/floodguard/internal/domain"
	"github.com/couchcryptid/floodguard/internal/observability"
	"github.com/couchcryptid/floodguard/internal/session"
	"github.com/couchcryptid/floodguard/internal/telemetry"
	"github.com/jonboulle/clockwork"
	"golang.org/x/sync/errgroup"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg)
	metrics := observability.NewMetrics()
	clock := clockwork.NewRealClock()
	catalog := domain.DefaultCatalog()

	probe := connectivity.NewHTTPProbe(cfg.ProbeURL, cfg.ProbeTimeout)
	monitor := connectivity.NewMonitor(probe, clock, cfg.ConnectivityInterval, cfg.ProbeTimeout, logger, metrics)
	store := telemetry.NewStore(clock, monitor)
	client := firebase.NewClient(cfg.TelemetryBaseURL, cfg.TelemetryTimeout, logger)

	opts := []session.Option{session.WithClock(clock)}
	var alerts *kafkaadapter.AlertWriter
	if cfg.AlertsEnabled {
		alerts = kafkaadapter.NewAlertWriter(cfg, logger)
		opts = append(opts, session.WithNotifier(alerts))
		logger.Info("alert feed enabled", "topic", cfg.KafkaAlertTopic, "brokers", cfg.KafkaBrokers)
	} else {
		logger.Info("alert feed disabled")
	}

	sess := session.New(catalog, client, store, monitor, logger, metrics, opts...)
	monitor.OnUpdate(sess.ConnectivityChanged)

	srv := httpadapter.NewServer(cfg.HTTPAddr, sess, metrics, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := sess.Start(ctx, cfg.DefaultDevice); err != nil {
		logger.Error("failed to start session", "error", err, "device_id", cfg.DefaultDevice)
		os.Exit(1)
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		return monitor.Run(gctx)
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("http server shutdown error", "error", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		logger.Error("service error", "error", err)
	}

	stop()
	sess.Wait()
	if alerts != nil {
		if err := alerts.Close(); err != nil {
			logger.Error("kafka writer close error", "error", err)
		}
	}

	logger.Info("shutdown complete")
}
