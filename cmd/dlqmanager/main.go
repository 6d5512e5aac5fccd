package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"example.com/healthsync/internal/config"
	"example.com/healthsync/internal/logger"
	"example.com/healthsync/internal/outbox"
	httptransport "example.com/healthsync/internal/transport/http"
)

const (
	defaultDLQBatchSize = 50
)

func main() {
	cfg := config.Load()
	log := logger.New(logger.Config{Level: cfg.LogLevel, Format: cfg.LogFormat}).With("component", "dlqmanager")

	if cfg.PostgresURL == "" {
		log.Error("POSTGRES_URL is required")
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := pgxpool.New(ctx, cfg.PostgresURL)
	if err != nil {
		log.Error("failed to connect to postgres", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	manager := outbox.NewDLQManager(pool, cfg.DLQMaxRetries, cfg.DLQBaseDelay, log)

	metricsCfg := httptransport.ServerConfig{Address: cfg.MetricsAddress, ShutdownTimeout: 10 * time.Second}
	metricsSrv := httptransport.NewServer(metricsCfg, http.Handler(promhttp.Handler()))
	go func() {
		if err := httptransport.Run(ctx, metricsCfg, metricsSrv, log); err != nil {
			log.Error("metrics server error", "error", err)
		}
	}()

	ticker := time.NewTicker(cfg.DLQPollInterval)
	defer ticker.Stop()

	log.Info("dlq manager started", "interval", cfg.DLQPollInterval, "max_retries", cfg.DLQMaxRetries)

	for {
		select {
		case <-ctx.Done():
			log.Info("dlq manager received shutdown signal")
			return
		case <-ticker.C:
			processed, err := manager.RunOnce(ctx, defaultDLQBatchSize)
			if err != nil {
				log.Error("dlq manager run failed", "error", err)
			} else if processed > 0 {
				log.Info("dlq manager processed entries", "count", processed)
			}
		}
	}
}
