package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/cors"
	"github.com/jackc/pgx/v5/pgxpool"

	"example.com/healthsync/internal/api"
	"example.com/healthsync/internal/auth"
	"example.com/healthsync/internal/config"
	"example.com/healthsync/internal/domain"
	"example.com/healthsync/internal/health"
	"example.com/healthsync/internal/logger"
	"example.com/healthsync/internal/outbox"
	"example.com/healthsync/internal/persistence/memory"
	persistence "example.com/healthsync/internal/persistence/postgres"
	"example.com/healthsync/internal/platform/bridge"
	httptransport "example.com/healthsync/internal/transport/http"
)

func main() {
	cfg := config.Load()
	log := logger.New(logger.Config{Level: cfg.LogLevel, Format: cfg.LogFormat})

	loc, err := cfg.Location()
	if err != nil {
		log.Error("invalid stats timezone", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var (
		store      domain.ActivityStore
		dispatcher *outbox.Dispatcher
	)
	if cfg.PostgresURL == "" {
		log.Warn("POSTGRES_URL not set, using in-memory store")
		store = memory.New()
	} else {
		pool, err := pgxpool.New(ctx, cfg.PostgresURL)
		if err != nil {
			log.Error("failed to connect to postgres", "error", err)
			os.Exit(1)
		}
		defer pool.Close()
		store = persistence.NewRepository(pool)

		if cfg.OutboxEnabled {
			producer := outbox.NewKafkaProducer(cfg.KafkaBrokers)
			defer producer.Close()
			registry := outbox.NewSchemaRegistryClient(cfg.SchemaRegistryURL)
			dispatcher = outbox.NewDispatcher(pool, producer, registry, cfg.OutboxPollInterval, cfg.OutboxBatchSize,
				outbox.WithLogger(log.With("component", "outbox")))
			go dispatcher.Start(ctx)
		}
	}

	client := bridge.NewClient(cfg.PlatformBridgeURL, cfg.PlatformTimeout,
		bridge.WithRetries(cfg.PlatformMaxRetries),
		bridge.WithLogger(log.With("component", "bridge")))

	service := health.NewService(client, store,
		health.WithLogger(log.With("component", "import")),
		health.WithConsentTimeout(cfg.ConsentTimeout),
		health.WithLocation(loc))

	authMiddleware := auth.NewMiddleware(auth.Config{Secret: cfg.JWTSecret, Issuer: cfg.JWTIssuer})
	corsMiddleware := cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORSAllowedOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	})
	router := api.NewHandler(service, log.With("component", "http")).Router(authMiddleware, corsMiddleware)

	serverCfg := httptransport.ServerConfig{
		Address:      cfg.HTTPAddress,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: cfg.HTTPWriteTimeout,
		IdleTimeout:  60 * time.Second,
	}
	server := httptransport.NewServer(serverCfg, router)

	if err := httptransport.Run(ctx, serverCfg, server, log); err != nil {
		log.Error("http server failed", "error", err)
	}
	stop()

	if dispatcher != nil {
		dispatcher.Wait()
	}
}
