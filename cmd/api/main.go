package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"kitchenprint/internal/api"
	"kitchenprint/internal/config"
	"kitchenprint/internal/database"
	"kitchenprint/internal/events"
	"kitchenprint/internal/intake"
	"kitchenprint/internal/logging"
	"kitchenprint/internal/metrics"
	"kitchenprint/internal/models"
	"kitchenprint/internal/routing"
	"kitchenprint/internal/service"
	"kitchenprint/internal/ticket"
	"kitchenprint/internal/transport"
	"kitchenprint/internal/worker"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("Fatal error: %v", err)
	}
}

func run() error {
	cfg, logger, closer, err := loadConfigAndLogger()
	if err != nil {
		return err
	}
	if closer != nil {
		defer (func() { _ = closer.Close() })()
	}

	db, err := database.Open(cfg.Database, logging.Component(&logger, "database"))
	if err != nil {
		logger.Error().Err(err).Str("driver", cfg.Database.Driver).Msg("init database")
		return err
	}
	defer db.Close()

	if !cfg.API.Enabled {
		logger.Warn().Msg("API is disabled in config, but starting API application. Check your config.")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	eventBus := events.NewEventBus()
	subscribeJobEvents(eventBus, &logger)

	var recentEvents api.RecentEvents
	redisClient := initRedis(cfg, &logger)
	if redisClient != nil {
		defer redisClient.Close()
		relay := events.NewRedisRelay(redisClient, cfg.Redis.Channel, logging.Component(&logger, "redis-relay"))
		relay.Attach(eventBus)
		recentEvents = relay
	}

	registry := transport.NewRegistry()
	registry.Register(models.PrinterTypeNetwork, transport.NewNetworkAdapter(cfg.Dispatch.DirectTimeout, cfg.Dispatch.ProbeTimeout))

	devices := service.NewDeviceService(db, cfg.Dispatch.ConnectedThreshold, logging.Component(&logger, "devices"))
	dispatch := service.NewDispatchService(
		db, db, registry, eventBus,
		routing.NewResolver(routing.Options{FallbackAllPrinters: cfg.Dispatch.FallbackAllPrinters}),
		ticket.NewRenderer(cfg.Ticket.Labels),
		cfg.Dispatch.DirectTimeout,
		logging.Component(&logger, "dispatch"),
	)
	agentService := service.NewAgentService(db, devices, eventBus, cfg.Dispatch.PollBatchSize, logging.Component(&logger, "agent-protocol"))

	httpServer := api.NewHTTPServer(cfg.API, api.Services{
		Dispatch: dispatch,
		Agent:    agentService,
		Devices:  devices,
		Health:   db,
		Events:   recentEvents,
	}, logging.Component(&logger, "http"))

	startMetrics(ctx, cfg, &logger)
	startWorkers(ctx, cfg, db, dispatch, &logger)

	return startServers(ctx, httpServer, cfg, &logger)
}

func loadConfigAndLogger() (*config.Config, zerolog.Logger, io.Closer, error) {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "configs/config.yaml"
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, zerolog.Logger{}, nil, fmt.Errorf("load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, zerolog.Logger{}, nil, fmt.Errorf("invalid config: %w", err)
	}

	baseLogger, closer, err := logging.New(cfg.Logging, cfg.App)
	if err != nil {
		return nil, zerolog.Logger{}, nil, fmt.Errorf("init logger: %w", err)
	}
	logger := baseLogger.With().Str("component", "api-main").Logger()

	return cfg, logger, closer, nil
}

func initRedis(cfg *config.Config, logger *zerolog.Logger) *redis.Client {
	if cfg.Redis.Address == "" {
		return nil
	}

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Address,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
		PoolSize: cfg.Redis.PoolSize,
	})

	if _, err := redisClient.Ping(context.Background()).Result(); err != nil {
		logger.Warn().Err(err).Msg("redis connection failed, continuing without job event relay")
		_ = redisClient.Close()
		return nil
	}

	logger.Info().Str("addr", cfg.Redis.Address).Str("channel", cfg.Redis.Channel).Msg("redis connected")
	return redisClient
}

// subscribeJobEvents logs failed deliveries; the job row already carries the error.
func subscribeJobEvents(bus *events.EventBus, logger *zerolog.Logger) {
	bus.Subscribe(events.EventJobFailed, func(event *events.Event) error {
		var payload events.JobEventPayload
		if err := json.Unmarshal(event.Payload, &payload); err != nil {
			return err
		}
		logger.Warn().
			Int64("job_id", payload.JobID).
			Int64("tenant_id", payload.TenantID).
			Int64("order_id", payload.OrderID).
			Int64("printer_id", payload.PrinterID).
			Str("role", payload.Role).
			Str("error", payload.Error).
			Msg("print job failed")
		return nil
	})
}

func startWorkers(ctx context.Context, cfg *config.Config, db *database.DB, dispatch *service.DispatchService, logger *zerolog.Logger) {
	backup := database.NewBackupService(db, cfg.Backup, logging.Component(logger, "backup"))
	go backup.Start(ctx)

	monitor := worker.NewMonitor(db, db,
		cfg.Monitoring.MonitorInterval,
		cfg.Dispatch.ConnectedThreshold,
		cfg.Dispatch.StuckThreshold,
		logging.Component(logger, "monitor"),
	)
	go monitor.Start(ctx)

	if !cfg.Kafka.Enabled {
		return
	}
	consumer := intake.NewConsumer(intake.NewKafkaReader(cfg.Kafka), dispatch, logging.Component(logger, "kafka-intake"))
	go func() {
		if err := consumer.Run(ctx); err != nil {
			logger.Error().Err(err).Msg("order consumer stopped")
		}
	}()
	logger.Info().Strs("brokers", cfg.Kafka.Brokers).Str("topic", cfg.Kafka.OrdersTopic).Msg("kafka intake enabled")
}

func startMetrics(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) {
	if !cfg.Monitoring.PrometheusEnabled {
		return
	}

	metrics.Register()
	port := cfg.Monitoring.PrometheusPort
	if port == 0 {
		port = 9090
	}
	go startMetricsServer(ctx, port, logger)
}

func startServers(ctx context.Context, httpServer *api.HTTPServer, cfg *config.Config, logger *zerolog.Logger) error {
	errCh := make(chan error, 1)
	go func() {
		if err := httpServer.Start(); err != nil {
			errCh <- err
		}
	}()

	logger.Info().Int("http_port", cfg.API.HTTP.Port).Msg("API server started")

	select {
	case <-ctx.Done():
		logger.Info().Msg("shutdown signal received")
	case err := <-errCh:
		logger.Error().Err(err).Msg("http server stopped")
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Warn().Err(err).Msg("http shutdown")
	}

	logger.Info().Msg("API server stopped")
	return nil
}

func startMetricsServer(ctx context.Context, port int, logger *zerolog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{Addr: fmt.Sprintf(":%d", port), Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		<-ctx.Done()
		ctxShutdown, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctxShutdown)
	}()
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error().Err(err).Msg("metrics server error")
	}
}
