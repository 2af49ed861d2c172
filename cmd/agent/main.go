package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"

	"kitchenprint/internal/agent"
	"kitchenprint/internal/config"
	"kitchenprint/internal/logging"
	"kitchenprint/internal/models"
	"kitchenprint/internal/transport"
	"kitchenprint/internal/worker"

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

	registry := transport.NewRegistry()
	registry.Register(models.PrinterTypeNetwork, transport.NewNetworkAdapter(cfg.Agent.PrintTimeout, models.ProbeTimeout))
	registry.Register(models.PrinterTypeUSB, transport.NewUSBAdapter(cfg.Agent.USBDevice))

	client := agent.NewClient(cfg.Agent.ServerURL, cfg.Agent.Token, cfg.Agent.RequestTimeout)
	executor := agent.NewExecutor(registry, cfg.Agent.USBDevice, cfg.Agent.PrintTimeout)

	runner := agent.NewRunner(client, executor, agent.RunnerConfig{
		MinPollInterval:   cfg.Agent.MinPollInterval,
		MaxPollInterval:   cfg.Agent.MaxPollInterval,
		BackoffThreshold:  cfg.Agent.BackoffThreshold,
		HeartbeatInterval: cfg.Agent.HeartbeatInterval,
		AckRetry: worker.RetryPolicy{
			MaxRetries:    cfg.Agent.AckRetries,
			InitialDelay:  cfg.Agent.AckRetryDelay,
			MaxDelay:      cfg.Agent.MaxPollInterval,
			BackoffFactor: 2,
		},
		Version: cfg.App.Version,
	}, &logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info().Str("server", cfg.Agent.ServerURL).Msg("connecting to print server")
	runner.Run(ctx)
	return nil
}

func loadConfigAndLogger() (*config.Config, zerolog.Logger, io.Closer, error) {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "configs/agent.yaml"
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, zerolog.Logger{}, nil, fmt.Errorf("load config: %w", err)
	}
	if err := cfg.ValidateAgent(); err != nil {
		return nil, zerolog.Logger{}, nil, fmt.Errorf("invalid config: %w", err)
	}

	baseLogger, closer, err := logging.New(cfg.Logging, cfg.App)
	if err != nil {
		return nil, zerolog.Logger{}, nil, fmt.Errorf("init logger: %w", err)
	}
	logger := baseLogger.With().Str("component", "print-agent").Logger()

	return cfg, logger, closer, nil
}
