package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hanbit-commerce/inventory-service/internal/container"
)

const (
	serviceName     = "inventory-service"
	shutdownTimeout = 30 * time.Second
)

func main() {
	bootstrapLogger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	})).With("service", serviceName)

	bootstrapLogger.Info("Starting inventory service", "pid", os.Getpid())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)

	c, err := initializeContainer(bootstrapLogger)
	if err != nil {
		bootstrapLogger.Error("Failed to initialize container", "error", err)
		os.Exit(1)
	}

	if err := c.Start(ctx); err != nil {
		c.GetLogger().Error("Failed to start application", "error", err)
		c.Stop()
		os.Exit(1)
	}

	cfg := c.GetConfig()
	c.GetLogger().Info("Inventory service started",
		"healthPort", cfg.Server.HealthPort,
		"kafkaEnabled", cfg.Kafka.Enabled,
		"logLevel", cfg.Observability.LogLevel)

	waitForShutdown(sigChan, c)
}

func initializeContainer(bootstrapLogger *slog.Logger) (*container.Container, error) {
	bootstrapLogger.Info("Initializing dependency container")

	c := container.NewContainer()
	if err := c.Initialize(container.Options{}); err != nil {
		return nil, fmt.Errorf("container initialization failed: %w", err)
	}

	healthCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := c.HealthCheck(healthCtx); err != nil {
		return nil, fmt.Errorf("startup health check failed: %w", err)
	}

	bootstrapLogger.Info("Container initialized successfully")
	return c, nil
}

func waitForShutdown(sigChan <-chan os.Signal, c *container.Container) {
	logger := c.GetLogger()

	sig := <-sigChan
	logger.Info("Received shutdown signal", "signal", sig.String())

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	done := make(chan struct{})
	go func() {
		c.Stop()
		close(done)
	}()

	select {
	case <-done:
		logger.Info("Graceful shutdown completed")
	case <-shutdownCtx.Done():
		logger.Error("Shutdown timeout exceeded, forcing exit")
	}
}
