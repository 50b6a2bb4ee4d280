package container

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/hanbit-commerce/inventory-service/internal/cache"
	"github.com/hanbit-commerce/inventory-service/internal/config"
	"github.com/hanbit-commerce/inventory-service/internal/domain"
	kafkamessaging "github.com/hanbit-commerce/inventory-service/internal/messaging/kafka"
	redismessaging "github.com/hanbit-commerce/inventory-service/internal/messaging/redis"
	"github.com/hanbit-commerce/inventory-service/internal/notification"
	platformredis "github.com/hanbit-commerce/inventory-service/internal/platform/redis"
	"github.com/hanbit-commerce/inventory-service/internal/repository/memory"
	"github.com/hanbit-commerce/inventory-service/internal/repository/postgres"
	"github.com/hanbit-commerce/inventory-service/internal/service"
	httptransport "github.com/hanbit-commerce/inventory-service/internal/transport/http"
	"github.com/hanbit-commerce/inventory-service/migrations"
)

// Container manages all dependencies for the inventory service.
// It follows the dependency injection pattern to keep construction order
// explicit and shutdown symmetric.
type Container struct {
	config     *config.Config
	logger     *slog.Logger
	instanceID string

	// Data layer
	postgresConn  *postgres.Connection
	redisConn     *platformredis.Connection
	inventoryRepo domain.InventoryRepository
	movementRepo  domain.MovementRepository
	alertRepo     domain.AlertRepository
	subRepo       domain.SubscriptionRepository

	// Caching and messaging
	availabilityCache cache.AvailabilityCache
	broadcaster       service.StockUpdateBroadcaster
	kafkaProducer     *kafkamessaging.Producer
	kafkaConsumer     *kafkamessaging.Consumer

	// Business services
	inventoryService service.InventoryService
	alertService     service.StockAlertService
	sweeper          *service.Sweeper

	// Transport
	healthServer *httptransport.HealthServer

	initialized bool
	started     bool
}

// Options customizes container initialization.
type Options struct {
	// CustomLogger replaces the default JSON logger.
	CustomLogger *slog.Logger

	// UseMemoryStores wires the in-memory repositories and cache instead of
	// Postgres and Redis. Kafka is disabled in this mode.
	UseMemoryStores bool

	// Senders overrides the notification senders (defaults log deliveries).
	Senders *notification.Senders

	// AdminNotifier overrides the admin alert channel.
	AdminNotifier notification.AdminNotifier
}

// NewContainer creates an uninitialized container.
func NewContainer() *Container {
	return &Container{}
}

// Initialize builds the dependency graph in order: config, logging,
// storage, caching, messaging, services, transport.
func (c *Container) Initialize(opts Options) error {
	if c.initialized {
		return fmt.Errorf("container already initialized")
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	c.config = cfg
	c.instanceID = uuid.New().String()

	if err := c.initializeLogger(opts); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	c.logger.Info("Starting inventory service initialization",
		"service", cfg.Observability.ServiceName,
		"version", cfg.Observability.ServiceVersion,
		"instanceID", c.instanceID)

	if opts.UseMemoryStores {
		c.initializeMemoryStores()
	} else {
		if err := c.initializePostgres(); err != nil {
			return fmt.Errorf("failed to initialize postgres: %w", err)
		}
		if err := c.initializeRedis(); err != nil {
			return fmt.Errorf("failed to initialize redis: %w", err)
		}
		if err := c.initializeKafka(); err != nil {
			return fmt.Errorf("failed to initialize kafka: %w", err)
		}
	}

	c.initializeServices(opts)
	c.initializeTransport()

	c.initialized = true
	c.logger.Info("Inventory service initialization completed")
	return nil
}

// Start launches the background jobs, the Kafka consumer and the health
// server.
func (c *Container) Start(ctx context.Context) error {
	if !c.initialized {
		return fmt.Errorf("container must be initialized before starting")
	}
	if c.started {
		return fmt.Errorf("container already started")
	}

	c.logger.Info("Starting inventory service")

	c.sweeper.Start(ctx)

	if c.kafkaConsumer != nil {
		if err := c.kafkaConsumer.Start(ctx); err != nil {
			return fmt.Errorf("failed to start kafka consumer: %w", err)
		}
	}

	c.healthServer.Start()

	c.started = true
	return nil
}

// Stop shuts everything down in reverse initialization order.
func (c *Container) Stop() {
	if !c.started {
		c.closeConnections()
		return
	}

	c.logger.Info("Stopping inventory service")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := c.healthServer.Stop(shutdownCtx); err != nil {
		c.logger.Warn("Health server shutdown failed", "error", err)
	}

	c.sweeper.Stop()

	if c.kafkaConsumer != nil {
		if err := c.kafkaConsumer.Stop(); err != nil {
			c.logger.Warn("Kafka consumer shutdown failed", "error", err)
		}
	}

	c.closeConnections()

	c.logger.Info("Inventory service stopped")
	c.started = false
}

func (c *Container) closeConnections() {
	if c.kafkaProducer != nil {
		if err := c.kafkaProducer.Close(); err != nil {
			c.logger.Warn("Kafka producer close failed", "error", err)
		}
	}
	if c.redisConn != nil {
		if err := c.redisConn.Close(); err != nil {
			c.logger.Warn("Redis close failed", "error", err)
		}
	}
	if c.postgresConn != nil {
		if err := c.postgresConn.Close(); err != nil {
			c.logger.Warn("Postgres close failed", "error", err)
		}
	}
}

// HealthCheck probes the storage dependencies.
func (c *Container) HealthCheck(ctx context.Context) error {
	if !c.initialized {
		return fmt.Errorf("container not initialized")
	}
	if c.postgresConn != nil {
		if err := c.postgresConn.HealthCheck(ctx); err != nil {
			return fmt.Errorf("postgres health check failed: %w", err)
		}
	}
	if c.redisConn != nil {
		if err := c.redisConn.HealthCheck(ctx); err != nil {
			return fmt.Errorf("redis health check failed: %w", err)
		}
	}
	return nil
}

// Accessors

func (c *Container) GetConfig() *config.Config                     { return c.config }
func (c *Container) GetLogger() *slog.Logger                       { return c.logger }
func (c *Container) GetInventoryService() service.InventoryService { return c.inventoryService }
func (c *Container) GetAlertService() service.StockAlertService    { return c.alertService }

// Private initialization

func (c *Container) initializeLogger(opts Options) error {
	if opts.CustomLogger != nil {
		c.logger = opts.CustomLogger
		return nil
	}

	var logLevel slog.Level
	switch c.config.Observability.LogLevel {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	handlerOpts := &slog.HandlerOptions{
		Level:     logLevel,
		AddSource: logLevel == slog.LevelDebug,
	}

	var handler slog.Handler
	if os.Getenv("ENVIRONMENT") == "development" {
		handler = slog.NewTextHandler(os.Stdout, handlerOpts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, handlerOpts)
	}

	c.logger = slog.New(handler).With(
		"service", c.config.Observability.ServiceName,
		"version", c.config.Observability.ServiceVersion,
	)
	return nil
}

func (c *Container) initializePostgres() error {
	conn, err := postgres.NewConnection(c.config.Database, c.logger)
	if err != nil {
		return err
	}
	c.postgresConn = conn

	migrateCtx, cancel := context.WithTimeout(context.Background(), c.config.Database.ConnectTimeout)
	defer cancel()

	migrator := postgres.NewMigrator(conn.DB, migrations.Files, c.logger)
	if err := migrator.RunMigrations(migrateCtx); err != nil {
		return fmt.Errorf("migrations failed: %w", err)
	}

	c.inventoryRepo = postgres.NewInventoryRepository(conn.DB, c.logger)
	c.movementRepo = postgres.NewMovementRepository(conn.DB, c.logger)
	c.alertRepo = postgres.NewAlertRepository(conn.DB, c.logger)
	c.subRepo = postgres.NewSubscriptionRepository(conn.DB, c.logger)
	return nil
}

func (c *Container) initializeRedis() error {
	conn, err := platformredis.NewConnection(c.config.Redis, c.logger)
	if err != nil {
		return err
	}
	c.redisConn = conn

	c.availabilityCache = cache.NewRedisCache(conn.Client, c.config.Inventory.CacheTTL, c.logger)
	c.broadcaster = redismessaging.NewBroadcaster(conn.Client, c.config.Inventory.StockUpdatesChannel, c.logger)
	return nil
}

func (c *Container) initializeKafka() error {
	if !c.config.Kafka.Enabled {
		c.logger.Info("Kafka disabled, movement events will not be published")
		return nil
	}

	producer, err := kafkamessaging.NewProducer(c.config.Kafka, c.logger)
	if err != nil {
		return err
	}
	c.kafkaProducer = producer

	consumer, err := kafkamessaging.NewConsumer(c.config.Kafka, c.instanceID, c.availabilityCache, c.logger)
	if err != nil {
		return err
	}
	c.kafkaConsumer = consumer
	return nil
}

func (c *Container) initializeMemoryStores() {
	c.inventoryRepo = memory.NewInventoryRepository()
	c.movementRepo = memory.NewMovementRepository()
	c.alertRepo = memory.NewAlertRepository()
	c.subRepo = memory.NewSubscriptionRepository()
	c.availabilityCache = cache.NewMemoryCache(c.config.Inventory.CacheTTL)
	c.logger.Info("Using in-memory stores")
}

func (c *Container) initializeServices(opts Options) {
	senders := notification.Senders{
		Email: notification.NewLogSender(domain.NotifyEmail, c.logger),
		SMS:   notification.NewLogSender(domain.NotifySMS, c.logger),
		Push:  notification.NewLogSender(domain.NotifyPush, c.logger),
		InApp: notification.NewLogSender(domain.NotifyInApp, c.logger),
	}
	if opts.Senders != nil {
		senders = *opts.Senders
	}

	admin := opts.AdminNotifier
	if admin == nil {
		admin = notification.NewLogAdminNotifier(c.logger)
	}

	c.alertService = service.NewStockAlertService(
		c.inventoryRepo, c.movementRepo, c.alertRepo, c.subRepo,
		senders, admin, c.config.Alerts, c.logger)

	var publisher service.MovementEventPublisher
	if c.kafkaProducer != nil {
		publisher = c.kafkaProducer
	}

	c.inventoryService = service.NewInventoryService(
		c.inventoryRepo, c.movementRepo, c.availabilityCache,
		c.broadcaster, publisher, c.alertService,
		c.config.Inventory, c.instanceID, c.logger)

	c.sweeper = service.NewSweeper(
		c.inventoryService, c.alertService,
		c.config.Inventory.SweepInterval, c.config.Alerts.SweepInterval,
		c.logger)
}

func (c *Container) initializeTransport() {
	checks := map[string]httptransport.HealthCheck{}
	if c.postgresConn != nil {
		checks["postgres"] = c.postgresConn.HealthCheck
	}
	if c.redisConn != nil {
		checks["redis"] = c.redisConn.HealthCheck
	}

	stats := func(ctx context.Context) (map[string]interface{}, error) {
		out := map[string]interface{}{}
		if c.postgresConn != nil {
			out["database"] = c.postgresConn.Stats()
		}
		alertStats, err := c.alertService.GetAlertStats(ctx)
		if err != nil {
			return out, err
		}
		out["alerts"] = alertStats
		return out, nil
	}

	c.healthServer = httptransport.NewHealthServer(
		c.config.Server, c.config.Observability, checks, stats, c.logger)
}
