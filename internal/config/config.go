package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all configuration for the Inventory Service
type Config struct {
	Server        ServerConfig
	Database      DatabaseConfig
	Redis         RedisConfig
	Kafka         KafkaConfig
	Inventory     InventoryConfig
	Alerts        AlertConfig
	Observability ObservabilityConfig
}

// ServerConfig contains the health/admin HTTP server configuration
type ServerConfig struct {
	HealthPort   string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// DatabaseConfig contains PostgreSQL connection settings
type DatabaseConfig struct {
	Host            string
	Port            int
	User            string
	Password        string
	DBName          string
	SSLMode         string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnectTimeout  time.Duration
	QueryTimeout    time.Duration
}

// DSN returns the PostgreSQL connection string
func (c DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode)
}

// RedisConfig contains Redis connection settings for the availability cache
// and the stock-updates broadcaster
type RedisConfig struct {
	Host         string
	Port         int
	Password     string
	DB           int
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// Address returns the Redis address string
func (c RedisConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// KafkaConfig contains Kafka settings for the inventory-events topic
type KafkaConfig struct {
	Brokers         []string
	ClientID        string
	ConsumerGroupID string
	MovementsTopic  string
	Enabled         bool
}

// InventoryConfig contains inventory-specific settings
type InventoryConfig struct {
	DefaultReservationTTL  time.Duration
	CheckoutReservationTTL time.Duration
	SweepInterval          time.Duration
	SweepBatchSize         int
	CacheTTL               time.Duration
	StockUpdatesChannel    string
}

// AlertConfig contains threshold evaluation settings
type AlertConfig struct {
	LowStockThreshold    int
	DedupWindow          time.Duration
	SweepInterval        time.Duration
	VelocityWindow       time.Duration
	HighDemandCoverDays  float64
	SlowMovingVelocity   float64
	SlowMovingStockRatio float64
}

// ObservabilityConfig contains observability settings
type ObservabilityConfig struct {
	LogLevel       string
	ServiceName    string
	ServiceVersion string
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			HealthPort:   getEnvOrDefault("INVENTORY_HEALTH_PORT", "8084"),
			ReadTimeout:  parseDurationOrDefault("INVENTORY_READ_TIMEOUT", "30s"),
			WriteTimeout: parseDurationOrDefault("INVENTORY_WRITE_TIMEOUT", "30s"),
		},
		Database: DatabaseConfig{
			Host:            getEnvOrDefault("POSTGRES_HOST", "localhost"),
			Port:            parseIntOrDefault("POSTGRES_PORT", "5432"),
			User:            getEnvOrDefault("POSTGRES_USER", "postgres"),
			Password:        getEnvOrDefault("POSTGRES_PASSWORD", "password"),
			DBName:          getEnvOrDefault("POSTGRES_DB", "inventory_db"),
			SSLMode:         getEnvOrDefault("POSTGRES_SSL_MODE", "disable"),
			MaxOpenConns:    parseIntOrDefault("POSTGRES_MAX_OPEN_CONNS", "25"),
			MaxIdleConns:    parseIntOrDefault("POSTGRES_MAX_IDLE_CONNS", "5"),
			ConnMaxLifetime: parseDurationOrDefault("POSTGRES_CONN_MAX_LIFETIME", "5m"),
			ConnectTimeout:  parseDurationOrDefault("POSTGRES_CONNECT_TIMEOUT", "10s"),
			QueryTimeout:    parseDurationOrDefault("POSTGRES_QUERY_TIMEOUT", "5s"),
		},
		Redis: RedisConfig{
			Host:         getEnvOrDefault("REDIS_HOST", "localhost"),
			Port:         parseIntOrDefault("REDIS_PORT", "6379"),
			Password:     getEnvOrDefault("REDIS_PASSWORD", ""),
			DB:           parseIntOrDefault("REDIS_DB", "0"),
			PoolSize:     parseIntOrDefault("REDIS_POOL_SIZE", "10"),
			MinIdleConns: parseIntOrDefault("REDIS_MIN_IDLE_CONNS", "5"),
			DialTimeout:  parseDurationOrDefault("REDIS_DIAL_TIMEOUT", "5s"),
			ReadTimeout:  parseDurationOrDefault("REDIS_READ_TIMEOUT", "3s"),
			WriteTimeout: parseDurationOrDefault("REDIS_WRITE_TIMEOUT", "3s"),
		},
		Kafka: KafkaConfig{
			Brokers:         parseListOrDefault("KAFKA_BROKERS", "localhost:9092"),
			ClientID:        getEnvOrDefault("KAFKA_CLIENT_ID", "inventory-service"),
			ConsumerGroupID: getEnvOrDefault("KAFKA_CONSUMER_GROUP_ID", "inventory-service-group"),
			MovementsTopic:  getEnvOrDefault("KAFKA_MOVEMENTS_TOPIC", "inventory-events"),
			Enabled:         parseBoolOrDefault("KAFKA_ENABLED", "true"),
		},
		Inventory: InventoryConfig{
			DefaultReservationTTL:  parseDurationOrDefault("INVENTORY_RESERVATION_TTL", "15m"),
			CheckoutReservationTTL: parseDurationOrDefault("INVENTORY_CHECKOUT_RESERVATION_TTL", "30m"),
			SweepInterval:          parseDurationOrDefault("INVENTORY_SWEEP_INTERVAL", "5m"),
			SweepBatchSize:         parseIntOrDefault("INVENTORY_SWEEP_BATCH_SIZE", "500"),
			CacheTTL:               parseDurationOrDefault("INVENTORY_CACHE_TTL", "45s"),
			StockUpdatesChannel:    getEnvOrDefault("INVENTORY_STOCK_UPDATES_CHANNEL", "stock-updates"),
		},
		Alerts: AlertConfig{
			LowStockThreshold:    parseIntOrDefault("ALERT_LOW_STOCK_THRESHOLD", "10"),
			DedupWindow:          parseDurationOrDefault("ALERT_DEDUP_WINDOW", "1h"),
			SweepInterval:        parseDurationOrDefault("ALERT_SWEEP_INTERVAL", "10m"),
			VelocityWindow:       parseDurationOrDefault("ALERT_VELOCITY_WINDOW", "168h"), // 7 days
			HighDemandCoverDays:  parseFloatOrDefault("ALERT_HIGH_DEMAND_COVER_DAYS", "2.0"),
			SlowMovingVelocity:   parseFloatOrDefault("ALERT_SLOW_MOVING_VELOCITY", "0.5"),
			SlowMovingStockRatio: parseFloatOrDefault("ALERT_SLOW_MOVING_STOCK_RATIO", "3.0"),
		},
		Observability: ObservabilityConfig{
			LogLevel:       getEnvOrDefault("LOG_LEVEL", "info"),
			ServiceName:    getEnvOrDefault("SERVICE_NAME", "inventory-service"),
			ServiceVersion: getEnvOrDefault("SERVICE_VERSION", "1.0.0"),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// validate checks if the configuration is valid
func (c *Config) validate() error {
	if c.Server.HealthPort == "" {
		return fmt.Errorf("health port cannot be empty")
	}

	if c.Database.Host == "" {
		return fmt.Errorf("database host cannot be empty")
	}
	if c.Database.DBName == "" {
		return fmt.Errorf("database name cannot be empty")
	}
	if c.Database.MaxOpenConns <= 0 {
		return fmt.Errorf("database max open conns must be positive")
	}
	if c.Database.MaxIdleConns < 0 {
		return fmt.Errorf("database max idle conns cannot be negative")
	}

	if c.Kafka.Enabled && len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("at least one Kafka broker must be configured")
	}
	if c.Kafka.Enabled && c.Kafka.MovementsTopic == "" {
		return fmt.Errorf("Kafka movements topic cannot be empty")
	}

	if c.Inventory.DefaultReservationTTL <= 0 {
		return fmt.Errorf("default reservation TTL must be positive")
	}
	if c.Inventory.CheckoutReservationTTL < c.Inventory.DefaultReservationTTL {
		return fmt.Errorf("checkout reservation TTL cannot be shorter than the default TTL")
	}
	if c.Inventory.SweepInterval <= 0 {
		return fmt.Errorf("sweep interval must be positive")
	}
	if c.Inventory.SweepBatchSize <= 0 {
		return fmt.Errorf("sweep batch size must be positive")
	}
	if c.Inventory.CacheTTL <= 0 {
		return fmt.Errorf("cache TTL must be positive")
	}
	if c.Inventory.StockUpdatesChannel == "" {
		return fmt.Errorf("stock updates channel cannot be empty")
	}

	if c.Alerts.LowStockThreshold < 0 {
		return fmt.Errorf("low stock threshold cannot be negative")
	}
	if c.Alerts.DedupWindow <= 0 {
		return fmt.Errorf("alert dedup window must be positive")
	}
	if c.Alerts.SweepInterval <= 0 {
		return fmt.Errorf("alert sweep interval must be positive")
	}
	if c.Alerts.VelocityWindow <= 0 {
		return fmt.Errorf("velocity window must be positive")
	}

	if c.Observability.ServiceName == "" {
		return fmt.Errorf("service name must be specified")
	}

	return nil
}

// Helper functions for environment variable parsing

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func parseIntOrDefault(key string, defaultValue string) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	if parsed, err := strconv.Atoi(defaultValue); err == nil {
		return parsed
	}
	return 0
}

func parseFloatOrDefault(key string, defaultValue string) float64 {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseFloat(value, 64); err == nil {
			return parsed
		}
	}
	if parsed, err := strconv.ParseFloat(defaultValue, 64); err == nil {
		return parsed
	}
	return 0.0
}

func parseBoolOrDefault(key string, defaultValue string) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	if parsed, err := strconv.ParseBool(defaultValue); err == nil {
		return parsed
	}
	return false
}

func parseDurationOrDefault(key string, defaultValue string) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	if parsed, err := time.ParseDuration(defaultValue); err == nil {
		return parsed
	}
	return 0
}

func parseListOrDefault(key string, defaultValue string) []string {
	value := os.Getenv(key)
	if value == "" {
		value = defaultValue
	}

	parts := strings.Split(value, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}
