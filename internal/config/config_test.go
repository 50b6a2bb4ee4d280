package config

import (
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Server.HealthPort != "8084" {
		t.Errorf("unexpected health port %q", cfg.Server.HealthPort)
	}
	if cfg.Inventory.DefaultReservationTTL != 15*time.Minute {
		t.Errorf("unexpected default reservation TTL %v", cfg.Inventory.DefaultReservationTTL)
	}
	if cfg.Inventory.CheckoutReservationTTL != 30*time.Minute {
		t.Errorf("unexpected checkout reservation TTL %v", cfg.Inventory.CheckoutReservationTTL)
	}
	if cfg.Inventory.CacheTTL != 45*time.Second {
		t.Errorf("unexpected cache TTL %v", cfg.Inventory.CacheTTL)
	}
	if cfg.Inventory.StockUpdatesChannel != "stock-updates" {
		t.Errorf("unexpected channel %q", cfg.Inventory.StockUpdatesChannel)
	}
	if cfg.Kafka.MovementsTopic != "inventory-events" {
		t.Errorf("unexpected topic %q", cfg.Kafka.MovementsTopic)
	}
	if cfg.Alerts.LowStockThreshold != 10 {
		t.Errorf("unexpected low-stock threshold %d", cfg.Alerts.LowStockThreshold)
	}
	if cfg.Alerts.DedupWindow != time.Hour {
		t.Errorf("unexpected dedup window %v", cfg.Alerts.DedupWindow)
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("INVENTORY_RESERVATION_TTL", "5m")
	t.Setenv("INVENTORY_CHECKOUT_RESERVATION_TTL", "10m")
	t.Setenv("POSTGRES_HOST", "db.internal")
	t.Setenv("KAFKA_BROKERS", "broker-1:9092,broker-2:9092")
	t.Setenv("ALERT_LOW_STOCK_THRESHOLD", "25")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Inventory.DefaultReservationTTL != 5*time.Minute {
		t.Errorf("TTL override not applied: %v", cfg.Inventory.DefaultReservationTTL)
	}
	if cfg.Database.Host != "db.internal" {
		t.Errorf("host override not applied: %q", cfg.Database.Host)
	}
	if len(cfg.Kafka.Brokers) != 2 || cfg.Kafka.Brokers[1] != "broker-2:9092" {
		t.Errorf("broker list not parsed: %v", cfg.Kafka.Brokers)
	}
	if cfg.Alerts.LowStockThreshold != 25 {
		t.Errorf("threshold override not applied: %d", cfg.Alerts.LowStockThreshold)
	}
}

func TestLoad_RejectsInvertedTTLs(t *testing.T) {
	t.Setenv("INVENTORY_RESERVATION_TTL", "30m")
	t.Setenv("INVENTORY_CHECKOUT_RESERVATION_TTL", "10m")

	if _, err := Load(); err == nil {
		t.Fatal("expected validation error for checkout TTL shorter than default")
	}
}

func TestDatabaseDSN(t *testing.T) {
	cfg := DatabaseConfig{
		Host: "localhost", Port: 5432, User: "postgres",
		Password: "secret", DBName: "inventory_db", SSLMode: "disable",
		ConnectTimeout: 5 * time.Second,
	}
	dsn := cfg.DSN()
	if dsn == "" {
		t.Fatal("empty DSN")
	}
	for _, want := range []string{"host=localhost", "dbname=inventory_db", "sslmode=disable"} {
		if !contains(dsn, want) {
			t.Errorf("DSN missing %q: %s", want, dsn)
		}
	}
}

func contains(s, substr string) bool {
	for i := 0; i+len(substr) <= len(s); i++ {
		if s[i:i+len(substr)] == substr {
			return true
		}
	}
	return false
}
