package postgres

import (
	"context"
	"embed"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq" // PostgreSQL driver

	"github.com/hanbit-commerce/inventory-service/internal/config"
	"github.com/hanbit-commerce/inventory-service/internal/platform/errors"
)

// Connection manages a PostgreSQL database connection
type Connection struct {
	DB     *sqlx.DB
	config config.DatabaseConfig
	logger *slog.Logger
}

// NewConnection creates a new PostgreSQL connection
func NewConnection(cfg config.DatabaseConfig, logger *slog.Logger) (*Connection, error) {
	db, err := sqlx.Open("postgres", cfg.DSN())
	if err != nil {
		return nil, errors.Wrap(err, "failed to open PostgreSQL connection")
	}

	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	// Test connection
	ctx, cancel := context.WithTimeout(context.Background(), cfg.ConnectTimeout)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "failed to connect to PostgreSQL")
	}

	logger.Info("PostgreSQL connection established",
		"host", cfg.Host,
		"port", cfg.Port,
		"database", cfg.DBName,
		"max_open_conns", cfg.MaxOpenConns)

	return &Connection{
		DB:     db,
		config: cfg,
		logger: logger,
	}, nil
}

// Close closes the PostgreSQL connection
func (c *Connection) Close() error {
	if c.DB != nil {
		if err := c.DB.Close(); err != nil {
			c.logger.Error("Failed to close PostgreSQL connection", "error", err)
			return err
		}
		c.logger.Info("PostgreSQL connection closed")
	}
	return nil
}

// HealthCheck performs a health check on the PostgreSQL connection
func (c *Connection) HealthCheck(ctx context.Context) error {
	if c.DB == nil {
		return errors.NewInternal("PostgreSQL connection is nil")
	}

	if err := c.DB.PingContext(ctx); err != nil {
		return errors.Wrap(err, "PostgreSQL ping failed")
	}

	var result int
	if err := c.DB.GetContext(ctx, &result, "SELECT 1"); err != nil {
		return errors.Wrap(err, "PostgreSQL query failed")
	}

	return nil
}

// Stats returns connection pool statistics
func (c *Connection) Stats() map[string]interface{} {
	if c.DB == nil {
		return map[string]interface{}{"status": "disconnected"}
	}

	stats := c.DB.Stats()
	return map[string]interface{}{
		"open_connections": stats.OpenConnections,
		"in_use":           stats.InUse,
		"idle":             stats.Idle,
		"wait_count":       stats.WaitCount,
		"wait_duration":    stats.WaitDuration.String(),
	}
}

// Migrator handles database migrations
type Migrator struct {
	db         *sqlx.DB
	logger     *slog.Logger
	migrations embed.FS
}

// NewMigrator creates a new database migrator
func NewMigrator(db *sqlx.DB, migrations embed.FS, logger *slog.Logger) *Migrator {
	return &Migrator{
		db:         db,
		logger:     logger,
		migrations: migrations,
	}
}

// RunMigrations executes all pending migrations
func (m *Migrator) RunMigrations(ctx context.Context) error {
	if err := m.createMigrationsTable(ctx); err != nil {
		return errors.Wrap(err, "failed to create migrations table")
	}

	upFiles, err := m.getUpMigrationFiles()
	if err != nil {
		return errors.Wrap(err, "failed to get migration files")
	}

	if len(upFiles) == 0 {
		m.logger.Info("No migration files found")
		return nil
	}

	appliedMigrations, err := m.getAppliedMigrations(ctx)
	if err != nil {
		return errors.Wrap(err, "failed to get applied migrations")
	}

	pendingCount := 0
	for _, file := range upFiles {
		migrationName := strings.TrimSuffix(file, ".up.sql")

		if appliedMigrations[migrationName] {
			continue
		}

		if err := m.applyMigration(ctx, file, migrationName); err != nil {
			return errors.Wrap(err, fmt.Sprintf("failed to apply migration %s", migrationName))
		}
		pendingCount++
	}

	if pendingCount > 0 {
		m.logger.Info("Migrations completed",
			"applied_count", pendingCount,
			"total_count", len(upFiles))
	} else {
		m.logger.Info("No pending migrations")
	}

	return nil
}

// createMigrationsTable creates the migrations tracking table
func (m *Migrator) createMigrationsTable(ctx context.Context) error {
	query := `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			id SERIAL PRIMARY KEY,
			migration VARCHAR(255) NOT NULL UNIQUE,
			applied_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
		)`

	_, err := m.db.ExecContext(ctx, query)
	return err
}

// getUpMigrationFiles returns all .up.sql files sorted by name
func (m *Migrator) getUpMigrationFiles() ([]string, error) {
	entries, err := m.migrations.ReadDir(".")
	if err != nil {
		return nil, err
	}

	var upFiles []string
	for _, entry := range entries {
		if !entry.IsDir() && strings.HasSuffix(entry.Name(), ".up.sql") {
			upFiles = append(upFiles, entry.Name())
		}
	}

	sort.Strings(upFiles)
	return upFiles, nil
}

// getAppliedMigrations returns a map of already applied migrations
func (m *Migrator) getAppliedMigrations(ctx context.Context) (map[string]bool, error) {
	query := "SELECT migration FROM schema_migrations"

	var migrations []string
	if err := m.db.SelectContext(ctx, &migrations, query); err != nil {
		return nil, err
	}

	appliedMigrations := make(map[string]bool)
	for _, migration := range migrations {
		appliedMigrations[migration] = true
	}

	return appliedMigrations, nil
}

// applyMigration runs a single migration file inside a transaction
func (m *Migrator) applyMigration(ctx context.Context, filename, migrationName string) error {
	content, err := m.migrations.ReadFile(filename)
	if err != nil {
		return fmt.Errorf("failed to read migration file: %w", err)
	}

	tx, err := m.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin migration transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, string(content)); err != nil {
		return fmt.Errorf("failed to execute migration: %w", err)
	}

	recordQuery := "INSERT INTO schema_migrations (migration) VALUES ($1)"
	if _, err := tx.ExecContext(ctx, recordQuery, migrationName); err != nil {
		return fmt.Errorf("failed to record migration: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit migration: %w", err)
	}

	m.logger.Info("Applied migration",
		"migration", migrationName,
		"applied_at", time.Now().UTC())

	return nil
}
