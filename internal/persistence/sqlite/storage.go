// Package sqlite provides the SQLite-backed reservation and user store.
package sqlite

import (
	"context"
	"embed"
	"fmt"
	"log/slog"

	"github.com/example/workstation-scheduler/internal/persistence"
	"github.com/example/workstation-scheduler/internal/persistence/sqlite/migration"
)

//go:embed migrations/*.sql
var schemaFS embed.FS

// Storage bundles the SQLite repositories over a shared connection pool.
type Storage struct {
	*ReservationRepository
	*UserRepository

	pool   *Pool
	logger *slog.Logger
}

var (
	_ persistence.ReservationRepository = (*Storage)(nil)
	_ persistence.UserRepository        = (*Storage)(nil)
)

// Open connects to the database described by cfg. Call Migrate before use on
// a fresh database.
func Open(cfg migration.SQLiteConfig, logger *slog.Logger) (*Storage, error) {
	if logger == nil {
		logger = slog.Default()
	}
	pool, err := NewPool(cfg)
	if err != nil {
		return nil, err
	}
	return &Storage{
		ReservationRepository: NewReservationRepository(pool),
		UserRepository:        NewUserRepository(pool),
		pool:                  pool,
		logger:                logger,
	}, nil
}

// Migrate applies the embedded schema migrations.
func (s *Storage) Migrate(ctx context.Context) error {
	manager := s.migrationManager()
	if err := manager.RunMigrations(ctx); err != nil {
		return fmt.Errorf("migrate database: %w", err)
	}
	return nil
}

// MigrationStatus reports applied and pending schema migrations.
func (s *Storage) MigrationStatus(ctx context.Context) (migration.MigrationStatus, error) {
	return s.migrationManager().Status(ctx)
}

func (s *Storage) migrationManager() *migration.Manager {
	return migration.NewMigrationManager(
		migration.NewFileScanner(schemaFS, "migrations"),
		migration.NewSQLiteExecutor(s.pool.DB()),
		s.logger,
	)
}

// Ping checks that the database is reachable.
func (s *Storage) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Close releases the connection pool.
func (s *Storage) Close() error {
	return s.pool.Close()
}
