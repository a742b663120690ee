package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/example/workstation-scheduler/internal/application"
	"github.com/example/workstation-scheduler/internal/cache"
	"github.com/example/workstation-scheduler/internal/config"
	"github.com/example/workstation-scheduler/internal/events"
	"github.com/example/workstation-scheduler/internal/logging"
	"github.com/example/workstation-scheduler/internal/persistence"
	"github.com/example/workstation-scheduler/internal/persistence/memory"
	"github.com/example/workstation-scheduler/internal/persistence/sqlite"
	"github.com/example/workstation-scheduler/internal/persistence/sqlite/migration"
)

// memoryCacheEntries bounds the in-process availability cache.
const memoryCacheEntries = 1024

type store interface {
	persistence.ReservationRepository
	persistence.UserRepository
	Close() error
}

type runtimeOptions struct {
	// shared selects the Redis cache and AMQP publisher when configured.
	shared bool
}

// runtime owns the storage, cache and publisher behind the services.
type runtime struct {
	cfg      config.Config
	logger   *slog.Logger
	location *time.Location

	store        store
	sqlite       *sqlite.Storage
	reservations *application.ReservationService
	auth         *application.AuthService

	closers []func() error
}

func openRuntime(ctx context.Context, cfg config.Config, logOutput io.Writer, opts runtimeOptions) (_ *runtime, err error) {
	level, err := cfg.SlogLevel()
	if err != nil {
		return nil, err
	}
	location, err := cfg.Location()
	if err != nil {
		return nil, err
	}

	rt := &runtime{
		cfg:      cfg,
		logger:   logging.NewLogger(logOutput, level),
		location: location,
	}
	defer func() {
		if err != nil {
			_ = rt.Close()
		}
	}()

	if err := rt.openStore(ctx); err != nil {
		return nil, err
	}

	var availability application.AvailabilityCache = application.NewMemoryAvailabilityCache(cfg.CacheTTL, memoryCacheEntries, time.Now)
	publisher := events.Multi{events.NewLogPublisher(rt.logger)}

	if opts.shared && cfg.RedisURL != "" {
		redisCache, err := cache.Dial(ctx, cfg.RedisURL, cache.Options{TTL: cfg.CacheTTL, Logger: rt.logger})
		if err != nil {
			return nil, err
		}
		rt.closers = append(rt.closers, redisCache.Close)
		availability = redisCache
		rt.logger.Info("using redis availability cache")
	}
	if opts.shared && cfg.AMQPURL != "" {
		amqpPublisher, err := events.DialAMQP(cfg.AMQPURL, cfg.AMQPExchange)
		if err != nil {
			return nil, err
		}
		rt.closers = append(rt.closers, amqpPublisher.Close)
		publisher = append(publisher, amqpPublisher)
		rt.logger.Info("publishing events to amqp", "exchange", cfg.AMQPExchange)
	}

	rt.reservations = application.NewReservationService(application.ReservationServiceDeps{
		Reservations: rt.store,
		Cache:        availability,
		Publisher:    publisher,
		Location:     location,
		Logger:       rt.logger,
	})
	rt.auth = application.NewAuthService(rt.store, nil, nil, nil, rt.logger)
	return rt, nil
}

func (rt *runtime) openStore(ctx context.Context) error {
	switch rt.cfg.Storage {
	case config.StorageMemory:
		s := memory.Open()
		rt.store = s
		rt.closers = append(rt.closers, s.Close)
		rt.logger.Warn("using in-memory storage; reservations are lost on exit")
		return nil
	case config.StorageSQLite:
		s, err := sqlite.Open(rt.cfg.SQLite(), rt.logger)
		if err != nil {
			return fmt.Errorf("open storage: %w", err)
		}
		rt.store = s
		rt.sqlite = s
		rt.closers = append(rt.closers, s.Close)
		if err := s.Migrate(ctx); err != nil {
			return fmt.Errorf("apply migrations: %w", err)
		}
		return nil
	default:
		return fmt.Errorf("unknown storage %q", rt.cfg.Storage)
	}
}

// migrationStatus reports the schema state, or false for storage without migrations.
func (rt *runtime) migrationStatus(ctx context.Context) (migration.MigrationStatus, bool, error) {
	if rt.sqlite == nil {
		return migration.MigrationStatus{}, false, nil
	}
	status, err := rt.sqlite.MigrationStatus(ctx)
	return status, true, err
}

// Close releases resources in reverse order of acquisition.
func (rt *runtime) Close() error {
	var errs []error
	for i := len(rt.closers) - 1; i >= 0; i-- {
		if err := rt.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	rt.closers = nil
	return errors.Join(errs...)
}
