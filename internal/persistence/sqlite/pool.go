package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/example/workstation-scheduler/internal/persistence"
	"github.com/example/workstation-scheduler/internal/persistence/sqlite/migration"
)

// Pool is the database handle shared by the repositories.
type Pool struct {
	db    *sql.DB
	retry RetryPolicy
}

// NewPool opens the database described by cfg.
func NewPool(cfg migration.SQLiteConfig) (*Pool, error) {
	db, err := migration.Open(cfg)
	if err != nil {
		return nil, fmt.Errorf("open sqlite pool: %w", err)
	}
	return &Pool{db: db, retry: DefaultRetryPolicy}, nil
}

func (p *Pool) DB() *sql.DB { return p.db }

func (p *Pool) Close() error {
	if p.db == nil {
		return nil
	}
	return p.db.Close()
}

func (p *Pool) Ping(ctx context.Context) error {
	return mapError(p.db.PingContext(ctx))
}

// InTx runs fn in a transaction that commits when fn returns nil. Attempts
// that fail because the database is busy are rolled back and retried under
// the pool's RetryPolicy. Returned errors carry persistence sentinels.
func (p *Pool) InTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	return p.retry.Do(ctx, func() error {
		return mapError(p.inTx(ctx, fn))
	})
}

func (p *Pool) inTx(ctx context.Context, fn func(tx *sql.Tx) error) (err error) {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() {
		if r := recover(); r != nil {
			_ = tx.Rollback()
			panic(r)
		}
	}()

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return errors.Join(err, fmt.Errorf("rollback: %w", rbErr))
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// mapError translates driver failures into persistence sentinels and keeps
// the driver error in the chain. Errors that already carry a sentinel pass through.
func mapError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, sql.ErrNoRows):
		return persistence.ErrNotFound
	case errors.Is(err, persistence.ErrNotFound), errors.Is(err, persistence.ErrDuplicate),
		errors.Is(err, persistence.ErrConstraintViolation), errors.Is(err, persistence.ErrOverlap),
		errors.Is(err, persistence.ErrUnavailable):
		return err
	}

	var driverErr *sqlite.Error
	if errors.As(err, &driverErr) {
		code := driverErr.Code()
		switch code & 0xff {
		case sqlite3.SQLITE_CONSTRAINT:
			if code == sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY || code == sqlite3.SQLITE_CONSTRAINT_UNIQUE {
				return fmt.Errorf("%w: %v", persistence.ErrDuplicate, err)
			}
			return fmt.Errorf("%w: %v", persistence.ErrConstraintViolation, err)
		case sqlite3.SQLITE_BUSY, sqlite3.SQLITE_LOCKED:
			return fmt.Errorf("%w: %v", persistence.ErrUnavailable, err)
		}
	}

	// Wrapped errors can lose the driver type; fall back to its messages.
	msg := err.Error()
	switch {
	case strings.Contains(msg, "UNIQUE constraint failed"):
		return fmt.Errorf("%w: %v", persistence.ErrDuplicate, err)
	case strings.Contains(msg, "constraint failed"):
		return fmt.Errorf("%w: %v", persistence.ErrConstraintViolation, err)
	case strings.Contains(msg, "database is locked"), strings.Contains(msg, "SQLITE_BUSY"):
		return fmt.Errorf("%w: %v", persistence.ErrUnavailable, err)
	}
	return err
}

// RetryPolicy retries work that failed with persistence.ErrUnavailable,
// doubling the delay between attempts up to MaxDelay.
type RetryPolicy struct {
	Attempts int
	Delay    time.Duration
	MaxDelay time.Duration
}

// DefaultRetryPolicy makes up to four attempts within roughly half a second.
var DefaultRetryPolicy = RetryPolicy{Attempts: 4, Delay: 50 * time.Millisecond, MaxDelay: 400 * time.Millisecond}

// Do runs fn until it succeeds, fails permanently, runs out of attempts or ctx ends.
func (p RetryPolicy) Do(ctx context.Context, fn func() error) error {
	attempts := max(p.Attempts, 1)
	delay := p.Delay

	var err error
	for attempt := 1; ; attempt++ {
		err = fn()
		if err == nil || !errors.Is(err, persistence.ErrUnavailable) {
			return err
		}
		if attempt == attempts {
			return fmt.Errorf("gave up after %d attempts: %w", attempts, err)
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return fmt.Errorf("%w: %v", persistence.ErrUnavailable, ctx.Err())
		case <-timer.C:
		}
		delay = min(delay*2, p.MaxDelay)
	}
}
