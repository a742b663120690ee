package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/example/workstation-scheduler/internal/persistence"
	"github.com/example/workstation-scheduler/internal/persistence/sqlite/migration"
)

func TestMapError(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		want error
	}{
		{name: "no rows", err: sql.ErrNoRows, want: persistence.ErrNotFound},
		{name: "unique", err: errors.New("constraint failed: UNIQUE constraint failed: users.id (1555)"), want: persistence.ErrDuplicate},
		{name: "check", err: errors.New("constraint failed: CHECK constraint failed: end_date >= start_date (275)"), want: persistence.ErrConstraintViolation},
		{name: "locked", err: errors.New("database is locked (5) (SQLITE_BUSY)"), want: persistence.ErrUnavailable},
		{name: "sentinel passes through", err: fmt.Errorf("wrapped: %w", persistence.ErrOverlap), want: persistence.ErrOverlap},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if got := mapError(tc.err); !errors.Is(got, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, got)
			}
		})
	}

	if mapError(nil) != nil {
		t.Fatal("expected nil to stay nil")
	}
	plain := errors.New("disk I/O error")
	if got := mapError(plain); got != plain {
		t.Fatalf("expected unknown error unchanged, got %v", got)
	}
}

func TestRetryPolicy(t *testing.T) {
	t.Parallel()

	policy := RetryPolicy{Attempts: 3, Delay: time.Millisecond, MaxDelay: 2 * time.Millisecond}

	t.Run("retries busy errors until success", func(t *testing.T) {
		t.Parallel()
		calls := 0
		err := policy.Do(context.Background(), func() error {
			calls++
			if calls < 3 {
				return persistence.ErrUnavailable
			}
			return nil
		})
		if err != nil || calls != 3 {
			t.Fatalf("expected success on third call, got %v after %d calls", err, calls)
		}
	})

	t.Run("stops at permanent errors", func(t *testing.T) {
		t.Parallel()
		calls := 0
		err := policy.Do(context.Background(), func() error {
			calls++
			return persistence.ErrOverlap
		})
		if !errors.Is(err, persistence.ErrOverlap) || calls != 1 {
			t.Fatalf("expected one call returning ErrOverlap, got %v after %d calls", err, calls)
		}
	})

	t.Run("gives up and keeps the sentinel", func(t *testing.T) {
		t.Parallel()
		calls := 0
		err := policy.Do(context.Background(), func() error {
			calls++
			return persistence.ErrUnavailable
		})
		if !errors.Is(err, persistence.ErrUnavailable) || calls != 3 {
			t.Fatalf("expected ErrUnavailable after 3 calls, got %v after %d", err, calls)
		}
	})

	t.Run("honors cancellation", func(t *testing.T) {
		t.Parallel()
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		err := RetryPolicy{Attempts: 5, Delay: time.Hour}.Do(ctx, func() error { return persistence.ErrUnavailable })
		if !errors.Is(err, persistence.ErrUnavailable) {
			t.Fatalf("expected ErrUnavailable, got %v", err)
		}
	})
}

func TestPoolInTxRollsBack(t *testing.T) {
	t.Parallel()

	pool, err := NewPool(migration.InMemoryTestSQLiteConfig())
	if err != nil {
		t.Fatalf("failed to open pool: %v", err)
	}
	t.Cleanup(func() { _ = pool.Close() })

	ctx := context.Background()
	if _, err := pool.DB().ExecContext(ctx, `CREATE TABLE marks (id TEXT PRIMARY KEY)`); err != nil {
		t.Fatalf("create table: %v", err)
	}

	err = pool.InTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `INSERT INTO marks (id) VALUES ('a')`); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx, `INSERT INTO marks (id) VALUES ('a')`)
		return err
	})
	if !errors.Is(err, persistence.ErrDuplicate) {
		t.Fatalf("expected ErrDuplicate, got %v", err)
	}

	var count int
	if err := pool.DB().QueryRowContext(ctx, `SELECT COUNT(*) FROM marks`).Scan(&count); err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 0 {
		t.Fatalf("expected rollback to leave no rows, got %d", count)
	}
}
