package testfixtures

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/example/workstation-scheduler/internal/persistence"
	"github.com/example/workstation-scheduler/internal/persistence/memory"
	"github.com/example/workstation-scheduler/internal/persistence/sqlite"
	"github.com/example/workstation-scheduler/internal/persistence/sqlite/migration"
	"github.com/example/workstation-scheduler/internal/scheduler"
)

// Harness provides repository access backed by one storage instance.
type Harness struct {
	Reservations persistence.ReservationRepository
	Users        persistence.UserRepository
}

// Seed inserts reservations in one change set and fails the test on error.
func (h *Harness) Seed(tb testing.TB, reservations ...scheduler.Reservation) {
	tb.Helper()
	if len(reservations) == 0 {
		return
	}
	if err := h.Reservations.ApplyChanges(context.Background(), persistence.ChangeSet{Inserts: reservations}); err != nil {
		tb.Fatalf("failed to seed reservations: %v", err)
	}
}

// SeedUsers stores users and fails the test on error.
func (h *Harness) SeedUsers(tb testing.TB, users ...persistence.User) {
	tb.Helper()
	for _, u := range users {
		if err := h.Users.CreateUser(context.Background(), u); err != nil {
			tb.Fatalf("failed to seed user %s: %v", u.ID, err)
		}
	}
}

// MustGet loads a reservation and fails the test when it is missing.
func (h *Harness) MustGet(tb testing.TB, id string) scheduler.Reservation {
	tb.Helper()
	r, err := h.Reservations.GetReservation(context.Background(), id)
	if err != nil {
		tb.Fatalf("failed to load reservation %s: %v", id, err)
	}
	return r
}

// NewMemoryHarness returns a harness over the in-memory store.
func NewMemoryHarness(tb testing.TB) *Harness {
	tb.Helper()
	storage := memory.Open()
	tb.Cleanup(func() { _ = storage.Close() })
	return &Harness{Reservations: storage, Users: storage}
}

// NewSQLiteHarness returns a harness over a migrated SQLite database in a
// temporary directory. The database is closed when the test ends.
func NewSQLiteHarness(tb testing.TB) *Harness {
	tb.Helper()

	path := filepath.Join(tb.TempDir(), "scheduler.db")
	storage, err := sqlite.Open(migration.TempFileTestSQLiteConfig(path), nil)
	if err != nil {
		tb.Fatalf("failed to open storage: %v", err)
	}
	tb.Cleanup(func() { _ = storage.Close() })

	if err := storage.Migrate(context.Background()); err != nil {
		tb.Fatalf("failed to migrate storage: %v", err)
	}
	return &Harness{Reservations: storage, Users: storage}
}
