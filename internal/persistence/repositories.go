package persistence

import (
	"context"

	"github.com/example/workstation-scheduler/internal/calendar"
	"github.com/example/workstation-scheduler/internal/scheduler"
)

// ReservationRepository stores reservations. Lists are ordered by start date,
// then ID.
type ReservationRepository interface {
	GetReservation(ctx context.Context, id string) (scheduler.Reservation, error)
	// ListActiveByResource returns the workstation's active reservations,
	// limited to those overlapping window when it is non-nil.
	ListActiveByResource(ctx context.Context, resourceID string, window *calendar.Range) ([]scheduler.Reservation, error)
	// ListActiveByUser returns the user's active reservations ending on or after from.
	ListActiveByUser(ctx context.Context, userID string, from calendar.Date) ([]scheduler.Reservation, error)
	ListActive(ctx context.Context, filter ActiveFilter) ([]scheduler.Reservation, error)
	// ApplyChanges writes every insert and update or none of them. Inserting a
	// known ID fails with ErrDuplicate, updating an unknown one with
	// ErrNotFound, and a result with overlapping active reservations with
	// ErrOverlap.
	ApplyChanges(ctx context.Context, changes ChangeSet) error
}

// UserRepository exposes CRUD operations for users.
type UserRepository interface {
	CreateUser(ctx context.Context, user User) error
	UpdateUser(ctx context.Context, user User) error
	GetUser(ctx context.Context, id string) (User, error)
	ListUsers(ctx context.Context) ([]User, error)
}
