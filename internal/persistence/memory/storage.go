// Package memory provides an in-process implementation of the persistence
// repositories, used by tests and by the server when no database is configured.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/example/workstation-scheduler/internal/calendar"
	"github.com/example/workstation-scheduler/internal/persistence"
	"github.com/example/workstation-scheduler/internal/scheduler"
)

// Storage keeps users and reservations in maps guarded by a single RWMutex.
// Records are never deleted, so identifiers are never handed out twice.
type Storage struct {
	mu           sync.RWMutex
	users        map[string]persistence.User
	reservations map[string]scheduler.Reservation
}

// Open returns an empty Storage.
func Open() *Storage {
	return &Storage{
		users:        make(map[string]persistence.User),
		reservations: make(map[string]scheduler.Reservation),
	}
}

// Close releases resources held by the storage. No-op for the in-memory implementation.
func (s *Storage) Close() error {
	return nil
}

// --- ReservationRepository implementation ---

// GetReservation retrieves a reservation by ID.
func (s *Storage) GetReservation(ctx context.Context, id string) (scheduler.Reservation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.reservations[id]
	if !ok {
		return scheduler.Reservation{}, persistence.ErrNotFound
	}
	return r, nil
}

// ListActiveByResource returns active reservations of a workstation.
func (s *Storage) ListActiveByResource(ctx context.Context, resourceID string, window *calendar.Range) ([]scheduler.Reservation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []scheduler.Reservation
	for _, r := range s.reservations {
		if !r.IsActive() || r.ResourceID != resourceID {
			continue
		}
		if window != nil && !r.Period.Overlaps(*window) {
			continue
		}
		out = append(out, r)
	}
	scheduler.SortByStart(out)
	return out, nil
}

// ListActiveByUser returns a user's active reservations ending on or after from.
func (s *Storage) ListActiveByUser(ctx context.Context, userID string, from calendar.Date) ([]scheduler.Reservation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []scheduler.Reservation
	for _, r := range s.reservations {
		if !r.IsActive() || r.UserID != userID || r.Period.End.Before(from) {
			continue
		}
		out = append(out, r)
	}
	scheduler.SortByStart(out)
	return out, nil
}

// ListActive returns active reservations matching filter.
func (s *Storage) ListActive(ctx context.Context, filter persistence.ActiveFilter) ([]scheduler.Reservation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []scheduler.Reservation
	for _, r := range s.reservations {
		if filter.Match(r) {
			out = append(out, r)
		}
	}
	scheduler.SortByStart(out)
	return out, nil
}

// ApplyChanges validates the whole change set against a staged copy and only
// then publishes it.
func (s *Storage) ApplyChanges(ctx context.Context, changes persistence.ChangeSet) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := changes.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	staged := make(map[string]scheduler.Reservation, len(changes.Inserts)+len(changes.Updates))
	for _, r := range changes.Inserts {
		if _, ok := s.reservations[r.ID]; ok {
			return fmt.Errorf("%w: reservation %s", persistence.ErrDuplicate, r.ID)
		}
		staged[r.ID] = r
	}
	for _, r := range changes.Updates {
		current, ok := s.reservations[r.ID]
		if !ok {
			return fmt.Errorf("%w: reservation %s", persistence.ErrNotFound, r.ID)
		}
		if current.ResourceID != r.ResourceID || current.UserID != r.UserID {
			return fmt.Errorf("%w: reservation %s cannot change owner or workstation", persistence.ErrConstraintViolation, r.ID)
		}
		staged[r.ID] = r
	}

	for _, resourceID := range changes.ResourceIDs() {
		if err := s.checkNoOverlapLocked(resourceID, staged); err != nil {
			return err
		}
	}

	for id, r := range staged {
		s.reservations[id] = r
	}
	return nil
}

func (s *Storage) checkNoOverlapLocked(resourceID string, staged map[string]scheduler.Reservation) error {
	var merged []scheduler.Reservation
	for id, r := range s.reservations {
		if _, replaced := staged[id]; replaced {
			continue
		}
		if r.IsActive() && r.ResourceID == resourceID {
			merged = append(merged, r)
		}
	}
	for _, r := range staged {
		if r.IsActive() && r.ResourceID == resourceID {
			merged = append(merged, r)
		}
	}
	scheduler.SortByStart(merged)
	// With starts sorted, any overlapping pair implies an overlapping neighbour pair.
	for i := 1; i < len(merged); i++ {
		if merged[i-1].Period.Overlaps(merged[i].Period) {
			return fmt.Errorf("%w: %s and %s on %s", persistence.ErrOverlap, merged[i-1].ID, merged[i].ID, resourceID)
		}
	}
	return nil
}

// --- UserRepository implementation ---

// CreateUser stores a new user.
func (s *Storage) CreateUser(ctx context.Context, user persistence.User) error {
	if err := persistence.ValidateUser(user); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[user.ID]; ok {
		return fmt.Errorf("%w: user %s", persistence.ErrDuplicate, user.ID)
	}
	s.users[user.ID] = user
	return nil
}

// UpdateUser replaces an existing user.
func (s *Storage) UpdateUser(ctx context.Context, user persistence.User) error {
	if err := persistence.ValidateUser(user); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[user.ID]; !ok {
		return persistence.ErrNotFound
	}
	s.users[user.ID] = user
	return nil
}

// GetUser retrieves a user by ID.
func (s *Storage) GetUser(ctx context.Context, id string) (persistence.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	user, ok := s.users[id]
	if !ok {
		return persistence.User{}, persistence.ErrNotFound
	}
	return user, nil
}

// ListUsers returns all users ordered by name, then ID.
func (s *Storage) ListUsers(ctx context.Context) ([]persistence.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	users := make([]persistence.User, 0, len(s.users))
	for _, user := range s.users {
		users = append(users, user)
	}
	sort.Slice(users, func(i, j int) bool {
		if users[i].Name == users[j].Name {
			return users[i].ID < users[j].ID
		}
		return users[i].Name < users[j].Name
	})
	return users, nil
}
