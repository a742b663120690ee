package persistence

import (
	"fmt"
	"time"

	"github.com/example/workstation-scheduler/internal/calendar"
	"github.com/example/workstation-scheduler/internal/scheduler"
)

// User is an account allowed to reserve workstations.
type User struct {
	ID        string
	Name      string
	Email     string
	Role      scheduler.Role
	PINHash   string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// ChangeSet groups reservation writes that must be committed together.
type ChangeSet struct {
	Inserts []scheduler.Reservation
	Updates []scheduler.Reservation
}

// Empty reports whether the change set carries no writes.
func (c ChangeSet) Empty() bool {
	return len(c.Inserts) == 0 && len(c.Updates) == 0
}

// ResourceIDs lists the workstations touched by the change set, without repeats.
func (c ChangeSet) ResourceIDs() []string {
	seen := make(map[string]struct{})
	var ids []string
	for _, list := range [][]scheduler.Reservation{c.Inserts, c.Updates} {
		for _, r := range list {
			if _, ok := seen[r.ResourceID]; ok {
				continue
			}
			seen[r.ResourceID] = struct{}{}
			ids = append(ids, r.ResourceID)
		}
	}
	return ids
}

// Validate checks every record for the rules all backends enforce before writing.
func (c ChangeSet) Validate() error {
	seen := make(map[string]struct{}, len(c.Inserts)+len(c.Updates))
	for _, list := range [][]scheduler.Reservation{c.Inserts, c.Updates} {
		for _, r := range list {
			if err := ValidateReservation(r); err != nil {
				return err
			}
			if _, ok := seen[r.ID]; ok {
				return fmt.Errorf("%w: reservation %s appears twice in change set", ErrDuplicate, r.ID)
			}
			seen[r.ID] = struct{}{}
		}
	}
	return nil
}

// ValidateReservation checks the storage level rules for a single record.
func ValidateReservation(r scheduler.Reservation) error {
	switch {
	case r.ID == "":
		return fmt.Errorf("%w: reservation id is required", ErrConstraintViolation)
	case r.ResourceID == "":
		return fmt.Errorf("%w: reservation %s has no resource", ErrConstraintViolation, r.ID)
	case r.UserID == "":
		return fmt.Errorf("%w: reservation %s has no user", ErrConstraintViolation, r.ID)
	case !r.Status.Valid():
		return fmt.Errorf("%w: reservation %s has unknown status %q", ErrConstraintViolation, r.ID, r.Status)
	case !r.CreatedByRole.Valid():
		return fmt.Errorf("%w: reservation %s has unknown role %q", ErrConstraintViolation, r.ID, r.CreatedByRole)
	}
	if err := r.Period.Validate(); err != nil {
		return fmt.Errorf("%w: reservation %s: %v", ErrConstraintViolation, r.ID, err)
	}
	return nil
}

// ActiveFilter narrows ListActive queries. Nil fields are ignored.
type ActiveFilter struct {
	ResourceID string
	// EndsBefore keeps reservations whose last day precedes the date.
	EndsBefore *calendar.Date
	// EndsOn keeps reservations whose last day is the date.
	EndsOn *calendar.Date
	// Covers keeps reservations that include the date.
	Covers *calendar.Date
}

// Match reports whether an active reservation satisfies the filter.
func (f ActiveFilter) Match(r scheduler.Reservation) bool {
	if !r.IsActive() {
		return false
	}
	if f.ResourceID != "" && r.ResourceID != f.ResourceID {
		return false
	}
	if f.EndsBefore != nil && !r.Period.End.Before(*f.EndsBefore) {
		return false
	}
	if f.EndsOn != nil && r.Period.End != *f.EndsOn {
		return false
	}
	if f.Covers != nil && !r.Period.ContainsDate(*f.Covers) {
		return false
	}
	return true
}

// ValidateUser checks the storage level rules for a user record.
func ValidateUser(u User) error {
	switch {
	case u.ID == "":
		return fmt.Errorf("%w: user id is required", ErrConstraintViolation)
	case !u.Role.Valid():
		return fmt.Errorf("%w: user %s has unknown role %q", ErrConstraintViolation, u.ID, u.Role)
	}
	return nil
}
