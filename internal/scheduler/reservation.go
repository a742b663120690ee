// Package scheduler holds the reservation model and the pure rules that keep
// a workstation's calendar free of double bookings: overlap detection and the
// override plan applied when an administrator forces a booking.
package scheduler

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/example/workstation-scheduler/internal/calendar"
)

// Status is the lifecycle state of a reservation.
type Status string

const (
	// StatusActive reservations hold their workstation.
	StatusActive Status = "active"
	// StatusExpired reservations ended before today and were retired by the expiry sweep.
	StatusExpired Status = "expired"
	// StatusCanceled reservations were canceled by a user or displaced by an override.
	StatusCanceled Status = "canceled"
)

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusActive, StatusExpired, StatusCanceled:
		return true
	}
	return false
}

// Role distinguishes ordinary users from administrators.
type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	return r == RoleUser || r == RoleAdmin
}

// ParseRole converts text into a Role.
func ParseRole(value string) (Role, error) {
	role := Role(strings.ToLower(strings.TrimSpace(value)))
	if !role.Valid() {
		return "", fmt.Errorf("scheduler: unknown role %q", value)
	}
	return role, nil
}

// Reservation is one booking of a workstation for an inclusive range of days.
//
// ID, ResourceID and UserID never change after creation.
type Reservation struct {
	ID            string
	ResourceID    string
	UserID        string
	Period        calendar.Range
	Purpose       string
	Status        Status
	CreatedByRole Role
	CreatedAt     time.Time
	UpdatedAt     time.Time
	LastRenewedAt time.Time
}

// IsActive reports whether the reservation currently holds its workstation.
func (r Reservation) IsActive() bool {
	return r.Status == StatusActive
}

// Covers reports whether the reservation is active on day d.
func (r Reservation) Covers(d calendar.Date) bool {
	return r.IsActive() && r.Period.ContainsDate(d)
}

// SortByStart orders reservations chronologically, breaking ties by ID.
func SortByStart(reservations []Reservation) {
	sort.SliceStable(reservations, func(i, j int) bool {
		if c := reservations[i].Period.Start.Compare(reservations[j].Period.Start); c != 0 {
			return c < 0
		}
		return reservations[i].ID < reservations[j].ID
	})
}
