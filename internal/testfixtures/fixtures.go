// Package testfixtures provides deterministic building blocks for tests:
// clocks, identifier generators, reservation and user fixtures, storage
// harnesses and service factories.
package testfixtures

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/example/workstation-scheduler/internal/calendar"
	"github.com/example/workstation-scheduler/internal/persistence"
	"github.com/example/workstation-scheduler/internal/scheduler"
)

var (
	userCounter        uint64
	reservationCounter uint64
)

// referenceTime is a Monday morning.
var referenceTime = time.Date(2024, time.March, 4, 9, 0, 0, 0, time.UTC)

// ReferenceTime returns the canonical baseline timestamp used by fixtures.
func ReferenceTime() time.Time {
	return referenceTime
}

// ReferenceDate returns the calendar date of ReferenceTime.
func ReferenceDate() calendar.Date {
	return calendar.DateOf(referenceTime)
}

// Range parses an inclusive range from two YYYY-MM-DD strings and panics on
// malformed input.
func Range(start, end string) calendar.Range {
	return calendar.Range{Start: calendar.MustParseDate(start), End: calendar.MustParseDate(end)}
}

// Dates parses every YYYY-MM-DD string and panics on malformed input.
func Dates(values ...string) []calendar.Date {
	out := make([]calendar.Date, 0, len(values))
	for _, v := range values {
		out = append(out, calendar.MustParseDate(v))
	}
	return out
}

// ------------------------- Reservation fixtures -------------------------

// ReservationOption configures a reservation fixture.
type ReservationOption func(*scheduler.Reservation)

// NewReservation returns an active reservation owned by a regular user, with
// a unique ID, covering the reference date.
func NewReservation(opts ...ReservationOption) scheduler.Reservation {
	idx := atomic.AddUint64(&reservationCounter, 1)
	r := scheduler.Reservation{
		ID:            fmt.Sprintf("res-%03d", idx),
		ResourceID:    "ws-1",
		UserID:        "user-1",
		Period:        calendar.SingleDay(ReferenceDate()),
		Purpose:       "desk work",
		Status:        scheduler.StatusActive,
		CreatedByRole: scheduler.RoleUser,
		CreatedAt:     referenceTime,
		UpdatedAt:     referenceTime,
		LastRenewedAt: referenceTime,
	}
	for _, opt := range opts {
		opt(&r)
	}
	return r
}

// WithReservationID overrides the generated ID.
func WithReservationID(id string) ReservationOption {
	return func(r *scheduler.Reservation) { r.ID = id }
}

// WithResource overrides the workstation.
func WithResource(resourceID string) ReservationOption {
	return func(r *scheduler.Reservation) { r.ResourceID = resourceID }
}

// WithOwner overrides the owning user.
func WithOwner(userID string) ReservationOption {
	return func(r *scheduler.Reservation) { r.UserID = userID }
}

// WithPeriod sets the reserved range from two YYYY-MM-DD strings.
func WithPeriod(start, end string) ReservationOption {
	return func(r *scheduler.Reservation) { r.Period = Range(start, end) }
}

// WithPurpose overrides the purpose.
func WithPurpose(purpose string) ReservationOption {
	return func(r *scheduler.Reservation) { r.Purpose = purpose }
}

// WithStatus overrides the status.
func WithStatus(status scheduler.Status) ReservationOption {
	return func(r *scheduler.Reservation) { r.Status = status }
}

// WithCreatedByRole overrides the role recorded at creation.
func WithCreatedByRole(role scheduler.Role) ReservationOption {
	return func(r *scheduler.Reservation) { r.CreatedByRole = role }
}

// WithLastRenewedAt overrides the heartbeat timestamp.
func WithLastRenewedAt(t time.Time) ReservationOption {
	return func(r *scheduler.Reservation) { r.LastRenewedAt = t }
}

// ----------------------------- User fixtures -----------------------------

// UserOption configures a user fixture.
type UserOption func(*persistence.User)

// NewUser returns a regular user with a unique ID and no PIN.
func NewUser(opts ...UserOption) persistence.User {
	idx := atomic.AddUint64(&userCounter, 1)
	id := fmt.Sprintf("user-%03d", idx)
	created := referenceTime.Add(time.Duration(idx) * time.Minute)
	u := persistence.User{
		ID:        id,
		Name:      fmt.Sprintf("User %03d", idx),
		Email:     id + "@example.com",
		Role:      scheduler.RoleUser,
		CreatedAt: created,
		UpdatedAt: created,
	}
	for _, opt := range opts {
		opt(&u)
	}
	return u
}

// WithUserID overrides the generated user ID.
func WithUserID(id string) UserOption {
	return func(u *persistence.User) { u.ID = id }
}

// WithUserName overrides the generated name.
func WithUserName(name string) UserOption {
	return func(u *persistence.User) { u.Name = name }
}

// WithRole overrides the role.
func WithRole(role scheduler.Role) UserOption {
	return func(u *persistence.User) { u.Role = role }
}

// WithPINHash sets a stored PIN hash.
func WithPINHash(hash string) UserOption {
	return func(u *persistence.User) { u.PINHash = hash }
}
