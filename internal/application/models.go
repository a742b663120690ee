package application

import (
	"github.com/example/workstation-scheduler/internal/calendar"
	"github.com/example/workstation-scheduler/internal/scheduler"
)

// MaxAvailabilityWindow bounds availability queries and batch selections, in days.
const MaxAvailabilityWindow = 366

// MaxPurposeLength bounds the free-text purpose of a reservation, in characters.
const MaxPurposeLength = 500

// Principal represents the authenticated user invoking a service method.
type Principal struct {
	UserID string
	Role   scheduler.Role
}

// IsAdmin reports whether the principal carries the admin role.
func (p Principal) IsAdmin() bool {
	return p.Role == scheduler.RoleAdmin
}

// CreateSingleParams wraps the data required to book one date range.
type CreateSingleParams struct {
	Principal  Principal
	ResourceID string
	// UserID is the reservation owner; empty means the principal.
	UserID  string
	Range   calendar.Range
	Purpose string
	// Force displaces overlapping reservations instead of failing. Admin only.
	Force bool
}

// CreateBatchParams wraps an arbitrary selection of days to book at once.
type CreateBatchParams struct {
	Principal  Principal
	ResourceID string
	UserID     string
	Days       []calendar.Date
	Purpose    string
	Force      bool
}

// CancelParams identifies the reservation to cancel.
type CancelParams struct {
	Principal     Principal
	ReservationID string
}

// RenewParams identifies the reservation to renew. A zero Today means the
// current date in the service's location.
type RenewParams struct {
	Principal     Principal
	ReservationID string
	Today         calendar.Date
}

// AvailabilityParams describes the window to project.
type AvailabilityParams struct {
	ResourceID   string
	WindowStart  calendar.Date
	WindowLength int
}

// DayState is the occupancy of a workstation on one day.
type DayState string

const (
	DayAvailable DayState = "available"
	DayBusy      DayState = "busy"
)

// DayStatus is one day of an availability projection. Occupant fields are
// empty when the day is available.
type DayStatus struct {
	Date           calendar.Date `json:"date"`
	Status         DayState      `json:"status"`
	OccupantUserID string        `json:"occupant_user_id,omitempty"`
	Purpose        string        `json:"purpose,omitempty"`
	ReservationID  string        `json:"reservation_id,omitempty"`
}

// AvailabilityKey identifies a cached availability projection.
type AvailabilityKey struct {
	ResourceID string
	Start      calendar.Date
	Days       int
}

// RegisterUserParams wraps the data required to create a user account.
type RegisterUserParams struct {
	ID    string
	Name  string
	Email string
	Role  scheduler.Role
	// PIN may be empty; the user then sets one with SetupPIN.
	PIN string
}
