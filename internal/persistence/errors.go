package persistence

import "errors"

var (
	// ErrNotFound is returned when the requested record does not exist.
	ErrNotFound = errors.New("persistence: not found")
	// ErrDuplicate is returned when inserting a record whose identifier is already taken.
	ErrDuplicate = errors.New("persistence: duplicate record")
	// ErrConstraintViolation is returned when a record breaks a storage level rule,
	// such as an inverted date range or a changed owner.
	ErrConstraintViolation = errors.New("persistence: constraint violation")
	// ErrOverlap is returned when a change set would leave two active
	// reservations of one workstation sharing a day.
	ErrOverlap = errors.New("persistence: overlapping active reservations")
	// ErrUnavailable marks transient backend failures; the caller may retry.
	ErrUnavailable = errors.New("persistence: storage unavailable")
)
