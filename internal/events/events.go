// Package events publishes reservation lifecycle notifications.
package events

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/example/workstation-scheduler/internal/calendar"
)

// Type names a reservation lifecycle event. It doubles as the routing key.
type Type string

const (
	ReservationCreated        Type = "reservation.created"
	ReservationTruncated      Type = "reservation.truncated"
	ReservationSplit          Type = "reservation.split"
	ReservationCanceled       Type = "reservation.canceled"
	ReservationRenewed        Type = "reservation.renewed"
	ReservationExpired        Type = "reservation.expired"
	ReservationRenewalOverdue Type = "reservation.renewal_overdue"
	ReservationExpiringSoon   Type = "reservation.expiring_soon"
)

// Event describes one change to, or reminder about, a reservation.
type Event struct {
	Type          Type            `json:"type"`
	ReservationID string          `json:"reservation_id"`
	ResourceID    string          `json:"resource_id"`
	UserID        string          `json:"user_id"`
	Range         calendar.Range  `json:"range"`
	Previous      *calendar.Range `json:"previous,omitempty"`
	// RelatedIDs lists the reservations left behind by a split.
	RelatedIDs []string  `json:"related_ids,omitempty"`
	Purpose    string    `json:"purpose,omitempty"`
	Actor      string    `json:"actor,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

// Publisher delivers events to interested parties.
type Publisher interface {
	Publish(ctx context.Context, event Event) error
}

// LogPublisher writes events to a structured logger.
type LogPublisher struct {
	logger *slog.Logger
}

// NewLogPublisher returns a publisher logging to logger, or slog.Default when nil.
func NewLogPublisher(logger *slog.Logger) *LogPublisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogPublisher{logger: logger.With("component", "events")}
}

// Publish logs the event at info level.
func (p *LogPublisher) Publish(ctx context.Context, event Event) error {
	p.logger.InfoContext(ctx, "reservation event",
		"type", string(event.Type),
		"reservation_id", event.ReservationID,
		"resource_id", event.ResourceID,
		"user_id", event.UserID,
		"range", event.Range.String(),
		"actor", event.Actor,
	)
	return nil
}

// Multi fans an event out to every publisher, joining their errors.
type Multi []Publisher

// Publish sends the event to each publisher in order.
func (m Multi) Publish(ctx context.Context, event Event) error {
	var errs []error
	for _, p := range m {
		if p == nil {
			continue
		}
		if err := p.Publish(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Discard drops every event.
type Discard struct{}

// Publish implements Publisher.
func (Discard) Publish(context.Context, Event) error { return nil }
