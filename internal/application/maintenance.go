package application

import (
	"context"
	"time"

	"github.com/example/workstation-scheduler/internal/calendar"
	"github.com/example/workstation-scheduler/internal/events"
	"github.com/example/workstation-scheduler/internal/persistence"
	"github.com/example/workstation-scheduler/internal/scheduler"
)

// ExpireLapsed marks active reservations that ended before today as expired.
// Each workstation is committed separately inside its own section; a failure
// stops the sweep and reports how many reservations were expired so far.
func (s *ReservationService) ExpireLapsed(ctx context.Context, today calendar.Date) (expired int, err error) {
	if err = s.ready(); err != nil {
		return 0, err
	}
	if today.IsZero() {
		today = s.Today()
	}

	logger := s.loggerWith(ctx, "ExpireLapsed", "today", today.String())
	defer func() {
		logResult(ctx, logger, err, "expiry sweep", "expired", expired)
	}()

	lapsed, err := s.reservations.ListActive(ctx, persistence.ActiveFilter{EndsBefore: &today})
	if err != nil {
		return 0, mapRepoError("list lapsed reservations", err)
	}

	var resources []string
	seen := make(map[string]struct{})
	for _, r := range lapsed {
		if _, ok := seen[r.ResourceID]; !ok {
			seen[r.ResourceID] = struct{}{}
			resources = append(resources, r.ResourceID)
		}
	}

	for _, resourceID := range resources {
		var changed []scheduler.Reservation
		err = s.locks.withLock(ctx, resourceID, func() error {
			current, err := s.reservations.ListActive(ctx, persistence.ActiveFilter{ResourceID: resourceID, EndsBefore: &today})
			if err != nil {
				return mapRepoError("list lapsed reservations", err)
			}
			if len(current) == 0 {
				return nil
			}
			now := s.now()
			for _, r := range current {
				r.Status = scheduler.StatusExpired
				r.UpdatedAt = now
				changed = append(changed, r)
			}
			if err := s.reservations.ApplyChanges(ctx, persistence.ChangeSet{Updates: changed}); err != nil {
				changed = nil
				return mapRepoError("apply changes", err)
			}
			return nil
		})
		if err != nil {
			return expired, err
		}
		if len(changed) == 0 {
			continue
		}

		evts := make([]events.Event, 0, len(changed))
		for _, r := range changed {
			evts = append(evts, newEvent(events.ReservationExpired, r, "", r.UpdatedAt))
		}
		s.afterCommit(ctx, resourceID, evts...)
		expired += len(changed)
	}
	return expired, nil
}

// RemindOverdueRenewals publishes a reminder for every reservation in use
// today whose last renewal is older than grace. Nothing is modified.
func (s *ReservationService) RemindOverdueRenewals(ctx context.Context, now time.Time, grace time.Duration) (reminded int, err error) {
	if err = s.ready(); err != nil {
		return 0, err
	}
	today := calendar.Today(now, s.location)

	logger := s.loggerWith(ctx, "RemindOverdueRenewals", "today", today.String(), "grace", grace)
	defer func() {
		logResult(ctx, logger, err, "renewal reminder sweep", "reminded", reminded)
	}()

	inUse, err := s.reservations.ListActive(ctx, persistence.ActiveFilter{Covers: &today})
	if err != nil {
		return 0, mapRepoError("list reservations in use", err)
	}
	for _, r := range inUse {
		if now.Sub(r.LastRenewedAt) <= grace {
			continue
		}
		s.publish(ctx, newEvent(events.ReservationRenewalOverdue, r, "", now))
		reminded++
	}
	return reminded, nil
}

// WarnExpiring publishes a notice for every active reservation whose last day
// is tomorrow.
func (s *ReservationService) WarnExpiring(ctx context.Context, today calendar.Date) (warned int, err error) {
	if err = s.ready(); err != nil {
		return 0, err
	}
	if today.IsZero() {
		today = s.Today()
	}
	tomorrow := today.Next()

	logger := s.loggerWith(ctx, "WarnExpiring", "today", today.String())
	defer func() {
		logResult(ctx, logger, err, "expiry warning sweep", "warned", warned)
	}()

	ending, err := s.reservations.ListActive(ctx, persistence.ActiveFilter{EndsOn: &tomorrow})
	if err != nil {
		return 0, mapRepoError("list expiring reservations", err)
	}
	now := s.now()
	for _, r := range ending {
		s.publish(ctx, newEvent(events.ReservationExpiringSoon, r, "", now))
		warned++
	}
	return warned, nil
}

func (s *ReservationService) publish(ctx context.Context, evt events.Event) {
	if err := s.publisher.Publish(ctx, evt); err != nil {
		s.loggerWith(ctx, "publish", "event_type", string(evt.Type), "reservation_id", evt.ReservationID).
			WarnContext(ctx, "event publish failed", "error", err)
	}
}
