package application

import (
	"context"
	"fmt"
	"strings"

	"github.com/example/workstation-scheduler/internal/calendar"
	"github.com/example/workstation-scheduler/internal/scheduler"
)

// QueryAvailability projects one status per day of the window. It takes no
// section lock and may be answered from the availability cache.
func (s *ReservationService) QueryAvailability(ctx context.Context, params AvailabilityParams) (days []DayStatus, err error) {
	if err = s.ready(); err != nil {
		return nil, err
	}

	logger := s.loggerWith(ctx, "QueryAvailability",
		"resource_id", params.ResourceID,
		"window_start", params.WindowStart.String(),
		"window_length", params.WindowLength,
	)
	defer func() {
		if err != nil {
			logResult(ctx, logger, err, "availability query")
		}
	}()

	resourceID := strings.TrimSpace(params.ResourceID)
	vErr := &ValidationError{}
	if resourceID == "" {
		vErr.add("resource_id", "resource is required")
	}
	if params.WindowStart.IsZero() {
		vErr.add("start", "window start is required")
	}
	if params.WindowLength < 1 || params.WindowLength > MaxAvailabilityWindow {
		vErr.add("days", fmt.Sprintf("window length must be between 1 and %d", MaxAvailabilityWindow))
	}
	if vErr.HasErrors() {
		return nil, vErr
	}

	key := AvailabilityKey{ResourceID: resourceID, Start: params.WindowStart, Days: params.WindowLength}
	var generation uint64
	if s.cache != nil {
		cached, gen, ok := s.cache.Lookup(ctx, key)
		if ok {
			return cached, nil
		}
		generation = gen
	}

	window := calendar.Range{Start: params.WindowStart, End: params.WindowStart.AddDays(params.WindowLength - 1)}
	reservations, err := s.reservations.ListActiveByResource(ctx, resourceID, &window)
	if err != nil {
		return nil, mapRepoError("list reservations", err)
	}

	days, err = projectAvailability(window, reservations)
	if err != nil {
		return nil, err
	}
	if s.cache != nil {
		s.cache.Store(ctx, key, generation, days)
	}
	return days, nil
}

// projectAvailability marks every day of window as available or busy. A day
// claimed by two active reservations is an internal consistency fault.
func projectAvailability(window calendar.Range, reservations []scheduler.Reservation) ([]DayStatus, error) {
	days := make([]DayStatus, window.Days())
	for i := range days {
		days[i] = DayStatus{Date: window.Start.AddDays(i), Status: DayAvailable}
	}

	for _, r := range reservations {
		if !r.IsActive() {
			continue
		}
		overlap, ok := r.Period.Intersect(window)
		if !ok {
			continue
		}
		first := window.Start.DaysUntil(overlap.Start)
		for i := first; i < first+overlap.Days(); i++ {
			if days[i].Status == DayBusy {
				return nil, fmt.Errorf("%w: reservations %s and %s both claim %s",
					ErrInternalConsistency, days[i].ReservationID, r.ID, days[i].Date)
			}
			days[i].Status = DayBusy
			days[i].OccupantUserID = r.UserID
			days[i].Purpose = r.Purpose
			days[i].ReservationID = r.ID
		}
	}
	return days, nil
}

// QueryMyActive lists the user's active reservations ending today or later,
// ordered by start date. A zero today means the current date.
func (s *ReservationService) QueryMyActive(ctx context.Context, userID string, today calendar.Date) ([]scheduler.Reservation, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	if today.IsZero() {
		today = s.Today()
	}
	reservations, err := s.reservations.ListActiveByUser(ctx, userID, today)
	if err != nil {
		err = mapRepoError("list reservations", err)
		logResult(ctx, s.loggerWith(ctx, "QueryMyActive", "user_id", userID), err, "active reservation query")
		return nil, err
	}
	scheduler.SortByStart(reservations)
	return reservations, nil
}

// ListResourceReservations lists a workstation's active reservations ending on
// or after from. Admin only.
func (s *ReservationService) ListResourceReservations(ctx context.Context, principal Principal, resourceID string, from calendar.Date) ([]scheduler.Reservation, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	if !principal.IsAdmin() {
		return nil, ErrUnauthorized
	}
	if strings.TrimSpace(resourceID) == "" {
		return nil, newValidationError("resource_id", "resource is required")
	}
	if from.IsZero() {
		from = s.Today()
	}

	all, err := s.reservations.ListActiveByResource(ctx, resourceID, nil)
	if err != nil {
		return nil, mapRepoError("list reservations", err)
	}
	out := make([]scheduler.Reservation, 0, len(all))
	for _, r := range all {
		if !r.Period.End.Before(from) {
			out = append(out, r)
		}
	}
	return out, nil
}
