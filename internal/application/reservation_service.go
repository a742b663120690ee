package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/example/workstation-scheduler/internal/calendar"
	"github.com/example/workstation-scheduler/internal/events"
	"github.com/example/workstation-scheduler/internal/persistence"
	"github.com/example/workstation-scheduler/internal/scheduler"
)

// ReservationServiceDeps wires the collaborators of a ReservationService.
// Only Reservations is required.
type ReservationServiceDeps struct {
	Reservations persistence.ReservationRepository
	Cache        AvailabilityCache
	Publisher    events.Publisher
	IDGenerator  func() string
	Now          func() time.Time
	// Location decides which calendar day "today" is.
	Location *time.Location
	Logger   *slog.Logger
}

// ReservationService books, renews, cancels and projects workstation reservations.
//
// Mutations of one workstation run inside that workstation's exclusive
// section, from conflict detection through commit. Events are published and
// the availability cache is invalidated after the section is released.
type ReservationService struct {
	reservations persistence.ReservationRepository
	cache        AvailabilityCache
	publisher    events.Publisher
	idGenerator  func() string
	now          func() time.Time
	location     *time.Location
	logger       *slog.Logger
	locks        *resourceLocks
}

// NewReservationService wires dependencies for reservation operations.
func NewReservationService(deps ReservationServiceDeps) *ReservationService {
	if deps.IDGenerator == nil {
		deps.IDGenerator = func() string { return uuid.NewString() }
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.Location == nil {
		deps.Location = time.Local
	}
	if deps.Publisher == nil {
		deps.Publisher = events.Discard{}
	}
	return &ReservationService{
		reservations: deps.Reservations,
		cache:        deps.Cache,
		publisher:    deps.Publisher,
		idGenerator:  deps.IDGenerator,
		now:          deps.Now,
		location:     deps.Location,
		logger:       defaultLogger(deps.Logger),
		locks:        newResourceLocks(),
	}
}

func (s *ReservationService) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return serviceLogger(ctx, s.logger, "ReservationService", operation, attrs...)
}

// Today returns the current calendar date in the service's location.
func (s *ReservationService) Today() calendar.Date {
	return calendar.Today(s.now(), s.location)
}

func (s *ReservationService) ready() error {
	if s == nil {
		return fmt.Errorf("ReservationService is nil")
	}
	if s.reservations == nil {
		return fmt.Errorf("reservation repository not configured")
	}
	return nil
}

// CreateSingle books one inclusive date range.
func (s *ReservationService) CreateSingle(ctx context.Context, params CreateSingleParams) (created scheduler.Reservation, err error) {
	if err = s.ready(); err != nil {
		return scheduler.Reservation{}, err
	}

	logger := s.loggerWith(ctx, "CreateSingle",
		"resource_id", params.ResourceID,
		"range", params.Range.String(),
		"force", params.Force,
	)
	defer func() {
		logResult(ctx, logger, err, "reservation creation", "reservation_id", created.ID)
	}()

	req, err := s.newBookingRequest(params.Principal, params.ResourceID, params.UserID, params.Purpose, params.Force)
	if err != nil {
		return scheduler.Reservation{}, err
	}

	vErr := req.validate()
	if rangeErr := params.Range.Validate(); rangeErr != nil {
		vErr.add("range", rangeErr.Error())
	} else {
		s.checkNotPast(params.Principal, params.Range, "start_date", vErr)
	}
	if vErr.HasErrors() {
		return scheduler.Reservation{}, vErr
	}

	req.ranges = []calendar.Range{params.Range}
	booked, err := s.book(ctx, req)
	if err != nil {
		return scheduler.Reservation{}, err
	}
	return booked[0], nil
}

// CreateBatch books a free-form selection of days. The days are consolidated
// into maximal ranges that are committed together or not at all.
func (s *ReservationService) CreateBatch(ctx context.Context, params CreateBatchParams) (created []scheduler.Reservation, err error) {
	if err = s.ready(); err != nil {
		return nil, err
	}

	logger := s.loggerWith(ctx, "CreateBatch",
		"resource_id", params.ResourceID,
		"days", len(params.Days),
		"force", params.Force,
	)
	defer func() {
		logResult(ctx, logger, err, "batch reservation", "created", len(created))
	}()

	req, err := s.newBookingRequest(params.Principal, params.ResourceID, params.UserID, params.Purpose, params.Force)
	if err != nil {
		return nil, err
	}

	vErr := req.validate()
	ranges, consolidateErr := calendar.Consolidate(params.Days)
	switch {
	case errors.Is(consolidateErr, calendar.ErrEmptySelection):
		vErr.add("dates", "empty selection")
	case consolidateErr != nil:
		vErr.add("dates", "every date must be set")
	default:
		if span := (calendar.Range{Start: ranges[0].Start, End: ranges[len(ranges)-1].End}); span.Days() > MaxAvailabilityWindow {
			vErr.add("dates", fmt.Sprintf("selection may span at most %d days", MaxAvailabilityWindow))
		}
		s.checkNotPast(params.Principal, ranges[0], "dates", vErr)
	}
	if vErr.HasErrors() {
		return nil, vErr
	}

	req.ranges = ranges
	return s.book(ctx, req)
}

// bookingRequest is a validated, authorized creation request.
type bookingRequest struct {
	principal  Principal
	resourceID string
	userID     string
	purpose    string
	force      bool
	ranges     []calendar.Range
}

func (s *ReservationService) newBookingRequest(principal Principal, resourceID, userID, purpose string, force bool) (bookingRequest, error) {
	if principal.UserID == "" || !principal.Role.Valid() {
		return bookingRequest{}, ErrUnauthorized
	}
	if userID == "" {
		userID = principal.UserID
	}
	if !principal.IsAdmin() && (force || userID != principal.UserID) {
		return bookingRequest{}, ErrUnauthorized
	}
	return bookingRequest{
		principal:  principal,
		resourceID: strings.TrimSpace(resourceID),
		userID:     userID,
		purpose:    strings.TrimSpace(purpose),
		force:      force,
	}, nil
}

func (r bookingRequest) validate() *ValidationError {
	vErr := &ValidationError{}
	if r.resourceID == "" {
		vErr.add("resource_id", "resource is required")
	}
	if utf8.RuneCountInString(r.purpose) > MaxPurposeLength {
		vErr.add("purpose", fmt.Sprintf("purpose must be at most %d characters", MaxPurposeLength))
	}
	return vErr
}

func (s *ReservationService) checkNotPast(principal Principal, first calendar.Range, field string, vErr *ValidationError) {
	if principal.IsAdmin() {
		return
	}
	if first.Start.Before(s.Today()) {
		vErr.add(field, "cannot book in the past")
	}
}

// book runs conflict detection, optional displacement and the commit inside
// the workstation's section.
func (s *ReservationService) book(ctx context.Context, req bookingRequest) ([]scheduler.Reservation, error) {
	var (
		created     []scheduler.Reservation
		resolutions []scheduler.Resolution
		plan        *scheduler.Plan
		now         time.Time
	)

	err := s.locks.withLock(ctx, req.resourceID, func() error {
		window := calendar.Range{Start: req.ranges[0].Start, End: req.ranges[len(req.ranges)-1].End}
		current, err := s.reservations.ListActiveByResource(ctx, req.resourceID, &window)
		if err != nil {
			return mapRepoError("list reservations", err)
		}
		plan = scheduler.NewPlan(current)

		if !req.force {
			conflicts := make([][]scheduler.Reservation, 0, len(req.ranges))
			for _, rng := range req.ranges {
				conflicts = append(conflicts, plan.Overlaps(rng))
			}
			if merged := scheduler.MergeConflicts(conflicts...); len(merged) > 0 {
				return &ConflictError{Conflicts: merged}
			}
		}

		now = s.now()
		for _, rng := range req.ranges {
			if req.force {
				resolved, err := plan.Override(rng, s.idGenerator, now)
				if err != nil {
					return fmt.Errorf("%w: %v", ErrInternalConsistency, err)
				}
				resolutions = append(resolutions, resolved...)
			}
			reservation := scheduler.Reservation{
				ID:            s.idGenerator(),
				ResourceID:    req.resourceID,
				UserID:        req.userID,
				Period:        rng,
				Purpose:       req.purpose,
				Status:        scheduler.StatusActive,
				CreatedByRole: req.principal.Role,
				CreatedAt:     now,
				UpdatedAt:     now,
				LastRenewedAt: now,
			}
			if err := plan.Add(reservation); err != nil {
				return fmt.Errorf("%w: %v", ErrInternalConsistency, err)
			}
			created = append(created, reservation)
		}

		changes := persistence.ChangeSet{Inserts: plan.Inserts(), Updates: plan.Updates()}
		if err := s.reservations.ApplyChanges(ctx, changes); err != nil {
			return mapRepoError("apply changes", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	evts := make([]events.Event, 0, len(created)+len(resolutions))
	for _, r := range created {
		evts = append(evts, newEvent(events.ReservationCreated, r, req.principal.UserID, now))
	}
	evts = append(evts, displacementEvents(plan, resolutions, req.principal.UserID, now)...)
	s.afterCommit(ctx, req.resourceID, evts...)
	return created, nil
}

// displacementEvents describes what happened to every pre-existing reservation
// the plan changed. Fragments of a split are attributed to the reservation
// they were cut from, even when a later range in the same batch cut them again.
func displacementEvents(plan *scheduler.Plan, resolutions []scheduler.Resolution, actor string, now time.Time) []events.Event {
	if len(resolutions) == 0 {
		return nil
	}

	root := make(map[string]string)
	kinds := make(map[string]scheduler.ResolutionKind)
	originals := make(map[string]scheduler.Reservation)
	rootOf := func(id string) string {
		if r, ok := root[id]; ok {
			return r
		}
		return id
	}
	for _, res := range resolutions {
		origin := rootOf(res.Original.ID)
		if origin == res.Original.ID {
			if _, seen := originals[origin]; !seen {
				originals[origin] = res.Original
			}
			kinds[origin] = res.Kind
		}
		for _, fragment := range res.Fragments {
			root[fragment.ID] = origin
		}
	}

	survivors := make(map[string][]string)
	for _, inserted := range plan.Inserts() {
		if origin, ok := root[inserted.ID]; ok {
			survivors[origin] = append(survivors[origin], inserted.ID)
		}
	}

	var out []events.Event
	for _, updated := range plan.Updates() {
		original, ok := originals[updated.ID]
		if !ok {
			continue
		}
		previous := original.Period
		var evt events.Event
		switch {
		case kinds[updated.ID] == scheduler.ResolutionSplit:
			evt = newEvent(events.ReservationSplit, updated, actor, now)
			evt.RelatedIDs = survivors[updated.ID]
		case !updated.IsActive():
			evt = newEvent(events.ReservationCanceled, updated, actor, now)
		default:
			evt = newEvent(events.ReservationTruncated, updated, actor, now)
		}
		evt.Previous = &previous
		out = append(out, evt)
	}
	return out
}

// Cancel retires a reservation. Canceling a reservation that is no longer
// active succeeds without changing it.
func (s *ReservationService) Cancel(ctx context.Context, params CancelParams) (result scheduler.Reservation, err error) {
	if err = s.ready(); err != nil {
		return scheduler.Reservation{}, err
	}

	logger := s.loggerWith(ctx, "Cancel", "reservation_id", params.ReservationID)
	defer func() {
		logResult(ctx, logger, err, "reservation cancel", "status", string(result.Status))
	}()

	existing, err := s.getReservation(ctx, params.ReservationID)
	if err != nil {
		return scheduler.Reservation{}, err
	}
	if !params.Principal.IsAdmin() && existing.UserID != params.Principal.UserID {
		return scheduler.Reservation{}, ErrUnauthorized
	}

	var changed bool
	err = s.locks.withLock(ctx, existing.ResourceID, func() error {
		current, err := s.getReservation(ctx, existing.ID)
		if err != nil {
			return err
		}
		result = current
		if !current.IsActive() {
			return nil
		}
		result.Status = scheduler.StatusCanceled
		result.UpdatedAt = s.now()
		if err := s.reservations.ApplyChanges(ctx, persistence.ChangeSet{Updates: []scheduler.Reservation{result}}); err != nil {
			return mapRepoError("apply changes", err)
		}
		changed = true
		return nil
	})
	if err != nil {
		return scheduler.Reservation{}, err
	}

	if changed {
		s.afterCommit(ctx, result.ResourceID, newEvent(events.ReservationCanceled, result, params.Principal.UserID, result.UpdatedAt))
	}
	return result, nil
}

// Renew extends a reservation through tomorrow when that is later than its
// current end, and records the renewal time. Only the owner may renew, and
// only on a day the reservation covers.
func (s *ReservationService) Renew(ctx context.Context, params RenewParams) (result scheduler.Reservation, err error) {
	if err = s.ready(); err != nil {
		return scheduler.Reservation{}, err
	}

	today := params.Today
	if today.IsZero() {
		today = s.Today()
	}

	logger := s.loggerWith(ctx, "Renew", "reservation_id", params.ReservationID, "today", today.String())
	defer func() {
		logResult(ctx, logger, err, "reservation renewal", "range", result.Period.String())
	}()

	existing, err := s.getReservation(ctx, params.ReservationID)
	if err != nil {
		return scheduler.Reservation{}, err
	}
	if existing.UserID != params.Principal.UserID {
		return scheduler.Reservation{}, ErrUnauthorized
	}

	var previous calendar.Range
	err = s.locks.withLock(ctx, existing.ResourceID, func() error {
		current, err := s.getReservation(ctx, existing.ID)
		if err != nil {
			return err
		}
		if !current.IsActive() {
			return &InvalidStateError{Reason: fmt.Sprintf("reservation is %s", current.Status)}
		}
		if !current.Period.ContainsDate(today) {
			return &InvalidStateError{Reason: fmt.Sprintf("renewal is only possible between %s and %s", current.Period.Start, current.Period.End)}
		}

		previous = current.Period
		result = current
		candidateEnd := today.Next()
		if candidateEnd.After(current.Period.End) {
			extension := calendar.Range{Start: current.Period.End.Next(), End: candidateEnd}
			others, err := s.reservations.ListActiveByResource(ctx, current.ResourceID, &extension)
			if err != nil {
				return mapRepoError("list reservations", err)
			}
			if conflicts := scheduler.FindOverlaps(scheduler.ExcludeID(others, current.ID), extension); len(conflicts) > 0 {
				return &ConflictError{Conflicts: conflicts}
			}
			result.Period = current.Period.WithEnd(candidateEnd)
		}

		now := s.now()
		result.LastRenewedAt = now
		result.UpdatedAt = now
		if err := s.reservations.ApplyChanges(ctx, persistence.ChangeSet{Updates: []scheduler.Reservation{result}}); err != nil {
			return mapRepoError("apply changes", err)
		}
		return nil
	})
	if err != nil {
		return scheduler.Reservation{}, err
	}

	evt := newEvent(events.ReservationRenewed, result, params.Principal.UserID, result.UpdatedAt)
	evt.Previous = &previous
	s.afterCommit(ctx, result.ResourceID, evt)
	return result, nil
}

func (s *ReservationService) getReservation(ctx context.Context, id string) (scheduler.Reservation, error) {
	if strings.TrimSpace(id) == "" {
		return scheduler.Reservation{}, ErrNotFound
	}
	reservation, err := s.reservations.GetReservation(ctx, id)
	if err != nil {
		return scheduler.Reservation{}, mapRepoError("get reservation", err)
	}
	return reservation, nil
}

// afterCommit invalidates cached projections for the workstation and
// publishes events. Publish failures are logged, not returned.
func (s *ReservationService) afterCommit(ctx context.Context, resourceID string, evts ...events.Event) {
	if s.cache != nil {
		s.cache.InvalidateResource(ctx, resourceID)
	}
	for _, evt := range evts {
		s.publish(ctx, evt)
	}
}

func newEvent(typ events.Type, r scheduler.Reservation, actor string, at time.Time) events.Event {
	return events.Event{
		Type:          typ,
		ReservationID: r.ID,
		ResourceID:    r.ResourceID,
		UserID:        r.UserID,
		Range:         r.Period,
		Purpose:       r.Purpose,
		Actor:         actor,
		OccurredAt:    at,
	}
}

func mapRepoError(op string, err error) error {
	if err == nil {
		return nil
	}
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return err
	case errors.Is(err, ErrNotFound), errors.Is(err, persistence.ErrNotFound):
		return ErrNotFound
	case errors.Is(err, persistence.ErrConstraintViolation):
		return fmt.Errorf("%w: %s: %v", ErrInternalConsistency, op, err)
	case errors.Is(err, persistence.ErrUnavailable):
		return &StorageError{Op: op, Err: err}
	case errors.Is(err, persistence.ErrOverlap), errors.Is(err, persistence.ErrDuplicate):
		// Another writer got in first; a retry recomputes conflicts against fresh state.
		return &StorageError{Op: op, Err: fmt.Errorf("%w: %v", persistence.ErrUnavailable, err)}
	}
	return &StorageError{Op: op, Err: fmt.Errorf("%w: %v", persistence.ErrUnavailable, err)}
}
