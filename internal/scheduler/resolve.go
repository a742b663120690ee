package scheduler

import (
	"errors"
	"fmt"
	"time"

	"github.com/example/workstation-scheduler/internal/calendar"
)

var (
	// ErrUnresolvable is returned when an override is asked to resolve a
	// reservation that does not overlap the candidate range.
	ErrUnresolvable = errors.New("scheduler: reservation does not overlap candidate")
	// ErrOverlap is returned when a plan would leave two active reservations
	// of one workstation sharing a day.
	ErrOverlap = errors.New("scheduler: reservation overlaps an active reservation")
)

// ResolutionKind names how an overlapping reservation gives way to a forced booking.
type ResolutionKind string

const (
	// ResolutionCancel: the reservation lies entirely inside the candidate.
	ResolutionCancel ResolutionKind = "cancel"
	// ResolutionTruncateEnd: the reservation starts first and ends inside the candidate.
	ResolutionTruncateEnd ResolutionKind = "truncate_end"
	// ResolutionTruncateStart: the reservation starts inside the candidate and ends after it.
	ResolutionTruncateStart ResolutionKind = "truncate_start"
	// ResolutionSplit: the candidate lies strictly inside the reservation.
	ResolutionSplit ResolutionKind = "split"
)

// Resolution describes the outcome for one displaced reservation.
//
// Result is the original record after the change: canceled for Cancel and
// Split, shortened for the truncations. Fragments holds the two halves left
// by a Split; they carry no ID until a Plan assigns one.
type Resolution struct {
	Kind      ResolutionKind
	Original  Reservation
	Result    Reservation
	Fragments []Reservation
}

// Resolve classifies how existing must change so that candidate can be booked.
func Resolve(existing Reservation, candidate calendar.Range) (Resolution, error) {
	if !existing.IsActive() || !existing.Period.Overlaps(candidate) {
		return Resolution{}, fmt.Errorf("%w: %s", ErrUnresolvable, existing.ID)
	}

	period := existing.Period
	res := Resolution{Original: existing, Result: existing}

	switch {
	case candidate.Contains(period):
		res.Kind = ResolutionCancel
		res.Result.Status = StatusCanceled
	case period.Start.Before(candidate.Start) && period.End.After(candidate.End):
		res.Kind = ResolutionSplit
		res.Result.Status = StatusCanceled
		for _, piece := range period.Subtract(candidate) {
			fragment := existing
			fragment.ID = ""
			fragment.Period = piece
			res.Fragments = append(res.Fragments, fragment)
		}
	case period.Start.Before(candidate.Start):
		res.Kind = ResolutionTruncateEnd
		res.Result.Period = period.WithEnd(candidate.Start.Prev())
	default:
		res.Kind = ResolutionTruncateStart
		res.Result.Period = period.WithStart(candidate.End.Next())
	}
	return res, nil
}

// Plan is a working copy of one workstation's active reservations that
// accumulates inserts and updates so they can be committed together.
type Plan struct {
	active      []Reservation
	inserts     []Reservation
	updates     map[string]Reservation
	updateOrder []string
}

// NewPlan starts a plan from the workstation's current reservations.
// Reservations that are not active are ignored.
func NewPlan(current []Reservation) *Plan {
	active := make([]Reservation, 0, len(current))
	for _, r := range current {
		if r.IsActive() {
			active = append(active, r)
		}
	}
	SortByStart(active)
	return &Plan{active: active, updates: make(map[string]Reservation)}
}

// Active returns the plan's current view of active reservations.
func (p *Plan) Active() []Reservation {
	out := make([]Reservation, len(p.active))
	copy(out, p.active)
	return out
}

// Overlaps returns the active reservations sharing a day with candidate.
func (p *Plan) Overlaps(candidate calendar.Range) []Reservation {
	return FindOverlaps(p.active, candidate)
}

// Override resolves every reservation overlapping candidate, assigning newID
// values to split fragments and stamping changed records with now.
func (p *Plan) Override(candidate calendar.Range, newID func() string, now time.Time) ([]Resolution, error) {
	overlaps := p.Overlaps(candidate)
	resolutions := make([]Resolution, 0, len(overlaps))
	for _, existing := range overlaps {
		res, err := Resolve(existing, candidate)
		if err != nil {
			return nil, err
		}
		res.Result.UpdatedAt = now
		p.Put(res.Result)
		for i := range res.Fragments {
			res.Fragments[i].ID = newID()
			res.Fragments[i].CreatedAt = now
			res.Fragments[i].UpdatedAt = now
			if err := p.Add(res.Fragments[i]); err != nil {
				return nil, err
			}
		}
		resolutions = append(resolutions, res)
	}
	return resolutions, nil
}

// Add inserts a new reservation, refusing one that would overlap an active
// reservation already in the plan.
func (p *Plan) Add(r Reservation) error {
	if r.IsActive() {
		if overlaps := p.Overlaps(r.Period); len(overlaps) > 0 {
			return fmt.Errorf("%w: %s collides with %s", ErrOverlap, r.Period, overlaps[0].ID)
		}
		p.active = append(p.active, r)
		SortByStart(p.active)
	}
	p.inserts = append(p.inserts, r)
	return nil
}

// Put records a changed version of a reservation already known to the plan,
// either one loaded from storage or one added earlier.
func (p *Plan) Put(r Reservation) {
	p.active = ExcludeID(p.active, r.ID)
	if r.IsActive() {
		p.active = append(p.active, r)
		SortByStart(p.active)
	}

	for i, inserted := range p.inserts {
		if inserted.ID != r.ID {
			continue
		}
		if r.IsActive() {
			p.inserts[i] = r
		} else {
			p.inserts = append(p.inserts[:i], p.inserts[i+1:]...)
		}
		return
	}

	if _, ok := p.updates[r.ID]; !ok {
		p.updateOrder = append(p.updateOrder, r.ID)
	}
	p.updates[r.ID] = r
}

// Inserts lists reservations created by the plan, in creation order.
func (p *Plan) Inserts() []Reservation {
	out := make([]Reservation, len(p.inserts))
	copy(out, p.inserts)
	return out
}

// Updates lists changed pre-existing reservations, in the order first touched.
func (p *Plan) Updates() []Reservation {
	out := make([]Reservation, 0, len(p.updateOrder))
	for _, id := range p.updateOrder {
		out = append(out, p.updates[id])
	}
	return out
}

// Empty reports whether the plan has nothing to commit.
func (p *Plan) Empty() bool {
	return len(p.inserts) == 0 && len(p.updateOrder) == 0
}
