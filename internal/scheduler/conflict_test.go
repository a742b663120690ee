package scheduler

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/example/workstation-scheduler/internal/calendar"
)

func period(start, end string) calendar.Range {
	return calendar.Range{Start: calendar.MustParseDate(start), End: calendar.MustParseDate(end)}
}

func active(id, start, end string) Reservation {
	return Reservation{
		ID:            id,
		ResourceID:    "ws-1",
		UserID:        "user-" + id,
		Period:        period(start, end),
		Purpose:       "purpose " + id,
		Status:        StatusActive,
		CreatedByRole: RoleUser,
	}
}

func ids(reservations []Reservation) []string {
	out := make([]string, len(reservations))
	for i, r := range reservations {
		out[i] = r.ID
	}
	return out
}

func TestFindOverlaps(t *testing.T) {
	t.Parallel()

	existing := []Reservation{
		active("a", "2024-01-01", "2024-01-03"),
		active("b", "2024-01-05", "2024-01-07"),
		{ID: "c", Period: period("2024-01-08", "2024-01-09"), Status: StatusCanceled},
		active("d", "2024-01-10", "2024-01-20"),
		active("e", "2024-02-01", "2024-02-03"),
	}

	tests := []struct {
		name      string
		candidate calendar.Range
		want      []string
	}{
		{name: "touching bounds count as overlap", candidate: period("2024-01-03", "2024-01-05"), want: []string{"a", "b"}},
		{name: "gap yields nothing", candidate: period("2024-01-04", "2024-01-04"), want: []string{}},
		{name: "inactive reservations are ignored", candidate: period("2024-01-08", "2024-01-09"), want: []string{}},
		{name: "wide candidate", candidate: period("2023-12-01", "2024-12-31"), want: []string{"a", "b", "d", "e"}},
		{name: "candidate inside long reservation", candidate: period("2024-01-12", "2024-01-13"), want: []string{"d"}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			got := ids(FindOverlaps(existing, tc.candidate))
			if fmt.Sprint(got) != fmt.Sprint(tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, got)
			}
		})
	}
}

func TestMergeConflictsDeduplicatesAndSorts(t *testing.T) {
	t.Parallel()

	b := active("b", "2024-01-05", "2024-01-07")
	a := active("a", "2024-01-01", "2024-01-03")
	got := ids(MergeConflicts([]Reservation{b}, []Reservation{a, b}))
	if fmt.Sprint(got) != "[a b]" {
		t.Fatalf("expected [a b], got %v", got)
	}
}

func TestResolve(t *testing.T) {
	t.Parallel()

	candidate := period("2024-01-10", "2024-01-15")

	tests := []struct {
		name      string
		existing  Reservation
		kind      ResolutionKind
		result    calendar.Range
		status    Status
		fragments []calendar.Range
	}{
		{
			name:     "contained reservation is canceled",
			existing: active("r", "2024-01-11", "2024-01-15"),
			kind:     ResolutionCancel,
			result:   period("2024-01-11", "2024-01-15"),
			status:   StatusCanceled,
		},
		{
			name:     "identical range is canceled",
			existing: active("r", "2024-01-10", "2024-01-15"),
			kind:     ResolutionCancel,
			result:   period("2024-01-10", "2024-01-15"),
			status:   StatusCanceled,
		},
		{
			name:     "tail overlap truncates end",
			existing: active("r", "2024-01-05", "2024-01-12"),
			kind:     ResolutionTruncateEnd,
			result:   period("2024-01-05", "2024-01-09"),
			status:   StatusActive,
		},
		{
			name:     "head overlap truncates start",
			existing: active("r", "2024-01-15", "2024-01-20"),
			kind:     ResolutionTruncateStart,
			result:   period("2024-01-16", "2024-01-20"),
			status:   StatusActive,
		},
		{
			name:      "candidate strictly inside splits",
			existing:  active("r", "2024-01-01", "2024-01-31"),
			kind:      ResolutionSplit,
			result:    period("2024-01-01", "2024-01-31"),
			status:    StatusCanceled,
			fragments: []calendar.Range{period("2024-01-01", "2024-01-09"), period("2024-01-16", "2024-01-31")},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			res, err := Resolve(tc.existing, candidate)
			if err != nil {
				t.Fatalf("Resolve returned error: %v", err)
			}
			if res.Kind != tc.kind {
				t.Fatalf("expected kind %s, got %s", tc.kind, res.Kind)
			}
			if res.Result.Period != tc.result {
				t.Fatalf("expected result period %s, got %s", tc.result, res.Result.Period)
			}
			if res.Result.Status != tc.status {
				t.Fatalf("expected status %s, got %s", tc.status, res.Result.Status)
			}
			if len(res.Fragments) != len(tc.fragments) {
				t.Fatalf("expected %d fragments, got %d", len(tc.fragments), len(res.Fragments))
			}
			for i, f := range res.Fragments {
				if f.Period != tc.fragments[i] {
					t.Fatalf("expected fragment %d to be %s, got %s", i, tc.fragments[i], f.Period)
				}
				if f.UserID != tc.existing.UserID || f.Purpose != tc.existing.Purpose || f.ID != "" {
					t.Fatalf("expected fragment to keep owner and purpose without an id, got %+v", f)
				}
				if f.Period.Overlaps(candidate) {
					t.Fatalf("expected fragment %s to avoid candidate", f.Period)
				}
			}
		})
	}
}

func TestResolveRejectsNonOverlapping(t *testing.T) {
	t.Parallel()

	_, err := Resolve(active("r", "2024-01-01", "2024-01-02"), period("2024-01-03", "2024-01-04"))
	if !errors.Is(err, ErrUnresolvable) {
		t.Fatalf("expected ErrUnresolvable, got %v", err)
	}
}

func TestPlanOverrideAcrossSeveralRanges(t *testing.T) {
	t.Parallel()

	now := time.Date(2024, 1, 2, 9, 0, 0, 0, time.UTC)
	counter := 0
	newID := func() string {
		counter++
		return fmt.Sprintf("frag-%d", counter)
	}

	plan := NewPlan([]Reservation{active("long", "2024-01-01", "2024-01-10")})

	// The second range lands on the fragment created by the first split.
	for _, candidate := range []calendar.Range{period("2024-01-03", "2024-01-04"), period("2024-01-07", "2024-01-08")} {
		if _, err := plan.Override(candidate, newID, now); err != nil {
			t.Fatalf("Override returned error: %v", err)
		}
		if err := plan.Add(Reservation{ID: "new-" + candidate.Start.String(), ResourceID: "ws-1", Period: candidate, Status: StatusActive}); err != nil {
			t.Fatalf("Add returned error: %v", err)
		}
	}

	updates := plan.Updates()
	if len(updates) != 1 || updates[0].ID != "long" || updates[0].Status != StatusCanceled {
		t.Fatalf("expected the original to be retired once, got %+v", updates)
	}

	var periods []string
	for _, r := range plan.Inserts() {
		if !r.IsActive() {
			t.Fatalf("expected only active inserts, got %+v", r)
		}
		periods = append(periods, r.ID+"="+r.Period.String())
	}
	want := "[frag-1=2024-01-01..2024-01-02 new-2024-01-03=2024-01-03..2024-01-04 frag-3=2024-01-05..2024-01-06 frag-4=2024-01-09..2024-01-10 new-2024-01-07=2024-01-07..2024-01-08]"
	if fmt.Sprint(periods) != want {
		t.Fatalf("expected %s, got %v", want, periods)
	}

	act := plan.Active()
	for i := 1; i < len(act); i++ {
		if act[i-1].Period.Overlaps(act[i].Period) {
			t.Fatalf("expected no overlaps in plan, got %s and %s", act[i-1].Period, act[i].Period)
		}
	}
}

func TestPlanAddRejectsOverlap(t *testing.T) {
	t.Parallel()

	plan := NewPlan([]Reservation{active("a", "2024-01-01", "2024-01-03")})
	err := plan.Add(active("b", "2024-01-03", "2024-01-04"))
	if !errors.Is(err, ErrOverlap) {
		t.Fatalf("expected ErrOverlap, got %v", err)
	}
	if !plan.Empty() {
		t.Fatalf("expected rejected insert to leave plan empty")
	}
}
