package scheduler

import (
	"sort"

	"github.com/example/workstation-scheduler/internal/calendar"
)

// FindOverlaps returns the active reservations of existing that share at
// least one day with candidate, in chronological order.
//
// existing is expected to belong to a single workstation and be sorted by
// start date; reservations starting after candidate ends are skipped without
// being inspected.
func FindOverlaps(existing []Reservation, candidate calendar.Range) []Reservation {
	limit := sort.Search(len(existing), func(i int) bool {
		return existing[i].Period.Start.After(candidate.End)
	})

	var overlaps []Reservation
	for _, r := range existing[:limit] {
		if !r.IsActive() {
			continue
		}
		if r.Period.Overlaps(candidate) {
			overlaps = append(overlaps, r)
		}
	}
	return overlaps
}

// ExcludeID returns reservations without the one carrying id.
func ExcludeID(reservations []Reservation, id string) []Reservation {
	out := make([]Reservation, 0, len(reservations))
	for _, r := range reservations {
		if r.ID != id {
			out = append(out, r)
		}
	}
	return out
}

// MergeConflicts combines conflict lists, dropping repeats, in chronological order.
func MergeConflicts(lists ...[]Reservation) []Reservation {
	seen := make(map[string]struct{})
	var merged []Reservation
	for _, list := range lists {
		for _, r := range list {
			if _, ok := seen[r.ID]; ok {
				continue
			}
			seen[r.ID] = struct{}{}
			merged = append(merged, r)
		}
	}
	SortByStart(merged)
	return merged
}
