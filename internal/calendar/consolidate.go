package calendar

import (
	"fmt"
	"sort"
)

// Consolidate merges an arbitrary set of days into the fewest ranges that
// cover exactly those days. Duplicates are ignored and input order does not
// matter. The result is chronological, and no two ranges overlap or touch.
func Consolidate(days []Date) ([]Range, error) {
	if len(days) == 0 {
		return nil, ErrEmptySelection
	}

	sorted := make([]Date, len(days))
	copy(sorted, days)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Before(sorted[j]) })

	if sorted[0].IsZero() {
		return nil, fmt.Errorf("%w: selection contains an unset date", ErrInvalidDate)
	}

	ranges := make([]Range, 0, 1)
	current := SingleDay(sorted[0])
	for _, d := range sorted[1:] {
		switch {
		case d == current.End:
			continue
		case d == current.End.Next():
			current.End = d
		default:
			ranges = append(ranges, current)
			current = SingleDay(d)
		}
	}
	ranges = append(ranges, current)
	return ranges, nil
}
