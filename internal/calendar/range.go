package calendar

import (
	"fmt"
	"sort"
)

// Range is an inclusive span of calendar days. A valid range has both bounds
// set and Start on or before End.
type Range struct {
	Start Date `json:"start_date"`
	End   Date `json:"end_date"`
}

// NewRange validates and returns the range [start, end].
func NewRange(start, end Date) (Range, error) {
	r := Range{Start: start, End: end}
	if err := r.Validate(); err != nil {
		return Range{}, err
	}
	return r, nil
}

// SingleDay returns the one-day range [d, d].
func SingleDay(d Date) Range {
	return Range{Start: d, End: d}
}

// Validate reports whether the range is well formed.
func (r Range) Validate() error {
	switch {
	case r.Start.IsZero():
		return fmt.Errorf("%w: start date is required", ErrInvalidRange)
	case r.End.IsZero():
		return fmt.Errorf("%w: end date is required", ErrInvalidRange)
	case r.Start.After(r.End):
		return fmt.Errorf("%w: start %s is after end %s", ErrInvalidRange, r.Start, r.End)
	}
	return nil
}

// Days returns the number of days covered, counting both bounds.
func (r Range) Days() int {
	return r.Start.DaysUntil(r.End) + 1
}

// Dates lists every day of the range in order.
func (r Range) Dates() []Date {
	if r.Start.After(r.End) {
		return nil
	}
	out := make([]Date, 0, r.Days())
	for d := r.Start; !d.After(r.End); d = d.Next() {
		out = append(out, d)
	}
	return out
}

// Overlaps reports whether the two ranges share at least one day.
func (r Range) Overlaps(other Range) bool {
	return !r.Start.After(other.End) && !other.Start.After(r.End)
}

// Adjacent reports whether one range ends the day before the other starts.
func (r Range) Adjacent(other Range) bool {
	return r.End.Next() == other.Start || other.End.Next() == r.Start
}

// Contains reports whether other lies entirely within r.
func (r Range) Contains(other Range) bool {
	return !other.Start.Before(r.Start) && !other.End.After(r.End)
}

// ContainsDate reports whether d is one of the days of r.
func (r Range) ContainsDate(d Date) bool {
	return !d.Before(r.Start) && !d.After(r.End)
}

// Intersect returns the shared days of both ranges.
func (r Range) Intersect(other Range) (Range, bool) {
	if !r.Overlaps(other) {
		return Range{}, false
	}
	return Range{Start: Max(r.Start, other.Start), End: Min(r.End, other.End)}, true
}

// Subtract returns the parts of r not covered by other, in chronological
// order. The result has zero, one or two ranges.
func (r Range) Subtract(other Range) []Range {
	if !r.Overlaps(other) {
		return []Range{r}
	}
	var out []Range
	if r.Start.Before(other.Start) {
		out = append(out, Range{Start: r.Start, End: other.Start.Prev()})
	}
	if r.End.After(other.End) {
		out = append(out, Range{Start: other.End.Next(), End: r.End})
	}
	return out
}

// WithEnd returns a copy of r ending on end.
func (r Range) WithEnd(end Date) Range {
	return Range{Start: r.Start, End: end}
}

// WithStart returns a copy of r starting on start.
func (r Range) WithStart(start Date) Range {
	return Range{Start: start, End: r.End}
}

func (r Range) String() string {
	if r.Start == r.End {
		return r.Start.String()
	}
	return r.Start.String() + ".." + r.End.String()
}

// SortRanges orders ranges by start, then end.
func SortRanges(ranges []Range) {
	sort.Slice(ranges, func(i, j int) bool {
		if c := ranges[i].Start.Compare(ranges[j].Start); c != 0 {
			return c < 0
		}
		return ranges[i].End.Before(ranges[j].End)
	})
}
