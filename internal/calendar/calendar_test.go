package calendar

import (
	"encoding/json"
	"errors"
	"reflect"
	"testing"
	"time"
)

func d(value string) Date { return MustParseDate(value) }

func rng(start, end string) Range { return Range{Start: d(start), End: d(end)} }

func TestDateArithmetic(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		from string
		days int
		want string
	}{
		{name: "month boundary", from: "2024-01-31", days: 1, want: "2024-02-01"},
		{name: "leap day", from: "2024-02-28", days: 1, want: "2024-02-29"},
		{name: "non leap year", from: "2023-02-28", days: 1, want: "2023-03-01"},
		{name: "year boundary", from: "2024-12-31", days: 1, want: "2025-01-01"},
		{name: "backwards over year", from: "2025-01-01", days: -1, want: "2024-12-31"},
		{name: "many days", from: "2024-01-01", days: 366, want: "2025-01-01"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			got := d(tc.from).AddDays(tc.days)
			if got != d(tc.want) {
				t.Fatalf("expected %s, got %s", tc.want, got)
			}
			if back := d(tc.from).DaysUntil(got); back != tc.days {
				t.Fatalf("expected DaysUntil %d, got %d", tc.days, back)
			}
		})
	}
}

func TestParseDateRejectsInvalidInput(t *testing.T) {
	t.Parallel()

	for _, value := range []string{"", "2024-13-01", "2024-02-30", "02/01/2024", "2024-1-5"} {
		if _, err := ParseDate(value); !errors.Is(err, ErrInvalidDate) {
			t.Fatalf("expected ErrInvalidDate for %q, got %v", value, err)
		}
	}
}

func TestDateOfUsesLocation(t *testing.T) {
	t.Parallel()

	tokyo := time.FixedZone("JST", 9*60*60)
	instant := time.Date(2024, 3, 1, 20, 0, 0, 0, time.UTC)

	if got := Today(instant, tokyo); got != d("2024-03-02") {
		t.Fatalf("expected 2024-03-02 in JST, got %s", got)
	}
	if got := Today(instant, nil); got != d("2024-03-01") {
		t.Fatalf("expected 2024-03-01 in UTC, got %s", got)
	}
}

func TestDateTextRoundTrip(t *testing.T) {
	t.Parallel()

	payload := struct {
		Day Date `json:"day"`
	}{Day: d("2024-06-09")}

	raw, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(raw) != `{"day":"2024-06-09"}` {
		t.Fatalf("unexpected encoding %s", raw)
	}

	var decoded struct {
		Day Date `json:"day"`
	}
	if err := json.Unmarshal([]byte(`{"day":"2024-06-09"}`), &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if decoded.Day != payload.Day {
		t.Fatalf("expected %s, got %s", payload.Day, decoded.Day)
	}
}

func TestNewRangeValidation(t *testing.T) {
	t.Parallel()

	if _, err := NewRange(d("2024-01-05"), d("2024-01-04")); !errors.Is(err, ErrInvalidRange) {
		t.Fatalf("expected ErrInvalidRange for inverted range, got %v", err)
	}
	if _, err := NewRange(Date{}, d("2024-01-04")); !errors.Is(err, ErrInvalidRange) {
		t.Fatalf("expected ErrInvalidRange for unset start, got %v", err)
	}
	r, err := NewRange(d("2024-01-04"), d("2024-01-04"))
	if err != nil {
		t.Fatalf("expected single day range to be valid, got %v", err)
	}
	if r.Days() != 1 {
		t.Fatalf("expected 1 day, got %d", r.Days())
	}
}

func TestRangeRelations(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		a, b     Range
		overlap  bool
		adjacent bool
	}{
		{name: "shared single day", a: rng("2024-01-01", "2024-01-05"), b: rng("2024-01-05", "2024-01-09"), overlap: true},
		{name: "touching", a: rng("2024-01-01", "2024-01-04"), b: rng("2024-01-05", "2024-01-09"), adjacent: true},
		{name: "gap", a: rng("2024-01-01", "2024-01-03"), b: rng("2024-01-05", "2024-01-09")},
		{name: "nested", a: rng("2024-01-01", "2024-01-31"), b: rng("2024-01-10", "2024-01-12"), overlap: true},
		{name: "identical", a: rng("2024-01-10", "2024-01-12"), b: rng("2024-01-10", "2024-01-12"), overlap: true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if got := tc.a.Overlaps(tc.b); got != tc.overlap {
				t.Fatalf("expected overlap %v, got %v", tc.overlap, got)
			}
			if got := tc.b.Overlaps(tc.a); got != tc.overlap {
				t.Fatalf("expected symmetric overlap %v, got %v", tc.overlap, got)
			}
			if got := tc.a.Adjacent(tc.b); got != tc.adjacent {
				t.Fatalf("expected adjacent %v, got %v", tc.adjacent, got)
			}
		})
	}
}

func TestRangeSubtract(t *testing.T) {
	t.Parallel()

	base := rng("2024-01-01", "2024-01-10")

	tests := []struct {
		name  string
		other Range
		want  []Range
	}{
		{name: "middle", other: rng("2024-01-04", "2024-01-06"), want: []Range{rng("2024-01-01", "2024-01-03"), rng("2024-01-07", "2024-01-10")}},
		{name: "tail", other: rng("2024-01-08", "2024-01-15"), want: []Range{rng("2024-01-01", "2024-01-07")}},
		{name: "head", other: rng("2023-12-25", "2024-01-02"), want: []Range{rng("2024-01-03", "2024-01-10")}},
		{name: "everything", other: rng("2023-12-25", "2024-01-15"), want: nil},
		{name: "disjoint", other: rng("2024-02-01", "2024-02-02"), want: []Range{base}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			got := base.Subtract(tc.other)
			if !reflect.DeepEqual(got, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, got)
			}
		})
	}
}

func TestRangeIntersectAndContains(t *testing.T) {
	t.Parallel()

	a := rng("2024-01-01", "2024-01-10")
	got, ok := a.Intersect(rng("2024-01-08", "2024-01-20"))
	if !ok || got != rng("2024-01-08", "2024-01-10") {
		t.Fatalf("expected 2024-01-08..2024-01-10, got %v (ok=%v)", got, ok)
	}
	if _, ok := a.Intersect(rng("2024-01-11", "2024-01-20")); ok {
		t.Fatalf("expected no intersection")
	}
	if !a.Contains(rng("2024-01-01", "2024-01-10")) {
		t.Fatalf("expected range to contain itself")
	}
	if a.Contains(rng("2024-01-05", "2024-01-11")) {
		t.Fatalf("expected range not to contain overhanging range")
	}
	if !a.ContainsDate(d("2024-01-10")) || a.ContainsDate(d("2024-01-11")) {
		t.Fatalf("unexpected ContainsDate result at the end bound")
	}
}

func TestConsolidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		days []string
		want []Range
	}{
		{
			name: "merges consecutive days",
			days: []string{"2024-03-01", "2024-03-02", "2024-03-03"},
			want: []Range{rng("2024-03-01", "2024-03-03")},
		},
		{
			name: "keeps gaps apart",
			days: []string{"2024-03-05", "2024-03-01", "2024-03-02", "2024-03-09"},
			want: []Range{rng("2024-03-01", "2024-03-02"), SingleDay(d("2024-03-05")), SingleDay(d("2024-03-09"))},
		},
		{
			name: "collapses duplicates",
			days: []string{"2024-03-02", "2024-03-02", "2024-03-01", "2024-03-01"},
			want: []Range{rng("2024-03-01", "2024-03-02")},
		},
		{
			name: "crosses month and year",
			days: []string{"2024-12-31", "2025-01-01", "2024-12-30"},
			want: []Range{rng("2024-12-30", "2025-01-01")},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			days := make([]Date, len(tc.days))
			for i, v := range tc.days {
				days[i] = d(v)
			}
			got, err := Consolidate(days)
			if err != nil {
				t.Fatalf("Consolidate returned error: %v", err)
			}
			if !reflect.DeepEqual(got, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, got)
			}
			for i := 1; i < len(got); i++ {
				if got[i-1].Overlaps(got[i]) || got[i-1].Adjacent(got[i]) {
					t.Fatalf("expected disjoint non-adjacent ranges, got %v and %v", got[i-1], got[i])
				}
			}
		})
	}
}

func TestConsolidateRejectsEmptyAndUnset(t *testing.T) {
	t.Parallel()

	if _, err := Consolidate(nil); !errors.Is(err, ErrEmptySelection) {
		t.Fatalf("expected ErrEmptySelection, got %v", err)
	}
	if _, err := Consolidate([]Date{d("2024-01-01"), {}}); !errors.Is(err, ErrInvalidDate) {
		t.Fatalf("expected ErrInvalidDate, got %v", err)
	}
}
