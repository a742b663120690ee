package testfixtures

import (
	"fmt"
	"sync"
	"time"

	"github.com/example/workstation-scheduler/internal/calendar"
)

// officeHour is the wall-clock hour SetDate moves the clock to.
const officeHour = 9

// Clock is a manually driven time source. The zero value is not usable; use NewClock.
type Clock struct {
	mu  sync.Mutex
	now time.Time
}

// NewClock starts a clock at start, or at ReferenceTime when start is zero.
func NewClock(start time.Time) *Clock {
	if start.IsZero() {
		start = ReferenceTime()
	}
	return &Clock{now: start}
}

// Now returns the instant the clock points at.
func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Current is Now, for assertions that read the clock rather than consume it.
func (c *Clock) Current() time.Time { return c.Now() }

// NowFunc returns Now for injection into services.
func (c *Clock) NowFunc() func() time.Time {
	if c == nil {
		return time.Now
	}
	return c.Now
}

// Advance moves the clock by d and returns the new instant.
func (c *Clock) Advance(d time.Duration) time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
	return c.now
}

// AdvanceDays moves the clock by whole days.
func (c *Clock) AdvanceDays(days int) time.Time {
	return c.Advance(time.Duration(days) * 24 * time.Hour)
}

// SetDate moves the clock to 09:00 UTC on day.
func (c *Clock) SetDate(day calendar.Date) time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = day.Time().Add(officeHour * time.Hour)
	return c.now
}

// Today is the calendar day of the clock in loc; nil means UTC.
func (c *Clock) Today(loc *time.Location) calendar.Date {
	if loc == nil {
		loc = time.UTC
	}
	return calendar.Today(c.Now(), loc)
}

// IDGenerator hands out "prefix-N" identifiers and remembers them.
type IDGenerator struct {
	mu     sync.Mutex
	prefix string
	issued []string
}

// NewIDGenerator returns a generator for prefix, "id" when empty.
func NewIDGenerator(prefix string) *IDGenerator {
	if prefix == "" {
		prefix = "id"
	}
	return &IDGenerator{prefix: prefix}
}

func (g *IDGenerator) Next() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	id := fmt.Sprintf("%s-%d", g.prefix, len(g.issued)+1)
	g.issued = append(g.issued, id)
	return id
}

// NextFunc returns Next for injection into services.
func (g *IDGenerator) NextFunc() func() string {
	return g.Next
}

// Issued lists the identifiers handed out so far, oldest first.
func (g *IDGenerator) Issued() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]string(nil), g.issued...)
}
