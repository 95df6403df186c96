package testfixtures

import (
	"sync"
	"time"
)

// Clock is a hand-driven time source for reservation tests. Services take a
// now func; handing them a Clock pins every CreatedAt/UpdatedAt stamp and
// session expiry to a value the test controls, so assertions can compare
// timestamps exactly instead of windowing around time.Now.
type Clock struct {
	mu      sync.Mutex
	current time.Time
}

// NewClock returns a clock pinned to start. A zero start falls back to
// ReferenceTime so fixtures and services agree on the default instant.
func NewClock(start time.Time) *Clock {
	if start.IsZero() {
		start = ReferenceTime()
	}
	return &Clock{current: start}
}

// Now returns the pinned instant. It satisfies the now-func shape the
// application services expect.
func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}

// NowFunc returns Now bound as an injectable func. A nil clock degrades to
// the real time.Now so optional wiring stays safe.
func (c *Clock) NowFunc() func() time.Time {
	if c == nil {
		return time.Now
	}
	return c.Now
}

// Set repins the clock to t, e.g. to jump past a session TTL.
func (c *Clock) Set(t time.Time) {
	c.mu.Lock()
	c.current = t
	c.mu.Unlock()
}

// Advance moves the clock forward by d and returns the new instant. Tests
// use it to simulate time passing between a booking request and its decision.
func (c *Clock) Advance(d time.Duration) time.Time {
	c.mu.Lock()
	c.current = c.current.Add(d)
	updated := c.current
	c.mu.Unlock()
	return updated
}

// AdvanceDays moves the clock forward by whole calendar days, matching how
// occurrence dates step through a series.
func (c *Clock) AdvanceDays(days int) time.Time {
	c.mu.Lock()
	c.current = c.current.AddDate(0, 0, days)
	updated := c.current
	c.mu.Unlock()
	return updated
}

// Current is a readability alias for Now in assertions that only observe.
func (c *Clock) Current() time.Time {
	return c.Now()
}
