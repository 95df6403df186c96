package testfixtures

import (
	"fmt"
	"sync"
)

// IDGenerator hands out sequential identifiers ("booking-1", "booking-2",
// ...) in place of the uuid generators the binary wires in. Deterministic
// ids let tests assert on anchor/child linkage within a series and on group
// membership without capturing values first.
type IDGenerator struct {
	mu      sync.Mutex
	prefix  string
	counter uint64
}

// NewIDGenerator constructs a generator for the given prefix. An empty
// prefix defaults to "id"; tests building bookings typically pass "booking"
// or "group" so failures read like the records they describe.
func NewIDGenerator(prefix string) *IDGenerator {
	if prefix == "" {
		prefix = "id"
	}
	return &IDGenerator{prefix: prefix}
}

// Next returns the next identifier in the sequence.
func (g *IDGenerator) Next() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.counter++
	return fmt.Sprintf("%s-%d", g.prefix, g.counter)
}

// NextFunc returns Next bound as an injectable func. A nil generator yields
// empty identifiers, mirroring the services' own nil-generator fallback.
func (g *IDGenerator) NextFunc() func() string {
	if g == nil {
		return func() string { return "" }
	}
	return g.Next
}

// SetPrefix switches the prefix for identifiers issued from now on, e.g.
// from "booking" to "session" partway through a scenario.
func (g *IDGenerator) SetPrefix(prefix string) {
	g.mu.Lock()
	g.prefix = prefix
	g.mu.Unlock()
}

// SetCounter rewinds or fast-forwards the sequence so a subtest can restart
// numbering without constructing a fresh generator.
func (g *IDGenerator) SetCounter(counter uint64) {
	g.mu.Lock()
	g.counter = counter
	g.mu.Unlock()
}
