package application

import (
	"strings"
	"sync"
	"time"
)

// availabilityCache stores recently computed slot availability answers to
// avoid repeated conflict scans for identical probes while bookings remain
// unchanged. Any write to the booking table invalidates the whole cache.
type availabilityCache struct {
	mu         sync.RWMutex
	now        func() time.Time
	ttl        time.Duration
	maxEntries int
	entries    map[string]availabilityCacheEntry
}

type availabilityCacheEntry struct {
	result    AvailabilityResult
	expiresAt time.Time
}

func newAvailabilityCache(ttl time.Duration, maxEntries int, now func() time.Time) *availabilityCache {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	if maxEntries <= 0 {
		maxEntries = 256
	}
	if now == nil {
		now = time.Now
	}
	return &availabilityCache{
		now:        now,
		ttl:        ttl,
		maxEntries: maxEntries,
		entries:    make(map[string]availabilityCacheEntry),
	}
}

func (c *availabilityCache) Get(key string) (AvailabilityResult, bool) {
	if c == nil {
		return AvailabilityResult{}, false
	}
	c.mu.RLock()
	entry, ok := c.entries[key]
	c.mu.RUnlock()
	if !ok {
		return AvailabilityResult{}, false
	}
	if c.now().After(entry.expiresAt) {
		c.mu.Lock()
		delete(c.entries, key)
		c.mu.Unlock()
		return AvailabilityResult{}, false
	}
	return cloneAvailability(entry.result), true
}

func (c *availabilityCache) Store(key string, result AvailabilityResult) {
	if c == nil {
		return
	}
	expiry := c.now().Add(c.ttl)

	c.mu.Lock()
	defer c.mu.Unlock()

	c.cleanupLocked()
	if len(c.entries) >= c.maxEntries {
		c.evictOneLocked()
	}
	c.entries[key] = availabilityCacheEntry{result: cloneAvailability(result), expiresAt: expiry}
}

func (c *availabilityCache) Invalidate() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.entries = make(map[string]availabilityCacheEntry)
	c.mu.Unlock()
}

func (c *availabilityCache) cleanupLocked() {
	now := c.now()
	for key, entry := range c.entries {
		if now.After(entry.expiresAt) {
			delete(c.entries, key)
		}
	}
}

func (c *availabilityCache) evictOneLocked() {
	for key := range c.entries {
		delete(c.entries, key)
		return
	}
}

func cloneAvailability(result AvailabilityResult) AvailabilityResult {
	cloned := AvailabilityResult{Available: result.Available}
	if len(result.ConflictsWith) > 0 {
		cloned.ConflictsWith = make([]string, len(result.ConflictsWith))
		copy(cloned.ConflictsWith, result.ConflictsWith)
	}
	return cloned
}

func buildAvailabilityCacheKey(params AvailabilityParams) string {
	builder := strings.Builder{}
	builder.WriteString(params.RoomID)
	builder.WriteString("|")
	builder.WriteString(params.Date.Format("2006-01-02"))
	builder.WriteString("|")
	builder.WriteString(params.StartTime)
	builder.WriteString("|")
	builder.WriteString(params.EndTime)
	return builder.String()
}
