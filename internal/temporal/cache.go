package temporal

import (
	"sync"

	"github.com/dreamware/accessmanager/internal/event"
)

// EventCache is a bounded ring buffer holding the tail of the event log in
// memory, so a consumer asking for everything since a recent sequence
// number doesn't need to go through StorageDriver.ReadRange. Guarded by a
// single sync.RWMutex, the same concurrency model internal/storage.Store
// implementations use.
type EventCache struct {
	mu       sync.RWMutex
	capacity int
	items    []event.Event
}

// NewEventCache builds a cache holding at most capacity events.
func NewEventCache(capacity int) *EventCache {
	if capacity <= 0 {
		capacity = 1
	}
	return &EventCache{capacity: capacity}
}

// Observe records ev as having just been appended to the durable log,
// evicting the oldest entry if the cache is at capacity.
func (c *EventCache) Observe(ev event.Event) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.items = append(c.items, ev)
	if over := len(c.items) - c.capacity; over > 0 {
		c.items = c.items[over:]
	}
}

// ObserveBatch records every event in batch, in order.
func (c *EventCache) ObserveBatch(batch []event.Event) {
	for _, ev := range batch {
		c.Observe(ev)
	}
}

// Since returns every cached event with Sequence > fromSeq, and whether
// the cache's oldest entry is old enough to guarantee nothing was missed
// (i.e. the cache itself goes back far enough to cover fromSeq). When ok
// is false the caller must fall back to StorageDriver.ReadRange.
func (c *EventCache) Since(fromSeq int64) (events []event.Event, ok bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if len(c.items) == 0 {
		return nil, fromSeq == 0
	}
	if c.items[0].Sequence > fromSeq+1 {
		return nil, false
	}

	out := make([]event.Event, 0, len(c.items))
	for _, ev := range c.items {
		if ev.Sequence > fromSeq {
			out = append(out, ev)
		}
	}
	return out, true
}

// Len returns the number of events currently cached.
func (c *EventCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}
