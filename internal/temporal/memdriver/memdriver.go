// Package memdriver is an in-memory internal/temporal.StorageDriver,
// adapted from internal/storage.MemoryStore: a sync.RWMutex-guarded slice
// in place of MemoryStore's map, with the same copy-on-read discipline so
// a caller mutating a returned event can never corrupt the driver's
// state. Suitable for tests and single-node deployments without
// persistence across restarts.
package memdriver

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/dreamware/accessmanager/internal/event"
	"github.com/dreamware/accessmanager/internal/temporal"
)

// Driver is an append-only, in-memory event log.
type Driver struct {
	mu     sync.RWMutex
	events []event.Event
	byID   map[string]int
}

// New returns an empty Driver.
func New() *Driver {
	return &Driver{byID: make(map[string]int)}
}

// Append records batch, in order, at the end of the log.
func (d *Driver) Append(_ context.Context, batch []event.Event) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	for _, ev := range batch {
		d.byID[ev.EventID.String()] = len(d.events)
		d.events = append(d.events, ev)
	}
	return nil
}

// ReadRange returns a copy of every event with Sequence in [fromSeq, toSeq].
func (d *Driver) ReadRange(_ context.Context, fromSeq, toSeq int64) ([]event.Event, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	// d.events is already append-ordered, and Sequence only increases
	// across appends (internal/evbuffer guarantees strictly increasing
	// sequence numbers), so a binary search finds the first event at or
	// after fromSeq and the scan stops once it passes toSeq.
	idx := sort.Search(len(d.events), func(i int) bool { return d.events[i].Sequence >= fromSeq })

	var out []event.Event
	for ; idx < len(d.events) && d.events[idx].Sequence <= toSeq; idx++ {
		out = append(out, d.events[idx])
	}
	return out, nil
}

// FindByID returns a copy of the event with the given ID.
func (d *Driver) FindByID(_ context.Context, id string) (event.Event, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	idx, ok := d.byID[id]
	if !ok {
		return event.Event{}, temporal.ErrNotFound
	}
	return d.events[idx], nil
}

// FindAtOrBefore returns the most recent event with OccurredAt <= at.
func (d *Driver) FindAtOrBefore(_ context.Context, at time.Time) (event.Event, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	var best *event.Event
	for i := range d.events {
		ev := &d.events[i]
		if ev.OccurredAt.After(at) {
			continue
		}
		if best == nil || ev.OccurredAt.After(best.OccurredAt) ||
			(ev.OccurredAt.Equal(best.OccurredAt) && ev.Sequence > best.Sequence) {
			best = ev
		}
	}
	if best == nil {
		return event.Event{}, temporal.ErrNotFound
	}
	return *best, nil
}
