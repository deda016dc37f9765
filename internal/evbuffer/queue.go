package evbuffer

import (
	"sort"
	"sync"
	"sync/atomic"

	"github.com/dreamware/accessmanager/internal/event"
)

// queue is one of the ten per-kind FIFO queues from spec.md §4.4. count is
// a lock-free atomic mirror of len(items), published for
// internal/flushpolicy to read without taking mu.
type queue struct {
	mu    sync.Mutex
	items []event.Event
	count atomic.Uint64
}

// push appends ev to the queue. Caller must already hold q.mu, as
// Buffer.Enqueue does for the whole pipeline run. It does not touch
// count: the MetricLogger pipeline stage increments the counter, and
// Enqueue takes that increment back if a later stage rejects the event.
func (q *queue) push(ev event.Event) {
	q.items = append(q.items, ev)
}

// drain moves every item with Sequence <= maxSeq out of the queue and
// returns it, leaving later items in place. Caller must not hold q.mu.
func (q *queue) drain(maxSeq int64) []event.Event {
	q.mu.Lock()
	defer q.mu.Unlock()

	var drained, remaining []event.Event
	for _, it := range q.items {
		if it.Sequence <= maxSeq {
			drained = append(drained, it)
		} else {
			remaining = append(remaining, it)
		}
	}
	q.items = remaining
	if len(drained) > 0 {
		q.count.Add(^uint64(len(drained) - 1)) // atomic subtract
	}
	return drained
}

// restore re-prepends previously drained items to the head of the queue,
// preserving their relative order, per spec.md §4.4 step 5's failure path.
func (q *queue) restore(items []event.Event) {
	if len(items) == 0 {
		return
	}
	q.mu.Lock()
	q.items = append(append([]event.Event{}, items...), q.items...)
	q.mu.Unlock()
	q.count.Add(uint64(len(items)))
}

// queueIndex maps each kind to its position in the fixed global lock
// order event.AllQueueKinds defines.
var queueIndex = func() map[event.Kind]int {
	m := make(map[event.Kind]int, len(event.AllQueueKinds))
	for i, k := range event.AllQueueKinds {
		m[k] = i
	}
	return m
}()

// prerequisiteKinds lists, for each edge kind, the node kinds whose queue
// locks must be held before the edge's own lock — spec.md §4.4 rule 3.
var prerequisiteKinds = map[event.Kind][]event.Kind{
	event.KindUserToGroup:      {event.KindUser, event.KindGroup},
	event.KindGroupToGroup:     {event.KindGroup},
	event.KindUserToComponent:  {event.KindUser},
	event.KindGroupToComponent: {event.KindGroup},
	event.KindEntity:           {event.KindEntityType},
	event.KindUserToEntity:     {event.KindUser, event.KindEntityType, event.KindEntity},
	event.KindGroupToEntity:    {event.KindGroup, event.KindEntityType, event.KindEntity},
}

// locksFor returns the kinds whose queue locks must be acquired to
// enqueue kind, in the fixed global top-down order (spec.md §4.4 rule 4).
func locksFor(kind event.Kind) []event.Kind {
	set := map[event.Kind]struct{}{kind: {}}
	for _, p := range prerequisiteKinds[kind] {
		set[p] = struct{}{}
	}
	out := make([]event.Kind, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool { return queueIndex[out[i]] < queueIndex[out[j]] })
	return out
}
