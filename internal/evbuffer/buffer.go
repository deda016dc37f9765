package evbuffer

import (
	"context"
	"sync"
	"time"

	"github.com/dreamware/accessmanager/internal/depfree"
	"github.com/dreamware/accessmanager/internal/event"
)

// Persister is the downstream internal/temporal dependency a Buffer hands
// merge-sorted batches to on flush. Kept as a narrow interface here so
// this package never imports internal/temporal directly.
type Persister interface {
	Persist(ctx context.Context, batch []event.Event) error
}

// Buffer is the Validated Buffer of spec.md §4.4: one FIFO queue per
// event.Kind in event.AllQueueKinds, a sequence lock handing out strictly
// increasing sequence numbers, and the Validator -> MetricLogger ->
// GraphStore pipeline every accepted event runs through before it is
// queued for durable persistence.
type Buffer struct {
	queues map[event.Kind]*queue

	seqMu  sync.Mutex
	seqNum int64

	now func() time.Time

	validator   stage
	metricStage stage
	graphStage  stage

	persister Persister
}

// New builds a Buffer that applies accepted mutations to mgr's live graph
// and will eventually hand flushed batches to persister.
func New(mgr *depfree.Manager, persister Persister) *Buffer {
	b := &Buffer{
		queues:    make(map[event.Kind]*queue, len(event.AllQueueKinds)),
		now:       time.Now,
		validator: validatorStage{},
		persister: persister,
	}
	for _, k := range event.AllQueueKinds {
		b.queues[k] = &queue{}
	}
	b.metricStage = metricLoggerStage{buf: b}
	b.graphStage = graphStoreStage{mgr: mgr}
	return b
}

// counted increments kind's lock-free counter. Called by metricLoggerStage.
func (b *Buffer) counted(kind event.Kind) {
	b.queues[kind].count.Add(1)
}

// QueueDepth returns the lock-free atomic count for kind, the signal
// internal/flushpolicy's Size strategy reads.
func (b *Buffer) QueueDepth(kind event.Kind) uint64 {
	q, ok := b.queues[kind]
	if !ok {
		return 0
	}
	return q.count.Load()
}

// TotalDepth sums QueueDepth across every kind.
func (b *Buffer) TotalDepth() uint64 {
	var total uint64
	for _, k := range event.AllQueueKinds {
		total += b.QueueDepth(k)
	}
	return total
}

// Enqueue validates, applies, and buffers ev, implementing spec.md §4.4's
// full locking protocol:
//
//  1. Determine every queue ev's kind references (its own plus any
//     prerequisite element kinds) and acquire their locks in the fixed
//     global order from event.AllQueueKinds.
//  2. While those locks are held, take the sequence lock just long enough
//     to assign the next Sequence and stamp OccurredAt, atomically.
//  3. Run Validator, then MetricLogger, then GraphStore.
//  4. Push the sequenced event onto its own queue.
//  5. Release the locks, in reverse acquisition order.
//
// OccurredAt on the incoming ev is ignored: the Buffer is the sole
// authority on event time, the same way it is the sole authority on
// Sequence, so a caller (e.g. internal/api's HTTP layer) can never race
// the sequence lock by pre-stamping its own clock reading.
func (b *Buffer) Enqueue(ctx context.Context, ev event.Event) (event.Event, error) {
	kinds := locksFor(ev.Kind)
	locks := make([]*sync.Mutex, len(kinds))
	for i, k := range kinds {
		locks[i] = &b.queues[k].mu
	}
	for _, l := range locks {
		l.Lock()
	}
	defer func() {
		for i := len(locks) - 1; i >= 0; i-- {
			locks[i].Unlock()
		}
	}()

	ev = b.sequence(ev)

	if err := b.validator.process(ctx, ev); err != nil {
		return event.Event{}, err
	}
	if err := b.metricStage.process(ctx, ev); err != nil {
		return event.Event{}, err
	}
	if err := b.graphStage.process(ctx, ev); err != nil {
		b.queues[ev.Kind].count.Add(^uint64(0)) // undo metricStage's increment
		return event.Event{}, err
	}

	b.queues[ev.Kind].push(ev)
	return ev, nil
}

// sequence assigns the next strictly increasing sequence number and
// stamps OccurredAt with the buffer's clock, both under the same
// critical section so the two are never observably out of step. Caller
// must already hold every queue lock ev's kind requires, per spec.md
// §4.4 rule 2. The first event a Buffer ever sequences gets 0, per
// spec.md §8 invariant 2 ("strictly increasing and contiguous from 0").
func (b *Buffer) sequence(ev event.Event) event.Event {
	b.seqMu.Lock()
	seq := b.seqNum
	b.seqNum++
	occurredAt := b.now()
	b.seqMu.Unlock()

	ev = ev.WithSequence(seq)
	ev.OccurredAt = occurredAt
	return ev
}
