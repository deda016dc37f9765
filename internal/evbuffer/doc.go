// Package evbuffer implements the Validated Buffer from spec.md §4.4: ten
// per-kind FIFO queues, a strict lock-acquisition order, sequence number
// assignment, an explicit Validator -> MetricLogger -> GraphStore pipeline
// per DESIGN NOTES §9 ("Event handler wrappers"), and the merge-sort flush
// protocol that hands ordered batches to internal/temporal.
//
// # Locking discipline
//
// Each queue has its own sync.Mutex; there is one additional sequence
// lock. To enqueue an event of kind K: acquire the queue locks of every
// element K references (in the fixed global order from event.AllQueueKinds)
// followed by K's own queue lock, then — still holding those — briefly
// take the sequence lock to assign the next sequence number and stamp
// OccurredAt. This prevents a prerequisite creation event from being
// concurrently enqueued with a higher sequence number than a dependent
// edge event yet flushed to the persister first.
//
// # Pipeline
//
// Every accepted event runs through three stages while the relevant
// queue locks are held: Validator checks required fields, MetricLogger
// increments the lock-free per-queue atomic counters
// internal/flushpolicy reads without locking, and the GraphStore stage
// applies the mutation to the live internal/depfree.Manager so reads are
// never stale relative to a successfully enqueued write. Only then is the
// event pushed onto its queue for later durable persistence.
package evbuffer
