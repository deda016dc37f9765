package evbuffer

import (
	"context"
	"sort"

	"github.com/dreamware/accessmanager/internal/event"
)

// Flush implements spec.md §4.4's flush protocol:
//
//  1. Snapshot the last sequence number handed out, under the sequence
//     lock; this is the flush's high-water mark.
//  2. Drain every queue of entries with Sequence <= that mark, without
//     holding the sequence lock while draining (the queues have their
//     own locks).
//  3. Merge the drained batches into one slice ordered by Sequence, so
//     concurrently enqueued events from different kinds are persisted in
//     the order the sequence lock actually handed out.
//  4. Hand the merged batch to the persister.
//  5. On success, the drained entries are gone for good. On failure,
//     re-prepend each kind's drained entries to the head of its own
//     queue and surface a *PersistFailed — the next flush will retry
//     them first, in their original relative order.
func (b *Buffer) Flush(ctx context.Context) error {
	b.seqMu.Lock()
	maxSeq := b.seqNum - 1 // seqNum is the next number to hand out
	b.seqMu.Unlock()

	drainedByKind := make(map[event.Kind][]event.Event, len(event.AllQueueKinds))
	var merged []event.Event
	for _, k := range event.AllQueueKinds {
		drained := b.queues[k].drain(maxSeq)
		if len(drained) == 0 {
			continue
		}
		drainedByKind[k] = drained
		merged = append(merged, drained...)
	}
	if len(merged) == 0 {
		return nil
	}

	sort.Slice(merged, func(i, j int) bool { return merged[i].Sequence < merged[j].Sequence })

	if err := b.persister.Persist(ctx, merged); err != nil {
		for k, drained := range drainedByKind {
			b.queues[k].restore(drained)
		}
		return &PersistFailed{Kind: "batch", Cause: err}
	}
	return nil
}
