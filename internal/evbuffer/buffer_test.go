package evbuffer

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dreamware/accessmanager/internal/depfree"
	"github.com/dreamware/accessmanager/internal/event"
	"github.com/dreamware/accessmanager/internal/graphstore"
)

// fakePersister records every batch handed to it, optionally failing the
// first N calls to exercise the re-prepend-on-failure path.
type fakePersister struct {
	mu      sync.Mutex
	batches [][]event.Event
	failN   int
}

func (f *fakePersister) Persist(_ context.Context, batch []event.Event) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failN > 0 {
		f.failN--
		return errors.New("simulated storage outage")
	}
	cp := append([]event.Event{}, batch...)
	f.batches = append(f.batches, cp)
	return nil
}

func newTestBuffer(persister Persister) *Buffer {
	mgr := depfree.New(graphstore.New())
	return New(mgr, persister)
}

func TestEnqueueAppliesToLiveGraphBeforeFlush(t *testing.T) {
	persister := &fakePersister{}
	buf := newTestBuffer(persister)
	mgr := buf.graphStage.(graphStoreStage).mgr

	_, err := buf.Enqueue(context.Background(), event.New(event.KindUser, event.ActionAdd, time.Now(), event.UserPayload{User: "alice"}))
	require.NoError(t, err)

	assert.True(t, mgr.Graph().ContainsUser("alice"))
	assert.Equal(t, uint64(1), buf.QueueDepth(event.KindUser))
}

func TestEnqueueAssignsStrictlyIncreasingSequence(t *testing.T) {
	buf := newTestBuffer(&fakePersister{})
	ctx := context.Background()

	e1, err := buf.Enqueue(ctx, event.New(event.KindUser, event.ActionAdd, time.Time{}, event.UserPayload{User: "a"}))
	require.NoError(t, err)
	e2, err := buf.Enqueue(ctx, event.New(event.KindUser, event.ActionAdd, time.Time{}, event.UserPayload{User: "b"}))
	require.NoError(t, err)

	assert.Less(t, e1.Sequence, e2.Sequence)
}

func TestEnqueueFirstSequenceIsZero(t *testing.T) {
	buf := newTestBuffer(&fakePersister{})

	e, err := buf.Enqueue(context.Background(), event.New(event.KindUser, event.ActionAdd, time.Time{}, event.UserPayload{User: "alice"}))
	require.NoError(t, err)

	assert.Equal(t, int64(0), e.Sequence)
}

func TestEnqueueStampsOccurredAtFromItsOwnClockRegardlessOfInput(t *testing.T) {
	buf := newTestBuffer(&fakePersister{})
	fixed := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	buf.now = func() time.Time { return fixed }
	ctx := context.Background()

	callerSupplied := time.Date(1999, 12, 31, 0, 0, 0, 0, time.UTC)
	e, err := buf.Enqueue(ctx, event.New(event.KindUser, event.ActionAdd, callerSupplied, event.UserPayload{User: "alice"}))
	require.NoError(t, err)

	assert.True(t, e.OccurredAt.Equal(fixed))
}

func TestEnqueueValidationFailureDoesNotTouchGraphOrQueue(t *testing.T) {
	buf := newTestBuffer(&fakePersister{})

	_, err := buf.Enqueue(context.Background(), event.New(event.KindEntityType, event.ActionAdd, time.Now(), event.EntityTypePayload{EntityType: ""}))

	require.Error(t, err)
	var verr *ValidationFailed
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, uint64(0), buf.QueueDepth(event.KindEntityType))
}

func TestFlushMergesAcrossKindsInSequenceOrder(t *testing.T) {
	persister := &fakePersister{}
	buf := newTestBuffer(persister)
	ctx := context.Background()

	_, err := buf.Enqueue(ctx, event.New(event.KindUser, event.ActionAdd, time.Now(), event.UserPayload{User: "alice"}))
	require.NoError(t, err)
	_, err = buf.Enqueue(ctx, event.New(event.KindGroup, event.ActionAdd, time.Now(), event.GroupPayload{Group: "admins"}))
	require.NoError(t, err)
	_, err = buf.Enqueue(ctx, event.New(event.KindUserToGroup, event.ActionAdd, time.Now(), event.UserToGroupPayload{User: "alice", Group: "admins"}))
	require.NoError(t, err)

	require.NoError(t, buf.Flush(ctx))

	require.Len(t, persister.batches, 1)
	batch := persister.batches[0]
	require.Len(t, batch, 3)
	for i := 1; i < len(batch); i++ {
		assert.Less(t, batch[i-1].Sequence, batch[i].Sequence)
	}
	assert.Equal(t, uint64(0), buf.TotalDepth())
}

func TestFlushRestoresDrainedEventsOnPersistFailure(t *testing.T) {
	persister := &fakePersister{failN: 1}
	buf := newTestBuffer(persister)
	ctx := context.Background()

	_, err := buf.Enqueue(ctx, event.New(event.KindUser, event.ActionAdd, time.Now(), event.UserPayload{User: "alice"}))
	require.NoError(t, err)

	err = buf.Flush(ctx)
	require.Error(t, err)
	var perr *PersistFailed
	require.ErrorAs(t, err, &perr)

	assert.Equal(t, uint64(1), buf.QueueDepth(event.KindUser))

	require.NoError(t, buf.Flush(ctx))
	require.Len(t, persister.batches, 1)
	assert.Equal(t, uint64(0), buf.QueueDepth(event.KindUser))
}

func TestFlushOnlyDrainsUpToSnapshotSequence(t *testing.T) {
	persister := &fakePersister{}
	buf := newTestBuffer(persister)
	ctx := context.Background()

	_, err := buf.Enqueue(ctx, event.New(event.KindUser, event.ActionAdd, time.Now(), event.UserPayload{User: "alice"}))
	require.NoError(t, err)

	// Enqueue a second event from another goroutine, the way a concurrent
	// caller would, and wait for it before flushing.
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_, err := buf.Enqueue(ctx, event.New(event.KindUser, event.ActionAdd, time.Now(), event.UserPayload{User: "bob"}))
		assert.NoError(t, err)
	}()
	wg.Wait()

	require.NoError(t, buf.Flush(ctx))
	require.Len(t, persister.batches, 1)
	// Both events happened-before the flush call returned, so both must
	// have been captured by the snapshot; none should be left behind.
	assert.Equal(t, uint64(0), buf.TotalDepth())
}

func TestFlushWithNothingBufferedIsANoop(t *testing.T) {
	persister := &fakePersister{}
	buf := newTestBuffer(persister)

	require.NoError(t, buf.Flush(context.Background()))
	assert.Empty(t, persister.batches)
}
