package temporal_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dreamware/accessmanager/internal/depfree"
	"github.com/dreamware/accessmanager/internal/event"
	"github.com/dreamware/accessmanager/internal/graphstore"
	"github.com/dreamware/accessmanager/internal/temporal"
	"github.com/dreamware/accessmanager/internal/temporal/memdriver"
)

func seq(e event.Event, n int64) event.Event { return e.WithSequence(n) }

func TestPersistAppendsBatchToDriver(t *testing.T) {
	driver := memdriver.New()
	p := temporal.NewPersister(driver)
	ctx := context.Background()

	e1 := seq(event.New(event.KindUser, event.ActionAdd, time.Now(), event.UserPayload{User: "alice"}), 1)
	require.NoError(t, p.Persist(ctx, []event.Event{e1}))

	got, err := driver.ReadRange(ctx, 0, 10)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, e1.EventID, got[0].EventID)
}

func TestReplayRebuildsGraphState(t *testing.T) {
	driver := memdriver.New()
	p := temporal.NewPersister(driver)
	ctx := context.Background()
	now := time.Now()

	batch := []event.Event{
		seq(event.New(event.KindUser, event.ActionAdd, now, event.UserPayload{User: "alice"}), 1),
		seq(event.New(event.KindGroup, event.ActionAdd, now, event.GroupPayload{Group: "admins"}), 2),
		seq(event.New(event.KindUserToGroup, event.ActionAdd, now, event.UserToGroupPayload{User: "alice", Group: "admins"}), 3),
	}
	require.NoError(t, p.Persist(ctx, batch))

	mgr := depfree.New(graphstore.New())
	require.NoError(t, p.Replay(ctx, mgr, 0, 3))

	groups := mgr.Graph().UserToGroups("alice", false)
	assert.Contains(t, groups, graphstore.GroupID("admins"))
}

func TestReplayAsOfUsesFindAtOrBefore(t *testing.T) {
	driver := memdriver.New()
	p := temporal.NewPersister(driver)
	ctx := context.Background()

	t0 := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	t1 := t0.Add(time.Hour)

	batch := []event.Event{
		seq(event.New(event.KindUser, event.ActionAdd, t0, event.UserPayload{User: "alice"}), 1),
		seq(event.New(event.KindUser, event.ActionAdd, t1, event.UserPayload{User: "bob"}), 2),
	}
	require.NoError(t, p.Persist(ctx, batch))

	mgr := depfree.New(graphstore.New())
	require.NoError(t, p.ReplayAsOf(ctx, mgr, t0))

	assert.True(t, mgr.Graph().ContainsUser("alice"))
	assert.False(t, mgr.Graph().ContainsUser("bob"))
}

func TestReplayAsOfEventYieldsExactStateAtThatEvent(t *testing.T) {
	driver := memdriver.New()
	p := temporal.NewPersister(driver)
	ctx := context.Background()
	now := time.Now()

	var markerID string
	var batch []event.Event
	var n int64
	for i := 0; i < 10; i++ {
		n++
		user := graphstore.UserID("user-" + string(rune('a'+i)))
		ev := seq(event.New(event.KindUser, event.ActionAdd, now, event.UserPayload{User: user}), n)
		batch = append(batch, ev)
		if i == 9 {
			markerID = ev.EventID.String()
		}
	}
	require.NoError(t, p.Persist(ctx, batch))

	var more []event.Event
	for i := 0; i < 5; i++ {
		n++
		group := graphstore.GroupID("group-" + string(rune('a'+i)))
		more = append(more, seq(event.New(event.KindGroup, event.ActionAdd, now, event.GroupPayload{Group: group}), n))
	}
	require.NoError(t, p.Persist(ctx, more))

	mgr := depfree.New(graphstore.New())
	require.NoError(t, p.ReplayAsOfEvent(ctx, mgr, markerID))

	for i := 0; i < 10; i++ {
		assert.True(t, mgr.Graph().ContainsUser(graphstore.UserID("user-"+string(rune('a'+i)))))
	}
	for i := 0; i < 5; i++ {
		assert.False(t, mgr.Graph().ContainsGroup(graphstore.GroupID("group-"+string(rune('a'+i)))))
	}
}

func TestReplayAsOfEventReturnsNotFoundForUnknownID(t *testing.T) {
	driver := memdriver.New()
	p := temporal.NewPersister(driver)

	err := p.ReplayAsOfEvent(context.Background(), depfree.New(graphstore.New()), "00000000-0000-0000-0000-000000000000")
	require.Error(t, err)
	assert.ErrorIs(t, err, temporal.ErrNotFound)
}

func TestPersistNotifiesSubscribersOfEachBatch(t *testing.T) {
	driver := memdriver.New()
	p := temporal.NewPersister(driver)
	cache := temporal.NewEventCache(10)
	p.Subscribe(cache)
	ctx := context.Background()

	e1 := seq(event.New(event.KindUser, event.ActionAdd, time.Now(), event.UserPayload{User: "alice"}), 1)
	require.NoError(t, p.Persist(ctx, []event.Event{e1}))

	got, ok := cache.Since(0)
	require.True(t, ok)
	require.Len(t, got, 1)
	assert.Equal(t, e1.EventID, got[0].EventID)
}

func TestFindByIDReturnsNotFoundForUnknownID(t *testing.T) {
	driver := memdriver.New()
	_, err := driver.FindByID(context.Background(), "00000000-0000-0000-0000-000000000000")
	assert.ErrorIs(t, err, temporal.ErrNotFound)
}
