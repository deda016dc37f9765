package memdriver_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dreamware/accessmanager/internal/event"
	"github.com/dreamware/accessmanager/internal/temporal/memdriver"
)

func TestReadRangeReturnsOnlyEventsInBounds(t *testing.T) {
	d := memdriver.New()
	ctx := context.Background()
	now := time.Now()

	batch := []event.Event{
		event.New(event.KindUser, event.ActionAdd, now, event.UserPayload{User: "a"}).WithSequence(1),
		event.New(event.KindUser, event.ActionAdd, now, event.UserPayload{User: "b"}).WithSequence(2),
		event.New(event.KindUser, event.ActionAdd, now, event.UserPayload{User: "c"}).WithSequence(3),
	}
	require.NoError(t, d.Append(ctx, batch))

	got, err := d.ReadRange(ctx, 2, 3)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, int64(2), got[0].Sequence)
	assert.Equal(t, int64(3), got[1].Sequence)
}

func TestFindAtOrBeforePicksMostRecentEligibleEvent(t *testing.T) {
	d := memdriver.New()
	ctx := context.Background()
	t0 := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	t1 := t0.Add(time.Hour)
	t2 := t0.Add(2 * time.Hour)

	require.NoError(t, d.Append(ctx, []event.Event{
		event.New(event.KindUser, event.ActionAdd, t0, event.UserPayload{User: "a"}).WithSequence(1),
		event.New(event.KindUser, event.ActionAdd, t2, event.UserPayload{User: "c"}).WithSequence(2),
	}))

	got, err := d.FindAtOrBefore(ctx, t1)
	require.NoError(t, err)
	assert.Equal(t, event.UserPayload{User: "a"}, got.Payload)
}

func TestAppendIsCopyIsolatedFromCallerMutation(t *testing.T) {
	d := memdriver.New()
	ctx := context.Background()
	ev := event.New(event.KindUser, event.ActionAdd, time.Now(), event.UserPayload{User: "a"}).WithSequence(1)
	batch := []event.Event{ev}
	require.NoError(t, d.Append(ctx, batch))

	batch[0] = event.Event{}

	got, err := d.FindByID(ctx, ev.EventID.String())
	require.NoError(t, err)
	assert.Equal(t, event.UserPayload{User: "a"}, got.Payload)
}
