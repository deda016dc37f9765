package temporal_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/dreamware/accessmanager/internal/event"
	"github.com/dreamware/accessmanager/internal/temporal"
)

func TestEventCacheSinceReturnsEventsAfterSequence(t *testing.T) {
	c := temporal.NewEventCache(10)
	for i := int64(1); i <= 5; i++ {
		c.Observe(event.New(event.KindUser, event.ActionAdd, time.Now(), event.UserPayload{User: "u"}).WithSequence(i))
	}

	got, ok := c.Since(2)
	assert.True(t, ok)
	assert.Len(t, got, 3)
	assert.Equal(t, int64(3), got[0].Sequence)
}

func TestEventCacheEvictsOldestWhenOverCapacity(t *testing.T) {
	c := temporal.NewEventCache(2)
	for i := int64(1); i <= 3; i++ {
		c.Observe(event.New(event.KindUser, event.ActionAdd, time.Now(), event.UserPayload{User: "u"}).WithSequence(i))
	}

	assert.Equal(t, 2, c.Len())
	got, ok := c.Since(0)
	assert.False(t, ok) // oldest surviving entry (seq 2) is past fromSeq+1, cache can't vouch for seq 1
	assert.Nil(t, got)
}

func TestEventCacheSinceOnEmptyCacheAtZeroIsOK(t *testing.T) {
	c := temporal.NewEventCache(10)
	got, ok := c.Since(0)
	assert.True(t, ok)
	assert.Empty(t, got)
}
