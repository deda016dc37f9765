package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dreamware/accessmanager/internal/config"
	"github.com/dreamware/accessmanager/internal/event"
	"github.com/dreamware/accessmanager/internal/shardrouter"
)

func TestBuildConfigSetRoutesByElementAndOperation(t *testing.T) {
	cs, err := buildConfigSet([]config.ShardEntry{
		{Element: "user", Operation: "event", HashRangeStart: 0, BaseURL: "http://shard-a"},
		{Element: "user", Operation: "event", HashRangeStart: 1 << 30, BaseURL: "http://shard-b"},
		{Element: "group", Operation: "query", HashRangeStart: 0, BaseURL: "http://shard-c"},
	})
	require.NoError(t, err)

	shard, err := cs.LookupShard(shardrouter.DataElementUser, shardrouter.OperationEvent, 0)
	require.NoError(t, err)
	assert.Equal(t, "http://shard-a", shard.BaseURL)

	shard, err = cs.LookupShard(shardrouter.DataElementGroup, shardrouter.OperationQuery, 123)
	require.NoError(t, err)
	assert.Equal(t, "http://shard-c", shard.BaseURL)
}

func TestBuildConfigSetRejectsUnknownElement(t *testing.T) {
	_, err := buildConfigSet([]config.ShardEntry{{Element: "widget", Operation: "event", BaseURL: "http://x"}})
	assert.Error(t, err)
}

func TestBuildConfigSetRejectsUnknownOperation(t *testing.T) {
	_, err := buildConfigSet([]config.ShardEntry{{Element: "user", Operation: "delete", BaseURL: "http://x"}})
	assert.Error(t, err)
}

func TestEventAndQueryPathsMatchNodeRouterRoutes(t *testing.T) {
	assert.Equal(t, "/internal/events/user", eventPathFor(event.KindUser))
	assert.Equal(t, "/internal/query/user_to_group/alice", queryPathFor(event.KindUserToGroup, "alice"))
}
