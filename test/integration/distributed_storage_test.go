// Package integration exercises a coordinator and two shard nodes wired
// together the way cmd/coordinator and cmd/node assemble them, verifying
// that a mutation accepted by the coordinator is visible through a
// subsequent query routed to the owning shard.
package integration

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dreamware/accessmanager/internal/api"
	"github.com/dreamware/accessmanager/internal/depfree"
	"github.com/dreamware/accessmanager/internal/event"
	"github.com/dreamware/accessmanager/internal/evbuffer"
	"github.com/dreamware/accessmanager/internal/graphstore"
	"github.com/dreamware/accessmanager/internal/opcoordinator"
	"github.com/dreamware/accessmanager/internal/shardrouter"
)

type noopPersister struct{}

func (noopPersister) Persist(context.Context, []event.Event) error { return nil }

func newShardNode(t *testing.T) (*httptest.Server, *depfree.Manager) {
	t.Helper()
	mgr := depfree.New(graphstore.New())
	buf := evbuffer.New(mgr, noopPersister{})
	srv := httptest.NewServer(api.NewNodeRouter(api.NewNodeServer(mgr, buf, nil)))
	t.Cleanup(srv.Close)
	return srv, mgr
}

func eventPathFor(kind event.Kind) string { return "/internal/events/" + string(kind) }
func queryPathFor(kind event.Kind, key string) string {
	return "/internal/query/" + string(kind) + "/" + key
}

// TestUserGroupMembershipVisibleAcrossShards mirrors the two-shard
// distributed setup of the original test: a user shard and a group shard,
// each owning a disjoint DataElement, with the coordinator fanning a
// single mapping write out to both.
func TestUserGroupMembershipVisibleAcrossShards(t *testing.T) {
	userShard, _ := newShardNode(t)
	groupShard, _ := newShardNode(t)

	cs := shardrouter.NewConfigSet()
	cs.SetShards(shardrouter.DataElementUser, shardrouter.OperationEvent, []shardrouter.ShardConfig{{HashRangeStart: 0, BaseURL: userShard.URL}})
	cs.SetShards(shardrouter.DataElementUser, shardrouter.OperationQuery, []shardrouter.ShardConfig{{HashRangeStart: 0, BaseURL: userShard.URL}})
	cs.SetShards(shardrouter.DataElementGroup, shardrouter.OperationEvent, []shardrouter.ShardConfig{{HashRangeStart: 0, BaseURL: groupShard.URL}})
	cs.SetShards(shardrouter.DataElementGroup, shardrouter.OperationQuery, []shardrouter.ShardConfig{{HashRangeStart: 0, BaseURL: groupShard.URL}})

	router := shardrouter.NewRouter(cs, shardrouter.NewClientPool(2*time.Second))
	coord := opcoordinator.New(router, eventPathFor, queryPathFor)

	publicSrv := httptest.NewServer(api.NewPublicRouter(api.NewPublicServer(coord)))
	defer publicSrv.Close()

	ctx := context.Background()
	require.NoError(t, coord.AddUser(ctx, "alice"))
	require.NoError(t, coord.AddGroup(ctx, "admins"))
	require.NoError(t, coord.AddUserToGroup(ctx, "alice", "admins"))

	groups, err := coord.UserToGroups(ctx, "alice", false)
	require.NoError(t, err)
	assert.Contains(t, groups, graphstore.GroupID("admins"))

	resp, err := http.Post(publicSrv.URL+"/api/v1/users/bob", "application/json", nil)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusCreated, resp.StatusCode)
}

// TestDualWriteReconcilesDivergentShards exercises the user/group dual
// write path when the two owning shards start with different state (the
// user shard knows only alice, the group shard only admins): each shard's
// dependency-free manager synthesizes the missing side, so both writes
// succeed and the membership is visible from the user's shard.
func TestDualWriteReconcilesDivergentShards(t *testing.T) {
	userShard, userMgr := newShardNode(t)
	groupShard, groupMgr := newShardNode(t)

	require.NoError(t, userMgr.AddUser("alice"))
	require.NoError(t, groupMgr.AddGroup("admins"))

	cs := shardrouter.NewConfigSet()
	cs.SetShards(shardrouter.DataElementUser, shardrouter.OperationEvent, []shardrouter.ShardConfig{{HashRangeStart: 0, BaseURL: userShard.URL}})
	cs.SetShards(shardrouter.DataElementUser, shardrouter.OperationQuery, []shardrouter.ShardConfig{{HashRangeStart: 0, BaseURL: userShard.URL}})
	cs.SetShards(shardrouter.DataElementGroup, shardrouter.OperationEvent, []shardrouter.ShardConfig{{HashRangeStart: 0, BaseURL: groupShard.URL}})
	cs.SetShards(shardrouter.DataElementGroup, shardrouter.OperationQuery, []shardrouter.ShardConfig{{HashRangeStart: 0, BaseURL: groupShard.URL}})

	router := shardrouter.NewRouter(cs, shardrouter.NewClientPool(2*time.Second))
	coord := opcoordinator.New(router, eventPathFor, queryPathFor)

	require.NoError(t, coord.AddUserToGroup(context.Background(), "alice", "admins"))

	groups, err := coord.UserToGroups(context.Background(), "alice", false)
	require.NoError(t, err)
	assert.Contains(t, groups, graphstore.GroupID("admins"))
}
