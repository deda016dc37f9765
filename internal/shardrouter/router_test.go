package shardrouter_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dreamware/accessmanager/internal/shardrouter"
)

func newShardServer(t *testing.T, status int, body any) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(status)
		if body != nil {
			_ = json.NewEncoder(w).Encode(body)
		}
	}))
}

func TestLookupShardPicksGreatestFloor(t *testing.T) {
	cs := shardrouter.NewConfigSet()
	cs.SetShards(shardrouter.DataElementUser, shardrouter.OperationQuery, []shardrouter.ShardConfig{
		{HashRangeStart: 0, BaseURL: "http://shard0"},
		{HashRangeStart: 1000, BaseURL: "http://shard1"},
		{HashRangeStart: 2000, BaseURL: "http://shard2"},
	})

	shard, err := cs.LookupShard(shardrouter.DataElementUser, shardrouter.OperationQuery, 1500)
	require.NoError(t, err)
	assert.Equal(t, "http://shard1", shard.BaseURL)

	shard, err = cs.LookupShard(shardrouter.DataElementUser, shardrouter.OperationQuery, -5)
	require.NoError(t, err)
	assert.Equal(t, "http://shard0", shard.BaseURL)
}

func TestLookupShardUnconfiguredReturnsShardUnavailable(t *testing.T) {
	cs := shardrouter.NewConfigSet()
	_, err := cs.LookupShard(shardrouter.DataElementGroup, shardrouter.OperationEvent, 1)
	var unavailable *shardrouter.ShardUnavailable
	require.ErrorAs(t, err, &unavailable)
}

func TestRouteEventSucceedsAgainstConfiguredShard(t *testing.T) {
	srv := newShardServer(t, http.StatusOK, nil)
	defer srv.Close()

	cs := shardrouter.NewConfigSet()
	cs.SetShards(shardrouter.DataElementUser, shardrouter.OperationEvent, []shardrouter.ShardConfig{
		{HashRangeStart: 0, BaseURL: srv.URL},
	})
	router := shardrouter.NewRouter(cs, shardrouter.NewClientPool(time.Second))

	err := router.RouteEvent(context.Background(), shardrouter.DataElementUser, "alice", "/events", map[string]string{"user": "alice"})
	assert.NoError(t, err)
}

func TestRouteEventRetriesTransientServerError(t *testing.T) {
	attempts := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		if attempts < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	cs := shardrouter.NewConfigSet()
	cs.SetShards(shardrouter.DataElementUser, shardrouter.OperationEvent, []shardrouter.ShardConfig{
		{HashRangeStart: 0, BaseURL: srv.URL},
	})
	router := shardrouter.NewRouter(cs, shardrouter.NewClientPool(time.Second))
	router.MaxElapsed = 2 * time.Second

	err := router.RouteEvent(context.Background(), shardrouter.DataElementUser, "alice", "/events", nil)
	assert.NoError(t, err)
	assert.Equal(t, 3, attempts)
}

func TestRouteEventDoesNotRetryPermanentError(t *testing.T) {
	attempts := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	cs := shardrouter.NewConfigSet()
	cs.SetShards(shardrouter.DataElementUser, shardrouter.OperationEvent, []shardrouter.ShardConfig{
		{HashRangeStart: 0, BaseURL: srv.URL},
	})
	router := shardrouter.NewRouter(cs, shardrouter.NewClientPool(time.Second))

	err := router.RouteEvent(context.Background(), shardrouter.DataElementUser, "alice", "/events", nil)
	assert.Error(t, err)
	assert.Equal(t, 1, attempts)
}

func TestDualWriteUserToGroupSucceedsWhenBothShardsSucceed(t *testing.T) {
	userSrv := newShardServer(t, http.StatusOK, nil)
	defer userSrv.Close()
	groupSrv := newShardServer(t, http.StatusOK, nil)
	defer groupSrv.Close()

	cs := shardrouter.NewConfigSet()
	cs.SetShards(shardrouter.DataElementUser, shardrouter.OperationEvent, []shardrouter.ShardConfig{{HashRangeStart: 0, BaseURL: userSrv.URL}})
	cs.SetShards(shardrouter.DataElementGroup, shardrouter.OperationEvent, []shardrouter.ShardConfig{{HashRangeStart: 0, BaseURL: groupSrv.URL}})
	router := shardrouter.NewRouter(cs, shardrouter.NewClientPool(time.Second))

	reconcile, err := router.DualWriteUserToGroup(context.Background(), "alice", "admins", "/events/user", "/events/group", nil)
	require.NoError(t, err)
	assert.Nil(t, reconcile)
}

func TestDualWriteUserToGroupReturnsReconcileOnPartialFailure(t *testing.T) {
	userSrv := newShardServer(t, http.StatusOK, nil)
	defer userSrv.Close()
	groupSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer groupSrv.Close()

	cs := shardrouter.NewConfigSet()
	cs.SetShards(shardrouter.DataElementUser, shardrouter.OperationEvent, []shardrouter.ShardConfig{{HashRangeStart: 0, BaseURL: userSrv.URL}})
	cs.SetShards(shardrouter.DataElementGroup, shardrouter.OperationEvent, []shardrouter.ShardConfig{{HashRangeStart: 0, BaseURL: groupSrv.URL}})
	router := shardrouter.NewRouter(cs, shardrouter.NewClientPool(time.Second))

	reconcile, err := router.DualWriteUserToGroup(context.Background(), "alice", "admins", "/events/user", "/events/group", nil)
	require.NoError(t, err)
	require.NotNil(t, reconcile)
	assert.Equal(t, userSrv.URL, reconcile.SucceededShard)
}

func TestFanOutUnionCombinesAllShardResults(t *testing.T) {
	shards := []shardrouter.ShardConfig{
		{HashRangeStart: 0, BaseURL: "a"},
		{HashRangeStart: 1, BaseURL: "b"},
	}
	out, err := shardrouter.FanOutUnion(context.Background(), shards, func(_ context.Context, s shardrouter.ShardConfig) (string, error) {
		return s.BaseURL, nil
	})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"a", "b"}, out)
}

func TestFanOutShortCircuitStopsOnFirstTrue(t *testing.T) {
	shards := []shardrouter.ShardConfig{
		{HashRangeStart: 0, BaseURL: "a"},
		{HashRangeStart: 1, BaseURL: "b"},
		{HashRangeStart: 2, BaseURL: "c"},
	}
	hit, err := shardrouter.FanOutShortCircuit(context.Background(), shards, func(_ context.Context, s shardrouter.ShardConfig) (bool, error) {
		return s.BaseURL == "b", nil
	})
	require.NoError(t, err)
	assert.True(t, hit)
}

func TestFanOutShortCircuitFalseWhenNoneMatch(t *testing.T) {
	shards := []shardrouter.ShardConfig{{HashRangeStart: 0, BaseURL: "a"}}
	hit, err := shardrouter.FanOutShortCircuit(context.Background(), shards, func(_ context.Context, s shardrouter.ShardConfig) (bool, error) {
		return false, nil
	})
	require.NoError(t, err)
	assert.False(t, hit)
}
