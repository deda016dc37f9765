package api_test

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dreamware/accessmanager/internal/api"
	"github.com/dreamware/accessmanager/internal/event"
	"github.com/dreamware/accessmanager/internal/opcoordinator"
	"github.com/dreamware/accessmanager/internal/shardrouter"
)

func pathFor(kind event.Kind) string { return "/internal/events/" + string(kind) }
func queryPathFor(kind event.Kind, key string) string {
	return "/internal/query/" + string(kind) + "/" + key
}

func newPublicTestRouter(shardURL string) *httptest.Server {
	cs := shardrouter.NewConfigSet()
	for _, el := range []shardrouter.DataElement{shardrouter.DataElementUser, shardrouter.DataElementGroup, shardrouter.DataElementGroupToGroup} {
		for _, op := range []shardrouter.Operation{shardrouter.OperationEvent, shardrouter.OperationQuery} {
			cs.SetShards(el, op, []shardrouter.ShardConfig{{HashRangeStart: 0, BaseURL: shardURL}})
		}
	}
	router := shardrouter.NewRouter(cs, shardrouter.NewClientPool(time.Second))
	coord := opcoordinator.New(router, pathFor, queryPathFor)
	return httptest.NewServer(api.NewPublicRouter(api.NewPublicServer(coord)))
}

func TestPublicAddUserReturns201(t *testing.T) {
	shard := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer shard.Close()

	ts := newPublicTestRouter(shard.URL)
	defer ts.Close()

	resp, err := http.Post(ts.URL+"/api/v1/users/alice", "application/json", nil)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusCreated, resp.StatusCode)
}

func TestPublicGroupToGroupCycleReturns409(t *testing.T) {
	shard := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"error":{"code":"CycleDetected","message":"would create a cycle"}}`))
	}))
	defer shard.Close()

	ts := newPublicTestRouter(shard.URL)
	defer ts.Close()

	resp, err := http.Post(ts.URL+"/api/v1/groupToGroupMappings/fromGroup/g1/toGroup/g2", "application/json", nil)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestPublicEntityTypeNotFoundReturns404(t *testing.T) {
	shard := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`false`))
	}))
	defer shard.Close()

	ts := newPublicTestRouter(shard.URL)
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/api/v1/entityTypes/invoice")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestPublicDataElementAccessReturnsBool(t *testing.T) {
	shard := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`true`))
	}))
	defer shard.Close()

	ts := newPublicTestRouter(shard.URL)
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/api/v1/dataElementAccess/applicationComponent/user/alice/applicationComponent/billing/accessLevel/read")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
