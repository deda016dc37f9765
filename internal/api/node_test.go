package api_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dreamware/accessmanager/internal/api"
	"github.com/dreamware/accessmanager/internal/depfree"
	"github.com/dreamware/accessmanager/internal/event"
	"github.com/dreamware/accessmanager/internal/evbuffer"
	"github.com/dreamware/accessmanager/internal/graphstore"
	"github.com/dreamware/accessmanager/internal/temporal"
)

type noopPersister struct{}

func (noopPersister) Persist(context.Context, []event.Event) error { return nil }

func newNodeTestRouter() (*httptest.Server, *depfree.Manager) {
	mgr := depfree.New(graphstore.New())
	buf := evbuffer.New(mgr, noopPersister{})
	srv := api.NewNodeServer(mgr, buf, nil)
	router := api.NewNodeRouter(srv)
	return httptest.NewServer(router), mgr
}

func TestHandleEventAppliesToGraphImmediately(t *testing.T) {
	ts, mgr := newNodeTestRouter()
	defer ts.Close()

	body := `{"kind":"user","action":0,"payload":{"User":"alice"}}`
	resp, err := http.Post(ts.URL+"/internal/events/user", "application/json", strings.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, mgr.Graph().ContainsUser("alice"))
}

func TestHandleEventKindMismatchIsRejected(t *testing.T) {
	ts, _ := newNodeTestRouter()
	defer ts.Close()

	body := `{"kind":"group","action":0,"payload":{"Group":"admins"}}`
	resp, err := http.Post(ts.URL+"/internal/events/user", "application/json", strings.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestHandleQueryUserToGroupReturnsDirectMemberships(t *testing.T) {
	ts, mgr := newNodeTestRouter()
	defer ts.Close()

	require.NoError(t, mgr.AddUser("alice"))
	require.NoError(t, mgr.AddGroup("admins"))
	require.NoError(t, mgr.AddUserToGroup("alice", "admins"))

	resp, err := http.Get(ts.URL + "/internal/query/user_to_group/alice")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestHandleEventsSinceWithoutCacheReportsConflict(t *testing.T) {
	ts, _ := newNodeTestRouter()
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/internal/events/since/0")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestHandleEventsSinceServesFromCache(t *testing.T) {
	mgr := depfree.New(graphstore.New())
	buf := evbuffer.New(mgr, noopPersister{})
	cache := temporal.NewEventCache(10)
	cache.Observe(event.New(event.KindUser, event.ActionAdd, time.Now(), event.UserPayload{User: "alice"}).WithSequence(1))
	srv := api.NewNodeServer(mgr, buf, cache)
	ts := httptest.NewServer(api.NewNodeRouter(srv))
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/internal/events/since/0")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var got []struct {
		Sequence int64
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&got))
	require.Len(t, got, 1)
	assert.Equal(t, int64(1), got[0].Sequence)
}

func TestHandleQueryEntityTypeReportsExistence(t *testing.T) {
	ts, mgr := newNodeTestRouter()
	defer ts.Close()

	require.NoError(t, mgr.AddEntityType("invoice"))

	resp, err := http.Get(ts.URL + "/internal/query/entity_type/invoice")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	missing, err := http.Get(ts.URL + "/internal/query/entity_type/unknown")
	require.NoError(t, err)
	defer missing.Body.Close()
	assert.Equal(t, http.StatusOK, missing.StatusCode)
}
