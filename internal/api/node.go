package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/dreamware/accessmanager/internal/depfree"
	"github.com/dreamware/accessmanager/internal/event"
	"github.com/dreamware/accessmanager/internal/evbuffer"
	"github.com/dreamware/accessmanager/internal/graphstore"
	"github.com/dreamware/accessmanager/internal/temporal"
)

// incomingEvent is the JSON body internal/opcoordinator's wireEvent
// marshals into; Payload is decoded against Kind once it's known, rather
// than eagerly, since the payload's Go type varies per kind.
type incomingEvent struct {
	Kind    event.Kind      `json:"kind"`
	Action  event.Action    `json:"action"`
	Payload json.RawMessage `json:"payload"`
}

// NodeServer exposes the node-local surface a shard serves to the
// coordinator's internal/shardrouter client pool.
type NodeServer struct {
	mgr   *depfree.Manager
	buf   *evbuffer.Buffer
	cache *temporal.EventCache
}

// NewNodeServer builds a NodeServer reading and mutating mgr/buf directly
// — this is the single node-local owner of both, per spec.md §2's "Graph
// Store owns data exclusively" rule. cache is optional; a nil cache simply
// makes /internal/events/since always report a cache miss.
func NewNodeServer(mgr *depfree.Manager, buf *evbuffer.Buffer, cache *temporal.EventCache) *NodeServer {
	return &NodeServer{mgr: mgr, buf: buf, cache: cache}
}

// NewNodeRouter builds the gin.Engine for s.
func NewNodeRouter(s *NodeServer) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/healthz", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.POST("/internal/events/:kind", s.handleEvent)
	r.GET("/internal/query/:kind/*key", s.handleQuery)
	r.GET("/internal/events/since/:seq", s.handleEventsSince)
	return r
}

func (s *NodeServer) handleEvent(c *gin.Context) {
	kind := event.Kind(c.Param("kind"))

	var in incomingEvent
	if err := c.ShouldBindJSON(&in); err != nil {
		respondError(c, &evbuffer.ValidationFailed{Field: "body", Reason: err.Error()})
		return
	}
	if in.Kind != kind {
		respondError(c, &evbuffer.ValidationFailed{Field: "kind", Reason: "path and body kind mismatch"})
		return
	}

	payload, err := decodePayload(kind, in.Payload)
	if err != nil {
		respondError(c, &evbuffer.ValidationFailed{Field: "payload", Reason: err.Error()})
		return
	}

	// OccurredAt is left zero: evbuffer.Buffer.Enqueue is the sole
	// authority on event time, stamping it atomically with Sequence under
	// its sequence lock.
	ev := event.New(kind, in.Action, time.Time{}, payload)
	if _, err := s.buf.Enqueue(c.Request.Context(), ev); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusOK)
}

func decodePayload(kind event.Kind, raw json.RawMessage) (event.Payload, error) {
	switch kind {
	case event.KindUser:
		var p event.UserPayload
		return p, json.Unmarshal(raw, &p)
	case event.KindGroup:
		var p event.GroupPayload
		return p, json.Unmarshal(raw, &p)
	case event.KindUserToGroup:
		var p event.UserToGroupPayload
		return p, json.Unmarshal(raw, &p)
	case event.KindGroupToGroup:
		var p event.GroupToGroupPayload
		return p, json.Unmarshal(raw, &p)
	case event.KindUserToComponent:
		var p event.UserToComponentPayload
		return p, json.Unmarshal(raw, &p)
	case event.KindGroupToComponent:
		var p event.GroupToComponentPayload
		return p, json.Unmarshal(raw, &p)
	case event.KindEntityType:
		var p event.EntityTypePayload
		return p, json.Unmarshal(raw, &p)
	case event.KindEntity:
		var p event.EntityPayload
		return p, json.Unmarshal(raw, &p)
	case event.KindUserToEntity:
		var p event.UserToEntityPayload
		return p, json.Unmarshal(raw, &p)
	case event.KindGroupToEntity:
		var p event.GroupToEntityPayload
		return p, json.Unmarshal(raw, &p)
	case event.KindReconcile:
		var p event.ReconcilePayload
		return p, json.Unmarshal(raw, &p)
	default:
		return nil, &evbuffer.ValidationFailed{Field: "kind", Reason: "unknown kind " + string(kind)}
	}
}

// handleQuery answers a read-path request directly from the live graph.
// key is gin's wildcard match for everything after /internal/query/{kind}/
// and its shape is kind-specific: a single id, a comma-separated group
// list, or a "groups/component/access" composite — see each case.
func (s *NodeServer) handleQuery(c *gin.Context) {
	kind := event.Kind(c.Param("kind"))
	key := strings.TrimPrefix(c.Param("key"), "/")
	graph := s.mgr.Graph()

	switch kind {
	case event.KindUserToGroup:
		transitive := c.Query("transitive") == "true"
		groups := graph.UserToGroups(graphstore.UserID(key), transitive)
		c.JSON(http.StatusOK, groupIDList(groups))

	case event.KindGroupToGroup:
		var out []graphstore.GroupID
		for _, g := range splitNonEmpty(key) {
			for next := range graph.GroupToGroups(graphstore.GroupID(g), true) {
				out = append(out, next)
			}
		}
		c.JSON(http.StatusOK, out)

	case event.KindGroupToComponent:
		parts := strings.Split(key, "/")
		if len(parts) == 3 {
			groups := toGroupSet(splitNonEmpty(parts[0]))
			hit := graph.HasAccessToComponentForGroups(groups, graphstore.ComponentID(parts[1]), graphstore.AccessLevel(parts[2]))
			c.JSON(http.StatusOK, hit)
			return
		}
		groups := toGroupSet(splitNonEmpty(key))
		accesses := graph.ComponentsAccessibleByGroups(groups)
		out := make([]graphstore.ComponentAccess, 0, len(accesses))
		for ca := range accesses {
			out = append(out, ca)
		}
		c.JSON(http.StatusOK, out)

	case event.KindEntityType:
		c.JSON(http.StatusOK, graph.ContainsEntityType(graphstore.EntityType(key)))

	default:
		respondError(c, &evbuffer.ValidationFailed{Field: "kind", Reason: "no query handler for " + string(kind)})
	}
}

// handleEventsSince answers "what happened since sequence N" from the
// node's EventCache, the tail-cache fast path internal/temporal.Persister
// feeds on every flush. A cache miss (the requested sequence has already
// aged out of the tail, or no cache is configured) reports 409 so the
// caller knows to fall back to a full StorageDriver.ReadRange instead of
// silently serving an incomplete window.
func (s *NodeServer) handleEventsSince(c *gin.Context) {
	fromSeq, err := strconv.ParseInt(c.Param("seq"), 10, 64)
	if err != nil {
		respondError(c, &evbuffer.ValidationFailed{Field: "seq", Reason: "must be an integer"})
		return
	}
	if s.cache == nil {
		c.Status(http.StatusConflict)
		return
	}
	events, ok := s.cache.Since(fromSeq)
	if !ok {
		c.Status(http.StatusConflict)
		return
	}
	c.JSON(http.StatusOK, events)
}

func splitNonEmpty(s string) []string {
	if s == "" {
		return nil
	}
	return strings.Split(s, ",")
}

func toGroupSet(ids []string) map[graphstore.GroupID]struct{} {
	out := make(map[graphstore.GroupID]struct{}, len(ids))
	for _, id := range ids {
		out[graphstore.GroupID(id)] = struct{}{}
	}
	return out
}

func groupIDList(groups map[graphstore.GroupID]struct{}) []graphstore.GroupID {
	out := make([]graphstore.GroupID, 0, len(groups))
	for g := range groups {
		out = append(out, g)
	}
	return out
}
