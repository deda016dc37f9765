// Package api is AccessManager's REST/JSON external surface (spec.md §6),
// built on gin the way kubevirt-shepherd's internal/api/handlers is:
// thin handler functions, a shared error-translation helper
// (respondError), JSON request/response bodies.
//
// Two distinct gin.Engines live here. NewPublicRouter exposes the
// client-facing /api/v1 surface over an internal/opcoordinator.Coordinator
// — every handler is a direct translation of one coordinator call plus
// status-code mapping. NewNodeRouter exposes the node-local surface a
// shard serves to the coordinator's internal/shardrouter client pool:
// POST /internal/events/{kind} accepts a wire-shaped event body and
// enqueues it on this node's internal/evbuffer.Buffer; GET
// /internal/query/{kind}/{key} answers directly from this node's
// internal/graphstore.Graph.
package api
