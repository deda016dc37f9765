// Package opcoordinator is the Operation Coordinator from spec.md §4.8: a
// thin facade that turns the AccessManager event/query surface into
// internal/shardrouter calls, so HTTP handlers (internal/api) and the
// binary wire consumers (internal/wire) never call the router directly.
//
// Each single-shard method here does three things: build the wire-level
// request body, call the matching internal/shardrouter operation, and on
// a permanent error annotate it with the owning shard's description
// (spec.md §7's shard.describe(include_hash_range=true)) before
// returning. The dual-write methods (AddUserToGroup, RemoveUserToGroup)
// and the fan-out queries (AccessibleByComponent, HasAccessToComponent)
// wrap errors without that annotation. Retry policy for transient errors
// lives in internal/shardrouter.Router.call, which the fan-out queries
// do not go through; this package never retries on its own.
package opcoordinator
