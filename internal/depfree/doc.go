// Package depfree implements the Dependency-Free Manager from spec.md
// §4.2: a wrapper around internal/graphstore.Graph that makes every
// mutation idempotent and self-sufficient by synthesizing and applying
// missing prerequisites before the original event, in the order the
// prerequisite must exist.
//
// Shard nodes apply every incoming event through a Manager rather than
// directly against a Graph, so that replays and out-of-order delivery
// (both expected under at-least-once event transport) never fail with
// internal/graphstore.NotFound.
//
// Grounded on cmd/node's lazy shard-creation idiom in the teacher repo:
// prerequisites are created the first time they're needed, not
// pre-scanned for up front.
package depfree
