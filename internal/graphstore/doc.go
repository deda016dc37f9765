// Package graphstore implements the in-memory authorization graph at the
// heart of AccessManager: users, groups, the group-to-group inheritance
// DAG, application-component grants, and typed entity grants, along with
// direct and transitive reachability queries over all of them.
//
// # Architecture
//
// Graph owns every node and edge exclusively and is the only component
// allowed to mutate them. Callers never see live internal state: every
// query returns a freshly built set.
//
//	┌────────────────────────────────────────────┐
//	│                  Graph                      │
//	├────────────────────────────────────────────┤
//	│  users, groups              (node sets)     │
//	│  userToGroup, groupToGroup  (fwd + rev adj) │
//	│  userToComponent, groupToComponent          │
//	│  entityTypes, entities, {user,group}ToEntity│
//	│  userEntityCount, groupEntityCount          │
//	├────────────────────────────────────────────┤
//	│  mu sync.RWMutex — single-writer/multi-reader│
//	└────────────────────────────────────────────┘
//
// # Concurrency model
//
// Graph is safe for concurrent use. Reads take mu.RLock and run in
// parallel; writes take mu.Lock and are exclusive. No operation performs
// I/O while holding the lock.
//
// # Failure model
//
// Operations on a missing element fail with NotFound. Re-adding an
// existing element or removing a missing one fails with IdempotentAdd /
// IdempotentRemove respectively — distinct from NotFound so
// internal/depfree can recognize and swallow them without masking a real
// missing-prerequisite error. add_group_to_group additionally fails with
// CycleDetected when the new edge would close a cycle in the inheritance
// DAG; the graph is left unchanged in that case.
package graphstore
