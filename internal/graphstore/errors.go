package graphstore

import "fmt"

// NotFound indicates an operation referenced an element that does not
// exist in the graph, and the caller is not running in dependency-free
// mode (see internal/depfree), so the referent was not synthesized.
type NotFound struct {
	Kind string // "user", "group", "component", "access_level", "entity_type", "entity"
	ID   string
}

func (e *NotFound) Error() string {
	return fmt.Sprintf("graphstore: %s %q not found", e.Kind, e.ID)
}

// IdempotentAdd indicates an add_* operation targeted an element that
// already exists. It is distinguished from a hard failure so
// internal/depfree can swallow it silently per spec.md §4.2.
type IdempotentAdd struct {
	Kind string
	ID   string
}

func (e *IdempotentAdd) Error() string {
	return fmt.Sprintf("graphstore: %s %q already exists", e.Kind, e.ID)
}

// IdempotentRemove indicates a remove_* operation targeted an element or
// mapping that was already absent. Direct graph operations raise this;
// internal/depfree silently accepts it instead — the split is intentional.
type IdempotentRemove struct {
	Kind string
	ID   string
}

func (e *IdempotentRemove) Error() string {
	return fmt.Sprintf("graphstore: %s %q was already absent", e.Kind, e.ID)
}

// CycleDetected indicates an add_group_to_group call would close a cycle
// in the group inheritance DAG. The graph is left unchanged.
type CycleDetected struct {
	FromGroup GroupID
	ToGroup   GroupID
}

func (e *CycleDetected) Error() string {
	return fmt.Sprintf("graphstore: adding %q -> %q would create a cycle", e.FromGroup, e.ToGroup)
}

// InvalidEntityType indicates an entity type string violates the 1..450
// character bound from spec.md §3.
type InvalidEntityType struct {
	Value string
}

func (e *InvalidEntityType) Error() string {
	return fmt.Sprintf("graphstore: entity type %q must be 1..450 characters, got %d", e.Value, len(e.Value))
}
