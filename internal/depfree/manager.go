package depfree

import (
	"errors"

	"github.com/dreamware/accessmanager/internal/graphstore"
)

// Manager wraps a *graphstore.Graph and exposes the same mutation surface,
// but guarantees every call succeeds (barring a real invariant violation
// like CycleDetected) regardless of whether prerequisite elements already
// exist.
type Manager struct {
	graph *graphstore.Graph
}

// New wraps g in a dependency-free Manager.
func New(g *graphstore.Graph) *Manager {
	return &Manager{graph: g}
}

// Graph returns the underlying graph, e.g. for read-only queries that
// don't need dependency-free semantics.
func (m *Manager) Graph() *graphstore.Graph { return m.graph }

// swallowIdempotent recovers the two idempotent error kinds locally, per
// spec.md §4.2 ("any add_* on an already-existing element is silently
// accepted" / "any remove_* on a missing element is silently accepted")
// and §7's propagation policy. Any other error (NotFound after a prepend
// attempt, CycleDetected, InvalidEntityType) still propagates.
func swallowIdempotent(err error) error {
	var add *graphstore.IdempotentAdd
	var rem *graphstore.IdempotentRemove
	if errors.As(err, &add) || errors.As(err, &rem) {
		return nil
	}
	return err
}

// AddUser silently accepts adding a user that already exists.
func (m *Manager) AddUser(u graphstore.UserID) error {
	return swallowIdempotent(m.graph.AddUser(u))
}

// RemoveUser silently accepts removing a user that doesn't exist.
func (m *Manager) RemoveUser(u graphstore.UserID) error {
	return swallowIdempotent(m.graph.RemoveUser(u))
}

// AddGroup silently accepts adding a group that already exists.
func (m *Manager) AddGroup(g graphstore.GroupID) error {
	return swallowIdempotent(m.graph.AddGroup(g))
}

// RemoveGroup silently accepts removing a group that doesn't exist.
func (m *Manager) RemoveGroup(g graphstore.GroupID) error {
	return swallowIdempotent(m.graph.RemoveGroup(g))
}

// AddUserToGroup prepends add_user(u) and/or add_group(g) when missing,
// per spec.md §4.2's first rule, then applies the membership edge.
func (m *Manager) AddUserToGroup(u graphstore.UserID, g graphstore.GroupID) error {
	if !m.graph.ContainsUser(u) {
		if err := m.AddUser(u); err != nil {
			return err
		}
	}
	if !m.graph.ContainsGroup(g) {
		if err := m.AddGroup(g); err != nil {
			return err
		}
	}
	return swallowIdempotent(m.graph.AddUserToGroup(u, g))
}

// RemoveUserToGroup silently accepts a missing membership edge.
func (m *Manager) RemoveUserToGroup(u graphstore.UserID, g graphstore.GroupID) error {
	return swallowIdempotent(m.graph.RemoveUserToGroup(u, g))
}

// AddGroupToGroup prepends add_group for whichever of g1/g2 is missing.
// CycleDetected still propagates — dependency-free mode synthesizes
// missing nodes, it never waives the acyclicity invariant.
func (m *Manager) AddGroupToGroup(g1, g2 graphstore.GroupID) error {
	if !m.graph.ContainsGroup(g1) {
		if err := m.AddGroup(g1); err != nil {
			return err
		}
	}
	if !m.graph.ContainsGroup(g2) {
		if err := m.AddGroup(g2); err != nil {
			return err
		}
	}
	return swallowIdempotent(m.graph.AddGroupToGroup(g1, g2))
}

// RemoveGroupToGroup silently accepts a missing inheritance edge.
func (m *Manager) RemoveGroupToGroup(g1, g2 graphstore.GroupID) error {
	return swallowIdempotent(m.graph.RemoveGroupToGroup(g1, g2))
}

// AddUserToComponent prepends add_user(u) when missing.
func (m *Manager) AddUserToComponent(u graphstore.UserID, k graphstore.ComponentID, a graphstore.AccessLevel) error {
	if !m.graph.ContainsUser(u) {
		if err := m.AddUser(u); err != nil {
			return err
		}
	}
	return swallowIdempotent(m.graph.AddUserToComponent(u, k, a))
}

// RemoveUserToComponent silently accepts a missing grant.
func (m *Manager) RemoveUserToComponent(u graphstore.UserID, k graphstore.ComponentID, a graphstore.AccessLevel) error {
	return swallowIdempotent(m.graph.RemoveUserToComponent(u, k, a))
}

// AddGroupToComponent prepends add_group(g) when missing.
func (m *Manager) AddGroupToComponent(g graphstore.GroupID, k graphstore.ComponentID, a graphstore.AccessLevel) error {
	if !m.graph.ContainsGroup(g) {
		if err := m.AddGroup(g); err != nil {
			return err
		}
	}
	return swallowIdempotent(m.graph.AddGroupToComponent(g, k, a))
}

// RemoveGroupToComponent silently accepts a missing grant.
func (m *Manager) RemoveGroupToComponent(g graphstore.GroupID, k graphstore.ComponentID, a graphstore.AccessLevel) error {
	return swallowIdempotent(m.graph.RemoveGroupToComponent(g, k, a))
}

// AddEntityType silently accepts adding an entity type that already exists.
func (m *Manager) AddEntityType(t graphstore.EntityType) error {
	return swallowIdempotent(m.graph.AddEntityType(t))
}

// RemoveEntityType silently accepts a missing entity type.
func (m *Manager) RemoveEntityType(t graphstore.EntityType) error {
	return swallowIdempotent(m.graph.RemoveEntityType(t))
}

// AddEntity prepends add_entity_type(t) when missing.
func (m *Manager) AddEntity(t graphstore.EntityType, e graphstore.EntityID) error {
	if !m.graph.ContainsEntityType(t) {
		if err := m.AddEntityType(t); err != nil {
			return err
		}
	}
	return swallowIdempotent(m.graph.AddEntity(t, e))
}

// RemoveEntity silently accepts a missing entity.
func (m *Manager) RemoveEntity(t graphstore.EntityType, e graphstore.EntityID) error {
	return swallowIdempotent(m.graph.RemoveEntity(t, e))
}

// AddUserToEntity prepends add_user(u), add_entity_type(t), add_entity(t,e)
// as needed, in that order, per spec.md §4.2's second rule.
func (m *Manager) AddUserToEntity(u graphstore.UserID, t graphstore.EntityType, e graphstore.EntityID) error {
	if !m.graph.ContainsUser(u) {
		if err := m.AddUser(u); err != nil {
			return err
		}
	}
	if !m.graph.ContainsEntityType(t) {
		if err := m.AddEntityType(t); err != nil {
			return err
		}
	}
	if !m.graph.ContainsEntity(t, e) {
		if err := m.AddEntity(t, e); err != nil {
			return err
		}
	}
	return swallowIdempotent(m.graph.AddUserToEntity(u, t, e))
}

// RemoveUserToEntity silently accepts a missing grant.
func (m *Manager) RemoveUserToEntity(u graphstore.UserID, t graphstore.EntityType, e graphstore.EntityID) error {
	return swallowIdempotent(m.graph.RemoveUserToEntity(u, t, e))
}

// AddGroupToEntity prepends add_group(g), add_entity_type(t),
// add_entity(t,e) as needed, mirroring AddUserToEntity for groups.
func (m *Manager) AddGroupToEntity(g graphstore.GroupID, t graphstore.EntityType, e graphstore.EntityID) error {
	if !m.graph.ContainsGroup(g) {
		if err := m.AddGroup(g); err != nil {
			return err
		}
	}
	if !m.graph.ContainsEntityType(t) {
		if err := m.AddEntityType(t); err != nil {
			return err
		}
	}
	if !m.graph.ContainsEntity(t, e) {
		if err := m.AddEntity(t, e); err != nil {
			return err
		}
	}
	return swallowIdempotent(m.graph.AddGroupToEntity(g, t, e))
}

// RemoveGroupToEntity silently accepts a missing grant.
func (m *Manager) RemoveGroupToEntity(g graphstore.GroupID, t graphstore.EntityType, e graphstore.EntityID) error {
	return swallowIdempotent(m.graph.RemoveGroupToEntity(g, t, e))
}
