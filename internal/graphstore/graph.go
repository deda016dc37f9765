package graphstore

import (
	"sort"
	"sync"
)

// Graph is the in-memory, bidirectional authorization graph described in
// spec.md §4.1. It owns all node and edge data exclusively; every query
// returns an independent snapshot the caller may keep or mutate freely.
//
// Graph is safe for concurrent use: reads take mu.RLock, writes take
// mu.Lock, and no operation performs I/O while holding the lock.
type Graph struct {
	mu sync.RWMutex

	users  map[UserID]struct{}
	groups map[GroupID]struct{}

	userToGroup    map[UserID]map[GroupID]struct{}
	groupToUserRev map[GroupID]map[UserID]struct{}

	groupToGroup    map[GroupID]map[GroupID]struct{} // forward: g1 inherits from g2
	groupToGroupRev map[GroupID]map[GroupID]struct{} // reverse: g2 is inherited by g1

	userToComponent  map[UserID]map[ComponentAccess]struct{}
	groupToComponent map[GroupID]map[ComponentAccess]struct{}

	entityTypes map[EntityType]struct{}
	entities    map[EntityType]map[EntityID]struct{}

	userToEntity     map[UserID]map[Entity]struct{}
	groupToEntity    map[GroupID]map[Entity]struct{}
	entityToUserRev  map[Entity]map[UserID]struct{}
	entityToGroupRev map[Entity]map[GroupID]struct{}

	// userEntityCount / groupEntityCount are the frequency tables spec.md
	// §4.1 says are "used by C4 and metrics". They are maintained
	// incrementally rather than recomputed on read.
	userEntityCount  map[UserID]int
	groupEntityCount map[GroupID]int

	onEntityTypeRemoved []func(EntityType)
	onEntityRemoved     []func(Entity)
}

// New creates an empty Graph.
func New() *Graph {
	return &Graph{
		users:  make(map[UserID]struct{}),
		groups: make(map[GroupID]struct{}),

		userToGroup:    make(map[UserID]map[GroupID]struct{}),
		groupToUserRev: make(map[GroupID]map[UserID]struct{}),

		groupToGroup:    make(map[GroupID]map[GroupID]struct{}),
		groupToGroupRev: make(map[GroupID]map[GroupID]struct{}),

		userToComponent:  make(map[UserID]map[ComponentAccess]struct{}),
		groupToComponent: make(map[GroupID]map[ComponentAccess]struct{}),

		entityTypes: make(map[EntityType]struct{}),
		entities:    make(map[EntityType]map[EntityID]struct{}),

		userToEntity:     make(map[UserID]map[Entity]struct{}),
		groupToEntity:    make(map[GroupID]map[Entity]struct{}),
		entityToUserRev:  make(map[Entity]map[UserID]struct{}),
		entityToGroupRev: make(map[Entity]map[GroupID]struct{}),

		userEntityCount:  make(map[UserID]int),
		groupEntityCount: make(map[GroupID]int),
	}
}

// OnEntityTypeRemoved registers a hook invoked, outside the graph's lock,
// after an entity type and everything it owns has been removed.
func (g *Graph) OnEntityTypeRemoved(hook func(EntityType)) {
	g.mu.Lock()
	g.onEntityTypeRemoved = append(g.onEntityTypeRemoved, hook)
	g.mu.Unlock()
}

// OnEntityRemoved registers a hook invoked, outside the graph's lock,
// after an entity and its grants have been removed.
func (g *Graph) OnEntityRemoved(hook func(Entity)) {
	g.mu.Lock()
	g.onEntityRemoved = append(g.onEntityRemoved, hook)
	g.mu.Unlock()
}

// --- containment queries -------------------------------------------------

// ContainsUser reports whether u exists in the graph.
func (g *Graph) ContainsUser(u UserID) bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	_, ok := g.users[u]
	return ok
}

// ContainsGroup reports whether g exists in the graph.
func (g *Graph) ContainsGroup(grp GroupID) bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	_, ok := g.groups[grp]
	return ok
}

// ContainsEntityType reports whether t exists in the graph.
func (g *Graph) ContainsEntityType(t EntityType) bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	_, ok := g.entityTypes[t]
	return ok
}

// ContainsEntity reports whether (t,e) exists in the graph.
func (g *Graph) ContainsEntity(t EntityType, e EntityID) bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	ents, ok := g.entities[t]
	if !ok {
		return false
	}
	_, ok = ents[e]
	return ok
}

// --- node mutation ---------------------------------------------------------

// AddUser adds u to the graph. Returns *IdempotentAdd if u already exists.
func (g *Graph) AddUser(u UserID) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, ok := g.users[u]; ok {
		return &IdempotentAdd{Kind: "user", ID: string(u)}
	}
	g.users[u] = struct{}{}
	return nil
}

// RemoveUser removes u and every edge incident to it. Returns
// *IdempotentRemove if u does not exist.
func (g *Graph) RemoveUser(u UserID) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, ok := g.users[u]; !ok {
		return &IdempotentRemove{Kind: "user", ID: string(u)}
	}
	delete(g.users, u)

	for grp := range g.userToGroup[u] {
		delete(g.groupToUserRev[grp], u)
	}
	delete(g.userToGroup, u)
	delete(g.userToComponent, u)

	for ent := range g.userToEntity[u] {
		delete(g.entityToUserRev[ent], u)
	}
	delete(g.userToEntity, u)
	delete(g.userEntityCount, u)
	return nil
}

// AddGroup adds grp to the graph. Returns *IdempotentAdd if it already exists.
func (g *Graph) AddGroup(grp GroupID) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, ok := g.groups[grp]; ok {
		return &IdempotentAdd{Kind: "group", ID: string(grp)}
	}
	g.groups[grp] = struct{}{}
	return nil
}

// RemoveGroup removes grp and every edge incident to it, in either
// direction. Returns *IdempotentRemove if grp does not exist.
func (g *Graph) RemoveGroup(grp GroupID) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, ok := g.groups[grp]; !ok {
		return &IdempotentRemove{Kind: "group", ID: string(grp)}
	}
	delete(g.groups, grp)

	for u := range g.groupToUserRev[grp] {
		delete(g.userToGroup[u], grp)
	}
	delete(g.groupToUserRev, grp)

	for to := range g.groupToGroup[grp] {
		delete(g.groupToGroupRev[to], grp)
	}
	delete(g.groupToGroup, grp)
	for from := range g.groupToGroupRev[grp] {
		delete(g.groupToGroup[from], grp)
	}
	delete(g.groupToGroupRev, grp)

	delete(g.groupToComponent, grp)

	for ent := range g.groupToEntity[grp] {
		delete(g.entityToGroupRev[ent], grp)
	}
	delete(g.groupToEntity, grp)
	delete(g.groupEntityCount, grp)
	return nil
}

// --- membership & inheritance ---------------------------------------------

// AddUserToGroup adds the membership edge (u,g). Fails with *NotFound if
// either element is missing (unless the caller is wrapped by
// internal/depfree), or *IdempotentAdd if the edge already exists.
func (g *Graph) AddUserToGroup(u UserID, grp GroupID) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, ok := g.users[u]; !ok {
		return &NotFound{Kind: "user", ID: string(u)}
	}
	if _, ok := g.groups[grp]; !ok {
		return &NotFound{Kind: "group", ID: string(grp)}
	}
	if g.userToGroup[u] == nil {
		g.userToGroup[u] = make(map[GroupID]struct{})
	}
	if _, ok := g.userToGroup[u][grp]; ok {
		return &IdempotentAdd{Kind: "user_to_group", ID: string(u) + "->" + string(grp)}
	}
	g.userToGroup[u][grp] = struct{}{}
	if g.groupToUserRev[grp] == nil {
		g.groupToUserRev[grp] = make(map[UserID]struct{})
	}
	g.groupToUserRev[grp][u] = struct{}{}
	return nil
}

// RemoveUserToGroup removes the membership edge (u,g). Returns
// *IdempotentRemove if it does not exist.
func (g *Graph) RemoveUserToGroup(u UserID, grp GroupID) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, ok := g.userToGroup[u][grp]; !ok {
		return &IdempotentRemove{Kind: "user_to_group", ID: string(u) + "->" + string(grp)}
	}
	delete(g.userToGroup[u], grp)
	delete(g.groupToUserRev[grp], u)
	return nil
}

// AddGroupToGroup adds the inheritance edge g1 -> g2 (g1 inherits from
// g2). Fails with *CycleDetected, leaving the graph unchanged, if g1 is
// already reachable from g2 via existing inheritance edges.
func (g *Graph) AddGroupToGroup(g1, g2 GroupID) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, ok := g.groups[g1]; !ok {
		return &NotFound{Kind: "group", ID: string(g1)}
	}
	if _, ok := g.groups[g2]; !ok {
		return &NotFound{Kind: "group", ID: string(g2)}
	}
	if _, ok := g.groupToGroup[g1][g2]; ok {
		return &IdempotentAdd{Kind: "group_to_group", ID: string(g1) + "->" + string(g2)}
	}
	if g1 == g2 || g.reachableViaReverse(g1, g2) {
		return &CycleDetected{FromGroup: g1, ToGroup: g2}
	}
	if g.groupToGroup[g1] == nil {
		g.groupToGroup[g1] = make(map[GroupID]struct{})
	}
	g.groupToGroup[g1][g2] = struct{}{}
	if g.groupToGroupRev[g2] == nil {
		g.groupToGroupRev[g2] = make(map[GroupID]struct{})
	}
	g.groupToGroupRev[g2][g1] = struct{}{}
	return nil
}

// reachableViaReverse walks reverse mappings of start (every group that
// inherits from start, transitively) and reports whether target is
// encountered. AddGroupToGroup calls it with start g1 and target g2: if
// g2 already inherits from g1, the edge g1 -> g2 would close a cycle.
// Caller holds mu.
func (g *Graph) reachableViaReverse(start, target GroupID) bool {
	visited := map[GroupID]struct{}{start: {}}
	queue := []GroupID{start}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		if cur == target {
			return true
		}
		for next := range g.groupToGroupRev[cur] {
			if _, seen := visited[next]; seen {
				continue
			}
			visited[next] = struct{}{}
			queue = append(queue, next)
		}
	}
	return false
}

// RemoveGroupToGroup removes the inheritance edge g1 -> g2.
func (g *Graph) RemoveGroupToGroup(g1, g2 GroupID) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, ok := g.groupToGroup[g1][g2]; !ok {
		return &IdempotentRemove{Kind: "group_to_group", ID: string(g1) + "->" + string(g2)}
	}
	delete(g.groupToGroup[g1], g2)
	delete(g.groupToGroupRev[g2], g1)
	return nil
}

// --- component grants -------------------------------------------------------

// AddUserToComponent grants (u,k,a) directly to u.
func (g *Graph) AddUserToComponent(u UserID, k ComponentID, a AccessLevel) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, ok := g.users[u]; !ok {
		return &NotFound{Kind: "user", ID: string(u)}
	}
	ca := ComponentAccess{Component: k, Access: a}
	if g.userToComponent[u] == nil {
		g.userToComponent[u] = make(map[ComponentAccess]struct{})
	}
	if _, ok := g.userToComponent[u][ca]; ok {
		return &IdempotentAdd{Kind: "user_to_component", ID: string(u)}
	}
	g.userToComponent[u][ca] = struct{}{}
	return nil
}

// RemoveUserToComponent revokes (u,k,a) from u.
func (g *Graph) RemoveUserToComponent(u UserID, k ComponentID, a AccessLevel) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	ca := ComponentAccess{Component: k, Access: a}
	if _, ok := g.userToComponent[u][ca]; !ok {
		return &IdempotentRemove{Kind: "user_to_component", ID: string(u)}
	}
	delete(g.userToComponent[u], ca)
	return nil
}

// AddGroupToComponent grants (k,a) to grp.
func (g *Graph) AddGroupToComponent(grp GroupID, k ComponentID, a AccessLevel) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, ok := g.groups[grp]; !ok {
		return &NotFound{Kind: "group", ID: string(grp)}
	}
	ca := ComponentAccess{Component: k, Access: a}
	if g.groupToComponent[grp] == nil {
		g.groupToComponent[grp] = make(map[ComponentAccess]struct{})
	}
	if _, ok := g.groupToComponent[grp][ca]; ok {
		return &IdempotentAdd{Kind: "group_to_component", ID: string(grp)}
	}
	g.groupToComponent[grp][ca] = struct{}{}
	return nil
}

// RemoveGroupToComponent revokes (k,a) from grp.
func (g *Graph) RemoveGroupToComponent(grp GroupID, k ComponentID, a AccessLevel) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	ca := ComponentAccess{Component: k, Access: a}
	if _, ok := g.groupToComponent[grp][ca]; !ok {
		return &IdempotentRemove{Kind: "group_to_component", ID: string(grp)}
	}
	delete(g.groupToComponent[grp], ca)
	return nil
}

// --- entity types & entities -------------------------------------------------

// AddEntityType adds t. Fails with *InvalidEntityType if t is not 1..450
// characters (spec.md §3).
func (g *Graph) AddEntityType(t EntityType) error {
	if l := len(t); l < minEntityTypeLen || l > maxEntityTypeLen {
		return &InvalidEntityType{Value: string(t)}
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, ok := g.entityTypes[t]; ok {
		return &IdempotentAdd{Kind: "entity_type", ID: string(t)}
	}
	g.entityTypes[t] = struct{}{}
	return nil
}

// RemoveEntityType removes t and every entity, grant, and frequency-count
// contribution it owns, then invokes registered OnEntityTypeRemoved hooks.
func (g *Graph) RemoveEntityType(t EntityType) error {
	g.mu.Lock()
	if _, ok := g.entityTypes[t]; !ok {
		g.mu.Unlock()
		return &IdempotentRemove{Kind: "entity_type", ID: string(t)}
	}
	for e := range g.entities[t] {
		g.removeEntityLocked(Entity{Type: t, ID: e})
	}
	delete(g.entities, t)
	delete(g.entityTypes, t)
	hooks := append([]func(EntityType){}, g.onEntityTypeRemoved...)
	g.mu.Unlock()

	for _, h := range hooks {
		h(t)
	}
	return nil
}

// AddEntity adds (t,e). Fails with *NotFound if t does not exist.
func (g *Graph) AddEntity(t EntityType, e EntityID) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, ok := g.entityTypes[t]; !ok {
		return &NotFound{Kind: "entity_type", ID: string(t)}
	}
	if g.entities[t] == nil {
		g.entities[t] = make(map[EntityID]struct{})
	}
	if _, ok := g.entities[t][e]; ok {
		return &IdempotentAdd{Kind: "entity", ID: string(t) + "/" + string(e)}
	}
	g.entities[t][e] = struct{}{}
	return nil
}

// RemoveEntity removes (t,e) and every user/group grant referencing it,
// then invokes registered OnEntityRemoved hooks. S3 in spec.md §8 relies
// on this cascading removal.
func (g *Graph) RemoveEntity(t EntityType, e EntityID) error {
	g.mu.Lock()
	if _, ok := g.entities[t][e]; !ok {
		g.mu.Unlock()
		return &IdempotentRemove{Kind: "entity", ID: string(t) + "/" + string(e)}
	}
	g.removeEntityLocked(Entity{Type: t, ID: e})
	hooks := append([]func(Entity){}, g.onEntityRemoved...)
	ent := Entity{Type: t, ID: e}
	g.mu.Unlock()

	for _, h := range hooks {
		h(ent)
	}
	return nil
}

// removeEntityLocked requires mu held for writing.
func (g *Graph) removeEntityLocked(ent Entity) {
	for u := range g.entityToUserRev[ent] {
		delete(g.userToEntity[u], ent)
		g.userEntityCount[u]--
	}
	delete(g.entityToUserRev, ent)

	for grp := range g.entityToGroupRev[ent] {
		delete(g.groupToEntity[grp], ent)
		g.groupEntityCount[grp]--
	}
	delete(g.entityToGroupRev, ent)

	delete(g.entities[ent.Type], ent.ID)
}

// AddUserToEntity grants (u,t,e) to u.
func (g *Graph) AddUserToEntity(u UserID, t EntityType, e EntityID) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, ok := g.users[u]; !ok {
		return &NotFound{Kind: "user", ID: string(u)}
	}
	ent := Entity{Type: t, ID: e}
	if _, ok := g.entities[t][e]; !ok {
		return &NotFound{Kind: "entity", ID: string(t) + "/" + string(e)}
	}
	if g.userToEntity[u] == nil {
		g.userToEntity[u] = make(map[Entity]struct{})
	}
	if _, ok := g.userToEntity[u][ent]; ok {
		return &IdempotentAdd{Kind: "user_to_entity", ID: string(u)}
	}
	g.userToEntity[u][ent] = struct{}{}
	if g.entityToUserRev[ent] == nil {
		g.entityToUserRev[ent] = make(map[UserID]struct{})
	}
	g.entityToUserRev[ent][u] = struct{}{}
	g.userEntityCount[u]++
	return nil
}

// RemoveUserToEntity revokes (u,t,e) from u.
func (g *Graph) RemoveUserToEntity(u UserID, t EntityType, e EntityID) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	ent := Entity{Type: t, ID: e}
	if _, ok := g.userToEntity[u][ent]; !ok {
		return &IdempotentRemove{Kind: "user_to_entity", ID: string(u)}
	}
	delete(g.userToEntity[u], ent)
	delete(g.entityToUserRev[ent], u)
	g.userEntityCount[u]--
	return nil
}

// AddGroupToEntity grants (t,e) to grp.
func (g *Graph) AddGroupToEntity(grp GroupID, t EntityType, e EntityID) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, ok := g.groups[grp]; !ok {
		return &NotFound{Kind: "group", ID: string(grp)}
	}
	ent := Entity{Type: t, ID: e}
	if _, ok := g.entities[t][e]; !ok {
		return &NotFound{Kind: "entity", ID: string(t) + "/" + string(e)}
	}
	if g.groupToEntity[grp] == nil {
		g.groupToEntity[grp] = make(map[Entity]struct{})
	}
	if _, ok := g.groupToEntity[grp][ent]; ok {
		return &IdempotentAdd{Kind: "group_to_entity", ID: string(grp)}
	}
	g.groupToEntity[grp][ent] = struct{}{}
	if g.entityToGroupRev[ent] == nil {
		g.entityToGroupRev[ent] = make(map[GroupID]struct{})
	}
	g.entityToGroupRev[ent][grp] = struct{}{}
	g.groupEntityCount[grp]++
	return nil
}

// RemoveGroupToEntity revokes (t,e) from grp.
func (g *Graph) RemoveGroupToEntity(grp GroupID, t EntityType, e EntityID) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	ent := Entity{Type: t, ID: e}
	if _, ok := g.groupToEntity[grp][ent]; !ok {
		return &IdempotentRemove{Kind: "group_to_entity", ID: string(grp)}
	}
	delete(g.groupToEntity[grp], ent)
	delete(g.entityToGroupRev[ent], grp)
	g.groupEntityCount[grp]--
	return nil
}

// --- frequency tables --------------------------------------------------------

// UserEntityMappingCount returns the number of entities directly granted
// to u. Exported for metrics.
func (g *Graph) UserEntityMappingCount(u UserID) int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.userEntityCount[u]
}

// GroupEntityMappingCount returns the number of entities directly granted
// to grp.
func (g *Graph) GroupEntityMappingCount(grp GroupID) int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.groupEntityCount[grp]
}

// --- sorted-key helper used for deterministic BFS tie-breaking --------------

func sortedUserKeys(s map[UserID]struct{}) []UserID {
	out := make([]UserID, 0, len(s))
	for k := range s {
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func sortedGroupKeys(s map[GroupID]struct{}) []GroupID {
	out := make([]GroupID, 0, len(s))
	for k := range s {
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
