package graphstore

// UserToGroups returns the groups u directly belongs to, or — if
// transitive is true — every group reachable by following group-to-group
// inheritance edges from those direct groups.
func (g *Graph) UserToGroups(u UserID, transitive bool) map[GroupID]struct{} {
	g.mu.RLock()
	defer g.mu.RUnlock()

	direct := sortedGroupKeys(g.userToGroup[u])
	if !transitive {
		return toGroupSet(direct)
	}
	return g.groupsToGroupsLocked(direct)
}

// GroupToUsers returns the users that directly belong to grp, or — if
// transitive is true — every user belonging to grp or to any group that
// inherits from it.
func (g *Graph) GroupToUsers(grp GroupID, transitive bool) map[UserID]struct{} {
	g.mu.RLock()
	defer g.mu.RUnlock()

	result := make(map[UserID]struct{})
	for u := range g.groupToUserRev[grp] {
		result[u] = struct{}{}
	}
	if !transitive {
		return result
	}
	for descendant := range g.reverseReachableLocked([]GroupID{grp}) {
		for u := range g.groupToUserRev[descendant] {
			result[u] = struct{}{}
		}
	}
	return result
}

// GroupToGroups returns the groups grp directly inherits from, or — if
// transitive is true — the full forward closure.
func (g *Graph) GroupToGroups(grp GroupID, transitive bool) map[GroupID]struct{} {
	g.mu.RLock()
	defer g.mu.RUnlock()
	if !transitive {
		return toGroupSet(sortedGroupKeys(g.groupToGroup[grp]))
	}
	return g.groupsToGroupsLocked([]GroupID{grp})
}

// GroupReverseMappings returns the groups that directly inherit from grp,
// or — if transitive is true — the full reverse closure (every descendant).
func (g *Graph) GroupReverseMappings(grp GroupID, transitive bool) map[GroupID]struct{} {
	g.mu.RLock()
	defer g.mu.RUnlock()
	if !transitive {
		return toGroupSet(sortedGroupKeys(g.groupToGroupRev[grp]))
	}
	return g.reverseReachableLocked([]GroupID{grp})
}

// groupsToGroupsLocked computes the forward transitive closure (BFS over
// groupToGroup) starting from the given seed groups, in sorted-frontier
// order for deterministic traversal. Caller holds mu for reading.
func (g *Graph) groupsToGroupsLocked(seeds []GroupID) map[GroupID]struct{} {
	visited := make(map[GroupID]struct{})
	queue := append([]GroupID{}, seeds...)
	result := make(map[GroupID]struct{})
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		if _, seen := visited[cur]; seen {
			continue
		}
		visited[cur] = struct{}{}
		for _, next := range sortedGroupKeys(g.groupToGroup[cur]) {
			result[next] = struct{}{}
			if _, seen := visited[next]; !seen {
				queue = append(queue, next)
			}
		}
	}
	return result
}

// reverseReachableLocked computes the full set of groups reachable from
// the seeds by following reverse inheritance edges (i.e. all descendants).
func (g *Graph) reverseReachableLocked(seeds []GroupID) map[GroupID]struct{} {
	visited := make(map[GroupID]struct{})
	queue := append([]GroupID{}, seeds...)
	result := make(map[GroupID]struct{})
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		if _, seen := visited[cur]; seen {
			continue
		}
		visited[cur] = struct{}{}
		for _, next := range sortedGroupKeys(g.groupToGroupRev[cur]) {
			result[next] = struct{}{}
			if _, seen := visited[next]; !seen {
				queue = append(queue, next)
			}
		}
	}
	return result
}

func toGroupSet(keys []GroupID) map[GroupID]struct{} {
	out := make(map[GroupID]struct{}, len(keys))
	for _, k := range keys {
		out[k] = struct{}{}
	}
	return out
}

// allGroupsForUser returns u's direct groups plus the transitive closure
// of inheritance from them — the set of groups whose grants apply to u.
func (g *Graph) allGroupsForUser(u UserID) map[GroupID]struct{} {
	direct := sortedGroupKeys(g.userToGroup[u])
	all := make(map[GroupID]struct{}, len(direct))
	for _, d := range direct {
		all[d] = struct{}{}
	}
	for gr := range g.groupsToGroupsLocked(direct) {
		all[gr] = struct{}{}
	}
	return all
}

// HasAccessToComponent reports whether u has (k,a) directly, or via any
// group u belongs to (transitively through inheritance).
func (g *Graph) HasAccessToComponent(u UserID, k ComponentID, a AccessLevel) bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	ca := ComponentAccess{Component: k, Access: a}
	if _, ok := g.userToComponent[u][ca]; ok {
		return true
	}
	for grp := range g.allGroupsForUser(u) {
		if _, ok := g.groupToComponent[grp][ca]; ok {
			return true
		}
	}
	return false
}

// HasAccessToEntity reports whether u has (t,e) directly, or via any group
// u belongs to (transitively through inheritance) — spec.md §8 invariant 6.
func (g *Graph) HasAccessToEntity(u UserID, t EntityType, e EntityID) bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	ent := Entity{Type: t, ID: e}
	if _, ok := g.userToEntity[u][ent]; ok {
		return true
	}
	for grp := range g.allGroupsForUser(u) {
		if _, ok := g.groupToEntity[grp][ent]; ok {
			return true
		}
	}
	return false
}

// ComponentsAccessibleByUser returns every (k,a) pair u can reach, direct
// or transitive via group membership and inheritance.
func (g *Graph) ComponentsAccessibleByUser(u UserID) map[ComponentAccess]struct{} {
	g.mu.RLock()
	defer g.mu.RUnlock()
	result := make(map[ComponentAccess]struct{})
	for ca := range g.userToComponent[u] {
		result[ca] = struct{}{}
	}
	for grp := range g.allGroupsForUser(u) {
		for ca := range g.groupToComponent[grp] {
			result[ca] = struct{}{}
		}
	}
	return result
}

// EntitiesAccessibleByUser returns every entity u can reach, direct or
// transitive via group membership and inheritance.
func (g *Graph) EntitiesAccessibleByUser(u UserID) map[Entity]struct{} {
	g.mu.RLock()
	defer g.mu.RUnlock()
	result := make(map[Entity]struct{})
	for ent := range g.userToEntity[u] {
		result[ent] = struct{}{}
	}
	for grp := range g.allGroupsForUser(u) {
		for ent := range g.groupToEntity[grp] {
			result[ent] = struct{}{}
		}
	}
	return result
}

// --- group-set variants, used by the distributed routing path (§4.7) -------

// ComponentsAccessibleByGroups unions ComponentsAccessibleByUser's
// group-side contribution across an arbitrary set of groups, including
// their transitive inheritance. Used by internal/shardrouter once it has
// resolved a user's groups on one shard and needs to expand them against
// entity/component shards that may live elsewhere.
func (g *Graph) ComponentsAccessibleByGroups(groups map[GroupID]struct{}) map[ComponentAccess]struct{} {
	g.mu.RLock()
	defer g.mu.RUnlock()
	result := make(map[ComponentAccess]struct{})
	for grp := range g.expandGroupsLocked(groups) {
		for ca := range g.groupToComponent[grp] {
			result[ca] = struct{}{}
		}
	}
	return result
}

// EntitiesAccessibleByGroups is the entity-grant analogue of
// ComponentsAccessibleByGroups.
func (g *Graph) EntitiesAccessibleByGroups(groups map[GroupID]struct{}) map[Entity]struct{} {
	g.mu.RLock()
	defer g.mu.RUnlock()
	result := make(map[Entity]struct{})
	for grp := range g.expandGroupsLocked(groups) {
		for ent := range g.groupToEntity[grp] {
			result[ent] = struct{}{}
		}
	}
	return result
}

// HasAccessToComponentForGroups short-circuits on the first group (direct
// or inherited) found to grant (k,a) — used by the has_access_to_* fan-out
// variant in spec.md §4.7, which short-circuits on first true.
func (g *Graph) HasAccessToComponentForGroups(groups map[GroupID]struct{}, k ComponentID, a AccessLevel) bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	ca := ComponentAccess{Component: k, Access: a}
	for grp := range g.expandGroupsLocked(groups) {
		if _, ok := g.groupToComponent[grp][ca]; ok {
			return true
		}
	}
	return false
}

// HasAccessToEntityForGroups is the entity-grant analogue of
// HasAccessToComponentForGroups.
func (g *Graph) HasAccessToEntityForGroups(groups map[GroupID]struct{}, t EntityType, e EntityID) bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	ent := Entity{Type: t, ID: e}
	for grp := range g.expandGroupsLocked(groups) {
		if _, ok := g.groupToEntity[grp][ent]; ok {
			return true
		}
	}
	return false
}

// expandGroupsLocked returns seeds plus their full forward inheritance
// closure. Caller holds mu for reading.
func (g *Graph) expandGroupsLocked(seeds map[GroupID]struct{}) map[GroupID]struct{} {
	seedList := make([]GroupID, 0, len(seeds))
	for s := range seeds {
		seedList = append(seedList, s)
	}
	all := make(map[GroupID]struct{}, len(seedList))
	for _, s := range seedList {
		all[s] = struct{}{}
	}
	for gr := range g.groupsToGroupsLocked(seedList) {
		all[gr] = struct{}{}
	}
	return all
}
