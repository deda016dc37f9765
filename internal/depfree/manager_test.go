package depfree

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dreamware/accessmanager/internal/graphstore"
)

func TestAddUserToGroupSynthesizesMissingPrerequisites(t *testing.T) {
	g := graphstore.New()
	m := New(g)

	require.NoError(t, m.AddUserToGroup("alice", "admins"))

	assert.True(t, g.ContainsUser("alice"))
	assert.True(t, g.ContainsGroup("admins"))
	assert.Contains(t, g.UserToGroups("alice", false), graphstore.GroupID("admins"))
}

func TestAddUserToEntitySynthesizesInOrder(t *testing.T) {
	g := graphstore.New()
	m := New(g)

	require.NoError(t, m.AddUserToEntity("u", "Client", "Acme"))

	assert.True(t, g.ContainsUser("u"))
	assert.True(t, g.ContainsEntityType("Client"))
	assert.True(t, g.ContainsEntity("Client", "Acme"))
	assert.True(t, g.HasAccessToEntity("u", "Client", "Acme"))
}

// TestIdempotenceUnderApplyTwice is spec.md §8 invariant 5: applying an
// event twice through the Dependency-Free Manager yields the same state.
func TestIdempotenceUnderApplyTwice(t *testing.T) {
	g := graphstore.New()
	m := New(g)

	require.NoError(t, m.AddUserToGroup("alice", "admins"))
	require.NoError(t, m.AddUserToGroup("alice", "admins"))

	assert.Equal(t, map[graphstore.GroupID]struct{}{"admins": {}}, g.UserToGroups("alice", false))
}

func TestRemoveOnMissingElementIsSilentlyAccepted(t *testing.T) {
	g := graphstore.New()
	m := New(g)

	assert.NoError(t, m.RemoveUser("ghost"))
	assert.NoError(t, m.RemoveUserToGroup("ghost", "nowhere"))
	assert.NoError(t, m.RemoveUserToEntity("ghost", "T", "e"))
}

// TestCycleDetectedStillPropagatesUnderDependencyFreeMode documents that
// dependency-free mode synthesizes missing nodes but never waives
// acyclicity.
func TestCycleDetectedStillPropagatesUnderDependencyFreeMode(t *testing.T) {
	g := graphstore.New()
	m := New(g)

	require.NoError(t, m.AddGroupToGroup("A", "B"))
	err := m.AddGroupToGroup("B", "A")

	var cyc *graphstore.CycleDetected
	require.ErrorAs(t, err, &cyc)
}
