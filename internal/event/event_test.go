package event

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/dreamware/accessmanager/internal/graphstore"
	"github.com/dreamware/accessmanager/internal/hashutil"
)

func TestNewComputesHashCodeFromPrimaryElement(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	e := New(KindUser, ActionAdd, now, UserPayload{User: "alice"})

	assert.Equal(t, hashutil.FNV1a32("alice"), e.HashCode)
	assert.NotEqual(t, 0, e.EventID.ID())
	assert.Equal(t, int64(0), e.Sequence)
}

func TestUserToGroupPrimaryElementIsUser(t *testing.T) {
	p := UserToGroupPayload{User: "alice", Group: "admins"}
	assert.Equal(t, "alice", p.PrimaryElement())
}

func TestGroupToGroupPrimaryElementIsFromGroup(t *testing.T) {
	p := GroupToGroupPayload{FromGroup: "A", ToGroup: "B"}
	assert.Equal(t, "A", p.PrimaryElement())
}

func TestWithSequenceDoesNotMutateOriginal(t *testing.T) {
	e := New(KindGroup, ActionAdd, time.Now(), GroupPayload{Group: "g"})
	e2 := e.WithSequence(5)

	assert.Equal(t, int64(0), e.Sequence)
	assert.Equal(t, int64(5), e2.Sequence)
}

func TestAllQueueKindsOrderMatchesLockingDiscipline(t *testing.T) {
	want := []Kind{
		KindUser, KindGroup, KindUserToGroup, KindGroupToGroup,
		KindUserToComponent, KindGroupToComponent,
		KindEntityType, KindEntity, KindUserToEntity, KindGroupToEntity,
	}
	assert.Equal(t, want, AllQueueKinds)
}

func TestEntityPayloadHashesTypeAndID(t *testing.T) {
	p := EntityPayload{EntityType: "Client", EntityID: "Acme"}
	assert.Equal(t, graphstore.EntityType("Client")+"/Acme", graphstore.EntityType(p.PrimaryElement()))
}
