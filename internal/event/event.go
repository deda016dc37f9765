// Package event defines the tagged-variant event model for every mutation
// AccessManager accepts, per spec.md §4.3. Each variant shares a common
// Header and carries its own Payload; the persister and router match on
// Kind rather than on a type hierarchy, per DESIGN NOTES §9 ("Variant
// events").
package event

import (
	"time"

	"github.com/google/uuid"

	"github.com/dreamware/accessmanager/internal/graphstore"
	"github.com/dreamware/accessmanager/internal/hashutil"
)

// Kind discriminates the ten mutation kinds from spec.md §3, plus the
// Reconcile compensating-event kind from §4.7/§9.
type Kind string

const (
	KindUser             Kind = "user"
	KindGroup            Kind = "group"
	KindUserToGroup      Kind = "user_to_group"
	KindGroupToGroup     Kind = "group_to_group"
	KindUserToComponent  Kind = "user_to_component"
	KindGroupToComponent Kind = "group_to_component"
	KindEntityType       Kind = "entity_type"
	KindEntity           Kind = "entity"
	KindUserToEntity     Kind = "user_to_entity"
	KindGroupToEntity    Kind = "group_to_entity"
	KindReconcile        Kind = "reconcile"
)

// AllQueueKinds is the fixed lock-acquisition order from spec.md §4.4
// rule 4: user -> group -> user-to-group -> group-to-group ->
// user-to-component -> group-to-component -> entity-type -> entity ->
// user-to-entity -> group-to-entity. internal/evbuffer iterates this slice
// whenever it must acquire multiple queue locks, always top-down.
var AllQueueKinds = []Kind{
	KindUser,
	KindGroup,
	KindUserToGroup,
	KindGroupToGroup,
	KindUserToComponent,
	KindGroupToComponent,
	KindEntityType,
	KindEntity,
	KindUserToEntity,
	KindGroupToEntity,
}

// Action is Add or Remove, per spec.md §4.3's shared header.
type Action uint8

const (
	ActionAdd Action = iota
	ActionRemove
)

func (a Action) String() string {
	if a == ActionRemove {
		return "remove"
	}
	return "add"
}

// Header is the base record every event variant shares.
type Header struct {
	EventID    uuid.UUID
	Kind       Kind
	Action     Action
	OccurredAt time.Time
	HashCode   int32
	Sequence   int64
}

// Payload is implemented by one struct per mutation kind. PrimaryElement
// returns the string form of the event's "primary element" (spec.md
// §4.3: the user for user events, the group for group events, the
// fromGroup for group-to-group, etc.) — the input to HashCode and to
// internal/shardrouter's routing hash.
type Payload interface {
	PrimaryElement() string
}

// UserPayload backs KindUser.
type UserPayload struct{ User graphstore.UserID }

func (p UserPayload) PrimaryElement() string { return string(p.User) }

// GroupPayload backs KindGroup.
type GroupPayload struct{ Group graphstore.GroupID }

func (p GroupPayload) PrimaryElement() string { return string(p.Group) }

// UserToGroupPayload backs KindUserToGroup. Its primary element is the
// user, so a user-to-group event always hashes (and initially routes) the
// same as a plain user event for the same user — spec.md §4.7 then
// dual-writes it to the owning group shard as well.
type UserToGroupPayload struct {
	User  graphstore.UserID
	Group graphstore.GroupID
}

func (p UserToGroupPayload) PrimaryElement() string { return string(p.User) }

// GroupToGroupPayload backs KindGroupToGroup. Its primary element is the
// from-group.
type GroupToGroupPayload struct {
	FromGroup graphstore.GroupID
	ToGroup   graphstore.GroupID
}

func (p GroupToGroupPayload) PrimaryElement() string { return string(p.FromGroup) }

// UserToComponentPayload backs KindUserToComponent.
type UserToComponentPayload struct {
	User      graphstore.UserID
	Component graphstore.ComponentID
	Access    graphstore.AccessLevel
}

func (p UserToComponentPayload) PrimaryElement() string { return string(p.User) }

// GroupToComponentPayload backs KindGroupToComponent.
type GroupToComponentPayload struct {
	Group     graphstore.GroupID
	Component graphstore.ComponentID
	Access    graphstore.AccessLevel
}

func (p GroupToComponentPayload) PrimaryElement() string { return string(p.Group) }

// EntityTypePayload backs KindEntityType.
type EntityTypePayload struct{ EntityType graphstore.EntityType }

func (p EntityTypePayload) PrimaryElement() string { return string(p.EntityType) }

// EntityPayload backs KindEntity.
type EntityPayload struct {
	EntityType graphstore.EntityType
	EntityID   graphstore.EntityID
}

func (p EntityPayload) PrimaryElement() string { return string(p.EntityType) + "/" + string(p.EntityID) }

// UserToEntityPayload backs KindUserToEntity.
type UserToEntityPayload struct {
	User       graphstore.UserID
	EntityType graphstore.EntityType
	EntityID   graphstore.EntityID
}

func (p UserToEntityPayload) PrimaryElement() string { return string(p.User) }

// GroupToEntityPayload backs KindGroupToEntity.
type GroupToEntityPayload struct {
	Group      graphstore.GroupID
	EntityType graphstore.EntityType
	EntityID   graphstore.EntityID
}

func (p GroupToEntityPayload) PrimaryElement() string { return string(p.Group) }

// ReconcilePayload backs KindReconcile, the compensating event spec.md
// §4.7/§9 requires when a dual-write to User/Event and Group/Event shards
// partially fails: it re-targets the side that succeeded so it can be
// undone, or re-driven, without re-running the whole original event.
type ReconcilePayload struct {
	OriginalEventID uuid.UUID
	OriginalKind    Kind
	SucceededShard  string
	FailedShard     string
	Undo            bool
}

func (p ReconcilePayload) PrimaryElement() string { return p.OriginalEventID.String() }

// Event is a single mutation: a Header plus its kind-specific Payload.
type Event struct {
	Header
	Payload Payload
}

// New constructs an Event with a fresh UUID and computed HashCode. The
// Sequence field is left at zero; internal/evbuffer assigns it while
// holding the sequence lock, per spec.md §4.4 rule 2. occurredAt is
// likewise only a hint: a caller going through internal/evbuffer.Buffer
// should pass the zero time, since Enqueue overwrites OccurredAt with its
// own clock atomically with Sequence. Callers reconstructing historical
// events directly (replay, wire decode, tests) may set occurredAt freely.
func New(kind Kind, action Action, occurredAt time.Time, payload Payload) Event {
	return Event{
		Header: Header{
			EventID:    uuid.New(),
			Kind:       kind,
			Action:     action,
			OccurredAt: occurredAt,
			HashCode:   hashutil.FNV1a32(payload.PrimaryElement()),
		},
		Payload: payload,
	}
}

// WithSequence returns a copy of e with Sequence set. Used by
// internal/evbuffer so the sequence lock never needs to touch anything
// but an int64 and a time.Time.
func (e Event) WithSequence(seq int64) Event {
	e.Sequence = seq
	return e
}
