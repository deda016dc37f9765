package evbuffer

import (
	"context"
	"fmt"

	"github.com/dreamware/accessmanager/internal/depfree"
	"github.com/dreamware/accessmanager/internal/event"
	"github.com/dreamware/accessmanager/internal/graphstore"
)

// stage is a single pipeline step, per DESIGN NOTES §9's "explicit
// pipeline" re-architecture of the source's wrapping-action idiom.
type stage interface {
	process(ctx context.Context, ev event.Event) error
}

// validatorStage checks an event's payload for the minimal well-formedness
// spec.md leaves implicit: no empty identifiers, entity types within the
// 1..450 bound enforced again here so a validation failure surfaces
// before the GraphStore stage touches the graph. It runs while Enqueue
// already holds the event's queue locks.
type validatorStage struct{}

func nonEmpty(field, value string) error {
	if value == "" {
		return &ValidationFailed{Field: field, Reason: "must not be empty"}
	}
	return nil
}

func (validatorStage) process(_ context.Context, ev event.Event) error {
	switch p := ev.Payload.(type) {
	case event.UserPayload:
		return nonEmpty("user", string(p.User))
	case event.GroupPayload:
		return nonEmpty("group", string(p.Group))
	case event.UserToGroupPayload:
		if err := nonEmpty("user", string(p.User)); err != nil {
			return err
		}
		return nonEmpty("group", string(p.Group))
	case event.GroupToGroupPayload:
		if err := nonEmpty("from_group", string(p.FromGroup)); err != nil {
			return err
		}
		if p.FromGroup == p.ToGroup {
			return &ValidationFailed{Field: "to_group", Reason: "a group cannot inherit from itself"}
		}
		return nonEmpty("to_group", string(p.ToGroup))
	case event.UserToComponentPayload:
		if err := nonEmpty("user", string(p.User)); err != nil {
			return err
		}
		if err := nonEmpty("component", string(p.Component)); err != nil {
			return err
		}
		return nonEmpty("access_level", string(p.Access))
	case event.GroupToComponentPayload:
		if err := nonEmpty("group", string(p.Group)); err != nil {
			return err
		}
		if err := nonEmpty("component", string(p.Component)); err != nil {
			return err
		}
		return nonEmpty("access_level", string(p.Access))
	case event.EntityTypePayload:
		if l := len(p.EntityType); l < 1 || l > 450 {
			return &ValidationFailed{Field: "entity_type", Reason: "must be 1..450 characters"}
		}
		return nil
	case event.EntityPayload:
		if err := nonEmpty("entity_type", string(p.EntityType)); err != nil {
			return err
		}
		return nonEmpty("entity_id", string(p.EntityID))
	case event.UserToEntityPayload:
		if err := nonEmpty("user", string(p.User)); err != nil {
			return err
		}
		if err := nonEmpty("entity_type", string(p.EntityType)); err != nil {
			return err
		}
		return nonEmpty("entity_id", string(p.EntityID))
	case event.GroupToEntityPayload:
		if err := nonEmpty("group", string(p.Group)); err != nil {
			return err
		}
		if err := nonEmpty("entity_type", string(p.EntityType)); err != nil {
			return err
		}
		return nonEmpty("entity_id", string(p.EntityID))
	case event.ReconcilePayload:
		return nonEmpty("succeeded_shard", p.SucceededShard)
	default:
		return &ValidationFailed{Field: "payload", Reason: fmt.Sprintf("unrecognized payload type %T", p)}
	}
}

// metricLoggerStage increments the per-kind atomic counter used by
// internal/flushpolicy. It never fails.
type metricLoggerStage struct {
	buf *Buffer
}

func (s metricLoggerStage) process(_ context.Context, ev event.Event) error {
	s.buf.counted(ev.Kind)
	return nil
}

// graphStoreStage applies the event to the live internal/depfree.Manager
// so that reads observe a write as soon as it is accepted, independent of
// when it is durably persisted.
type graphStoreStage struct {
	mgr *depfree.Manager
}

func (s graphStoreStage) process(_ context.Context, ev event.Event) error {
	switch p := ev.Payload.(type) {
	case event.UserPayload:
		if ev.Action == event.ActionAdd {
			return s.mgr.AddUser(p.User)
		}
		return s.mgr.RemoveUser(p.User)
	case event.GroupPayload:
		if ev.Action == event.ActionAdd {
			return s.mgr.AddGroup(p.Group)
		}
		return s.mgr.RemoveGroup(p.Group)
	case event.UserToGroupPayload:
		if ev.Action == event.ActionAdd {
			return s.mgr.AddUserToGroup(p.User, p.Group)
		}
		return s.mgr.RemoveUserToGroup(p.User, p.Group)
	case event.GroupToGroupPayload:
		if ev.Action == event.ActionAdd {
			return s.mgr.AddGroupToGroup(p.FromGroup, p.ToGroup)
		}
		return s.mgr.RemoveGroupToGroup(p.FromGroup, p.ToGroup)
	case event.UserToComponentPayload:
		if ev.Action == event.ActionAdd {
			return s.mgr.AddUserToComponent(p.User, p.Component, p.Access)
		}
		return s.mgr.RemoveUserToComponent(p.User, p.Component, p.Access)
	case event.GroupToComponentPayload:
		if ev.Action == event.ActionAdd {
			return s.mgr.AddGroupToComponent(p.Group, p.Component, p.Access)
		}
		return s.mgr.RemoveGroupToComponent(p.Group, p.Component, p.Access)
	case event.EntityTypePayload:
		if ev.Action == event.ActionAdd {
			return s.mgr.AddEntityType(p.EntityType)
		}
		return s.mgr.RemoveEntityType(p.EntityType)
	case event.EntityPayload:
		if ev.Action == event.ActionAdd {
			return s.mgr.AddEntity(p.EntityType, p.EntityID)
		}
		return s.mgr.RemoveEntity(p.EntityType, p.EntityID)
	case event.UserToEntityPayload:
		if ev.Action == event.ActionAdd {
			return s.mgr.AddUserToEntity(p.User, p.EntityType, p.EntityID)
		}
		return s.mgr.RemoveUserToEntity(p.User, p.EntityType, p.EntityID)
	case event.GroupToEntityPayload:
		if ev.Action == event.ActionAdd {
			return s.mgr.AddGroupToEntity(p.Group, p.EntityType, p.EntityID)
		}
		return s.mgr.RemoveGroupToEntity(p.Group, p.EntityType, p.EntityID)
	case event.ReconcilePayload:
		// Reconcile events leave the graph unchanged.
		return nil
	default:
		return &graphstore.NotFound{Kind: "payload", ID: fmt.Sprintf("%T", p)}
	}
}
