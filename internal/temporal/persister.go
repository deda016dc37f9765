package temporal

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/dreamware/accessmanager/internal/depfree"
	"github.com/dreamware/accessmanager/internal/event"
)

// Subscriber receives every batch a Persister durably appends, in the same
// order Persist saw it. internal/temporal.EventCache is the built-in
// subscriber; a node wires it in with Subscribe so its tail cache never
// falls behind the durable log.
type Subscriber interface {
	ObserveBatch(batch []event.Event)
}

// Persister implements internal/evbuffer.Persister, appending merge-sorted
// batches to a StorageDriver.
type Persister struct {
	driver StorageDriver

	mu   sync.Mutex
	subs []Subscriber
}

// NewPersister wraps driver in a Persister.
func NewPersister(driver StorageDriver) *Persister {
	return &Persister{driver: driver}
}

// Subscribe registers sub to receive every batch Persist appends from now
// on. Not retroactive: a subscriber that needs the log's history first
// must backfill from the StorageDriver before subscribing.
func (p *Persister) Subscribe(sub Subscriber) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.subs = append(p.subs, sub)
}

// Persist appends batch to the underlying driver, then fans it out to every
// subscriber. It is the method internal/evbuffer.Buffer.Flush calls on
// every flush cycle.
func (p *Persister) Persist(ctx context.Context, batch []event.Event) error {
	if len(batch) == 0 {
		return nil
	}
	if err := p.driver.Append(ctx, batch); err != nil {
		return fmt.Errorf("temporal: append batch of %d events: %w", len(batch), err)
	}

	p.mu.Lock()
	subs := append([]Subscriber{}, p.subs...)
	p.mu.Unlock()
	for _, sub := range subs {
		sub.ObserveBatch(batch)
	}
	return nil
}

// Replay reads every event with Sequence in [fromSeq, toSeq] and applies
// each to mgr in order, rebuilding the graph state a node would have had
// at that point in the log. This is how a node recovers state after a
// restart, or how a point-in-time snapshot is reconstructed.
func (p *Persister) Replay(ctx context.Context, mgr *depfree.Manager, fromSeq, toSeq int64) error {
	events, err := p.driver.ReadRange(ctx, fromSeq, toSeq)
	if err != nil {
		return fmt.Errorf("temporal: read range [%d,%d]: %w", fromSeq, toSeq, err)
	}
	for _, ev := range events {
		if err := apply(mgr, ev); err != nil {
			return fmt.Errorf("temporal: replay event %s (seq %d): %w", ev.EventID, ev.Sequence, err)
		}
	}
	return nil
}

// ReplayAsOf rebuilds mgr's state as of the most recent event at or before
// at, per spec.md §3's point-in-time reconstruction requirement.
func (p *Persister) ReplayAsOf(ctx context.Context, mgr *depfree.Manager, at time.Time) error {
	marker, err := p.driver.FindAtOrBefore(ctx, at)
	if err != nil {
		return fmt.Errorf("temporal: find event at or before %s: %w", at, err)
	}
	return p.Replay(ctx, mgr, 0, marker.Sequence)
}

// ReplayAsOfEvent rebuilds mgr's state as of eventID, inclusive: every
// event up to and including the one identified by eventID is applied, and
// nothing after it. This is spec.md §8 Scenario S6's time-travel load —
// reconstructing the exact graph state as of a recorded event, regardless
// of how many further mutations have since been appended to the log.
func (p *Persister) ReplayAsOfEvent(ctx context.Context, mgr *depfree.Manager, eventID string) error {
	marker, err := p.driver.FindByID(ctx, eventID)
	if err != nil {
		return fmt.Errorf("temporal: find event %s: %w", eventID, err)
	}
	return p.Replay(ctx, mgr, 0, marker.Sequence)
}

// apply re-runs ev's mutation against mgr, the same switch
// internal/evbuffer's GraphStore pipeline stage uses, so replay produces
// exactly the state live traffic would have.
func apply(mgr *depfree.Manager, ev event.Event) error {
	switch p := ev.Payload.(type) {
	case event.UserPayload:
		if ev.Action == event.ActionAdd {
			return mgr.AddUser(p.User)
		}
		return mgr.RemoveUser(p.User)
	case event.GroupPayload:
		if ev.Action == event.ActionAdd {
			return mgr.AddGroup(p.Group)
		}
		return mgr.RemoveGroup(p.Group)
	case event.UserToGroupPayload:
		if ev.Action == event.ActionAdd {
			return mgr.AddUserToGroup(p.User, p.Group)
		}
		return mgr.RemoveUserToGroup(p.User, p.Group)
	case event.GroupToGroupPayload:
		if ev.Action == event.ActionAdd {
			return mgr.AddGroupToGroup(p.FromGroup, p.ToGroup)
		}
		return mgr.RemoveGroupToGroup(p.FromGroup, p.ToGroup)
	case event.UserToComponentPayload:
		if ev.Action == event.ActionAdd {
			return mgr.AddUserToComponent(p.User, p.Component, p.Access)
		}
		return mgr.RemoveUserToComponent(p.User, p.Component, p.Access)
	case event.GroupToComponentPayload:
		if ev.Action == event.ActionAdd {
			return mgr.AddGroupToComponent(p.Group, p.Component, p.Access)
		}
		return mgr.RemoveGroupToComponent(p.Group, p.Component, p.Access)
	case event.EntityTypePayload:
		if ev.Action == event.ActionAdd {
			return mgr.AddEntityType(p.EntityType)
		}
		return mgr.RemoveEntityType(p.EntityType)
	case event.EntityPayload:
		if ev.Action == event.ActionAdd {
			return mgr.AddEntity(p.EntityType, p.EntityID)
		}
		return mgr.RemoveEntity(p.EntityType, p.EntityID)
	case event.UserToEntityPayload:
		if ev.Action == event.ActionAdd {
			return mgr.AddUserToEntity(p.User, p.EntityType, p.EntityID)
		}
		return mgr.RemoveUserToEntity(p.User, p.EntityType, p.EntityID)
	case event.GroupToEntityPayload:
		if ev.Action == event.ActionAdd {
			return mgr.AddGroupToEntity(p.Group, p.EntityType, p.EntityID)
		}
		return mgr.RemoveGroupToEntity(p.Group, p.EntityType, p.EntityID)
	case event.ReconcilePayload:
		return nil
	default:
		return fmt.Errorf("temporal: unrecognized payload type %T", p)
	}
}
