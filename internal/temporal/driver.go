package temporal

import (
	"context"
	"errors"
	"time"

	"github.com/dreamware/accessmanager/internal/event"
)

// ErrNotFound is returned by FindByID when no event with the given ID has
// been appended, and by FindAtOrBefore when the log holds no event at or
// before the requested time.
var ErrNotFound = errors.New("temporal: event not found")

// StorageDriver is the durability boundary internal/temporal.Persister
// writes through. Every method must be safe for concurrent use, mirroring
// internal/storage.Store's contract.
type StorageDriver interface {
	// Append writes batch to the log in the order given. Implementations
	// must not reorder or partially apply a batch: either every event in
	// batch is durably recorded, or Append returns an error and none are.
	Append(ctx context.Context, batch []event.Event) error

	// ReadRange returns every event with Sequence in [fromSeq, toSeq],
	// ordered by Sequence ascending.
	ReadRange(ctx context.Context, fromSeq, toSeq int64) ([]event.Event, error)

	// FindByID returns the event with the given ID, or ErrNotFound.
	FindByID(ctx context.Context, id string) (event.Event, error)

	// FindAtOrBefore returns the most recent event with OccurredAt <= at,
	// or ErrNotFound if none exists. This backs spec.md §3's
	// point-in-time reconstruction queries.
	FindAtOrBefore(ctx context.Context, at time.Time) (event.Event, error)
}
