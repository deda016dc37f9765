package shardrouter

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"
	"golang.org/x/sync/errgroup"

	"github.com/dreamware/accessmanager/internal/hashutil"
)

// Router is the Shard Router from spec.md §4.7. It resolves keys to
// shards via Configs, issues RPCs through Pool, and implements the
// dual-write and fan-out/union routing rules for the three DataElements.
type Router struct {
	Configs *ConfigSet
	Pool    *ClientPool

	// MaxElapsed bounds how long a single RPC's retry loop may run before
	// giving up and surfacing the last transient error, per spec.md
	// §4.7's "retry with exponential backoff up to a configured cap".
	MaxElapsed time.Duration
}

// NewRouter builds a Router over configs and pool.
func NewRouter(configs *ConfigSet, pool *ClientPool) *Router {
	return &Router{Configs: configs, Pool: pool, MaxElapsed: 10 * time.Second}
}

// call issues fn against the shard owning key for (element, operation),
// retrying transient errors with exponential backoff and propagating
// permanent errors immediately, per spec.md §4.7/§7.
func (r *Router) call(ctx context.Context, element DataElement, operation Operation, key string, fn func(ctx context.Context, c *Client) error) error {
	shard, err := r.Configs.LookupShard(element, operation, hashutil.FNV1a32(key))
	if err != nil {
		return err
	}
	client := r.Pool.Get(shard.BaseURL, operation)

	b := backoff.NewExponentialBackOff()
	b.MaxElapsedTime = r.MaxElapsed
	bctx := backoff.WithContext(b, ctx)

	return backoff.Retry(func() error {
		err := fn(ctx, client)
		var transient *TransientError
		if errors.As(err, &transient) {
			return err // retryable: backoff.Retry keeps going
		}
		if err != nil {
			return backoff.Permanent(err)
		}
		return nil
	}, bctx)
}

// RouteEvent sends body to the shard owning key for (element, Event).
func (r *Router) RouteEvent(ctx context.Context, element DataElement, key string, path string, body any) error {
	return r.call(ctx, element, OperationEvent, key, func(ctx context.Context, c *Client) error {
		return c.PostJSON(ctx, path, body, nil)
	})
}

// RouteQuery sends a GET to the shard owning key for (element, Query) and
// decodes the response into out.
func (r *Router) RouteQuery(ctx context.Context, element DataElement, key string, path string, out any) error {
	return r.call(ctx, element, OperationQuery, key, func(ctx context.Context, c *Client) error {
		return c.GetJSON(ctx, path, out)
	})
}

// DualWriteUserToGroup implements spec.md §4.7's dual-write rule for
// user-to-group membership events: the event is sent to both the User
// and Group shards owning the respective keys. Success requires both to
// succeed; if exactly one fails, a Reconcile payload targeted at the
// side that succeeded is returned so the caller can enqueue it as a
// compensating event (internal/opcoordinator does this synchronously by
// default, per DESIGN.md's resolution of spec.md's open question).
func (r *Router) DualWriteUserToGroup(ctx context.Context, user, group, userPath, groupPath string, body any) (*ReconcileNeeded, error) {
	g, ctx := errgroup.WithContext(ctx)

	var userErr, groupErr error
	var userShard, groupShard ShardConfig

	g.Go(func() error {
		shard, err := r.Configs.LookupShard(DataElementUser, OperationEvent, hashutil.FNV1a32(user))
		if err != nil {
			userErr = err
			return nil
		}
		userShard = shard
		userErr = r.RouteEvent(ctx, DataElementUser, user, userPath, body)
		return nil
	})
	g.Go(func() error {
		shard, err := r.Configs.LookupShard(DataElementGroup, OperationEvent, hashutil.FNV1a32(group))
		if err != nil {
			groupErr = err
			return nil
		}
		groupShard = shard
		groupErr = r.RouteEvent(ctx, DataElementGroup, group, groupPath, body)
		return nil
	})
	_ = g.Wait() // both goroutines always return nil; errors are captured above

	switch {
	case userErr == nil && groupErr == nil:
		return nil, nil
	case userErr != nil && groupErr != nil:
		return nil, errors.Join(userErr, groupErr)
	case userErr != nil:
		return &ReconcileNeeded{SucceededShard: groupShard.BaseURL, FailedShard: userShard.Describe(true), Cause: userErr}, nil
	default:
		return &ReconcileNeeded{SucceededShard: userShard.BaseURL, FailedShard: groupShard.Describe(true), Cause: groupErr}, nil
	}
}

// ReconcileNeeded signals a partially-failed dual-write: exactly one side
// succeeded. The caller builds an event.ReconcilePayload from this to
// re-drive or undo the successful side.
type ReconcileNeeded struct {
	SucceededShard string
	FailedShard    string
	Cause          error
}

// FanOutUnion calls fn against every shard in shards concurrently, one
// errgroup goroutine per shard, and returns the results of the calls that
// succeeded. Any error cancels the remaining calls and is returned.
func FanOutUnion[T any](ctx context.Context, shards []ShardConfig, fn func(ctx context.Context, shard ShardConfig) (T, error)) ([]T, error) {
	g, ctx := errgroup.WithContext(ctx)
	results := make([]T, len(shards))
	ok := make([]bool, len(shards))

	for i, shard := range shards {
		i, shard := i, shard
		g.Go(func() error {
			v, err := fn(ctx, shard)
			if err != nil {
				return err
			}
			results[i] = v
			ok[i] = true
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := make([]T, 0, len(results))
	for i, v := range results {
		if ok[i] {
			out = append(out, v)
		}
	}
	return out, nil
}

// FanOutShortCircuit calls fn against every shard in shards concurrently
// and returns true as soon as any call reports true, cancelling the rest
// — the has_access_to_* routing rule from spec.md §4.7.
func FanOutShortCircuit(ctx context.Context, shards []ShardConfig, fn func(ctx context.Context, shard ShardConfig) (bool, error)) (bool, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	g, ctx := errgroup.WithContext(ctx)
	found := make(chan bool, 1)

	for _, shard := range shards {
		shard := shard
		g.Go(func() error {
			hit, err := fn(ctx, shard)
			if err != nil {
				return err
			}
			if hit {
				select {
				case found <- true:
				default:
				}
				cancel()
			}
			return nil
		})
	}

	err := g.Wait()
	select {
	case <-found:
		return true, nil
	default:
	}
	if err != nil && !errors.Is(err, context.Canceled) {
		return false, err
	}
	return false, nil
}
