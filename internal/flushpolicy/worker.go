package flushpolicy

import (
	"context"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"
)

// Worker drives a Strategy on a dedicated goroutine, wraps every flush
// attempt in exponential backoff so a persister outage degrades to
// slower retries instead of a tight loop, and guarantees one final
// synchronous flush on shutdown so nothing buffered is lost to a clean
// stop.
type Worker struct {
	strategy Strategy
	flush    FlushFunc
	log      *zap.Logger

	backoffFactory func() backoff.BackOff

	mu      sync.Mutex
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	running bool
}

// NewWorker builds a Worker that runs strategy against flush, logging
// retry attempts through log.
func NewWorker(strategy Strategy, flush FlushFunc, log *zap.Logger) *Worker {
	return &Worker{
		strategy: strategy,
		flush:    flush,
		log:      log,
		backoffFactory: func() backoff.BackOff {
			b := backoff.NewExponentialBackOff()
			b.InitialInterval = 100 * time.Millisecond
			b.MaxInterval = 5 * time.Second
			b.MaxElapsedTime = 0 // retry indefinitely; the caller's ctx bounds it
			return b
		},
	}
}

// Start launches the worker goroutine. It is a no-op if already running.
func (w *Worker) Start(ctx context.Context) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.running {
		return
	}
	runCtx, cancel := context.WithCancel(ctx)
	w.cancel = cancel
	w.running = true

	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		w.strategy.Run(runCtx, w.flushWithRetry)
	}()
}

// Stop cancels the worker goroutine, waits for it to exit, and then runs
// one last flush synchronously so any events buffered since the
// strategy's last cycle are still persisted.
func (w *Worker) Stop(ctx context.Context) error {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return nil
	}
	w.cancel()
	w.running = false
	w.mu.Unlock()

	w.wg.Wait()
	return w.flush(ctx)
}

// flushWithRetry wraps a single flush attempt with exponential backoff,
// retrying on error until it succeeds or ctx is canceled.
func (w *Worker) flushWithRetry(ctx context.Context) error {
	b := backoff.WithContext(w.backoffFactory(), ctx)
	return backoff.Retry(func() error {
		err := w.flush(ctx)
		if err != nil && w.log != nil {
			w.log.Warn("flush attempt failed, retrying with backoff", zap.Error(err))
		}
		return err
	}, b)
}
