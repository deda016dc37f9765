// Package flushpolicy implements the pluggable Flush Strategy from
// spec.md §4.4: a policy decides when internal/evbuffer.Buffer.Flush runs,
// independent of the buffer's own locking and merge-sort logic.
//
// The dedicated worker goroutine, ticker-driven loop, and context-based
// shutdown are grounded on internal/coordinator.HealthMonitor.Start: a
// ticker fires periodic work, a select also watches ctx.Done() for clean
// shutdown, and callers register behavior via a plain function value the
// way HealthMonitor.SetOnUnhealthy does — here FlushFunc in place of
// onUnhealthy.
//
// A transient persister failure is retried with exponential backoff
// (github.com/cenkalti/backoff/v4) rather than dropped; the failed batch
// stays buffered (internal/evbuffer already re-prepends it) and the
// worker retries the flush within the same cycle, backing off between
// consecutive failures until one succeeds or the context is canceled,
// so an outage doesn't turn into a retry storm.
package flushpolicy
