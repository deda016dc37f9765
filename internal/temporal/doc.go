// Package temporal is the append-only Temporal Persister from spec.md
// §4.5: it receives merge-sorted batches from internal/evbuffer, appends
// them to a StorageDriver in sequence order, and can replay or
// point-in-time query the resulting log.
//
// StorageDriver is modeled on internal/storage.Store: a small interface
// with one production-grade implementation (internal/temporal/pgdriver,
// mirroring internal/storage.Store's contract but backed by
// github.com/jackc/pgx/v5 instead of a map) and one in-memory
// implementation for tests and single-node deployments
// (internal/temporal/memdriver, adapted directly from
// internal/storage.MemoryStore's sync.RWMutex-guarded map plus
// defensive copy-on-read/copy-on-write).
//
// EventCache keeps the most recent events in memory so a node can answer
// "what happened since sequence N" without round-tripping to the
// StorageDriver for the common case of a consumer that is only slightly
// behind the tail of the log. A Persister feeds its EventCache by
// Subscribe-ing it: every batch Persist durably appends is fanned out to
// subscribers in the same call, so the cache never lags the log it mirrors.
package temporal
