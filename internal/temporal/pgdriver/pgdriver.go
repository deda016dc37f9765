// Package pgdriver is the Postgres-backed internal/temporal.StorageDriver,
// grounded on kubevirt-shepherd's pgxpool setup
// (internal/infrastructure.NewDatabaseClients): a single shared
// *pgxpool.Pool, config-driven connection limits, and an explicit Ping on
// construction so a bad DSN fails fast instead of on the first query.
package pgdriver

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dreamware/accessmanager/internal/event"
	"github.com/dreamware/accessmanager/internal/temporal"
)

// Config mirrors kubevirt-shepherd's DatabaseConfig shape, trimmed to
// what a single append-only log table needs.
type Config struct {
	DSN             string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration
}

// Driver is a pgx-backed StorageDriver. Events are stored one row per
// event in an events table keyed by sequence, with the whole event
// serialized through internal/wire's binary codec into a single frame
// column; sequence, event_id and occurred_at are duplicated out into their
// own indexed columns purely so SQL can filter without decoding frames.
type Driver struct {
	pool *pgxpool.Pool
}

// Open creates the connection pool, verifies it with a Ping, and returns
// a ready Driver. Callers are responsible for running the schema
// migration in Schema before first use.
func Open(ctx context.Context, cfg Config) (*Driver, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("pgdriver: parse pool config: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = cfg.MinConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	if cfg.MaxConnIdleTime > 0 {
		poolCfg.MaxConnIdleTime = cfg.MaxConnIdleTime
	}
	poolCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		_, err := conn.Exec(ctx, "SET timezone = 'UTC'")
		return err
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("pgdriver: create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pgdriver: ping: %w", err)
	}
	return &Driver{pool: pool}, nil
}

// Close releases the connection pool.
func (d *Driver) Close() { d.pool.Close() }

// Schema is the DDL for the events table. Applied once, out of band, the
// way kubevirt-shepherd's AutoMigrate documents as a dev-only convenience
// separate from production migration tooling.
const Schema = `
CREATE TABLE IF NOT EXISTS access_events (
	sequence     BIGINT PRIMARY KEY,
	event_id     UUID NOT NULL UNIQUE,
	occurred_at  TIMESTAMPTZ NOT NULL,
	frame        BYTEA NOT NULL
);
CREATE INDEX IF NOT EXISTS access_events_occurred_at_idx ON access_events (occurred_at);
`

// Append inserts batch in a single transaction so a partial failure never
// leaves the log with a gap.
func (d *Driver) Append(ctx context.Context, batch []event.Event) error {
	if len(batch) == 0 {
		return nil
	}
	tx, err := d.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("pgdriver: begin: %w", err)
	}
	defer tx.Rollback(ctx)

	for _, ev := range batch {
		frame, err := encodeFrame(ev)
		if err != nil {
			return err
		}
		_, err = tx.Exec(ctx, `
			INSERT INTO access_events (sequence, event_id, occurred_at, frame)
			VALUES ($1, $2, $3, $4)`,
			ev.Sequence, ev.EventID.String(), ev.OccurredAt, frame)
		if err != nil {
			return fmt.Errorf("pgdriver: insert event %s: %w", ev.EventID, err)
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("pgdriver: commit: %w", err)
	}
	return nil
}

// ReadRange returns every event with sequence in [fromSeq, toSeq].
func (d *Driver) ReadRange(ctx context.Context, fromSeq, toSeq int64) ([]event.Event, error) {
	rows, err := d.pool.Query(ctx, `
		SELECT frame FROM access_events
		WHERE sequence BETWEEN $1 AND $2 ORDER BY sequence ASC`,
		fromSeq, toSeq)
	if err != nil {
		return nil, fmt.Errorf("pgdriver: query range: %w", err)
	}
	defer rows.Close()
	return scanAll(rows)
}

// FindByID returns the event with the given ID.
func (d *Driver) FindByID(ctx context.Context, id string) (event.Event, error) {
	row := d.pool.QueryRow(ctx, `SELECT frame FROM access_events WHERE event_id = $1`, id)
	return scanOne(row)
}

// FindAtOrBefore returns the most recent event with occurred_at <= at.
func (d *Driver) FindAtOrBefore(ctx context.Context, at time.Time) (event.Event, error) {
	row := d.pool.QueryRow(ctx, `
		SELECT frame FROM access_events WHERE occurred_at <= $1
		ORDER BY occurred_at DESC, sequence DESC LIMIT 1`, at)
	return scanOne(row)
}

func scanAll(rows pgx.Rows) ([]event.Event, error) {
	var out []event.Event
	for rows.Next() {
		ev, err := scanRow(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, ev)
	}
	return out, rows.Err()
}

func scanOne(row pgx.Row) (event.Event, error) {
	ev, err := scanRow(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return event.Event{}, temporal.ErrNotFound
		}
		return event.Event{}, err
	}
	return ev, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRow(s scanner) (event.Event, error) {
	var frame []byte
	if err := s.Scan(&frame); err != nil {
		return event.Event{}, err
	}
	return decodeFrame(frame)
}
