// Package main implements the AccessManager node service: the shard-local
// process that owns one slice of the authorization graph, accepts events
// and queries for it over HTTP, and flushes accumulated events to durable
// storage on its own policy.
//
// Architecture:
//
//	┌─────────────────────────────────────────┐
//	│                 Node                     │
//	├─────────────────────────────────────────┤
//	│  HTTP API (internal/api.NodeServer):     │
//	│    POST /internal/events/:kind           │
//	│    GET  /internal/query/:kind/*key       │
//	├─────────────────────────────────────────┤
//	│  Components:                             │
//	│    graphstore.Graph   - live graph        │
//	│    depfree.Manager    - dependency-free   │
//	│                         graph writer      │
//	│    evbuffer.Buffer    - validated event   │
//	│                         buffer            │
//	│    flushpolicy.Worker - flush scheduler   │
//	│    temporal.Persister - durable append    │
//	└─────────────────────────────────────────┘
//
// Configuration is loaded by internal/config.Load (file + environment,
// viper-backed); see config.yaml.example for the full key set.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/dreamware/accessmanager/internal/api"
	"github.com/dreamware/accessmanager/internal/config"
	"github.com/dreamware/accessmanager/internal/depfree"
	"github.com/dreamware/accessmanager/internal/evbuffer"
	"github.com/dreamware/accessmanager/internal/flushpolicy"
	"github.com/dreamware/accessmanager/internal/graphstore"
	"github.com/dreamware/accessmanager/internal/logging"
	"github.com/dreamware/accessmanager/internal/temporal"
	"github.com/dreamware/accessmanager/internal/temporal/memdriver"
	"github.com/dreamware/accessmanager/internal/temporal/pgdriver"
)

func main() {
	root := &cobra.Command{
		Use:   "node",
		Short: "Run an AccessManager shard node",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runNode(cmd.Context())
		},
	}
	root.SilenceUsage = true

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

func runNode(ctx context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	if err := logging.Init(cfg.Log.Level, cfg.Log.Format); err != nil {
		return fmt.Errorf("init logging: %w", err)
	}
	defer logging.Sync()
	log := logging.With(zap.String("node_id", cfg.Node.ID))

	driver, closeDriver, err := openDriver(ctx, cfg.Storage)
	if err != nil {
		return fmt.Errorf("open storage driver: %w", err)
	}
	if closeDriver != nil {
		defer closeDriver()
	}

	mgr := depfree.New(graphstore.New())
	persister := temporal.NewPersister(driver)
	cache := temporal.NewEventCache(cfg.Storage.CacheCapacity)
	persister.Subscribe(cache)
	buf := evbuffer.New(mgr, persister)

	strategy, err := buildStrategy(cfg.Flush, buf)
	if err != nil {
		return fmt.Errorf("build flush strategy: %w", err)
	}
	worker := flushpolicy.NewWorker(strategy, buf.Flush, log)
	worker.Start(ctx)

	srv := api.NewNodeServer(mgr, buf, cache)
	router := api.NewNodeRouter(srv)

	httpSrv := &http.Server{
		Addr:              cfg.Server.ListenAddr,
		Handler:           router,
		ReadTimeout:       cfg.Server.ReadTimeout,
		WriteTimeout:      cfg.Server.WriteTimeout,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		log.Info("node listening", zap.String("addr", cfg.Server.ListenAddr))
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errc <- err
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-errc:
		return fmt.Errorf("listen: %w", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		log.Warn("http shutdown error", zap.Error(err))
	}
	if err := worker.Stop(shutdownCtx); err != nil {
		log.Warn("final flush failed", zap.Error(err))
	}
	log.Info("node stopped")
	return nil
}

// openDriver builds the temporal.StorageDriver cfg.Driver names, returning
// an optional close func the caller must run on shutdown.
func openDriver(ctx context.Context, cfg config.StorageConfig) (temporal.StorageDriver, func(), error) {
	switch cfg.Driver {
	case "postgres":
		d, err := pgdriver.Open(ctx, pgdriver.Config{
			DSN:             cfg.Postgres.DSN,
			MaxConns:        cfg.Postgres.MaxConns,
			MinConns:        cfg.Postgres.MinConns,
			MaxConnLifetime: cfg.Postgres.MaxConnLifetime,
			MaxConnIdleTime: cfg.Postgres.MaxConnIdleTime,
		})
		if err != nil {
			return nil, nil, err
		}
		return d, d.Close, nil
	default:
		return memdriver.New(), nil, nil
	}
}

// buildStrategy translates config.FlushConfig into the flushpolicy.Strategy
// it names, wiring buf's depth reader into whichever strategy reads it.
func buildStrategy(cfg config.FlushConfig, buf *evbuffer.Buffer) (flushpolicy.Strategy, error) {
	switch cfg.Strategy {
	case "size":
		return flushpolicy.Size{Depth: buf.TotalDepth, Threshold: cfg.DepthThreshold, PollInterval: cfg.PollInterval}, nil
	case "interval":
		return flushpolicy.Interval{Period: cfg.Period}, nil
	case "size_or_interval":
		return flushpolicy.SizeOrInterval{Depth: buf.TotalDepth, Threshold: cfg.DepthThreshold, Period: cfg.Period}, nil
	case "manual":
		return flushpolicy.Manual{}, nil
	default:
		return nil, fmt.Errorf("unknown flush strategy %q", cfg.Strategy)
	}
}
