// Package main implements the AccessManager coordinator service: the
// public-facing process that routes every client mutation and query to
// the shard node that owns it, per the static hash-range configuration
// in internal/shardrouter.
//
// Architecture:
//
//	┌─────────────────────────────────────────┐
//	│              Coordinator                 │
//	├─────────────────────────────────────────┤
//	│  HTTP API (internal/api.PublicServer):   │
//	│    /api/v1/users, /groups, ...           │
//	├─────────────────────────────────────────┤
//	│  Components:                             │
//	│    shardrouter.ConfigSet   - shard table  │
//	│    shardrouter.Router      - routing + dual-write │
//	│    shardrouter.HealthMonitor - shard liveness log │
//	│    opcoordinator.Coordinator - operation routing  │
//	└─────────────────────────────────────────┘
//
// The shard table is read from config.Router.Shards (file/environment,
// viper-backed); see config.yaml.example.
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
	"github.com/dreamware/accessmanager/internal/event"
	"github.com/dreamware/accessmanager/internal/logging"
	"github.com/dreamware/accessmanager/internal/opcoordinator"
	"github.com/dreamware/accessmanager/internal/shardrouter"
)

func main() {
	root := &cobra.Command{
		Use:   "coordinator",
		Short: "Run the AccessManager coordinator",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCoordinator(cmd.Context())
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

func runCoordinator(ctx context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	if err := logging.Init(cfg.Log.Level, cfg.Log.Format); err != nil {
		return fmt.Errorf("init logging: %w", err)
	}
	defer logging.Sync()
	log := logging.With(zap.String("node_id", cfg.Node.ID))

	configs, err := buildConfigSet(cfg.Router.Shards)
	if err != nil {
		return fmt.Errorf("build shard config: %w", err)
	}

	pool := shardrouter.NewClientPool(cfg.Router.RequestTimeout)
	router := shardrouter.NewRouter(configs, pool)
	coord := opcoordinator.New(router, eventPathFor, queryPathFor)

	monitor := shardrouter.NewHealthMonitor(configs, 5*time.Second, log)
	monitor.Start(ctx)
	defer monitor.Stop()

	srv := api.NewPublicServer(coord)
	httpSrv := &http.Server{
		Addr:              cfg.Server.ListenAddr,
		Handler:           api.NewPublicRouter(srv),
		ReadTimeout:       cfg.Server.ReadTimeout,
		WriteTimeout:      cfg.Server.WriteTimeout,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		log.Info("coordinator listening", zap.String("addr", cfg.Server.ListenAddr))
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
	log.Info("coordinator stopped")
	return nil
}

// buildConfigSet translates config.Router.Shards — a flat list keyed by
// element/operation name — into a shardrouter.ConfigSet.
func buildConfigSet(entries []config.ShardEntry) (*shardrouter.ConfigSet, error) {
	byKey := make(map[[2]string][]shardrouter.ShardConfig)
	for _, e := range entries {
		element, err := parseElement(e.Element)
		if err != nil {
			return nil, err
		}
		operation, err := parseOperation(e.Operation)
		if err != nil {
			return nil, err
		}
		key := [2]string{string(element), string(operation)}
		byKey[key] = append(byKey[key], shardrouter.ShardConfig{HashRangeStart: e.HashRangeStart, BaseURL: e.BaseURL})
	}

	cs := shardrouter.NewConfigSet()
	for key, shards := range byKey {
		cs.SetShards(shardrouter.DataElement(key[0]), shardrouter.Operation(key[1]), shards)
	}
	return cs, nil
}

func parseElement(s string) (shardrouter.DataElement, error) {
	switch shardrouter.DataElement(s) {
	case shardrouter.DataElementUser, shardrouter.DataElementGroup, shardrouter.DataElementGroupToGroup:
		return shardrouter.DataElement(s), nil
	default:
		return "", fmt.Errorf("unknown router shard element %q", s)
	}
}

func parseOperation(s string) (shardrouter.Operation, error) {
	switch shardrouter.Operation(s) {
	case shardrouter.OperationQuery, shardrouter.OperationEvent:
		return shardrouter.Operation(s), nil
	default:
		return "", fmt.Errorf("unknown router shard operation %q", s)
	}
}

// eventPathFor/queryPathFor mirror the route pattern
// internal/api.NewNodeRouter registers each shard's node-local surface
// on, keeping opcoordinator.Coordinator decoupled from gin route strings.
func eventPathFor(kind event.Kind) string { return "/internal/events/" + string(kind) }
func queryPathFor(kind event.Kind, key string) string {
	return "/internal/query/" + string(kind) + "/" + key
}
