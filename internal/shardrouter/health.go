package shardrouter

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"
)

// shardHealth tracks one shard base URL's liveness, mirroring
// internal/coordinator.NodeHealth's fields but against a static shard
// list instead of a dynamically registered node set — spec.md §4.7 keeps
// shard assignment as static hash-range configuration, so health here
// only drives logging/metrics, never reassignment.
type shardHealth struct {
	Status           string
	LastCheck        time.Time
	LastHealthy      time.Time
	ConsecutiveFails int
}

// HealthMonitor periodically probes every shard base URL registered in a
// ConfigSet and logs status transitions, so an operator watching logs
// notices a dead shard before a client request does.
type HealthMonitor struct {
	configs *ConfigSet
	http    *http.Client
	log     *zap.Logger

	interval    time.Duration
	maxFailures int

	mu     sync.Mutex
	shards map[string]*shardHealth

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewHealthMonitor builds a monitor that checks every shard in configs
// every interval, using a 2-second probe timeout and a 3-failure
// threshold before a shard is logged unhealthy.
func NewHealthMonitor(configs *ConfigSet, interval time.Duration, log *zap.Logger) *HealthMonitor {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	return &HealthMonitor{
		configs:     configs,
		http:        &http.Client{Timeout: 2 * time.Second},
		log:         log,
		interval:    interval,
		maxFailures: 3,
		shards:      make(map[string]*shardHealth),
	}
}

// Start launches the monitoring goroutine and returns without blocking;
// ctx cancellation is observed by the background loop, not by Start itself.
func (m *HealthMonitor) Start(ctx context.Context) {
	runCtx, cancel := context.WithCancel(ctx)
	m.cancel = cancel

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		ticker := time.NewTicker(m.interval)
		defer ticker.Stop()

		m.checkAll(runCtx)
		for {
			select {
			case <-ticker.C:
				m.checkAll(runCtx)
			case <-runCtx.Done():
				return
			}
		}
	}()
}

// Stop cancels the monitoring goroutine and waits for it to exit.
func (m *HealthMonitor) Stop() {
	if m.cancel != nil {
		m.cancel()
	}
	m.wg.Wait()
}

func (m *HealthMonitor) checkAll(ctx context.Context) {
	for _, baseURL := range m.configs.AllBaseURLs() {
		m.checkShard(ctx, baseURL)
	}
}

func (m *HealthMonitor) checkShard(ctx context.Context, baseURL string) {
	err := m.probe(ctx, baseURL)

	m.mu.Lock()
	h, ok := m.shards[baseURL]
	if !ok {
		h = &shardHealth{Status: "unknown"}
		m.shards[baseURL] = h
	}
	h.LastCheck = time.Now()

	if err != nil {
		h.ConsecutiveFails++
		if h.ConsecutiveFails >= m.maxFailures && h.Status != "unhealthy" {
			h.Status = "unhealthy"
			m.mu.Unlock()
			m.log.Warn("shard marked unhealthy", zap.String("shard", baseURL), zap.Error(err))
			return
		}
		m.mu.Unlock()
		return
	}

	wasUnhealthy := h.Status == "unhealthy"
	h.Status = "healthy"
	h.LastHealthy = time.Now()
	h.ConsecutiveFails = 0
	m.mu.Unlock()

	if wasUnhealthy {
		m.log.Info("shard recovered", zap.String("shard", baseURL))
	}
}

func (m *HealthMonitor) probe(ctx context.Context, baseURL string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, baseURL+"/healthz", http.NoBody)
	if err != nil {
		return err
	}
	resp, err := m.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("shardrouter: health probe %s: status %d", baseURL, resp.StatusCode)
	}
	return nil
}

// Status returns the last-seen status for baseURL, or "unknown" if it has
// never been checked.
func (m *HealthMonitor) Status(baseURL string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	h, ok := m.shards[baseURL]
	if !ok {
		return "unknown"
	}
	return h.Status
}
