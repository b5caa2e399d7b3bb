// Package health exposes liveness and readiness probes backed by the
// ledger node's health endpoint.
package health

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/amitsaini144/solagram/internal/ledger"
	"github.com/amitsaini144/solagram/internal/metrics"
)

const (
	defaultInterval = 5 * time.Second
	probeTimeout    = 5 * time.Second
)

// Checker tracks whether the ledger node is reachable. Liveness only says
// the process is up; readiness reflects the most recent probe.
type Checker struct {
	client   ledger.RecordClient
	met      *metrics.Metrics
	logger   *zap.Logger
	interval time.Duration

	mu        sync.RWMutex
	ready     bool
	lastSlot  uint64
	lastCheck time.Time
}

// NewChecker creates a Checker. Call Run to start periodic probing.
func NewChecker(client ledger.RecordClient, met *metrics.Metrics, logger *zap.Logger) *Checker {
	return &Checker{
		client:   client,
		met:      met,
		logger:   logger,
		interval: defaultInterval,
	}
}

// Run probes the ledger until ctx is canceled. The first probe fires
// immediately so readiness converges right after startup.
func (c *Checker) Run(ctx context.Context) error {
	c.probe(ctx)

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			c.probe(ctx)
		}
	}
}

func (c *Checker) probe(ctx context.Context) error {
	// Set timeout
	ctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	slot, err := c.client.Health(ctx)

	c.mu.Lock()
	if err != nil {
		c.ready = false
		c.logger.Warn("ledger health check failed", zap.Error(err))
	} else {
		c.ready = true
		c.lastSlot = slot
	}
	c.lastCheck = time.Now()
	c.mu.Unlock()

	c.met.SetHealthStatus(err == nil)
	return err
}

// LivenessResponse is the GET /health body.
type LivenessResponse struct {
	Status string `json:"status"`
}

// ReadinessResponse is the GET /ready body.
type ReadinessResponse struct {
	Status string            `json:"status"`
	Slot   uint64            `json:"slot,omitempty"`
	Checks map[string]string `json:"checks,omitempty"`
	Error  string            `json:"error,omitempty"`
}

// LivenessHandler handles GET /health requests.
// Returns 200 OK if the process is running.
func (c *Checker) LivenessHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(LivenessResponse{Status: "healthy"})
}

// ReadinessHandler handles GET /ready requests. A checker that has not
// seen a healthy probe yet gets one fresh chance before reporting 503.
func (c *Checker) ReadinessHandler(w http.ResponseWriter, r *http.Request) {
	c.mu.RLock()
	ready := c.ready
	slot := c.lastSlot
	c.mu.RUnlock()

	w.Header().Set("Content-Type", "application/json")

	if !ready {
		// Perform a fresh check if not ready
		if err := c.probe(r.Context()); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			json.NewEncoder(w).Encode(ReadinessResponse{
				Status: "not_ready",
				Checks: map[string]string{"ledger": "unhealthy"},
				Error:  err.Error(),
			})
			return
		}
		c.mu.RLock()
		slot = c.lastSlot
		c.mu.RUnlock()
	}

	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(ReadinessResponse{
		Status: "ready",
		Slot:   slot,
		Checks: map[string]string{"ledger": "healthy"},
	})
}

// IsReady returns the current readiness status.
func (c *Checker) IsReady() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.ready
}

// SetReady sets the readiness status (for testing).
func (c *Checker) SetReady(ready bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ready = ready
}

// LastSlot returns the slot reported by the most recent healthy probe.
func (c *Checker) LastSlot() uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.lastSlot
}
