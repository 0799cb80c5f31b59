// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package gateway

import (
	"log/slog"
	"sync"
	"time"
)

// DefaultHeartbeatInterval is the sweep period when none is configured.
const DefaultHeartbeatInterval = 30 * time.Second

// Heartbeat detects and evicts connections whose transport-level close was
// never observed, e.g. after a network partition. Each sweep suspects every
// connection (clears its liveness flag and sends a probe); a connection that
// fails to respond before the next sweep is evicted. Worst-case detection
// latency is therefore two intervals.
type Heartbeat struct {
	registry *Registry
	interval time.Duration
	logger   *slog.Logger

	stopCh chan struct{}
	wg     sync.WaitGroup
}

// NewHeartbeat creates a heartbeat monitor over the registry.
func NewHeartbeat(registry *Registry, interval time.Duration, logger *slog.Logger) *Heartbeat {
	if interval <= 0 {
		interval = DefaultHeartbeatInterval
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Heartbeat{
		registry: registry,
		interval: interval,
		logger:   logger,
		stopCh:   make(chan struct{}),
	}
}

// Start launches the periodic sweep.
func (h *Heartbeat) Start() {
	h.wg.Add(1)
	go h.loop()
}

// Stop terminates the sweep loop and waits for it to finish.
func (h *Heartbeat) Stop() {
	close(h.stopCh)
	h.wg.Wait()
}

func (h *Heartbeat) loop() {
	defer h.wg.Done()

	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			h.sweep()
		case <-h.stopCh:
			return
		}
	}
}

// sweep evicts suspect connections and probes the rest. A single
// connection's eviction never halts the sweep; it proceeds to the next.
func (h *Heartbeat) sweep() {
	for _, c := range h.registry.snapshotAll() {
		if !c.alive.Load() {
			h.evict(c, "probe_timeout")
			continue
		}

		c.alive.Store(false)
		if err := c.transport.Ping(); err != nil {
			// A failed probe transmission counts the same as a failed
			// liveness check.
			h.logger.Warn("liveness_probe_failed",
				slog.String("conn_id", c.ID()),
				slog.Any("error", err))
			h.evict(c, "probe_send_failed")
		}
	}
}

func (h *Heartbeat) evict(c *Connection, reason string) {
	h.logger.Info("connection_evicted",
		slog.String("conn_id", c.ID()),
		slog.String("subject_id", c.SubjectID()),
		slog.String("reason", reason))

	c.transport.Close()
	h.registry.Remove(c)
	h.registry.stats.IncrementEvictions()
}
