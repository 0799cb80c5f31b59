// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package gateway

import (
	"sync/atomic"
	"time"
)

// Stats tracks gateway counters. All counters are atomics; Stats is safe
// for concurrent use from connection goroutines and the heartbeat sweep.
type Stats struct {
	startTime time.Time

	totalConnections   atomic.Uint64
	currentConnections atomic.Uint64
	evictions          atomic.Uint64

	authFailures   atomic.Uint64
	oracleFailures atomic.Uint64
	framesDropped  atomic.Uint64

	eventsDelivered atomic.Uint64
}

// NewStats creates a new Stats instance.
func NewStats() *Stats {
	return &Stats{startTime: time.Now()}
}

func (s *Stats) IncrementConnections() {
	s.totalConnections.Add(1)
	s.currentConnections.Add(1)
}

func (s *Stats) DecrementConnections() {
	s.currentConnections.Add(^uint64(0))
}

func (s *Stats) IncrementEvictions() {
	s.evictions.Add(1)
}

func (s *Stats) IncrementAuthFailures() {
	s.authFailures.Add(1)
}

func (s *Stats) IncrementOracleFailures() {
	s.oracleFailures.Add(1)
}

func (s *Stats) IncrementFramesDropped() {
	s.framesDropped.Add(1)
}

func (s *Stats) AddEventsDelivered(n uint64) {
	s.eventsDelivered.Add(n)
}

func (s *Stats) GetTotalConnections() uint64 {
	return s.totalConnections.Load()
}

func (s *Stats) GetCurrentConnections() uint64 {
	return s.currentConnections.Load()
}

func (s *Stats) GetEvictions() uint64 {
	return s.evictions.Load()
}

func (s *Stats) GetAuthFailures() uint64 {
	return s.authFailures.Load()
}

func (s *Stats) GetOracleFailures() uint64 {
	return s.oracleFailures.Load()
}

func (s *Stats) GetFramesDropped() uint64 {
	return s.framesDropped.Load()
}

func (s *Stats) GetEventsDelivered() uint64 {
	return s.eventsDelivered.Load()
}

// Uptime returns the elapsed time since the gateway started.
func (s *Stats) Uptime() time.Duration {
	return time.Since(s.startTime)
}
