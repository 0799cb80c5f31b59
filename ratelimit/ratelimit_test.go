// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package ratelimit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestAllowWithinBurst(t *testing.T) {
	l := NewIPRateLimiter(1, 3, time.Minute)
	defer l.Stop()

	for i := 0; i < 3; i++ {
		assert.True(t, l.Allow("192.168.1.10:50000"), "attempt %d within burst", i)
	}
	assert.False(t, l.Allow("192.168.1.10:50001"), "burst exhausted for this IP")
}

func TestPerIPIsolation(t *testing.T) {
	l := NewIPRateLimiter(1, 1, time.Minute)
	defer l.Stop()

	assert.True(t, l.Allow("192.168.1.10:50000"))
	assert.False(t, l.Allow("192.168.1.10:50001"))

	// A different client is unaffected.
	assert.True(t, l.Allow("192.168.1.11:50000"))
}

func TestAllowRefills(t *testing.T) {
	l := NewIPRateLimiter(100, 1, time.Minute)
	defer l.Stop()

	assert.True(t, l.Allow("10.0.0.1:1234"))
	assert.False(t, l.Allow("10.0.0.1:1234"))

	time.Sleep(20 * time.Millisecond)
	assert.True(t, l.Allow("10.0.0.1:1234"))
}

func TestAllowUnparseableAddress(t *testing.T) {
	l := NewIPRateLimiter(1, 1, time.Minute)
	defer l.Stop()

	// A bare host still rate limits; an empty address is let through.
	assert.True(t, l.Allow("192.168.1.10"))
	assert.False(t, l.Allow("192.168.1.10"))
	assert.True(t, l.Allow(""))
}

func TestEvictStale(t *testing.T) {
	l := NewIPRateLimiter(1, 1, time.Hour)
	defer l.Stop()

	l.Allow("192.168.1.10:50000")

	l.mu.Lock()
	l.limiters["192.168.1.10"].lastSeen = time.Now().Add(-3 * time.Hour)
	l.mu.Unlock()

	l.evictStale()

	l.mu.Lock()
	_, exists := l.limiters["192.168.1.10"]
	l.mu.Unlock()
	assert.False(t, exists, "stale entry must be evicted")
}
