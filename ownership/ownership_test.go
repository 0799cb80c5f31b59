// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package ownership

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeOracle struct {
	fn    func() (bool, error)
	calls int
}

func (o *fakeOracle) OwnsResource(_ context.Context, _, _ string) (bool, error) {
	o.calls++
	return o.fn()
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestBreakerPassThrough(t *testing.T) {
	oracle := &fakeOracle{fn: func() (bool, error) { return true, nil }}
	b := NewBreaker(oracle, BreakerConfig{}, testLogger())

	owns, err := b.OwnsResource(context.Background(), "u1", "s1")
	require.NoError(t, err)
	assert.True(t, owns)
}

func TestBreakerDenialIsNotFailure(t *testing.T) {
	oracle := &fakeOracle{fn: func() (bool, error) { return false, nil }}
	b := NewBreaker(oracle, BreakerConfig{FailureThreshold: 2}, testLogger())

	// Honest denials never trip the breaker.
	for i := 0; i < 10; i++ {
		owns, err := b.OwnsResource(context.Background(), "u1", "s1")
		require.NoError(t, err)
		assert.False(t, owns)
	}
	assert.Equal(t, 10, oracle.calls)
}

func TestBreakerTripsOnConsecutiveFailures(t *testing.T) {
	oracle := &fakeOracle{fn: func() (bool, error) {
		return false, errors.New("store unavailable")
	}}
	b := NewBreaker(oracle, BreakerConfig{FailureThreshold: 3, ResetTimeout: time.Minute}, testLogger())

	for i := 0; i < 3; i++ {
		_, err := b.OwnsResource(context.Background(), "u1", "s1")
		require.Error(t, err)
	}

	// Breaker is open: the oracle is no longer consulted.
	_, err := b.OwnsResource(context.Background(), "u1", "s1")
	require.Error(t, err)
	assert.Equal(t, 3, oracle.calls)
}

func TestBreakerSuccessResetsCount(t *testing.T) {
	fail := true
	oracle := &fakeOracle{fn: func() (bool, error) {
		if fail {
			return false, errors.New("store unavailable")
		}
		return true, nil
	}}
	b := NewBreaker(oracle, BreakerConfig{FailureThreshold: 3, ResetTimeout: time.Minute}, testLogger())

	for i := 0; i < 2; i++ {
		_, err := b.OwnsResource(context.Background(), "u1", "s1")
		require.Error(t, err)
	}

	fail = false
	owns, err := b.OwnsResource(context.Background(), "u1", "s1")
	require.NoError(t, err)
	assert.True(t, owns)

	fail = true
	for i := 0; i < 2; i++ {
		_, err := b.OwnsResource(context.Background(), "u1", "s1")
		require.Error(t, err)
	}

	// Two failures after a success: still below the threshold.
	fail = false
	_, err = b.OwnsResource(context.Background(), "u1", "s1")
	assert.NoError(t, err)
}
