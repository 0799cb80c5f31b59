// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

// Package ownership answers "does subject X own resource Y". The gateway
// consults it before binding a connection to a resource. Any lookup failure
// is a denial: the registry must never grant access on infrastructure error.
package ownership

import (
	"context"
	"log/slog"
	"time"

	"github.com/sony/gobreaker"
)

// Oracle answers resource ownership queries. Implementations may hit a
// database or a remote service and can fail; callers treat failure as
// denial.
type Oracle interface {
	OwnsResource(ctx context.Context, subjectID, resourceID string) (bool, error)
}

// BreakerConfig holds circuit breaker settings for oracle lookups.
type BreakerConfig struct {
	FailureThreshold uint32        `yaml:"failure_threshold"`
	ResetTimeout     time.Duration `yaml:"reset_timeout"`
}

// Breaker wraps an Oracle with a circuit breaker so a failing backing store
// degrades to fast denials instead of piling up timed-out lookups. An honest
// "not owned" answer does not count as a failure; only lookup errors trip
// the breaker.
type Breaker struct {
	oracle Oracle
	cb     *gobreaker.CircuitBreaker
}

// NewBreaker wraps the oracle with a circuit breaker.
func NewBreaker(oracle Oracle, cfg BreakerConfig, logger *slog.Logger) *Breaker {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.FailureThreshold == 0 {
		cfg.FailureThreshold = 5
	}
	if cfg.ResetTimeout == 0 {
		cfg.ResetTimeout = 60 * time.Second
	}

	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "ownership-oracle",
		MaxRequests: 1,
		Timeout:     cfg.ResetTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.FailureThreshold
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.Warn("ownership breaker state changed",
				slog.String("from", from.String()),
				slog.String("to", to.String()))
		},
	})

	return &Breaker{oracle: oracle, cb: cb}
}

// OwnsResource implements Oracle. When the breaker is open the lookup fails
// immediately; the caller's deny-by-default policy applies.
func (b *Breaker) OwnsResource(ctx context.Context, subjectID, resourceID string) (bool, error) {
	v, err := b.cb.Execute(func() (any, error) {
		return b.oracle.OwnsResource(ctx, subjectID, resourceID)
	})
	if err != nil {
		return false, err
	}
	return v.(bool), nil
}
