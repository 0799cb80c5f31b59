// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package otel

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"

	"github.com/absmach/liveassist/gateway"
)

// RegisterMetrics exposes the gateway's counters as OpenTelemetry
// instruments. Observables read the atomic counters on each collection
// cycle, so the hot paths carry no instrumentation overhead beyond the
// atomics they already maintain.
func RegisterMetrics(stats *gateway.Stats) error {
	meter := otel.Meter("liveassist-gateway")

	connectionsTotal, err := meter.Int64ObservableCounter(
		"gateway.connections.total",
		metric.WithDescription("Total number of admitted connections"),
	)
	if err != nil {
		return fmt.Errorf("failed to create connections counter: %w", err)
	}

	connectionsCurrent, err := meter.Int64ObservableGauge(
		"gateway.connections.current",
		metric.WithDescription("Currently live connections"),
	)
	if err != nil {
		return fmt.Errorf("failed to create current connections gauge: %w", err)
	}

	evictionsTotal, err := meter.Int64ObservableCounter(
		"gateway.evictions.total",
		metric.WithDescription("Connections evicted by the liveness sweep"),
	)
	if err != nil {
		return fmt.Errorf("failed to create evictions counter: %w", err)
	}

	authFailuresTotal, err := meter.Int64ObservableCounter(
		"gateway.auth.failures.total",
		metric.WithDescription("Rejected authentication attempts"),
	)
	if err != nil {
		return fmt.Errorf("failed to create auth failures counter: %w", err)
	}

	oracleFailuresTotal, err := meter.Int64ObservableCounter(
		"gateway.ownership.failures.total",
		metric.WithDescription("Ownership oracle lookup failures (denied by default)"),
	)
	if err != nil {
		return fmt.Errorf("failed to create oracle failures counter: %w", err)
	}

	framesDroppedTotal, err := meter.Int64ObservableCounter(
		"gateway.frames.dropped.total",
		metric.WithDescription("Malformed inbound frames dropped"),
	)
	if err != nil {
		return fmt.Errorf("failed to create frames dropped counter: %w", err)
	}

	eventsDeliveredTotal, err := meter.Int64ObservableCounter(
		"gateway.events.delivered.total",
		metric.WithDescription("Events delivered to live connections"),
	)
	if err != nil {
		return fmt.Errorf("failed to create events delivered counter: %w", err)
	}

	_, err = meter.RegisterCallback(
		func(_ context.Context, o metric.Observer) error {
			o.ObserveInt64(connectionsTotal, int64(stats.GetTotalConnections()))
			o.ObserveInt64(connectionsCurrent, int64(stats.GetCurrentConnections()))
			o.ObserveInt64(evictionsTotal, int64(stats.GetEvictions()))
			o.ObserveInt64(authFailuresTotal, int64(stats.GetAuthFailures()))
			o.ObserveInt64(oracleFailuresTotal, int64(stats.GetOracleFailures()))
			o.ObserveInt64(framesDroppedTotal, int64(stats.GetFramesDropped()))
			o.ObserveInt64(eventsDeliveredTotal, int64(stats.GetEventsDelivered()))
			return nil
		},
		connectionsTotal, connectionsCurrent, evictionsTotal,
		authFailuresTotal, oracleFailuresTotal, framesDroppedTotal,
		eventsDeliveredTotal,
	)
	if err != nil {
		return fmt.Errorf("failed to register metrics callback: %w", err)
	}

	return nil
}
