// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package gateway

import (
	"log/slog"

	"github.com/absmach/liveassist/gateway/events"
)

// Router is the outward-facing delivery API. Given a target audience it
// looks up the registry and sends the event to every matching live
// connection, best effort, at most once. The router never mutates the
// registry: connections found in a non-open transport state are skipped
// and left for the close handler or the heartbeat sweep to reap.
type Router struct {
	registry *Registry
	logger   *slog.Logger
}

// NewRouter creates an event router over the given registry.
func NewRouter(registry *Registry, logger *slog.Logger) *Router {
	if logger == nil {
		logger = slog.Default()
	}
	return &Router{registry: registry, logger: logger}
}

// DeliverToSubject delivers an event to every live connection authenticated
// as the subject and returns the delivered count. An empty audience is not
// an error; the subject may simply have no live connections.
func (ro *Router) DeliverToSubject(subjectID string, ev events.Event) int {
	return ro.deliver("subject", subjectID, ro.registry.subjectConns(subjectID), ev)
}

// DeliverToResource delivers an event to every live connection bound to the
// resource and returns the delivered count.
func (ro *Router) DeliverToResource(resourceID string, ev events.Event) int {
	return ro.deliver("resource", resourceID, ro.registry.resourceConns(resourceID), ev)
}

// deliver serializes the event once and fans it out to the snapshot taken at
// call time. Connections joining the audience after the snapshot do not
// receive the event. Sends happen outside the registry lock.
func (ro *Router) deliver(kind, target string, audience []*Connection, ev events.Event) int {
	if len(audience) == 0 {
		return 0
	}

	payload, err := events.Marshal(ev)
	if err != nil {
		ro.logger.Error("event_marshal_failed",
			slog.String("event_type", ev.Type()),
			slog.Any("error", err))
		return 0
	}

	delivered := 0
	for _, c := range audience {
		if !c.transport.Open() {
			continue
		}
		if err := c.transport.WriteFrame(payload); err != nil {
			ro.logger.Warn("event_delivery_failed",
				slog.String("conn_id", c.id),
				slog.String("event_type", ev.Type()),
				slog.Any("error", err))
			continue
		}
		delivered++
	}

	ro.registry.stats.AddEventsDelivered(uint64(delivered))
	ro.logger.Debug("event_delivered",
		slog.String("event_type", ev.Type()),
		slog.String(kind+"_id", target),
		slog.Int("audience", len(audience)),
		slog.Int("delivered", delivered))

	return delivered
}
