// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

// Package events defines the outbound event kinds the gateway delivers to
// live connections. The router treats events as opaque serializable
// payloads; only the surrounding business logic interprets their fields.
package events

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Event type constants.
const (
	TypeContentUpdate = "content.updated"
	TypeStatusChange  = "status.changed"
)

// Event is the common interface for all gateway events.
type Event interface {
	// Type returns the event type identifier (e.g., "content.updated").
	Type() string

	// Fields returns the event-specific payload merged into the wire frame.
	Fields() map[string]any
}

// Marshal serializes an event into its wire form: the event fields plus a
// type tag, a unique event id, and an RFC 3339 timestamp at the top level.
// A single Marshal result is fanned out to every recipient of one delivery,
// so all recipients see byte-identical payloads.
func Marshal(e Event) ([]byte, error) {
	fields := e.Fields()
	frame := make(map[string]any, len(fields)+3)
	for k, v := range fields {
		frame[k] = v
	}
	frame["type"] = e.Type()
	frame["id"] = uuid.New().String()
	frame["timestamp"] = time.Now().UTC().Format(time.RFC3339Nano)

	return json.Marshal(frame)
}

// ContentUpdate notifies a resource audience that new content (e.g. a chat
// message in a LiveAssist session) is available for fetch.
type ContentUpdate struct {
	MessageID string         `json:"messageId"`
	Meta      map[string]any `json:"meta,omitempty"`
}

func (e ContentUpdate) Type() string { return TypeContentUpdate }

func (e ContentUpdate) Fields() map[string]any {
	fields := map[string]any{"messageId": e.MessageID}
	if len(e.Meta) > 0 {
		fields["meta"] = e.Meta
	}
	return fields
}

// StatusChange notifies a subject audience of a state transition; the
// payload is free-form and merged into the frame as-is.
type StatusChange struct {
	Payload map[string]any
}

func (e StatusChange) Type() string { return TypeStatusChange }

func (e StatusChange) Fields() map[string]any {
	return e.Payload
}
