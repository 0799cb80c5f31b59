// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package events

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func unmarshalFrame(t *testing.T, data []byte) map[string]any {
	t.Helper()

	var frame map[string]any
	require.NoError(t, json.Unmarshal(data, &frame))
	return frame
}

func TestMarshalContentUpdate(t *testing.T) {
	data, err := Marshal(ContentUpdate{
		MessageID: "m42",
		Meta:      map[string]any{"kind": "chat"},
	})
	require.NoError(t, err)

	frame := unmarshalFrame(t, data)
	assert.Equal(t, TypeContentUpdate, frame["type"])
	assert.Equal(t, "m42", frame["messageId"])
	assert.Equal(t, map[string]any{"kind": "chat"}, frame["meta"])

	_, err = uuid.Parse(frame["id"].(string))
	assert.NoError(t, err, "event id must be a valid uuid")

	ts, err := time.Parse(time.RFC3339Nano, frame["timestamp"].(string))
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().UTC(), ts, time.Minute)
}

func TestMarshalContentUpdateOmitsEmptyMeta(t *testing.T) {
	data, err := Marshal(ContentUpdate{MessageID: "m1"})
	require.NoError(t, err)

	frame := unmarshalFrame(t, data)
	assert.NotContains(t, frame, "meta")
}

func TestMarshalStatusChange(t *testing.T) {
	data, err := Marshal(StatusChange{
		Payload: map[string]any{"state": "online", "since": "now"},
	})
	require.NoError(t, err)

	frame := unmarshalFrame(t, data)
	assert.Equal(t, TypeStatusChange, frame["type"])
	assert.Equal(t, "online", frame["state"])
	assert.Equal(t, "now", frame["since"])
}

func TestMarshalPayloadCannotOverrideEnvelope(t *testing.T) {
	data, err := Marshal(StatusChange{
		Payload: map[string]any{"type": "spoofed", "id": "fake"},
	})
	require.NoError(t, err)

	frame := unmarshalFrame(t, data)
	assert.Equal(t, TypeStatusChange, frame["type"], "envelope fields win over payload fields")
	assert.NotEqual(t, "fake", frame["id"])
}

func TestMarshalUniqueIDs(t *testing.T) {
	ev := ContentUpdate{MessageID: "m1"}

	a, err := Marshal(ev)
	require.NoError(t, err)
	b, err := Marshal(ev)
	require.NoError(t, err)

	assert.NotEqual(t, unmarshalFrame(t, a)["id"], unmarshalFrame(t, b)["id"])
}
