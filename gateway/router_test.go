// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package gateway

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/absmach/liveassist/gateway/events"
)

func TestDeliverToSubject(t *testing.T) {
	r := newTestRegistry(nil)
	ro := NewRouter(r, testLogger())

	t1 := newFakeConn()
	t2 := newFakeConn()
	c1 := r.Admit(t1)
	c2 := r.Admit(t2)
	mustAuth(t, r, c1, "token-u1")
	mustAuth(t, r, c2, "token-u1")

	delivered := ro.DeliverToSubject("u1", events.StatusChange{
		Payload: map[string]any{"state": "online"},
	})
	assert.Equal(t, 2, delivered)

	frames1 := t1.writtenFrames()
	frames2 := t2.writtenFrames()
	require.Len(t, frames1, 1)
	require.Len(t, frames2, 1)
	assert.Equal(t, frames1[0], frames2[0], "all recipients must see byte-identical payloads")

	var frame map[string]any
	require.NoError(t, json.Unmarshal(frames1[0], &frame))
	assert.Equal(t, events.TypeStatusChange, frame["type"])
	assert.Equal(t, "online", frame["state"])
	assert.NotEmpty(t, frame["timestamp"])
}

func TestDeliverToResource(t *testing.T) {
	r := newTestRegistry(nil)
	ro := NewRouter(r, testLogger())

	t1 := newFakeConn()
	c1 := r.Admit(t1)
	mustAuth(t, r, c1, "token-u1")
	require.NoError(t, r.BindResource(context.Background(), c1, "s1"))

	delivered := ro.DeliverToResource("s1", events.ContentUpdate{
		MessageID: "m42",
		Meta:      map[string]any{"kind": "chat"},
	})
	assert.Equal(t, 1, delivered)

	frames := t1.writtenFrames()
	require.Len(t, frames, 1)

	var frame map[string]any
	require.NoError(t, json.Unmarshal(frames[0], &frame))
	assert.Equal(t, events.TypeContentUpdate, frame["type"])
	assert.Equal(t, "m42", frame["messageId"])
}

func TestDeliverEmptyAudience(t *testing.T) {
	r := newTestRegistry(nil)
	ro := NewRouter(r, testLogger())

	assert.Equal(t, 0, ro.DeliverToSubject("nobody", events.StatusChange{}))
	assert.Equal(t, 0, ro.DeliverToResource("nothing", events.ContentUpdate{MessageID: "m1"}))
}

func TestDeliverSkipsClosedTransport(t *testing.T) {
	r := newTestRegistry(nil)
	ro := NewRouter(r, testLogger())

	t1 := newFakeConn()
	t2 := newFakeConn()
	c1 := r.Admit(t1)
	c2 := r.Admit(t2)
	mustAuth(t, r, c1, "token-u1")
	mustAuth(t, r, c2, "token-u1")

	// Transport died but the close handler has not run yet.
	t2.Close()

	delivered := ro.DeliverToSubject("u1", events.StatusChange{Payload: map[string]any{"x": 1}})
	assert.Equal(t, 1, delivered)

	// The router never mutates the registry; the dead connection is left
	// for the close handler or heartbeat to reap.
	assert.Equal(t, 2, r.Count())
}

func TestDeliverAfterAbruptDisconnect(t *testing.T) {
	r := newTestRegistry(nil)
	ro := NewRouter(r, testLogger())

	c := r.Admit(newFakeConn())
	mustAuth(t, r, c, "token-u1")
	require.NoError(t, r.BindResource(context.Background(), c, "s1"))

	// Abrupt disconnect: no explicit unsubscribe, just removal.
	r.Remove(c)

	assert.Equal(t, 0, ro.DeliverToResource("s1", events.ContentUpdate{MessageID: "m1"}))
	assert.Nil(t, r.byResource["s1"], "bucket must not be retained")
}

func TestDeliverWriteErrorNotCounted(t *testing.T) {
	r := newTestRegistry(nil)
	ro := NewRouter(r, testLogger())

	t1 := newFakeConn()
	t1.failWrites = true
	c := r.Admit(t1)
	mustAuth(t, r, c, "token-u1")

	delivered := ro.DeliverToSubject("u1", events.StatusChange{Payload: map[string]any{"x": 1}})
	assert.Equal(t, 0, delivered)
	assert.Equal(t, 1, r.Count(), "write failure must not mutate the registry")
}
