// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package gateway

import (
	"net"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// Conn is the transport-level interface implemented by server frontends
// (WebSocket today). Frames are opaque byte slices; the gateway decodes
// them at the boundary.
type Conn interface {
	// ReadFrame blocks until the next inbound frame arrives. Any error is
	// fatal to the connection.
	ReadFrame() ([]byte, error)

	// WriteFrame sends a single frame. Safe for concurrent use.
	WriteFrame(data []byte) error

	// Ping sends a transport-level liveness probe.
	Ping() error

	// SetPongHandler registers a callback invoked on each probe response.
	SetPongHandler(fn func())

	// Open reports whether the transport is still usable for writes.
	Open() bool

	// Close shuts the transport down. Must be idempotent.
	Close() error

	RemoteAddr() net.Addr
}

// Connection is the registry's per-client state. Identity fields (subject,
// resource) are guarded by the owning Registry's mutex; liveness and closed
// flags are atomics because they are touched from the pong handler and the
// heartbeat sweep without the registry lock.
type Connection struct {
	id        string
	transport Conn
	reg       *Registry
	since     time.Time

	alive  atomic.Bool
	closed atomic.Bool

	// Guarded by reg.mu.
	subjectID  string
	resourceID string
}

func newConnection(t Conn, reg *Registry) *Connection {
	c := &Connection{
		id:        uuid.New().String(),
		transport: t,
		reg:       reg,
		since:     time.Now(),
	}
	c.alive.Store(true)
	return c
}

// ID returns the process-lifetime unique connection identifier. It is not
// stable across reconnects.
func (c *Connection) ID() string {
	return c.id
}

// Transport returns the underlying transport connection.
func (c *Connection) Transport() Conn {
	return c.transport
}

// SubjectID returns the authenticated subject, or "" before authentication.
func (c *Connection) SubjectID() string {
	c.reg.mu.RLock()
	defer c.reg.mu.RUnlock()
	return c.subjectID
}

// ResourceID returns the currently bound resource, or "" if unbound.
func (c *Connection) ResourceID() string {
	c.reg.mu.RLock()
	defer c.reg.mu.RUnlock()
	return c.resourceID
}

// Touch marks the connection as live. Called on every inbound frame and on
// every probe response.
func (c *Connection) Touch() {
	c.alive.Store(true)
}

// Alive reports whether the connection responded since the last sweep.
func (c *Connection) Alive() bool {
	return c.alive.Load()
}

// Closed reports whether the connection has been removed from the registry.
func (c *Connection) Closed() bool {
	return c.closed.Load()
}

// ConnectedAt returns the admission time.
func (c *Connection) ConnectedAt() time.Time {
	return c.since
}

func (c *Connection) remoteAddr() string {
	if addr := c.transport.RemoteAddr(); addr != nil {
		return addr.String()
	}
	return ""
}
