// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package gateway

import (
	"context"
	"log/slog"
	"sync"

	"github.com/absmach/liveassist/auth"
	"github.com/absmach/liveassist/ownership"
)

// Registry is the single source of truth for live connections and their
// addressing. It owns two denormalized indices over per-connection state:
// subject -> connections and resource -> connections. All index mutation
// goes through the Registry so the index invariants hold in one place:
// a connection appears under subject key S iff its subjectID is S, and
// under resource key R iff its bound resource is R. Empty buckets are
// deleted eagerly so reconnect churn cannot grow the maps without bound.
type Registry struct {
	mu         sync.RWMutex
	conns      map[string]*Connection
	bySubject  map[string]map[string]*Connection
	byResource map[string]map[string]*Connection

	verifier auth.Verifier
	oracle   ownership.Oracle
	stats    *Stats
	logger   *slog.Logger
}

// NewRegistry creates a connection registry. The verifier validates bearer
// credentials; the oracle answers resource ownership queries.
func NewRegistry(verifier auth.Verifier, oracle ownership.Oracle, logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}

	return &Registry{
		conns:      make(map[string]*Connection),
		bySubject:  make(map[string]map[string]*Connection),
		byResource: make(map[string]map[string]*Connection),
		verifier:   verifier,
		oracle:     oracle,
		stats:      NewStats(),
		logger:     logger,
	}
}

// Stats returns the registry's counters.
func (r *Registry) Stats() *Stats {
	return r.stats
}

// Admit registers a new transport connection with all identity fields unset.
func (r *Registry) Admit(t Conn) *Connection {
	c := newConnection(t, r)

	r.mu.Lock()
	r.conns[c.id] = c
	r.mu.Unlock()

	r.stats.IncrementConnections()
	r.logger.Debug("connection_admitted",
		slog.String("conn_id", c.id),
		slog.String("remote_addr", c.remoteAddr()))

	return c
}

// Authenticate validates the credential and binds the subject identity to
// the connection. The identity is set at most once; a connection that wants
// to change identity must reconnect. Verification runs outside the registry
// lock (it is pure CPU work, but keeps the critical section minimal), and
// the result is applied only if the connection is still open.
func (r *Registry) Authenticate(ctx context.Context, c *Connection, token string) (string, error) {
	if token == "" {
		r.stats.IncrementAuthFailures()
		return "", ErrMissingCredential
	}

	identity := r.verifier.Verify(token)
	if identity == nil {
		r.stats.IncrementAuthFailures()
		r.logger.Info("authentication_rejected", slog.String("conn_id", c.id))
		return "", ErrInvalidCredential
	}

	r.mu.Lock()
	if c.closed.Load() {
		r.mu.Unlock()
		return "", ErrConnClosed
	}
	if c.subjectID != "" {
		r.mu.Unlock()
		r.stats.IncrementAuthFailures()
		return "", ErrAlreadyAuthed
	}

	c.subjectID = identity.SubjectID
	bucket := r.bySubject[identity.SubjectID]
	if bucket == nil {
		bucket = make(map[string]*Connection)
		r.bySubject[identity.SubjectID] = bucket
	}
	bucket[c.id] = c
	r.mu.Unlock()

	r.logger.Info("connection_authenticated",
		slog.String("conn_id", c.id),
		slog.String("subject_id", identity.SubjectID))

	return identity.SubjectID, nil
}

// BindResource subscribes an authenticated connection to a resource, gated
// by the ownership oracle. An oracle failure is a denial: never grant on
// infrastructure error. A previously bound resource is unbound first, so a
// connection is a member of at most one resource bucket at any instant.
//
// The oracle call is I/O and must not hold the registry lock; the bind is
// applied afterwards only if the connection is still open, so a removal
// racing an in-flight bind cannot resurrect index entries.
func (r *Registry) BindResource(ctx context.Context, c *Connection, resourceID string) error {
	r.mu.RLock()
	subjectID := c.subjectID
	closed := c.closed.Load()
	r.mu.RUnlock()

	if closed {
		return ErrConnClosed
	}
	if subjectID == "" {
		return ErrUnauthenticated
	}
	if resourceID == "" {
		return ErrMissingResource
	}

	owns, err := r.oracle.OwnsResource(ctx, subjectID, resourceID)
	if err != nil {
		// Logged distinctly from an honest denial so operators can tell
		// infrastructure failure from legitimate rejection.
		r.stats.IncrementOracleFailures()
		r.logger.Error("ownership_oracle_failure",
			slog.String("conn_id", c.id),
			slog.String("subject_id", subjectID),
			slog.String("resource_id", resourceID),
			slog.Any("error", err))
		return ErrAccessDenied
	}
	if !owns {
		r.logger.Info("resource_bind_denied",
			slog.String("conn_id", c.id),
			slog.String("subject_id", subjectID),
			slog.String("resource_id", resourceID))
		return ErrAccessDenied
	}

	r.mu.Lock()
	if c.closed.Load() {
		r.mu.Unlock()
		return ErrConnClosed
	}

	r.unbindLocked(c)
	c.resourceID = resourceID
	bucket := r.byResource[resourceID]
	if bucket == nil {
		bucket = make(map[string]*Connection)
		r.byResource[resourceID] = bucket
	}
	bucket[c.id] = c
	r.mu.Unlock()

	r.logger.Info("resource_bound",
		slog.String("conn_id", c.id),
		slog.String("subject_id", subjectID),
		slog.String("resource_id", resourceID))

	return nil
}

// UnbindResource removes the connection from its current resource bucket.
// No-op if the connection is unbound; calling it twice equals calling once.
func (r *Registry) UnbindResource(c *Connection) {
	r.mu.Lock()
	unbound := r.unbindLocked(c)
	r.mu.Unlock()

	if unbound != "" {
		r.logger.Info("resource_unbound",
			slog.String("conn_id", c.id),
			slog.String("resource_id", unbound))
	}
}

// unbindLocked removes c from its resource bucket. Must be called with
// r.mu held. Returns the resource it was bound to, or "".
func (r *Registry) unbindLocked(c *Connection) string {
	if c.resourceID == "" {
		return ""
	}

	prev := c.resourceID
	c.resourceID = ""
	if bucket := r.byResource[prev]; bucket != nil {
		delete(bucket, c.id)
		if len(bucket) == 0 {
			delete(r.byResource, prev)
		}
	}
	return prev
}

// Remove unconditionally removes the connection from both indices and
// discards its state. It is triggered by transport close, transport error,
// or heartbeat eviction; whichever fires first wins and later triggers are
// no-ops.
func (r *Registry) Remove(c *Connection) {
	r.mu.Lock()
	if c.closed.Load() {
		r.mu.Unlock()
		return
	}
	c.closed.Store(true)

	delete(r.conns, c.id)
	if c.subjectID != "" {
		if bucket := r.bySubject[c.subjectID]; bucket != nil {
			delete(bucket, c.id)
			if len(bucket) == 0 {
				delete(r.bySubject, c.subjectID)
			}
		}
	}
	r.unbindLocked(c)
	subjectID := c.subjectID
	r.mu.Unlock()

	c.transport.Close()

	r.stats.DecrementConnections()
	r.logger.Debug("connection_removed",
		slog.String("conn_id", c.id),
		slog.String("subject_id", subjectID))
}

// Count returns the number of admitted connections.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns)
}

// SubjectCount returns the number of subjects with at least one connection.
func (r *Registry) SubjectCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.bySubject)
}

// ForEach calls fn with a snapshot of all admitted connections.
func (r *Registry) ForEach(fn func(*Connection)) {
	for _, c := range r.snapshotAll() {
		fn(c)
	}
}

// snapshotAll copies the connection set under the read lock.
func (r *Registry) snapshotAll() []*Connection {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*Connection, 0, len(r.conns))
	for _, c := range r.conns {
		out = append(out, c)
	}
	return out
}

// subjectConns returns a snapshot of the connections authenticated as the
// given subject.
func (r *Registry) subjectConns(subjectID string) []*Connection {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return snapshotBucket(r.bySubject[subjectID])
}

// resourceConns returns a snapshot of the connections bound to the given
// resource.
func (r *Registry) resourceConns(resourceID string) []*Connection {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return snapshotBucket(r.byResource[resourceID])
}

func snapshotBucket(bucket map[string]*Connection) []*Connection {
	if len(bucket) == 0 {
		return nil
	}
	out := make([]*Connection, 0, len(bucket))
	for _, c := range bucket {
		out = append(out, c)
	}
	return out
}
