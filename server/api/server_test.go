// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package api

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/absmach/liveassist/auth"
	"github.com/absmach/liveassist/gateway"
)

// fakeConn records frames written to it; reads block forever from the
// handler's point of view but are unused here.
type fakeConn struct {
	mu     sync.Mutex
	writes [][]byte
}

func (c *fakeConn) ReadFrame() ([]byte, error) { return nil, io.EOF }

func (c *fakeConn) WriteFrame(data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.writes = append(c.writes, data)
	return nil
}

func (c *fakeConn) Ping() error              { return nil }
func (c *fakeConn) SetPongHandler(fn func()) {}
func (c *fakeConn) Open() bool               { return true }
func (c *fakeConn) Close() error             { return nil }
func (c *fakeConn) RemoteAddr() net.Addr {
	return &net.TCPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 50000}
}

func (c *fakeConn) frameCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.writes)
}

type stubVerifier struct{}

func (stubVerifier) Verify(token string) *auth.Identity {
	if !strings.HasPrefix(token, "token-") {
		return nil
	}
	return &auth.Identity{SubjectID: strings.TrimPrefix(token, "token-")}
}

type allowAllOracle struct{}

func (allowAllOracle) OwnsResource(context.Context, string, string) (bool, error) {
	return true, nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestServer(t *testing.T) (*Server, *gateway.Registry) {
	t.Helper()

	registry := gateway.NewRegistry(stubVerifier{}, allowAllOracle{}, testLogger())
	router := gateway.NewRouter(registry, testLogger())
	return New(Config{Address: ":0"}, router, testLogger()), registry
}

func bindConn(t *testing.T, r *gateway.Registry, token, resourceID string) *fakeConn {
	t.Helper()

	transport := &fakeConn{}
	c := r.Admit(transport)
	_, err := r.Authenticate(context.Background(), c, token)
	require.NoError(t, err)
	if resourceID != "" {
		require.NoError(t, r.BindResource(context.Background(), c, resourceID))
	}
	return transport
}

func postJSON(t *testing.T, s *Server, path, body string) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	rec := httptest.NewRecorder()
	s.httpServer.Handler.ServeHTTP(rec, req)
	return rec
}

func decodeDelivered(t *testing.T, rec *httptest.ResponseRecorder) int {
	t.Helper()

	var resp deliveryResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	return resp.Delivered
}

func TestContentUpdateFanOut(t *testing.T) {
	s, registry := newTestServer(t)

	t1 := bindConn(t, registry, "token-u1", "s1")
	t2 := bindConn(t, registry, "token-u2", "s1")
	other := bindConn(t, registry, "token-u3", "s2")

	rec := postJSON(t, s, "/internal/events/resources/s1/content",
		`{"messageId":"m42","meta":{"kind":"chat"}}`)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 2, decodeDelivered(t, rec))
	assert.Equal(t, 1, t1.frameCount())
	assert.Equal(t, 1, t2.frameCount())
	assert.Equal(t, 0, other.frameCount())
}

func TestContentUpdateRequiresMessageID(t *testing.T) {
	s, _ := newTestServer(t)

	rec := postJSON(t, s, "/internal/events/resources/s1/content", `{"meta":{}}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestContentUpdateBadBody(t *testing.T) {
	s, _ := newTestServer(t)

	rec := postJSON(t, s, "/internal/events/resources/s1/content", `not json`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestStatusChangeFanOut(t *testing.T) {
	s, registry := newTestServer(t)

	t1 := bindConn(t, registry, "token-u1", "")

	rec := postJSON(t, s, "/internal/events/subjects/u1/status", `{"state":"online"}`)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, decodeDelivered(t, rec))
	assert.Equal(t, 1, t1.frameCount())
}

func TestStatusChangeEmptyAudience(t *testing.T) {
	s, _ := newTestServer(t)

	rec := postJSON(t, s, "/internal/events/subjects/nobody/status", `{"state":"online"}`)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 0, decodeDelivered(t, rec))
}

func TestMethodNotAllowed(t *testing.T) {
	s, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/internal/events/resources/s1/content", nil)
	rec := httptest.NewRecorder()
	s.httpServer.Handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}
