// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package api

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/absmach/liveassist/gateway"
	"github.com/absmach/liveassist/gateway/events"
)

// Config holds configuration for the internal event ingest API.
type Config struct {
	Address         string
	ShutdownTimeout time.Duration
}

// Server exposes the event router to the business tier. Services POST
// events here; the gateway fans them out to live connections and reports
// the delivered count. The ingest API is internal: it is expected to sit
// behind the service mesh, not on the public edge.
type Server struct {
	config     Config
	router     *gateway.Router
	logger     *slog.Logger
	httpServer *http.Server
}

// New creates a new ingest API server.
func New(cfg Config, router *gateway.Router, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		config: cfg,
		router: router,
		logger: logger,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /internal/events/resources/{id}/content", s.handleContentUpdate)
	mux.HandleFunc("POST /internal/events/subjects/{id}/status", s.handleStatusChange)

	s.httpServer = &http.Server{
		Addr:         cfg.Address,
		Handler:      mux,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	return s
}

// Listen starts the ingest API server.
func (s *Server) Listen(ctx context.Context) error {
	errCh := make(chan error, 1)

	go func() {
		s.logger.Info("ingest_api_starting", slog.String("address", s.config.Address))
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("ingest_api_shutdown_initiated")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.config.ShutdownTimeout)
		defer cancel()
		return s.httpServer.Shutdown(shutdownCtx)
	case err := <-errCh:
		return fmt.Errorf("ingest API server error: %w", err)
	}
}

// contentUpdateRequest is the body of a resource-addressed content event.
type contentUpdateRequest struct {
	MessageID string         `json:"messageId"`
	Meta      map[string]any `json:"meta,omitempty"`
}

// deliveryResponse reports the fan-out result.
type deliveryResponse struct {
	Delivered int `json:"delivered"`
}

func (s *Server) handleContentUpdate(w http.ResponseWriter, r *http.Request) {
	resourceID := r.PathValue("id")

	var req contentUpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.MessageID == "" {
		http.Error(w, "messageId is required", http.StatusBadRequest)
		return
	}

	delivered := s.router.DeliverToResource(resourceID, events.ContentUpdate{
		MessageID: req.MessageID,
		Meta:      req.Meta,
	})

	s.writeDelivered(w, delivered)
}

func (s *Server) handleStatusChange(w http.ResponseWriter, r *http.Request) {
	subjectID := r.PathValue("id")

	var payload map[string]any
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	delivered := s.router.DeliverToSubject(subjectID, events.StatusChange{Payload: payload})

	s.writeDelivered(w, delivered)
}

func (s *Server) writeDelivered(w http.ResponseWriter, delivered int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(deliveryResponse{Delivered: delivered})
}
