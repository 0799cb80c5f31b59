// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package gateway

import (
	"context"
	"errors"
	"log/slog"
)

// Handler drives one connection's inbound frame loop. Frames on a single
// connection are handled strictly sequentially; different connections run
// on independent goroutines and are fully concurrent.
type Handler struct {
	registry *Registry
	logger   *slog.Logger

	// authFailureLimit closes the connection after this many failed auth
	// attempts. 0 means unlimited retries.
	authFailureLimit int
}

// HandlerConfig holds connection handler settings.
type HandlerConfig struct {
	AuthFailureLimit int
}

// NewHandler creates a connection handler over the registry.
func NewHandler(registry *Registry, cfg HandlerConfig, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		registry:         registry,
		logger:           logger,
		authFailureLimit: cfg.AuthFailureLimit,
	}
}

// HandleConnection admits the transport connection and runs its read loop
// until transport error or close. It always removes the connection from
// the registry on exit, exactly once.
func (h *Handler) HandleConnection(ctx context.Context, t Conn) {
	c := h.registry.Admit(t)
	t.SetPongHandler(c.Touch)
	defer h.registry.Remove(c)

	authFailures := 0

	for {
		data, err := t.ReadFrame()
		if err != nil {
			// Transport errors are always fatal to this connection and
			// only to this connection.
			h.logger.Debug("connection_read_ended",
				slog.String("conn_id", c.ID()),
				slog.Any("error", err))
			return
		}
		c.Touch()

		frame, err := DecodeFrame(data)
		if err != nil {
			// Protocol error: log, drop, keep the connection open.
			h.registry.stats.IncrementFramesDropped()
			h.logger.Warn("frame_dropped",
				slog.String("conn_id", c.ID()),
				slog.Any("error", err))
			continue
		}

		if err := h.dispatch(ctx, c, frame, &authFailures); err != nil {
			return
		}
	}
}

// dispatch handles one decoded frame. A returned error means the connection
// is no longer usable and the read loop must exit.
func (h *Handler) dispatch(ctx context.Context, c *Connection, frame *InboundFrame, authFailures *int) error {
	switch frame.Type {
	case FrameAuth:
		return h.handleAuth(ctx, c, frame, authFailures)
	case FrameSubscribe:
		return h.handleSubscribe(ctx, c, frame)
	case FrameUnsubscribe:
		h.registry.UnbindResource(c)
		return nil
	}
	return nil
}

func (h *Handler) handleAuth(ctx context.Context, c *Connection, frame *InboundFrame, authFailures *int) error {
	subjectID, err := h.registry.Authenticate(ctx, c, frame.Token)
	if err != nil {
		if errors.Is(err, ErrConnClosed) {
			return err
		}

		*authFailures++
		if writeErr := c.transport.WriteFrame(encodeReply(frameAuthError, "", "", err.Error())); writeErr != nil {
			return writeErr
		}

		if h.authFailureLimit > 0 && *authFailures >= h.authFailureLimit {
			h.logger.Info("auth_failure_limit_reached",
				slog.String("conn_id", c.ID()),
				slog.Int("failures", *authFailures))
			return errors.New("auth failure limit reached")
		}
		return nil
	}

	return c.transport.WriteFrame(encodeReply(frameAuthSuccess, subjectID, "", ""))
}

func (h *Handler) handleSubscribe(ctx context.Context, c *Connection, frame *InboundFrame) error {
	if err := h.registry.BindResource(ctx, c, frame.ResourceID); err != nil {
		if errors.Is(err, ErrConnClosed) {
			return err
		}
		return c.transport.WriteFrame(encodeReply(frameSubscribeError, "", frame.ResourceID, err.Error()))
	}

	return c.transport.WriteFrame(encodeReply(frameSubscribeSuccess, "", frame.ResourceID, ""))
}
