// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package gateway

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// Inbound frame kinds. The set is closed: anything else is a protocol error
// and the frame is dropped.
type FrameType string

const (
	FrameAuth        FrameType = "auth"
	FrameSubscribe   FrameType = "subscribe.resource"
	FrameUnsubscribe FrameType = "unsubscribe.resource"
)

// Outbound reply frame types.
const (
	frameAuthSuccess      = "auth.success"
	frameAuthError        = "auth.error"
	frameSubscribeSuccess = "subscribe.success"
	frameSubscribeError   = "subscribe.error"
)

var errUnknownFrameType = errors.New("unknown frame type")

// InboundFrame is a decoded client frame. Decoding happens once at the
// boundary so downstream handling can switch exhaustively on Type.
type InboundFrame struct {
	Type       FrameType `json:"type"`
	Token      string    `json:"token,omitempty"`
	ResourceID string    `json:"resourceId,omitempty"`
}

// DecodeFrame parses a raw inbound frame. Malformed frames yield an error;
// the caller logs and drops them without closing the connection.
func DecodeFrame(data []byte) (*InboundFrame, error) {
	var frame InboundFrame
	if err := json.Unmarshal(data, &frame); err != nil {
		return nil, fmt.Errorf("malformed frame: %w", err)
	}

	switch frame.Type {
	case FrameAuth, FrameSubscribe, FrameUnsubscribe:
		return &frame, nil
	default:
		return nil, fmt.Errorf("%w: %q", errUnknownFrameType, frame.Type)
	}
}

// replyFrame is the wire shape of server reply frames.
type replyFrame struct {
	Type       string `json:"type"`
	SubjectID  string `json:"subjectId,omitempty"`
	ResourceID string `json:"resourceId,omitempty"`
	Message    string `json:"message,omitempty"`
	Timestamp  string `json:"timestamp"`
}

func encodeReply(frameType, subjectID, resourceID, message string) []byte {
	data, _ := json.Marshal(replyFrame{
		Type:       frameType,
		SubjectID:  subjectID,
		ResourceID: resourceID,
		Message:    message,
		Timestamp:  time.Now().UTC().Format(time.RFC3339Nano),
	})
	return data
}
