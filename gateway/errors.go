// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package gateway

import "errors"

// Authentication errors. These are surfaced to the client as an auth.error
// frame; the connection stays open.
var (
	ErrMissingCredential = errors.New("authentication required: no credential supplied")
	ErrInvalidCredential = errors.New("credential invalid or expired")
	ErrAlreadyAuthed     = errors.New("connection is already authenticated")
)

// Resource binding errors. These are surfaced to the client as a
// subscribe.error frame; the connection stays open but remains unbound.
var (
	ErrUnauthenticated = errors.New("authentication required")
	ErrMissingResource = errors.New("resource id is required")
	ErrAccessDenied    = errors.New("access denied")
)

// ErrConnClosed is returned when an operation races with connection removal.
// It is never sent to the client; there is no client left to reply to.
var ErrConnClosed = errors.New("connection closed")
