// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

// Package auth validates the opaque bearer credentials clients present
// after the transport handshake. Verification is pure and synchronous; a
// malformed or expired credential yields nil, never a panic.
package auth

import (
	"github.com/golang-jwt/jwt/v4"
)

// Identity is the subject extracted from a valid credential.
type Identity struct {
	SubjectID string
}

// Verifier validates a bearer credential. Returns nil for any credential
// that is missing, malformed, badly signed, or expired.
type Verifier interface {
	Verify(token string) *Identity
}

// TokenVerifier verifies HMAC-signed JWT bearer tokens. The subject claim
// carries the identity.
type TokenVerifier struct {
	secret []byte
}

// NewTokenVerifier creates a verifier with the given signing secret.
func NewTokenVerifier(secret []byte) *TokenVerifier {
	return &TokenVerifier{secret: secret}
}

// Verify implements Verifier.
func (v *TokenVerifier) Verify(token string) *Identity {
	if token == "" {
		return nil
	}

	claims := &jwt.RegisteredClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims,
		func(t *jwt.Token) (any, error) {
			return v.secret, nil
		},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
	)
	if err != nil || !parsed.Valid {
		return nil
	}
	if claims.Subject == "" {
		return nil
	}

	return &Identity{SubjectID: claims.Subject}
}
