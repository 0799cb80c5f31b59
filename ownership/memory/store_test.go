// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGrantAndLookup(t *testing.T) {
	s := New()
	s.Grant("u1", "s1")

	owns, err := s.OwnsResource(context.Background(), "u1", "s1")
	require.NoError(t, err)
	assert.True(t, owns)

	owns, err = s.OwnsResource(context.Background(), "u1", "s2")
	require.NoError(t, err)
	assert.False(t, owns)

	owns, err = s.OwnsResource(context.Background(), "u2", "s1")
	require.NoError(t, err)
	assert.False(t, owns)
}

func TestRevoke(t *testing.T) {
	s := New()
	s.Grant("u1", "s1")
	s.Grant("u1", "s2")

	s.Revoke("u1", "s1")

	owns, err := s.OwnsResource(context.Background(), "u1", "s1")
	require.NoError(t, err)
	assert.False(t, owns)

	owns, err = s.OwnsResource(context.Background(), "u1", "s2")
	require.NoError(t, err)
	assert.True(t, owns)
}

func TestRevokeUnknownIsNoop(t *testing.T) {
	s := New()
	s.Revoke("u1", "s1")

	owns, err := s.OwnsResource(context.Background(), "u1", "s1")
	require.NoError(t, err)
	assert.False(t, owns)
}
