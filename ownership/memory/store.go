// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

// Package memory provides an in-memory ownership grant store, used in tests
// and single-node development setups.
package memory

import (
	"context"
	"sync"
)

// Store is an in-memory subject -> resource grant table.
type Store struct {
	mu     sync.RWMutex
	grants map[string]map[string]struct{}
}

// New creates an empty in-memory grant store.
func New() *Store {
	return &Store{grants: make(map[string]map[string]struct{})}
}

// Grant records that the subject owns the resource.
func (s *Store) Grant(subjectID, resourceID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	resources := s.grants[subjectID]
	if resources == nil {
		resources = make(map[string]struct{})
		s.grants[subjectID] = resources
	}
	resources[resourceID] = struct{}{}
}

// Revoke removes a grant. No-op if absent.
func (s *Store) Revoke(subjectID, resourceID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	resources := s.grants[subjectID]
	if resources == nil {
		return
	}
	delete(resources, resourceID)
	if len(resources) == 0 {
		delete(s.grants, subjectID)
	}
}

// OwnsResource implements ownership.Oracle.
func (s *Store) OwnsResource(_ context.Context, subjectID, resourceID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	resources := s.grants[subjectID]
	if resources == nil {
		return false, nil
	}
	_, ok := resources[resourceID]
	return ok, nil
}
