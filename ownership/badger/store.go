// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

// Package badger provides a BadgerDB-backed ownership grant store for
// deployments where the gateway owns its own grant table instead of
// querying a remote service.
package badger

import (
	"context"
	"fmt"

	"github.com/dgraph-io/badger/v4"
)

// Config holds BadgerDB store configuration.
type Config struct {
	Dir        string
	SyncWrites bool
}

// Store is a BadgerDB-backed subject -> resource grant table.
//
// Key format: grant/{subjectID}/{resourceID} with an empty value; presence
// of the key is the grant.
type Store struct {
	db *badger.DB
}

// New opens (or creates) the grant store.
func New(cfg Config) (*Store, error) {
	opts := badger.DefaultOptions(cfg.Dir)
	opts.Logger = nil // Disable BadgerDB's internal logging
	opts.SyncWrites = cfg.SyncWrites
	opts.NumVersionsToKeep = 1

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open grant store: %w", err)
	}

	return &Store{db: db}, nil
}

func grantKey(subjectID, resourceID string) []byte {
	return []byte("grant/" + subjectID + "/" + resourceID)
}

// Grant records that the subject owns the resource.
func (s *Store) Grant(subjectID, resourceID string) error {
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(grantKey(subjectID, resourceID), nil)
	})
}

// Revoke removes a grant. No-op if absent.
func (s *Store) Revoke(subjectID, resourceID string) error {
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(grantKey(subjectID, resourceID))
	})
}

// OwnsResource implements ownership.Oracle.
func (s *Store) OwnsResource(_ context.Context, subjectID, resourceID string) (bool, error) {
	var owns bool
	err := s.db.View(func(txn *badger.Txn) error {
		_, err := txn.Get(grantKey(subjectID, resourceID))
		if err == badger.ErrKeyNotFound {
			return nil
		}
		if err != nil {
			return err
		}
		owns = true
		return nil
	})
	if err != nil {
		return false, err
	}
	return owns, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}
