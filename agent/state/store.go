// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

// Package state holds the node's in-memory copy of cluster state, including
// the settings documents that carry cluster-wide configuration. Writes go
// through wrapped transactions that support commit-ordered callbacks, so
// other components can react to a change if and only if it actually commits.
package state

import (
	"fmt"
	"sync"

	"github.com/hashicorp/go-hclog"
	memdb "github.com/hashicorp/go-memdb"

	"github.com/hashicorp/marlin/agent/structs"
)

// SettingsObserver inspects a write to the settings table before it commits.
// newDoc is nil for deletions. Implementations may register commit-ordered
// callbacks on the transaction; they must not commit or abort it.
type SettingsObserver func(tx *Txn, id string, newDoc *structs.RWConcernDefault)

// Store is the in-memory state storage layer.
type Store struct {
	logger hclog.Logger
	db     *memdb.MemDB

	observerLock sync.RWMutex
	observers    []SettingsObserver
}

// NewStateStore creates an empty state store.
func NewStateStore(logger hclog.Logger) (*Store, error) {
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	db, err := memdb.NewMemDB(stateStoreSchema())
	if err != nil {
		return nil, fmt.Errorf("failed setting up state store: %w", err)
	}
	return &Store{
		logger: logger.Named("state"),
		db:     db,
	}, nil
}

// RegisterSettingsObserver adds an observer for settings writes. Observers
// registered after a transaction began do not see that transaction.
func (s *Store) RegisterSettingsObserver(fn SettingsObserver) {
	s.observerLock.Lock()
	defer s.observerLock.Unlock()
	s.observers = append(s.observers, fn)
}

func (s *Store) settingsObservers() []SettingsObserver {
	s.observerLock.RLock()
	defer s.observerLock.RUnlock()
	return s.observers
}

// Txn wraps a memdb transaction with the index the write occurs at and with
// commit-ordered callback registration.
type Txn struct {
	*memdb.Txn

	// Index is the raft index the write occurs at, zero for reads.
	Index uint64
}

// OnCommit registers fn to run exactly once, only if the transaction
// commits, after the new state is visible and before Commit returns to its
// caller. Aborting the transaction drops the callback.
func (tx *Txn) OnCommit(fn func()) {
	tx.Txn.Defer(fn)
}

// Commit commits the transaction and runs any OnCommit callbacks.
func (tx *Txn) Commit() error {
	tx.Txn.Commit()
	return nil
}

// ReadTxn starts a read-only transaction.
func (s *Store) ReadTxn() *Txn {
	return &Txn{Txn: s.db.Txn(false)}
}

// WriteTxn starts a write transaction at the given raft index.
func (s *Store) WriteTxn(idx uint64) *Txn {
	return &Txn{Txn: s.db.Txn(true), Index: idx}
}

// maxIndexTxn returns the latest index at which the table was written.
func maxIndexTxn(tx *Txn, table string) uint64 {
	raw, err := tx.First(tableIndex, "id", table)
	if err != nil || raw == nil {
		return 0
	}
	return raw.(*IndexEntry).Value
}

// indexUpdateMaxTxn records the index the table is being written at.
func indexUpdateMaxTxn(tx *Txn, idx uint64, table string) error {
	if cur := maxIndexTxn(tx, table); idx <= cur {
		return nil
	}
	if err := tx.Insert(tableIndex, &IndexEntry{Key: table, Value: idx}); err != nil {
		return fmt.Errorf("failed updating index for table %q: %w", table, err)
	}
	return nil
}
