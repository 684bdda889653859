// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package state

import (
	"context"
	"fmt"

	memdb "github.com/hashicorp/go-memdb"

	"github.com/hashicorp/marlin/agent/structs"
)

// RWConcernDefaults returns the persisted read/write concern defaults
// document, or nil if none has ever been persisted.
func (s *Store) RWConcernDefaults(ws memdb.WatchSet) (*structs.RWConcernDefault, error) {
	tx := s.ReadTxn()
	defer tx.Abort()
	return rwConcernDefaultsTxn(tx, ws)
}

func rwConcernDefaultsTxn(tx *Txn, ws memdb.WatchSet) (*structs.RWConcernDefault, error) {
	watchCh, raw, err := tx.FirstWatch(tableSettings, "id", structs.ReadWriteConcernDefaultsDocumentID)
	if err != nil {
		return nil, fmt.Errorf("failed settings lookup: %w", err)
	}
	ws.Add(watchCh)
	if raw == nil {
		return nil, nil
	}
	return raw.(*settingsEntry).Default.Clone(), nil
}

// FetchRWConcernDefaults is the fetch callback handed to the defaults cache.
// A nil document with a nil error means nothing is persisted.
func (s *Store) FetchRWConcernDefaults(ctx context.Context) (*structs.RWConcernDefault, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return s.RWConcernDefaults(nil)
}

// SetRWConcernDefaultsTxn writes the defaults document within an existing
// transaction and notifies settings observers. The caller owns the commit.
func (s *Store) SetRWConcernDefaultsTxn(tx *Txn, doc *structs.RWConcernDefault) error {
	if doc == nil {
		return fmt.Errorf("cannot persist a nil defaults document")
	}
	if err := indexUpdateMaxTxn(tx, tx.Index, tableSettings); err != nil {
		return err
	}
	entry := &settingsEntry{
		ID:      structs.ReadWriteConcernDefaultsDocumentID,
		Default: doc.Clone(),
	}
	if err := tx.Insert(tableSettings, entry); err != nil {
		return fmt.Errorf("failed persisting settings document: %w", err)
	}
	for _, observe := range s.settingsObservers() {
		observe(tx, entry.ID, entry.Default)
	}
	return nil
}

// SetRWConcernDefaults writes and commits the defaults document at idx.
func (s *Store) SetRWConcernDefaults(idx uint64, doc *structs.RWConcernDefault) error {
	tx := s.WriteTxn(idx)
	defer tx.Abort()

	if err := s.SetRWConcernDefaultsTxn(tx, doc); err != nil {
		return err
	}
	return tx.Commit()
}

// DeleteRWConcernDefaultsTxn removes the defaults document within an
// existing transaction, notifying observers with a nil document.
func (s *Store) DeleteRWConcernDefaultsTxn(tx *Txn) error {
	raw, err := tx.First(tableSettings, "id", structs.ReadWriteConcernDefaultsDocumentID)
	if err != nil {
		return fmt.Errorf("failed settings lookup: %w", err)
	}
	if raw == nil {
		return nil
	}
	if err := indexUpdateMaxTxn(tx, tx.Index, tableSettings); err != nil {
		return err
	}
	if err := tx.Delete(tableSettings, raw); err != nil {
		return fmt.Errorf("failed deleting settings document: %w", err)
	}
	for _, observe := range s.settingsObservers() {
		observe(tx, structs.ReadWriteConcernDefaultsDocumentID, nil)
	}
	return nil
}

// DeleteRWConcernDefaults removes and commits at idx.
func (s *Store) DeleteRWConcernDefaults(idx uint64) error {
	tx := s.WriteTxn(idx)
	defer tx.Abort()

	if err := s.DeleteRWConcernDefaultsTxn(tx); err != nil {
		return err
	}
	return tx.Commit()
}
