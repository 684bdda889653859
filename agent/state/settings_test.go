// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package state

import (
	"testing"
	"time"

	memdb "github.com/hashicorp/go-memdb"
	"github.com/stretchr/testify/require"

	"github.com/hashicorp/marlin/agent/structs"
)

func testDefaultsDoc(epoch uint64) *structs.RWConcernDefault {
	return &structs.RWConcernDefault{
		DefaultReadConcern:  &structs.ReadConcern{Level: structs.ReadConcernLevelMajority},
		DefaultWriteConcern: &structs.WriteConcern{WMode: structs.WriteConcernMajority},
		Epoch:               epoch,
		SetTime:             time.Now().UTC(),
	}
}

func TestStoreRWConcernDefaults_SetGetDelete(t *testing.T) {
	s, err := NewStateStore(nil)
	require.NoError(t, err)

	got, err := s.RWConcernDefaults(nil)
	require.NoError(t, err)
	require.Nil(t, got)

	require.NoError(t, s.SetRWConcernDefaults(5, testDefaultsDoc(1)))

	got, err = s.RWConcernDefaults(nil)
	require.NoError(t, err)
	require.NotNil(t, got)
	require.Equal(t, uint64(1), got.Epoch)
	require.Equal(t, structs.ReadConcernLevelMajority, got.DefaultReadConcern.Level)

	// Mutating the returned copy must not affect the stored document.
	got.Epoch = 99
	again, err := s.RWConcernDefaults(nil)
	require.NoError(t, err)
	require.Equal(t, uint64(1), again.Epoch)

	require.NoError(t, s.DeleteRWConcernDefaults(6))
	got, err = s.RWConcernDefaults(nil)
	require.NoError(t, err)
	require.Nil(t, got)
}

func TestStoreRWConcernDefaults_Watch(t *testing.T) {
	s, err := NewStateStore(nil)
	require.NoError(t, err)

	ws := memdb.NewWatchSet()
	_, err = s.RWConcernDefaults(ws)
	require.NoError(t, err)

	require.NoError(t, s.SetRWConcernDefaults(5, testDefaultsDoc(1)))
	require.False(t, ws.Watch(time.After(time.Second)), "watch did not fire on write")
}

func TestStoreOnCommit_RunsOnlyOnCommit(t *testing.T) {
	s, err := NewStateStore(nil)
	require.NoError(t, err)

	// Abort path: callback must not run.
	fired := 0
	tx := s.WriteTxn(5)
	require.NoError(t, s.SetRWConcernDefaultsTxn(tx, testDefaultsDoc(1)))
	tx.OnCommit(func() { fired++ })
	tx.Abort()
	require.Equal(t, 0, fired)

	got, err := s.RWConcernDefaults(nil)
	require.NoError(t, err)
	require.Nil(t, got)

	// Commit path: exactly once, after the write is visible.
	var seenAtCommit *structs.RWConcernDefault
	tx = s.WriteTxn(6)
	require.NoError(t, s.SetRWConcernDefaultsTxn(tx, testDefaultsDoc(2)))
	tx.OnCommit(func() {
		fired++
		seenAtCommit, _ = s.RWConcernDefaults(nil)
	})
	require.NoError(t, tx.Commit())

	require.Equal(t, 1, fired)
	require.NotNil(t, seenAtCommit)
	require.Equal(t, uint64(2), seenAtCommit.Epoch)
}

func TestStoreSettingsObserver_Notified(t *testing.T) {
	s, err := NewStateStore(nil)
	require.NoError(t, err)

	type observation struct {
		id  string
		doc *structs.RWConcernDefault
	}
	var seen []observation
	s.RegisterSettingsObserver(func(tx *Txn, id string, newDoc *structs.RWConcernDefault) {
		seen = append(seen, observation{id: id, doc: newDoc})
	})

	require.NoError(t, s.SetRWConcernDefaults(5, testDefaultsDoc(1)))
	require.NoError(t, s.DeleteRWConcernDefaults(6))

	require.Len(t, seen, 2)
	require.Equal(t, structs.ReadWriteConcernDefaultsDocumentID, seen[0].id)
	require.NotNil(t, seen[0].doc)
	require.Equal(t, structs.ReadWriteConcernDefaultsDocumentID, seen[1].id)
	require.Nil(t, seen[1].doc)
}

func TestStoreIndexTracking(t *testing.T) {
	s, err := NewStateStore(nil)
	require.NoError(t, err)

	require.NoError(t, s.SetRWConcernDefaults(5, testDefaultsDoc(1)))

	tx := s.ReadTxn()
	defer tx.Abort()
	require.Equal(t, uint64(5), maxIndexTxn(tx, tableSettings))
}
