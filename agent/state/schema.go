// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package state

import (
	memdb "github.com/hashicorp/go-memdb"

	"github.com/hashicorp/marlin/agent/structs"
)

const (
	tableIndex    = "index"
	tableSettings = "settings"
)

// IndexEntry keeps the latest raft index at which each table was modified.
type IndexEntry struct {
	Key   string
	Value uint64
}

// settingsEntry is one row of the settings table. The read/write concern
// defaults document is the only settings document today, so the value is
// typed rather than generic.
type settingsEntry struct {
	ID      string
	Default *structs.RWConcernDefault
}

func stateStoreSchema() *memdb.DBSchema {
	return &memdb.DBSchema{
		Tables: map[string]*memdb.TableSchema{
			tableIndex: {
				Name: tableIndex,
				Indexes: map[string]*memdb.IndexSchema{
					"id": {
						Name:         "id",
						AllowMissing: false,
						Unique:       true,
						Indexer:      &memdb.StringFieldIndex{Field: "Key", Lowercase: true},
					},
				},
			},
			tableSettings: {
				Name: tableSettings,
				Indexes: map[string]*memdb.IndexSchema{
					"id": {
						Name:         "id",
						AllowMissing: false,
						Unique:       true,
						Indexer:      &memdb.StringFieldIndex{Field: "ID"},
					},
				},
			},
		},
	}
}
