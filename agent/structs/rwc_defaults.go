// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package structs

import (
	"time"
)

// ReadWriteConcernDefaultsDocumentID is the well-known identifier of the one
// settings document that carries the cluster-wide read/write concern
// defaults.
const ReadWriteConcernDefaultsDocumentID = "ReadWriteConcernDefaults"

// RWConcernDefault is one authored generation of the cluster-wide read/write
// concern defaults. Records are immutable and replaced wholesale; a record
// with a higher epoch always supersedes one with a lower epoch.
type RWConcernDefault struct {
	// DefaultReadConcern applies to reads that do not specify their own
	// concern. Nil means no default is set and built-in behavior applies.
	DefaultReadConcern *ReadConcern

	// DefaultWriteConcern applies to writes that do not specify their own
	// concern. Nil means no default is set.
	DefaultWriteConcern *WriteConcern

	// Epoch is the monotonically increasing generation counter assigned
	// when the record was authored. Zero means "never generated".
	Epoch uint64

	// SetTime is the wall-clock time at which the record was authored, by
	// whichever node authored it. Used for diagnostics and tie-breaking.
	SetTime time.Time
}

// Clone returns a deep copy.
func (d *RWConcernDefault) Clone() *RWConcernDefault {
	if d == nil {
		return nil
	}
	return &RWConcernDefault{
		DefaultReadConcern:  d.DefaultReadConcern.Clone(),
		DefaultWriteConcern: d.DefaultWriteConcern.Clone(),
		Epoch:               d.Epoch,
		SetTime:             d.SetTime,
	}
}

// RWConcernDefaultAndTime is a cached defaults record together with the
// node-local wall-clock time at which this node's cache last accepted it.
// LocalUpdateWallClockTime is diagnostic only and distinct from SetTime,
// which records when the record was authored.
type RWConcernDefaultAndTime struct {
	RWConcernDefault

	LocalUpdateWallClockTime time.Time
}
