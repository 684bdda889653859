// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package structs

import (
	"fmt"
	"time"

	"github.com/hashicorp/go-multierror"
)

// ReadConcernLevel is the durability/isolation level a read runs at.
type ReadConcernLevel string

const (
	ReadConcernLevelAvailable    ReadConcernLevel = "available"
	ReadConcernLevelLocal        ReadConcernLevel = "local"
	ReadConcernLevelMajority     ReadConcernLevel = "majority"
	ReadConcernLevelSnapshot     ReadConcernLevel = "snapshot"
	ReadConcernLevelLinearizable ReadConcernLevel = "linearizable"
)

// ClusterTime is a point in the cluster-wide logical clock.
type ClusterTime uint64

// ReadConcern describes the consistency requirements of a single read.
//
// AfterClusterTime and AtClusterTime chain the read to a specific point in
// the logical clock. A read concern carrying either of them only makes sense
// for the operation that requested it, which is why such concerns are never
// allowed as cluster-wide defaults.
type ReadConcern struct {
	Level ReadConcernLevel

	AfterClusterTime *ClusterTime
	AtClusterTime    *ClusterTime
}

// Validate checks the read concern for internal consistency.
func (rc *ReadConcern) Validate() error {
	var result *multierror.Error

	switch rc.Level {
	case ReadConcernLevelAvailable,
		ReadConcernLevelLocal,
		ReadConcernLevelMajority,
		ReadConcernLevelSnapshot,
		ReadConcernLevelLinearizable:
	default:
		result = multierror.Append(result, fmt.Errorf("unknown read concern level %q", rc.Level))
	}

	if rc.AfterClusterTime != nil && rc.AtClusterTime != nil {
		result = multierror.Append(result, fmt.Errorf("afterClusterTime and atClusterTime are mutually exclusive"))
	}
	if rc.AtClusterTime != nil && rc.Level != ReadConcernLevelSnapshot {
		result = multierror.Append(result, fmt.Errorf("atClusterTime requires read concern level %q", ReadConcernLevelSnapshot))
	}

	return result.ErrorOrNil()
}

// Clone returns a deep copy.
func (rc *ReadConcern) Clone() *ReadConcern {
	if rc == nil {
		return nil
	}
	dup := *rc
	if rc.AfterClusterTime != nil {
		t := *rc.AfterClusterTime
		dup.AfterClusterTime = &t
	}
	if rc.AtClusterTime != nil {
		t := *rc.AtClusterTime
		dup.AtClusterTime = &t
	}
	return &dup
}

// WriteConcernMajority is the only named write mode; it requires
// acknowledgment from a majority of voting members.
const WriteConcernMajority = "majority"

// WriteConcern describes the acknowledgment policy of a single write. Either
// WMode names a policy ("majority") or W gives an explicit acknowledgment
// count; the two are mutually exclusive, with WMode taking W's place when set.
type WriteConcern struct {
	W     int
	WMode string

	// WTimeout bounds how long the writer waits for the requested
	// acknowledgment. Zero means wait indefinitely.
	WTimeout time.Duration

	// Journal, when set, requires the write to be journaled on the
	// acknowledging members.
	Journal *bool
}

// IsUnacknowledged reports whether the write concern requests no
// acknowledgment at all (w:0).
func (wc *WriteConcern) IsUnacknowledged() bool {
	return wc.WMode == "" && wc.W == 0
}

// Validate checks the write concern for internal consistency.
func (wc *WriteConcern) Validate() error {
	var result *multierror.Error

	if wc.WMode != "" {
		if wc.WMode != WriteConcernMajority {
			result = multierror.Append(result, fmt.Errorf("unknown write concern mode %q", wc.WMode))
		}
		if wc.W != 0 {
			result = multierror.Append(result, fmt.Errorf("cannot set both w mode %q and w count %d", wc.WMode, wc.W))
		}
	} else if wc.W < 0 {
		result = multierror.Append(result, fmt.Errorf("w count cannot be negative, got %d", wc.W))
	}

	if wc.Journal != nil && *wc.Journal && wc.IsUnacknowledged() {
		result = multierror.Append(result, fmt.Errorf("cannot request journaling with an unacknowledged write concern"))
	}
	if wc.WTimeout < 0 {
		result = multierror.Append(result, fmt.Errorf("wtimeout cannot be negative, got %s", wc.WTimeout))
	}

	return result.ErrorOrNil()
}

// Clone returns a deep copy.
func (wc *WriteConcern) Clone() *WriteConcern {
	if wc == nil {
		return nil
	}
	dup := *wc
	if wc.Journal != nil {
		j := *wc.Journal
		dup.Journal = &j
	}
	return &dup
}
