// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package rwcdefaults

import (
	"fmt"

	"github.com/hashicorp/marlin/agent/structs"
)

// IsSuitableReadConcernLevel reports whether the level may serve as a
// cluster-wide default. Levels that only make sense when requested
// explicitly per operation, because they pin the read to a causal chain or a
// point in time, are rejected.
func IsSuitableReadConcernLevel(level structs.ReadConcernLevel) bool {
	switch level {
	case structs.ReadConcernLevelAvailable,
		structs.ReadConcernLevelLocal,
		structs.ReadConcernLevelMajority:
		return true
	default:
		return false
	}
}

// CheckSuitabilityAsDefaultReadConcern validates that rc may become the
// cluster-wide default read concern. Failures are reported to the caller,
// never silently corrected.
func CheckSuitabilityAsDefaultReadConcern(rc *structs.ReadConcern) error {
	if rc == nil {
		return nil
	}
	if err := rc.Validate(); err != nil {
		return fmt.Errorf("invalid read concern: %w", err)
	}
	if !IsSuitableReadConcernLevel(rc.Level) {
		return fmt.Errorf("read concern level %q cannot be used as a cluster-wide default", rc.Level)
	}
	if rc.AfterClusterTime != nil {
		return fmt.Errorf("read concern with afterClusterTime cannot be used as a cluster-wide default")
	}
	if rc.AtClusterTime != nil {
		return fmt.Errorf("read concern with atClusterTime cannot be used as a cluster-wide default")
	}
	return nil
}

// CheckSuitabilityAsDefaultWriteConcern validates that wc may become the
// cluster-wide default write concern.
func CheckSuitabilityAsDefaultWriteConcern(wc *structs.WriteConcern) error {
	if wc == nil {
		return nil
	}
	if err := wc.Validate(); err != nil {
		return fmt.Errorf("invalid write concern: %w", err)
	}
	if wc.IsUnacknowledged() {
		return fmt.Errorf("unacknowledged write concern (w: 0) cannot be used as a cluster-wide default")
	}
	return nil
}
