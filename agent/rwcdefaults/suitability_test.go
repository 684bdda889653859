// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package rwcdefaults

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/hashicorp/marlin/agent/structs"
)

func TestIsSuitableReadConcernLevel(t *testing.T) {
	cases := map[structs.ReadConcernLevel]bool{
		structs.ReadConcernLevelAvailable:    true,
		structs.ReadConcernLevelLocal:        true,
		structs.ReadConcernLevelMajority:     true,
		structs.ReadConcernLevelSnapshot:     false,
		structs.ReadConcernLevelLinearizable: false,
		structs.ReadConcernLevel("bogus"):    false,
	}
	for level, want := range cases {
		require.Equal(t, want, IsSuitableReadConcernLevel(level), "level %q", level)
	}
}

func TestCheckSuitabilityAsDefaultReadConcern(t *testing.T) {
	require.NoError(t, CheckSuitabilityAsDefaultReadConcern(nil))
	require.NoError(t, CheckSuitabilityAsDefaultReadConcern(
		&structs.ReadConcern{Level: structs.ReadConcernLevelLocal}))
	require.NoError(t, CheckSuitabilityAsDefaultReadConcern(
		&structs.ReadConcern{Level: structs.ReadConcernLevelMajority}))

	require.Error(t, CheckSuitabilityAsDefaultReadConcern(
		&structs.ReadConcern{Level: structs.ReadConcernLevelLinearizable}))
	require.Error(t, CheckSuitabilityAsDefaultReadConcern(
		&structs.ReadConcern{Level: structs.ReadConcernLevelSnapshot}))

	// A contextual read concern never qualifies, even at a suitable level.
	after := structs.ClusterTime(42)
	require.Error(t, CheckSuitabilityAsDefaultReadConcern(
		&structs.ReadConcern{Level: structs.ReadConcernLevelMajority, AfterClusterTime: &after}))
}

func TestCheckSuitabilityAsDefaultWriteConcern(t *testing.T) {
	require.NoError(t, CheckSuitabilityAsDefaultWriteConcern(nil))
	require.NoError(t, CheckSuitabilityAsDefaultWriteConcern(
		&structs.WriteConcern{WMode: structs.WriteConcernMajority}))
	require.NoError(t, CheckSuitabilityAsDefaultWriteConcern(
		&structs.WriteConcern{W: 2}))

	// Unacknowledged writes cannot be a cluster-wide default.
	require.Error(t, CheckSuitabilityAsDefaultWriteConcern(
		&structs.WriteConcern{W: 0}))

	// Internally inconsistent policies are rejected, not corrected.
	require.Error(t, CheckSuitabilityAsDefaultWriteConcern(
		&structs.WriteConcern{WMode: "all-of-them"}))
	require.Error(t, CheckSuitabilityAsDefaultWriteConcern(
		&structs.WriteConcern{WMode: structs.WriteConcernMajority, W: 3}))
}
