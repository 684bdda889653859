// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package agent

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/hashicorp/marlin/agent/config"
	"github.com/hashicorp/marlin/agent/structs"
)

func testConfig() *config.Config {
	c := config.DefaultConfig()
	c.NodeName = "test-node"
	c.BindAddr = "127.0.0.1:0"
	c.RefreshInterval = 50 * time.Millisecond
	return c
}

func TestAgentLifecycle(t *testing.T) {
	a, err := New(testConfig(), nil)
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, a.Start(ctx))
	require.NotEmpty(t, a.HTTPAddr())

	a.Shutdown()
	select {
	case <-a.ShutdownCh():
	default:
		t.Fatal("shutdown channel not closed")
	}

	// Idempotent.
	a.Shutdown()
}

func TestAgentUpdateRWConcernDefaults(t *testing.T) {
	a, err := New(testConfig(), nil)
	require.NoError(t, err)
	defer a.Shutdown()

	ctx := context.Background()

	rec, err := a.UpdateRWConcernDefaults(ctx,
		&structs.ReadConcern{Level: structs.ReadConcernLevelMajority}, nil)
	require.NoError(t, err)
	require.Equal(t, uint64(1), rec.Epoch)

	// The authoring node sees its own change immediately.
	def, err := a.Defaults().GetDefault(ctx)
	require.NoError(t, err)
	require.Equal(t, uint64(1), def.Epoch)
	require.False(t, def.LocalUpdateWallClockTime.IsZero())

	// And the document really is persisted.
	stored, err := a.Store().RWConcernDefaults(nil)
	require.NoError(t, err)
	require.Equal(t, uint64(1), stored.Epoch)

	// A second update carries the read concern forward.
	rec, err = a.UpdateRWConcernDefaults(ctx, nil,
		&structs.WriteConcern{WMode: structs.WriteConcernMajority})
	require.NoError(t, err)
	require.Equal(t, uint64(2), rec.Epoch)
	require.NotNil(t, rec.DefaultReadConcern)

	_, err = a.UpdateRWConcernDefaults(ctx, nil, nil)
	require.Error(t, err)
}

func TestAgentImplicitMajorityFromConfig(t *testing.T) {
	c := testConfig()
	c.DefaultWriteConcernMajority = true

	a, err := New(c, nil)
	require.NoError(t, err)
	defer a.Shutdown()

	require.True(t, a.Defaults().ImplicitDefaultWriteConcernMajority())
}
