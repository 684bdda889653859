// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	c := DefaultConfig()
	require.NoError(t, c.Validate())
	require.Equal(t, 30*time.Second, c.RefreshInterval)
	require.False(t, c.DefaultWriteConcernMajority)
}

func TestParse(t *testing.T) {
	c, err := Parse(`
node_name = "db-3"
log_level = "DEBUG"
bind_addr = "0.0.0.0:9411"
refresh_interval = "5s"
default_write_concern_majority = true
`)
	require.NoError(t, err)
	require.Equal(t, "db-3", c.NodeName)
	require.Equal(t, "DEBUG", c.LogLevel)
	require.Equal(t, "0.0.0.0:9411", c.BindAddr)
	require.Equal(t, 5*time.Second, c.RefreshInterval)
	require.True(t, c.DefaultWriteConcernMajority)
}

func TestParse_PartialKeepsDefaults(t *testing.T) {
	c, err := Parse(`log_level = "WARN"`)
	require.NoError(t, err)
	require.Equal(t, "WARN", c.LogLevel)
	require.Equal(t, 30*time.Second, c.RefreshInterval)
	require.NotEmpty(t, c.NodeName)
}

func TestParse_Invalid(t *testing.T) {
	_, err := Parse(`log_level = "shouty"`)
	require.Error(t, err)

	_, err = Parse(`refresh_interval = "sometimes"`)
	require.Error(t, err)

	_, err = Parse(`refresh_interval = "-1s"`)
	require.Error(t, err)

	_, err = Parse(`bind_addr = "no-port"`)
	require.Error(t, err)
}
