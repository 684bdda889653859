// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

// Package config loads and validates the agent's configuration. Files are
// written in HCL; anything not set in the file keeps its default.
package config

import (
	"fmt"
	"net"
	"os"
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/hashicorp/hcl"
)

// Config is the agent's runtime configuration after defaulting, merging and
// validation.
type Config struct {
	// NodeName identifies this node in logs and diagnostics.
	NodeName string

	// LogLevel is one of hclog's level names.
	LogLevel string

	// BindAddr is the host:port the HTTP introspection endpoint listens on.
	BindAddr string

	// RefreshInterval is how often the agent polls storage for a newer
	// defaults document, independent of commit-driven invalidation.
	RefreshInterval time.Duration

	// DefaultWriteConcernMajority sets the implicit default write concern
	// to majority. Applied once at startup.
	DefaultWriteConcernMajority bool
}

// fileConfig is the subset of Config settable from a file. Pointers
// distinguish "absent" from zero values.
type fileConfig struct {
	NodeName                    *string `hcl:"node_name"`
	LogLevel                    *string `hcl:"log_level"`
	BindAddr                    *string `hcl:"bind_addr"`
	RefreshInterval             *string `hcl:"refresh_interval"`
	DefaultWriteConcernMajority *bool   `hcl:"default_write_concern_majority"`
}

// DefaultConfig returns the configuration used when nothing is set.
func DefaultConfig() *Config {
	nodeName, err := os.Hostname()
	if err != nil || nodeName == "" {
		nodeName = "marlin"
	}
	return &Config{
		NodeName:        nodeName,
		LogLevel:        "INFO",
		BindAddr:        "127.0.0.1:8411",
		RefreshInterval: 30 * time.Second,
	}
}

// Load reads an HCL config file and merges it over the defaults. An empty
// path returns the defaults.
func Load(path string) (*Config, error) {
	c := DefaultConfig()
	if path == "" {
		return c, c.Validate()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed reading config file %q: %w", path, err)
	}
	if err := c.merge(string(data)); err != nil {
		return nil, fmt.Errorf("failed parsing config file %q: %w", path, err)
	}
	return c, c.Validate()
}

// Parse merges raw HCL over the defaults. Mostly for tests.
func Parse(data string) (*Config, error) {
	c := DefaultConfig()
	if err := c.merge(data); err != nil {
		return nil, err
	}
	return c, c.Validate()
}

func (c *Config) merge(data string) error {
	var fc fileConfig
	if err := hcl.Decode(&fc, data); err != nil {
		return err
	}
	if fc.NodeName != nil {
		c.NodeName = *fc.NodeName
	}
	if fc.LogLevel != nil {
		c.LogLevel = *fc.LogLevel
	}
	if fc.BindAddr != nil {
		c.BindAddr = *fc.BindAddr
	}
	if fc.RefreshInterval != nil {
		d, err := time.ParseDuration(*fc.RefreshInterval)
		if err != nil {
			return fmt.Errorf("invalid refresh_interval: %w", err)
		}
		c.RefreshInterval = d
	}
	if fc.DefaultWriteConcernMajority != nil {
		c.DefaultWriteConcernMajority = *fc.DefaultWriteConcernMajority
	}
	return nil
}

// Validate checks the configuration for values the agent cannot run with.
func (c *Config) Validate() error {
	if c.NodeName == "" {
		return fmt.Errorf("node_name cannot be empty")
	}
	if hclog.LevelFromString(c.LogLevel) == hclog.NoLevel {
		return fmt.Errorf("invalid log_level %q", c.LogLevel)
	}
	if _, _, err := net.SplitHostPort(c.BindAddr); err != nil {
		return fmt.Errorf("invalid bind_addr %q: %w", c.BindAddr, err)
	}
	if c.RefreshInterval <= 0 {
		return fmt.Errorf("refresh_interval must be positive, got %s", c.RefreshInterval)
	}
	return nil
}
