// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

// Package agent wires the node's state store, the read/write concern
// defaults cache and the HTTP introspection endpoint into one explicitly
// constructed, explicitly torn down unit. There is no ambient global
// instance; whoever needs the defaults holds a reference to the Agent that
// owns them.
package agent

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/hashicorp/go-uuid"

	"github.com/hashicorp/marlin/agent/config"
	"github.com/hashicorp/marlin/agent/rwcdefaults"
	"github.com/hashicorp/marlin/agent/state"
	"github.com/hashicorp/marlin/agent/structs"
)

// Agent is one marlin node.
type Agent struct {
	config *config.Config
	logger hclog.Logger
	nodeID string

	store    *state.Store
	defaults *rwcdefaults.Defaults

	// writeIndex stands in for the raft apply index on local writes.
	writeIndex uint64

	srv *http.Server
	ln  net.Listener

	shutdownOnce sync.Once
	shutdownCh   chan struct{}
}

// New constructs an agent from validated configuration. Start must be called
// before the agent serves anything.
func New(c *config.Config, logger hclog.Logger) (*Agent, error) {
	if c == nil {
		c = config.DefaultConfig()
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = hclog.New(&hclog.LoggerOptions{
			Name:  "marlin",
			Level: hclog.LevelFromString(c.LogLevel),
		})
	}

	nodeID, err := uuid.GenerateUUID()
	if err != nil {
		return nil, fmt.Errorf("failed generating node ID: %w", err)
	}

	store, err := state.NewStateStore(logger)
	if err != nil {
		return nil, err
	}

	a := &Agent{
		config:     c,
		logger:     logger,
		nodeID:     nodeID,
		store:      store,
		shutdownCh: make(chan struct{}),
	}

	a.defaults = rwcdefaults.New(store.FetchRWConcernDefaults, logger)
	store.RegisterSettingsObserver(func(tx *state.Txn, id string, newDoc *structs.RWConcernDefault) {
		a.defaults.ObserveDirectWriteToConfigSettings(tx, id, newDoc)
	})
	a.defaults.SetImplicitDefaultWriteConcernMajority(c.DefaultWriteConcernMajority)

	return a, nil
}

// Start begins the periodic defaults refresher and the HTTP listener.
func (a *Agent) Start(ctx context.Context) error {
	if err := a.defaults.StartPeriodicRefresh(ctx, a.config.RefreshInterval); err != nil {
		return err
	}

	ln, err := net.Listen("tcp", a.config.BindAddr)
	if err != nil {
		return fmt.Errorf("failed binding HTTP listener on %s: %w", a.config.BindAddr, err)
	}
	a.ln = ln
	a.srv = &http.Server{
		Handler:           a.handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		if err := a.srv.Serve(ln); err != nil && err != http.ErrServerClosed {
			a.logger.Error("http server failed", "error", err)
		}
	}()

	a.logger.Info("agent started",
		"node_name", a.config.NodeName,
		"node_id", a.nodeID,
		"http_addr", ln.Addr().String(),
	)
	return nil
}

// HTTPAddr returns the bound HTTP address, once Start has succeeded.
func (a *Agent) HTTPAddr() string {
	if a.ln == nil {
		return ""
	}
	return a.ln.Addr().String()
}

// Defaults exposes the read/write concern defaults facade to callers that
// hold the agent.
func (a *Agent) Defaults() *rwcdefaults.Defaults {
	return a.defaults
}

// Store exposes the node's state store.
func (a *Agent) Store() *state.Store {
	return a.store
}

// UpdateRWConcernDefaults generates a new defaults record, persists it, and
// installs it locally so this node observes its own change immediately
// rather than after the invalidate-and-refresh round trip.
func (a *Agent) UpdateRWConcernDefaults(ctx context.Context, rc *structs.ReadConcern, wc *structs.WriteConcern) (*structs.RWConcernDefault, error) {
	rec, err := a.defaults.GenerateNewConcerns(ctx, rc, wc)
	if err != nil {
		return nil, err
	}
	if err := a.store.SetRWConcernDefaults(a.nextWriteIndex(), rec); err != nil {
		return nil, persistError{err}
	}
	a.defaults.SetDefault(rec)

	a.logger.Info("updated read/write concern defaults", "epoch", rec.Epoch)
	return rec, nil
}

func (a *Agent) nextWriteIndex() uint64 {
	return atomic.AddUint64(&a.writeIndex, 1)
}

// persistError marks a failure to write to the state store, as opposed to a
// validation failure of the caller's input.
type persistError struct {
	error
}

func (e persistError) Unwrap() error { return e.error }

// Shutdown stops the HTTP server and drains every background routine. Safe
// to call more than once.
func (a *Agent) Shutdown() {
	a.shutdownOnce.Do(func() {
		a.logger.Info("agent shutting down")
		if a.srv != nil {
			a.srv.Close()
		}
		a.defaults.Shutdown()
		close(a.shutdownCh)
		a.logger.Info("agent shutdown complete")
	})
}

// ShutdownCh is closed once Shutdown has completed.
func (a *Agent) ShutdownCh() <-chan struct{} {
	return a.shutdownCh
}
