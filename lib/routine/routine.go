// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

// Package routine manages named background goroutines whose lifetimes are
// tied to an owning component: the owner stops and drains them all on
// shutdown, and nothing can be scheduled afterwards.
package routine

import (
	"context"
	"fmt"
	"os"
	"sync"

	"github.com/hashicorp/go-hclog"
)

// Routine is a long- or short-lived background task. It must return promptly
// once its context is canceled.
type Routine func(ctx context.Context) error

type tracker struct {
	cancel    context.CancelFunc
	stoppedCh chan struct{} // closed once the routine has returned
}

func (t *tracker) running() bool {
	select {
	case <-t.stoppedCh:
		return false
	default:
		return true
	}
}

// Manager runs named routines. At most one routine per name runs at a time;
// starting a name that is already running is a no-op. A zero Manager is not
// usable, call NewManager.
type Manager struct {
	lock    sync.Mutex
	logger  hclog.Logger
	stopped bool

	routines map[string]*tracker
}

func NewManager(logger hclog.Logger) *Manager {
	if logger == nil {
		logger = hclog.New(&hclog.LoggerOptions{Output: os.Stderr})
	}
	return &Manager{
		logger:   logger,
		routines: make(map[string]*tracker),
	}
}

// Start launches the routine under the given name, unless one with that name
// is still running, in which case the call is a no-op. After StopAll has been
// called the manager refuses all further work.
func (m *Manager) Start(ctx context.Context, name string, routine Routine) error {
	m.lock.Lock()
	defer m.lock.Unlock()

	if m.stopped {
		return fmt.Errorf("routine manager is stopped")
	}
	if t, ok := m.routines[name]; ok && t.running() {
		return nil
	}

	if ctx == nil {
		ctx = context.Background()
	}
	rtCtx, cancel := context.WithCancel(ctx)
	t := &tracker{
		cancel:    cancel,
		stoppedCh: make(chan struct{}),
	}
	m.routines[name] = t

	go func() {
		defer close(t.stoppedCh)
		err := routine(rtCtx)
		switch err {
		case nil, context.Canceled, context.DeadlineExceeded:
			m.logger.Trace("stopped routine", "routine", name)
		default:
			m.logger.Error("routine exited with error", "routine", name, "error", err)
		}
	}()

	m.logger.Trace("started routine", "routine", name)
	return nil
}

// Stop cancels the named routine and returns a channel closed once it has
// fully stopped. Unknown names return an already-closed channel.
func (m *Manager) Stop(name string) <-chan struct{} {
	m.lock.Lock()
	defer m.lock.Unlock()

	t, ok := m.routines[name]
	if !ok {
		ch := make(chan struct{})
		close(ch)
		return ch
	}
	if t.running() {
		m.logger.Trace("stopping routine", "routine", name)
		t.cancel()
	}
	delete(m.routines, name)
	return t.stoppedCh
}

// StopAll cancels every routine and marks the manager stopped. Start calls
// made afterwards fail.
func (m *Manager) StopAll() {
	m.lock.Lock()
	defer m.lock.Unlock()

	m.stopped = true
	for name, t := range m.routines {
		if t.running() {
			m.logger.Trace("stopping routine", "routine", name)
			t.cancel()
		}
	}
}

// Wait blocks until all routines have stopped. Call after StopAll to drain.
func (m *Manager) Wait() {
	m.lock.Lock()
	trackers := make([]*tracker, 0, len(m.routines))
	for _, t := range m.routines {
		trackers = append(trackers, t)
	}
	m.lock.Unlock()

	for _, t := range trackers {
		<-t.stoppedCh
	}
}
