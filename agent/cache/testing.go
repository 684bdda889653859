// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package cache

import (
	"context"
	"sync"

	"github.com/hashicorp/go-hclog"
	testing "github.com/mitchellh/go-testing-interface"
)

// TestCache returns a Cache around the given fetcher configured for unit
// tests: named logger at trace level, owning its routine manager.
func TestCache[K comparable, V any](t testing.T, fetcher Fetcher[K, V]) *Cache[K, V] {
	return New(fetcher, Options{
		Name: "test",
		Logger: hclog.New(&hclog.LoggerOptions{
			Name:  "cache-test",
			Level: hclog.Trace,
		}),
	})
}

// StaticFetcher is a Fetcher test double returning a configurable result and
// counting invocations. An optional gate makes in-flight fetches observable:
// when armed, Fetch blocks until Release is called.
type StaticFetcher[K comparable, V any] struct {
	mu    sync.Mutex
	value *V
	err   error
	calls int
	gate  chan struct{}
}

// Set configures the result returned by subsequent Fetch calls.
func (f *StaticFetcher[K, V]) Set(value *V, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.value = value
	f.err = err
}

// Calls returns how many times Fetch has been invoked.
func (f *StaticFetcher[K, V]) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// Arm makes future Fetch calls block until Release.
func (f *StaticFetcher[K, V]) Arm() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.gate = make(chan struct{})
}

// Release unblocks all Fetch calls blocked by Arm.
func (f *StaticFetcher[K, V]) Release() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.gate != nil {
		close(f.gate)
		f.gate = nil
	}
}

// Fetch implements Fetcher.
func (f *StaticFetcher[K, V]) Fetch(ctx context.Context, _ K) (*V, error) {
	f.mu.Lock()
	f.calls++
	gate := f.gate
	f.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	return f.value, f.err
}
