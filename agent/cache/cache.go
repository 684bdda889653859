// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

// Package cache provides a read-through cache for data whose authoritative
// copy lives elsewhere in the cluster.
//
// Values are served from the last known snapshot while at most one
// population per key fetches a newer one, so readers on the hot path are
// never made to wait out a storage round trip. Invalidation marks an entry
// stale without discarding its value; the stale value keeps being served
// until a population succeeds. How each value is fetched is supplied as a
// Fetcher callback at construction time.
package cache

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/armon/go-metrics"
	"github.com/hashicorp/go-hclog"

	"github.com/hashicorp/marlin/lib/routine"
)

// Fetcher retrieves the authoritative value for a key. Returning (nil, nil)
// means nothing is stored for the key, which is a valid outcome and not an
// error. Errors must be reserved for genuine fetch failures so callers can
// tell "absent" from "unreachable".
type Fetcher[K comparable, V any] func(ctx context.Context, key K) (*V, error)

// Options configures a Cache.
type Options struct {
	// Name is used in log and metric labels.
	Name string

	Logger hclog.Logger

	// Routines runs background populations. If nil the cache creates and
	// owns its own manager, stopping it on Shutdown.
	Routines *routine.Manager
}

// Cache is a read-through cache over a Fetcher. Create one with New; the
// zero value is not usable.
//
// The internal lock covers bookkeeping only and is never held across a
// Fetcher call, so one slow fetch cannot stall bookkeeping for other keys.
type Cache[K comparable, V any] struct {
	fetcher  Fetcher[K, V]
	name     string
	logger   hclog.Logger
	routines *routine.Manager

	// ownRoutines records whether Shutdown must stop the manager too.
	ownRoutines bool

	lock     sync.Mutex
	entries  map[K]*entry[V]
	fetchSeq uint64
}

// New creates a cache around the given fetcher.
func New[K comparable, V any](fetcher Fetcher[K, V], opts Options) *Cache[K, V] {
	if fetcher == nil {
		panic("cache: nil fetcher")
	}
	logger := opts.Logger
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	if opts.Name != "" {
		logger = logger.Named(opts.Name)
	}

	c := &Cache[K, V]{
		fetcher:  fetcher,
		name:     opts.Name,
		logger:   logger,
		routines: opts.Routines,
		entries:  make(map[K]*entry[V]),
	}
	if c.routines == nil {
		c.routines = routine.NewManager(logger)
		c.ownRoutines = true
	}
	return c
}

// Get returns the current value for the key.
//
// A valid cached value is returned immediately. An invalidated entry that
// still holds a value is also returned immediately, with a single background
// population triggered to replace it; the caller is never blocked on the
// fetch in that case. Only when no value has ever been cached does Get block
// on the population, and only then does a fetch failure propagate to the
// caller.
//
// A nil value with a nil error means the authoritative store holds nothing
// for this key.
func (c *Cache[K, V]) Get(ctx context.Context, key K) (*V, time.Time, error) {
	first := true

	for {
		c.lock.Lock()
		e := c.entries[key]

		if e != nil && e.valid {
			if first {
				metrics.IncrCounter([]string{"marlin", "cache", c.name, "hit"}, 1)
			}
			v, at := e.value, e.updatedAt
			c.lock.Unlock()
			return v, at, nil
		}

		if e != nil && e.value != nil {
			// Stale but usable. Kick a population and serve what we have
			// so the hot path never waits on storage.
			c.startFetchLocked(key)
			v, at := e.value, e.updatedAt
			c.lock.Unlock()
			return v, at, nil
		}

		if !first && e != nil && e.err != nil {
			// Our fetch completed with an error. Return it rather than
			// retrying for as long as the caller's context allows.
			err := e.err
			c.lock.Unlock()
			var zero time.Time
			return nil, zero, err
		}

		if first {
			metrics.IncrCounter([]string{"marlin", "cache", c.name, "miss"}, 1)
			first = false
		}

		waiter := c.startFetchLocked(key)
		c.lock.Unlock()

		select {
		case <-waiter:
			// Population finished, one way or the other. Re-read.
		case <-ctx.Done():
			var zero time.Time
			return nil, zero, ctx.Err()
		}
	}
}

// GetCached returns the last known value without ever triggering or waiting
// on a population. The returned value may be stale. ok is false when the
// cache holds no value for the key at all.
func (c *Cache[K, V]) GetCached(key K) (v *V, updatedAt time.Time, ok bool) {
	c.lock.Lock()
	defer c.lock.Unlock()

	e := c.entries[key]
	if e == nil || (e.value == nil && !e.valid) {
		return nil, time.Time{}, false
	}
	return e.value, e.updatedAt, true
}

// Prefetch triggers a background population for the key unless the cached
// value is already valid or a population is in flight. It never blocks on
// the fetch.
func (c *Cache[K, V]) Prefetch(key K) {
	c.lock.Lock()
	defer c.lock.Unlock()

	e := c.entries[key]
	if e != nil && e.valid {
		return
	}
	c.startFetchLocked(key)
}

// Invalidate marks the key's entry stale without removing its value.
// Subsequent Gets keep returning the stale value until a population
// completes. The result of any population already in flight is discarded,
// guarding against installing a value fetched before the event that caused
// the invalidation.
func (c *Cache[K, V]) Invalidate(key K) {
	c.lock.Lock()
	defer c.lock.Unlock()

	e := c.entries[key]
	if e == nil {
		return
	}
	e.valid = false
	e.generation++
	metrics.IncrCounter([]string{"marlin", "cache", c.name, "invalidate"}, 1)
}

// Put installs a value directly, bypassing the fetcher. Any in-flight
// population is demoted to a no-op so its (older) result cannot clobber the
// installed value.
func (c *Cache[K, V]) Put(key K, v *V) {
	c.lock.Lock()
	defer c.lock.Unlock()

	e := c.entries[key]
	if e == nil {
		e = newEntry[V]()
		c.entries[key] = e
	}
	e.value = v
	e.valid = true
	e.err = nil
	e.updatedAt = time.Now()
	e.generation++
}

// Shutdown stops background populations if the cache owns its routine
// manager, and drains them. The cache must not be used afterwards.
func (c *Cache[K, V]) Shutdown() {
	if c.ownRoutines {
		c.routines.StopAll()
		c.routines.Wait()
	}
}

// startFetchLocked ensures exactly one population is in flight for the key
// and returns the waiter channel that closes when it completes. c.lock must
// be held.
func (c *Cache[K, V]) startFetchLocked(key K) <-chan struct{} {
	e := c.entries[key]
	if e == nil {
		e = newEntry[V]()
		c.entries[key] = e
	}
	if e.fetching {
		return e.waiter
	}

	e.fetching = true
	waiter := e.waiter
	gen := e.generation

	c.fetchSeq++
	name := fmt.Sprintf("%s-populate-%d", c.name, c.fetchSeq)
	// Populations are tied to the manager's lifetime, not the caller's:
	// a canceled reader must not abort a fetch other waiters depend on.
	err := c.routines.Start(context.Background(), name, func(ctx context.Context) error {
		c.runFetch(ctx, key, gen)
		return nil
	})
	if err != nil {
		// Shutting down. Fail the population so waiters don't hang.
		e.fetching = false
		e.err = err
		e.waiter = make(chan struct{})
		close(waiter)
	}
	return waiter
}

// runFetch performs one population. The fetch itself runs without holding
// the cache lock; only the result installation takes it.
func (c *Cache[K, V]) runFetch(ctx context.Context, key K, gen uint64) {
	result, err := c.fetcher(ctx, key)

	c.lock.Lock()
	defer c.lock.Unlock()

	e := c.entries[key]
	if e == nil {
		// Entry vanished; nothing to install.
		return
	}
	e.fetching = false

	if e.generation != gen {
		// Invalidated (or directly overwritten) while we were fetching.
		// The result predates whatever caused that, so discard it and let
		// the next reader trigger a fresh population.
		metrics.IncrCounter([]string{"marlin", "cache", c.name, "fetch_stale"}, 1)
	} else if err != nil {
		metrics.IncrCounter([]string{"marlin", "cache", c.name, "fetch_error"}, 1)
		c.logger.Warn("cache population failed", "key", fmt.Sprintf("%v", key), "error", err)

		// Record the error for synchronous waiters but keep the previous
		// value authoritative.
		e.err = err
	} else {
		metrics.IncrCounter([]string{"marlin", "cache", c.name, "fetch_success"}, 1)
		e.value = result
		e.valid = true
		e.err = nil
		e.updatedAt = time.Now()
	}

	// Wake waiters and arm a fresh waiter for the next population.
	close(e.waiter)
	e.waiter = make(chan struct{})
}
