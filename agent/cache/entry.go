// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package cache

import (
	"time"
)

// entry is the cached state for a single key.
type entry[V any] struct {
	// value is the last successfully fetched or installed value. nil with
	// valid set means the authoritative store holds nothing for the key.
	value *V

	// err is the most recent population failure, for synchronous waiters.
	// A later success or Put clears it.
	err error

	// updatedAt is the node-local wall-clock time at which value was last
	// accepted. Diagnostic only.
	updatedAt time.Time

	// valid is false for entries that have been invalidated or never
	// populated. An invalid entry may still carry a usable stale value.
	valid bool

	// fetching is true while a population is in flight. Together with
	// waiter it guarantees at most one concurrent fetch per key.
	fetching bool

	// waiter is closed when the in-flight population completes, then
	// replaced for the next one.
	waiter chan struct{}

	// generation increments on every invalidation and direct install. A
	// population only installs its result if the generation still matches
	// the one it started from.
	generation uint64
}

func newEntry[V any]() *entry[V] {
	return &entry[V]{waiter: make(chan struct{})}
}
