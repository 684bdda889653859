// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

// Package rwcdefaults maintains the node-local cache of the cluster-wide
// read/write concern defaults.
//
// The defaults are authored on one node, persisted centrally, and observed
// lazily by every other node: readers always get an immediate answer from
// the cache, invalidation is synchronized with the commit of the write that
// changed the persisted document, and an epoch carried by each generation of
// the defaults ensures a slow fetch can never overwrite a newer record with
// an older one.
package rwcdefaults

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/hashicorp/go-hclog"
	"golang.org/x/time/rate"

	"github.com/hashicorp/marlin/agent/cache"
	"github.com/hashicorp/marlin/agent/structs"
	"github.com/hashicorp/marlin/lib/routine"
)

// ErrNoConcernProvided is returned by GenerateNewConcerns when called with
// neither a read nor a write concern. That is a caller bug, not a runtime
// condition.
var ErrNoConcernProvided = errors.New("at least one of read concern and write concern must be provided")

// FetchDefaultsFn retrieves the latest persisted defaults document. A nil
// document with a nil error means none is persisted; errors are genuine
// storage failures.
type FetchDefaultsFn func(ctx context.Context) (*structs.RWConcernDefault, error)

// CommitNotifier registers a callback that the surrounding transaction
// machinery invokes exactly once, if and only if the transaction commits.
type CommitNotifier interface {
	OnCommit(func())
}

// cacheKey is the singleton key of the defaults cache.
type cacheKey struct{}

// Every invalidation eagerly kicks a background refresh; the limiter keeps a
// burst of invalidations from turning into a fetch storm. Readers are not
// affected, the next Get re-triggers population regardless.
const prefetchPerSecond = 1

// Defaults is the facade over the cached read/write concern defaults.
// Construct with New and tear down with Shutdown; the background population
// pool lives and dies with the facade.
type Defaults struct {
	logger   hclog.Logger
	fetchFn  FetchDefaultsFn
	routines *routine.Manager
	cache    *cache.Cache[cacheKey, structs.RWConcernDefault]
	limiter  *rate.Limiter

	lock sync.Mutex

	// highestEpoch is the highest epoch this node has observed, whether
	// from a fetched record, a direct install, or its own generation. It
	// survives the record being cleared so it keeps acting as a high-water
	// mark for future comparisons.
	highestEpoch uint64

	// implicitDefaultWCMajority is set once during startup configuration
	// and is independent of the cache protocol.
	implicitDefaultWCMajority bool
}

// New creates the facade around the given fetch callback.
func New(fetchFn FetchDefaultsFn, logger hclog.Logger) *Defaults {
	if fetchFn == nil {
		panic("rwcdefaults: nil fetch callback")
	}
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	logger = logger.Named("rwc-defaults")

	d := &Defaults{
		logger:   logger,
		fetchFn:  fetchFn,
		routines: routine.NewManager(logger),
		limiter:  rate.NewLimiter(prefetchPerSecond, 1),
	}
	d.cache = cache.New(d.lookup, cache.Options{
		Name:     "rwc_defaults",
		Logger:   logger,
		Routines: d.routines,
	})
	return d
}

// lookup adapts the fetch callback to the cache and records any observed
// epoch.
func (d *Defaults) lookup(ctx context.Context, _ cacheKey) (*structs.RWConcernDefault, error) {
	doc, err := d.fetchFn(ctx)
	if err != nil {
		return nil, err
	}
	if doc == nil {
		return nil, nil
	}
	d.observeEpoch(doc.Epoch)

	// The persisted document is validated before it is written, but a
	// defensive check costs little and a bad default is worth a warning.
	if doc.DefaultWriteConcern != nil {
		if err := CheckSuitabilityAsDefaultWriteConcern(doc.DefaultWriteConcern); err != nil {
			d.logger.Warn("persisted default write concern failed suitability check", "error", err)
		}
	}
	return doc, nil
}

func (d *Defaults) observeEpoch(epoch uint64) {
	d.lock.Lock()
	defer d.lock.Unlock()
	d.observeEpochLocked(epoch)
}

func (d *Defaults) observeEpochLocked(epoch uint64) {
	if epoch > d.highestEpoch {
		d.highestEpoch = epoch
	}
}

// GetDefault returns the current defaults record along with the wall-clock
// time this node's cache accepted it. A zero-valued record means no defaults
// have ever been cached; that is not an error. The only error case is a
// fetch failure while the cache is still empty.
func (d *Defaults) GetDefault(ctx context.Context) (structs.RWConcernDefaultAndTime, error) {
	doc, updatedAt, err := d.cache.Get(ctx, cacheKey{})
	if err != nil {
		return structs.RWConcernDefaultAndTime{}, err
	}
	if doc == nil {
		return structs.RWConcernDefaultAndTime{}, nil
	}
	return structs.RWConcernDefaultAndTime{
		RWConcernDefault:         *doc.Clone(),
		LocalUpdateWallClockTime: updatedAt,
	}, nil
}

// GetDefaultReadConcern returns the default read concern, or nil if the
// persisted record does not set one.
func (d *Defaults) GetDefaultReadConcern(ctx context.Context) (*structs.ReadConcern, error) {
	def, err := d.GetDefault(ctx)
	if err != nil {
		return nil, err
	}
	return def.DefaultReadConcern, nil
}

// GetDefaultWriteConcern returns the default write concern, or nil if the
// persisted record does not set one.
func (d *Defaults) GetDefaultWriteConcern(ctx context.Context) (*structs.WriteConcern, error) {
	def, err := d.GetDefault(ctx)
	if err != nil {
		return nil, err
	}
	return def.DefaultWriteConcern, nil
}

// GenerateNewConcerns produces a new defaults record for the caller to
// persist externally. At least one of rc and wc must be given; any field not
// being replaced is carried forward from the current (possibly stale) cached
// record. The record gets an epoch one greater than the highest epoch this
// node has observed and the current wall-clock set time. The cache is not
// mutated; installing the record is the caller's job, via persistence plus
// either SetDefault or the commit-synchronized invalidation.
func (d *Defaults) GenerateNewConcerns(ctx context.Context, rc *structs.ReadConcern, wc *structs.WriteConcern) (*structs.RWConcernDefault, error) {
	if rc == nil && wc == nil {
		return nil, ErrNoConcernProvided
	}

	current, _, _ := d.cache.GetCached(cacheKey{})

	newDefaults := &structs.RWConcernDefault{
		DefaultReadConcern:  rc.Clone(),
		DefaultWriteConcern: wc.Clone(),
		SetTime:             time.Now().UTC(),
	}
	if current != nil {
		if rc == nil {
			newDefaults.DefaultReadConcern = current.DefaultReadConcern.Clone()
		}
		if wc == nil {
			newDefaults.DefaultWriteConcern = current.DefaultWriteConcern.Clone()
		}
	}

	if newDefaults.DefaultReadConcern != nil {
		if err := CheckSuitabilityAsDefaultReadConcern(newDefaults.DefaultReadConcern); err != nil {
			return nil, err
		}
	}
	if newDefaults.DefaultWriteConcern != nil {
		if err := CheckSuitabilityAsDefaultWriteConcern(newDefaults.DefaultWriteConcern); err != nil {
			return nil, err
		}
	}

	d.lock.Lock()
	defer d.lock.Unlock()
	if current != nil {
		d.observeEpochLocked(current.Epoch)
	}
	newDefaults.Epoch = d.highestEpoch + 1
	d.highestEpoch = newDefaults.Epoch

	return newDefaults, nil
}

// ObserveDirectWriteToConfigSettings inspects a write to the settings table.
// If it touches the defaults document, cache invalidation is registered to
// run if and only if the transaction commits; an aborted transaction leaves
// the cache untouched. The document content itself is only checked
// defensively, never rejected here.
func (d *Defaults) ObserveDirectWriteToConfigSettings(tx CommitNotifier, id string, newDoc *structs.RWConcernDefault) {
	if id != structs.ReadWriteConcernDefaultsDocumentID {
		return
	}
	if newDoc != nil && newDoc.DefaultWriteConcern != nil {
		if err := CheckSuitabilityAsDefaultWriteConcern(newDoc.DefaultWriteConcern); err != nil {
			d.logger.Warn("written default write concern failed suitability check", "error", err)
		}
	}
	tx.OnCommit(func() {
		d.logger.Debug("defaults document changed, invalidating cache")
		d.Invalidate()
	})
}

// Invalidate marks the cached defaults stale and triggers a background
// refresh. Readers keep getting the previous record until the refresh
// completes, so nothing stalls on a storage round trip.
func (d *Defaults) Invalidate() {
	d.cache.Invalidate(cacheKey{})
	if d.limiter.Allow() {
		d.cache.Prefetch(cacheKey{})
	}
}

// RefreshIfNecessary synchronously fetches the latest persisted record and
// installs it only if its epoch is strictly greater than the cached one, or
// if the cache holds no record at all. Epoch comparison, never fetch
// completion order, decides what wins. A fetch that finds no document while
// the cache holds one clears the cached record but keeps the highest
// observed epoch as a high-water mark.
func (d *Defaults) RefreshIfNecessary(ctx context.Context) error {
	fetched, err := d.fetchFn(ctx)
	if err != nil {
		return err
	}

	d.lock.Lock()
	defer d.lock.Unlock()

	current, _, ok := d.cache.GetCached(cacheKey{})

	if fetched == nil {
		if ok && current != nil {
			d.logger.Info("persisted defaults document removed, clearing cached defaults")
			d.cache.Put(cacheKey{}, nil)
		}
		return nil
	}

	d.observeEpochLocked(fetched.Epoch)
	if current == nil || fetched.Epoch > current.Epoch {
		d.logger.Info("refreshed read/write concern defaults",
			"epoch", fetched.Epoch,
			"set_time", fetched.SetTime,
		)
		d.cache.Put(cacheKey{}, fetched)
	}
	return nil
}

// SetDefault installs a fully formed record directly, bypassing a fetch.
// Used right after a local generate-and-persist sequence so the authoring
// node sees its own change without waiting for the invalidation round trip.
func (d *Defaults) SetDefault(rwc *structs.RWConcernDefault) {
	if rwc == nil {
		return
	}
	d.lock.Lock()
	defer d.lock.Unlock()
	d.observeEpochLocked(rwc.Epoch)
	d.cache.Put(cacheKey{}, rwc.Clone())
}

// SetImplicitDefaultWriteConcernMajority records whether the implicit
// default write concern is majority. Called once during startup
// configuration; not part of the cache protocol.
func (d *Defaults) SetImplicitDefaultWriteConcernMajority(majority bool) {
	d.lock.Lock()
	defer d.lock.Unlock()
	d.implicitDefaultWCMajority = majority
}

// ImplicitDefaultWriteConcernMajority reports the flag set at startup.
func (d *Defaults) ImplicitDefaultWriteConcernMajority() bool {
	d.lock.Lock()
	defer d.lock.Unlock()
	return d.implicitDefaultWCMajority
}

// StartPeriodicRefresh drives RefreshIfNecessary at the given interval until
// the context is canceled or the facade shuts down. Refresh failures are
// logged and retried on the next tick; bounded staleness beats hard failure
// here.
func (d *Defaults) StartPeriodicRefresh(ctx context.Context, interval time.Duration) error {
	return d.routines.Start(ctx, "rwc-defaults-refresh", func(ctx context.Context) error {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-ticker.C:
				if err := d.RefreshIfNecessary(ctx); err != nil {
					d.logger.Warn("periodic defaults refresh failed", "error", err)
				}
			}
		}
	})
}

// Shutdown stops the periodic refresher and any in-flight background
// population, and drains them. No population outlives the facade.
func (d *Defaults) Shutdown() {
	d.routines.StopAll()
	d.routines.Wait()
	d.cache.Shutdown()
}
