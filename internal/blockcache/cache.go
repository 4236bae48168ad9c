// Package blockcache owns a bounded set of mapped blocks, services
// range requests by lookup-or-fetch, tracks borrows, evicts LRU, and
// enforces the aliasing invariants that keep a fresh mutable mapping
// from ever coexisting with a stale read-only one over the same
// region. This is the heart of the system: see SPEC_FULL.md §4.3.
package blockcache

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pnevyk/harrow/internal/mapping"
	"go.uber.org/zap"
)

const (
	flushRetries    = 3
	flushRetryDelay = time.Millisecond
)

// FetchFunc produces a fresh RawMapping for the range the caller
// already decided on (aligned and enlarged by the facade). It is
// invoked with no cache lock held.
type FetchFunc func() (*mapping.RawMapping, error)

// Stats is a point-in-time snapshot of cache occupancy and lifetime
// counters.
type Stats struct {
	Available int
	Lent      int
	Exclusive bool
	Hits      int64
	Misses    int64
	Evictions int64
	Flushes   int64
}

type counters struct {
	hits, misses, evictions, flushes atomic.Int64
}

// Cache is the bounded multiset of cached blocks, partitioned into
// available (FIFO, capacity C), lent (unordered, unbounded), and
// exclusive (at most one block).
type Cache struct {
	capacity int
	logger   atomic.Pointer[zap.SugaredLogger]

	availableMu sync.Mutex
	available   []*cachedBlock // front = LRU, back = MRU

	lentMu sync.Mutex
	lent   []*cachedBlock

	exclusiveMu sync.Mutex
	exclusive   *cachedBlock

	stats counters
}

// New constructs a Cache with the given capacity. Capacity must be at
// least 1 — per SPEC_FULL.md §7, a capacity of zero is a programmer
// error, not a runtime condition to recover from, so it panics rather
// than returning an error.
func New(capacity int, logger *zap.SugaredLogger) *Cache {
	if capacity < 1 {
		panic("blockcache: capacity must be >= 1")
	}

	if logger == nil {
		logger = zap.NewNop().Sugar()
	}

	c := &Cache{capacity: capacity}
	c.logger.Store(logger)

	return c
}

// SetLogger swaps the logger used for subsequent cache events. Safe to
// call concurrently with cache operations.
func (c *Cache) SetLogger(logger *zap.SugaredLogger) {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}

	c.logger.Store(logger)
}

func (c *Cache) log() *zap.SugaredLogger {
	return c.logger.Load()
}

// Take services a shared read request for [off, off+length). It
// searches available, then lent, both MRU-first, and falls back to
// fetch on a full miss.
func (c *Cache) Take(off, length int64, fetch FetchFunc) (*ViewRef, error) {
	c.availableMu.Lock()
	for i := len(c.available) - 1; i >= 0; i-- {
		b := c.available[i]
		if b.contains(off, length) {
			c.available = append(c.available[:i], c.available[i+1:]...)
			c.availableMu.Unlock()

			b.borrow.Store(1)

			c.lentMu.Lock()
			c.lent = append(c.lent, b)
			c.lentMu.Unlock()

			c.stats.hits.Add(1)
			c.log().Debugw("cache hit", "set", "available", "offset", off, "length", length)

			return c.mintRef(b, off, length), nil
		}
	}
	c.availableMu.Unlock()

	c.lentMu.Lock()
	for i := len(c.lent) - 1; i >= 0; i-- {
		b := c.lent[i]
		if b.contains(off, length) {
			b.borrow.Add(1)
			c.lentMu.Unlock()

			c.stats.hits.Add(1)
			c.log().Debugw("cache hit", "set", "lent", "offset", off, "length", length)

			return c.mintRef(b, off, length), nil
		}
	}
	c.lentMu.Unlock()

	c.stats.misses.Add(1)

	raw, err := fetch()
	if err != nil {
		return nil, err
	}

	b := newCachedBlock(raw)
	b.borrow.Store(1)

	c.lentMu.Lock()
	c.lent = append(c.lent, b)
	c.lentMu.Unlock()

	c.log().Debugw("cache miss, fetched", "offset", raw.Offset(), "length", raw.Length())

	return c.mintRef(b, off, length), nil
}

// TakeMut services the single exclusive writer. It requires the lent
// set to be empty and no block already exclusive — this is the
// structural encoding of "a mutable view and any read view must not
// coexist"; violating it is a programmer error and panics.
func (c *Cache) TakeMut(off, length int64, fetch FetchFunc) (*ViewMut, error) {
	c.lentMu.Lock()
	lentEmpty := len(c.lent) == 0
	c.lentMu.Unlock()

	c.exclusiveMu.Lock()
	defer c.exclusiveMu.Unlock()

	if !lentEmpty || c.exclusive != nil {
		panic("blockcache: take_mut requires no outstanding views")
	}

	c.availableMu.Lock()
	for i := len(c.available) - 1; i >= 0; i-- {
		b := c.available[i]
		// Only a writable mapping can back a ViewMut; a containing
		// read-only block is left in place and purged when the freshly
		// fetched writable block is returned.
		if b.raw.Writable() && b.contains(off, length) {
			c.available = append(c.available[:i], c.available[i+1:]...)
			c.availableMu.Unlock()

			if b.borrow.Load() != 0 {
				panic("blockcache: available block has outstanding borrows")
			}

			c.exclusive = b
			c.stats.hits.Add(1)

			return c.mintMut(b, off, length), nil
		}
	}
	c.availableMu.Unlock()

	c.stats.misses.Add(1)

	raw, err := fetch()
	if err != nil {
		return nil, err
	}

	b := newCachedBlock(raw)
	c.exclusive = b

	return c.mintMut(b, off, length), nil
}

func (c *Cache) mintRef(b *cachedBlock, off, length int64) *ViewRef {
	return &ViewRef{cache: c, block: b, gen: b.generation.Load(), off: off, len: length}
}

func (c *Cache) mintMut(b *cachedBlock, off, length int64) *ViewMut {
	return &ViewMut{cache: c, block: b, gen: b.generation.Load(), off: off, len: length}
}

// returnShared decrements b's borrow count and, if it reaches zero,
// moves b from lent to available. The decrement and the lent-removal
// must happen as one atomic step under lentMu — otherwise a
// concurrent Take on the same block (permitted by spec §5: a FileRef
// is freely shareable) can observe the block still in lent, bump
// borrow back up, and race with this call's removal, leaving a
// live-borrowed block migrated into available and later double-added
// when that other borrow is itself released.
func (c *Cache) returnShared(b *cachedBlock) {
	c.lentMu.Lock()

	remaining := b.borrow.Add(-1)
	if remaining > 0 {
		c.lentMu.Unlock()

		return
	}

	for i, lb := range c.lent {
		if lb == b {
			c.lent = append(c.lent[:i], c.lent[i+1:]...)
			break
		}
	}

	c.lentMu.Unlock()

	c.addAvailable(b)
}

func (c *Cache) returnExclusive(b *cachedBlock) {
	c.exclusiveMu.Lock()
	if c.exclusive != b {
		c.exclusiveMu.Unlock()
		panic("blockcache: release of unknown exclusive block")
	}

	c.exclusive = nil
	c.exclusiveMu.Unlock()

	b.dirty.Store(true)
	c.addAvailable(b)
}

// addAvailable is the eviction and consistency routine: it purges any
// available block overlapping b's range (a fresh write may have
// touched that range, so a stale read-only mapping over it must be
// discarded), enforces the capacity bound by evicting the LRU block
// with a flush-if-dirty, then pushes b at the MRU position.
func (c *Cache) addAvailable(b *cachedBlock) {
	c.availableMu.Lock()
	defer c.availableMu.Unlock()

	kept := c.available[:0]

	for _, existing := range c.available {
		if existing.overlaps(b.offset(), b.length()) {
			c.purge(existing)

			continue
		}

		kept = append(kept, existing)
	}

	c.available = kept

	if len(c.available) >= c.capacity {
		evicted := c.available[0]
		c.available = c.available[1:]
		c.evict(evicted)
	}

	c.available = append(c.available, b)
}

// purge unmaps an available block whose range overlaps a block just
// returned, without flushing. This is safe: writes through a ViewMut
// go through a MAP_SHARED mapping and are visible via the OS page
// cache independent of msync, so a purged mapping carries no bytes
// that a fresh fetch of the same range wouldn't also see. Flush
// exists only to force durability on an LRU-triggered eviction, not
// on a purge.
func (c *Cache) purge(b *cachedBlock) {
	b.generation.Add(1)

	if err := b.raw.Unmap(); err != nil {
		c.log().Warnw("overlap purge: unmap failed", "offset", b.offset(), "error", err)
	}

	c.log().Debugw("overlap purge", "offset", b.offset(), "length", b.length())
}

// evict pops the LRU block out of available: flush if dirty, then
// unmap.
func (c *Cache) evict(b *cachedBlock) {
	c.stats.evictions.Add(1)

	dirty := b.dirty.Load()
	c.flushAndUnmap(b, "eviction")

	c.log().Debugw("evicted", "offset", b.offset(), "length", b.length(), "dirty", dirty)
}

// flushAndUnmap flushes b if dirty, then unmaps it and bumps its
// generation so any ViewRef/ViewMut still holding b is caught by the
// use-after-release check. Shared by evict and Drain.
func (c *Cache) flushAndUnmap(b *cachedBlock, reason string) {
	if b.dirty.Load() {
		if err := flushWithRetry(b.raw); err != nil {
			c.log().Warnw(reason+": flush failed", "offset", b.offset(), "error", err)
		} else {
			c.stats.flushes.Add(1)
		}
	}

	b.generation.Add(1)

	if err := b.raw.Unmap(); err != nil {
		c.log().Warnw(reason+": unmap failed", "offset", b.offset(), "error", err)
	}
}

// Drain flushes (if dirty) and unmaps every block the cache currently
// holds, across all three partitions, and empties them. Called once,
// from the facade's Close, to satisfy spec.md §4.2's requirement that
// outstanding mappings are unmapped on drop. A block still in lent or
// exclusive at drain time means a caller closed the facade without
// releasing its views first; Drain reclaims it anyway rather than
// leaking the mapping, but logs it since it should not happen in
// correct use.
func (c *Cache) Drain() {
	c.availableMu.Lock()
	avail := c.available
	c.available = nil
	c.availableMu.Unlock()

	for _, b := range avail {
		c.flushAndUnmap(b, "drain")
	}

	c.lentMu.Lock()
	lent := c.lent
	c.lent = nil
	c.lentMu.Unlock()

	for _, b := range lent {
		c.log().Warnw("drain: block still lent at close", "offset", b.offset())
		c.flushAndUnmap(b, "drain")
	}

	c.exclusiveMu.Lock()
	excl := c.exclusive
	c.exclusive = nil
	c.exclusiveMu.Unlock()

	if excl != nil {
		c.log().Warnw("drain: block still exclusive at close", "offset", excl.offset())
		c.flushAndUnmap(excl, "drain")
	}

	c.log().Debugw("drained", "available", len(avail), "lent", len(lent), "exclusive", excl != nil)
}

// flushWithRetry retries a transient flush failure a few times before
// giving up, so a momentary EINTR/EIO during eviction doesn't
// immediately surface as a hard error for an unrelated request.
func flushWithRetry(raw *mapping.RawMapping) error {
	var err error

	for i := 0; i < flushRetries; i++ {
		err = raw.Flush()
		if err == nil {
			return nil
		}

		time.Sleep(flushRetryDelay)
	}

	return fmt.Errorf("blockcache: flush failed after %d attempts: %w", flushRetries, err)
}

// Holds reports whether an available block currently covers
// [off, off+length). Exposed for tests exercising the concrete
// scenarios in SPEC_FULL.md §8.
func (c *Cache) Holds(off, length int64) bool {
	c.availableMu.Lock()
	defer c.availableMu.Unlock()

	for _, b := range c.available {
		if b.contains(off, length) {
			return true
		}
	}

	return false
}

// AddAvailableHint installs a block fetched out-of-band (by the
// Prefetcher) directly into available, as if it had just been
// returned by a ViewRef. Used for readahead: the prefetch is invisible
// to callers until Take happens to land on it.
func (c *Cache) AddAvailableHint(raw *mapping.RawMapping) {
	c.addAvailable(newCachedBlock(raw))
}

// Stats returns a point-in-time snapshot of occupancy and counters.
func (c *Cache) Stats() Stats {
	c.availableMu.Lock()
	avail := len(c.available)
	c.availableMu.Unlock()

	c.lentMu.Lock()
	lent := len(c.lent)
	c.lentMu.Unlock()

	c.exclusiveMu.Lock()
	exclusive := c.exclusive != nil
	c.exclusiveMu.Unlock()

	return Stats{
		Available: avail,
		Lent:      lent,
		Exclusive: exclusive,
		Hits:      c.stats.hits.Load(),
		Misses:    c.stats.misses.Load(),
		Evictions: c.stats.evictions.Load(),
		Flushes:   c.stats.flushes.Load(),
	}
}

// Capacity returns the configured bound on the available set.
func (c *Cache) Capacity() int { return c.capacity }
