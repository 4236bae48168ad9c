// Package prefetch issues bounded-concurrency readahead fetches for
// sequential iteration: while a caller consumes the block an Iterator
// just fetched, the Prefetcher speculatively maps the next block in
// the background and installs it into the cache's available set, so
// the Iterator's next Take is a hit rather than a miss.
//
// This is best-effort and invisible to callers: a failed or
// never-issued prefetch simply means the next Take falls back to a
// synchronous fetch, exactly as if no Prefetcher existed.
package prefetch

import (
	"sync"

	"github.com/bits-and-blooms/bitset"
	"github.com/pnevyk/harrow/internal/blockcache"
	"github.com/pnevyk/harrow/internal/mapping"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"
)

// FetchFunc maps the block-sized range starting at off.
type FetchFunc func(off int64) (*mapping.RawMapping, error)

// Prefetcher bounds how many readahead fetches run concurrently and
// de-duplicates repeated hints for the same block.
type Prefetcher struct {
	cache     *blockcache.Cache
	fetch     FetchFunc
	blockSize int64
	logger    *zap.SugaredLogger

	sem *semaphore.Weighted
	wg  sync.WaitGroup

	mu   sync.Mutex
	seen bitset.BitSet
}

// New constructs a Prefetcher. maxConcurrent bounds the number of
// in-flight background fetches; a nil logger defaults to a no-op one.
func New(cache *blockcache.Cache, blockSize int64, fetch FetchFunc, maxConcurrent int64, logger *zap.SugaredLogger) *Prefetcher {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}

	return &Prefetcher{
		cache:     cache,
		fetch:     fetch,
		blockSize: blockSize,
		logger:    logger,
		sem:       semaphore.NewWeighted(maxConcurrent),
	}
}

// Hint requests a background fetch of the block-aligned range
// containing off. Duplicate hints for the same block, and hints
// issued while every concurrency slot is busy, are dropped silently —
// this is a hint, not a request that must be honored.
func (p *Prefetcher) Hint(off int64) {
	idx := uint(off / p.blockSize)

	p.mu.Lock()
	if p.seen.Test(idx) {
		p.mu.Unlock()

		return
	}

	p.seen.Set(idx)
	p.mu.Unlock()

	if !p.sem.TryAcquire(1) {
		return
	}

	p.wg.Add(1)

	go func() {
		defer p.wg.Done()
		defer p.sem.Release(1)

		blockOff := int64(idx) * p.blockSize

		raw, err := p.fetch(blockOff)
		if err != nil {
			p.logger.Warnw("prefetch failed", "offset", blockOff, "error", err)

			return
		}

		p.cache.AddAvailableHint(raw)
	}()
}

// Close waits for any in-flight prefetches to finish, so a caller
// tearing down the owning File doesn't leave a goroutine touching a
// cache that's about to be discarded.
func (p *Prefetcher) Close() {
	p.wg.Wait()
}
