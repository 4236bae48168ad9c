// Package buffer is the public File Facade: a file-backed random
// access byte buffer whose reads and writes go through a bounded
// memory-mapped block cache (internal/blockcache) instead of mapping
// the whole file up front. FileRef is the read-only, cloneable
// variant; FileMut additionally supports writes, resize, and
// copy-within, and is not cloneable.
package buffer

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/pnevyk/harrow/internal/align"
	"github.com/pnevyk/harrow/internal/blockcache"
	"github.com/pnevyk/harrow/internal/mapping"
	"github.com/pnevyk/harrow/internal/prefetch"
	"go.uber.org/zap"
)

// Default cache parameters, per SPEC_FULL.md §6.2.
const (
	DefaultCapacity        = 5
	DefaultBlockSize int64 = 128 << 20 // 128 MiB
	prefetchInFlight int64 = 2
)

// core is the facade state shared between FileRef and FileMut. FileRef
// clones share a single core via reference counting (core has no Go
// destructor equivalent, so the last Close wins); FileMut owns its
// core outright.
type core struct {
	raw        *mapping.RawFile
	cache      *blockcache.Cache
	prefetcher *prefetch.Prefetcher
	blockSize  int64
	writable   bool

	refs      atomic.Int64
	closeOnce sync.Once
	closeErr  error
}

func newCore(raw *mapping.RawFile, capacity int, blockSize int64, writable bool) *core {
	bs := normalizeBlockSize(blockSize)

	cache := blockcache.New(capacity, nil)

	c := &core{
		raw:       raw,
		cache:     cache,
		blockSize: bs,
		writable:  writable,
	}
	c.refs.Store(1)

	c.prefetcher = prefetch.New(cache, bs, func(off int64) (*mapping.RawMapping, error) {
		length := bs
		if remaining := raw.Len() - off; remaining < length {
			length = remaining
		}

		if length <= 0 {
			return nil, fmt.Errorf("buffer: prefetch at or past end of file")
		}

		return raw.View(off, length, false)
	}, prefetchInFlight, nil)

	return c
}

// normalizeBlockSize rounds a requested block size up to the mapping
// granularity; zero or negative promotes to exactly one granularity
// unit, per SPEC_FULL.md §6.2.
func normalizeBlockSize(n int64) int64 {
	if n <= 0 {
		return align.Granularity()
	}

	return align.Up(n)
}

func (c *core) setLogger(logger *zap.SugaredLogger) {
	c.cache.SetLogger(logger)
}

func (c *core) retain() {
	c.refs.Add(1)
}

func (c *core) release() error {
	if c.refs.Add(-1) > 0 {
		return nil
	}

	c.closeOnce.Do(func() {
		c.prefetcher.Close()
		c.cache.Drain()
		c.closeErr = c.raw.Close()
	})

	return c.closeErr
}

func (c *core) checkBounds(off, length int64) {
	if off < 0 || length < 0 || off+length > c.raw.Len() {
		panic(fmt.Sprintf("buffer: out of bounds: off=%d len=%d file_len=%d", off, length, c.raw.Len()))
	}
}

// fetchRange computes the enlarged range the mapping layer is asked
// for, per spec.md §4.4: rounded out to alignment, and widened to at
// least one cache block starting at the aligned offset, then clipped
// to the file's length.
func (c *core) fetchRange(off, length int64) (fOff, fLen int64) {
	fOff = align.Down(off)

	fEnd := align.Up(off + length)
	if blockEnd := fOff + c.blockSize; blockEnd > fEnd {
		fEnd = blockEnd
	}

	if fileLen := c.raw.Len(); fEnd > fileLen {
		fEnd = fileLen
	}

	return fOff, fEnd - fOff
}

func (c *core) view(off, length int64) (*blockcache.ViewRef, error) {
	c.checkBounds(off, length)

	return c.cache.Take(off, length, func() (*mapping.RawMapping, error) {
		fOff, fLen := c.fetchRange(off, length)

		return c.raw.View(fOff, fLen, false)
	})
}

func (c *core) viewMut(off, length int64) (*blockcache.ViewMut, error) {
	if !c.writable {
		panic("buffer: view_mut on a read-only file")
	}

	c.checkBounds(off, length)

	return c.cache.TakeMut(off, length, func() (*mapping.RawMapping, error) {
		fOff, fLen := c.fetchRange(off, length)

		return c.raw.View(fOff, fLen, true)
	})
}

func (c *core) readAt(buf []byte, off int64) (int, error) {
	view, err := c.view(off, int64(len(buf)))
	if err != nil {
		return 0, err
	}
	defer view.Release()

	data, err := view.Bytes()
	if err != nil {
		return 0, err
	}

	return copy(buf, data), nil
}

func (c *core) writeAt(buf []byte, off int64) (int, error) {
	if !c.writable {
		panic("buffer: write_at on a read-only file")
	}

	view, err := c.viewMut(off, int64(len(buf)))
	if err != nil {
		return 0, err
	}
	defer view.Release()

	data, err := view.Bytes()
	if err != nil {
		return 0, err
	}

	return copy(data, buf), nil
}

// copyWithin implements spec.md §4.4's copy_within through a single
// ViewMut spanning the union of [src,src+count) and [dst,dst+count) —
// the re-architecture SPEC_FULL.md §9 recommends in place of deriving
// a writable pointer from a ViewRef. A plain slice copy within that
// one mapping is memmove-equivalent regardless of whether src and dst
// overlap, and the destination block ends up dirty unconditionally,
// since it was only ever reached through view_mut.
func (c *core) copyWithin(src, dst, count int64) error {
	if !c.writable {
		panic("buffer: copy_within on a read-only file")
	}

	if src < 0 || count < 0 || src+count > c.raw.Len() {
		panic(fmt.Sprintf("buffer: copy_within: src out of bounds: src=%d count=%d file_len=%d", src, count, c.raw.Len()))
	}

	if dst < 0 || dst+count > c.raw.Len() {
		panic(fmt.Sprintf("buffer: copy_within: dst out of bounds: dst=%d count=%d file_len=%d", dst, count, c.raw.Len()))
	}

	if count == 0 {
		return nil
	}

	unionOff := min(src, dst)
	unionEnd := max(src+count, dst+count)

	view, err := c.viewMut(unionOff, unionEnd-unionOff)
	if err != nil {
		return err
	}
	defer view.Release()

	data, err := view.Bytes()
	if err != nil {
		return err
	}

	srcStart := src - unionOff
	dstStart := dst - unionOff
	copy(data[dstStart:dstStart+count], data[srcStart:srcStart+count])

	return nil
}

// resize rounds newLength up to alignment and delegates to the
// mapping layer. SPEC_FULL.md §9 resolves the open question of
// outstanding views at resize time by requiring the cache to be free
// of lent and exclusive blocks; violating this is a programmer error.
func (c *core) resize(newLength int64) error {
	if !c.writable {
		panic("buffer: resize on a read-only file")
	}

	if newLength == 0 {
		return ErrInvalidInput
	}

	stats := c.cache.Stats()
	if stats.Lent != 0 || stats.Exclusive {
		panic("buffer: resize: outstanding views")
	}

	return c.raw.Resize(align.Up(newLength))
}

func (c *core) newIterator() *Iterator {
	return &Iterator{core: c}
}
