package blockcache

import (
	"sync/atomic"

	"github.com/pnevyk/harrow/internal/mapping"
)

// cachedBlock is a RawMapping augmented with a borrow counter and a
// dirty flag. Its (offset, length) never changes after construction:
// a block is mapped once by the fetcher and unmapped once, by
// eviction, by overlap purge, or by Drain.
type cachedBlock struct {
	raw *mapping.RawMapping

	// borrow is the number of outstanding ViewRefs over this block.
	// Zero means the block is in available, is the exclusive block, or
	// is (transiently, mid-transition) nowhere. Accessed with sequentially consistent
	// atomics so a borrow-count read is never torn across goroutines
	// holding only a read view.
	borrow atomic.Int64

	// dirty is set iff a ViewMut has existed over this block since it
	// was mapped.
	dirty atomic.Bool

	// generation guards against use of a ViewRef/ViewMut after it has
	// been released: each view captures the generation at mint time
	// and Bytes() checks it still matches. This is the runtime
	// stand-in for a borrow checker, per the re-architecture notes in
	// SPEC_FULL.md §9 and §4.3 (lifetime-bound slice handles).
	generation atomic.Uint64
}

func newCachedBlock(raw *mapping.RawMapping) *cachedBlock {
	return &cachedBlock{raw: raw}
}

func (b *cachedBlock) offset() int64 { return b.raw.Offset() }
func (b *cachedBlock) length() int64 { return b.raw.Length() }
func (b *cachedBlock) end() int64    { return b.raw.Offset() + b.raw.Length() }

// contains reports whether this block's range is a superset of
// [off, off+length).
func (b *cachedBlock) contains(off, length int64) bool {
	return b.offset() <= off && b.end() >= off+length
}

// overlaps reports whether this block's range intersects
// [off, off+length).
func (b *cachedBlock) overlaps(off, length int64) bool {
	return b.offset() < off+length && off < b.end()
}
