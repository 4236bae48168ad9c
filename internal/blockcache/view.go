package blockcache

import (
	"errors"
	"sync/atomic"
)

// ErrReleased is returned by Bytes when the view has already been
// released, or when the underlying block was unmapped out from under
// it (which should never happen to a live borrow, but is checked
// defensively rather than trusted, per the borrow-discipline
// re-architecture in SPEC_FULL.md §9).
var ErrReleased = errors.New("blockcache: view released")

// ViewRef is a read-only handle naming a (block, inner-offset,
// inner-length) triple inside a lent block. Dropping it (Release)
// decrements the block's borrow counter; when that reaches zero the
// block migrates from lent to available.
//
// Go has no destructors, so release is explicit: callers must call
// Release exactly once, typically via a deferred call right after a
// successful Take. The package offers no scoped helper around this
// pattern.
type ViewRef struct {
	cache    *Cache
	block    *cachedBlock
	gen      uint64
	off, len int64
	released atomic.Bool
}

// Bytes returns the requested sub-range of the underlying mapping.
func (v *ViewRef) Bytes() ([]byte, error) {
	if v.released.Load() || v.block.generation.Load() != v.gen {
		return nil, ErrReleased
	}

	data := v.block.raw.Bytes()

	return data[v.off-v.block.offset() : v.off-v.block.offset()+v.len], nil
}

// Release returns the view's borrow slot to the cache. It is
// idempotent: releasing an already-released view is a no-op.
func (v *ViewRef) Release() {
	if !v.released.CompareAndSwap(false, true) {
		return
	}

	v.cache.returnShared(v.block)
}

// ViewMut is an exclusive handle over the cache's single exclusive
// block. Dropping it (Release) marks the block dirty and returns it
// to available.
type ViewMut struct {
	cache    *Cache
	block    *cachedBlock
	gen      uint64
	off, len int64
	released atomic.Bool
}

// Bytes returns the requested sub-range of the underlying mapping,
// writable.
func (v *ViewMut) Bytes() ([]byte, error) {
	if v.released.Load() || v.block.generation.Load() != v.gen {
		return nil, ErrReleased
	}

	data := v.block.raw.Bytes()

	return data[v.off-v.block.offset() : v.off-v.block.offset()+v.len], nil
}

// Release marks the block dirty and returns it to available. It is
// idempotent.
func (v *ViewMut) Release() {
	if !v.released.CompareAndSwap(false, true) {
		return
	}

	v.cache.returnExclusive(v.block)
}
