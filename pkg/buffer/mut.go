package buffer

import (
	"github.com/pnevyk/harrow/internal/blockcache"
	"github.com/pnevyk/harrow/internal/mapping"
	"go.uber.org/zap"
)

// FileMut is a writable file-backed byte buffer. Unlike FileRef it is
// not cloneable: only one goroutine may hold a mutable view at a
// time, and the facade itself is expected to be used from a single
// owner, mirroring source's exclusive-reference discipline (see
// SPEC_FULL.md §5).
type FileMut struct {
	core *core
}

// NewFileMut opens or creates path for writing, truncated to length,
// with the default cache capacity and block size. length must be
// nonzero.
func NewFileMut(path string, length int64) (*FileMut, error) {
	return NewFileMutWithCache(path, length, DefaultCapacity, DefaultBlockSize)
}

// NewFileMutWithCache opens or creates path for writing with an
// explicit cache capacity and block size.
func NewFileMutWithCache(path string, length int64, capacity int, blockSize int64) (*FileMut, error) {
	if length == 0 {
		return nil, ErrInvalidInput
	}

	raw, err := mapping.OpenWritable(path, length)
	if err != nil {
		return nil, err
	}

	return &FileMut{core: newCore(raw, capacity, blockSize, true)}, nil
}

// Len returns the file's current length.
func (f *FileMut) Len() int64 { return f.core.raw.Len() }

// View returns a shared view over [off, off+length).
func (f *FileMut) View(off, length int64) (*blockcache.ViewRef, error) {
	return f.core.view(off, length)
}

// ViewRange returns a shared view over r.
func (f *FileMut) ViewRange(r Range) (*blockcache.ViewRef, error) {
	return f.core.view(r.Start, r.Len())
}

// ViewMut returns the exclusive writable view over [off, off+length).
// It panics if any shared view is currently outstanding.
func (f *FileMut) ViewMut(off, length int64) (*blockcache.ViewMut, error) {
	return f.core.viewMut(off, length)
}

// ViewRangeMut returns the exclusive writable view over r.
func (f *FileMut) ViewRangeMut(r Range) (*blockcache.ViewMut, error) {
	return f.core.viewMut(r.Start, r.Len())
}

// ReadAt copies into buf from off, returning the number of bytes
// copied.
func (f *FileMut) ReadAt(buf []byte, off int64) (int, error) {
	return f.core.readAt(buf, off)
}

// WriteAt copies buf to off, returning the number of bytes copied.
func (f *FileMut) WriteAt(buf []byte, off int64) (int, error) {
	return f.core.writeAt(buf, off)
}

// CopyWithin copies count bytes from src to dst, honoring overlap
// (memmove semantics).
func (f *FileMut) CopyWithin(src, dst, count int64) error {
	return f.core.copyWithin(src, dst, count)
}

// Resize changes the file's length, rounded up to the mapping
// granularity. It panics if any view is currently outstanding.
func (f *FileMut) Resize(newLength int64) error {
	return f.core.resize(newLength)
}

// Iter returns a finite, non-restartable byte iterator starting at
// offset 0.
func (f *FileMut) Iter() *Iterator {
	return f.core.newIterator()
}

// Stats returns a point-in-time snapshot of the cache backing this
// file.
func (f *FileMut) Stats() blockcache.Stats {
	return f.core.cache.Stats()
}

// WithLogger sets the logger the cache uses for subsequent events,
// and returns f for chaining. The readahead prefetcher keeps the no-op
// logger it was built with, so failed prefetches are not logged.
func (f *FileMut) WithLogger(logger *zap.SugaredLogger) *FileMut {
	f.core.setLogger(logger)

	return f
}

// Close closes the underlying file.
func (f *FileMut) Close() error {
	return f.core.release()
}
