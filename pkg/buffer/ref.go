package buffer

import (
	"github.com/pnevyk/harrow/internal/blockcache"
	"github.com/pnevyk/harrow/internal/mapping"
	"go.uber.org/zap"
)

// FileRef is a read-only file-backed byte buffer. It is cheaply
// cloneable: Clone shares the underlying facade and cache rather than
// reopening the file, per spec.md §9's "shared ownership of the
// read-only facade".
type FileRef struct {
	core *core
}

// NewFileRef opens path read-only with the default cache capacity and
// block size. It returns ErrInvalidData if the file at path is empty.
func NewFileRef(path string) (*FileRef, error) {
	return NewFileRefWithCache(path, DefaultCapacity, DefaultBlockSize)
}

// NewFileRefWithCache opens path read-only with an explicit cache
// capacity and block size.
func NewFileRefWithCache(path string, capacity int, blockSize int64) (*FileRef, error) {
	raw, err := mapping.OpenReadOnly(path)
	if err != nil {
		return nil, err
	}

	if raw == nil {
		return nil, ErrInvalidData
	}

	return &FileRef{core: newCore(raw, capacity, blockSize, false)}, nil
}

// Len returns the file's current length.
func (f *FileRef) Len() int64 { return f.core.raw.Len() }

// View returns a shared view over [off, off+length).
func (f *FileRef) View(off, length int64) (*blockcache.ViewRef, error) {
	return f.core.view(off, length)
}

// ViewRange returns a shared view over r.
func (f *FileRef) ViewRange(r Range) (*blockcache.ViewRef, error) {
	return f.core.view(r.Start, r.Len())
}

// ReadAt copies into buf from off, returning the number of bytes
// copied.
func (f *FileRef) ReadAt(buf []byte, off int64) (int, error) {
	return f.core.readAt(buf, off)
}

// Iter returns a finite, non-restartable byte iterator starting at
// offset 0.
func (f *FileRef) Iter() *Iterator {
	return f.core.newIterator()
}

// Stats returns a point-in-time snapshot of the cache backing this
// file.
func (f *FileRef) Stats() blockcache.Stats {
	return f.core.cache.Stats()
}

// WithLogger sets the logger the cache uses for subsequent events,
// and returns f for chaining. The readahead prefetcher keeps the no-op
// logger it was built with, so failed prefetches are not logged.
func (f *FileRef) WithLogger(logger *zap.SugaredLogger) *FileRef {
	f.core.setLogger(logger)

	return f
}

// Clone returns a new FileRef sharing this one's facade and cache. The
// underlying file is only actually closed once every clone (including
// the original) has been closed.
func (f *FileRef) Clone() *FileRef {
	f.core.retain()

	return &FileRef{core: f.core}
}

// Close releases this handle's share of the underlying file. It is an
// error to use f after Close.
func (f *FileRef) Close() error {
	return f.core.release()
}
