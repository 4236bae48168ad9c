// Package mapping is the raw mapping layer: it opens, resizes, and
// locks the backing file, and creates/destroys the memory mappings
// the block cache installs. It performs no caching of its own and
// owns no blocks; it is a pure wrapper around the OS mapping
// primitives (mmap/munmap/msync on POSIX, CreateFileMapping/
// MapViewOfFile on Windows), exposed cross-platform through
// github.com/edsrzf/mmap-go.
package mapping

import (
	"fmt"
	"os"
	"sync"

	"github.com/edsrzf/mmap-go"
)

// IOError marks an error surfaced by the mapping layer: open,
// truncate, lock, map, unmap, or flush.
type IOError struct {
	Op  string
	Err error
}

func (e *IOError) Error() string { return fmt.Sprintf("mapping: %s: %v", e.Op, e.Err) }
func (e *IOError) Unwrap() error { return e.Err }

func ioErr(op string, err error) error {
	if err == nil {
		return nil
	}

	return &IOError{Op: op, Err: err}
}

// RawFile is an open handle to the backing file: the file descriptor,
// its current length, and whether it was opened writable. It owns no
// mappings; View mints a fresh RawMapping on every call.
type RawFile struct {
	mu       sync.Mutex
	file     *os.File
	path     string
	length   int64
	writable bool
}

// OpenWritable opens path for writing, creating it if it does not
// exist. A newly created file is arranged for delete-on-close
// (POSIX: unlink right after open; Windows: FILE_FLAG_DELETE_ON_CLOSE
// plus FILE_ATTRIBUTE_TEMPORARY) and is left world-readable to no one
// but the owner. The file is truncated to length and a write lock is
// acquired: on POSIX an advisory flock over the whole file, on Windows
// a LockFileEx lock over the file's first byte only. If any step after open
// fails, the descriptor is closed before the error is returned.
func OpenWritable(path string, length int64) (*RawFile, error) {
	_, statErr := os.Stat(path)
	existed := statErr == nil

	f, err := createOrOpen(path, existed)
	if err != nil {
		return nil, ioErr("open", err)
	}

	if err := f.Truncate(length); err != nil {
		f.Close()

		return nil, ioErr("truncate", err)
	}

	if !existed {
		_ = preallocate(f, length)
	}

	if err := lockFile(f, true); err != nil {
		f.Close()

		return nil, ioErr("lock", err)
	}

	return &RawFile{file: f, path: path, length: length, writable: true}, nil
}

// OpenReadOnly opens path for reading and acquires an advisory read
// lock. It returns (nil, nil) when the file is empty — callers treat
// that as "no buffer to open" rather than an error.
func OpenReadOnly(path string) (*RawFile, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, ioErr("stat", err)
	}

	if info.Size() == 0 {
		return nil, nil
	}

	f, err := os.OpenFile(path, os.O_RDONLY, 0)
	if err != nil {
		return nil, ioErr("open", err)
	}

	if err := lockFile(f, false); err != nil {
		f.Close()

		return nil, ioErr("lock", err)
	}

	return &RawFile{file: f, path: path, length: info.Size(), writable: false}, nil
}

// Resize truncates the file to newLength. Writable files only. On
// Windows, MapViewOfFile mappings created against the old length must
// be torn down before a resize and recreated afterward; since View
// mints a fresh mapping per call and never caches one at this layer,
// that constraint is satisfied by construction — the cache's overlap
// purge (run when a block over an overlapping range is next returned
// to the cache) is what keeps previously-mapped blocks from serving
// stale bytes.
func (f *RawFile) Resize(newLength int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.file.Truncate(newLength); err != nil {
		return ioErr("resize", err)
	}

	f.length = newLength

	return nil
}

// View requests a fresh mapping over [off, off+length). off and
// length are assumed already aligned to the mapping granularity by
// the caller (internal/align).
func (f *RawFile) View(off, length int64, writable bool) (*RawMapping, error) {
	prot := mmap.RDONLY
	if writable {
		prot = mmap.RDWR
	}

	data, err := mmap.MapRegion(f.file, int(length), prot, 0, off)
	if err != nil {
		return nil, ioErr("view", fmt.Errorf("off=%d len=%d: %w", off, length, err))
	}

	return &RawMapping{data: data, offset: off, writable: writable}, nil
}

// Len returns the file's current length.
func (f *RawFile) Len() int64 {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.length
}

// Writable reports whether this handle was opened for writing.
func (f *RawFile) Writable() bool { return f.writable }

// Close releases the lock, closes the descriptor. It does not unmap
// any outstanding RawMapping — the cache's eviction path is
// responsible for that, since this layer never tracks mappings it
// hands out.
func (f *RawFile) Close() error {
	lockErr := unlockFile(f.file)
	closeErr := f.file.Close()

	if lockErr != nil {
		return ioErr("unlock", lockErr)
	}

	if closeErr != nil {
		return ioErr("close", closeErr)
	}

	return nil
}

// RawMapping is an OS-backed virtual mapping of a contiguous file
// region. It is owned by exactly one CachedBlock, which unmaps it
// exactly once on eviction, purge, or drain.
type RawMapping struct {
	data     mmap.MMap
	offset   int64
	writable bool
}

// Offset is the byte offset into the file this mapping covers.
func (m *RawMapping) Offset() int64 { return m.offset }

// Length is the mapping's byte length.
func (m *RawMapping) Length() int64 { return int64(len(m.data)) }

// Writable reports whether this mapping was created RDWR.
func (m *RawMapping) Writable() bool { return m.writable }

// Bytes exposes the mapped region directly. Callers must not retain
// the slice past Unmap.
func (m *RawMapping) Bytes() []byte { return m.data }

// Flush is idempotent and has effect only if the mapping is writable.
func (m *RawMapping) Flush() error {
	if !m.writable {
		return nil
	}

	if err := m.data.Flush(); err != nil {
		return ioErr("flush", err)
	}

	return nil
}

// Unmap destroys the mapping. Called at most once per mapping.
func (m *RawMapping) Unmap() error {
	if err := m.data.Unmap(); err != nil {
		return ioErr("unmap", err)
	}

	return nil
}
