package buffer

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/pnevyk/harrow/internal/align"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileMutWriteThenReadAt(t *testing.T) {
	page := align.Granularity()
	path := filepath.Join(t.TempDir(), "f.bin")

	f, err := NewFileMutWithCache(path, page, 2, page)
	require.NoError(t, err)
	defer f.Close()

	n, err := f.WriteAt([]byte("hello"), 10)
	require.NoError(t, err)
	assert.Equal(t, 5, n)

	buf := make([]byte, 5)
	n, err = f.ReadAt(buf, 10)
	require.NoError(t, err)
	assert.Equal(t, 5, n)
	assert.Equal(t, "hello", string(buf))
}

func TestFileMutWriteStraddlingBlocks(t *testing.T) {
	page := align.Granularity()
	path := filepath.Join(t.TempDir(), "f.bin")

	f, err := NewFileMutWithCache(path, 4*page, 4, page)
	require.NoError(t, err)
	defer f.Close()

	msg := []byte("straddles the block boundary")
	off := page - 10

	_, err = f.WriteAt(msg, off)
	require.NoError(t, err)

	buf := make([]byte, len(msg))
	_, err = f.ReadAt(buf, off)
	require.NoError(t, err)
	assert.Equal(t, msg, buf)
}

func TestFileMutReadNearEOFClipped(t *testing.T) {
	page := align.Granularity()
	path := filepath.Join(t.TempDir(), "f.bin")

	f, err := NewFileMutWithCache(path, page, 2, page)
	require.NoError(t, err)
	defer f.Close()

	view, err := f.View(page-4, 4)
	require.NoError(t, err)
	defer view.Release()

	data, err := view.Bytes()
	require.NoError(t, err)
	assert.Len(t, data, 4)
}

func TestFileMutOutOfBoundsPanics(t *testing.T) {
	page := align.Granularity()
	path := filepath.Join(t.TempDir(), "f.bin")

	f, err := NewFileMutWithCache(path, page, 2, page)
	require.NoError(t, err)
	defer f.Close()

	assert.Panics(t, func() {
		_, _ = f.View(0, page+1)
	})
}

func TestFileRefViewMutPanics(t *testing.T) {
	page := align.Granularity()
	path := filepath.Join(t.TempDir(), "f.bin")
	// Pre-create the file: a file FileMut creates itself is deleted on
	// close and could not be reopened below.
	require.NoError(t, os.WriteFile(path, make([]byte, page), 0o600))

	f, err := NewFileMutWithCache(path, page, 2, page)
	require.NoError(t, err)
	f.Close()

	ref, err := NewFileRefWithCache(path, 2, page)
	require.NoError(t, err)
	defer ref.Close()

	// FileRef exposes no ViewMut; exercise the shared core guard
	// directly the way FileMut.ViewMut would reach it.
	assert.Panics(t, func() {
		_, _ = ref.core.viewMut(0, page)
	})
}

func TestFileRefOnEmptyFileIsInvalidData(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.bin")
	require.NoError(t, os.WriteFile(path, nil, 0o600))

	_, err := NewFileRef(path)
	assert.ErrorIs(t, err, ErrInvalidData)
}

func TestNewFileMutZeroLengthRejected(t *testing.T) {
	path := filepath.Join(t.TempDir(), "f.bin")

	_, err := NewFileMut(path, 0)
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestFileRefClone(t *testing.T) {
	page := align.Granularity()
	path := filepath.Join(t.TempDir(), "f.bin")
	// Pre-create the file: a file FileMut creates itself is deleted on
	// close and could not be reopened below.
	require.NoError(t, os.WriteFile(path, make([]byte, page), 0o600))

	fm, err := NewFileMutWithCache(path, page, 2, page)
	require.NoError(t, err)
	_, err = fm.WriteAt([]byte("shared"), 0)
	require.NoError(t, err)
	require.NoError(t, fm.Close())

	f1, err := NewFileRefWithCache(path, 2, page)
	require.NoError(t, err)

	f2 := f1.Clone()
	assert.Same(t, f1.core, f2.core)

	require.NoError(t, f1.Close())

	// f2 still usable: the shared core isn't actually closed until
	// every clone releases it.
	buf := make([]byte, 6)
	_, err = f2.ReadAt(buf, 0)
	require.NoError(t, err)
	assert.Equal(t, "shared", string(buf))

	require.NoError(t, f2.Close())
}

func TestCopyWithinOverlapping(t *testing.T) {
	page := align.Granularity()
	path := filepath.Join(t.TempDir(), "f.bin")

	f, err := NewFileMutWithCache(path, page, 2, page)
	require.NoError(t, err)
	defer f.Close()

	_, err = f.WriteAt([]byte("abcdefgh"), 0)
	require.NoError(t, err)

	// Overlapping forward copy: shift "abcdefgh" right by 2, memmove
	// semantics require the tail not be clobbered before it's read.
	require.NoError(t, f.CopyWithin(0, 2, 8))

	buf := make([]byte, 10)
	_, err = f.ReadAt(buf, 0)
	require.NoError(t, err)
	assert.Equal(t, "ababcdefgh", string(buf))
}

func TestCopyWithinNoop(t *testing.T) {
	page := align.Granularity()
	path := filepath.Join(t.TempDir(), "f.bin")

	f, err := NewFileMutWithCache(path, page, 2, page)
	require.NoError(t, err)
	defer f.Close()

	assert.NoError(t, f.CopyWithin(0, 10, 0))
}

func TestResizeUpThenDownPreservesData(t *testing.T) {
	page := align.Granularity()
	path := filepath.Join(t.TempDir(), "f.bin")

	f, err := NewFileMutWithCache(path, 512, 2, page)
	require.NoError(t, err)
	defer f.Close()

	vm, err := f.ViewMut(0, 1)
	require.NoError(t, err)
	data, err := vm.Bytes()
	require.NoError(t, err)
	data[0] = 3
	vm.Release()

	require.NoError(t, f.Resize(page))

	vm, err = f.ViewMut(0, page)
	require.NoError(t, err)
	data, err = vm.Bytes()
	require.NoError(t, err)
	data[0] = 5
	vm.Release()

	require.NoError(t, f.Resize(2*page))

	// Touch the second block after growing. The stale 512-byte mapping
	// from before the first resize was already purged when the
	// full-page ViewMut above was returned, so the read below sees 5.
	vm, err = f.ViewMut(page, page)
	require.NoError(t, err)
	vm.Release()

	buf := make([]byte, 1)
	_, err = f.ReadAt(buf, 0)
	require.NoError(t, err)
	assert.Equal(t, byte(5), buf[0])
}

func TestResizeZeroRejected(t *testing.T) {
	page := align.Granularity()
	path := filepath.Join(t.TempDir(), "f.bin")

	f, err := NewFileMutWithCache(path, page, 2, page)
	require.NoError(t, err)
	defer f.Close()

	assert.ErrorIs(t, f.Resize(0), ErrInvalidInput)
}

func TestResizeWithOutstandingViewPanics(t *testing.T) {
	page := align.Granularity()
	path := filepath.Join(t.TempDir(), "f.bin")

	f, err := NewFileMutWithCache(path, page, 2, page)
	require.NoError(t, err)
	defer f.Close()

	ref, err := f.View(0, page)
	require.NoError(t, err)
	defer ref.Release()

	assert.Panics(t, func() {
		_ = f.Resize(2 * page)
	})
}

func TestIterVisitsEveryByte(t *testing.T) {
	page := align.Granularity()
	path := filepath.Join(t.TempDir(), "f.bin")

	f, err := NewFileMutWithCache(path, 3*page, 2, page)
	require.NoError(t, err)
	defer f.Close()

	want := make([]byte, 3*page)
	for i := range want {
		want[i] = byte(i)
	}
	_, err = f.WriteAt(want, 0)
	require.NoError(t, err)

	it := f.Iter()
	defer it.Close()

	got := make([]byte, 0, len(want))
	for {
		b, ok := it.Next()
		if !ok {
			break
		}
		got = append(got, b)
	}

	assert.Equal(t, want, got)
}

func TestIterCountMatchesFileLength(t *testing.T) {
	page := align.Granularity()
	path := filepath.Join(t.TempDir(), "f.bin")

	f, err := NewFileMutWithCache(path, page, 2, page)
	require.NoError(t, err)
	defer f.Close()

	it := f.Iter()

	count := 0
	for {
		_, ok := it.Next()
		if !ok {
			break
		}
		count++
	}
	assert.Equal(t, int(page), count)
}
