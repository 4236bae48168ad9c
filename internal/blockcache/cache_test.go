package blockcache

import (
	"path/filepath"
	"testing"

	"github.com/pnevyk/harrow/internal/align"
	"github.com/pnevyk/harrow/internal/mapping"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestFile(t *testing.T, size int64) *mapping.RawFile {
	t.Helper()

	path := filepath.Join(t.TempDir(), "cache.bin")

	f, err := mapping.OpenWritable(path, size)
	require.NoError(t, err)
	t.Cleanup(func() { f.Close() })

	return f
}

func fetchFunc(f *mapping.RawFile, off, length int64, writable bool) FetchFunc {
	return func() (*mapping.RawMapping, error) {
		return f.View(off, length, writable)
	}
}

func TestTakeOnceThenReturn(t *testing.T) {
	page := align.Granularity()
	f := openTestFile(t, page)
	c := New(1, nil)

	ref, err := c.Take(0, page, fetchFunc(f, 0, page, false))
	require.NoError(t, err)

	stats := c.Stats()
	assert.Equal(t, 0, stats.Available)
	assert.Equal(t, 1, stats.Lent)

	ref.Release()

	stats = c.Stats()
	assert.Equal(t, 1, stats.Available)
	assert.Equal(t, 0, stats.Lent)
}

func TestTakeTwiceSameRange(t *testing.T) {
	page := align.Granularity()
	f := openTestFile(t, page)
	c := New(1, nil)

	ref1, err := c.Take(0, page, fetchFunc(f, 0, page, false))
	require.NoError(t, err)

	ref2, err := c.Take(0, page, fetchFunc(f, 0, page, false))
	require.NoError(t, err)

	assert.Same(t, ref1.block, ref2.block)
	assert.Equal(t, int64(2), ref1.block.borrow.Load())

	stats := c.Stats()
	assert.Equal(t, 0, stats.Available)
	assert.Equal(t, 1, stats.Lent)

	ref1.Release()
	stats = c.Stats()
	assert.Equal(t, 0, stats.Available, "still borrowed by ref2")

	ref2.Release()
	stats = c.Stats()
	assert.Equal(t, 1, stats.Available)
}

func TestCapacityEviction(t *testing.T) {
	page := align.Granularity()
	f := openTestFile(t, 2*page)
	c := New(1, nil)

	ref, err := c.Take(0, page, fetchFunc(f, 0, page, false))
	require.NoError(t, err)
	ref.Release()

	ref2, err := c.Take(page, page, fetchFunc(f, page, page, false))
	require.NoError(t, err)
	ref2.Release()

	stats := c.Stats()
	assert.Equal(t, 1, stats.Available)
	assert.False(t, c.Holds(0, page))
	assert.True(t, c.Holds(page, page))
}

func TestCapacityEvictionFlushesDirtyBlock(t *testing.T) {
	page := align.Granularity()
	f := openTestFile(t, 2*page)
	c := New(1, nil)

	ref, err := c.Take(0, page, fetchFunc(f, 0, page, false))
	require.NoError(t, err)
	ref.Release()

	vm, err := c.TakeMut(page, page, fetchFunc(f, page, page, true))
	require.NoError(t, err)
	vm.Release()
	assert.True(t, c.Holds(page, page))

	ref2, err := c.Take(0, page, fetchFunc(f, 0, page, false))
	require.NoError(t, err)
	ref2.Release()

	stats := c.Stats()
	assert.Equal(t, int64(1), stats.Flushes, "dirty block must be flushed exactly once before eviction")
	assert.True(t, c.Holds(0, page))
	assert.False(t, c.Holds(page, page))
}

func TestOverlapPurgeOnMutable(t *testing.T) {
	page := align.Granularity()
	f := openTestFile(t, 2*page)
	c := New(1, nil)

	ref, err := c.Take(0, page, fetchFunc(f, 0, page, false))
	require.NoError(t, err)
	ref.Release()
	assert.True(t, c.Holds(0, page))

	vm, err := c.TakeMut(0, page, fetchFunc(f, 0, page, true))
	require.NoError(t, err)
	vm.Release()

	// The mutable block replaces [0,page) in available; the stale
	// read-only mapping that used to be there was purged.
	stats := c.Stats()
	assert.Equal(t, 1, stats.Available)
	assert.True(t, c.Holds(0, page))

	ref2, err := c.Take(0, page, fetchFunc(f, 0, page, false))
	require.NoError(t, err)
	ref2.Release()

	assert.True(t, c.Holds(0, page))
}

func TestSubRangeHit(t *testing.T) {
	page := align.Granularity()
	f := openTestFile(t, page)
	c := New(1, nil)

	ref1, err := c.Take(0, page, fetchFunc(f, 0, page, false))
	require.NoError(t, err)

	ref2, err := c.Take(0, 64, fetchFunc(f, 0, page, false))
	require.NoError(t, err)
	assert.Same(t, ref1.block, ref2.block)

	ref3, err := c.Take(page-64, 64, fetchFunc(f, 0, page, false))
	require.NoError(t, err)
	assert.Same(t, ref1.block, ref3.block)

	ref1.Release()
	ref2.Release()
	ref3.Release()
}

func TestTakeMutAssertsNoOutstandingViews(t *testing.T) {
	page := align.Granularity()
	f := openTestFile(t, page)
	c := New(1, nil)

	ref, err := c.Take(0, page, fetchFunc(f, 0, page, false))
	require.NoError(t, err)
	defer ref.Release()

	assert.Panics(t, func() {
		_, _ = c.TakeMut(0, page, fetchFunc(f, 0, page, true))
	})
}

func TestZeroCapacityPanics(t *testing.T) {
	assert.Panics(t, func() {
		New(0, nil)
	})
}

func TestViewReleasedAfterRelease(t *testing.T) {
	page := align.Granularity()
	f := openTestFile(t, page)
	c := New(1, nil)

	ref, err := c.Take(0, page, fetchFunc(f, 0, page, false))
	require.NoError(t, err)

	ref.Release()
	ref.Release() // idempotent, must not panic or double-decrement

	_, err = ref.Bytes()
	assert.ErrorIs(t, err, ErrReleased)
}

func TestRoundTripWriteRead(t *testing.T) {
	page := align.Granularity()
	f := openTestFile(t, page)
	c := New(2, nil)

	vm, err := c.TakeMut(0, page, fetchFunc(f, 0, page, true))
	require.NoError(t, err)

	buf, err := vm.Bytes()
	require.NoError(t, err)
	copy(buf, []byte("round-trip"))
	vm.Release()

	ref, err := c.Take(0, page, fetchFunc(f, 0, page, false))
	require.NoError(t, err)
	defer ref.Release()

	data, err := ref.Bytes()
	require.NoError(t, err)
	assert.Equal(t, "round-trip", string(data[:10]))
}
