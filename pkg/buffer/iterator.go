package buffer

import (
	"fmt"

	"github.com/pnevyk/harrow/internal/blockcache"
)

// Iterator walks a file byte-by-byte. It is finite and not
// restartable: once exhausted, a new one must be created. It holds
// the current block's ViewRef for the duration of that block, which
// — per spec.md §9 — pins the block in lent and can prevent its
// eviction during long iteration; this is accepted as the simpler
// design over releasing and re-taking at each block boundary.
type Iterator struct {
	core *core
	cur  *blockcache.ViewRef
	data []byte
	pos  int64 // cumulative offset into the file
	idx  int   // cursor within data
}

// Next returns the next byte, or ok=false once the file is exhausted.
// A fetch error mid-stream panics, per spec.md §4.5.
func (it *Iterator) Next() (b byte, ok bool) {
	if it.pos >= it.core.raw.Len() {
		return 0, false
	}

	if it.cur == nil || it.idx >= len(it.data) {
		it.fetchNext()
	}

	b = it.data[it.idx]
	it.idx++
	it.pos++

	return b, true
}

func (it *Iterator) fetchNext() {
	if it.cur != nil {
		it.cur.Release()
		it.cur = nil
	}

	remaining := it.core.raw.Len() - it.pos

	length := it.core.blockSize
	if remaining < length {
		length = remaining
	}

	ref, err := it.core.view(it.pos, length)
	if err != nil {
		panic(fmt.Sprintf("buffer: iter: %v", err))
	}

	data, err := ref.Bytes()
	if err != nil {
		panic(fmt.Sprintf("buffer: iter: %v", err))
	}

	it.cur = ref
	it.data = data
	it.idx = 0

	if next := it.pos + length; next < it.core.raw.Len() {
		it.core.prefetcher.Hint(next)
	}
}

// Close releases the iterator's current view, if any. Safe to call on
// an exhausted or never-advanced iterator.
func (it *Iterator) Close() {
	if it.cur != nil {
		it.cur.Release()
		it.cur = nil
	}
}
