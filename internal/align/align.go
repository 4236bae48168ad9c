// Package align reports the OS mapping granularity and rounds lengths
// and offsets to it.
package align

import (
	"sync"
)

// fallbackGranularity is used when the OS query fails or returns a
// nonsensical value.
const fallbackGranularity = 4096

var (
	once        sync.Once
	granularity int64
)

// Granularity returns the OS's mapping granularity: the POSIX page
// size, or the Windows allocation granularity. The value is queried
// once per process and cached for all subsequent calls.
func Granularity() int64 {
	once.Do(func() {
		granularity = queryGranularity()
		if granularity <= 0 {
			granularity = fallbackGranularity
		}
	})

	return granularity
}

// Up rounds n up to the next multiple of the mapping granularity.
func Up(n int64) int64 {
	g := Granularity()

	return (n + g - 1) / g * g
}

// Down rounds n down to the previous multiple of the mapping
// granularity.
func Down(n int64) int64 {
	g := Granularity()

	return n / g * g
}
