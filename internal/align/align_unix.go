//go:build !windows

package align

import "golang.org/x/sys/unix"

// queryGranularity returns the POSIX page size. A negative or zero
// result (the OS query failing) is handled by the caller, which falls
// back to fallbackGranularity.
func queryGranularity() int64 {
	return int64(unix.Getpagesize())
}
