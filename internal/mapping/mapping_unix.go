//go:build !windows

package mapping

import (
	"os"

	"golang.org/x/sys/unix"
)

// createOrOpen opens path for read-write, creating it with
// owner-read-only permissions if it does not exist. A freshly created
// file is unlinked immediately after open, which on POSIX leaves the
// open descriptor as the file's only reference: the inode is freed
// as soon as the descriptor is closed (delete-on-close).
func createOrOpen(path string, existed bool) (*os.File, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o400)
	if err != nil {
		return nil, err
	}

	if !existed {
		if err := os.Remove(path); err != nil {
			f.Close()

			return nil, err
		}
	}

	return f, nil
}

// preallocate reserves length bytes of disk space for f without
// changing its apparent size (FALLOC_FL_KEEP_SIZE), so a freshly
// created backing file isn't left sparse and prone to fragmentation
// under random-access writes through the block cache. Best-effort:
// some filesystems (tmpfs, overlayfs) don't support fallocate, and
// callers treat failure as a no-op rather than an error.
func preallocate(f *os.File, length int64) error {
	return unix.Fallocate(int(f.Fd()), unix.FALLOC_FL_KEEP_SIZE, 0, length)
}

func lockFile(f *os.File, writable bool) error {
	how := unix.LOCK_SH
	if writable {
		how = unix.LOCK_EX
	}

	return unix.Flock(int(f.Fd()), how|unix.LOCK_NB)
}

func unlockFile(f *os.File) error {
	return unix.Flock(int(f.Fd()), unix.LOCK_UN)
}
