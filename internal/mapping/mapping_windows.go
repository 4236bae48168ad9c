//go:build windows

package mapping

import (
	"os"

	"golang.org/x/sys/windows"
)

// createOrOpen opens path for read-write. A freshly created file is
// opened directly through CreateFile with FILE_FLAG_DELETE_ON_CLOSE
// and FILE_ATTRIBUTE_TEMPORARY: Windows has no unlink-after-open
// equivalent, so delete-on-close must be requested at creation time.
func createOrOpen(path string, existed bool) (*os.File, error) {
	if existed {
		return os.OpenFile(path, os.O_RDWR, 0)
	}

	pathPtr, err := windows.UTF16PtrFromString(path)
	if err != nil {
		return nil, err
	}

	attrs := uint32(windows.FILE_ATTRIBUTE_TEMPORARY | windows.FILE_FLAG_DELETE_ON_CLOSE)

	h, err := windows.CreateFile(
		pathPtr,
		windows.GENERIC_READ|windows.GENERIC_WRITE,
		0,
		nil,
		windows.CREATE_ALWAYS,
		attrs,
		0,
	)
	if err != nil {
		return nil, err
	}

	return os.NewFile(uintptr(h), path), nil
}

// preallocate is a no-op on Windows: NTFS has no portable equivalent
// of FALLOC_FL_KEEP_SIZE reachable through os.File, and sparse-file
// reclamation is out of scope (spec.md §1 non-goals).
func preallocate(_ *os.File, _ int64) error {
	return nil
}

func lockFile(f *os.File, writable bool) error {
	var flags uint32 = windows.LOCKFILE_FAIL_IMMEDIATELY
	if writable {
		flags |= windows.LOCKFILE_EXCLUSIVE_LOCK
	}

	ol := new(windows.Overlapped)

	return windows.LockFileEx(windows.Handle(f.Fd()), flags, 0, 1, 0, ol)
}

func unlockFile(f *os.File) error {
	ol := new(windows.Overlapped)

	return windows.UnlockFileEx(windows.Handle(f.Fd()), 0, 1, 0, ol)
}
