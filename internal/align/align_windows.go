//go:build windows

package align

import "golang.org/x/sys/windows"

// queryGranularity returns the Windows allocation granularity
// (SYSTEM_INFO.dwAllocationGranularity), which is the unit
// CreateFileMapping/MapViewOfFile offsets must be aligned to. This is
// typically 64 KiB, distinct from the 4 KiB page size.
func queryGranularity() int64 {
	var info windows.SystemInfo
	windows.GetSystemInfo(&info)

	return int64(info.AllocationGranularity)
}
