package diskspace

import (
	"fmt"

	"github.com/shirou/gopsutil/v3/disk"
)

// MinimumFree is the free space floor of the database volume. Below it the node shuts down.
const MinimumFree uint64 = 512 * 1024 * 1024

// Probe reports the free bytes of the volume holding path.
type Probe func(path string) (uint64, error)

// FreeBytes is the Probe backed by the operating system.
func FreeBytes(path string) (uint64, error) {
	usage, err := disk.Usage(path)
	if err != nil {
		return 0, fmt.Errorf("could not read disk usage of %s: %w", path, err)
	}
	return usage.Free, nil
}

// BelowFloor reports whether free is under the minimum.
func BelowFloor(free uint64) bool {
	return free < MinimumFree
}
