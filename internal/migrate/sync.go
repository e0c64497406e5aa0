package migrate

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

// syncAll flushes all dirty pages system-wide.
func syncAll() {
	unix.Sync()
}

// syncMount flushes the filesystem backing one mount point.
func syncMount(mountpoint string) error {
	f, err := os.Open(mountpoint)
	if err != nil {
		return fmt.Errorf("open %s for syncfs: %w", mountpoint, err)
	}
	defer f.Close()

	if err := unix.Syncfs(int(f.Fd())); err != nil {
		return fmt.Errorf("syncfs %s: %w", mountpoint, err)
	}

	return nil
}
