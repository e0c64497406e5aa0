package blockdev

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

const (
	// convergeInterval is the poll interval while waiting for the kernel's
	// partition view to match a mutated table.
	convergeInterval = 250 * time.Millisecond

	// convergeTimeout bounds the whole convergence wait.
	convergeTimeout = 10 * time.Second
)

// reprobe asks the kernel to re-read the device's partition table. partprobe
// is preferred; BLKRRPART via blockdev is the fallback for systems without
// it.
func (b *CmdBlockDevice) reprobe(ctx context.Context, device string) error {
	out, err := b.run.Run(ctx, []string{"partprobe", device}, "")
	if err == nil {
		return nil
	}
	logrus.WithError(err).WithField("stderr", strings.TrimSpace(out.Stderr)).Debug("partprobe failed, falling back to blockdev")

	out, err = b.run.Run(ctx, []string{"blockdev", "--rereadpt", device}, "")
	if err != nil {
		return &OpError{Op: "reprobe", Err: fmt.Errorf("kernel re-probe failed, stderr: [%s]: %w", strings.TrimSpace(out.Stderr), err)}
	}

	return nil
}

// waitNewChild polls the device's child set until exactly one node appears
// that was absent from before, or the convergence window closes with
// ErrKernelViewStale.
func (b *CmdBlockDevice) waitNewChild(ctx context.Context, device string, before []string) (string, error) {
	known := make(map[string]struct{}, len(before))
	for _, c := range before {
		known[c] = struct{}{}
	}

	deadline := time.Now().Add(convergeTimeout)
	for {
		after, err := b.children(device)
		if err == nil {
			var added []string
			for _, c := range after {
				if _, ok := known[c]; !ok {
					added = append(added, c)
				}
			}
			if len(added) == 1 {
				return filepath.Join("/dev", added[0]), nil
			}
			if len(added) > 1 {
				sort.Strings(added)
				return "", fmt.Errorf("expected one new partition on %s, kernel reports %d: %v", device, len(added), added)
			}
		}

		if time.Now().After(deadline) {
			return "", fmt.Errorf("no new partition on %s within %s: %w", device, convergeTimeout, ErrKernelViewStale)
		}

		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(convergeInterval):
		}
	}
}

// sysfsChildren lists the kernel's current child partitions of a device by
// reading its sysfs block directory.
func sysfsChildren(device string) ([]string, error) {
	base := filepath.Base(device)
	entries, err := os.ReadDir(filepath.Join("/sys/block", base))
	if err != nil {
		return nil, fmt.Errorf("reading sysfs children of %s: %w", device, err)
	}

	var children []string
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), base) {
			children = append(children, e.Name())
		}
	}
	sort.Strings(children)

	return children, nil
}
