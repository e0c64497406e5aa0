package blockdev

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/moby/sys/mountinfo"
	"github.com/sirupsen/logrus"

	"github.com/ntfs2linux/ntfs2linux/internal/util"
)

const (
	// unmountRetries is how many times a transiently failing unmount is
	// retried before reporting ErrUnmountStuck.
	unmountRetries = 3

	// unmountRetryDelay separates unmount attempts.
	unmountRetryDelay = 1 * time.Second
)

// mountManager creates and releases the scoped mount points owned by one
// program invocation. Every point lives under runDir and carries the
// instance id, so no two invocations can share a point.
type mountManager struct {
	run        util.Runner
	runDir     string
	instanceID string

	// mounted checks whether a path is a live mount point; overridable for
	// tests.
	mounted func(path string) (bool, error)
}

func newMountManager(run util.Runner, runDir, instanceID string) *mountManager {
	return &mountManager{
		run:        run,
		runDir:     runDir,
		instanceID: instanceID,
		mounted:    mountinfo.Mounted,
	}
}

// mount creates the unique point and mounts the partition onto it. The
// directory is removed again if the mount itself fails.
func (m *mountManager) mount(ctx context.Context, part string, readonly bool) (*MountHandle, error) {
	point := filepath.Join(m.runDir, fmt.Sprintf("%s-%s", m.instanceID, filepath.Base(part)))
	if err := os.MkdirAll(point, 0o750); err != nil {
		return nil, fmt.Errorf("creating mount point %s: %w", point, err)
	}

	argv := []string{"mount"}
	if readonly {
		argv = append(argv, "-o", "ro")
	}
	argv = append(argv, part, point)

	logrus.WithFields(logrus.Fields{"partition": part, "mountpoint": point, "readonly": readonly}).Debug("Mounting partition")
	out, err := m.run.Run(ctx, argv, "")
	if err != nil {
		os.Remove(point)
		if strings.Contains(out.Stderr, "busy") {
			return nil, fmt.Errorf("mounting %s at %s: %w", part, point, ErrMountBusy)
		}
		return nil, fmt.Errorf("mounting %s at %s, stderr: [%s]: %w", part, point, strings.TrimSpace(out.Stderr), err)
	}

	return &MountHandle{Device: part, Path: point, ReadOnly: readonly}, nil
}

// unmount releases the handle. Transient failures are retried with a delay;
// after the attempts the mount table is consulted and a still-mounted point
// is reported as ErrUnmountStuck. The point directory is removed once the
// mount is verified gone.
func (m *mountManager) unmount(ctx context.Context, h *MountHandle) error {
	if h == nil || h.Path == "" {
		return nil
	}

	var lastErr error
	for attempt := 1; attempt <= unmountRetries; attempt++ {
		out, err := m.run.Run(ctx, []string{"umount", h.Path}, "")
		if err == nil {
			lastErr = nil
			break
		}
		lastErr = fmt.Errorf("umount %s, stderr: [%s]: %w", h.Path, strings.TrimSpace(out.Stderr), err)

		logrus.WithError(err).WithFields(logrus.Fields{
			"mountpoint": h.Path,
			"attempt":    attempt,
		}).Warn("Unmount failed, retrying...")

		if attempt < unmountRetries {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(unmountRetryDelay):
			}
		}
	}

	still, checkErr := m.mounted(h.Path)
	if checkErr == nil && still {
		if lastErr != nil {
			return fmt.Errorf("%s after %d attempts (%v): %w", h.Path, unmountRetries, lastErr, ErrUnmountStuck)
		}
		return fmt.Errorf("%s reported unmounted but is still in the mount table: %w", h.Path, ErrUnmountStuck)
	}
	if checkErr != nil && lastErr != nil {
		return lastErr
	}

	if err := os.Remove(h.Path); err != nil && !os.IsNotExist(err) {
		logrus.WithError(err).WithField("mountpoint", h.Path).Warn("Could not remove mount point directory")
	}

	return nil
}
