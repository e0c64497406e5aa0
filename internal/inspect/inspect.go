// Package inspect answers the read-only questions the engine asks about
// devices and volumes: partition geometry, live data size, disk capacity,
// mount state, and whether a device is rotational. Its only side effect is
// the temporary read-only mount needed to measure used space on an unmounted
// volume.
package inspect

//go:generate mockgen -destination mocks/mock_inspect.go github.com/ntfs2linux/ntfs2linux/internal/inspect Inspector

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/moby/sys/mountinfo"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/sirupsen/logrus"

	"github.com/ntfs2linux/ntfs2linux/internal/blockdev"
	"github.com/ntfs2linux/ntfs2linux/internal/util"
)

// Rotation classifies the storage medium under a device.
type Rotation int

const (
	RotationUnknown Rotation = iota
	Rotational
	SolidState
)

func (r Rotation) String() string {
	switch r {
	case Rotational:
		return "rotational"
	case SolidState:
		return "solid-state"
	default:
		return "unknown"
	}
}

// usedFallbackRatio is the conservative used-space estimate applied when a
// volume cannot be mounted for measurement.
const usedFallbackRatio = 0.8

// Inspector outlines the queries the engine and migrator need.
type Inspector interface {
	// Geometry returns the partition-table extent of the partition.
	Geometry(ctx context.Context, part string) (blockdev.Entry, error)

	// DiskSizeKB returns the total size of the whole device.
	DiskSizeKB(ctx context.Context, device string) (uint64, error)

	// UsedKB returns the live data size of the volume on the partition,
	// mounting it read-only for the measurement if necessary.
	UsedKB(ctx context.Context, part string) (uint64, error)

	// MountPoint reports where the partition is currently mounted, if it is.
	MountPoint(part string) (string, bool, error)

	// Rotation classifies the device's storage medium.
	Rotation(ctx context.Context, device string) Rotation

	// WaitIOSettle blocks until the device's I/O activity drops below the
	// settling threshold or the cap elapses.
	WaitIOSettle(ctx context.Context, device string) error
}

// SysInspector implements Inspector against the live system.
type SysInspector struct {
	run   util.Runner
	block blockdev.BlockDevice

	// settleCap bounds the I/O settling wait.
	settleCap time.Duration

	// usage and mounts are seams over gopsutil and the mount table for
	// tests.
	usage  func(path string) (*disk.UsageStat, error)
	mounts func() ([]*mountinfo.Info, error)
}

var _ Inspector = (*SysInspector)(nil)

// Option configures a SysInspector.
type Option func(*SysInspector)

// WithSettleCap overrides the settling-wait cap.
func WithSettleCap(d time.Duration) Option {
	return func(s *SysInspector) {
		if d > 0 {
			s.settleCap = d
		}
	}
}

// New builds a SysInspector that uses block for its scoped measurement
// mounts.
func New(run util.Runner, block blockdev.BlockDevice, opts ...Option) *SysInspector {
	s := &SysInspector{
		run:       run,
		block:     block,
		settleCap: defaultSettleCap,
		usage:     disk.Usage,
		mounts:    func() ([]*mountinfo.Info, error) { return mountinfo.GetMounts(nil) },
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Geometry reads the partition table of the partition's parent device and
// returns the matching entry.
func (s *SysInspector) Geometry(ctx context.Context, part string) (blockdev.Entry, error) {
	device := blockdev.DeviceOf(part)
	table, err := blockdev.ReadTable(ctx, s.run, device)
	if err != nil {
		return blockdev.Entry{}, err
	}

	entry, ok := table.Find(part)
	if !ok {
		return blockdev.Entry{}, fmt.Errorf("partition %s not present in table of %s", part, device)
	}

	return entry, nil
}

// DiskSizeKB queries the device's byte size from the kernel.
func (s *SysInspector) DiskSizeKB(ctx context.Context, device string) (uint64, error) {
	out, err := s.run.Run(ctx, []string{"blockdev", "--getsize64", device}, "")
	if err != nil {
		return 0, fmt.Errorf("querying size of %s, stderr: [%s]: %w", device, strings.TrimSpace(out.Stderr), err)
	}

	bytes, err := strconv.ParseUint(strings.TrimSpace(out.Stdout), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parsing size of %s from %q: %w", device, out.Stdout, err)
	}

	return bytes / 1024, nil
}

// UsedKB measures the volume's live data. A volume that is already mounted
// is measured in place; otherwise a scoped read-only mount is created and
// released. When no mount can be established the measurement falls back to a
// conservative estimate and says so loudly, because every downstream
// shrink decision inherits the guess.
func (s *SysInspector) UsedKB(ctx context.Context, part string) (uint64, error) {
	if point, mounted, err := s.MountPoint(part); err == nil && mounted {
		return s.usedAt(point)
	}

	h, err := s.block.Mount(ctx, part, true)
	if err != nil {
		geo, geoErr := s.Geometry(ctx, part)
		if geoErr != nil {
			return 0, fmt.Errorf("cannot mount %s for measurement (%v) and cannot read its geometry: %w", part, err, geoErr)
		}
		estimate := uint64(float64(geo.SizeKB()) * usedFallbackRatio)
		logrus.WithError(err).WithFields(logrus.Fields{
			"partition":   part,
			"estimate_kb": estimate,
		}).Warn("Could not mount volume to measure used space; proceeding with a conservative estimate")
		return estimate, nil
	}
	defer func() {
		if err := s.block.Unmount(ctx, h); err != nil {
			logrus.WithError(err).WithField("partition", part).Warn("Failed to release measurement mount")
		}
	}()

	return s.usedAt(h.Path)
}

func (s *SysInspector) usedAt(point string) (uint64, error) {
	stat, err := s.usage(point)
	if err != nil {
		return 0, fmt.Errorf("querying usage of %s: %w", point, err)
	}
	return stat.Used / 1024, nil
}

// MountPoint consults the mount table for the partition's current mount.
func (s *SysInspector) MountPoint(part string) (string, bool, error) {
	infos, err := s.mounts()
	if err != nil {
		return "", false, fmt.Errorf("reading mount table: %w", err)
	}

	for _, m := range infos {
		if m.Source == part {
			return m.Mountpoint, true, nil
		}
	}

	return "", false, nil
}

// Rotation consults, in order: the kernel's per-device rotational flag, the
// block-listing tool's rotational column, and a S.M.A.R.T. query.
func (s *SysInspector) Rotation(ctx context.Context, device string) Rotation {
	base := filepath.Base(device)

	if data, err := os.ReadFile(filepath.Join("/sys/block", base, "queue/rotational")); err == nil {
		switch strings.TrimSpace(string(data)) {
		case "1":
			return Rotational
		case "0":
			return SolidState
		}
	}

	if out, err := s.run.Run(ctx, []string{"lsblk", "-d", "-n", "-o", "ROTA", device}, ""); err == nil {
		switch strings.TrimSpace(out.Stdout) {
		case "1":
			return Rotational
		case "0":
			return SolidState
		}
	}

	if util.ToolOnPath("smartctl") {
		if out, err := s.run.Run(ctx, []string{"smartctl", "-i", device}, ""); err == nil {
			for _, line := range strings.Split(out.Stdout, "\n") {
				if !strings.Contains(line, "Rotation Rate") {
					continue
				}
				if strings.Contains(line, "Solid State") {
					return SolidState
				}
				if strings.Contains(line, "rpm") {
					return Rotational
				}
			}
		}
	}

	return RotationUnknown
}
