// Package preflight verifies the environment before the engine is allowed to
// mutate anything. Every failure is fatal and names the check that rejected
// the run.
package preflight

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/ntfs2linux/ntfs2linux/internal/blockdev"
	"github.com/ntfs2linux/ntfs2linux/internal/fskind"
	"github.com/ntfs2linux/ntfs2linux/internal/inspect"
	"github.com/ntfs2linux/ntfs2linux/internal/util"
)

// Error identifies the preflight check that rejected the environment.
type Error struct {
	Check  string
	Detail string
}

func (e *Error) Error() string {
	return fmt.Sprintf("preflight check %q failed: %s", e.Check, e.Detail)
}

// baseTools are required on PATH for every conversion, before the per-kind
// mkfs and resize utilities.
var baseTools = []string{
	"sfdisk", "partprobe", "blockdev", "ntfsresize", "rsync",
	"mount", "umount", "blkid", "lsblk",
}

// Report carries the non-fatal observations preflight surfaces to the UI.
type Report struct {
	// Rotation lets the UI recommend defragmenting a rotational source
	// before conversion; the defragmentation itself is out of scope here.
	Rotation inspect.Rotation
}

// Run performs all environment checks for converting the source partition on
// device to the given kind. It is called before any mutation and returns on
// the first failed check.
func Run(ctx context.Context, run util.Runner, insp inspect.Inspector, device, source string, kind fskind.Kind) (*Report, error) {
	if os.Geteuid() != 0 {
		return nil, &Error{Check: "privileges", Detail: "root privileges required, re-run with sudo"}
	}

	tools := append(append([]string{}, baseTools...), kind.Tools()...)
	for _, tool := range tools {
		if !util.ToolOnPath(tool) {
			return nil, &Error{Check: "tools", Detail: fmt.Sprintf("required tool %q not found on PATH", tool)}
		}
	}

	table, err := blockdev.ReadTable(ctx, run, device)
	if err != nil {
		return nil, &Error{Check: "partition-table", Detail: err.Error()}
	}
	if _, ok := table.Find(source); !ok {
		return nil, &Error{Check: "partition-table", Detail: fmt.Sprintf("%s is not a partition of %s", source, device)}
	}

	if err := checkIsNTFS(ctx, run, source); err != nil {
		return nil, err
	}

	if err := checkNoSwap(device); err != nil {
		return nil, err
	}

	if point, mounted, err := insp.MountPoint(source); err == nil && mounted {
		return nil, &Error{Check: "mount-state", Detail: fmt.Sprintf("%s is mounted at %s; unmount it before converting", source, point)}
	}

	if err := checkHeadroom(ctx, insp, device, source); err != nil {
		return nil, err
	}

	report := &Report{Rotation: insp.Rotation(ctx, device)}
	logrus.WithField("rotation", report.Rotation.String()).Debug("Preflight passed")

	return report, nil
}

// checkIsNTFS probes the source's filesystem signature.
func checkIsNTFS(ctx context.Context, run util.Runner, source string) error {
	out, err := run.Run(ctx, []string{"blkid", "--probe", "--output", "value", "--match-tag", "TYPE", source}, "")
	if err != nil {
		return &Error{Check: "source-filesystem", Detail: fmt.Sprintf("cannot probe %s: %v", source, err)}
	}
	if kind := strings.TrimSpace(out.Stdout); kind != "ntfs" {
		return &Error{Check: "source-filesystem", Detail: fmt.Sprintf("%s carries %q, expected ntfs", source, kind)}
	}
	return nil
}

// checkNoSwap rejects devices with active swap on any of their partitions.
func checkNoSwap(device string) error {
	data, err := os.ReadFile("/proc/swaps")
	if err != nil {
		// no swap accounting means nothing to collide with
		return nil
	}

	for _, line := range strings.Split(string(data), "\n") {
		fields := strings.Fields(line)
		if len(fields) > 0 && strings.HasPrefix(fields[0], device) {
			return &Error{Check: "swap", Detail: fmt.Sprintf("active swap on %s; swapoff it first", fields[0])}
		}
	}

	return nil
}

// checkHeadroom verifies the disk can hold the shrunken source next to a
// minimal target.
func checkHeadroom(ctx context.Context, insp inspect.Inspector, device, source string) error {
	usedKB, err := insp.UsedKB(ctx, source)
	if err != nil {
		return &Error{Check: "headroom", Detail: fmt.Sprintf("cannot measure %s: %v", source, err)}
	}
	diskKB, err := insp.DiskSizeKB(ctx, device)
	if err != nil {
		return &Error{Check: "headroom", Detail: fmt.Sprintf("cannot size %s: %v", device, err)}
	}

	// the shrunken source plus alignment slack must leave room for a target
	needed := uint64(float64(usedKB)*1.05) + 2*1024
	if needed >= diskKB {
		return &Error{Check: "headroom", Detail: fmt.Sprintf("source holds %d KiB of %d KiB disk; nothing left for a target", usedKB, diskKB)}
	}

	return nil
}
