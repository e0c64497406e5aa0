package blockdev

import (
	"context"
	"fmt"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/sirupsen/logrus"

	"github.com/ntfs2linux/ntfs2linux/internal/fskind"
	"github.com/ntfs2linux/ntfs2linux/internal/util"
)

// CmdBlockDevice drives the real block tools through the process seam.
type CmdBlockDevice struct {
	run util.Runner

	// mounts manages the scoped mount points for this invocation.
	mounts *mountManager

	// children lists a device's current child partitions; overridable so the
	// convergence wait can be tested without sysfs.
	children func(device string) ([]string, error)
}

var _ BlockDevice = (*CmdBlockDevice)(nil)

// New builds the real block layer. Mount points are created under runDir and
// carry the per-invocation instance id, so concurrent tools cannot collide.
func New(run util.Runner, runDir, instanceID string) *CmdBlockDevice {
	return &CmdBlockDevice{
		run:      run,
		mounts:   newMountManager(run, runDir, instanceID),
		children: sysfsChildren,
	}
}

// ShrinkNTFS shrinks the filesystem first and the table entry second, per the
// shrink ordering contract. The resizer's dry-run validation runs before any
// write.
func (b *CmdBlockDevice) ShrinkNTFS(ctx context.Context, part string, newSizeKB uint64) error {
	if err := b.validateNTFSShrink(ctx, part, newSizeKB); err != nil {
		return err
	}

	logrus.WithFields(logrus.Fields{
		"partition": part,
		"new_size":  humanize.Bytes(newSizeKB * 1024),
	}).Info("Shrinking NTFS filesystem...")

	out, err := b.run.Run(ctx, fskind.ShrinkNTFSArgv(part, newSizeKB, false), "")
	if err != nil {
		return &OpError{Op: "shrink_ntfs", Err: fmt.Errorf("ntfsresize failed, stderr: [%s]: %w", strings.TrimSpace(out.Stderr), err)}
	}

	device := DeviceOf(part)
	index, err := PartitionIndex(part)
	if err != nil {
		return &OpError{Op: "shrink_ntfs", Err: err}
	}

	logrus.WithFields(logrus.Fields{"partition": part, "index": index}).Info("Shrinking partition-table entry to match...")
	if err := b.setPartitionSize(ctx, device, index, newSizeKB); err != nil {
		return &OpError{Op: "shrink_ntfs", Err: err}
	}

	return b.reprobe(ctx, device)
}

// validateNTFSShrink runs the resizer's non-destructive check of the
// requested size.
func (b *CmdBlockDevice) validateNTFSShrink(ctx context.Context, part string, newSizeKB uint64) error {
	logrus.WithField("partition", part).Info("Validating NTFS shrink with a no-action pass...")
	out, err := b.run.Run(ctx, fskind.ShrinkNTFSArgv(part, newSizeKB, true), "")
	if err != nil {
		return &OpError{Op: "shrink_ntfs", Err: fmt.Errorf("ntfsresize validation rejected size %d KiB, stderr: [%s]: %w",
			newSizeKB, strings.TrimSpace(out.Stderr), err)}
	}
	return nil
}

// CreatePartition appends the new entry and identifies the created node by
// diffing the kernel's child set before and after.
func (b *CmdBlockDevice) CreatePartition(ctx context.Context, device string, startKB, endKB uint64) (string, error) {
	if endKB <= startKB {
		return "", &OpError{Op: "create_partition", Err: fmt.Errorf("empty extent [%d, %d)", startKB, endKB)}
	}

	before, err := b.children(device)
	if err != nil {
		return "", &OpError{Op: "create_partition", Err: err}
	}

	script := fmt.Sprintf("%dKiB,%dKiB,L\n", startKB, endKB-startKB)
	out, err := b.run.Run(ctx, []string{"sfdisk", "--no-reread", "--append", device}, script)
	if err != nil {
		return "", &OpError{Op: "create_partition", Err: fmt.Errorf("sfdisk append failed, stderr: [%s]: %w", strings.TrimSpace(out.Stderr), err)}
	}

	if err := b.reprobe(ctx, device); err != nil {
		return "", err
	}

	node, err := b.waitNewChild(ctx, device, before)
	if err != nil {
		return "", err
	}

	logrus.WithFields(logrus.Fields{
		"device": device,
		"node":   node,
		"size":   humanize.Bytes((endKB - startKB) * 1024),
	}).Info("Created partition")

	return node, nil
}

// Format writes a fresh filesystem of the given kind onto the partition.
func (b *CmdBlockDevice) Format(ctx context.Context, part string, kind fskind.Kind) error {
	argv, err := kind.MkfsArgv(part)
	if err != nil {
		return &OpError{Op: "format", Err: err}
	}

	logrus.WithFields(logrus.Fields{"partition": part, "kind": kind.String()}).Info("Formatting partition...")
	out, err := b.run.Run(ctx, argv, "")
	if err != nil {
		return &OpError{Op: "format", Err: fmt.Errorf("%s failed, stderr: [%s]: %w", argv[0], strings.TrimSpace(out.Stderr), err)}
	}

	return nil
}

// ResizePartEnd moves the indexed entry's end to endKB.
func (b *CmdBlockDevice) ResizePartEnd(ctx context.Context, device string, index int, endKB uint64) error {
	table, err := ReadTable(ctx, b.run, device)
	if err != nil {
		return &OpError{Op: "resize_partition", Err: err}
	}

	var entry *Entry
	for i := range table.Partitions {
		if table.Partitions[i].Index == index {
			entry = &table.Partitions[i]
			break
		}
	}
	if entry == nil {
		return &OpError{Op: "resize_partition", Err: fmt.Errorf("device %s has no partition with index %d", device, index)}
	}
	if endKB <= entry.StartKB {
		return &OpError{Op: "resize_partition", Err: fmt.Errorf("end %d KiB precedes partition start %d KiB", endKB, entry.StartKB)}
	}

	if err := b.setPartitionSize(ctx, device, index, endKB-entry.StartKB); err != nil {
		return &OpError{Op: "resize_partition", Err: err}
	}

	return b.reprobe(ctx, device)
}

// GrowFilesystem grows the filesystem to fill its partition. When the kind
// resizes online and no live mount is supplied, a scoped mount is created and
// released around the resize.
func (b *CmdBlockDevice) GrowFilesystem(ctx context.Context, part string, kind fskind.Kind, mountpoint string) error {
	var scoped *MountHandle
	if kind.ResizeRequiresMount() && mountpoint == "" {
		h, err := b.Mount(ctx, part, false)
		if err != nil {
			return &OpError{Op: "grow_filesystem", Err: err}
		}
		scoped = h
		mountpoint = h.Path
	}

	argv, err := kind.GrowArgv(part, mountpoint)
	if err != nil {
		if scoped != nil {
			b.Unmount(ctx, scoped)
		}
		return &OpError{Op: "grow_filesystem", Err: err}
	}

	logrus.WithFields(logrus.Fields{"partition": part, "kind": kind.String()}).Info("Growing filesystem to fill partition...")
	out, runErr := b.run.Run(ctx, argv, "")

	if scoped != nil {
		if err := b.Unmount(ctx, scoped); err != nil && runErr == nil {
			return err
		}
	}
	if runErr != nil {
		return &OpError{Op: "grow_filesystem", Err: fmt.Errorf("%s failed, stderr: [%s]: %w", argv[0], strings.TrimSpace(out.Stderr), runErr)}
	}

	return nil
}

// DeletePartition removes the indexed entry from the table.
func (b *CmdBlockDevice) DeletePartition(ctx context.Context, device string, index int) error {
	logrus.WithFields(logrus.Fields{"device": device, "index": index}).Info("Deleting partition...")
	out, err := b.run.Run(ctx, []string{"sfdisk", "--no-reread", "--delete", device, fmt.Sprintf("%d", index)}, "")
	if err != nil {
		return &OpError{Op: "delete_partition", Err: fmt.Errorf("sfdisk delete failed, stderr: [%s]: %w", strings.TrimSpace(out.Stderr), err)}
	}

	return b.reprobe(ctx, device)
}

// Mount acquires a scoped mount for the partition.
func (b *CmdBlockDevice) Mount(ctx context.Context, part string, readonly bool) (*MountHandle, error) {
	return b.mounts.mount(ctx, part, readonly)
}

// Unmount releases a scoped mount with the retry discipline.
func (b *CmdBlockDevice) Unmount(ctx context.Context, h *MountHandle) error {
	return b.mounts.unmount(ctx, h)
}

// setPartitionSize rewrites the size of one table entry via an sfdisk script.
func (b *CmdBlockDevice) setPartitionSize(ctx context.Context, device string, index int, sizeKB uint64) error {
	script := fmt.Sprintf(",%dKiB\n", sizeKB)
	out, err := b.run.Run(ctx, []string{"sfdisk", "--no-reread", "-N", fmt.Sprintf("%d", index), device}, script)
	if err != nil {
		return fmt.Errorf("sfdisk resize of %s index %d failed, stderr: [%s]: %w",
			device, index, strings.TrimSpace(out.Stderr), err)
	}
	return nil
}

// nextPartitionNode predicts the node a create would yield, for dry-run
// reporting only. Real creates identify the node by child-set diffing.
func (b *CmdBlockDevice) nextPartitionNode(ctx context.Context, device string) (string, error) {
	table, err := ReadTable(ctx, b.run, device)
	if err != nil {
		return "", err
	}

	max := 0
	for _, e := range table.Partitions {
		if e.Index > max {
			max = e.Index
		}
	}

	return PartitionNode(device, max+1), nil
}
