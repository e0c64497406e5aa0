// Package blockdev provides the uniform interface over partition-table
// mutation, filesystem creation and resize, and mount management. It hides
// the specific tool invocations (sfdisk, partprobe, ntfsresize, mount, the
// per-kind mkfs and resize utilities) behind a single interface the engine
// drives.
package blockdev

//go:generate mockgen -destination mocks/mock_blockdev.go github.com/ntfs2linux/ntfs2linux/internal/blockdev BlockDevice

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/ntfs2linux/ntfs2linux/internal/fskind"
)

// ErrKernelViewStale identifies a partition-table mutation whose effect the
// kernel did not observe within the convergence window.
var ErrKernelViewStale = errors.New("kernel partition view did not converge")

// ErrMountBusy identifies a mount precondition that was not met.
var ErrMountBusy = errors.New("device is busy")

// ErrUnmountStuck identifies a mount point that stayed mounted after the
// unmount retry discipline was exhausted.
var ErrUnmountStuck = errors.New("mount point did not release")

// OpError wraps a failed block-layer operation with the operation name so
// callers can report which step failed and reason about resume.
type OpError struct {
	Op  string
	Err error
}

func (e *OpError) Error() string {
	return fmt.Sprintf("block operation %s failed: %v", e.Op, e.Err)
}

func (e *OpError) Unwrap() error {
	return e.Err
}

// MountHandle is a scoped mount acquired through BlockDevice.Mount. The
// handle owner must release it with Unmount on every exit path.
type MountHandle struct {
	// Device is the partition node that was mounted.
	Device string
	// Path is the mount point directory.
	Path string
	// ReadOnly records whether the mount was acquired read-only.
	ReadOnly bool
}

// BlockDevice outlines the block-layer functionality the conversion engine
// composes. Implementations are the real tool-driving CmdBlockDevice, the
// read-only Dryrun wrapper, and the dummy-mode simulator.
type BlockDevice interface {
	// ShrinkNTFS shrinks the NTFS filesystem on the partition to newSizeKB
	// and then shrinks the partition-table entry to match. The resizer's
	// non-destructive validation pass runs first; nothing is written if
	// validation rejects the size.
	ShrinkNTFS(ctx context.Context, part string, newSizeKB uint64) error

	// CreatePartition appends a partition covering [startKB, endKB) on the
	// device and returns the new partition's node. The new node is found by
	// diffing the device's child set, never by index arithmetic.
	CreatePartition(ctx context.Context, device string, startKB, endKB uint64) (string, error)

	// Format writes a fresh filesystem of the given kind onto the partition.
	// The partition must be unmounted.
	Format(ctx context.Context, part string, kind fskind.Kind) error

	// ResizePartEnd moves the partition-table end of the indexed partition
	// to endKB and re-probes the kernel view.
	ResizePartEnd(ctx context.Context, device string, index int, endKB uint64) error

	// GrowFilesystem grows the filesystem on the partition to fill its
	// partition. Kinds that resize online are mounted at a scoped point for
	// the duration unless mountpoint already names a live mount.
	GrowFilesystem(ctx context.Context, part string, kind fskind.Kind, mountpoint string) error

	// DeletePartition removes the indexed partition from the device's table
	// and re-probes the kernel view.
	DeletePartition(ctx context.Context, device string, index int) error

	// Mount mounts the partition at a unique scoped mount point and returns
	// its handle.
	Mount(ctx context.Context, part string, readonly bool) (*MountHandle, error)

	// Unmount releases the handle, retrying transient failures, and verifies
	// the mount point is gone before removing its directory.
	Unmount(ctx context.Context, h *MountHandle) error
}

// dryrunWrapper substitutes mutating methods with logged no-ops while passing
// queries and read-only work through to the wrapped implementation.
type dryrunWrapper struct {
	impl *CmdBlockDevice
}

// Dryrun wraps a CmdBlockDevice so that every mutating operation logs its
// intent and returns success without touching the disk. The NTFS shrink still
// runs the resizer's validation pass, since that pass is non-destructive and
// tells the operator whether the real run would succeed.
func Dryrun(impl *CmdBlockDevice) BlockDevice {
	return &dryrunWrapper{impl: impl}
}

var _ BlockDevice = (*dryrunWrapper)(nil)

func (d *dryrunWrapper) ShrinkNTFS(ctx context.Context, part string, newSizeKB uint64) error {
	if err := d.impl.validateNTFSShrink(ctx, part, newSizeKB); err != nil {
		return err
	}
	logrus.WithFields(logrus.Fields{"partition": part, "size_kb": newSizeKB}).Info("Would shrink NTFS volume")
	return nil
}

func (d *dryrunWrapper) CreatePartition(ctx context.Context, device string, startKB, endKB uint64) (string, error) {
	node, err := d.impl.nextPartitionNode(ctx, device)
	if err != nil {
		return "", err
	}
	logrus.WithFields(logrus.Fields{
		"device":   device,
		"start_kb": startKB,
		"end_kb":   endKB,
		"node":     node,
	}).Info("Would create partition")
	return node, nil
}

func (d *dryrunWrapper) Format(ctx context.Context, part string, kind fskind.Kind) error {
	logrus.WithFields(logrus.Fields{"partition": part, "kind": kind.String()}).Info("Would format partition")
	return nil
}

func (d *dryrunWrapper) ResizePartEnd(ctx context.Context, device string, index int, endKB uint64) error {
	logrus.WithFields(logrus.Fields{"device": device, "index": index, "end_kb": endKB}).Info("Would resize partition-table entry")
	return nil
}

func (d *dryrunWrapper) GrowFilesystem(ctx context.Context, part string, kind fskind.Kind, mountpoint string) error {
	logrus.WithFields(logrus.Fields{"partition": part, "kind": kind.String()}).Info("Would grow filesystem to fill partition")
	return nil
}

func (d *dryrunWrapper) DeletePartition(ctx context.Context, device string, index int) error {
	logrus.WithFields(logrus.Fields{"device": device, "index": index}).Info("Would delete partition")
	return nil
}

func (d *dryrunWrapper) Mount(ctx context.Context, part string, readonly bool) (*MountHandle, error) {
	if readonly {
		return d.impl.Mount(ctx, part, true)
	}
	logrus.WithField("partition", part).Info("Would mount partition read-write")
	return &MountHandle{Device: part, Path: "", ReadOnly: false}, nil
}

func (d *dryrunWrapper) Unmount(ctx context.Context, h *MountHandle) error {
	if h != nil && h.Path != "" {
		return d.impl.Unmount(ctx, h)
	}
	return nil
}
