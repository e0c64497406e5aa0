// Package dummy simulates the block layer, inspector and migrator against an
// in-memory disk model. It backs --dummy-mode, where the whole engine and UI
// flow runs on scripted numbers with no real devices, and doubles as the
// simulated backend for the engine's end-to-end tests.
package dummy

import (
	"context"
	"fmt"
	"sort"

	"github.com/sirupsen/logrus"

	"github.com/ntfs2linux/ntfs2linux/internal/blockdev"
	"github.com/ntfs2linux/ntfs2linux/internal/fskind"
	"github.com/ntfs2linux/ntfs2linux/internal/inspect"
)

// File is one simulated file on a partition.
type File struct {
	Rel    string
	SizeKB uint64
}

// Part is one simulated partition.
type Part struct {
	Node    string
	Index   int
	StartKB uint64
	EndKB   uint64
	Kind    fskind.Kind
	Files   []File
}

// SizeKB is the partition's extent length.
func (p *Part) SizeKB() uint64 {
	return p.EndKB - p.StartKB
}

// UsedKB sums the partition's file sizes.
func (p *Part) UsedKB() uint64 {
	var total uint64
	for _, f := range p.Files {
		total += f.SizeKB
	}
	return total
}

// Disk is the in-memory device model shared by the simulated collaborators.
type Disk struct {
	Device string
	SizeKB uint64
	Parts  []*Part

	// Mounted tracks live simulated mounts by mount path; tests assert it
	// drains to empty.
	Mounted map[string]string
}

// NewDisk builds a simulated device of the given size.
func NewDisk(device string, sizeKB uint64) *Disk {
	return &Disk{Device: device, SizeKB: sizeKB, Mounted: map[string]string{}}
}

// AddPartition appends a partition with evenly sized files summing to
// usedKB.
func (d *Disk) AddPartition(startKB, endKB uint64, kind fskind.Kind, fileCount int, usedKB uint64) *Part {
	index := 1
	for _, p := range d.Parts {
		if p.Index >= index {
			index = p.Index + 1
		}
	}

	p := &Part{
		Node:    blockdev.PartitionNode(d.Device, index),
		Index:   index,
		StartKB: startKB,
		EndKB:   endKB,
		Kind:    kind,
	}
	if fileCount > 0 {
		per := usedKB / uint64(fileCount)
		for i := 0; i < fileCount; i++ {
			size := per
			if i == fileCount-1 {
				size = usedKB - per*uint64(fileCount-1)
			}
			p.Files = append(p.Files, File{Rel: fmt.Sprintf("dir%02d/file%04d.bin", i%4, i), SizeKB: size})
		}
	}

	d.Parts = append(d.Parts, p)
	d.sortParts()
	return p
}

// Find returns the partition with the given node.
func (d *Disk) Find(node string) (*Part, bool) {
	for _, p := range d.Parts {
		if p.Node == node {
			return p, true
		}
	}
	return nil, false
}

func (d *Disk) sortParts() {
	sort.Slice(d.Parts, func(i, j int) bool { return d.Parts[i].StartKB < d.Parts[j].StartKB })
}

// Block is the simulated blockdev.BlockDevice.
type Block struct {
	Disk *Disk
}

var _ blockdev.BlockDevice = (*Block)(nil)

func (b *Block) ShrinkNTFS(ctx context.Context, part string, newSizeKB uint64) error {
	p, ok := b.Disk.Find(part)
	if !ok {
		return &blockdev.OpError{Op: "shrink_ntfs", Err: fmt.Errorf("no partition %s", part)}
	}
	if p.Kind != fskind.NTFS {
		return &blockdev.OpError{Op: "shrink_ntfs", Err: fmt.Errorf("%s is %s, not ntfs", part, p.Kind)}
	}
	if newSizeKB < p.UsedKB() {
		return &blockdev.OpError{Op: "shrink_ntfs", Err: fmt.Errorf("size %d KiB below used %d KiB", newSizeKB, p.UsedKB())}
	}

	p.EndKB = p.StartKB + newSizeKB
	logrus.WithFields(logrus.Fields{"partition": part, "size_kb": newSizeKB}).Debug("dummy: shrank ntfs")
	return nil
}

func (b *Block) CreatePartition(ctx context.Context, device string, startKB, endKB uint64) (string, error) {
	if endKB <= startKB || endKB > b.Disk.SizeKB {
		return "", &blockdev.OpError{Op: "create_partition", Err: fmt.Errorf("bad extent [%d, %d)", startKB, endKB)}
	}
	for _, p := range b.Disk.Parts {
		if startKB < p.EndKB && p.StartKB < endKB {
			return "", &blockdev.OpError{Op: "create_partition", Err: fmt.Errorf("extent overlaps %s", p.Node)}
		}
	}

	p := b.Disk.AddPartition(startKB, endKB, fskind.Unknown, 0, 0)
	return p.Node, nil
}

func (b *Block) Format(ctx context.Context, part string, kind fskind.Kind) error {
	p, ok := b.Disk.Find(part)
	if !ok {
		return &blockdev.OpError{Op: "format", Err: fmt.Errorf("no partition %s", part)}
	}
	p.Kind = kind
	p.Files = nil
	return nil
}

func (b *Block) ResizePartEnd(ctx context.Context, device string, index int, endKB uint64) error {
	for _, p := range b.Disk.Parts {
		if p.Index == index {
			if endKB <= p.StartKB || endKB > b.Disk.SizeKB {
				return &blockdev.OpError{Op: "resize_partition", Err: fmt.Errorf("bad end %d", endKB)}
			}
			p.EndKB = endKB
			return nil
		}
	}
	return &blockdev.OpError{Op: "resize_partition", Err: fmt.Errorf("no partition index %d", index)}
}

func (b *Block) GrowFilesystem(ctx context.Context, part string, kind fskind.Kind, mountpoint string) error {
	p, ok := b.Disk.Find(part)
	if !ok {
		return &blockdev.OpError{Op: "grow_filesystem", Err: fmt.Errorf("no partition %s", part)}
	}

	// the model lets a grow claim the space the preceding shrink freed, the
	// way the conversion intends the target to expand
	var start uint64 = 1024
	for _, other := range b.Disk.Parts {
		if other != p && other.EndKB <= p.EndKB && other.EndKB+1024 > start {
			start = other.EndKB + 1024
		}
	}
	if start < p.StartKB {
		p.StartKB = start
	}

	return nil
}

func (b *Block) DeletePartition(ctx context.Context, device string, index int) error {
	for i, p := range b.Disk.Parts {
		if p.Index == index {
			b.Disk.Parts = append(b.Disk.Parts[:i], b.Disk.Parts[i+1:]...)
			return nil
		}
	}
	return &blockdev.OpError{Op: "delete_partition", Err: fmt.Errorf("no partition index %d", index)}
}

func (b *Block) Mount(ctx context.Context, part string, readonly bool) (*blockdev.MountHandle, error) {
	if _, ok := b.Disk.Find(part); !ok {
		return nil, fmt.Errorf("no partition %s", part)
	}
	path := fmt.Sprintf("/run/dummy/%s", part)
	b.Disk.Mounted[path] = part
	return &blockdev.MountHandle{Device: part, Path: path, ReadOnly: readonly}, nil
}

func (b *Block) Unmount(ctx context.Context, h *blockdev.MountHandle) error {
	if h == nil {
		return nil
	}
	delete(b.Disk.Mounted, h.Path)
	return nil
}

// Inspector is the simulated inspect.Inspector.
type Inspector struct {
	Disk *Disk

	// UsedOverride, when set, answers UsedKB instead of the disk model.
	UsedOverride func(part string) (uint64, bool)
}

var _ inspect.Inspector = (*Inspector)(nil)

func (i *Inspector) Geometry(ctx context.Context, part string) (blockdev.Entry, error) {
	p, ok := i.Disk.Find(part)
	if !ok {
		return blockdev.Entry{}, fmt.Errorf("no partition %s", part)
	}
	return blockdev.Entry{Node: p.Node, Index: p.Index, StartKB: p.StartKB, EndKB: p.EndKB}, nil
}

func (i *Inspector) DiskSizeKB(ctx context.Context, device string) (uint64, error) {
	return i.Disk.SizeKB, nil
}

func (i *Inspector) UsedKB(ctx context.Context, part string) (uint64, error) {
	if i.UsedOverride != nil {
		if used, ok := i.UsedOverride(part); ok {
			return used, nil
		}
	}
	p, ok := i.Disk.Find(part)
	if !ok {
		return 0, fmt.Errorf("no partition %s", part)
	}
	return p.UsedKB(), nil
}

func (i *Inspector) MountPoint(part string) (string, bool, error) {
	for path, node := range i.Disk.Mounted {
		if node == part {
			return path, true, nil
		}
	}
	return "", false, nil
}

func (i *Inspector) Rotation(ctx context.Context, device string) inspect.Rotation {
	return inspect.SolidState
}

func (i *Inspector) WaitIOSettle(ctx context.Context, device string) error {
	return nil
}
