// Package fskind enumerates the filesystem kinds the converter understands
// and carries the per-kind tool bindings for creating and resizing them.
package fskind

import (
	"fmt"
	"strconv"
	"strings"
)

// Kind identifies one of the filesystem kinds handled by the converter.
type Kind int

const (
	Unknown Kind = iota
	NTFS
	Ext4
	Btrfs
	XFS
	F2FS
	ReiserFS
	JFS
)

var kindNames = map[Kind]string{
	NTFS:     "ntfs",
	Ext4:     "ext4",
	Btrfs:    "btrfs",
	XFS:      "xfs",
	F2FS:     "f2fs",
	ReiserFS: "reiserfs",
	JFS:      "jfs",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return "unknown"
}

// Targets lists the kinds a conversion may produce. NTFS is the source kind
// only and is excluded.
func Targets() []Kind {
	return []Kind{Ext4, Btrfs, XFS, F2FS, ReiserFS, JFS}
}

// Parse maps a filesystem name to its Kind. Names reported by blkid for the
// supported filesystems match the canonical names used here.
func Parse(name string) (Kind, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	for k, n := range kindNames {
		if n == name {
			return k, nil
		}
	}
	return Unknown, fmt.Errorf("unknown filesystem kind %q", name)
}

// ResizeRequiresMount reports whether the kind's resize utility operates on a
// mounted filesystem. btrfs and xfs only grow online; the rest resize the
// block device directly.
func (k Kind) ResizeRequiresMount() bool {
	switch k {
	case Btrfs, XFS:
		return true
	default:
		return false
	}
}

// MkfsArgv returns the command that writes a fresh filesystem of this kind
// onto the partition device node.
func (k Kind) MkfsArgv(device string) ([]string, error) {
	switch k {
	case Ext4:
		return []string{"mkfs.ext4", "-F", device}, nil
	case Btrfs:
		return []string{"mkfs.btrfs", "-f", device}, nil
	case XFS:
		return []string{"mkfs.xfs", "-f", device}, nil
	case F2FS:
		return []string{"mkfs.f2fs", "-f", device}, nil
	case ReiserFS:
		return []string{"mkfs.reiserfs", "-q", device}, nil
	case JFS:
		return []string{"mkfs.jfs", "-q", device}, nil
	case NTFS:
		return []string{"mkfs.ntfs", "-Q", "-F", device}, nil
	default:
		return nil, fmt.Errorf("no mkfs binding for kind %q", k)
	}
}

// GrowArgv returns the command that grows the filesystem to fill its
// partition. Kinds whose resizer works online receive the mount point, the
// rest receive the device node.
func (k Kind) GrowArgv(device, mountpoint string) ([]string, error) {
	switch k {
	case Ext4:
		return []string{"resize2fs", device}, nil
	case Btrfs:
		return []string{"btrfs", "filesystem", "resize", "max", mountpoint}, nil
	case XFS:
		return []string{"xfs_growfs", mountpoint}, nil
	case F2FS:
		return []string{"resize.f2fs", device}, nil
	case ReiserFS:
		return []string{"resize_reiserfs", "-f", device}, nil
	case JFS:
		return []string{"mount", "-o", "remount,resize", mountpoint}, nil
	default:
		return nil, fmt.Errorf("no resize binding for kind %q", k)
	}
}

// ShrinkNTFSArgv returns the ntfsresize invocation for the given size. When
// dryRun is set the resizer runs its non-destructive validation pass only.
func ShrinkNTFSArgv(device string, sizeKB uint64, dryRun bool) []string {
	size := strconv.FormatUint(sizeKB, 10) + "k"
	if dryRun {
		return []string{"ntfsresize", "--no-action", "--size", size, device}
	}
	return []string{"ntfsresize", "--force", "--size", size, device}
}

// Tools returns the external utilities this kind needs on PATH for a
// conversion targeting it.
func (k Kind) Tools() []string {
	mkfs, err := k.MkfsArgv("")
	if err != nil {
		return nil
	}
	tools := []string{mkfs[0]}
	grow, err := k.GrowArgv("", "")
	if err != nil {
		return tools
	}
	if grow[0] != "mount" {
		tools = append(tools, grow[0])
	}
	return tools
}
