package blockdev

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"unicode"

	"github.com/ntfs2linux/ntfs2linux/internal/util"
)

// Table is the decoded partition table of one device, in kilobytes.
type Table struct {
	Device     string
	Label      string
	SectorSize uint64
	Partitions []Entry
}

// Entry describes one partition-table entry as a [StartKB, EndKB) extent.
type Entry struct {
	Node    string
	Index   int
	StartKB uint64
	EndKB   uint64
}

// SizeKB is the extent length of the entry.
func (e Entry) SizeKB() uint64 {
	return e.EndKB - e.StartKB
}

// Find returns the entry whose node matches part.
func (t *Table) Find(part string) (Entry, bool) {
	for _, e := range t.Partitions {
		if e.Node == part {
			return e, true
		}
	}
	return Entry{}, false
}

// sfdiskDump mirrors the JSON emitted by "sfdisk --json". Offsets are in
// sectors of SectorSize bytes.
type sfdiskDump struct {
	PartitionTable struct {
		Label      string `json:"label"`
		Device     string `json:"device"`
		Unit       string `json:"unit"`
		SectorSize uint64 `json:"sectorsize"`
		Partitions []struct {
			Node  string `json:"node"`
			Start uint64 `json:"start"`
			Size  uint64 `json:"size"`
		} `json:"partitions"`
	} `json:"partitiontable"`
}

// ReadTable dumps and decodes the device's partition table.
func ReadTable(ctx context.Context, run util.Runner, device string) (*Table, error) {
	out, err := run.Run(ctx, []string{"sfdisk", "--json", device}, "")
	if err != nil {
		return nil, fmt.Errorf("dumping partition table of %s, stderr: [%s]: %w", device, strings.TrimSpace(out.Stderr), err)
	}

	var dump sfdiskDump
	if err := json.Unmarshal([]byte(out.Stdout), &dump); err != nil {
		return nil, fmt.Errorf("decoding partition table of %s: %w", device, err)
	}

	sectorSize := dump.PartitionTable.SectorSize
	if sectorSize == 0 {
		// older sfdisk omits sectorsize from the dump
		sectorSize = 512
	}

	t := &Table{
		Device:     device,
		Label:      dump.PartitionTable.Label,
		SectorSize: sectorSize,
	}
	for _, p := range dump.PartitionTable.Partitions {
		idx, err := PartitionIndex(p.Node)
		if err != nil {
			return nil, err
		}
		startKB := p.Start * sectorSize / 1024
		t.Partitions = append(t.Partitions, Entry{
			Node:    p.Node,
			Index:   idx,
			StartKB: startKB,
			EndKB:   startKB + p.Size*sectorSize/1024,
		})
	}

	return t, nil
}

// PartitionIndex extracts the table index from a partition node name. Both
// plain ("/dev/sda3") and infixed ("/dev/nvme0n1p3") naming conventions are
// handled.
func PartitionIndex(node string) (int, error) {
	base := filepath.Base(node)

	i := len(base)
	for i > 0 && unicode.IsDigit(rune(base[i-1])) {
		i--
	}
	if i == len(base) {
		return 0, fmt.Errorf("node %q carries no partition index", node)
	}

	idx, err := strconv.Atoi(base[i:])
	if err != nil {
		return 0, fmt.Errorf("parsing partition index of %q: %w", node, err)
	}

	return idx, nil
}

// PartitionNode composes a partition node name from its parent device and
// index, inserting the "p" infix when the device name itself ends in a digit
// (nvme, mmcblk, loop).
func PartitionNode(device string, index int) string {
	base := filepath.Base(device)
	if len(base) > 0 && unicode.IsDigit(rune(base[len(base)-1])) {
		return fmt.Sprintf("%sp%d", device, index)
	}
	return fmt.Sprintf("%s%d", device, index)
}

// DeviceOf strips the partition suffix from a partition node, returning the
// parent device node.
func DeviceOf(part string) string {
	base := filepath.Base(part)

	i := len(base)
	for i > 0 && unicode.IsDigit(rune(base[i-1])) {
		i--
	}
	if i == len(base) || i == 0 {
		return part
	}
	if base[i-1] == 'p' && i >= 2 && unicode.IsDigit(rune(base[i-2])) {
		i--
	}

	return filepath.Join(filepath.Dir(part), base[:i])
}
