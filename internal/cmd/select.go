package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/dustin/go-humanize"

	"github.com/ntfs2linux/ntfs2linux/internal/engine"
	"github.com/ntfs2linux/ntfs2linux/internal/event"
	"github.com/ntfs2linux/ntfs2linux/internal/fskind"
	"github.com/ntfs2linux/ntfs2linux/internal/util"
)

// selection is the operator's choice of what to convert into what.
type selection struct {
	device string
	source string
	kind   fskind.Kind

	// useExisting migrates into target instead of creating a partition in
	// the freed space.
	useExisting bool
	target      string
}

// lsblkReport mirrors the JSON emitted by "lsblk -J -b".
type lsblkReport struct {
	BlockDevices []lsblkDevice `json:"blockdevices"`
}

type lsblkDevice struct {
	Name     string        `json:"name"`
	Type     string        `json:"type"`
	Size     uint64        `json:"size"`
	FSType   string        `json:"fstype"`
	Children []lsblkDevice `json:"children"`
}

// selectConversion lists the system's NTFS partitions and prompts for the
// source and the target kind.
func selectConversion(ctx context.Context, run util.Runner, rep event.Reporter) (*selection, error) {
	candidates, err := ntfsPartitions(ctx, run)
	if err != nil {
		return nil, err
	}
	if len(candidates) == 0 {
		return nil, fmt.Errorf("no NTFS partitions found on this system")
	}

	options := make([]string, 0, len(candidates))
	for _, c := range candidates {
		options = append(options, fmt.Sprintf("%s (%s)", c.source, humanize.Bytes(c.sizeBytes)))
	}
	choice, err := rep.Prompt("Select the NTFS volume to convert", options)
	if err != nil {
		return nil, fmt.Errorf("source selection: %w", engine.ErrUserAborted)
	}
	picked := candidates[choice]

	kinds := fskind.Targets()
	kindNames := make([]string, 0, len(kinds))
	for _, k := range kinds {
		kindNames = append(kindNames, k.String())
	}
	kindChoice, err := rep.Prompt("Select the target filesystem", kindNames)
	if err != nil {
		return nil, fmt.Errorf("target selection: %w", engine.ErrUserAborted)
	}

	sel := &selection{
		device: picked.device,
		source: picked.source,
		kind:   kinds[kindChoice],
	}

	// partitions already carrying the chosen kind on the same disk can serve
	// as a pre-existing target
	existing := existingTargets(picked.siblings, kinds[kindChoice])
	if len(existing) > 0 {
		options := append([]string{"Create the target in the space freed by shrinking"}, existing...)
		targetChoice, err := rep.Prompt("Select the target volume", options)
		if err != nil {
			return nil, fmt.Errorf("target selection: %w", engine.ErrUserAborted)
		}
		if targetChoice > 0 {
			sel.useExisting = true
			sel.target = existing[targetChoice-1]
		}
	}

	return sel, nil
}

// existingTargets lists sibling partitions already formatted with the chosen
// kind.
func existingTargets(siblings []lsblkDevice, kind fskind.Kind) []string {
	var nodes []string
	for _, s := range siblings {
		if s.Type == "part" && strings.EqualFold(s.FSType, kind.String()) {
			nodes = append(nodes, "/dev/"+s.Name)
		}
	}
	return nodes
}

type candidate struct {
	device    string
	source    string
	sizeBytes uint64
	siblings  []lsblkDevice
}

// ntfsPartitions enumerates NTFS-carrying partitions through lsblk.
func ntfsPartitions(ctx context.Context, run util.Runner) ([]candidate, error) {
	out, err := run.Run(ctx, []string{"lsblk", "-J", "-b", "-o", "NAME,TYPE,SIZE,FSTYPE"}, "")
	if err != nil {
		return nil, fmt.Errorf("listing block devices, stderr: [%s]: %w", strings.TrimSpace(out.Stderr), err)
	}

	var report lsblkReport
	if err := json.Unmarshal([]byte(out.Stdout), &report); err != nil {
		return nil, fmt.Errorf("decoding lsblk output: %w", err)
	}

	var found []candidate
	for _, dev := range report.BlockDevices {
		if dev.Type != "disk" {
			continue
		}
		for _, child := range dev.Children {
			if child.Type == "part" && strings.EqualFold(child.FSType, "ntfs") {
				siblings := make([]lsblkDevice, 0, len(dev.Children)-1)
				for _, other := range dev.Children {
					if other.Name != child.Name {
						siblings = append(siblings, other)
					}
				}
				found = append(found, candidate{
					device:    "/dev/" + dev.Name,
					source:    "/dev/" + child.Name,
					sizeBytes: child.Size,
					siblings:  siblings,
				})
			}
		}
	}

	return found, nil
}
