package dummy

import (
	"context"
	"fmt"

	"github.com/ntfs2linux/ntfs2linux/internal/fskind"
	"github.com/ntfs2linux/ntfs2linux/internal/migrate"
)

// reserveKB keeps a little simulated headroom on the target so a migration
// never fills it to the last block.
const reserveKB = 1024

// Migrator simulates one verified migration step against the disk model:
// source files that fit move to the target, and moved files count as
// verified.
type Migrator struct {
	Disk *Disk

	// CapKB bounds how much one migration step may move; zero is unlimited.
	// Scenario scripts use it to force multi-iteration conversions.
	CapKB uint64

	// FailVerification makes every step fail its acceptance gate without
	// touching the source, simulating corrupted target copies.
	FailVerification bool
}

var _ migrate.Migrator = (*Migrator)(nil)

// Migrate walks the source files in order and moves each one that still fits
// into the target's free space (and under CapKB), returning them as the
// verified manifest. A file that does not fit stays on the source and the
// walk goes on, so a later, smaller file can still move.
func (m *Migrator) Migrate(ctx context.Context, source, target string) (*migrate.Result, error) {
	src, ok := m.Disk.Find(source)
	if !ok {
		return nil, fmt.Errorf("no partition %s", source)
	}
	dst, ok := m.Disk.Find(target)
	if !ok {
		return nil, fmt.Errorf("no partition %s", target)
	}
	if dst.Kind == fskind.Unknown {
		return nil, fmt.Errorf("target %s carries no filesystem", target)
	}

	result := &migrate.Result{
		FileCount:  uint64(len(src.Files)),
		TotalBytes: src.UsedKB() * 1024,
	}

	if m.FailVerification {
		return nil, &migrate.VerificationError{
			Total:  result.FileCount,
			Failed: 1,
			Reason: "simulated content mismatch",
		}
	}

	free := dst.SizeKB() - dst.UsedKB()
	if free > reserveKB {
		free -= reserveKB
	} else {
		free = 0
	}

	budget := free
	if m.CapKB > 0 && m.CapKB < budget {
		budget = m.CapKB
	}

	var moved uint64
	var remaining []File
	for _, f := range src.Files {
		if f.SizeKB <= budget-moved {
			dst.Files = append(dst.Files, f)
			result.Verified = append(result.Verified, f.Rel)
			moved += f.SizeKB
		} else {
			remaining = append(remaining, f)
		}
	}
	src.Files = remaining

	return result, nil
}
