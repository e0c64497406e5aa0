package migrate

import (
	"context"
	"fmt"

	"github.com/ntfs2linux/ntfs2linux/internal/event"
)

// DryRun is the Migrator used under --dry-run: it logs what a migration step
// would do and moves nothing.
type DryRun struct {
	rep event.Reporter
}

var _ Migrator = (*DryRun)(nil)

// NewDryRun builds the intent-logging migrator.
func NewDryRun(rep event.Reporter) *DryRun {
	return &DryRun{rep: rep}
}

// Migrate reports the step and returns an empty result.
func (d *DryRun) Migrate(ctx context.Context, source, target string) (*Result, error) {
	d.rep.Log(event.Info, fmt.Sprintf("Would migrate files from %s to %s, verify the copies, and prune the verified set from the source", source, target))
	return &Result{}, nil
}
