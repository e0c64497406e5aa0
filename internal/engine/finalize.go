package engine

import (
	"context"
	"fmt"

	"github.com/dustin/go-humanize"

	"github.com/ntfs2linux/ntfs2linux/internal/event"
	"github.com/ntfs2linux/ntfs2linux/internal/journal"
)

// finalize removes the drained source partition and grows the target over
// the whole disk. The delete and expand checkpoints are journaled before
// their operation runs — resume re-checks the on-disk effect instead of
// blindly redoing them.
func (e *Engine) finalize(ctx context.Context, cc *ConversionContext) error {
	if err := e.interrupted(ctx, cc); err != nil {
		return err
	}

	if err := e.persist(cc, journal.OpDeleteSource); err != nil {
		return err
	}
	if err := e.deleteSourceIfPresent(ctx, cc); err != nil {
		return err
	}

	// a source that was already empty never ran an iteration, so the target
	// does not exist yet; it now gets the whole disk
	if cc.TargetPartition == "" {
		if err := e.createTargetOverDisk(ctx, cc); err != nil {
			return err
		}
	}

	if err := e.persist(cc, journal.OpExpandFinal); err != nil {
		return err
	}
	if err := e.expandFinal(ctx, cc); err != nil {
		return err
	}

	if err := e.persist(cc, journal.OpComplete); err != nil {
		return err
	}
	if err := e.cleanupJournal(cc); err != nil {
		return err
	}

	e.rep.Log(event.Success, fmt.Sprintf("Conversion complete: %s now carries %s with %d migrated files",
		cc.TargetPartition, cc.TargetKind, cc.FilesMigratedTotal))
	return nil
}

// cleanupJournal removes the device's record once the conversion is
// complete. Dry runs never wrote one.
func (e *Engine) cleanupJournal(cc *ConversionContext) error {
	if cc.DryRun {
		return nil
	}
	return e.store.Delete(cc.Device)
}

// createTargetOverDisk creates and formats the target across the whole disk
// tail when the iteration loop never needed to create one.
func (e *Engine) createTargetOverDisk(ctx context.Context, cc *ConversionContext) error {
	diskKB, err := e.insp.DiskSizeKB(ctx, cc.Device)
	if err != nil {
		return err
	}

	node, err := e.block.CreatePartition(ctx, cc.Device, oneMiBKB, diskKB)
	if err != nil {
		return err
	}
	cc.TargetPartition = node
	if err := e.refreshIndices(ctx, cc); err != nil {
		return err
	}
	if err := e.persist(cc, journal.OpCreateTarget); err != nil {
		return err
	}

	if err := e.block.Format(ctx, cc.TargetPartition, cc.TargetKind); err != nil {
		return err
	}
	return e.persist(cc, journal.OpFormatTarget)
}

// deleteSourceIfPresent removes the source partition, skipping the delete
// when a resumed run finds it already gone.
func (e *Engine) deleteSourceIfPresent(ctx context.Context, cc *ConversionContext) error {
	if _, err := e.insp.Geometry(ctx, cc.SourcePartition); err != nil {
		e.rep.Log(event.Info, fmt.Sprintf("Source partition %s already removed", cc.SourcePartition))
		return nil
	}

	e.rep.Status(fmt.Sprintf("Deleting source partition %s", cc.SourcePartition), event.NoPercent)
	return e.block.DeletePartition(ctx, cc.Device, cc.SourceIndex)
}

// expandFinal grows the target's table entry to the end of the disk and the
// filesystem to fill it. Both operations are idempotent against an already
// expanded target.
func (e *Engine) expandFinal(ctx context.Context, cc *ConversionContext) error {
	diskKB, err := e.insp.DiskSizeKB(ctx, cc.Device)
	if err != nil {
		return err
	}

	geo, err := e.insp.Geometry(ctx, cc.TargetPartition)
	if err != nil && !cc.DryRun {
		return fmt.Errorf("reading target geometry for final expand: %w", err)
	}
	if err == nil && geo.EndKB < diskKB {
		if err := e.block.ResizePartEnd(ctx, cc.Device, cc.TargetIndex, diskKB); err != nil {
			return err
		}
	}

	e.rep.Status(fmt.Sprintf("Growing %s to %s", cc.TargetPartition, humanize.Bytes(diskKB*1024)), event.NoPercent)
	return e.block.GrowFilesystem(ctx, cc.TargetPartition, cc.TargetKind, "")
}

// Resume rebuilds the conversion from a journal record and routes control to
// the checkpoint it names.
func (e *Engine) Resume(ctx context.Context, st journal.State, dryRun bool) error {
	cc := ContextFromState(st, dryRun)
	if err := e.refreshIndices(ctx, cc); err != nil {
		return err
	}

	e.rep.Log(event.Info, fmt.Sprintf("Resuming conversion of %s at %s (iteration %d)",
		st.Device, st.LastOperation, st.Iteration))

	switch st.LastOperation {
	case journal.OpComplete:
		// crashed between the final journal write and its cleanup
		return e.cleanupJournal(cc)

	case journal.OpDeleteSource:
		if err := e.deleteSourceIfPresent(ctx, cc); err != nil {
			return err
		}
		if err := e.persist(cc, journal.OpExpandFinal); err != nil {
			return err
		}
		if err := e.expandFinal(ctx, cc); err != nil {
			return err
		}
		if err := e.persist(cc, journal.OpComplete); err != nil {
			return err
		}
		return e.cleanupJournal(cc)

	case journal.OpExpandFinal:
		if err := e.expandFinal(ctx, cc); err != nil {
			return err
		}
		if err := e.persist(cc, journal.OpComplete); err != nil {
			return err
		}
		return e.cleanupJournal(cc)

	default:
		// every pre-finalization checkpoint re-enters the loop at the top
		// of its iteration; the steps are idempotent functions of current
		// on-disk geometry, and a re-run migrate re-verifies copied files
		// before pruning anything new
		return e.Run(ctx, cc)
	}
}
