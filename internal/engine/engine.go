// Package engine drives the iterative conversion: shrink the NTFS source
// toward its live data, grow the target into the freed tail, migrate a
// verified prefix of files, prune it from the source, and repeat until the
// source is empty. Every completed step is journaled so a crash resumes
// instead of restarting.
package engine

import (
	"context"
	"errors"
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/sirupsen/logrus"

	"github.com/ntfs2linux/ntfs2linux/internal/blockdev"
	"github.com/ntfs2linux/ntfs2linux/internal/config"
	"github.com/ntfs2linux/ntfs2linux/internal/event"
	"github.com/ntfs2linux/ntfs2linux/internal/inspect"
	"github.com/ntfs2linux/ntfs2linux/internal/journal"
	"github.com/ntfs2linux/ntfs2linux/internal/migrate"
)

const (
	// oneMiBKB is 1 MiB expressed in KiB, the unit the engine computes in.
	oneMiBKB = 1024

	// tenMiBKB is the floor of the continue threshold.
	tenMiBKB = 10 * 1024

	// maxNoProgress is how many sub-1-MiB iterations are tolerated before
	// the operator is asked whether to keep going.
	maxNoProgress = 3
)

// ErrUserAborted is returned when the operator answers a prompt with abort
// or cancels it.
var ErrUserAborted = errors.New("user aborted conversion")

// ErrInterrupted is returned when the run context is cancelled by a signal.
// The journal reflects the last fully completed step.
var ErrInterrupted = errors.New("conversion interrupted")

// Engine composes the block layer, inspector, migrator and journal into the
// conversion state machine.
type Engine struct {
	block blockdev.BlockDevice
	insp  inspect.Inspector
	mig   migrate.Migrator
	store *journal.Store
	rep   event.Reporter
	tun   config.Tunables
}

// New builds an Engine from its collaborators.
func New(block blockdev.BlockDevice, insp inspect.Inspector, mig migrate.Migrator, store *journal.Store, rep event.Reporter, tun config.Tunables) *Engine {
	return &Engine{
		block: block,
		insp:  insp,
		mig:   mig,
		store: store,
		rep:   rep,
		tun:   tun,
	}
}

// Run executes a conversion from the context's current state through
// completion. Fresh runs start at iteration 0; resumed contexts re-enter at
// the journaled iteration.
func (e *Engine) Run(ctx context.Context, cc *ConversionContext) error {
	if err := e.refreshIndices(ctx, cc); err != nil {
		return err
	}

	if err := e.loop(ctx, cc); err != nil {
		return err
	}

	return e.finalize(ctx, cc)
}

// loop is the migration iteration loop of the conversion.
func (e *Engine) loop(ctx context.Context, cc *ConversionContext) error {
	for {
		if err := e.interrupted(ctx, cc); err != nil {
			return err
		}

		if err := e.persist(cc, journal.OpIterationStart); err != nil {
			return err
		}
		e.rep.Status(fmt.Sprintf("Starting iteration %d", cc.Iteration), event.NoPercent)

		usedKB, err := e.insp.UsedKB(ctx, cc.SourcePartition)
		if err != nil {
			return fmt.Errorf("measuring source used space: %w", err)
		}
		diskKB, err := e.insp.DiskSizeKB(ctx, cc.Device)
		if err != nil {
			return fmt.Errorf("measuring disk size: %w", err)
		}

		if usedKB < e.emptyThreshold(diskKB) {
			e.rep.Log(event.Success, fmt.Sprintf("Source holds %s, below the empty threshold; leaving the loop",
				humanize.Bytes(usedKB*1024)))
			return nil
		}

		if err := e.checkProgress(cc, usedKB); err != nil {
			return err
		}

		targetSizeKB := uint64(float64(usedKB) * e.tun.SafetyFactor)
		if err := e.blockWork(ctx, cc, targetSizeKB, diskKB); err != nil {
			return err
		}

		if err := e.interrupted(ctx, cc); err != nil {
			return err
		}
		if err := e.persist(cc, journal.OpMigrateFiles); err != nil {
			return err
		}

		result, err := e.mig.Migrate(ctx, cc.SourcePartition, cc.TargetPartition)
		if err != nil {
			return err
		}
		cc.FilesMigratedTotal += uint64(len(result.Verified))

		if err := e.insp.WaitIOSettle(ctx, cc.Device); err != nil {
			return err
		}
		remainingKB, err := e.insp.UsedKB(ctx, cc.SourcePartition)
		if err != nil {
			return fmt.Errorf("re-measuring source used space: %w", err)
		}

		e.logIterationOutcome(cc, usedKB, remainingKB)

		if cc.DryRun {
			e.rep.Log(event.Info, "Dry run: stopping after one planned iteration")
			return nil
		}

		if remainingKB > e.continueThreshold(diskKB) {
			cc.Iteration++
			continue
		}

		e.rep.Log(event.Info, fmt.Sprintf("Source down to %s; finishing up", humanize.Bytes(remainingKB*1024)))
		return nil
	}
}

// blockWork performs the shrink/create/format or shrink/grow part of one
// iteration.
func (e *Engine) blockWork(ctx context.Context, cc *ConversionContext, targetSizeKB, diskKB uint64) error {
	if cc.UseExistingTarget {
		return e.checkExistingTarget(ctx, cc)
	}

	if err := e.block.ShrinkNTFS(ctx, cc.SourcePartition, targetSizeKB); err != nil {
		return err
	}
	if err := e.persist(cc, journal.OpShrinkNTFS); err != nil {
		return err
	}

	if cc.TargetPartition == "" {
		geo, err := e.insp.Geometry(ctx, cc.SourcePartition)
		if err != nil {
			return fmt.Errorf("reading source geometry after shrink: %w", err)
		}
		startKB := geo.EndKB + oneMiBKB

		node, err := e.block.CreatePartition(ctx, cc.Device, startKB, diskKB)
		if err != nil {
			return err
		}
		cc.TargetPartition = node
		index, err := blockdev.PartitionIndex(node)
		if err != nil {
			return err
		}
		cc.TargetIndex = index
		if err := e.persist(cc, journal.OpCreateTarget); err != nil {
			return err
		}

		if err := e.block.Format(ctx, cc.TargetPartition, cc.TargetKind); err != nil {
			return err
		}
		return e.persist(cc, journal.OpFormatTarget)
	}

	if err := e.block.ResizePartEnd(ctx, cc.Device, cc.TargetIndex, diskKB); err != nil {
		return err
	}
	if err := e.block.GrowFilesystem(ctx, cc.TargetPartition, cc.TargetKind, ""); err != nil {
		return err
	}
	return e.persist(cc, journal.OpExpandPartitionTable)
}

// checkExistingTarget warns when a pre-chosen target looks too small for the
// remaining source data. The operator picked the partition; the engine only
// flags the shortfall.
func (e *Engine) checkExistingTarget(ctx context.Context, cc *ConversionContext) error {
	geo, err := e.insp.Geometry(ctx, cc.TargetPartition)
	if err != nil {
		return fmt.Errorf("reading existing target geometry: %w", err)
	}
	usedSrc, err := e.insp.UsedKB(ctx, cc.SourcePartition)
	if err != nil {
		return err
	}
	usedDst, err := e.insp.UsedKB(ctx, cc.TargetPartition)
	if err != nil {
		return err
	}

	free := geo.SizeKB() - usedDst
	if free < usedSrc {
		e.rep.Log(event.Warning, fmt.Sprintf("Existing target has %s free for %s of source data; migration may take extra iterations",
			humanize.Bytes(free*1024), humanize.Bytes(usedSrc*1024)))
	}

	return nil
}

// checkProgress maintains the no-progress counter and surfaces the
// continue-or-abort prompt when three consecutive iterations each moved less
// than 1 MiB.
func (e *Engine) checkProgress(cc *ConversionContext, usedKB uint64) error {
	defer func() {
		cc.prevUsedKB = usedKB
		cc.hasPrev = true
	}()

	if !cc.hasPrev {
		return nil
	}

	moved := int64(cc.prevUsedKB) - int64(usedKB)
	if moved >= oneMiBKB {
		cc.noProgress = 0
		return nil
	}

	cc.noProgress++
	logrus.WithFields(logrus.Fields{
		"moved_kb": moved,
		"count":    cc.noProgress,
	}).Warn("Iteration moved less than 1 MiB")

	if cc.noProgress < maxNoProgress {
		return nil
	}

	choice, err := e.rep.Prompt(
		"Three iterations in a row made no real progress. Continue anyway?",
		[]string{"Continue", "Abort"},
	)
	if err != nil || choice != 0 {
		return fmt.Errorf("no progress after %d iterations: %w", maxNoProgress, ErrUserAborted)
	}

	cc.noProgress = 0
	return nil
}

// logIterationOutcome reports how much the iteration actually moved. A
// non-positive delta can happen when only metadata changed and is not fatal.
func (e *Engine) logIterationOutcome(cc *ConversionContext, usedKB, remainingKB uint64) {
	migrated := int64(usedKB) - int64(remainingKB)
	if migrated > 0 {
		e.rep.Log(event.Success, fmt.Sprintf("Iteration %d migrated %s", cc.Iteration, humanize.Bytes(uint64(migrated)*1024)))
	} else {
		e.rep.Log(event.Warning, fmt.Sprintf("Iteration %d moved no data (%d KiB); continuing", cc.Iteration, migrated))
	}

	var percent float64
	if usedKB > 0 && migrated > 0 {
		percent = float64(migrated) / float64(usedKB) * 100
	}
	e.rep.Panel(event.Panel{
		Source:        cc.SourcePartition,
		Target:        cc.TargetPartition,
		Iteration:     cc.Iteration,
		Percent:       percent,
		FilesMigrated: cc.FilesMigratedTotal,
		CurrentOp:     string(journal.OpMigrateFiles),
	})
}

// emptyThreshold is the used-space level below which the source counts as
// drained: about 0.1% of the disk, floored at 1 MiB, unless overridden.
func (e *Engine) emptyThreshold(diskKB uint64) uint64 {
	if e.tun.EmptyThresholdKB > 0 {
		return e.tun.EmptyThresholdKB
	}
	if t := diskKB / 1000; t > oneMiBKB {
		return t
	}
	return oneMiBKB
}

// continueThreshold is the remaining-space level above which another
// iteration runs: about 1% of the disk, floored at 10 MiB, unless
// overridden.
func (e *Engine) continueThreshold(diskKB uint64) uint64 {
	if e.tun.ContinueThresholdKB > 0 {
		return e.tun.ContinueThresholdKB
	}
	if t := diskKB / 100; t > tenMiBKB {
		return t
	}
	return tenMiBKB
}

// persist journals the completed operation. In dry-run mode the journal is
// left untouched so the run is side-effect free.
func (e *Engine) persist(cc *ConversionContext, op journal.Operation) error {
	if cc.DryRun {
		logrus.WithField("operation", op).Debug("Dry run: skipping journal write")
		return nil
	}
	if err := e.store.Save(cc.journalState(op)); err != nil {
		return fmt.Errorf("journaling %s: %w", op, err)
	}
	return nil
}

// interrupted translates context cancellation into the interrupt error,
// making sure the journal already reflects the last completed step (it
// always does at the points this is called, which lie between steps).
func (e *Engine) interrupted(ctx context.Context, cc *ConversionContext) error {
	if err := ctx.Err(); err != nil {
		e.rep.Log(event.Error, "Conversion interrupted; journal reflects the last completed step")
		return fmt.Errorf("%v: %w", err, ErrInterrupted)
	}
	return nil
}

// refreshIndices re-derives the partition-table indices from the node names,
// which is all resume needs beyond the journal payload.
func (e *Engine) refreshIndices(ctx context.Context, cc *ConversionContext) error {
	index, err := blockdev.PartitionIndex(cc.SourcePartition)
	if err != nil {
		return err
	}
	cc.SourceIndex = index

	if cc.TargetPartition != "" {
		index, err := blockdev.PartitionIndex(cc.TargetPartition)
		if err != nil {
			return err
		}
		cc.TargetIndex = index
	}

	return nil
}
