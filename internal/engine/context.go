package engine

import (
	"github.com/ntfs2linux/ntfs2linux/internal/fskind"
	"github.com/ntfs2linux/ntfs2linux/internal/journal"
)

// ConversionContext carries the full state of one conversion run. Everything
// the engine mutates lives here; the journal persists the subset needed to
// resume.
type ConversionContext struct {
	// Device is the block device holding both partitions.
	Device string

	// SourcePartition is the NTFS partition being drained.
	SourcePartition string
	// SourceIndex is its partition-table index.
	SourceIndex int

	// TargetKind is the filesystem kind being converted to.
	TargetKind fskind.Kind
	// TargetPartition is the growing target partition; empty until created.
	TargetPartition string
	// TargetIndex is its partition-table index, valid once TargetPartition
	// is set.
	TargetIndex int

	// UseExistingTarget skips shrink/create/format and migrates into a
	// pre-existing partition instead.
	UseExistingTarget bool

	// DryRun ends the iteration loop after one planned iteration, after which
	// finalization is planned as well; the block layer and migrator it drives
	// are the intent-logging variants.
	DryRun bool

	// Iteration is the current migration iteration, starting at 0.
	Iteration uint32

	// FilesMigratedTotal accumulates verified-and-pruned files across
	// iterations.
	FilesMigratedTotal uint64

	// prevUsedKB tracks the previous iteration's used space for the
	// no-progress check.
	prevUsedKB uint64
	hasPrev    bool

	// noProgress counts consecutive iterations that moved less than 1 MiB.
	noProgress int
}

// journalState projects the context onto the persisted journal payload.
func (cc *ConversionContext) journalState(op journal.Operation) journal.State {
	return journal.State{
		Device:             cc.Device,
		TargetKind:         cc.TargetKind,
		SourcePartition:    cc.SourcePartition,
		TargetPartition:    cc.TargetPartition,
		UseExistingTarget:  cc.UseExistingTarget,
		Iteration:          cc.Iteration,
		LastOperation:      op,
		FilesMigratedTotal: cc.FilesMigratedTotal,
	}
}

// ContextFromState rebuilds a ConversionContext from a journal record for
// resume. Partition indices are re-derived by the engine before use.
func ContextFromState(st journal.State, dryRun bool) *ConversionContext {
	return &ConversionContext{
		Device:             st.Device,
		SourcePartition:    st.SourcePartition,
		TargetKind:         st.TargetKind,
		TargetPartition:    st.TargetPartition,
		UseExistingTarget:  st.UseExistingTarget,
		DryRun:             dryRun,
		Iteration:          st.Iteration,
		FilesMigratedTotal: st.FilesMigratedTotal,
	}
}
