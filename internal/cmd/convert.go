package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/ntfs2linux/ntfs2linux/internal/blockdev"
	"github.com/ntfs2linux/ntfs2linux/internal/config"
	"github.com/ntfs2linux/ntfs2linux/internal/engine"
	"github.com/ntfs2linux/ntfs2linux/internal/event"
	"github.com/ntfs2linux/ntfs2linux/internal/inspect"
	"github.com/ntfs2linux/ntfs2linux/internal/journal"
	"github.com/ntfs2linux/ntfs2linux/internal/migrate"
	"github.com/ntfs2linux/ntfs2linux/internal/preflight"
	"github.com/ntfs2linux/ntfs2linux/internal/ui"
	"github.com/ntfs2linux/ntfs2linux/internal/util"
)

// runDir is where scoped mount points are created.
const runDir = "/run/ntfs2linux"

// convertOptions holds the flag values of a conversion run.
type convertOptions struct {
	dryRun     bool
	dummyMode  bool
	configFile string
}

// runConvert wires the collaborators and drives one conversion.
func runConvert(ctx context.Context, opts convertOptions) error {
	tun := config.Default()
	if opts.configFile != "" {
		loaded, err := config.Load(opts.configFile)
		if err != nil {
			return &preflight.Error{Check: "config", Detail: err.Error()}
		}
		tun = loaded
	}

	rep := ui.NewPlain()

	if opts.dummyMode {
		return runDummy(ctx, rep, tun)
	}

	instanceID := uuid.New().String()[:8]
	logrus.WithField("instance", instanceID).Debug("Starting conversion run")

	runner := &util.CmdRunner{}
	cmdBlock := blockdev.New(runner, runDir, instanceID)

	var block blockdev.BlockDevice = cmdBlock
	if opts.dryRun {
		block = blockdev.Dryrun(cmdBlock)
	}

	insp := inspect.New(runner, block, inspect.WithSettleCap(tun.SettleCap))

	storeDir, err := journal.DefaultDir()
	if err != nil {
		return err
	}
	store, err := journal.NewStore(storeDir)
	if err != nil {
		return err
	}

	var mig migrate.Migrator
	if opts.dryRun {
		mig = migrate.NewDryRun(rep)
	} else {
		mig = migrate.New(runner, block, insp, rep, instanceID,
			migrate.WithHashThreshold(tun.HashThresholdBytes),
			migrate.WithInteractive(),
		)
	}

	eng := engine.New(block, insp, mig, store, rep, tun)

	// a leftover journal record means an interrupted conversion owns its
	// device; offer to pick it up before anything else
	resume, err := offerResume(store, rep)
	if err != nil {
		return err
	}
	if resume != nil {
		return eng.Resume(ctx, *resume, opts.dryRun)
	}

	sel, err := selectConversion(ctx, runner, rep)
	if err != nil {
		return err
	}

	report, err := preflight.Run(ctx, runner, insp, sel.device, sel.source, sel.kind)
	if err != nil {
		return err
	}
	if report.Rotation == inspect.Rotational {
		rep.Log(event.Warning, "The source disk is rotational; defragmenting Windows beforehand speeds up shrinking considerably")
	}

	cc := &engine.ConversionContext{
		Device:            sel.device,
		SourcePartition:   sel.source,
		TargetKind:        sel.kind,
		TargetPartition:   sel.target,
		UseExistingTarget: sel.useExisting,
		DryRun:            opts.dryRun,
	}

	return eng.Run(ctx, cc)
}

// offerResume prompts for resuming when journal records exist. A nil state
// with nil error means a fresh conversion was chosen.
func offerResume(store *journal.Store, rep event.Reporter) (*journal.State, error) {
	states, err := store.List()
	if err != nil {
		return nil, err
	}
	if len(states) == 0 {
		return nil, nil
	}

	options := make([]string, 0, len(states)+1)
	for _, st := range states {
		options = append(options, fmt.Sprintf("Resume %s → %s (iteration %d, last step %s)",
			st.Device, st.TargetKind, st.Iteration, st.LastOperation))
	}
	options = append(options, "Start a fresh conversion")

	choice, err := rep.Prompt("Unfinished conversions found", options)
	if err != nil {
		return nil, fmt.Errorf("resume selection: %w", engine.ErrUserAborted)
	}
	if choice == len(states) {
		return nil, nil
	}

	return &states[choice], nil
}

// exitCode maps a run error onto the process exit status.
func exitCode(err error) int {
	if err == nil {
		return 0
	}
	return 1
}

// Execute runs the main command and exits with the mapped status.
func Execute() {
	if err := MainCommand().ExecuteContext(signalContext()); err != nil {
		os.Exit(exitCode(err))
	}
}
