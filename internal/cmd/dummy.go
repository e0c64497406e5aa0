package cmd

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/ntfs2linux/ntfs2linux/internal/config"
	"github.com/ntfs2linux/ntfs2linux/internal/dummy"
	"github.com/ntfs2linux/ntfs2linux/internal/engine"
	"github.com/ntfs2linux/ntfs2linux/internal/event"
	"github.com/ntfs2linux/ntfs2linux/internal/fskind"
	"github.com/ntfs2linux/ntfs2linux/internal/journal"
)

// Dummy scenario numbers: a 40 GiB disk whose NTFS volume holds 6 GiB in 64
// files, converted to ext4 through a space squeeze that forces a second
// iteration.
const (
	dummyDiskKB = 40 * 1024 * 1024
	dummyUsedKB = 6 * 1024 * 1024
	dummyFiles  = 64
	dummyCapKB  = 4 * 1024 * 1024
)

// runDummy drives the whole engine and UI flow against the in-memory
// simulator. Nothing on the machine is touched except a journal record in a
// temporary directory.
func runDummy(ctx context.Context, rep event.Reporter, tun config.Tunables) error {
	rep.Log(event.Info, "Dummy mode: simulating a conversion on scripted numbers")

	disk := dummy.NewDisk("/dev/dummy", dummyDiskKB)
	src := disk.AddPartition(1024, dummyDiskKB, fskind.NTFS, dummyFiles, dummyUsedKB)

	store, err := journal.NewStore(journalTempDir())
	if err != nil {
		return err
	}

	eng := engine.New(
		&dummy.Block{Disk: disk},
		&dummy.Inspector{Disk: disk},
		&dummy.Migrator{Disk: disk, CapKB: dummyCapKB},
		store,
		rep,
		tun,
	)

	cc := &engine.ConversionContext{
		Device:          disk.Device,
		SourcePartition: src.Node,
		TargetKind:      fskind.Ext4,
	}

	if err := eng.Run(ctx, cc); err != nil {
		return err
	}

	logrus.WithField("iterations", cc.Iteration+1).Info("Dummy conversion finished")
	return nil
}
