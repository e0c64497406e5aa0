package blockdev

import (
	"context"
	"io"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ntfs2linux/ntfs2linux/internal/fskind"
	"github.com/ntfs2linux/ntfs2linux/internal/util/utiltest"
)

func init() {
	logrus.SetOutput(io.Discard)
}

const sdaTable = `{"partitiontable": {
  "label": "gpt",
  "device": "/dev/sda",
  "unit": "sectors",
  "sectorsize": 512,
  "partitions": [
    {"node": "/dev/sda1", "start": 2048, "size": 20969472, "type": "EBD0A0A2-B9E5-4433-87C0-68B6B72699C7"}
  ]
}}`

func newTestBlockDevice(t *testing.T, run *utiltest.FakeRunner) *CmdBlockDevice {
	t.Helper()
	b := New(run, t.TempDir(), "test-instance")
	b.children = func(string) ([]string, error) { return []string{"sda1"}, nil }
	b.mounts.mounted = func(string) (bool, error) { return false, nil }
	return b
}

func TestShrinkNTFS_ValidatesBeforeWriting(t *testing.T) {
	run := utiltest.NewFakeRunner()
	run.AddResult("ntfsresize --no-action --size 2202009k /dev/sda1", utiltest.Result{ExitCode: 1, Stderr: "ERROR: would truncate data"})
	b := newTestBlockDevice(t, run)

	err := b.ShrinkNTFS(context.Background(), "/dev/sda1", 2202009)

	require.Error(t, err)
	var opErr *OpError
	require.ErrorAs(t, err, &opErr)
	assert.Equal(t, "shrink_ntfs", opErr.Op)
	assert.False(t, run.RanPrefix("ntfsresize --force"), "validation failure must stop before the destructive pass")
	assert.False(t, run.RanPrefix("sfdisk"), "validation failure must stop before the table shrink")
}

func TestShrinkNTFS_ShrinksFilesystemThenTable(t *testing.T) {
	run := utiltest.NewFakeRunner()
	b := newTestBlockDevice(t, run)

	err := b.ShrinkNTFS(context.Background(), "/dev/sda1", 2202009)

	require.NoError(t, err)
	assert.True(t, run.Ran("ntfsresize --no-action --size 2202009k /dev/sda1"))
	assert.True(t, run.Ran("ntfsresize --force --size 2202009k /dev/sda1"))
	assert.True(t, run.Ran("sfdisk --no-reread -N 1 /dev/sda"))
	assert.Contains(t, run.Stdins, ",2202009KiB\n")
	assert.True(t, run.Ran("partprobe /dev/sda"))
}

func TestCreatePartition_DiffsChildSet(t *testing.T) {
	run := utiltest.NewFakeRunner()
	b := newTestBlockDevice(t, run)

	calls := 0
	b.children = func(string) ([]string, error) {
		calls++
		if calls == 1 {
			return []string{"sda1"}, nil
		}
		return []string{"sda1", "sda2"}, nil
	}

	node, err := b.CreatePartition(context.Background(), "/dev/sda", 2203058, 10485760)

	require.NoError(t, err)
	assert.Equal(t, "/dev/sda2", node)
	assert.True(t, run.Ran("sfdisk --no-reread --append /dev/sda"))
	assert.Contains(t, run.Stdins, "2203058KiB,8282702KiB,L\n")
}

func TestCreatePartition_InfixNaming(t *testing.T) {
	run := utiltest.NewFakeRunner()
	b := newTestBlockDevice(t, run)

	calls := 0
	b.children = func(string) ([]string, error) {
		calls++
		if calls == 1 {
			return []string{"nvme0n1p1"}, nil
		}
		return []string{"nvme0n1p1", "nvme0n1p2"}, nil
	}

	node, err := b.CreatePartition(context.Background(), "/dev/nvme0n1", 1024, 2048)

	require.NoError(t, err)
	assert.Equal(t, "/dev/nvme0n1p2", node)
}

func TestCreatePartition_RejectsEmptyExtent(t *testing.T) {
	run := utiltest.NewFakeRunner()
	b := newTestBlockDevice(t, run)

	_, err := b.CreatePartition(context.Background(), "/dev/sda", 2048, 2048)

	assert.Error(t, err)
	assert.Empty(t, run.Commands)
}

func TestFormat_UsesKindBinding(t *testing.T) {
	run := utiltest.NewFakeRunner()
	b := newTestBlockDevice(t, run)

	require.NoError(t, b.Format(context.Background(), "/dev/sda2", fskind.Ext4))
	assert.True(t, run.Ran("mkfs.ext4 -F /dev/sda2"))

	require.NoError(t, b.Format(context.Background(), "/dev/sda2", fskind.Btrfs))
	assert.True(t, run.Ran("mkfs.btrfs -f /dev/sda2"))
}

func TestResizePartEnd_ComputesSizeFromStart(t *testing.T) {
	run := utiltest.NewFakeRunner()
	run.AddResult("sfdisk --json /dev/sda", utiltest.Result{Stdout: sdaTable})
	b := newTestBlockDevice(t, run)

	err := b.ResizePartEnd(context.Background(), "/dev/sda", 1, 10485760)

	require.NoError(t, err)
	assert.True(t, run.Ran("sfdisk --no-reread -N 1 /dev/sda"))
	// start is 2048 sectors = 1024 KiB
	assert.Contains(t, run.Stdins, ",10484736KiB\n")
}

func TestResizePartEnd_UnknownIndex(t *testing.T) {
	run := utiltest.NewFakeRunner()
	run.AddResult("sfdisk --json /dev/sda", utiltest.Result{Stdout: sdaTable})
	b := newTestBlockDevice(t, run)

	err := b.ResizePartEnd(context.Background(), "/dev/sda", 7, 10485760)

	assert.Error(t, err)
}

func TestGrowFilesystem_OfflineKindUsesDevice(t *testing.T) {
	run := utiltest.NewFakeRunner()
	b := newTestBlockDevice(t, run)

	err := b.GrowFilesystem(context.Background(), "/dev/sda2", fskind.Ext4, "")

	require.NoError(t, err)
	assert.True(t, run.Ran("resize2fs /dev/sda2"))
	assert.False(t, run.RanPrefix("mount"), "offline resize must not mount")
}

func TestGrowFilesystem_OnlineKindGetsScopedMount(t *testing.T) {
	run := utiltest.NewFakeRunner()
	b := newTestBlockDevice(t, run)

	err := b.GrowFilesystem(context.Background(), "/dev/sda2", fskind.XFS, "")

	require.NoError(t, err)
	assert.True(t, run.RanPrefix("mount /dev/sda2"))
	assert.True(t, run.RanPrefix("xfs_growfs"))
	assert.True(t, run.RanPrefix("umount"), "scoped mount must be released")
}

func TestDeletePartition(t *testing.T) {
	run := utiltest.NewFakeRunner()
	b := newTestBlockDevice(t, run)

	err := b.DeletePartition(context.Background(), "/dev/sda", 1)

	require.NoError(t, err)
	assert.True(t, run.Ran("sfdisk --no-reread --delete /dev/sda 1"))
	assert.True(t, run.Ran("partprobe /dev/sda"))
}

func TestReprobe_FallsBackToBlockdev(t *testing.T) {
	run := utiltest.NewFakeRunner()
	run.AddResult("partprobe /dev/sda", utiltest.Result{ExitCode: 127})
	b := newTestBlockDevice(t, run)

	err := b.DeletePartition(context.Background(), "/dev/sda", 1)

	require.NoError(t, err)
	assert.True(t, run.Ran("blockdev --rereadpt /dev/sda"))
}

func TestUnmount_RetriesThenReportsStuck(t *testing.T) {
	run := utiltest.NewFakeRunner()
	b := newTestBlockDevice(t, run)
	b.mounts.mounted = func(string) (bool, error) { return true, nil }

	h, err := b.Mount(context.Background(), "/dev/sda1", true)
	require.NoError(t, err)

	run.AddResult("umount "+h.Path, utiltest.Result{ExitCode: 32, Stderr: "target is busy"})
	run.AddResult("umount "+h.Path, utiltest.Result{ExitCode: 32, Stderr: "target is busy"})
	run.AddResult("umount "+h.Path, utiltest.Result{ExitCode: 32, Stderr: "target is busy"})

	err = b.Unmount(context.Background(), h)

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnmountStuck)
}

func TestUnmount_NilHandleIsNoop(t *testing.T) {
	run := utiltest.NewFakeRunner()
	b := newTestBlockDevice(t, run)

	assert.NoError(t, b.Unmount(context.Background(), nil))
	assert.Empty(t, run.Commands)
}

func TestDryrun_MutationsDoNotRunTools(t *testing.T) {
	run := utiltest.NewFakeRunner()
	run.AddResult("sfdisk --json /dev/sda", utiltest.Result{Stdout: sdaTable})
	b := newTestBlockDevice(t, run)
	dry := Dryrun(b)

	require.NoError(t, dry.Format(context.Background(), "/dev/sda2", fskind.Ext4))
	require.NoError(t, dry.ResizePartEnd(context.Background(), "/dev/sda", 1, 10485760))
	require.NoError(t, dry.DeletePartition(context.Background(), "/dev/sda", 1))
	require.NoError(t, dry.GrowFilesystem(context.Background(), "/dev/sda2", fskind.Btrfs, ""))

	node, err := dry.CreatePartition(context.Background(), "/dev/sda", 2203058, 10485760)
	require.NoError(t, err)
	assert.Equal(t, "/dev/sda2", node)

	for _, c := range run.Commands {
		switch c[0] {
		case "sfdisk":
			assert.Equal(t, "--json", c[1], "dry run may only dump the table, not mutate it")
		case "mkfs.ext4", "mkfs.btrfs", "partprobe", "umount", "resize2fs", "btrfs":
			t.Errorf("dry run executed mutating command %v", c)
		}
	}
}

func TestDryrun_ShrinkStillValidates(t *testing.T) {
	run := utiltest.NewFakeRunner()
	b := newTestBlockDevice(t, run)
	dry := Dryrun(b)

	require.NoError(t, dry.ShrinkNTFS(context.Background(), "/dev/sda1", 2202009))

	assert.True(t, run.Ran("ntfsresize --no-action --size 2202009k /dev/sda1"))
	assert.False(t, run.RanPrefix("ntfsresize --force"))
}
