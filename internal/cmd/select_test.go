package cmd

import (
	"context"
	"io"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ntfs2linux/ntfs2linux/internal/event"
	"github.com/ntfs2linux/ntfs2linux/internal/fskind"
	"github.com/ntfs2linux/ntfs2linux/internal/util/utiltest"
)

func init() {
	logrus.SetOutput(io.Discard)
}

const lsblkJSON = `{
  "blockdevices": [
    {"name": "sda", "type": "disk", "size": 107374182400, "children": [
      {"name": "sda1", "type": "part", "size": 107374182400, "fstype": "ntfs"}
    ]},
    {"name": "sdb", "type": "disk", "size": 32212254720, "children": [
      {"name": "sdb1", "type": "part", "size": 16106127360, "fstype": "ext4"},
      {"name": "sdb2", "type": "part", "size": 16106127360, "fstype": "ntfs"}
    ]},
    {"name": "loop0", "type": "loop", "size": 4096}
  ]
}`

type scriptedReporter struct {
	event.Discard
	answers []int
}

func (r *scriptedReporter) Prompt(string, []string) (int, error) {
	if len(r.answers) == 0 {
		return 0, event.ErrCancelled
	}
	a := r.answers[0]
	r.answers = r.answers[1:]
	return a, nil
}

func TestNtfsPartitions(t *testing.T) {
	run := utiltest.NewFakeRunner()
	run.AddResult("lsblk -J -b -o NAME,TYPE,SIZE,FSTYPE", utiltest.Result{Stdout: lsblkJSON})

	found, err := ntfsPartitions(context.Background(), run)

	require.NoError(t, err)
	require.Len(t, found, 2)
	assert.Equal(t, "/dev/sda", found[0].device)
	assert.Equal(t, "/dev/sda1", found[0].source)
	assert.Equal(t, "/dev/sdb2", found[1].source)
	require.Len(t, found[1].siblings, 1)
	assert.Equal(t, "sdb1", found[1].siblings[0].Name)
}

func TestSelectConversion_FreshTarget(t *testing.T) {
	run := utiltest.NewFakeRunner()
	run.AddResult("lsblk -J -b -o NAME,TYPE,SIZE,FSTYPE", utiltest.Result{Stdout: lsblkJSON})
	rep := &scriptedReporter{answers: []int{0, 0}} // sda1, ext4

	sel, err := selectConversion(context.Background(), run, rep)

	require.NoError(t, err)
	assert.Equal(t, "/dev/sda", sel.device)
	assert.Equal(t, "/dev/sda1", sel.source)
	assert.Equal(t, fskind.Ext4, sel.kind)
	assert.False(t, sel.useExisting)
}

func TestSelectConversion_ExistingTarget(t *testing.T) {
	run := utiltest.NewFakeRunner()
	run.AddResult("lsblk -J -b -o NAME,TYPE,SIZE,FSTYPE", utiltest.Result{Stdout: lsblkJSON})
	// sdb2 as source, ext4 as kind, then pick the existing ext4 sibling
	rep := &scriptedReporter{answers: []int{1, 0, 1}}

	sel, err := selectConversion(context.Background(), run, rep)

	require.NoError(t, err)
	assert.Equal(t, "/dev/sdb2", sel.source)
	assert.True(t, sel.useExisting)
	assert.Equal(t, "/dev/sdb1", sel.target)
}

func TestSelectConversion_CancelledPrompt(t *testing.T) {
	run := utiltest.NewFakeRunner()
	run.AddResult("lsblk -J -b -o NAME,TYPE,SIZE,FSTYPE", utiltest.Result{Stdout: lsblkJSON})
	rep := &scriptedReporter{}

	_, err := selectConversion(context.Background(), run, rep)

	assert.Error(t, err)
}

func TestNtfsPartitions_NoNTFS(t *testing.T) {
	run := utiltest.NewFakeRunner()
	run.AddResult("lsblk -J -b -o NAME,TYPE,SIZE,FSTYPE", utiltest.Result{
		Stdout: `{"blockdevices": [{"name": "sda", "type": "disk", "size": 1024, "children": [{"name": "sda1", "type": "part", "size": 1024, "fstype": "ext4"}]}]}`,
	})

	found, err := ntfsPartitions(context.Background(), run)

	require.NoError(t, err)
	assert.Empty(t, found)
}

func TestMainCommand_RejectsConflictingModes(t *testing.T) {
	cmd := MainCommand()
	cmd.SetArgs([]string{"--dry-run", "--dummy-mode"})
	cmd.SetOut(io.Discard)
	cmd.SetErr(io.Discard)

	err := cmd.Execute()

	assert.Error(t, err, "--dry-run and --dummy-mode are mutually exclusive")
}

func TestExitCode(t *testing.T) {
	assert.Equal(t, 0, exitCode(nil))
	assert.Equal(t, 1, exitCode(assert.AnError))
}
