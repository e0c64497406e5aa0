package journal

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ntfs2linux/ntfs2linux/internal/fskind"
)

func testState() State {
	return State{
		Device:             "/dev/sda",
		TargetKind:         fskind.Ext4,
		SourcePartition:    "/dev/sda1",
		TargetPartition:    "/dev/sda2",
		UseExistingTarget:  false,
		Iteration:          3,
		LastOperation:      OpMigrateFiles,
		FilesMigratedTotal: 12345,
	}
}

func TestSaveLoad_RoundTrips(t *testing.T) {
	store, err := NewStore(t.TempDir())
	require.NoError(t, err)

	want := testState()
	require.NoError(t, store.Save(want))

	got, err := store.Load("/dev/sda")
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestSave_FileFormat(t *testing.T) {
	dir := t.TempDir()
	store, err := NewStore(dir)
	require.NoError(t, err)

	require.NoError(t, store.Save(testState()))

	data, err := os.ReadFile(filepath.Join(dir, "sda.state"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "device=/dev/sda\n")
	assert.Contains(t, string(data), "target_kind=ext4\n")
	assert.Contains(t, string(data), "last_operation=migrate_files\n")
	assert.Contains(t, string(data), "files_migrated_total=12345\n")
}

func TestSave_RejectsInvalidOperation(t *testing.T) {
	store, err := NewStore(t.TempDir())
	require.NoError(t, err)

	st := testState()
	st.LastOperation = "mid-write"

	assert.Error(t, store.Save(st))
}

func TestLoad_MissingRecord(t *testing.T) {
	store, err := NewStore(t.TempDir())
	require.NoError(t, err)

	_, err = store.Load("/dev/sdz")
	assert.Error(t, err)
}

func TestLoad_RejectsMalformedLine(t *testing.T) {
	dir := t.TempDir()
	store, err := NewStore(dir)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "sda.state"), []byte("device /dev/sda\n"), 0o600))

	_, err = store.Load("/dev/sda")
	assert.Error(t, err)
}

func TestList_ReturnsAllRecords(t *testing.T) {
	store, err := NewStore(t.TempDir())
	require.NoError(t, err)

	a := testState()
	b := testState()
	b.Device = "/dev/sdb"
	b.SourcePartition = "/dev/sdb1"
	require.NoError(t, store.Save(a))
	require.NoError(t, store.Save(b))

	states, err := store.List()
	require.NoError(t, err)
	require.Len(t, states, 2)
	assert.Equal(t, "/dev/sda", states[0].Device)
	assert.Equal(t, "/dev/sdb", states[1].Device)
}

func TestDelete_RemovesRecord(t *testing.T) {
	store, err := NewStore(t.TempDir())
	require.NoError(t, err)

	require.NoError(t, store.Save(testState()))
	require.NoError(t, store.Delete("/dev/sda"))

	states, err := store.List()
	require.NoError(t, err)
	assert.Empty(t, states)

	// deleting again is not an error
	assert.NoError(t, store.Delete("/dev/sda"))
}

func TestSave_OverwritesWholeFile(t *testing.T) {
	store, err := NewStore(t.TempDir())
	require.NoError(t, err)

	st := testState()
	require.NoError(t, store.Save(st))

	st.Iteration = 4
	st.LastOperation = OpIterationStart
	require.NoError(t, store.Save(st))

	got, err := store.Load("/dev/sda")
	require.NoError(t, err)
	assert.Equal(t, uint32(4), got.Iteration)
	assert.Equal(t, OpIterationStart, got.LastOperation)
}
