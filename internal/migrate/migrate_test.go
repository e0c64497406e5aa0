package migrate

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/golang/mock/gomock"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ntfs2linux/ntfs2linux/internal/blockdev"
	mock_blockdev "github.com/ntfs2linux/ntfs2linux/internal/blockdev/mocks"
	"github.com/ntfs2linux/ntfs2linux/internal/event"
	mock_inspect "github.com/ntfs2linux/ntfs2linux/internal/inspect/mocks"
	"github.com/ntfs2linux/ntfs2linux/internal/util/utiltest"
)

func init() {
	logrus.SetOutput(io.Discard)
}

// writeFile creates a file with parents under root.
func writeFile(t *testing.T, root, rel, contents string) {
	t.Helper()
	path := filepath.Join(root, rel)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))
}

// newTestMigrator returns a migrator hashing in-process with a tiny
// threshold so small test files exercise the hash path.
func newTestMigrator(t *testing.T) *FileMigrator {
	t.Helper()
	m := New(utiltest.NewFakeRunner(), nil, nil, event.Discard{}, "test", WithHashThreshold(4))
	m.tmpDir = t.TempDir()
	m.hashCandidates = nil
	return m
}

func TestVerify_AllVerified(t *testing.T) {
	src, dst := t.TempDir(), t.TempDir()
	writeFile(t, src, "a.txt", "alpha content")
	writeFile(t, src, "sub/b.txt", "beta content")
	writeFile(t, dst, "a.txt", "alpha content")
	writeFile(t, dst, "sub/b.txt", "beta content")

	m := newTestMigrator(t)
	outcome, err := m.verify(context.Background(), src, dst)

	require.NoError(t, err)
	assert.Equal(t, uint64(2), outcome.total)
	assert.Equal(t, []string{"a.txt", filepath.Join("sub", "b.txt")}, outcome.verified)
	assert.Zero(t, outcome.missing)
	assert.Zero(t, outcome.failed)
}

func TestVerify_MissingOnTarget(t *testing.T) {
	src, dst := t.TempDir(), t.TempDir()
	writeFile(t, src, "a.txt", "data")

	m := newTestMigrator(t)
	outcome, err := m.verify(context.Background(), src, dst)

	require.NoError(t, err)
	assert.Equal(t, uint64(1), outcome.missing)
	assert.Empty(t, outcome.verified)
}

func TestVerify_SizeMismatchFails(t *testing.T) {
	src, dst := t.TempDir(), t.TempDir()
	writeFile(t, src, "a.txt", "longer content")
	writeFile(t, dst, "a.txt", "short")

	m := newTestMigrator(t)
	outcome, err := m.verify(context.Background(), src, dst)

	require.NoError(t, err)
	assert.Equal(t, uint64(1), outcome.failed)
	assert.Empty(t, outcome.verified)
}

func TestVerify_ContentMismatchCaughtByHash(t *testing.T) {
	src, dst := t.TempDir(), t.TempDir()
	// same size, different bytes
	writeFile(t, src, "a.bin", "AAAAAAAAAA")
	writeFile(t, dst, "a.bin", "AAAAABAAAA")

	m := newTestMigrator(t)
	outcome, err := m.verify(context.Background(), src, dst)

	require.NoError(t, err)
	assert.Equal(t, uint64(1), outcome.failed)
	assert.Empty(t, outcome.verified)
}

func TestVerify_ZeroByteFileIsVerified(t *testing.T) {
	src, dst := t.TempDir(), t.TempDir()
	writeFile(t, src, "empty", "")
	writeFile(t, dst, "empty", "")

	m := newTestMigrator(t)
	outcome, err := m.verify(context.Background(), src, dst)

	require.NoError(t, err)
	assert.Equal(t, []string{"empty"}, outcome.verified)
}

func TestVerify_SmallFileSkipsHash(t *testing.T) {
	src, dst := t.TempDir(), t.TempDir()
	writeFile(t, src, "a", "xy")
	writeFile(t, dst, "a", "xz") // same size, differs — below threshold

	m := newTestMigrator(t)
	m.hashThreshold = 100 * 1024
	outcome, err := m.verify(context.Background(), src, dst)

	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, outcome.verified, "below the threshold only sizes are compared")
}

func TestAccept_FailuresReject(t *testing.T) {
	m := newTestMigrator(t)

	err := m.accept(&verifyOutcome{total: 10, verified: make([]string, 9), failed: 1})

	var verr *VerificationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, uint64(1), verr.Failed)
}

func TestAccept_TooManyMissingRejects(t *testing.T) {
	m := newTestMigrator(t)

	err := m.accept(&verifyOutcome{total: 100, verified: make([]string, 89), missing: 11})

	assert.Error(t, err)
}

func TestAccept_LowVerifiedRejectsWhenAutomated(t *testing.T) {
	m := newTestMigrator(t)

	err := m.accept(&verifyOutcome{total: 100, verified: make([]string, 85), missing: 5})

	assert.Error(t, err, "an automated run must treat a verified shortfall as failure")
}

type scriptedReporter struct {
	event.Discard
	choice int
}

func (r *scriptedReporter) Prompt(string, []string) (int, error) { return r.choice, nil }

func TestAccept_LowVerifiedHonorsOverride(t *testing.T) {
	m := newTestMigrator(t)
	m.interactive = true
	m.rep = &scriptedReporter{choice: 0}

	err := m.accept(&verifyOutcome{total: 100, verified: make([]string, 85)})
	assert.NoError(t, err, "operator chose to continue")

	m.rep = &scriptedReporter{choice: 1}
	err = m.accept(&verifyOutcome{total: 100, verified: make([]string, 85)})
	assert.Error(t, err, "operator chose to abort")
}

func TestAccept_CleanOutcomePasses(t *testing.T) {
	m := newTestMigrator(t)

	assert.NoError(t, m.accept(&verifyOutcome{total: 10, verified: make([]string, 10)}))
}

func TestPrune_DeletesOnlyVerified(t *testing.T) {
	src := t.TempDir()
	writeFile(t, src, "keep.txt", "unverified")
	writeFile(t, src, "sub/gone.txt", "verified")

	m := newTestMigrator(t)
	failures := m.prune(src, []string{filepath.Join("sub", "gone.txt")})

	assert.Zero(t, failures)
	assert.FileExists(t, filepath.Join(src, "keep.txt"))
	assert.NoFileExists(t, filepath.Join(src, "sub", "gone.txt"))
	assert.NoDirExists(t, filepath.Join(src, "sub"), "emptied directories are removed")
}

func TestPrune_KeepsDirsWithUnverifiedFiles(t *testing.T) {
	src := t.TempDir()
	writeFile(t, src, "sub/gone.txt", "verified")
	writeFile(t, src, "sub/keep.txt", "unverified")

	m := newTestMigrator(t)
	m.prune(src, []string{filepath.Join("sub", "gone.txt")})

	assert.FileExists(t, filepath.Join(src, "sub", "keep.txt"))
	assert.DirExists(t, filepath.Join(src, "sub"))
}

func TestPrune_CountsFailures(t *testing.T) {
	src := t.TempDir()

	m := newTestMigrator(t)
	failures := m.prune(src, []string{"never-existed.txt"})

	assert.Equal(t, uint64(1), failures)
}

func TestParseProgress(t *testing.T) {
	tests := []struct {
		line string
		want float64
		ok   bool
	}{
		{line: "  1,234,567  45%   10.23MB/s    0:01:02", want: 45, ok: true},
		{line: "        512 100%  500.00kB/s    0:00:00", want: 100, ok: true},
		{line: "sending incremental file list", ok: false},
		{line: "", ok: false},
	}

	for _, tt := range tests {
		got, ok := parseProgress(tt.line)
		assert.Equal(t, tt.ok, ok, tt.line)
		if tt.ok {
			assert.Equal(t, tt.want, got, tt.line)
		}
	}
}

func TestSupportsProgress2(t *testing.T) {
	run := utiltest.NewFakeRunner()
	run.AddResult("rsync --version", utiltest.Result{Stdout: "rsync  version 3.2.7  protocol version 31\n"})
	m := New(run, nil, nil, event.Discard{}, "test")

	assert.True(t, m.supportsProgress2(context.Background()))

	old := utiltest.NewFakeRunner()
	old.AddResult("rsync --version", utiltest.Result{Stdout: "rsync  version 2.6.9  protocol version 29\n"})
	m = New(old, nil, nil, event.Discard{}, "test")

	assert.False(t, m.supportsProgress2(context.Background()))
}

func TestCopyTree_ToleratesVanishedFiles(t *testing.T) {
	run := utiltest.NewFakeRunner()
	run.AddResult("rsync --version", utiltest.Result{Stdout: "rsync  version 3.2.7\n"})
	run.AddResult("rsync -aHAXS --numeric-ids --info=progress2 /src/ /dst/", utiltest.Result{ExitCode: 24})
	m := New(run, nil, nil, event.Discard{}, "test")

	err := m.copyTree(context.Background(), "/src", "/dst")

	assert.NoError(t, err, "exit 24 means files vanished mid-copy, not failure")
}

func TestCopyTree_HardFailure(t *testing.T) {
	run := utiltest.NewFakeRunner()
	run.AddResult("rsync --version", utiltest.Result{Stdout: "rsync  version 3.2.7\n"})
	run.AddResult("rsync -aHAXS --numeric-ids --info=progress2 /src/ /dst/", utiltest.Result{ExitCode: 12, Stderr: "error in rsync protocol data stream"})
	m := New(run, nil, nil, event.Discard{}, "test")

	err := m.copyTree(context.Background(), "/src", "/dst")

	assert.Error(t, err)
}

func TestBlake3File_DetectsDifference(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a", "same-size-1")
	writeFile(t, dir, "b", "same-size-2")

	ha, err := blake3File(filepath.Join(dir, "a"))
	require.NoError(t, err)
	hb, err := blake3File(filepath.Join(dir, "b"))
	require.NoError(t, err)

	assert.NotEqual(t, ha, hb)
}

func TestMigrate_ReleasesMountsOnSuccess(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	ctx := context.Background()

	srcDir, dstDir := t.TempDir(), t.TempDir()
	writeFile(t, srcDir, "a.txt", "payload")
	writeFile(t, dstDir, "a.txt", "payload")

	srcHandle := &blockdev.MountHandle{Device: "/dev/sda1", Path: srcDir}
	dstHandle := &blockdev.MountHandle{Device: "/dev/sda2", Path: dstDir}

	mockBlock := mock_blockdev.NewMockBlockDevice(ctrl)
	gomock.InOrder(
		mockBlock.EXPECT().Mount(ctx, "/dev/sda1", false).Return(srcHandle, nil),
		mockBlock.EXPECT().Mount(ctx, "/dev/sda2", false).Return(dstHandle, nil),
	)
	mockBlock.EXPECT().Unmount(ctx, srcHandle).Return(nil)
	mockBlock.EXPECT().Unmount(ctx, dstHandle).Return(nil)

	mockInsp := mock_inspect.NewMockInspector(ctrl)
	mockInsp.EXPECT().WaitIOSettle(ctx, "/dev/sda").Return(nil).Times(2)

	run := utiltest.NewFakeRunner()
	run.AddResult("rsync --version", utiltest.Result{Stdout: "rsync  version 3.2.7\n"})

	m := New(run, mockBlock, mockInsp, event.Discard{}, "test")
	m.tmpDir = t.TempDir()
	m.hashCandidates = nil

	result, err := m.Migrate(ctx, "/dev/sda1", "/dev/sda2")

	require.NoError(t, err)
	assert.Equal(t, uint64(1), result.FileCount)
	assert.Equal(t, []string{"a.txt"}, result.Verified)
	assert.NoFileExists(t, filepath.Join(srcDir, "a.txt"), "verified file is pruned from the source")
	assert.FileExists(t, filepath.Join(dstDir, "a.txt"))
}

func TestMigrate_SourceUntouchedOnVerificationFailure(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	ctx := context.Background()

	srcDir, dstDir := t.TempDir(), t.TempDir()
	writeFile(t, srcDir, "a.bin", "AAAAAAAAAA")
	writeFile(t, dstDir, "a.bin", "AAAAABAAAA") // same size, corrupted bytes

	srcHandle := &blockdev.MountHandle{Device: "/dev/sda1", Path: srcDir}
	dstHandle := &blockdev.MountHandle{Device: "/dev/sda2", Path: dstDir}

	mockBlock := mock_blockdev.NewMockBlockDevice(ctrl)
	mockBlock.EXPECT().Mount(ctx, "/dev/sda1", false).Return(srcHandle, nil)
	mockBlock.EXPECT().Mount(ctx, "/dev/sda2", false).Return(dstHandle, nil)
	mockBlock.EXPECT().Unmount(ctx, srcHandle).Return(nil)
	mockBlock.EXPECT().Unmount(ctx, dstHandle).Return(nil)

	mockInsp := mock_inspect.NewMockInspector(ctrl)
	mockInsp.EXPECT().WaitIOSettle(ctx, "/dev/sda").Return(nil)

	run := utiltest.NewFakeRunner()
	run.AddResult("rsync --version", utiltest.Result{Stdout: "rsync  version 3.2.7\n"})

	m := New(run, mockBlock, mockInsp, event.Discard{}, "test", WithHashThreshold(4))
	m.tmpDir = t.TempDir()
	m.hashCandidates = nil

	_, err := m.Migrate(ctx, "/dev/sda1", "/dev/sda2")

	var verr *VerificationError
	require.ErrorAs(t, err, &verr)
	assert.FileExists(t, filepath.Join(srcDir, "a.bin"), "no source file may be deleted after a failed gate")
}

func TestMigrate_ReleasesSourceWhenTargetMountFails(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	ctx := context.Background()

	srcHandle := &blockdev.MountHandle{Device: "/dev/sda1", Path: t.TempDir()}

	mockBlock := mock_blockdev.NewMockBlockDevice(ctrl)
	gomock.InOrder(
		mockBlock.EXPECT().Mount(ctx, "/dev/sda1", false).Return(srcHandle, nil),
		mockBlock.EXPECT().Mount(ctx, "/dev/sda2", false).Return(nil, blockdev.ErrMountBusy),
		mockBlock.EXPECT().Unmount(ctx, srcHandle).Return(nil),
	)

	m := New(utiltest.NewFakeRunner(), mockBlock, nil, event.Discard{}, "test")

	_, err := m.Migrate(ctx, "/dev/sda1", "/dev/sda2")

	assert.Error(t, err)
}

func TestWriteManifest(t *testing.T) {
	m := newTestMigrator(t)

	path, err := m.writeManifest([]string{"a.txt", "sub/b.txt"})

	require.NoError(t, err)
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "a.txt\nsub/b.txt\n", string(data))
	assert.Contains(t, filepath.Base(path), "test", "manifest carries the instance id")
}
