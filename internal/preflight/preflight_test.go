package preflight

import (
	"context"
	"io"
	"testing"

	"github.com/golang/mock/gomock"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	mock_inspect "github.com/ntfs2linux/ntfs2linux/internal/inspect/mocks"
	"github.com/ntfs2linux/ntfs2linux/internal/util/utiltest"
)

func init() {
	logrus.SetOutput(io.Discard)
}

func TestCheckIsNTFS(t *testing.T) {
	run := utiltest.NewFakeRunner()
	run.AddResult("blkid --probe --output value --match-tag TYPE /dev/sda1", utiltest.Result{Stdout: "ntfs\n"})

	assert.NoError(t, checkIsNTFS(context.Background(), run, "/dev/sda1"))
}

func TestCheckIsNTFS_WrongFilesystem(t *testing.T) {
	run := utiltest.NewFakeRunner()
	run.AddResult("blkid --probe --output value --match-tag TYPE /dev/sda1", utiltest.Result{Stdout: "ext4\n"})

	err := checkIsNTFS(context.Background(), run, "/dev/sda1")

	var perr *Error
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, "source-filesystem", perr.Check)
}

func TestCheckIsNTFS_ProbeFailure(t *testing.T) {
	run := utiltest.NewFakeRunner()
	run.AddResult("blkid --probe --output value --match-tag TYPE /dev/sda1", utiltest.Result{ExitCode: 2})

	assert.Error(t, checkIsNTFS(context.Background(), run, "/dev/sda1"))
}

func TestCheckNoSwap_UnrelatedDevice(t *testing.T) {
	// whatever /proc/swaps holds, a made-up device cannot appear in it
	assert.NoError(t, checkNoSwap("/dev/zzqx"))
}

func TestCheckHeadroom(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	ctx := context.Background()

	insp := mock_inspect.NewMockInspector(ctrl)
	insp.EXPECT().UsedKB(ctx, "/dev/sda1").Return(uint64(9*1024*1024), nil)
	insp.EXPECT().DiskSizeKB(ctx, "/dev/sda").Return(uint64(10*1024*1024), nil)

	assert.NoError(t, checkHeadroom(ctx, insp, "/dev/sda", "/dev/sda1"))
}

func TestCheckHeadroom_SourceFillsDisk(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	ctx := context.Background()

	insp := mock_inspect.NewMockInspector(ctrl)
	insp.EXPECT().UsedKB(ctx, "/dev/sda1").Return(uint64(10*1024*1024), nil)
	insp.EXPECT().DiskSizeKB(ctx, "/dev/sda").Return(uint64(10*1024*1024), nil)

	err := checkHeadroom(ctx, insp, "/dev/sda", "/dev/sda1")

	var perr *Error
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, "headroom", perr.Check)
}

func TestError_NamesTheCheck(t *testing.T) {
	err := &Error{Check: "tools", Detail: "sfdisk missing"}
	assert.Contains(t, err.Error(), "tools")
	assert.Contains(t, err.Error(), "sfdisk missing")
}
