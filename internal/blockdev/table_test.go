package blockdev

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ntfs2linux/ntfs2linux/internal/util/utiltest"
)

func TestReadTable_DecodesGeometryInKB(t *testing.T) {
	run := utiltest.NewFakeRunner()
	run.AddResult("sfdisk --json /dev/sda", utiltest.Result{Stdout: sdaTable})

	table, err := ReadTable(context.Background(), run, "/dev/sda")

	require.NoError(t, err)
	assert.Equal(t, "gpt", table.Label)
	require.Len(t, table.Partitions, 1)

	e := table.Partitions[0]
	assert.Equal(t, "/dev/sda1", e.Node)
	assert.Equal(t, 1, e.Index)
	assert.Equal(t, uint64(1024), e.StartKB)
	assert.Equal(t, uint64(1024+20969472/2), e.EndKB)
	assert.Equal(t, uint64(20969472/2), e.SizeKB())
}

func TestReadTable_DefaultsSectorSize(t *testing.T) {
	run := utiltest.NewFakeRunner()
	run.AddResult("sfdisk --json /dev/sdb", utiltest.Result{
		Stdout: `{"partitiontable": {"label": "dos", "device": "/dev/sdb", "partitions": [{"node": "/dev/sdb1", "start": 2048, "size": 2048}]}}`,
	})

	table, err := ReadTable(context.Background(), run, "/dev/sdb")

	require.NoError(t, err)
	assert.Equal(t, uint64(512), table.SectorSize)
	assert.Equal(t, uint64(1024), table.Partitions[0].SizeKB())
}

func TestReadTable_BadJSON(t *testing.T) {
	run := utiltest.NewFakeRunner()
	run.AddResult("sfdisk --json /dev/sda", utiltest.Result{Stdout: "not json"})

	_, err := ReadTable(context.Background(), run, "/dev/sda")

	assert.Error(t, err)
}

func TestPartitionIndex(t *testing.T) {
	tests := []struct {
		node    string
		want    int
		wantErr bool
	}{
		{node: "/dev/sda1", want: 1},
		{node: "/dev/sda12", want: 12},
		{node: "/dev/nvme0n1p3", want: 3},
		{node: "/dev/mmcblk0p2", want: 2},
		{node: "/dev/sda", wantErr: true},
	}

	for _, tt := range tests {
		got, err := PartitionIndex(tt.node)
		if tt.wantErr {
			assert.Error(t, err, tt.node)
			continue
		}
		require.NoError(t, err, tt.node)
		assert.Equal(t, tt.want, got, tt.node)
	}
}

func TestPartitionNode(t *testing.T) {
	assert.Equal(t, "/dev/sda2", PartitionNode("/dev/sda", 2))
	assert.Equal(t, "/dev/nvme0n1p2", PartitionNode("/dev/nvme0n1", 2))
	assert.Equal(t, "/dev/mmcblk0p1", PartitionNode("/dev/mmcblk0", 1))
}

func TestDeviceOf(t *testing.T) {
	assert.Equal(t, "/dev/sda", DeviceOf("/dev/sda1"))
	assert.Equal(t, "/dev/nvme0n1", DeviceOf("/dev/nvme0n1p3"))
	assert.Equal(t, "/dev/mmcblk0", DeviceOf("/dev/mmcblk0p2"))
	assert.Equal(t, "/dev/sda", DeviceOf("/dev/sda"))
}

func TestFind(t *testing.T) {
	table := &Table{Partitions: []Entry{{Node: "/dev/sda1", Index: 1}}}

	_, ok := table.Find("/dev/sda2")
	assert.False(t, ok)

	e, ok := table.Find("/dev/sda1")
	assert.True(t, ok)
	assert.Equal(t, 1, e.Index)
}
