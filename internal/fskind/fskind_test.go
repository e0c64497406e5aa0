package fskind

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse_RoundTrips(t *testing.T) {
	for _, k := range append(Targets(), NTFS) {
		parsed, err := Parse(k.String())
		require.NoError(t, err)
		assert.Equal(t, k, parsed)
	}
}

func TestParse_Unknown(t *testing.T) {
	_, err := Parse("zfs")
	assert.Error(t, err, "unsupported kinds must not parse")
}

func TestResizeRequiresMount(t *testing.T) {
	mounted := map[Kind]bool{
		Ext4:     false,
		Btrfs:    true,
		XFS:      true,
		F2FS:     false,
		ReiserFS: false,
		JFS:      false,
	}
	for k, want := range mounted {
		assert.Equal(t, want, k.ResizeRequiresMount(), "kind %s", k)
	}
}

func TestMkfsArgv(t *testing.T) {
	argv, err := Ext4.MkfsArgv("/dev/sda2")
	require.NoError(t, err)
	assert.Equal(t, []string{"mkfs.ext4", "-F", "/dev/sda2"}, argv)

	_, err = Unknown.MkfsArgv("/dev/sda2")
	assert.Error(t, err)
}

func TestGrowArgv_MountedKindsUseMountpoint(t *testing.T) {
	argv, err := Btrfs.GrowArgv("/dev/sda2", "/mnt/target")
	require.NoError(t, err)
	assert.Contains(t, argv, "/mnt/target")

	argv, err = Ext4.GrowArgv("/dev/sda2", "/mnt/target")
	require.NoError(t, err)
	assert.Contains(t, argv, "/dev/sda2")
	assert.NotContains(t, argv, "/mnt/target")
}

func TestShrinkNTFSArgv(t *testing.T) {
	argv := ShrinkNTFSArgv("/dev/sda1", 1024, false)
	assert.Equal(t, []string{"ntfsresize", "--force", "--size", "1024k", "/dev/sda1"}, argv)

	argv = ShrinkNTFSArgv("/dev/sda1", 1024, true)
	assert.Contains(t, argv, "--no-action")
}
