//go:build unix

package disk_test

import (
	"path/filepath"
	"testing"

	"github.com/buildbarn/bb-indexfs/pkg/disk"
	"github.com/stretchr/testify/require"
)

func TestFileBackedSectorDeviceLocking(t *testing.T) {
	path := filepath.Join(t.TempDir(), "volume.img")
	sectorDevice, err := disk.NewFileBackedSectorDevice(path, 32, 10, true)
	require.NoError(t, err)

	// The volume image cannot be opened a second time while in use.
	_, err = disk.NewFileBackedSectorDevice(path, 32, 10, false)
	require.ErrorContains(t, err, "Failed to lock volume image")

	require.NoError(t, sectorDevice.Close())
	sectorDevice, err = disk.NewFileBackedSectorDevice(path, 32, 10, false)
	require.NoError(t, err)
	require.NoError(t, sectorDevice.Close())
}
