package disk_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/buildbarn/bb-indexfs/pkg/disk"
	"github.com/buildbarn/bb-storage/pkg/testutil"
	"github.com/stretchr/testify/require"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func TestFileBackedSectorDevice(t *testing.T) {
	path := filepath.Join(t.TempDir(), "volume.img")

	t.Run("OpenNonExistent", func(t *testing.T) {
		_, err := disk.NewFileBackedSectorDevice(path, 32, 10, false)
		require.Error(t, err)
	})

	t.Run("CreateAndReopen", func(t *testing.T) {
		sectorDevice, err := disk.NewFileBackedSectorDevice(path, 32, 10, true)
		require.NoError(t, err)
		sector := make([]byte, 32)
		copy(sector, "Persisted sector contents")
		require.NoError(t, sectorDevice.WriteSector(9, sector))
		require.NoError(t, sectorDevice.Sync())
		require.NoError(t, sectorDevice.Close())

		info, err := os.Stat(path)
		require.NoError(t, err)
		require.Equal(t, int64(320), info.Size())

		sectorDevice, err = disk.NewFileBackedSectorDevice(path, 32, 10, false)
		require.NoError(t, err)
		p := make([]byte, 32)
		require.NoError(t, sectorDevice.ReadSector(9, p))
		require.Equal(t, sector, p)
		require.NoError(t, sectorDevice.Close())
	})

	t.Run("TooSmall", func(t *testing.T) {
		_, err := disk.NewFileBackedSectorDevice(path, 32, 11, false)
		testutil.RequireEqualStatus(
			t,
			status.Errorf(codes.InvalidArgument, "Volume image %#v is 320 bytes in size, while at least 352 bytes are required", path),
			err)
	})
}
