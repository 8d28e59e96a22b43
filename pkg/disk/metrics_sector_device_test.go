package disk_test

import (
	"testing"

	"github.com/buildbarn/bb-indexfs/internal/mock"
	"github.com/buildbarn/bb-indexfs/pkg/disk"
	"github.com/buildbarn/bb-storage/pkg/testutil"
	"github.com/stretchr/testify/require"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"go.uber.org/mock/gomock"
)

func TestMetricsSectorDevice(t *testing.T) {
	ctrl := gomock.NewController(t)

	baseSectorDevice := mock.NewMockSectorDevice(ctrl)
	sectorDevice := disk.NewMetricsSectorDevice(baseSectorDevice)

	t.Run("Geometry", func(t *testing.T) {
		baseSectorDevice.EXPECT().SectorSizeBytes().Return(512)
		baseSectorDevice.EXPECT().SectorCount().Return(uint32(100))

		require.Equal(t, 512, sectorDevice.SectorSizeBytes())
		require.Equal(t, uint32(100), sectorDevice.SectorCount())
	})

	t.Run("ReadSector", func(t *testing.T) {
		p := make([]byte, 512)
		baseSectorDevice.EXPECT().ReadSector(uint32(7), p)
		require.NoError(t, sectorDevice.ReadSector(7, p))

		baseSectorDevice.EXPECT().ReadSector(uint32(8), p).Return(status.Error(codes.Internal, "Disk on fire"))
		testutil.RequireEqualStatus(t, status.Error(codes.Internal, "Disk on fire"), sectorDevice.ReadSector(8, p))
	})

	t.Run("WriteSector", func(t *testing.T) {
		p := make([]byte, 512)
		baseSectorDevice.EXPECT().WriteSector(uint32(7), p)
		require.NoError(t, sectorDevice.WriteSector(7, p))
	})

	t.Run("Sync", func(t *testing.T) {
		baseSectorDevice.EXPECT().Sync().Return(status.Error(codes.Internal, "Disk on fire"))
		testutil.RequireEqualStatus(t, status.Error(codes.Internal, "Disk on fire"), sectorDevice.Sync())
	})

	t.Run("Close", func(t *testing.T) {
		baseSectorDevice.EXPECT().Close()
		require.NoError(t, sectorDevice.Close())
	})
}
