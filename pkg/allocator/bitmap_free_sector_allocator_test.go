package allocator_test

import (
	"testing"

	"github.com/buildbarn/bb-indexfs/pkg/allocator"
	"github.com/buildbarn/bb-storage/pkg/testutil"
	"github.com/stretchr/testify/require"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func TestBitmapFreeSectorAllocatorExample(t *testing.T) {
	sectorAllocator := allocator.NewBitmapFreeSectorAllocator(200, nil)
	require.Equal(t, 200, sectorAllocator.ClearCount())

	// Claim all sectors. They should be handed out sequentially.
	for i := uint32(0); i < 200; i++ {
		sector, err := sectorAllocator.FindAndSet()
		require.NoError(t, err)
		require.Equal(t, i, sector)
		require.True(t, sectorAllocator.Test(sector))
	}
	require.Equal(t, 0, sectorAllocator.ClearCount())

	// Claiming successive sectors should fail.
	_, err := sectorAllocator.FindAndSet()
	testutil.RequireEqualStatus(t, status.Error(codes.ResourceExhausted, "No free sectors available"), err)

	// Free up some sectors here and there.
	for _, sector := range []uint32{150, 3, 64, 199, 63} {
		sectorAllocator.Clear(sector)
		require.False(t, sectorAllocator.Test(sector))
	}
	require.Equal(t, 5, sectorAllocator.ClearCount())

	// Attempt to claim these holes again. They should be returned
	// in increasing order.
	for _, expectedSector := range []uint32{3, 63, 64, 150, 199} {
		sector, err := sectorAllocator.FindAndSet()
		require.NoError(t, err)
		require.Equal(t, expectedSector, sector)
	}
	_, err = sectorAllocator.FindAndSet()
	testutil.RequireEqualStatus(t, status.Error(codes.ResourceExhausted, "No free sectors available"), err)
}

func TestBitmapFreeSectorAllocatorContinuesWhereLeftOff(t *testing.T) {
	sectorAllocator := allocator.NewBitmapFreeSectorAllocator(10, nil)
	for i := uint32(0); i < 5; i++ {
		sector, err := sectorAllocator.FindAndSet()
		require.NoError(t, err)
		require.Equal(t, i, sector)
	}

	// A sector that is freed behind the cursor is only reused
	// after the end of the volume is reached.
	sectorAllocator.Clear(1)
	for _, expectedSector := range []uint32{5, 6, 7, 8, 9, 1} {
		sector, err := sectorAllocator.FindAndSet()
		require.NoError(t, err)
		require.Equal(t, expectedSector, sector)
	}
}

func TestBitmapFreeSectorAllocatorReservedSectors(t *testing.T) {
	sectorAllocator := allocator.NewBitmapFreeSectorAllocator(4, []uint32{0, 2, 2})
	require.Equal(t, 2, sectorAllocator.ClearCount())
	require.True(t, sectorAllocator.Test(0))
	require.False(t, sectorAllocator.Test(1))
	require.True(t, sectorAllocator.Test(2))

	for _, expectedSector := range []uint32{1, 3} {
		sector, err := sectorAllocator.FindAndSet()
		require.NoError(t, err)
		require.Equal(t, expectedSector, sector)
	}
	_, err := sectorAllocator.FindAndSet()
	testutil.RequireEqualStatus(t, status.Error(codes.ResourceExhausted, "No free sectors available"), err)
}

func TestBitmapFreeSectorAllocatorInvalidClear(t *testing.T) {
	sectorAllocator := allocator.NewBitmapFreeSectorAllocator(100, nil)

	require.PanicsWithValue(t, "Attempted to free sector 7, even though it's not allocated", func() {
		sectorAllocator.Clear(7)
	})
	require.PanicsWithValue(t, "Attempted to free sector 100, even though the volume only has 100 sectors", func() {
		sectorAllocator.Clear(100)
	})
	require.False(t, sectorAllocator.Test(100))
}
