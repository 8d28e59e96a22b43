package allocator

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestMetricsFreeSectorAllocator(t *testing.T) {
	sectorAllocator := NewMetricsFreeSectorAllocator(NewBitmapFreeSectorAllocator(2, nil))
	claimedBefore := testutil.ToFloat64(freeSectorAllocatorSectorsClaimed)
	clearedBefore := testutil.ToFloat64(freeSectorAllocatorSectorsCleared)
	failuresBefore := testutil.ToFloat64(freeSectorAllocatorClaimFailures)

	first, err := sectorAllocator.FindAndSet()
	require.NoError(t, err)
	_, err = sectorAllocator.FindAndSet()
	require.NoError(t, err)
	_, err = sectorAllocator.FindAndSet()
	require.Error(t, err)
	sectorAllocator.Clear(first)

	require.Equal(t, claimedBefore+2, testutil.ToFloat64(freeSectorAllocatorSectorsClaimed))
	require.Equal(t, clearedBefore+1, testutil.ToFloat64(freeSectorAllocatorSectorsCleared))
	require.Equal(t, failuresBefore+1, testutil.ToFloat64(freeSectorAllocatorClaimFailures))
	require.Equal(t, 1, sectorAllocator.ClearCount())
}
