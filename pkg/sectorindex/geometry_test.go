package sectorindex_test

import (
	"testing"

	"github.com/buildbarn/bb-indexfs/pkg/sectorindex"
	"github.com/buildbarn/bb-storage/pkg/testutil"
	"github.com/stretchr/testify/require"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// newSmallGeometry creates a geometry with tiny sectors. It allows
// exercising every level of indirection with small files.
func newSmallGeometry(t *testing.T, levelSelection sectorindex.LevelSelection, volumeSectorCount uint32) *sectorindex.Geometry {
	g, err := sectorindex.NewGeometry(sectorindex.GeometryParameters{
		SectorSizeBytes:   16,
		DirectCapacity:    1,
		IndirectCapacity:  1,
		MaximumLevel:      3,
		VolumeSectorCount: volumeSectorCount,
		LevelSelection:    levelSelection,
	})
	require.NoError(t, err)
	return g
}

// newLargeGeometry creates a geometry with 128 byte sectors, ten
// direct pointers and 32 pointers per indirection node.
func newLargeGeometry(t *testing.T, levelSelection sectorindex.LevelSelection, volumeSectorCount uint32) *sectorindex.Geometry {
	g, err := sectorindex.NewGeometry(sectorindex.GeometryParameters{
		SectorSizeBytes:   128,
		DirectCapacity:    10,
		IndirectCapacity:  20,
		MaximumLevel:      3,
		VolumeSectorCount: volumeSectorCount,
		LevelSelection:    levelSelection,
	})
	require.NoError(t, err)
	return g
}

func TestNewGeometry(t *testing.T) {
	valid := sectorindex.GeometryParameters{
		SectorSizeBytes:   128,
		DirectCapacity:    10,
		IndirectCapacity:  20,
		MaximumLevel:      3,
		VolumeSectorCount: 1024,
	}

	t.Run("Valid", func(t *testing.T) {
		g, err := sectorindex.NewGeometry(valid)
		require.NoError(t, err)
		require.Equal(t, 128, g.SectorSizeBytes())
		require.Equal(t, 10, g.DirectCapacity())
		require.Equal(t, 20, g.IndirectCapacity())
		require.Equal(t, 32, g.PointersPerSector())
		require.Equal(t, 3, g.MaximumLevel())
		require.Equal(t, uint32(1024), g.VolumeSectorCount())
		require.Equal(t, int64(1), g.Capacity(0))
		require.Equal(t, int64(32), g.Capacity(1))
		require.Equal(t, int64(1024), g.Capacity(2))
		require.Equal(t, int64(32768), g.Capacity(3))
		require.Equal(t, int64(10+20*32768), g.MaximumFileSectors())
		require.Equal(t, int64((10+20*32768)*128), g.MaximumFileSizeBytes())
	})

	t.Run("MaximumFileSizeLimitedByHeaderFormat", func(t *testing.T) {
		parameters := valid
		parameters.SectorSizeBytes = 4096
		parameters.IndirectCapacity = 100
		g, err := sectorindex.NewGeometry(parameters)
		require.NoError(t, err)
		require.Equal(t, int64(2147483647), g.MaximumFileSizeBytes())
	})

	t.Run("LargeSectorsCapacityClamped", func(t *testing.T) {
		// With 1 MiB sectors, a level 3 node could address 2^54
		// sectors. Multiplying that by the number of indirect
		// pointers would overflow. Capacities are clamped, so
		// that the limits remain correct.
		parameters := valid
		parameters.SectorSizeBytes = 1 << 20
		parameters.IndirectCapacity = 1024
		parameters.VolumeSectorCount = 1 << 20
		g, err := sectorindex.NewGeometry(parameters)
		require.NoError(t, err)
		require.Equal(t, 262144, g.PointersPerSector())
		require.Equal(t, int64(262144), g.Capacity(1))
		require.Equal(t, int64(2147483647), g.Capacity(2))
		require.Equal(t, int64(2147483647), g.Capacity(3))
		require.Equal(t, int64(10+1024*2147483647), g.MaximumFileSectors())
		require.Equal(t, int64(2147483647), g.MaximumFileSizeBytes())

		layout, err := g.Layout(20 << 20)
		require.NoError(t, err)
		require.Equal(t, sectorindex.Layout{
			FileSizeBytes:       20 << 20,
			DataSectors:         20,
			DirectSectors:       10,
			IndirectDataSectors: 10,
			TopLevel:            1,
			TopLevelNodes:       1,
			IndexSectors:        1,
		}, layout)

		layout, err = g.Layout(2147483647)
		require.NoError(t, err)
		require.Equal(t, int64(2048), layout.DataSectors)
		require.Equal(t, 1, layout.TopLevel)
		require.Equal(t, int64(1), layout.IndexSectors)

		parameters.LevelSelection = sectorindex.LevelSelectionMaximum
		g, err = sectorindex.NewGeometry(parameters)
		require.NoError(t, err)
		layout, err = g.Layout(20 << 20)
		require.NoError(t, err)
		require.Equal(t, 3, layout.TopLevel)
		require.Equal(t, 1, layout.TopLevelNodes)
		require.Equal(t, int64(3), layout.IndexSectors)
	})

	for name, tc := range map[string]struct {
		modify   func(p *sectorindex.GeometryParameters)
		expected error
	}{
		"ZeroSectorSize": {
			modify:   func(p *sectorindex.GeometryParameters) { p.SectorSizeBytes = 0 },
			expected: status.Error(codes.InvalidArgument, "Sector size must be between 1 and 1048576 bytes, while it is 0 bytes"),
		},
		"UnalignedSectorSize": {
			modify:   func(p *sectorindex.GeometryParameters) { p.SectorSizeBytes = 130 },
			expected: status.Error(codes.InvalidArgument, "Sector size of 130 bytes is not a multiple of the pointer size of 4 bytes"),
		},
		"TinySectorSize": {
			modify:   func(p *sectorindex.GeometryParameters) { p.SectorSizeBytes = 4 },
			expected: status.Error(codes.InvalidArgument, "Sectors of 4 bytes can only hold 1 pointers, while at least 2 are needed"),
		},
		"NegativeCapacity": {
			modify:   func(p *sectorindex.GeometryParameters) { p.DirectCapacity = -1 },
			expected: status.Error(codes.InvalidArgument, "Pointer capacities cannot be negative"),
		},
		"HeaderTooLarge": {
			modify:   func(p *sectorindex.GeometryParameters) { p.IndirectCapacity = 21 },
			expected: status.Error(codes.InvalidArgument, "Header with 10 direct and 21 indirect pointers requires 132 bytes, which exceeds the sector size of 128 bytes"),
		},
		"NoIndirection": {
			modify:   func(p *sectorindex.GeometryParameters) { p.MaximumLevel = 0 },
			expected: status.Error(codes.InvalidArgument, "Maximum level of indirection must be between 1 and 3, while it is 0"),
		},
		"TooManyLevels": {
			modify:   func(p *sectorindex.GeometryParameters) { p.MaximumLevel = 4 },
			expected: status.Error(codes.InvalidArgument, "Maximum level of indirection must be between 1 and 3, while it is 4"),
		},
		"VolumeTooLarge": {
			modify:   func(p *sectorindex.GeometryParameters) { p.VolumeSectorCount = 1 << 31 },
			expected: status.Error(codes.InvalidArgument, "Volume has 2147483648 sectors, while only 2147483647 sectors may be addressed"),
		},
		"UnknownLevelSelection": {
			modify:   func(p *sectorindex.GeometryParameters) { p.LevelSelection = 7 },
			expected: status.Error(codes.InvalidArgument, "Unknown level selection 7"),
		},
	} {
		t.Run(name, func(t *testing.T) {
			parameters := valid
			tc.modify(&parameters)
			_, err := sectorindex.NewGeometry(parameters)
			testutil.RequireEqualStatus(t, tc.expected, err)
		})
	}
}

func TestGeometryLayout(t *testing.T) {
	t.Run("Tiered", func(t *testing.T) {
		g := newSmallGeometry(t, sectorindex.LevelSelectionTiered, 1000)
		for _, tc := range []struct {
			dataSectors   int64
			topLevel      int
			topLevelNodes int
			indexSectors  int64
		}{
			{0, 0, 0, 0},
			{1, 0, 0, 0},
			{2, 1, 1, 1},
			{5, 1, 1, 1},
			// Five sectors remain: one level 2 node with two
			// level 1 children.
			{6, 2, 1, 3},
			{17, 2, 1, 5},
			// Seventeen sectors remain: one level 3 node, one
			// full level 2 node and one level 2 node with a
			// single level 1 child.
			{18, 3, 1, 8},
			{65, 3, 1, 21},
		} {
			layout, err := g.Layout(tc.dataSectors * 16)
			require.NoError(t, err)
			require.Equal(t, tc.dataSectors, layout.DataSectors)
			require.Equal(t, min(tc.dataSectors, 1), layout.DirectSectors)
			require.Equal(t, tc.dataSectors-layout.DirectSectors, layout.IndirectDataSectors)
			require.Equal(t, tc.topLevel, layout.TopLevel, "data sectors %d", tc.dataSectors)
			require.Equal(t, tc.topLevelNodes, layout.TopLevelNodes, "data sectors %d", tc.dataSectors)
			require.Equal(t, tc.indexSectors, layout.IndexSectors, "data sectors %d", tc.dataSectors)
			require.Equal(t, tc.dataSectors+tc.indexSectors, layout.TotalSectors())
		}
	})

	t.Run("Maximum", func(t *testing.T) {
		g := newSmallGeometry(t, sectorindex.LevelSelectionMaximum, 1000)
		for _, tc := range []struct {
			dataSectors  int64
			topLevel     int
			indexSectors int64
		}{
			{1, 0, 0},
			{2, 3, 3},
			{6, 3, 4},
			{65, 3, 21},
		} {
			layout, err := g.Layout(tc.dataSectors * 16)
			require.NoError(t, err)
			require.Equal(t, tc.topLevel, layout.TopLevel, "data sectors %d", tc.dataSectors)
			require.Equal(t, tc.indexSectors, layout.IndexSectors, "data sectors %d", tc.dataSectors)
		}
	})

	t.Run("PartialSectors", func(t *testing.T) {
		g := newLargeGeometry(t, sectorindex.LevelSelectionTiered, 1000)
		layout, err := g.Layout(2000)
		require.NoError(t, err)
		require.Equal(t, sectorindex.Layout{
			FileSizeBytes:       2000,
			DataSectors:         16,
			DirectSectors:       10,
			IndirectDataSectors: 6,
			TopLevel:            1,
			TopLevelNodes:       1,
			IndexSectors:        1,
		}, layout)
	})

	t.Run("MultipleTopLevelNodes", func(t *testing.T) {
		// 10 direct sectors and 70 sectors through three level
		// 1 nodes, as 70 <= 20*32.
		g := newLargeGeometry(t, sectorindex.LevelSelectionTiered, 1000)
		layout, err := g.Layout(80 * 128)
		require.NoError(t, err)
		require.Equal(t, 1, layout.TopLevel)
		require.Equal(t, 3, layout.TopLevelNodes)
		require.Equal(t, int64(3), layout.IndexSectors)

		// 10 direct sectors and 641 sectors, which no longer
		// fits in 20 level 1 nodes.
		layout, err = g.Layout(651 * 128)
		require.NoError(t, err)
		require.Equal(t, 2, layout.TopLevel)
		require.Equal(t, 1, layout.TopLevelNodes)
		require.Equal(t, int64(1+21), layout.IndexSectors)
	})

	t.Run("Errors", func(t *testing.T) {
		g := newSmallGeometry(t, sectorindex.LevelSelectionTiered, 1000)
		_, err := g.Layout(-1)
		testutil.RequireEqualStatus(t, status.Error(codes.InvalidArgument, "Negative file size: -1"), err)

		_, err = g.Layout(65*16 + 1)
		testutil.RequireEqualStatus(t, status.Error(codes.InvalidArgument, "File size of 1041 bytes exceeds the maximum file size of 1040 bytes"), err)
	})
}
