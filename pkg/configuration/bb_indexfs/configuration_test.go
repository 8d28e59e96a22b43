package configuration_test

import (
	"os"
	"path/filepath"
	"testing"

	configuration "github.com/buildbarn/bb-indexfs/pkg/configuration/bb_indexfs"
	"github.com/buildbarn/bb-storage/pkg/testutil"
	"github.com/stretchr/testify/require"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func writeConfigurationFile(t *testing.T, contents string) string {
	path := filepath.Join(t.TempDir(), "bb_indexfs.jsonnet")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))
	return path
}

func TestGetIndexFSConfiguration(t *testing.T) {
	t.Run("Defaults", func(t *testing.T) {
		c, err := configuration.GetIndexFSConfiguration(writeConfigurationFile(t, "{}"))
		require.NoError(t, err)
		require.Equal(t, &configuration.ApplicationConfiguration{
			ImagePath:               "indexfs.img",
			SectorSizeBytes:         128,
			DirectCapacity:          10,
			IndirectCapacity:        20,
			MaximumLevel:            3,
			VolumeSectorCount:       4096,
			LevelSelection:          "tiered",
			MaximumConcurrentWrites: 4,
		}, c)

		g, err := configuration.NewGeometryFromConfiguration(c)
		require.NoError(t, err)
		require.Equal(t, 32, g.PointersPerSector())
	})

	t.Run("Jsonnet", func(t *testing.T) {
		c, err := configuration.GetIndexFSConfiguration(writeConfigurationFile(t, `
local sectorSizeBytes = 512;
{
  imagePath: '/tmp/volume.img',
  sectorSizeBytes: sectorSizeBytes,
  directCapacity: 4,
  indirectCapacity: 2,
  maximumLevel: 2,
  volumeSectorCount: 64 * 1024 * 1024 / sectorSizeBytes,
  levelSelection: 'maximum',
  maximumSectors: 1000,
}`))
		require.NoError(t, err)
		require.Equal(t, &configuration.ApplicationConfiguration{
			ImagePath:               "/tmp/volume.img",
			SectorSizeBytes:         512,
			DirectCapacity:          4,
			IndirectCapacity:        2,
			MaximumLevel:            2,
			VolumeSectorCount:       131072,
			LevelSelection:          "maximum",
			MaximumSectors:          1000,
			MaximumConcurrentWrites: 4,
		}, c)

		g, err := configuration.NewGeometryFromConfiguration(c)
		require.NoError(t, err)
		require.Equal(t, int64(4+2*128*128), g.MaximumFileSectors())
	})

	t.Run("SyntaxError", func(t *testing.T) {
		_, err := configuration.GetIndexFSConfiguration(writeConfigurationFile(t, "{"))
		require.Equal(t, codes.InvalidArgument, status.Code(err))
	})

	t.Run("InvalidField", func(t *testing.T) {
		path := writeConfigurationFile(t, "{ sectorSizeBytes: 'large' }")
		_, err := configuration.GetIndexFSConfiguration(path)
		testutil.RequirePrefixedStatus(t, status.Errorf(codes.InvalidArgument, "Failed to retrieve configuration from %#v: Failed to unmarshal configuration: ", path), err)
	})
}

func TestNewGeometryFromConfiguration(t *testing.T) {
	t.Run("UnknownLevelSelection", func(t *testing.T) {
		_, err := configuration.NewGeometryFromConfiguration(&configuration.ApplicationConfiguration{
			SectorSizeBytes:   128,
			DirectCapacity:    10,
			IndirectCapacity:  20,
			MaximumLevel:      3,
			VolumeSectorCount: 1024,
			LevelSelection:    "shallowest",
		})
		testutil.RequireEqualStatus(t, status.Error(codes.InvalidArgument, "Unknown level selection \"shallowest\""), err)
	})

	t.Run("InvalidGeometry", func(t *testing.T) {
		_, err := configuration.NewGeometryFromConfiguration(&configuration.ApplicationConfiguration{
			SectorSizeBytes:   128,
			DirectCapacity:    10,
			IndirectCapacity:  20,
			MaximumLevel:      4,
			VolumeSectorCount: 1024,
			LevelSelection:    "tiered",
		})
		testutil.RequirePrefixedStatus(t, status.Error(codes.InvalidArgument, "Invalid geometry: "), err)
	})

	// Level selections map onto the ones of the sector index.
	c := &configuration.ApplicationConfiguration{
		SectorSizeBytes:   128,
		DirectCapacity:    10,
		IndirectCapacity:  20,
		MaximumLevel:      3,
		VolumeSectorCount: 1024,
		LevelSelection:    "maximum",
	}
	g, err := configuration.NewGeometryFromConfiguration(c)
	require.NoError(t, err)
	layout, err := g.Layout(2000)
	require.NoError(t, err)
	require.Equal(t, 3, layout.TopLevel)
}
