package configuration

import (
	"encoding/json"

	"github.com/buildbarn/bb-indexfs/pkg/sectorindex"
	"github.com/buildbarn/bb-storage/pkg/util"
	"github.com/google/go-jsonnet"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// ApplicationConfiguration of bb_indexfs. Every volume image is
// accompanied by the configuration with which it was created, as the
// geometry is not stored in the image itself.
type ApplicationConfiguration struct {
	// Path of the volume image.
	ImagePath string `json:"imagePath"`

	SectorSizeBytes   int    `json:"sectorSizeBytes"`
	DirectCapacity    int    `json:"directCapacity"`
	IndirectCapacity  int    `json:"indirectCapacity"`
	MaximumLevel      int    `json:"maximumLevel"`
	VolumeSectorCount uint32 `json:"volumeSectorCount"`

	// Either "tiered" or "maximum".
	LevelSelection string `json:"levelSelection"`

	// Maximum number of sectors that may be claimed while storing
	// files. Zero means no limit.
	MaximumSectors int64 `json:"maximumSectors"`

	// Maximum number of files whose contents are written in
	// parallel.
	MaximumConcurrentWrites int `json:"maximumConcurrentWrites"`
}

// GetIndexFSConfiguration reads the configuration from a Jsonnet file
// and fills in default values.
func GetIndexFSConfiguration(path string) (*ApplicationConfiguration, error) {
	vm := jsonnet.MakeVM()
	evaluated, err := vm.EvaluateFile(path)
	if err != nil {
		return nil, status.Errorf(codes.InvalidArgument, "Failed to evaluate configuration file %#v: %s", path, err)
	}
	configuration, err := unmarshalConfiguration([]byte(evaluated))
	if err != nil {
		return nil, util.StatusWrapf(err, "Failed to retrieve configuration from %#v", path)
	}
	return configuration, nil
}

func unmarshalConfiguration(data []byte) (*ApplicationConfiguration, error) {
	var configuration ApplicationConfiguration
	if err := json.Unmarshal(data, &configuration); err != nil {
		return nil, status.Errorf(codes.InvalidArgument, "Failed to unmarshal configuration: %s", err)
	}
	setDefaultIndexFSValues(&configuration)
	return &configuration, nil
}

func setDefaultIndexFSValues(configuration *ApplicationConfiguration) {
	if configuration.ImagePath == "" {
		configuration.ImagePath = "indexfs.img"
	}
	if configuration.SectorSizeBytes == 0 {
		configuration.SectorSizeBytes = 128
	}
	if configuration.DirectCapacity == 0 {
		configuration.DirectCapacity = 10
	}
	if configuration.IndirectCapacity == 0 {
		configuration.IndirectCapacity = 20
	}
	if configuration.MaximumLevel == 0 {
		configuration.MaximumLevel = 3
	}
	if configuration.VolumeSectorCount == 0 {
		configuration.VolumeSectorCount = 4096
	}
	if configuration.LevelSelection == "" {
		configuration.LevelSelection = "tiered"
	}
	if configuration.MaximumConcurrentWrites == 0 {
		configuration.MaximumConcurrentWrites = 4
	}
}

// NewGeometryFromConfiguration creates the geometry of the volume
// described by the configuration.
func NewGeometryFromConfiguration(configuration *ApplicationConfiguration) (*sectorindex.Geometry, error) {
	var levelSelection sectorindex.LevelSelection
	switch configuration.LevelSelection {
	case "tiered":
		levelSelection = sectorindex.LevelSelectionTiered
	case "maximum":
		levelSelection = sectorindex.LevelSelectionMaximum
	default:
		return nil, status.Errorf(codes.InvalidArgument, "Unknown level selection %#v", configuration.LevelSelection)
	}
	geometry, err := sectorindex.NewGeometry(sectorindex.GeometryParameters{
		SectorSizeBytes:   configuration.SectorSizeBytes,
		DirectCapacity:    configuration.DirectCapacity,
		IndirectCapacity:  configuration.IndirectCapacity,
		MaximumLevel:      configuration.MaximumLevel,
		VolumeSectorCount: configuration.VolumeSectorCount,
		LevelSelection:    levelSelection,
	})
	if err != nil {
		return nil, util.StatusWrap(err, "Invalid geometry")
	}
	return geometry, nil
}
