package main

import (
	"context"
	"strconv"

	"github.com/buildbarn/bb-indexfs/pkg/allocator"
	configuration "github.com/buildbarn/bb-indexfs/pkg/configuration/bb_indexfs"
	"github.com/buildbarn/bb-indexfs/pkg/disk"
	"github.com/buildbarn/bb-indexfs/pkg/filesystem"
	"github.com/buildbarn/bb-indexfs/pkg/sectorindex"
	"github.com/buildbarn/bb-storage/pkg/util"

	"go.opentelemetry.io/otel"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// volume is an opened volume image, together with the services used
// to manage the files stored on it.
type volume struct {
	device          disk.SectorDevice
	geometry        *sectorindex.Geometry
	label           *filesystem.VolumeLabel
	sectorAllocator allocator.FreeSectorAllocator
	fileStore       filesystem.FileStore
}

func newVolume(c *configuration.ApplicationConfiguration, device disk.SectorDevice, geometry *sectorindex.Geometry, label *filesystem.VolumeLabel, sectorAllocator allocator.FreeSectorAllocator) *volume {
	sectorAllocator = allocator.NewMetricsFreeSectorAllocator(sectorAllocator)
	if c.MaximumSectors > 0 {
		sectorAllocator = allocator.NewQuotaEnforcingFreeSectorAllocator(sectorAllocator, c.MaximumSectors)
	}
	return &volume{
		device:          device,
		geometry:        geometry,
		label:           label,
		sectorAllocator: sectorAllocator,
		fileStore: filesystem.NewTracingFileStore(
			filesystem.NewMetricsFileStore(
				filesystem.NewSectorIndexFileStore(device, sectorAllocator, geometry)),
			otel.GetTracerProvider()),
	}
}

// createVolume creates a new, empty volume image.
func createVolume(c *configuration.ApplicationConfiguration, label *filesystem.VolumeLabel) (*volume, error) {
	geometry, err := configuration.NewGeometryFromConfiguration(c)
	if err != nil {
		return nil, err
	}
	device, err := disk.NewFileBackedSectorDevice(c.ImagePath, c.SectorSizeBytes, c.VolumeSectorCount, true)
	if err != nil {
		return nil, err
	}
	device = disk.NewMetricsSectorDevice(device)
	sectorAllocator := allocator.NewBitmapFreeSectorAllocator(c.VolumeSectorCount, []uint32{filesystem.VolumeLabelSector})
	return newVolume(c, device, geometry, label, sectorAllocator), nil
}

// openVolume opens an existing volume image. The set of sectors in use
// is reconstructed from the headers of the files listed in the volume
// label.
func openVolume(c *configuration.ApplicationConfiguration) (*volume, error) {
	geometry, err := configuration.NewGeometryFromConfiguration(c)
	if err != nil {
		return nil, err
	}
	device, err := disk.NewFileBackedSectorDevice(c.ImagePath, c.SectorSizeBytes, c.VolumeSectorCount, false)
	if err != nil {
		return nil, err
	}
	device = disk.NewMetricsSectorDevice(device)
	label, err := filesystem.ReadVolumeLabel(device)
	if err != nil {
		device.Close()
		return nil, err
	}
	sectorAllocator, err := filesystem.NewVolumeFreeSectorAllocator(device, geometry, label)
	if err != nil {
		device.Close()
		return nil, err
	}
	return newVolume(c, device, geometry, label, sectorAllocator), nil
}

// commit writes the volume label and flushes all writes to the image.
func (v *volume) commit() error {
	if err := filesystem.WriteVolumeLabel(v.device, v.label); err != nil {
		return err
	}
	if err := v.device.Sync(); err != nil {
		return util.StatusWrap(err, "Failed to synchronize volume image")
	}
	return nil
}

func (v *volume) close() error {
	return v.device.Close()
}

// getFile parses an index into the list of files stored on the volume
// and opens the corresponding file.
func (v *volume) getFile(ctx context.Context, indexString string) (int, *filesystem.OpenFile, error) {
	index, err := strconv.Atoi(indexString)
	if err != nil {
		return 0, nil, status.Errorf(codes.InvalidArgument, "Invalid file index %#v", indexString)
	}
	if index < 0 || index >= len(v.label.HeaderSectors) {
		return 0, nil, status.Errorf(codes.NotFound, "File index %d is out of range, as the volume contains %d files", index, len(v.label.HeaderSectors))
	}
	headerSector := v.label.HeaderSectors[index]
	f, err := v.fileStore.Open(ctx, headerSector)
	if err != nil {
		return 0, nil, util.StatusWrapf(err, "Failed to open file %d with header in sector %d", index, headerSector)
	}
	return index, f, nil
}
