package disk

import (
	"io"

	"github.com/buildbarn/bb-storage/pkg/blockdevice"
	"github.com/buildbarn/bb-storage/pkg/util"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

type blockDeviceBackedSectorDevice struct {
	blockDevice     blockdevice.BlockDevice
	sectorSizeBytes int
	sectorCount     uint32
}

// NewBlockDeviceBackedSectorDevice creates a SectorDevice that stores
// sectors on a block device. Sector n is stored at byte offset
// n*sectorSizeBytes.
func NewBlockDeviceBackedSectorDevice(blockDevice blockdevice.BlockDevice, sectorSizeBytes int, sectorCount uint32) SectorDevice {
	return &blockDeviceBackedSectorDevice{
		blockDevice:     blockDevice,
		sectorSizeBytes: sectorSizeBytes,
		sectorCount:     sectorCount,
	}
}

// checkAccess validates the arguments of ReadSector() and
// WriteSector(), returning the byte offset of the sector on the
// block device.
func (sd *blockDeviceBackedSectorDevice) checkAccess(sector uint32, p []byte) (int64, error) {
	if len(p) != sd.sectorSizeBytes {
		return 0, status.Errorf(codes.InvalidArgument, "Buffer is %d bytes in size, while sectors are %d bytes in size", len(p), sd.sectorSizeBytes)
	}
	if sector >= sd.sectorCount {
		return 0, status.Errorf(codes.OutOfRange, "Sector %d lies beyond the end of the volume, which has %d sectors", sector, sd.sectorCount)
	}
	return int64(sector) * int64(sd.sectorSizeBytes), nil
}

func (sd *blockDeviceBackedSectorDevice) ReadSector(sector uint32, p []byte) error {
	offset, err := sd.checkAccess(sector, p)
	if err != nil {
		return err
	}
	n, err := sd.blockDevice.ReadAt(p, offset)
	if err != nil && err != io.EOF {
		return util.StatusWrapf(err, "Failed to read sector %d", sector)
	}
	if n != len(p) {
		return status.Errorf(codes.Internal, "Read of sector %d returned %d bytes, while %d bytes were expected", sector, n, len(p))
	}
	return nil
}

func (sd *blockDeviceBackedSectorDevice) WriteSector(sector uint32, p []byte) error {
	offset, err := sd.checkAccess(sector, p)
	if err != nil {
		return err
	}
	n, err := sd.blockDevice.WriteAt(p, offset)
	if err != nil {
		return util.StatusWrapf(err, "Failed to write sector %d", sector)
	}
	if n != len(p) {
		return status.Errorf(codes.Internal, "Write of sector %d stored %d bytes, while %d bytes were expected", sector, n, len(p))
	}
	return nil
}

func (sd *blockDeviceBackedSectorDevice) Sync() error {
	return sd.blockDevice.Sync()
}

func (sd *blockDeviceBackedSectorDevice) Close() error {
	return sd.blockDevice.Close()
}

func (sd *blockDeviceBackedSectorDevice) SectorSizeBytes() int {
	return sd.sectorSizeBytes
}

func (sd *blockDeviceBackedSectorDevice) SectorCount() uint32 {
	return sd.sectorCount
}
