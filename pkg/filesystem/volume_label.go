package filesystem

import (
	"encoding/binary"

	"github.com/buildbarn/bb-indexfs/pkg/allocator"
	"github.com/buildbarn/bb-indexfs/pkg/disk"
	"github.com/buildbarn/bb-indexfs/pkg/sectorindex"
	"github.com/buildbarn/bb-storage/pkg/util"
	"github.com/google/uuid"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// VolumeLabelSector is the sector at which the volume label is stored.
// It is never handed out by the allocator.
const VolumeLabelSector = 0

const volumeLabelFixedSizeBytes = 16 + 4

// VolumeLabel is stored in the first sector of a volume. It contains
// an identifier of the volume and the list of files stored on it,
// identified by the sectors holding their headers.
type VolumeLabel struct {
	VolumeID      uuid.UUID
	HeaderSectors []uint32
}

// MaximumVolumeLabelFiles returns the number of files that can be
// listed in the volume label, given a sector size.
func MaximumVolumeLabelFiles(sectorSizeBytes int) int {
	return max(sectorSizeBytes-volumeLabelFixedSizeBytes, 0) / 4
}

func checkVolumeLabelSectorSize(sectorSizeBytes int) error {
	if sectorSizeBytes < volumeLabelFixedSizeBytes {
		return status.Errorf(codes.InvalidArgument, "Sectors of %d bytes are too small to hold a volume label", sectorSizeBytes)
	}
	return nil
}

// WriteVolumeLabel writes a volume label to the first sector of a
// volume.
func WriteVolumeLabel(device disk.SectorDevice, label *VolumeLabel) error {
	sectorSizeBytes := device.SectorSizeBytes()
	if err := checkVolumeLabelSectorSize(sectorSizeBytes); err != nil {
		return err
	}
	if maximumFiles := MaximumVolumeLabelFiles(sectorSizeBytes); len(label.HeaderSectors) > maximumFiles {
		return status.Errorf(codes.InvalidArgument, "Volume label can list at most %d files, while %d files were provided", maximumFiles, len(label.HeaderSectors))
	}
	b := make([]byte, sectorSizeBytes)
	copy(b, label.VolumeID[:])
	binary.LittleEndian.PutUint32(b[16:], uint32(len(label.HeaderSectors)))
	for i, headerSector := range label.HeaderSectors {
		binary.LittleEndian.PutUint32(b[volumeLabelFixedSizeBytes+4*i:], headerSector)
	}
	if err := device.WriteSector(VolumeLabelSector, b); err != nil {
		return util.StatusWrap(err, "Failed to write volume label")
	}
	return nil
}

// ReadVolumeLabel reads the volume label from the first sector of a
// volume.
func ReadVolumeLabel(device disk.SectorDevice) (*VolumeLabel, error) {
	sectorSizeBytes := device.SectorSizeBytes()
	if err := checkVolumeLabelSectorSize(sectorSizeBytes); err != nil {
		return nil, err
	}
	b := make([]byte, sectorSizeBytes)
	if err := device.ReadSector(VolumeLabelSector, b); err != nil {
		return nil, util.StatusWrap(err, "Failed to read volume label")
	}

	var label VolumeLabel
	copy(label.VolumeID[:], b)
	if label.VolumeID == uuid.Nil {
		return nil, status.Error(codes.DataLoss, "Volume label does not contain a volume ID")
	}
	fileCount := binary.LittleEndian.Uint32(b[16:])
	if maximumFiles := MaximumVolumeLabelFiles(sectorSizeBytes); fileCount > uint32(maximumFiles) {
		return nil, status.Errorf(codes.DataLoss, "Volume label lists %d files, while at most %d files can be listed", fileCount, maximumFiles)
	}
	label.HeaderSectors = make([]uint32, 0, fileCount)
	for i := 0; i < int(fileCount); i++ {
		label.HeaderSectors = append(label.HeaderSectors, binary.LittleEndian.Uint32(b[volumeLabelFixedSizeBytes+4*i:]))
	}
	return &label, nil
}

// NewVolumeFreeSectorAllocator creates a FreeSectorAllocator for a
// volume that was written previously. The volume label, the headers
// of all files listed in it, and all sectors referenced by these
// headers are marked as being in use.
func NewVolumeFreeSectorAllocator(device disk.SectorDevice, geometry *sectorindex.Geometry, label *VolumeLabel) (allocator.FreeSectorAllocator, error) {
	owners := map[uint32]uint32{}
	reservedSectors := []uint32{VolumeLabelSector}
	for _, headerSector := range label.HeaderSectors {
		h := sectorindex.NewHeader(geometry)
		if err := h.FetchFrom(device, headerSector); err != nil {
			return nil, util.StatusWrapf(err, "Failed to fetch header of file in sector %d", headerSector)
		}
		sectors := append(append([]uint32{headerSector}, h.DataSectors()...), h.IndexSectors()...)
		for _, sector := range sectors {
			if sector == VolumeLabelSector {
				return nil, status.Errorf(codes.DataLoss, "File with header in sector %d uses sector %d, which holds the volume label", headerSector, sector)
			}
			if owner, ok := owners[sector]; ok {
				return nil, status.Errorf(codes.DataLoss, "Sector %d is used by both the files with headers in sectors %d and %d", sector, owner, headerSector)
			}
			owners[sector] = headerSector
		}
		reservedSectors = append(reservedSectors, sectors...)
	}
	return allocator.NewBitmapFreeSectorAllocator(geometry.VolumeSectorCount(), reservedSectors), nil
}
