package disk

import (
	"os"

	"github.com/buildbarn/bb-storage/pkg/util"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// NewFileBackedSectorDevice opens a volume image stored in a regular
// file. When create is set, the file is created or truncated and
// resized to hold exactly sectorCount sectors. Otherwise the file must
// already be large enough to hold all sectors. On UNIX-like systems an
// exclusive lock is held on the file until it is closed.
//
// *os.File already provides ReadAt(), WriteAt(), Sync() and Close(),
// meaning it can be used as a BlockDevice directly. Closing the
// SectorDevice closes the file.
func NewFileBackedSectorDevice(path string, sectorSizeBytes int, sectorCount uint32, create bool) (SectorDevice, error) {
	flags := os.O_RDWR
	if create {
		flags |= os.O_CREATE
	}
	f, err := os.OpenFile(path, flags, 0o666)
	if err != nil {
		return nil, util.StatusWrapf(err, "Failed to open volume image %#v", path)
	}
	if err := lockVolumeImage(f); err != nil {
		f.Close()
		return nil, err
	}

	sizeBytes := int64(sectorSizeBytes) * int64(sectorCount)
	if create {
		// The file is only truncated after the lock is acquired.
		if err := f.Truncate(0); err != nil {
			f.Close()
			return nil, util.StatusWrapf(err, "Failed to truncate volume image %#v", path)
		}
		if err := f.Truncate(sizeBytes); err != nil {
			f.Close()
			return nil, util.StatusWrapf(err, "Failed to resize volume image %#v to %d bytes", path, sizeBytes)
		}
	} else {
		info, err := f.Stat()
		if err != nil {
			f.Close()
			return nil, util.StatusWrapf(err, "Failed to obtain size of volume image %#v", path)
		}
		if info.Size() < sizeBytes {
			f.Close()
			return nil, status.Errorf(codes.InvalidArgument, "Volume image %#v is %d bytes in size, while at least %d bytes are required", path, info.Size(), sizeBytes)
		}
	}
	return NewBlockDeviceBackedSectorDevice(f, sectorSizeBytes, sectorCount), nil
}
