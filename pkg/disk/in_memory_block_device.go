package disk

import (
	"io"

	"github.com/buildbarn/bb-storage/pkg/blockdevice"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

type inMemoryBlockDevice struct {
	data []byte
}

// NewInMemoryBlockDevice creates a zero initialized BlockDevice of a
// fixed size that is backed by memory. It can be used to build
// scratch volumes that don't need to outlive the process.
func NewInMemoryBlockDevice(sizeBytes int) blockdevice.BlockDevice {
	return &inMemoryBlockDevice{
		data: make([]byte, sizeBytes),
	}
}

func (bd *inMemoryBlockDevice) ReadAt(p []byte, off int64) (int, error) {
	if off < 0 {
		return 0, status.Errorf(codes.InvalidArgument, "Negative read offset: %d", off)
	}
	if off >= int64(len(bd.data)) {
		return 0, io.EOF
	}
	n := copy(p, bd.data[off:])
	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}

func (bd *inMemoryBlockDevice) WriteAt(p []byte, off int64) (int, error) {
	if off < 0 {
		return 0, status.Errorf(codes.InvalidArgument, "Negative write offset: %d", off)
	}
	if end := off + int64(len(p)); end > int64(len(bd.data)) {
		return 0, status.Errorf(codes.OutOfRange, "Write of %d bytes at offset %d exceeds the block device size of %d bytes", len(p), off, len(bd.data))
	}
	return copy(bd.data[off:], p), nil
}

func (bd *inMemoryBlockDevice) Sync() error {
	return nil
}

func (bd *inMemoryBlockDevice) Close() error {
	bd.data = nil
	return nil
}
