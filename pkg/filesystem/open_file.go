package filesystem

import (
	"io"

	"github.com/buildbarn/bb-indexfs/pkg/disk"
	"github.com/buildbarn/bb-indexfs/pkg/sectorindex"
	"github.com/buildbarn/bb-storage/pkg/util"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// OpenFile provides access to the contents of a file stored on a
// sector device. The size of a file is fixed at creation time.
// Attempting to write past the end of the file fails, as opposed to
// growing the file.
//
// Concurrent calls to ReadAt() and WriteAt() are permitted, as long as
// the underlying SectorDevice permits it. The results of overlapping
// writes are unspecified.
type OpenFile struct {
	device          disk.SectorDevice
	header          *sectorindex.Header
	sectorSizeBytes int
}

// NewOpenFile creates an OpenFile for a header that has already been
// allocated or fetched.
func NewOpenFile(device disk.SectorDevice, header *sectorindex.Header) *OpenFile {
	return &OpenFile{
		device:          device,
		header:          header,
		sectorSizeBytes: device.SectorSizeBytes(),
	}
}

// Length returns the size of the file in bytes.
func (f *OpenFile) Length() int64 {
	return f.header.FileLength()
}

// Header returns the header of the file.
func (f *OpenFile) Header() *sectorindex.Header {
	return f.header
}

// forEachSector calls a function for every sector that overlaps with
// a range of bytes of the file, providing the part of the buffer that
// corresponds with the sector.
func (f *OpenFile) forEachSector(p []byte, off int64, fn func(sector uint32, offsetWithinSector int, chunk []byte) error) error {
	sectorSizeBytes := int64(f.sectorSizeBytes)
	for len(p) > 0 {
		sector, err := f.header.ByteToSector(off)
		if err != nil {
			return err
		}
		offsetWithinSector := int(off % sectorSizeBytes)
		n := min(len(p), f.sectorSizeBytes-offsetWithinSector)
		if err := fn(sector, offsetWithinSector, p[:n]); err != nil {
			return err
		}
		p = p[n:]
		off += int64(n)
	}
	return nil
}

// ReadAt reads data from the file. Reads that extend past the end of
// the file are truncated and return io.EOF.
func (f *OpenFile) ReadAt(p []byte, off int64) (int, error) {
	if off < 0 {
		return 0, status.Errorf(codes.InvalidArgument, "Negative read offset: %d", off)
	}
	length := f.header.FileLength()
	if off >= length {
		return 0, io.EOF
	}
	var readErr error
	if remaining := length - off; int64(len(p)) > remaining {
		p = p[:remaining]
		readErr = io.EOF
	}

	buffer := make([]byte, f.sectorSizeBytes)
	nRead := 0
	if err := f.forEachSector(p, off, func(sector uint32, offsetWithinSector int, chunk []byte) error {
		if err := f.device.ReadSector(sector, buffer); err != nil {
			return util.StatusWrapf(err, "Failed to read data at offset %d", off+int64(nRead))
		}
		nRead += copy(chunk, buffer[offsetWithinSector:])
		return nil
	}); err != nil {
		return nRead, err
	}
	return nRead, readErr
}

// WriteAt writes data into the file. Partially overwritten sectors are
// read first, so that their remaining contents are preserved.
func (f *OpenFile) WriteAt(p []byte, off int64) (int, error) {
	if off < 0 {
		return 0, status.Errorf(codes.InvalidArgument, "Negative write offset: %d", off)
	}
	if length := f.header.FileLength(); int64(len(p)) > length-off {
		return 0, status.Errorf(codes.OutOfRange, "Write of %d bytes at offset %d exceeds the file size of %d bytes", len(p), off, length)
	}

	buffer := make([]byte, f.sectorSizeBytes)
	nWritten := 0
	if err := f.forEachSector(p, off, func(sector uint32, offsetWithinSector int, chunk []byte) error {
		if len(chunk) < f.sectorSizeBytes {
			if err := f.device.ReadSector(sector, buffer); err != nil {
				return util.StatusWrapf(err, "Failed to read data at offset %d", off+int64(nWritten))
			}
		}
		copy(buffer[offsetWithinSector:], chunk)
		if err := f.device.WriteSector(sector, buffer); err != nil {
			return util.StatusWrapf(err, "Failed to write data at offset %d", off+int64(nWritten))
		}
		nWritten += len(chunk)
		return nil
	}); err != nil {
		return nWritten, err
	}
	return nWritten, nil
}
