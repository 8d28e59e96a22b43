package filesystem

import (
	"context"
)

// FileStore manages fixed-size files stored on a volume. Every file
// is identified by the sector holding its header.
type FileStore interface {
	// Create a new file of a given size. Space for the header, the
	// data and the indirection nodes of the file is claimed, after
	// which the header is written to disk. The sector holding the
	// header is returned.
	Create(ctx context.Context, fileSizeBytes int64) (uint32, error)
	// Open a file that was created previously, so that its
	// contents may be read and written.
	Open(ctx context.Context, headerSector uint32) (*OpenFile, error)
	// Remove a file, returning all of its sectors to the allocator.
	Remove(ctx context.Context, headerSector uint32) error
}
