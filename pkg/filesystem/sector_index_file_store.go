package filesystem

import (
	"context"
	"sync"

	"github.com/buildbarn/bb-indexfs/pkg/allocator"
	"github.com/buildbarn/bb-indexfs/pkg/disk"
	"github.com/buildbarn/bb-indexfs/pkg/sectorindex"
	"github.com/buildbarn/bb-storage/pkg/util"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

type sectorIndexFileStore struct {
	device   disk.SectorDevice
	geometry *sectorindex.Geometry

	lock            sync.Mutex
	sectorAllocator allocator.FreeSectorAllocator
}

// NewSectorIndexFileStore creates a FileStore that stores files on a
// sector device. Files have a header that references their data
// sectors, either directly or through trees of indirection nodes.
//
// The FreeSectorAllocator does not need to be thread-safe, as all
// calls against it are serialized.
func NewSectorIndexFileStore(device disk.SectorDevice, sectorAllocator allocator.FreeSectorAllocator, geometry *sectorindex.Geometry) FileStore {
	return &sectorIndexFileStore{
		device:          device,
		geometry:        geometry,
		sectorAllocator: sectorAllocator,
	}
}

func (fs *sectorIndexFileStore) Create(ctx context.Context, fileSizeBytes int64) (uint32, error) {
	fs.lock.Lock()
	defer fs.lock.Unlock()

	headerSector, err := fs.sectorAllocator.FindAndSet()
	if err != nil {
		return 0, util.StatusWrap(err, "Failed to claim header sector")
	}
	h := sectorindex.NewHeader(fs.geometry)
	if err := h.Allocate(fs.sectorAllocator, fileSizeBytes); err != nil {
		fs.sectorAllocator.Clear(headerSector)
		return 0, err
	}
	if err := h.WriteBack(fs.device, headerSector); err != nil {
		if errDeallocate := h.Deallocate(fs.sectorAllocator); errDeallocate != nil {
			panic(errDeallocate)
		}
		fs.sectorAllocator.Clear(headerSector)
		return 0, err
	}
	return headerSector, nil
}

func (fs *sectorIndexFileStore) fetchHeader(headerSector uint32) (*sectorindex.Header, error) {
	h := sectorindex.NewHeader(fs.geometry)
	if err := h.FetchFrom(fs.device, headerSector); err != nil {
		return nil, err
	}
	return h, nil
}

func (fs *sectorIndexFileStore) Open(ctx context.Context, headerSector uint32) (*OpenFile, error) {
	h, err := fs.fetchHeader(headerSector)
	if err != nil {
		return nil, err
	}
	return NewOpenFile(fs.device, h), nil
}

func (fs *sectorIndexFileStore) Remove(ctx context.Context, headerSector uint32) error {
	fs.lock.Lock()
	defer fs.lock.Unlock()

	if !fs.sectorAllocator.Test(headerSector) {
		return status.Errorf(codes.NotFound, "Sector %d does not hold a file header", headerSector)
	}
	h, err := fs.fetchHeader(headerSector)
	if err != nil {
		return err
	}
	if err := h.Deallocate(fs.sectorAllocator); err != nil {
		return err
	}
	fs.sectorAllocator.Clear(headerSector)
	return nil
}
