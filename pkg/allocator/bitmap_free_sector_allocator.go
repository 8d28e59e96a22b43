package allocator

import (
	"fmt"
	"math/bits"
	"sync"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

type bitmapFreeSectorAllocator struct {
	lock        sync.Mutex
	sectorCount uint32
	freeBitmap  []uint64 // One bits indicate sectors that are free.
	clearCount  int
	nextSector  uint32
}

const (
	allBits = ^uint64(0)
)

// NewBitmapFreeSectorAllocator creates a FreeSectorAllocator that
// stores information on which sectors are in use in a bitmap. Sectors
// are claimed by sequentially scanning the bitmap, continuing where
// previous calls left off.
//
// Sectors listed in reservedSectors are marked as being in use
// initially. This can be used to protect sectors of the volume that
// are managed by other means, such as a boot sector.
func NewBitmapFreeSectorAllocator(sectorCount uint32, reservedSectors []uint32) FreeSectorAllocator {
	// Construct a bitmap. Make the bitmap a bit too big, so that
	// it's always terminated with one or more sectors that are
	// permanently in use. This prevents the need for explicit
	// bounds checking inside our algorithms.
	sa := &bitmapFreeSectorAllocator{
		sectorCount: sectorCount,
		freeBitmap:  make([]uint64, sectorCount/64+1),
		clearCount:  int(sectorCount),
	}

	// Mark the exact number of sectors as being free.
	for i := uint32(0); i < sectorCount/64; i++ {
		sa.freeBitmap[i] = allBits
	}
	sa.freeBitmap[sectorCount/64] = ^(allBits << (sectorCount % 64))

	for _, sector := range reservedSectors {
		if sector >= sectorCount {
			panic(fmt.Sprintf("Attempted to reserve sector %d, even though the volume only has %d sectors", sector, sectorCount))
		}
		if m := uint64(1) << (sector % 64); sa.freeBitmap[sector/64]&m != 0 {
			sa.freeBitmap[sector/64] &^= m
			sa.clearCount--
		}
	}
	return sa
}

func (sa *bitmapFreeSectorAllocator) FindAndSet() (uint32, error) {
	sa.lock.Lock()
	defer sa.lock.Unlock()

	// Claim a sector from the current bitmap word.
	split := sa.nextSector / 64
	if m := sa.freeBitmap[split] & (allBits << (sa.nextSector % 64)); m != 0 {
		return sa.claimAt(split, m), nil
	}

	// Claim a sector from the current location to the end.
	for i := split + 1; i < uint32(len(sa.freeBitmap)); i++ {
		if m := sa.freeBitmap[i]; m != 0 {
			return sa.claimAt(i, m), nil
		}
	}

	// Claim a sector from the beginning to the current location.
	for i := uint32(0); i <= split; i++ {
		if m := sa.freeBitmap[i]; m != 0 {
			return sa.claimAt(i, m), nil
		}
	}
	return 0, status.Error(codes.ResourceExhausted, "No free sectors available")
}

func (sa *bitmapFreeSectorAllocator) claimAt(index uint32, mask uint64) uint32 {
	shift := bits.TrailingZeros64(mask)
	sa.freeBitmap[index] &^= uint64(1) << shift
	sa.clearCount--

	sector := index*64 + uint32(shift)
	sa.nextSector = sector + 1
	if sa.nextSector >= sa.sectorCount {
		sa.nextSector = 0
	}
	return sector
}

func (sa *bitmapFreeSectorAllocator) Clear(sector uint32) {
	sa.lock.Lock()
	defer sa.lock.Unlock()

	if sector >= sa.sectorCount {
		panic(fmt.Sprintf("Attempted to free sector %d, even though the volume only has %d sectors", sector, sa.sectorCount))
	}
	i := sector / 64
	b := sector % 64
	if sa.freeBitmap[i]&(1<<b) != 0 {
		panic(fmt.Sprintf("Attempted to free sector %d, even though it's not allocated", sector))
	}
	sa.freeBitmap[i] |= 1 << b
	sa.clearCount++
}

func (sa *bitmapFreeSectorAllocator) Test(sector uint32) bool {
	sa.lock.Lock()
	defer sa.lock.Unlock()

	if sector >= sa.sectorCount {
		return false
	}
	return sa.freeBitmap[sector/64]&(1<<(sector%64)) == 0
}

func (sa *bitmapFreeSectorAllocator) ClearCount() int {
	sa.lock.Lock()
	defer sa.lock.Unlock()

	return sa.clearCount
}
