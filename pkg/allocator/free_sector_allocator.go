package allocator

// FreeSectorAllocator keeps track of which sectors of a volume are in
// use. It is used by the indexing layer to claim sectors for file data
// and indirection nodes, and to return them when a file is removed.
type FreeSectorAllocator interface {
	// Claim a single sector that is currently free. An error with
	// code RESOURCE_EXHAUSTED is returned if no sectors are free.
	FindAndSet() (uint32, error)
	// Return a sector that was claimed before. It is invalid to
	// call this function on a sector that is free.
	Clear(sector uint32)
	// Test whether a sector is currently in use.
	Test(sector uint32) bool
	// The number of sectors that may still be claimed.
	ClearCount() int
}
