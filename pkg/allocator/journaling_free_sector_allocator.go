package allocator

// JournalingFreeSectorAllocator is a decorator for FreeSectorAllocator
// that records every sector claimed through it. This allows an
// operation that claims many sectors to return all of them in case it
// fails part way, leaving the underlying allocator in the state it
// was in before the operation started.
type JournalingFreeSectorAllocator struct {
	base    FreeSectorAllocator
	claimed []uint32
}

// NewJournalingFreeSectorAllocator creates a
// JournalingFreeSectorAllocator with an empty journal.
func NewJournalingFreeSectorAllocator(base FreeSectorAllocator) *JournalingFreeSectorAllocator {
	return &JournalingFreeSectorAllocator{
		base: base,
	}
}

// FindAndSet claims a sector from the underlying allocator and adds
// it to the journal.
func (sa *JournalingFreeSectorAllocator) FindAndSet() (uint32, error) {
	sector, err := sa.base.FindAndSet()
	if err != nil {
		return 0, err
	}
	sa.claimed = append(sa.claimed, sector)
	return sector, nil
}

// Clear returns a sector to the underlying allocator. If the sector
// was claimed through the journal, it is removed from it.
func (sa *JournalingFreeSectorAllocator) Clear(sector uint32) {
	for i := len(sa.claimed) - 1; i >= 0; i-- {
		if sa.claimed[i] == sector {
			sa.claimed = append(sa.claimed[:i], sa.claimed[i+1:]...)
			break
		}
	}
	sa.base.Clear(sector)
}

// Test whether a sector is in use by the underlying allocator.
func (sa *JournalingFreeSectorAllocator) Test(sector uint32) bool {
	return sa.base.Test(sector)
}

// ClearCount returns the number of sectors of the underlying
// allocator that may still be claimed.
func (sa *JournalingFreeSectorAllocator) ClearCount() int {
	return sa.base.ClearCount()
}

// Claimed returns the sectors in the journal, in the order in which
// they were claimed.
func (sa *JournalingFreeSectorAllocator) Claimed() []uint32 {
	return sa.claimed
}

// Commit empties the journal, causing the sectors claimed so far to
// remain in use.
func (sa *JournalingFreeSectorAllocator) Commit() {
	sa.claimed = nil
}

// Rollback returns all sectors in the journal to the underlying
// allocator, most recently claimed first.
func (sa *JournalingFreeSectorAllocator) Rollback() {
	for i := len(sa.claimed) - 1; i >= 0; i-- {
		sa.base.Clear(sa.claimed[i])
	}
	sa.claimed = nil
}
