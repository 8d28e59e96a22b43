package allocator

import (
	"sync/atomic"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// sectorQuota tracks how many sectors have been claimed against a
// fixed limit. Claims are admitted atomically, so that concurrent
// callers can never jointly exceed the limit.
type sectorQuota struct {
	limit   int64
	claimed atomic.Int64
}

func (q *sectorQuota) tryClaim() bool {
	for {
		claimed := q.claimed.Load()
		if claimed >= q.limit {
			return false
		}
		if q.claimed.CompareAndSwap(claimed, claimed+1) {
			return true
		}
	}
}

func (q *sectorQuota) giveBack() {
	q.claimed.Add(-1)
}

func (q *sectorQuota) available() int64 {
	return max(q.limit-q.claimed.Load(), 0)
}

type quotaEnforcingFreeSectorAllocator struct {
	base  FreeSectorAllocator
	quota sectorQuota
}

// NewQuotaEnforcingFreeSectorAllocator creates a FreeSectorAllocator
// that enforces disk quotas. It limits how many sectors may be claimed
// from an underlying FreeSectorAllocator.
func NewQuotaEnforcingFreeSectorAllocator(base FreeSectorAllocator, maximumSectors int64) FreeSectorAllocator {
	return &quotaEnforcingFreeSectorAllocator{
		base:  base,
		quota: sectorQuota{limit: maximumSectors},
	}
}

func (sa *quotaEnforcingFreeSectorAllocator) FindAndSet() (uint32, error) {
	if !sa.quota.tryClaim() {
		return 0, status.Error(codes.ResourceExhausted, "Sector count quota reached")
	}
	sector, err := sa.base.FindAndSet()
	if err != nil {
		sa.quota.giveBack()
		return 0, err
	}
	return sector, nil
}

func (sa *quotaEnforcingFreeSectorAllocator) Clear(sector uint32) {
	sa.quota.giveBack()
	sa.base.Clear(sector)
}

func (sa *quotaEnforcingFreeSectorAllocator) Test(sector uint32) bool {
	return sa.base.Test(sector)
}

func (sa *quotaEnforcingFreeSectorAllocator) ClearCount() int {
	return int(min(int64(sa.base.ClearCount()), sa.quota.available()))
}
