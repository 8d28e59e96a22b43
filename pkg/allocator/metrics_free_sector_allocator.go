package allocator

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	freeSectorAllocatorPrometheusMetrics sync.Once

	freeSectorAllocatorSectorsClaimed = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "buildbarn",
			Subsystem: "indexfs",
			Name:      "free_sector_allocator_sectors_claimed_total",
			Help:      "Number of sectors claimed from the free sector allocator.",
		})
	freeSectorAllocatorSectorsCleared = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "buildbarn",
			Subsystem: "indexfs",
			Name:      "free_sector_allocator_sectors_cleared_total",
			Help:      "Number of sectors returned to the free sector allocator.",
		})
	freeSectorAllocatorClaimFailures = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "buildbarn",
			Subsystem: "indexfs",
			Name:      "free_sector_allocator_claim_failures_total",
			Help:      "Number of times a sector could not be claimed from the free sector allocator.",
		})
)

type metricsFreeSectorAllocator struct {
	FreeSectorAllocator
}

// NewMetricsFreeSectorAllocator creates a decorator for
// FreeSectorAllocator that exposes Prometheus metrics on how many
// sectors are claimed and returned.
func NewMetricsFreeSectorAllocator(base FreeSectorAllocator) FreeSectorAllocator {
	freeSectorAllocatorPrometheusMetrics.Do(func() {
		prometheus.MustRegister(freeSectorAllocatorSectorsClaimed)
		prometheus.MustRegister(freeSectorAllocatorSectorsCleared)
		prometheus.MustRegister(freeSectorAllocatorClaimFailures)
	})

	return &metricsFreeSectorAllocator{
		FreeSectorAllocator: base,
	}
}

func (sa *metricsFreeSectorAllocator) FindAndSet() (uint32, error) {
	sector, err := sa.FreeSectorAllocator.FindAndSet()
	if err != nil {
		freeSectorAllocatorClaimFailures.Inc()
		return 0, err
	}
	freeSectorAllocatorSectorsClaimed.Inc()
	return sector, nil
}

func (sa *metricsFreeSectorAllocator) Clear(sector uint32) {
	sa.FreeSectorAllocator.Clear(sector)
	freeSectorAllocatorSectorsCleared.Inc()
}
