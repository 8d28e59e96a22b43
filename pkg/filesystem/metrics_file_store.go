package filesystem

import (
	"context"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	fileStorePrometheusMetrics sync.Once

	fileStoreOperations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "buildbarn",
			Subsystem: "indexfs",
			Name:      "file_store_operations_total",
			Help:      "Number of operations performed against a file store.",
		},
		[]string{"operation", "result"})
	fileStoreCreatedFileSizeBytes = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "buildbarn",
			Subsystem: "indexfs",
			Name:      "file_store_created_file_size_bytes",
			Help:      "Size of files created in a file store, in bytes.",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 32),
		})
)

type metricsFileStore struct {
	base FileStore

	createSuccess prometheus.Counter
	createFailure prometheus.Counter
	openSuccess   prometheus.Counter
	openFailure   prometheus.Counter
	removeSuccess prometheus.Counter
	removeFailure prometheus.Counter
}

// NewMetricsFileStore creates a decorator for FileStore that exposes
// Prometheus metrics on how many files are created, opened and
// removed.
func NewMetricsFileStore(base FileStore) FileStore {
	fileStorePrometheusMetrics.Do(func() {
		prometheus.MustRegister(fileStoreOperations)
		prometheus.MustRegister(fileStoreCreatedFileSizeBytes)
	})

	return &metricsFileStore{
		base: base,

		createSuccess: fileStoreOperations.WithLabelValues("Create", "Success"),
		createFailure: fileStoreOperations.WithLabelValues("Create", "Failure"),
		openSuccess:   fileStoreOperations.WithLabelValues("Open", "Success"),
		openFailure:   fileStoreOperations.WithLabelValues("Open", "Failure"),
		removeSuccess: fileStoreOperations.WithLabelValues("Remove", "Success"),
		removeFailure: fileStoreOperations.WithLabelValues("Remove", "Failure"),
	}
}

func countOperation(err error, success, failure prometheus.Counter) {
	if err == nil {
		success.Inc()
	} else {
		failure.Inc()
	}
}

func (fs *metricsFileStore) Create(ctx context.Context, fileSizeBytes int64) (uint32, error) {
	headerSector, err := fs.base.Create(ctx, fileSizeBytes)
	countOperation(err, fs.createSuccess, fs.createFailure)
	if err == nil {
		fileStoreCreatedFileSizeBytes.Observe(float64(fileSizeBytes))
	}
	return headerSector, err
}

func (fs *metricsFileStore) Open(ctx context.Context, headerSector uint32) (*OpenFile, error) {
	f, err := fs.base.Open(ctx, headerSector)
	countOperation(err, fs.openSuccess, fs.openFailure)
	return f, err
}

func (fs *metricsFileStore) Remove(ctx context.Context, headerSector uint32) error {
	err := fs.base.Remove(ctx, headerSector)
	countOperation(err, fs.removeSuccess, fs.removeFailure)
	return err
}
