package disk

import (
	"sync"
	"time"

	"github.com/buildbarn/bb-storage/pkg/util"
	"github.com/prometheus/client_golang/prometheus"
)

var (
	sectorDevicePrometheusMetrics sync.Once

	sectorDeviceOperationsDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "buildbarn",
			Subsystem: "indexfs",
			Name:      "sector_device_operations_duration_seconds",
			Help:      "Amount of time spent per operation on a sector device, in seconds.",
			Buckets:   util.DecimalExponentialBuckets(-6, 6, 2),
		},
		[]string{"operation", "result"})
)

type metricsSectorDevice struct {
	SectorDevice

	readSectorSuccess  prometheus.Observer
	readSectorFailure  prometheus.Observer
	writeSectorSuccess prometheus.Observer
	writeSectorFailure prometheus.Observer
	syncSuccess        prometheus.Observer
	syncFailure        prometheus.Observer
}

// NewMetricsSectorDevice creates a decorator for SectorDevice that
// exposes Prometheus metrics on the number and duration of sector
// reads, sector writes and synchronizations.
func NewMetricsSectorDevice(base SectorDevice) SectorDevice {
	sectorDevicePrometheusMetrics.Do(func() {
		prometheus.MustRegister(sectorDeviceOperationsDurationSeconds)
	})

	return &metricsSectorDevice{
		SectorDevice: base,

		readSectorSuccess:  sectorDeviceOperationsDurationSeconds.WithLabelValues("ReadSector", "Success"),
		readSectorFailure:  sectorDeviceOperationsDurationSeconds.WithLabelValues("ReadSector", "Failure"),
		writeSectorSuccess: sectorDeviceOperationsDurationSeconds.WithLabelValues("WriteSector", "Success"),
		writeSectorFailure: sectorDeviceOperationsDurationSeconds.WithLabelValues("WriteSector", "Failure"),
		syncSuccess:        sectorDeviceOperationsDurationSeconds.WithLabelValues("Sync", "Success"),
		syncFailure:        sectorDeviceOperationsDurationSeconds.WithLabelValues("Sync", "Failure"),
	}
}

func observeSectorDeviceOperation(timeStart time.Time, err error, success, failure prometheus.Observer) {
	duration := time.Since(timeStart).Seconds()
	if err == nil {
		success.Observe(duration)
	} else {
		failure.Observe(duration)
	}
}

func (sd *metricsSectorDevice) ReadSector(sector uint32, p []byte) error {
	timeStart := time.Now()
	err := sd.SectorDevice.ReadSector(sector, p)
	observeSectorDeviceOperation(timeStart, err, sd.readSectorSuccess, sd.readSectorFailure)
	return err
}

func (sd *metricsSectorDevice) WriteSector(sector uint32, p []byte) error {
	timeStart := time.Now()
	err := sd.SectorDevice.WriteSector(sector, p)
	observeSectorDeviceOperation(timeStart, err, sd.writeSectorSuccess, sd.writeSectorFailure)
	return err
}

func (sd *metricsSectorDevice) Sync() error {
	timeStart := time.Now()
	err := sd.SectorDevice.Sync()
	observeSectorDeviceOperation(timeStart, err, sd.syncSuccess, sd.syncFailure)
	return err
}
