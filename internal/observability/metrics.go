// Package observability exposes watermark gauges shared across the service.
package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	recordPersistGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "healthsync",
		Subsystem: "persistence",
		Name:      "last_record_persisted_timestamp_seconds",
		Help:      "Unix timestamp of the most recent health record written to the local store.",
	})
	importCompletedGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "healthsync",
		Subsystem: "import",
		Name:      "last_completed_timestamp_seconds",
		Help:      "Unix timestamp of the most recent import run that reached the completed state.",
	})
)

func init() {
	prometheus.MustRegister(recordPersistGauge, importCompletedGauge)
}

// RecordPersisted updates the persistence watermark gauge.
func RecordPersisted(ts time.Time) {
	if ts.IsZero() {
		return
	}
	recordPersistGauge.Set(float64(ts.Unix()))
}

// RecordImportCompleted updates the import watermark gauge.
func RecordImportCompleted(ts time.Time) {
	if ts.IsZero() {
		return
	}
	importCompletedGauge.Set(float64(ts.Unix()))
}
