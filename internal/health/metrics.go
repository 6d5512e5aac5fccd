package health

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"example.com/healthsync/internal/domain"
)

var (
	recordsImportedCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "healthsync",
		Subsystem: "import",
		Name:      "records_imported_total",
		Help:      "Number of normalized health records written to the local store.",
	}, []string{"record_type"})

	recordsFilteredCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "healthsync",
		Subsystem: "import",
		Name:      "records_filtered_total",
		Help:      "Number of raw provider records dropped by normalization.",
	}, []string{"record_type"})

	typeErrorCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "healthsync",
		Subsystem: "import",
		Name:      "type_errors_total",
		Help:      "Number of record types that failed or were skipped, grouped by error kind.",
	}, []string{"record_type", "kind"})

	runCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "healthsync",
		Subsystem: "import",
		Name:      "runs_total",
		Help:      "Number of completed import runs grouped by outcome.",
	}, []string{"outcome"})

	runDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "healthsync",
		Subsystem: "import",
		Name:      "duration_seconds",
		Help:      "Wall time of import runs, consent wait included.",
		Buckets:   prometheus.ExponentialBuckets(0.05, 2, 12),
	})
)

func init() {
	prometheus.MustRegister(recordsImportedCounter, recordsFilteredCounter, typeErrorCounter, runCounter, runDuration)
}

func recordBatch(t domain.RecordType, written, filtered int) {
	if written > 0 {
		recordsImportedCounter.WithLabelValues(string(t)).Add(float64(written))
	}
	if filtered > 0 {
		recordsFilteredCounter.WithLabelValues(string(t)).Add(float64(filtered))
	}
}

func recordTypeError(t domain.RecordType, err error) {
	typeErrorCounter.WithLabelValues(string(t), errorKind(err)).Inc()
}

func recordRun(result domain.ImportResult, elapsed time.Duration) {
	runCounter.WithLabelValues(outcomeLabel(result)).Inc()
	runDuration.Observe(elapsed.Seconds())
}

func errorKind(err error) string {
	var perr *domain.PersistenceError
	switch {
	case domain.IsPermission(err):
		return "permission"
	case domain.IsProvider(err):
		return "provider"
	case errors.As(err, &perr):
		return "persistence"
	default:
		return "other"
	}
}

func outcomeLabel(result domain.ImportResult) string {
	switch {
	case result.Success:
		return "success"
	case result.Message == domain.MessageUnavailable:
		return "unavailable"
	case result.Message == domain.MessageNothingToAdd:
		return "empty"
	default:
		return "failed"
	}
}
