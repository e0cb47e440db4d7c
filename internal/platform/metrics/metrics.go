package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the import and sync pipeline.
type Metrics struct {
	PackagesIngested  *prometheus.CounterVec
	ValidatorDuration *prometheus.HistogramVec
	ValidatorFindings *prometheus.CounterVec
	ConflictsOpen     prometheus.Gauge
	ConflictsResolved *prometheus.CounterVec
	CommitRecords     *prometheus.CounterVec
	SyncOperations    *prometheus.CounterVec
	RequestLatency    *prometheus.HistogramVec
}

// New creates and registers all Prometheus metrics.
func New() *Metrics {
	return &Metrics{
		PackagesIngested: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "terrasync_packages_ingested_total",
			Help: "Uploaded packages by terminal intake outcome (accepted, duplicate, quarantined).",
		}, []string{"outcome"}),
		ValidatorDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "terrasync_validator_duration_seconds",
			Help:    "Wall time per validation level per package.",
			Buckets: prometheus.DefBuckets,
		}, []string{"validator"}),
		ValidatorFindings: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "terrasync_validator_findings_total",
			Help: "Findings recorded by validators, by level and severity.",
		}, []string{"validator", "severity"}),
		ConflictsOpen: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "terrasync_conflicts_open",
			Help: "Conflicts currently pending review.",
		}),
		ConflictsResolved: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "terrasync_conflicts_resolved_total",
			Help: "Conflicts closed, by resolution action.",
		}, []string{"action"}),
		CommitRecords: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "terrasync_commit_records_total",
			Help: "Staging records promoted (or not), by result.",
		}, []string{"result"}),
		SyncOperations: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "terrasync_sync_operations_total",
			Help: "Device sync protocol calls, by operation and status.",
		}, []string{"operation", "status"}),
		RequestLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "terrasync_http_request_duration_seconds",
			Help:    "HTTP request latency by route.",
			Buckets: prometheus.DefBuckets,
		}, []string{"route", "code"}),
	}
}

// ObserveValidator records one validation level's outcome.
func (m *Metrics) ObserveValidator(name string, d time.Duration, errors, warnings int) {
	if m == nil {
		return
	}
	m.ValidatorDuration.WithLabelValues(name).Observe(d.Seconds())
	m.ValidatorFindings.WithLabelValues(name, "error").Add(float64(errors))
	m.ValidatorFindings.WithLabelValues(name, "warning").Add(float64(warnings))
}

// RecordIngest counts one package intake outcome.
func (m *Metrics) RecordIngest(outcome string) {
	if m == nil {
		return
	}
	m.PackagesIngested.WithLabelValues(outcome).Inc()
}

// RecordSyncOp counts one sync protocol call.
func (m *Metrics) RecordSyncOp(operation, status string) {
	if m == nil {
		return
	}
	m.SyncOperations.WithLabelValues(operation, status).Inc()
}
