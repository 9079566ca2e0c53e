// Package metrics exposes capture and maintenance counters on the default
// Prometheus registry. All methods are safe on a nil receiver so callers can
// run without metrics wired.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/griotdb/griot"
)

type Metrics struct {
	recordsTotal        *prometheus.CounterVec
	suppressedTotal     prometheus.Counter
	failuresTotal       *prometheus.CounterVec
	captureSeconds      prometheus.Histogram
	partitionsCreated   prometheus.Counter
	indexesCreated      prometheus.Counter
	maintenanceRuns     *prometheus.CounterVec
	maintenanceLastUnix prometheus.Gauge
}

var _ griot.Observer = (*Metrics)(nil)

func NewMetrics() *Metrics {
	return &Metrics{
		recordsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "griot",
				Subsystem: "capture",
				Name:      "records_total",
				Help:      "Total history records written, partitioned by action.",
			},
			[]string{"action"},
		),
		suppressedTotal: promauto.NewCounter(
			prometheus.CounterOpts{
				Namespace: "griot",
				Subsystem: "capture",
				Name:      "suppressed_total",
				Help:      "Total updates skipped because no watched column changed.",
			},
		),
		failuresTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "griot",
				Subsystem: "capture",
				Name:      "failures_total",
				Help:      "Total capture failures partitioned by reason.",
			},
			[]string{"reason"},
		),
		captureSeconds: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: "griot",
				Subsystem: "capture",
				Name:      "statement_seconds",
				Help:      "Time spent executing and capturing one audited statement.",
				Buckets:   prometheus.ExponentialBuckets(0.0001, 2, 16),
			},
		),
		partitionsCreated: promauto.NewCounter(
			prometheus.CounterOpts{
				Namespace: "griot",
				Subsystem: "maintenance",
				Name:      "partitions_created_total",
				Help:      "Total monthly partitions created.",
			},
		),
		indexesCreated: promauto.NewCounter(
			prometheus.CounterOpts{
				Namespace: "griot",
				Subsystem: "maintenance",
				Name:      "indexes_created_total",
				Help:      "Total partition indexes created.",
			},
		),
		maintenanceRuns: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "griot",
				Subsystem: "maintenance",
				Name:      "runs_total",
				Help:      "Total maintenance sweeps partitioned by result.",
			},
			[]string{"result"},
		),
		maintenanceLastUnix: promauto.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "griot",
				Subsystem: "maintenance",
				Name:      "last_run_unix",
				Help:      "Unix time of the most recent maintenance sweep.",
			},
		),
	}
}

func (m *Metrics) CaptureRecorded(action griot.Action) {
	if m == nil {
		return
	}
	m.recordsTotal.WithLabelValues(string(action)).Inc()
}

func (m *Metrics) CaptureSuppressed() {
	if m == nil {
		return
	}
	m.suppressedTotal.Inc()
}

func (m *Metrics) CaptureFailed(reason string) {
	if m == nil {
		return
	}
	m.failuresTotal.WithLabelValues(reason).Inc()
}

func (m *Metrics) CaptureLatency(d time.Duration) {
	if m == nil {
		return
	}
	m.captureSeconds.Observe(d.Seconds())
}

// ObserveMaintenance records the outcome of one maintenance sweep.
func (m *Metrics) ObserveMaintenance(partitions, indexes int, err error) {
	if m == nil {
		return
	}
	m.maintenanceLastUnix.Set(float64(time.Now().UTC().Unix()))
	if err != nil {
		m.maintenanceRuns.WithLabelValues("error").Inc()
		return
	}
	m.maintenanceRuns.WithLabelValues("success").Inc()
	if partitions > 0 {
		m.partitionsCreated.Add(float64(partitions))
	}
	if indexes > 0 {
		m.indexesCreated.Add(float64(indexes))
	}
}
