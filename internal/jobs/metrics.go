// Package jobmetrics instruments background job runs.
package jobmetrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	resultOK     = "ok"
	resultFailed = "failed"
)

// Metrics holds the job collectors. A nil *Metrics records nothing.
type Metrics struct {
	runs        *prometheus.CounterVec
	duration    *prometheus.HistogramVec
	records     *prometheus.CounterVec
	lastSuccess *prometheus.GaugeVec
}

var (
	sharedOnce sync.Once
	shared     *Metrics
)

// NewMetrics registers the collectors with reg. A nil reg selects the
// process-wide default registry, registered at most once.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg != nil {
		return register(reg)
	}
	sharedOnce.Do(func() { shared = register(prometheus.DefaultRegisterer) })
	return shared
}

func register(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "gymdesk",
			Name:      "job_runs_total",
			Help:      "Job runs by job and result.",
		}, []string{"job", "result"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "gymdesk",
			Name:      "job_duration_seconds",
			Help:      "Wall time of job runs.",
			Buckets:   []float64{0.05, 0.25, 1, 5, 15, 60, 300},
		}, []string{"job"}),
		records: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "gymdesk",
			Name:      "job_records_total",
			Help:      "Rows written or removed by jobs.",
		}, []string{"job"}),
		lastSuccess: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "gymdesk",
			Name:      "job_last_success_timestamp_seconds",
			Help:      "Unix time of the last successful run.",
		}, []string{"job"}),
	}
	reg.MustRegister(m.runs, m.duration, m.records, m.lastSuccess)
	return m
}

// Observe runs fn and records its duration, result and the number of rows
// it reports. Rows are counted even when fn fails part way. fn's error is
// returned unchanged.
func (m *Metrics) Observe(job string, fn func() (int, error)) error {
	started := time.Now()
	n, err := fn()
	if m == nil {
		return err
	}
	m.duration.WithLabelValues(job).Observe(time.Since(started).Seconds())
	if n > 0 {
		m.records.WithLabelValues(job).Add(float64(n))
	}
	if err != nil {
		m.runs.WithLabelValues(job, resultFailed).Inc()
		return err
	}
	m.runs.WithLabelValues(job, resultOK).Inc()
	m.lastSuccess.WithLabelValues(job).SetToCurrentTime()
	return nil
}
