// Package metrics exposes orchestrator job events as Prometheus metrics.
package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "custos"

// Prometheus implements domain.MetricsSink.
type Prometheus struct {
	JobsStarted   *prometheus.CounterVec
	JobsCompleted *prometheus.CounterVec
	JobsFailed    *prometheus.CounterVec
	JobDuration   *prometheus.HistogramVec
	LastSizeBytes *prometheus.GaugeVec
	LastSuccess   *prometheus.GaugeVec
}

// NewPrometheus creates the collectors and registers them with reg.
// Registering twice on the same registry fails.
func NewPrometheus(reg prometheus.Registerer) (*Prometheus, error) {
	m := &Prometheus{
		JobsStarted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "backup_jobs_started_total",
			Help:      "Backup job executions started.",
		}, []string{"job_id", "strategy"}),
		JobsCompleted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "backup_jobs_completed_total",
			Help:      "Backup job executions that backed up at least one engine.",
		}, []string{"job_id"}),
		JobsFailed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "backup_jobs_failed_total",
			Help:      "Backup job executions that backed up no engine.",
		}, []string{"job_id"}),
		JobDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "backup_job_duration_seconds",
			Help:      "Duration of completed backup job executions.",
			Buckets:   []float64{10, 30, 60, 300, 600, 1800, 3600, 7200, 14400},
		}, []string{"job_id"}),
		LastSizeBytes: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "backup_job_last_size_bytes",
			Help:      "Total bytes produced by the last completed execution.",
		}, []string{"job_id"}),
		LastSuccess: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "backup_job_last_success_timestamp_seconds",
			Help:      "Unix time of the last completed execution.",
		}, []string{"job_id"}),
	}

	for _, c := range []prometheus.Collector{
		m.JobsStarted, m.JobsCompleted, m.JobsFailed, m.JobDuration, m.LastSizeBytes, m.LastSuccess,
	} {
		if err := reg.Register(c); err != nil {
			return nil, fmt.Errorf("register collector: %w", err)
		}
	}

	return m, nil
}

func (m *Prometheus) RecordJobStarted(jobID, strategy string) {
	m.JobsStarted.WithLabelValues(jobID, strategy).Inc()
}

func (m *Prometheus) RecordJobCompleted(jobID string, durationSeconds float64, totalBytes int64) {
	m.JobsCompleted.WithLabelValues(jobID).Inc()
	m.JobDuration.WithLabelValues(jobID).Observe(durationSeconds)
	m.LastSizeBytes.WithLabelValues(jobID).Set(float64(totalBytes))
	m.LastSuccess.WithLabelValues(jobID).SetToCurrentTime()
}

func (m *Prometheus) RecordJobFailed(jobID, errorMessage string) {
	m.JobsFailed.WithLabelValues(jobID).Inc()
}
