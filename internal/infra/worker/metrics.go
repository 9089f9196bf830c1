package worker

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// JobMetrics tracks one-off and scheduled jobs of the relay process
// (startup reconciliation, cron-triggered cleanup requests).
//
// Metrics generated:
//   - relay_job_runs_total: runs by job and status (success, failure)
//   - relay_job_duration_seconds: run duration by job
//   - relay_job_last_success_timestamp: Unix time of the last success by job
type JobMetrics struct {
	JobRunsTotal            *prometheus.CounterVec
	JobDurationSeconds      *prometheus.HistogramVec
	JobLastSuccessTimestamp *prometheus.GaugeVec
}

// NewJobMetrics registers the job metrics with reg, or with the default
// registry when reg is nil.
func NewJobMetrics(reg prometheus.Registerer) *JobMetrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)
	return &JobMetrics{
		JobRunsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "relay_job_runs_total",
			Help: "Total number of relay job runs by job and status",
		}, []string{"job", "status"}),

		JobDurationSeconds: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "relay_job_duration_seconds",
			Help:    "Duration of relay job runs in seconds",
			Buckets: []float64{0.01, 0.1, 1, 5, 30, 60, 300},
		}, []string{"job"}),

		JobLastSuccessTimestamp: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "relay_job_last_success_timestamp",
			Help: "Unix timestamp of the last successful run by job",
		}, []string{"job"}),
	}
}

// RecordJobRun increments the run counter. status is success or failure.
func (m *JobMetrics) RecordJobRun(job, status string) {
	m.JobRunsTotal.WithLabelValues(job, status).Inc()
}

// RecordJobDuration observes one run's duration.
func (m *JobMetrics) RecordJobDuration(job string, d time.Duration) {
	m.JobDurationSeconds.WithLabelValues(job).Observe(d.Seconds())
}

// RecordLastSuccess stamps the current time for job.
func (m *JobMetrics) RecordLastSuccess(job string) {
	m.JobLastSuccessTimestamp.WithLabelValues(job).SetToCurrentTime()
}

// Track runs fn and records its duration and outcome under job. fn's error
// is returned unchanged. A nil *JobMetrics only runs fn.
func (m *JobMetrics) Track(job string, fn func() error) error {
	if m == nil {
		return fn()
	}
	start := time.Now()
	err := fn()
	m.RecordJobDuration(job, time.Since(start))
	if err != nil {
		m.RecordJobRun(job, "failure")
		return err
	}
	m.RecordJobRun(job, "success")
	m.RecordLastSuccess(job)
	return nil
}
