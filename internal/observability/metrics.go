// Package observability exposes the job lifecycle counters scraped from
// /metrics on both the API and worker processes.
package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Collector aggregates the service's prometheus metrics. A nil *Collector
// is valid and records nothing, which keeps wiring optional in tests.
type Collector struct {
	jobsEnqueued  prometheus.Counter
	jobsCompleted prometheus.Counter
	jobsFailed    prometheus.Counter
	jobsCancelled prometheus.Counter
	jobsRetried   prometheus.Counter
	pollsTotal    prometheus.Counter
	reclaimed     prometheus.Counter

	jobDuration  prometheus.Histogram
	jobsInFlight prometheus.Gauge
}

// NewCollector registers the service metrics on the given registerer
// (prometheus.DefaultRegisterer in the binaries).
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		jobsEnqueued: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "mediagen_jobs_enqueued_total",
			Help: "Total number of generation jobs created",
		}),
		jobsCompleted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "mediagen_jobs_completed_total",
			Help: "Total number of jobs completed successfully",
		}),
		jobsFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "mediagen_jobs_failed_total",
			Help: "Total number of jobs that ended failed",
		}),
		jobsCancelled: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "mediagen_jobs_cancelled_total",
			Help: "Total number of jobs cancelled",
		}),
		jobsRetried: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "mediagen_jobs_retried_total",
			Help: "Total number of whole-job retry attempts scheduled",
		}),
		pollsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "mediagen_generation_polls_total",
			Help: "Total number of status polls against the generation service",
		}),
		reclaimed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "mediagen_artifacts_reclaimed_total",
			Help: "Total number of artifacts reclaimed by the retention sweeper",
		}),
		jobDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "mediagen_job_duration_seconds",
			Help:    "Wall time from first attempt to terminal outcome",
			Buckets: prometheus.ExponentialBuckets(0.5, 2, 12),
		}),
		jobsInFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "mediagen_jobs_in_flight",
			Help: "Number of jobs currently being advanced by this process",
		}),
	}

	reg.MustRegister(
		c.jobsEnqueued,
		c.jobsCompleted,
		c.jobsFailed,
		c.jobsCancelled,
		c.jobsRetried,
		c.pollsTotal,
		c.reclaimed,
		c.jobDuration,
		c.jobsInFlight,
	)
	return c
}

func (c *Collector) RecordEnqueued() {
	if c == nil {
		return
	}
	c.jobsEnqueued.Inc()
}

func (c *Collector) RecordCompleted(durationSeconds float64) {
	if c == nil {
		return
	}
	c.jobsCompleted.Inc()
	c.jobDuration.Observe(durationSeconds)
}

func (c *Collector) RecordFailed() {
	if c == nil {
		return
	}
	c.jobsFailed.Inc()
}

func (c *Collector) RecordCancelled() {
	if c == nil {
		return
	}
	c.jobsCancelled.Inc()
}

func (c *Collector) RecordRetry() {
	if c == nil {
		return
	}
	c.jobsRetried.Inc()
}

func (c *Collector) RecordPoll() {
	if c == nil {
		return
	}
	c.pollsTotal.Inc()
}

func (c *Collector) RecordReclaimed(n int) {
	if c == nil {
		return
	}
	c.reclaimed.Add(float64(n))
}

func (c *Collector) JobStarted() {
	if c == nil {
		return
	}
	c.jobsInFlight.Inc()
}

func (c *Collector) JobFinished() {
	if c == nil {
		return
	}
	c.jobsInFlight.Dec()
}
