package service

import "github.com/prometheus/client_golang/prometheus"

const (
	outcomeCompleted   = "completed"
	outcomeFailed      = "failed"
	outcomeCancelled   = "cancelled"
	outcomeSkipped     = "skipped"
	outcomeInterrupted = "interrupted"
)

var (
	jobsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "hdr_jobs_total",
		Help: "Enhancement jobs handled by the worker partitioned by outcome.",
	}, []string{"outcome"})

	jobDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "hdr_job_duration_seconds",
		Help:    "Wall time of enhancement jobs that reached a terminal state.",
		Buckets: []float64{0.5, 1, 2.5, 5, 10, 30, 60, 180, 600},
	}, []string{"outcome"})
)

func Collectors() []prometheus.Collector {
	return []prometheus.Collector{jobsTotal, jobDuration}
}
