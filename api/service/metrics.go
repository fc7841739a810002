package service

import "github.com/prometheus/client_golang/prometheus"

var (
	uploadsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Subsystem: "hdr",
		Name:      "uploads_total",
		Help:      "Upload requests partitioned by result.",
	}, []string{"result"})

	cancellationsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Subsystem: "hdr",
		Name:      "cancellations_total",
		Help:      "Tasks cancelled by their owner.",
	})
)

func Collectors() []prometheus.Collector {
	return []prometheus.Collector{uploadsTotal, cancellationsTotal}
}
