package capture

import "github.com/prometheus/client_golang/prometheus"

var (
	runs = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "attendance_capture_total",
			Help: "Capture runs by terminal state",
		},
		[]string{"status"},
	)
	duration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "attendance_capture_duration_seconds",
			Help:    "End-to-end capture time",
			Buckets: prometheus.DefBuckets,
		},
	)
)

// RegisterMetrics registers the capture metrics with the default
// registry. Call once at startup.
func RegisterMetrics() {
	prometheus.MustRegister(runs, duration)
}
