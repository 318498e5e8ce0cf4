package provision

import "github.com/prometheus/client_golang/prometheus"

// Metric label values for run outcomes.
const (
	outcomeCompleted = "completed"
	outcomeFailed    = "failed"
)

var (
	provisionRunsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ductile_provision_runs_total",
			Help: "Total number of workspace provisioning runs.",
		},
		[]string{"status"},
	)

	provisionDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "ductile_provision_duration_seconds",
			Help:    "Wall-clock duration of workspace provisioning runs, in seconds.",
			Buckets: prometheus.ExponentialBuckets(1, 2, 10),
		},
	)

	cloneRunsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ductile_clone_runs_total",
			Help: "Total number of repository clone operations.",
		},
		[]string{"status"},
	)
)

func init() {
	prometheus.MustRegister(provisionRunsTotal)
	prometheus.MustRegister(provisionDuration)
	prometheus.MustRegister(cloneRunsTotal)

	// Pre-initialize label combinations so they appear in /metrics at zero.
	for _, status := range []string{outcomeCompleted, outcomeFailed} {
		provisionRunsTotal.WithLabelValues(status)
		cloneRunsTotal.WithLabelValues(status)
	}
}
