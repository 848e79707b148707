package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	// AcquiredCounter tracks successful lock acquisitions.
	AcquiredCounter = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "ownlock_acquired_total",
		Help: "Total number of successful lock acquisitions",
	})
	// ReleasedCounter tracks successful lock releases.
	ReleasedCounter = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "ownlock_released_total",
		Help: "Total number of successful lock releases",
	})
	// TimeoutCounter tracks acquisitions that expired before the lock
	// became available.
	TimeoutCounter = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "ownlock_acquire_timeouts_total",
		Help: "Total number of acquisitions that timed out",
	})
	// MisuseCounter tracks reported programmer errors (self-relock,
	// foreign release, timeout).
	MisuseCounter = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "ownlock_misuses_total",
		Help: "Total number of reported lock misuses",
	})
	// HeldGauge reports the number of currently held locks.
	HeldGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "ownlock_held",
		Help: "Current number of held locks",
	})
)

// NewRegistry creates a new Prometheus registry.
func NewRegistry() *prometheus.Registry {
	return prometheus.NewRegistry()
}

// RegisterCoreMetrics registers the process-level lock metrics on the
// provided registry.
func RegisterCoreMetrics(reg prometheus.Registerer) {
	reg.MustRegister(AcquiredCounter, ReleasedCounter, TimeoutCounter, MisuseCounter, HeldGauge)
}
