package lock

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/mirkobrombin/go-ownlock/v1/eventbus"
)

// Option configures a Lock.
type Option func(*Lock)

// WithName sets the lock's name, used as the key of its event topics.
// Unnamed locks get a random name.
func WithName(name string) Option {
	return func(l *Lock) {
		l.name = name
	}
}

// WithBus sets the bus carrying the lock's lifecycle events. The
// default is a private in-memory bus.
func WithBus(bus eventbus.Bus) Option {
	return func(l *Lock) {
		l.bus = bus
	}
}

// WithReporter routes misuse reports to r instead of the default
// stderr diagnostic.
func WithReporter(r Reporter) Option {
	return func(l *Lock) {
		l.reporter = r
	}
}

// WithErrorCounter counts this lock's misuses on c instead of the
// process-wide counter. Mainly for test isolation.
func WithErrorCounter(c *Counter) Option {
	return func(l *Lock) {
		l.counter = c
	}
}

// WithMetrics enables Prometheus metrics collection using the provided
// registerer. Collectors are labeled with the lock's name.
func WithMetrics(reg prometheus.Registerer) Option {
	return func(l *Lock) {
		l.metricsReg = reg
	}
}

// WithTracing enables OpenTelemetry spans on Acquire and Release.
func WithTracing() Option {
	return func(l *Lock) {
		l.traceEnabled = true
	}
}

// registerMetrics runs after all options, once the name is final.
func (l *Lock) registerMetrics() {
	labels := prometheus.Labels{"lock": l.name}
	l.acquired = prometheus.NewCounter(prometheus.CounterOpts{
		Name:        "ownlock_lock_acquired_total",
		Help:        "Total number of successful lock acquisitions",
		ConstLabels: labels,
	})
	l.released = prometheus.NewCounter(prometheus.CounterOpts{
		Name:        "ownlock_lock_released_total",
		Help:        "Total number of successful lock releases",
		ConstLabels: labels,
	})
	l.timeouts = prometheus.NewCounter(prometheus.CounterOpts{
		Name:        "ownlock_lock_acquire_timeouts_total",
		Help:        "Total number of acquisitions that timed out",
		ConstLabels: labels,
	})
	l.misuses = prometheus.NewCounter(prometheus.CounterOpts{
		Name:        "ownlock_lock_misuses_total",
		Help:        "Total number of reported lock misuses",
		ConstLabels: labels,
	})
	l.metricsReg.MustRegister(l.acquired, l.released, l.timeouts, l.misuses)
}
