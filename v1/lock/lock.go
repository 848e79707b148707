package lock

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/semaphore"

	"github.com/mirkobrombin/go-ownlock/v1/eventbus"
	"github.com/mirkobrombin/go-ownlock/v1/metrics"
	"github.com/mirkobrombin/go-ownlock/v1/task"
)

var tracer = otel.Tracer("github.com/mirkobrombin/go-ownlock/v1/lock")

// Lock is an ownership-checked mutual-exclusion lock. The exclusive
// token is a weighted semaphore of capacity one; the owner field holds
// the handle of the task that currently has the token. A free lock has
// one semaphore unit available and no owner.
//
// A Lock is reusable indefinitely and safe for concurrent use. No
// fairness among waiters is promised: whichever waiter's semaphore
// acquisition resolves first wins.
type Lock struct {
	sem            *semaphore.Weighted
	defaultTimeout time.Duration
	name           string
	bus            eventbus.Bus
	counter        *Counter
	reporter       Reporter

	mu    sync.Mutex
	owner task.Handle

	metricsReg   prometheus.Registerer
	acquired     prometheus.Counter
	released     prometheus.Counter
	timeouts     prometheus.Counter
	misuses      prometheus.Counter
	traceEnabled bool
}

// New returns a free Lock. defaultTimeout bounds every Acquire that
// does not bring its own timeout; zero means wait indefinitely.
// Negative durations are treated as zero.
func New(defaultTimeout time.Duration, opts ...Option) *Lock {
	if defaultTimeout < 0 {
		defaultTimeout = 0
	}
	l := &Lock{
		sem:            semaphore.NewWeighted(1),
		defaultTimeout: defaultTimeout,
		counter:        defaultCounter,
		reporter:       defaultReporter,
	}
	for _, opt := range opts {
		opt(l)
	}
	if l.name == "" {
		l.name = uuid.NewString()
	}
	if l.bus == nil {
		l.bus = eventbus.NewInMemoryBus()
	}
	if l.metricsReg != nil {
		l.registerMetrics()
	}
	return l
}

// Name returns the lock's event topic key.
func (l *Lock) Name() string {
	return l.name
}

// Bus returns the bus carrying the lock's lifecycle events.
func (l *Lock) Bus() eventbus.Bus {
	return l.bus
}

// Acquire obtains the lock, suspending the caller until the token is
// available or the effective timeout elapses. The effective timeout is
// timeout if nonzero, else the construction default; zero either way
// means wait indefinitely.
//
// An acquire by the task already holding the lock is a misuse: it is
// reported, counted, and returns ErrSelfRelock with the lock state
// unchanged. Expiry of the effective timeout is likewise reported and
// counted and returns ErrAcquireTimeout. Cancellation of ctx itself
// returns ctx.Err() and is not counted as misuse.
func (l *Lock) Acquire(ctx context.Context, timeout time.Duration) error {
	if l.traceEnabled {
		var span trace.Span
		ctx, span = tracer.Start(ctx, "Lock.Acquire",
			trace.WithAttributes(attribute.String("ownlock.name", l.name)))
		defer span.End()
	}

	h := task.From(ctx)
	if h.IsZero() {
		return ErrNoTask
	}
	if l.ownedBy(h) {
		l.misuse(fmt.Sprintf("acquire: lock %q already held by %s", l.name, h))
		return ErrSelfRelock
	}

	eff := timeout
	if eff <= 0 {
		eff = l.defaultTimeout
	}

	// The semaphore acquisition is atomic with context expiry: if the
	// timer fires first the unit is never consumed, and once the unit
	// is obtained a late timer cannot take it back.
	acquireCtx := ctx
	if eff > 0 {
		var cancel context.CancelFunc
		acquireCtx, cancel = context.WithTimeout(ctx, eff)
		defer cancel()
	}
	if err := l.sem.Acquire(acquireCtx, 1); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		l.misuse(fmt.Sprintf("acquire: lock %q not acquired within %s", l.name, eff))
		metrics.TimeoutCounter.Inc()
		if l.timeouts != nil {
			l.timeouts.Inc()
		}
		return ErrAcquireTimeout
	}

	l.setOwner(h)
	_ = l.bus.Publish(ctx, eventbus.Topic(eventbus.KindLocked, l.name))
	return nil
}

// TryAcquire attempts to take the lock without suspending. It returns
// whether the calling task now owns the lock.
//
// Calling TryAcquire while already holding the lock is a misuse: it is
// reported and counted, and the call returns (true, ErrSelfRelock).
// The true reflects that the caller does own the lock, even though no
// new acquisition happened. Callers rely on this reading; keep it.
func (l *Lock) TryAcquire(ctx context.Context) (bool, error) {
	h := task.From(ctx)
	if h.IsZero() {
		return false, ErrNoTask
	}
	if l.ownedBy(h) {
		l.misuse(fmt.Sprintf("try-acquire: lock %q already held by %s", l.name, h))
		return true, ErrSelfRelock
	}
	if !l.sem.TryAcquire(1) {
		return false, nil
	}
	l.setOwner(h)
	_ = l.bus.Publish(ctx, eventbus.Topic(eventbus.KindLocked, l.name))
	return true, nil
}

// Release returns the lock. Only the current owner may release; a
// release by any other task, including a release of a free lock, is a
// misuse: reported, counted, returns ErrUnownedRelease and leaves the
// lock untouched. Release never suspends.
func (l *Lock) Release(ctx context.Context) error {
	if l.traceEnabled {
		var span trace.Span
		ctx, span = tracer.Start(ctx, "Lock.Release",
			trace.WithAttributes(attribute.String("ownlock.name", l.name)))
		defer span.End()
	}

	h := task.From(ctx)
	if h.IsZero() {
		return ErrNoTask
	}
	l.mu.Lock()
	if l.owner != h {
		l.mu.Unlock()
		l.misuse(fmt.Sprintf("release: lock %q not held by %s", l.name, h))
		return ErrUnownedRelease
	}
	l.owner = task.Handle{}
	l.mu.Unlock()
	l.sem.Release(1)
	metrics.ReleasedCounter.Inc()
	metrics.HeldGauge.Dec()
	if l.released != nil {
		l.released.Inc()
	}
	_ = l.bus.Publish(ctx, eventbus.Topic(eventbus.KindUnlocked, l.name))
	return nil
}

// IsLocked reports whether any task currently holds the lock.
func (l *Lock) IsLocked() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return !l.owner.IsZero()
}

// OwnedBy reports whether the task on ctx currently holds the lock.
func (l *Lock) OwnedBy(ctx context.Context) bool {
	return l.ownedBy(task.From(ctx))
}

// Locked subscribes to the lock's acquisition events. The channel
// fires once per successful acquire from the moment of subscription;
// past events are not replayed. The subscription ends with ctx.
func (l *Lock) Locked(ctx context.Context) (chan struct{}, error) {
	return l.bus.Subscribe(ctx, eventbus.Topic(eventbus.KindLocked, l.name))
}

// Unlocked subscribes to the lock's release events. Same delivery
// semantics as Locked.
func (l *Lock) Unlocked(ctx context.Context) (chan struct{}, error) {
	return l.bus.Subscribe(ctx, eventbus.Topic(eventbus.KindUnlocked, l.name))
}

func (l *Lock) setOwner(h task.Handle) {
	l.mu.Lock()
	l.owner = h
	l.mu.Unlock()
	metrics.AcquiredCounter.Inc()
	metrics.HeldGauge.Inc()
	if l.acquired != nil {
		l.acquired.Inc()
	}
}

func (l *Lock) ownedBy(h task.Handle) bool {
	if h.IsZero() {
		return false
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.owner == h
}

// misuse counts and reports a programmer error. The reported location
// is the call site of the exported operation, two frames up.
func (l *Lock) misuse(msg string) {
	l.counter.Inc()
	metrics.MisuseCounter.Inc()
	if l.misuses != nil {
		l.misuses.Inc()
	}
	file, line := callerLocation(2)
	l.reporter(msg, file, line)
}
