package eventbus

import (
	"context"
	"sync"
	"sync/atomic"
)

// Kind is the lifecycle event of a lock.
type Kind string

const (
	// KindLocked fires each time a lock is successfully acquired.
	KindLocked Kind = "locked"
	// KindUnlocked fires each time a lock is successfully released.
	KindUnlocked Kind = "unlocked"
)

// Topic returns the bus topic for a lifecycle event of the named lock.
func Topic(kind Kind, name string) string {
	return string(kind) + ":" + name
}

// Bus provides the pub/sub mechanism used to propagate lock lifecycle
// events to observers.
type Bus interface {
	Publish(ctx context.Context, topic string) error
	Subscribe(ctx context.Context, topic string) (chan struct{}, error)
	Unsubscribe(ctx context.Context, topic string, ch chan struct{}) error
}

// subscriber pairs a delivery channel with a done signal that releases
// the subscription's ctx-watch goroutine on manual unsubscribe. Both
// channels are closed only by Unsubscribe, under the bus lock.
type subscriber struct {
	ch   chan struct{}
	done chan struct{}
}

// InMemoryBus is a local implementation of Bus. It is the default bus
// of a Lock and delivers events only within the current process.
type InMemoryBus struct {
	mu        sync.Mutex
	subs      map[string][]subscriber
	published uint64
	delivered uint64
}

// NewInMemoryBus returns a new InMemoryBus.
func NewInMemoryBus() *InMemoryBus {
	return &InMemoryBus{subs: make(map[string][]subscriber)}
}

// Publish implements Bus.Publish. Delivery is non-blocking: a
// subscriber whose channel buffer is full misses the event. Sends
// happen under the bus lock so a concurrent Unsubscribe cannot close a
// channel mid-send.
func (b *InMemoryBus) Publish(ctx context.Context, topic string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	atomic.AddUint64(&b.published, 1)
	b.mu.Lock()
	for _, s := range b.subs[topic] {
		select {
		case s.ch <- struct{}{}:
			atomic.AddUint64(&b.delivered, 1)
		default:
		}
	}
	b.mu.Unlock()
	return nil
}

// Subscribe implements Bus.Subscribe. The subscription ends when ctx
// is canceled or the channel is passed to Unsubscribe.
func (b *InMemoryBus) Subscribe(ctx context.Context, topic string) (chan struct{}, error) {
	s := subscriber{ch: make(chan struct{}, 1), done: make(chan struct{})}
	b.mu.Lock()
	b.subs[topic] = append(b.subs[topic], s)
	b.mu.Unlock()
	go func() {
		select {
		case <-ctx.Done():
			_ = b.Unsubscribe(context.Background(), topic, s.ch)
		case <-s.done:
		}
	}()
	return s.ch, nil
}

// Unsubscribe implements Bus.Unsubscribe.
func (b *InMemoryBus) Unsubscribe(ctx context.Context, topic string, ch chan struct{}) error {
	b.mu.Lock()
	subs := b.subs[topic]
	for i, s := range subs {
		if s.ch == ch {
			subs[i] = subs[len(subs)-1]
			subs = subs[:len(subs)-1]
			b.subs[topic] = subs
			close(s.ch)
			close(s.done)
			break
		}
	}
	if len(subs) == 0 {
		delete(b.subs, topic)
	}
	b.mu.Unlock()
	return nil
}

// Metrics reports bus activity counts.
type Metrics struct {
	Published uint64
	Delivered uint64
}

// Metrics returns the published and delivered counts.
func (b *InMemoryBus) Metrics() Metrics {
	return Metrics{
		Published: atomic.LoadUint64(&b.published),
		Delivered: atomic.LoadUint64(&b.delivered),
	}
}
