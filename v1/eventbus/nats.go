package eventbus

import (
	"context"
	"sync"
	"sync/atomic"

	nats "github.com/nats-io/nats.go"
)

type natsSubscription struct {
	sub  *nats.Subscription
	subs []subscriber
}

// NATSBus implements Bus using a NATS backend.
type NATSBus struct {
	conn      *nats.Conn
	mu        sync.Mutex
	subs      map[string]*natsSubscription
	published uint64
	delivered uint64
}

// NewNATSBus returns a new NATSBus using the provided connection.
func NewNATSBus(conn *nats.Conn) *NATSBus {
	return &NATSBus{conn: conn, subs: make(map[string]*natsSubscription)}
}

// Publish implements Bus.Publish.
func (b *NATSBus) Publish(ctx context.Context, topic string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := b.conn.Publish(topic, []byte("1")); err != nil {
		return err
	}
	atomic.AddUint64(&b.published, 1)
	return nil
}

// Subscribe implements Bus.Subscribe.
func (b *NATSBus) Subscribe(ctx context.Context, topic string) (chan struct{}, error) {
	s := subscriber{ch: make(chan struct{}, 1), done: make(chan struct{})}
	b.mu.Lock()
	sub := b.subs[topic]
	if sub == nil {
		// Sends stay under the bus lock so Unsubscribe cannot close a
		// channel mid-send.
		ns, err := b.conn.Subscribe(topic, func(_ *nats.Msg) {
			b.mu.Lock()
			if cur := b.subs[topic]; cur != nil {
				for _, s := range cur.subs {
					select {
					case s.ch <- struct{}{}:
						atomic.AddUint64(&b.delivered, 1)
					default:
					}
				}
			}
			b.mu.Unlock()
		})
		if err != nil {
			b.mu.Unlock()
			return nil, err
		}
		sub = &natsSubscription{sub: ns}
		b.subs[topic] = sub
	}
	sub.subs = append(sub.subs, s)
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
func (b *NATSBus) Unsubscribe(ctx context.Context, topic string, ch chan struct{}) error {
	b.mu.Lock()
	sub := b.subs[topic]
	if sub == nil {
		b.mu.Unlock()
		return nil
	}
	for i, s := range sub.subs {
		if s.ch == ch {
			sub.subs[i] = sub.subs[len(sub.subs)-1]
			sub.subs = sub.subs[:len(sub.subs)-1]
			close(s.ch)
			close(s.done)
			break
		}
	}
	if len(sub.subs) == 0 {
		delete(b.subs, topic)
		b.mu.Unlock()
		return sub.sub.Unsubscribe()
	}
	b.mu.Unlock()
	return nil
}

// Metrics returns the published and delivered counts.
func (b *NATSBus) Metrics() Metrics {
	return Metrics{
		Published: atomic.LoadUint64(&b.published),
		Delivered: atomic.LoadUint64(&b.delivered),
	}
}
