package eventbus

import (
	"context"
	"sync"
	"sync/atomic"

	redis "github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("github.com/mirkobrombin/go-ownlock/v1/eventbus")

type redisSubscription struct {
	pubsub *redis.PubSub
	subs   []subscriber
}

// RedisBus implements Bus using Redis pub/sub. Lock events published
// on one node reach subscribers on every node sharing the Redis.
type RedisBus struct {
	client    *redis.Client
	mu        sync.Mutex
	subs      map[string]*redisSubscription
	published uint64
	delivered uint64
}

// NewRedisBus returns a new RedisBus using the provided client.
func NewRedisBus(client *redis.Client) *RedisBus {
	return &RedisBus{client: client, subs: make(map[string]*redisSubscription)}
}

// Publish implements Bus.Publish.
func (b *RedisBus) Publish(ctx context.Context, topic string) error {
	ctx, span := tracer.Start(ctx, "RedisBus.Publish",
		trace.WithAttributes(attribute.String("ownlock.bus.topic", topic)))
	defer span.End()

	if err := b.client.Publish(ctx, topic, "1").Err(); err != nil {
		return err
	}
	atomic.AddUint64(&b.published, 1)
	return nil
}

// Subscribe implements Bus.Subscribe.
func (b *RedisBus) Subscribe(ctx context.Context, topic string) (chan struct{}, error) {
	s := subscriber{ch: make(chan struct{}, 1), done: make(chan struct{})}
	b.mu.Lock()
	sub := b.subs[topic]
	if sub == nil {
		ps := b.client.Subscribe(ctx, topic)
		if _, err := ps.Receive(ctx); err != nil {
			b.mu.Unlock()
			_ = ps.Close()
			return nil, err
		}
		sub = &redisSubscription{pubsub: ps}
		b.subs[topic] = sub
		go b.dispatch(sub)
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

// dispatch sends under the bus lock so Unsubscribe cannot close a
// channel mid-send.
func (b *RedisBus) dispatch(sub *redisSubscription) {
	for range sub.pubsub.Channel() {
		b.mu.Lock()
		for _, s := range sub.subs {
			select {
			case s.ch <- struct{}{}:
				atomic.AddUint64(&b.delivered, 1)
			default:
			}
		}
		b.mu.Unlock()
	}
}

// Unsubscribe implements Bus.Unsubscribe.
func (b *RedisBus) Unsubscribe(ctx context.Context, topic string, ch chan struct{}) error {
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
		return sub.pubsub.Close()
	}
	b.mu.Unlock()
	return nil
}

// Metrics returns the published and delivered counts.
func (b *RedisBus) Metrics() Metrics {
	return Metrics{
		Published: atomic.LoadUint64(&b.published),
		Delivered: atomic.LoadUint64(&b.delivered),
	}
}
