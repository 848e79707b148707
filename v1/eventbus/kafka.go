package eventbus

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"

	sarama "github.com/IBM/sarama"
)

type kafkaSubscription struct {
	pc   sarama.PartitionConsumer
	subs []subscriber
}

// KafkaBus implements Bus using a Kafka backend.
type KafkaBus struct {
	client    sarama.Client
	producer  sarama.SyncProducer
	consumer  sarama.Consumer
	mu        sync.Mutex
	subs      map[string]*kafkaSubscription
	published uint64
	delivered uint64
}

// NewKafkaBus creates a new KafkaBus connecting to the given brokers.
func NewKafkaBus(brokers []string, cfg *sarama.Config) (*KafkaBus, error) {
	if !cfg.Producer.Return.Successes {
		cfg.Producer.Return.Successes = true
	}
	client, err := sarama.NewClient(brokers, cfg)
	if err != nil {
		return nil, err
	}
	producer, err := sarama.NewSyncProducerFromClient(client)
	if err != nil {
		_ = client.Close()
		return nil, err
	}
	consumer, err := sarama.NewConsumerFromClient(client)
	if err != nil {
		_ = producer.Close()
		_ = client.Close()
		return nil, err
	}
	return &KafkaBus{
		client:   client,
		producer: producer,
		consumer: consumer,
		subs:     make(map[string]*kafkaSubscription),
	}, nil
}

// Kafka topic names cannot contain ':'.
func kafkaTopic(topic string) string {
	return strings.ReplaceAll(topic, ":", ".")
}

// Publish implements Bus.Publish.
func (b *KafkaBus) Publish(ctx context.Context, topic string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	msg := &sarama.ProducerMessage{Topic: kafkaTopic(topic), Value: sarama.StringEncoder("1")}
	if _, _, err := b.producer.SendMessage(msg); err != nil {
		return err
	}
	atomic.AddUint64(&b.published, 1)
	return nil
}

// Subscribe implements Bus.Subscribe.
func (b *KafkaBus) Subscribe(ctx context.Context, topic string) (chan struct{}, error) {
	s := subscriber{ch: make(chan struct{}, 1), done: make(chan struct{})}
	b.mu.Lock()
	sub := b.subs[topic]
	if sub == nil {
		pc, err := b.consumer.ConsumePartition(kafkaTopic(topic), 0, sarama.OffsetNewest)
		if err != nil {
			b.mu.Unlock()
			return nil, err
		}
		sub = &kafkaSubscription{pc: pc}
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
func (b *KafkaBus) dispatch(sub *kafkaSubscription) {
	for range sub.pc.Messages() {
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
func (b *KafkaBus) Unsubscribe(ctx context.Context, topic string, ch chan struct{}) error {
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
		return sub.pc.Close()
	}
	b.mu.Unlock()
	return nil
}

// Metrics returns the published and delivered counts.
func (b *KafkaBus) Metrics() Metrics {
	return Metrics{
		Published: atomic.LoadUint64(&b.published),
		Delivered: atomic.LoadUint64(&b.delivered),
	}
}

// Close releases resources used by the KafkaBus.
func (b *KafkaBus) Close() {
	_ = b.producer.Close()
	_ = b.consumer.Close()
	_ = b.client.Close()
}
