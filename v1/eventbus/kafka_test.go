package eventbus

import (
	"context"
	"os"
	"testing"
	"time"

	sarama "github.com/IBM/sarama"
	"github.com/google/uuid"
)

func newKafkaBus(t *testing.T) (*KafkaBus, context.Context) {
	t.Helper()
	addr := os.Getenv("OWNLOCK_TEST_KAFKA_ADDR")
	if addr == "" {
		t.Skip("OWNLOCK_TEST_KAFKA_ADDR not set, skipping Kafka integration tests")
	}
	t.Logf("using real Kafka at %s", addr)

	config := sarama.NewConfig()
	config.Producer.Return.Successes = true
	config.Consumer.Offsets.Initial = sarama.OffsetNewest

	bus, err := NewKafkaBus([]string{addr}, config)
	if err != nil {
		t.Fatalf("NewKafkaBus: %v", err)
	}
	t.Cleanup(func() {
		bus.Close()
	})
	return bus, context.Background()
}

func TestKafkaBusPublishSubscribeFlowAndMetrics(t *testing.T) {
	bus, ctx := newKafkaBus(t)
	topic := Topic(KindLocked, "test-"+uuid.NewString())
	sctx, cancel := context.WithCancel(ctx)
	defer cancel()

	ch, err := bus.Subscribe(sctx, topic)
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	if err := bus.Publish(ctx, topic); err != nil {
		t.Fatalf("publish: %v", err)
	}
	select {
	case <-ch:
	case <-time.After(10 * time.Second):
		t.Fatal("timeout waiting for event")
	}

	m := bus.Metrics()
	if m.Published != 1 {
		t.Fatalf("published = %d, want 1", m.Published)
	}
	if m.Delivered != 1 {
		t.Fatalf("delivered = %d, want 1", m.Delivered)
	}
}

func TestKafkaTopicSanitizesColons(t *testing.T) {
	if got := kafkaTopic("locked:db"); got != "locked.db" {
		t.Fatalf("kafkaTopic = %q", got)
	}
}
