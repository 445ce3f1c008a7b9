package distribution

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"sync"

	"github.com/twmb/franz-go/pkg/kgo"

	"wordhub/internal/platform/kafka"
	dErrors "wordhub/pkg/domain-errors"
)

// Transport moves one payload to one receiver. Implementations do not retry.
type Transport interface {
	Deliver(ctx context.Context, receiver string, payload Payload) error
}

// KafkaTransport writes each payload to the receiver's topic.
type KafkaTransport struct {
	client *kgo.Client
	prefix string
}

// NewKafkaTransport wraps a producer client.
func NewKafkaTransport(client *kgo.Client, topicPrefix string) *KafkaTransport {
	return &KafkaTransport{client: client, prefix: topicPrefix}
}

func (t *KafkaTransport) Deliver(ctx context.Context, receiver string, payload Payload) error {
	value, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode payload: %w", err)
	}
	record := &kgo.Record{
		Topic: kafka.TopicFor(t.prefix, receiver),
		Key:   []byte(payload.Action + "/" + payload.ActionType),
		Value: value,
		Headers: []kgo.RecordHeader{
			{Key: "from", Value: []byte(payload.Sender)},
		},
	}
	if err := t.client.ProduceSync(ctx, record).FirstErr(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeUnavailable, "kafka produce failed")
	}
	return nil
}

// Delivery is a payload seen by MemoryTransport.
type Delivery struct {
	Receiver string
	Payload  Payload
}

// MemoryTransport records deliveries in memory. Receivers can be made to fail.
type MemoryTransport struct {
	mu        sync.Mutex
	delivered []Delivery
	failing   map[string]error
}

// NewMemoryTransport creates an empty in-memory transport.
func NewMemoryTransport() *MemoryTransport {
	return &MemoryTransport{failing: make(map[string]error)}
}

func (t *MemoryTransport) Deliver(ctx context.Context, receiver string, payload Payload) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if err, ok := t.failing[receiver]; ok {
		return err
	}
	t.delivered = append(t.delivered, Delivery{Receiver: receiver, Payload: payload})
	return nil
}

// Fail makes every delivery to receiver return err. A nil err heals it.
func (t *MemoryTransport) Fail(receiver string, err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if err == nil {
		delete(t.failing, receiver)
		return
	}
	t.failing[receiver] = err
}

// Deliveries returns a copy of what has been delivered so far.
func (t *MemoryTransport) Deliveries() []Delivery {
	t.mu.Lock()
	defer t.mu.Unlock()
	return slices.Clone(t.delivered)
}

// For returns the deliveries made to receiver.
func (t *MemoryTransport) For(receiver string) []Delivery {
	var out []Delivery
	for _, d := range t.Deliveries() {
		if d.Receiver == receiver {
			out = append(out, d)
		}
	}
	return out
}
