package events

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill-kafka/v2/pkg/kafka"
	"github.com/ThreeDotsLabs/watermill/message"
)

// Publisher delivers domain events to downstream consumers. Publishing is
// fire-and-forget from the caller's perspective: errors are returned for
// logging but never roll back the transaction that produced the event.
type Publisher interface {
	Publish(ctx context.Context, eventType string, occurredAt time.Time, payload interface{}) error
	Close() error
}

// KafkaPublisher sends envelopes to one Kafka topic through watermill.
type KafkaPublisher struct {
	publisher message.Publisher
	topic     string
}

// NewKafkaPublisher connects to the given brokers. Events are keyed by the
// envelope ID.
func NewKafkaPublisher(brokers []string, topic string, logger watermill.LoggerAdapter) (*KafkaPublisher, error) {
	publisher, err := kafka.NewPublisher(
		kafka.PublisherConfig{
			Brokers:   brokers,
			Marshaler: kafka.DefaultMarshaler{},
		},
		logger,
	)
	if err != nil {
		return nil, err
	}

	return &KafkaPublisher{
		publisher: publisher,
		topic:     topic,
	}, nil
}

func (p *KafkaPublisher) Publish(ctx context.Context, eventType string, occurredAt time.Time, payload interface{}) error {
	envelope, err := NewEnvelope(eventType, occurredAt, payload)
	if err != nil {
		return err
	}

	body, err := json.Marshal(envelope)
	if err != nil {
		return err
	}

	msg := message.NewMessage(envelope.ID, body)
	msg.SetContext(ctx)
	msg.Metadata.Set("event_type", envelope.Type)
	msg.Metadata.Set("source", envelope.Source)

	return p.publisher.Publish(p.topic, msg)
}

func (p *KafkaPublisher) Close() error {
	return p.publisher.Close()
}

// MemoryPublisher collects envelopes in memory. Used in tests and as the
// fallback when no brokers are configured.
type MemoryPublisher struct {
	mu        sync.Mutex
	envelopes []*Envelope
}

func NewMemoryPublisher() *MemoryPublisher {
	return &MemoryPublisher{}
}

func (p *MemoryPublisher) Publish(_ context.Context, eventType string, occurredAt time.Time, payload interface{}) error {
	envelope, err := NewEnvelope(eventType, occurredAt, payload)
	if err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	p.envelopes = append(p.envelopes, envelope)
	return nil
}

func (p *MemoryPublisher) Close() error {
	return nil
}

// Envelopes returns a snapshot of everything published so far.
func (p *MemoryPublisher) Envelopes() []*Envelope {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]*Envelope, len(p.envelopes))
	copy(out, p.envelopes)
	return out
}

// ByType filters published envelopes by event type.
func (p *MemoryPublisher) ByType(eventType string) []*Envelope {
	var out []*Envelope
	for _, e := range p.Envelopes() {
		if e.Type == eventType {
			out = append(out, e)
		}
	}
	return out
}
