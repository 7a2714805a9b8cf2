package poller

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
)

type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Publisher announces session events for one cart so every other instance
// following the topic clears its copy.
type Publisher struct {
	writer MessageWriter
	key    string
	source string
	now    func() time.Time
}

func NewPublisher(cartKey, topic string, brokers ...string) *Publisher {
	if topic == "" {
		topic = DefaultTopic
	}
	w := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.LeastBytes{},
		AllowAutoTopicCreation: true,
	}
	return NewPublisherWithWriter(w, cartKey)
}

func NewPublisherWithWriter(w MessageWriter, cartKey string) *Publisher {
	return &Publisher{writer: w, key: cartKey, now: time.Now}
}

// WithSource stamps published events with the sending instance's id.
func (p *Publisher) WithSource(id string) *Publisher {
	p.source = id
	return p
}

// Publish sends one event of the given type for the publisher's cart.
func (p *Publisher) Publish(ctx context.Context, eventType string) error {
	payload, err := json.Marshal(Event{Type: eventType, CartKey: p.key, Source: p.source, At: p.now().UTC()})
	if err != nil {
		return fmt.Errorf("encode %s event: %w", eventType, err)
	}

	msg := kafka.Message{
		Key:   []byte(p.key), // cart key for ordering
		Value: payload,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(eventType)},
		},
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("publish %s event: %w", eventType, err)
	}
	return nil
}

func (p *Publisher) Close() error {
	return p.writer.Close()
}
