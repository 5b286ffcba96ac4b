package events

import (
	"context"

	"github.com/serviceloop/service-booking/internal/platform/kafka"
)

// Publisher wraps the Kafka producer with the CloudEvent envelope so
// application services publish typed payloads without touching transport
// details.
type Publisher struct {
	producer *kafka.Producer
	source   string
}

// NewPublisher creates a Publisher stamping events with the given source.
func NewPublisher(producer *kafka.Producer, source string) *Publisher {
	return &Publisher{producer: producer, source: source}
}

// Publish wraps the payload in a CloudEvent and writes it to the topic.
func (p *Publisher) Publish(ctx context.Context, topic, eventType, key string, payload interface{}) error {
	event, err := kafka.NewCloudEvent(p.source, eventType, payload)
	if err != nil {
		return err
	}
	return p.producer.PublishEvent(ctx, topic, key, event)
}
