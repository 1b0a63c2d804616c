package repository

import (
	"context"
	"time"

	"PriceCast/internal/domain/models"
	domrepo "PriceCast/internal/domain/repository"
)

// MessagePublisher is the subset of the Kafka producer used for events.
type MessagePublisher interface {
	Publish(ctx context.Context, topic string, key []byte, value interface{}) error
	Close() error
}

// KafkaEventPublisher writes domain events to one topic keyed by ticker.
type KafkaEventPublisher struct {
	p     MessagePublisher
	topic string
}

var _ domrepo.EventPublisher = (*KafkaEventPublisher)(nil)

func NewKafkaEventPublisher(p MessagePublisher, topic string) *KafkaEventPublisher {
	return &KafkaEventPublisher{p: p, topic: topic}
}

func (k *KafkaEventPublisher) PublishModelTrained(ctx context.Context, e models.ModelTrainedEvent) error {
	e.Type = models.EventModelTrained
	if e.At.IsZero() {
		e.At = time.Now().UTC()
	}
	return k.p.Publish(ctx, k.topic, []byte(e.Ticker), e)
}

func (k *KafkaEventPublisher) PublishForecastCompleted(ctx context.Context, e models.ForecastCompletedEvent) error {
	e.Type = models.EventForecastCompleted
	if e.At.IsZero() {
		e.At = time.Now().UTC()
	}
	return k.p.Publish(ctx, k.topic, []byte(e.Ticker), e)
}

// Close does not close the producer; it is shared with the log collector.
func (k *KafkaEventPublisher) Close() error { return nil }

// NoopEventPublisher drops every event.
type NoopEventPublisher struct{}

var _ domrepo.EventPublisher = NoopEventPublisher{}

func (NoopEventPublisher) PublishModelTrained(context.Context, models.ModelTrainedEvent) error {
	return nil
}

func (NoopEventPublisher) PublishForecastCompleted(context.Context, models.ForecastCompletedEvent) error {
	return nil
}

func (NoopEventPublisher) Close() error { return nil }
