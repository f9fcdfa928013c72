package repository

import (
	"context"

	"TradeFlow/internal/domain/models"
	domrepo "TradeFlow/internal/domain/repository"
	pkgkafka "TradeFlow/pkg/kafka"
)

// KafkaTickPublisher writes ticks to the ticks topic keyed by market:symbol,
// so one key always lands on one partition and keeps its receive order.
type KafkaTickPublisher struct {
	producer *pkgkafka.Producer
	topic    string
}

func NewKafkaTickPublisher(producer *pkgkafka.Producer, topic string) domrepo.TickPublisher {
	return &KafkaTickPublisher{producer: producer, topic: topic}
}

func (p *KafkaTickPublisher) Publish(ctx context.Context, t *models.Tick) error {
	return p.producer.Publish(ctx, p.topic, []byte(t.Key()), t)
}

func (p *KafkaTickPublisher) Close() error {
	if p.producer != nil {
		return p.producer.Close()
	}
	return nil
}

// KafkaBroadcaster publishes {channel, data} live updates keyed by channel.
type KafkaBroadcaster struct {
	producer *pkgkafka.Producer
	topic    string
}

func NewKafkaBroadcaster(producer *pkgkafka.Producer, topic string) *KafkaBroadcaster {
	return &KafkaBroadcaster{producer: producer, topic: topic}
}

func (b *KafkaBroadcaster) Broadcast(ctx context.Context, ev models.Event) error {
	return b.producer.Publish(ctx, b.topic, []byte(ev.Channel), ev)
}

// NopBroadcaster discards live updates. Used when no broker is configured.
type NopBroadcaster struct{}

func (NopBroadcaster) Broadcast(context.Context, models.Event) error { return nil }
