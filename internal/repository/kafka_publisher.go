package repository

import (
	"context"
	"time"

	"MarketPulse/internal/domain/models"
	"MarketPulse/internal/domain/repository"
	pkgkafka "MarketPulse/pkg/kafka"
)

// KafkaSnapshotPublisher implements SnapshotPublisher on a Kafka topic. Each
// published analysis is one message keyed by its generation time so replays
// keep cycle ordering per partition.
type KafkaSnapshotPublisher struct {
	producer *pkgkafka.Producer
	topic    string
}

// NewKafkaSnapshotPublisher creates a Kafka-backed analysis publisher.
func NewKafkaSnapshotPublisher(producer *pkgkafka.Producer, topic string) repository.SnapshotPublisher {
	return &KafkaSnapshotPublisher{producer: producer, topic: topic}
}

func (p *KafkaSnapshotPublisher) Publish(ctx context.Context, a *models.Analysis) error {
	key := []byte(a.GeneratedAt.UTC().Format(time.RFC3339))
	return p.producer.Publish(ctx, p.topic, key, a)
}

// PublishMessage satisfies the logger collector's Publisher so aggregated
// log batches can ride the same producer on a side topic.
func (p *KafkaSnapshotPublisher) PublishMessage(ctx context.Context, topic string, payload interface{}) error {
	return p.producer.Publish(ctx, topic, nil, payload)
}

func (p *KafkaSnapshotPublisher) Close() error {
	if p.producer != nil {
		return p.producer.Close()
	}
	return nil
}
