package repository

import (
	"context"
	"fmt"

	"StockFrame/internal/domain/models"
	domrepo "StockFrame/internal/domain/repository"
	pkgkafka "StockFrame/pkg/kafka"
)

// BatchPublisher is the producer method the publisher needs.
type BatchPublisher interface {
	PublishBatch(ctx context.Context, topic string, messages []pkgkafka.Message) error
}

// KafkaFeaturePublisher streams each row as a JSON message keyed by symbol, so
// one symbol's rows stay ordered within a partition.
type KafkaFeaturePublisher struct {
	producer  BatchPublisher
	topic     string
	batchSize int
}

var _ domrepo.FeatureSink = (*KafkaFeaturePublisher)(nil)

// NewKafkaFeaturePublisher creates Kafka publisher.
func NewKafkaFeaturePublisher(producer BatchPublisher, topic string, batchSize int) *KafkaFeaturePublisher {
	if batchSize <= 0 {
		batchSize = 500
	}
	return &KafkaFeaturePublisher{producer: producer, topic: topic, batchSize: batchSize}
}

func (p *KafkaFeaturePublisher) Name() string { return "kafka" }

func (p *KafkaFeaturePublisher) Save(ctx context.Context, t *models.FeatureTable) error {
	rows := t.Len()
	for lo := 0; lo < rows; lo += p.batchSize {
		hi := lo + p.batchSize
		if hi > rows {
			hi = rows
		}
		msgs := make([]pkgkafka.Message, 0, hi-lo)
		for _, r := range t.Rows[lo:hi] {
			msgs = append(msgs, pkgkafka.Message{Key: []byte(r.Symbol), Value: r})
		}
		if err := p.producer.PublishBatch(ctx, p.topic, msgs); err != nil {
			return fmt.Errorf("publish rows %d-%d: %w", lo, hi, err)
		}
	}
	return nil
}

// Close is a no-op; the producer is shared with the log collector and closed
// by the application.
func (p *KafkaFeaturePublisher) Close() error { return nil }
