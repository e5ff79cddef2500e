package messaging

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/sirupsen/logrus"

	"github.com/earshot-fm/earshot/internal/config"
	"github.com/earshot-fm/earshot/pkg/models"
)

// EventPublisher emits engagement events for downstream consumers (the
// offline embedding pipeline, analytics). Publishing is best effort at the
// call sites: a broker outage must never fail the user-facing request.
type EventPublisher interface {
	PublishEngagement(ctx context.Context, event models.EngagementEvent) error
	Close() error
}

// KafkaPublisher writes engagement events to a single topic, keyed by user
// so one user's events stay ordered within a partition.
type KafkaPublisher struct {
	writer *kafka.Writer
	logger *logrus.Logger
}

func NewKafkaPublisher(cfg config.KafkaConfig, logger *logrus.Logger) *KafkaPublisher {
	return &KafkaPublisher{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(cfg.Brokers...),
			Topic:        cfg.Topics.EngagementEvents,
			Balancer:     &kafka.Hash{},
			RequiredAcks: kafka.RequireOne,
			Async:        false,
			BatchTimeout: 10 * time.Millisecond,
			BatchSize:    100,
		},
		logger: logger,
	}
}

func (p *KafkaPublisher) PublishEngagement(ctx context.Context, event models.EngagementEvent) error {
	value, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal engagement event: %w", err)
	}

	message := kafka.Message{
		Key:   []byte(event.UserID),
		Value: value,
		Headers: []kafka.Header{
			{Key: "type", Value: []byte(event.Type)},
			{Key: "timestamp", Value: []byte(event.Timestamp.Format(time.RFC3339))},
		},
	}

	writeCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if err := p.writer.WriteMessages(writeCtx, message); err != nil {
		return fmt.Errorf("failed to publish engagement event: %w", err)
	}

	p.logger.WithFields(logrus.Fields{
		"user_id":    event.UserID,
		"episode_id": event.EpisodeID,
		"type":       event.Type,
	}).Debug("Engagement event published")

	return nil
}

func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

// NoopPublisher drops events. Used when no brokers are configured.
type NoopPublisher struct{}

func (NoopPublisher) PublishEngagement(context.Context, models.EngagementEvent) error { return nil }
func (NoopPublisher) Close() error                                                    { return nil }
