package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/segmentio/kafka-go"

	"github.com/fairyhunter13/seat-reservation-service/internal/config"
	"github.com/fairyhunter13/seat-reservation-service/internal/model"
)

// messageWriter is the subset of *kafka.Writer the publisher uses.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisher writes events to a topic keyed by event id, so the events
// of one event stay ordered within a partition.
type KafkaPublisher struct {
	w messageWriter
}

// NewKafkaPublisher creates a writer for cfg.Topic on cfg.Brokers.
func NewKafkaPublisher(cfg config.Kafka) (*KafkaPublisher, error) {
	if len(cfg.Brokers) == 0 {
		return nil, errors.New("kafka: no brokers configured")
	}
	if cfg.Topic == "" {
		return nil, errors.New("kafka: no topic configured")
	}
	w := &kafka.Writer{
		Addr:                   kafka.TCP(cfg.Brokers...),
		Topic:                  cfg.Topic,
		Balancer:               &kafka.Hash{},
		AllowAutoTopicCreation: true,
	}
	return &KafkaPublisher{w: w}, nil
}

// NewKafkaPublisherWithWriter wraps an existing writer.
func NewKafkaPublisherWithWriter(w messageWriter) *KafkaPublisher {
	return &KafkaPublisher{w: w}
}

func (k *KafkaPublisher) Publish(ctx context.Context, ev model.SeatEvent) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	if err := k.w.WriteMessages(ctx, kafka.Message{
		Key:   []byte(ev.EventID),
		Value: payload,
		Headers: []kafka.Header{
			{Key: "type", Value: []byte(ev.Type)},
		},
	}); err != nil {
		return fmt.Errorf("kafka write: %w", err)
	}
	return nil
}

func (k *KafkaPublisher) Close() error { return k.w.Close() }
