package syncer

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"factory-erp/internal/core"
	"factory-erp/internal/logger"

	"github.com/google/uuid"
	"github.com/twmb/franz-go/pkg/kgo"
)

const KafkaSinkName = "kafka"

// ChangeEvent is the message published for every committed change.
type ChangeEvent struct {
	EventID    string      `json:"eventId"`
	Table      core.Table  `json:"table"`
	Action     core.Action `json:"action"`
	RecordID   string      `json:"recordId"`
	Record     any         `json:"record,omitempty"`
	OccurredAt time.Time   `json:"occurredAt"`
}

type producer interface {
	ProduceSync(ctx context.Context, rs ...*kgo.Record) kgo.ProduceResults
	Close()
}

// KafkaSink publishes changes as JSON events keyed by record id.
type KafkaSink struct {
	client producer
	topic  string
	log    logger.Logger
}

func NewKafkaSink(brokers []string, topic string, log logger.Logger) (*KafkaSink, error) {
	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.DefaultProduceTopic(topic),
		kgo.RequiredAcks(kgo.AllISRAcks()),
	)
	if err != nil {
		return nil, fmt.Errorf("create kafka producer: %w", err)
	}
	log.Info("kafka change feed configured", logger.Any("brokers", brokers), logger.String("topic", topic))
	return &KafkaSink{client: client, topic: topic, log: log}, nil
}

func (k *KafkaSink) Name() string { return KafkaSinkName }

func (k *KafkaSink) Push(ctx context.Context, ch core.Change) error {
	payload, err := json.Marshal(ChangeEvent{
		EventID:    uuid.NewString(),
		Table:      ch.Table,
		Action:     ch.Action,
		RecordID:   ch.RecordID,
		Record:     ch.Record,
		OccurredAt: time.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("failed to encode change event: %w", err)
	}

	rec := &kgo.Record{
		Topic:     k.topic,
		Key:       []byte(ch.RecordID),
		Value:     payload,
		Timestamp: time.Now().UTC(),
	}
	if err := k.client.ProduceSync(ctx, rec).FirstErr(); err != nil {
		return fmt.Errorf("publish to kafka topic %s: %w", k.topic, err)
	}
	return nil
}

func (k *KafkaSink) Close() {
	k.log.Info("closing kafka change feed", logger.String("topic", k.topic))
	k.client.Close()
}
