package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/IBM/sarama"
	"go.uber.org/zap"

	"github.com/example/navalha/internal/services"
)

const EventPaymentSettled = "payment_settled"

func InitProducer(brokers []string, logger *zap.Logger) (sarama.SyncProducer, error) {
	config := sarama.NewConfig()
	config.Producer.Return.Successes = true
	config.Producer.RequiredAcks = sarama.WaitForAll
	config.Producer.Retry.Max = 5

	producer, err := sarama.NewSyncProducer(brokers, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create Kafka producer: %w", err)
	}

	logger.Info("Kafka producer initialized", zap.Strings("brokers", brokers))
	return producer, nil
}

// PaymentEvent is the record written to the payment topic.
type PaymentEvent struct {
	EventType  string                       `json:"event_type"`
	OccurredAt time.Time                    `json:"occurred_at"`
	Payment    services.PaymentSettledEvent `json:"payment"`
}

// Publisher emits terminal payment transitions to Kafka, keyed by payment id
// so every event of a payment lands on the same partition.
type Publisher struct {
	producer sarama.SyncProducer
	topic    string
	logger   *zap.Logger
}

func NewPublisher(producer sarama.SyncProducer, topic string, logger *zap.Logger) *Publisher {
	return &Publisher{producer: producer, topic: topic, logger: logger}
}

func (p *Publisher) NotifyPaymentSettled(ctx context.Context, event services.PaymentSettledEvent) error {
	eventJSON, err := json.Marshal(PaymentEvent{
		EventType:  EventPaymentSettled,
		OccurredAt: event.SettledAt,
		Payment:    event,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	msg := &sarama.ProducerMessage{
		Topic: p.topic,
		Key:   sarama.StringEncoder(event.PaymentID.String()),
		Value: sarama.ByteEncoder(eventJSON),
		Headers: []sarama.RecordHeader{
			{Key: []byte("event_type"), Value: []byte(EventPaymentSettled)},
		},
	}

	partition, offset, err := p.producer.SendMessage(msg)
	if err != nil {
		return fmt.Errorf("failed to send message: %w", err)
	}

	p.logger.Info("Payment event published",
		zap.String("topic", p.topic),
		zap.String("payment_id", event.PaymentID.String()),
		zap.String("status", string(event.Status)),
		zap.Int32("partition", partition),
		zap.Int64("offset", offset),
	)
	return nil
}

func (p *Publisher) Close() error {
	return p.producer.Close()
}
