// Package kafka publishes and consumes ledger events on a Kafka topic.
package kafka

import (
	"context"
	"fmt"

	"github.com/segmentio/kafka-go"

	"treasury/internal/events"
	"treasury/internal/log"
)

type Publisher struct {
	writer *kafka.Writer
	logger *log.Logger
}

var _ events.Publisher = (*Publisher)(nil)

func NewPublisher(brokers []string, topic string, logger *log.Logger) *Publisher {
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	return &Publisher{
		writer: &kafka.Writer{
			Addr:                   kafka.TCP(brokers...),
			Topic:                  topic,
			Balancer:               &kafka.Hash{},
			RequiredAcks:           kafka.RequireOne,
			AllowAutoTopicCreation: true,
		},
		logger: logger.WithComponent(log.ComponentKafka),
	}
}

func (p *Publisher) Publish(ctx context.Context, ev events.LedgerEvent) error {
	msg, err := message(ev)
	if err != nil {
		return err
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("write kafka message: %w", err)
	}

	p.logger.DebugContext(ctx, "Published ledger event",
		log.FieldEventKind, ev.Kind,
		log.FieldRevision, ev.Revision,
		"topic", p.writer.Topic)
	return nil
}

func (p *Publisher) Close() error {
	return p.writer.Close()
}

func message(ev events.LedgerEvent) (kafka.Message, error) {
	body, err := ev.ToJSON()
	if err != nil {
		return kafka.Message{}, fmt.Errorf("marshal event: %w", err)
	}
	return kafka.Message{
		Key:   []byte(ev.Key()),
		Value: body,
		Time:  ev.Timestamp,
		Headers: []kafka.Header{
			{Key: "kind", Value: []byte(ev.Kind)},
		},
	}, nil
}
