package kafka

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"treasury/internal/events"
	"treasury/internal/log"
)

// handlerAttempts bounds redelivery of a message whose handler keeps failing.
const handlerAttempts = 3

type Consumer struct {
	reader *kafka.Reader
	logger *log.Logger
}

var _ events.Consumer = (*Consumer)(nil)

func NewConsumer(brokers []string, topic, groupID string, logger *log.Logger) *Consumer {
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	return &Consumer{
		reader: kafka.NewReader(kafka.ReaderConfig{
			Brokers:  brokers,
			Topic:    topic,
			GroupID:  groupID,
			MinBytes: 1,
			MaxBytes: 1 << 20,
		}),
		logger: logger.WithComponent(log.ComponentKafka),
	}
}

// Consume fetches messages and commits each one after the handler accepted it
// or gave up on it.
func (c *Consumer) Consume(ctx context.Context, handler events.Handler) error {
	c.logger.InfoContext(ctx, "Started consuming ledger events", "topic", c.reader.Config().Topic)

	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return ctx.Err()
			}
			return fmt.Errorf("fetch kafka message: %w", err)
		}

		c.handle(ctx, msg, handler)

		if err := c.reader.CommitMessages(ctx, msg); err != nil {
			c.logger.ErrorContext(ctx, "Failed to commit offset", "offset", msg.Offset, "error", err)
		}
	}
}

func (c *Consumer) handle(ctx context.Context, msg kafka.Message, handler events.Handler) {
	ev, err := events.FromJSON(msg.Value)
	if err != nil {
		c.logger.ErrorContext(ctx, "Skipping undecodable message", "offset", msg.Offset, "error", err)
		return
	}

	for attempt := 1; attempt <= handlerAttempts; attempt++ {
		err = handler(ctx, ev)
		if err == nil {
			return
		}
		c.logger.WarnContext(ctx, "Ledger event handler failed",
			log.FieldEventKind, ev.Kind,
			log.FieldRevision, ev.Revision,
			"attempt", attempt,
			"error", err)

		select {
		case <-ctx.Done():
			return
		case <-time.After(time.Duration(attempt) * time.Second):
		}
	}
	c.logger.ErrorContext(ctx, "Giving up on ledger event", log.FieldEventKind, ev.Kind, log.FieldRevision, ev.Revision)
}

func (c *Consumer) Close() error {
	return c.reader.Close()
}
