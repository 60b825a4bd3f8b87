package amqp

import (
	"fmt"
	"time"

	"github.com/rabbitmq/amqp091-go"

	"treasury/internal/events"
)

// publishing wraps a ledger event in a persistent JSON message.
func publishing(ev events.LedgerEvent) (amqp091.Publishing, error) {
	body, err := ev.ToJSON()
	if err != nil {
		return amqp091.Publishing{}, fmt.Errorf("marshal message: %w", err)
	}
	return amqp091.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp091.Persistent,
		Timestamp:    time.Now(),
		Type:         string(ev.Kind),
		Body:         body,
	}, nil
}

// decode extracts the ledger event carried by a delivery.
func decode(d amqp091.Delivery) (events.LedgerEvent, error) {
	return events.FromJSON(d.Body)
}
