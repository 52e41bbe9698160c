/*
Package amqp adapts the ledger's event publishing to RabbitMQ.

PURPOSE:
  Implements ledger.Publisher over a durable topic exchange so external
  consumers (notification bots, reporting jobs) can react to ledger
  mutations without the engine knowing about them.

ROUTING:
  Routing key is the event kind ("payment_changed", "agreement_changed",
  ...), so consumers bind per kind or with "#" for everything.

FAILURE MODE:
  ledger.Publisher is fire-and-forget: a broker outage must never fail a
  committed ledger write. Publish errors are logged and dropped.

SEE ALSO:
  - ledger/events.go: event types and the Publisher contract
*/
package amqp

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rabbitmq/amqp091-go"
	"github.com/sirupsen/logrus"

	"github.com/ledgerkit/debt-engine/ledger"
)

const publishTimeout = 5 * time.Second

// Publisher publishes ledger events to a durable topic exchange.
type Publisher struct {
	conn     *amqp091.Connection
	channel  *amqp091.Channel
	exchange string
	log      *logrus.Logger
}

var _ ledger.Publisher = (*Publisher)(nil)

// envelope is the wire format. Field names are part of the consumer
// contract; do not rename.
type envelope struct {
	Kind     string    `json:"kind"`
	EntityID string    `json:"entity_id"`
	DebtorID string    `json:"debtor_id,omitempty"`
	At       time.Time `json:"at"`
}

// New dials the broker and declares the exchange.
func New(url, exchange string, log *logrus.Logger) (*Publisher, error) {
	conn, err := amqp091.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("dial AMQP: %w", err)
	}

	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}

	err = channel.ExchangeDeclare(
		exchange, // name
		"topic",  // type
		true,     // durable
		false,    // auto-deleted
		false,    // internal
		false,    // no-wait
		nil,      // arguments
	)
	if err != nil {
		channel.Close()
		conn.Close()
		return nil, fmt.Errorf("declare exchange: %w", err)
	}

	return &Publisher{conn: conn, channel: channel, exchange: exchange, log: log}, nil
}

// Publish sends the event to the exchange. Errors are logged, never returned:
// the ledger write already committed and must not appear to fail.
func (p *Publisher) Publish(ctx context.Context, e ledger.Event) {
	body, err := json.Marshal(envelope{
		Kind:     string(e.Kind),
		EntityID: e.EntityID,
		DebtorID: string(e.DebtorID),
		At:       e.At,
	})
	if err != nil {
		p.log.WithError(err).WithField("kind", e.Kind).Error("failed to marshal event")
		return
	}

	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	err = p.channel.PublishWithContext(
		ctx,
		p.exchange,     // exchange
		string(e.Kind), // routing key
		false,          // mandatory
		false,          // immediate
		amqp091.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp091.Persistent,
			Timestamp:    e.At,
			Body:         body,
		},
	)
	if err != nil {
		p.log.WithError(err).WithFields(logrus.Fields{
			"kind":      e.Kind,
			"entity_id": e.EntityID,
		}).Error("failed to publish event")
	}
}

// Close releases the channel and connection.
func (p *Publisher) Close() error {
	if p.channel != nil {
		p.channel.Close()
	}
	if p.conn != nil {
		return p.conn.Close()
	}
	return nil
}
