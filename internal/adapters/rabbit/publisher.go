package rabbit

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/robertarktes/seat-holds-and-sales/internal/domain"
)

const (
	Exchange   = "shs.events"
	RoutingKey = "seat.state_changed"
)

// Publisher puts seat state changes on the shared topic exchange, one
// message per change, so every api instance's consumer sees the full
// stream regardless of which instance (or the sweeper) produced it.
type Publisher struct {
	ch *amqp.Channel
}

func NewPublisher(conn *amqp.Connection) (*Publisher, error) {
	ch, err := conn.Channel()
	if err != nil {
		return nil, err
	}
	err = ch.ExchangeDeclare(Exchange, "topic", true, false, false, false, nil)
	if err != nil {
		return nil, err
	}
	return &Publisher{ch: ch}, nil
}

func (p *Publisher) Publish(ctx context.Context, changes ...domain.SeatStateChanged) error {
	for _, change := range changes {
		body, err := json.Marshal(change)
		if err != nil {
			return err
		}
		msg := amqp.Publishing{
			MessageId:   uuid.New().String(),
			ContentType: "application/json",
			Body:        body,
		}
		if err := p.ch.PublishWithContext(ctx, Exchange, RoutingKey, false, false, msg); err != nil {
			return err
		}
	}
	return nil
}

func (p *Publisher) Close() error {
	return p.ch.Close()
}
