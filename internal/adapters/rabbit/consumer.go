package rabbit

import (
	"context"
	"encoding/json"

	"github.com/cockroachdb/errors"
	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/robertarktes/seat-holds-and-sales/internal/domain"
	"github.com/robertarktes/seat-holds-and-sales/internal/observability"
)

// Consumer bridges broker events back into a process. Each consumer
// gets its own exclusive auto-delete queue bound to the topic
// exchange: no backlog accumulates while nobody is connected, which is
// exactly the best-effort contract subscribers get.
type Consumer struct {
	ch     *amqp.Channel
	queue  string
	logger observability.Logger
}

func NewConsumer(conn *amqp.Connection, logger observability.Logger) (*Consumer, error) {
	ch, err := conn.Channel()
	if err != nil {
		return nil, err
	}
	if err := ch.ExchangeDeclare(Exchange, "topic", true, false, false, false, nil); err != nil {
		return nil, err
	}
	q, err := ch.QueueDeclare("", false, true, true, false, nil)
	if err != nil {
		return nil, err
	}
	if err := ch.QueueBind(q.Name, RoutingKey, Exchange, false, nil); err != nil {
		return nil, err
	}
	if err := ch.Qos(16, 0, false); err != nil {
		return nil, err
	}
	return &Consumer{ch: ch, queue: q.Name, logger: logger}, nil
}

// Run delivers decoded events to handler until ctx is canceled or the
// channel dies. Undecodable bodies are rejected without requeue.
func (c *Consumer) Run(ctx context.Context, handler func(domain.SeatStateChanged)) error {
	deliveries, err := c.ch.Consume(c.queue, "", false, true, false, false, nil)
	if err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case d, ok := <-deliveries:
			if !ok {
				return errors.New("rabbit delivery channel closed")
			}
			var change domain.SeatStateChanged
			if err := json.Unmarshal(d.Body, &change); err != nil {
				c.logger.WithError(err).Warn("dropping undecodable event")
				_ = d.Nack(false, false)
				continue
			}
			handler(change)
			_ = d.Ack(false)
		}
	}
}

func (c *Consumer) Close() error {
	return c.ch.Close()
}
