package rabbitmq

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/imrishuroy/go-basket-client/internal/events"
)

const publishTimeout = 5 * time.Second

// Publisher sends basket events to a queue on the default exchange.
type Publisher struct {
	pool      *ChannelPool
	queueName string
}

func NewPublisher(pool *ChannelPool, queueName string) *Publisher {
	return &Publisher{
		pool:      pool,
		queueName: queueName,
	}
}

// Publish sends ev as a persistent JSON message.
func (p *Publisher) Publish(ctx context.Context, ev events.BasketEvent) error {
	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	ch, err := p.pool.GetChannel(ctx)
	if err != nil {
		return fmt.Errorf("failed to get channel from pool: %w", err)
	}
	defer p.pool.ReturnChannel(ch)

	body, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	err = ch.PublishWithContext(ctx,
		"",          // exchange
		p.queueName, // routing key (queue name)
		false,       // mandatory
		false,       // immediate
		amqp.Publishing{
			DeliveryMode: amqp.Persistent,
			ContentType:  "application/json",
			MessageId:    ev.EventID,
			Type:         ev.Type,
			Timestamp:    ev.OccurredAt,
			Body:         body,
		})
	if err != nil {
		return fmt.Errorf("failed to publish %s event: %w", ev.Type, err)
	}
	return nil
}

// Close releases the underlying pool.
func (p *Publisher) Close() {
	p.pool.Close()
}
