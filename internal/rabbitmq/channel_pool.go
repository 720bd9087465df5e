package rabbitmq

import (
	"context"
	"errors"
	"fmt"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"github.com/imrishuroy/go-basket-client/internal/logging"
)

// ErrPoolClosed is returned by GetChannel after Close.
var ErrPoolClosed = errors.New("channel pool closed")

// Channel is the part of *amqp.Channel the publisher needs.
type Channel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	IsClosed() bool
	Close() error
}

// ChannelPool hands out pre-opened channels on one connection. Each channel
// has the queue declared durable.
type ChannelPool struct {
	conn       *amqp.Connection
	channels   chan Channel
	newChannel func() (Channel, error)
	mu         sync.Mutex
	closed     bool
	log        *zap.Logger
}

// NewChannelPool dials rabbitmqURL and opens size channels.
func NewChannelPool(rabbitmqURL, queueName string, size int, log *zap.Logger) (*ChannelPool, error) {
	conn, err := amqp.Dial(rabbitmqURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}
	pool, err := newPool(size, func() (Channel, error) { return declareChannel(conn, queueName) }, log)
	if err != nil {
		conn.Close()
		return nil, err
	}
	pool.conn = conn
	return pool, nil
}

func newPool(size int, factory func() (Channel, error), log *zap.Logger) (*ChannelPool, error) {
	if size < 1 {
		size = 1
	}
	pool := &ChannelPool{
		channels:   make(chan Channel, size),
		newChannel: factory,
		log:        logging.OrNop(log),
	}

	for i := 0; i < size; i++ {
		ch, err := factory()
		if err != nil {
			pool.Close()
			return nil, fmt.Errorf("failed to create channel %d: %w", i, err)
		}
		pool.channels <- ch
	}

	pool.log.Info("created RabbitMQ channel pool", zap.Int("size", size))
	return pool, nil
}

func declareChannel(conn *amqp.Connection, queueName string) (Channel, error) {
	ch, err := conn.Channel()
	if err != nil {
		return nil, err
	}

	_, err = ch.QueueDeclare(
		queueName, // name
		true,      // durable
		false,     // delete when unused
		false,     // exclusive
		false,     // no-wait
		nil,       // arguments
	)
	if err != nil {
		ch.Close()
		return nil, fmt.Errorf("failed to declare queue: %w", err)
	}
	return ch, nil
}

// GetChannel takes a channel from the pool, waiting until one is returned or
// ctx is done. A channel found closed is replaced.
func (p *ChannelPool) GetChannel(ctx context.Context) (Channel, error) {
	select {
	case ch, ok := <-p.channels:
		if !ok {
			return nil, ErrPoolClosed
		}
		if ch.IsClosed() {
			p.log.Warn("replacing closed RabbitMQ channel")
			return p.newChannel()
		}
		return ch, nil
	case <-ctx.Done():
		return nil, fmt.Errorf("no channels available in pool: %w", ctx.Err())
	}
}

// ReturnChannel puts ch back. Closed channels, and channels returned to a
// full or closed pool, are dropped.
func (p *ChannelPool) ReturnChannel(ch Channel) {
	if ch == nil || ch.IsClosed() {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		ch.Close()
		return
	}
	select {
	case p.channels <- ch:
	default:
		ch.Close()
	}
}

// Close closes all pooled channels and the connection.
func (p *ChannelPool) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}
	p.closed = true

	close(p.channels)
	for ch := range p.channels {
		ch.Close()
	}
	if p.conn != nil {
		p.conn.Close()
	}
	p.log.Info("closed RabbitMQ channel pool")
}
