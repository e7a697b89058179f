// Package rabbitmq provides the AMQP implementation of the consumer
// contract. Messages are consumed one at a time (prefetch 1), acknowledged
// manually, and dead-lettered with Nack(requeue=false) so the queue's
// dead-letter exchange receives them. Lost connections are re-established
// after a fixed 60 second backoff; the backoff is load-bearing for the
// processor's liveness and must not be shortened under load.
package rabbitmq

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/streadway/amqp"

	"epcis-hub/internal/brokers"
	"epcis-hub/internal/common/errors"
	"epcis-hub/internal/common/logging"
)

const reconnectDelay = 60 * time.Second

// Consumer implements brokers.Consumer over a single AMQP connection.
type Consumer struct {
	url    string
	dlx    string
	logger logging.Logger

	mu     sync.Mutex
	conn   *amqp.Connection
	closed bool
}

// NewConsumer dials the broker and prepares the dead-letter exchange.
func NewConsumer(url, deadLetterExchange string) (*Consumer, error) {
	c := &Consumer{
		url: url,
		dlx: deadLetterExchange,
		logger: logging.WithFields(
			logging.String("component", "rabbitmq_consumer"),
		),
	}
	if err := c.connect(); err != nil {
		return nil, errors.ConnectionError("failed to establish initial RabbitMQ connection", err)
	}
	return c, nil
}

func (c *Consumer) connect() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return fmt.Errorf("consumer is closed")
	}
	c.mu.Unlock()

	conn, err := amqp.Dial(c.url)
	if err != nil {
		return err
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return err
	}
	if err := ch.ExchangeDeclare(c.dlx, "fanout", true, false, false, false, nil); err != nil {
		conn.Close()
		return err
	}
	ch.Close()

	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()
	return nil
}

// Consume subscribes to the queue and runs the handler for each delivery in
// a dedicated goroutine. The subscription survives connection loss: after a
// broken channel the consumer waits the fixed reconnect delay, re-dials, and
// resumes. Consume returns once the initial subscription is established.
func (c *Consumer) Consume(ctx context.Context, queue string, handler brokers.Handler) error {
	deliveries, err := c.subscribe(queue)
	if err != nil {
		return errors.ConnectionError("failed to subscribe to queue "+queue, err)
	}

	go c.consumeLoop(ctx, queue, deliveries, handler)
	return nil
}

func (c *Consumer) consumeLoop(ctx context.Context, queue string, deliveries <-chan amqp.Delivery, handler brokers.Handler) {
	for {
		c.drain(ctx, deliveries, handler)
		if ctx.Err() != nil {
			c.logger.Info("Consumer stopped", logging.String("queue", queue))
			return
		}

		c.logger.Warn("RabbitMQ delivery channel closed, reconnecting",
			logging.String("queue", queue),
			logging.Duration("delay", reconnectDelay),
		)

		policy := backoff.WithContext(backoff.NewConstantBackOff(reconnectDelay), ctx)
		err := backoff.Retry(func() error {
			if err := c.connect(); err != nil {
				c.logger.Warn("RabbitMQ reconnect failed", logging.Err(err), logging.String("queue", queue))
				return err
			}
			next, err := c.subscribe(queue)
			if err != nil {
				c.logger.Warn("RabbitMQ resubscribe failed", logging.Err(err), logging.String("queue", queue))
				return err
			}
			deliveries = next
			return nil
		}, policy)
		if err != nil {
			// Context cancelled while waiting to reconnect.
			c.logger.Info("Consumer stopped during reconnect", logging.String("queue", queue))
			return
		}

		c.logger.Info("RabbitMQ subscription re-established", logging.String("queue", queue))
	}
}

// subscribe declares the durable queue with its dead-letter binding and
// starts a manual-ack consumer with prefetch 1.
func (c *Consumer) subscribe(queue string) (<-chan amqp.Delivery, error) {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn == nil || conn.IsClosed() {
		return nil, fmt.Errorf("connection not established")
	}

	ch, err := conn.Channel()
	if err != nil {
		return nil, err
	}

	if err := ch.Qos(1, 0, false); err != nil {
		ch.Close()
		return nil, err
	}

	args := amqp.Table{"x-dead-letter-exchange": c.dlx}
	if _, err := ch.QueueDeclare(queue, true, false, false, false, args); err != nil {
		ch.Close()
		return nil, err
	}

	// Terminal queue for rejected messages, bound to the dead-letter exchange.
	if _, err := ch.QueueDeclare(queue+".deadletter", true, false, false, false, nil); err != nil {
		ch.Close()
		return nil, err
	}
	if err := ch.QueueBind(queue+".deadletter", "", c.dlx, false, nil); err != nil {
		ch.Close()
		return nil, err
	}

	deliveries, err := ch.Consume(queue, "", false, false, false, false, nil)
	if err != nil {
		ch.Close()
		return nil, err
	}
	return deliveries, nil
}

// drain processes deliveries until the channel closes or the context ends.
func (c *Consumer) drain(ctx context.Context, deliveries <-chan amqp.Delivery, handler brokers.Handler) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-deliveries:
			if !ok {
				return
			}

			delivery := &brokers.Delivery{
				MessageID:       msg.MessageId,
				ContentType:     msg.ContentType,
				ContentEncoding: msg.ContentEncoding,
				Headers:         map[string]interface{}(msg.Headers),
				Body:            msg.Body,
				Timestamp:       msg.Timestamp,
			}

			switch handler(ctx, delivery) {
			case brokers.Ack:
				if err := msg.Ack(false); err != nil {
					c.logger.Error("Failed to ack message", err, logging.String("message_id", msg.MessageId))
				}
			case brokers.DeadLetter:
				if err := msg.Nack(false, false); err != nil {
					c.logger.Error("Failed to dead-letter message", err, logging.String("message_id", msg.MessageId))
				}
			}
		}
	}
}

// Health reports whether the AMQP connection is open.
func (c *Consumer) Health() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil || c.conn.IsClosed() {
		return errors.ConnectionError("RabbitMQ connection is not open", nil)
	}
	return nil
}

// Close shuts the connection down.
func (c *Consumer) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	if c.conn != nil && !c.conn.IsClosed() {
		return c.conn.Close()
	}
	return nil
}
