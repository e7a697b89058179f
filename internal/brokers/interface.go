// Package brokers defines the queue transport contract consumed by the
// message processor. The transport owns connection lifecycle, delivery, and
// acknowledgment mechanics; the processor only sees deliveries and returns
// dispositions.
package brokers

import (
	"context"
	"time"
)

// Delivery is one inbound transport message with its metadata.
type Delivery struct {
	MessageID       string
	ContentType     string
	ContentEncoding string
	Headers         map[string]interface{}
	Body            []byte
	Timestamp       time.Time
}

// Outcome is the terminal disposition of a consumed message.
type Outcome int

const (
	// Ack acknowledges the message as fully processed
	Ack Outcome = iota
	// DeadLetter negative-acknowledges without requeue, routing the message
	// to the dead-letter exchange for operator inspection
	DeadLetter
)

// Handler processes one delivery and returns its disposition. Handlers must
// be safe to call sequentially from the transport's consume goroutine.
type Handler func(ctx context.Context, delivery *Delivery) Outcome

// Consumer consumes messages from a queue and applies a handler's
// disposition to each.
type Consumer interface {
	Consume(ctx context.Context, queue string, handler Handler) error
	Health() error
	Close() error
}
