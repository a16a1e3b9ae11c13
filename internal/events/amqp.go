package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// DefaultDialTimeout bounds connecting and the AMQP handshake
const DefaultDialTimeout = 2 * time.Second

// AMQPPublisher publishes each event to a durable queue named after its type.
// Errors are returned to the caller, which owns logging them.
type AMQPPublisher struct {
	URL         string
	DialTimeout time.Duration // Zero means DefaultDialTimeout
}

// NewAMQPPublisher returns a publisher for url, or Noop when url is empty
func NewAMQPPublisher(url string) Publisher {
	if url == "" {
		return Noop{}
	}
	return &AMQPPublisher{URL: url, DialTimeout: DefaultDialTimeout}
}

// dialTimeout is DialTimeout shortened to ctx's deadline
func (p *AMQPPublisher) dialTimeout(ctx context.Context) time.Duration {
	timeout := p.DialTimeout
	if timeout <= 0 {
		timeout = DefaultDialTimeout
	}
	if deadline, ok := ctx.Deadline(); ok {
		if left := time.Until(deadline); left < timeout {
			timeout = left
		}
	}
	return timeout
}

// Publish dials the broker, declares the queue and sends a persistent message
func (p *AMQPPublisher) Publish(ctx context.Context, event AuthEvent) error {
	timeout := p.dialTimeout(ctx)
	if timeout <= 0 {
		return fmt.Errorf("dial: %w", context.DeadlineExceeded)
	}
	conn, err := amqp.DialConfig(p.URL, amqp.Config{
		Heartbeat: 10 * time.Second,
		Locale:    "en_US",
		Dial:      amqp.DefaultDial(timeout),
	})
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}
	defer func() { _ = conn.Close() }()

	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("channel: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if _, err := ch.QueueDeclare(
		event.Type, // name
		true,       // durable
		false,      // autoDelete
		false,      // exclusive
		false,      // noWait
		nil,        // args
	); err != nil {
		return fmt.Errorf("queue declare %s: %w", event.Type, err)
	}

	body, err := Encode(event)
	if err != nil {
		return err
	}

	pub := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now().UTC(),
		Body:         body,
	}
	if err := ch.PublishWithContext(ctx, "", event.Type, false, false, pub); err != nil {
		return fmt.Errorf("publish %s: %w", event.Type, err)
	}
	return nil
}

// Encode marshals an event, stamping OccurredAt when missing
func Encode(event AuthEvent) ([]byte, error) {
	if event.OccurredAt == "" {
		event.OccurredAt = time.Now().UTC().Format(time.RFC3339)
	}
	return json.Marshal(event)
}
