package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// DefaultExchange is the fanout exchange ready alerts are published to.
const DefaultExchange = "notifications_fanout"

// Publisher is the subset of *amqp.Channel used by AMQPSink.
type Publisher interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
}

// AMQPSink publishes notifications as persistent JSON messages to a fanout
// exchange, so push gateways or other devices of the same student can relay
// them. Publishing is serialized; a channel is not safe for concurrent use.
type AMQPSink struct {
	pub      Publisher
	exchange string
	mu       sync.Mutex
	closer   func() error
}

// NewAMQPSink wraps an existing publisher.
func NewAMQPSink(pub Publisher, exchange string) *AMQPSink {
	if exchange == "" {
		exchange = DefaultExchange
	}
	return &AMQPSink{pub: pub, exchange: exchange}
}

// DialAMQP connects to url, declares the durable fanout exchange and returns
// a sink owning the connection.
func DialAMQP(url, exchange string) (*AMQPSink, error) {
	if exchange == "" {
		exchange = DefaultExchange
	}
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("amqp dial: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("amqp channel: %w", err)
	}
	if err := ch.ExchangeDeclare(exchange, amqp.ExchangeFanout, true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("amqp exchange declare: %w", err)
	}
	s := NewAMQPSink(ch, exchange)
	s.closer = func() error {
		return errors.Join(ch.Close(), conn.Close())
	}
	return s, nil
}

// Deliver publishes n.
func (s *AMQPSink) Deliver(ctx context.Context, n Notification) error {
	body, err := json.Marshal(n)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pub.PublishWithContext(ctx, s.exchange, "", false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    n.ID,
		Type:         n.Kind,
		Timestamp:    time.Now().UTC(),
		Body:         body,
	})
}

// Close releases the connection when the sink owns one.
func (s *AMQPSink) Close() error {
	if s.closer == nil {
		return nil
	}
	return s.closer()
}
