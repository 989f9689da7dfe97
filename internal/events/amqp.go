package events

import (
	"context"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// AMQPSink publishes events to a durable topic exchange, routed by type.
type AMQPSink struct {
	Conn     *amqp.Connection
	Ch       *amqp.Channel
	Exchange string
}

func DialAMQP(url, exchange string) (*AMQPSink, error) {
	if exchange == "" {
		exchange = "leadhunt.events"
	}
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("connect rabbitmq: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}
	if err := ch.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("declare exchange %s: %w", exchange, err)
	}
	return &AMQPSink{Conn: conn, Ch: ch, Exchange: exchange}, nil
}

func (s *AMQPSink) Publish(ctx context.Context, typ string, body []byte) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	err := s.Ch.PublishWithContext(ctx, s.Exchange, typ, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now().UTC(),
		Type:         typ,
		Body:         body,
	})
	if err != nil {
		return fmt.Errorf("publish %s: %w", typ, err)
	}
	return nil
}

func (s *AMQPSink) Healthy() bool {
	return s.Conn != nil && !s.Conn.IsClosed()
}

func (s *AMQPSink) Close() error {
	if s.Ch != nil {
		_ = s.Ch.Close()
	}
	if s.Conn != nil {
		return s.Conn.Close()
	}
	return nil
}
