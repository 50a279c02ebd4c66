package events

import (
	"context"
	"errors"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"agent-pump/internal/domain"
)

// AMQPConfig describes the RabbitMQ exchange fills are published to.
type AMQPConfig struct {
	URL      string
	Exchange string
	Durable  bool
}

// AMQPPublisher publishes fills to a topic exchange with routing key
// "fills.<side>".
type AMQPPublisher struct {
	conn     *amqp.Connection
	ch       *amqp.Channel
	exchange string
}

// NewAMQPPublisher dials RabbitMQ and declares the exchange.
func NewAMQPPublisher(cfg AMQPConfig) (*AMQPPublisher, error) {
	if cfg.URL == "" {
		return nil, errors.New("amqp url is required")
	}
	exchange := cfg.Exchange
	if exchange == "" {
		exchange = "agentpump.fills"
	}

	conn, err := amqp.Dial(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("connect rabbitmq: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open rabbitmq channel: %w", err)
	}
	if err := ch.ExchangeDeclare(exchange, amqp.ExchangeTopic, cfg.Durable, false, false, false, nil); err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("declare exchange %s: %w", exchange, err)
	}

	return &AMQPPublisher{conn: conn, ch: ch, exchange: exchange}, nil
}

// Name returns the sink name used in metrics.
func (p *AMQPPublisher) Name() string { return "amqp" }

// Publish sends the fill as a persistent JSON message.
func (p *AMQPPublisher) Publish(ctx context.Context, f *domain.Fill) error {
	if p == nil || p.ch == nil {
		return errors.New("amqp publisher not initialized")
	}
	body, err := Encode(f)
	if err != nil {
		return fmt.Errorf("encode fill: %w", err)
	}
	return p.ch.PublishWithContext(ctx, p.exchange, RoutingKey(f), false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    f.FillID,
		Timestamp:    time.UnixMilli(f.Timestamp),
		Body:         body,
	})
}

// Close closes the channel and connection.
func (p *AMQPPublisher) Close() error {
	if p == nil {
		return nil
	}
	if p.ch != nil {
		_ = p.ch.Close()
	}
	if p.conn != nil {
		return p.conn.Close()
	}
	return nil
}

// RoutingKey returns the topic routing key for a fill.
func RoutingKey(f *domain.Fill) string {
	return "fills." + f.Side.String()
}
