// README: RabbitMQ assignment publisher with publisher confirms on a topic exchange.
package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

const (
	DefaultDispatchExchange = "dispatch_topic"
	RouteAssignedPrefix     = "dispatch.assigned."

	defaultPublishTimeout = 5 * time.Second
)

// amqpChannel is the subset of *amqp.Channel the publisher needs.
type amqpChannel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

type RabbitPublisher struct {
	exchange string
	timeout  time.Duration

	mu       sync.Mutex
	conn     *amqp.Connection
	ch       amqpChannel
	confirms <-chan amqp.Confirmation
}

// DialRabbit connects, declares the durable topic exchange and enables
// publisher confirms.
func DialRabbit(url, exchange string) (*RabbitPublisher, error) {
	if exchange == "" {
		exchange = DefaultDispatchExchange
	}
	conn, err := amqp.DialConfig(url, amqp.Config{
		Heartbeat: 10 * time.Second,
		Locale:    "en_US",
		Dial:      amqp.DefaultDial(30 * time.Second),
	})
	if err != nil {
		return nil, fmt.Errorf("rabbitmq dial failed: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("rabbitmq: failed to open channel: %w", err)
	}
	if err := ch.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("declare exchange %s: %w", exchange, err)
	}
	if err := ch.Confirm(false); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("rabbitmq: failed to enable confirms: %w", err)
	}
	confirms := ch.NotifyPublish(make(chan amqp.Confirmation, 1))

	p := newRabbitPublisher(ch, confirms, exchange)
	p.conn = conn
	return p, nil
}

func newRabbitPublisher(ch amqpChannel, confirms <-chan amqp.Confirmation, exchange string) *RabbitPublisher {
	return &RabbitPublisher{exchange: exchange, timeout: defaultPublishTimeout, ch: ch, confirms: confirms}
}

// Publish sends the event as persistent JSON routed by driver and waits for
// the broker's confirm.
func (p *RabbitPublisher) Publish(ctx context.Context, e AssignmentEvent) error {
	body, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("encode assignment event: %w", err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.ch == nil {
		return errors.New("rabbitmq: publisher is closed")
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	if err := p.ch.PublishWithContext(ctx, p.exchange, RouteAssignedPrefix+string(e.DriverID), false, false,
		amqp.Publishing{
			DeliveryMode: amqp.Persistent,
			ContentType:  "application/json",
			MessageId:    e.EventID,
			Timestamp:    e.OccurredAt,
			Body:         body,
		},
	); err != nil {
		return fmt.Errorf("rabbitmq publish: %w", err)
	}

	select {
	case c, ok := <-p.confirms:
		if !ok {
			return errors.New("rabbitmq: confirm channel closed")
		}
		if !c.Ack {
			return errors.New("rabbitmq: publish not acknowledged")
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *RabbitPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	var errs []error
	if p.ch != nil {
		errs = append(errs, p.ch.Close())
		p.ch = nil
	}
	if p.conn != nil {
		errs = append(errs, p.conn.Close())
		p.conn = nil
	}
	return errors.Join(errs...)
}
