package broker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	domain "main/internal/domain/entity/orderlog"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/sirupsen/logrus"
)

// Publisher fans synthesized order log entries out to downstream
// consumers.
type Publisher struct {
	exchange string
	logger   *logrus.Logger

	mu sync.Mutex
	ch *amqp.Channel
}

// NewPublisher opens a channel on the connection and declares the order
// log fanout exchange.
func NewPublisher(conn *amqp.Connection, exchange string, logger *logrus.Logger) (*Publisher, error) {
	if exchange == "" {
		return nil, errors.New("order log exchange is required")
	}
	ch, err := conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("open publisher channel: %w", err)
	}
	if err := ch.ExchangeDeclare(exchange, "fanout", true, false, false, false, nil); err != nil {
		ch.Close()
		return nil, fmt.Errorf("declare exchange %s: %w", exchange, err)
	}
	return &Publisher{exchange: exchange, logger: logger, ch: ch}, nil
}

// Publish sends every entry as its own message.
func (p *Publisher) Publish(ctx context.Context, entries []*domain.Entry) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.ch == nil {
		return errors.New("publisher is closed")
	}
	for _, entry := range entries {
		if entry == nil {
			continue
		}
		body, err := json.Marshal(EntryMessage{Entry: entry})
		if err != nil {
			return fmt.Errorf("encode entry %s: %w", entry.ID, err)
		}
		err = p.ch.PublishWithContext(ctx, p.exchange, "", false, false, amqp.Publishing{
			ContentType: "application/json",
			Body:        body,
		})
		if err != nil {
			return fmt.Errorf("publish entry %s: %w", entry.ID, err)
		}
	}
	return nil
}

// Close releases the channel.
func (p *Publisher) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.ch != nil {
		_ = p.ch.Close()
		p.ch = nil
	}
}
