package broker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	appengine "main/internal/application/service/engine"
	"main/internal/config"
	domain "main/internal/domain/entity/orderlog"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/sirupsen/logrus"
)

// Consumer subscribes to RabbitMQ fanout exchanges with market data,
// routes each message through the order flow engine and ships the
// synthesized entries to Postgres in batches and back out on the order
// log exchange.
type Consumer struct {
	cfg     config.RabbitMQConfig
	engine  *appengine.Engine
	logger  *logrus.Logger
	batcher *BatchWriter

	conn      *amqp.Connection
	channels  []*amqp.Channel
	publisher *Publisher
	wg        sync.WaitGroup
}

// NewConsumer prepares a consumer for the given configuration.
func NewConsumer(cfg config.RabbitMQConfig, engine *appengine.Engine, batcher *BatchWriter, logger *logrus.Logger) (*Consumer, error) {
	if cfg.URL == "" {
		return nil, errors.New("rabbitmq url is required")
	}
	return &Consumer{
		cfg:     cfg,
		engine:  engine,
		batcher: batcher,
		logger:  logger,
	}, nil
}

// Start establishes the AMQP connection and begins consuming fanout exchanges.
func (c *Consumer) Start(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	conn, err := amqp.Dial(c.cfg.URL)
	if err != nil {
		return fmt.Errorf("connect to rabbitmq: %w", err)
	}
	c.conn = conn

	if c.batcher != nil {
		c.batcher.Run(ctx)
	}
	if c.cfg.OrderLogExchange != "" {
		pub, err := NewPublisher(conn, c.cfg.OrderLogExchange, c.logger)
		if err != nil {
			c.Close(ctx)
			return err
		}
		c.publisher = pub
	}

	if err := c.startStream(ctx, streamDepth, c.cfg.DepthsExchange); err != nil {
		c.Close(ctx)
		return err
	}
	if err := c.startStream(ctx, streamTrade, c.cfg.TradesExchange); err != nil {
		c.Close(ctx)
		return err
	}
	if err := c.startStream(ctx, streamLevel1, c.cfg.Level1Exchange); err != nil {
		c.Close(ctx)
		return err
	}
	if err := c.startStream(ctx, streamOrder, c.cfg.OrdersExchange); err != nil {
		c.Close(ctx)
		return err
	}

	c.logger.Infof("rabbitmq consumer started: exchanges=%s,%s,%s,%s",
		c.cfg.DepthsExchange, c.cfg.TradesExchange, c.cfg.Level1Exchange, c.cfg.OrdersExchange)
	return nil
}

// Close stops consumption, flushes pending batches, and releases resources.
func (c *Consumer) Close(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	for _, ch := range c.channels {
		_ = ch.Close()
	}
	c.channels = nil
	if c.publisher != nil {
		c.publisher.Close()
		c.publisher = nil
	}
	if c.conn != nil {
		_ = c.conn.Close()
		c.conn = nil
	}
	c.wg.Wait()
	if c.batcher == nil {
		return nil
	}
	return c.batcher.Stop(ctx)
}

func (c *Consumer) startStream(ctx context.Context, stream streamType, exchange string) error {
	if exchange == "" {
		return nil
	}
	ch, err := c.conn.Channel()
	if err != nil {
		return fmt.Errorf("open channel for %s: %w", stream, err)
	}
	if err := ch.ExchangeDeclare(exchange, "fanout", true, false, false, false, nil); err != nil {
		ch.Close()
		return fmt.Errorf("declare exchange %s: %w", exchange, err)
	}
	queue, err := ch.QueueDeclare("", false, true, true, false, nil)
	if err != nil {
		ch.Close()
		return fmt.Errorf("declare queue for %s: %w", stream, err)
	}
	if err := ch.QueueBind(queue.Name, "", exchange, false, nil); err != nil {
		ch.Close()
		return fmt.Errorf("bind queue %s to %s: %w", queue.Name, exchange, err)
	}
	prefetch := c.cfg.Prefetch
	if prefetch <= 0 {
		prefetch = 1
	}
	if err := ch.Qos(prefetch, 0, false); err != nil {
		ch.Close()
		return fmt.Errorf("set qos for %s: %w", stream, err)
	}
	deliveries, err := ch.Consume(queue.Name, "", false, true, false, false, nil)
	if err != nil {
		ch.Close()
		return fmt.Errorf("start consume for %s: %w", stream, err)
	}
	c.channels = append(c.channels, ch)
	c.wg.Add(1)
	go c.consumeLoop(ctx, stream, deliveries)
	return nil
}

func (c *Consumer) consumeLoop(ctx context.Context, stream streamType, deliveries <-chan amqp.Delivery) {
	defer c.wg.Done()
	log := c.logger.WithField("stream", string(stream))
	for {
		select {
		case <-ctx.Done():
			return
		case delivery, ok := <-deliveries:
			if !ok {
				return
			}
			if err := c.handleDelivery(ctx, stream, &delivery); err != nil {
				log.WithError(err).Warn("failed to process message")
				_ = delivery.Nack(false, true)
				continue
			}
			if err := delivery.Ack(false); err != nil {
				log.WithError(err).Warn("failed to ack delivery")
			}
		}
	}
}

func (c *Consumer) handleDelivery(ctx context.Context, stream streamType, delivery *amqp.Delivery) error {
	var payload BaseMessage
	if err := json.Unmarshal(delivery.Body, &payload); err != nil {
		return fmt.Errorf("decode payload: %w", err)
	}

	var (
		entries []*domain.Entry
		err     error
	)
	switch stream {
	case streamDepth:
		if payload.Depth == nil {
			return errors.New("depth payload is nil")
		}
		entries, err = c.engine.OnDepth(ctx, payload.Depth)
	case streamTrade:
		if payload.Trade == nil {
			return errors.New("trade payload is nil")
		}
		entries, err = c.engine.OnTrade(ctx, payload.Trade)
	case streamLevel1:
		if payload.Level1 == nil {
			return errors.New("level1 payload is nil")
		}
		entries, err = c.engine.OnLevel1(ctx, payload.Level1)
	case streamOrder:
		entries, err = c.handleOrder(ctx, &payload)
	default:
		return fmt.Errorf("unsupported stream: %s", stream)
	}
	if err != nil {
		return err
	}
	return c.dispatch(ctx, entries)
}

func (c *Consumer) handleOrder(ctx context.Context, payload *BaseMessage) ([]*domain.Entry, error) {
	switch {
	case payload.OrderRegister != nil:
		return c.engine.OnOrderRegister(ctx, payload.OrderRegister)
	case payload.OrderReplace != nil:
		return c.engine.OnOrderReplace(ctx, payload.OrderReplace)
	case payload.OrderCancel != nil:
		return c.engine.OnOrderCancel(ctx, payload.OrderCancel)
	default:
		return nil, errors.New("order payload is nil")
	}
}

func (c *Consumer) dispatch(ctx context.Context, entries []*domain.Entry) error {
	if len(entries) == 0 {
		return nil
	}
	if c.batcher != nil {
		if err := c.batcher.AddEntries(entries); err != nil {
			return err
		}
	}
	if c.publisher != nil {
		return c.publisher.Publish(ctx, entries)
	}
	return nil
}

type streamType string

func (s streamType) String() string {
	return string(s)
}

const (
	streamDepth  streamType = "depths"
	streamTrade  streamType = "trades"
	streamLevel1 streamType = "level1"
	streamOrder  streamType = "orders"
)
