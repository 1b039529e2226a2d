package rabbitmq

import (
	"context"
	"fmt"
	"sync"
	"time"

	amqp "github.com/streadway/amqp"
	"go.uber.org/zap"
)

const (
	// Exchange is a topic exchange; routing keys are event types such as order.placed.
	Exchange = "storefront.events"
	// OrderQueue receives every order and payment event.
	OrderQueue = "order_queue"
)

// Client holds the RabbitMQ connection and channel.
type Client struct {
	conn    *amqp.Connection
	channel *amqp.Channel
	logger  *zap.Logger
	mu      sync.Mutex // amqp channels are not safe for concurrent publishing
}

// Config holds RabbitMQ connection details.
type Config struct {
	URL string
}

// NewClient connects, declares the events exchange and binds the order queue to it.
func NewClient(cfg Config, logger *zap.Logger) (*Client, error) {
	conn, err := amqp.Dial(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}

	if err := declareTopology(ch); err != nil {
		ch.Close()
		conn.Close()
		return nil, err
	}

	logger = logger.Named("rabbitmq")
	logger.Info("RabbitMQ client connected", zap.String("exchange", Exchange), zap.String("queue", OrderQueue))

	return &Client{
		conn:    conn,
		channel: ch,
		logger:  logger,
	}, nil
}

func declareTopology(ch *amqp.Channel) error {
	if err := ch.ExchangeDeclare(
		Exchange, // name
		"topic",  // kind
		true,     // durable
		false,    // auto-deleted
		false,    // internal
		false,    // no-wait
		nil,      // arguments
	); err != nil {
		return fmt.Errorf("failed to declare exchange %s: %w", Exchange, err)
	}

	if _, err := ch.QueueDeclare(
		OrderQueue, // name
		true,       // durable
		false,      // delete when unused
		false,      // exclusive
		false,      // no-wait
		nil,        // arguments
	); err != nil {
		return fmt.Errorf("failed to declare %s: %w", OrderQueue, err)
	}

	for _, key := range []string{"order.*", "payment.*"} {
		if err := ch.QueueBind(OrderQueue, key, Exchange, false, nil); err != nil {
			return fmt.Errorf("failed to bind %s to %s: %w", OrderQueue, key, err)
		}
	}
	return nil
}

// Close closes the RabbitMQ connection and channel.
func (c *Client) Close() error {
	var errs []error
	if c.channel != nil {
		if err := c.channel.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close channel: %w", err))
		}
	}
	if c.conn != nil {
		if err := c.conn.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close connection: %w", err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("multiple errors occurred during RabbitMQ client close: %v", errs)
	}
	return nil
}

// Send publishes a JSON message to the events exchange with eventType as routing key.
// key travels as the correlation ID.
func (c *Client) Send(ctx context.Context, eventType, key string, body []byte) error {
	if c.channel == nil {
		return fmt.Errorf("RabbitMQ channel is not available")
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	err := c.channel.Publish(
		Exchange,  // exchange
		eventType, // routing key
		false,     // mandatory
		false,     // immediate
		amqp.Publishing{
			ContentType:   "application/json",
			Body:          body,
			DeliveryMode:  amqp.Persistent,
			CorrelationId: key,
			Type:          eventType,
			Timestamp:     time.Now(),
		})
	if err != nil {
		return fmt.Errorf("failed to publish message: %w", err)
	}

	c.logger.Debug("sent event", zap.String("event_type", eventType), zap.String("correlation_id", key))
	return nil
}

// ConsumeOrderEvents starts a goroutine delivering every message of the order queue
// to handle. Messages are acked on success and requeued once on failure; a message
// that fails again after redelivery is dropped.
func (c *Client) ConsumeOrderEvents(ctx context.Context, handle func(body []byte) error) error {
	if c.channel == nil {
		return fmt.Errorf("RabbitMQ channel is not available for consumption")
	}

	msgs, err := c.channel.Consume(
		OrderQueue, // queue
		"",         // consumer tag
		false,      // auto-ack
		false,      // exclusive
		false,      // no-local
		false,      // no-wait
		nil,        // args
	)
	if err != nil {
		return fmt.Errorf("failed to register consumer: %w", err)
	}

	c.logger.Info("waiting for order events")

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-msgs:
				if !ok {
					return
				}
				c.deliver(msg, handle)
			}
		}
	}()

	return nil
}

func (c *Client) deliver(msg amqp.Delivery, handle func(body []byte) error) {
	if err := handle(msg.Body); err != nil {
		c.logger.Warn("error processing message",
			zap.Uint64("delivery_tag", msg.DeliveryTag),
			zap.Bool("redelivered", msg.Redelivered),
			zap.Error(err))
		if nackErr := msg.Nack(false, !msg.Redelivered); nackErr != nil {
			c.logger.Error("error nacking message", zap.Uint64("delivery_tag", msg.DeliveryTag), zap.Error(nackErr))
		}
		return
	}
	if ackErr := msg.Ack(false); ackErr != nil {
		c.logger.Error("error acking message", zap.Uint64("delivery_tag", msg.DeliveryTag), zap.Error(ackErr))
	}
}
