package rabbitmq

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	amqp "github.com/streadway/amqp"
	"go.uber.org/zap"
)

// SubscriberQueue receives one message per newsletter signup.
const SubscriberQueue = "subscriber_queue"

// ErrMalformedEvent marks a delivery that can never be processed. Such messages are dropped, not requeued.
var ErrMalformedEvent = errors.New("malformed subscriber event")

// Client holds the RabbitMQ connection and channel.
type Client struct {
	conn    *amqp.Connection
	channel *amqp.Channel
	log     *zap.Logger
	// amqp channels are not safe for concurrent publishing
	mu sync.Mutex
}

// Config holds RabbitMQ connection details.
type Config struct {
	URL string
}

// SubscriberEvent is the payload published when a subscriber signs up.
type SubscriberEvent struct {
	SubscriberID string `json:"subscriberID"`
	Name         string `json:"name"`
	Email        string `json:"email"`
	ZipCode      int    `json:"zipCode"`
}

// NewClient connects to RabbitMQ, opens a channel and declares the subscriber queue.
func NewClient(cfg Config, log *zap.Logger) (*Client, error) {
	conn, err := amqp.Dial(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}

	if _, err = declare(ch); err != nil {
		ch.Close()
		conn.Close()
		return nil, err
	}

	log.Info("RabbitMQ client connected", zap.String("queue", SubscriberQueue))

	return &Client{
		conn:    conn,
		channel: ch,
		log:     log,
	}, nil
}

func declare(ch *amqp.Channel) (amqp.Queue, error) {
	q, err := ch.QueueDeclare(
		SubscriberQueue,
		true,  // durable
		false, // delete when unused
		false, // exclusive
		false, // no-wait
		nil,
	)
	if err != nil {
		return q, fmt.Errorf("failed to declare %s: %w", SubscriberQueue, err)
	}
	return q, nil
}

// Close closes the RabbitMQ channel and connection.
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
	return errors.Join(errs...)
}

// PublishSubscriberCreated publishes a signup event to the subscriber queue as JSON.
func (c *Client) PublishSubscriberCreated(ctx context.Context, event SubscriberEvent) error {
	if c.channel == nil {
		return fmt.Errorf("RabbitMQ channel is not available")
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	body, err := Encode(event)
	if err != nil {
		return err
	}

	c.mu.Lock()
	err = c.channel.Publish(
		"",              // default exchange
		SubscriberQueue, // routing key
		false,           // mandatory
		false,           // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			Body:         body,
			DeliveryMode: amqp.Persistent,
			Timestamp:    time.Now(),
		})
	c.mu.Unlock()
	if err != nil {
		return fmt.Errorf("failed to publish message: %w", err)
	}

	c.log.Debug("sent subscriber event", zap.ByteString("body", body))
	return nil
}

// Handler processes one decoded signup event.
type Handler func(ctx context.Context, event SubscriberEvent) error

// ConsumeSubscriberEvents starts a goroutine delivering subscriber events to handler until ctx ends
// or the channel closes. Failed messages are requeued unless they are malformed.
func (c *Client) ConsumeSubscriberEvents(ctx context.Context, handler Handler) error {
	if c.channel == nil {
		return fmt.Errorf("RabbitMQ channel is not available for consumption")
	}

	queue, err := declare(c.channel)
	if err != nil {
		return err
	}

	msgs, err := c.channel.Consume(
		queue.Name,
		"",    // consumer tag
		false, // auto-ack
		false, // exclusive
		false, // no-local
		false, // no-wait
		nil,
	)
	if err != nil {
		return fmt.Errorf("failed to register consumer: %w", err)
	}

	c.log.Info("waiting for subscriber events", zap.String("queue", queue.Name))

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-msgs:
				if !ok {
					return
				}
				c.deliver(ctx, msg, handler)
			}
		}
	}()

	return nil
}

func (c *Client) deliver(ctx context.Context, msg amqp.Delivery, handler Handler) {
	err := Dispatch(ctx, msg.Body, handler)
	switch {
	case err == nil:
		if ackErr := msg.Ack(false); ackErr != nil {
			c.log.Error("failed to ack message", zap.Uint64("tag", msg.DeliveryTag), zap.Error(ackErr))
		}
	case errors.Is(err, ErrMalformedEvent):
		c.log.Warn("dropping malformed message", zap.Uint64("tag", msg.DeliveryTag), zap.Error(err))
		if nackErr := msg.Nack(false, false); nackErr != nil {
			c.log.Error("failed to nack message", zap.Uint64("tag", msg.DeliveryTag), zap.Error(nackErr))
		}
	default:
		c.log.Error("failed to process message", zap.Uint64("tag", msg.DeliveryTag), zap.Error(err))
		if nackErr := msg.Nack(false, true); nackErr != nil {
			c.log.Error("failed to nack message", zap.Uint64("tag", msg.DeliveryTag), zap.Error(nackErr))
		}
	}
}

// Encode renders an event as the message body Dispatch accepts.
func Encode(event SubscriberEvent) ([]byte, error) {
	if event.SubscriberID == "" || event.Email == "" {
		return nil, fmt.Errorf("%w: missing subscriber id or email", ErrMalformedEvent)
	}
	body, err := json.Marshal(event)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal subscriber event: %w", err)
	}
	return body, nil
}

// Dispatch decodes a message body and hands it to handler.
func Dispatch(ctx context.Context, body []byte, handler Handler) error {
	var event SubscriberEvent
	if err := json.Unmarshal(body, &event); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedEvent, err)
	}
	if event.SubscriberID == "" || event.Email == "" {
		return fmt.Errorf("%w: missing subscriber id or email", ErrMalformedEvent)
	}
	return handler(ctx, event)
}

// NotifyHandler returns a Handler that logs a welcome notification per signup.
func NotifyHandler(log *zap.Logger) Handler {
	return func(_ context.Context, event SubscriberEvent) error {
		log.Info("new subscriber notification",
			zap.String("subscriber_id", event.SubscriberID),
			zap.String("name", event.Name),
			zap.String("email", event.Email),
			zap.Int("zip_code", event.ZipCode),
		)
		return nil
	}
}
