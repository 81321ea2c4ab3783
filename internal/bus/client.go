package bus

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/alucard017/eMotion-Backend/internal/observability"
)

// ErrBadMessage marks a payload that can never be processed. The consume
// loop drops such deliveries instead of requeueing them; any other handler
// error requeues for redelivery, so handlers must be idempotent.
var ErrBadMessage = errors.New("bad message")

// Handler processes one delivery. The managed consume loop acknowledges the
// delivery only after HandleMessage returns nil.
type Handler interface {
	HandleMessage(ctx context.Context, body []byte) error
}

type HandlerFunc func(ctx context.Context, body []byte) error

func (f HandlerFunc) HandleMessage(ctx context.Context, body []byte) error {
	return f(ctx, body)
}

// amqpChannel is the slice of *amqp.Channel the client uses. Kept as an
// interface so the connect and consume logic is testable without a broker.
type amqpChannel interface {
	QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp.Table) (amqp.Queue, error)
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Consume(queue, consumer string, autoAck, exclusive, noLocal, noWait bool, args amqp.Table) (<-chan amqp.Delivery, error)
	Close() error
}

type amqpConnection interface {
	Channel() (amqpChannel, error)
	NotifyClose(receiver chan *amqp.Error) chan *amqp.Error
	Close() error
}

type liveConn struct {
	*amqp.Connection
}

func (c liveConn) Channel() (amqpChannel, error) {
	ch, err := c.Connection.Channel()
	if err != nil {
		return nil, err
	}
	return ch, nil
}

// Client is a lazy publish/subscribe wrapper over one AMQP connection and
// channel. The first Publish or Subscribe dials the broker; concurrent
// callers during an in-flight attempt block on the same attempt instead of
// opening duplicate connections. A connection close or error resets internal
// state so the next call reconnects.
type Client struct {
	url  string
	log  *slog.Logger
	dial func(url string) (amqpConnection, error)

	mu   sync.Mutex
	conn amqpConnection
	ch   amqpChannel
}

func NewClient(url string, log *slog.Logger) *Client {
	return &Client{
		url: url,
		log: log,
		dial: func(url string) (amqpConnection, error) {
			conn, err := amqp.Dial(url)
			if err != nil {
				return nil, err
			}
			return liveConn{conn}, nil
		},
	}
}

// Connect establishes the broker connection and channel if none exists.
func (c *Client) Connect() error {
	_, err := c.channel()
	return err
}

func (c *Client) channel() (amqpChannel, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.ch != nil {
		return c.ch, nil
	}

	conn, err := c.dial(c.url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to broker: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}

	c.conn = conn
	c.ch = ch
	c.log.Info("connected to broker")

	closed := conn.NotifyClose(make(chan *amqp.Error, 1))
	go c.watchClose(conn, closed)

	return ch, nil
}

// watchClose clears the cached connection once the broker reports it gone,
// but only if it is still the current one. A later reconnect must not be
// evicted by a stale close notification.
func (c *Client) watchClose(conn amqpConnection, closed <-chan *amqp.Error) {
	err := <-closed

	c.mu.Lock()
	if c.conn == conn {
		c.conn = nil
		c.ch = nil
	}
	c.mu.Unlock()

	if err != nil {
		c.log.Warn("broker connection lost", "error", err.Error())
	}
}

// Publish declares the named durable queue and enqueues payload as a
// persistent JSON message. Queue declaration is idempotent.
func (c *Client) Publish(ctx context.Context, queue string, payload []byte) error {
	ch, err := c.channel()
	if err != nil {
		return err
	}

	if _, err := ch.QueueDeclare(queue, true, false, false, false, nil); err != nil {
		return fmt.Errorf("failed to declare queue %s: %w", queue, err)
	}

	err = ch.PublishWithContext(ctx, "", queue, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Body:         payload,
	})
	if err != nil {
		return fmt.Errorf("failed to publish to %s: %w", queue, err)
	}

	observability.EventsPublished.WithLabelValues(queue).Inc()
	return nil
}

// Subscribe declares the named durable queue and starts a consume loop
// invoking handler for each delivery. Handlers must be short-running; a slow
// handler stalls further delivery on this consumer.
func (c *Client) Subscribe(queue string, handler Handler) error {
	ch, err := c.channel()
	if err != nil {
		return err
	}

	if _, err := ch.QueueDeclare(queue, true, false, false, false, nil); err != nil {
		return fmt.Errorf("failed to declare queue %s: %w", queue, err)
	}

	deliveries, err := ch.Consume(queue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("failed to start consuming %s: %w", queue, err)
	}

	go c.consumeLoop(queue, deliveries, handler)
	return nil
}

func (c *Client) consumeLoop(queue string, deliveries <-chan amqp.Delivery, handler Handler) {
	for d := range deliveries {
		err := handler.HandleMessage(context.Background(), d.Body)
		switch {
		case err == nil:
			if ackErr := d.Ack(false); ackErr != nil {
				c.log.Warn("ack failed", "queue", queue, "error", ackErr.Error())
			}
			observability.EventsConsumed.WithLabelValues(queue, "ok").Inc()
		case errors.Is(err, ErrBadMessage):
			_ = d.Nack(false, false)
			observability.EventsConsumed.WithLabelValues(queue, "dropped").Inc()
			c.log.Warn("dropping undecodable message", "queue", queue, "error", err.Error())
		default:
			_ = d.Nack(false, true)
			observability.EventsConsumed.WithLabelValues(queue, "requeued").Inc()
			c.log.Error("handler failed, message requeued", "queue", queue, "error", err.Error())
		}
	}
	c.log.Warn("consume loop ended", "queue", queue)
}

// Close shuts down the channel and connection if open.
func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.ch != nil {
		_ = c.ch.Close()
		c.ch = nil
	}
	if c.conn != nil {
		_ = c.conn.Close()
		c.conn = nil
	}
}
