package rabbitmq

import (
	"errors"
	"log/slog"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/allisson/eventbus/internal/broker"
)

// amqpConnection is the subset of *amqp.Connection used by Connection.
type amqpConnection interface {
	Channel() (*amqp.Channel, error)
	IsClosed() bool
	Close() error
}

// Connection is a RabbitMQ connection that is dialed on first use and dialed
// again whenever the previous connection was closed by the broker or the network.
type Connection struct {
	url    string
	dial   func(url string) (amqpConnection, error)
	logger *slog.Logger

	mu     sync.Mutex
	conn   amqpConnection
	closed bool
}

// NewConnection creates a Connection for url. No network call is made until
// the first Channel.
func NewConnection(url string, logger *slog.Logger) *Connection {
	return &Connection{
		url: url,
		dial: func(url string) (amqpConnection, error) {
			return amqp.Dial(url)
		},
		logger: logger,
	}
}

// Channel opens a channel, dialing a new connection when there is none or the
// current one is closed. Failures are transient.
func (c *Connection) Channel() (*amqp.Channel, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil, broker.ErrClosed
	}

	if c.conn == nil || c.conn.IsClosed() {
		if c.conn != nil {
			c.logger.Warn("rabbitmq connection lost, reconnecting")
		}
		conn, err := c.dial(c.url)
		if err != nil {
			c.conn = nil
			return nil, &broker.TransientError{Op: "dial rabbitmq", Err: err}
		}
		c.conn = conn
	}

	ch, err := c.conn.Channel()
	if err != nil {
		if errors.Is(err, amqp.ErrClosed) {
			c.conn = nil
		}
		return nil, &broker.TransientError{Op: "open channel", Err: err}
	}
	return ch, nil
}

// Close closes the current connection. Channel fails with broker.ErrClosed afterwards.
func (c *Connection) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.closed = true
	if c.conn == nil || c.conn.IsClosed() {
		return nil
	}
	return c.conn.Close()
}
