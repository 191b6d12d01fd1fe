package rabbit

import (
	"context"
	"net"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// AMQPConnection is the subset of *amqp.Connection a Session relies on.
// It exists so the broker can be replaced in tests (see package rabbittest).
type AMQPConnection interface {
	// Channel opens a new channel on the connection.
	Channel() (AMQPChannel, error)

	// NotifyClose registers a listener for connection shutdown.
	NotifyClose(receiver chan *amqp.Error) chan *amqp.Error

	// IsClosed reports whether the connection has been closed.
	IsClosed() bool

	// Close closes the connection and all its channels.
	Close() error
}

// AMQPChannel is the subset of *amqp.Channel a Session relies on.
// *amqp.Channel satisfies it directly.
type AMQPChannel interface {
	Qos(prefetchCount, prefetchSize int, global bool) error
	Confirm(noWait bool) error

	ExchangeDeclare(name, kind string, durable, autoDelete, internal, noWait bool, args amqp.Table) error
	QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp.Table) (amqp.Queue, error)
	QueueBind(name, key, exchange string, noWait bool, args amqp.Table) error

	Consume(queue, consumer string, autoAck, exclusive, noLocal, noWait bool, args amqp.Table) (<-chan amqp.Delivery, error)
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error

	NotifyPublish(confirm chan amqp.Confirmation) chan amqp.Confirmation
	NotifyClose(c chan *amqp.Error) chan *amqp.Error
	NotifyReturn(c chan amqp.Return) chan amqp.Return
	NotifyFlow(c chan bool) chan bool

	Close() error
}

// Dialer opens a connection to the broker at url. The context bounds the
// TCP dial; the AMQP handshake is bounded by cfg.
type Dialer func(ctx context.Context, url string, cfg amqp.Config) (AMQPConnection, error)

const handshakeTimeout = 30 * time.Second

var _ AMQPChannel = (*amqp.Channel)(nil)

// amqpConnection adapts *amqp.Connection to AMQPConnection.
type amqpConnection struct {
	*amqp.Connection
}

func (c amqpConnection) Channel() (AMQPChannel, error) {
	ch, err := c.Connection.Channel()
	if err != nil {
		return nil, err
	}
	return ch, nil
}

// DialAMQP is the default Dialer backed by amqp091-go. Cancelling ctx also
// aborts a handshake in progress.
func DialAMQP(ctx context.Context, url string, cfg amqp.Config) (AMQPConnection, error) {
	var stop func() bool
	if cfg.Dial == nil {
		cfg.Dial = func(network, addr string) (net.Conn, error) {
			var d net.Dialer
			conn, err := d.DialContext(ctx, network, addr)
			if err != nil {
				return nil, err
			}
			// bounds the TLS and AMQP handshake; amqp091 clears it once the connection is open
			deadline := time.Now().Add(handshakeTimeout)
			if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
				deadline = d
			}
			if err := conn.SetDeadline(deadline); err != nil {
				_ = conn.Close()
				return nil, err
			}
			stop = context.AfterFunc(ctx, func() {
				_ = conn.SetDeadline(time.Now())
			})
			return conn, nil
		}
	}
	conn, err := amqp.DialConfig(url, cfg)
	if stop != nil {
		stop()
	}
	if err != nil {
		return nil, err
	}
	return amqpConnection{Connection: conn}, nil
}
