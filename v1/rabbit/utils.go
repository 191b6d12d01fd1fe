package rabbit

import (
	"context"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// currentChannel returns the established channel or ErrNotConnected.
func (s *Session) currentChannel() (AMQPChannel, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.channel == nil {
		return nil, ErrNotConnected
	}
	return s.channel, nil
}

// DeclareExchange declares the non-durable direct exchange name.
// Redeclaring an identical exchange is a no-op on the broker.
func (s *Session) DeclareExchange(ctx context.Context, name string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	ch, err := s.currentChannel()
	if err != nil {
		return err
	}

	err = ch.ExchangeDeclare(
		name,
		amqp.ExchangeDirect,
		false, // Durable
		false, // AutoDelete
		false, // Internal
		false, // NoWait
		nil,   // Arguments
	)
	if err != nil {
		return &TopologyError{Op: "declare exchange", Resource: name, Err: err, Kind: ErrDeclareFailed}
	}
	return nil
}

// DeclareQueue declares the durable, non-exclusive queue name.
func (s *Session) DeclareQueue(ctx context.Context, name string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	ch, err := s.currentChannel()
	if err != nil {
		return err
	}

	_, err = ch.QueueDeclare(
		name,
		true,  // Durable
		false, // AutoDelete
		false, // Exclusive
		false, // NoWait
		nil,   // Arguments
	)
	if err != nil {
		return &TopologyError{Op: "declare queue", Resource: name, Err: err, Kind: ErrDeclareFailed}
	}
	return nil
}

// BindQueue binds queue to exchange with routing key key.
func (s *Session) BindQueue(ctx context.Context, queue, key, exchange string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	ch, err := s.currentChannel()
	if err != nil {
		return err
	}

	if err = ch.QueueBind(queue, key, exchange, false, nil); err != nil {
		return &TopologyError{Op: "bind queue", Resource: queue, Err: err, Kind: ErrBindFailed}
	}
	return nil
}

// Consume starts a consumer on queue. Deliveries are auto-acked unless
// Channel.ManualAck is set. The returned channel is closed when the
// session channel goes away.
func (s *Session) Consume(ctx context.Context, queue, consumerTag string) (<-chan amqp.Delivery, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	ch, err := s.currentChannel()
	if err != nil {
		return nil, err
	}

	deliveries, err := ch.Consume(
		queue,
		consumerTag,
		!s.cfg.Channel.ManualAck, // autoAck
		false,                    // exclusive
		false,                    // noLocal
		false,                    // noWait
		nil,                      // args
	)
	if err != nil {
		return nil, &ChannelError{Op: "consume", Err: err, Kind: ErrConsumeFailed}
	}

	s.logInfo(ctx, "Consumer started", map[string]interface{}{
		"queue":        queue,
		"consumer_tag": consumerTag,
		"auto_ack":     !s.cfg.Channel.ManualAck,
	})
	return deliveries, nil
}

// Publish sends msg to exchange with routing key key.
//
// It returns ErrNotConnected when no channel is established; the caller
// decides whether that is a drop or a failure. When Channel.PublisherConfirms
// is set Publish blocks until the broker confirms the message or ctx is done,
// and returns ErrMessageNacked on a negative acknowledgement. Otherwise it is
// fire-and-forget.
func (s *Session) Publish(ctx context.Context, exchange, key string, msg amqp.Publishing) (err error) {
	start := time.Now()
	defer func() {
		s.observeOperation("produce", exchange, key, time.Since(start), err, int64(len(msg.Body)))
	}()

	if s.cfg.Channel.PublisherConfirms {
		s.publishMu.Lock()
		defer s.publishMu.Unlock()
	}

	s.mu.RLock()
	ch, pending := s.channel, s.pending
	s.mu.RUnlock()
	if ch == nil {
		return ErrNotConnected
	}

	if pending == nil {
		if err = ch.PublishWithContext(ctx, exchange, key, s.cfg.Channel.Mandatory, false, msg); err != nil {
			return fmt.Errorf("%w: %w", ErrPublishFailed, err)
		}
		return nil
	}

	tag, wait := pending.expect()
	if err = ch.PublishWithContext(ctx, exchange, key, s.cfg.Channel.Mandatory, false, msg); err != nil {
		pending.forget(tag)
		return fmt.Errorf("%w: %w", ErrPublishFailed, err)
	}
	pending.published(tag)

	select {
	case c, ok := <-wait:
		if !ok {
			return fmt.Errorf("%w: %w", ErrPublishFailed, ErrChannelClosed)
		}
		if !c.Ack {
			return ErrMessageNacked
		}
		return nil
	case <-ctx.Done():
		pending.forget(tag)
		return ctx.Err()
	}
}

func (s *Session) logInfo(ctx context.Context, msg string, fields map[string]interface{}) {
	if s.logger != nil {
		s.logger.InfoWithContext(ctx, msg, nil, fields)
	}
}

func (s *Session) logWarn(ctx context.Context, msg string, err error, fields map[string]interface{}) {
	if s.logger != nil {
		s.logger.WarnWithContext(ctx, msg, err, fields)
	}
}

func (s *Session) logError(ctx context.Context, msg string, err error, fields map[string]interface{}) {
	if s.logger != nil {
		s.logger.ErrorWithContext(ctx, msg, err, fields)
	}
}
