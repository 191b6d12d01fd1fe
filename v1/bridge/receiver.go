package bridge

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/fayulogger/mqlog/v1/logging"
	"github.com/fayulogger/mqlog/v1/rabbit"
)

// Receiver consumes one queue per level and fans every delivery out to the
// modules registered on its logging.Logger.
type Receiver struct {
	cfg     rabbit.Config
	opts    options
	session *rabbit.Session

	logging     *logging.Logger
	ownsLogging bool

	// id keeps consumer tags unique across receivers sharing a broker
	id       string
	handlers map[logging.Level]func(context.Context, amqp.Delivery)

	// consumers runs one goroutine per level queue and channel generation
	consumers errgroup.Group

	closeOnce sync.Once
	closeErr  error
}

// NewReceiver creates a disconnected Receiver. Unless WithLogging is given
// it owns a fresh logging.Logger, which it closes on Close.
//
// Example:
//
//	r := bridge.NewReceiver(cfg, bridge.WithLogger(log))
//	_ = r.Logger().AddTransport(logger.NewTransport("zap", log))
//	_, _ = r.Logger().AddModule("bridge")
//	_ = r.Logger().Bind("bridge", "zap")
//	if err := r.Connect(ctx); err != nil {
//		return err
//	}
//	defer r.Close()
func NewReceiver(cfg rabbit.Config, opts ...Option) *Receiver {
	r := &Receiver{
		cfg:  cfg.WithDefaults(),
		opts: newOptions(opts),
		id:   uuid.NewString(),
	}

	r.logging = r.opts.logging
	if r.logging == nil {
		r.logging = logging.NewLogger()
		r.ownsLogging = true
	}

	r.handlers = map[logging.Level]func(context.Context, amqp.Delivery){
		logging.LevelDebug:  r.OnDebug,
		logging.LevelInfo:   r.OnInfo,
		logging.LevelWarn:   r.OnWarn,
		logging.LevelSevere: r.OnSevere,
		logging.LevelError:  r.OnError,
		logging.LevelFatal:  r.OnFatal,
	}

	r.session = r.opts.session("receiver", r.cfg).WithSetup(r.setup)
	return r
}

// Logger returns the logging framework deliveries are dispatched into.
func (r *Receiver) Logger() *logging.Logger {
	return r.logging
}

// IsConnected reports whether the receiver currently holds a channel.
func (r *Receiver) IsConnected() bool {
	return r.session.IsConnected()
}

// QueueName returns the queue consumed for level.
func (r *Receiver) QueueName(level logging.Level) string {
	return r.cfg.Channel.QueuePrefix + level.String()
}

// Connect opens the session, declares the exchange and, for each level in
// order, declares its queue, binds it with the level as routing key and
// starts consuming. Any failure tears everything down.
//
// ctx bounds the connect only; consumers run until Close.
func (r *Receiver) Connect(ctx context.Context) error {
	return r.session.Connect(ctx)
}

// setup runs on every connect and reconnect of the session.
func (r *Receiver) setup(ctx context.Context, s *rabbit.Session) error {
	exchange := r.cfg.Channel.ExchangeName
	if err := s.DeclareExchange(ctx, exchange); err != nil {
		return err
	}

	for _, level := range logging.Levels() {
		queue := r.QueueName(level)
		if err := s.DeclareQueue(ctx, queue); err != nil {
			return err
		}
		if err := s.BindQueue(ctx, queue, level.String(), exchange); err != nil {
			return err
		}
		deliveries, err := s.Consume(ctx, queue, r.consumerTag(level))
		if err != nil {
			return err
		}
		r.startConsumer(level, deliveries)
	}
	return nil
}

func (r *Receiver) consumerTag(level logging.Level) string {
	return fmt.Sprintf("mqlog-%s-%s", level, r.id)
}

// startConsumer handles deliveries in order until the channel closes them.
func (r *Receiver) startConsumer(level logging.Level, deliveries <-chan amqp.Delivery) {
	handle := r.handlers[level]
	r.consumers.Go(func() error {
		for d := range deliveries {
			handle(context.Background(), d)
		}
		return nil
	})
}

// OnDebug handles a delivery from the debug queue.
func (r *Receiver) OnDebug(ctx context.Context, d amqp.Delivery) {
	r.handle(ctx, logging.LevelDebug, d)
}

// OnInfo handles a delivery from the info queue.
func (r *Receiver) OnInfo(ctx context.Context, d amqp.Delivery) {
	r.handle(ctx, logging.LevelInfo, d)
}

// OnWarn handles a delivery from the warn queue.
func (r *Receiver) OnWarn(ctx context.Context, d amqp.Delivery) {
	r.handle(ctx, logging.LevelWarn, d)
}

// OnSevere handles a delivery from the severe queue.
func (r *Receiver) OnSevere(ctx context.Context, d amqp.Delivery) {
	r.handle(ctx, logging.LevelSevere, d)
}

// OnError handles a delivery from the error queue.
func (r *Receiver) OnError(ctx context.Context, d amqp.Delivery) {
	r.handle(ctx, logging.LevelError, d)
}

// OnFatal handles a delivery from the fatal queue.
func (r *Receiver) OnFatal(ctx context.Context, d amqp.Delivery) {
	r.handle(ctx, logging.LevelFatal, d)
}

// handle dispatches one delivery and settles it when acks are manual.
func (r *Receiver) handle(ctx context.Context, level logging.Level, d amqp.Delivery) {
	queue := r.QueueName(level)
	observe(r.opts.observer, "consume", queue, level.String(), 0, nil, int64(len(d.Body)), nil)

	var span trace.Span
	if r.opts.tracer != nil {
		ctx = r.opts.tracer.SetCarrierOnContext(ctx, carrierFromHeaders(d.Headers))
		ctx, span = r.opts.tracer.StartSpan(ctx, "mqlog.dispatch", trace.WithSpanKind(trace.SpanKindConsumer))
		r.opts.tracer.SetAttributes(span, map[string]interface{}{
			"messaging.system":      "rabbitmq",
			"messaging.destination": queue,
			"messaging.message.id":  d.MessageId,
			"mqlog.level":           level.String(),
		})
		defer span.End()
	}

	err := r.Dispatch(ctx, level, d.Body)
	if err != nil {
		if span != nil {
			r.opts.tracer.RecordErrorOnSpan(span, err)
		}
		r.logWarn(ctx, "Dropping undecodable log message", err, map[string]interface{}{
			"queue":      queue,
			"message_id": d.MessageId,
		})
	}

	if !r.cfg.Channel.ManualAck {
		return
	}

	var settleErr error
	if err != nil {
		settleErr = d.Nack(false, false)
	} else {
		settleErr = d.Ack(false)
	}
	if settleErr != nil {
		r.logWarn(ctx, "Failed to settle delivery", settleErr, map[string]interface{}{
			"queue":        queue,
			"delivery_tag": d.DeliveryTag,
		})
	}
}

// Dispatch decodes body and calls the level method of every registered
// module, in registration order, with the envelope. Modules registered
// while a dispatch runs receive the next one.
func (r *Receiver) Dispatch(ctx context.Context, level logging.Level, body []byte) (err error) {
	start := time.Now()
	modules := 0
	defer func() {
		observe(r.opts.observer, "dispatch", r.cfg.Channel.ExchangeName, level.String(), time.Since(start), err, int64(len(body)), map[string]interface{}{
			"modules": modules,
		})
	}()

	if !level.Valid() {
		return fmt.Errorf("%w: %q", logging.ErrUnknownLevel, level)
	}

	env, err := DecodeEnvelope(body)
	if err != nil {
		return err
	}

	for _, m := range r.logging.Modules() {
		m.Log(level, env)
		modules++
	}
	return nil
}

// Close tears down the session, waits for the consumers to drain and then
// closes the logging framework if the receiver owns it. It is safe to call
// more than once.
func (r *Receiver) Close() error {
	r.closeOnce.Do(func() {
		sessionErr := r.session.Close()
		// the session is down, so no setup can start another consumer
		_ = r.consumers.Wait()

		var loggingErr error
		if r.ownsLogging {
			loggingErr = r.logging.Close()
		}
		r.closeErr = errors.Join(sessionErr, loggingErr)
	})
	return r.closeErr
}

func (r *Receiver) logWarn(ctx context.Context, msg string, err error, fields map[string]interface{}) {
	if r.opts.logger != nil {
		r.opts.logger.WarnWithContext(ctx, msg, err, fields)
	}
}

// carrierFromHeaders keeps the string-valued headers, which is what the
// sender writes trace context as.
func carrierFromHeaders(headers amqp.Table) map[string]string {
	carrier := make(map[string]string, len(headers))
	for k, v := range headers {
		if s, ok := v.(string); ok {
			carrier[k] = s
		}
	}
	return carrier
}
