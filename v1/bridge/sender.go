package bridge

import (
	"context"
	"errors"
	"fmt"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.opentelemetry.io/otel/trace"

	"github.com/fayulogger/mqlog/v1/logging"
	"github.com/fayulogger/mqlog/v1/rabbit"
)

// Sender is a logging.Transport that publishes every event it receives to
// the log exchange, routed by level.
type Sender struct {
	name    string
	cfg     rabbit.Config
	opts    options
	session *rabbit.Session

	mu     sync.RWMutex
	closed bool
}

var _ logging.Transport = (*Sender)(nil)

// NewSender creates a disconnected Sender. name is the transport name used
// when binding it to modules.
//
// Example:
//
//	s := bridge.NewSender("amqp", cfg, bridge.WithLogger(log))
//	if _, err := s.Connect(ctx); err != nil {
//		return err
//	}
//	defer s.Close()
//
//	l := logging.NewLogger()
//	_ = l.AddTransport(s)
//	app, _ := l.AddModule("app")
//	_ = l.Bind("app", "amqp")
//	app.Info("hello")
func NewSender(name string, cfg rabbit.Config, opts ...Option) *Sender {
	s := &Sender{
		name: name,
		cfg:  cfg.WithDefaults(),
		opts: newOptions(opts),
	}
	s.session = s.opts.session("sender:"+name, s.cfg).WithSetup(s.setup)
	return s
}

// Name implements logging.Transport.
func (s *Sender) Name() string {
	return s.name
}

// IsConnected reports whether events are currently being published.
func (s *Sender) IsConnected() bool {
	return s.session.IsConnected()
}

// Connect opens the session and declares the exchange. It reports true once
// the sender can publish. On failure everything is torn down and the
// original error is returned.
func (s *Sender) Connect(ctx context.Context) (bool, error) {
	if err := s.session.Connect(ctx); err != nil {
		return false, err
	}
	return true, nil
}

func (s *Sender) setup(ctx context.Context, session *rabbit.Session) error {
	return session.DeclareExchange(ctx, s.cfg.Channel.ExchangeName)
}

// OnDebug publishes e with routing key "debug".
func (s *Sender) OnDebug(e logging.Event) { s.forward(logging.LevelDebug, e) }

// OnInfo publishes e with routing key "info".
func (s *Sender) OnInfo(e logging.Event) { s.forward(logging.LevelInfo, e) }

// OnWarn publishes e with routing key "warn".
func (s *Sender) OnWarn(e logging.Event) { s.forward(logging.LevelWarn, e) }

// OnSevere publishes e with routing key "severe".
func (s *Sender) OnSevere(e logging.Event) { s.forward(logging.LevelSevere, e) }

// OnError publishes e with routing key "error".
func (s *Sender) OnError(e logging.Event) { s.forward(logging.LevelError, e) }

// OnFatal publishes e with routing key "fatal".
func (s *Sender) OnFatal(e logging.Event) { s.forward(logging.LevelFatal, e) }

// forward publishes on behalf of a module. Failures have already been
// logged and observed by Send.
func (s *Sender) forward(level logging.Level, e logging.Event) {
	_ = s.Send(context.Background(), level, e)
}

// Send publishes e at level. While the sender is disconnected or closed the
// event is dropped and nil is returned; drops are observed with operation "drop".
func (s *Sender) Send(ctx context.Context, level logging.Level, e logging.Event) (err error) {
	if !level.Valid() {
		return fmt.Errorf("%w: %q", logging.ErrUnknownLevel, level)
	}

	if reason, ok := s.dropReason(); ok {
		s.observeDrop(level, reason, 0)
		return nil
	}

	remoteName := e.Name
	if remoteName == "" {
		remoteName = s.name
	}
	env := NewEnvelope(remoteName, e.Message, s.opts.now())

	body, err := env.Encode()
	if err != nil {
		s.observeDrop(level, "encode", 0)
		s.logWarn(ctx, "Failed to encode log event", err, map[string]interface{}{
			"level":  level.String(),
			"module": remoteName,
		})
		return err
	}

	if s.opts.tracer != nil {
		var span trace.Span
		ctx, span = s.opts.tracer.StartSpan(ctx, "mqlog.publish", trace.WithSpanKind(trace.SpanKindProducer))
		defer func() {
			if err != nil {
				s.opts.tracer.RecordErrorOnSpan(span, err)
			}
			span.End()
		}()
		s.opts.tracer.SetAttributes(span, map[string]interface{}{
			"messaging.system":      "rabbitmq",
			"messaging.destination": s.cfg.Channel.ExchangeName,
			"messaging.message.id":  env.ID,
			"mqlog.level":           level.String(),
		})
	}

	msg := amqp.Publishing{
		ContentType:  s.cfg.Channel.ContentType,
		DeliveryMode: amqp.Transient,
		MessageId:    env.ID,
		Timestamp:    env.Time,
		Type:         level.String(),
		AppId:        env.RemoteName,
		Headers:      s.headers(ctx),
		Body:         body,
	}

	err = s.session.Publish(ctx, s.cfg.Channel.ExchangeName, level.String(), msg)
	if errors.Is(err, rabbit.ErrNotConnected) {
		// lost the channel between the check and the publish
		s.observeDrop(level, "disconnected", int64(len(body)))
		return nil
	}
	if err != nil {
		s.logWarn(ctx, "Failed to publish log event", err, map[string]interface{}{
			"level":  level.String(),
			"module": remoteName,
			"id":     env.ID,
		})
		return err
	}
	return nil
}

func (s *Sender) dropReason() (string, bool) {
	s.mu.RLock()
	closed := s.closed
	s.mu.RUnlock()
	if closed {
		return "closed", true
	}
	if !s.session.IsConnected() {
		return "disconnected", true
	}
	return "", false
}

func (s *Sender) observeDrop(level logging.Level, reason string, size int64) {
	observe(s.opts.observer, "drop", s.cfg.Channel.ExchangeName, level.String(), 0, nil, size, map[string]interface{}{
		"reason": reason,
	})
}

// headers carries the trace context of ctx, or nil without a tracer.
func (s *Sender) headers(ctx context.Context) amqp.Table {
	if s.opts.tracer == nil {
		return nil
	}
	carrier := s.opts.tracer.GetCarrier(ctx)
	if len(carrier) == 0 {
		return nil
	}
	headers := make(amqp.Table, len(carrier))
	for k, v := range carrier {
		headers[k] = v
	}
	return headers
}

// Close tears down the session. Events sent afterwards are dropped.
// It is safe to call more than once.
func (s *Sender) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	return s.session.Close()
}

func (s *Sender) logWarn(ctx context.Context, msg string, err error, fields map[string]interface{}) {
	if s.opts.logger != nil {
		s.opts.logger.WarnWithContext(ctx, msg, err, fields)
	}
}
