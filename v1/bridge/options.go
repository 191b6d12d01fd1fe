package bridge

import (
	"context"
	"time"

	"github.com/fayulogger/mqlog/v1/logging"
	"github.com/fayulogger/mqlog/v1/observability"
	"github.com/fayulogger/mqlog/v1/rabbit"
	"github.com/fayulogger/mqlog/v1/tracer"
)

// Logger is an interface that matches the mqlog/v1/logger.LoggerClient methods
// used by the bridge.
type Logger interface {
	DebugWithContext(ctx context.Context, msg string, err error, fields ...map[string]interface{})
	InfoWithContext(ctx context.Context, msg string, err error, fields ...map[string]interface{})
	WarnWithContext(ctx context.Context, msg string, err error, fields ...map[string]interface{})
	ErrorWithContext(ctx context.Context, msg string, err error, fields ...map[string]interface{})
}

// Option configures a Sender or a Receiver.
type Option func(*options)

type options struct {
	logger   Logger
	observer observability.Observer
	tracer   *tracer.Tracer
	dialer   rabbit.Dialer
	events   rabbit.Events
	now      func() time.Time
	logging  *logging.Logger
}

func newOptions(opts []Option) options {
	o := options{now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// WithLogger logs lifecycle events and failures of the bridge and its session.
func WithLogger(l Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithObserver reports bridge and session operations, e.g. to *metrics.Metrics.
func WithObserver(obs observability.Observer) Option {
	return func(o *options) { o.observer = obs }
}

// WithTracer propagates trace context through message headers.
func WithTracer(t *tracer.Tracer) Option {
	return func(o *options) { o.tracer = t }
}

// WithDialer replaces the amqp091-go dialer, e.g. with rabbittest.Broker.Dial.
func WithDialer(d rabbit.Dialer) Option {
	return func(o *options) { o.dialer = d }
}

// WithEvents installs channel event callbacks on the underlying session.
func WithEvents(e rabbit.Events) Option {
	return func(o *options) { o.events = e }
}

// WithClock overrides the clock used for envelope timestamps.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		if now != nil {
			o.now = now
		}
	}
}

// WithLogging makes a Receiver dispatch into l instead of a logger of its own.
// Senders ignore it.
func WithLogging(l *logging.Logger) Option {
	return func(o *options) { o.logging = l }
}

func (o options) session(name string, cfg rabbit.Config) *rabbit.Session {
	s := rabbit.NewSession(cfg).
		WithName(name).
		WithDialer(o.dialer).
		WithEvents(o.events)
	if o.logger != nil {
		s = s.WithLogger(o.logger)
	}
	if o.observer != nil {
		s = s.WithObserver(o.observer)
	}
	return s
}
