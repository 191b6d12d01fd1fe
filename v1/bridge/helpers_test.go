package bridge_test

import (
	"sync"
	"time"

	"github.com/fayulogger/mqlog/v1/bridge"
	"github.com/fayulogger/mqlog/v1/logging"
	"github.com/fayulogger/mqlog/v1/observability"
	"github.com/fayulogger/mqlog/v1/rabbit"
	"github.com/fayulogger/mqlog/v1/rabbit/rabbittest"
)

const (
	waitFor = 2 * time.Second
	tick    = 5 * time.Millisecond
)

// sink is a logging.Transport that remembers what it receives.
type sink struct {
	name   string
	mu     sync.Mutex
	events []logging.Event
	closed int
}

func newSink(name string) *sink {
	return &sink{name: name}
}

func (s *sink) record(e logging.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, e)
}

func (s *sink) Name() string             { return s.name }
func (s *sink) OnDebug(e logging.Event)  { s.record(e) }
func (s *sink) OnInfo(e logging.Event)   { s.record(e) }
func (s *sink) OnWarn(e logging.Event)   { s.record(e) }
func (s *sink) OnSevere(e logging.Event) { s.record(e) }
func (s *sink) OnError(e logging.Event)  { s.record(e) }
func (s *sink) OnFatal(e logging.Event)  { s.record(e) }

func (s *sink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed++
	return nil
}

func (s *sink) Events() []logging.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]logging.Event(nil), s.events...)
}

func (s *sink) Closed() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// operations records observed operations.
type operations struct {
	mu  sync.Mutex
	ops []observability.OperationContext
}

func (o *operations) ObserveOperation(op observability.OperationContext) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.ops = append(o.ops, op)
}

func (o *operations) find(component, operation string) []observability.OperationContext {
	o.mu.Lock()
	defer o.mu.Unlock()
	var out []observability.OperationContext
	for _, op := range o.ops {
		if op.Component == component && op.Operation == operation {
			out = append(out, op)
		}
	}
	return out
}

func newSender(b *rabbittest.Broker, cfg rabbit.Config, opts ...bridge.Option) *bridge.Sender {
	return bridge.NewSender("amqp", cfg, append([]bridge.Option{bridge.WithDialer(b.Dial)}, opts...)...)
}

func newReceiver(b *rabbittest.Broker, cfg rabbit.Config, opts ...bridge.Option) *bridge.Receiver {
	return bridge.NewReceiver(cfg, append([]bridge.Option{bridge.WithDialer(b.Dial)}, opts...)...)
}

// senderLogger returns a logging framework with module name bound to s.
func senderLogger(s *bridge.Sender, name string) (*logging.Logger, *logging.Module, error) {
	l := logging.NewLogger()
	if err := l.AddTransport(s); err != nil {
		return nil, nil, err
	}
	m, err := l.AddModule(name)
	if err != nil {
		return nil, nil, err
	}
	if err := l.Bind(name, s.Name()); err != nil {
		return nil, nil, err
	}
	return l, m, nil
}
