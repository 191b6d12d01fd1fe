package bridge_test

import (
	"context"
	"sort"
	"testing"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/fayulogger/mqlog/v1/bridge"
	"github.com/fayulogger/mqlog/v1/logging"
	"github.com/fayulogger/mqlog/v1/rabbit"
	"github.com/fayulogger/mqlog/v1/rabbit/rabbittest"
	"github.com/fayulogger/mqlog/v1/tracer"
)

// receivingModule registers module name on r bound to a fresh sink.
func receivingModule(t *testing.T, r *bridge.Receiver, name string) *sink {
	t.Helper()
	out := newSink(name + "-sink")
	require.NoError(t, r.Logger().AddTransport(out))
	_, err := r.Logger().AddModule(name)
	require.NoError(t, err)
	require.NoError(t, r.Logger().Bind(name, out.Name()))
	return out
}

func TestReceiverConnectDeclaresTopology(t *testing.T) {
	b := rabbittest.NewBroker()
	r := newReceiver(b, rabbit.Config{})
	defer r.Close()

	require.NoError(t, r.Connect(context.Background()))
	assert.True(t, r.IsConnected())

	_, ok := b.Exchange("logs")
	assert.True(t, ok)

	for _, level := range logging.Levels() {
		q, ok := b.Queue("logs_" + level.String())
		require.True(t, ok, "queue for %s", level)
		assert.True(t, q.Durable)
		assert.False(t, q.AutoDelete)
		assert.Equal(t, []rabbittest.Binding{{Exchange: "logs", Key: level.String()}}, q.Bindings)
		assert.Equal(t, 1, q.Consumers)
	}
	assert.Len(t, b.Queues(), 6)
}

func TestReceiverCustomTopologyNames(t *testing.T) {
	b := rabbittest.NewBroker()
	cfg := rabbit.Config{Channel: rabbit.Channel{ExchangeName: "audit", QueuePrefix: "node1."}}
	r := newReceiver(b, cfg)
	defer r.Close()

	require.NoError(t, r.Connect(context.Background()))

	assert.Equal(t, "node1.severe", r.QueueName(logging.LevelSevere))
	q, ok := b.Queue("node1.severe")
	require.True(t, ok)
	assert.Equal(t, []rabbittest.Binding{{Exchange: "audit", Key: "severe"}}, q.Bindings)
}

func TestReceiverConnectFailureTearsDown(t *testing.T) {
	tests := []struct {
		name string
		op   string
		want error
	}{
		{"exchange", rabbittest.OpExchangeDeclare, rabbit.ErrDeclareFailed},
		{"queue", rabbittest.OpQueueDeclare, rabbit.ErrDeclareFailed},
		{"bind", rabbittest.OpQueueBind, rabbit.ErrBindFailed},
		{"consume", rabbittest.OpConsume, rabbit.ErrConsumeFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := rabbittest.NewBroker()
			b.FailNext(tt.op, &amqp.Error{Code: amqp.InternalError, Reason: "INTERNAL_ERROR"})
			r := newReceiver(b, rabbit.Config{})

			err := r.Connect(context.Background())
			assert.ErrorIs(t, err, tt.want)
			assert.False(t, r.IsConnected())
			assert.Equal(t, 0, b.OpenConnections())

			// consumers started before the failure have exited
			done := make(chan struct{})
			go func() {
				_ = r.Close()
				close(done)
			}()
			select {
			case <-done:
			case <-time.After(waitFor):
				t.Fatal("Close did not return")
			}
		})
	}
}

func TestBridgeEndToEnd(t *testing.T) {
	b := rabbittest.NewBroker()

	r := newReceiver(b, rabbit.Config{})
	defer r.Close()
	out := receivingModule(t, r, "sink")
	require.NoError(t, r.Connect(context.Background()))

	s := newSender(b, rabbit.Config{})
	defer s.Close()
	_, err := s.Connect(context.Background())
	require.NoError(t, err)

	_, app, err := senderLogger(s, "app")
	require.NoError(t, err)

	app.Debug("hello")

	require.Eventually(t, func() bool { return len(out.Events()) == 1 }, waitFor, tick)

	e := out.Events()[0]
	assert.Equal(t, logging.LevelDebug, e.Level)
	assert.Equal(t, "sink", e.Name)

	env, ok := e.Message.(bridge.Envelope)
	require.True(t, ok, "message is %T", e.Message)
	assert.Equal(t, "app", env.RemoteName)
	assert.Equal(t, "hello", env.Message)
	assert.NotEmpty(t, env.ID)
}

func TestBridgeLevelsDoNotCross(t *testing.T) {
	b := rabbittest.NewBroker()

	r := newReceiver(b, rabbit.Config{})
	defer r.Close()
	out := receivingModule(t, r, "sink")
	require.NoError(t, r.Connect(context.Background()))

	s := newSender(b, rabbit.Config{})
	defer s.Close()
	_, err := s.Connect(context.Background())
	require.NoError(t, err)

	_, app, err := senderLogger(s, "app")
	require.NoError(t, err)

	app.Warn("warn")
	app.Fatal("fatal")
	app.Info("info")

	require.Eventually(t, func() bool { return len(out.Events()) == 3 }, waitFor, tick)

	var got []string
	for _, e := range out.Events() {
		env := e.Message.(bridge.Envelope)
		assert.Equal(t, e.Level.String(), env.Message, "delivered at the level it was sent")
		got = append(got, e.Level.String())
	}
	sort.Strings(got)
	assert.Equal(t, []string{"fatal", "info", "warn"}, got)

	for _, level := range logging.Levels() {
		q, _ := b.Queue("logs_" + level.String())
		assert.Equal(t, 0, q.Ready, "queue %s", level)
	}
}

func TestBridgeFansOutToEveryModule(t *testing.T) {
	b := rabbittest.NewBroker()

	r := newReceiver(b, rabbit.Config{})
	defer r.Close()

	out := newSink("shared")
	require.NoError(t, r.Logger().AddTransport(out))
	for _, name := range []string{"first", "second", "third"} {
		_, err := r.Logger().AddModule(name)
		require.NoError(t, err)
		require.NoError(t, r.Logger().Bind(name, "shared"))
	}
	require.NoError(t, r.Connect(context.Background()))

	s := newSender(b, rabbit.Config{})
	defer s.Close()
	_, err := s.Connect(context.Background())
	require.NoError(t, err)

	require.NoError(t, s.Send(context.Background(), logging.LevelError, logging.Event{Name: "app", Message: "boom"}))

	require.Eventually(t, func() bool { return len(out.Events()) == 3 }, waitFor, tick)

	var names []string
	for _, e := range out.Events() {
		names = append(names, e.Name)
		assert.Equal(t, logging.LevelError, e.Level)
	}
	assert.Equal(t, []string{"first", "second", "third"}, names)
}

func TestBridgeKeepsPerQueueOrder(t *testing.T) {
	b := rabbittest.NewBroker()

	r := newReceiver(b, rabbit.Config{})
	defer r.Close()
	out := receivingModule(t, r, "sink")
	require.NoError(t, r.Connect(context.Background()))

	s := newSender(b, rabbit.Config{})
	defer s.Close()
	_, err := s.Connect(context.Background())
	require.NoError(t, err)

	_, app, err := senderLogger(s, "app")
	require.NoError(t, err)

	want := []string{"1", "2", "3", "4", "5", "6", "7", "8"}
	for _, msg := range want {
		app.Info(msg)
	}

	require.Eventually(t, func() bool { return len(out.Events()) == len(want) }, waitFor, tick)

	var got []string
	for _, e := range out.Events() {
		got = append(got, e.Message.(bridge.Envelope).String())
	}
	assert.Equal(t, want, got)
}

func TestReceiverDispatch(t *testing.T) {
	r := bridge.NewReceiver(rabbit.Config{})
	defer r.Close()
	out := receivingModule(t, r, "sink")

	body, err := bridge.NewEnvelope("remote", "direct", time.Now()).Encode()
	require.NoError(t, err)

	require.NoError(t, r.Dispatch(context.Background(), logging.LevelSevere, body))
	require.Len(t, out.Events(), 1)
	assert.Equal(t, logging.LevelSevere, out.Events()[0].Level)

	err = r.Dispatch(context.Background(), logging.LevelInfo, []byte("not json"))
	assert.ErrorIs(t, err, bridge.ErrInvalidEnvelope)

	err = r.Dispatch(context.Background(), logging.Level("verbose"), body)
	assert.ErrorIs(t, err, logging.ErrUnknownLevel)

	assert.Len(t, out.Events(), 1)
}

func TestReceiverDispatchWithoutModules(t *testing.T) {
	obs := &operations{}
	r := bridge.NewReceiver(rabbit.Config{}, bridge.WithObserver(obs))
	defer r.Close()

	body, err := bridge.NewEnvelope("remote", "nobody listens", time.Now()).Encode()
	require.NoError(t, err)
	require.NoError(t, r.Dispatch(context.Background(), logging.LevelInfo, body))

	dispatches := obs.find("bridge", "dispatch")
	require.Len(t, dispatches, 1)
	assert.NoError(t, dispatches[0].Error)
	assert.Equal(t, 0, dispatches[0].Metadata["modules"])
}

func publishRaw(t *testing.T, b *rabbittest.Broker, key string, body []byte) {
	t.Helper()
	s := rabbit.NewSession(rabbit.Config{}).WithDialer(b.Dial)
	defer s.Close()
	require.NoError(t, s.Connect(context.Background()))
	require.NoError(t, s.Publish(context.Background(), "logs", key, amqp.Publishing{Body: body}))
}

func TestReceiverManualAck(t *testing.T) {
	b := rabbittest.NewBroker()
	cfg := rabbit.Config{Channel: rabbit.Channel{ManualAck: true}}

	r := newReceiver(b, cfg)
	defer r.Close()
	out := receivingModule(t, r, "sink")
	require.NoError(t, r.Connect(context.Background()))

	body, err := bridge.NewEnvelope("remote", "valid", time.Now()).Encode()
	require.NoError(t, err)

	publishRaw(t, b, "info", body)
	publishRaw(t, b, "info", []byte("garbage"))

	require.Eventually(t, func() bool { return b.Acked() == 1 && len(b.Rejected()) == 1 }, waitFor, tick)
	assert.Len(t, out.Events(), 1)
	assert.Equal(t, []byte("garbage"), b.Rejected()[0].Body)

	q, _ := b.Queue("logs_info")
	assert.Equal(t, 0, q.Ready)
}

func TestReceiverAutoAckDropsUndecodable(t *testing.T) {
	b := rabbittest.NewBroker()
	obs := &operations{}

	r := newReceiver(b, rabbit.Config{}, bridge.WithObserver(obs))
	defer r.Close()
	out := receivingModule(t, r, "sink")
	require.NoError(t, r.Connect(context.Background()))

	publishRaw(t, b, "warn", []byte(`["not", "an", "envelope"]`))

	require.Eventually(t, func() bool { return len(obs.find("bridge", "dispatch")) == 1 }, waitFor, tick)
	assert.ErrorIs(t, obs.find("bridge", "dispatch")[0].Error, bridge.ErrInvalidEnvelope)
	assert.Empty(t, out.Events())
	assert.Equal(t, 0, b.Acked())
	assert.Empty(t, b.Rejected())

	consumed := obs.find("bridge", "consume")
	require.Len(t, consumed, 1)
	assert.Equal(t, "logs_warn", consumed[0].Resource)
}

func TestReceiverReconnectRestartsConsumers(t *testing.T) {
	b := rabbittest.NewBroker()
	cfg := rabbit.Config{Reconnect: rabbit.Reconnect{
		Enabled:         true,
		InitialInterval: 10 * time.Millisecond,
		MaxInterval:     20 * time.Millisecond,
		MaxAttempts:     5,
	}}

	r := newReceiver(b, cfg)
	defer r.Close()
	out := receivingModule(t, r, "sink")
	require.NoError(t, r.Connect(context.Background()))

	b.DropConnections(&amqp.Error{Code: amqp.ConnectionForced, Reason: "CONNECTION_FORCED - broker forced connection closure"})

	require.Eventually(t, func() bool { return b.Dials() == 2 && r.IsConnected() }, waitFor, tick)
	for _, level := range logging.Levels() {
		q, _ := b.Queue("logs_" + level.String())
		assert.Equal(t, 1, q.Consumers, "queue %s", level)
	}

	s := newSender(b, rabbit.Config{})
	defer s.Close()
	_, err := s.Connect(context.Background())
	require.NoError(t, err)
	require.NoError(t, s.Send(context.Background(), logging.LevelInfo, logging.Event{Name: "app", Message: "after reconnect"}))

	require.Eventually(t, func() bool { return len(out.Events()) == 1 }, waitFor, tick)
}

func TestReceiverCloseOwnsLogging(t *testing.T) {
	t.Run("owned", func(t *testing.T) {
		b := rabbittest.NewBroker()
		r := newReceiver(b, rabbit.Config{})
		out := receivingModule(t, r, "sink")
		require.NoError(t, r.Connect(context.Background()))

		require.NoError(t, r.Close())
		require.NoError(t, r.Close())
		assert.Equal(t, 1, out.Closed())
		assert.False(t, r.IsConnected())
		assert.Equal(t, 0, b.OpenConnections())
	})

	t.Run("supplied", func(t *testing.T) {
		b := rabbittest.NewBroker()
		l := logging.NewLogger()
		r := newReceiver(b, rabbit.Config{}, bridge.WithLogging(l))
		assert.Same(t, l, r.Logger())

		out := receivingModule(t, r, "sink")
		require.NoError(t, r.Connect(context.Background()))
		require.NoError(t, r.Close())
		assert.Equal(t, 0, out.Closed())
	})

	t.Run("before connect", func(t *testing.T) {
		r := bridge.NewReceiver(rabbit.Config{})
		assert.NoError(t, r.Close())
	})
}

func TestBridgePropagatesTraceContext(t *testing.T) {
	rec := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(rec))
	defer tp.Shutdown(context.Background())
	tr := tracer.NewFromProvider(tp)

	b := rabbittest.NewBroker()
	r := newReceiver(b, rabbit.Config{}, bridge.WithTracer(tr))
	defer r.Close()
	out := receivingModule(t, r, "sink")
	require.NoError(t, r.Connect(context.Background()))

	s := newSender(b, rabbit.Config{}, bridge.WithTracer(tr))
	defer s.Close()
	_, err := s.Connect(context.Background())
	require.NoError(t, err)
	require.NoError(t, s.Send(context.Background(), logging.LevelInfo, logging.Event{Name: "app", Message: "traced"}))

	require.Eventually(t, func() bool { return len(out.Events()) == 1 && len(rec.Ended()) == 2 }, waitFor, tick)

	spans := map[string]sdktrace.ReadOnlySpan{}
	for _, span := range rec.Ended() {
		spans[span.Name()] = span
	}
	publish, dispatch := spans["mqlog.publish"], spans["mqlog.dispatch"]
	require.NotNil(t, publish)
	require.NotNil(t, dispatch)
	assert.Equal(t, publish.SpanContext().TraceID(), dispatch.SpanContext().TraceID())
	assert.Equal(t, publish.SpanContext().SpanID(), dispatch.Parent().SpanID())
}
