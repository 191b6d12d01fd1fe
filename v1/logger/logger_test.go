package logger

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/fayulogger/mqlog/v1/logging"
)

func newObserved(t *testing.T, tracing bool) (*LoggerClient, *observer.ObservedLogs) {
	t.Helper()
	core, logs := observer.New(zapcore.DebugLevel)
	return NewFromZap(zap.New(core), tracing), logs
}

func TestZapLevel(t *testing.T) {
	assert.Equal(t, zapcore.DebugLevel, zapLevel(Debug))
	assert.Equal(t, zapcore.InfoLevel, zapLevel(Info))
	assert.Equal(t, zapcore.WarnLevel, zapLevel(Warning))
	assert.Equal(t, zapcore.ErrorLevel, zapLevel(Error))
	assert.Equal(t, zapcore.InfoLevel, zapLevel("verbose"))
}

func TestNewLoggerClient(t *testing.T) {
	log := NewLoggerClient(Config{Level: Debug, ServiceName: "test"})
	require.NotNil(t, log.Zap)
	assert.True(t, log.Zap.Core().Enabled(zapcore.DebugLevel))

	console := NewLoggerClient(Config{Level: Error, Encoding: "console"})
	assert.False(t, console.Zap.Core().Enabled(zapcore.WarnLevel))
}

func TestFieldsAndErrors(t *testing.T) {
	log, logs := newObserved(t, false)

	log.Error("publish failed", errors.New("boom"), map[string]interface{}{
		"exchange": "logs",
	}, map[string]interface{}{
		"level": "debug",
	})

	entries := logs.All()
	require.Len(t, entries, 1)
	ctx := entries[0].ContextMap()
	assert.Equal(t, "boom", ctx["error"])
	assert.Equal(t, "logs", ctx["exchange"])
	assert.Equal(t, "debug", ctx["level"])
}

func TestWithContextAddsTraceIDs(t *testing.T) {
	tp := sdktrace.NewTracerProvider()
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })
	ctx, span := tp.Tracer("test").Start(context.Background(), "op")
	defer span.End()

	traced, logs := newObserved(t, true)
	traced.InfoWithContext(ctx, "with trace", nil)
	traced.WarnWithContext(context.Background(), "no span", nil)

	entries := logs.All()
	require.Len(t, entries, 2)
	assert.Equal(t, span.SpanContext().TraceID().String(), entries[0].ContextMap()["trace_id"])
	assert.Equal(t, span.SpanContext().SpanID().String(), entries[0].ContextMap()["span_id"])
	assert.NotContains(t, entries[1].ContextMap(), "trace_id")

	untraced, logs := newObserved(t, false)
	untraced.ErrorWithContext(ctx, "tracing disabled", nil)
	assert.NotContains(t, logs.All()[0].ContextMap(), "trace_id")
}

type payload struct{ Text string }

func (p payload) String() string { return p.Text }

func TestTransportMapsLevels(t *testing.T) {
	log, logs := newObserved(t, false)
	sink := NewTransport("stderr", log)
	assert.Equal(t, "stderr", sink.Name())

	for _, lvl := range logging.Levels() {
		logging.Dispatch(sink, logging.Event{Name: "app", Level: lvl, Message: "hello " + lvl.String()})
	}

	entries := logs.All()
	require.Len(t, entries, 6)
	want := []zapcore.Level{
		zapcore.DebugLevel, zapcore.InfoLevel, zapcore.WarnLevel,
		zapcore.WarnLevel, zapcore.ErrorLevel, zapcore.ErrorLevel,
	}
	for i, e := range entries {
		assert.Equal(t, want[i], e.Level)
		assert.Equal(t, "app", e.ContextMap()["module"])
		assert.Equal(t, logging.Levels()[i].String(), e.ContextMap()["severity"])
	}
	assert.Equal(t, "hello severe", entries[3].Message)
	require.NoError(t, sink.Close())
}

func TestTransportStructuredPayload(t *testing.T) {
	log, logs := newObserved(t, false)
	sink := NewTransport("stderr", log)

	sink.OnInfo(logging.Event{Name: "app", Level: logging.LevelInfo, Message: payload{Text: "stringer"}})
	sink.OnInfo(logging.Event{Name: "app", Level: logging.LevelInfo, Message: map[string]interface{}{"k": "v"}})

	entries := logs.All()
	require.Len(t, entries, 2)
	assert.Equal(t, "stringer", entries[0].Message)
	assert.Equal(t, "event", entries[1].Message)
	assert.Contains(t, entries[1].ContextMap(), "payload")
}
