package tracer

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace"
)

func newRecordingTracer(t *testing.T) (*Tracer, *tracetest.SpanRecorder) {
	t.Helper()
	rec := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(rec))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })
	return NewFromProvider(tp), rec
}

func TestCarrierRoundTrip(t *testing.T) {
	tr, _ := newRecordingTracer(t)

	ctx, span := tr.StartSpan(context.Background(), "publish")
	defer span.End()

	carrier := tr.GetCarrier(ctx)
	require.Contains(t, carrier, "traceparent")

	restored := tr.SetCarrierOnContext(context.Background(), carrier)
	sc := trace.SpanContextFromContext(restored)
	assert.True(t, sc.IsValid())
	assert.True(t, sc.IsRemote())
	assert.Equal(t, span.SpanContext().TraceID(), sc.TraceID())
}

func TestCarrierWithoutSpanIsEmpty(t *testing.T) {
	tr, _ := newRecordingTracer(t)
	assert.Empty(t, tr.GetCarrier(context.Background()))
}

func TestRecordErrorAndAttributes(t *testing.T) {
	tr, rec := newRecordingTracer(t)

	_, span := tr.StartSpan(context.Background(), "dispatch")
	tr.SetAttributes(span, map[string]interface{}{
		"level":   "error",
		"modules": 2,
		"ok":      false,
	})
	tr.RecordErrorOnSpan(span, errors.New("decode failed"))
	span.End()

	ended := rec.Ended()
	require.Len(t, ended, 1)
	assert.Equal(t, "dispatch", ended[0].Name())
	assert.Equal(t, codes.Error, ended[0].Status().Code)
	assert.Equal(t, "decode failed", ended[0].Status().Description)
	assert.Len(t, ended[0].Attributes(), 3)
}

func TestNewClientWithoutExport(t *testing.T) {
	tr, err := NewClient(Config{ServiceName: "test", AppEnv: "ci"}, nil)
	require.NoError(t, err)
	assert.NoError(t, tr.Shutdown(context.Background()))

	var nilTracer *Tracer
	assert.NoError(t, nilTracer.Shutdown(context.Background()))
}
