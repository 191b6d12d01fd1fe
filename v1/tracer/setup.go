package tracer

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

// Logger is the logging surface the tracer needs.
type Logger interface {
	Info(msg string, err error, fields ...map[string]interface{})
	Error(msg string, err error, fields ...map[string]interface{})
}

// Tracer wraps the OpenTelemetry tracer provider and the propagator used to
// carry trace context through AMQP message headers.
type Tracer struct {
	tracer     *sdktrace.TracerProvider
	propagator propagation.TextMapPropagator
	logger     Logger
}

// NewClient creates a tracer provider, optionally exporting spans over OTLP
// HTTP, and installs it as the global provider together with a W3C trace
// context + baggage propagator.
//
// Example:
//
//	t, err := tracer.NewClient(tracer.Config{ServiceName: "billing", AppEnv: "prod"}, log)
//	if err != nil {
//		return err
//	}
//	defer t.Shutdown(context.Background())
func NewClient(cfg Config, logger Logger) (*Tracer, error) {
	var options []sdktrace.TracerProviderOption

	if cfg.EnableExport {
		var clientOpts []otlptracehttp.Option
		if cfg.Endpoint != "" {
			clientOpts = append(clientOpts, otlptracehttp.WithEndpoint(cfg.Endpoint))
		}
		if cfg.Insecure {
			clientOpts = append(clientOpts, otlptracehttp.WithInsecure())
		}

		exporter, err := otlptrace.New(context.Background(), otlptracehttp.NewClient(clientOpts...))
		if err != nil {
			return nil, fmt.Errorf("cannot initiate trace exporter: %w", err)
		}
		options = append(options, sdktrace.WithBatcher(exporter))
	}

	options = append(options, sdktrace.WithResource(resource.NewWithAttributes(
		semconv.SchemaURL,
		semconv.ServiceName(cfg.ServiceName),
		semconv.DeploymentEnvironment(cfg.AppEnv),
		attribute.String("environment", cfg.AppEnv),
	)))

	tp := sdktrace.NewTracerProvider(options...)
	propagator := propagation.NewCompositeTextMapPropagator(propagation.TraceContext{}, propagation.Baggage{})

	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagator)

	if logger != nil {
		logger.Info("Tracer initialized", nil, map[string]interface{}{
			"service": cfg.ServiceName,
			"export":  cfg.EnableExport,
		})
	}

	return &Tracer{tracer: tp, propagator: propagator, logger: logger}, nil
}

// NewFromProvider wraps an existing tracer provider without touching the
// global OpenTelemetry state.
func NewFromProvider(tp *sdktrace.TracerProvider) *Tracer {
	return &Tracer{
		tracer:     tp,
		propagator: propagation.NewCompositeTextMapPropagator(propagation.TraceContext{}, propagation.Baggage{}),
	}
}

// Shutdown flushes pending spans and stops the provider.
func (t *Tracer) Shutdown(ctx context.Context) error {
	if t == nil || t.tracer == nil {
		return nil
	}
	err := t.tracer.Shutdown(ctx)
	if err != nil && t.logger != nil {
		t.logger.Error("Failed to shut down tracer", err, nil)
	}
	return err
}
