package tracer

import (
	"context"

	"go.uber.org/fx"

	"github.com/fayulogger/mqlog/v1/logger"
)

// FXModule provides *Tracer and flushes it on application stop.
var FXModule = fx.Module("tracer",
	fx.Provide(NewClientWithDI),
	fx.Invoke(RegisterTracerLifecycle),
)

// TracerParams groups the dependencies needed to create a Tracer.
type TracerParams struct {
	fx.In

	Config Config
	Logger *logger.LoggerClient `optional:"true"`
}

// NewClientWithDI creates a Tracer from injected dependencies.
func NewClientWithDI(params TracerParams) (*Tracer, error) {
	var log Logger
	if params.Logger != nil {
		log = params.Logger
	}
	return NewClient(params.Config, log)
}

// RegisterTracerLifecycle shuts the tracer provider down when the application stops.
func RegisterTracerLifecycle(lc fx.Lifecycle, tracer *Tracer) {
	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			return tracer.Shutdown(ctx)
		},
	})
}
