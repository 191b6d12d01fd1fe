package bridge

import (
	"context"

	"go.uber.org/fx"

	"github.com/fayulogger/mqlog/v1/logger"
	"github.com/fayulogger/mqlog/v1/logging"
	"github.com/fayulogger/mqlog/v1/observability"
	"github.com/fayulogger/mqlog/v1/rabbit"
	"github.com/fayulogger/mqlog/v1/tracer"
)

// FXModule provides a *Receiver, connects it on application start and
// closes it on stop.
//
// Usage:
//
//	app := fx.New(
//	    logger.FXModule,
//	    metrics.FXModule,
//	    bridge.FXModule,
//	    fx.Provide(func() rabbit.Config { return cfg }),
//	    fx.Invoke(func(r *bridge.Receiver, log *logger.LoggerClient) error {
//	        return r.Logger().AddTransport(logger.NewTransport("zap", log))
//	    }),
//	)
var FXModule = fx.Module("bridge",
	fx.Provide(NewReceiverWithDI),
	fx.Invoke(RegisterReceiverLifecycle),
)

// ReceiverParams groups the dependencies needed to create a Receiver.
type ReceiverParams struct {
	fx.In

	Config   rabbit.Config
	Logger   *logger.LoggerClient   `optional:"true"`
	Observer observability.Observer `optional:"true"`
	Tracer   *tracer.Tracer         `optional:"true"`
	Logging  *logging.Logger        `optional:"true"`
	Dialer   rabbit.Dialer          `optional:"true"`
}

// NewReceiverWithDI creates a Receiver from injected dependencies.
func NewReceiverWithDI(params ReceiverParams) *Receiver {
	var opts []Option
	if params.Logger != nil {
		opts = append(opts, WithLogger(params.Logger))
	}
	if params.Observer != nil {
		opts = append(opts, WithObserver(params.Observer))
	}
	if params.Tracer != nil {
		opts = append(opts, WithTracer(params.Tracer))
	}
	if params.Logging != nil {
		opts = append(opts, WithLogging(params.Logging))
	}
	if params.Dialer != nil {
		opts = append(opts, WithDialer(params.Dialer))
	}
	return NewReceiver(params.Config, opts...)
}

// RegisterReceiverLifecycle connects the receiver when the application
// starts and closes it when the application stops.
func RegisterReceiverLifecycle(lc fx.Lifecycle, r *Receiver) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			return r.Connect(ctx)
		},
		OnStop: func(ctx context.Context) error {
			return r.Close()
		},
	})
}
