// Package logger provides structured logging for the mqlog components.
//
// It wraps Uber's zap with the simplified (msg, err, fields...) calling
// convention used across this module and integrates with the fx dependency
// injection framework.
//
// # Architecture
//
//   - LoggerClient struct: zap wrapper with Debug/Info/Warn/Error/Fatal and
//     their *WithContext variants
//   - Transport struct: a logging.Transport sink that writes bridged events
//   - NewLoggerClient constructor: returns *LoggerClient
//   - FXModule: provides *LoggerClient and flushes it on shutdown
//
// # Direct Usage (Without FX)
//
//	log := logger.NewLoggerClient(logger.Config{
//		Level:         "info",
//		EnableTracing: true,
//		ServiceName:   "mqlog-receiver",
//	})
//
//	log.Info("receiver connected", nil, map[string]interface{}{
//		"exchange": "logs",
//	})
//
//	// trace_id and span_id are added when ctx carries a span
//	log.InfoWithContext(ctx, "dispatching", nil, nil)
//
// # Bridged events
//
// On the receiving node, bind a Transport to a module so every event that
// arrives over the broker ends up in the process log:
//
//	sink := logger.NewTransport("stderr", log)
//	_ = receiver.Logger().AddTransport(sink)
//	_ = receiver.Logger().Bind("remote", sink.Name())
//
// # Configuration
//
//	ZAP_LOGGER_LEVEL=debug          # debug, info, warning, error
//	LOGGER_ENABLE_TRACING=true      # add trace/span ids from context
//	LOGGER_SERVICE_NAME=mqlog       # "service" field
//	LOGGER_ENCODING=console         # json (default) or console
//
// # Thread Safety
//
// All methods are safe for concurrent use by multiple goroutines.
package logger
