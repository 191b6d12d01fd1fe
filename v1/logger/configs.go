package logger

const (
	Debug   = "debug"
	Info    = "info"
	Warning = "warning"
	Error   = "error"
)

// Config controls how the zap logger is built.
type Config struct {
	// Level is one of "debug", "info", "warning", "error". Anything else
	// falls back to info.
	Level string `yaml:"level" env:"ZAP_LOGGER_LEVEL"`

	// EnableTracing adds trace_id and span_id to entries logged through the
	// *WithContext methods when the context carries an OpenTelemetry span.
	EnableTracing bool `yaml:"enableTracing" env:"LOGGER_ENABLE_TRACING"`

	// ServiceName is attached to every entry as the "service" field.
	ServiceName string `yaml:"serviceName" env:"LOGGER_SERVICE_NAME"`

	// Encoding is "json" (default) or "console".
	Encoding string `yaml:"encoding" env:"LOGGER_ENCODING"`
}
