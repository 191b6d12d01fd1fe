package tracer

// Config defines the configuration for the OpenTelemetry tracer.
type Config struct {
	// ServiceName is reported as the service.name resource attribute.
	ServiceName string `yaml:"serviceName" env:"MQLOG_SERVICE_NAME"`

	// AppEnv is reported as the deployment environment.
	AppEnv string `yaml:"appEnv" env:"MQLOG_APP_ENV"`

	// EnableExport sends spans to an OTLP HTTP collector. The endpoint is read
	// from Endpoint or, when empty, from the standard OTEL_EXPORTER_OTLP_* variables.
	EnableExport bool `yaml:"enableExport" env:"MQLOG_TRACE_EXPORT"`

	// Endpoint is the collector host:port, e.g. "otel-collector:4318".
	Endpoint string `yaml:"endpoint" env:"MQLOG_TRACE_ENDPOINT"`

	// Insecure disables TLS towards the collector.
	Insecure bool `yaml:"insecure" env:"MQLOG_TRACE_INSECURE"`
}
