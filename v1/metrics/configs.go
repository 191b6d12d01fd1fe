package metrics

// Config defines the configuration for the Prometheus metrics server.
type Config struct {
	// Address is the listen address of the /metrics endpoint, e.g. ":9090".
	// An empty address keeps the registry but does not serve it.
	Address string `yaml:"address" env:"MQLOG_METRICS_ADDRESS"`

	// ServiceName is added as a constant "service" label to every metric.
	ServiceName string `yaml:"serviceName" env:"MQLOG_SERVICE_NAME"`

	// EnableDefaultCollectors registers the Go, process and build info collectors.
	EnableDefaultCollectors bool `yaml:"enableDefaultCollectors" env:"MQLOG_METRICS_DEFAULT_COLLECTORS"`
}
