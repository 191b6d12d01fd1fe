package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics encapsulates the Prometheus registry and HTTP server responsible
// for exposing the bridge metrics.
//
// *Metrics implements observability.Observer, so it can be attached directly
// to a Session, Sender or Receiver.
type Metrics struct {
	// Server defines the HTTP server used to expose the /metrics endpoint.
	Server *http.Server

	// Registry is the Prometheus registry where all metrics are registered.
	Registry *prometheus.Registry

	registerer prometheus.Registerer

	publishedTotal   *prometheus.CounterVec
	droppedTotal     *prometheus.CounterVec
	consumedTotal    *prometheus.CounterVec
	dispatchDuration *prometheus.HistogramVec
	connectionState  *prometheus.GaugeVec
	errorsTotal      *prometheus.CounterVec
}

// NewMetrics initializes and returns a new instance of the Metrics struct.
// It sets up a dedicated Prometheus registry, wraps all metrics with a
// constant `service` label, and creates an HTTP server exposing /metrics.
//
// Example:
//
//	m := metrics.NewMetrics(metrics.Config{Address: ":9090", ServiceName: "log-node"})
//	receiver := bridge.NewReceiver(cfg, bridge.WithObserver(m))
//	go m.Server.ListenAndServe()
func NewMetrics(cfg Config) *Metrics {
	registry := prometheus.NewRegistry()

	// every metric carries service="<cfg.ServiceName>"
	wrappedRegistry := prometheus.WrapRegistererWith(
		prometheus.Labels{"service": cfg.ServiceName},
		registry,
	)

	m := &Metrics{
		Registry:   registry,
		registerer: wrappedRegistry,
	}

	m.publishedTotal = createCounterVec("mqlog_messages_published_total", "Log events published to the exchange", []string{"exchange", "level"})
	m.droppedTotal = createCounterVec("mqlog_messages_dropped_total", "Log events dropped before reaching the broker", []string{"level", "reason"})
	m.consumedTotal = createCounterVec("mqlog_messages_consumed_total", "Log events received from level queues", []string{"queue", "level"})
	m.dispatchDuration = createHistogramVec("mqlog_dispatch_duration_seconds", "Time spent fanning a received event out to modules", []string{"level"}, prometheus.DefBuckets)
	m.connectionState = createGaugeVec("mqlog_connection_state", "1 while the broker session is connected, 0 otherwise", []string{"session"})
	m.errorsTotal = createCounterVec("mqlog_operation_errors_total", "Failed operations by component", []string{"component", "operation"})

	wrappedRegistry.MustRegister(
		m.publishedTotal,
		m.droppedTotal,
		m.consumedTotal,
		m.dispatchDuration,
		m.connectionState,
		m.errorsTotal,
	)

	// Go, process and build info collectors
	if cfg.EnableDefaultCollectors {
		wrappedRegistry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
			collectors.NewBuildInfoCollector(),
		)
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))

	m.Server = &http.Server{
		Addr:    cfg.Address,
		Handler: mux,
	}
	return m
}
