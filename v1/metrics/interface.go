package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/fayulogger/mqlog/v1/observability"
)

// MetricsCollector provides an interface for collecting and exposing bridge metrics.
// It abstracts Prometheus metric operations with support for counters, histograms, and gauges.
//
// This interface is implemented by the concrete *Metrics type.
type MetricsCollector interface {
	observability.Observer

	// Bridge metrics

	IncPublished(exchange, level string)
	IncDropped(level, reason string)
	IncConsumed(queue, level string)
	ObserveDispatch(level string, d time.Duration)
	SetConnected(session string, connected bool)
	IncErrors(component, operation string)

	// Dynamic metric factories

	// CreateCounter creates a new CounterVec metric and registers it.
	CreateCounter(name, help string, labels []string) *prometheus.CounterVec

	// CreateHistogram creates a new HistogramVec metric and registers it.
	CreateHistogram(name, help string, labels []string, buckets []float64) *prometheus.HistogramVec

	// CreateGauge creates a new GaugeVec metric and registers it.
	CreateGauge(name, help string, labels []string) *prometheus.GaugeVec
}

var _ MetricsCollector = (*Metrics)(nil)
