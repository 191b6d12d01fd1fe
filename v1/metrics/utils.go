package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// IncPublished counts an event accepted by the broker.
func (m *Metrics) IncPublished(exchange, level string) {
	m.publishedTotal.WithLabelValues(exchange, level).Inc()
}

// IncDropped counts an event that never reached the broker.
// Example: metrics.IncDropped("info", "disconnected")
func (m *Metrics) IncDropped(level, reason string) {
	m.droppedTotal.WithLabelValues(level, reason).Inc()
}

// IncConsumed counts a delivery received from a level queue.
func (m *Metrics) IncConsumed(queue, level string) {
	m.consumedTotal.WithLabelValues(queue, level).Inc()
}

// ObserveDispatch records how long the fan-out of one event took.
func (m *Metrics) ObserveDispatch(level string, d time.Duration) {
	m.dispatchDuration.WithLabelValues(level).Observe(d.Seconds())
}

// SetConnected sets the connection state gauge for a session.
func (m *Metrics) SetConnected(session string, connected bool) {
	v := 0.0
	if connected {
		v = 1
	}
	m.connectionState.WithLabelValues(session).Set(v)
}

// IncErrors counts a failed operation.
func (m *Metrics) IncErrors(component, operation string) {
	m.errorsTotal.WithLabelValues(component, operation).Inc()
}

// CreateCounter creates a new CounterVec metric and registers it.
func (m *Metrics) CreateCounter(name, help string, labels []string) *prometheus.CounterVec {
	counter := createCounterVec(name, help, labels)
	m.registerer.MustRegister(counter)
	return counter
}

// CreateHistogram creates a new HistogramVec metric and registers it.
func (m *Metrics) CreateHistogram(name, help string, labels []string, buckets []float64) *prometheus.HistogramVec {
	hist := createHistogramVec(name, help, labels, buckets)
	m.registerer.MustRegister(hist)
	return hist
}

// CreateGauge creates a new GaugeVec metric and registers it.
func (m *Metrics) CreateGauge(name, help string, labels []string) *prometheus.GaugeVec {
	gauge := createGaugeVec(name, help, labels)
	m.registerer.MustRegister(gauge)
	return gauge
}

// createCounterVec defines a new CounterVec with standard options.
func createCounterVec(name, help string, labels []string) *prometheus.CounterVec {
	return prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: name,
			Help: help,
		},
		labels,
	)
}

// createHistogramVec defines a new HistogramVec with configurable buckets.
func createHistogramVec(name, help string, labels []string, buckets []float64) *prometheus.HistogramVec {
	return prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    name,
			Help:    help,
			Buckets: buckets,
		},
		labels,
	)
}

// createGaugeVec defines a new GaugeVec.
func createGaugeVec(name, help string, labels []string) *prometheus.GaugeVec {
	return prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: name,
			Help: help,
		},
		labels,
	)
}
