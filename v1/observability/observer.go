// Package observability defines the hook through which the mqlog components
// report the operations they perform.
//
// Components never depend on a concrete metrics or tracing backend. They call
// an Observer, when one is attached, with an OperationContext describing what
// just happened. The metrics package ships an Observer backed by Prometheus.
package observability

import "time"

// OperationContext describes a single operation performed by a component.
type OperationContext struct {
	// Component is the package reporting the operation, e.g. "rabbit" or "bridge".
	Component string

	// Operation names what happened: "connect", "produce", "drop", "consume",
	// "dispatch", "channel_close", "reconnect".
	Operation string

	// Resource is the main broker object involved: exchange or queue name.
	Resource string

	// SubResource refines Resource: routing key or severity level.
	SubResource string

	// Duration is the wall time the operation took.
	Duration time.Duration

	// Error is the failure, if any.
	Error error

	// Size is the payload size in bytes, when relevant.
	Size int64

	// Metadata carries operation specific extras.
	Metadata map[string]interface{}
}

// Observer receives OperationContext notifications.
// Implementations must be safe for concurrent use.
type Observer interface {
	ObserveOperation(ctx OperationContext)
}

// ObserverFunc adapts a plain function to the Observer interface.
type ObserverFunc func(ctx OperationContext)

// ObserveOperation calls f(ctx).
func (f ObserverFunc) ObserveOperation(ctx OperationContext) {
	f(ctx)
}
