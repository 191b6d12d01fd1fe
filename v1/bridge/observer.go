package bridge

import (
	"time"

	"github.com/fayulogger/mqlog/v1/observability"
)

// observe notifies obs about a bridge operation if an observer is configured.
func observe(obs observability.Observer, operation, resource, subResource string, duration time.Duration, err error, size int64, metadata map[string]interface{}) {
	if obs == nil {
		return
	}
	obs.ObserveOperation(observability.OperationContext{
		Component:   "bridge",
		Operation:   operation,
		Resource:    resource,
		SubResource: subResource,
		Duration:    duration,
		Error:       err,
		Size:        size,
		Metadata:    metadata,
	})
}
