package rabbit

import (
	"time"

	"github.com/fayulogger/mqlog/v1/observability"
)

// observeOperation notifies the observer about an operation if one is configured.
// This is used internally to track connect, publish and channel lifecycle operations.
func (s *Session) observeOperation(operation, resource, subResource string, duration time.Duration, err error, size int64) {
	if s.observer != nil {
		var metadata map[string]interface{}
		if s.name != "" {
			metadata = map[string]interface{}{"session": s.name}
		}
		s.observer.ObserveOperation(observability.OperationContext{
			Component:   "rabbit",
			Operation:   operation,
			Resource:    resource,
			SubResource: subResource,
			Duration:    duration,
			Error:       err,
			Size:        size,
			Metadata:    metadata,
		})
	}
}
