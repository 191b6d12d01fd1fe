package metrics

import (
	"github.com/fayulogger/mqlog/v1/observability"
)

// ObserveOperation maps component operations onto the bridge metrics.
//
//	connect, reconnect        -> mqlog_connection_state = 1 on success
//	channel_close, disconnect -> mqlog_connection_state = 0
//	produce                   -> mqlog_messages_published_total
//	drop                      -> mqlog_messages_dropped_total
//	consume                   -> mqlog_messages_consumed_total
//	dispatch                  -> mqlog_dispatch_duration_seconds
//
// Every operation carrying an error also increments mqlog_operation_errors_total.
func (m *Metrics) ObserveOperation(op observability.OperationContext) {
	session := sessionLabel(op)

	switch op.Operation {
	case "connect", "reconnect":
		if op.Error == nil {
			m.SetConnected(session, true)
		}
	case "channel_close", "disconnect":
		m.SetConnected(session, false)
	case "produce":
		if op.Error == nil {
			m.IncPublished(op.Resource, op.SubResource)
		}
	case "drop":
		m.IncDropped(op.SubResource, metadataString(op, "reason", "disconnected"))
	case "consume":
		m.IncConsumed(op.Resource, op.SubResource)
	case "dispatch":
		m.ObserveDispatch(op.SubResource, op.Duration)
	}

	if op.Error != nil {
		m.IncErrors(op.Component, op.Operation)
	}
}

func sessionLabel(op observability.OperationContext) string {
	return metadataString(op, "session", op.Component)
}

func metadataString(op observability.OperationContext, key, fallback string) string {
	if v, ok := op.Metadata[key].(string); ok && v != "" {
		return v
	}
	return fallback
}
