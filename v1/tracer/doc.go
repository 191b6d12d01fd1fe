// Package tracer sets up OpenTelemetry tracing and carries trace context
// across the broker.
//
// The Sender injects the context of the logging call into the AMQP headers of
// each published envelope with GetCarrier; the Receiver restores it with
// SetCarrierOnContext before fanning the event out, so a log line emitted on
// a remote node can be correlated with the request that produced it.
//
//	t, err := tracer.NewClient(tracer.Config{ServiceName: "billing"}, log)
//	if err != nil {
//		return err
//	}
//	defer t.Shutdown(ctx)
//
//	ctx, span := t.StartSpan(ctx, "checkout")
//	defer span.End()
//	headers := t.GetCarrier(ctx) // traceparent, tracestate, baggage
package tracer
