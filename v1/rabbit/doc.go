// Package rabbit manages a single AMQP 0-9-1 session against RabbitMQ.
//
// A Session owns exactly one connection and one channel on it. It is the
// building block the bridge package uses for both the log Sender and the log
// Receiver: connect, declare the topology, publish, consume, and tear down.
//
// # Architecture
//
// This package follows the "accept interfaces, return structs" design pattern:
//   - AMQPConnection / AMQPChannel: the subset of amqp091-go the session needs
//   - Dialer: opens an AMQPConnection; DialAMQP is the amqp091-go default
//   - Session: concrete type returned by NewSession
//   - Logger / observability.Observer: optional collaborators
//
// Core Features:
//   - Connect with full teardown on any partial failure
//   - Typed errors (*ConnectionError, *ChannelError, *TopologyError) on top of
//     sentinel errors and TranslateError
//   - Direct exchange, durable queue and binding declarations
//   - Fire-and-forget publishing, or publisher confirms when enabled
//   - Channel event callbacks: close, error, return, flow and drain
//   - Optional reconnection with exponential backoff that re-runs the topology
//
// # Direct Usage
//
//	s := rabbit.NewSession(rabbit.Config{
//		Connection: rabbit.Connection{
//			Host:     "localhost",
//			Port:     5672,
//			User:     "guest",
//			Password: "guest",
//		},
//	}).WithSetup(func(ctx context.Context, s *rabbit.Session) error {
//		return s.DeclareExchange(ctx, "logs")
//	})
//
//	if err := s.Connect(ctx); err != nil {
//		var connErr *rabbit.ConnectionError
//		if errors.As(err, &connErr) {
//			// broker unreachable or credentials refused
//		}
//		return err
//	}
//	defer s.Close()
//
//	err := s.Publish(ctx, "logs", "info", amqp.Publishing{
//		ContentType: "application/json",
//		Body:        body,
//	})
//	if errors.Is(err, rabbit.ErrNotConnected) {
//		// no channel: the caller decides whether that is a drop
//	}
//
// # Reconnection
//
// When Config.Reconnect.Enabled is set and the channel or connection goes away
// without Close being called, the session redials with exponential backoff and
// runs the setup hook again. Exhaustion is reported through Events.OnError
// with an error wrapping ErrMaxRetriesExceeded. Connect itself never retries.
//
// # Error Handling
//
//	if err := s.Connect(ctx); err != nil {
//		switch {
//		case errors.Is(err, rabbit.ErrAuthenticationFailed):
//			// fix credentials
//		case rabbit.IsTopologyError(err):
//			// exchange or queue declared with conflicting properties
//		case rabbit.IsConnectionError(err):
//			// retry later
//		}
//	}
//
// # Thread Safety
//
// Publish and the topology calls are safe for concurrent use. Connect and
// Close must be serialized by the caller. Event callbacks run on the session
// watcher goroutine; they must not block and must not call Close.
//
// # Testing
//
// Package rabbittest provides an in-memory broker whose Dial method can be
// passed to WithDialer.
package rabbit
