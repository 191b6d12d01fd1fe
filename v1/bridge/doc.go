// Package bridge carries log events between processes over RabbitMQ.
//
// A Sender is a logging.Transport: bind it to modules and every event they
// emit is wrapped in an Envelope, encoded as JSON and published to the log
// exchange with the level as routing key. While the sender has no channel
// events are dropped, never queued.
//
// A Receiver declares one durable queue per level, binds each to the
// exchange with the level as key and consumes them. Each delivery is decoded
// and handed to every module registered on the receiver's logging.Logger by
// calling the module method of the same level with the Envelope, so the
// transports bound on the receiving side see the remote event as if it had
// been logged locally.
//
// Both sides share one rabbit.Config and reconnect with exponential backoff
// when Reconnect.Enabled is set; the receiver restarts its consumers after
// every reconnect.
package bridge
