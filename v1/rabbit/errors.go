package rabbit

import (
	"errors"
	"fmt"
	"net"
	"strings"
	"syscall"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Common RabbitMQ error types that can be used by consumers of this package.
// These provide a standardized set of errors that abstract away the
// underlying AMQP-specific error details.
var (
	// ErrConnectionFailed is returned when connection to RabbitMQ cannot be established
	ErrConnectionFailed = errors.New("connection failed")

	// ErrConnectionLost is returned when connection to RabbitMQ is lost
	ErrConnectionLost = errors.New("connection lost")

	// ErrConnectionClosed is returned when connection is closed
	ErrConnectionClosed = errors.New("connection closed")

	// ErrNotConnected is returned when an operation needs a channel and none is established
	ErrNotConnected = errors.New("not connected")

	// ErrChannelClosed is returned when channel is closed
	ErrChannelClosed = errors.New("channel closed")

	// ErrChannelError is returned for channel-related errors
	ErrChannelError = errors.New("channel error")

	// ErrAuthenticationFailed is returned when authentication fails
	ErrAuthenticationFailed = errors.New("authentication failed")

	// ErrAccessDenied is returned when access is denied to a resource
	ErrAccessDenied = errors.New("access denied")

	// ErrVirtualHostNotFound is returned when virtual host doesn't exist
	ErrVirtualHostNotFound = errors.New("virtual host not found")

	// ErrPreconditionFailed is returned when a redeclaration conflicts with existing properties
	ErrPreconditionFailed = errors.New("precondition failed")

	// ErrResourceLocked is returned when resource is locked
	ErrResourceLocked = errors.New("resource locked")

	// ErrDeclareFailed is returned when declare operation fails
	ErrDeclareFailed = errors.New("declare failed")

	// ErrBindFailed is returned when bind operation fails
	ErrBindFailed = errors.New("bind failed")

	// ErrConsumeFailed is returned when consume operation fails
	ErrConsumeFailed = errors.New("consume failed")

	// ErrQoSFailed is returned when QoS operation fails
	ErrQoSFailed = errors.New("QoS failed")

	// ErrPublishFailed is returned when publish operation fails
	ErrPublishFailed = errors.New("publish failed")

	// ErrMessageNacked is returned when the broker negatively acknowledges a confirmed publish
	ErrMessageNacked = errors.New("message nacked")

	// ErrMessageTooLarge is returned when message exceeds size limits
	ErrMessageTooLarge = errors.New("message too large")

	// ErrMaxRetriesExceeded is reported when reconnection gives up
	ErrMaxRetriesExceeded = errors.New("maximum reconnection attempts exceeded")

	// ErrTimeout is returned when operation times out
	ErrTimeout = errors.New("timeout")

	// ErrNetworkError is returned for network-related errors
	ErrNetworkError = errors.New("network error")

	// ErrTLSError is returned for TLS/SSL errors
	ErrTLSError = errors.New("TLS error")

	// ErrProtocolError is returned for protocol-related errors
	ErrProtocolError = errors.New("protocol error")

	// ErrServerError is returned for server-side errors
	ErrServerError = errors.New("server error")

	// ErrNotAllowed is returned when operation is not allowed
	ErrNotAllowed = errors.New("not allowed")

	// ErrShutdown is returned when the session is shutting down
	ErrShutdown = errors.New("shutdown")

	// ErrConfigurationError is returned for configuration-related errors
	ErrConfigurationError = errors.New("configuration error")

	// ErrUnknownError is returned for unknown/unhandled errors
	ErrUnknownError = errors.New("unknown error")
)

// ConnectionError reports a failure to establish the transport-level
// connection: broker unreachable, TLS failure or authentication refused.
type ConnectionError struct {
	Op   string // operation that failed, e.g. "dial"
	URL  string // redacted broker URL
	Err  error  // underlying error
	Kind error  // translated sentinel, see TranslateError
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("rabbit connection error: %s %s: %v", e.Op, e.URL, e.Err)
}

func (e *ConnectionError) Unwrap() []error {
	return []error{ErrConnectionFailed, e.Kind, e.Err}
}

// ChannelError reports a failure to open or configure the channel.
type ChannelError struct {
	Op   string // "open", "qos", "confirm", "consume"
	Err  error
	Kind error
}

func (e *ChannelError) Error() string {
	return fmt.Sprintf("rabbit channel error: %s: %v", e.Op, e.Err)
}

func (e *ChannelError) Unwrap() []error {
	return []error{ErrChannelError, e.Kind, e.Err}
}

// TopologyError reports a failed exchange or queue declaration or binding.
type TopologyError struct {
	Op       string // "declare exchange", "declare queue", "bind queue"
	Resource string // exchange or queue name
	Err      error
	Kind     error // ErrDeclareFailed or ErrBindFailed
}

func (e *TopologyError) Error() string {
	return fmt.Sprintf("rabbit topology error: %s %q: %v", e.Op, e.Resource, e.Err)
}

func (e *TopologyError) Unwrap() []error {
	return []error{e.Kind, TranslateError(e.Err), e.Err}
}

func newConnectionError(op, url string, err error) *ConnectionError {
	return &ConnectionError{Op: op, URL: url, Err: err, Kind: TranslateError(err)}
}

func newChannelError(op string, err error) *ChannelError {
	return &ChannelError{Op: op, Err: err, Kind: TranslateError(err)}
}

// IsConnectionError reports whether err stems from establishing or losing the connection.
func IsConnectionError(err error) bool {
	var connErr *ConnectionError
	return errors.As(err, &connErr) ||
		errors.Is(err, ErrConnectionFailed) ||
		errors.Is(err, ErrConnectionLost) ||
		errors.Is(err, ErrConnectionClosed)
}

// IsChannelError reports whether err is channel related.
func IsChannelError(err error) bool {
	var chErr *ChannelError
	return errors.As(err, &chErr) ||
		errors.Is(err, ErrChannelClosed) ||
		errors.Is(err, ErrChannelError)
}

// IsTopologyError reports whether err comes from a declaration or binding.
func IsTopologyError(err error) bool {
	var topoErr *TopologyError
	return errors.As(err, &topoErr)
}

// IsPermanentError returns true if retrying cannot help: wrong credentials,
// missing vhost, conflicting declarations or bad configuration.
func IsPermanentError(err error) bool {
	switch {
	case errors.Is(err, ErrAuthenticationFailed),
		errors.Is(err, ErrAccessDenied),
		errors.Is(err, ErrVirtualHostNotFound),
		errors.Is(err, ErrPreconditionFailed),
		errors.Is(err, ErrNotAllowed),
		errors.Is(err, ErrConfigurationError),
		errors.Is(err, ErrShutdown):
		return true
	default:
		return false
	}
}

// TranslateError converts AMQP/RabbitMQ-specific errors into standardized application errors.
// This function provides abstraction from the underlying AMQP implementation details,
// allowing application code to handle errors in a RabbitMQ-agnostic way.
//
// If an error doesn't match any known type, ErrUnknownError is returned.
// A nil error translates to nil.
func TranslateError(err error) error {
	if err == nil {
		return nil
	}

	var amqpErr *amqp.Error
	if errors.As(err, &amqpErr) {
		return translateAMQPError(amqpErr)
	}

	// syscall.Errno also satisfies net.Error, so it goes first
	var syscallErr syscall.Errno
	if errors.As(err, &syscallErr) {
		return translateSyscallError(syscallErr)
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return translateNetworkError(netErr)
	}

	return translateByReason(strings.ToLower(err.Error()))
}

// translateAMQPError maps AMQP error codes to custom errors
func translateAMQPError(amqpErr *amqp.Error) error {
	if amqpErr == amqp.ErrClosed {
		return ErrChannelClosed
	}

	switch amqpErr.Code {
	// Connection-level errors
	case amqp.ConnectionForced:
		return ErrConnectionClosed
	case amqp.InvalidPath:
		return ErrVirtualHostNotFound
	case amqp.AccessRefused:
		return ErrAccessDenied
	case amqp.NotFound:
		return ErrVirtualHostNotFound
	case amqp.ResourceLocked:
		return ErrResourceLocked
	case amqp.PreconditionFailed:
		return ErrPreconditionFailed

	// Channel-level errors
	case amqp.ContentTooLarge:
		return ErrMessageTooLarge
	case amqp.NoRoute, amqp.NoConsumers:
		return ErrPublishFailed
	case amqp.ChannelError:
		return ErrChannelError
	case amqp.NotAllowed:
		return ErrNotAllowed
	case amqp.InternalError, amqp.NotImplemented, amqp.ResourceError:
		return ErrServerError

	// Frame-level errors
	case amqp.SyntaxError, amqp.CommandInvalid, amqp.FrameError, amqp.UnexpectedFrame:
		return ErrProtocolError

	default:
		return translateByReason(strings.ToLower(amqpErr.Reason))
	}
}

// translateNetworkError maps network errors to custom errors
func translateNetworkError(netErr net.Error) error {
	if netErr.Timeout() {
		return ErrTimeout
	}
	var opErr *net.OpError
	if errors.As(netErr, &opErr) && opErr.Op == "dial" {
		return ErrConnectionFailed
	}
	return ErrNetworkError
}

// translateSyscallError maps syscall errors to custom errors
func translateSyscallError(syscallErr syscall.Errno) error {
	switch syscallErr {
	case syscall.ECONNREFUSED:
		return ErrConnectionFailed
	case syscall.ECONNRESET, syscall.ECONNABORTED, syscall.EPIPE, syscall.ENOTCONN:
		return ErrConnectionLost
	case syscall.ETIMEDOUT:
		return ErrTimeout
	case syscall.EACCES, syscall.EPERM:
		return ErrAccessDenied
	default:
		return ErrNetworkError
	}
}

// translateByReason translates errors based on message patterns (fallback)
func translateByReason(reason string) error {
	switch {
	case strings.Contains(reason, "username or password not allowed"),
		strings.Contains(reason, "authentication failed"),
		strings.Contains(reason, "auth_failure"),
		strings.Contains(reason, "access_refused"):
		return ErrAuthenticationFailed
	case strings.Contains(reason, "access denied"), strings.Contains(reason, "permission denied"):
		return ErrAccessDenied
	case strings.Contains(reason, "vhost") && strings.Contains(reason, "not found"),
		strings.Contains(reason, "virtual host") && strings.Contains(reason, "not found"):
		return ErrVirtualHostNotFound
	case strings.Contains(reason, "precondition failed"), strings.Contains(reason, "inequivalent arg"):
		return ErrPreconditionFailed
	case strings.Contains(reason, "channel/connection is not open"), strings.Contains(reason, "channel closed"):
		return ErrChannelClosed
	case strings.Contains(reason, "connection refused"):
		return ErrConnectionFailed
	case strings.Contains(reason, "connection reset"), strings.Contains(reason, "connection lost"), strings.Contains(reason, "eof"):
		return ErrConnectionLost
	case strings.Contains(reason, "connection closed"), strings.Contains(reason, "connection forced"):
		return ErrConnectionClosed
	case strings.Contains(reason, "timeout"), strings.Contains(reason, "deadline exceeded"):
		return ErrTimeout
	case strings.Contains(reason, "tls"), strings.Contains(reason, "certificate"), strings.Contains(reason, "x509"):
		return ErrTLSError
	case strings.Contains(reason, "no such host"), strings.Contains(reason, "network is unreachable"):
		return ErrNetworkError
	default:
		return ErrUnknownError
	}
}
