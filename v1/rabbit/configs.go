package rabbit

import (
	"context"
	"fmt"
	"net"
	"net/url"
	"strconv"
	"time"
)

// Defaults applied to zero-valued configuration fields.
const (
	DefaultHost                     = "localhost"
	DefaultPort                     = 5672
	DefaultUser                     = "guest"
	DefaultPassword                 = "guest"
	DefaultHeartbeat                = 30
	DefaultLocale                   = "en_US"
	DefaultVHost                    = "/"
	DefaultExchangeName             = "logs"
	DefaultQueuePrefix              = "logs_"
	DefaultPrefetchCount            = 3
	DefaultContentType              = "application/json"
	DefaultReconnectInitialInterval = 500 * time.Millisecond
	DefaultReconnectMaxInterval     = 30 * time.Second
	DefaultReconnectMaxAttempts     = 10
)

// Config defines the top-level configuration structure for a broker session.
// It is passed by value and never mutated after Connect.
type Config struct {
	// Connection contains the settings needed to establish a connection to the RabbitMQ server
	Connection Connection `yaml:"connection"`

	// Channel contains configuration for the exchange, queues and delivery semantics
	Channel Channel `yaml:"channel"`

	// Reconnect controls automatic recovery after the connection or channel drops
	Reconnect Reconnect `yaml:"reconnect"`
}

// Connection contains the configuration parameters needed to establish
// a connection to a RabbitMQ server, including authentication and TLS settings.
type Connection struct {
	// Host is the RabbitMQ server hostname or IP address
	Host string `yaml:"hostname" env:"MQLOG_HOSTNAME"`

	// Port is the RabbitMQ server port (typically 5672 for non-SSL, 5671 for SSL)
	Port uint `yaml:"port" env:"MQLOG_PORT"`

	// User is the RabbitMQ username for authentication
	User string `yaml:"username" env:"MQLOG_USERNAME"`

	// Password is the RabbitMQ password for authentication
	Password string `yaml:"password" env:"MQLOG_PASSWORD"`

	// Heartbeat is the liveness interval in seconds
	Heartbeat int `yaml:"heartbeat" env:"MQLOG_HEARTBEAT"`

	// FrameMax is the maximum frame size; 0 lets the broker decide
	FrameMax int `yaml:"frameMax" env:"MQLOG_FRAME_MAX"`

	// Locale is the connection locale
	Locale string `yaml:"locale" env:"MQLOG_LOCALE"`

	// VHost is the virtual host path
	VHost string `yaml:"vhost" env:"MQLOG_VHOST"`

	// IsSSLEnabled determines whether to use SSL/TLS for the connection
	// When true, connections will use the AMQPs protocol
	IsSSLEnabled bool `yaml:"ssl" env:"MQLOG_SSL"`

	// UseCert determines whether to use client certificate authentication
	UseCert bool `yaml:"useCert" env:"MQLOG_USE_CERT"`

	// CACertPath is the file path to the CA certificate for verifying the server
	CACertPath string `yaml:"caCertPath" env:"MQLOG_CA_CERT_PATH"`

	// ClientCertPath is the file path to the client certificate
	ClientCertPath string `yaml:"clientCertPath" env:"MQLOG_CLIENT_CERT_PATH"`

	// ClientKeyPath is the file path to the client certificate's private key
	ClientKeyPath string `yaml:"clientKeyPath" env:"MQLOG_CLIENT_KEY_PATH"`

	// ServerName is the server name to use for TLS verification
	ServerName string `yaml:"serverName" env:"MQLOG_SERVER_NAME"`
}

// Channel contains configuration for the AMQP channel and the log topology.
type Channel struct {
	// ExchangeName is the direct exchange shared by senders and receivers
	ExchangeName string `yaml:"exchange" env:"MQLOG_EXCHANGE"`

	// QueuePrefix prefixes the per-level queue names (receiver only)
	QueuePrefix string `yaml:"queuePrefix" env:"MQLOG_QUEUE_PREFIX"`

	// PrefetchCount limits the number of unacknowledged deliveries held by the channel
	PrefetchCount int `yaml:"prefetch" env:"MQLOG_PREFETCH"`

	// ContentType specifies the MIME type of published messages
	ContentType string `yaml:"contentType" env:"MQLOG_CONTENT_TYPE"`

	// PublisherConfirms puts the channel in confirm mode and makes Publish
	// wait for the broker acknowledgement
	PublisherConfirms bool `yaml:"publisherConfirms" env:"MQLOG_PUBLISHER_CONFIRMS"`

	// Mandatory publishes with the mandatory flag so unroutable messages
	// come back through Events.OnReturn
	Mandatory bool `yaml:"mandatory" env:"MQLOG_MANDATORY"`

	// ManualAck disables auto-ack on consumers; deliveries are acked after
	// they have been handled
	ManualAck bool `yaml:"manualAck" env:"MQLOG_MANUAL_ACK"`
}

// Reconnect describes the exponential backoff used to recover a dropped session.
type Reconnect struct {
	// Enabled turns automatic reconnection on
	Enabled bool `yaml:"enabled" env:"MQLOG_RECONNECT"`

	// InitialInterval is the first wait between attempts
	InitialInterval time.Duration `yaml:"initialInterval" env:"MQLOG_RECONNECT_INITIAL_INTERVAL"`

	// MaxInterval caps the wait between attempts
	MaxInterval time.Duration `yaml:"maxInterval" env:"MQLOG_RECONNECT_MAX_INTERVAL"`

	// MaxAttempts caps the number of attempts per outage
	MaxAttempts int `yaml:"maxAttempts" env:"MQLOG_RECONNECT_MAX_ATTEMPTS"`
}

// WithDefaults returns a copy of c where every zero-valued field is replaced
// by its default.
func (c Config) WithDefaults() Config {
	if c.Connection.Host == "" {
		c.Connection.Host = DefaultHost
	}
	if c.Connection.Port == 0 {
		c.Connection.Port = DefaultPort
	}
	if c.Connection.User == "" {
		c.Connection.User = DefaultUser
	}
	if c.Connection.Password == "" {
		c.Connection.Password = DefaultPassword
	}
	if c.Connection.Heartbeat <= 0 {
		c.Connection.Heartbeat = DefaultHeartbeat
	}
	if c.Connection.FrameMax < 0 {
		c.Connection.FrameMax = 0
	}
	if c.Connection.Locale == "" {
		c.Connection.Locale = DefaultLocale
	}
	if c.Connection.VHost == "" {
		c.Connection.VHost = DefaultVHost
	}
	if c.Channel.ExchangeName == "" {
		c.Channel.ExchangeName = DefaultExchangeName
	}
	if c.Channel.QueuePrefix == "" {
		c.Channel.QueuePrefix = DefaultQueuePrefix
	}
	if c.Channel.PrefetchCount <= 0 {
		c.Channel.PrefetchCount = DefaultPrefetchCount
	}
	if c.Channel.ContentType == "" {
		c.Channel.ContentType = DefaultContentType
	}
	if c.Reconnect.InitialInterval <= 0 {
		c.Reconnect.InitialInterval = DefaultReconnectInitialInterval
	}
	if c.Reconnect.MaxInterval <= 0 {
		c.Reconnect.MaxInterval = DefaultReconnectMaxInterval
	}
	if c.Reconnect.MaxAttempts <= 0 {
		c.Reconnect.MaxAttempts = DefaultReconnectMaxAttempts
	}
	return c
}

// Validate reports configuration values that can never work.
func (c Config) Validate() error {
	if c.Connection.Port > 65535 {
		return fmt.Errorf("%w: port %d out of range", ErrConfigurationError, c.Connection.Port)
	}
	if c.Connection.UseCert && (c.Connection.ClientCertPath == "" || c.Connection.ClientKeyPath == "") {
		return fmt.Errorf("%w: client certificate and key paths are required when useCert is set", ErrConfigurationError)
	}
	if c.Reconnect.MaxInterval < c.Reconnect.InitialInterval {
		return fmt.Errorf("%w: reconnect max interval is below initial interval", ErrConfigurationError)
	}
	return nil
}

// URL renders the AMQP URI for the connection settings. The password is
// included; use RedactedURL for logs.
func (c Connection) URL() string {
	scheme := "amqp"
	if c.IsSSLEnabled {
		scheme = "amqps"
	}
	u := url.URL{
		Scheme: scheme,
		User:   url.UserPassword(c.User, c.Password),
		Host:   net.JoinHostPort(c.Host, strconv.FormatUint(uint64(c.Port), 10)),
		Path:   "/" + c.VHost,
	}
	// vhost "/" must travel percent-encoded as "%2F"
	u.RawPath = "/" + url.PathEscape(c.VHost)
	return u.String()
}

// RedactedURL is URL with the password masked.
func (c Connection) RedactedURL() string {
	u, err := url.Parse(c.URL())
	if err != nil {
		return ""
	}
	return u.Redacted()
}

// Logger is an interface that matches the mqlog/v1/logger.LoggerClient methods.
// It provides context-aware structured logging with optional error and field parameters.
//
//go:generate mockgen -source=configs.go -destination=mock_logger.go -package=rabbit
type Logger interface {
	// InfoWithContext logs an informational message with trace context.
	InfoWithContext(ctx context.Context, msg string, err error, fields ...map[string]interface{})

	// WarnWithContext logs a warning message with trace context.
	WarnWithContext(ctx context.Context, msg string, err error, fields ...map[string]interface{})

	// ErrorWithContext logs an error message with trace context.
	ErrorWithContext(ctx context.Context, msg string, err error, fields ...map[string]interface{})
}
