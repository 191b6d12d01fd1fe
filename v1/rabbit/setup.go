package rabbit

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/fayulogger/mqlog/v1/observability"
)

// SetupFunc declares the topology a Session needs. It runs after every
// successful connect, including automatic reconnects.
type SetupFunc func(ctx context.Context, s *Session) error

// Events are optional callbacks for the channel event surface.
// Callbacks run on the session's watcher goroutine and must not block.
type Events struct {
	// OnClose is called when the channel or connection closes unexpectedly.
	// err is nil when the broker closed it gracefully.
	OnClose func(err error)

	// OnError is called for channel errors and when reconnection gives up.
	OnError func(err error)

	// OnReturn is called for mandatory publishes the broker could not route.
	OnReturn func(ret amqp.Return)

	// OnDrain is called when the broker lifts flow control.
	OnDrain func()

	// OnFlow is called whenever the broker toggles flow control.
	OnFlow func(active bool)

	// OnReconnect is called after the session has been re-established.
	OnReconnect func()
}

// Session owns one AMQP connection and one channel on it.
// Publish and the topology calls are safe for concurrent use;
// Connect and Close must be serialized by the caller.
type Session struct {
	// cfg stores the configuration, defaults applied
	cfg Config

	// name labels the session in logs and observations, e.g. "sender"
	name string

	logger   Logger
	observer observability.Observer
	dial     Dialer
	events   Events
	setup    SetupFunc

	// mu protects conn, channel, pending and generation. It is never held
	// across network round trips, so publishers are not stalled by a dial.
	mu      sync.RWMutex
	conn    AMQPConnection
	channel AMQPChannel
	pending *pendingConfirms

	// generation is bumped on every teardown so stale watchers can tell
	generation uint64

	// publishMu serializes confirmed publishes so delivery tags follow publish order
	publishMu sync.Mutex

	// shutdownSignal is closed when the session is being shut down
	shutdownSignal    chan struct{}
	closeShutdownOnce sync.Once
	ctx               context.Context
	cancel            context.CancelFunc

	wg sync.WaitGroup
}

// NewSession creates a disconnected Session. Zero-valued configuration
// fields are replaced by their defaults.
//
// Example:
//
//	s := rabbit.NewSession(cfg).
//		WithLogger(log).
//		WithSetup(func(ctx context.Context, s *rabbit.Session) error {
//			return s.DeclareExchange(ctx, "logs")
//		})
//	if err := s.Connect(ctx); err != nil {
//		return err
//	}
//	defer s.Close()
func NewSession(cfg Config) *Session {
	ctx, cancel := context.WithCancel(context.Background())
	return &Session{
		cfg:            cfg.WithDefaults(),
		dial:           DialAMQP,
		shutdownSignal: make(chan struct{}),
		ctx:            ctx,
		cancel:         cancel,
	}
}

// WithName labels the session in logs and observations.
func (s *Session) WithName(name string) *Session {
	s.name = name
	return s
}

// Name returns the session label.
func (s *Session) Name() string {
	return s.name
}

// WithLogger attaches a logger to the session.
func (s *Session) WithLogger(logger Logger) *Session {
	s.logger = logger
	return s
}

// WithObserver attaches an observer to the session for metrics and tracing.
// The observer is notified of connect, publish, channel close and reconnect operations.
func (s *Session) WithObserver(observer observability.Observer) *Session {
	s.observer = observer
	return s
}

// WithDialer replaces the amqp091-go dialer.
func (s *Session) WithDialer(dial Dialer) *Session {
	if dial != nil {
		s.dial = dial
	}
	return s
}

// WithEvents installs channel event callbacks.
func (s *Session) WithEvents(events Events) *Session {
	s.events = events
	return s
}

// WithSetup installs the topology hook run after every connect.
func (s *Session) WithSetup(setup SetupFunc) *Session {
	s.setup = setup
	return s
}

// Config returns the effective configuration.
func (s *Session) Config() Config {
	return s.cfg
}

// IsConnected reports whether a channel is currently established.
func (s *Session) IsConnected() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.channel != nil
}

// Connect dials the broker, opens and configures the channel and runs the
// setup hook. Calling Connect on a connected session is a no-op.
//
// Any failure tears down whatever was already established before the error
// is returned: dial failures are reported as *ConnectionError, channel
// failures as *ChannelError and setup failures as returned by the hook.
// Connect never retries; automatic recovery only applies to sessions that
// were connected once.
func (s *Session) Connect(ctx context.Context) (err error) {
	start := time.Now()
	defer func() {
		s.observeOperation("connect", s.cfg.Connection.Host, s.cfg.Connection.VHost, time.Since(start), err, 0)
	}()

	if err = s.cfg.Validate(); err != nil {
		return err
	}

	if err = s.establish(ctx); err != nil {
		s.logError(ctx, "Failed to connect to RabbitMQ", err, map[string]interface{}{
			"url": s.cfg.Connection.RedactedURL(),
		})
		return err
	}

	s.logInfo(ctx, "Connected to RabbitMQ", map[string]interface{}{
		"url": s.cfg.Connection.RedactedURL(),
	})
	return nil
}

// establish performs one connect attempt. The dial and the channel setup
// run without s.mu; the fresh handles are installed only if the session is
// still open and nobody else connected it in the meantime.
func (s *Session) establish(ctx context.Context) error {
	if s.isShuttingDown() {
		return ErrShutdown
	}
	if s.IsConnected() {
		return nil
	}

	tlsConfig, err := s.tlsConfig()
	if err != nil {
		return newConnectionError("tls", s.cfg.Connection.RedactedURL(), err)
	}

	conn, err := s.dial(ctx, s.cfg.Connection.URL(), amqp.Config{
		Heartbeat:       time.Duration(s.cfg.Connection.Heartbeat) * time.Second,
		FrameSize:       s.cfg.Connection.FrameMax,
		Locale:          s.cfg.Connection.Locale,
		Vhost:           s.cfg.Connection.VHost,
		TLSClientConfig: tlsConfig,
	})
	if err != nil {
		return newConnectionError("dial", s.cfg.Connection.RedactedURL(), err)
	}

	ch, pending, err := s.openChannel(conn)
	if err != nil {
		_ = conn.Close()
		return err
	}

	s.mu.Lock()
	if s.isShuttingDown() || s.channel != nil {
		shutdown := s.isShuttingDown()
		s.mu.Unlock()
		_ = ch.Close()
		_ = conn.Close()
		if shutdown {
			return ErrShutdown
		}
		return nil
	}
	s.conn, s.channel, s.pending = conn, ch, pending
	gen := s.generation
	s.mu.Unlock()

	if s.setup != nil {
		if err = s.setup(ctx, s); err != nil {
			s.mu.Lock()
			if s.generation == gen {
				_ = s.teardownLocked()
			}
			s.mu.Unlock()
			return err
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.generation != gen || s.channel == nil {
		// closed while the topology was being declared
		return ErrShutdown
	}
	s.watch(gen, s.conn, s.channel)
	return nil
}

// openChannel creates and configures a channel on conn. With publisher
// confirms enabled it also starts draining the channel's confirmations.
func (s *Session) openChannel(conn AMQPConnection) (AMQPChannel, *pendingConfirms, error) {
	ch, err := conn.Channel()
	if err != nil {
		return nil, nil, newChannelError("open", err)
	}

	if err = ch.Qos(s.cfg.Channel.PrefetchCount, 0, false); err != nil {
		_ = ch.Close()
		return nil, nil, &ChannelError{Op: "qos", Err: err, Kind: ErrQoSFailed}
	}

	if !s.cfg.Channel.PublisherConfirms {
		return ch, nil, nil
	}
	if err = ch.Confirm(false); err != nil {
		_ = ch.Close()
		return nil, nil, newChannelError("confirm", err)
	}

	pending := newPendingConfirms()
	confirms := ch.NotifyPublish(make(chan amqp.Confirmation, 1))
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		pending.run(confirms)
	}()
	return ch, pending, nil
}

// watch forwards channel events until the handles die or the session shuts down.
// Callers hold s.mu.
func (s *Session) watch(gen uint64, conn AMQPConnection, ch AMQPChannel) {
	connClosed := conn.NotifyClose(make(chan *amqp.Error, 1))
	chClosed := ch.NotifyClose(make(chan *amqp.Error, 1))
	returns := ch.NotifyReturn(make(chan amqp.Return, 1))
	flow := ch.NotifyFlow(make(chan bool, 1))

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		for {
			select {
			case <-s.shutdownSignal:
				return

			case ret, ok := <-returns:
				if !ok {
					returns = nil
					continue
				}
				s.handleReturn(ret)

			case active, ok := <-flow:
				if !ok {
					flow = nil
					continue
				}
				s.handleFlow(active)

			case amqpErr, ok := <-chClosed:
				if ok || !s.isShuttingDown() {
					s.handleLoss(gen, "channel", amqpErr)
				}
				return

			case amqpErr, ok := <-connClosed:
				if ok || !s.isShuttingDown() {
					s.handleLoss(gen, "connection", amqpErr)
				}
				return
			}
		}
	}()
}

func (s *Session) handleReturn(ret amqp.Return) {
	s.observeOperation("return", ret.Exchange, ret.RoutingKey, 0, ErrPublishFailed, int64(len(ret.Body)))
	s.logWarn(s.ctx, "Message returned by RabbitMQ", nil, map[string]interface{}{
		"exchange":    ret.Exchange,
		"routing_key": ret.RoutingKey,
		"reply_code":  ret.ReplyCode,
		"reply_text":  ret.ReplyText,
	})
	if s.events.OnReturn != nil {
		s.events.OnReturn(ret)
	}
}

func (s *Session) handleFlow(active bool) {
	s.observeOperation("flow", s.cfg.Connection.Host, "", 0, nil, 0)
	s.logWarn(s.ctx, "RabbitMQ flow control changed", nil, map[string]interface{}{
		"active": active,
	})
	if s.events.OnFlow != nil {
		s.events.OnFlow(active)
	}
	if active && s.events.OnDrain != nil {
		s.events.OnDrain()
	}
}

// handleLoss releases dead handles and starts recovery when configured.
func (s *Session) handleLoss(gen uint64, what string, amqpErr *amqp.Error) {
	s.mu.Lock()
	if s.generation != gen || s.isShuttingDown() {
		// torn down on purpose
		s.mu.Unlock()
		return
	}
	_ = s.teardownLocked()
	s.mu.Unlock()

	var cause error
	if amqpErr != nil {
		cause = amqpErr
	}

	s.observeOperation("channel_close", what, "", 0, cause, 0)
	s.logWarn(s.ctx, "RabbitMQ "+what+" closed", cause, map[string]interface{}{
		"reconnect": s.cfg.Reconnect.Enabled,
	})

	if s.events.OnClose != nil {
		s.events.OnClose(cause)
	}
	if cause != nil && s.events.OnError != nil {
		s.events.OnError(cause)
	}

	if s.cfg.Reconnect.Enabled {
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.reconnect()
		}()
	}
}

// reconnect re-establishes the session with exponential backoff, capped at
// Reconnect.MaxAttempts attempts. Permanent errors stop it early.
func (s *Session) reconnect() {
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = s.cfg.Reconnect.InitialInterval
	policy.MaxInterval = s.cfg.Reconnect.MaxInterval
	policy.MaxElapsedTime = 0

	b := backoff.WithContext(backoff.WithMaxRetries(policy, uint64(s.cfg.Reconnect.MaxAttempts-1)), s.ctx)

	attempt := 0
	start := time.Now()
	err := backoff.RetryNotify(func() error {
		attempt++
		err := s.establish(s.ctx)
		if err != nil && IsPermanentError(err) {
			return backoff.Permanent(err)
		}
		return err
	}, b, func(err error, wait time.Duration) {
		s.logWarn(s.ctx, "RabbitMQ reconnection failed, retrying", err, map[string]interface{}{
			"attempt": attempt,
			"wait":    wait.String(),
		})
	})

	if s.isShuttingDown() {
		return
	}

	s.observeOperation("reconnect", s.cfg.Connection.Host, "", time.Since(start), err, 0)

	if err != nil {
		if !IsPermanentError(err) {
			err = fmt.Errorf("%w after %d attempts: %w", ErrMaxRetriesExceeded, attempt, err)
		}
		s.logError(s.ctx, "Giving up on RabbitMQ reconnection", err, nil)
		if s.events.OnError != nil {
			s.events.OnError(err)
		}
		return
	}

	s.logInfo(s.ctx, "Successfully reconnected to RabbitMQ", map[string]interface{}{
		"attempts": attempt,
	})
	if s.events.OnReconnect != nil {
		s.events.OnReconnect()
	}
}

// Close tears down the channel, then the connection, and stops the
// background goroutines. It is safe to call before Connect and more than once.
// Errors from handles that were already dead are swallowed.
func (s *Session) Close() error {
	s.closeShutdownOnce.Do(func() {
		close(s.shutdownSignal)
		s.cancel()
	})

	s.mu.Lock()
	wasConnected := s.conn != nil
	err := s.teardownLocked()
	s.mu.Unlock()

	s.wg.Wait()

	if wasConnected {
		s.observeOperation("disconnect", s.cfg.Connection.Host, "", 0, err, 0)
		if err != nil {
			s.logWarn(context.Background(), "Failed to close RabbitMQ session cleanly", err, nil)
		} else {
			s.logInfo(context.Background(), "RabbitMQ session closed", nil)
		}
	}
	return err
}

// teardownLocked releases the channel and then the connection. Both
// references are nil on return. Callers hold s.mu.
func (s *Session) teardownLocked() error {
	var errs []error

	defer func() {
		s.channel = nil
		s.conn = nil
		s.pending = nil
		s.generation++
	}()

	if s.channel != nil {
		if err := s.channel.Close(); err != nil && !errors.Is(err, amqp.ErrClosed) {
			errs = append(errs, fmt.Errorf("close channel: %w", err))
		}
	}
	if s.conn != nil && !s.conn.IsClosed() {
		if err := s.conn.Close(); err != nil && !errors.Is(err, amqp.ErrClosed) {
			errs = append(errs, fmt.Errorf("close connection: %w", err))
		}
	}
	return errors.Join(errs...)
}

func (s *Session) isShuttingDown() bool {
	select {
	case <-s.shutdownSignal:
		return true
	default:
		return false
	}
}

// tlsConfig builds the client TLS configuration. Plain connections return nil.
func (s *Session) tlsConfig() (*tls.Config, error) {
	c := s.cfg.Connection
	if !c.IsSSLEnabled {
		return nil, nil
	}

	tlsConfig := &tls.Config{
		ServerName: c.ServerName,
		MinVersion: tls.VersionTLS12,
	}
	if tlsConfig.ServerName == "" {
		tlsConfig.ServerName = c.Host
	}

	if c.CACertPath != "" {
		caCert, err := os.ReadFile(c.CACertPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read CA cert: %w", err)
		}
		caCertPool := x509.NewCertPool()
		if !caCertPool.AppendCertsFromPEM(caCert) {
			return nil, fmt.Errorf("%w: no certificates found in %s", ErrTLSError, c.CACertPath)
		}
		tlsConfig.RootCAs = caCertPool
	}

	if c.UseCert {
		cert, err := tls.LoadX509KeyPair(c.ClientCertPath, c.ClientKeyPath)
		if err != nil {
			return nil, fmt.Errorf("failed to load client cert: %w", err)
		}
		tlsConfig.Certificates = []tls.Certificate{cert}
	}

	return tlsConfig, nil
}
