//go:build integration

package bridge_test

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/go-connections/nat"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/fayulogger/mqlog/v1/bridge"
	"github.com/fayulogger/mqlog/v1/logger"
	"github.com/fayulogger/mqlog/v1/logging"
	"github.com/fayulogger/mqlog/v1/rabbit"
)

// TestBridgeAgainstRabbitMQ runs a sender and an fx-managed receiver against
// a real broker and checks that every level arrives on its own queue.
func TestBridgeAgainstRabbitMQ(t *testing.T) {
	ctx := context.Background()

	host, port, containerInstance := initializeRabbitMQ(ctx)
	defer func() {
		if err := containerInstance.Terminate(ctx); err != nil {
			t.Logf("Failed to terminate container: %v", err)
		}
	}()

	require.Eventually(t, func() bool {
		conn, err := net.DialTimeout("tcp", net.JoinHostPort(host, strconv.Itoa(port)), 2*time.Second)
		if err != nil {
			return false
		}
		_ = conn.Close()
		return true
	}, 60*time.Second, 500*time.Millisecond, "RabbitMQ port not ready")

	cfg := rabbit.Config{
		Connection: rabbit.Connection{Host: host, Port: uint(port)},
		Channel: rabbit.Channel{
			ExchangeName:      "it-logs",
			QueuePrefix:       "it_logs_",
			PublisherConfirms: true,
			ManualAck:         true,
		},
	}

	core, logs := observer.New(zap.DebugLevel)
	zapLog := logger.NewFromZap(zap.New(core), false)

	var receiver *bridge.Receiver
	app := fx.New(
		bridge.FXModule,
		fx.Provide(
			func() rabbit.Config { return cfg },
			func() *logger.LoggerClient { return zapLog },
		),
		fx.Invoke(func(r *bridge.Receiver, l *logger.LoggerClient) error {
			if err := r.Logger().AddTransport(logger.NewTransport("zap", l)); err != nil {
				return err
			}
			if _, err := r.Logger().AddModule("remote"); err != nil {
				return err
			}
			return r.Logger().Bind("remote", "zap")
		}),
		fx.Populate(&receiver),
	)

	startCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	require.NoError(t, app.Start(startCtx))
	defer func() {
		stopCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()
		require.NoError(t, app.Stop(stopCtx))
	}()
	require.True(t, receiver.IsConnected())

	sender := bridge.NewSender("amqp", cfg, bridge.WithLogger(zapLog))
	defer sender.Close()
	ok, err := sender.Connect(startCtx)
	require.NoError(t, err)
	require.True(t, ok)

	for _, level := range logging.Levels() {
		err := sender.Send(startCtx, level, logging.Event{Name: "app", Level: level, Message: "it " + level.String()})
		require.NoError(t, err, "send %s", level)
	}

	require.Eventually(t, func() bool {
		return logs.FilterField(zap.String("module", "remote")).Len() == len(logging.Levels())
	}, 20*time.Second, 100*time.Millisecond)

	for _, level := range logging.Levels() {
		entries := logs.FilterMessage("it " + level.String()).AllUntimed()
		require.Len(t, entries, 1, "level %s", level)
		assert.Equal(t, level.String(), entries[0].ContextMap()["severity"])
	}
}

// TestTopologyRedeclareAgainstRabbitMQ checks that a second receiver on the
// same topology connects, and that binding to a missing exchange is refused.
func TestTopologyRedeclareAgainstRabbitMQ(t *testing.T) {
	ctx := context.Background()

	host, port, containerInstance := initializeRabbitMQ(ctx)
	defer func() {
		if err := containerInstance.Terminate(ctx); err != nil {
			t.Logf("Failed to terminate container: %v", err)
		}
	}()

	cfg := rabbit.Config{Connection: rabbit.Connection{Host: host, Port: uint(port)}}

	connectCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	first := bridge.NewReceiver(cfg)
	defer first.Close()
	require.Eventually(t, func() bool { return first.Connect(connectCtx) == nil }, 60*time.Second, time.Second)

	second := bridge.NewReceiver(cfg)
	defer second.Close()
	require.NoError(t, second.Connect(connectCtx))

	conflict := rabbit.NewSession(cfg).WithSetup(func(ctx context.Context, s *rabbit.Session) error {
		return s.BindQueue(ctx, "logs_info", "info", "missing-exchange")
	})
	defer conflict.Close()
	err := conflict.Connect(connectCtx)
	require.Error(t, err)
	assert.ErrorIs(t, err, rabbit.ErrBindFailed)
	assert.False(t, conflict.IsConnected())
}

func initializeRabbitMQ(ctx context.Context) (string, int, testcontainers.Container) {
	hostPort, err := getFreePort()
	if err != nil {
		log.Fatalf("Failed to find free port: %v", err)
	}

	containerInstance, err := createRabbitMQContainer(ctx, hostPort)
	if err != nil {
		log.Fatalf("Failed to create container: %v", err)
	}

	port, err := containerInstance.MappedPort(ctx, "5672")
	if err != nil {
		log.Fatalf("Failed to get mapped port: %v", err)
	}
	host, err := containerInstance.Host(ctx)
	if err != nil {
		log.Fatalf("Failed to get host: %v", err)
	}
	return host, port.Int(), containerInstance
}

// createRabbitMQContainer starts rabbitmq:4-management with the AMQP port
// bound to hostPort and waits until the broker reports healthy.
func createRabbitMQContainer(ctx context.Context, hostPort string) (testcontainers.Container, error) {
	var containerInstance testcontainers.Container
	var lastErr error

	for attempt := 0; attempt < 3; attempt++ {
		portBindings := nat.PortMap{
			"5672/tcp": []nat.PortBinding{{HostPort: hostPort}},
		}

		req := testcontainers.ContainerRequest{
			Image:        "rabbitmq:4-management",
			ExposedPorts: []string{"5672/tcp"},
			HostConfigModifier: func(cfg *container.HostConfig) {
				cfg.PortBindings = portBindings
			},
			WaitingFor: wait.ForAll(
				wait.ForListeningPort("5672/tcp").WithStartupTimeout(20*time.Second),
				wait.ForExec([]string{"rabbitmq-diagnostics", "status"}).WithExitCodeMatcher(func(exitCode int) bool {
					return exitCode == 0
				}).WithStartupTimeout(10*time.Second),
			),
		}

		containerInstance, lastErr = testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
			ContainerRequest: req,
			Started:          true,
		})
		if lastErr == nil {
			return containerInstance, nil
		}

		// Retry only for Docker socket-related issues
		if strings.Contains(lastErr.Error(), "docker.sock") || errors.Is(lastErr, io.EOF) {
			log.Printf("Attempt %d: Docker socket error, retrying in %d seconds: %v", attempt+1, attempt+1, lastErr)
			time.Sleep(time.Duration(attempt+1) * time.Second)
			continue
		}

		break
	}

	return nil, fmt.Errorf("failed to start RabbitMQ container after %d attempts: %w", 3, lastErr)
}

func getFreePort() (string, error) {
	l, err := net.Listen("tcp", ":0")
	if err != nil {
		return "", err
	}
	defer l.Close()
	return strconv.Itoa(l.Addr().(*net.TCPAddr).Port), nil
}
