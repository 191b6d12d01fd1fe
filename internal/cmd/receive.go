package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/MakeNowJust/heredoc/v2"
	"github.com/spf13/cobra"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"

	"github.com/fayulogger/mqlog/v1/bridge"
	"github.com/fayulogger/mqlog/v1/logger"
	"github.com/fayulogger/mqlog/v1/metrics"
	"github.com/fayulogger/mqlog/v1/rabbit"
	"github.com/fayulogger/mqlog/v1/tracer"
)

const (
	receiveCmdUsage = "receive"
	receiveCmdShort = "run a receiver node printing every bridged log event"
	receiveCmdLong  = `Run a receiver node.
	The node declares one durable queue per level, bound to the log exchange,
	and writes every event it consumes through the structured logger, tagged
	with the module name given on the command line. The node runs until it
	receives SIGINT or SIGTERM.`

	receiveCmdExample = `# Receive with the default topology on a local broker
	mqlog receive

	# Receive from a custom exchange and expose Prometheus metrics
	mqlog receive --exchange audit --queue-prefix audit_ --metrics-address :9090`

	queuePrefixFlagName  = "queue-prefix"
	queuePrefixFlagUsage = "prefix of the per-level queue names"

	manualAckFlagName  = "manual-ack"
	manualAckFlagUsage = "acknowledge deliveries only after they have been handled"

	metricsAddressFlagName  = "metrics-address"
	metricsAddressFlagUsage = "listen address of the Prometheus /metrics endpoint; empty disables it"

	nameFlagName  = "name"
	nameFlagUsage = "module name bridged events are logged under"

	startTimeout = 30 * time.Second
	stopTimeout  = 15 * time.Second
)

type receiveFlags struct {
	connectionFlags
	queuePrefix    string
	manualAck      bool
	metricsAddress string
	name           string
}

func (f *receiveFlags) addFlags(cmd *cobra.Command) {
	f.connectionFlags.addFlags(cmd)
	flags := cmd.Flags()
	flags.StringVar(&f.queuePrefix, queuePrefixFlagName, rabbit.DefaultQueuePrefix, queuePrefixFlagUsage)
	flags.BoolVar(&f.manualAck, manualAckFlagName, false, manualAckFlagUsage)
	flags.StringVar(&f.metricsAddress, metricsAddressFlagName, "", metricsAddressFlagUsage)
	flags.StringVar(&f.name, nameFlagName, "remote", nameFlagUsage)
}

func (f *receiveFlags) toOptions(cmd *cobra.Command) (*receiveOptions, error) {
	cfg, err := f.config(cmd)
	if err != nil {
		return nil, err
	}

	flags := cmd.Flags()
	if flags.Changed(queuePrefixFlagName) {
		cfg.Rabbit.Channel.QueuePrefix = f.queuePrefix
	}
	if flags.Changed(manualAckFlagName) {
		cfg.Rabbit.Channel.ManualAck = f.manualAck
	}
	if flags.Changed(metricsAddressFlagName) {
		cfg.Metrics.Address = f.metricsAddress
	}

	return &receiveOptions{config: cfg, name: f.name}, nil
}

type receiveOptions struct {
	config Config
	name   string
}

// app wires the receiver node. The Receiver's logging framework gets one
// module, named o.name, bound to a transport writing through the zap logger.
func (o *receiveOptions) app() *fx.App {
	return fx.New(
		fx.Supply(o.config.Logger, o.config.Rabbit, o.config.Metrics, o.config.Tracer),
		fx.Provide(func() rabbit.Dialer { return dialer }),
		fx.WithLogger(func(log *logger.LoggerClient) fxevent.Logger {
			return &fxevent.ZapLogger{Logger: log.Zap}
		}),
		logger.FXModule,
		metrics.FXModule,
		tracer.FXModule,
		bridge.FXModule,
		fx.Invoke(o.bindModule),
		fx.StartTimeout(startTimeout),
		fx.StopTimeout(stopTimeout),
	)
}

func (o *receiveOptions) bindModule(r *bridge.Receiver, log *logger.LoggerClient) error {
	transport := logger.NewTransport("zap", log)
	if err := r.Logger().AddTransport(transport); err != nil {
		return err
	}
	if _, err := r.Logger().AddModule(o.name); err != nil {
		return err
	}
	return r.Logger().Bind(o.name, transport.Name())
}

// execute runs the node until ctx is done.
func (o *receiveOptions) execute(ctx context.Context) error {
	app := o.app()
	if err := app.Err(); err != nil {
		return err
	}

	startCtx, cancel := context.WithTimeout(ctx, app.StartTimeout())
	defer cancel()
	if err := app.Start(startCtx); err != nil {
		return fmt.Errorf("start receiver: %w", err)
	}

	<-ctx.Done()

	stopCtx, cancel := context.WithTimeout(context.Background(), app.StopTimeout())
	defer cancel()
	return app.Stop(stopCtx)
}

// ReceiveCmd returns the "receive" cli command running a receiver node.
func ReceiveCmd() *cobra.Command {
	flags := &receiveFlags{}
	cmd := &cobra.Command{
		Use:     receiveCmdUsage,
		Short:   heredoc.Doc(receiveCmdShort),
		Long:    heredoc.Doc(receiveCmdLong),
		Example: heredoc.Doc(receiveCmdExample),

		SilenceErrors: true,
		SilenceUsage:  true,

		Args:              cobra.NoArgs,
		ValidArgsFunction: cobra.NoFileCompletions,
		RunE: func(cmd *cobra.Command, _ []string) error {
			opts, err := flags.toOptions(cmd)
			if err != nil {
				return handleError(cmd, err)
			}

			if err := opts.execute(cmd.Context()); err != nil {
				return handleError(cmd, err)
			}

			return nil
		},
	}

	flags.addFlags(cmd)
	return cmd
}
