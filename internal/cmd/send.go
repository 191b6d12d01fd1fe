package cmd

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/MakeNowJust/heredoc/v2"
	"github.com/spf13/cobra"

	"github.com/fayulogger/mqlog/v1/bridge"
	"github.com/fayulogger/mqlog/v1/logger"
	"github.com/fayulogger/mqlog/v1/logging"
)

const (
	sendCmdUsage = "send"
	sendCmdShort = "publish log events read from stdin"
	sendCmdLong  = `Publish one log event per line read from stdin.
	Every line is wrapped in an envelope and routed by level to the receivers
	bound to the exchange. Empty lines are skipped.`

	sendCmdExample = `# Publish a warning from the "billing" module
	echo "invoice queue is backing up" | mqlog send --level warn --module billing

	# Publish JSON payloads
	mqlog send --json < events.ndjson`

	levelFlagName  = "level"
	levelFlagShort = "l"
	levelFlagUsage = "level every event is published at"

	moduleFlagName  = "module"
	moduleFlagShort = "m"
	moduleFlagUsage = "module name reported as the origin of the events"

	jsonFlagName  = "json"
	jsonFlagUsage = "decode every line as a JSON value instead of sending it as text"

	confirmsFlagName  = "confirms"
	confirmsFlagUsage = "wait for the broker to confirm every event"
)

type sendFlags struct {
	connectionFlags
	level    string
	module   string
	json     bool
	confirms bool
}

func (f *sendFlags) addFlags(cmd *cobra.Command) {
	f.connectionFlags.addFlags(cmd)
	flags := cmd.Flags()
	flags.StringVarP(&f.level, levelFlagName, levelFlagShort, logging.LevelInfo.String(), levelFlagUsage)
	flags.StringVarP(&f.module, moduleFlagName, moduleFlagShort, "cli", moduleFlagUsage)
	flags.BoolVar(&f.json, jsonFlagName, false, jsonFlagUsage)
	flags.BoolVar(&f.confirms, confirmsFlagName, false, confirmsFlagUsage)
	_ = cmd.RegisterFlagCompletionFunc(levelFlagName, levelCompletion)
}

func (f *sendFlags) toOptions(cmd *cobra.Command) (*sendOptions, error) {
	level, err := parseLevel(f.level)
	if err != nil {
		return nil, err
	}

	cfg, err := f.config(cmd)
	if err != nil {
		return nil, err
	}
	if cmd.Flags().Changed(confirmsFlagName) {
		cfg.Rabbit.Channel.PublisherConfirms = f.confirms
	}

	return &sendOptions{
		config: cfg,
		level:  level,
		module: f.module,
		json:   f.json,
		in:     cmd.InOrStdin(),
	}, nil
}

type sendOptions struct {
	config Config
	level  logging.Level
	module string
	json   bool
	in     io.Reader
}

func (o *sendOptions) execute(ctx context.Context) error {
	log := logger.NewLoggerClient(o.config.Logger)
	defer func() { _ = log.Zap.Sync() }()

	sender := bridge.NewSender("cli", o.config.Rabbit,
		bridge.WithLogger(log),
		bridge.WithDialer(dialer),
	)
	defer sender.Close()

	if _, err := sender.Connect(ctx); err != nil {
		return err
	}

	scanner := bufio.NewScanner(o.in)
	sent := 0
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		message, err := o.message(line)
		if err != nil {
			return fmt.Errorf("line %d: %w", sent+1, err)
		}

		err = sender.Send(ctx, o.level, logging.Event{Name: o.module, Level: o.level, Message: message})
		if err != nil {
			return err
		}
		sent++
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("read input: %w", err)
	}

	log.DebugWithContext(ctx, "Published log events", nil, map[string]interface{}{
		"count": sent,
		"level": o.level.String(),
	})
	return nil
}

func (o *sendOptions) message(line string) (interface{}, error) {
	if !o.json {
		return line, nil
	}
	var v interface{}
	if err := json.Unmarshal([]byte(line), &v); err != nil {
		return nil, err
	}
	return v, nil
}

// SendCmd returns the "send" cli command publishing stdin lines as log events.
func SendCmd() *cobra.Command {
	flags := &sendFlags{}
	cmd := &cobra.Command{
		Use:     sendCmdUsage,
		Short:   heredoc.Doc(sendCmdShort),
		Long:    heredoc.Doc(sendCmdLong),
		Example: heredoc.Doc(sendCmdExample),

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
