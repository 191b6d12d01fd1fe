package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"syscall"

	"github.com/MakeNowJust/heredoc/v2"
	"github.com/spf13/cobra"

	internalcmd "github.com/fayulogger/mqlog/internal/cmd"
)

var (
	// Version is injected at build time with -ldflags "-X main.Version=...".
	Version = "dev"
	// BuildDate is injected at build time with -ldflags "-X main.BuildDate=...".
	BuildDate = ""
)

const (
	appName  = "mqlog"
	appShort = "mqlog bridges log events between processes over RabbitMQ"
	appLong  = `mqlog publishes log events to a direct exchange, routed by level, and
	runs receiver nodes that consume one queue per level and hand every event
	to their own loggers.

	Configuration is read from the defaults, then the file given with --config,
	then MQLOG_* environment variables, then the command line flags.`

	versionCmdName = "version"
	versionShort   = "Display the " + appName + " version"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	exitCode := 0
	if err := rootCmd().ExecuteContext(ctx); err != nil {
		exitCode = 1
	}

	stop()
	os.Exit(exitCode)
}

// rootCmd constructs the root Cobra command.
func rootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   appName,
		Short: heredoc.Doc(appShort),
		Long:  heredoc.Doc(appLong),

		SilenceErrors: true,
		SilenceUsage:  true,

		ValidArgsFunction: cobra.NoFileCompletions,
	}

	cmd.SetFlagErrorFunc(func(c *cobra.Command, err error) error {
		c.PrintErrln(err)
		_ = c.Usage()
		return err
	})

	cmd.AddCommand(
		internalcmd.ReceiveCmd(),
		internalcmd.SendCmd(),
		versionCmd(),
	)

	return cmd
}

// versionCmd constructs the Cobra command that prints version information.
func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   versionCmdName,
		Short: heredoc.Doc(versionShort),

		Args: func(cmd *cobra.Command, args []string) error {
			err := cobra.NoArgs(cmd, args)
			if err != nil {
				cmd.PrintErrln(err)
				_ = cmd.Usage()
			}

			return err
		},
		ValidArgsFunction: cobra.NoFileCompletions,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintln(cmd.OutOrStdout(), versionString(Version, BuildDate, runtime.Version()))
		},
	}
}

// versionString formats the version metadata for display.
func versionString(version, buildDate, runtimeVersion string) string {
	outputString := version
	if buildDate != "" {
		outputString += " (" + buildDate + ")"
	}

	return outputString + ", Go Version: " + runtimeVersion
}
