package cmd

import (
	"errors"

	"github.com/spf13/cobra"

	"github.com/fayulogger/mqlog/v1/logging"
	"github.com/fayulogger/mqlog/v1/rabbit"
)

var (
	errInvalidLevel = errors.New("invalid level provided")

	// dialer opens broker connections. Tests swap it for an in-memory broker.
	dialer rabbit.Dialer = rabbit.DialAMQP
)

// handleError prints err on the command error stream. Configuration and
// argument errors also print the usage.
func handleError(cmd *cobra.Command, err error) error {
	switch {
	case errors.Is(err, errInvalidLevel), errors.Is(err, errConfigNotValid):
		cmd.PrintErrln(err)
		_ = cmd.Usage() // do not check error as we cannot do much about it
		return err
	default:
		cmd.PrintErrln(err)
		return err
	}
}

func parseLevel(s string) (logging.Level, error) {
	level, err := logging.ParseLevel(s)
	if err != nil {
		return "", errors.Join(errInvalidLevel, err)
	}
	return level, nil
}

// levelCompletion completes level names for flags.
func levelCompletion(_ *cobra.Command, _ []string, _ string) ([]cobra.Completion, cobra.ShellCompDirective) {
	var comps []cobra.Completion
	for _, level := range logging.Levels() {
		comps = append(comps, level.String())
	}
	return comps, cobra.ShellCompDirectiveNoFileComp
}
