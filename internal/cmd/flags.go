package cmd

import (
	"github.com/spf13/cobra"

	"github.com/fayulogger/mqlog/v1/rabbit"
)

const (
	configFlagName  = "config"
	configFlagShort = "c"
	configFlagUsage = "path to a YAML configuration file"

	hostFlagName  = "host"
	hostFlagUsage = "RabbitMQ hostname"

	portFlagName  = "port"
	portFlagUsage = "RabbitMQ port"

	vhostFlagName  = "vhost"
	vhostFlagUsage = "RabbitMQ virtual host"

	exchangeFlagName  = "exchange"
	exchangeFlagUsage = "name of the direct exchange log events are routed through"

	logLevelFlagName  = "log-level"
	logLevelFlagShort = "v"
	logLevelFlagUsage = "set the logging level (possible values: debug, info, warning, error)"

	reconnectFlagName  = "reconnect"
	reconnectFlagUsage = "reconnect automatically when the broker connection drops"
)

// connectionFlags collects the options shared by the send and receive commands.
// Flags only override the configuration when they are set explicitly.
type connectionFlags struct {
	configPath string
	host       string
	port       uint
	vhost      string
	exchange   string
	logLevel   string
	reconnect  bool
}

// addFlags registers the CLI flags on cmd.
func (f *connectionFlags) addFlags(cmd *cobra.Command) {
	flags := cmd.Flags()
	flags.StringVarP(&f.configPath, configFlagName, configFlagShort, "", configFlagUsage)
	flags.StringVar(&f.host, hostFlagName, rabbit.DefaultHost, hostFlagUsage)
	flags.UintVar(&f.port, portFlagName, rabbit.DefaultPort, portFlagUsage)
	flags.StringVar(&f.vhost, vhostFlagName, rabbit.DefaultVHost, vhostFlagUsage)
	flags.StringVar(&f.exchange, exchangeFlagName, rabbit.DefaultExchangeName, exchangeFlagUsage)
	flags.StringVarP(&f.logLevel, logLevelFlagName, logLevelFlagShort, "info", logLevelFlagUsage)
	flags.BoolVar(&f.reconnect, reconnectFlagName, false, reconnectFlagUsage)
}

// config loads the layered configuration and applies the flags set on cmd.
func (f *connectionFlags) config(cmd *cobra.Command) (Config, error) {
	cfg, err := loadConfig(f.configPath)
	if err != nil {
		return Config{}, err
	}

	flags := cmd.Flags()
	if flags.Changed(hostFlagName) {
		cfg.Rabbit.Connection.Host = f.host
	}
	if flags.Changed(portFlagName) {
		cfg.Rabbit.Connection.Port = f.port
	}
	if flags.Changed(vhostFlagName) {
		cfg.Rabbit.Connection.VHost = f.vhost
	}
	if flags.Changed(exchangeFlagName) {
		cfg.Rabbit.Channel.ExchangeName = f.exchange
	}
	if flags.Changed(logLevelFlagName) {
		cfg.Logger.Level = f.logLevel
	}
	if flags.Changed(reconnectFlagName) {
		cfg.Rabbit.Reconnect.Enabled = f.reconnect
	}

	if err := cfg.Rabbit.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
