package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"

	"github.com/fayulogger/mqlog/v1/logger"
	"github.com/fayulogger/mqlog/v1/metrics"
	"github.com/fayulogger/mqlog/v1/rabbit"
	"github.com/fayulogger/mqlog/v1/tracer"
)

var errConfigNotValid = errors.New("configuration not valid")

// Config is the full configuration of a mqlog node.
type Config struct {
	Rabbit  rabbit.Config  `yaml:"rabbit"`
	Logger  logger.Config  `yaml:"logger"`
	Metrics metrics.Config `yaml:"metrics"`
	Tracer  tracer.Config  `yaml:"tracer"`
}

func defaultConfig() Config {
	return Config{
		Rabbit: rabbit.Config{}.WithDefaults(),
		Logger: logger.Config{
			Level:       logger.Info,
			ServiceName: "mqlog",
			Encoding:    "json",
		},
		Metrics: metrics.Config{ServiceName: "mqlog"},
		Tracer: tracer.Config{
			ServiceName: "mqlog",
			AppEnv:      "local",
		},
	}
}

// loadConfig layers the defaults, the YAML file at path (when set) and the
// environment, in that order. Flags are applied by the caller.
func loadConfig(path string) (Config, error) {
	cfg := defaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("config file %q: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("%w: %s: %w", errConfigNotValid, path, err)
		}
	}

	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("%w: %w", errConfigNotValid, err)
	}

	cfg.Rabbit = cfg.Rabbit.WithDefaults()
	if err := cfg.Rabbit.Validate(); err != nil {
		return Config{}, fmt.Errorf("%w: %w", errConfigNotValid, err)
	}
	return cfg, nil
}
