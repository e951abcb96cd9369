package cmd

import (
	"errors"

	"github.com/spf13/cobra"

	"github.com/codegene/devproxy/cmd/devproxy/cmd/server"
	"github.com/codegene/devproxy/pkg/config"
	"github.com/codegene/devproxy/pkg/shared/logging"
)

// flags returns the persistent flag values with their Changed state
func (o *rootOptions) flags(cmd *cobra.Command) server.Flags {
	return server.Flags{
		Host:      o.host,
		Port:      o.port,
		Preset:    o.preset,
		HostSet:   cmd.Flags().Changed("host"),
		PortSet:   cmd.Flags().Changed("port"),
		PresetSet: cmd.Flags().Changed("preset"),
	}
}

// load reads the config file and applies flag overrides.
// A missing file falls back to the defaults unless --config was given
// explicitly. found reports whether a file was read.
func (o *rootOptions) load(cmd *cobra.Command, logger logging.Logger) (cfg *config.Config, found bool, err error) {
	cfg, err = config.NewFileLoader(o.cfgFile, logger).Load()
	switch {
	case err == nil:
		found = true
	case errors.Is(err, config.ErrConfigFileNotFound) && !cmd.Flags().Changed("config"):
		cfg = config.DefaultConfig()
	default:
		return nil, false, err
	}

	server.ApplyFlags(cfg, o.flags(cmd), logger)
	if err := cfg.Validate(); err != nil {
		return nil, found, err
	}
	return cfg, found, nil
}

// bootstrapLogger is used until the configured logger exists
func bootstrapLogger() logging.Logger {
	return logging.NewSimpleLogger("config", logging.LevelWarn, true)
}

// newLogger builds the main logger from the logging section
func newLogger(cfg *config.Config) (logging.Logger, error) {
	var fileConfig *logging.FileRotationConfig
	if cfg.Logging.File != nil && cfg.Logging.File.Path != "" {
		fileConfig = cfg.Logging.File
	}
	return logging.NewLoggerWithFile("main", logging.ParseLevel(cfg.Logging.Level), cfg.Logging.Color, fileConfig)
}
