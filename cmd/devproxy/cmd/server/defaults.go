package server

import (
	"github.com/codegene/devproxy/pkg/config"
	"github.com/codegene/devproxy/pkg/shared/logging"
)

// Flags carries command-line values and whether each was set explicitly
type Flags struct {
	Host      string
	Port      int
	Preset    string
	HostSet   bool
	PortSet   bool
	PresetSet bool
}

// ApplyFlags overrides file values with explicitly set flags
// Priority: Command-line flags > Config file > Default values
func ApplyFlags(cfg *config.Config, f Flags, logger logging.Logger) {
	if f.HostSet {
		cfg.Server.Host = f.Host
		logger.Debug("Using host from command-line flag", "host", f.Host)
	}
	if f.PortSet {
		cfg.Server.Port = f.Port
		logger.Debug("Using port from command-line flag", "port", f.Port)
	}
	if f.PresetSet {
		cfg.Proxy.Preset = f.Preset
		logger.Debug("Using preset from command-line flag", "preset", f.Preset)
	}
}

// LogDefaultConfigNotice tells the user which built-in rules are in effect
// when no configuration file was found
func LogDefaultConfigNotice(logger logging.Logger, cfg *config.Config) {
	preset, _ := config.LookupPreset(cfg.Proxy.Preset)

	logger.Warn("No configuration file found, using built-in preset", "preset", preset.Name)
	for _, r := range preset.Rules {
		logger.Warn("  proxy rule", "path", r.Key(), "target", r.Target)
	}
	if preset.Name == config.PresetSSO {
		logger.Warn("CAS endpoints are not proxied; use --preset sso-cas to add them")
	}
}
