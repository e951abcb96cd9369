package config

import (
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/codegene/devproxy/pkg/proxy/rules"
	"github.com/codegene/devproxy/pkg/shared/kvs"
	"github.com/codegene/devproxy/pkg/shared/logging"
	"github.com/codegene/devproxy/pkg/theme"
)

// Config represents the application configuration
type Config struct {
	Server  ServerConfig     `yaml:"server" json:"server"`
	Proxy   ProxyConfig      `yaml:"proxy" json:"proxy"`
	Theme   *theme.Overrides `yaml:"theme,omitempty" json:"theme,omitempty"` // nil means the preset's theme
	Journal JournalConfig    `yaml:"journal" json:"journal"`
	Metrics MetricsConfig    `yaml:"metrics" json:"metrics"`
	Logging LoggingConfig    `yaml:"logging" json:"logging"`
}

// ServerConfig contains listener settings
type ServerConfig struct {
	Host              string `yaml:"host" json:"host"`
	Port              int    `yaml:"port" json:"port"`
	StaticDir         string `yaml:"static_dir,omitempty" json:"static_dir,omitempty"`                   // Served for requests no rule matches (optional)
	AdminPrefix       string `yaml:"admin_prefix,omitempty" json:"admin_prefix,omitempty"`               // Path prefix for the admin endpoints (default: "/__devproxy")
	ReadHeaderTimeout string `yaml:"read_header_timeout,omitempty" json:"read_header_timeout,omitempty"` // e.g. "10s"
}

// Addr returns host:port for the listener
func (s ServerConfig) Addr() string {
	return net.JoinHostPort(s.Host, strconv.Itoa(s.Port))
}

// GetAdminPrefix returns the admin path prefix
// If not set, returns the default "/__devproxy"
func (s ServerConfig) GetAdminPrefix() string {
	if s.AdminPrefix == "" {
		return DefaultAdminPrefix
	}
	return "/" + strings.Trim(s.AdminPrefix, "/")
}

// GetReadHeaderTimeout returns the read header timeout as a time.Duration
func (s ServerConfig) GetReadHeaderTimeout() (time.Duration, error) {
	return parseDuration(s.ReadHeaderTimeout, DefaultReadHeaderTimeout)
}

// ProxyConfig contains the rule table settings
type ProxyConfig struct {
	Preset  string       `yaml:"preset,omitempty" json:"preset,omitempty"`   // "sso" (default), "sso-cas" or "none"
	Timeout string       `yaml:"timeout,omitempty" json:"timeout,omitempty"` // Backend response header timeout (default: "30s")
	Rules   []rules.Rule `yaml:"rules,omitempty" json:"rules,omitempty"`     // Appended to the preset
}

// GetTimeout returns the backend timeout as a time.Duration
func (p ProxyConfig) GetTimeout() (time.Duration, error) {
	return parseDuration(p.Timeout, DefaultProxyTimeout)
}

// JournalConfig contains request journal settings
type JournalConfig struct {
	Enabled bool       `yaml:"enabled" json:"enabled"`
	TTL     string     `yaml:"ttl,omitempty" json:"ttl,omitempty"`     // How long entries are kept (default: "1h")
	Limit   int        `yaml:"limit,omitempty" json:"limit,omitempty"` // Maximum number of entries kept (default: 1000)
	KVS     kvs.Config `yaml:"kvs,omitempty" json:"kvs,omitempty"`
}

// GetTTL returns the entry TTL as a time.Duration
func (j JournalConfig) GetTTL() (time.Duration, error) {
	return parseDuration(j.TTL, DefaultJournalTTL)
}

// MetricsConfig contains Prometheus settings
type MetricsConfig struct {
	Enabled bool `yaml:"enabled" json:"enabled"`
}

// LoggingConfig contains logging settings
type LoggingConfig struct {
	Level string                      `yaml:"level" json:"level"` // "debug", "info", "warn", "error"
	Color bool                        `yaml:"color" json:"color"`
	File  *logging.FileRotationConfig `yaml:"file,omitempty" json:"file,omitempty"`
}

func parseDuration(s string, def time.Duration) (time.Duration, error) {
	if s == "" {
		return def, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, err
	}
	if d < 0 {
		return 0, fmt.Errorf("duration %q must not be negative", s)
	}
	return d, nil
}

// Validate validates the configuration and returns all validation errors
func (c *Config) Validate() error {
	verr := NewValidationError()

	if c.Server.Port < 0 || c.Server.Port > 65535 {
		verr.Add(fmt.Errorf("%w: %d", ErrInvalidPort, c.Server.Port))
	}
	if _, err := c.Server.GetReadHeaderTimeout(); err != nil {
		verr.Add(fmt.Errorf("server.read_header_timeout: %w", err))
	}
	if strings.HasPrefix(c.Server.GetAdminPrefix(), "//") {
		verr.Add(fmt.Errorf("server.admin_prefix: invalid prefix %q", c.Server.AdminPrefix))
	}

	if _, err := c.Proxy.GetTimeout(); err != nil {
		verr.Add(fmt.Errorf("proxy.timeout: %w", err))
	}
	if _, ok := LookupPreset(c.Proxy.Preset); !ok {
		verr.Add(fmt.Errorf("%w: %q (available: %s)", ErrUnknownPreset, c.Proxy.Preset, strings.Join(PresetNames(), ", ")))
	}

	seen := make(map[string]int, len(c.Proxy.Rules))
	for i, rule := range c.Proxy.Rules {
		if err := rule.Validate(); err != nil {
			verr.Add(fmt.Errorf("proxy.rules[%d]: %w", i, err))
			continue
		}
		if first, dup := seen[rule.Key()]; dup {
			verr.Add(fmt.Errorf("proxy.rules[%d]: %w: %q (already declared by proxy.rules[%d])", i, ErrDuplicateRule, rule.Key(), first))
			continue
		}
		seen[rule.Key()] = i
	}

	if c.Theme != nil {
		if err := c.Theme.Validate(); err != nil {
			verr.Add(fmt.Errorf("theme: %w", err))
		}
	}

	if c.Journal.Enabled {
		if _, err := c.Journal.GetTTL(); err != nil {
			verr.Add(fmt.Errorf("journal.ttl: %w", err))
		}
		if c.Journal.Limit < 0 {
			verr.Add(fmt.Errorf("journal.limit: must not be negative"))
		}
		if err := c.Journal.KVS.Validate(); err != nil {
			verr.Add(fmt.Errorf("journal.kvs: %w", err))
		}
	}

	switch strings.ToLower(c.Logging.Level) {
	case "", "debug", "info", "warn", "warning", "error":
	default:
		verr.Add(fmt.Errorf("%w: %q", ErrInvalidLogLevel, c.Logging.Level))
	}

	return verr.ErrorOrNil()
}
