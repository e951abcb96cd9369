package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/renameio/v2"
	"gopkg.in/yaml.v3"

	"github.com/codegene/devproxy/pkg/shared/logging"
)

const (
	DefaultHost              = "localhost"
	DefaultPort              = 3000
	DefaultAdminPrefix       = "/__devproxy"
	DefaultReadHeaderTimeout = 10 * time.Second
	DefaultProxyTimeout      = 30 * time.Second
	DefaultJournalTTL        = time.Hour
	DefaultJournalLimit      = 1000
)

// Loader is an interface for loading configuration
type Loader interface {
	Load() (*Config, error)
}

// FileLoader loads configuration from a YAML or JSON file
type FileLoader struct {
	path   string
	logger logging.Logger
}

// NewFileLoader creates a new FileLoader. logger may be nil.
func NewFileLoader(path string, logger logging.Logger) *FileLoader {
	return &FileLoader{path: path, logger: logger}
}

// Path returns the file the loader reads
func (l *FileLoader) Path() string {
	return l.path
}

// Load reads and parses the configuration file
// Supports both YAML (.yaml, .yml) and JSON (.json) formats
// Format is automatically detected from file extension
// Environment variables in the format ${VAR} or ${VAR:-default} are expanded
func (l *FileLoader) Load() (*Config, error) {
	data, err := os.ReadFile(l.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrConfigFileNotFound, l.path)
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if l.logger != nil {
		for _, name := range MissingEnvVars(string(data)) {
			l.logger.Warn("Environment variable referenced by config is not set", "variable", name, "path", l.path)
		}
	}

	cfg, err := Parse(ExpandEnvBytes(data), filepath.Ext(l.path))
	if err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Parse decodes data in the format named by ext and applies defaults.
// It does not validate.
func Parse(data []byte, ext string) (*Config, error) {
	var cfg Config

	switch strings.ToLower(ext) {
	case ".json":
		if err := json.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse JSON config file: %w", err)
		}
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse YAML config file: %w", err)
		}
	default:
		return nil, fmt.Errorf("%w: %s (supported: .yaml, .yml, .json)", ErrUnsupportedFormat, ext)
	}

	applyDefaults(&cfg)
	return &cfg, nil
}

// DefaultConfig returns the configuration used when no file is given
func DefaultConfig() *Config {
	var cfg Config
	applyDefaults(&cfg)
	return &cfg
}

// applyDefaults sets default values for optional fields
func applyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = DefaultHost
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = DefaultPort
	}
	if cfg.Server.AdminPrefix == "" {
		cfg.Server.AdminPrefix = DefaultAdminPrefix
	}

	if cfg.Proxy.Preset == "" {
		cfg.Proxy.Preset = DefaultPreset
	}

	if cfg.Journal.Limit == 0 {
		cfg.Journal.Limit = DefaultJournalLimit
	}
	if cfg.Journal.KVS.Type == "" {
		cfg.Journal.KVS.Type = "memory"
	}
	if cfg.Journal.KVS.Namespace == "" {
		cfg.Journal.KVS.Namespace = "journal"
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
}

// Marshal encodes cfg in the format named by ext
func Marshal(cfg *Config, ext string) ([]byte, error) {
	switch strings.ToLower(ext) {
	case ".json":
		data, err := json.MarshalIndent(cfg, "", "  ")
		if err != nil {
			return nil, fmt.Errorf("failed to encode JSON config: %w", err)
		}
		return append(data, '\n'), nil
	case ".yaml", ".yml":
		var buf bytes.Buffer
		enc := yaml.NewEncoder(&buf)
		enc.SetIndent(2)
		if err := enc.Encode(cfg); err != nil {
			return nil, fmt.Errorf("failed to encode YAML config: %w", err)
		}
		if err := enc.Close(); err != nil {
			return nil, fmt.Errorf("failed to encode YAML config: %w", err)
		}
		return buf.Bytes(), nil
	default:
		return nil, fmt.Errorf("%w: %s (supported: .yaml, .yml, .json)", ErrUnsupportedFormat, ext)
	}
}

// Save writes cfg to path in the format given by its extension.
// The file is replaced atomically; readers never see a partial file.
func Save(path string, cfg *Config) error {
	data, err := Marshal(cfg, filepath.Ext(path))
	if err != nil {
		return err
	}

	pendingFile, err := renameio.NewPendingFile(path, renameio.WithPermissions(0o644))
	if err != nil {
		return fmt.Errorf("create pending config file: %w", err)
	}
	defer func() { _ = pendingFile.Cleanup() }()

	if _, err := pendingFile.Write(data); err != nil {
		return fmt.Errorf("write config data: %w", err)
	}

	if err := pendingFile.CloseAtomicallyReplace(); err != nil {
		return fmt.Errorf("atomically replace config file: %w", err)
	}
	return nil
}
