package server

import (
	"fmt"
	"net/http"
	"sync/atomic"

	"github.com/codegene/devproxy/pkg/config"
	proxy "github.com/codegene/devproxy/pkg/proxy/core"
	"github.com/codegene/devproxy/pkg/proxy/rules"
	"github.com/codegene/devproxy/pkg/shared/filewatcher"
	"github.com/codegene/devproxy/pkg/shared/logging"
	"github.com/codegene/devproxy/pkg/theme"
)

// ConfigSource produces the current configuration; called again on every reload
type ConfigSource func() (*config.Config, error)

// ProxyManagerConfig configures a ProxyManager
type ProxyManagerConfig struct {
	Source    ConfigSource
	StaticDir string // served for unmatched requests, with theme overrides
	Observers []proxy.Observer
}

// ProxyManager owns the router and the theme, and rebuilds both on reload.
// Journal, metrics and listener settings take effect on restart only.
type ProxyManager struct {
	router *proxy.Router
	theme  atomic.Pointer[theme.Overrides]
	preset atomic.Value // string
	source ConfigSource
	logger logging.Logger
}

// NewProxyManager builds the initial router from cfg
func NewProxyManager(cfg *config.Config, mcfg ProxyManagerConfig, logger logging.Logger) (*ProxyManager, error) {
	if logger == nil {
		logger = logging.NewSimpleLogger("proxy-manager", logging.LevelInfo, true)
	}

	m := &ProxyManager{source: mcfg.Source, logger: logger}

	table, err := cfg.EffectiveTable(logger)
	if err != nil {
		return nil, fmt.Errorf("failed to build rule table: %w", err)
	}
	timeout, err := cfg.Proxy.GetTimeout()
	if err != nil {
		return nil, fmt.Errorf("invalid proxy.timeout: %w", err)
	}

	var fallback http.Handler
	if mcfg.StaticDir != "" {
		fallback = theme.NewAssetHandler(http.Dir(mcfg.StaticDir), m.Theme, logger.WithModule("theme"))
	}

	m.router, err = proxy.NewRouter(table, proxy.RouterConfig{
		Timeout:   timeout,
		Fallback:  fallback,
		Observers: mcfg.Observers,
	}, logger.WithModule("proxy"))
	if err != nil {
		return nil, fmt.Errorf("failed to create router: %w", err)
	}

	m.store(cfg)
	m.logTable(table)
	return m, nil
}

func (m *ProxyManager) store(cfg *config.Config) {
	t := cfg.EffectiveTheme()
	m.theme.Store(&t)
	m.preset.Store(cfg.Proxy.Preset)
}

func (m *ProxyManager) logTable(table *rules.Table) {
	m.logger.Info("Proxy rules loaded", "preset", m.Preset(), "rules", table.Len())
	for _, r := range table.Rules() {
		m.logger.Debug("Proxy rule", "path", r.Key(), "target", r.Target, "change_origin", r.ChangeOrigin)
	}
}

// OnFileChange implements filewatcher.ChangeListener interface
// This method is called when the configuration file changes
func (m *ProxyManager) OnFileChange(event filewatcher.ChangeEvent) {
	if event.Error != nil {
		m.logger.Error("File change event error", "error", event.Error)
		return
	}

	m.logger.Info("Config content change detected, starting reload", "path", event.Path)
	if err := m.Reload(); err != nil {
		m.logger.Error("Failed to reload configuration", "error", err, "path", event.Path)
		m.logger.Error("Keeping current proxy rules and theme")
	}
}

// Reload rebuilds the rule table and theme from the source and swaps them in.
// On error nothing changes.
func (m *ProxyManager) Reload() error {
	if m.source == nil {
		return fmt.Errorf("no configuration source to reload from")
	}

	cfg, err := m.source()
	if err != nil {
		return err
	}

	table, err := cfg.EffectiveTable(m.logger)
	if err != nil {
		return fmt.Errorf("failed to build rule table: %w", err)
	}
	if err := m.router.Swap(table); err != nil {
		return err
	}

	m.store(cfg)
	m.logTable(table)
	m.logger.Info("Configuration reloaded successfully")
	return nil
}

// Handler returns the HTTP handler that forwards matched requests
func (m *ProxyManager) Handler() http.Handler {
	return m.router
}

// Table returns the active rule table
func (m *ProxyManager) Table() *rules.Table {
	return m.router.Table()
}

// Theme returns the active theme overrides
func (m *ProxyManager) Theme() theme.Overrides {
	return *m.theme.Load()
}

// Preset returns the active preset name
func (m *ProxyManager) Preset() string {
	p, _ := m.preset.Load().(string)
	return p
}
