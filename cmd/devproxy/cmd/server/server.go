package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/sync/errgroup"

	"github.com/codegene/devproxy/pkg/admin"
	"github.com/codegene/devproxy/pkg/config"
	"github.com/codegene/devproxy/pkg/journal"
	"github.com/codegene/devproxy/pkg/metrics"
	proxy "github.com/codegene/devproxy/pkg/proxy/core"
	"github.com/codegene/devproxy/pkg/shared/filewatcher"
	"github.com/codegene/devproxy/pkg/shared/kvs"
	"github.com/codegene/devproxy/pkg/shared/logging"
)

const shutdownTimeout = 10 * time.Second

// Config represents the configuration for running the server
type Config struct {
	App        *config.Config // Resolved configuration (file or defaults, flags applied)
	Source     ConfigSource   // Rebuilds App on reload; nil disables reload
	ConfigPath string         // Watched for changes when Watch is set
	Watch      bool
	Listener   net.Listener // Optional; when nil the server listens on App.Server.Addr()
	Logger     logging.Logger
	Version    string
}

// Run starts the server with the given configuration and blocks until ctx
// is canceled or SIGINT/SIGTERM arrives
func Run(ctx context.Context, cfg Config) error {
	logger := cfg.Logger
	if logger == nil {
		logger = logging.NewSimpleLogger("main", logging.LevelInfo, true)
	}
	app := cfg.App
	if app == nil {
		return errors.New("no configuration")
	}

	logger.Info("Starting devproxy", "version", cfg.Version)

	var observers []proxy.Observer

	var j *journal.Journal
	if app.Journal.Enabled {
		store, err := kvs.New(app.Journal.KVS)
		if err != nil {
			return formatConfigError("journal", err)
		}
		ttl, _ := app.Journal.GetTTL()
		j = journal.New(store, journal.Options{TTL: ttl, Limit: app.Journal.Limit}, logger.WithModule("journal"))
		defer func() { _ = j.Close() }()
		observers = append(observers, j)
		logger.Info("Request journal enabled", "store", app.Journal.KVS.Type, "ttl", ttl.String(), "limit", app.Journal.Limit)
	}

	var m *metrics.Metrics
	if app.Metrics.Enabled {
		m = metrics.New()
		observers = append(observers, m)
	}

	manager, err := NewProxyManager(app, ProxyManagerConfig{
		Source:    cfg.Source,
		StaticDir: app.Server.StaticDir,
		Observers: observers,
	}, logger.WithModule("proxy-manager"))
	if err != nil {
		return formatConfigError("proxy", err)
	}

	handler := NewHandler(app.Server.GetAdminPrefix(), manager, j, m, logger)

	readHeaderTimeout, err := app.Server.GetReadHeaderTimeout()
	if err != nil {
		return formatConfigError("server", err)
	}

	ln := cfg.Listener
	if ln == nil {
		ln, err = net.Listen("tcp", app.Server.Addr())
		if err != nil {
			return fmt.Errorf("failed to listen on %s: %w", app.Server.Addr(), err)
		}
	}

	srv := &http.Server{
		Handler:           handler,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	sigCtx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(sigCtx)

	if cfg.Watch && cfg.ConfigPath != "" && cfg.Source != nil {
		watcher, err := filewatcher.NewWatcher(cfg.ConfigPath, 100*time.Millisecond)
		if err != nil {
			_ = ln.Close()
			return fmt.Errorf("failed to create file watcher: %w", err)
		}
		defer func() { _ = watcher.Close() }()
		watcher.AddListener(manager)

		g.Go(func() error {
			if err := watcher.Start(gctx); err != nil && !errors.Is(err, context.Canceled) {
				return fmt.Errorf("file watcher error: %w", err)
			}
			return nil
		})
		logger.Info("File watcher initialized for hot reload", "config_file", cfg.ConfigPath)
	}

	g.Go(func() error {
		logger.Info("Starting server", "addr", ln.Addr().String(), "admin", app.Server.GetAdminPrefix())
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Shutdown signal received, stopping server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown: %w", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		logger.Error("Server stopped with error", "error", err)
		return err
	}

	logger.Info("Server stopped successfully")
	return nil
}

// NewHandler mounts the admin surface under adminPrefix and sends every
// other request to the proxy router. j and m may be nil.
func NewHandler(adminPrefix string, manager *ProxyManager, j *journal.Journal, m *metrics.Metrics, logger logging.Logger) http.Handler {
	src := admin.Sources{
		Preset: manager.Preset,
		Table:  manager.Table,
		Theme:  manager.Theme,
	}
	if j != nil {
		src.Journal = j
	}
	if m != nil {
		src.Metrics = m.Handler()
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Mount(adminPrefix, admin.NewHandler(src, logger.WithModule("admin")))
	r.Handle("/*", manager.Handler())

	return otelhttp.NewHandler(r, "devproxy")
}

// formatConfigError formats configuration errors with helpful messages
func formatConfigError(component string, err error) error {
	var validationErr *config.ValidationError
	if errors.As(err, &validationErr) && len(validationErr.Errors) > 1 {
		var sb strings.Builder
		fmt.Fprintf(&sb, "Configuration validation failed for %s with %d error(s):\n\n", component, len(validationErr.Errors))
		for i, e := range validationErr.Errors {
			fmt.Fprintf(&sb, "  %d. %v\n", i+1, e)
		}
		sb.WriteString("\nPlease fix the errors above in your configuration file.")
		return errors.New(sb.String())
	}

	if errors.Is(err, config.ErrConfigFileNotFound) {
		return fmt.Errorf("configuration file not found: %w - please create a configuration file or specify the correct path with --config flag", err)
	}

	return fmt.Errorf("failed to initialize %s: %w", component, err)
}
