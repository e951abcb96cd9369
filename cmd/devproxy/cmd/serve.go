package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/codegene/devproxy/cmd/devproxy/cmd/server"
	"github.com/codegene/devproxy/pkg/config"
)

type serveOptions struct {
	watch bool
}

func newServeCmd(opts *rootOptions) (*cobra.Command, *serveOptions) {
	serveOpts := &serveOptions{}
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the development proxy server",
		Long: `Start the devproxy server with the specified configuration.

The server will:
- Load the configuration file, or the default preset when none exists
- Forward requests matching a proxy rule to its target
- Serve the static directory (if configured) for everything else
- Expose routes, recent requests and metrics under the admin prefix
- Reload rules and theme when the configuration file changes
- Handle graceful shutdown on SIGTERM/SIGINT`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, opts, serveOpts)
		},
	}
	cmd.Flags().BoolVarP(&serveOpts.watch, "watch", "w", true, "Reload rules and theme when the config file changes")
	return cmd, serveOpts
}

func runServe(cmd *cobra.Command, opts *rootOptions, serveOpts *serveOptions) error {
	cfg, found, err := opts.load(cmd, bootstrapLogger())
	if err != nil {
		return err
	}

	// Setup logger with file output if configured
	logger, err := newLogger(cfg)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}

	if !found {
		server.LogDefaultConfigNotice(logger, cfg)
	}

	var source server.ConfigSource
	if found {
		loader := config.NewFileLoader(opts.cfgFile, logger.WithModule("config"))
		flags := opts.flags(cmd)
		source = func() (*config.Config, error) {
			next, err := loader.Load()
			if err != nil {
				return nil, err
			}
			server.ApplyFlags(next, flags, logger)
			if err := next.Validate(); err != nil {
				return nil, err
			}
			return next, nil
		}
	}

	return server.Run(cmd.Context(), server.Config{
		App:        cfg,
		Source:     source,
		ConfigPath: opts.cfgFile,
		Watch:      serveOpts.watch && found,
		Logger:     logger,
		Version:    version,
	})
}
