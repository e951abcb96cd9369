package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/codegene/devproxy/pkg/config"
)

var version = "dev" // Set by build

// rootOptions holds the persistent flags shared by every command
type rootOptions struct {
	cfgFile string
	host    string
	port    int
	preset  string
}

// newRootCmd builds the command tree. A fresh tree is built per invocation so
// flag state never leaks between runs.
func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	serveCmd, serveOpts := newServeCmd(opts)

	rootCmd := &cobra.Command{
		Use:   "devproxy",
		Short: "devproxy - Development server proxy for SSO-backed front ends",
		Long: `devproxy sits in front of a front-end development server and forwards
selected request paths to backend services.

Built-in presets cover the SSO API (/api, /swagger, /files and the OpenID
discovery document) and, with the sso-cas preset, the CAS validation
endpoints. Style sheets served from the static directory are compiled with
the configured theme variables.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		// Default to serve command when no subcommand is specified
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, opts, serveOpts)
		},
	}

	// Persistent flags available to all commands
	pf := rootCmd.PersistentFlags()
	pf.StringVarP(&opts.cfgFile, "config", "c", "devproxy.yaml", "Path to configuration file")
	pf.StringVar(&opts.host, "host", config.DefaultHost, "Server host address")
	pf.IntVarP(&opts.port, "port", "p", config.DefaultPort, "Server port number")
	pf.StringVar(&opts.preset, "preset", config.DefaultPreset, "Built-in rule preset (sso, sso-cas, none)")

	rootCmd.Flags().BoolVarP(&serveOpts.watch, "watch", "w", true, "Reload rules and theme when the config file changes")

	rootCmd.AddCommand(
		serveCmd,
		newRoutesCmd(opts),
		newCheckCmd(opts),
		newExportCmd(opts),
		newImportCmd(),
		newThemeCmd(opts),
	)
	return rootCmd
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
