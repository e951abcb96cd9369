package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newCheckCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:     "check",
		Aliases: []string{"test-config"},
		Short:   "Validate the configuration file",
		Long: `Test and validate the configuration file without starting the server.

This command will:
- Load the configuration file from the specified path
- Parse the YAML/JSON content
- Validate every proxy rule and the theme variables
- Merge the preset with the explicit rules
- Report any issues found

If the configuration is valid, the command exits with status 0.
If there are validation errors, the command exits with status 1.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Testing configuration file: %s\n", opts.cfgFile)

			cfg, found, err := opts.load(cmd, bootstrapLogger())
			if err != nil {
				return err
			}
			table, err := cfg.EffectiveTable(nil)
			if err != nil {
				return err
			}

			if found {
				fmt.Fprintln(out, "✓ Configuration file loaded successfully")
			} else {
				fmt.Fprintln(out, "✓ No configuration file, using defaults")
			}
			fmt.Fprintln(out, "✓ Configuration validation passed")

			// Print summary
			fmt.Fprintln(out, "\nConfiguration Summary:")
			fmt.Fprintf(out, "  Listen: %s\n", cfg.Server.Addr())
			fmt.Fprintf(out, "  Preset: %s\n", cfg.Proxy.Preset)
			fmt.Fprintf(out, "  Proxy Rules: %d (%d explicit)\n", table.Len(), len(cfg.Proxy.Rules))

			theme := cfg.EffectiveTheme()
			fmt.Fprintf(out, "  Theme Variables: %d (javascript enabled: %t)\n", len(theme.ModifyVars), theme.JavascriptEnabled)

			if cfg.Server.StaticDir != "" {
				fmt.Fprintf(out, "  Static Directory: %s\n", cfg.Server.StaticDir)
			} else {
				fmt.Fprintln(out, "  Static Directory: none (unmatched requests return 404)")
			}

			if cfg.Journal.Enabled {
				fmt.Fprintf(out, "  Request Journal: enabled (%s)\n", cfg.Journal.KVS.Type)
			} else {
				fmt.Fprintln(out, "  Request Journal: disabled")
			}
			fmt.Fprintf(out, "  Metrics: %t\n", cfg.Metrics.Enabled)

			fmt.Fprintln(out, "\n✓ Configuration is valid and ready to use")
			return nil
		},
	}
}
