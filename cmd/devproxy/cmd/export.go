package cmd

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/codegene/devproxy/pkg/config"
)

type exportOptions struct {
	format string
	output string
	expand bool
}

func newExportCmd(opts *rootOptions) *cobra.Command {
	exportOpts := &exportOptions{}
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write the resolved configuration",
		Long: `Write the configuration after defaults and flags are applied.

With --expand the preset is inlined: the output uses preset "none" and lists
every effective rule and the effective theme explicitly. Loading the output
again yields the same rule set.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := opts.load(cmd, bootstrapLogger())
			if err != nil {
				return err
			}

			if exportOpts.expand {
				merged, err := cfg.EffectiveRules(nil)
				if err != nil {
					return err
				}
				theme := cfg.EffectiveTheme()
				cfg.Proxy.Preset = config.PresetNone
				cfg.Proxy.Rules = merged
				cfg.Theme = &theme
			}

			if exportOpts.output != "" {
				if err := config.Save(exportOpts.output, cfg); err != nil {
					return err
				}
				fmt.Fprintf(cmd.ErrOrStderr(), "Wrote %s\n", exportOpts.output)
				return nil
			}

			data, err := config.Marshal(cfg, "."+exportOpts.format)
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(data)
			return err
		},
	}

	cmd.Flags().StringVarP(&exportOpts.format, "format", "f", "yaml", "Output format when writing to stdout (yaml, json)")
	cmd.Flags().StringVarP(&exportOpts.output, "output", "o", "", "Write to this file instead of stdout (format from extension)")
	cmd.Flags().BoolVar(&exportOpts.expand, "expand", false, "Inline the preset rules and theme")
	cmd.PreRunE = func(cmd *cobra.Command, args []string) error {
		if exportOpts.output != "" && cmd.Flags().Changed("format") &&
			filepath.Ext(exportOpts.output) != "."+exportOpts.format {
			return fmt.Errorf("--format %s does not match output file %s", exportOpts.format, exportOpts.output)
		}
		return nil
	}
	return cmd
}
