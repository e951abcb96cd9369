package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/codegene/devproxy/pkg/theme"
)

func newThemeCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "theme",
		Short: "Inspect and apply the theme variables",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "vars",
		Short: "Print the effective theme variables as Less declarations",
		RunE: func(cmd *cobra.Command, args []string) error {
			o, err := loadTheme(cmd, opts)
			if err != nil {
				return err
			}
			_, err = io.WriteString(cmd.OutOrStdout(), o.Preamble())
			return err
		},
	})

	var output string
	compile := &cobra.Command{
		Use:   "compile <file.less>",
		Short: "Compile a style sheet with the theme variables applied",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			o, err := loadTheme(cmd, opts)
			if err != nil {
				return err
			}

			src, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("failed to read %s: %w", args[0], err)
			}
			css, err := o.Compile(string(src))
			if err != nil {
				return fmt.Errorf("%s: %w", args[0], err)
			}

			if output == "" {
				_, err = io.WriteString(cmd.OutOrStdout(), css)
				return err
			}
			return os.WriteFile(output, []byte(css), 0o644)
		},
	}
	compile.Flags().StringVarP(&output, "output", "o", "", "Write to this file instead of stdout")
	cmd.AddCommand(compile)

	return cmd
}

func loadTheme(cmd *cobra.Command, opts *rootOptions) (theme.Overrides, error) {
	cfg, _, err := opts.load(cmd, bootstrapLogger())
	if err != nil {
		return theme.Overrides{}, err
	}
	return cfg.EffectiveTheme(), nil
}
