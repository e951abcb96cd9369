package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/codegene/devproxy/pkg/config"
)

func newImportCmd() *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "import <craco.json|craco.yaml>",
		Short: "Convert a craco dev server configuration",
		Long: `Convert the devServer.proxy and lessOptions of a craco configuration
(exported as JSON or YAML) into a devproxy configuration file.

Rule order is kept. The result uses preset "none" so only the imported
rules apply.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("failed to read %s: %w", args[0], err)
			}

			cfg, err := config.ImportCraco(data, filepath.Ext(args[0]))
			if err != nil {
				return err
			}

			if output == "" {
				out, err := config.Marshal(cfg, ".yaml")
				if err != nil {
					return err
				}
				_, err = cmd.OutOrStdout().Write(out)
				return err
			}

			if err := config.Save(output, cfg); err != nil {
				return err
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "Imported %d rule(s) into %s\n", len(cfg.Proxy.Rules), output)
			return nil
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "Write to this file instead of stdout")
	return cmd
}
