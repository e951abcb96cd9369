package cmd

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func newRoutesCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "routes [path...]",
		Short: "List the effective proxy rules",
		Long: `Print the proxy rules that serve would use, in declaration order. The
longest matching prefix wins; glob rules are tried after all prefixes.

When paths are given, print which rule (if any) each path is forwarded by
instead.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := opts.load(cmd, bootstrapLogger())
			if err != nil {
				return err
			}
			table, err := cfg.EffectiveTable(nil)
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			if len(args) == 0 {
				fmt.Fprintln(w, "PATH\tTARGET\tCHANGE ORIGIN\tDESCRIPTION")
				for _, r := range table.Rules() {
					fmt.Fprintf(w, "%s\t%s\t%t\t%s\n", r.Key(), r.Target, r.ChangeOrigin, r.Description)
				}
				return w.Flush()
			}

			fmt.Fprintln(w, "REQUEST\tRULE\tTARGET")
			for _, path := range args {
				m, ok := table.Match(path)
				if !ok {
					fmt.Fprintf(w, "%s\t-\tnot proxied\n", path)
					continue
				}
				fmt.Fprintf(w, "%s\t%s\t%s\n", path, m.Rule.Key(), m.Rule.Target)
			}
			return w.Flush()
		},
	}
}
