package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newKeysCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "keys [prefix]",
		Short: "List configuration paths",
		Long: `List every dotted path in the configuration, sorted. With a prefix only
paths that start with it are listed.`,
		Example: `  # All paths
  cerberus keys

  # Paths of the first proxy
  cerberus keys proxies.0.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			prefix := ""
			if len(args) > 0 {
				prefix = args[0]
			}

			s, err := newSession(ctx, sessionOptions{})
			if err != nil {
				return err
			}
			defer s.close()

			doc, err := s.load(ctx)
			if err != nil {
				return err
			}

			keys := doc.ListKeys(prefix)
			if jsonOutput {
				return writeJSON(cmd.OutOrStdout(), keys)
			}
			for _, key := range keys {
				fmt.Fprintln(cmd.OutOrStdout(), key)
			}
			return nil
		},
	}

	return cmd
}
