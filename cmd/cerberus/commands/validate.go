package commands

import (
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

func newValidateCommand() *cobra.Command {
	var (
		strict      bool
		noPolicies  bool
		policyPaths []string
		recordDB    string
	)

	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate the configuration file",
		Long: `Validate the configuration file and report every problem found.

This command checks:
  - Lines the parser could not recognize
  - Required keys, allowed proxy types, port ranges and URL schemes
  - Built-in cross-instance rules such as unique proxy names
  - Custom Rego policies given with --policy

The command fails when any error is reported. Warnings never fail it
unless --strict is set.`,
		Example: `  # Validate config.toml
  cerberus validate

  # Validate with organisation policies and fail on warnings
  cerberus validate -c deploy/cerberus.toml --policy policies/ --strict

  # Validate and keep a snapshot in the history database
  cerberus validate --record cerberus-history.db --json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			log.Debug().
				Str("config", configPath).
				Bool("strict", strict).
				Strs("policies", policyPaths).
				Msg("Validating configuration")

			s, err := newSession(ctx, sessionOptions{
				policies:    !noPolicies,
				policyPaths: policyPaths,
			})
			if err != nil {
				return err
			}
			defer s.close()

			doc, err := s.load(ctx)
			if err != nil {
				return err
			}

			rep, err := s.check(ctx, doc)
			if err != nil {
				return err
			}

			if recordDB != "" {
				store, err := openStore(ctx, recordDB)
				if err != nil {
					return err
				}
				defer store.Close()

				if err := s.record(ctx, store, doc, rep); err != nil {
					return err
				}
			}

			out := cmd.OutOrStdout()
			if jsonOutput {
				if err := writeJSON(out, rep); err != nil {
					return err
				}
			} else {
				printReport(out, rep)
			}

			if rep.HardErrors > 0 {
				return fmt.Errorf("validation failed with %d error(s)", rep.HardErrors)
			}
			if strict && rep.Warnings > 0 {
				return fmt.Errorf("validation failed with %d warning(s) in strict mode", rep.Warnings)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&strict, "strict", false, "treat warnings as errors")
	cmd.Flags().BoolVar(&noPolicies, "no-policies", false, "skip policy evaluation, built-in policies included")
	cmd.Flags().StringSliceVarP(&policyPaths, "policy", "p", nil, "policy files or directories (repeatable)")
	cmd.Flags().StringVar(&recordDB, "record", "", "record a snapshot in this history database")

	return cmd
}
