package commands

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/cerberus/cerberus/pkg/config"
	"github.com/cerberus/cerberus/pkg/stores"
	"github.com/spf13/cobra"
)

func newHistoryCommand() *cobra.Command {
	var dbPath string

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Inspect recorded configuration snapshots",
		Long: `Inspect the snapshots recorded by "validate --record" and "watch --record".

Each snapshot holds every entry of one loaded configuration together with the
diagnostics reported for it.`,
		Example: `  # Recent snapshots of every file
  cerberus history list

  # What changed between two snapshots
  cerberus history diff 1f0c... 8e2a...

  # Keep only the ten newest snapshots of config.toml
  cerberus history prune --keep 10`,
	}

	cmd.PersistentFlags().StringVar(&dbPath, "db", "cerberus-history.db", "history database path")

	cmd.AddCommand(newHistoryListCommand(&dbPath))
	cmd.AddCommand(newHistoryShowCommand(&dbPath))
	cmd.AddCommand(newHistoryDiffCommand(&dbPath))
	cmd.AddCommand(newHistoryPruneCommand(&dbPath))

	return cmd
}

// withStore opens the history database for the duration of fn.
func withStore(ctx context.Context, dbPath string, fn func(stores.Store) error) error {
	store, err := openStore(ctx, dbPath)
	if err != nil {
		return err
	}
	defer store.Close()
	return fn(store)
}

func newHistoryListCommand(dbPath *string) *cobra.Command {
	var (
		source string
		limit  int
		offset int
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List snapshots, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(cmd.Context(), *dbPath, func(store stores.Store) error {
				snaps, err := store.ListSnapshots(cmd.Context(), source, limit, offset)
				if err != nil {
					return err
				}

				if jsonOutput {
					return writeJSON(cmd.OutOrStdout(), snaps)
				}
				printSnapshots(cmd.OutOrStdout(), snaps)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&source, "source", "", "only snapshots of this file")
	cmd.Flags().IntVar(&limit, "limit", 20, "maximum number of snapshots")
	cmd.Flags().IntVar(&offset, "offset", 0, "snapshots to skip")

	return cmd
}

func printSnapshots(w io.Writer, snaps []*stores.Snapshot) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tSOURCE\tLOADED\tENTRIES\tERRORS\tWARNINGS\tDIGEST")
	for _, snap := range snaps {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%d\t%d\t%s\n",
			snap.ID, snap.SourcePath, snap.LoadedAt.Local().Format(time.DateTime),
			snap.EntryCount, snap.HardErrors, snap.Warnings, shortDigest(snap.Digest))
	}
	tw.Flush()
}

func shortDigest(digest string) string {
	if len(digest) > 12 {
		return digest[:12]
	}
	return digest
}

func newHistoryShowCommand(dbPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Show the entries and diagnostics of a snapshot",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			return withStore(ctx, *dbPath, func(store stores.Store) error {
				snap, err := store.GetSnapshot(ctx, args[0])
				if err != nil {
					return err
				}
				entries, err := store.ListSnapshotEntries(ctx, snap.ID)
				if err != nil {
					return err
				}
				diags, err := store.ListSnapshotDiagnostics(ctx, snap.ID)
				if err != nil {
					return err
				}

				out := cmd.OutOrStdout()
				if jsonOutput {
					return writeJSON(out, &stores.Record{Snapshot: snap, Entries: entries, Diagnostics: diags})
				}

				fmt.Fprintf(out, "snapshot %s\n", snap.ID)
				fmt.Fprintf(out, "source:   %s\n", snap.SourcePath)
				fmt.Fprintf(out, "loaded:   %s\n", snap.LoadedAt.Local().Format(time.DateTime))
				fmt.Fprintf(out, "digest:   %s\n", snap.Digest)
				fmt.Fprintf(out, "result:   %d errors, %d warnings\n\n", snap.HardErrors, snap.Warnings)

				if err := stores.Document(snap, entries).Dump(out); err != nil {
					return err
				}
				if len(diags) > 0 {
					fmt.Fprintln(out)
					for _, d := range diags {
						fmt.Fprintln(out, d.Diagnostic().String())
					}
				}
				return nil
			})
		},
	}

	return cmd
}

func newHistoryDiffCommand(dbPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "diff <old-id> <new-id>",
		Short: "Show the paths that differ between two snapshots",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			return withStore(ctx, *dbPath, func(store stores.Store) error {
				old, err := loadSnapshotDocument(ctx, store, args[0])
				if err != nil {
					return err
				}
				current, err := loadSnapshotDocument(ctx, store, args[1])
				if err != nil {
					return err
				}

				changes := config.Diff(old, current)
				out := cmd.OutOrStdout()
				if jsonOutput {
					if changes == nil {
						changes = []config.Change{}
					}
					return writeJSON(out, changes)
				}

				if len(changes) == 0 {
					fmt.Fprintln(out, "no changes")
					return nil
				}
				for _, c := range changes {
					switch c.Kind {
					case config.ChangeAdded:
						fmt.Fprintf(out, "+ %s = %s\n", c.Path, c.New.Raw)
					case config.ChangeRemoved:
						fmt.Fprintf(out, "- %s = %s\n", c.Path, c.Old.Raw)
					default:
						fmt.Fprintf(out, "~ %s = %s -> %s\n", c.Path, c.Old.Raw, c.New.Raw)
					}
				}
				return nil
			})
		},
	}

	return cmd
}

func loadSnapshotDocument(ctx context.Context, store stores.Store, id string) (*config.Document, error) {
	snap, err := store.GetSnapshot(ctx, id)
	if err != nil {
		return nil, err
	}
	entries, err := store.ListSnapshotEntries(ctx, snap.ID)
	if err != nil {
		return nil, err
	}
	return stores.Document(snap, entries), nil
}

func newHistoryPruneCommand(dbPath *string) *cobra.Command {
	var (
		source string
		keep   int
	)

	cmd := &cobra.Command{
		Use:   "prune",
		Short: "Delete all but the newest snapshots of a file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if keep < 0 {
				return fmt.Errorf("--keep must not be negative")
			}
			if source == "" {
				source = configPath
			}

			return withStore(cmd.Context(), *dbPath, func(store stores.Store) error {
				pruned, err := store.PruneSnapshots(cmd.Context(), source, keep)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "pruned %d snapshot(s) of %s\n", pruned, source)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&source, "source", "", "file whose snapshots are pruned (default: --config)")
	cmd.Flags().IntVar(&keep, "keep", 10, "snapshots to keep")

	return cmd
}
