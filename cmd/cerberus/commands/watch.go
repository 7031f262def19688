package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/cerberus/cerberus/pkg/config"
	"github.com/cerberus/cerberus/pkg/policy"
	"github.com/cerberus/cerberus/pkg/stores"
	"github.com/cerberus/cerberus/pkg/telemetry"
	"github.com/cerberus/cerberus/pkg/watcher"
	"github.com/spf13/cobra"
)

func newWatchCommand() *cobra.Command {
	var (
		metricsAddr string
		recordDB    string
		keep        int
		debounce    time.Duration
		policyPaths []string
		noPolicies  bool
	)

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Revalidate the configuration whenever it changes",
		Long: `Load the configuration, validate it, then keep watching the file and any
policy paths. Every change is reloaded, diffed against the previous version and
validated again. A reload that fails keeps the previous configuration.

Events are printed as they happen, one JSON object per line with --json.
Prometheus metrics are served on --metrics-addr.`,
		Example: `  # Watch config.toml and serve metrics on :9090
  cerberus watch

  # Watch with custom policies and keep the last 50 snapshots
  cerberus watch --policy policies/ --record cerberus-history.db --keep 50

  # No metrics endpoint, JSON event stream
  cerberus watch --metrics-addr "" --json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			s, err := newSession(ctx, sessionOptions{
				metricsAddr: metricsAddr,
				async:       true,
				policies:    !noPolicies,
				policyPaths: policyPaths,
			})
			if err != nil {
				return err
			}
			defer s.close()

			s.tel.Events.Subscribe(eventPrinter(cmd.OutOrStdout(), jsonOutput), nil)

			if _, err := s.tel.Metrics.StartMetricsServer(ctx, s.logger); err != nil {
				return err
			}

			var store stores.Store
			if recordDB != "" {
				sqlite, err := openStore(ctx, recordDB)
				if err != nil {
					return err
				}
				defer sqlite.Close()
				store = sqlite
			}

			doc, err := s.load(ctx)
			if err != nil {
				return err
			}

			c := &checker{session: s, store: store, keep: keep}
			c.run(ctx, doc)

			if s.policies != nil && len(policyPaths) > 0 {
				loader := policy.NewLoader(s.tel.Logger.NewComponentLogger("policy").Zerolog())
				err := loader.Watch(ctx, policyPaths, func(policies []policy.Policy) error {
					if err := s.policies.ReplacePolicies(ctx, policies); err != nil {
						return err
					}
					_ = s.tel.Events.PublishPoliciesReloaded(len(policies))

					current, err := s.cfg.Document()
					if err != nil {
						return err
					}
					c.run(ctx, current)
					return nil
				})
				if err != nil {
					return fmt.Errorf("failed to watch policies: %w", err)
				}
				defer loader.StopWatching()
			}

			w, err := watcher.New(s.cfg,
				watcher.WithDebounce(debounce),
				watcher.WithLogger(s.logger),
				watcher.OnReload(func(old, new *config.Document) {
					s.tel.RecordReload(ctx, new.Source(), len(config.Diff(old, new)), nil)
					c.run(ctx, new)
				}),
				watcher.OnError(func(err error) {
					s.tel.RecordReload(ctx, s.cfg.SourcePath(), 0, err)
				}),
			)
			if err != nil {
				return err
			}

			return w.Run(ctx)
		},
	}

	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", ":9090", "address for the Prometheus endpoint; empty disables it")
	cmd.Flags().StringVar(&recordDB, "record", "", "record a snapshot per load in this history database")
	cmd.Flags().IntVar(&keep, "keep", 0, "snapshots to keep per file when recording; 0 keeps all")
	cmd.Flags().DurationVar(&debounce, "debounce", watcher.DefaultDebounce, "quiet period before reloading")
	cmd.Flags().StringSliceVarP(&policyPaths, "policy", "p", nil, "policy files or directories to load and watch")
	cmd.Flags().BoolVar(&noPolicies, "no-policies", false, "skip policy evaluation, built-in policies included")

	return cmd
}

// checker validates documents for watch. The config watcher and the policy
// watcher call it from different goroutines.
type checker struct {
	mu      sync.Mutex
	session *session
	store   stores.Store
	keep    int
}

func (c *checker) run(ctx context.Context, doc *config.Document) {
	c.mu.Lock()
	defer c.mu.Unlock()

	logger := c.session.logger.With().Str("source", doc.Source()).Logger()

	rep, err := c.session.check(ctx, doc)
	if err != nil {
		logger.Error().Err(err).Msg("Check failed")
		return
	}

	for _, d := range rep.Diagnostics {
		logger.Debug().Str("severity", string(d.Severity)).Msg(d.String())
	}

	if c.store != nil {
		if err := c.session.record(ctx, c.store, doc, rep); err != nil {
			logger.Error().Err(err).Msg("Failed to record snapshot")
		} else if c.keep > 0 {
			pruned, err := c.store.PruneSnapshots(ctx, doc.Source(), c.keep)
			if err != nil {
				logger.Error().Err(err).Msg("Failed to prune snapshots")
			} else if pruned > 0 {
				logger.Debug().Int64("pruned", pruned).Msg("Pruned old snapshots")
			}
		}
	}

	event := logger.Info()
	if !rep.Passed {
		event = logger.Warn()
	}
	event.
		Bool("passed", rep.Passed).
		Int("errors", rep.HardErrors).
		Int("warnings", rep.Warnings).
		Str("snapshot_id", rep.SnapshotID).
		Msg("Configuration checked")
}

// eventPrinter writes each event as a line of text, or of JSON.
func eventPrinter(w io.Writer, asJSON bool) telemetry.EventSubscriber {
	enc := json.NewEncoder(w)
	return func(e telemetry.Event) {
		if asJSON {
			_ = enc.Encode(e)
			return
		}
		fmt.Fprintf(w, "%s %-7s %-20s %s\n",
			e.Timestamp.Format(time.RFC3339), e.Level, e.Type, e.Message)
	}
}
