package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/cerberus/cerberus/pkg/config"
	"github.com/cerberus/cerberus/pkg/policy"
	"github.com/cerberus/cerberus/pkg/schema"
	"github.com/cerberus/cerberus/pkg/stores"
	"github.com/cerberus/cerberus/pkg/telemetry"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// buildVersion is reported as the service version in traces.
var buildVersion = "dev"

type sessionOptions struct {
	metricsAddr string
	async       bool
	policies    bool
	policyPaths []string
}

// session bundles what a command needs to load and check one configuration.
type session struct {
	tel      *telemetry.Telemetry
	cfg      *config.Config
	schema   *schema.Schema
	policies *policy.Engine
	logger   zerolog.Logger
}

func newTelemetry(opts sessionOptions) (*telemetry.Telemetry, error) {
	cfg := telemetry.DefaultConfig()
	cfg.ServiceVersion = buildVersion
	cfg.Metrics.Enabled = opts.metricsAddr != ""
	cfg.Metrics.ListenAddress = opts.metricsAddr
	cfg.Events.EnableAsync = opts.async

	if traceExporter != "" {
		cfg.Tracing.Enabled = true
		cfg.Tracing.Exporter = traceExporter
		cfg.Tracing.Endpoint = otlpEndpoint
	}

	return telemetry.NewTelemetryWithLogger(cfg, telemetry.FromZerolog(log.Logger))
}

func newSession(ctx context.Context, opts sessionOptions) (*session, error) {
	tel, err := newTelemetry(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to set up telemetry: %w", err)
	}

	s := &session{
		tel:    tel,
		cfg:    config.New(tel.ConfigOptions()...),
		schema: schema.Default(tel.Logger.NewComponentLogger("schema").Zerolog()),
		logger: tel.Logger.Zerolog(),
	}

	if opts.policies {
		eng, err := policy.NewEngine(tel.Logger.NewComponentLogger("policy").Zerolog())
		if err != nil {
			s.close()
			return nil, fmt.Errorf("failed to create policy engine: %w", err)
		}
		if len(opts.policyPaths) > 0 {
			if err := eng.LoadPolicies(ctx, opts.policyPaths); err != nil {
				s.close()
				return nil, fmt.Errorf("failed to load policies: %w", err)
			}
		}
		s.policies = eng
	}

	return s, nil
}

// close flushes pending events and spans.
func (s *session) close() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.tel.Shutdown(ctx); err != nil {
		s.logger.Warn().Err(err).Msg("Telemetry shutdown incomplete")
	}
}

// load reads configPath and returns the committed document.
func (s *session) load(ctx context.Context) (*config.Document, error) {
	if err := s.tel.LoadConfig(ctx, s.cfg, configPath); err != nil {
		return nil, err
	}
	return s.cfg.Document()
}

// report is the outcome of checking one document.
type report struct {
	Source      string              `json:"source"`
	Passed      bool                `json:"passed"`
	Entries     int                 `json:"entries"`
	HardErrors  int                 `json:"hard_errors"`
	Warnings    int                 `json:"warnings"`
	Policies    []string            `json:"policies,omitempty"`
	Diagnostics []config.Diagnostic `json:"diagnostics"`
	SnapshotID  string              `json:"snapshot_id,omitempty"`
}

// check runs parse diagnostics, schema validation and, when enabled, policy
// evaluation against doc and merges the results.
func (s *session) check(ctx context.Context, doc *config.Document) (*report, error) {
	merged := &schema.Result{}
	merged.Merge(doc.Diagnostics()...)

	validation := s.tel.Validate(ctx, s.schema, doc)
	merged.Merge(validation.Diagnostics...)

	rep := &report{Source: doc.Source(), Entries: doc.Len()}

	if s.policies != nil {
		result, err := s.tel.EvaluatePolicies(ctx, s.policies, doc)
		if err != nil {
			return nil, fmt.Errorf("policy evaluation failed: %w", err)
		}
		merged.Merge(result.Diagnostics(doc.Source())...)
		rep.Policies = result.EvaluatedPolicies
		for _, name := range result.Warnings {
			s.logger.Warn().Str("policy", name).Msg("Policy could not be evaluated")
		}
	}

	rep.HardErrors = merged.HardErrors
	rep.Warnings = merged.Warnings
	rep.Diagnostics = merged.Diagnostics
	rep.Passed = merged.Passed()
	if rep.Diagnostics == nil {
		rep.Diagnostics = []config.Diagnostic{}
	}
	return rep, nil
}

// record saves doc and the report's diagnostics as a history snapshot.
func (s *session) record(ctx context.Context, store stores.Store, doc *config.Document, rep *report) error {
	rec := stores.NewRecord(doc, rep.Diagnostics)
	err := store.SaveSnapshot(ctx, rec)
	s.tel.RecordSnapshot(doc.Source(), rec.Snapshot.ID, rec.Snapshot.Digest, err)
	if err != nil {
		return fmt.Errorf("failed to record snapshot: %w", err)
	}
	rep.SnapshotID = rec.Snapshot.ID
	return nil
}

// openStore opens the history database at path and applies migrations.
func openStore(ctx context.Context, path string) (*stores.SQLiteStore, error) {
	store, err := stores.NewSQLiteStore(stores.Config{
		Path:   path,
		Logger: log.Logger,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create store: %w", err)
	}

	if err := store.Init(ctx); err != nil {
		return nil, fmt.Errorf("failed to initialize store: %w", err)
	}

	if err := store.Migrate(ctx); err != nil {
		store.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return store, nil
}
