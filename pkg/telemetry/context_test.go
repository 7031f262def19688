package telemetry

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/cerberus/cerberus/pkg/config"
	"github.com/cerberus/cerberus/pkg/policy"
	"github.com/cerberus/cerberus/pkg/schema"
	"github.com/rs/zerolog"
)

func newTestTelemetry(t *testing.T) (*Telemetry, *eventRecorder) {
	t.Helper()

	cfg := DefaultConfig()
	cfg.Metrics.ListenAddress = "127.0.0.1:0"
	cfg.Events.EnableAsync = false

	var buf bytes.Buffer
	tel, err := NewTelemetryWithLogger(cfg, NewLoggerWithWriter(LoggingConfig{Level: "error", Format: "json"}, &buf))
	if err != nil {
		t.Fatalf("NewTelemetryWithLogger failed: %v", err)
	}
	t.Cleanup(func() { _ = tel.Shutdown(context.Background()) })

	rec := &eventRecorder{}
	tel.Events.Subscribe(rec.record, nil)
	return tel, rec
}

const duplicateProxies = `[project]
name = "demo"

[[proxies]]
name = "edge"
type = "nginx"

[[proxies]]
name = "edge"
type = "teleport"
`

func TestTelemetry_Pipeline(t *testing.T) {
	tel, rec := newTestTelemetry(t)
	ctx := tel.WithContext(context.Background())

	if FromTelemetryContext(ctx) != tel {
		t.Fatal("telemetry not stored in context")
	}

	path := filepath.Join(t.TempDir(), "cerberus.toml")
	if err := os.WriteFile(path, []byte(duplicateProxies), 0o644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	conf := config.New(tel.ConfigOptions()...)
	if err := tel.LoadConfig(ctx, conf, path); err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	doc, err := conf.Document()
	if err != nil {
		t.Fatalf("Document failed: %v", err)
	}

	result := tel.Validate(ctx, schema.Default(zerolog.Nop()), doc)
	if result.Passed() {
		t.Errorf("expected the enum violation to fail validation: %+v", result.Diagnostics)
	}

	eng, err := policy.NewEngine(zerolog.Nop())
	if err != nil {
		t.Fatalf("NewEngine failed: %v", err)
	}
	pr, err := tel.EvaluatePolicies(ctx, eng, doc)
	if err != nil {
		t.Fatalf("EvaluatePolicies failed: %v", err)
	}
	if pr.Allowed {
		t.Error("duplicate proxy names should be denied")
	}

	tel.RecordReload(ctx, path, 2, nil)
	tel.RecordSnapshot(path, "snap-1", "abc", nil)

	var types []string
	for _, e := range rec.snapshot() {
		types = append(types, e.Type)
	}
	want := []string{
		EventTypeConfigLoaded,
		EventTypeValidationFailed,
		EventTypePolicyViolation,
		EventTypeConfigReloaded,
		EventTypeSnapshotRecorded,
	}
	if len(types) != len(want) {
		t.Fatalf("events = %v, want %v", types, want)
	}
	for i := range want {
		if types[i] != want[i] {
			t.Errorf("event %d = %s, want %s", i, types[i], want[i])
		}
	}

	reg := tel.Metrics.Registry()
	if v := metricValue(t, reg, "cerberus_config_loads_total", map[string]string{"status": "success"}); v != 1 {
		t.Errorf("loads = %v", v)
	}
	if v := metricValue(t, reg, "cerberus_validation_runs_total", map[string]string{"result": "failed"}); v != 1 {
		t.Errorf("validation runs = %v", v)
	}
}

func TestTelemetry_LoadConfigFailure(t *testing.T) {
	tel, rec := newTestTelemetry(t)

	conf := config.New(tel.ConfigOptions()...)
	err := tel.LoadConfig(context.Background(), conf, filepath.Join(t.TempDir(), "missing.toml"))
	if !config.IsIO(err) {
		t.Fatalf("expected IO error, got %v", err)
	}

	events := rec.snapshot()
	if len(events) != 1 || events[0].Type != EventTypeConfigLoadFailed {
		t.Errorf("unexpected events %+v", events)
	}
	if v := metricValue(t, tel.Metrics.Registry(), "cerberus_config_loads_total", map[string]string{"status": "failure"}); v != 1 {
		t.Errorf("failed loads = %v", v)
	}
}

func TestStartOperation(t *testing.T) {
	ic := StartOperation(context.Background(), "noop")
	if ic.Span != nil || ic.Logger == nil {
		t.Errorf("without telemetry: %+v", ic)
	}
	ic.End(nil)

	tel, _ := newTestTelemetry(t)
	ic = StartOperation(tel.WithContext(context.Background()), "dump")
	if ic.Span == nil {
		t.Fatal("expected a span")
	}
	if FromContext(ic.Ctx) != ic.Logger {
		t.Error("operation logger not stored in context")
	}
	ic.End(nil)
}
