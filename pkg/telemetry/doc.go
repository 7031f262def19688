// Package telemetry provides observability for Cerberus: structured logging
// (zerolog), tracing (OpenTelemetry), metrics (Prometheus) and an event stream
// describing what happens to a watched configuration.
//
// # Usage
//
//	cfg := telemetry.DefaultConfig()
//	tel, err := telemetry.NewTelemetry(cfg)
//	if err != nil {
//		return err
//	}
//	defer tel.Shutdown(context.Background())
//
//	conf := config.New(tel.ConfigOptions()...)
//	if err := tel.LoadConfig(ctx, conf, "cerberus.toml"); err != nil {
//		return err
//	}
//	doc, _ := conf.Document()
//	result := tel.Validate(ctx, schema.Default(logger), doc)
//
// # Logging
//
// Libraries take a zerolog.Logger. Logger wraps one and adds the fields used
// across Cerberus:
//
//	logger := tel.Logger.NewComponentLogger("watcher").WithSource(path)
//	logger.Info("Watching configuration")
//
// # Tracing
//
// Spans cover loading (config.load), reloading (config.reload), schema
// validation (schema.validate) and policy evaluation (policy.evaluate).
// Exporters: otlp, stdout, none. Tracing is off by default.
//
// # Metrics
//
// Metrics implements config.LoadObserver, so passing it to config.WithObserver
// counts every load. Validation and policy runs are recorded by Telemetry.Validate
// and Telemetry.EvaluatePolicies. Names are prefixed with the namespace:
//
//	cerberus_config_loads_total{status}
//	cerberus_config_load_duration_seconds{status}
//	cerberus_config_entries
//	cerberus_config_diagnostics_total{severity}
//	cerberus_config_reloads_total{status}
//	cerberus_config_changes_total
//	cerberus_validation_runs_total{result}
//	cerberus_validation_hard_errors
//	cerberus_validation_warnings
//	cerberus_policy_violations_total{policy,severity}
//	cerberus_snapshots_recorded_total{status}
//
// # Events
//
// Every load, reload, validation, policy violation and recorded snapshot is
// published as an Event. Subscribers receive events in publish order:
//
//	tel.Events.Subscribe(func(e telemetry.Event) {
//		fmt.Println(e.Type, e.Message)
//	}, telemetry.FilterByLevel(telemetry.EventLevelWarning))
package telemetry
