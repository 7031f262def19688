package telemetry

import (
	"context"

	"github.com/cerberus/cerberus/pkg/config"
	"github.com/cerberus/cerberus/pkg/policy"
	"github.com/cerberus/cerberus/pkg/schema"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Telemetry combines logging, tracing, metrics and events.
type Telemetry struct {
	Logger  *Logger
	Tracer  *Tracer
	Metrics *Metrics
	Events  *EventPublisher
	Config  *Config
}

// telemetryContextKey is the context key for telemetry instances.
type telemetryContextKey struct{}

// NewTelemetry creates a new telemetry instance from configuration.
func NewTelemetry(cfg *Config) (*Telemetry, error) {
	logger, err := NewLogger(cfg.Logging)
	if err != nil {
		return nil, err
	}
	return NewTelemetryWithLogger(cfg, logger)
}

// NewTelemetryWithLogger creates a telemetry instance around an existing logger.
func NewTelemetryWithLogger(cfg *Config, logger *Logger) (*Telemetry, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	tracer, err := NewTracer(cfg.Tracing, cfg.ServiceName, cfg.ServiceVersion, cfg.Environment, cfg.ResourceAttributes)
	if err != nil {
		return nil, err
	}

	metrics, err := NewMetrics(cfg.Metrics)
	if err != nil {
		return nil, err
	}

	events, err := NewEventPublisher(cfg.Events)
	if err != nil {
		return nil, err
	}

	return &Telemetry{
		Logger:  logger,
		Tracer:  tracer,
		Metrics: metrics,
		Events:  events,
		Config:  cfg,
	}, nil
}

// WithContext adds the telemetry instance to the context.
func (t *Telemetry) WithContext(ctx context.Context) context.Context {
	ctx = context.WithValue(ctx, telemetryContextKey{}, t)
	ctx = t.Logger.WithContext(ctx)
	return ctx
}

// FromTelemetryContext retrieves the telemetry instance from the context.
// If no telemetry is found, it returns nil.
func FromTelemetryContext(ctx context.Context) *Telemetry {
	if t, ok := ctx.Value(telemetryContextKey{}).(*Telemetry); ok {
		return t
	}
	return nil
}

// Shutdown delivers pending events and flushes pending spans.
func (t *Telemetry) Shutdown(ctx context.Context) error {
	if err := t.Events.Shutdown(ctx); err != nil {
		return err
	}
	return t.Tracer.Shutdown(ctx)
}

// Flush forces all pending spans to be exported.
func (t *Telemetry) Flush(ctx context.Context) error {
	return t.Tracer.ForceFlush(ctx)
}

// ConfigOptions returns the options that wire a config.Config into this
// telemetry: a component logger and the load metrics.
func (t *Telemetry) ConfigOptions() []config.Option {
	return []config.Option{
		config.WithLogger(t.Logger.NewComponentLogger("config").Zerolog()),
		config.WithObserver(t.Metrics),
	}
}

// LoadConfig loads path into cfg inside a span and publishes the outcome.
func (t *Telemetry) LoadConfig(ctx context.Context, cfg *config.Config, path string) error {
	_, span := t.Tracer.StartLoadSpan(ctx, path)
	defer span.End()

	if err := cfg.Load(path); err != nil {
		RecordError(span, err)
		_ = t.Events.PublishConfigLoadFailed(path, err.Error())
		return err
	}

	doc, err := cfg.Document()
	if err != nil {
		RecordError(span, err)
		return err
	}

	span.SetAttributes(AttrEntries.Int(doc.Len()))
	RecordSuccess(span)
	_ = t.Events.PublishConfigLoaded(path, doc.Len(), len(doc.Diagnostics()))
	return nil
}

// Validate runs s against doc inside a span and records the result.
func (t *Telemetry) Validate(ctx context.Context, s *schema.Schema, doc *config.Document) *schema.Result {
	ctx, span := t.Tracer.StartValidateSpan(ctx, doc.Source(), len(s.Rules()))
	defer span.End()

	timer := NewTimer()
	result := s.Validate(ctx, doc)

	t.Metrics.ObserveValidation(result, timer.Duration())
	span.SetAttributes(
		AttrHardErrors.Int(result.HardErrors),
		AttrWarnings.Int(result.Warnings),
	)
	RecordSuccess(span)
	_ = t.Events.PublishValidation(doc.Source(), result.HardErrors, result.Warnings)

	return result
}

// EvaluatePolicies evaluates eng against doc inside a span and records the result.
func (t *Telemetry) EvaluatePolicies(ctx context.Context, eng *policy.Engine, doc *config.Document) (*policy.Result, error) {
	ctx, span := t.Tracer.StartPolicySpan(ctx, doc.Source())
	defer span.End()

	result, err := eng.Evaluate(ctx, doc)
	if err != nil {
		RecordError(span, err)
		return nil, err
	}

	t.Metrics.ObservePolicy(result)
	span.SetAttributes(
		AttrPolicies.Int(len(result.EvaluatedPolicies)),
		AttrViolations.Int(len(result.Violations)),
	)
	RecordSuccess(span)

	for _, v := range result.Violations {
		_ = t.Events.PublishPolicyViolation(doc.Source(), v.Policy, v.Path, v.Message, v.Severity.Blocking())
	}

	return result, nil
}

// RecordReload records a reload triggered by a file change.
func (t *Telemetry) RecordReload(ctx context.Context, path string, changes int, err error) {
	_, span := t.Tracer.StartReloadSpan(ctx, path)
	defer span.End()

	t.Metrics.RecordReload(changes, err)
	if err != nil {
		RecordError(span, err)
		_ = t.Events.PublishConfigLoadFailed(path, err.Error())
		return
	}

	span.SetAttributes(AttrChanges.Int(changes))
	RecordSuccess(span)
	_ = t.Events.PublishConfigReloaded(path, changes)
}

// RecordSnapshot records an attempt to write a snapshot to history.
func (t *Telemetry) RecordSnapshot(path, snapshotID, digest string, err error) {
	t.Metrics.RecordSnapshot(err)
	if err != nil {
		t.Logger.WithSource(path).WithError(err).Error("Failed to record snapshot")
		return
	}
	_ = t.Events.PublishSnapshotRecorded(path, snapshotID, digest)
}

// InstrumentedContext carries the span, logger and timer of one operation.
type InstrumentedContext struct {
	Ctx    context.Context
	Span   trace.Span
	Logger *Logger
	Timer  *Timer
}

// StartOperation begins an instrumented operation with logging, tracing, and timing.
func StartOperation(ctx context.Context, operation string, attrs ...attribute.KeyValue) *InstrumentedContext {
	tel := FromTelemetryContext(ctx)
	if tel == nil {
		return &InstrumentedContext{
			Ctx:    ctx,
			Logger: FromContext(ctx),
			Timer:  NewTimer(),
		}
	}

	spanCtx, span := tel.Tracer.StartSpan(ctx, operation, attrs...)

	logger := tel.Logger.WithField("operation", operation)
	if span.SpanContext().IsValid() {
		logger = logger.WithFields(map[string]interface{}{
			"trace_id": span.SpanContext().TraceID().String(),
			"span_id":  span.SpanContext().SpanID().String(),
		})
	}

	return &InstrumentedContext{
		Ctx:    logger.WithContext(spanCtx),
		Span:   span,
		Logger: logger,
		Timer:  NewTimer(),
	}
}

// End finishes the instrumented operation, recording success or failure.
func (ic *InstrumentedContext) End(err error) {
	if ic.Span == nil {
		return
	}
	if err != nil {
		RecordError(ic.Span, err)
	} else {
		RecordSuccess(ic.Span)
	}
	ic.Span.End()
}
