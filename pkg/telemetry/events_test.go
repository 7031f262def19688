package telemetry

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

type eventRecorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *eventRecorder) record(e Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *eventRecorder) snapshot() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Event, len(r.events))
	copy(out, r.events)
	return out
}

func TestEventPublisher_Sync(t *testing.T) {
	ep, err := NewEventPublisher(EventsConfig{Enabled: true, BufferSize: 1})
	if err != nil {
		t.Fatalf("NewEventPublisher failed: %v", err)
	}

	rec := &eventRecorder{}
	ep.Subscribe(rec.record, nil)

	if err := ep.PublishConfigLoaded("a.toml", 7, 1); err != nil {
		t.Fatalf("Publish failed: %v", err)
	}

	events := rec.snapshot()
	if len(events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events))
	}
	e := events[0]
	if e.Type != EventTypeConfigLoaded || e.ConfigPath != "a.toml" || e.ID == "" || e.Timestamp.IsZero() {
		t.Errorf("unexpected event %+v", e)
	}
	if e.Data["entries"] != 7 {
		t.Errorf("entries = %v", e.Data["entries"])
	}

	if err := ep.Shutdown(context.Background()); err != nil {
		t.Fatalf("Shutdown failed: %v", err)
	}
	if err := ep.PublishConfigLoaded("a.toml", 1, 0); !errors.Is(err, ErrPublisherStopped) {
		t.Errorf("expected ErrPublisherStopped, got %v", err)
	}
}

func TestEventPublisher_AsyncOrderAndFlush(t *testing.T) {
	ep, err := NewEventPublisher(EventsConfig{
		Enabled:       true,
		BufferSize:    16,
		FlushInterval: 10 * time.Millisecond,
		MaxBatchSize:  4,
		EnableAsync:   true,
	})
	if err != nil {
		t.Fatalf("NewEventPublisher failed: %v", err)
	}

	rec := &eventRecorder{}
	ep.Subscribe(rec.record, nil)

	for i := 0; i < 6; i++ {
		if err := ep.PublishConfigReloaded("a.toml", i); err != nil {
			t.Fatalf("Publish %d failed: %v", i, err)
		}
	}

	if err := ep.Shutdown(context.Background()); err != nil {
		t.Fatalf("Shutdown failed: %v", err)
	}

	events := rec.snapshot()
	if len(events) != 6 {
		t.Fatalf("expected 6 events after shutdown, got %d", len(events))
	}
	for i, e := range events {
		if e.Data["changes"] != i {
			t.Errorf("event %d out of order: %v", i, e.Data["changes"])
		}
	}
}

func TestEventPublisher_Filters(t *testing.T) {
	ep, err := NewEventPublisher(EventsConfig{Enabled: true, BufferSize: 1})
	if err != nil {
		t.Fatalf("NewEventPublisher failed: %v", err)
	}

	warnings := &eventRecorder{}
	violations := &eventRecorder{}
	ep.Subscribe(warnings.record, FilterByLevel(EventLevelWarning))
	ep.Subscribe(violations.record, FilterByType(EventTypePolicyViolation))
	ep.AddFilter(FilterByConfigPath("a.toml"))

	_ = ep.PublishConfigLoaded("a.toml", 1, 0)
	_ = ep.PublishValidation("a.toml", 0, 2)
	_ = ep.PublishValidation("a.toml", 1, 0)
	_ = ep.PublishPolicyViolation("a.toml", "p", "x", "bad", false)
	_ = ep.PublishPolicyViolation("b.toml", "p", "x", "other file", true)

	got := warnings.snapshot()
	if len(got) != 3 {
		t.Fatalf("expected 3 warning-or-worse events, got %+v", got)
	}
	if got[1].Type != EventTypeValidationFailed || got[1].Level != EventLevelError {
		t.Errorf("unexpected validation event %+v", got[1])
	}
	if len(violations.snapshot()) != 1 {
		t.Errorf("expected 1 violation, got %+v", violations.snapshot())
	}
}

func TestEventPublisher_Disabled(t *testing.T) {
	ep, err := NewEventPublisher(EventsConfig{Enabled: false})
	if err != nil {
		t.Fatalf("NewEventPublisher failed: %v", err)
	}
	rec := &eventRecorder{}
	ep.Subscribe(rec.record, nil)

	if err := ep.PublishSnapshotRecorded("a.toml", "id", "digest"); err != nil {
		t.Errorf("Publish on disabled publisher failed: %v", err)
	}
	if len(rec.snapshot()) != 0 {
		t.Error("disabled publisher delivered an event")
	}
	if err := ep.Shutdown(context.Background()); err != nil {
		t.Errorf("Shutdown failed: %v", err)
	}
}
