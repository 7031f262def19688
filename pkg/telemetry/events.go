package telemetry

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ErrPublisherStopped is returned by Publish after Shutdown.
var ErrPublisherStopped = errors.New("event publisher stopped")

// ErrBufferFull is returned by Publish when the async buffer has no room.
var ErrBufferFull = errors.New("event buffer full, event dropped")

// Event is something that happened to a watched configuration.
type Event struct {
	// ID is the unique identifier for this event.
	ID string `json:"id"`

	// Timestamp is when the event occurred.
	Timestamp time.Time `json:"timestamp"`

	// Type is the event type.
	Type string `json:"type"`

	// Component identifies where the event originated.
	Component string `json:"component"`

	// ConfigPath is the configuration file the event is about.
	ConfigPath string `json:"config_path,omitempty"`

	// SnapshotID is the associated history snapshot, if any.
	SnapshotID string `json:"snapshot_id,omitempty"`

	// Message is a human-readable event message.
	Message string `json:"message"`

	// Level is the event severity level (info, warning, error).
	Level string `json:"level"`

	// Data contains additional event-specific data.
	Data map[string]interface{} `json:"data,omitempty"`
}

// Event types.
const (
	EventTypeConfigLoaded     = "config.loaded"
	EventTypeConfigLoadFailed = "config.load_failed"
	EventTypeConfigReloaded   = "config.reloaded"
	EventTypeValidationPassed = "validation.passed"
	EventTypeValidationFailed = "validation.failed"
	EventTypePolicyViolation  = "policy.violation"
	EventTypeSnapshotRecorded = "snapshot.recorded"
	EventTypePoliciesReloaded = "policy.reloaded"
)

// Event levels.
const (
	EventLevelInfo    = "info"
	EventLevelWarning = "warning"
	EventLevelError   = "error"
)

// EventSubscriber is a function that handles events.
type EventSubscriber func(event Event)

// EventFilter determines if an event should be processed.
type EventFilter func(event Event) bool

// EventPublisher fans events out to subscribers. In async mode events are
// buffered and delivered in batches from one goroutine, so a subscriber sees
// events in publish order.
type EventPublisher struct {
	config      EventsConfig
	buffer      chan Event
	subscribers []subscriberEntry
	filters     []EventFilter
	wg          sync.WaitGroup
	mu          sync.RWMutex
	ctx         context.Context
	cancel      context.CancelFunc
}

type subscriberEntry struct {
	subscriber EventSubscriber
	filter     EventFilter
}

// NewEventPublisher creates a new event publisher with the given configuration.
func NewEventPublisher(cfg EventsConfig) (*EventPublisher, error) {
	if !cfg.Enabled {
		return &EventPublisher{config: cfg}, nil
	}
	if cfg.MaxBatchSize <= 0 {
		cfg.MaxBatchSize = 1
	}

	ctx, cancel := context.WithCancel(context.Background())

	ep := &EventPublisher{
		config: cfg,
		buffer: make(chan Event, cfg.BufferSize),
		ctx:    ctx,
		cancel: cancel,
	}

	if cfg.EnableAsync {
		ep.wg.Add(1)
		go ep.processEvents()
	}

	return ep, nil
}

// Publish publishes an event to all subscribers.
func (ep *EventPublisher) Publish(event Event) error {
	if !ep.config.Enabled {
		return nil
	}

	if event.ID == "" {
		event.ID = uuid.New().String()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	ep.mu.RLock()
	for _, filter := range ep.filters {
		if !filter(event) {
			ep.mu.RUnlock()
			return nil
		}
	}
	ep.mu.RUnlock()

	if !ep.config.EnableAsync {
		if ep.ctx.Err() != nil {
			return ErrPublisherStopped
		}
		ep.deliverEvent(event)
		return nil
	}

	select {
	case <-ep.ctx.Done():
		return ErrPublisherStopped
	default:
	}

	select {
	case ep.buffer <- event:
		return nil
	case <-ep.ctx.Done():
		return ErrPublisherStopped
	default:
		return ErrBufferFull
	}
}

// PublishConfigLoaded publishes a successful load.
func (ep *EventPublisher) PublishConfigLoaded(path string, entries, diagnostics int) error {
	return ep.Publish(Event{
		Type:       EventTypeConfigLoaded,
		Component:  "config",
		ConfigPath: path,
		Message:    fmt.Sprintf("Loaded %s (%d entries)", path, entries),
		Level:      EventLevelInfo,
		Data: map[string]interface{}{
			"entries":     entries,
			"diagnostics": diagnostics,
		},
	})
}

// PublishConfigLoadFailed publishes a failed load.
func (ep *EventPublisher) PublishConfigLoadFailed(path, reason string) error {
	return ep.Publish(Event{
		Type:       EventTypeConfigLoadFailed,
		Component:  "config",
		ConfigPath: path,
		Message:    fmt.Sprintf("Failed to load %s: %s", path, reason),
		Level:      EventLevelError,
		Data: map[string]interface{}{
			"reason": reason,
		},
	})
}

// PublishConfigReloaded publishes a reload triggered by a file change.
func (ep *EventPublisher) PublishConfigReloaded(path string, changes int) error {
	return ep.Publish(Event{
		Type:       EventTypeConfigReloaded,
		Component:  "watcher",
		ConfigPath: path,
		Message:    fmt.Sprintf("Reloaded %s (%d changes)", path, changes),
		Level:      EventLevelInfo,
		Data: map[string]interface{}{
			"changes": changes,
		},
	})
}

// PublishValidation publishes the outcome of a schema validation run.
func (ep *EventPublisher) PublishValidation(path string, hardErrors, warnings int) error {
	event := Event{
		Type:       EventTypeValidationPassed,
		Component:  "schema",
		ConfigPath: path,
		Message:    fmt.Sprintf("Validation of %s passed with %d warnings", path, warnings),
		Level:      EventLevelInfo,
		Data: map[string]interface{}{
			"hard_errors": hardErrors,
			"warnings":    warnings,
		},
	}
	if hardErrors > 0 {
		event.Type = EventTypeValidationFailed
		event.Message = fmt.Sprintf("Validation of %s failed with %d errors", path, hardErrors)
		event.Level = EventLevelError
	} else if warnings > 0 {
		event.Level = EventLevelWarning
	}
	return ep.Publish(event)
}

// PublishPolicyViolation publishes one policy violation.
func (ep *EventPublisher) PublishPolicyViolation(path, policyName, keyPath, message string, blocking bool) error {
	level := EventLevelWarning
	if blocking {
		level = EventLevelError
	}
	return ep.Publish(Event{
		Type:       EventTypePolicyViolation,
		Component:  "policy",
		ConfigPath: path,
		Message:    fmt.Sprintf("Policy %s: %s", policyName, message),
		Level:      level,
		Data: map[string]interface{}{
			"policy": policyName,
			"path":   keyPath,
		},
	})
}

// PublishPoliciesReloaded publishes a reload of policy files.
func (ep *EventPublisher) PublishPoliciesReloaded(count int) error {
	return ep.Publish(Event{
		Type:      EventTypePoliciesReloaded,
		Component: "policy",
		Message:   fmt.Sprintf("Reloaded %d policies", count),
		Level:     EventLevelInfo,
		Data: map[string]interface{}{
			"policies": count,
		},
	})
}

// PublishSnapshotRecorded publishes a snapshot written to history.
func (ep *EventPublisher) PublishSnapshotRecorded(path, snapshotID, digest string) error {
	return ep.Publish(Event{
		Type:       EventTypeSnapshotRecorded,
		Component:  "stores",
		ConfigPath: path,
		SnapshotID: snapshotID,
		Message:    fmt.Sprintf("Recorded snapshot %s of %s", snapshotID, path),
		Level:      EventLevelInfo,
		Data: map[string]interface{}{
			"digest": digest,
		},
	})
}

// Subscribe adds a new event subscriber. A nil filter accepts every event.
func (ep *EventPublisher) Subscribe(subscriber EventSubscriber, filter EventFilter) {
	ep.mu.Lock()
	defer ep.mu.Unlock()

	ep.subscribers = append(ep.subscribers, subscriberEntry{
		subscriber: subscriber,
		filter:     filter,
	})
}

// AddFilter adds a global event filter.
func (ep *EventPublisher) AddFilter(filter EventFilter) {
	ep.mu.Lock()
	defer ep.mu.Unlock()

	ep.filters = append(ep.filters, filter)
}

// processEvents delivers buffered events in batches. A partial batch is
// delivered after FlushInterval, and whatever is left on shutdown.
func (ep *EventPublisher) processEvents() {
	defer ep.wg.Done()

	interval := ep.config.FlushInterval
	if interval <= 0 {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	batch := make([]Event, 0, ep.config.MaxBatchSize)

	for {
		select {
		case event := <-ep.buffer:
			batch = append(batch, event)
			if len(batch) >= ep.config.MaxBatchSize {
				ep.flushBatch(batch)
				batch = batch[:0]
			}

		case <-ticker.C:
			if len(batch) > 0 {
				ep.flushBatch(batch)
				batch = batch[:0]
			}

		case <-ep.ctx.Done():
			for {
				select {
				case event := <-ep.buffer:
					batch = append(batch, event)
				default:
					ep.flushBatch(batch)
					return
				}
			}
		}
	}
}

// flushBatch delivers a batch of events to subscribers.
func (ep *EventPublisher) flushBatch(events []Event) {
	for _, event := range events {
		ep.deliverEvent(event)
	}
}

// deliverEvent delivers an event to all subscribers.
func (ep *EventPublisher) deliverEvent(event Event) {
	ep.mu.RLock()
	defer ep.mu.RUnlock()

	for _, entry := range ep.subscribers {
		if entry.filter != nil && !entry.filter(event) {
			continue
		}
		entry.subscriber(event)
	}
}

// Shutdown stops the publisher after delivering buffered events.
func (ep *EventPublisher) Shutdown(ctx context.Context) error {
	if !ep.config.Enabled {
		return nil
	}

	ep.cancel()

	done := make(chan struct{})
	go func() {
		ep.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("event publisher shutdown timeout")
	}
}

// Common event filters.

// FilterByLevel creates a filter that only allows events of a specific level or higher.
func FilterByLevel(minLevel string) EventFilter {
	levels := map[string]int{
		EventLevelInfo:    0,
		EventLevelWarning: 1,
		EventLevelError:   2,
	}

	minLevelValue := levels[minLevel]

	return func(event Event) bool {
		return levels[event.Level] >= minLevelValue
	}
}

// FilterByType creates a filter that only allows events of specific types.
func FilterByType(types ...string) EventFilter {
	typeSet := make(map[string]bool)
	for _, t := range types {
		typeSet[t] = true
	}

	return func(event Event) bool {
		return typeSet[event.Type]
	}
}

// FilterByConfigPath creates a filter that only allows events about one file.
func FilterByConfigPath(path string) EventFilter {
	return func(event Event) bool {
		return event.ConfigPath == path
	}
}
