package telemetry

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Event is a notification emitted while syncing. Kind and Entity identify
// the entity for per-entity events; Data carries event-specific fields.
type Event struct {
	ID        string                 `json:"id"`
	Timestamp time.Time              `json:"timestamp"`
	Type      string                 `json:"type"`
	Source    string                 `json:"source"`
	RunID     string                 `json:"run_id,omitempty"`
	Kind      string                 `json:"kind,omitempty"`
	Entity    string                 `json:"entity,omitempty"`
	Message   string                 `json:"message"`
	Level     string                 `json:"level"`
	Data      map[string]interface{} `json:"data,omitempty"`
}

// EventType constants for common event types.
const (
	EventTypeRunStarted          = "run.started"
	EventTypeRunCompleted        = "run.completed"
	EventTypeRunFailed           = "run.failed"
	EventTypeEntityImported      = "entity.imported"
	EventTypeEntityExported      = "entity.exported"
	EventTypeEntityFailed        = "entity.failed"
	EventTypeReferenceUnresolved = "reference.unresolved"
	EventTypeDocumentChanged     = "document.changed"
)

// EventLevel constants for event severity.
const (
	EventLevelInfo    = "info"
	EventLevelWarning = "warning"
	EventLevelError   = "error"
)

// EventSubscriber is a function that handles events.
type EventSubscriber func(event Event)

// EventFilter determines if an event should be processed.
type EventFilter func(event Event) bool

// EventPublisher manages event publishing and subscriptions.
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

	ctx, cancel := context.WithCancel(context.Background())

	ep := &EventPublisher{
		config:      cfg,
		buffer:      make(chan Event, cfg.BufferSize),
		subscribers: make([]subscriberEntry, 0),
		filters:     make([]EventFilter, 0),
		ctx:         ctx,
		cancel:      cancel,
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

	if ep.config.EnableAsync {
		select {
		case ep.buffer <- event:
			return nil
		case <-ep.ctx.Done():
			return fmt.Errorf("event publisher stopped")
		default:
			return fmt.Errorf("event buffer full, event dropped")
		}
	}

	ep.deliverEvent(event)
	return nil
}

// PublishRunStarted publishes a run started event.
func (ep *EventPublisher) PublishRunStarted(runID, direction string) error {
	return ep.Publish(Event{
		Type:    EventTypeRunStarted,
		Source:  "sync",
		RunID:   runID,
		Message: fmt.Sprintf("Sync run %s started (%s)", runID, direction),
		Level:   EventLevelInfo,
		Data: map[string]interface{}{
			"direction": direction,
		},
	})
}

// PublishRunCompleted publishes a run completed event.
func (ep *EventPublisher) PublishRunCompleted(runID, status string, duration time.Duration) error {
	return ep.Publish(Event{
		Type:    EventTypeRunCompleted,
		Source:  "sync",
		RunID:   runID,
		Message: fmt.Sprintf("Sync run %s completed with status: %s", runID, status),
		Level:   EventLevelInfo,
		Data: map[string]interface{}{
			"status":   status,
			"duration": duration.Seconds(),
		},
	})
}

// PublishRunFailed publishes a run failed event.
func (ep *EventPublisher) PublishRunFailed(runID, reason string) error {
	return ep.Publish(Event{
		Type:    EventTypeRunFailed,
		Source:  "sync",
		RunID:   runID,
		Message: fmt.Sprintf("Sync run %s failed: %s", runID, reason),
		Level:   EventLevelError,
		Data: map[string]interface{}{
			"reason": reason,
		},
	})
}

func entityEvent(typ, source, level, runID, kind, alias, msg string, data map[string]interface{}) Event {
	return Event{
		Type:    typ,
		Source:  source,
		RunID:   runID,
		Kind:    kind,
		Entity:  alias,
		Message: fmt.Sprintf("%s %s%s", kind, alias, msg),
		Level:   level,
		Data:    data,
	}
}

// PublishEntityImported publishes the outcome of importing one entity.
func (ep *EventPublisher) PublishEntityImported(runID, kind, alias, change string, changes int) error {
	return ep.Publish(entityEvent(EventTypeEntityImported, "importer", EventLevelInfo, runID, kind, alias,
		": "+change, map[string]interface{}{"change": change, "changes": changes}))
}

func (ep *EventPublisher) PublishEntityExported(runID, kind, alias, path string) error {
	return ep.Publish(entityEvent(EventTypeEntityExported, "exporter", EventLevelInfo, runID, kind, alias,
		" exported to "+path, map[string]interface{}{"path": path}))
}

func (ep *EventPublisher) PublishEntityFailed(runID, kind, alias, reason string) error {
	return ep.Publish(entityEvent(EventTypeEntityFailed, "importer", EventLevelError, runID, kind, alias,
		" failed: "+reason, map[string]interface{}{"reason": reason}))
}

// PublishReferenceUnresolved publishes a master or allowed-child reference
// that was dropped because its target does not exist.
func (ep *EventPublisher) PublishReferenceUnresolved(runID, kind, alias, operation string) error {
	ev := entityEvent(EventTypeReferenceUnresolved, "importer", EventLevelWarning, runID, kind, alias,
		"", map[string]interface{}{"operation": operation})
	ev.Message = fmt.Sprintf("Unresolved reference on %s %s (%s)", kind, alias, operation)
	return ep.Publish(ev)
}

// PublishDocumentChanged publishes a change seen by the directory watcher.
func (ep *EventPublisher) PublishDocumentChanged(path, op string) error {
	return ep.Publish(Event{
		Type:    EventTypeDocumentChanged,
		Source:  "watcher",
		Message: fmt.Sprintf("Document %s: %s", path, op),
		Level:   EventLevelInfo,
		Data: map[string]interface{}{
			"path": path,
			"op":   op,
		},
	})
}

// Subscribe adds a new event subscriber.
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

// processEvents processes events from the buffer asynchronously. Batches
// are flushed when full, on every flush interval, and on shutdown.
func (ep *EventPublisher) processEvents() {
	defer ep.wg.Done()

	batch := make([]Event, 0, ep.config.MaxBatchSize)

	var tick <-chan time.Time
	if ep.config.FlushInterval > 0 {
		ticker := time.NewTicker(ep.config.FlushInterval)
		defer ticker.Stop()
		tick = ticker.C
	}

	for {
		select {
		case event := <-ep.buffer:
			batch = append(batch, event)

			if len(batch) >= ep.config.MaxBatchSize {
				ep.flushBatch(batch)
				batch = make([]Event, 0, ep.config.MaxBatchSize)
			}

		case <-tick:
			if len(batch) > 0 {
				ep.flushBatch(batch)
				batch = make([]Event, 0, ep.config.MaxBatchSize)
			}

		case <-ep.ctx.Done():
			// Drain what is still buffered before shutting down
			for {
				select {
				case event := <-ep.buffer:
					batch = append(batch, event)
					continue
				default:
				}
				break
			}
			if len(batch) > 0 {
				ep.flushBatch(batch)
			}
			return
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

// Shutdown gracefully shuts down the event publisher.
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

// FilterByRunID only allows events of one run.
func FilterByRunID(runID string) EventFilter {
	return func(event Event) bool {
		return event.RunID == runID
	}
}

// FilterByEntity creates a filter that only allows events for a specific entity.
func FilterByEntity(kind, alias string) EventFilter {
	return func(event Event) bool {
		return event.Kind == kind && event.Entity == alias
	}
}
