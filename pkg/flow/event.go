package flow

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"
)

// TriggerType is the kind of trigger that may start a block.
type TriggerType string

const (
	// TriggerMessage fires on a named message (SendMessage / Broadcast).
	TriggerMessage TriggerType = "message"

	// TriggerStarted fires once when the registry starts.
	TriggerStarted TriggerType = "started"

	// TriggerKey fires when the front-end reports a key press by name.
	TriggerKey TriggerType = "key"
)

// ParseTriggerType parses a trigger type name.
func ParseTriggerType(s string) (TriggerType, error) {
	switch t := TriggerType(strings.ToLower(strings.TrimSpace(s))); t {
	case TriggerMessage, TriggerStarted, TriggerKey:
		return t, nil
	default:
		return "", fmt.Errorf("unknown trigger type: %q", s)
	}
}

// Event is a trigger waiting to be dispatched.
type Event struct {
	Type TriggerType

	// Name is the message or key name. Started events have no name.
	Name string

	// Flowchart restricts delivery to one flowchart. Empty means all.
	Flowchart string

	// Timestamp orders events in the queue. Push assigns one if unset.
	Timestamp time.Time

	Params map[string]any
}

// NewEvent creates an event for every flowchart.
func NewEvent(t TriggerType, name string) *Event {
	return &Event{
		Type:      t,
		Name:      name,
		Timestamp: time.Now(),
		Params:    make(map[string]any),
	}
}

// GetParam retrieves a parameter value by name.
func (e *Event) GetParam(name string) (any, bool) {
	if e.Params == nil {
		return nil, false
	}
	val, ok := e.Params[name]
	return val, ok
}

// SetParam sets a parameter value.
func (e *Event) SetParam(name string, value any) {
	if e.Params == nil {
		e.Params = make(map[string]any)
	}
	e.Params[name] = value
}

// DefaultQueueSize is the default maximum size of the event queue.
const DefaultQueueSize = 1000

// EventQueue is a thread-safe queue ordered by timestamp. When full, the
// oldest event is discarded.
type EventQueue struct {
	events  []*Event
	maxSize int
	dropped int
	mu      sync.Mutex
}

// NewEventQueue creates a new event queue with the given maximum size,
// or DefaultQueueSize if maxSize is not positive.
func NewEventQueue(maxSize int) *EventQueue {
	if maxSize <= 0 {
		maxSize = DefaultQueueSize
	}
	return &EventQueue{
		events:  make([]*Event, 0, maxSize),
		maxSize: maxSize,
	}
}

// Push adds an event, keeping the queue sorted by timestamp. Events with
// equal timestamps keep their push order.
func (eq *EventQueue) Push(event *Event) {
	eq.mu.Lock()
	defer eq.mu.Unlock()

	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	if len(eq.events) >= eq.maxSize {
		eq.events = eq.events[1:]
		eq.dropped++
	}

	eq.events = append(eq.events, event)

	sort.SliceStable(eq.events, func(i, j int) bool {
		return eq.events[i].Timestamp.Before(eq.events[j].Timestamp)
	})
}

// Pop removes and returns the oldest event.
func (eq *EventQueue) Pop() (*Event, bool) {
	eq.mu.Lock()
	defer eq.mu.Unlock()

	if len(eq.events) == 0 {
		return nil, false
	}

	event := eq.events[0]
	eq.events = eq.events[1:]
	return event, true
}

// Len returns the number of queued events.
func (eq *EventQueue) Len() int {
	eq.mu.Lock()
	defer eq.mu.Unlock()
	return len(eq.events)
}

// Dropped returns how many events were discarded because the queue was full.
func (eq *EventQueue) Dropped() int {
	eq.mu.Lock()
	defer eq.mu.Unlock()
	return eq.dropped
}

// Clear removes all events from the queue.
func (eq *EventQueue) Clear() {
	eq.mu.Lock()
	defer eq.mu.Unlock()
	eq.events = eq.events[:0]
}

// EventHandler starts a block when a matching trigger arrives.
type EventHandler struct {
	ID         string
	Type       TriggerType
	Name       string
	Block      *Block
	StartIndex int
}

// Matches reports whether ev triggers the handler. Key names compare
// case-insensitively.
func (h *EventHandler) Matches(ev *Event) bool {
	if ev.Type != h.Type {
		return false
	}
	switch h.Type {
	case TriggerStarted:
		return true
	case TriggerKey:
		key, mods := splitKeyName(h.Name)
		if !strings.EqualFold(key, ev.Name) {
			return false
		}
		for _, m := range mods {
			if v, _ := ev.GetParam(m); v != true {
				return false
			}
		}
		return true
	default:
		return h.Name == ev.Name
	}
}

// Key modifier parameters set by the front-end on key events.
const (
	ModShift   = "shift"
	ModControl = "control"
	ModAlt     = "alt"
)

// splitKeyName splits "Shift+Ctrl+M" into the key and its modifier
// parameter names.
func splitKeyName(name string) (string, []string) {
	parts := strings.Split(name, "+")
	key := strings.TrimSpace(parts[len(parts)-1])
	var mods []string
	for _, p := range parts[:len(parts)-1] {
		switch m := strings.ToLower(strings.TrimSpace(p)); m {
		case "ctrl":
			mods = append(mods, ModControl)
		default:
			mods = append(mods, m)
		}
	}
	return key, mods
}

// Handle starts the handler's block. It returns false if the block was
// already executing.
func (h *EventHandler) Handle(ev *Event) bool {
	if h.Block == nil || !h.Matches(ev) {
		return false
	}
	return h.Block.flowchart.ExecuteBlock(h.Block, h.StartIndex, nil)
}

// HandlerRegistry keeps event handlers in registration order.
type HandlerRegistry struct {
	handlers map[TriggerType][]*EventHandler
	count    int
	nextID   int
	mu       sync.RWMutex
}

// NewHandlerRegistry creates an empty handler registry.
func NewHandlerRegistry() *HandlerRegistry {
	return &HandlerRegistry{
		handlers: make(map[TriggerType][]*EventHandler),
		nextID:   1,
	}
}

// Register adds a handler and returns its ID.
func (hr *HandlerRegistry) Register(handler *EventHandler) string {
	hr.mu.Lock()
	defer hr.mu.Unlock()

	if handler.ID == "" {
		handler.ID = fmt.Sprintf("handler_%03d", hr.nextID)
		hr.nextID++
	}

	hr.handlers[handler.Type] = append(hr.handlers[handler.Type], handler)
	hr.count++
	return handler.ID
}

// Handlers returns a copy of the handlers for t in registration order.
func (hr *HandlerRegistry) Handlers(t TriggerType) []*EventHandler {
	hr.mu.RLock()
	defer hr.mu.RUnlock()

	handlers := hr.handlers[t]
	result := make([]*EventHandler, len(handlers))
	copy(result, handlers)
	return result
}

// Count returns the total number of registered handlers.
func (hr *HandlerRegistry) Count() int {
	hr.mu.RLock()
	defer hr.mu.RUnlock()
	return hr.count
}
