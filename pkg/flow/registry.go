package flow

import (
	"log/slog"
	"sync"
	"time"

	"github.com/zurustar/flowrun/pkg/logger"
	"github.com/zurustar/flowrun/pkg/variable"
)

// Option configures a Registry.
type Option func(*Registry)

// WithLogger sets the logger used by the registry and its flowcharts.
func WithLogger(l *slog.Logger) Option {
	return func(r *Registry) {
		if l != nil {
			r.log = l
		}
	}
}

// WithStepBudget sets how many commands a block may enter per Tick.
func WithStepBudget(n int) Option {
	return func(r *Registry) {
		if n > 0 {
			r.stepBudget = n
		}
	}
}

// WithObserver adds an execution observer.
func WithObserver(o Observer) Option {
	return func(r *Registry) {
		if o != nil {
			r.observers = append(r.observers, o)
		}
	}
}

// WithQueueSize sets the event queue capacity.
func WithQueueSize(n int) Option {
	return func(r *Registry) {
		r.queue = NewEventQueue(n)
	}
}

// Registry is the service shared by a set of flowcharts: name lookup,
// global variables, broadcast messaging, the event queue and a virtual
// clock for timers. All methods except Post and Invoke must be called from
// the driver goroutine.
type Registry struct {
	log        *slog.Logger
	stepBudget int

	flowcharts []*Flowchart
	byName     map[string]*Flowchart
	globals    *variable.Globals
	observers  []Observer
	resolvers  []variable.Resolver
	queue      *EventQueue
	started    bool

	now       time.Duration
	timers    []*timer
	nextTimer int

	invokeMu sync.Mutex
	invokes  []func()
}

type timer struct {
	id  int
	due time.Duration
	fn  func()
}

// NewRegistry creates an empty registry.
func NewRegistry(opts ...Option) *Registry {
	r := &Registry{
		log:        logger.GetLogger(),
		stepBudget: DefaultStepBudget,
		byName:     make(map[string]*Flowchart),
		globals:    variable.NewGlobals(),
		queue:      NewEventQueue(DefaultQueueSize),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Logger returns the registry logger.
func (r *Registry) Logger() *slog.Logger { return r.log }

// StepBudget returns the per-tick command budget of each block.
func (r *Registry) StepBudget() int { return r.stepBudget }

// NewFlowchart creates and registers an empty flowchart.
func (r *Registry) NewFlowchart(name string) (*Flowchart, error) {
	if _, ok := r.byName[name]; ok {
		e := NewRuntimeError(ErrorDuplicateFlowchart, "flowchart already registered")
		e.Flowchart = name
		return nil, e
	}
	vars := variable.NewStore()
	if err := vars.SetGlobals(r.globals); err != nil {
		return nil, err
	}
	fc := &Flowchart{
		name:     name,
		registry: r,
		byName:   make(map[string]*Block),
		vars:     vars,
		handlers: NewHandlerRegistry(),
	}
	r.flowcharts = append(r.flowcharts, fc)
	r.byName[name] = fc
	return fc, nil
}

// Flowchart returns the flowchart registered under name.
func (r *Registry) Flowchart(name string) (*Flowchart, bool) {
	fc, ok := r.byName[name]
	return fc, ok
}

// Flowcharts returns all flowcharts in registration order.
func (r *Registry) Flowcharts() []*Flowchart {
	out := make([]*Flowchart, len(r.flowcharts))
	copy(out, r.flowcharts)
	return out
}

// Globals returns the global variable table.
func (r *Registry) Globals() *variable.Globals { return r.globals }

// AddObserver adds an execution observer.
func (r *Registry) AddObserver(o Observer) {
	r.observers = append(r.observers, o)
}

// AddResolver adds a substitution source consulted after every flowchart.
func (r *Registry) AddResolver(res variable.Resolver) {
	r.resolvers = append(r.resolvers, res)
}

func (r *Registry) notify(fn func(Observer)) {
	for _, o := range r.observers {
		fn(o)
	}
}

// Start delivers the started trigger to every flowchart. Later calls do
// nothing.
func (r *Registry) Start() {
	if r.started {
		return
	}
	r.started = true
	r.dispatch(NewEvent(TriggerStarted, ""))
}

// Broadcast sends a message to every flowchart immediately.
func (r *Registry) Broadcast(message string) {
	r.log.Debug("Broadcast message", "message", message)
	r.dispatch(NewEvent(TriggerMessage, message))
}

// Post queues an event for the next ProcessEvents. Safe for concurrent use.
func (r *Registry) Post(ev *Event) {
	r.queue.Push(ev)
}

// Queue returns the event queue.
func (r *Registry) Queue() *EventQueue { return r.queue }

// ProcessEvents dispatches every queued event in timestamp order and
// returns how many were processed.
func (r *Registry) ProcessEvents() int {
	n := 0
	for {
		ev, ok := r.queue.Pop()
		if !ok {
			return n
		}
		r.dispatch(ev)
		n++
	}
}

func (r *Registry) dispatch(ev *Event) {
	if ev.Flowchart != "" {
		fc, ok := r.byName[ev.Flowchart]
		if !ok {
			r.log.Warn("Event for unknown flowchart", "flowchart", ev.Flowchart, "type", ev.Type, "name", ev.Name)
			return
		}
		fc.Dispatch(ev)
		return
	}
	for _, fc := range r.Flowcharts() {
		fc.Dispatch(ev)
	}
}

// Invoke schedules fn to run on the driver goroutine during the next
// RunInvoked. Safe for concurrent use.
func (r *Registry) Invoke(fn func()) {
	r.invokeMu.Lock()
	r.invokes = append(r.invokes, fn)
	r.invokeMu.Unlock()
}

// RunInvoked runs the functions passed to Invoke and returns how many ran.
func (r *Registry) RunInvoked() int {
	r.invokeMu.Lock()
	fns := r.invokes
	r.invokes = nil
	r.invokeMu.Unlock()

	for _, fn := range fns {
		fn()
	}
	return len(fns)
}

func (r *Registry) pendingInvokes() int {
	r.invokeMu.Lock()
	defer r.invokeMu.Unlock()
	return len(r.invokes)
}

// Now returns the virtual clock.
func (r *Registry) Now() time.Duration { return r.now }

// After calls fn once the virtual clock has advanced by d. The returned
// function cancels the timer.
func (r *Registry) After(d time.Duration, fn func()) (cancel func()) {
	if d < 0 {
		d = 0
	}
	t := &timer{id: r.nextTimer, due: r.now + d, fn: fn}
	r.nextTimer++
	r.timers = append(r.timers, t)
	return func() { r.removeTimer(t) }
}

func (r *Registry) removeTimer(t *timer) {
	for i, x := range r.timers {
		if x == t {
			r.timers = append(r.timers[:i], r.timers[i+1:]...)
			return
		}
	}
}

// PendingTimers returns the number of timers that have not fired.
func (r *Registry) PendingTimers() int { return len(r.timers) }

// Advance moves the virtual clock forward by dt and fires every timer that
// has become due, earliest first.
func (r *Registry) Advance(dt time.Duration) {
	if dt > 0 {
		r.now += dt
	}
	for {
		var next *timer
		for _, t := range r.timers {
			if t.due > r.now {
				continue
			}
			if next == nil || t.due < next.due || (t.due == next.due && t.id < next.id) {
				next = t
			}
		}
		if next == nil {
			return
		}
		r.removeTimer(next)
		next.fn()
	}
}

// Tick resumes every block that yielded on its step budget.
func (r *Registry) Tick() {
	for _, fc := range r.Flowcharts() {
		fc.Tick()
	}
}

// HasExecutingBlocks reports whether any block of any flowchart is running.
func (r *Registry) HasExecutingBlocks() bool {
	for _, fc := range r.flowcharts {
		if fc.HasExecutingBlocks() {
			return true
		}
	}
	return false
}

// Busy reports whether anything remains to be driven: executing blocks,
// pending timers, queued events or invoked callbacks.
func (r *Registry) Busy() bool {
	return r.HasExecutingBlocks() || len(r.timers) > 0 || r.queue.Len() > 0 || r.pendingInvokes() > 0
}

// StopAll stops every block of every flowchart and discards queued
// events.
func (r *Registry) StopAll() {
	var blocks []*Block
	for _, fc := range r.Flowcharts() {
		blocks = append(blocks, fc.Blocks()...)
	}
	StopBlocks(blocks)
	if n := r.queue.Len(); n > 0 {
		r.log.Debug("Discarding queued events", "count", n)
		r.queue.Clear()
	}
}
