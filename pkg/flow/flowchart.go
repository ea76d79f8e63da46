package flow

import (
	"log/slog"
	"time"

	"github.com/zurustar/flowrun/pkg/variable"
)

// TriggerListener receives every event dispatched to a flowchart after its
// own event handlers and decides for itself whether to start a block.
type TriggerListener interface {
	HandleEvent(fc *Flowchart, ev *Event)
}

// TriggerListenerFunc adapts a function to TriggerListener.
type TriggerListenerFunc func(fc *Flowchart, ev *Event)

// HandleEvent calls f.
func (f TriggerListenerFunc) HandleEvent(fc *Flowchart, ev *Event) { f(fc, ev) }

// Flowchart owns a set of blocks and a variable table, and starts blocks
// in response to triggers.
type Flowchart struct {
	name     string
	registry *Registry
	blocks   []*Block
	byName   map[string]*Block
	vars     *variable.Store

	handlers  *HandlerRegistry
	listeners []TriggerListener

	// selected is the block a viewer should follow. It has no effect on
	// control flow.
	selected *Block
}

// NewFlowchart creates a flowchart with a registry of its own.
func NewFlowchart(name string, opts ...Option) *Flowchart {
	fc, _ := NewRegistry(opts...).NewFlowchart(name)
	return fc
}

// Name returns the flowchart name.
func (fc *Flowchart) Name() string { return fc.name }

// Registry returns the registry the flowchart belongs to.
func (fc *Flowchart) Registry() *Registry { return fc.registry }

// Variables returns the variable table.
func (fc *Flowchart) Variables() *variable.Store { return fc.vars }

func (fc *Flowchart) logger() *slog.Logger { return fc.registry.log }

func (fc *Flowchart) stepBudget() int { return fc.registry.stepBudget }

// AddBlock creates a block holding cmds.
func (fc *Flowchart) AddBlock(name string, cmds ...Command) (*Block, error) {
	if _, ok := fc.byName[name]; ok {
		e := NewRuntimeError(ErrorInvalidOperation, "duplicate block name: "+name)
		e.Flowchart = fc.name
		return nil, e
	}
	b := newBlock(name, fc)
	if err := b.AddCommand(cmds...); err != nil {
		return nil, err
	}
	fc.blocks = append(fc.blocks, b)
	fc.byName[name] = b
	return b, nil
}

// Blocks returns the blocks in creation order.
func (fc *Flowchart) Blocks() []*Block {
	out := make([]*Block, len(fc.blocks))
	copy(out, fc.blocks)
	return out
}

// FindBlock returns the block named name, or nil.
func (fc *Flowchart) FindBlock(name string) *Block {
	return fc.byName[name]
}

// AddHandler registers a trigger that starts block.
func (fc *Flowchart) AddHandler(t TriggerType, name string, block *Block) *EventHandler {
	h := &EventHandler{Type: t, Name: name, Block: block}
	fc.handlers.Register(h)
	return h
}

// Handlers returns the handler registry.
func (fc *Flowchart) Handlers() *HandlerRegistry { return fc.handlers }

// AddTriggerListener registers an external listener.
func (fc *Flowchart) AddTriggerListener(l TriggerListener) {
	fc.listeners = append(fc.listeners, l)
}

// ExecuteBlock starts b at index. It returns false if b is executing or
// does not belong to this flowchart.
func (fc *Flowchart) ExecuteBlock(b *Block, index int, onComplete func()) bool {
	if b == nil {
		return false
	}
	if b.flowchart != fc {
		fc.logger().Warn("Block belongs to another flowchart", "flowchart", fc.name, "block", b.name)
		return false
	}
	if !b.Execute(index, onComplete) {
		fc.logger().Debug("Block busy", "flowchart", fc.name, "block", b.name)
		return false
	}
	return true
}

// ExecuteBlockByName starts the named block at index.
func (fc *Flowchart) ExecuteBlockByName(name string, index int, onComplete func()) error {
	b := fc.FindBlock(name)
	if b == nil {
		return NewBlockNotFoundError(fc.name, name)
	}
	if !fc.ExecuteBlock(b, index, onComplete) {
		return NewBlockBusyError(b)
	}
	return nil
}

// StopBlock stops b if it is executing.
func (fc *Flowchart) StopBlock(b *Block) {
	if b != nil && b.flowchart == fc {
		b.Stop()
	}
}

// StopAllBlocks stops every executing block of the flowchart.
func (fc *Flowchart) StopAllBlocks() {
	StopBlocks(fc.Blocks())
}

// IsExecuting reports whether b is executing.
func (fc *Flowchart) IsExecuting(b *Block) bool {
	return b != nil && b.IsExecuting()
}

// HasExecutingBlocks reports whether any block is executing.
func (fc *Flowchart) HasExecutingBlocks() bool {
	for _, b := range fc.blocks {
		if b.IsExecuting() {
			return true
		}
	}
	return false
}

// ExecutingBlocks returns the executing blocks in creation order.
func (fc *Flowchart) ExecutingBlocks() []*Block {
	var out []*Block
	for _, b := range fc.blocks {
		if b.IsExecuting() {
			out = append(out, b)
		}
	}
	return out
}

// SendMessage delivers a message trigger to this flowchart only.
func (fc *Flowchart) SendMessage(message string) {
	fc.logger().Debug("Send message", "flowchart", fc.name, "message", message)
	ev := NewEvent(TriggerMessage, message)
	ev.Flowchart = fc.name
	fc.Dispatch(ev)
}

// Dispatch runs ev through the handlers in registration order, then the
// external listeners. It returns the number of blocks started.
func (fc *Flowchart) Dispatch(ev *Event) int {
	started := 0
	for _, h := range fc.handlers.Handlers(ev.Type) {
		if h.Handle(ev) {
			started++
		}
	}
	for _, l := range fc.listeners {
		l.HandleEvent(fc, ev)
	}
	return started
}

// Reset restores authored command state and/or variable start values.
func (fc *Flowchart) Reset(resetCommands, resetVariables bool) {
	if resetCommands {
		for _, b := range fc.blocks {
			for _, c := range b.commands {
				c.OnReset()
			}
		}
	}
	if resetVariables {
		fc.vars.Reset()
	}
}

// SubstituteVariables replaces {$Key} tokens using this flowchart's
// variables first, then the public variables of the other flowcharts, then
// the registry's extra resolvers.
func (fc *Flowchart) SubstituteVariables(text string) string {
	if !variable.HasTokens(text) {
		return text
	}
	resolvers := []variable.Resolver{fc.vars}
	for _, other := range fc.registry.flowcharts {
		if other != fc {
			resolvers = append(resolvers, other.vars.PublicResolver())
		}
	}
	resolvers = append(resolvers, fc.registry.resolvers...)
	return variable.Substitute(text, resolvers...)
}

// SelectedBlock returns the block a viewer should follow.
func (fc *Flowchart) SelectedBlock() *Block { return fc.selected }

// SetSelectedBlock changes the followed block.
func (fc *Flowchart) SetSelectedBlock(b *Block) { fc.selected = b }

// After schedules fn on the registry clock.
func (fc *Flowchart) After(d time.Duration, fn func()) (cancel func()) {
	return fc.registry.After(d, fn)
}

// Tick resumes blocks that yielded on their step budget.
func (fc *Flowchart) Tick() {
	for _, b := range fc.Blocks() {
		b.Tick()
	}
}
