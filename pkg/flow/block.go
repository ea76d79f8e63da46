package flow

import (
	"fmt"
	"math"
	"time"
)

// ExecutionState is the run state of a Block.
type ExecutionState int

const (
	Idle ExecutionState = iota
	Executing
)

func (s ExecutionState) String() string {
	if s == Executing {
		return "Executing"
	}
	return "Idle"
}

// DefaultStepBudget is the number of commands a block may enter in one
// pass of its run loop before yielding until the next Tick.
const DefaultStepBudget = 1000

const (
	noJump    = -1
	stopIndex = math.MaxInt
)

// Block is a named, ordered command list with its own run loop.
type Block struct {
	name      string
	flowchart *Flowchart
	commands  []Command

	state           ExecutionState
	active          Command
	previous        Command
	last            Command
	prevActiveIndex int
	jumpTo          int
	index           int
	executionCount  int
	stopped         bool
	running         bool
	startedAt       time.Duration

	onComplete    func()
	idleListeners []idleListener
	nextListener  int
}

type idleListener struct {
	id int
	fn func()
}

func newBlock(name string, fc *Flowchart) *Block {
	return &Block{
		name:            name,
		flowchart:       fc,
		prevActiveIndex: -1,
		jumpTo:          noJump,
	}
}

// Name returns the block name.
func (b *Block) Name() string { return b.name }

// Flowchart returns the owning flowchart.
func (b *Block) Flowchart() *Flowchart { return b.flowchart }

// Commands returns the command list. The slice must not be modified.
func (b *Block) Commands() []Command { return b.commands }

// Len returns the number of commands.
func (b *Block) Len() int { return len(b.commands) }

// Command returns the command at index i, or nil if out of range.
func (b *Block) Command(i int) Command {
	if i < 0 || i >= len(b.commands) {
		return nil
	}
	return b.commands[i]
}

// State returns the execution state.
func (b *Block) State() ExecutionState { return b.state }

// IsExecuting reports whether the run loop is active.
func (b *Block) IsExecuting() bool { return b.state == Executing }

// ActiveCommand returns the command currently executing, or nil.
func (b *Block) ActiveCommand() Command { return b.active }

// PreviousActiveCommand returns the command executed before the active one
// in the current run, or nil.
func (b *Block) PreviousActiveCommand() Command { return b.previous }

// PreviousActiveCommandIndex returns the index of PreviousActiveCommand, or -1.
func (b *Block) PreviousActiveCommandIndex() int { return b.prevActiveIndex }

// ExecutionCount returns how many times the block has been started.
func (b *Block) ExecutionCount() int { return b.executionCount }

// StartedAt returns the registry clock time of the current or last start.
func (b *Block) StartedAt() time.Duration { return b.startedAt }

// WasStopped reports whether the last run ended through Stop.
func (b *Block) WasStopped() bool { return b.stopped }

// AddCommand appends commands to the list.
func (b *Block) AddCommand(cmds ...Command) error {
	return b.InsertCommand(len(b.commands), cmds...)
}

// InsertCommand inserts commands at position i and renumbers the list.
func (b *Block) InsertCommand(i int, cmds ...Command) error {
	if b.state == Executing {
		return NewRuntimeError(ErrorInvalidOperation, "cannot edit an executing block").at(b, i)
	}
	if i < 0 || i > len(b.commands) {
		return NewRuntimeError(ErrorInvalidOperation, fmt.Sprintf("insert position %d out of range", i)).at(b, i)
	}
	for _, c := range cmds {
		if c == nil {
			return NewRuntimeError(ErrorInvalidOperation, "nil command").at(b, i)
		}
		if p := c.ParentBlock(); p != nil {
			return NewRuntimeError(ErrorInvalidOperation, "command already belongs to block "+p.name).at(b, i)
		}
	}

	list := make([]Command, 0, len(b.commands)+len(cmds))
	list = append(list, b.commands[:i]...)
	list = append(list, cmds...)
	list = append(list, b.commands[i:]...)
	b.commands = list
	b.renumber()
	return nil
}

// RemoveCommand removes the command at position i and renumbers the list.
func (b *Block) RemoveCommand(i int) error {
	if b.state == Executing {
		return NewRuntimeError(ErrorInvalidOperation, "cannot edit an executing block").at(b, i)
	}
	if i < 0 || i >= len(b.commands) {
		return NewRuntimeError(ErrorInvalidOperation, fmt.Sprintf("remove position %d out of range", i)).at(b, i)
	}
	b.commands[i].base().parent = nil
	b.commands = append(b.commands[:i], b.commands[i+1:]...)
	b.renumber()
	return nil
}

func (b *Block) renumber() {
	for i, c := range b.commands {
		base := c.base()
		base.index = i
		base.parent = b
	}
}

// UpdateIndentLevels recomputes every indent level from the OpenBlock and
// CloseBlock metadata, the way an authoring tool auto-indents. It is not
// part of execution.
func (b *Block) UpdateIndentLevels() {
	level := 0
	for _, c := range b.commands {
		if c.CloseBlock() {
			level--
		}
		if level < 0 {
			level = 0
		}
		c.SetIndent(level)
		if c.OpenBlock() {
			level++
		}
	}
}

// Execute starts the run loop at start. It returns false without touching
// any state if the block is already executing. onComplete, if non-nil, is
// called once when this run reaches Idle.
func (b *Block) Execute(start int, onComplete func()) bool {
	log := b.flowchart.logger()
	if b.state == Executing {
		log.Debug("Block already executing", "flowchart", b.flowchart.name, "block", b.name)
		return false
	}
	if start < 0 {
		start = 0
	}

	b.state = Executing
	b.executionCount++
	b.stopped = false
	b.active = nil
	b.previous = nil
	b.last = nil
	b.prevActiveIndex = -1
	b.jumpTo = start
	b.onComplete = onComplete
	b.startedAt = b.flowchart.registry.Now()

	log.Debug("Block started", "flowchart", b.flowchart.name, "block", b.name, "index", start, "count", b.executionCount)
	b.flowchart.registry.notify(func(o Observer) { o.BlockStarted(b) })

	b.run()
	return true
}

// Stop ends the current run. The active command, if any, receives OnStop
// exactly once. Stopping an idle block does nothing.
func (b *Block) Stop() {
	if b.markStopped() {
		b.run()
	}
}

// markStopped moves an executing block to the stop index and stops its
// active command without finishing the run. It reports whether the block
// still has to finish.
func (b *Block) markStopped() bool {
	if b.state != Executing || b.jumpTo == stopIndex {
		return false
	}
	a := b.active
	b.active = nil
	b.jumpTo = stopIndex
	b.stopped = true
	if a != nil {
		a.base().executing = false
		a.OnStop()
	}
	return true
}

// StopBlocks stops blocks in two passes. Every block is marked stopped
// before the first one finishes, so a completion callback never resumes a
// caller that is part of the same stop.
func StopBlocks(blocks []*Block) {
	var marked []*Block
	for _, b := range blocks {
		if b.markStopped() {
			marked = append(marked, b)
		}
	}
	for _, b := range marked {
		b.run()
	}
}

// NotifyIdle registers fn to be called the next time the block reaches
// Idle, or immediately if it is idle now. The returned function cancels
// the registration.
func (b *Block) NotifyIdle(fn func()) (cancel func()) {
	if b.state == Idle {
		fn()
		return func() {}
	}
	id := b.nextListener
	b.nextListener++
	b.idleListeners = append(b.idleListeners, idleListener{id: id, fn: fn})
	return func() {
		for i, l := range b.idleListeners {
			if l.id == id {
				b.idleListeners = append(b.idleListeners[:i], b.idleListeners[i+1:]...)
				return
			}
		}
	}
}

// Tick resumes a run that yielded because its step budget ran out.
func (b *Block) Tick() {
	if b.state == Executing && b.active == nil && !b.running {
		b.run()
	}
}

func (b *Block) resume(cmd *Base, next int) {
	if b.active == nil || b.active.base() != cmd {
		return
	}
	a := b.active
	b.active = nil
	cmd.executing = false
	a.OnExit()
	if b.jumpTo != stopIndex {
		b.jumpTo = next
	}
	b.run()
}

func (b *Block) run() {
	if b.running || b.state != Executing {
		return
	}
	b.running = true
	done := b.loop()
	b.running = false
	if done {
		b.finish()
	}
}

// loop advances through the list until a command suspends, the step budget
// is spent, or the run ends. It returns true when the run has ended.
func (b *Block) loop() bool {
	budget := b.flowchart.stepBudget()
	for {
		if b.active != nil {
			return false
		}
		if b.jumpTo == stopIndex {
			return true
		}
		if b.jumpTo != noJump {
			b.index = b.jumpTo
			b.jumpTo = noJump
		}

		for b.index < len(b.commands) && skippable(b.commands[b.index]) {
			b.index++
		}
		if b.index < 0 || b.index >= len(b.commands) {
			return true
		}

		if budget == 0 {
			b.jumpTo = b.index
			return false
		}
		budget--

		cmd := b.commands[b.index]
		b.previous = b.last
		if b.previous != nil {
			b.prevActiveIndex = b.previous.Index()
		} else {
			b.prevActiveIndex = -1
		}
		b.active = cmd
		b.last = cmd
		base := cmd.base()
		base.executing = true
		base.errorMessage = ""

		b.flowchart.registry.notify(func(o Observer) { o.CommandStarted(cmd) })
		cmd.OnEnter()
	}
}

func (b *Block) finish() {
	b.state = Idle
	b.active = nil
	b.jumpTo = noJump

	b.flowchart.logger().Debug("Block finished", "flowchart", b.flowchart.name, "block", b.name, "stopped", b.stopped)
	b.flowchart.registry.notify(func(o Observer) { o.BlockFinished(b) })

	cb := b.onComplete
	b.onComplete = nil
	listeners := b.idleListeners
	b.idleListeners = nil

	if cb != nil {
		cb()
	}
	for _, l := range listeners {
		l.fn()
	}
}

func (b *Block) reportError(cmd *Base) {
	c := b.Command(cmd.index)
	if c == nil || c.base() != cmd {
		return
	}
	b.flowchart.logger().Warn("Command error",
		"flowchart", b.flowchart.name, "block", b.name, "index", cmd.index,
		"command", CommandName(c), "error", cmd.errorMessage)
	b.flowchart.registry.notify(func(o Observer) { o.CommandError(c, cmd.errorMessage) })
}
