// Package flow implements the command execution engine: blocks of
// indent-annotated commands, the structured control-flow family resolved by
// sibling scans, cross-block calls, and the flowchart container that starts
// blocks in response to triggers.
package flow

import (
	"fmt"
	"strings"
)

// Command is one executable step of a Block.
//
// Implementations embed Base, which supplies the bookkeeping fields, the
// Continue/Stop callbacks and no-op lifecycle hooks. A command must
// eventually call Continue, ContinueAt or StopParentBlock after OnEnter,
// either synchronously or from a later callback; otherwise its block stays
// suspended.
type Command interface {
	Index() int
	Indent() int
	SetIndent(level int)
	Enabled() bool
	SetEnabled(enabled bool)
	ErrorMessage() string
	ParentBlock() *Block
	IsExecuting() bool

	// OnEnter is called once when the block reaches the command.
	OnEnter()
	// OnExit is called when the command continues to another index.
	OnExit()
	// OnStop is called when the block is stopped while the command is active.
	// Pending asynchronous work must be released here.
	OnStop()
	// OnReset restores authored defaults.
	OnReset()

	// OpenBlock and CloseBlock describe indentation for authoring tools only.
	// The run loop never consults them.
	OpenBlock() bool
	CloseBlock() bool

	base() *Base
}

// Base carries the state every command shares. Embed it by value.
type Base struct {
	index        int
	indent       int
	disabled     bool
	errorMessage string
	parent       *Block
	executing    bool
}

func (b *Base) base() *Base { return b }

// Index returns the position of the command in its block.
func (b *Base) Index() int { return b.index }

// Indent returns the indent level.
func (b *Base) Indent() int { return b.indent }

// SetIndent sets the indent level. Negative values are clamped to zero.
func (b *Base) SetIndent(level int) {
	if level < 0 {
		level = 0
	}
	b.indent = level
}

// Enabled reports whether the command takes part in execution.
func (b *Base) Enabled() bool { return !b.disabled }

// SetEnabled enables or disables the command.
func (b *Base) SetEnabled(enabled bool) { b.disabled = !enabled }

// ErrorMessage returns the last diagnostic recorded for the command.
func (b *Base) ErrorMessage() string { return b.errorMessage }

// ParentBlock returns the owning block, or nil if the command is detached.
func (b *Base) ParentBlock() *Block { return b.parent }

// IsExecuting reports whether the command is the suspended active command.
func (b *Base) IsExecuting() bool { return b.executing }

// Flowchart returns the flowchart owning the parent block.
func (b *Base) Flowchart() *Flowchart {
	if b.parent == nil {
		return nil
	}
	return b.parent.flowchart
}

// Continue resumes the block at the next command.
func (b *Base) Continue() { b.ContinueAt(b.index + 1) }

// ContinueAt resumes the block at index. It is ignored unless the command is
// currently executing, so late callbacks from stopped commands are harmless.
func (b *Base) ContinueAt(index int) {
	if !b.executing || b.parent == nil {
		return
	}
	b.parent.resume(b, index)
}

// StopParentBlock stops the owning block.
func (b *Base) StopParentBlock() {
	if b.parent != nil {
		b.parent.Stop()
	}
}

// SetError records a non-fatal diagnostic and reports it to observers.
func (b *Base) SetError(format string, args ...any) {
	b.errorMessage = fmt.Sprintf(format, args...)
	if b.parent != nil {
		b.parent.reportError(b)
	}
}

// ClearError removes the diagnostic.
func (b *Base) ClearError() { b.errorMessage = "" }

func (b *Base) OnEnter()         { b.Continue() }
func (b *Base) OnExit()          {}
func (b *Base) OnStop()          {}
func (b *Base) OnReset()         {}
func (b *Base) OpenBlock() bool  { return false }
func (b *Base) CloseBlock() bool { return false }

// Kind identifies the control-flow family. Every command outside the family
// is an Action.
type Kind int

const (
	KindAction Kind = iota
	KindComment
	KindLabel
	KindJump
	KindIf
	KindElseIf
	KindElse
	KindEnd
	KindWhile
	KindBreak
	KindCall
)

func (k Kind) String() string {
	switch k {
	case KindAction:
		return "Action"
	case KindComment:
		return "Comment"
	case KindLabel:
		return "Label"
	case KindJump:
		return "Jump"
	case KindIf:
		return "If"
	case KindElseIf:
		return "ElseIf"
	case KindElse:
		return "Else"
	case KindEnd:
		return "End"
	case KindWhile:
		return "While"
	case KindBreak:
		return "Break"
	case KindCall:
		return "Call"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// KindOf classifies c.
func KindOf(c Command) Kind {
	switch c.(type) {
	case *Comment:
		return KindComment
	case *Label:
		return KindLabel
	case *Jump:
		return KindJump
	case *If:
		return KindIf
	case *ElseIf:
		return KindElseIf
	case *Else:
		return KindElse
	case *End:
		return KindEnd
	case *While:
		return KindWhile
	case *Break:
		return KindBreak
	case *Call:
		return KindCall
	default:
		return KindAction
	}
}

// CommandName returns the bare type name of c, e.g. "Say".
func CommandName(c Command) string {
	name := fmt.Sprintf("%T", c)
	if i := strings.LastIndex(name, "."); i >= 0 {
		name = name[i+1:]
	}
	return strings.TrimPrefix(name, "*")
}

// isMarker reports whether c is skipped by the run loop and by sibling scans.
func isMarker(c Command) bool {
	switch KindOf(c) {
	case KindComment, KindLabel:
		return true
	}
	return false
}

// skippable reports whether the run loop steps over c without entering it.
func skippable(c Command) bool {
	return !c.Enabled() || isMarker(c)
}
