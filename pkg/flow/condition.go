package flow

import (
	"errors"
	"fmt"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
	"github.com/zurustar/flowrun/pkg/variable"
)

// Predicate is the condition evaluated by If, ElseIf and While.
// variable.Comparison implements it.
type Predicate interface {
	Evaluate(vars *variable.Store) (bool, error)
	// Validate runs at load time against the flowchart's variables.
	Validate(vars *variable.Store) error
}

// Expression is a Predicate written in the expr language, e.g.
// `score >= 10 && name != ""`. Variables of the flowchart are exposed by key.
type Expression struct {
	Source  string
	program *vm.Program
}

// NewExpression compiles src without type information.
func NewExpression(src string) (*Expression, error) {
	program, err := expr.Compile(src, expr.AsBool())
	if err != nil {
		return nil, fmt.Errorf("compile %q: %w", src, err)
	}
	return &Expression{Source: src, program: program}, nil
}

// Validate recompiles the expression against the variable types of vars so
// unknown names and type errors are caught before run time.
func (e *Expression) Validate(vars *variable.Store) error {
	program, err := expr.Compile(e.Source, expr.Env(vars.Values()), expr.AsBool())
	if err != nil {
		return fmt.Errorf("compile %q: %w", e.Source, err)
	}
	e.program = program
	return nil
}

// Evaluate runs the expression with the current variable values.
func (e *Expression) Evaluate(vars *variable.Store) (bool, error) {
	if e.program == nil {
		if err := e.Validate(vars); err != nil {
			return false, err
		}
	}
	out, err := expr.Run(e.program, vars.Values())
	if err != nil {
		return false, err
	}
	result, ok := out.(bool)
	if !ok {
		return false, fmt.Errorf("expression %q returned %T, want bool", e.Source, out)
	}
	return result, nil
}

func (e *Expression) String() string { return e.Source }

// condition is the evaluation shared by If, ElseIf and While.
type condition struct {
	Predicate Predicate
}

// evaluate returns the predicate result. ok is false when the predicate
// cannot be evaluated at all (missing predicate or variable); the caller
// then continues into the next command. Other evaluation errors count as
// false.
func (c *condition) evaluate(b *Base) (result, ok bool) {
	if c.Predicate == nil {
		b.SetError("no condition")
		return false, false
	}
	vars := b.Flowchart().Variables()
	result, err := c.Predicate.Evaluate(vars)
	if err != nil {
		b.SetError("%v", err)
		if errors.Is(err, variable.ErrNotFound) {
			return false, false
		}
		return false, true
	}
	return result, true
}

// If enters its body when the predicate holds, otherwise continues at the
// next Else, ElseIf or End on its indent level.
type If struct {
	Base
	condition
}

// NewIf creates an If.
func NewIf(p Predicate) *If { return &If{condition: condition{Predicate: p}} }

func (c *If) OnEnter() {
	evaluateAndContinue(&c.Base, &c.condition)
}

func (c *If) OpenBlock() bool { return true }

// ElseIf evaluates like If when reached from the previous condition of its
// chain, and skips to the chain's End when reached from a finished branch.
type ElseIf struct {
	Base
	condition
}

// NewElseIf creates an ElseIf.
func NewElseIf(p Predicate) *ElseIf { return &ElseIf{condition: condition{Predicate: p}} }

func (c *ElseIf) OnEnter() {
	prev := c.parent.PreviousActiveCommand()
	if prev != nil && prev.Indent() == c.indent {
		switch KindOf(prev) {
		case KindIf, KindElseIf:
			evaluateAndContinue(&c.Base, &c.condition)
			return
		}
	}

	if c.index >= c.parent.Len()-1 {
		c.StopParentBlock()
		return
	}
	end := c.parent.findSibling(c.index+1, c.indent, isKind(KindEnd))
	if end == nil {
		c.SetError("%s", NewUnmatchedControlError("ElseIf", "End").Message)
		c.StopParentBlock()
		return
	}
	c.continueAfter(end)
}

func (c *ElseIf) OpenBlock() bool  { return true }
func (c *ElseIf) CloseBlock() bool { return true }

func evaluateAndContinue(b *Base, cond *condition) {
	result, ok := cond.evaluate(b)
	if !ok || result {
		b.Continue()
		return
	}
	onFalse(b)
}

func onFalse(b *Base) {
	next := b.parent.findSibling(b.index+1, b.indent, isKind(KindElse, KindElseIf, KindEnd))
	if next == nil {
		b.SetError("%s", NewUnmatchedControlError("condition", "Else, ElseIf or End").Message)
		b.StopParentBlock()
		return
	}
	if KindOf(next) == KindElseIf {
		b.ContinueAt(next.Index())
		return
	}
	b.continueAfter(next)
}

// While repeats its body while the predicate holds. The matching End jumps
// back to the While after each pass.
type While struct {
	Base
	condition
}

// NewWhile creates a While.
func NewWhile(p Predicate) *While { return &While{condition: condition{Predicate: p}} }

func (w *While) OnEnter() {
	end, _ := w.parent.findSibling(w.index+1, w.indent, isKind(KindEnd)).(*End)

	result, ok := w.evaluate(&w.Base)
	if !ok || result {
		if end != nil && ok {
			end.loop = true
		}
		w.Continue()
		return
	}

	if end == nil {
		w.SetError("%s", NewUnmatchedControlError("While", "End").Message)
		w.StopParentBlock()
		return
	}
	w.continueAfter(end)
}

func (w *While) OpenBlock() bool { return true }
