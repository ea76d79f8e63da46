package flow

import (
	"fmt"
	"testing"

	"github.com/zurustar/flowrun/pkg/logger"
	"github.com/zurustar/flowrun/pkg/variable"
)

// setVar applies "key op value" and continues.
type setVar struct {
	Base
	key   string
	op    variable.SetOperator
	value any
}

func set(key string, value any) *setVar { return &setVar{key: key, op: variable.Assign, value: value} }
func inc(key string) *setVar            { return &setVar{key: key, op: variable.Add, value: 1} }

func (s *setVar) OnEnter() {
	v, ok := s.Flowchart().Variables().Get(s.key)
	if !ok {
		s.SetError("no variable %s", s.key)
	} else if err := v.Apply(s.op, s.value); err != nil {
		s.SetError("%v", err)
	}
	s.Continue()
}

// suspend never continues on its own. The test drives it.
type suspend struct {
	Base
	stops int
	exits int
}

func (s *suspend) OnEnter() {}
func (s *suspend) OnStop()  { s.stops++ }
func (s *suspend) OnExit()  { s.exits++ }

// trace records every command entered, as "Kind@index" or the setVar key.
type trace struct {
	NopObserver
	entries  []string
	started  []string
	finished []string
	errors   []string
}

func (t *trace) CommandStarted(c Command) {
	if s, ok := c.(*setVar); ok {
		t.entries = append(t.entries, fmt.Sprintf("%s@%d", s.key, c.Index()))
		return
	}
	t.entries = append(t.entries, fmt.Sprintf("%s@%d", KindOf(c), c.Index()))
}

func (t *trace) BlockStarted(b *Block)  { t.started = append(t.started, b.Name()) }
func (t *trace) BlockFinished(b *Block) { t.finished = append(t.finished, b.Name()) }
func (t *trace) CommandError(c Command, msg string) {
	t.errors = append(t.errors, msg)
}

type fixture struct {
	t     *testing.T
	fc    *Flowchart
	trace *trace
}

func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()
	tr := &trace{}
	opts = append([]Option{WithLogger(logger.Discard()), WithObserver(tr)}, opts...)
	return &fixture{t: t, fc: NewFlowchart("test", opts...), trace: tr}
}

func (f *fixture) declare(key string, typ variable.Type, value any) *variable.Variable {
	f.t.Helper()
	v, err := f.fc.Variables().Declare(key, typ, variable.Private, value)
	if err != nil {
		f.t.Fatalf("Declare(%s): %v", key, err)
	}
	return v
}

func (f *fixture) value(key string) any {
	f.t.Helper()
	v, ok := f.fc.Variables().Get(key)
	if !ok {
		f.t.Fatalf("variable %s not declared", key)
	}
	return v.Value()
}

// block builds a block from (command, indent) pairs.
func (f *fixture) block(name string, cmds ...any) *Block {
	f.t.Helper()
	if len(cmds)%2 != 0 {
		f.t.Fatal("block: commands must be (Command, indent) pairs")
	}
	var list []Command
	for i := 0; i < len(cmds); i += 2 {
		c := cmds[i].(Command)
		c.SetIndent(cmds[i+1].(int))
		list = append(list, c)
	}
	b, err := f.fc.AddBlock(name, list...)
	if err != nil {
		f.t.Fatalf("AddBlock(%s): %v", name, err)
	}
	return b
}

func cmp(key string, op variable.CompareOperator, value any) variable.Comparison {
	return variable.Comparison{Key: key, Op: op, Operand: variable.Literal(value)}
}

func eq(key string, value any) variable.Comparison { return cmp(key, variable.Equals, value) }

func disabled(c Command) Command {
	c.SetEnabled(false)
	return c
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
