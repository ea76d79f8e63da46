package commands

import (
	"errors"
	"testing"

	"github.com/zurustar/flowrun/pkg/flow"
	"github.com/zurustar/flowrun/pkg/logger"
	"github.com/zurustar/flowrun/pkg/variable"
)

type errorLog struct {
	flow.NopObserver
	messages []string
}

func (e *errorLog) CommandError(c flow.Command, msg string) {
	e.messages = append(e.messages, flow.CommandName(c)+": "+msg)
}

type fixture struct {
	t      *testing.T
	reg    *flow.Registry
	fc     *flow.Flowchart
	errors *errorLog
}

func newFixture(t *testing.T, opts ...flow.Option) *fixture {
	t.Helper()
	errs := &errorLog{}
	opts = append([]flow.Option{flow.WithLogger(logger.Discard()), flow.WithObserver(errs)}, opts...)
	reg := flow.NewRegistry(opts...)
	fc, err := reg.NewFlowchart("main")
	if err != nil {
		t.Fatal(err)
	}
	return &fixture{t: t, reg: reg, fc: fc, errors: errs}
}

func (f *fixture) flowchart(name string) *flow.Flowchart {
	f.t.Helper()
	fc, err := f.reg.NewFlowchart(name)
	if err != nil {
		f.t.Fatal(err)
	}
	return fc
}

func (f *fixture) declare(fc *flow.Flowchart, key string, typ variable.Type, value any) {
	f.t.Helper()
	if fc == nil {
		fc = f.fc
	}
	if _, err := fc.Variables().Declare(key, typ, variable.Private, value); err != nil {
		f.t.Fatal(err)
	}
}

func (f *fixture) value(fc *flow.Flowchart, key string) any {
	f.t.Helper()
	if fc == nil {
		fc = f.fc
	}
	v, ok := fc.Variables().Get(key)
	if !ok {
		f.t.Fatalf("no variable %s", key)
	}
	return v.Value()
}

func (f *fixture) block(fc *flow.Flowchart, name string, cmds ...flow.Command) *flow.Block {
	f.t.Helper()
	if fc == nil {
		fc = f.fc
	}
	b, err := fc.AddBlock(name, cmds...)
	if err != nil {
		f.t.Fatal(err)
	}
	return b
}

func assign(key string, v any) *SetVariable {
	return NewSetVariable(key, variable.Assign, variable.Literal(v))
}

// hold suspends until released.
type hold struct {
	flow.Base
	stops int
}

func (h *hold) OnEnter() {}
func (h *hold) OnStop()  { h.stops++ }

type fakeDialogue struct {
	lines     []Line
	pending   []func()
	cancelled int
	autoAck   bool
}

func (d *fakeDialogue) Say(line Line, done func()) func() {
	d.lines = append(d.lines, line)
	if d.autoAck {
		done()
		return func() { d.cancelled++ }
	}
	d.pending = append(d.pending, done)
	return func() { d.cancelled++ }
}

func (d *fakeDialogue) ack() {
	fns := d.pending
	d.pending = nil
	for _, fn := range fns {
		fn()
	}
}

type fakeMusic struct {
	track     string
	waiters   []func()
	cancelled int
	stops     int
	fail      bool
}

func (m *fakeMusic) Play(file string, onFinish func()) (func(), error) {
	if m.fail {
		return func() {}, errors.New("device busy")
	}
	m.track = file
	if onFinish != nil {
		m.waiters = append(m.waiters, onFinish)
	}
	return func() { m.cancelled++; m.waiters = nil }, nil
}

func (m *fakeMusic) Stop() {
	m.stops++
	m.finish()
}

func (m *fakeMusic) finish() {
	m.track = ""
	ws := m.waiters
	m.waiters = nil
	for _, fn := range ws {
		fn()
	}
}
