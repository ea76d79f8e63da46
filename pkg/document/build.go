package document

import (
	"errors"
	"fmt"
	"strings"

	"github.com/zurustar/flowrun/pkg/commands"
	"github.com/zurustar/flowrun/pkg/flow"
	"github.com/zurustar/flowrun/pkg/logger"
	"github.com/zurustar/flowrun/pkg/variable"
)

// ErrUnknownCommand is returned for a command table with an unknown type.
var ErrUnknownCommand = errors.New("unknown command type")

// LoadError locates an authoring error in a document.
type LoadError struct {
	Source string
	Block  string
	// Index is the command index in the block, or -1.
	Index int
	Err   error
}

func (e *LoadError) Error() string {
	switch {
	case e.Block != "" && e.Index >= 0:
		return fmt.Sprintf("%s: block %s: command %d: %v", e.Source, e.Block, e.Index, e.Err)
	case e.Block != "":
		return fmt.Sprintf("%s: block %s: %v", e.Source, e.Block, e.Err)
	default:
		return fmt.Sprintf("%s: %v", e.Source, e.Err)
	}
}

func (e *LoadError) Unwrap() error { return e.Err }

// check is an authoring check that needs every flowchart to exist.
type check struct {
	fc    *flow.Flowchart
	where *LoadError
	run   func(fc *flow.Flowchart) error
}

type builder struct {
	reg    *flow.Registry
	env    *commands.Env
	checks []check
}

// Build creates one flowchart per document in reg. Commands reach the
// outside world through env, which may be nil. Operators, variable
// references and call targets are validated once every document is built,
// so documents may call blocks of each other.
func Build(reg *flow.Registry, env *commands.Env, docs ...*Document) ([]*flow.Flowchart, error) {
	b := &builder{reg: reg, env: env}
	out := make([]*flow.Flowchart, 0, len(docs))
	for _, doc := range docs {
		fc, err := b.flowchart(doc)
		if err != nil {
			return nil, err
		}
		out = append(out, fc)
	}

	var errs []error
	for _, c := range b.checks {
		if err := c.run(c.fc); err != nil {
			where := *c.where
			where.Err = err
			errs = append(errs, &where)
		}
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return out, nil
}

func (b *builder) flowchart(doc *Document) (*flow.Flowchart, error) {
	fc, err := b.reg.NewFlowchart(doc.Name)
	if err != nil {
		return nil, &LoadError{Source: doc.Source, Index: -1, Err: err}
	}

	for _, spec := range doc.Variables {
		if err := declare(fc.Variables(), spec); err != nil {
			return nil, &LoadError{Source: doc.Source, Index: -1, Err: err}
		}
	}

	for _, spec := range doc.Blocks {
		if err := b.block(fc, doc, spec); err != nil {
			return nil, err
		}
	}
	return fc, nil
}

func declare(vars *variable.Store, spec VariableSpec) error {
	if spec.Key == "" {
		return errors.New("variable without key")
	}
	var (
		t   variable.Type
		err error
	)
	if spec.Type == "" {
		t, err = inferType(spec.Value)
	} else {
		t, err = variable.ParseType(spec.Type)
	}
	if err != nil {
		return fmt.Errorf("variable %s: %w", spec.Key, err)
	}
	scope, err := variable.ParseScope(spec.Scope)
	if err != nil {
		return fmt.Errorf("variable %s: %w", spec.Key, err)
	}
	_, err = vars.Declare(spec.Key, t, scope, spec.Value)
	return err
}

func inferType(v any) (variable.Type, error) {
	switch v.(type) {
	case bool:
		return variable.Boolean, nil
	case int, int32, int64:
		return variable.Integer, nil
	case float32, float64:
		return variable.Float, nil
	case string:
		return variable.String, nil
	default:
		return variable.Boolean, fmt.Errorf("cannot infer type of %v (%T)", v, v)
	}
}

func (b *builder) block(fc *flow.Flowchart, doc *Document, spec BlockSpec) error {
	where := func(index int, err error) error {
		return &LoadError{Source: doc.Source, Block: spec.Name, Index: index, Err: err}
	}
	if spec.Name == "" {
		return where(-1, errors.New("block without name"))
	}

	cmds := make([]flow.Command, 0, len(spec.Commands))
	explicitIndent := false
	for i, cs := range spec.Commands {
		c, err := b.command(fc, cs, &LoadError{Source: doc.Source, Block: spec.Name, Index: i})
		if err != nil {
			return where(i, err)
		}
		p := params(cs)
		if p.has("indent") {
			explicitIndent = true
			n, err := p.integer("indent", 0)
			if err != nil {
				return where(i, err)
			}
			c.SetIndent(n)
		}
		enabled, err := p.boolean("enabled", true)
		if err != nil {
			return where(i, err)
		}
		c.SetEnabled(enabled)
		cmds = append(cmds, c)
	}

	blk, err := fc.AddBlock(spec.Name, cmds...)
	if err != nil {
		return where(-1, err)
	}
	if !explicitIndent {
		blk.UpdateIndentLevels()
	}

	for _, ts := range spec.Triggers {
		t, err := flow.ParseTriggerType(ts.Type)
		if err != nil {
			return where(-1, err)
		}
		if t != flow.TriggerStarted && ts.Name == "" {
			return where(-1, fmt.Errorf("%s trigger without name", t))
		}
		h := fc.AddHandler(t, ts.Name, blk)
		h.StartIndex = ts.StartIndex
	}
	return nil
}

func (b *builder) later(fc *flow.Flowchart, where *LoadError, run func(fc *flow.Flowchart) error) {
	b.checks = append(b.checks, check{fc: fc, where: where, run: run})
}

// command builds one command. Checks against variables and other blocks
// are deferred until every document is built.
func (b *builder) command(fc *flow.Flowchart, cs CommandSpec, where *LoadError) (flow.Command, error) {
	p := params(cs)
	switch normalize(cs.Type()) {
	case "if":
		pred, err := b.predicate(fc, p, where)
		if err != nil {
			return nil, err
		}
		return flow.NewIf(pred), nil
	case "elseif":
		pred, err := b.predicate(fc, p, where)
		if err != nil {
			return nil, err
		}
		return flow.NewElseIf(pred), nil
	case "else":
		return flow.NewElse(), nil
	case "end":
		return flow.NewEnd(), nil
	case "while":
		pred, err := b.predicate(fc, p, where)
		if err != nil {
			return nil, err
		}
		return flow.NewWhile(pred), nil
	case "break":
		return flow.NewBreak(), nil
	case "label":
		key, err := p.requiredStr("key")
		if err != nil {
			return nil, err
		}
		return flow.NewLabel(key), nil
	case "jump":
		target, err := p.requiredStr("label")
		if err != nil {
			return nil, err
		}
		return flow.NewJump(target), nil
	case "comment":
		text, err := p.str("text")
		if err != nil {
			return nil, err
		}
		return flow.NewComment(text), nil
	case "call":
		return b.call(fc, p, where)
	case "setvariable", "set":
		return b.setVariable(fc, p, where)
	case "say":
		text, err := p.str("text")
		if err != nil {
			return nil, err
		}
		wait, err := p.boolean("wait", true)
		if err != nil {
			return nil, err
		}
		return commands.NewSay(b.env, text, wait), nil
	case "wait":
		d, err := p.duration("duration")
		if err != nil {
			return nil, err
		}
		return commands.NewWait(d), nil
	case "sendmessage":
		msg, err := p.requiredStr("message")
		if err != nil {
			return nil, err
		}
		all, err := p.boolean("all", false)
		if err != nil {
			return nil, err
		}
		return commands.NewSendMessage(msg, all), nil
	case "stopblock":
		return b.stopBlock(fc, p, where)
	case "stopflowchart":
		names, err := p.strs("flowchart")
		if err != nil {
			return nil, err
		}
		stopParent, err := p.boolean("stop_parent", false)
		if err != nil {
			return nil, err
		}
		for _, name := range names {
			b.later(fc, where, func(*flow.Flowchart) error {
				if _, ok := b.reg.Flowchart(name); !ok {
					return flow.NewFlowchartNotFoundError(name)
				}
				return nil
			})
		}
		return &commands.StopFlowchart{Flowcharts: names, StopParent: stopParent}, nil
	case "reset":
		cmds, err := p.boolean("commands", true)
		if err != nil {
			return nil, err
		}
		vars, err := p.boolean("variables", true)
		if err != nil {
			return nil, err
		}
		return &commands.Reset{Commands: cmds, Variables: vars}, nil
	case "debuglog", "log":
		text, err := p.str("text")
		if err != nil {
			return nil, err
		}
		c := commands.NewDebugLog(text)
		if p.has("level") {
			name, err := p.str("level")
			if err != nil {
				return nil, err
			}
			if c.Level, err = logger.ParseLevel(strings.ToLower(name)); err != nil {
				return nil, err
			}
		}
		return c, nil
	case "playmusic":
		file, err := p.requiredStr("file")
		if err != nil {
			return nil, err
		}
		wait, err := p.boolean("wait", false)
		if err != nil {
			return nil, err
		}
		return commands.NewPlayMusic(b.env, file, wait), nil
	case "stopmusic":
		return commands.NewStopMusic(b.env), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownCommand, cs.Type())
	}
}

// normalize turns "Set Variable", "set_variable" and "SetVariable" into
// "setvariable".
func normalize(name string) string {
	return strings.NewReplacer("_", "", "-", "", " ", "").Replace(strings.ToLower(name))
}

// predicate reads either an expr expression ("expr") or a comparison
// ("key", "op", and "value" or "ref").
func (b *builder) predicate(fc *flow.Flowchart, p params, where *LoadError) (flow.Predicate, error) {
	var pred flow.Predicate
	if p.has("expr") {
		src, err := p.requiredStr("expr")
		if err != nil {
			return nil, err
		}
		e, err := flow.NewExpression(src)
		if err != nil {
			return nil, err
		}
		pred = e
	} else {
		key, err := p.requiredStr("key")
		if err != nil {
			return nil, err
		}
		opName, err := p.str("op")
		if err != nil {
			return nil, err
		}
		op := variable.Equals
		if opName != "" {
			if op, err = variable.ParseCompareOperator(opName); err != nil {
				return nil, err
			}
		}
		operand, err := operandOf(p)
		if err != nil {
			return nil, err
		}
		pred = variable.Comparison{Key: key, Op: op, Operand: operand}
	}
	b.later(fc, where, func(fc *flow.Flowchart) error { return pred.Validate(fc.Variables()) })
	return pred, nil
}

func operandOf(p params) (variable.Operand, error) {
	if p.has("ref") {
		ref, err := p.requiredStr("ref")
		if err != nil {
			return variable.Operand{}, err
		}
		return variable.Reference(ref), nil
	}
	if !p.has("value") {
		return variable.Operand{}, errors.New("missing parameter value or ref")
	}
	return variable.Literal(p["value"]), nil
}

func (b *builder) setVariable(fc *flow.Flowchart, p params, where *LoadError) (flow.Command, error) {
	key, err := p.requiredStr("key")
	if err != nil {
		return nil, err
	}
	opName, err := p.str("op")
	if err != nil {
		return nil, err
	}
	op, err := variable.ParseSetOperator(opName)
	if err != nil {
		return nil, err
	}
	operand, err := operandOf(p)
	if err != nil {
		return nil, err
	}
	c := commands.NewSetVariable(key, op, operand)
	b.later(fc, where, func(fc *flow.Flowchart) error { return c.Validate(fc.Variables()) })
	return c, nil
}

func parseCallMode(s string) (flow.CallMode, error) {
	switch normalize(s) {
	case "", "stop":
		return flow.CallStop, nil
	case "continue":
		return flow.CallContinue, nil
	case "wait", "waituntilfinished":
		return flow.CallWaitUntilFinished, nil
	default:
		return flow.CallStop, fmt.Errorf("unknown call mode: %q", s)
	}
}

func parseBusyPolicy(s string) (flow.BusyPolicy, error) {
	switch normalize(s) {
	case "", "continue":
		return flow.BusyContinue, nil
	case "wait":
		return flow.BusyWait, nil
	default:
		return flow.BusyContinue, fmt.Errorf("unknown busy policy: %q", s)
	}
}

func (b *builder) call(fc *flow.Flowchart, p params, where *LoadError) (flow.Command, error) {
	block, err := p.requiredStr("block")
	if err != nil {
		return nil, err
	}
	target, err := p.str("flowchart")
	if err != nil {
		return nil, err
	}
	modeName, err := p.str("mode")
	if err != nil {
		return nil, err
	}
	mode, err := parseCallMode(modeName)
	if err != nil {
		return nil, err
	}
	busyName, err := p.str("on_busy")
	if err != nil {
		return nil, err
	}
	busy, err := parseBusyPolicy(busyName)
	if err != nil {
		return nil, err
	}
	start, err := p.integer("start_index", 0)
	if err != nil {
		return nil, err
	}

	c := flow.NewCall(block, mode)
	c.TargetFlowchart = target
	c.StartIndex = start
	c.OnBusy = busy
	b.later(fc, where, func(fc *flow.Flowchart) error { return b.findBlock(fc, target, block) })
	return c, nil
}

func (b *builder) stopBlock(fc *flow.Flowchart, p params, where *LoadError) (flow.Command, error) {
	block, err := p.requiredStr("block")
	if err != nil {
		return nil, err
	}
	target, err := p.str("flowchart")
	if err != nil {
		return nil, err
	}
	b.later(fc, where, func(fc *flow.Flowchart) error { return b.findBlock(fc, target, block) })
	return &commands.StopBlock{TargetFlowchart: target, TargetBlock: block}, nil
}

func (b *builder) findBlock(own *flow.Flowchart, flowchart, block string) error {
	fc := own
	if flowchart != "" && flowchart != own.Name() {
		other, ok := b.reg.Flowchart(flowchart)
		if !ok {
			return flow.NewFlowchartNotFoundError(flowchart)
		}
		fc = other
	}
	if fc.FindBlock(block) == nil {
		return flow.NewBlockNotFoundError(fc.Name(), block)
	}
	return nil
}
