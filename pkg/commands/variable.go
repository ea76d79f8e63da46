package commands

import (
	"github.com/zurustar/flowrun/pkg/flow"
	"github.com/zurustar/flowrun/pkg/variable"
)

// SetVariable applies "Key Op Operand" to a variable of the flowchart.
// String literals are substituted before assignment.
type SetVariable struct {
	flow.Base
	Key     string
	Op      variable.SetOperator
	Operand variable.Operand
}

// NewSetVariable creates a SetVariable.
func NewSetVariable(key string, op variable.SetOperator, operand variable.Operand) *SetVariable {
	return &SetVariable{Key: key, Op: op, Operand: operand}
}

func (c *SetVariable) OnEnter() {
	defer c.Continue()

	vars := c.Flowchart().Variables()
	v, err := vars.MustGet(c.Key)
	if err != nil {
		c.SetError("%s", flow.NewVariableNotFoundError(c.Key).Message)
		return
	}
	value, err := c.Operand.Resolve(vars)
	if err != nil {
		c.SetError("%v", err)
		return
	}
	if s, ok := value.(string); ok && !c.Operand.IsRef() {
		value = c.Flowchart().SubstituteVariables(s)
	}
	if err := v.Apply(c.Op, value); err != nil {
		c.SetError("%v", err)
	}
}

// Validate checks the operator against the variable type at load time.
func (c *SetVariable) Validate(vars *variable.Store) error {
	v, err := vars.MustGet(c.Key)
	if err != nil {
		return err
	}
	if c.Operand.IsRef() {
		if _, err := vars.MustGet(c.Operand.Ref); err != nil {
			return err
		}
	}
	return variable.ValidateSet(v.Type, c.Op)
}

// Reset restores the start values of the flowchart's variables, its
// commands' authored state, or both.
type Reset struct {
	flow.Base
	Commands  bool
	Variables bool
}

func (c *Reset) OnEnter() {
	c.Flowchart().Reset(c.Commands, c.Variables)
	c.Continue()
}
