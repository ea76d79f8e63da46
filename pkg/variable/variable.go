package variable

import (
	"fmt"

	"github.com/spf13/cast"
)

// Variable is one typed entry of a flowchart's variable table.
type Variable struct {
	Key   string
	Type  Type
	Scope Scope

	value any
	start any

	// shared points at the registry-wide cell when Scope is Global.
	shared *Variable
}

// New creates a variable whose start value is value coerced to t.
// A nil value starts at the zero value of t.
func New(key string, t Type, scope Scope, value any) (*Variable, error) {
	v, err := Coerce(t, value)
	if err != nil {
		return nil, fmt.Errorf("variable %s: %w", key, err)
	}
	return &Variable{Key: key, Type: t, Scope: scope, value: v, start: v}, nil
}

// Coerce converts value to the Go representation of t:
// bool, int64, float64 or string.
func Coerce(t Type, value any) (any, error) {
	if value == nil {
		return zero(t), nil
	}

	var (
		out any
		err error
	)
	switch t {
	case Boolean:
		out, err = cast.ToBoolE(value)
	case Integer:
		out, err = cast.ToInt64E(value)
	case Float:
		out, err = cast.ToFloat64E(value)
	case String:
		out, err = cast.ToStringE(value)
	default:
		return nil, fmt.Errorf("%w: unknown type %s", ErrTypeMismatch, t)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: cannot use %v (%T) as %s", ErrTypeMismatch, value, value, t)
	}
	return out, nil
}

func zero(t Type) any {
	switch t {
	case Boolean:
		return false
	case Integer:
		return int64(0)
	case Float:
		return float64(0)
	default:
		return ""
	}
}

func (v *Variable) cell() *Variable {
	if v.shared != nil {
		return v.shared
	}
	return v
}

// Value returns the current value.
func (v *Variable) Value() any {
	return v.cell().value
}

// Set assigns value after coercing it to the variable type.
func (v *Variable) Set(value any) error {
	c, err := Coerce(v.Type, value)
	if err != nil {
		return fmt.Errorf("variable %s: %w", v.Key, err)
	}
	v.cell().value = c
	return nil
}

// Reset restores the start value.
func (v *Variable) Reset() {
	c := v.cell()
	c.value = c.start
}

// String returns the value formatted for text substitution.
func (v *Variable) String() string {
	return cast.ToString(v.Value())
}

// Compare evaluates "v op operand". The operand is coerced to the variable type.
func (v *Variable) Compare(op CompareOperator, operand any) (bool, error) {
	if err := ValidateCompare(v.Type, op); err != nil {
		return false, err
	}
	rhs, err := Coerce(v.Type, operand)
	if err != nil {
		return false, fmt.Errorf("variable %s: %w", v.Key, err)
	}

	switch lhs := v.Value().(type) {
	case int64:
		return compareOrdered(lhs, rhs.(int64), op), nil
	case float64:
		return compareOrdered(lhs, rhs.(float64), op), nil
	case bool:
		eq := lhs == rhs.(bool)
		return (op == Equals) == eq, nil
	case string:
		eq := lhs == rhs.(string)
		return (op == Equals) == eq, nil
	}
	return false, fmt.Errorf("%w: variable %s holds %T", ErrTypeMismatch, v.Key, v.Value())
}

func compareOrdered[T int64 | float64](a, b T, op CompareOperator) bool {
	switch op {
	case Equals:
		return a == b
	case NotEquals:
		return a != b
	case LessThan:
		return a < b
	case GreaterThan:
		return a > b
	case LessThanOrEquals:
		return a <= b
	case GreaterThanOrEquals:
		return a >= b
	}
	return false
}

// Apply performs "v op= operand". On error the value is left unchanged.
func (v *Variable) Apply(op SetOperator, operand any) error {
	if err := ValidateSet(v.Type, op); err != nil {
		return err
	}
	rhs, err := Coerce(v.Type, operand)
	if err != nil {
		return fmt.Errorf("variable %s: %w", v.Key, err)
	}

	c := v.cell()
	switch op {
	case Assign:
		c.value = rhs
		return nil
	case Negate:
		c.value = !rhs.(bool)
		return nil
	}

	switch lhs := c.value.(type) {
	case string:
		// ValidateSet only lets Add through for strings.
		c.value = lhs + rhs.(string)
	case int64:
		r := rhs.(int64)
		if op == Divide && r == 0 {
			return fmt.Errorf("variable %s: %w", v.Key, ErrDivisionByZero)
		}
		c.value = arith(lhs, r, op)
	case float64:
		r := rhs.(float64)
		if op == Divide && r == 0 {
			return fmt.Errorf("variable %s: %w", v.Key, ErrDivisionByZero)
		}
		c.value = arith(lhs, r, op)
	default:
		return fmt.Errorf("%w: variable %s holds %T", ErrTypeMismatch, v.Key, c.value)
	}
	return nil
}

func arith[T int64 | float64](a, b T, op SetOperator) T {
	switch op {
	case Add:
		return a + b
	case Subtract:
		return a - b
	case Multiply:
		return a * b
	case Divide:
		return a / b
	}
	return a
}
