// Package variable provides the typed variable table consumed by flowcharts.
// It covers the four value types, the comparison and assignment operators
// allowed for each type, a per-flowchart Store with shared globals, and
// {$Key} text substitution.
package variable

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrNotFound is returned when a variable key is not declared.
	ErrNotFound = errors.New("variable not found")

	// ErrTypeMismatch is returned when a value cannot be coerced to the variable type.
	ErrTypeMismatch = errors.New("type mismatch")

	// ErrUnsupportedOperator is returned when an operator is not valid for a type.
	ErrUnsupportedOperator = errors.New("unsupported operator")

	// ErrDivisionByZero is returned by Divide with a zero operand.
	ErrDivisionByZero = errors.New("division by zero")

	// ErrDuplicateKey is returned when a key is declared twice in one store.
	ErrDuplicateKey = errors.New("duplicate variable key")
)

// Type is the value type of a variable.
type Type int

const (
	Boolean Type = iota
	Integer
	Float
	String
)

func (t Type) String() string {
	switch t {
	case Boolean:
		return "boolean"
	case Integer:
		return "integer"
	case Float:
		return "float"
	case String:
		return "string"
	default:
		return fmt.Sprintf("Type(%d)", int(t))
	}
}

// Ordered reports whether values of t support <, >, <= and >=.
func (t Type) Ordered() bool {
	return t == Integer || t == Float
}

// ParseType parses a type name as written in flowchart documents.
func ParseType(s string) (Type, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "bool", "boolean":
		return Boolean, nil
	case "int", "integer":
		return Integer, nil
	case "float", "number":
		return Float, nil
	case "string", "text":
		return String, nil
	default:
		return Boolean, fmt.Errorf("unknown variable type: %q", s)
	}
}

// Scope controls where a variable is visible.
type Scope int

const (
	// Private variables are visible to their own flowchart only.
	Private Scope = iota
	// Public variables may be read by other flowcharts through substitution.
	Public
	// Global variables share one value across every flowchart of a registry.
	Global
)

func (s Scope) String() string {
	switch s {
	case Private:
		return "private"
	case Public:
		return "public"
	case Global:
		return "global"
	default:
		return fmt.Sprintf("Scope(%d)", int(s))
	}
}

// ParseScope parses a scope name. The empty string means Private.
func ParseScope(s string) (Scope, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "private":
		return Private, nil
	case "public":
		return Public, nil
	case "global":
		return Global, nil
	default:
		return Private, fmt.Errorf("unknown variable scope: %q", s)
	}
}

// CompareOperator is a comparison used by If, ElseIf and While.
type CompareOperator int

const (
	Equals CompareOperator = iota
	NotEquals
	LessThan
	GreaterThan
	LessThanOrEquals
	GreaterThanOrEquals
)

func (op CompareOperator) String() string {
	switch op {
	case Equals:
		return "=="
	case NotEquals:
		return "!="
	case LessThan:
		return "<"
	case GreaterThan:
		return ">"
	case LessThanOrEquals:
		return "<="
	case GreaterThanOrEquals:
		return ">="
	default:
		return fmt.Sprintf("CompareOperator(%d)", int(op))
	}
}

// ParseCompareOperator accepts either the symbol ("<=") or the name ("LessThanOrEquals").
func ParseCompareOperator(s string) (CompareOperator, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "==", "=", "equals", "eq":
		return Equals, nil
	case "!=", "<>", "notequals", "ne":
		return NotEquals, nil
	case "<", "lessthan", "lt":
		return LessThan, nil
	case ">", "greaterthan", "gt":
		return GreaterThan, nil
	case "<=", "lessthanorequals", "le":
		return LessThanOrEquals, nil
	case ">=", "greaterthanorequals", "ge":
		return GreaterThanOrEquals, nil
	default:
		return Equals, fmt.Errorf("%w: %q", ErrUnsupportedOperator, s)
	}
}

// ValidateCompare reports whether op may be used on variables of type t.
// Flowchart loaders call this so bad combinations never reach run time.
func ValidateCompare(t Type, op CompareOperator) error {
	switch op {
	case Equals, NotEquals:
		return nil
	case LessThan, GreaterThan, LessThanOrEquals, GreaterThanOrEquals:
		if t.Ordered() {
			return nil
		}
	}
	return fmt.Errorf("%w: %s on %s", ErrUnsupportedOperator, op, t)
}

// SetOperator is an assignment used by SetVariable.
type SetOperator int

const (
	Assign SetOperator = iota
	Negate
	Add
	Subtract
	Multiply
	Divide
)

func (op SetOperator) String() string {
	switch op {
	case Assign:
		return "="
	case Negate:
		return "=!"
	case Add:
		return "+="
	case Subtract:
		return "-="
	case Multiply:
		return "*="
	case Divide:
		return "/="
	default:
		return fmt.Sprintf("SetOperator(%d)", int(op))
	}
}

// ParseSetOperator accepts either the symbol ("+=") or the name ("Add").
func ParseSetOperator(s string) (SetOperator, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "=", "assign":
		return Assign, nil
	case "=!", "!", "negate":
		return Negate, nil
	case "+=", "add":
		return Add, nil
	case "-=", "subtract":
		return Subtract, nil
	case "*=", "multiply":
		return Multiply, nil
	case "/=", "divide":
		return Divide, nil
	default:
		return Assign, fmt.Errorf("%w: %q", ErrUnsupportedOperator, s)
	}
}

// ValidateSet reports whether op may be applied to variables of type t.
func ValidateSet(t Type, op SetOperator) error {
	switch op {
	case Assign:
		return nil
	case Negate:
		if t == Boolean {
			return nil
		}
	case Add:
		if t != Boolean {
			return nil
		}
	case Subtract, Multiply, Divide:
		if t.Ordered() {
			return nil
		}
	}
	return fmt.Errorf("%w: %s on %s", ErrUnsupportedOperator, op, t)
}
