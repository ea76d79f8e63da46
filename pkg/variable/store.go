package variable

import (
	"fmt"
	"sync"
)

// Globals holds the Global-scope cells shared by every store bound to it.
type Globals struct {
	mu   sync.Mutex
	vars map[string]*Variable
}

// NewGlobals creates an empty global table.
func NewGlobals() *Globals {
	return &Globals{vars: make(map[string]*Variable)}
}

// bind links v to the shared cell for its key, creating the cell from v's
// start value on first use.
func (g *Globals) bind(v *Variable) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if existing, ok := g.vars[v.Key]; ok {
		if existing.Type != v.Type {
			return fmt.Errorf("%w: global %s is %s, declared as %s", ErrTypeMismatch, v.Key, existing.Type, v.Type)
		}
		v.shared = existing
		return nil
	}

	cell := &Variable{Key: v.Key, Type: v.Type, Scope: Global, value: v.start, start: v.start}
	g.vars[v.Key] = cell
	v.shared = cell
	return nil
}

// Get returns the shared cell for key.
func (g *Globals) Get(key string) (*Variable, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	v, ok := g.vars[key]
	return v, ok
}

// Len returns the number of global cells.
func (g *Globals) Len() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.vars)
}

// Store is the variable table of one flowchart, kept in declaration order.
type Store struct {
	vars    []*Variable
	byKey   map[string]*Variable
	globals *Globals
}

// NewStore creates an empty store with a private global table.
func NewStore() *Store {
	return &Store{
		byKey:   make(map[string]*Variable),
		globals: NewGlobals(),
	}
}

// SetGlobals rebinds every Global-scope variable to g.
func (s *Store) SetGlobals(g *Globals) error {
	s.globals = g
	for _, v := range s.vars {
		if v.Scope != Global {
			continue
		}
		v.shared = nil
		if err := g.bind(v); err != nil {
			return err
		}
	}
	return nil
}

// Add appends v to the store.
func (s *Store) Add(v *Variable) error {
	if _, ok := s.byKey[v.Key]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateKey, v.Key)
	}
	if v.Scope == Global {
		if err := s.globals.bind(v); err != nil {
			return err
		}
	}
	s.vars = append(s.vars, v)
	s.byKey[v.Key] = v
	return nil
}

// Declare creates and adds a variable in one step.
func (s *Store) Declare(key string, t Type, scope Scope, value any) (*Variable, error) {
	v, err := New(key, t, scope, value)
	if err != nil {
		return nil, err
	}
	if err := s.Add(v); err != nil {
		return nil, err
	}
	return v, nil
}

// Get returns the variable for key.
func (s *Store) Get(key string) (*Variable, bool) {
	v, ok := s.byKey[key]
	return v, ok
}

// MustGet returns the variable for key or ErrNotFound.
func (s *Store) MustGet(key string) (*Variable, error) {
	v, ok := s.byKey[key]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, key)
	}
	return v, nil
}

// All returns the variables in declaration order.
func (s *Store) All() []*Variable {
	out := make([]*Variable, len(s.vars))
	copy(out, s.vars)
	return out
}

// Public returns the variables visible to other flowcharts.
func (s *Store) Public() []*Variable {
	var out []*Variable
	for _, v := range s.vars {
		if v.Scope != Private {
			out = append(out, v)
		}
	}
	return out
}

// Reset restores every variable to its start value.
func (s *Store) Reset() {
	for _, v := range s.vars {
		v.Reset()
	}
}

// Values returns a key to value map of every variable.
func (s *Store) Values() map[string]any {
	out := make(map[string]any, len(s.vars))
	for _, v := range s.vars {
		out[v.Key] = v.Value()
	}
	return out
}

// Lookup implements Resolver over all variables of the store.
func (s *Store) Lookup(key string) (string, bool) {
	v, ok := s.byKey[key]
	if !ok {
		return "", false
	}
	return v.String(), true
}

// PublicResolver resolves only the variables other flowcharts may read.
func (s *Store) PublicResolver() Resolver {
	return ResolverFunc(func(key string) (string, bool) {
		v, ok := s.byKey[key]
		if !ok || v.Scope == Private {
			return "", false
		}
		return v.String(), true
	})
}

// Operand is the right-hand side of a comparison or assignment: either a
// literal value or a reference to another variable by key.
type Operand struct {
	Value any
	Ref   string
}

// Literal returns a constant operand.
func Literal(v any) Operand { return Operand{Value: v} }

// Reference returns an operand that reads the variable key.
func Reference(key string) Operand { return Operand{Ref: key} }

// IsRef reports whether the operand refers to a variable.
func (o Operand) IsRef() bool { return o.Ref != "" }

// Resolve returns the operand value against s.
func (o Operand) Resolve(s *Store) (any, error) {
	if !o.IsRef() {
		return o.Value, nil
	}
	v, err := s.MustGet(o.Ref)
	if err != nil {
		return nil, err
	}
	return v.Value(), nil
}

func (o Operand) String() string {
	if o.IsRef() {
		return "{$" + o.Ref + "}"
	}
	return fmt.Sprintf("%v", o.Value)
}

// Comparison is "Key Op Operand" evaluated against a store.
type Comparison struct {
	Key     string
	Op      CompareOperator
	Operand Operand
}

// Evaluate resolves the comparison against s.
func (c Comparison) Evaluate(s *Store) (bool, error) {
	v, err := s.MustGet(c.Key)
	if err != nil {
		return false, err
	}
	rhs, err := c.Operand.Resolve(s)
	if err != nil {
		return false, err
	}
	return v.Compare(c.Op, rhs)
}

// Validate checks that the variable exists and supports the operator.
func (c Comparison) Validate(s *Store) error {
	v, err := s.MustGet(c.Key)
	if err != nil {
		return err
	}
	if c.Operand.IsRef() {
		if _, err := s.MustGet(c.Operand.Ref); err != nil {
			return err
		}
	}
	return ValidateCompare(v.Type, c.Op)
}

func (c Comparison) String() string {
	return fmt.Sprintf("%s %s %s", c.Key, c.Op, c.Operand)
}
