package variable

import (
	"errors"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

func mustNew(t *testing.T, key string, typ Type, value any) *Variable {
	t.Helper()
	v, err := New(key, typ, Private, value)
	if err != nil {
		t.Fatalf("New(%s): %v", key, err)
	}
	return v
}

func TestNew_Coercion(t *testing.T) {
	tests := []struct {
		name  string
		typ   Type
		value any
		want  any
	}{
		{"nil integer", Integer, nil, int64(0)},
		{"nil string", String, nil, ""},
		{"int to integer", Integer, 3, int64(3)},
		{"string to integer", Integer, "42", int64(42)},
		{"int to float", Float, 2, float64(2)},
		{"string to bool", Boolean, "true", true},
		{"int to string", String, 7, "7"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := mustNew(t, "x", tt.typ, tt.value)
			if v.Value() != tt.want {
				t.Errorf("Value() = %#v, want %#v", v.Value(), tt.want)
			}
		})
	}
}

func TestNew_TypeMismatch(t *testing.T) {
	_, err := New("x", Integer, Private, "not a number")
	if !errors.Is(err, ErrTypeMismatch) {
		t.Errorf("expected ErrTypeMismatch, got %v", err)
	}
}

func TestCompare(t *testing.T) {
	tests := []struct {
		name    string
		typ     Type
		value   any
		op      CompareOperator
		operand any
		want    bool
	}{
		{"int equals", Integer, 1, Equals, 1, true},
		{"int not equals", Integer, 1, NotEquals, 1, false},
		{"int less", Integer, 1, LessThan, 2, true},
		{"int greater", Integer, 1, GreaterThan, 2, false},
		{"int less or equal", Integer, 2, LessThanOrEquals, 2, true},
		{"int greater or equal", Integer, 1, GreaterThanOrEquals, 2, false},
		{"float less", Float, 1.5, LessThan, 1.6, true},
		{"bool equals", Boolean, true, Equals, true, true},
		{"bool not equals", Boolean, true, NotEquals, false, true},
		{"string equals", String, "abc", Equals, "abc", true},
		{"string not equals", String, "abc", NotEquals, "abc", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := mustNew(t, "x", tt.typ, tt.value)
			got, err := v.Compare(tt.op, tt.operand)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("%v %s %v = %v, want %v", tt.value, tt.op, tt.operand, got, tt.want)
			}
		})
	}
}

func TestCompare_UnorderedTypeRejected(t *testing.T) {
	v := mustNew(t, "s", String, "a")
	if _, err := v.Compare(LessThan, "b"); !errors.Is(err, ErrUnsupportedOperator) {
		t.Errorf("expected ErrUnsupportedOperator, got %v", err)
	}
	if err := ValidateCompare(Boolean, GreaterThan); err == nil {
		t.Error("ValidateCompare(Boolean, >) should fail")
	}
	if err := ValidateCompare(Float, GreaterThanOrEquals); err != nil {
		t.Errorf("ValidateCompare(Float, >=) unexpected error: %v", err)
	}
}

func TestApply(t *testing.T) {
	tests := []struct {
		name    string
		typ     Type
		value   any
		op      SetOperator
		operand any
		want    any
	}{
		{"assign", Integer, 1, Assign, 5, int64(5)},
		{"add", Integer, 1, Add, 2, int64(3)},
		{"subtract", Integer, 5, Subtract, 2, int64(3)},
		{"multiply", Float, 1.5, Multiply, 2, float64(3)},
		{"divide", Integer, 7, Divide, 2, int64(3)},
		{"negate", Boolean, true, Negate, true, false},
		{"concat", String, "foo", Add, "bar", "foobar"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := mustNew(t, "x", tt.typ, tt.value)
			if err := v.Apply(tt.op, tt.operand); err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if v.Value() != tt.want {
				t.Errorf("Value() = %#v, want %#v", v.Value(), tt.want)
			}
		})
	}
}

func TestApply_DivisionByZero(t *testing.T) {
	v := mustNew(t, "x", Integer, 10)
	err := v.Apply(Divide, 0)
	if !errors.Is(err, ErrDivisionByZero) {
		t.Fatalf("expected ErrDivisionByZero, got %v", err)
	}
	if v.Value() != int64(10) {
		t.Errorf("value changed on error: %v", v.Value())
	}
}

func TestApply_UnsupportedOperator(t *testing.T) {
	v := mustNew(t, "b", Boolean, false)
	if err := v.Apply(Add, true); !errors.Is(err, ErrUnsupportedOperator) {
		t.Errorf("expected ErrUnsupportedOperator, got %v", err)
	}
	s := mustNew(t, "s", String, "a")
	if err := s.Apply(Subtract, "a"); !errors.Is(err, ErrUnsupportedOperator) {
		t.Errorf("expected ErrUnsupportedOperator, got %v", err)
	}
}

func TestReset(t *testing.T) {
	v := mustNew(t, "x", Integer, 3)
	_ = v.Set(9)
	v.Reset()
	if v.Value() != int64(3) {
		t.Errorf("Reset() value = %v, want 3", v.Value())
	}
}

func TestParseOperators(t *testing.T) {
	for _, s := range []string{"==", "!=", "<", ">", "<=", ">="} {
		op, err := ParseCompareOperator(s)
		if err != nil {
			t.Errorf("ParseCompareOperator(%q): %v", s, err)
			continue
		}
		if op.String() != s {
			t.Errorf("round trip %q -> %q", s, op.String())
		}
	}
	for _, s := range []string{"=", "=!", "+=", "-=", "*=", "/="} {
		op, err := ParseSetOperator(s)
		if err != nil {
			t.Errorf("ParseSetOperator(%q): %v", s, err)
			continue
		}
		if op.String() != s {
			t.Errorf("round trip %q -> %q", s, op.String())
		}
	}
	if _, err := ParseCompareOperator("~="); err == nil {
		t.Error("expected error for unknown operator")
	}
}

// TestProperty_CompareMatchesGo 整数比較がGoの演算子と一致することを確認
func TestProperty_CompareMatchesGo(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100

	properties := gopter.NewProperties(parameters)

	properties.Property("integer comparison agrees with Go", prop.ForAll(
		func(a, b int) bool {
			v, err := New("x", Integer, Private, a)
			if err != nil {
				return false
			}
			want := map[CompareOperator]bool{
				Equals:              a == b,
				NotEquals:           a != b,
				LessThan:            a < b,
				GreaterThan:         a > b,
				LessThanOrEquals:    a <= b,
				GreaterThanOrEquals: a >= b,
			}
			for op, expected := range want {
				got, err := v.Compare(op, b)
				if err != nil || got != expected {
					return false
				}
			}
			return true
		},
		gen.IntRange(-1000, 1000),
		gen.IntRange(-1000, 1000),
	))

	properties.TestingRun(t, gopter.ConsoleReporter(false))
}
