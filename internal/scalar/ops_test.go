package scalar

import (
	"testing"

	"perlrt/internal/ioerr"
)

func TestArithmeticOperators(t *testing.T) {
	tests := []struct {
		name string
		fn   func(a, b *Scalar) (*Scalar, error)
		a, b *Scalar
		want *Scalar
	}{
		{"int add", Add, NewInt(2), NewInt(3), NewInt(5)},
		{"mixed add promotes to double", Add, NewInt(2), NewDouble(0.5), NewDouble(2.5)},
		{"int subtract", Subtract, NewInt(5), NewInt(3), NewInt(2)},
		{"int multiply", Multiply, NewInt(4), NewInt(5), NewInt(20)},
		{"multiply overflow promotes to double", Multiply, NewInt(1 << 40), NewInt(1 << 40), NewDouble(float64(int64(1) << 40) * float64(int64(1) << 40))},
	}

	for _, tt := range tests {
		got, err := tt.fn(tt.a, tt.b)
		if err != nil {
			t.Errorf("test[%s] - unexpected error: %v", tt.name, err)
			continue
		}
		if got.Kind() != tt.want.Kind() || got.ToString() != tt.want.ToString() {
			t.Errorf("test[%s] - wrong result. got=%s(%s), want=%s(%s)",
				tt.name, got.Kind(), got.ToString(), tt.want.Kind(), tt.want.ToString())
		}
	}
}

func TestDivideByZero(t *testing.T) {
	_, err := Divide(NewInt(1), NewInt(0))
	if err == nil {
		t.Fatal("expected an error dividing by zero")
	}
	if !ioerr.Is(err, ioerr.KindArithmetic) {
		t.Errorf("expected KindArithmetic, got %v", err)
	}
}

func TestModulusByZero(t *testing.T) {
	_, err := Modulus(NewInt(1), NewInt(0))
	if err == nil {
		t.Fatal("expected an error for modulus by zero")
	}
	if !ioerr.Is(err, ioerr.KindArithmetic) {
		t.Errorf("expected KindArithmetic, got %v", err)
	}
}

func TestModulusFollowsDivisorSign(t *testing.T) {
	got, err := Modulus(NewInt(-7), NewInt(3))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.ToInt() != 2 {
		t.Errorf("got=%d, want=2 (Perl %% follows divisor sign)", got.ToInt())
	}
}

func TestAddAssignMutatesInPlace(t *testing.T) {
	dst := NewInt(10)
	if err := AddAssign(dst, NewInt(5)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if dst.ToInt() != 15 {
		t.Errorf("got=%d, want=15", dst.ToInt())
	}
}

// mustCompare evaluates a comparison primitive that cannot fail for
// plain operands, so the table tests below stay readable.
func mustCompare(t *testing.T, fn func(a, b *Scalar) (*Scalar, error), a, b *Scalar) *Scalar {
	t.Helper()
	r, err := fn(a, b)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return r
}

func TestNumericComparisons(t *testing.T) {
	a, b := NewInt(3), NewInt(5)
	if !mustCompare(t, Lt, a, b).ToBoolean() {
		t.Error("expected 3 < 5")
	}
	if !mustCompare(t, Ge, b, a).ToBoolean() {
		t.Error("expected 5 >= 3")
	}
	if got := mustCompare(t, Cmp, a, b).ToInt(); got != -1 {
		t.Errorf("expected cmp(3,5) == -1, got %d", got)
	}
}

func TestStringComparisonsDifferFromNumeric(t *testing.T) {
	// "10" < "9" lexically, but 10 > 9 numerically.
	a, b := NewString("10"), NewString("9")
	if !mustCompare(t, Slt, a, b).ToBoolean() {
		t.Error("expected \"10\" lt \"9\" (lexical)")
	}
	if !mustCompare(t, Gt, a, b).ToBoolean() {
		t.Error("expected 10 > 9 (numeric)")
	}
}

func TestConcatAndRepeat(t *testing.T) {
	got, err := Concat(NewString("foo"), NewInt(1))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.ToString() != "foo1" {
		t.Errorf("got=%s, want=foo1", got.ToString())
	}
	rep := Repeat(NewString("ab"), NewInt(3))
	if rep.ToString() != "ababab" {
		t.Errorf("got=%s, want=ababab", rep.ToString())
	}
	if Repeat(NewString("ab"), NewInt(0)).ToString() != "" {
		t.Error("expected repeat count 0 to yield empty string")
	}
}

func TestConcatAssignMutatesInPlace(t *testing.T) {
	dst := NewString("foo")
	if err := ConcatAssign(dst, NewString("bar")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if dst.ToString() != "foobar" {
		t.Errorf("got=%s, want=foobar", dst.ToString())
	}
}

func TestLength(t *testing.T) {
	if got := Length(NewString("héllo")).ToInt(); got != 5 {
		t.Errorf("expected rune-count length of 5, got %d", got)
	}
	if Length(NewUndef()).Kind() != KindUndef {
		t.Error("expected length(undef) to be undef")
	}
}

type stubOverload struct {
	handlers map[string]func(a, b *Scalar) (*Scalar, error)
}

func (o *stubOverload) Overload(op string) (func(a, b *Scalar) (*Scalar, error), bool) {
	fn, ok := o.handlers[op]
	return fn, ok
}

func TestOverloadHookWinsOverDefaultAdd(t *testing.T) {
	calls := 0
	ov := &stubOverload{handlers: map[string]func(a, b *Scalar) (*Scalar, error){
		"+": func(a, b *Scalar) (*Scalar, error) {
			calls++
			return NewInt(999), nil
		},
	}}
	blessed := NewBlessed(KindInt, 1, ov)
	got, err := Add(blessed, NewInt(1))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls != 1 {
		t.Errorf("expected overload to be invoked exactly once, got %d", calls)
	}
	if got.ToInt() != 999 {
		t.Errorf("expected overload result 999, got %d", got.ToInt())
	}
}

func TestCompoundOverloadCheckedBeforeBaseOperator(t *testing.T) {
	baseCalls, compoundCalls := 0, 0
	ov := &stubOverload{handlers: map[string]func(a, b *Scalar) (*Scalar, error){
		"+": func(a, b *Scalar) (*Scalar, error) {
			baseCalls++
			return NewInt(1), nil
		},
		"+=": func(a, b *Scalar) (*Scalar, error) {
			compoundCalls++
			return NewInt(42), nil
		},
	}}
	dst := NewBlessed(KindInt, 1, ov)
	if err := AddAssign(dst, NewInt(1)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if compoundCalls != 1 || baseCalls != 0 {
		t.Errorf("expected compound overload to win: base=%d compound=%d", baseCalls, compoundCalls)
	}
	if dst.ToInt() != 42 {
		t.Errorf("got=%d, want=42", dst.ToInt())
	}
}

func TestComparisonOverloadsWinOverDefault(t *testing.T) {
	always := func(v *Scalar) func(a, b *Scalar) (*Scalar, error) {
		return func(a, b *Scalar) (*Scalar, error) { return v, nil }
	}
	ov := &stubOverload{handlers: map[string]func(a, b *Scalar) (*Scalar, error){
		"==":  always(Bool(true)),
		"<":   always(Bool(true)),
		"<=>": always(NewInt(7)),
		"eq":  always(Bool(true)),
		"cmp": always(NewInt(-7)),
	}}
	blessed := NewBlessed(KindInt, 1, ov)

	tests := []struct {
		name string
		fn   func(a, b *Scalar) (*Scalar, error)
		want int64
	}{
		{"numeric ==", Eq, 1},
		{"numeric <", Lt, 1},
		{"numeric <=>", Cmp, 7},
		{"string eq", Seq, 1},
		{"string cmp", Scmp, -7},
	}
	for _, tt := range tests {
		// The default path would compare the blessed wrapper as 0 against
		// -99 and disagree with every expectation below.
		got, err := tt.fn(blessed, NewInt(-99))
		if err != nil {
			t.Errorf("test[%s] - unexpected error: %v", tt.name, err)
			continue
		}
		if got.ToInt() != tt.want {
			t.Errorf("test[%s] - wrong result. got=%d, want=%d", tt.name, got.ToInt(), tt.want)
		}
	}
}

func TestConcatOverloadWinsOverDefault(t *testing.T) {
	ov := &stubOverload{handlers: map[string]func(a, b *Scalar) (*Scalar, error){
		".": func(a, b *Scalar) (*Scalar, error) { return NewString("overloaded"), nil },
	}}
	blessed := NewBlessed(KindString, "x", ov)
	got, err := Concat(blessed, NewString("y"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.ToString() != "overloaded" {
		t.Errorf("got=%s, want=overloaded", got.ToString())
	}
}

func TestConcatAssignCompoundOverloadCheckedFirst(t *testing.T) {
	baseCalls, compoundCalls := 0, 0
	ov := &stubOverload{handlers: map[string]func(a, b *Scalar) (*Scalar, error){
		".": func(a, b *Scalar) (*Scalar, error) {
			baseCalls++
			return NewString("base"), nil
		},
		".=": func(a, b *Scalar) (*Scalar, error) {
			compoundCalls++
			return NewString("compound"), nil
		},
	}}
	dst := NewBlessed(KindString, "x", ov)
	if err := ConcatAssign(dst, NewString("y")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if compoundCalls != 1 || baseCalls != 0 {
		t.Errorf("expected compound overload to win: base=%d compound=%d", baseCalls, compoundCalls)
	}
	if dst.ToString() != "compound" {
		t.Errorf("got=%s, want=compound", dst.ToString())
	}
}

func TestModulusAssignCompoundOverloadCheckedFirst(t *testing.T) {
	compoundCalls := 0
	ov := &stubOverload{handlers: map[string]func(a, b *Scalar) (*Scalar, error){
		"%=": func(a, b *Scalar) (*Scalar, error) {
			compoundCalls++
			return NewInt(11), nil
		},
	}}
	dst := NewBlessed(KindInt, 1, ov)
	if err := ModulusAssign(dst, NewInt(3)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if compoundCalls != 1 {
		t.Errorf("expected compound overload to be invoked exactly once, got %d", compoundCalls)
	}
	if dst.ToInt() != 11 {
		t.Errorf("got=%d, want=11", dst.ToInt())
	}
}
