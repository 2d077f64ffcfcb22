package scalar

import (
	"strconv"
	"strings"

	"perlrt/internal/ioerr"
)

// numeric reports whether s participates in numeric arithmetic without
// string coercion (int, double, bool or undef).
func numeric(s *Scalar) bool {
	return s.kind == KindInt || s.kind == KindDouble || s.kind == KindBool || s.kind == KindUndef
}

// overloadBinary consults a's (then b's) blessed overload table before
// falling back to the default primitive. Mirrors the interpreter's
// "check blessed operand, else fast arithmetic path" dispatch order.
func overloadBinary(op string, a, b *Scalar) (*Scalar, bool, error) {
	if a.IsBlessed() {
		if fn, ok := a.Overload(op); ok {
			r, err := fn(a, b)
			return r, true, err
		}
	}
	if b.IsBlessed() {
		if fn, ok := b.Overload(op); ok {
			r, err := fn(a, b)
			return r, true, err
		}
	}
	return nil, false, nil
}

// Add implements Perl's numeric '+'.
func Add(a, b *Scalar) (*Scalar, error) {
	if r, handled, err := overloadBinary("+", a, b); handled {
		return r, err
	}
	if a.kind == KindInt && b.kind == KindInt {
		sum := a.i + b.i
		return Int(sum), nil
	}
	return NewDouble(a.ToDouble() + b.ToDouble()), nil
}

// AddAssign mutates dst in place to dst += src, checking the compound
// overload before falling back to Add + Set.
func AddAssign(dst, src *Scalar) error {
	if dst.IsBlessed() {
		if fn, ok := dst.Overload("+="); ok {
			r, err := fn(dst, src)
			if err != nil {
				return err
			}
			dst.Assign(r)
			return nil
		}
	}
	r, err := Add(dst, src)
	if err != nil {
		return err
	}
	dst.Assign(r)
	return nil
}

func Subtract(a, b *Scalar) (*Scalar, error) {
	if r, handled, err := overloadBinary("-", a, b); handled {
		return r, err
	}
	if a.kind == KindInt && b.kind == KindInt {
		return Int(a.i - b.i), nil
	}
	return NewDouble(a.ToDouble() - b.ToDouble()), nil
}

func SubtractAssign(dst, src *Scalar) error {
	if dst.IsBlessed() {
		if fn, ok := dst.Overload("-="); ok {
			r, err := fn(dst, src)
			if err != nil {
				return err
			}
			dst.Assign(r)
			return nil
		}
	}
	r, err := Subtract(dst, src)
	if err != nil {
		return err
	}
	dst.Assign(r)
	return nil
}

func Multiply(a, b *Scalar) (*Scalar, error) {
	if r, handled, err := overloadBinary("*", a, b); handled {
		return r, err
	}
	if a.kind == KindInt && b.kind == KindInt {
		x, y := a.i, b.i
		result := x * y
		if x != 0 && result/x != y {
			return NewDouble(float64(x) * float64(y)), nil
		}
		return Int(result), nil
	}
	return NewDouble(a.ToDouble() * b.ToDouble()), nil
}

func MultiplyAssign(dst, src *Scalar) error {
	if dst.IsBlessed() {
		if fn, ok := dst.Overload("*="); ok {
			r, err := fn(dst, src)
			if err != nil {
				return err
			}
			dst.Assign(r)
			return nil
		}
	}
	r, err := Multiply(dst, src)
	if err != nil {
		return err
	}
	dst.Assign(r)
	return nil
}

func Divide(a, b *Scalar) (*Scalar, error) {
	if r, handled, err := overloadBinary("/", a, b); handled {
		return r, err
	}
	divisor := b.ToDouble()
	if divisor == 0 {
		return nil, ioerr.NewArithmetic("division by zero")
	}
	return NewDouble(a.ToDouble() / divisor), nil
}

func DivideAssign(dst, src *Scalar) error {
	if dst.IsBlessed() {
		if fn, ok := dst.Overload("/="); ok {
			r, err := fn(dst, src)
			if err != nil {
				return err
			}
			dst.Assign(r)
			return nil
		}
	}
	r, err := Divide(dst, src)
	if err != nil {
		return err
	}
	dst.Assign(r)
	return nil
}

func Modulus(a, b *Scalar) (*Scalar, error) {
	if r, handled, err := overloadBinary("%", a, b); handled {
		return r, err
	}
	divisor := b.ToInt()
	if divisor == 0 {
		return nil, ioerr.NewArithmetic("illegal modulus zero")
	}
	result := a.ToInt() % divisor
	// Perl's % follows the sign of the right operand.
	if result != 0 && (result < 0) != (divisor < 0) {
		result += divisor
	}
	return Int(result), nil
}

func ModulusAssign(dst, src *Scalar) error {
	if dst.IsBlessed() {
		if fn, ok := dst.Overload("%="); ok {
			r, err := fn(dst, src)
			if err != nil {
				return err
			}
			dst.Assign(r)
			return nil
		}
	}
	r, err := Modulus(dst, src)
	if err != nil {
		return err
	}
	dst.Assign(r)
	return nil
}

func Negate(a *Scalar) *Scalar {
	if a.kind == KindInt {
		return Int(-a.i)
	}
	return NewDouble(-a.ToDouble())
}

// ---------------------------------------------------------------------
// Numeric comparisons
// ---------------------------------------------------------------------

func cmpNumeric(a, b *Scalar) int {
	if a.kind == KindInt && b.kind == KindInt {
		switch {
		case a.i < b.i:
			return -1
		case a.i > b.i:
			return 1
		default:
			return 0
		}
	}
	x, y := a.ToDouble(), b.ToDouble()
	switch {
	case x < y:
		return -1
	case x > y:
		return 1
	default:
		return 0
	}
}

// Every comparison consults the overload resolver first, same as the
// arithmetic primitives — a blessed operand's "<" handler (or "lt" on
// the string side) pre-empts the default path entirely.

func Lt(a, b *Scalar) (*Scalar, error) {
	if r, handled, err := overloadBinary("<", a, b); handled {
		return r, err
	}
	return Bool(cmpNumeric(a, b) < 0), nil
}

func Le(a, b *Scalar) (*Scalar, error) {
	if r, handled, err := overloadBinary("<=", a, b); handled {
		return r, err
	}
	return Bool(cmpNumeric(a, b) <= 0), nil
}

func Gt(a, b *Scalar) (*Scalar, error) {
	if r, handled, err := overloadBinary(">", a, b); handled {
		return r, err
	}
	return Bool(cmpNumeric(a, b) > 0), nil
}

func Ge(a, b *Scalar) (*Scalar, error) {
	if r, handled, err := overloadBinary(">=", a, b); handled {
		return r, err
	}
	return Bool(cmpNumeric(a, b) >= 0), nil
}

func Eq(a, b *Scalar) (*Scalar, error) {
	if r, handled, err := overloadBinary("==", a, b); handled {
		return r, err
	}
	return Bool(cmpNumeric(a, b) == 0), nil
}

func Ne(a, b *Scalar) (*Scalar, error) {
	if r, handled, err := overloadBinary("!=", a, b); handled {
		return r, err
	}
	return Bool(cmpNumeric(a, b) != 0), nil
}

func Cmp(a, b *Scalar) (*Scalar, error) {
	if r, handled, err := overloadBinary("<=>", a, b); handled {
		return r, err
	}
	return Int(int64(cmpNumeric(a, b))), nil
}

// ---------------------------------------------------------------------
// String comparisons
// ---------------------------------------------------------------------

func cmpString(a, b *Scalar) int { return strings.Compare(a.ToString(), b.ToString()) }

func Slt(a, b *Scalar) (*Scalar, error) {
	if r, handled, err := overloadBinary("lt", a, b); handled {
		return r, err
	}
	return Bool(cmpString(a, b) < 0), nil
}

func Sle(a, b *Scalar) (*Scalar, error) {
	if r, handled, err := overloadBinary("le", a, b); handled {
		return r, err
	}
	return Bool(cmpString(a, b) <= 0), nil
}

func Sgt(a, b *Scalar) (*Scalar, error) {
	if r, handled, err := overloadBinary("gt", a, b); handled {
		return r, err
	}
	return Bool(cmpString(a, b) > 0), nil
}

func Sge(a, b *Scalar) (*Scalar, error) {
	if r, handled, err := overloadBinary("ge", a, b); handled {
		return r, err
	}
	return Bool(cmpString(a, b) >= 0), nil
}

func Seq(a, b *Scalar) (*Scalar, error) {
	if r, handled, err := overloadBinary("eq", a, b); handled {
		return r, err
	}
	return Bool(cmpString(a, b) == 0), nil
}

func Sne(a, b *Scalar) (*Scalar, error) {
	if r, handled, err := overloadBinary("ne", a, b); handled {
		return r, err
	}
	return Bool(cmpString(a, b) != 0), nil
}

func Scmp(a, b *Scalar) (*Scalar, error) {
	if r, handled, err := overloadBinary("cmp", a, b); handled {
		return r, err
	}
	return Int(int64(cmpString(a, b))), nil
}

// ---------------------------------------------------------------------
// String operators
// ---------------------------------------------------------------------

func Concat(a, b *Scalar) (*Scalar, error) {
	if r, handled, err := overloadBinary(".", a, b); handled {
		return r, err
	}
	return NewString(a.ToString() + b.ToString()), nil
}

// ConcatAssign mutates dst in place to dst .= src, checking the
// compound overload before falling back to Concat + Assign.
func ConcatAssign(dst, src *Scalar) error {
	if dst.IsBlessed() {
		if fn, ok := dst.Overload(".="); ok {
			r, err := fn(dst, src)
			if err != nil {
				return err
			}
			dst.Assign(r)
			return nil
		}
	}
	r, err := Concat(dst, src)
	if err != nil {
		return err
	}
	dst.Assign(r)
	return nil
}

func Length(a *Scalar) *Scalar {
	if a.kind == KindUndef {
		return Undef()
	}
	return Int(int64(len([]rune(a.ToString()))))
}

func Repeat(a *Scalar, n *Scalar) *Scalar {
	count := n.ToInt()
	if count <= 0 {
		return EmptyString()
	}
	return NewString(strings.Repeat(a.ToString(), int(count)))
}

// ---------------------------------------------------------------------
// Numeric string formatting helper used by LOAD_CONST-style int literals
// ---------------------------------------------------------------------

// ParseIntLiteral parses a base-10 integer literal into an int64.
func ParseIntLiteral(lit string) (int64, error) {
	return strconv.ParseInt(lit, 10, 64)
}
