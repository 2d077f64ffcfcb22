// Package scalar implements Perl's polymorphic scalar value and the
// primitive operators the interpreter's opcode handlers dispatch to.
package scalar

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Kind tags the dynamic type currently held by a Scalar.
type Kind uint8

const (
	KindUndef Kind = iota
	KindInt
	KindDouble
	KindString
	KindBool
	KindCodeRef
	KindGlobRef
	KindArrayRef
	KindHashRef
	KindScalarRef
	KindBlessed
)

func (k Kind) String() string {
	switch k {
	case KindUndef:
		return "undef"
	case KindInt:
		return "int"
	case KindDouble:
		return "double"
	case KindString:
		return "string"
	case KindBool:
		return "bool"
	case KindCodeRef:
		return "code-ref"
	case KindGlobRef:
		return "glob-ref"
	case KindArrayRef:
		return "array-ref"
	case KindHashRef:
		return "hash-ref"
	case KindScalarRef:
		return "scalar-ref"
	case KindBlessed:
		return "blessed"
	default:
		return "unknown"
	}
}

// Ref is the opaque payload behind array/hash/scalar/code/glob refs.
// The aggregate representation itself lives outside this module; the
// interpreter only needs identity and existence.
type Ref struct {
	Target interface{}
}

// Overloadable is implemented by blessed wrappers that want to intercept
// binary operators before the default numeric/string path runs.
type Overloadable interface {
	// Overload looks up a handler for op (e.g. "+", "+=", "cmp"). ok is
	// false if the blessed value has no overload for op.
	Overload(op string) (func(a, b *Scalar) (*Scalar, error), bool)
}

// Scalar is a polymorphic, mutable Perl value. Conversions between
// int/double/string are memoised on first computation and invalidated
// whenever the scalar is reassigned via Set*.
type Scalar struct {
	kind Kind

	i int64
	d float64
	s string
	b bool
	r *Ref

	blessed     Overloadable
	blessedKind Kind // underlying kind wrapped by a blessed value

	// memoised conversions; validity tracked by hasX flags, invalidated
	// together whenever the underlying value changes.
	hasIntCache    bool
	intCache       int64
	hasDoubleCache bool
	doubleCache    float64
	hasStringCache bool
	stringCache    string
	hasBoolCache   bool
	boolCache      bool
}

func (s *Scalar) clearCaches() {
	s.hasIntCache = false
	s.hasDoubleCache = false
	s.hasStringCache = false
	s.hasBoolCache = false
}

// ---------------------------------------------------------------------
// Construction
// ---------------------------------------------------------------------

func NewUndef() *Scalar                { return &Scalar{kind: KindUndef} }
func NewInt(i int64) *Scalar           { return &Scalar{kind: KindInt, i: i} }
func NewDouble(d float64) *Scalar      { return &Scalar{kind: KindDouble, d: d} }
func NewString(s string) *Scalar       { return &Scalar{kind: KindString, s: s} }
func NewBool(b bool) *Scalar           { return &Scalar{kind: KindBool, b: b} }
func NewCodeRef(target interface{}) *Scalar {
	return &Scalar{kind: KindCodeRef, r: &Ref{Target: target}}
}
func NewGlobRef(target interface{}) *Scalar {
	return &Scalar{kind: KindGlobRef, r: &Ref{Target: target}}
}
func NewArrayRef(target interface{}) *Scalar {
	return &Scalar{kind: KindArrayRef, r: &Ref{Target: target}}
}
func NewHashRef(target interface{}) *Scalar {
	return &Scalar{kind: KindHashRef, r: &Ref{Target: target}}
}
func NewScalarRef(target *Scalar) *Scalar {
	return &Scalar{kind: KindScalarRef, r: &Ref{Target: target}}
}

// NewBlessed wraps an existing scalar of kind underlying with an
// overload resolver. The wrapper itself carries no value of its own
// beyond the ref payload and the delegate.
func NewBlessed(underlying Kind, payload interface{}, ov Overloadable) *Scalar {
	return &Scalar{kind: KindBlessed, blessedKind: underlying, r: &Ref{Target: payload}, blessed: ov}
}

// ---------------------------------------------------------------------
// Small-value pool — pre-interned undef/true/false/empty-string/small ints
// ---------------------------------------------------------------------

const (
	smallIntLo = -16
	smallIntHi = 256
)

var (
	poolUndef  = NewUndef()
	poolTrue   = NewBool(true)
	poolFalse  = NewBool(false)
	poolEmpty  = NewString("")
	poolSmallI [smallIntHi - smallIntLo + 1]*Scalar
)

func init() {
	for i := smallIntLo; i <= smallIntHi; i++ {
		poolSmallI[i-smallIntLo] = warm(NewInt(int64(i)))
	}
	warm(poolUndef)
	warm(poolTrue)
	warm(poolFalse)
	warm(poolEmpty)
}

// warm precomputes every memoised conversion so pooled scalars are
// never written after init — they are shared across interpreter
// threads without locking, which only holds if runtime access is
// read-only.
func warm(s *Scalar) *Scalar {
	s.ToInt()
	s.ToDouble()
	s.ToString()
	s.ToBoolean()
	return s
}

// Undef returns the pooled undef scalar.
func Undef() *Scalar { return poolUndef }

// Bool returns a pooled true/false scalar.
func Bool(b bool) *Scalar {
	if b {
		return poolTrue
	}
	return poolFalse
}

// EmptyString returns the pooled empty-string scalar.
func EmptyString() *Scalar { return poolEmpty }

// Int returns a pooled scalar for small integers, else allocates.
func Int(i int64) *Scalar {
	if i >= smallIntLo && i <= smallIntHi {
		return poolSmallI[i-smallIntLo]
	}
	return NewInt(i)
}

// ---------------------------------------------------------------------
// Mutators (invalidate caches, replace ownership of the slot's value)
// ---------------------------------------------------------------------

func (s *Scalar) SetInt(i int64) {
	s.kind, s.i = KindInt, i
	s.clearCaches()
}

func (s *Scalar) SetDouble(d float64) {
	s.kind, s.d = KindDouble, d
	s.clearCaches()
}

func (s *Scalar) SetString(str string) {
	s.kind, s.s = KindString, str
	s.clearCaches()
}

func (s *Scalar) SetBool(b bool) {
	s.kind, s.b = KindBool, b
	s.clearCaches()
}

func (s *Scalar) SetUndef() {
	s.kind = KindUndef
	s.clearCaches()
}

// Assign replaces s's contents with src's (deep enough to not alias
// src's memoised caches, since they belong to distinct registers/slots).
func (s *Scalar) Assign(src *Scalar) {
	*s = Scalar{kind: src.kind, i: src.i, d: src.d, s: src.s, b: src.b, r: src.r,
		blessed: src.blessed, blessedKind: src.blessedKind}
}

func (s *Scalar) Kind() Kind { return s.kind }

func (s *Scalar) IsBlessed() bool { return s.kind == KindBlessed }

func (s *Scalar) Overload(op string) (func(a, b *Scalar) (*Scalar, error), bool) {
	if s.blessed == nil {
		return nil, false
	}
	return s.blessed.Overload(op)
}

// RefTarget returns the payload behind a ref-kind or blessed scalar
// (the array/hash/handle/marker it points at), or nil for a scalar with
// no ref payload. Callers type-assert the result to whatever concrete
// type they expect to find there.
func (s *Scalar) RefTarget() interface{} {
	if s.r == nil {
		return nil
	}
	return s.r.Target
}

// ---------------------------------------------------------------------
// Conversions (memoised on first computation)
// ---------------------------------------------------------------------

func (s *Scalar) ToInt() int64 {
	if s.hasIntCache {
		return s.intCache
	}
	var v int64
	switch s.kind {
	case KindInt:
		v = s.i
	case KindDouble:
		v = int64(s.d)
	case KindBool:
		if s.b {
			v = 1
		}
	case KindString:
		v = parseLeadingInt(s.s)
	case KindUndef:
		v = 0
	default:
		v = 0
	}
	s.intCache, s.hasIntCache = v, true
	return v
}

func (s *Scalar) ToDouble() float64 {
	if s.hasDoubleCache {
		return s.doubleCache
	}
	var v float64
	switch s.kind {
	case KindInt:
		v = float64(s.i)
	case KindDouble:
		v = s.d
	case KindBool:
		if s.b {
			v = 1
		}
	case KindString:
		v = parseLeadingFloat(s.s)
	case KindUndef:
		v = 0
	default:
		v = 0
	}
	s.doubleCache, s.hasDoubleCache = v, true
	return v
}

func (s *Scalar) ToString() string {
	if s.hasStringCache {
		return s.stringCache
	}
	var v string
	switch s.kind {
	case KindInt:
		v = strconv.FormatInt(s.i, 10)
	case KindDouble:
		v = formatPerlDouble(s.d)
	case KindBool:
		if s.b {
			v = "1"
		} else {
			v = ""
		}
	case KindString:
		v = s.s
	case KindUndef:
		v = ""
	case KindCodeRef, KindGlobRef, KindArrayRef, KindHashRef, KindScalarRef:
		v = fmt.Sprintf("%s(%p)", s.kind, s.r)
	case KindBlessed:
		v = fmt.Sprintf("Blessed=%s(%p)", s.blessedKind, s.r)
	}
	s.stringCache, s.hasStringCache = v, true
	return v
}

func (s *Scalar) ToBoolean() bool {
	if s.hasBoolCache {
		return s.boolCache
	}
	var v bool
	switch s.kind {
	case KindUndef:
		v = false
	case KindInt:
		v = s.i != 0
	case KindDouble:
		v = s.d != 0
	case KindBool:
		v = s.b
	case KindString:
		v = s.s != "" && s.s != "0"
	default:
		v = true // refs and blessed wrappers are truthy
	}
	s.boolCache, s.hasBoolCache = v, true
	return v
}

func parseLeadingInt(s string) int64 {
	s = strings.TrimLeft(s, " \t\n")
	end := 0
	if end < len(s) && (s[end] == '+' || s[end] == '-') {
		end++
	}
	for end < len(s) && s[end] >= '0' && s[end] <= '9' {
		end++
	}
	if end == 0 {
		return 0
	}
	n, _ := strconv.ParseInt(s[:end], 10, 64)
	return n
}

func parseLeadingFloat(s string) float64 {
	s = strings.TrimLeft(s, " \t\n")
	end := 0
	seenDot, seenExp := false, false
	if end < len(s) && (s[end] == '+' || s[end] == '-') {
		end++
	}
	for end < len(s) {
		c := s[end]
		switch {
		case c >= '0' && c <= '9':
			end++
		case c == '.' && !seenDot && !seenExp:
			seenDot = true
			end++
		case (c == 'e' || c == 'E') && !seenExp:
			seenExp = true
			end++
			if end < len(s) && (s[end] == '+' || s[end] == '-') {
				end++
			}
		default:
			goto done
		}
	}
done:
	if end == 0 {
		return 0
	}
	f, err := strconv.ParseFloat(s[:end], 64)
	if err != nil {
		return 0
	}
	return f
}

func formatPerlDouble(d float64) string {
	if math.IsInf(d, 1) {
		return "Inf"
	}
	if math.IsInf(d, -1) {
		return "-Inf"
	}
	if math.IsNaN(d) {
		return "NaN"
	}
	if d == math.Trunc(d) && math.Abs(d) < 1e15 {
		return strconv.FormatFloat(d, 'f', -1, 64)
	}
	return strconv.FormatFloat(d, 'g', 15, 64)
}
