package interpreter

import "perlrt/internal/scalar"

// markerKind distinguishes the three control-flow markers a subroutine
// can return instead of an ordinary value, per the call ABI's "tagged
// return" channel: a marker looks like a ref to callers that don't
// recognize it, but the interpreter's caller check inspects every
// non-tail CALL's result for one before treating it as a plain scalar.
//
// MARK_TAIL has no marker kind here: unlike LAST/NEXT/REDO, a tail call
// never needs to propagate past the frame that issues it — it performs
// the frame-reuse trampoline immediately, the same as TAIL_CALL, so it
// never produces a value for a caller to inspect at all.
type markerKind int

const (
	markerLast markerKind = iota
	markerNext
	markerRedo
)

func (k markerKind) String() string {
	switch k {
	case markerLast:
		return "last"
	case markerNext:
		return "next"
	case markerRedo:
		return "redo"
	default:
		return "unknown"
	}
}

// marker is the payload carried behind a blessed "Control::Marker"
// scalar — never surfaced to ordinary Perl code, only ever produced by
// MARK_LAST/MARK_NEXT/MARK_REDO and consumed by the owning frame's loop
// handler once it propagates up the call chain to it.
type marker struct {
	kind  markerKind
	label string
}

func newMarkerScalar(m *marker) *scalar.Scalar {
	return scalar.NewBlessed(scalar.KindUndef, m, nil)
}

// asMarker returns the marker payload behind s, or (nil, false) if s is
// an ordinary value.
func asMarker(s *scalar.Scalar) (*marker, bool) {
	if s == nil || s.Kind() != scalar.KindBlessed {
		return nil, false
	}
	m, ok := s.RefTarget().(*marker)
	return m, ok
}
