// Package ioerr is the error taxonomy shared by the interpreter and the
// layered I/O subsystem: Perl exceptions, I/O failures, closed-handle
// access, unsupported operations, and invariant violations.
package ioerr

import (
	"fmt"
	"strings"
	"sync"

	"github.com/pkg/errors"
)

// Kind tags the taxonomy a RuntimeError belongs to, so callers can branch
// on category (e.g. "is this status-return-worthy I/O, or a die-able
// exception?") without string-matching messages.
type Kind string

const (
	KindException   Kind = "Exception"   // die-able Perl exception
	KindIO          Kind = "IOError"     // status-return I/O failure
	KindClosed      Kind = "ClosedHandle"
	KindUnsupported Kind = "Unsupported"
	KindArithmetic  Kind = "Arithmetic"
	KindInvariant   Kind = "Invariant"
)

// SourceLocation mirrors the file/line/column a failure is attributable
// to, when the interpreter has one (a bytecode PC maps back to none by
// default; the compiler attaches one when available).
type SourceLocation struct {
	File   string
	Line   int
	Column int
}

// StackFrame is a single call-stack entry captured at raise time.
type StackFrame struct {
	Function string
	Line     int
}

// RuntimeError is the taxonomy's concrete error type. CallStack is
// populated by the interpreter unwinding frames as the error propagates;
// lower layers (scalar, bytecode, iohandle) leave it empty and let
// pkg/errors.Wrap accumulate context as the error rises. cause holds
// the wrapped lower-level error (when there is one) so both
// pkg/errors.Cause and stdlib errors.Is/As traverse down to the
// original syscall failure.
type RuntimeError struct {
	Kind      Kind
	Message   string
	Location  SourceLocation
	CallStack []StackFrame

	cause error
}

// Cause returns the wrapped lower-level error, for pkg/errors.Cause
// traversal. Nil when the error originated in this runtime.
func (e *RuntimeError) Cause() error { return e.cause }

// Unwrap is Cause's stdlib-errors spelling, so errors.Is/errors.As
// walk the same chain.
func (e *RuntimeError) Unwrap() error { return e.cause }

func (e *RuntimeError) Error() string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%s: %s", e.Kind, e.Message))
	if e.Location.File != "" {
		sb.WriteString(fmt.Sprintf(" at %s:%d:%d", e.Location.File, e.Location.Line, e.Location.Column))
	}
	for _, f := range e.CallStack {
		sb.WriteString(fmt.Sprintf("\n  at %s:%d", f.Function, f.Line))
	}
	return sb.String()
}

// PushFrame records a call-stack entry as the error unwinds through the
// interpreter's frame stack.
func (e *RuntimeError) PushFrame(function string, line int) *RuntimeError {
	e.CallStack = append(e.CallStack, StackFrame{Function: function, Line: line})
	return e
}

func newErr(kind Kind, format string, args ...interface{}) *RuntimeError {
	return &RuntimeError{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// NewException constructs a die-able Perl exception (KindException).
func NewException(format string, args ...interface{}) *RuntimeError {
	return newErr(KindException, format, args...)
}

// NewArithmetic constructs a KindArithmetic error — division/modulus by
// zero, overflow the caller chose not to silently promote, etc.
func NewArithmetic(format string, args ...interface{}) *RuntimeError {
	return newErr(KindArithmetic, format, args...)
}

// NewClosed constructs a KindClosed error for operations attempted on an
// already-closed handle. Closed-handle failures are I/O errors in the
// taxonomy, so they also update the process-wide last error.
func NewClosed(op string) *RuntimeError {
	e := newErr(KindClosed, "operation %q on closed handle", op)
	SetLastError(e.Message)
	return e
}

// NewUnsupported constructs a KindUnsupported error for an operation a
// particular backing handle shape does not implement (e.g. seek on a
// process pipe). Also recorded as the process-wide last error.
func NewUnsupported(op, shape string) *RuntimeError {
	e := newErr(KindUnsupported, "operation %q not supported on %s handle", op, shape)
	SetLastError(e.Message)
	return e
}

// NewInvariant constructs a KindInvariant error for a condition that
// should be unreachable if the compiler/verifier did its job (bad branch
// target, out-of-range register, corrupt constant pool index).
func NewInvariant(format string, args ...interface{}) *RuntimeError {
	return newErr(KindInvariant, format, args...)
}

// lastError is the process-wide last-I/O-error string (Perl's $! view
// of the world): every I/O failure records itself here on its way up,
// so callers that got a status-return false/undef can still read what
// went wrong. Readers never lock against each other.
var lastError struct {
	mu  sync.RWMutex
	msg string
}

// SetLastError records msg as the process-wide last I/O error.
func SetLastError(msg string) {
	lastError.mu.Lock()
	lastError.msg = msg
	lastError.mu.Unlock()
}

// LastError returns the most recently recorded I/O error string, or ""
// if no I/O failure has occurred.
func LastError() string {
	lastError.mu.RLock()
	defer lastError.mu.RUnlock()
	return lastError.msg
}

// WrapIO wraps a lower-level error (typically from os/net syscalls) as a
// KindIO RuntimeError, preserving the original via pkg/errors so Cause()
// still reaches the syscall error. The failure is also recorded as the
// process-wide last error.
func WrapIO(err error, context string) error {
	if err == nil {
		return nil
	}
	wrapped := errors.Wrap(err, context)
	re := &RuntimeError{Kind: KindIO, Message: wrapped.Error(), cause: wrapped}
	SetLastError(re.Message)
	return re
}

// IsClosed reports whether err is a closed-handle failure, unwrapping
// causal chains on the way.
func IsClosed(err error) bool { return Is(err, KindClosed) }

// IsUnsupported reports whether err is an unsupported-operation
// failure (seek on a pipe, truncate on a socket, ...).
func IsUnsupported(err error) bool { return Is(err, KindUnsupported) }

// Is reports whether err is a RuntimeError of the given Kind, unwrapping
// pkg/errors-style causal chains.
func Is(err error, kind Kind) bool {
	for err != nil {
		if re, ok := err.(*RuntimeError); ok {
			return re.Kind == kind
		}
		c, ok := err.(interface{ Cause() error })
		if !ok {
			return false
		}
		err = c.Cause()
	}
	return false
}
