package ioerr

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
)

func TestKindConstructors(t *testing.T) {
	require.Equal(t, KindException, NewException("boom %d", 1).Kind)
	require.Equal(t, KindArithmetic, NewArithmetic("div by zero").Kind)
	require.Equal(t, KindClosed, NewClosed("read").Kind)
	require.Equal(t, KindUnsupported, NewUnsupported("seek", "pipe").Kind)
	require.Equal(t, KindInvariant, NewInvariant("bad pc %d", 7).Kind)
}

func TestErrorMessageIncludesLocationAndStack(t *testing.T) {
	e := NewException("division by zero")
	e.Location = SourceLocation{File: "prog.pl", Line: 3, Column: 5}
	e.PushFrame("main", 3).PushFrame("helper", 9)

	msg := e.Error()
	require.Contains(t, msg, "Exception: division by zero")
	require.Contains(t, msg, "prog.pl:3:5")
	require.Contains(t, msg, "main:3")
	require.Contains(t, msg, "helper:9")
}

func TestIsUnwrapsPkgErrorsCause(t *testing.T) {
	base := NewClosed("write")
	wrapped := errors.Wrap(base, "layered handle write")
	require.True(t, Is(wrapped, KindClosed))
	require.False(t, Is(wrapped, KindUnsupported))
}

func TestWrapIONilIsNil(t *testing.T) {
	require.NoError(t, WrapIO(nil, "context"))
}

func TestWrapIOProducesIOKind(t *testing.T) {
	err := WrapIO(errors.New("disk full"), "file write")
	require.True(t, Is(err, KindIO))
	require.Contains(t, err.Error(), "disk full")
}

func TestWrapIOCauseReachesOriginalError(t *testing.T) {
	base := errors.New("connection reset by peer")
	err := WrapIO(base, "socket read")

	require.Equal(t, base, errors.Cause(err),
		"pkg/errors.Cause must traverse to the original syscall error")
	require.ErrorIs(t, err, base,
		"stdlib errors.Is must walk the same chain via Unwrap")
}

func TestKindHelpers(t *testing.T) {
	require.True(t, IsClosed(NewClosed("read")))
	require.False(t, IsClosed(NewUnsupported("seek", "pipe")))
	require.True(t, IsUnsupported(NewUnsupported("seek", "pipe")))
	require.False(t, IsUnsupported(NewClosed("read")))

	wrapped := errors.Wrap(NewClosed("write"), "layered handle write")
	require.True(t, IsClosed(wrapped), "helpers must see through pkg/errors wrapping")
}

func TestIOFailuresRecordProcessWideLastError(t *testing.T) {
	SetLastError("")

	_ = WrapIO(errors.New("connection reset"), "socket read")
	require.Contains(t, LastError(), "connection reset")

	_ = NewClosed("write")
	require.Contains(t, LastError(), "closed handle")
}
