package iohandle

import (
	"io"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBuildCommandDirectExecWithoutMetacharacters(t *testing.T) {
	cmd := buildCommand("pwd")
	require.Equal(t, "pwd", cmd.Args[0])
	require.Equal(t, []string{"pwd"}, cmd.Args)
}

func TestBuildCommandShellMediatedWithMetacharacters(t *testing.T) {
	cmd := buildCommand("echo $HOME")
	require.Contains(t, cmd.Path, "sh")
	require.Equal(t, []string{"/bin/sh", "-c", "echo $HOME"}, cmd.Args[len(cmd.Args)-3:])
}

func TestSplitFields(t *testing.T) {
	require.Equal(t, []string{"a", "b", "c"}, splitFields("a  b\tc"))
	require.Nil(t, splitFields(""))
	require.Nil(t, splitFields("   "))
}

// TestPipeInHandleEcho spawns `echo hello` as an input pipe, reads it
// back, and observes EOF and a zero exit code.
func TestPipeInHandleEcho(t *testing.T) {
	h, err := NewPipeInHandle("echo hello")
	require.NoError(t, err)

	buf := make([]byte, 64)
	var got []byte
	for {
		n, err := h.Read(buf)
		got = append(got, buf[:n]...)
		if h.EOF() || err != nil {
			break
		}
		if n == 0 {
			break
		}
	}
	require.Equal(t, "hello\n", string(got))
	require.True(t, h.EOF())

	require.NoError(t, h.Close())
	require.Equal(t, 0, h.ExitCode())
}

// TestPipeInHandleClosedAfterClose checks close idempotency and the
// closed-handle failure mode on the pipe backing shape.
func TestPipeInHandleClosedAfterClose(t *testing.T) {
	h, err := NewPipeInHandle("echo x")
	require.NoError(t, err)
	buf := make([]byte, 8)
	for !h.EOF() {
		if _, err := h.Read(buf); err != nil {
			break
		}
	}
	require.NoError(t, h.Close())
	require.NoError(t, h.Close()) // idempotent

	_, err = h.Read(buf)
	require.Error(t, err)
}

func TestPipeOutHandleWritesToChildStdin(t *testing.T) {
	h, err := NewPipeOutHandle("cat")
	require.NoError(t, err)

	n, err := h.Write([]byte("through the pipe"))
	require.NoError(t, err)
	require.Equal(t, len("through the pipe"), n)

	require.NoError(t, h.Close())
	require.Equal(t, 0, h.ExitCode())
}

var _ io.Reader = (*PipeInHandle)(nil)
var _ io.Writer = (*PipeOutHandle)(nil)
