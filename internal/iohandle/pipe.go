package iohandle

import (
	"bufio"
	"io"
	"os/exec"
	"regexp"
	"runtime"
	"sync"

	"perlrt/internal/ioerr"
)

// shellMetacharacters decides the spawning mode: a command string
// containing any of these is shell-mediated; otherwise it is split on
// whitespace and exec'ed directly.
var shellMetacharacters = regexp.MustCompile(`[*?\[\]{}()<>|&;` + "`" + `'"\\$\s]`)

func buildCommand(command string) *exec.Cmd {
	if shellMetacharacters.MatchString(command) {
		if runtime.GOOS == "windows" {
			return exec.Command("cmd.exe", "/c", command)
		}
		return exec.Command("/bin/sh", "-c", command)
	}
	fields := splitFields(command)
	if len(fields) == 0 {
		return exec.Command(command)
	}
	return exec.Command(fields[0], fields[1:]...)
}

func splitFields(s string) []string {
	var fields []string
	cur := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c == ' ' || c == '\t' || c == '\n' {
			if len(cur) > 0 {
				fields = append(fields, string(cur))
				cur = cur[:0]
			}
			continue
		}
		cur = append(cur, c)
	}
	if len(cur) > 0 {
		fields = append(fields, string(cur))
	}
	return fields
}

// drainStderr consumes the child's stderr on a daemon goroutine so it
// never blocks the child on a full pipe while the caller is only
// reading stdout.
func drainStderr(r io.Reader) *[]byte {
	captured := make([]byte, 0, 256)
	done := make(chan struct{})
	go func() {
		defer close(done)
		scanner := bufio.NewReader(r)
		buf := make([]byte, 4096)
		for {
			n, err := scanner.Read(buf)
			if n > 0 {
				captured = append(captured, buf[:n]...)
			}
			if err != nil {
				return
			}
		}
	}()
	return &captured
}

// PipeInHandle spawns a child process and reads its stdout as raw
// octets; stderr is drained by a daemon goroutine to avoid blocking the
// child if the caller never reads stderr itself.
type PipeInHandle struct {
	cmd    *exec.Cmd
	stdout io.ReadCloser
	eof    bool
	closed bool
	mu     sync.Mutex
}

// NewPipeInHandle spawns command and returns a handle over its stdout.
func NewPipeInHandle(command string) (*PipeInHandle, error) {
	cmd := buildCommand(command)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, ioerr.WrapIO(err, "pipe stdout")
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, ioerr.WrapIO(err, "pipe stderr")
	}
	if err := cmd.Start(); err != nil {
		return nil, ioerr.WrapIO(err, "pipe start")
	}
	drainStderr(stderr)
	return &PipeInHandle{cmd: cmd, stdout: stdout}, nil
}

func (h *PipeInHandle) Read(p []byte) (int, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return 0, ioerr.NewClosed("read")
	}
	n, err := h.stdout.Read(p)
	if err == io.EOF {
		h.eof = true
		return n, nil
	}
	if err != nil {
		return n, ioerr.WrapIO(err, "pipe read")
	}
	return n, nil
}

func (h *PipeInHandle) Write([]byte) (int, error) {
	return 0, ioerr.NewUnsupported("write", "process pipe (input)")
}

func (h *PipeInHandle) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return nil
	}
	h.closed = true
	_ = h.stdout.Close()
	return ioerr.WrapIO(h.cmd.Wait(), "pipe wait")
}

func (h *PipeInHandle) Flush() error { return nil }
func (h *PipeInHandle) EOF() bool    { return h.eof }
func (h *PipeInHandle) Tell() (int64, error) { return -1, nil }
func (h *PipeInHandle) Seek(int64, Whence) (int64, error) {
	return -1, ioerr.NewUnsupported("seek", "process pipe")
}
func (h *PipeInHandle) Truncate(int64) error {
	return ioerr.NewUnsupported("truncate", "process pipe")
}
func (h *PipeInHandle) Fileno() (int, bool) { return 0, false }

// ExitCode returns the child's exit code; only meaningful after Close.
func (h *PipeInHandle) ExitCode() int {
	if h.cmd.ProcessState == nil {
		return -1
	}
	return h.cmd.ProcessState.ExitCode()
}

// PipeOutHandle is the symmetric write side: writes feed the child's
// stdin; Close waits for the child to terminate.
type PipeOutHandle struct {
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	closed bool
	mu     sync.Mutex
}

// NewPipeOutHandle spawns command and returns a handle over its stdin.
func NewPipeOutHandle(command string) (*PipeOutHandle, error) {
	cmd := buildCommand(command)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, ioerr.WrapIO(err, "pipe stdin")
	}
	if err := cmd.Start(); err != nil {
		return nil, ioerr.WrapIO(err, "pipe start")
	}
	return &PipeOutHandle{cmd: cmd, stdin: stdin}, nil
}

func (h *PipeOutHandle) Read([]byte) (int, error) {
	return 0, ioerr.NewUnsupported("read", "process pipe (output)")
}

func (h *PipeOutHandle) Write(p []byte) (int, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return 0, ioerr.NewClosed("write")
	}
	n, err := h.stdin.Write(p)
	if err != nil {
		return n, ioerr.WrapIO(err, "pipe write")
	}
	return n, nil
}

func (h *PipeOutHandle) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return nil
	}
	h.closed = true
	_ = h.stdin.Close()
	return ioerr.WrapIO(h.cmd.Wait(), "pipe wait")
}

func (h *PipeOutHandle) Flush() error { return nil }
func (h *PipeOutHandle) EOF() bool    { return false }
func (h *PipeOutHandle) Tell() (int64, error) { return -1, nil }
func (h *PipeOutHandle) Seek(int64, Whence) (int64, error) {
	return -1, ioerr.NewUnsupported("seek", "process pipe")
}
func (h *PipeOutHandle) Truncate(int64) error {
	return ioerr.NewUnsupported("truncate", "process pipe")
}
func (h *PipeOutHandle) Fileno() (int, bool) { return 0, false }

func (h *PipeOutHandle) ExitCode() int {
	if h.cmd.ProcessState == nil {
		return -1
	}
	return h.cmd.ProcessState.ExitCode()
}
