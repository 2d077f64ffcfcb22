package iohandle

import (
	"errors"

	"perlrt/internal/ioerr"
)

var errNegativeSeek = errors.New("negative position")

// ScalarHandle is a byte-string "file" backed by a mutable in-memory
// buffer — the scalar-ref-backed filehandle, with full random access,
// truncate, and seek on all whences.
type ScalarHandle struct {
	buf    []byte
	pos    int64
	eof    bool
	closed bool
}

// NewScalarHandle wraps initial as the handle's backing bytes (copied,
// so later mutation of the caller's slice doesn't alias the handle).
func NewScalarHandle(initial []byte) *ScalarHandle {
	buf := make([]byte, len(initial))
	copy(buf, initial)
	return &ScalarHandle{buf: buf}
}

// Bytes returns the handle's current contents.
func (h *ScalarHandle) Bytes() []byte { return h.buf }

func (h *ScalarHandle) Read(p []byte) (int, error) {
	if h.closed {
		return 0, ioerr.NewClosed("read")
	}
	if h.pos >= int64(len(h.buf)) {
		h.eof = true
		return 0, nil
	}
	n := copy(p, h.buf[h.pos:])
	h.pos += int64(n)
	if h.pos >= int64(len(h.buf)) {
		h.eof = true
	}
	return n, nil
}

func (h *ScalarHandle) Write(p []byte) (int, error) {
	if h.closed {
		return 0, ioerr.NewClosed("write")
	}
	end := h.pos + int64(len(p))
	if end > int64(len(h.buf)) {
		grown := make([]byte, end)
		copy(grown, h.buf)
		h.buf = grown
	}
	copy(h.buf[h.pos:end], p)
	h.pos = end
	return len(p), nil
}

func (h *ScalarHandle) Close() error {
	h.closed = true
	return nil
}

func (h *ScalarHandle) Flush() error {
	if h.closed {
		return ioerr.NewClosed("flush")
	}
	return nil
}

func (h *ScalarHandle) EOF() bool { return h.eof }

func (h *ScalarHandle) Tell() (int64, error) {
	if h.closed {
		return -1, ioerr.NewClosed("tell")
	}
	return h.pos, nil
}

func (h *ScalarHandle) Seek(offset int64, whence Whence) (int64, error) {
	if h.closed {
		return -1, ioerr.NewClosed("seek")
	}
	var base int64
	switch whence {
	case SeekSet:
		base = 0
	case SeekCur:
		base = h.pos
	case SeekEnd:
		base = int64(len(h.buf))
	default:
		return -1, ioerr.NewInvariant("iohandle: unknown whence %d", whence)
	}
	target := base + offset
	if target < 0 {
		return -1, ioerr.WrapIO(errNegativeSeek, "scalar seek")
	}
	h.pos = target
	h.eof = false
	return h.pos, nil
}

func (h *ScalarHandle) Truncate(length int64) error {
	if h.closed {
		return ioerr.NewClosed("truncate")
	}
	if length < 0 {
		return ioerr.WrapIO(errNegativeSeek, "scalar truncate")
	}
	if length <= int64(len(h.buf)) {
		h.buf = h.buf[:length]
		return nil
	}
	grown := make([]byte, length)
	copy(grown, h.buf)
	h.buf = grown
	return nil
}

func (h *ScalarHandle) Fileno() (int, bool) { return 0, false }
