package iohandle

import (
	"io"
	"os"

	"perlrt/internal/ioerr"
)

// FileHandle delegates to an underlying OS file: a byte-seekable
// channel whose default layer stack is raw.
type FileHandle struct {
	f      *os.File
	eof    bool
	closed bool
}

// NewFileHandle wraps an already-opened *os.File.
func NewFileHandle(f *os.File) *FileHandle {
	return &FileHandle{f: f}
}

func (h *FileHandle) Read(p []byte) (int, error) {
	if h.closed {
		return 0, ioerr.NewClosed("read")
	}
	n, err := h.f.Read(p)
	if err == io.EOF {
		h.eof = true
		return n, nil
	}
	if err != nil {
		return n, ioerr.WrapIO(err, "file read")
	}
	return n, nil
}

func (h *FileHandle) Write(p []byte) (int, error) {
	if h.closed {
		return 0, ioerr.NewClosed("write")
	}
	n, err := h.f.Write(p)
	if err != nil {
		return n, ioerr.WrapIO(err, "file write")
	}
	return n, nil
}

func (h *FileHandle) Close() error {
	if h.closed {
		return nil
	}
	h.closed = true
	if err := h.f.Close(); err != nil {
		return ioerr.WrapIO(err, "file close")
	}
	return nil
}

func (h *FileHandle) Flush() error {
	if h.closed {
		return ioerr.NewClosed("flush")
	}
	return ioerr.WrapIO(h.f.Sync(), "file flush")
}

func (h *FileHandle) EOF() bool { return h.eof }

func (h *FileHandle) Tell() (int64, error) {
	if h.closed {
		return -1, ioerr.NewClosed("tell")
	}
	pos, err := h.f.Seek(0, io.SeekCurrent)
	if err != nil {
		return -1, ioerr.WrapIO(err, "file tell")
	}
	return pos, nil
}

func (h *FileHandle) Seek(offset int64, whence Whence) (int64, error) {
	if h.closed {
		return -1, ioerr.NewClosed("seek")
	}
	pos, err := h.f.Seek(offset, int(whence))
	if err != nil {
		return -1, ioerr.WrapIO(err, "file seek")
	}
	h.eof = false
	return pos, nil
}

func (h *FileHandle) Truncate(length int64) error {
	if h.closed {
		return ioerr.NewClosed("truncate")
	}
	return ioerr.WrapIO(h.f.Truncate(length), "file truncate")
}

func (h *FileHandle) Fileno() (int, bool) {
	if h.closed {
		return 0, false
	}
	fd := int(h.f.Fd())
	if fd < 0 {
		return 0, false
	}
	return fd, true
}
