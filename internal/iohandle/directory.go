package iohandle

import (
	"os"

	"perlrt/internal/ioerr"
)

// DirectoryHandle implements the separate readdir/seekdir/telldir/
// rewinddir/closedir API: entries are always prefixed by "." and
// "..", and seek positions are indices into the fully-materialised
// entry list.
type DirectoryHandle struct {
	entries []string
	pos     int
	closed  bool
}

// NewDirectoryHandle materializes path's entries, prefixed with "." and
// "..", ready for Readdir/Seekdir.
func NewDirectoryHandle(path string) (*DirectoryHandle, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, ioerr.WrapIO(err, "opendir")
	}
	defer f.Close()
	names, err := f.Readdirnames(-1)
	if err != nil {
		return nil, ioerr.WrapIO(err, "readdir")
	}
	entries := make([]string, 0, len(names)+2)
	entries = append(entries, ".", "..")
	entries = append(entries, names...)
	return &DirectoryHandle{entries: entries}, nil
}

// Readdir returns the next entry name, or ("", false) at end-of-list.
func (h *DirectoryHandle) Readdir() (string, bool) {
	if h.closed || h.pos >= len(h.entries) {
		return "", false
	}
	name := h.entries[h.pos]
	h.pos++
	return name, true
}

// Telldir returns the current index into the materialised entry list.
func (h *DirectoryHandle) Telldir() int { return h.pos }

// Seekdir repositions to a previously observed Telldir index.
func (h *DirectoryHandle) Seekdir(pos int) {
	if pos < 0 {
		pos = 0
	}
	if pos > len(h.entries) {
		pos = len(h.entries)
	}
	h.pos = pos
}

// Rewinddir resets to the first entry.
func (h *DirectoryHandle) Rewinddir() { h.pos = 0 }

// Closedir marks the handle closed; further Readdir calls return false.
func (h *DirectoryHandle) Closedir() error {
	h.closed = true
	return nil
}
