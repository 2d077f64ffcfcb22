// Package iohandle implements the byte-level IOHandle contract and its
// backing shapes: file, socket, scalar-backed buffer, standard
// stream, process pipe, closed sentinel, and directory handle.
// internal/layeredio composes character-set and line-ending
// transformations on top of whatever Handle a caller obtains here.
package iohandle

import "io"

// Whence mirrors os.Seek's three reference points.
type Whence int

const (
	SeekSet Whence = iota
	SeekCur
	SeekEnd
)

// Handle is the operation set every backing shape must provide.
// It operates on raw bytes; character decoding, line-ending conversion,
// and the code-point unget buffer are layeredio's job, built on top of
// a Handle rather than duplicated into every backing shape.
type Handle interface {
	io.Reader
	io.Writer

	// Close flushes (if applicable) then releases the handle's
	// resources. Idempotent: closing an already-closed handle is a
	// no-op that returns nil.
	Close() error

	// Flush commits any implementation-buffered output.
	Flush() error

	// EOF reports whether the most recent Read observed end-of-stream.
	EOF() bool

	// Tell returns the current byte position, or -1 if not meaningful
	// for this backing shape.
	Tell() (int64, error)

	// Seek repositions the handle, clearing EOF. Unsupported backing
	// shapes (sockets, pipes) return ioerr.NewUnsupported.
	Seek(offset int64, whence Whence) (int64, error)

	// Truncate sets the backing store's length. Unsupported on
	// non-random-access shapes.
	Truncate(length int64) error

	// Fileno returns an implementation-specific integer identifier (a
	// real OS fd when one exists), and false when the shape has none.
	Fileno() (int, bool)
}

// Registry keys Handles by a string id (NewID mints UUIDs for this).
// No Fileno implementation consults it: shapes with no real fd report
// false from Fileno.
type Registry struct {
	handles map[string]Handle
}

// NewRegistry returns an empty handle registry.
func NewRegistry() *Registry {
	return &Registry{handles: make(map[string]Handle)}
}

func (r *Registry) Put(id string, h Handle) { r.handles[id] = h }
func (r *Registry) Get(id string) (Handle, bool) {
	h, ok := r.handles[id]
	return h, ok
}
func (r *Registry) Delete(id string) { delete(r.handles, id) }
func (r *Registry) Len() int         { return len(r.handles) }
