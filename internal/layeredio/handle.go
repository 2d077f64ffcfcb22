package layeredio

import (
	"unicode/utf8"

	"perlrt/internal/ioerr"
	"perlrt/internal/iohandle"
)

const (
	// readChunkBytes is how many raw bytes LayeredHandle asks backing
	// for per iteration of the character-based read loop.
	readChunkBytes = 128

	// maxBytesPerChar bounds total bytes consumed per requested
	// character, guarding against a pathological layer that never
	// produces output for arbitrarily many input bytes.
	maxBytesPerChar = 4
)

// LayeredHandle is the uniform character-level handle view: a backing
// iohandle.Handle wrapped in a pipeline of IOLayer transformations
// composed eagerly whenever binmode replaces the stack.
type LayeredHandle struct {
	backing iohandle.Handle
	layers  []IOLayer
	ungot   []rune // thread-local FIFO of pushed-back code points
}

// NewLayeredHandle wraps backing with the default raw layer stack —
// binmode("") is never called; callers that want no transformation
// simply never call Binmode.
func NewLayeredHandle(backing iohandle.Handle) *LayeredHandle {
	return &LayeredHandle{backing: backing}
}

// Binmode replaces the entire layer stack per the binmode grammar. On
// a parse failure the existing stack is left untouched.
func (h *LayeredHandle) Binmode(spec string) error {
	layers, err := parseSpec(spec)
	if err != nil {
		return err
	}
	for _, l := range h.layers {
		l.Reset()
	}
	h.layers = layers
	return nil
}

// LayerNames reports the current stack, left to right, for
// diagnostics and binmode round-tripping.
func (h *LayeredHandle) LayerNames() []string {
	names := make([]string, len(h.layers))
	for i, l := range h.layers {
		names[i] = l.Name()
	}
	return names
}

// Write runs data through the output pipeline before handing the
// result to backing. Output traverses the stack right to left — the
// rightmost (topmost) layer sees the user's characters first, the
// leftmost produces the bytes backing receives — the inverse of the
// input pipeline, so a write through a spec reads back intact through
// the same spec: with ":encoding(UTF-16):crlf", crlf expands "\n"
// while it is still a character, then the encoding layer turns CR and
// LF into UTF-16 code units.
func (h *LayeredHandle) Write(data []byte) (int, error) {
	out := data
	for i := len(h.layers) - 1; i >= 0; i-- {
		out = h.layers[i].ProcessOutput(out)
	}
	n, err := h.backing.Write(out)
	if err != nil {
		return n, err
	}
	// The caller's accounting is in terms of the characters it handed
	// us, not the (possibly different-length) bytes actually written.
	return len(data), nil
}

// Read fills p with up to len(p) decoded characters, first draining
// the unget buffer, then — if layers are active — running backing's
// raw bytes through inputPipeline in a character-based read loop
// bounded by maxBytesPerChar*len(p) total bytes consumed.
func (h *LayeredHandle) Read(p []byte) (int, error) {
	n := 0

	for n < len(p) && len(h.ungot) > 0 {
		r := h.ungot[0]
		size := utf8.RuneLen(r)
		if size < 0 || n+size > len(p) {
			break
		}
		utf8.EncodeRune(p[n:], r)
		n += size
		h.ungot = h.ungot[1:]
	}
	if n > 0 {
		return n, nil
	}

	if len(h.layers) == 0 {
		return h.backing.Read(p)
	}

	want := len(p)
	budget := want * maxBytesPerChar
	consumed := 0
	result := make([]byte, 0, want)
	var readErr error

	for len(result) < want && consumed < budget {
		chunkSize := readChunkBytes
		if remaining := budget - consumed; chunkSize > remaining {
			chunkSize = remaining
		}
		raw := make([]byte, chunkSize)
		rn, err := h.backing.Read(raw)
		consumed += rn
		if rn > 0 {
			decoded := raw[:rn]
			for _, l := range h.layers {
				decoded = l.ProcessInput(decoded)
			}
			result = append(result, decoded...)
		}
		if err != nil {
			readErr = err
			break
		}
		if h.backing.EOF() {
			break
		}
		if rn == 0 {
			break
		}
	}

	if len(result) == 0 && readErr != nil {
		return 0, readErr
	}

	if len(result) > want {
		result = result[:want]
	}
	copy(p, result)
	return len(result), nil
}

// Ungetc pushes a single decoded code point back onto the front of the
// unget buffer, so the most recently pushed-back code point is the
// next one Read sees — push-front FIFO, so ungetc('a') then
// ungetc('b') then a two-character read yields "ba". cp == -1 is a
// documented no-op.
func (h *LayeredHandle) Ungetc(cp rune) error {
	if cp == -1 {
		return nil
	}
	if !utf8.ValidRune(cp) {
		return ioerr.NewInvariant("layeredio: invalid code point %d", cp)
	}
	h.ungot = append([]rune{cp}, h.ungot...)
	return nil
}

// Seek invalidates every layer's internal state, clears the unget
// buffer, then delegates to backing.
func (h *LayeredHandle) Seek(offset int64, whence iohandle.Whence) (int64, error) {
	for _, l := range h.layers {
		l.Reset()
	}
	h.ungot = nil
	return h.backing.Seek(offset, whence)
}

// Flush delegates directly — layers in this design don't buffer
// output themselves.
func (h *LayeredHandle) Flush() error { return h.backing.Flush() }

// Close flushes, resets layers, then delegates to backing.
func (h *LayeredHandle) Close() error {
	if err := h.backing.Flush(); err != nil {
		return err
	}
	for _, l := range h.layers {
		l.Reset()
	}
	h.ungot = nil
	return h.backing.Close()
}

func (h *LayeredHandle) EOF() bool                   { return len(h.ungot) == 0 && h.backing.EOF() }
func (h *LayeredHandle) Tell() (int64, error)        { return h.backing.Tell() }
func (h *LayeredHandle) Truncate(length int64) error { return h.backing.Truncate(length) }
func (h *LayeredHandle) Fileno() (int, bool)         { return h.backing.Fileno() }
