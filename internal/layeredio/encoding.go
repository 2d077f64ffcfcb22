package layeredio

import (
	"unicode/utf8"

	"github.com/pkg/errors"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/ianaindex"
	"golang.org/x/text/transform"
)

// encodingLayer decodes/encodes a named charset on the wire against
// UTF-8 on the script side. It buffers an incomplete trailing byte
// sequence between ProcessInput calls and substitutes U+FFFD for
// malformed input / the charset's default byte for unmappable
// output. The decoder and encoder transformers
// persist across calls, so stateful charsets (a UTF-16 stream's BOM,
// shift-state encodings) behave as one continuous stream until Reset.
type encodingLayer struct {
	name string
	enc  encoding.Encoding
	dec  *encoding.Decoder
	out  *encoding.Encoder

	pending    []byte // incomplete trailing input bytes carried to the next call
	outPending []byte // incomplete trailing output characters, same treatment
}

func newEncodingLayer(charset string) (*encodingLayer, error) {
	if isUTF8Name(charset) {
		return &encodingLayer{name: charset}, nil
	}
	enc, err := ianaindex.IANA.Encoding(charset)
	if err != nil {
		return nil, err
	}
	if enc == nil {
		return nil, errors.Errorf("charset %q has no registered encoding", charset)
	}
	return &encodingLayer{name: charset, enc: enc, dec: enc.NewDecoder(), out: enc.NewEncoder()}, nil
}

func isUTF8Name(charset string) bool {
	switch charset {
	case "utf-8", "utf8", "UTF-8", "UTF8":
		return true
	default:
		return false
	}
}

func (l *encodingLayer) Name() string { return "encoding(" + l.name + ")" }

func (l *encodingLayer) Reset() {
	l.pending = nil
	l.outPending = nil
	if l.dec != nil {
		l.dec.Reset()
	}
	if l.out != nil {
		l.out.Reset()
	}
}

// ProcessInput decodes backing bytes (in the layer's charset) into
// UTF-8. A trailing byte sequence that can't yet be decided as
// complete-or-malformed is held in l.pending and retried once more
// bytes arrive.
func (l *encodingLayer) ProcessInput(data []byte) []byte {
	src := data
	if len(l.pending) > 0 {
		src = append(append([]byte(nil), l.pending...), data...)
		l.pending = nil
	}
	if isUTF8Name(l.name) {
		return decodeUTF8Incomplete(src, &l.pending)
	}
	out, rest := runTransform(l.dec, src, []byte(string(utf8.RuneError)))
	l.pending = rest
	return out
}

// ProcessOutput encodes UTF-8 script characters into the layer's
// charset, substituting the charset's default byte for codepoints it
// cannot represent.
func (l *encodingLayer) ProcessOutput(data []byte) []byte {
	if isUTF8Name(l.name) {
		return data
	}
	src := data
	if len(l.outPending) > 0 {
		src = append(append([]byte(nil), l.outPending...), data...)
		l.outPending = nil
	}
	out, rest := runTransform(l.out, src, []byte{'?'})
	l.outPending = rest
	return out
}

// runTransform streams src through t with atEOF=false, returning the
// transformed output and any unconsumed tail the transformer declined
// to decide on yet (ErrShortSrc). A transformer error on decided input
// appends sub — U+FFFD on the decode side, the conventional '?' default
// byte on the encode side — and skips one input unit so the rest of the
// stream still surfaces.
func runTransform(t transform.Transformer, src []byte, sub []byte) (out []byte, rest []byte) {
	dst := make([]byte, 1024)
	for len(src) > 0 {
		nDst, nSrc, err := t.Transform(dst, src, false)
		out = append(out, dst[:nDst]...)
		src = src[nSrc:]
		switch err {
		case nil:
			// All of src consumed.
		case transform.ErrShortDst:
			continue
		case transform.ErrShortSrc:
			rest = append([]byte(nil), src...)
			return out, rest
		default:
			out = append(out, sub...)
			if len(src) > 0 {
				_, size := utf8.DecodeRune(src)
				src = src[size:]
			}
		}
	}
	return out, nil
}

// decodeUTF8Incomplete validates buf as UTF-8, holding back any
// trailing incomplete rune and substituting U+FFFD for malformed
// sequences it can fully decide on.
func decodeUTF8Incomplete(buf []byte, pending *[]byte) []byte {
	out := make([]byte, 0, len(buf))
	i := 0
	for i < len(buf) {
		r, size := utf8.DecodeRune(buf[i:])
		if r == utf8.RuneError && size <= 1 {
			if !utf8.FullRune(buf[i:]) && len(buf)-i < utf8.UTFMax {
				*pending = append(*pending, buf[i:]...)
				return out
			}
			out = append(out, string(utf8.RuneError)...)
			i++
			continue
		}
		out = append(out, buf[i:i+size]...)
		i += size
	}
	return out
}
