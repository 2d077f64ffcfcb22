package layeredio

import (
	"strings"

	"perlrt/internal/ioerr"
)

// parseSpec parses a binmode layer specification left to right, per
// the grammar:
//
//	spec    := (':' layer)+
//	layer   := 'raw' | 'bytes' | 'unix'   (identity)
//	         | 'crlf'
//	         | 'utf8'                     (shorthand for encoding(UTF-8))
//	         | 'encoding(' charset ')'
//
// An unknown layer name fails with a specific error and leaves any
// caller-held stack untouched — the caller applies the returned
// layers only on success.
func parseSpec(spec string) ([]IOLayer, error) {
	if spec == "" || spec[0] != ':' {
		return nil, ioerr.NewException("layeredio: spec must begin with ':', got %q", spec)
	}

	var layers []IOLayer
	for _, tok := range strings.Split(spec, ":")[1:] {
		tok = strings.TrimSpace(tok)
		if tok == "" {
			continue
		}
		layer, err := parseLayerToken(tok)
		if err != nil {
			return nil, err
		}
		layers = append(layers, layer)
	}
	if len(layers) == 0 {
		return nil, ioerr.NewException("layeredio: empty spec %q", spec)
	}
	return layers, nil
}

func parseLayerToken(tok string) (IOLayer, error) {
	switch {
	case tok == "raw" || tok == "bytes" || tok == "unix":
		return newRawLayer(tok), nil
	case tok == "crlf":
		return newCRLFLayer(), nil
	case tok == "utf8" || tok == "utf-8":
		l, err := newEncodingLayer("UTF-8")
		if err != nil {
			return nil, ioerr.NewException("layeredio: utf8 layer: %v", err)
		}
		return l, nil
	case strings.HasPrefix(tok, "encoding(") && strings.HasSuffix(tok, ")"):
		charset := tok[len("encoding(") : len(tok)-1]
		if charset == "" {
			return nil, ioerr.NewException("layeredio: empty charset in %q", tok)
		}
		l, err := newEncodingLayer(charset)
		if err != nil {
			return nil, ioerr.NewException("layeredio: unsupported charset %q: %v", charset, err)
		}
		return l, nil
	default:
		return nil, ioerr.NewException("layeredio: unknown layer %q", tok)
	}
}
