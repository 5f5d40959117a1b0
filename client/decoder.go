package client

import (
	"errors"
	"strings"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

const decodeBufSize = 4096

// chunkDecoder turns UTF-8 byte chunks into text without ever splitting a
// multi-byte character: an incomplete trailing sequence is held back until
// the next chunk. Invalid bytes decode to U+FFFD and a leading BOM is
// dropped.
type chunkDecoder struct {
	t       transform.Transformer
	pending []byte
	dst     []byte
}

func newChunkDecoder() *chunkDecoder {
	return &chunkDecoder{
		t:   unicode.UTF8BOM.NewDecoder(),
		dst: make([]byte, decodeBufSize),
	}
}

func (d *chunkDecoder) decode(chunk []byte) string {
	src := make([]byte, 0, len(d.pending)+len(chunk))
	src = append(src, d.pending...)
	src = append(src, chunk...)
	d.pending = d.pending[:0]

	var sb strings.Builder
	for len(src) > 0 {
		nDst, nSrc, err := d.t.Transform(d.dst, src, false)
		sb.Write(d.dst[:nDst])
		src = src[nSrc:]

		switch {
		case err == nil:
			if nSrc == 0 && nDst == 0 {
				return sb.String()
			}
		case errors.Is(err, transform.ErrShortDst):
			if nDst == 0 && nSrc == 0 {
				d.dst = make([]byte, 2*len(d.dst))
			}
		case errors.Is(err, transform.ErrShortSrc):
			d.pending = append(d.pending, src...)
			return sb.String()
		default:
			// the UTF-8 decoder replaces bad input rather than failing
			sb.WriteString(strings.ToValidUTF8(string(src), "\uFFFD"))
			return sb.String()
		}
	}
	return sb.String()
}
