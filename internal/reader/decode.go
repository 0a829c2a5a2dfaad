package reader

import (
	"strings"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// decoder turns raw chunks into UTF-8 text. An incomplete multi-byte
// sequence at the end of a chunk is held back until the next call.
// A leading byte-order mark is dropped; invalid bytes become U+FFFD.
type decoder struct {
	t       transform.Transformer
	pending []byte
	dst     []byte
}

func newDecoder() *decoder {
	return &decoder{
		t:   unicode.UTF8BOM.NewDecoder(),
		dst: make([]byte, 64<<10),
	}
}

func (d *decoder) decode(chunk []byte, atEOF bool) string {
	src := chunk
	if len(d.pending) > 0 {
		src = append(d.pending, chunk...)
	}

	var sb strings.Builder
	sb.Grow(len(src))
	for {
		nDst, nSrc, err := d.t.Transform(d.dst, src, atEOF)
		sb.Write(d.dst[:nDst])
		src = src[nSrc:]
		if err != transform.ErrShortDst {
			break
		}
	}

	// Anything left over is a partial sequence waiting for more bytes.
	d.pending = append(d.pending[:0], src...)
	return sb.String()
}
