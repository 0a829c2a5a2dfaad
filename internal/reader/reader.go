package reader

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
)

// DefaultChunkSize is the read window used when none is configured.
const DefaultChunkSize = 4 << 20

// ErrNilSource is returned when a ChunkReader has nothing to read from.
var ErrNilSource = errors.New("reader: nil source")

// ProgressFunc receives the fraction of input bytes consumed, in [0, 1].
// It is called once per chunk and reaches 1 exactly once, at end of input.
type ProgressFunc func(fraction float64)

// ChunkReader reads a byte source in fixed-size windows and yields complete
// lines of decoded text. Lines and multi-byte characters that straddle a
// window boundary are carried over to the next window.
type ChunkReader struct {
	src       io.Reader
	size      int64
	chunkSize int
	progress  ProgressFunc

	bytesRead int64
	linesRead int64
}

// Option configures a ChunkReader.
type Option func(*ChunkReader)

// WithChunkSize sets the read window. Values below 1 keep the default.
func WithChunkSize(n int) Option {
	return func(r *ChunkReader) {
		if n > 0 {
			r.chunkSize = n
		}
	}
}

// WithProgress registers a callback fired after every chunk.
func WithProgress(fn ProgressFunc) Option {
	return func(r *ChunkReader) { r.progress = fn }
}

// New creates a ChunkReader over src holding size bytes.
// A negative size means the length is unknown; reading then stops at EOF
// and intermediate progress is not reported.
func New(src io.Reader, size int64, opts ...Option) *ChunkReader {
	r := &ChunkReader{
		src:       src,
		size:      size,
		chunkSize: DefaultChunkSize,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// BytesRead returns the number of raw bytes consumed so far.
func (r *ChunkReader) BytesRead() int64 { return r.bytesRead }

// LinesRead returns the number of lines emitted so far.
func (r *ChunkReader) LinesRead() int64 { return r.linesRead }

// Each calls fn for every line in the source, in order, exactly once.
// Line terminators ("\n" or "\r\n") are stripped. The context is checked
// before each chunk; on cancellation Each returns ctx.Err() and whatever
// fn accumulated should be discarded.
func (r *ChunkReader) Each(ctx context.Context, fn func(line string)) error {
	if r.src == nil {
		return ErrNilSource
	}

	dec := newDecoder()
	buf := make([]byte, r.chunkSize)
	var fragment string

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		n, err := io.ReadFull(r.src, buf)
		final := false
		switch {
		case errors.Is(err, io.EOF), errors.Is(err, io.ErrUnexpectedEOF):
			final = true
		case err != nil:
			return fmt.Errorf("read chunk at offset %d: %w", r.bytesRead, err)
		}
		r.bytesRead += int64(n)
		if r.size >= 0 && r.bytesRead >= r.size {
			final = true
		}

		text := dec.decode(buf[:n], final)
		if fragment != "" {
			text = fragment + text
		}
		fragment = r.split(text, final, fn)

		r.report(final)
		if final {
			return nil
		}
	}
}

// split emits every terminated line in text and returns the unterminated
// remainder. On the final chunk a non-empty remainder is emitted as well.
func (r *ChunkReader) split(text string, final bool, fn func(string)) string {
	for {
		i := strings.IndexByte(text, '\n')
		if i < 0 {
			break
		}
		r.emit(text[:i], fn)
		text = text[i+1:]
	}
	if final {
		if text != "" {
			r.emit(text, fn)
		}
		return ""
	}
	return text
}

func (r *ChunkReader) emit(line string, fn func(string)) {
	r.linesRead++
	fn(strings.TrimSuffix(line, "\r"))
}

func (r *ChunkReader) report(final bool) {
	if r.progress == nil {
		return
	}
	switch {
	case final:
		r.progress(1)
	case r.size > 0:
		r.progress(float64(r.bytesRead) / float64(r.size))
	}
}
