package stream

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"iter"
	"net/http"

	"github.com/sagarc03/manta"
)

// TrailerStreamError is the trailer a server sets to "false" once a stream
// completed without error.
const TrailerStreamError = "X-Stream-Error"

// ParseFunc turns one line, without its terminator, into a typed event.
type ParseFunc[T any] func(line []byte) (T, error)

// DecoderConfig configures how a Decoder interprets end of stream.
type DecoderConfig struct {
	// Path is the logical path reported in a *manta.StreamFailedError.
	Path string
	// Trailer returns the response trailers. It is only called after the
	// body has been read to EOF.
	Trailer func() http.Header
	// RequireTrailer treats a missing stream trailer as failure.
	RequireTrailer bool
}

// Decoder reads a line delimited event stream.
//
// Each call to Next parses exactly one line, in arrival order. The sequence
// ends with io.EOF on a clean end, or with one terminal error: a
// *manta.DecodeError for a malformed line, a *manta.StreamFailedError when
// the trailer marks the stream as failed, or the transport's read error.
// Once terminated the same error is returned forever and the body is closed.
// A Decoder is not restartable and not safe for concurrent use.
type Decoder[T any] struct {
	body  io.ReadCloser
	r     *bufio.Reader
	parse ParseFunc[T]
	cfg   DecoderConfig
	err   error
}

// NewDecoder returns a Decoder reading body.
func NewDecoder[T any](body io.ReadCloser, parse ParseFunc[T], cfg DecoderConfig) *Decoder[T] {
	return &Decoder[T]{
		body:  body,
		r:     bufio.NewReader(body),
		parse: parse,
		cfg:   cfg,
	}
}

// Next returns the next event.
func (d *Decoder[T]) Next() (T, error) {
	var zero T
	if d.err != nil {
		return zero, d.err
	}

	for {
		line, readErr := d.r.ReadBytes('\n')
		if readErr != nil && !errors.Is(readErr, io.EOF) {
			d.terminate(readErr)
			return zero, d.err
		}

		line = bytes.TrimRight(line, "\r\n")
		if len(line) > 0 {
			v, err := d.parse(line)
			if err != nil {
				d.terminate(&manta.DecodeError{Line: append([]byte(nil), line...), Err: err})
				return zero, d.err
			}
			return v, nil
		}

		if readErr != nil {
			d.terminate(d.endOfStream())
			return zero, d.err
		}
	}
}

// All yields every event followed, if the stream did not end cleanly, by
// one zero value paired with the terminal error.
func (d *Decoder[T]) All() iter.Seq2[T, error] {
	return func(yield func(T, error) bool) {
		for {
			v, err := d.Next()
			if errors.Is(err, io.EOF) {
				return
			}
			if !yield(v, err) || err != nil {
				return
			}
		}
	}
}

// Collect drains the decoder into a slice.
func (d *Decoder[T]) Collect() ([]T, error) {
	var out []T
	for v, err := range d.All() {
		if err != nil {
			return out, err
		}
		out = append(out, v)
	}
	return out, nil
}

// Err returns the terminal error, io.EOF after a clean end, or nil while
// events remain.
func (d *Decoder[T]) Err() error { return d.err }

// Close stops the stream early.
func (d *Decoder[T]) Close() error {
	if d.err == nil {
		d.err = io.ErrClosedPipe
	}
	return d.body.Close()
}

func (d *Decoder[T]) endOfStream() error {
	var trailer http.Header
	if d.cfg.Trailer != nil {
		trailer = d.cfg.Trailer()
	}

	values, announced := trailer[TrailerStreamError]
	if len(values) == 0 {
		if announced || d.cfg.RequireTrailer {
			return &manta.StreamFailedError{Path: d.cfg.Path}
		}
		return io.EOF
	}
	if values[0] != "false" {
		return &manta.StreamFailedError{Path: d.cfg.Path}
	}
	return io.EOF
}

func (d *Decoder[T]) terminate(err error) {
	d.err = err
	_ = d.body.Close()
}

// JSONLines parses each line as a JSON document of type T.
func JSONLines[T any](line []byte) (T, error) {
	var v T
	err := json.Unmarshal(line, &v)
	return v, err
}

// RawLines yields each line as a string.
func RawLines(line []byte) (string, error) {
	return string(line), nil
}
