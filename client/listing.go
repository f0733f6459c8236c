package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/sagarc03/manta"
	"github.com/sagarc03/manta/metrics"
	"github.com/sagarc03/manta/stream"
)

// Listing is a directory listing streamed one entry per line.
type Listing = stream.Decoder[manta.Entry]

// ListOptions page a directory listing.
type ListOptions struct {
	RequestOptions

	// Limit is the number of entries requested. Defaults to DefaultListLimit.
	Limit int
	// Offset skips entries at the start of the directory.
	Offset int
}

// List streams the entries of the directory at dir.
//
// Entries arrive in server order. The listing ends with io.EOF, or with a
// *manta.DecodeError, *manta.StreamFailedError or transport error. The
// caller must Close the listing when stopping early.
func (c *Client) List(ctx context.Context, dir string, opts ListOptions) (*Listing, error) {
	if dir == "" {
		return nil, fmt.Errorf("ls: %w", ErrEmptyPath)
	}

	limit := opts.Limit
	if limit <= 0 {
		limit = DefaultListLimit
	}

	target := c.resolve(dir)
	env := c.newEnvelope(target.String(), opts.RequestOptions, defaults{
		accept: manta.MediaTypeJSONStream,
		limit:  limit,
		offset: opts.Offset,
	})
	log := c.requestLogger("ls", env)
	log.Debug("ls: entered")

	resp, err := c.do(ctx, "ls", http.MethodGet, env, nil)
	if err != nil {
		log.Debug("ls: error", "err", err)
		return nil, err
	}

	return openStream(c, resp, env.path, log, "ls", parseEntry(log)), nil
}

// parseEntry decodes one listing line and checks its discriminant.
func parseEntry(log *slog.Logger) stream.ParseFunc[manta.Entry] {
	return func(line []byte) (manta.Entry, error) {
		var e manta.Entry
		if err := json.Unmarshal(line, &e); err != nil {
			log.Warn("ls: invalid JSON data", "line", string(line), "err", err)
			return e, err
		}
		if !e.Kind.IsValid() {
			log.Warn("ls: unknown entry type", "line", string(line), "type", e.Kind)
			return e, fmt.Errorf("%w: %q", ErrInvalidEntry, e.Kind)
		}
		return e, nil
	}
}

// openStream wraps a successful streaming response in a Decoder that
// reports its terminal state to the logger and metrics.
func openStream[T any](c *Client, resp *http.Response, p string, log *slog.Logger, op string, parse stream.ParseFunc[T]) *stream.Decoder[T] {
	body := &observedBody{ReadCloser: resp.Body, done: func(err error) {
		if errors.Is(err, io.EOF) {
			log.Debug(op + ": done")
			return
		}
		c.metrics.StreamFailure(failureKind(err))
		log.Debug(op+": error", "err", err)
	}}

	dec := stream.NewDecoder(body, parse, stream.DecoderConfig{
		Path:           p,
		Trailer:        func() http.Header { return resp.Trailer },
		RequireTrailer: c.strictTrailers,
	})
	body.dec = dec.Err
	return dec
}

// observedBody reports the decoder's terminal error once the decoder
// releases the body.
type observedBody struct {
	io.ReadCloser
	dec    func() error
	done   func(error)
	closed bool
}

func (b *observedBody) Close() error {
	if !b.closed {
		b.closed = true
		if b.dec != nil {
			if err := b.dec(); err != nil && !errors.Is(err, io.ErrClosedPipe) {
				b.done(err)
			}
		}
	}
	return b.ReadCloser.Close()
}

func failureKind(err error) string {
	var decodeErr *manta.DecodeError
	var failed *manta.StreamFailedError
	switch {
	case errors.As(err, &decodeErr):
		return metrics.FailureDecode
	case errors.As(err, &failed):
		return metrics.FailureTrailer
	default:
		return metrics.FailureRead
	}
}
