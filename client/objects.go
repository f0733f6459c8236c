package client

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"path"
	"strconv"
	"strings"
	"sync/atomic"

	"github.com/sagarc03/manta"
	"github.com/sagarc03/manta/metrics"
	"github.com/sagarc03/manta/stream"
)

const defaultContentType = "application/octet-stream"

// Object is an object body streamed from the service.
//
// Reading it yields the body as it arrives while an MD5 digest is computed
// alongside. Data is provisional until Read returns io.EOF: if the digest
// does not match the declared content-md5, the final Read returns a
// *manta.ChecksumMismatchError and everything read so far must be discarded.
// The caller must Close the Object.
type Object struct {
	*stream.Verifier

	Info   manta.ObjectInfo
	Header http.Header
}

// PutOptions describe an object upload.
type PutOptions struct {
	RequestOptions

	// Size is the body length. When zero it is taken from a reader with a
	// Len method, and anything else is sent chunked.
	Size int64
	// MD5 is an optional base64 content-md5 for the service to check.
	MD5 string
	// ContentType defaults to a type guessed from the extension.
	ContentType string
	// Copies asks the service for a durability level when positive.
	Copies int
}

// PutResult is the outcome of an upload.
type PutResult struct {
	ETag   string
	MD5    string
	Header http.Header
}

// Get streams the object at p.
func (c *Client) Get(ctx context.Context, p string, opts RequestOptions) (*Object, error) {
	if p == "" {
		return nil, fmt.Errorf("get: %w", ErrEmptyPath)
	}

	target := c.resolve(p)
	env := c.newEnvelope(target.String(), opts, defaults{accept: "*/*"})
	log := c.requestLogger("get", env)
	log.Debug("get: entered")

	resp, err := c.do(ctx, "get", http.MethodGet, env, nil)
	if err != nil {
		log.Debug("get: error", "err", err)
		return nil, err
	}

	declared := resp.Header.Get(HeaderContentMD5)
	body := stream.NewVerifier(resp.Body, declared, func(state stream.State, n int64, err error) {
		c.metrics.AddBytes(metrics.Download, n)
		if state == stream.Failed {
			var mismatch *manta.ChecksumMismatchError
			if errors.As(err, &mismatch) {
				c.metrics.ChecksumMismatch()
			}
			log.Debug("get: error", "err", err, "bytes", n)
			return
		}
		log.Debug("get: done", "bytes", n)
	})

	return &Object{
		Verifier: body,
		Info:     objectInfo(target, resp),
		Header:   resp.Header,
	}, nil
}

// Info returns metadata for the object or directory at p without its body.
func (c *Client) Info(ctx context.Context, p string, opts RequestOptions) (*manta.ObjectInfo, error) {
	if p == "" {
		return nil, fmt.Errorf("info: %w", ErrEmptyPath)
	}

	target := c.resolve(p)
	env := c.newEnvelope(target.String(), opts, defaults{accept: "application/json, */*"})
	log := c.requestLogger("info", env)
	log.Debug("info: entered")

	resp, err := c.do(ctx, "info", http.MethodHead, env, nil)
	if err != nil {
		log.Debug("info: error", "err", err)
		return nil, err
	}
	discard(resp)

	info := objectInfo(target, resp)
	log.Debug("info: done", "type", info.Type, "size", info.Size)
	return &info, nil
}

// Put uploads r as the object at p. The request asks for 100-continue so
// the body is only sent once the service has accepted the headers.
func (c *Client) Put(ctx context.Context, p string, r io.Reader, opts PutOptions) (*PutResult, error) {
	if p == "" {
		return nil, fmt.Errorf("put: %w", ErrEmptyPath)
	}

	target := c.resolve(p)
	contentType := opts.ContentType
	if contentType == "" {
		contentType = detectContentType(target.String())
	}

	d := defaults{
		contentType:   contentType,
		contentMD5:    opts.MD5,
		expect:        "100-continue",
		contentLength: -1,
	}
	switch sized, ok := r.(interface{ Len() int }); {
	case opts.Size > 0:
		d.contentLength = opts.Size
	case ok:
		d.contentLength = int64(sized.Len())
	}

	env := c.newEnvelope(target.String(), opts.RequestOptions, d)
	if opts.Copies > 0 {
		env.header.Set(HeaderDurabilityLevel, strconv.Itoa(opts.Copies))
	}
	log := c.requestLogger("put", env)
	log.Debug("put: entered", "size", opts.Size, "type", contentType)

	var body io.Reader
	var counter *countingReader
	if r != nil {
		counter = &countingReader{r: r}
		body = counter
	}

	resp, err := c.do(ctx, "put", http.MethodPut, env, body)
	if counter != nil {
		c.metrics.AddBytes(metrics.Upload, counter.n.Load())
	}
	if err != nil {
		log.Debug("put: error", "err", err)
		return nil, err
	}
	discard(resp)

	log.Debug("put: done")
	return &PutResult{
		ETag:   resp.Header.Get(HeaderETag),
		MD5:    resp.Header.Get("Computed-Md5"),
		Header: resp.Header,
	}, nil
}

// Link creates a snaplink at p pointing at the object src.
func (c *Client) Link(ctx context.Context, src, p string, opts RequestOptions) error {
	if src == "" || p == "" {
		return fmt.Errorf("link: %w", ErrEmptyPath)
	}

	target := c.resolve(p)
	env := c.newEnvelope(target.String(), opts, defaults{
		contentType: manta.MediaTypeLink,
		location:    c.resolve(src).String(),
	})
	log := c.requestLogger("link", env)
	log.Debug("link: entered", "source", env.header.Get(HeaderLocation))

	resp, err := c.do(ctx, "link", http.MethodPut, env, nil)
	if err != nil {
		log.Debug("link: error", "err", err)
		return err
	}
	discard(resp)

	log.Debug("link: done")
	return nil
}

// Unlink deletes the object, link or empty directory at p.
func (c *Client) Unlink(ctx context.Context, p string, opts RequestOptions) error {
	if p == "" {
		return fmt.Errorf("unlink: %w", ErrEmptyPath)
	}

	env := c.newEnvelope(c.resolve(p).String(), opts, defaults{accept: "application/json, */*"})
	log := c.requestLogger("unlink", env)
	log.Debug("unlink: entered")

	resp, err := c.do(ctx, "unlink", http.MethodDelete, env, nil)
	if err != nil {
		log.Debug("unlink: error", "err", err)
		return err
	}
	discard(resp)

	log.Debug("unlink: done")
	return nil
}

// Mkdir creates the directory at p. Creating an existing directory succeeds.
func (c *Client) Mkdir(ctx context.Context, p string, opts RequestOptions) error {
	if p == "" {
		return fmt.Errorf("mkdir: %w", ErrEmptyPath)
	}

	env := c.newEnvelope(c.resolve(p).String(), opts, defaults{
		accept:      "application/json, */*",
		contentType: manta.MediaTypeDirectory,
	})
	log := c.requestLogger("mkdir", env)
	log.Debug("mkdir: entered")

	resp, err := c.do(ctx, "mkdir", http.MethodPut, env, nil)
	if err != nil {
		log.Debug("mkdir: error", "err", err)
		return err
	}
	discard(resp)

	log.Debug("mkdir: done")
	return nil
}

func objectInfo(p manta.Path, resp *http.Response) manta.ObjectInfo {
	h := resp.Header
	contentType := h.Get(HeaderContentType)
	size, err := strconv.ParseInt(h.Get("Content-Length"), 10, 64)
	if err != nil {
		size = max(resp.ContentLength, 0)
	}

	return manta.ObjectInfo{
		Name:      p.Base(),
		Extension: extensionFor(p.Base(), contentType),
		Type:      contentType,
		ETag:      h.Get(HeaderETag),
		MD5:       h.Get(HeaderContentMD5),
		Size:      size,
	}
}

// extensionFor returns the extension, without a dot, registered for
// contentType. Directories report "directory".
func extensionFor(name, contentType string) string {
	mediaType, params, err := mime.ParseMediaType(contentType)
	if err != nil {
		return ""
	}
	if params["type"] == string(manta.KindDirectory) {
		return "directory"
	}

	if ext := path.Ext(name); ext != "" {
		if t, _, err := mime.ParseMediaType(mime.TypeByExtension(ext)); err == nil && t == mediaType {
			return strings.TrimPrefix(ext, ".")
		}
	}

	exts, err := mime.ExtensionsByType(mediaType)
	if err != nil || len(exts) == 0 {
		return ""
	}
	return strings.TrimPrefix(exts[0], ".")
}

// detectContentType returns the MIME type registered for the extension of p.
func detectContentType(p string) string {
	ext := path.Ext(p)
	if ext == "" {
		return defaultContentType
	}

	mimeType := mime.TypeByExtension(ext)
	if mimeType == "" {
		return defaultContentType
	}

	return mimeType
}

// countingReader counts bytes handed to the transport, which may still be
// reading after Do returns.
type countingReader struct {
	r io.Reader
	n atomic.Int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n.Add(int64(n))
	return n, err
}
