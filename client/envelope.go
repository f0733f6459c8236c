package client

import (
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/sagarc03/manta"
)

// Header names the client sets on requests or reads from responses.
const (
	HeaderAccept          = "Accept"
	HeaderContentType     = "Content-Type"
	HeaderContentMD5      = "Content-Md5"
	HeaderDurabilityLevel = "X-Durability-Level"
	HeaderExpect          = "Expect"
	HeaderETag            = "Etag"
	HeaderLocation        = "Location"
	HeaderRequestID       = "X-Request-Id"
)

// RequestOptions are per call additions to a request.
type RequestOptions struct {
	// Headers override the defaults an operation would send.
	Headers http.Header
	// Query is merged into the request query string.
	Query url.Values
	// RequestID is sent as x-request-id. A random id is generated when empty.
	RequestID string
}

// envelope is the normalized form of one outgoing request.
type envelope struct {
	path   string
	header http.Header
	query  url.Values
	id     string
	// contentLength is -1 when the body length is left to the transport.
	contentLength int64
}

// defaults are the header and query values an operation sends unless the
// caller overrides them.
type defaults struct {
	accept        string
	contentType   string
	contentMD5    string
	expect        string
	location      string
	// contentLength is the body length, -1 for a body of unknown length.
	contentLength int64
	limit         int
	offset        int
}

// newEnvelope builds the request envelope for an already resolved path.
// The date header is always set by the client so the signature covers
// exactly the value transmitted.
func (c *Client) newEnvelope(p string, opts RequestOptions, d defaults) *envelope {
	if len(p) > 1 {
		p = strings.TrimSuffix(p, "/")
	}

	h := http.Header{}
	set := func(k, v string) {
		if v != "" {
			h.Set(k, v)
		}
	}
	set(HeaderAccept, d.accept)
	set(HeaderContentType, d.contentType)
	set(HeaderContentMD5, d.contentMD5)
	set(HeaderExpect, d.expect)
	set(HeaderLocation, d.location)

	for k, v := range opts.Headers {
		h[http.CanonicalHeaderKey(k)] = append([]string(nil), v...)
	}

	contentLength := d.contentLength
	if v := h.Get("Content-Length"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil && n >= 0 {
			contentLength = n
		}
		h.Del("Content-Length")
	}

	id := opts.RequestID
	if id == "" {
		id = h.Get(HeaderRequestID)
	}
	if id == "" {
		id = uuid.NewString()
	}
	h.Set(HeaderRequestID, id)
	h.Set(manta.HeaderDate, manta.FormatDate(c.now()))

	q := url.Values{}
	for k, v := range opts.Query {
		q[k] = append([]string(nil), v...)
	}
	if d.limit > 0 && !q.Has("limit") {
		q.Set("limit", strconv.Itoa(d.limit))
	}
	if d.offset > 0 && !q.Has("offset") {
		q.Set("offset", strconv.Itoa(d.offset))
	}

	return &envelope{
		path:          p,
		header:        h,
		query:         q,
		id:            id,
		contentLength: contentLength,
	}
}
