// Package mantatest provides an in-memory fake of the storage and job
// service for tests.
//
// The fake keeps a directory tree per account, serves listings as line
// delimited JSON with a stream trailer, runs trivial jobs whose output
// mirrors their input, records every request it receives and can be told
// to fail specific requests.
package mantatest

import (
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/sagarc03/manta"
	"github.com/sagarc03/manta/keybackend"
)

// TrailerMode controls how listing streams end.
type TrailerMode int

const (
	// TrailerSuccess announces the stream trailer and sends "false".
	TrailerSuccess TrailerMode = iota
	// TrailerFailure announces the stream trailer and sends "true".
	TrailerFailure
	// TrailerAnnounced announces the stream trailer but never sends it.
	TrailerAnnounced
	// TrailerNone neither announces nor sends the stream trailer.
	TrailerNone
)

// Call is one request received by the server.
type Call struct {
	Method string
	Path   string
	Query  string
	Header http.Header
	Body   string
}

type fault struct {
	status  int
	code    string
	message string
}

type node struct {
	dir         bool
	data        []byte
	contentType string
	md5         string
	etag        string
	durability  int
	mtime       time.Time
}

// Server is a running fake service.
type Server struct {
	srv  *httptest.Server
	keys *keybackend.MapKeyStore
	log  *slog.Logger

	mu       sync.Mutex
	tree     map[string]*node
	jobs     map[string]*job
	jobOrder []string
	calls    []Call
	faults   map[string]fault
	md5      map[string]string
	raw      map[string]string
	trailer  TrailerMode
	delay    time.Duration
}

// Option configures a Server.
type Option func(*Server)

// WithKeyStore makes the server reject requests whose signature does not
// verify against keys.
func WithKeyStore(keys *keybackend.MapKeyStore) Option {
	return func(s *Server) {
		s.keys = keys
	}
}

// WithLogger sets the logger request errors are reported to.
func WithLogger(log *slog.Logger) Option {
	return func(s *Server) {
		s.log = log
	}
}

// WithTrailerMode sets how listing streams end.
func WithTrailerMode(mode TrailerMode) Option {
	return func(s *Server) {
		s.trailer = mode
	}
}

// WithLatency delays every storage request by d.
func WithLatency(d time.Duration) Option {
	return func(s *Server) {
		s.delay = d
	}
}

// New starts a Server that is closed when the test ends.
func New(t testing.TB, opts ...Option) *Server {
	t.Helper()

	s := &Server{
		log:    slog.New(slog.DiscardHandler),
		tree:   map[string]*node{},
		jobs:   map[string]*job{},
		faults: map[string]fault{},
		md5:    map[string]string{},
		raw:    map[string]string{},
	}
	for _, opt := range opts {
		opt(s)
	}

	s.srv = httptest.NewServer(s.router())
	t.Cleanup(s.srv.Close)
	return s
}

// URL returns the base URL of the server.
func (s *Server) URL() string { return s.srv.URL }

// Client returns an HTTP client configured for the server.
func (s *Server) Client() *http.Client { return s.srv.Client() }

// Calls returns every request received so far, in arrival order.
func (s *Server) Calls() []Call {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Call(nil), s.calls...)
}

// CallsFor returns the paths of every request with the given method.
func (s *Server) CallsFor(method string) []string {
	var out []string
	for _, c := range s.Calls() {
		if c.Method == method {
			out = append(out, c.Path)
		}
	}
	return out
}

// Fail makes every request with method on path answer with status and a
// JSON error body carrying code.
func (s *Server) Fail(method, p string, status int, code string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.faults[method+" "+p] = fault{status: status, code: code, message: method + " " + p + " failed"}
}

// Heal removes every injected failure.
func (s *Server) Heal() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.faults = map[string]fault{}
}

// SetTrailerMode changes how subsequent streams end.
func (s *Server) SetTrailerMode(mode TrailerMode) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.trailer = mode
}

// SetContentMD5 overrides the content-md5 the server declares for an object.
func (s *Server) SetContentMD5(p, md5 string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.md5[p] = md5
}

// SetRawListing replaces the listing body of dir with body.
func (s *Server) SetRawListing(dir, body string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.raw[dir] = body
}

// AddObject stores data at p, creating missing parent directories.
func (s *Server) AddObject(p string, data []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.mkdirAllLocked(parentOf(p))
	s.tree[p] = newObject(data, "application/octet-stream", 0)
}

// AddDirectory creates p and any missing parents.
func (s *Server) AddDirectory(p string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.mkdirAllLocked(p)
}

// Object returns the content stored at p.
func (s *Server) Object(p string) ([]byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, ok := s.tree[p]
	if !ok || n.dir {
		return nil, false
	}
	return append([]byte(nil), n.data...), true
}

// Exists reports whether p is an object or directory. Namespace roots always exist.
func (s *Server) Exists(p string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.lookupLocked(p)
	return ok
}

// Paths returns every stored path in sorted order.
func (s *Server) Paths() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.tree))
	for p := range s.tree {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

func (s *Server) record(c Call) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, c)
}

func (s *Server) faultFor(method, p string) (fault, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	f, ok := s.faults[method+" "+p]
	return f, ok
}

func (s *Server) lookupLocked(p string) (*node, bool) {
	if manta.ParsePath(p).IsRoot() {
		return &node{dir: true}, true
	}
	n, ok := s.tree[p]
	return n, ok
}

func (s *Server) mkdirAllLocked(p string) {
	for p != "/" && p != "" && !manta.ParsePath(p).IsRoot() {
		if _, ok := s.tree[p]; !ok {
			s.tree[p] = &node{dir: true, mtime: time.Now().UTC()}
		}
		p = parentOf(p)
	}
}

// childrenLocked returns the sorted names directly below dir.
func (s *Server) childrenLocked(dir string) []string {
	prefix := dir + "/"
	var names []string
	for p := range s.tree {
		rest, ok := strings.CutPrefix(p, prefix)
		if ok && rest != "" && !strings.Contains(rest, "/") {
			names = append(names, rest)
		}
	}
	sort.Strings(names)
	return names
}

func parentOf(p string) string {
	i := strings.LastIndex(p, "/")
	if i <= 0 {
		return "/"
	}
	return p[:i]
}
