package mantatest

import (
	"bytes"
	"io"
	"net/http"
	"time"

	"github.com/sagarc03/manta"
)

// recordMiddleware logs the request into the call list and applies any
// injected failure for it. Bodies of text requests are captured.
func (s *Server) recordMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c := Call{
			Method: r.Method,
			Path:   r.URL.Path,
			Query:  r.URL.RawQuery,
			Header: r.Header.Clone(),
		}
		if r.Header.Get("Content-Type") == "text/plain" {
			body, _ := io.ReadAll(r.Body)
			_ = r.Body.Close()
			c.Body = string(body)
			r.Body = io.NopCloser(bytes.NewReader(body))
		}
		s.record(c)

		if s.delay > 0 {
			time.Sleep(s.delay)
		}

		if f, ok := s.faultFor(r.Method, r.URL.Path); ok {
			s.writeError(w, f.status, f.code, f.message)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// authMiddleware verifies the Authorization header over the Date header.
// Without a key store every request is accepted.
func (s *Server) authMiddleware(next http.Handler) http.Handler {
	if s.keys == nil {
		return next
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		date := r.Header.Get(manta.HeaderDate)
		header := r.Header.Get(manta.HeaderAuthorization)
		if date == "" || header == "" {
			s.writeError(w, http.StatusUnauthorized, "InvalidCredentials", "request is not signed")
			return
		}

		auth, err := manta.ParseAuthorization(header)
		if err != nil {
			s.writeError(w, http.StatusUnauthorized, "InvalidAuthenticationToken", err.Error())
			return
		}

		if err := s.keys.Verify(date, auth); err != nil {
			s.log.Error("request error", "error", err)
			s.writeError(w, http.StatusForbidden, "InvalidSignature", err.Error())
			return
		}

		next.ServeHTTP(w, r)
	})
}
