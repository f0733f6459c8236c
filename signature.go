package manta

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
)

const (
	// HeaderAuthorization carries the rendered signature.
	HeaderAuthorization = "Authorization"
	// HeaderDate is the only header the signature covers.
	HeaderDate = "Date"

	authorizationFormat = `Signature keyId="/%s/keys/%s",algorithm="%s" %s`
)

// Signature is the result of signing a request date.
type Signature struct {
	User      string
	KeyID     string
	Algorithm string
	// Value is the base64 encoded signature bytes.
	Value string
}

// Authorization renders the signature into an Authorization header value.
func (s *Signature) Authorization() string {
	return fmt.Sprintf(authorizationFormat, s.User, s.KeyID, s.Algorithm, s.Value)
}

// SignFunc signs the exact Date header value that will be transmitted.
// Implementations must be safe for concurrent use.
type SignFunc func(ctx context.Context, date string) (*Signature, error)

// FormatDate renders t the way the Date header is transmitted.
func FormatDate(t time.Time) string {
	return t.UTC().Format(http.TimeFormat)
}

// SignRequest signs the Date header already present on req and sets the
// Authorization header. The Date header must not be modified afterwards.
// Any signer failure is returned as a *SigningError.
func SignRequest(ctx context.Context, req *http.Request, sign SignFunc) error {
	if sign == nil {
		return &SigningError{Err: errors.New("no signer configured")}
	}

	date := req.Header.Get(HeaderDate)
	if date == "" {
		return &SigningError{Err: errors.New("request has no date header")}
	}

	sig, err := sign(ctx, date)
	if err != nil {
		return &SigningError{Err: err}
	}
	if sig == nil {
		return &SigningError{Err: errors.New("signer returned no signature")}
	}

	req.Header.Set(HeaderAuthorization, sig.Authorization())
	return nil
}

// ParsedAuthorization is the decoded form of an Authorization header.
type ParsedAuthorization struct {
	User      string
	KeyID     string
	Algorithm string
	Value     string
}

// ParseAuthorization decodes a header produced by Signature.Authorization.
func ParseAuthorization(header string) (*ParsedAuthorization, error) {
	rest, ok := strings.CutPrefix(header, `Signature keyId="`)
	if !ok {
		return nil, fmt.Errorf("malformed authorization header: %w", ErrUnauthorized)
	}
	keyPath, rest, ok := strings.Cut(rest, `",algorithm="`)
	if !ok {
		return nil, fmt.Errorf("malformed authorization header: %w", ErrUnauthorized)
	}
	algorithm, value, ok := strings.Cut(rest, `" `)
	if !ok || value == "" {
		return nil, fmt.Errorf("malformed authorization header: %w", ErrUnauthorized)
	}

	segs := splitSegments(keyPath)
	if len(segs) != 3 || segs[1] != "keys" {
		return nil, fmt.Errorf("malformed key id %q: %w", keyPath, ErrUnauthorized)
	}

	return &ParsedAuthorization{
		User:      segs[0],
		KeyID:     segs[2],
		Algorithm: algorithm,
		Value:     value,
	}, nil
}
