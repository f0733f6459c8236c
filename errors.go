package manta

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
)

var (
	// ErrNotFound matches any RemoteError with a 404 status.
	ErrNotFound = &RemoteError{StatusCode: http.StatusNotFound}
	// ErrUnauthorized matches any RemoteError with a 401 status.
	ErrUnauthorized = &RemoteError{StatusCode: http.StatusUnauthorized}
	// ErrForbidden matches any RemoteError with a 403 status.
	ErrForbidden = &RemoteError{StatusCode: http.StatusForbidden}

	// ErrInvalidPath is returned when a path cannot be mapped into the namespace.
	ErrInvalidPath = errors.New("invalid path")
	// ErrInvalidJob is returned when a job specification fails validation.
	ErrInvalidJob = errors.New("invalid job")
)

// SigningError is returned when the caller supplied signer rejects a request.
// No request is sent once signing has failed.
type SigningError struct {
	Err error
}

func (e *SigningError) Error() string {
	return "sign request: " + e.Err.Error()
}

func (e *SigningError) Unwrap() error { return e.Err }

// TransportError wraps a failure returned by the HTTP transport.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return e.Op + ": " + e.Err.Error()
}

func (e *TransportError) Unwrap() error { return e.Err }

// RemoteError is decoded from a non-2xx response carrying a JSON {code, message} body.
type RemoteError struct {
	StatusCode int
	// Code is the service error code, e.g. "ResourceNotFound".
	Code string
	// Name is Code with an "Error" suffix, e.g. "ResourceNotFoundError".
	Name    string
	Message string
	Body    string
}

func (e *RemoteError) Error() string {
	var b strings.Builder
	b.WriteString(e.Name)
	b.WriteString(" (")
	b.WriteString(strconv.Itoa(e.StatusCode))
	b.WriteString(")")
	if e.Message != "" {
		b.WriteString(": ")
		b.WriteString(e.Message)
	}
	return b.String()
}

// Is reports whether target is a RemoteError with the same status code,
// or the same code when target carries one.
func (e *RemoteError) Is(target error) bool {
	var t *RemoteError
	if !errors.As(target, &t) {
		return false
	}
	if t.Code != "" {
		return t.Code == e.Code
	}
	return t.StatusCode == e.StatusCode
}

// ErrorName derives the error kind name for a service error code.
func ErrorName(code string) string {
	if strings.HasSuffix(code, "Error") {
		return code
	}
	return code + "Error"
}

// NewRemoteError builds a RemoteError from a response status and body.
// Bodies that are not JSON, or carry no code, fall back to the status text.
func NewRemoteError(statusCode int, code, message string, body []byte) *RemoteError {
	if code == "" {
		code = strings.ReplaceAll(http.StatusText(statusCode), " ", "")
		if code == "" {
			code = "Unknown"
		}
	}
	return &RemoteError{
		StatusCode: statusCode,
		Code:       code,
		Name:       ErrorName(code),
		Message:    message,
		Body:       string(body),
	}
}

// ChecksumMismatchError is reported at end of stream when the computed
// content-md5 differs from the one declared by the server. Every byte has
// already been delivered to the reader by then and must be discarded.
type ChecksumMismatchError struct {
	Expected string
	Actual   string
}

func (e *ChecksumMismatchError) Error() string {
	return fmt.Sprintf("content-md5 expected to be %s, but was %s", e.Expected, e.Actual)
}

// StreamFailedError is reported when the stream trailer marks a listing as failed.
type StreamFailedError struct {
	Path string
}

func (e *StreamFailedError) Error() string {
	return "stream failed for " + e.Path
}

// DecodeError is reported when a line of an event stream is not valid.
type DecodeError struct {
	Line []byte
	Err  error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode line %q: %v", e.Line, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// InvalidDirectoryError is returned when a path has no creatable directory segments.
type InvalidDirectoryError struct {
	Path string
}

func (e *InvalidDirectoryError) Error() string {
	return e.Path + " is an invalid directory"
}

func (e *InvalidDirectoryError) Unwrap() error { return ErrInvalidPath }
