package keybackend

import "errors"

var (
	// ErrKeyNotFound is returned when a key id is not present in the store.
	ErrKeyNotFound = errors.New("key not found")
	// ErrUnsupportedKey is returned for key types that cannot sign requests.
	ErrUnsupportedKey = errors.New("unsupported key type")
	// ErrBadSignature is returned when a signature does not verify.
	ErrBadSignature = errors.New("signature mismatch")
)
