package stream

import (
	"crypto/md5" //#nosec G501 -- content-md5 is the integrity digest of the wire protocol
	"encoding/base64"
	"errors"
	"hash"
	"io"

	"github.com/sagarc03/manta"
)

// State is the lifecycle position of a Verifier.
type State int

const (
	// Draining means bytes are still being forwarded and folded into the digest.
	Draining State = iota
	// Finalizing means the source is exhausted and the digest is being reconciled.
	Finalizing
	// Verified means the body ended and matched the declared digest, or none was declared.
	Verified
	// Failed means the body did not match, or the source failed.
	Failed
)

func (s State) String() string {
	switch s {
	case Draining:
		return "draining"
	case Finalizing:
		return "finalizing"
	case Verified:
		return "verified"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

// FinishFunc observes the terminal transition of a Verifier.
type FinishFunc func(state State, bytes int64, err error)

// Verifier forwards a response body to its reader while computing the MD5
// digest of every byte. At end of stream the digest is compared with the
// declared base64 content-md5.
//
// Bytes are handed out before they are known to be good. A reader that sees
// a *manta.ChecksumMismatchError in place of io.EOF must discard everything
// it consumed. The mismatch is always reported by a Read that returns no
// data, after every byte of the body has already been returned.
//
// The source is not touched until the first Read, so no data is lost between
// handing out the Verifier and the caller starting to consume it.
// A Verifier is not safe for concurrent use.
type Verifier struct {
	src      io.ReadCloser
	hash     hash.Hash
	declared string
	state    State
	err      error
	n        int64
	onFinish FinishFunc
}

// NewVerifier wraps src. An empty declared digest disables verification
// but still computes Sum.
func NewVerifier(src io.ReadCloser, declared string, onFinish FinishFunc) *Verifier {
	return &Verifier{
		src:      src,
		hash:     md5.New(), //#nosec G401
		declared: declared,
		onFinish: onFinish,
	}
}

// Read implements io.Reader.
func (v *Verifier) Read(p []byte) (int, error) {
	switch v.state {
	case Verified:
		return 0, io.EOF
	case Failed:
		return 0, v.err
	case Finalizing:
		return 0, v.finalize()
	}

	n, err := v.src.Read(p)
	if n > 0 {
		_, _ = v.hash.Write(p[:n])
		v.n += int64(n)
	}

	switch {
	case errors.Is(err, io.EOF):
		v.state = Finalizing
		if n > 0 {
			return n, nil
		}
		return 0, v.finalize()
	case err != nil:
		v.finish(Failed, err)
		return n, err
	}
	return n, nil
}

func (v *Verifier) finalize() error {
	actual := v.Sum()
	if v.declared != "" && v.declared != actual {
		v.finish(Failed, &manta.ChecksumMismatchError{Expected: v.declared, Actual: actual})
		return v.err
	}
	v.finish(Verified, nil)
	return io.EOF
}

func (v *Verifier) finish(state State, err error) {
	v.state = state
	v.err = err
	if v.onFinish != nil {
		v.onFinish(state, v.n, err)
	}
}

// Close closes the underlying source.
func (v *Verifier) Close() error {
	return v.src.Close()
}

// State returns the current lifecycle state.
func (v *Verifier) State() State { return v.state }

// Err returns the terminal error, or nil while draining and after verification.
func (v *Verifier) Err() error { return v.err }

// Sum returns the base64 MD5 digest of the bytes read so far.
func (v *Verifier) Sum() string {
	return base64.StdEncoding.EncodeToString(v.hash.Sum(nil))
}

// Declared returns the digest the server declared for the body.
func (v *Verifier) Declared() string { return v.declared }

// BytesRead returns the number of body bytes forwarded so far.
func (v *Verifier) BytesRead() int64 { return v.n }

// Copy drains src into dst through a Verifier. It returns the number of
// bytes written and a *manta.ChecksumMismatchError if the digest does not
// match. dst has received every byte by the time the mismatch is returned.
func Copy(dst io.Writer, src io.ReadCloser, declared string) (int64, error) {
	v := NewVerifier(src, declared, nil)
	defer func() { _ = v.Close() }()
	return io.Copy(dst, v)
}
