// Package keybackend provides signing keys for request authentication and
// public key stores for verifying them.
package keybackend

import (
	"context"
	"crypto"
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/elliptic"
	"crypto/hmac"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/base64"
	"fmt"
	"hash"

	"golang.org/x/crypto/ssh"

	"github.com/sagarc03/manta"
)

// Signature algorithms understood by the service.
const (
	AlgorithmRSASHA256   = "rsa-sha256"
	AlgorithmECDSASHA256 = "ecdsa-sha256"
	AlgorithmECDSASHA384 = "ecdsa-sha384"
	AlgorithmECDSASHA512 = "ecdsa-sha512"
	AlgorithmEd25519     = "ed25519-sha512"
	AlgorithmHMACSHA256  = "hmac-sha256"
)

// Signer signs request dates with a private key or shared secret.
// It holds no per request state and is safe for concurrent use.
type Signer struct {
	user      string
	keyID     string
	algorithm string
	key       crypto.Signer
	secret    []byte
}

// NewKeySigner returns a Signer for an RSA, ECDSA or Ed25519 private key.
// An empty keyID defaults to the MD5 fingerprint of the public key.
func NewKeySigner(user, keyID string, key crypto.Signer) (*Signer, error) {
	algorithm, err := algorithmFor(key.Public())
	if err != nil {
		return nil, err
	}

	if keyID == "" {
		keyID, err = Fingerprint(key.Public())
		if err != nil {
			return nil, err
		}
	}

	return &Signer{user: user, keyID: keyID, algorithm: algorithm, key: key}, nil
}

// NewHMACSigner returns a Signer using a shared secret.
func NewHMACSigner(user, keyID string, secret []byte) *Signer {
	return &Signer{user: user, keyID: keyID, algorithm: AlgorithmHMACSHA256, secret: secret}
}

// Fingerprint returns the colon separated MD5 fingerprint of a public key,
// the form used for key ids.
func Fingerprint(pub crypto.PublicKey) (string, error) {
	sshPub, err := ssh.NewPublicKey(pub)
	if err != nil {
		return "", fmt.Errorf("fingerprint key: %w", err)
	}
	return ssh.FingerprintLegacyMD5(sshPub), nil
}

// User returns the account the signer authenticates as.
func (s *Signer) User() string { return s.user }

// KeyID returns the key id rendered into the authorization header.
func (s *Signer) KeyID() string { return s.keyID }

// Algorithm returns the signature algorithm name.
func (s *Signer) Algorithm() string { return s.algorithm }

// Sign signs date.
func (s *Signer) Sign(ctx context.Context, date string) (*manta.Signature, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	raw, err := s.sign([]byte(date))
	if err != nil {
		return nil, err
	}

	return &manta.Signature{
		User:      s.user,
		KeyID:     s.keyID,
		Algorithm: s.algorithm,
		Value:     base64.StdEncoding.EncodeToString(raw),
	}, nil
}

// SignFunc adapts the signer to manta.SignFunc.
func (s *Signer) SignFunc() manta.SignFunc {
	return s.Sign
}

func (s *Signer) sign(msg []byte) ([]byte, error) {
	if s.secret != nil {
		mac := hmac.New(sha256.New, s.secret)
		mac.Write(msg)
		return mac.Sum(nil), nil
	}

	if _, ok := s.key.Public().(ed25519.PublicKey); ok {
		return s.key.Sign(rand.Reader, msg, crypto.Hash(0))
	}

	h := hashFor(s.algorithm)
	digest := digestOf(h, msg)
	sig, err := s.key.Sign(rand.Reader, digest, h)
	if err != nil {
		return nil, fmt.Errorf("sign date: %w", err)
	}
	return sig, nil
}

func algorithmFor(pub crypto.PublicKey) (string, error) {
	switch k := pub.(type) {
	case *rsa.PublicKey:
		return AlgorithmRSASHA256, nil
	case ed25519.PublicKey:
		return AlgorithmEd25519, nil
	case *ecdsa.PublicKey:
		switch k.Curve {
		case elliptic.P256():
			return AlgorithmECDSASHA256, nil
		case elliptic.P384():
			return AlgorithmECDSASHA384, nil
		case elliptic.P521():
			return AlgorithmECDSASHA512, nil
		}
	}
	return "", fmt.Errorf("%w: %T", ErrUnsupportedKey, pub)
}

func hashFor(algorithm string) crypto.Hash {
	switch algorithm {
	case AlgorithmECDSASHA384:
		return crypto.SHA384
	case AlgorithmECDSASHA512, AlgorithmEd25519:
		return crypto.SHA512
	default:
		return crypto.SHA256
	}
}

func digestOf(h crypto.Hash, msg []byte) []byte {
	var hh hash.Hash
	switch h {
	case crypto.SHA384:
		hh = sha512.New384()
	case crypto.SHA512:
		hh = sha512.New()
	default:
		hh = sha256.New()
	}
	hh.Write(msg)
	return hh.Sum(nil)
}
