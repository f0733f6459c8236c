package keybackend

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/hmac"
	"crypto/rsa"
	"encoding/base64"
	"fmt"
	"sync"

	"github.com/sagarc03/manta"
)

// MapKeyStore holds verification keys indexed by user and key id.
// It is safe for concurrent use.
type MapKeyStore struct {
	mu      sync.RWMutex
	public  map[string]crypto.PublicKey
	secrets map[string][]byte
}

// NewMapKeyStore returns an empty store.
func NewMapKeyStore() *MapKeyStore {
	return &MapKeyStore{
		public:  make(map[string]crypto.PublicKey),
		secrets: make(map[string][]byte),
	}
}

func storeKey(user, keyID string) string {
	return "/" + user + "/keys/" + keyID
}

// AddPublicKey registers a public key for user. An empty keyID defaults to
// the key fingerprint, which is returned.
func (s *MapKeyStore) AddPublicKey(user, keyID string, pub crypto.PublicKey) (string, error) {
	if keyID == "" {
		fp, err := Fingerprint(pub)
		if err != nil {
			return "", err
		}
		keyID = fp
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.public[storeKey(user, keyID)] = pub
	return keyID, nil
}

// AddSecret registers a shared HMAC secret for user.
func (s *MapKeyStore) AddSecret(user, keyID string, secret []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.secrets[storeKey(user, keyID)] = secret
}

// Verify checks that auth is a valid signature over date.
func (s *MapKeyStore) Verify(date string, auth *manta.ParsedAuthorization) error {
	sig, err := base64.StdEncoding.DecodeString(auth.Value)
	if err != nil {
		return fmt.Errorf("decode signature: %w", ErrBadSignature)
	}

	id := storeKey(auth.User, auth.KeyID)
	s.mu.RLock()
	pub, hasPub := s.public[id]
	secret, hasSecret := s.secrets[id]
	s.mu.RUnlock()

	switch {
	case hasSecret:
		if auth.Algorithm != AlgorithmHMACSHA256 {
			return fmt.Errorf("algorithm %s: %w", auth.Algorithm, ErrBadSignature)
		}
		signer := NewHMACSigner(auth.User, auth.KeyID, secret)
		want, _ := signer.sign([]byte(date))
		if !hmac.Equal(want, sig) {
			return ErrBadSignature
		}
		return nil
	case hasPub:
		return verifyPublic(pub, auth.Algorithm, []byte(date), sig)
	default:
		return fmt.Errorf("%s: %w", id, ErrKeyNotFound)
	}
}

func verifyPublic(pub crypto.PublicKey, algorithm string, msg, sig []byte) error {
	want, err := algorithmFor(pub)
	if err != nil {
		return err
	}
	if want != algorithm {
		return fmt.Errorf("algorithm %s: %w", algorithm, ErrBadSignature)
	}

	h := hashFor(algorithm)
	ok := false
	switch k := pub.(type) {
	case *rsa.PublicKey:
		ok = rsa.VerifyPKCS1v15(k, h, digestOf(h, msg), sig) == nil
	case *ecdsa.PublicKey:
		ok = ecdsa.VerifyASN1(k, digestOf(h, msg), sig)
	case ed25519.PublicKey:
		ok = ed25519.Verify(k, msg, sig)
	}
	if !ok {
		return ErrBadSignature
	}
	return nil
}
