package keybackend_test

import (
	"context"
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/ssh"

	"github.com/sagarc03/manta"
	"github.com/sagarc03/manta/keybackend"
)

const testDate = "Tue, 11 Sep 2012 19:09:47 GMT"

func writeFile(t *testing.T, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "id_key")
	require.NoError(t, os.WriteFile(path, data, 0o600))
	return path
}

func parse(t *testing.T, sig *manta.Signature) *manta.ParsedAuthorization {
	t.Helper()
	auth, err := manta.ParseAuthorization(sig.Authorization())
	require.NoError(t, err)
	return auth
}

func TestKeySigner_RSA(t *testing.T) {
	t.Parallel()

	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	signer, err := keybackend.NewKeySigner("mark", "", key)
	require.NoError(t, err)
	assert.Equal(t, keybackend.AlgorithmRSASHA256, signer.Algorithm())
	assert.Len(t, signer.KeyID(), 47, "md5 fingerprint is 16 colon separated hex pairs")

	first, err := signer.Sign(context.Background(), testDate)
	require.NoError(t, err)
	second, err := signer.Sign(context.Background(), testDate)
	require.NoError(t, err)
	assert.Equal(t, first.Value, second.Value, "recomputing over the same date reproduces the signature")

	store := keybackend.NewMapKeyStore()
	keyID, err := store.AddPublicKey("mark", "", key.Public())
	require.NoError(t, err)
	assert.Equal(t, signer.KeyID(), keyID)

	require.NoError(t, store.Verify(testDate, parse(t, first)))
	assert.ErrorIs(t, store.Verify("Wed, 12 Sep 2012 19:09:47 GMT", parse(t, first)), keybackend.ErrBadSignature)
}

func TestKeySigner_ECDSA(t *testing.T) {
	t.Parallel()

	tests := []struct {
		curve     elliptic.Curve
		algorithm string
	}{
		{curve: elliptic.P256(), algorithm: keybackend.AlgorithmECDSASHA256},
		{curve: elliptic.P384(), algorithm: keybackend.AlgorithmECDSASHA384},
		{curve: elliptic.P521(), algorithm: keybackend.AlgorithmECDSASHA512},
	}

	for _, tt := range tests {
		t.Run(tt.algorithm, func(t *testing.T) {
			key, err := ecdsa.GenerateKey(tt.curve, rand.Reader)
			require.NoError(t, err)

			der, err := x509.MarshalECPrivateKey(key)
			require.NoError(t, err)
			path := writeFile(t, pem.EncodeToMemory(&pem.Block{Type: "EC PRIVATE KEY", Bytes: der}))

			loaded, err := keybackend.LoadPrivateKeyFile(path, nil)
			require.NoError(t, err)

			signer, err := keybackend.NewKeySigner("mark", "ec-key", loaded)
			require.NoError(t, err)
			assert.Equal(t, tt.algorithm, signer.Algorithm())

			sig, err := signer.Sign(context.Background(), testDate)
			require.NoError(t, err)

			store := keybackend.NewMapKeyStore()
			_, err = store.AddPublicKey("mark", "ec-key", key.Public())
			require.NoError(t, err)
			assert.NoError(t, store.Verify(testDate, parse(t, sig)))
		})
	}
}

func TestKeySigner_Ed25519OpenSSH(t *testing.T) {
	t.Parallel()

	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)

	block, err := ssh.MarshalPrivateKey(priv, "test key")
	require.NoError(t, err)
	path := writeFile(t, pem.EncodeToMemory(block))

	loaded, err := keybackend.LoadPrivateKeyFile(path, nil)
	require.NoError(t, err)

	signer, err := keybackend.NewKeySigner("mark", "", loaded)
	require.NoError(t, err)
	assert.Equal(t, keybackend.AlgorithmEd25519, signer.Algorithm())

	sig, err := signer.SignFunc()(context.Background(), testDate)
	require.NoError(t, err)
	assert.Equal(t, "mark", sig.User)

	store := keybackend.NewMapKeyStore()
	_, err = store.AddPublicKey("mark", "", pub)
	require.NoError(t, err)
	assert.NoError(t, store.Verify(testDate, parse(t, sig)))
}

func TestLoadPrivateKeyFile_Encrypted(t *testing.T) {
	t.Parallel()

	_, priv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)

	block, err := ssh.MarshalPrivateKeyWithPassphrase(priv, "", []byte("hunter2"))
	require.NoError(t, err)
	path := writeFile(t, pem.EncodeToMemory(block))

	_, err = keybackend.LoadPrivateKeyFile(path, nil)
	assert.Error(t, err)

	_, err = keybackend.LoadPrivateKeyFile(path, []byte("hunter2"))
	assert.NoError(t, err)
}

func TestLoadPrivateKeyFile_Errors(t *testing.T) {
	t.Parallel()

	_, err := keybackend.LoadPrivateKeyFile(filepath.Join(t.TempDir(), "missing"), nil)
	assert.ErrorContains(t, err, "read key file")

	_, err = keybackend.LoadPrivateKeyFile(writeFile(t, []byte("not a key")), nil)
	assert.ErrorContains(t, err, "parse key")
}

func TestParsePublicKey(t *testing.T) {
	t.Parallel()

	pub, _, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	sshPub, err := ssh.NewPublicKey(pub)
	require.NoError(t, err)

	got, err := keybackend.ParsePublicKey(ssh.MarshalAuthorizedKey(sshPub))
	require.NoError(t, err)
	assert.Equal(t, pub, got)

	_, err = keybackend.ParsePublicKey([]byte("garbage"))
	assert.Error(t, err)
}

func TestHMACSigner(t *testing.T) {
	t.Parallel()

	signer := keybackend.NewHMACSigner("mark", "shared", []byte("s3cret"))
	sig, err := signer.Sign(context.Background(), testDate)
	require.NoError(t, err)
	assert.Equal(t, keybackend.AlgorithmHMACSHA256, sig.Algorithm)

	store := keybackend.NewMapKeyStore()
	store.AddSecret("mark", "shared", []byte("s3cret"))
	assert.NoError(t, store.Verify(testDate, parse(t, sig)))

	other := keybackend.NewMapKeyStore()
	other.AddSecret("mark", "shared", []byte("different"))
	assert.ErrorIs(t, other.Verify(testDate, parse(t, sig)), keybackend.ErrBadSignature)
}

func TestMapKeyStore_Verify_UnknownKey(t *testing.T) {
	t.Parallel()

	store := keybackend.NewMapKeyStore()
	err := store.Verify(testDate, &manta.ParsedAuthorization{
		User: "mark", KeyID: "nope", Algorithm: keybackend.AlgorithmHMACSHA256, Value: "AAAA",
	})
	assert.ErrorIs(t, err, keybackend.ErrKeyNotFound)
}

func TestSigner_CancelledContext(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := keybackend.NewHMACSigner("mark", "k", []byte("s")).Sign(ctx, testDate)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestNewSigner(t *testing.T) {
	t.Parallel()

	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	keyPath := writeFile(t, pem.EncodeToMemory(&pem.Block{
		Type:  "RSA PRIVATE KEY",
		Bytes: x509.MarshalPKCS1PrivateKey(key),
	}))

	tests := []struct {
		name    string
		cfg     keybackend.KeysConfig
		wantErr string
		wantAlg string
	}{
		{name: "key file", cfg: keybackend.KeysConfig{User: "mark", File: keyPath}, wantAlg: keybackend.AlgorithmRSASHA256},
		{name: "shared secret", cfg: keybackend.KeysConfig{User: "mark", KeyID: "k1", Secret: "s"}, wantAlg: keybackend.AlgorithmHMACSHA256},
		{name: "missing user", cfg: keybackend.KeysConfig{File: keyPath}, wantErr: "user is required"},
		{name: "nothing configured", cfg: keybackend.KeysConfig{User: "mark"}, wantErr: "one of file or secret"},
		{name: "both configured", cfg: keybackend.KeysConfig{User: "mark", File: keyPath, Secret: "s"}, wantErr: "mutually exclusive"},
		{name: "secret without key id", cfg: keybackend.KeysConfig{User: "mark", Secret: "s"}, wantErr: "key_id is required"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			signer, err := keybackend.NewSigner(tt.cfg)
			if tt.wantErr != "" {
				assert.ErrorContains(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantAlg, signer.Algorithm())
			assert.Equal(t, "mark", signer.User())
		})
	}
}
