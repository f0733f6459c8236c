package keybackend

import (
	"crypto"
	"errors"
	"fmt"
	"os"

	"golang.org/x/crypto/ssh"
)

// LoadPrivateKeyFile reads a PEM or OpenSSH encoded private key. passphrase
// is only used for encrypted keys.
func LoadPrivateKeyFile(path string, passphrase []byte) (crypto.Signer, error) {
	data, err := os.ReadFile(path) //nolint:gosec // Path is from trusted config
	if err != nil {
		return nil, fmt.Errorf("read key file: %w", err)
	}
	return ParsePrivateKey(data, passphrase)
}

// ParsePrivateKey decodes a PEM or OpenSSH encoded private key.
func ParsePrivateKey(data, passphrase []byte) (crypto.Signer, error) {
	raw, err := ssh.ParseRawPrivateKey(data)
	var missing *ssh.PassphraseMissingError
	if errors.As(err, &missing) {
		if len(passphrase) == 0 {
			return nil, fmt.Errorf("parse key: %w", err)
		}
		raw, err = ssh.ParseRawPrivateKeyWithPassphrase(data, passphrase)
	}
	if err != nil {
		return nil, fmt.Errorf("parse key: %w", err)
	}

	signer, ok := raw.(crypto.Signer)
	if !ok {
		return nil, fmt.Errorf("%w: %T", ErrUnsupportedKey, raw)
	}
	return signer, nil
}

// ParsePublicKey decodes a public key in authorized_keys format.
func ParsePublicKey(data []byte) (crypto.PublicKey, error) {
	pub, _, _, _, err := ssh.ParseAuthorizedKey(data)
	if err != nil {
		return nil, fmt.Errorf("parse public key: %w", err)
	}
	cryptoPub, ok := pub.(ssh.CryptoPublicKey)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedKey, pub.Type())
	}
	return cryptoPub.CryptoPublicKey(), nil
}
