package keybackend

import (
	"errors"
	"fmt"
)

// KeysConfig selects the credential a client signs with.
// Exactly one of File or Secret must be set.
type KeysConfig struct {
	User       string `mapstructure:"user"`
	KeyID      string `mapstructure:"key_id"`
	File       string `mapstructure:"file"`
	Passphrase string `mapstructure:"passphrase"`
	Secret     string `mapstructure:"secret"`
}

// NewSigner builds a Signer from configuration.
func NewSigner(cfg KeysConfig) (*Signer, error) {
	if cfg.User == "" {
		return nil, errors.New("keys: user is required")
	}

	switch {
	case cfg.File != "" && cfg.Secret != "":
		return nil, errors.New("keys: file and secret are mutually exclusive")
	case cfg.Secret != "":
		if cfg.KeyID == "" {
			return nil, errors.New("keys: key_id is required with a shared secret")
		}
		return NewHMACSigner(cfg.User, cfg.KeyID, []byte(cfg.Secret)), nil
	case cfg.File != "":
		key, err := LoadPrivateKeyFile(cfg.File, []byte(cfg.Passphrase))
		if err != nil {
			return nil, err
		}
		signer, err := NewKeySigner(cfg.User, cfg.KeyID, key)
		if err != nil {
			return nil, fmt.Errorf("keys: %w", err)
		}
		return signer, nil
	default:
		return nil, errors.New("keys: one of file or secret is required")
	}
}
