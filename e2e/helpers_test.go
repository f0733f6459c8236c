package e2e_test

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/pem"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/ssh"

	"github.com/sagarc03/manta/config"
	"github.com/sagarc03/manta/internal/mantatest"
	"github.com/sagarc03/manta/keybackend"
)

const testUser = "mark"

// Account is a user with an OpenSSH private key on disk whose public half
// is registered with a fake service.
type Account struct {
	User    string
	KeyFile string
	KeyID   string
}

// newAccount generates an ed25519 key pair, writes the private key to a
// temp dir and registers the public key with keys under its fingerprint.
// With nil keys the account is known to no service.
func newAccount(t *testing.T, keys *keybackend.MapKeyStore, user string) Account {
	t.Helper()

	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)

	block, err := ssh.MarshalPrivateKey(priv, user+"@e2e")
	require.NoError(t, err)

	keyFile := filepath.Join(t.TempDir(), "id_ed25519")
	require.NoError(t, os.WriteFile(keyFile, pem.EncodeToMemory(block), 0o600))

	keyID, err := keybackend.Fingerprint(pub)
	require.NoError(t, err)
	if keys != nil {
		_, err = keys.AddPublicKey(user, keyID, pub)
		require.NoError(t, err)
	}

	return Account{User: user, KeyFile: keyFile, KeyID: keyID}
}

// startService runs a fake service that trusts a freshly generated key for testUser.
func startService(t *testing.T, opts ...mantatest.Option) (*mantatest.Server, Account) {
	t.Helper()

	keys := keybackend.NewMapKeyStore()
	acct := newAccount(t, keys, testUser)
	srv := mantatest.New(t, append([]mantatest.Option{mantatest.WithKeyStore(keys)}, opts...)...)
	return srv, acct
}

// writeConfig writes a client config file pointing at srv as acct.
func writeConfig(t *testing.T, srv *mantatest.Server, acct Account, extra string) string {
	t.Helper()

	content := fmt.Sprintf(`
url: %s
user: %s
key_id: "%s"
key_file: %s
log:
  level: debug
  format: json
%s`, srv.URL(), acct.User, acct.KeyID, acct.KeyFile, extra)

	path := filepath.Join(t.TempDir(), "manta.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func loadConfig(t *testing.T, files ...string) *config.Config {
	t.Helper()
	cfg, err := config.Load(files, nil)
	require.NoError(t, err)
	return cfg
}
