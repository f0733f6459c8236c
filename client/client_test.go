package client_test

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sagarc03/manta"
	"github.com/sagarc03/manta/client"
	"github.com/sagarc03/manta/internal/mantatest"
	"github.com/sagarc03/manta/keybackend"
)

const (
	testUser   = "mark"
	testKeyID  = "test-key"
	testSecret = "s3cret"
)

func testSigner() *keybackend.Signer {
	return keybackend.NewHMACSigner(testUser, testKeyID, []byte(testSecret))
}

// newServer starts a fake service that only accepts requests signed by testSigner.
func newServer(t *testing.T, opts ...mantatest.Option) *mantatest.Server {
	t.Helper()
	keys := keybackend.NewMapKeyStore()
	keys.AddSecret(testUser, testKeyID, []byte(testSecret))
	return mantatest.New(t, append([]mantatest.Option{mantatest.WithKeyStore(keys)}, opts...)...)
}

func newClient(t *testing.T, srv *mantatest.Server, opts ...client.Option) *client.Client {
	t.Helper()
	base := []client.Option{
		client.WithUser(testUser),
		client.WithHTTPClient(srv.Client()),
	}
	c, err := client.New(srv.URL(), testSigner().SignFunc(), append(base, opts...)...)
	require.NoError(t, err)
	return c
}

// mockSigner is a SignFunc backed by testify's mock.
type mockSigner struct {
	mock.Mock
}

func (m *mockSigner) Sign(_ context.Context, date string) (*manta.Signature, error) {
	args := m.Called(date)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*manta.Signature), args.Error(1)
}

func TestNew(t *testing.T) {
	sign := testSigner().SignFunc()

	t.Run("valid", func(t *testing.T) {
		c, err := client.New("http://localhost:8080/", sign, client.WithUser("mark"))
		require.NoError(t, err)
		assert.Equal(t, "mark", c.User())
		assert.Equal(t, "MantaClient<url=http://localhost:8080, user=mark>", c.String())
	})

	t.Run("missing endpoint", func(t *testing.T) {
		_, err := client.New("", sign)
		assert.ErrorIs(t, err, client.ErrEndpointRequired)
	})

	t.Run("missing signer", func(t *testing.T) {
		_, err := client.New("http://localhost:8080", nil)
		assert.ErrorIs(t, err, client.ErrSignerRequired)
	})

	t.Run("relative endpoint", func(t *testing.T) {
		_, err := client.New("localhost", sign)
		assert.Error(t, err)
	})
}

func TestClient_SignatureReproducible(t *testing.T) {
	srv := newServer(t)
	srv.AddObject("/mark/stor/hello.txt", []byte("hello"))
	c := newClient(t, srv)

	_, err := c.Info(context.Background(), "hello.txt", client.RequestOptions{})
	require.NoError(t, err)

	calls := srv.Calls()
	require.Len(t, calls, 1)

	date := calls[0].Header.Get("Date")
	require.NotEmpty(t, date)
	assert.Len(t, calls[0].Header.Values("Date"), 1)

	sig, err := testSigner().Sign(context.Background(), date)
	require.NoError(t, err)
	assert.Equal(t, sig.Authorization(), calls[0].Header.Get("Authorization"))
	assert.True(t, strings.HasPrefix(calls[0].Header.Get("Authorization"),
		`Signature keyId="/mark/keys/test-key",algorithm="hmac-sha256" `))
}

func TestClient_DateFromClock(t *testing.T) {
	srv := newServer(t)
	fixed := time.Date(2012, 9, 11, 19, 9, 47, 0, time.UTC)
	c := newClient(t, srv, client.WithClock(func() time.Time { return fixed }))

	_ = c.Mkdir(context.Background(), "dir", client.RequestOptions{})

	calls := srv.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, "Tue, 11 Sep 2012 19:09:47 GMT", calls[0].Header.Get("Date"))
}

func TestClient_SigningErrorSendsNothing(t *testing.T) {
	srv := newServer(t)

	signer := new(mockSigner)
	signer.On("Sign", mock.AnythingOfType("string")).Return(nil, errors.New("agent locked"))

	c, err := client.New(srv.URL(), signer.Sign, client.WithUser(testUser), client.WithHTTPClient(srv.Client()))
	require.NoError(t, err)

	err = c.Mkdir(context.Background(), "dir", client.RequestOptions{})

	var signErr *manta.SigningError
	require.ErrorAs(t, err, &signErr)
	assert.ErrorContains(t, err, "agent locked")
	assert.Empty(t, srv.Calls())
	signer.AssertNumberOfCalls(t, "Sign", 1)
}

func TestClient_RejectedSignature(t *testing.T) {
	srv := newServer(t)

	wrong := keybackend.NewHMACSigner(testUser, testKeyID, []byte("not the secret"))
	c, err := client.New(srv.URL(), wrong.SignFunc(), client.WithUser(testUser), client.WithHTTPClient(srv.Client()))
	require.NoError(t, err)

	err = c.Mkdir(context.Background(), "dir", client.RequestOptions{})

	var remote *manta.RemoteError
	require.ErrorAs(t, err, &remote)
	assert.Equal(t, "InvalidSignatureError", remote.Name)
	assert.ErrorIs(t, err, manta.ErrForbidden)
}

func TestClient_Envelope(t *testing.T) {
	srv := newServer(t)
	c := newClient(t, srv, client.WithHeaders(http.Header{
		"X-Client":  {"suite"},
		"X-Default": {"client"},
	}))

	err := c.Mkdir(context.Background(), "dir/", client.RequestOptions{
		Headers:   http.Header{"x-default": {"call"}},
		RequestID: "req-123",
	})
	require.NoError(t, err)

	calls := srv.Calls()
	require.Len(t, calls, 1)
	call := calls[0]

	assert.Equal(t, "/mark/stor/dir", call.Path, "trailing slash is stripped")
	assert.Equal(t, "req-123", call.Header.Get("X-Request-Id"))
	assert.Equal(t, "suite", call.Header.Get("X-Client"))
	assert.Equal(t, "call", call.Header.Get("X-Default"), "per call headers win")
	assert.Equal(t, manta.MediaTypeDirectory, call.Header.Get("Content-Type"))
}

func TestClient_GeneratedRequestID(t *testing.T) {
	srv := newServer(t)
	c := newClient(t, srv)

	require.NoError(t, c.Mkdir(context.Background(), "a", client.RequestOptions{}))
	require.NoError(t, c.Mkdir(context.Background(), "b", client.RequestOptions{}))

	calls := srv.Calls()
	require.Len(t, calls, 2)
	assert.NotEmpty(t, calls[0].Header.Get("X-Request-Id"))
	assert.NotEqual(t, calls[0].Header.Get("X-Request-Id"), calls[1].Header.Get("X-Request-Id"))
}

func TestClient_RemoteErrors(t *testing.T) {
	srv := newServer(t)
	c := newClient(t, srv)

	t.Run("json body", func(t *testing.T) {
		_, err := c.Get(context.Background(), "missing", client.RequestOptions{})

		var remote *manta.RemoteError
		require.ErrorAs(t, err, &remote)
		assert.Equal(t, http.StatusNotFound, remote.StatusCode)
		assert.Equal(t, "ResourceNotFound", remote.Code)
		assert.Equal(t, "ResourceNotFoundError", remote.Name)
		assert.Contains(t, remote.Message, "/mark/stor/missing")
		assert.ErrorIs(t, err, manta.ErrNotFound)
	})

	t.Run("empty body falls back to status", func(t *testing.T) {
		_, err := c.Info(context.Background(), "missing", client.RequestOptions{})

		var remote *manta.RemoteError
		require.ErrorAs(t, err, &remote)
		assert.Equal(t, "NotFoundError", remote.Name)
		assert.ErrorIs(t, err, manta.ErrNotFound)
	})

	t.Run("injected code", func(t *testing.T) {
		srv.Fail(http.MethodPut, "/mark/stor/busy", http.StatusServiceUnavailable, "ServiceUnavailableError")
		t.Cleanup(srv.Heal)

		err := c.Mkdir(context.Background(), "busy", client.RequestOptions{})

		var remote *manta.RemoteError
		require.ErrorAs(t, err, &remote)
		assert.Equal(t, "ServiceUnavailableError", remote.Name, "suffix is not doubled")
	})
}

func TestClient_TransportError(t *testing.T) {
	c, err := client.New("http://127.0.0.1:1", testSigner().SignFunc(), client.WithTimeout(time.Second))
	require.NoError(t, err)

	err = c.Mkdir(context.Background(), "/mark/stor/dir", client.RequestOptions{})

	var transport *manta.TransportError
	require.ErrorAs(t, err, &transport)
	assert.Equal(t, "mkdir", transport.Op)
}

func TestClient_Logging(t *testing.T) {
	srv := newServer(t)
	var buf bytes.Buffer
	log := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	c := newClient(t, srv, client.WithLogger(log))

	require.NoError(t, c.Mkdir(context.Background(), "dir", client.RequestOptions{RequestID: "abc"}))

	out := buf.String()
	assert.Contains(t, out, "mkdir: entered")
	assert.Contains(t, out, "mkdir: done")
	assert.Contains(t, out, "path=/mark/stor/dir")
	assert.Contains(t, out, "req_id=abc")
}
