package client_test

import (
	"bytes"
	"context"
	"crypto/md5" //#nosec G501
	"encoding/base64"
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sagarc03/manta"
	"github.com/sagarc03/manta/client"
	"github.com/sagarc03/manta/metrics"
	"github.com/sagarc03/manta/stream"
)

func contentMD5(data string) string {
	sum := md5.Sum([]byte(data)) //#nosec G401
	return base64.StdEncoding.EncodeToString(sum[:])
}

func TestClient_Get(t *testing.T) {
	srv := newServer(t)
	body := strings.Repeat("0123456789", 1000)
	srv.AddObject("/mark/stor/data/blob.bin", []byte(body))
	m := metrics.New()
	c := newClient(t, srv, client.WithMetrics(m))

	obj, err := c.Get(context.Background(), "data/blob.bin", client.RequestOptions{})
	require.NoError(t, err)
	defer func() { _ = obj.Close() }()

	assert.Equal(t, stream.Draining, obj.State())
	assert.Equal(t, "blob.bin", obj.Info.Name)
	assert.Equal(t, int64(len(body)), obj.Info.Size)
	assert.Equal(t, contentMD5(body), obj.Declared())

	got, err := io.ReadAll(obj)
	require.NoError(t, err)
	assert.Equal(t, body, string(got))
	assert.Equal(t, stream.Verified, obj.State())

	expected := `
# HELP manta_stream_bytes_total Object body bytes transferred, partitioned by direction.
# TYPE manta_stream_bytes_total counter
manta_stream_bytes_total{direction="download"} 10000
`
	assert.NoError(t, testutil.GatherAndCompare(m.Registry(), strings.NewReader(expected), "manta_stream_bytes_total"))
}

func TestClient_Get_ChecksumMismatch(t *testing.T) {
	srv := newServer(t)
	srv.AddObject("/mark/stor/file.txt", []byte("genuine bytes"))
	srv.SetContentMD5("/mark/stor/file.txt", contentMD5("other bytes"))
	m := metrics.New()
	c := newClient(t, srv, client.WithMetrics(m))

	obj, err := c.Get(context.Background(), "file.txt", client.RequestOptions{})
	require.NoError(t, err, "the object is handed out before it is verified")
	defer func() { _ = obj.Close() }()

	var sink bytes.Buffer
	_, err = io.Copy(&sink, obj)

	var mismatch *manta.ChecksumMismatchError
	require.ErrorAs(t, err, &mismatch)
	assert.Equal(t, contentMD5("other bytes"), mismatch.Expected)
	assert.Equal(t, contentMD5("genuine bytes"), mismatch.Actual)
	assert.Equal(t, "genuine bytes", sink.String(), "bytes reach the sink before the mismatch")
	assert.Equal(t, stream.Failed, obj.State())

	mismatches, err := testutil.GatherAndCount(m.Registry(), "manta_stream_checksum_mismatches_total")
	require.NoError(t, err)
	assert.Equal(t, 1, mismatches)
}

func TestClient_Info(t *testing.T) {
	srv := newServer(t)
	srv.AddObject("/mark/stor/docs/readme.txt", []byte("read me"))
	c := newClient(t, srv)

	t.Run("object", func(t *testing.T) {
		info, err := c.Info(context.Background(), "docs/readme.txt", client.RequestOptions{})
		require.NoError(t, err)
		assert.Equal(t, "readme.txt", info.Name)
		assert.Equal(t, "application/octet-stream", info.Type)
		assert.Equal(t, int64(7), info.Size)
		assert.Equal(t, contentMD5("read me"), info.MD5)
		assert.NotEmpty(t, info.ETag)
		assert.False(t, info.IsDirectory())
	})

	t.Run("directory", func(t *testing.T) {
		info, err := c.Info(context.Background(), "docs", client.RequestOptions{})
		require.NoError(t, err)
		assert.Equal(t, "docs", info.Name)
		assert.Equal(t, "directory", info.Extension)
		assert.True(t, info.IsDirectory())
	})

	t.Run("fully qualified path is not re-rooted", func(t *testing.T) {
		info, err := c.Info(context.Background(), "/mark/stor/docs/readme.txt", client.RequestOptions{})
		require.NoError(t, err)
		assert.Equal(t, "readme.txt", info.Name)
	})
}

func TestClient_Put(t *testing.T) {
	srv := newServer(t)
	c := newClient(t, srv)

	t.Run("sized reader", func(t *testing.T) {
		res, err := c.Put(context.Background(), "notes.json", strings.NewReader("some notes"), client.PutOptions{
			MD5:    contentMD5("some notes"),
			Copies: 3,
		})
		require.NoError(t, err)
		assert.NotEmpty(t, res.ETag)
		assert.Equal(t, contentMD5("some notes"), res.MD5)

		data, ok := srv.Object("/mark/stor/notes.json")
		require.True(t, ok)
		assert.Equal(t, "some notes", string(data))

		calls := srv.CallsFor(http.MethodPut)
		require.NotEmpty(t, calls)
		last := srv.Calls()[len(srv.Calls())-1]
		assert.Equal(t, "100-continue", last.Header.Get("Expect"))
		assert.Equal(t, "3", last.Header.Get("X-Durability-Level"))
		assert.Equal(t, "application/json", last.Header.Get("Content-Type"))
	})

	t.Run("unsized reader", func(t *testing.T) {
		r := io.MultiReader(strings.NewReader("part one "), strings.NewReader("part two"))
		_, err := c.Put(context.Background(), "stream.bin", r, client.PutOptions{})
		require.NoError(t, err)

		data, ok := srv.Object("/mark/stor/stream.bin")
		require.True(t, ok)
		assert.Equal(t, "part one part two", string(data))
	})

	t.Run("unknown extension", func(t *testing.T) {
		_, err := c.Put(context.Background(), "blob", strings.NewReader("x"), client.PutOptions{Size: 1})
		require.NoError(t, err)

		last := srv.Calls()[len(srv.Calls())-1]
		assert.Equal(t, "application/octet-stream", last.Header.Get("Content-Type"))
	})

	t.Run("md5 rejected by service", func(t *testing.T) {
		_, err := c.Put(context.Background(), "bad.bin", strings.NewReader("abc"), client.PutOptions{MD5: contentMD5("xyz")})

		var remote *manta.RemoteError
		require.ErrorAs(t, err, &remote)
		assert.Equal(t, "ContentMD5MismatchError", remote.Name)
	})

	t.Run("missing parent", func(t *testing.T) {
		_, err := c.Put(context.Background(), "no/such/dir/file", strings.NewReader("abc"), client.PutOptions{})
		assert.ErrorIs(t, err, manta.ErrNotFound)
	})

	t.Run("empty path", func(t *testing.T) {
		_, err := c.Put(context.Background(), "", strings.NewReader("abc"), client.PutOptions{})
		assert.ErrorIs(t, err, client.ErrEmptyPath)
	})
}

func TestClient_LinkUnlink(t *testing.T) {
	srv := newServer(t)
	srv.AddObject("/mark/stor/original", []byte("payload"))
	c := newClient(t, srv)
	ctx := context.Background()

	require.NoError(t, c.Link(ctx, "original", "linked", client.RequestOptions{}))

	calls := srv.Calls()
	link := calls[len(calls)-1]
	assert.Equal(t, manta.MediaTypeLink, link.Header.Get("Content-Type"))
	assert.Equal(t, "/mark/stor/original", link.Header.Get("Location"))

	data, ok := srv.Object("/mark/stor/linked")
	require.True(t, ok)
	assert.Equal(t, "payload", string(data))

	require.NoError(t, c.Unlink(ctx, "original", client.RequestOptions{}))
	assert.False(t, srv.Exists("/mark/stor/original"))
	assert.True(t, srv.Exists("/mark/stor/linked"))

	err := c.Unlink(ctx, "original", client.RequestOptions{})
	assert.ErrorIs(t, err, manta.ErrNotFound)
}

func TestClient_Mkdir(t *testing.T) {
	srv := newServer(t)
	c := newClient(t, srv)
	ctx := context.Background()

	require.NoError(t, c.Mkdir(ctx, "photos", client.RequestOptions{}))
	require.NoError(t, c.Mkdir(ctx, "photos", client.RequestOptions{}), "mkdir is idempotent")
	assert.True(t, srv.Exists("/mark/stor/photos"))

	err := c.Mkdir(ctx, "a/b", client.RequestOptions{})
	assert.ErrorIs(t, err, manta.ErrNotFound, "parent must exist")
}
