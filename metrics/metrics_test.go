package metrics_test

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sagarc03/manta/metrics"
)

func TestMetrics_Requests(t *testing.T) {
	m := metrics.New()

	done := m.StartRequest("get")
	done(http.StatusOK)
	m.StartRequest("get")(http.StatusNotFound)
	m.StartRequest("put")(0)

	expected := `
# HELP manta_client_requests_total Total number of requests issued, partitioned by operation and status code.
# TYPE manta_client_requests_total counter
manta_client_requests_total{code="200",op="get"} 1
manta_client_requests_total{code="404",op="get"} 1
manta_client_requests_total{code="error",op="put"} 1
`
	require.NoError(t, testutil.GatherAndCompare(m.Registry(), strings.NewReader(expected), "manta_client_requests_total"))

	inflight, err := testutil.GatherAndCount(m.Registry(), "manta_client_inflight_requests")
	require.NoError(t, err)
	assert.Equal(t, 1, inflight)
}

func TestMetrics_Streams(t *testing.T) {
	m := metrics.New()

	m.AddBytes(metrics.Download, 10)
	m.AddBytes(metrics.Download, 5)
	m.AddBytes(metrics.Upload, 0)
	m.ChecksumMismatch()
	m.StreamFailure(metrics.FailureTrailer)
	m.Deleted()
	m.Deleted()

	expected := `
# HELP manta_stream_bytes_total Object body bytes transferred, partitioned by direction.
# TYPE manta_stream_bytes_total counter
manta_stream_bytes_total{direction="download"} 15
# HELP manta_stream_checksum_mismatches_total Object bodies whose content-md5 did not match the bytes received.
# TYPE manta_stream_checksum_mismatches_total counter
manta_stream_checksum_mismatches_total 1
# HELP manta_stream_failures_total Event streams that terminated with an error, partitioned by kind.
# TYPE manta_stream_failures_total counter
manta_stream_failures_total{kind="trailer"} 1
# HELP manta_tree_deleted_entries_total Objects and directories removed by recursive deletes.
# TYPE manta_tree_deleted_entries_total counter
manta_tree_deleted_entries_total 2
`
	require.NoError(t, testutil.GatherAndCompare(m.Registry(), strings.NewReader(expected),
		"manta_stream_bytes_total",
		"manta_stream_checksum_mismatches_total",
		"manta_stream_failures_total",
		"manta_tree_deleted_entries_total",
	))
}

func TestMetrics_NilSafe(t *testing.T) {
	var m *metrics.Metrics

	assert.NotPanics(t, func() {
		m.StartRequest("get")(http.StatusOK)
		m.AddBytes(metrics.Upload, 1)
		m.ChecksumMismatch()
		m.StreamFailure(metrics.FailureDecode)
		m.Deleted()
	})
	assert.Nil(t, m.Registry())
}

func TestMetrics_Handler(t *testing.T) {
	m := metrics.New()
	m.Deleted()

	srv := httptest.NewServer(m.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "manta_tree_deleted_entries_total 1")
}
