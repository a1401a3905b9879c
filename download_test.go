package forensics_fetch

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newCountingServer(t *testing.T, body string) (*httptest.Server, *int32) {
	t.Helper()
	var requests int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&requests, 1)
		w.Write([]byte(body))
	}))
	t.Cleanup(server.Close)
	return server, &requests
}

func TestFetchDownloadsAtomically(t *testing.T) {
	assert := assert.New(t)
	server, _ := newCountingServer(t, "video-bytes")

	dest := filepath.Join(t.TempDir(), "c23", "videos", "000_003.mp4")
	downloaded, err := NewFetcherBuilder().Build().Fetch(context.Background(), server.URL, dest)
	require.NoError(t, err)
	assert.True(downloaded)

	content, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Equal("video-bytes", string(content))

	// No temp artifacts left behind on success.
	entries, err := os.ReadDir(filepath.Dir(dest))
	require.NoError(t, err)
	assert.Len(entries, 1)
}

func TestFetchSkipsExistingFile(t *testing.T) {
	assert := assert.New(t)
	server, requests := newCountingServer(t, "new-bytes")

	dest := filepath.Join(t.TempDir(), "000.mp4")
	require.NoError(t, os.WriteFile(dest, []byte("old-bytes"), 0644))

	downloaded, err := NewFetcherBuilder().Build().Fetch(context.Background(), server.URL, dest)
	require.NoError(t, err)
	assert.False(downloaded)
	assert.Equal(int32(0), atomic.LoadInt32(requests))

	content, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Equal("old-bytes", string(content))
}

func TestFetchTwiceMakesOneRequest(t *testing.T) {
	assert := assert.New(t)
	server, requests := newCountingServer(t, "bytes")

	dest := filepath.Join(t.TempDir(), "000.mp4")
	fetch := NewFetcherBuilder().Build()

	downloaded, err := fetch.Fetch(context.Background(), server.URL, dest)
	require.NoError(t, err)
	assert.True(downloaded)

	downloaded, err = fetch.Fetch(context.Background(), server.URL, dest)
	require.NoError(t, err)
	assert.False(downloaded)
	assert.Equal(int32(1), atomic.LoadInt32(requests))
}

func TestFetchFailureLeavesNoFile(t *testing.T) {
	assert := assert.New(t)
	// Announce more bytes than will ever arrive, then drop the connection
	// mid-body to simulate an interrupted transfer.
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, _, err := w.(http.Hijacker).Hijack()
		if err != nil {
			t.Errorf("hijack failed: %v", err)
			return
		}
		fmt.Fprint(conn, "HTTP/1.1 200 OK\r\nContent-Length: 1000\r\n\r\npartial")
		conn.Close()
	}))
	defer server.Close()

	dir := t.TempDir()
	dest := filepath.Join(dir, "000.mp4")
	downloaded, err := NewFetcherBuilder().Build().Fetch(context.Background(), server.URL, dest)
	assert.Error(err)
	assert.False(downloaded)

	_, statErr := os.Stat(dest)
	assert.True(os.IsNotExist(statErr))
}

func TestFetchErrorStatus(t *testing.T) {
	assert := assert.New(t)
	server := httptest.NewServer(http.NotFoundHandler())
	defer server.Close()

	dest := filepath.Join(t.TempDir(), "000.mp4")
	downloaded, err := NewFetcherBuilder().Build().Fetch(context.Background(), server.URL, dest)
	assert.Error(err)
	assert.False(downloaded)
	_, statErr := os.Stat(dest)
	assert.True(os.IsNotExist(statErr))
}

func TestFetchCancelledContext(t *testing.T) {
	assert := assert.New(t)
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Length", "1000")
		w.(http.Flusher).Flush()
		<-release
	}))
	defer server.Close()
	defer close(release)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	dest := filepath.Join(t.TempDir(), "000.mp4")
	_, err := NewFetcherBuilder().Build().Fetch(ctx, server.URL, dest)
	assert.Error(err)
	_, statErr := os.Stat(dest)
	assert.True(os.IsNotExist(statErr))
}

func TestFetchProgressCallback(t *testing.T) {
	assert := assert.New(t)
	server, _ := newCountingServer(t, "0123456789")

	var lastDownloaded, lastExpected int64
	fetch := NewFetcherBuilder().
		WithProgressCallback(func(downloaded int64, expected int64) {
			lastDownloaded = downloaded
			lastExpected = expected
		}).
		Build()

	dest := filepath.Join(t.TempDir(), "000.mp4")
	_, err := fetch.Fetch(context.Background(), server.URL, dest)
	require.NoError(t, err)
	assert.Equal(int64(10), lastDownloaded)
	assert.Equal(int64(10), lastExpected)
}

func TestInsecureClientAcceptsSelfSignedCert(t *testing.T) {
	assert := assert.New(t)
	server := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("tls-bytes"))
	}))
	defer server.Close()

	dest := filepath.Join(t.TempDir(), "000.mp4")
	downloaded, err := NewFetcherBuilder().Build().Fetch(context.Background(), server.URL, dest)
	require.NoError(t, err)
	assert.True(downloaded)
}

func TestFetcherBuilderClientOverride(t *testing.T) {
	assert := assert.New(t)
	dialed := false
	client := &http.Client{Transport: &http.Transport{
		DialContext: func(ctx context.Context, network, addr string) (net.Conn, error) {
			dialed = true
			return nil, fmt.Errorf("dial disabled")
		},
	}}

	dest := filepath.Join(t.TempDir(), "000.mp4")
	fetch := NewFetcherBuilder().WithHTTPClient(client).Build()
	_, err := fetch.Fetch(context.Background(), "http://example.invalid/000.mp4", dest)
	assert.Error(err)
	assert.True(dialed)
}
