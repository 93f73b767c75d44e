package fetcher

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig() Config {
	return Config{
		UserAgent:      "Mozilla/5.0",
		MaxRetries:     2,
		InitialBackoff: time.Millisecond,
		MaxBackoff:     5 * time.Millisecond,
		MaxBodyBytes:   1024,
	}
}

func TestHTTPFetcher_Get_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Mozilla/5.0", r.Header.Get("User-Agent"))
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte("<html>ok</html>"))
	}))
	defer server.Close()

	resp, err := New(nil, testConfig()).Get(context.Background(), server.URL, time.Second)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "<html>ok</html>", string(resp.Body))
	assert.Equal(t, "text/html", resp.ContentType)
}

func TestHTTPFetcher_Get_RetriesOn429ThenSucceeds(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		_, _ = w.Write([]byte("ok"))
	}))
	defer server.Close()

	resp, err := New(nil, testConfig()).Get(context.Background(), server.URL, time.Second)
	require.NoError(t, err)
	assert.Equal(t, "ok", string(resp.Body))
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestHTTPFetcher_Get_5xxExhaustsRetries(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	_, err := New(nil, testConfig()).Get(context.Background(), server.URL, time.Second)
	require.Error(t, err)
	assert.True(t, IsTransient(err), "expected transient error, got %v", err)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls), "one attempt plus two retries")

	var te *TransientError
	require.ErrorAs(t, err, &te)
	var se *StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, http.StatusBadGateway, se.StatusCode)
}

func TestHTTPFetcher_Get_404IsNotRetried(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		http.NotFound(w, r)
	}))
	defer server.Close()

	_, err := New(nil, testConfig()).Get(context.Background(), server.URL, time.Second)
	require.Error(t, err)
	assert.True(t, IsNotFound(err))
	assert.False(t, IsTransient(err))
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestHTTPFetcher_Get_Timeout(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer server.Close()
	defer close(release)

	cfg := testConfig()
	cfg.MaxRetries = 0
	_, err := New(nil, cfg).Get(context.Background(), server.URL, 20*time.Millisecond)
	require.Error(t, err)
	assert.True(t, IsTransient(err))
}

func TestHTTPFetcher_Get_NetworkError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	cfg := testConfig()
	cfg.MaxRetries = 1
	_, err := New(nil, cfg).Get(context.Background(), url, time.Second)
	require.Error(t, err)
	assert.True(t, IsTransient(err))
	assert.False(t, IsNotFound(err))
}

func TestHTTPFetcher_Get_BodyTooLarge(t *testing.T) {
	tests := []struct {
		name          string
		contentLength bool
	}{
		{"advertised length", true},
		{"chunked body", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			payload := strings.Repeat("x", 2048)
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if tt.contentLength {
					w.Header().Set("Content-Length", "2048")
				} else {
					w.(http.Flusher).Flush()
				}
				_, _ = w.Write([]byte(payload))
			}))
			defer server.Close()

			_, err := New(nil, testConfig()).Get(context.Background(), server.URL, time.Second)
			var tooLarge *BodyTooLargeError
			require.ErrorAs(t, err, &tooLarge)
			assert.Equal(t, int64(1024), tooLarge.Limit)
			assert.False(t, IsTransient(err))
		})
	}
}

func TestHTTPFetcher_Head(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodHead, r.Method)
		switch r.URL.Path {
		case "/ok.pdf":
			w.WriteHeader(http.StatusOK)
		case "/moved.pdf":
			http.Redirect(w, r, "/ok.pdf", http.StatusFound)
		default:
			http.NotFound(w, r)
		}
	}))
	defer server.Close()

	f := New(nil, testConfig())
	tests := []struct {
		path string
		want int
	}{
		{"/ok.pdf", http.StatusOK},
		{"/moved.pdf", http.StatusOK},
		{"/missing.pdf", http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			code, err := f.Head(context.Background(), server.URL+tt.path, time.Second)
			require.NoError(t, err)
			assert.Equal(t, tt.want, code)
		})
	}
}

func TestHTTPFetcher_Head_RetriesServerErrorsThenReportsStatus(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	code, err := New(nil, testConfig()).Head(context.Background(), server.URL, time.Second)
	require.NoError(t, err)
	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestHTTPFetcher_Head_NetworkError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	cfg := testConfig()
	cfg.MaxRetries = 0
	_, err := New(nil, cfg).Head(context.Background(), url, time.Second)
	require.Error(t, err)
	assert.True(t, IsTransient(err))
}

func TestHTTPFetcher_Get_CancelledContextStopsRetrying(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	cfg := testConfig()
	cfg.MaxRetries = 10
	cfg.InitialBackoff = time.Hour
	cfg.MaxBackoff = time.Hour

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := New(nil, cfg).Get(ctx, server.URL, time.Second)
	require.Error(t, err)
	assert.True(t, IsTransient(err))
	assert.Less(t, time.Since(start), 5*time.Second)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}
