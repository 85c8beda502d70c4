package blob

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeDAV is a minimal blob server honoring If-None-Match: *.
type fakeDAV struct {
	mu    sync.Mutex
	blobs map[string][]byte
	token string
}

func (f *fakeDAV) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Header.Get("Authorization") != "Bearer "+f.token {
		w.WriteHeader(http.StatusUnauthorized)
		return
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	switch r.Method {
	case http.MethodGet:
		data, ok := f.blobs[r.URL.Path]
		if !ok {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write(data)
	case http.MethodPut:
		if _, ok := f.blobs[r.URL.Path]; ok && r.Header.Get("If-None-Match") == "*" {
			w.WriteHeader(http.StatusPreconditionFailed)
			return
		}
		data, _ := io.ReadAll(r.Body)
		f.blobs[r.URL.Path] = data
		w.WriteHeader(http.StatusCreated)
	case http.MethodDelete:
		if _, ok := f.blobs[r.URL.Path]; !ok {
			http.NotFound(w, r)
			return
		}
		delete(f.blobs, r.URL.Path)
		w.WriteHeader(http.StatusNoContent)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func TestHTTPBackend_Contract(t *testing.T) {
	srv := httptest.NewServer(&fakeDAV{blobs: map[string][]byte{}, token: "opaque-token"})
	defer srv.Close()

	b, err := NewHTTPBackend(HTTPConfig{BaseURL: srv.URL + "/dav/", Token: "opaque-token"})
	require.NoError(t, err)
	contract(t, b)
}

func TestHTTPBackend_PathLayoutAndUserAgent(t *testing.T) {
	var gotPath, gotUA string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath, gotUA = r.URL.Path, r.UserAgent()
		_, _ = w.Write([]byte("ok"))
	}))
	defer srv.Close()

	b, err := NewHTTPBackend(HTTPConfig{BaseURL: srv.URL + "/dav", Token: "t"})
	require.NoError(t, err)
	_, err = b.Download(context.Background(), "/Cloud/index.jsonl")
	require.NoError(t, err)
	assert.Equal(t, "/dav/Cloud/index.jsonl", gotPath)
	assert.True(t, strings.HasPrefix(gotUA, "scrapbee/"))
}

func TestHTTPBackend_StatusMapping(t *testing.T) {
	status := http.StatusOK
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(status)
		_, _ = w.Write([]byte("upstream says no"))
	}))
	defer srv.Close()

	b, err := NewHTTPBackend(HTTPConfig{BaseURL: srv.URL, Token: "t"})
	require.NoError(t, err)
	ctx := context.Background()

	status = http.StatusForbidden
	_, err = b.Download(ctx, "a")
	assert.True(t, IsNotAuthorized(err))

	status = http.StatusBadGateway
	_, err = b.Download(ctx, "a")
	assert.True(t, IsTransient(err))
	assert.Contains(t, err.Error(), "upstream says no")

	status = http.StatusNotFound
	assert.NoError(t, b.Delete(ctx, "a"))
}

func TestHTTPBackend_ExpiredJWTNeverLeavesProcess(t *testing.T) {
	hits := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
	}))
	defer srv.Close()

	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "user",
		"exp": time.Now().Add(-time.Hour).Unix(),
	}).SignedString([]byte("secret"))
	require.NoError(t, err)

	b, err := NewHTTPBackend(HTTPConfig{BaseURL: srv.URL, Token: tok})
	require.NoError(t, err)

	_, err = b.Download(context.Background(), "Cloud/index.jsonl")
	assert.True(t, IsNotAuthorized(err))
	assert.Equal(t, 0, hits)
}

func TestHTTPBackend_MissingToken(t *testing.T) {
	b, err := NewHTTPBackend(HTTPConfig{BaseURL: "http://127.0.0.1:1"})
	require.NoError(t, err)
	err = b.Upload(context.Background(), "a", nil, true)
	assert.True(t, IsNotAuthorized(err))

	_, err = NewHTTPBackend(HTTPConfig{})
	assert.Error(t, err)
}

func TestHTTPBackend_ConnectionRefusedIsTransient(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	b, err := NewHTTPBackend(HTTPConfig{BaseURL: url, Token: "t", Timeout: time.Second})
	require.NoError(t, err)
	_, err = b.Download(context.Background(), "a")
	assert.True(t, IsTransient(err))
}
