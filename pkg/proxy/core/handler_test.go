package proxy

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codegene/devproxy/pkg/shared/logging"
)

// echo is what the test backend reports about the request it received
type echo struct {
	Method        string `json:"method"`
	Host          string `json:"host"`
	Path          string `json:"path"`
	Query         string `json:"query"`
	Body          string `json:"body"`
	ForwardedFor  string `json:"forwarded_for"`
	ForwardedHost string `json:"forwarded_host"`
	RealIP        string `json:"real_ip"`
	Custom        string `json:"custom"`
}

func newEchoBackend(t *testing.T) *httptest.Server {
	t.Helper()
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(echo{
			Method:        r.Method,
			Host:          r.Host,
			Path:          r.URL.Path,
			Query:         r.URL.RawQuery,
			Body:          string(body),
			ForwardedFor:  r.Header.Get("X-Forwarded-For"),
			ForwardedHost: r.Header.Get("X-Forwarded-Host"),
			RealIP:        r.Header.Get("X-Real-IP"),
			Custom:        r.Header.Get("X-Custom"),
		})
	}))
	t.Cleanup(backend.Close)
	return backend
}

func decodeEcho(t *testing.T, rec *httptest.ResponseRecorder) echo {
	t.Helper()
	var e echo
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &e), rec.Body.String())
	return e
}

func TestNewHandlerWithConfig(t *testing.T) {
	tests := []struct {
		name        string
		upstreamURL string
		wantErr     bool
	}{
		{name: "valid URL", upstreamURL: "http://localhost:8080"},
		{name: "valid URL with path", upstreamURL: "http://localhost:8080/api"},
		{name: "invalid URL", upstreamURL: "://invalid", wantErr: true},
		{name: "missing host", upstreamURL: "/relative", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler, err := NewHandlerWithConfig(UpstreamConfig{URL: tt.upstreamURL}, nil, logging.NewTestLogger())
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.upstreamURL, handler.Upstream().String())
		})
	}
}

func TestHandler_ChangeOrigin(t *testing.T) {
	backend := newEchoBackend(t)
	backendURL, err := url.Parse(backend.URL)
	require.NoError(t, err)

	tests := []struct {
		name         string
		changeOrigin bool
		wantHost     string
	}{
		{name: "host rewritten to target", changeOrigin: true, wantHost: backendURL.Host},
		{name: "host preserved", changeOrigin: false, wantHost: "localhost:3000"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, err := NewHandlerWithConfig(UpstreamConfig{URL: backend.URL, ChangeOrigin: tt.changeOrigin}, nil, logging.NewTestLogger())
			require.NoError(t, err)

			req := httptest.NewRequest(http.MethodGet, "http://localhost:3000/api/users", nil)
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			require.Equal(t, http.StatusOK, rec.Code)
			got := decodeEcho(t, rec)
			assert.Equal(t, tt.wantHost, got.Host)
			assert.Equal(t, "localhost:3000", got.ForwardedHost)
		})
	}
}

func TestHandler_PreservesRequest(t *testing.T) {
	backend := newEchoBackend(t)
	h, err := NewHandlerWithConfig(UpstreamConfig{URL: backend.URL, ChangeOrigin: true}, nil, logging.NewTestLogger())
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "http://localhost:3000/files/upload?name=a%20b&x=1", strings.NewReader(`{"k":"v"}`))
	req.Header.Set("X-Custom", "kept")
	req.Header.Set("X-Forwarded-For", "10.0.0.1")
	req.RemoteAddr = "192.0.2.7:51234"
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	got := decodeEcho(t, rec)
	assert.Equal(t, http.MethodPost, got.Method)
	assert.Equal(t, "/files/upload", got.Path)
	assert.Equal(t, "name=a%20b&x=1", got.Query)
	assert.Equal(t, `{"k":"v"}`, got.Body)
	assert.Equal(t, "kept", got.Custom)
	assert.Equal(t, "10.0.0.1, 192.0.2.7", got.ForwardedFor)
	assert.Equal(t, "192.0.2.7", got.RealIP)
}

func TestHandler_ResponsePassthrough(t *testing.T) {
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Backend", "sso")
		w.WriteHeader(http.StatusTeapot)
		_, _ = w.Write(bytes.Repeat([]byte("x"), 100*1024))
	}))
	defer backend.Close()

	h, err := NewHandlerWithConfig(UpstreamConfig{URL: backend.URL}, nil, logging.NewTestLogger())
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/swagger/index.html", nil))

	assert.Equal(t, http.StatusTeapot, rec.Code)
	assert.Equal(t, "sso", rec.Header().Get("X-Backend"))
	assert.Equal(t, 100*1024, rec.Body.Len())
}

func TestHandler_UnreachableTarget(t *testing.T) {
	backend := httptest.NewServer(http.NotFoundHandler())
	target := backend.URL
	backend.Close()

	h, err := NewHandlerWithConfig(UpstreamConfig{URL: target, ChangeOrigin: true}, nil, logging.NewTestLogger())
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/users", nil))

	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Contains(t, rec.Body.String(), "devproxy: Bad Gateway")
}

func TestHandler_Timeout(t *testing.T) {
	release := make(chan struct{})
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer backend.Close()
	defer close(release)

	h, err := NewHandlerWithConfig(UpstreamConfig{URL: backend.URL}, NewTransport(50*time.Millisecond), logging.NewTestLogger())
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/slow", nil))

	assert.Equal(t, http.StatusGatewayTimeout, rec.Code)
}

func TestBufferPool(t *testing.T) {
	bp := newBufferPool()

	b := bp.Get()
	assert.Len(t, b, bufferSize)
	bp.Put(b[:10])

	// foreign sizes are dropped, not pooled
	bp.Put(make([]byte, 16))
	assert.Len(t, bp.Get(), bufferSize)
}
