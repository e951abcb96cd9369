package proxy

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/http/httputil"
	"net/url"
	"sync"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/codegene/devproxy/pkg/shared/logging"
)

// statusClientClosedRequest is recorded when the client goes away before
// the backend answers. Nothing reaches the client in that case.
const statusClientClosedRequest = 499

// Handler forwards requests to one backend origin
type Handler struct {
	upstream     *url.URL
	changeOrigin bool
	proxy        *httputil.ReverseProxy
	logger       logging.Logger
}

// NewHandlerWithConfig creates a new proxy handler with upstream configuration.
// A nil transport uses NewTransport(DefaultTimeout).
func NewHandlerWithConfig(upstreamConfig UpstreamConfig, transport http.RoundTripper, logger logging.Logger) (*Handler, error) {
	upstream, err := url.Parse(upstreamConfig.URL)
	if err != nil {
		return nil, fmt.Errorf("invalid upstream URL: %w", err)
	}
	if upstream.Scheme == "" || upstream.Host == "" {
		return nil, fmt.Errorf("invalid upstream URL %q: scheme and host are required", upstreamConfig.URL)
	}

	if transport == nil {
		transport = NewTransport(DefaultTimeout)
	}
	if logger == nil {
		logger = logging.NewSimpleLogger("proxy", logging.LevelInfo, true)
	}

	h := &Handler{
		upstream:     upstream,
		changeOrigin: upstreamConfig.ChangeOrigin,
		logger:       logger,
	}
	h.proxy = h.createReverseProxy(transport)
	return h, nil
}

// NewTransport returns the outbound transport shared by all handlers.
// timeout bounds the wait for response headers; zero disables it.
func NewTransport(timeout time.Duration) http.RoundTripper {
	base := http.DefaultTransport.(*http.Transport).Clone()
	base.ResponseHeaderTimeout = timeout
	return otelhttp.NewTransport(base)
}

// createReverseProxy creates a reverse proxy with WebSocket, SSE, and streaming support
func (h *Handler) createReverseProxy(transport http.RoundTripper) *httputil.ReverseProxy {
	target := h.upstream

	proxy := &httputil.ReverseProxy{
		Rewrite: func(pr *httputil.ProxyRequest) {
			// SetURL joins the target path and clears Out.Host, so the
			// outbound Host header becomes the target host.
			pr.SetURL(target)
			if !h.changeOrigin {
				pr.Out.Host = pr.In.Host
			}

			// Keep the incoming chain; SetXForwarded appends the client IP.
			pr.Out.Header["X-Forwarded-For"] = pr.In.Header["X-Forwarded-For"]
			pr.SetXForwarded()

			if pr.Out.Header.Get("X-Real-IP") == "" {
				if clientIP, _, err := net.SplitHostPort(pr.In.RemoteAddr); err == nil {
					pr.Out.Header.Set("X-Real-IP", clientIP)
				}
			}
		},
		Transport:    transport,
		ErrorHandler: h.handleError,
	}

	// Flush while copying so Server-Sent Events and other streamed
	// responses reach the browser without buffering.
	proxy.FlushInterval = 100 * time.Millisecond

	proxy.BufferPool = newBufferPool()

	return proxy
}

// handleError maps transport failures onto gateway responses
func (h *Handler) handleError(w http.ResponseWriter, r *http.Request, err error) {
	recordError(r.Context(), err)

	if errors.Is(err, context.Canceled) && r.Context().Err() != nil {
		h.logger.Debug("Client canceled request", "path", r.URL.Path, "target", h.upstream.String())
		w.WriteHeader(statusClientClosedRequest)
		return
	}

	status := http.StatusBadGateway
	if isTimeout(err) {
		status = http.StatusGatewayTimeout
	}

	h.logger.Warn("Upstream request failed",
		"method", r.Method,
		"path", r.URL.Path,
		"target", h.upstream.String(),
		"status", status,
		"error", err)

	http.Error(w, fmt.Sprintf("devproxy: %s: %s", http.StatusText(status), h.upstream.Host), status)
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}

// bufferPool implements httputil.BufferPool for memory-efficient copying
type bufferPool struct {
	pool *sync.Pool
}

const bufferSize = 32 * 1024

func newBufferPool() *bufferPool {
	return &bufferPool{
		pool: &sync.Pool{
			New: func() interface{} {
				b := make([]byte, bufferSize)
				return &b
			},
		},
	}
}

func (bp *bufferPool) Get() []byte {
	bufPtr := bp.pool.Get().(*[]byte)
	return *bufPtr
}

func (bp *bufferPool) Put(b []byte) {
	// Only pool buffers of expected size to prevent memory bloat
	if cap(b) != bufferSize {
		return
	}
	b = b[:cap(b)]
	bp.pool.Put(&b)
}

// Upstream returns the target origin.
func (h *Handler) Upstream() *url.URL {
	u := *h.upstream
	return &u
}

// ServeHTTP handles the proxy request
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.proxy.ServeHTTP(w, r)
}
