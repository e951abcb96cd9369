package proxy

import (
	"bufio"
	"context"
	"fmt"
	"net"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/codegene/devproxy/pkg/proxy/rules"
	"github.com/codegene/devproxy/pkg/shared/logging"
)

// Exchange describes one request handled by the Router.
type Exchange struct {
	Method   string
	Path     string
	Rule     string // rule key, empty when unmatched
	Target   string // target origin, empty when unmatched
	Status   int
	Duration time.Duration
	Err      error // transport error, if any
	Matched  bool
}

// Observer receives every completed exchange.
type Observer interface {
	Observe(ctx context.Context, ex Exchange)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(ctx context.Context, ex Exchange)

func (f ObserverFunc) Observe(ctx context.Context, ex Exchange) { f(ctx, ex) }

// RouterConfig configures a Router.
type RouterConfig struct {
	// Transport is shared by every rule. Nil uses NewTransport(Timeout).
	Transport http.RoundTripper

	// Timeout bounds the wait for backend response headers.
	Timeout time.Duration

	// Fallback serves requests no rule matches. Nil answers 404.
	Fallback http.Handler

	Observers []Observer
}

type routerState struct {
	table    *rules.Table
	handlers []*Handler // indexed by rules.Match.Index
}

// Router dispatches requests to the handler of the matching rule.
// The rule table is replaced as a whole by Swap; in-flight requests
// finish on the table they started with.
type Router struct {
	state     atomic.Pointer[routerState]
	transport http.RoundTripper
	fallback  http.Handler
	observers []Observer
	logger    logging.Logger
}

// NewRouter creates a Router serving table.
func NewRouter(table *rules.Table, cfg RouterConfig, logger logging.Logger) (*Router, error) {
	if logger == nil {
		logger = logging.NewSimpleLogger("proxy", logging.LevelInfo, true)
	}

	transport := cfg.Transport
	if transport == nil {
		timeout := cfg.Timeout
		if timeout == 0 {
			timeout = DefaultTimeout
		}
		transport = NewTransport(timeout)
	}

	r := &Router{
		transport: transport,
		fallback:  cfg.Fallback,
		observers: append([]Observer(nil), cfg.Observers...),
		logger:    logger,
	}
	if err := r.Swap(table); err != nil {
		return nil, err
	}
	return r, nil
}

// Swap atomically replaces the rule table. On error the current table stays.
func (r *Router) Swap(table *rules.Table) error {
	if table == nil {
		return fmt.Errorf("rule table is nil")
	}

	// rules sharing a target and change_origin share one handler
	ruleList := table.Rules()
	handlers := make([]*Handler, len(ruleList))
	byUpstream := make(map[UpstreamConfig]*Handler)
	for i, rule := range ruleList {
		upstream := UpstreamConfig{URL: rule.Target, ChangeOrigin: rule.ChangeOrigin}
		if h, ok := byUpstream[upstream]; ok {
			handlers[i] = h
			continue
		}
		h, err := NewHandlerWithConfig(upstream, r.transport, r.logger)
		if err != nil {
			return fmt.Errorf("rule[%d]: %w", i, err)
		}
		byUpstream[upstream] = h
		handlers[i] = h
	}

	r.state.Store(&routerState{table: table, handlers: handlers})
	return nil
}

// Table returns the active rule table.
func (r *Router) Table() *rules.Table {
	return r.state.Load().table
}

// ServeHTTP implements http.Handler
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	st := r.state.Load()
	start := time.Now()
	rec := newStatusRecorder(w)

	m, ok := st.table.Match(req.URL.Path)
	if !ok {
		if r.fallback != nil {
			r.fallback.ServeHTTP(rec, req)
		} else {
			http.Error(rec, "devproxy: no proxy rule matches "+req.URL.Path, http.StatusNotFound)
		}
		r.observe(req, Exchange{
			Method:   req.Method,
			Path:     req.URL.Path,
			Status:   rec.Status(),
			Duration: time.Since(start),
		})
		return
	}

	slot := &errorSlot{}
	ctx := context.WithValue(req.Context(), errorSlotKey{}, slot)
	st.handlers[m.Index].ServeHTTP(rec, req.WithContext(ctx))

	r.logger.Debug("Forwarded request",
		"method", req.Method,
		"path", req.URL.Path,
		"rule", m.Rule.Key(),
		"target", m.Target.String(),
		"status", rec.Status())

	r.observe(req, Exchange{
		Method:   req.Method,
		Path:     req.URL.Path,
		Rule:     m.Rule.Key(),
		Target:   m.Target.String(),
		Status:   rec.Status(),
		Duration: time.Since(start),
		Err:      slot.err,
		Matched:  true,
	})
}

func (r *Router) observe(req *http.Request, ex Exchange) {
	if len(r.observers) == 0 {
		return
	}
	ctx := context.WithoutCancel(req.Context())
	for _, o := range r.observers {
		o.Observe(ctx, ex)
	}
}

type errorSlotKey struct{}

type errorSlot struct {
	err error
}

func recordError(ctx context.Context, err error) {
	if slot, ok := ctx.Value(errorSlotKey{}).(*errorSlot); ok {
		slot.err = err
	}
}

// statusRecorder captures the response status code
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func newStatusRecorder(w http.ResponseWriter) *statusRecorder {
	return &statusRecorder{ResponseWriter: w}
}

func (r *statusRecorder) WriteHeader(code int) {
	// informational responses other than 101 are not final
	if r.status == 0 && (code >= 200 || code == http.StatusSwitchingProtocols) {
		r.status = code
	}
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Write(b []byte) (int, error) {
	if r.status == 0 {
		r.status = http.StatusOK
	}
	return r.ResponseWriter.Write(b)
}

// Status returns the recorded status, 200 if nothing was written.
func (r *statusRecorder) Status() int {
	if r.status == 0 {
		return http.StatusOK
	}
	return r.status
}

// Flush implements http.Flusher
func (r *statusRecorder) Flush() {
	if f, ok := r.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// Hijack implements http.Hijacker. httputil.ReverseProxy hijacks only to
// complete a protocol upgrade and writes the 101 on the raw connection, so a
// successful hijack records 101.
func (r *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	conn, brw, err := http.NewResponseController(r.ResponseWriter).Hijack()
	if err == nil && r.status == 0 {
		r.status = http.StatusSwitchingProtocols
	}
	return conn, brw, err
}

// Unwrap lets http.ResponseController reach the underlying writer.
func (r *statusRecorder) Unwrap() http.ResponseWriter {
	return r.ResponseWriter
}
