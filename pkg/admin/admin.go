// Package admin serves the introspection endpoints mounted under the admin prefix.
package admin

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"

	"github.com/codegene/devproxy/pkg/journal"
	"github.com/codegene/devproxy/pkg/proxy/rules"
	"github.com/codegene/devproxy/pkg/shared/logging"
	"github.com/codegene/devproxy/pkg/theme"
)

const (
	// RequestLimit is the number of admin requests allowed per IP per WindowSize
	RequestLimit = 100
	WindowSize   = time.Minute

	defaultRecentLimit = 50
)

// RecentReader is the part of journal.Journal the admin surface reads
type RecentReader interface {
	Recent(ctx context.Context, n int) ([]journal.Entry, error)
}

// Sources supplies the live state shown by the endpoints.
// The funcs are called per request so reloads show up immediately.
type Sources struct {
	Preset  func() string
	Table   func() *rules.Table
	Theme   func() theme.Overrides
	Journal RecentReader // nil when the journal is disabled
	Metrics http.Handler // nil when metrics are disabled
}

type handler struct {
	src    Sources
	logger logging.Logger
}

// NewHandler builds the admin router
func NewHandler(src Sources, logger logging.Logger) http.Handler {
	if logger == nil {
		logger = logging.NewSimpleLogger("admin", logging.LevelInfo, true)
	}
	h := &handler{src: src, logger: logger}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(httprate.Limit(
		RequestLimit,
		WindowSize,
		httprate.WithKeyFuncs(httprate.KeyByIP),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Retry-After", strconv.Itoa(int(WindowSize.Seconds())))
			writeError(w, http.StatusTooManyRequests, "rate_limit_exceeded", "Too many requests. Please try again later.")
		}),
	))

	r.Get("/health", h.health)
	r.Get("/routes", h.routes)
	r.Get("/match", h.match)
	r.Get("/requests", h.requests)
	r.Get("/theme", h.theme)
	r.Get("/theme.less", h.themeLess)
	r.Get("/metrics", h.metrics)

	return r
}

type healthResponse struct {
	Status string `json:"status"`
	Preset string `json:"preset"`
	Rules  int    `json:"rules"`
}

func (h *handler) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, healthResponse{
		Status: "ok",
		Preset: h.src.Preset(),
		Rules:  h.src.Table().Len(),
	})
}

func (h *handler) routes(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.src.Table().Rules())
}

type matchResponse struct {
	Path    string      `json:"path"`
	Proxied bool        `json:"proxied"`
	Rule    *rules.Rule `json:"rule,omitempty"`
}

func (h *handler) match(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Query().Get("path")
	if path == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "query parameter 'path' is required")
		return
	}

	resp := matchResponse{Path: path}
	if m, ok := h.src.Table().Match(path); ok {
		resp.Proxied = true
		resp.Rule = &m.Rule
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *handler) requests(w http.ResponseWriter, r *http.Request) {
	if h.src.Journal == nil {
		writeError(w, http.StatusNotFound, "journal_disabled", "the request journal is disabled")
		return
	}

	limit := defaultRecentLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "invalid_request", fmt.Sprintf("invalid limit %q", raw))
			return
		}
		limit = n
	}

	entries, err := h.src.Journal.Recent(r.Context(), limit)
	if err != nil {
		h.logger.Error("Failed to read journal", "error", err)
		writeError(w, http.StatusInternalServerError, "journal_error", "failed to read the request journal")
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

func (h *handler) theme(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.src.Theme())
}

func (h *handler) themeLess(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/less; charset=utf-8")
	_, _ = w.Write([]byte(h.src.Theme().Preamble()))
}

func (h *handler) metrics(w http.ResponseWriter, r *http.Request) {
	if h.src.Metrics == nil {
		writeError(w, http.StatusNotFound, "metrics_disabled", "metrics are disabled")
		return
	}
	h.src.Metrics.ServeHTTP(w, r)
}

type errorResponse struct {
	Error  string `json:"error"`
	Detail string `json:"detail"`
}

func writeError(w http.ResponseWriter, status int, code, detail string) {
	writeJSON(w, status, errorResponse{Error: code, Detail: detail})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(v)
}
