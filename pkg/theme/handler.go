package theme

import (
	"errors"
	"io"
	"io/fs"
	"net/http"
	"path"
	"strings"

	"github.com/codegene/devproxy/pkg/shared/logging"
)

// AssetHandler serves a static directory with theme overrides applied.
//
//   - "*.less" files are served with the overrides appended.
//   - "*.css" requests with no file on disk are compiled from the sibling
//     ".less" file.
//   - everything else goes to http.FileServer.
type AssetHandler struct {
	root      http.FileSystem
	overrides func() Overrides
	files     http.Handler
	logger    logging.Logger
}

// NewAssetHandler creates an AssetHandler. overrides is called per request
// so a reloaded theme takes effect immediately.
func NewAssetHandler(root http.FileSystem, overrides func() Overrides, logger logging.Logger) *AssetHandler {
	if logger == nil {
		logger = logging.NewSimpleLogger("theme", logging.LevelInfo, true)
	}
	return &AssetHandler{
		root:      root,
		overrides: overrides,
		files:     http.FileServer(root),
		logger:    logger,
	}
}

// ServeHTTP implements http.Handler
func (h *AssetHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		h.files.ServeHTTP(w, r)
		return
	}

	name := path.Clean("/" + r.URL.Path)
	switch path.Ext(name) {
	case ".less":
		h.serveLess(w, r, name)
	case ".css":
		if h.exists(name) {
			h.files.ServeHTTP(w, r)
			return
		}
		h.serveCompiled(w, r, strings.TrimSuffix(name, ".css")+".less")
	default:
		h.files.ServeHTTP(w, r)
	}
}

func (h *AssetHandler) serveLess(w http.ResponseWriter, r *http.Request, name string) {
	src, err := h.read(name)
	if err != nil {
		h.notFoundOrError(w, r, err)
		return
	}

	out, err := h.overrides().Apply(src)
	if err != nil {
		h.logger.Warn("Failed to apply theme overrides", "path", name, "error", err)
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/less; charset=utf-8")
	_, _ = io.WriteString(w, out)
}

func (h *AssetHandler) serveCompiled(w http.ResponseWriter, r *http.Request, lessName string) {
	src, err := h.read(lessName)
	if err != nil {
		h.notFoundOrError(w, r, err)
		return
	}

	out, err := h.overrides().Compile(src)
	if err != nil {
		h.logger.Warn("Failed to compile style sheet", "path", lessName, "error", err)
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/css; charset=utf-8")
	_, _ = io.WriteString(w, out)
}

func (h *AssetHandler) exists(name string) bool {
	f, err := h.root.Open(name)
	if err != nil {
		return false
	}
	_ = f.Close()
	return true
}

func (h *AssetHandler) read(name string) (string, error) {
	f, err := h.root.Open(name)
	if err != nil {
		return "", err
	}
	defer func() { _ = f.Close() }()

	data, err := io.ReadAll(f)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func (h *AssetHandler) notFoundOrError(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, fs.ErrNotExist) {
		http.NotFound(w, r)
		return
	}
	h.logger.Error("Failed to read style sheet", "path", r.URL.Path, "error", err)
	http.Error(w, "failed to read style sheet", http.StatusInternalServerError)
}
