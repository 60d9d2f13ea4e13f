// Package http serves a safearchive.Archive over net/http.
package http

import (
	"io"
	"log/slog"
	"mime"
	nethttp "net/http"
	"path"
	"strconv"
	"strings"

	"github.com/meigma/safearchive"
)

// Resolver decides request outcomes. *safearchive.Archive satisfies it.
type Resolver interface {
	Resolve(requestPath string) (safearchive.Result, error)
	URLName() string
}

// Handler answers GET and HEAD requests below a mount prefix.
//
// The path after the prefix is handed to the Resolver. Redirects go to the
// index document below the prefix, refusals are plain 404 and 403 responses
// that carry no detail about the cause, and served files are streamed with
// Last-Modified, Content-Length and a Content-Disposition name hint.
type Handler struct {
	archive Resolver
	prefix  string
	logger  *slog.Logger
}

// Option configures a Handler.
type Option func(*Handler)

// WithPrefix sets the URL path prefix the archive is mounted under.
// It defaults to "/" + URLName().
func WithPrefix(prefix string) Option {
	return func(h *Handler) {
		h.prefix = "/" + strings.Trim(prefix, "/")
	}
}

// WithLogger sets the logger for internal errors and request tracing.
func WithLogger(logger *slog.Logger) Option {
	return func(h *Handler) {
		if logger != nil {
			h.logger = logger
		}
	}
}

// NewHandler creates a Handler for archive.
func NewHandler(archive Resolver, opts ...Option) *Handler {
	h := &Handler{
		archive: archive,
		prefix:  "/" + strings.Trim(archive.URLName(), "/"),
		logger:  slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Prefix returns the mount prefix without a trailing slash.
func (h *Handler) Prefix() string {
	return h.prefix
}

// Mount registers h on mux for the prefix and everything below it.
func (h *Handler) Mount(mux *nethttp.ServeMux) {
	if h.prefix == "/" {
		mux.Handle("/", h)
		return
	}
	mux.Handle(h.prefix+"/", h)
}

// ServeHTTP implements net/http.Handler.
func (h *Handler) ServeHTTP(w nethttp.ResponseWriter, r *nethttp.Request) {
	if r.Method != nethttp.MethodGet && r.Method != nethttp.MethodHead {
		w.Header().Set("Allow", "GET, HEAD")
		nethttp.Error(w, nethttp.StatusText(nethttp.StatusMethodNotAllowed), nethttp.StatusMethodNotAllowed)
		return
	}

	rest, ok := h.restOfPath(r.URL.Path)
	if !ok {
		nethttp.NotFound(w, r)
		return
	}

	res, err := h.archive.Resolve(rest)
	if err != nil {
		h.logger.Error("resolve failed",
			slog.String("archive", h.archive.URLName()),
			slog.String("path", rest),
			slog.Any("error", err))
		nethttp.Error(w, nethttp.StatusText(nethttp.StatusInternalServerError), nethttp.StatusInternalServerError)
		return
	}

	switch res.Outcome {
	case safearchive.OutcomeRedirect:
		nethttp.Redirect(w, r, path.Join(h.prefix, res.Location), nethttp.StatusFound)
	case safearchive.OutcomeServe:
		defer res.File.Close()
		h.serveFile(w, r, res.File)
	case safearchive.OutcomeForbidden:
		nethttp.Error(w, nethttp.StatusText(nethttp.StatusForbidden), nethttp.StatusForbidden)
	default:
		nethttp.NotFound(w, r)
	}
}

// restOfPath returns the request path below the mount prefix.
func (h *Handler) restOfPath(p string) (string, bool) {
	if h.prefix == "/" {
		return p, true
	}
	if p == h.prefix {
		return "", true
	}
	rest, ok := strings.CutPrefix(p, h.prefix+"/")
	if !ok {
		return "", false
	}
	return "/" + rest, true
}

// serveFile streams f without content negotiation, ranges or a
// Content-Security-Policy header.
func (h *Handler) serveFile(w nethttp.ResponseWriter, r *nethttp.Request, f *safearchive.File) {
	header := w.Header()
	ctype := mime.TypeByExtension(path.Ext(f.Name))
	if ctype == "" {
		ctype = "application/octet-stream"
	}
	header.Set("Content-Type", ctype)
	header.Set("Content-Length", strconv.FormatInt(f.Size, 10))
	if !f.ModTime.IsZero() {
		header.Set("Last-Modified", f.ModTime.UTC().Format(nethttp.TimeFormat))
	}
	if disposition := mime.FormatMediaType("inline", map[string]string{"filename": f.Name}); disposition != "" {
		header.Set("Content-Disposition", disposition)
	}
	w.WriteHeader(nethttp.StatusOK)

	if r.Method == nethttp.MethodHead {
		return
	}
	if _, err := io.Copy(w, f); err != nil {
		h.logger.Debug("stream interrupted",
			slog.String("archive", h.archive.URLName()),
			slog.String("file", f.Name),
			slog.Any("error", err))
	}
}
