package httpapi

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	kerrors "github.com/vango-dev/kodbox/internal/errors"
	"github.com/vango-dev/kodbox/pkg/store"
)

// Handler serves a Store over HTTP.
type Handler struct {
	store    *store.Store
	router   chi.Router
	logger   *slog.Logger
	upgrader websocket.Upgrader
	config   config
}

// NewHandler creates a Handler for s.
func NewHandler(s *store.Store, opts ...Option) *Handler {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	h := &Handler{
		store:  s,
		logger: cfg.logger.With("component", "kodbox.http"),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin:     cfg.checkOrigin,
		},
		config: cfg,
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(h.logRequests)

	r.Get("/state", h.getState)
	r.Route("/state/{key}", func(r chi.Router) {
		r.Get("/", h.getKey)
		r.Put("/", h.putKey)
		r.Delete("/", h.deleteKey)
	})
	r.Post("/touch", h.touch)
	r.Get("/inspect", h.inspect)
	r.Get("/watch", h.watch)

	if cfg.gatherer != nil {
		r.Handle(cfg.metricsPath, promhttp.HandlerFor(cfg.gatherer, promhttp.HandlerOpts{}))
	}

	h.router = r
	return h
}

// ServeHTTP implements http.Handler.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.router.ServeHTTP(w, r)
}

func (h *Handler) getState(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, h.store.State())
}

func (h *Handler) getKey(w http.ResponseWriter, r *http.Request) {
	key, err := keyParam(r)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, err)
		return
	}
	v, ok := h.store.Get(key)
	if !ok {
		h.writeError(w, http.StatusNotFound, kerrors.Newf(kerrors.CategoryRuntime, "key %q not found", key))
		return
	}
	h.writeJSON(w, http.StatusOK, v)
}

func (h *Handler) putKey(w http.ResponseWriter, r *http.Request) {
	key, err := keyParam(r)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, err)
		return
	}

	opts, err := writeOptions(r, "locked", "persist", "refresh", "destructive")
	if err != nil {
		h.writeError(w, http.StatusBadRequest, err)
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, h.config.maxBodyBytes))
	if err != nil {
		h.writeError(w, http.StatusRequestEntityTooLarge, kerrors.New("K050").
			WithDetail("request body exceeds "+strconv.FormatInt(h.config.maxBodyBytes, 10)+" bytes"))
		return
	}

	var value any
	if err := json.Unmarshal(body, &value); err != nil {
		h.writeError(w, http.StatusBadRequest, kerrors.New("K050").
			WithDetail("body is not a JSON value: "+err.Error()))
		return
	}

	if err := h.store.SetAsync(r.Context(), key, value, opts...); err != nil {
		h.writeStoreError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) deleteKey(w http.ResponseWriter, r *http.Request) {
	key, err := keyParam(r)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, err)
		return
	}
	opts, err := writeOptions(r, "persist", "destructive")
	if err != nil {
		h.writeError(w, http.StatusBadRequest, err)
		return
	}

	if err := h.store.Remove(key, opts...); err != nil {
		h.writeStoreError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) touch(w http.ResponseWriter, r *http.Request) {
	rewrite, err := boolQuery(r, "rewrite")
	if err != nil {
		h.writeError(w, http.StatusBadRequest, err)
		return
	}

	if err := h.store.TouchAsync(r.Context(), rewrite); err != nil {
		h.writeStoreError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) inspect(w http.ResponseWriter, r *http.Request) {
	var opts []store.InspectOption
	if on, err := boolQuery(r, "detailed"); err != nil {
		h.writeError(w, http.StatusBadRequest, err)
		return
	} else if on {
		opts = append(opts, store.Detailed())
	}
	if on, err := boolQuery(r, "values"); err != nil {
		h.writeError(w, http.StatusBadRequest, err)
		return
	} else if on {
		opts = append(opts, store.WithValues())
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	if err := h.store.Inspect(w, opts...); err != nil {
		h.logger.Debug("inspect write failed", "error", err)
	}
}

// keyParam returns the decoded {key} path segment. chi routes on the raw
// path when the request carries escapes such as %2F, leaving the segment
// escaped.
func keyParam(r *http.Request) (string, error) {
	key := chi.URLParam(r, "key")
	if r.URL.RawPath == "" {
		return key, nil
	}
	decoded, err := url.PathUnescape(key)
	if err != nil {
		return "", kerrors.New("K050").WithDetail("key " + strconv.Quote(key) + " is not a valid path segment")
	}
	return decoded, nil
}

// writeOptions maps boolean query flags to store write options.
func writeOptions(r *http.Request, names ...string) ([]store.WriteOption, error) {
	var opts []store.WriteOption
	for _, name := range names {
		on, err := boolQuery(r, name)
		if err != nil {
			return nil, err
		}
		if !on {
			continue
		}
		switch name {
		case "locked":
			opts = append(opts, store.Locked())
		case "persist":
			opts = append(opts, store.Persist())
		case "refresh":
			opts = append(opts, store.Refresh())
		case "destructive":
			opts = append(opts, store.Destructive())
		}
	}
	return opts, nil
}

// boolQuery reads a boolean query flag. A present flag without a value
// ("?persist") is true.
func boolQuery(r *http.Request, name string) (bool, error) {
	q := r.URL.Query()
	if !q.Has(name) {
		return false, nil
	}
	raw := q.Get(name)
	if raw == "" {
		return true, nil
	}
	on, err := strconv.ParseBool(raw)
	if err != nil {
		return false, kerrors.New("K050").
			WithDetail("query parameter " + name + " must be a boolean, got " + strconv.Quote(raw))
	}
	return on, nil
}

// writeStoreError maps store errors to status codes.
func (h *Handler) writeStoreError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch kerrors.CodeOf(err) {
	case "K010":
		status = http.StatusLocked
	case "K020":
		status = http.StatusUnprocessableEntity
	case "K021", "K022", "K030":
		status = http.StatusBadGateway
	}
	h.writeError(w, status, err)
}

func (h *Handler) writeError(w http.ResponseWriter, status int, err error) {
	ke, ok := err.(*kerrors.Error)
	if !ok {
		// Joined errors keep their full text under the first code found.
		ke = kerrors.Newf(kerrors.CategoryRuntime, "%v", err)
		ke.Code = kerrors.CodeOf(err)
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	io.WriteString(w, ke.FormatJSON()+"\n")
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		h.writeError(w, http.StatusUnprocessableEntity, kerrors.New("K020").Wrap(err))
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(append(data, '\n'))
}

// logRequests logs one line per request.
func (h *Handler) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		h.logger.Debug("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"duration", time.Since(start),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}
