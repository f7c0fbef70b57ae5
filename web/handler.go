// Package web exposes the styling subsystem over HTTP: stylesheet
// delivery for the front end and a small administrative surface for the
// cache.
package web

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/cespare/xxhash/v2"
	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"github.com/klauspost/compress/gzhttp"

	"github.com/streamweave/stylist/cache"
	"github.com/streamweave/stylist/style"
	"github.com/streamweave/stylist/theme"
)

type handler struct {
	mgr *style.Manager
	lib *theme.Library
	log cache.Logger
}

// New builds the HTTP handler: stylesheet delivery, theme listing and the
// cache admin endpoints, wrapped with request-id and gzip middleware.
func New(mgr *style.Manager, lib *theme.Library, log cache.Logger) http.Handler {
	h := &handler{mgr: mgr, lib: lib, log: log}
	mux := http.NewServeMux()
	mux.HandleFunc("GET /themes", h.listThemes)
	mux.HandleFunc("GET /themes/{id}/style.css", h.stylesheet)
	mux.HandleFunc("GET /internal/cache/stats", h.stats)
	mux.HandleFunc("POST /internal/cache/cleanup", h.cleanup)
	return requestID(gzhttp.GzipHandler(mux))
}

// requestID tags every response (and downstream logs) with an id,
// generating one when the client did not send its own.
func requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-ID")
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", id)
		next.ServeHTTP(w, r)
	})
}

func (h *handler) stylesheet(w http.ResponseWriter, r *http.Request) {
	prefs, err := prefsFromQuery(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	sheet, err := h.mgr.StylesheetFor(r.Context(), r.PathValue("id"), prefs)
	if errors.Is(err, style.ErrUnknownTheme) {
		http.NotFound(w, r)
		return
	}
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	etag := fmt.Sprintf(`"%016x"`, xxhash.Sum64String(sheet))
	w.Header().Set("ETag", etag)
	w.Header().Set("Cache-Control", "public, max-age=3600")
	if r.Header.Get("If-None-Match") == etag {
		w.WriteHeader(http.StatusNotModified)
		return
	}
	w.Header().Set("Content-Type", "text/css; charset=utf-8")
	if _, err := w.Write([]byte(sheet)); err != nil {
		h.log.Debugf("web: stylesheet write: %v", err)
	}
}

// prefsFromQuery builds display preferences from the request, starting
// from the defaults so absent parameters keep their usual values.
func prefsFromQuery(r *http.Request) (theme.Preferences, error) {
	prefs := theme.DefaultPreferences()
	q := r.URL.Query()
	if v := q.Get("mode"); v != "" {
		prefs.Mode = v
	}
	if v := q.Get("density"); v != "" {
		prefs.Density = v
	}
	var err error
	if prefs.RoundedCorners, err = boolParam(q.Get("rounded"), prefs.RoundedCorners); err != nil {
		return prefs, fmt.Errorf("invalid rounded parameter")
	}
	if prefs.BackdropBlur, err = boolParam(q.Get("blur"), prefs.BackdropBlur); err != nil {
		return prefs, fmt.Errorf("invalid blur parameter")
	}
	if prefs.DisableCustomCSS, err = boolParam(q.Get("nocustom"), prefs.DisableCustomCSS); err != nil {
		return prefs, fmt.Errorf("invalid nocustom parameter")
	}
	return prefs, prefs.Validate()
}

func boolParam(raw string, def bool) (bool, error) {
	if raw == "" {
		return def, nil
	}
	return strconv.ParseBool(raw)
}

func (h *handler) listThemes(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, h.lib.IDs())
}

type statsResponse struct {
	cache.Statistics
	MemorySize string `json:"memorySize"`
}

func (h *handler) stats(w http.ResponseWriter, _ *http.Request) {
	st := h.mgr.Statistics()
	writeJSON(w, statsResponse{
		Statistics: st,
		MemorySize: humanize.IBytes(uint64(st.MemorySizeBytes)),
	})
}

func (h *handler) cleanup(w http.ResponseWriter, r *http.Request) {
	removed := h.mgr.Cleanup(r.Context())
	writeJSON(w, map[string]int{"removed": removed})
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	_ = json.NewEncoder(w).Encode(v)
}
