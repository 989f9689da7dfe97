package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"leadhunt-engine/internal/export"
	"leadhunt-engine/internal/metrics"
)

type ExportsHandler struct {
	Deps Deps
}

func (h ExportsHandler) Analytics(w http.ResponseWriter, r *http.Request) {
	leads, err := h.Deps.Store.List(r.Context())
	if err != nil {
		writeErr(w, r, err)
		return
	}
	metrics.ObserveStatuses(leads)
	writeJSON(w, export.Analyze(leads, h.Deps.now()))
}

// Write produces one export file under the configured exports dir.
func (h ExportsHandler) Write(w http.ResponseWriter, r *http.Request) {
	leads, err := h.Deps.Store.List(r.Context())
	if err != nil {
		writeErr(w, r, err)
		return
	}
	cfg := h.Deps.config()
	dir := cfg.Resolve(cfg.Exports.Dir)
	now := h.Deps.now()

	var path string
	switch kind := chi.URLParam(r, "kind"); kind {
	case "full":
		path, err = export.Full(leads, dir, now)
	case "campaign":
		path, err = export.Campaign(leads, dir, now)
	case "analytics":
		_, path, err = export.Analytics(leads, dir, now)
	default:
		WriteError(w, r, http.StatusNotFound, "not_found", "unknown export "+kind)
		return
	}
	if err != nil {
		writeErr(w, r, err)
		return
	}
	WriteJSON(w, http.StatusCreated, map[string]any{"path": path})
}
