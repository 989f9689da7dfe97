package httpapi

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"

	"leadhunt-engine/internal/discover"
	"leadhunt-engine/internal/events"
	"leadhunt-engine/internal/metrics"
)

type RunsHandler struct {
	Deps Deps
}

type discoveryStatus struct {
	Running bool              `json:"running"`
	Last    *discover.Summary `json:"last,omitempty"`
}

func (h RunsHandler) DiscoveryStatus(w http.ResponseWriter, r *http.Request) {
	st := discoveryStatus{Running: h.Deps.Discovery.Running()}
	if last, ok := h.Deps.Discovery.Last(); ok {
		st.Last = &last
	}
	writeJSON(w, st)
}

// RunDiscovery starts a pass in the background and answers 202 at once.
func (h RunsHandler) RunDiscovery(w http.ResponseWriter, r *http.Request) {
	if h.Deps.Discovery.Running() {
		writeErr(w, r, discover.ErrAlreadyRunning)
		return
	}
	reqID := RequestIDFrom(r.Context())
	log := loggerFrom(r.Context())

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Minute)
		defer cancel()
		sum, err := h.Deps.Discovery.RunOnce(ctx)
		if err != nil {
			log.Warn("discovery run failed", zap.Error(err))
			return
		}
		metrics.Discovery(sum.Sources, sum.Errors)
		h.Deps.Bus.Emit(ctx, reqID, events.DiscoveryFinished, sum)
	}()

	WriteJSON(w, http.StatusAccepted, map[string]any{"ok": true})
}

func (h RunsHandler) RunScoring(w http.ResponseWriter, r *http.Request) {
	cfg := h.Deps.config()
	limit := cfg.Scoring.BatchLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			WriteError(w, r, http.StatusBadRequest, "invalid_input", "limit must be a non-negative integer")
			return
		}
		limit = n
	}

	runner, err := h.Deps.Scoring(cfg)
	if err != nil {
		writeErr(w, r, err)
		return
	}
	sum, err := runner.Run(r.Context(), limit)
	if err != nil {
		writeErr(w, r, err)
		return
	}
	metrics.ScoringFallbacks(sum.Fallbacks)
	h.Deps.Bus.Emit(r.Context(), RequestIDFrom(r.Context()), events.ScoringFinished, sum)
	writeJSON(w, sum)
}

type sendReq struct {
	IDs    []string `json:"ids" validate:"omitempty,dive,required"`
	DryRun bool     `json:"dry_run"`
}

// Send mails the selected ready leads; an empty id list means every ready lead.
func (h RunsHandler) Send(w http.ResponseWriter, r *http.Request) {
	var req sendReq
	if err := decodeJSON(r, &req, true); err != nil {
		writeErr(w, r, err)
		return
	}
	camp, err := h.Deps.Outreach(h.Deps.config())
	if err != nil {
		writeErr(w, r, err)
		return
	}
	rep, err := camp.Send(r.Context(), req.IDs, req.DryRun)
	if err != nil {
		writeErr(w, r, err)
		return
	}
	if !req.DryRun {
		h.Deps.Bus.Emit(r.Context(), RequestIDFrom(r.Context()), events.OutreachFinished, rep)
	}
	writeJSON(w, rep)
}
