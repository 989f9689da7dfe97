package httpapi

import (
	"context"
	"net/http"
	"sort"
	"time"
)

type HealthHandler struct {
	Checks map[string]func(ctx context.Context) error
}

type healthResp struct {
	OK           bool              `json:"ok"`
	Dependencies map[string]string `json:"dependencies,omitempty"`
}

// Health runs every dependency check with a shared deadline. Any failure
// turns the answer into a 503.
func (h HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	names := make([]string, 0, len(h.Checks))
	for name := range h.Checks {
		names = append(names, name)
	}
	sort.Strings(names)

	resp := healthResp{OK: true}
	if len(names) > 0 {
		resp.Dependencies = make(map[string]string, len(names))
	}
	for _, name := range names {
		if err := h.Checks[name](ctx); err != nil {
			resp.OK = false
			resp.Dependencies[name] = "unhealthy: " + err.Error()
			continue
		}
		resp.Dependencies[name] = "healthy"
	}

	status := http.StatusOK
	if !resp.OK {
		status = http.StatusServiceUnavailable
	}
	WriteJSON(w, status, resp)
}
