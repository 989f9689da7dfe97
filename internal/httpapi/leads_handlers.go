package httpapi

import (
	"fmt"
	"net/http"
	"sort"
	"strings"

	"github.com/go-chi/chi/v5"

	"leadhunt-engine/internal/domain"
	"leadhunt-engine/internal/events"
	"leadhunt-engine/internal/store"
	"leadhunt-engine/internal/workflow"
)

type LeadsHandler struct {
	Store    store.LeadStore
	Workflow *workflow.Service
	Bus      *events.Bus
}

type createLeadReq struct {
	OwnerHandle        string `json:"owner_handle" validate:"required"`
	ProjectName        string `json:"project_name" validate:"required"`
	ProjectURL         string `json:"project_url" validate:"omitempty,url"`
	ProjectDescription string `json:"project_description"`
	Email              string `json:"email" validate:"omitempty,email"`
}

type statusReq struct {
	Status string `json:"status" validate:"required"`
}

type bulkReq struct {
	IDs []string `json:"ids" validate:"required,min=1,dive,required"`
}

type bulkResp struct {
	workflow.BulkResult
	Message string `json:"message"`
}

// List returns leads in store order. ?view= selects a named filter and
// ?status= narrows further.
func (h LeadsHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	var pred domain.Predicate = domain.All
	if v := strings.TrimSpace(q.Get("view")); v != "" {
		p, ok := domain.Views[v]
		if !ok {
			WriteError(w, r, http.StatusBadRequest, "invalid_input", "unknown view "+v+"; want one of "+strings.Join(viewNames(), ", "))
			return
		}
		pred = p
	}
	if s := q.Get("status"); s != "" {
		st, err := parseStatus(s)
		if err != nil {
			writeErr(w, r, err)
			return
		}
		pred = domain.And(pred, domain.ByStatus(st))
	}

	leads, err := store.Filter(r.Context(), h.Store, pred)
	if err != nil {
		writeErr(w, r, err)
		return
	}
	writeJSON(w, leads)
}

func (h LeadsHandler) Get(w http.ResponseWriter, r *http.Request) {
	l, err := h.Store.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeErr(w, r, err)
		return
	}
	writeJSON(w, l)
}

func (h LeadsHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createLeadReq
	if err := decodeJSON(r, &req, false); err != nil {
		writeErr(w, r, err)
		return
	}
	l, added, err := h.Store.Insert(r.Context(), domain.Lead{
		OwnerHandle:        req.OwnerHandle,
		ProjectName:        req.ProjectName,
		ProjectURL:         req.ProjectURL,
		ProjectDescription: req.ProjectDescription,
		Email:              req.Email,
	})
	if err != nil {
		writeErr(w, r, err)
		return
	}
	if !added {
		WriteError(w, r, http.StatusConflict, "already_exists", "lead "+l.Key()+" already exists")
		return
	}
	h.Bus.Emit(r.Context(), RequestIDFrom(r.Context()), events.LeadCreated, l)
	WriteJSON(w, http.StatusCreated, l)
}

func (h LeadsHandler) Patch(w http.ResponseWriter, r *http.Request) {
	var p domain.Patch
	if err := decodeJSON(r, &p, false); err != nil {
		writeErr(w, r, err)
		return
	}
	h.respond(w, r)(h.Store.Update(r.Context(), chi.URLParam(r, "id"), p))
}

func (h LeadsHandler) SetStatus(w http.ResponseWriter, r *http.Request) {
	var req statusReq
	if err := decodeJSON(r, &req, false); err != nil {
		writeErr(w, r, err)
		return
	}
	st, err := parseStatus(req.Status)
	if err != nil {
		writeErr(w, r, err)
		return
	}
	h.respond(w, r)(h.Workflow.AdvanceStatus(r.Context(), chi.URLParam(r, "id"), st))
}

func (h LeadsHandler) Approve(w http.ResponseWriter, r *http.Request) {
	h.respond(w, r)(h.Workflow.Approve(r.Context(), chi.URLParam(r, "id")))
}

func (h LeadsHandler) Reject(w http.ResponseWriter, r *http.Request) {
	h.respond(w, r)(h.Workflow.Reject(r.Context(), chi.URLParam(r, "id")))
}

func (h LeadsHandler) MarkPending(w http.ResponseWriter, r *http.Request) {
	h.respond(w, r)(h.Workflow.MarkPendingApproval(r.Context(), chi.URLParam(r, "id")))
}

// Bulk answers 200 even when some ids fail; the body lists each failure.
func (h LeadsHandler) Bulk(w http.ResponseWriter, r *http.Request) {
	var req bulkReq
	if err := decodeJSON(r, &req, false); err != nil {
		writeErr(w, r, err)
		return
	}

	var res workflow.BulkResult
	switch chi.URLParam(r, "action") {
	case "approve":
		res = h.Workflow.BulkApprove(r.Context(), req.IDs)
	case "reject":
		res = h.Workflow.BulkReject(r.Context(), req.IDs)
	case "pending":
		res = h.Workflow.BulkMarkPending(r.Context(), req.IDs)
	default:
		WriteError(w, r, http.StatusNotFound, "not_found", "unknown bulk action")
		return
	}
	if err := res.Err(); err != nil {
		loggerFrom(r.Context()).Warn(res.Message(), errField(err)...)
	}
	for _, id := range res.Succeeded {
		h.Bus.Emit(r.Context(), RequestIDFrom(r.Context()), events.LeadUpdated, map[string]string{"id": id})
	}
	writeJSON(w, bulkResp{BulkResult: res, Message: res.Message()})
}

func (h LeadsHandler) respond(w http.ResponseWriter, r *http.Request) func(domain.Lead, error) {
	return func(l domain.Lead, err error) {
		if err != nil {
			writeErr(w, r, err)
			return
		}
		h.Bus.Emit(r.Context(), RequestIDFrom(r.Context()), events.LeadUpdated, l)
		writeJSON(w, l)
	}
}

func parseStatus(raw string) (domain.Status, error) {
	st, err := domain.ParseStatus(raw)
	if err != nil {
		return "", fmt.Errorf("%w: %v", workflow.ErrInvalidStatus, err)
	}
	return st, nil
}

func viewNames() []string {
	names := make([]string, 0, len(domain.Views))
	for k := range domain.Views {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}
