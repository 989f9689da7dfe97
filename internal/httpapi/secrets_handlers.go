package httpapi

import (
	"net/http"
	"sync/atomic"

	"github.com/go-chi/chi/v5"

	"leadhunt-engine/internal/config"
	"leadhunt-engine/internal/secrets"
)

type SecretsHandler struct {
	CfgVal *atomic.Value // stores config.Config
	Set    func(kind, account, password string) error
}

type setPasswordReq struct {
	Password string `json:"password" validate:"required"`
}

// SetPassword stores the SMTP or IMAP password for the account derived
// from the live config.
func (h SecretsHandler) SetPassword(w http.ResponseWriter, r *http.Request) {
	kind := secrets.Kind(chi.URLParam(r, "kind"))
	cfg := h.CfgVal.Load().(config.Config)
	account, err := secrets.Account(kind, cfg)
	if err != nil {
		WriteError(w, r, http.StatusNotFound, "not_found", err.Error())
		return
	}

	var req setPasswordReq
	if err := decodeJSON(r, &req, false); err != nil {
		writeErr(w, r, err)
		return
	}
	set := h.Set
	if set == nil {
		set = func(_, account, password string) error { return secrets.Set(account, password) }
	}
	if err := set(string(kind), account, req.Password); err != nil {
		WriteError(w, r, http.StatusBadRequest, "secret_store_failed", "failed to store password: "+err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
