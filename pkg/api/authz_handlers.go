package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/wardenhq/warden/pkg/authz"
	"github.com/wardenhq/warden/pkg/httputil"
)

// authzHandlers exposes the enforcer contract to administrators: ad-hoc
// decision checks and per-subject permission listings.
type authzHandlers struct {
	deps Deps
}

func newAuthzHandlers(deps Deps) *authzHandlers {
	return &authzHandlers{deps: deps}
}

func (h *authzHandlers) register(router *mux.Router, guard *authz.Guard) {
	router.Handle("/authz/check", guarded(guard, PermManageAuthz, h.check)).Methods("POST")
	router.Handle("/authz/subjects/{subject}/permissions", guarded(guard, PermManageAuthz, h.listPermissions)).Methods("GET")
}

// check handles POST /authz/check: a single enforcement decision.
func (h *authzHandlers) check(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Subject string `json:"subject"`
		Domain  string `json:"domain"`
		Object  string `json:"object"`
	}
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}

	allowed, err := h.deps.Enforcer.Check(r.Context(), req.Subject, req.Domain, req.Object)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteSuccess(w, map[string]bool{"allowed": allowed})
}

// listPermissions handles GET /authz/subjects/{subject}/permissions:
// permission-shaped grants held directly by the subject.
func (h *authzHandlers) listPermissions(w http.ResponseWriter, r *http.Request) {
	subject := mux.Vars(r)["subject"]

	grants, err := h.deps.Enforcer.ListPermissions(r.Context(), subject)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteSuccess(w, grants)
}
