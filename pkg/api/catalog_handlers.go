package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/wardenhq/warden/pkg/authz"
	"github.com/wardenhq/warden/pkg/httputil"
)

// catalogHandlers serves the catalog access tags attached directly to users.
type catalogHandlers struct {
	deps Deps
}

func newCatalogHandlers(deps Deps) *catalogHandlers {
	return &catalogHandlers{deps: deps}
}

func (h *catalogHandlers) register(router *mux.Router, guard *authz.Guard) {
	router.Handle("/catalogs", guarded(guard, PermManageCatalog, h.listAll)).Methods("GET")
	router.Handle("/catalogs/{tag}/users/count", guarded(guard, PermManageCatalog, h.userCount)).Methods("GET")
	router.Handle("/users/{id}/catalogs", guarded(guard, PermManageCatalog, h.listForUser)).Methods("GET")
	router.Handle("/users/{id}/catalogs", guarded(guard, PermManageCatalog, h.setForUser)).Methods("PUT")
}

// listAll handles GET /catalogs: every catalog tag with at least one grant.
func (h *catalogHandlers) listAll(w http.ResponseWriter, r *http.Request) {
	tags, err := h.deps.Catalog.All(r.Context())
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteSuccess(w, tags)
}

// userCount handles GET /catalogs/{tag}/users/count.
func (h *catalogHandlers) userCount(w http.ResponseWriter, r *http.Request) {
	tag := mux.Vars(r)["tag"]

	count, err := h.deps.Catalog.UserCount(r.Context(), tag)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteSuccess(w, map[string]int{"count": count})
}

// listForUser handles GET /users/{id}/catalogs.
func (h *catalogHandlers) listForUser(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}

	tags, err := h.deps.Catalog.ListForUser(r.Context(), id)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteSuccess(w, tags)
}

// setForUser handles PUT /users/{id}/catalogs: replaces the user's tag set.
func (h *catalogHandlers) setForUser(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}

	var req struct {
		Tags []string `json:"tags"`
	}
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}

	if err := h.deps.Catalog.SetForUser(r.Context(), id, req.Tags); err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteNoContent(w)
}
