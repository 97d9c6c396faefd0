package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/wardenhq/warden/pkg/authz"
	"github.com/wardenhq/warden/pkg/httputil"
)

// roleHandlers serves role administration and role permission grants.
type roleHandlers struct {
	deps Deps
}

func newRoleHandlers(deps Deps) *roleHandlers {
	return &roleHandlers{deps: deps}
}

func (h *roleHandlers) register(router *mux.Router, guard *authz.Guard) {
	router.Handle("/roles", guarded(guard, PermManageRole, h.list)).Methods("GET")
	router.Handle("/roles", guarded(guard, PermManageRole, h.create)).Methods("POST")
	router.Handle("/roles/{id}", guarded(guard, PermManageRole, h.get)).Methods("GET")
	router.Handle("/roles/{id}", guarded(guard, PermManageRole, h.update)).Methods("PUT")
	router.Handle("/roles", guarded(guard, PermManageRole, h.remove)).Methods("DELETE")
	router.Handle("/roles/{id}/permissions", guarded(guard, PermManageRole, h.listPermissions)).Methods("GET")
	router.Handle("/roles/{id}/permissions", guarded(guard, PermManageRole, h.setPermissions)).Methods("PUT")
	router.Handle("/roles/{id}/users", guarded(guard, PermManageRole, h.listUsers)).Methods("GET")
}

// list handles GET /roles with page_no/page_size/search query parameters.
func (h *roleHandlers) list(w http.ResponseWriter, r *http.Request) {
	pageNo, pageSize := httputil.Pagination(r)
	search := r.URL.Query().Get("search")

	roleList, total, err := h.deps.Roles.List(r.Context(), search, pageNo, pageSize)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteSuccess(w, map[string]interface{}{
		"roles": roleList,
		"total": total,
	})
}

// create handles POST /roles.
func (h *roleHandlers) create(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name string `json:"name"`
		Note string `json:"note"`
	}
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}

	role, err := h.deps.Roles.Create(r.Context(), req.Name, req.Note)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteCreated(w, role)
}

// get handles GET /roles/{id}.
func (h *roleHandlers) get(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}

	role, err := h.deps.Roles.Get(r.Context(), id)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteSuccess(w, role)
}

// update handles PUT /roles/{id}.
func (h *roleHandlers) update(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}

	var req struct {
		Name string `json:"name"`
		Note string `json:"note"`
	}
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}

	if err := h.deps.Roles.Update(r.Context(), id, req.Name, req.Note); err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteNoContent(w)
}

// remove handles DELETE /roles: bulk delete, rejected wholesale when any id
// names a preset role.
func (h *roleHandlers) remove(w http.ResponseWriter, r *http.Request) {
	var req struct {
		IDs []int64 `json:"ids"`
	}
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}

	if err := h.deps.Roles.Delete(r.Context(), req.IDs); err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteNoContent(w)
}

// listPermissions handles GET /roles/{id}/permissions.
func (h *roleHandlers) listPermissions(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}

	grants, err := h.deps.Roles.ListPermissions(r.Context(), id)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteSuccess(w, grants)
}

// setPermissions handles PUT /roles/{id}/permissions: replaces the role's
// permission set in one domain with a delta edit.
func (h *roleHandlers) setPermissions(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}

	var req struct {
		Domain  string   `json:"domain"`
		Objects []string `json:"objects"`
	}
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}

	if err := h.deps.Roles.SetPermissions(r.Context(), id, req.Domain, req.Objects); err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteNoContent(w)
}

// listUsers handles GET /roles/{id}/users.
func (h *roleHandlers) listUsers(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}

	userIDs, err := h.deps.Roles.UserIDsForRole(r.Context(), id)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	userList, err := h.deps.Users.ListByIDs(r.Context(), userIDs)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteSuccess(w, userList)
}
