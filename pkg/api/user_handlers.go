package api

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"github.com/wardenhq/warden/pkg/authz"
	"github.com/wardenhq/warden/pkg/httputil"
	"github.com/wardenhq/warden/pkg/users"
)

// userHandlers serves user administration: listing, bulk create, profile
// edits, soft deletion and the user's role assignment set.
type userHandlers struct {
	deps Deps
}

func newUserHandlers(deps Deps) *userHandlers {
	return &userHandlers{deps: deps}
}

func (h *userHandlers) register(router *mux.Router, guard *authz.Guard) {
	router.Handle("/users", guarded(guard, PermManageUser, h.list)).Methods("GET")
	router.Handle("/users", guarded(guard, PermManageUser, h.create)).Methods("POST")
	router.Handle("/users/{id}", guarded(guard, PermManageUser, h.get)).Methods("GET")
	router.Handle("/users/{id}", guarded(guard, PermManageUser, h.update)).Methods("PUT")
	router.Handle("/users", guarded(guard, PermManageUser, h.remove)).Methods("DELETE")
	router.Handle("/users/{id}/roles", guarded(guard, PermManageUser, h.listRoles)).Methods("GET")
	router.Handle("/users/{id}/roles", guarded(guard, PermManageUser, h.setRoles)).Methods("PUT")
	router.Handle("/users/{id}/groups", guarded(guard, PermManageUser, h.listGroups)).Methods("GET")
}

// list handles GET /users with page_no/page_size/search query parameters.
func (h *userHandlers) list(w http.ResponseWriter, r *http.Request) {
	pageNo, pageSize := httputil.Pagination(r)
	search := r.URL.Query().Get("search")

	userList, total, err := h.deps.Users.List(r.Context(), search, pageNo, pageSize)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteSuccess(w, map[string]interface{}{
		"users": userList,
		"total": total,
	})
}

// create handles POST /users: bulk account creation.
func (h *userHandlers) create(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Users []users.NewUser `json:"users"`
	}
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}

	if err := h.deps.Users.Create(r.Context(), req.Users); err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteCreated(w, map[string]int{"created": len(req.Users)})
}

// get handles GET /users/{id}.
func (h *userHandlers) get(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}

	u, err := h.deps.Users.Get(r.Context(), id)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteSuccess(w, u)
}

// update handles PUT /users/{id}: profile edit.
func (h *userHandlers) update(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}

	var edit users.ProfileEdit
	if !httputil.ParseJSONOrError(w, r, &edit) {
		return
	}

	if err := h.deps.Users.Update(r.Context(), id, edit); err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteNoContent(w)
}

// remove handles DELETE /users: soft-deletes the accounts and tears down
// their role assignments, group memberships and policy-store grants.
func (h *userHandlers) remove(w http.ResponseWriter, r *http.Request) {
	var req struct {
		IDs []int64 `json:"ids"`
	}
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}

	removed, err := h.deps.Users.Remove(r.Context(), req.IDs)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	for _, id := range req.IDs {
		if err := h.deps.Roles.RemoveUserAssignments(r.Context(), id); err != nil {
			logrus.WithError(err).WithField("user_id", id).Error("role teardown failed, reconciliation will retry")
		}
		if err := h.deps.Groups.RemoveUserMemberships(r.Context(), id); err != nil {
			logrus.WithError(err).WithField("user_id", id).Error("group teardown failed, reconciliation will retry")
		}
	}

	httputil.WriteSuccess(w, map[string]int64{"removed": removed})
}

// listRoles handles GET /users/{id}/roles.
func (h *userHandlers) listRoles(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}

	roleList, err := h.deps.Roles.RolesForUser(r.Context(), id)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteSuccess(w, roleList)
}

// setRoles handles PUT /users/{id}/roles: replaces the user's role set with
// a delta edit.
func (h *userHandlers) setRoles(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}

	var req struct {
		RoleIDs []int64 `json:"roleIds"`
	}
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}

	if err := h.deps.Roles.SetUserRoles(r.Context(), id, req.RoleIDs); err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteNoContent(w)
}

// listGroups handles GET /users/{id}/groups.
func (h *userHandlers) listGroups(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}

	groupList, err := h.deps.Groups.GroupsForUser(r.Context(), id)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteSuccess(w, groupList)
}
