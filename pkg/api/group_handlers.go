package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/wardenhq/warden/pkg/authz"
	"github.com/wardenhq/warden/pkg/httputil"
)

// groupHandlers serves group administration, the group's role set and its
// membership.
type groupHandlers struct {
	deps Deps
}

func newGroupHandlers(deps Deps) *groupHandlers {
	return &groupHandlers{deps: deps}
}

func (h *groupHandlers) register(router *mux.Router, guard *authz.Guard) {
	router.Handle("/groups", guarded(guard, PermManageGroup, h.list)).Methods("GET")
	router.Handle("/groups", guarded(guard, PermManageGroup, h.create)).Methods("POST")
	router.Handle("/groups/{id}", guarded(guard, PermManageGroup, h.get)).Methods("GET")
	router.Handle("/groups/{id}", guarded(guard, PermManageGroup, h.update)).Methods("PUT")
	router.Handle("/groups/{id}", guarded(guard, PermManageGroup, h.remove)).Methods("DELETE")
	router.Handle("/groups/{id}/roles/{role_id}", guarded(guard, PermManageGroup, h.addRole)).Methods("POST")
	router.Handle("/groups/{id}/roles/{role_id}", guarded(guard, PermManageGroup, h.removeRole)).Methods("DELETE")
	router.Handle("/groups/{id}/users", guarded(guard, PermManageGroup, h.listUsers)).Methods("GET")
	router.Handle("/groups/{id}/users/{user_id}", guarded(guard, PermManageGroup, h.addUser)).Methods("POST")
	router.Handle("/groups/{id}/users/{user_id}", guarded(guard, PermManageGroup, h.removeUser)).Methods("DELETE")
}

// list handles GET /groups with page_no/page_size/search query parameters.
func (h *groupHandlers) list(w http.ResponseWriter, r *http.Request) {
	pageNo, pageSize := httputil.Pagination(r)
	search := r.URL.Query().Get("search")

	groupList, total, err := h.deps.Groups.List(r.Context(), search, pageNo, pageSize)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteSuccess(w, map[string]interface{}{
		"groups": groupList,
		"total":  total,
	})
}

// create handles POST /groups: creates the group with an initial role list.
func (h *groupHandlers) create(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name    string  `json:"name"`
		Note    string  `json:"note"`
		RoleIDs []int64 `json:"roleIds"`
	}
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}

	group, err := h.deps.Groups.Create(r.Context(), req.Name, req.Note, req.RoleIDs)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteCreated(w, group)
}

// get handles GET /groups/{id}, including the group's role ids.
func (h *groupHandlers) get(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}

	group, err := h.deps.Groups.Get(r.Context(), id)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	roleIDs, err := h.deps.Groups.RoleIDsForGroup(r.Context(), id)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteSuccess(w, map[string]interface{}{
		"group":   group,
		"roleIds": roleIDs,
	})
}

// update handles PUT /groups/{id}.
func (h *groupHandlers) update(w http.ResponseWriter, r *http.Request) {
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

	if err := h.deps.Groups.Update(r.Context(), id, req.Name, req.Note); err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteNoContent(w)
}

// remove handles DELETE /groups/{id}: cascades the group's role and
// membership projections.
func (h *groupHandlers) remove(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}

	if err := h.deps.Groups.Delete(r.Context(), id); err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteNoContent(w)
}

// addRole handles POST /groups/{id}/roles/{role_id}.
func (h *groupHandlers) addRole(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}
	roleID, ok := httputil.ParsePathInt64OrError(w, r, "role_id")
	if !ok {
		return
	}

	if err := h.deps.Groups.AddRole(r.Context(), id, roleID); err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteNoContent(w)
}

// removeRole handles DELETE /groups/{id}/roles/{role_id}.
func (h *groupHandlers) removeRole(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}
	roleID, ok := httputil.ParsePathInt64OrError(w, r, "role_id")
	if !ok {
		return
	}

	if err := h.deps.Groups.RemoveRole(r.Context(), id, roleID); err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteNoContent(w)
}

// listUsers handles GET /groups/{id}/users.
func (h *groupHandlers) listUsers(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}

	userIDs, err := h.deps.Groups.UserIDsForGroup(r.Context(), id)
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

// addUser handles POST /groups/{id}/users/{user_id}.
func (h *groupHandlers) addUser(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}
	userID, ok := httputil.ParsePathInt64OrError(w, r, "user_id")
	if !ok {
		return
	}

	if err := h.deps.Groups.AddUser(r.Context(), id, userID); err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteNoContent(w)
}

// removeUser handles DELETE /groups/{id}/users/{user_id}.
func (h *groupHandlers) removeUser(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}
	userID, ok := httputil.ParsePathInt64OrError(w, r, "user_id")
	if !ok {
		return
	}

	if err := h.deps.Groups.RemoveUser(r.Context(), id, userID); err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteNoContent(w)
}
