package httpapi

import (
	"net/http"
	"strconv"
	"strings"

	"recruitcore.io/internal/auth"
)

type permissionIDsRequest struct {
	PermissionIDs []string `json:"permission_ids"`
}

type assignActorRequest struct {
	ActorID string `json:"actor_id"`
}

func (a *API) routeRBAC() {
	a.mux.HandleFunc("GET /v1/permissions", a.listPermissions)
	a.mux.HandleFunc("POST /v1/permissions", a.createPermission)
	a.mux.HandleFunc("GET /v1/permissions/{id}", a.getPermission)
	a.mux.HandleFunc("PATCH /v1/permissions/{id}", a.updatePermission)
	a.mux.HandleFunc("DELETE /v1/permissions/{id}", a.deletePermission)

	a.mux.HandleFunc("GET /v1/actors", a.listActors)
	a.mux.HandleFunc("POST /v1/actors", a.createActor)
	a.mux.HandleFunc("GET /v1/actors/{id}", a.getActor)
	a.mux.HandleFunc("PATCH /v1/actors/{id}", a.updateActor)
	a.mux.HandleFunc("DELETE /v1/actors/{id}", a.deleteActor)
	a.mux.HandleFunc("GET /v1/actors/{id}/permissions", a.actorPermissions)
	a.mux.HandleFunc("POST /v1/actors/{id}/permissions", a.assignPermissions)
	a.mux.HandleFunc("DELETE /v1/actors/{id}/permissions", a.unassignPermissions)

	a.mux.HandleFunc("GET /v1/users/{id}", a.getUser)
	a.mux.HandleFunc("GET /v1/users/{id}/actors", a.userActors)
	a.mux.HandleFunc("POST /v1/users/{id}/actors", a.assignActor)
	a.mux.HandleFunc("DELETE /v1/users/{id}/actors/{actorID}", a.unassignActor)
	a.mux.HandleFunc("POST /v1/users/{id}/activate", a.activateUser)
	a.mux.HandleFunc("POST /v1/users/{id}/deactivate", a.deactivateUser)
}

// guardRBAC checks the service is wired and the caller holds perm.
func (a *API) guardRBAC(w http.ResponseWriter, r *http.Request, perm string) (auth.AuthContext, bool) {
	if a.rbac == nil {
		unavailable(w, r, "rbac")
		return auth.AuthContext{}, false
	}
	return a.requirePermission(w, r, perm)
}

func activeOnly(r *http.Request) bool {
	v, err := strconv.ParseBool(r.URL.Query().Get("active_only"))
	return err == nil && v
}

func (a *API) listPermissions(w http.ResponseWriter, r *http.Request) {
	if _, ok := a.guardRBAC(w, r, auth.PermPermissionsList); !ok {
		return
	}
	perms, err := a.rbac.ListPermissions(r.Context(), activeOnly(r))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, perms)
}

func (a *API) createPermission(w http.ResponseWriter, r *http.Request) {
	if _, ok := a.guardRBAC(w, r, auth.PermPermissionsCreate); !ok {
		return
	}
	var req auth.PermissionInput
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	perm, err := a.rbac.CreatePermission(r.Context(), req)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	a.record(r.Context(), "rbac.permission.create", map[string]any{"permission_id": perm.ID, "name": perm.Name})
	w.Header().Set("Location", "/v1/permissions/"+perm.ID)
	writeJSON(w, http.StatusCreated, perm)
}

func (a *API) getPermission(w http.ResponseWriter, r *http.Request) {
	if _, ok := a.guardRBAC(w, r, auth.PermPermissionsView); !ok {
		return
	}
	perm, err := a.rbac.Permission(r.Context(), r.PathValue("id"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, perm)
}

func (a *API) updatePermission(w http.ResponseWriter, r *http.Request) {
	if _, ok := a.guardRBAC(w, r, auth.PermPermissionsEdit); !ok {
		return
	}
	var req auth.PermissionUpdate
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	perm, err := a.rbac.UpdatePermission(r.Context(), r.PathValue("id"), req)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	a.record(r.Context(), "rbac.permission.update", map[string]any{"permission_id": perm.ID})
	writeJSON(w, http.StatusOK, perm)
}

func (a *API) deletePermission(w http.ResponseWriter, r *http.Request) {
	if _, ok := a.guardRBAC(w, r, auth.PermPermissionsDelete); !ok {
		return
	}
	id := r.PathValue("id")
	if err := a.rbac.DeactivatePermission(r.Context(), id); err != nil {
		writeServiceError(w, r, err)
		return
	}
	a.record(r.Context(), "rbac.permission.deactivate", map[string]any{"permission_id": id})
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) listActors(w http.ResponseWriter, r *http.Request) {
	if _, ok := a.guardRBAC(w, r, auth.PermActorsList); !ok {
		return
	}
	actors, err := a.rbac.ListActors(r.Context(), activeOnly(r))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, actors)
}

func (a *API) createActor(w http.ResponseWriter, r *http.Request) {
	if _, ok := a.guardRBAC(w, r, auth.PermActorsCreate); !ok {
		return
	}
	var req auth.ActorInput
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	actor, err := a.rbac.CreateActor(r.Context(), req)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	a.record(r.Context(), "rbac.actor.create", map[string]any{"actor_id": actor.ID, "name": actor.Name})
	w.Header().Set("Location", "/v1/actors/"+actor.ID)
	writeJSON(w, http.StatusCreated, actor)
}

func (a *API) getActor(w http.ResponseWriter, r *http.Request) {
	if _, ok := a.guardRBAC(w, r, auth.PermActorsView); !ok {
		return
	}
	actor, err := a.rbac.Actor(r.Context(), r.PathValue("id"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, actor)
}

func (a *API) updateActor(w http.ResponseWriter, r *http.Request) {
	if _, ok := a.guardRBAC(w, r, auth.PermActorsEdit); !ok {
		return
	}
	var req auth.ActorUpdate
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	actor, err := a.rbac.UpdateActor(r.Context(), r.PathValue("id"), req)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	a.record(r.Context(), "rbac.actor.update", map[string]any{"actor_id": actor.ID})
	writeJSON(w, http.StatusOK, actor)
}

func (a *API) deleteActor(w http.ResponseWriter, r *http.Request) {
	if _, ok := a.guardRBAC(w, r, auth.PermActorsDelete); !ok {
		return
	}
	id := r.PathValue("id")
	if err := a.rbac.DeleteActor(r.Context(), id); err != nil {
		writeServiceError(w, r, err)
		return
	}
	a.record(r.Context(), "rbac.actor.delete", map[string]any{"actor_id": id})
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) actorPermissions(w http.ResponseWriter, r *http.Request) {
	if _, ok := a.guardRBAC(w, r, auth.PermActorsView); !ok {
		return
	}
	perms, err := a.rbac.ActorPermissions(r.Context(), r.PathValue("id"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, perms)
}

func (a *API) assignPermissions(w http.ResponseWriter, r *http.Request) {
	actx, ok := a.guardRBAC(w, r, auth.PermPermissionsEdit)
	if !ok {
		return
	}
	var req permissionIDsRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	actorID := r.PathValue("id")
	res, err := a.rbac.AssignPermissions(r.Context(), actorID, req.PermissionIDs, actx.User.ID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	a.record(r.Context(), "rbac.actor.permissions.assign", map[string]any{
		"actor_id": actorID,
		"assigned": res.Assigned,
	})
	writeJSON(w, http.StatusOK, res)
}

func (a *API) unassignPermissions(w http.ResponseWriter, r *http.Request) {
	if _, ok := a.guardRBAC(w, r, auth.PermPermissionsEdit); !ok {
		return
	}
	var req permissionIDsRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	actorID := r.PathValue("id")
	removed, err := a.rbac.UnassignPermissions(r.Context(), actorID, req.PermissionIDs)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	a.record(r.Context(), "rbac.actor.permissions.unassign", map[string]any{
		"actor_id": actorID,
		"removed":  removed,
	})
	writeJSON(w, http.StatusOK, map[string]int{"removed": removed})
}

func (a *API) getUser(w http.ResponseWriter, r *http.Request) {
	if a.auth == nil {
		unavailable(w, r, "auth")
		return
	}
	if _, ok := a.requirePermission(w, r, auth.PermUsersView); !ok {
		return
	}
	user, err := a.auth.User(r.Context(), r.PathValue("id"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

func (a *API) userActors(w http.ResponseWriter, r *http.Request) {
	if _, ok := a.guardRBAC(w, r, auth.PermUsersView); !ok {
		return
	}
	actors, err := a.rbac.UserActors(r.Context(), r.PathValue("id"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, actors)
}

func (a *API) assignActor(w http.ResponseWriter, r *http.Request) {
	actx, ok := a.guardRBAC(w, r, auth.PermUsersEdit)
	if !ok {
		return
	}
	var req assignActorRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	req.ActorID = strings.TrimSpace(req.ActorID)
	if req.ActorID == "" {
		writeError(w, r, http.StatusBadRequest, "actor_id is required")
		return
	}
	userID := r.PathValue("id")
	link, err := a.rbac.AssignActor(r.Context(), userID, req.ActorID, actx.User.ID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	a.record(r.Context(), "rbac.user.assign_actor", map[string]any{"target_user_id": userID, "actor_id": req.ActorID})
	writeJSON(w, http.StatusCreated, link)
}

func (a *API) unassignActor(w http.ResponseWriter, r *http.Request) {
	if _, ok := a.guardRBAC(w, r, auth.PermUsersEdit); !ok {
		return
	}
	userID, actorID := r.PathValue("id"), r.PathValue("actorID")
	if err := a.rbac.UnassignActor(r.Context(), userID, actorID); err != nil {
		writeServiceError(w, r, err)
		return
	}
	a.record(r.Context(), "rbac.user.unassign_actor", map[string]any{"target_user_id": userID, "actor_id": actorID})
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) activateUser(w http.ResponseWriter, r *http.Request) {
	a.setUserActive(w, r, true)
}

func (a *API) deactivateUser(w http.ResponseWriter, r *http.Request) {
	a.setUserActive(w, r, false)
}

func (a *API) setUserActive(w http.ResponseWriter, r *http.Request, active bool) {
	if a.auth == nil {
		unavailable(w, r, "auth")
		return
	}
	if _, ok := a.requirePermission(w, r, auth.PermUsersEdit); !ok {
		return
	}
	var (
		user  *auth.User
		err   error
		event = "auth.user.deactivate"
	)
	if active {
		user, err = a.auth.Activate(r.Context(), r.PathValue("id"))
		event = "auth.user.activate"
	} else {
		user, err = a.auth.Deactivate(r.Context(), r.PathValue("id"))
	}
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	a.record(r.Context(), event, map[string]any{"target_user_id": user.ID})
	writeJSON(w, http.StatusOK, user)
}
