package httpapi

import (
	"net/http"
	"strconv"

	"recruitcore.io/internal/auth"
	"recruitcore.io/internal/directory"
)

type addMemberRequest struct {
	UserID string `json:"user_id"`
	Role   string `json:"role"`
}

func (a *API) routeDirectory() {
	a.mux.HandleFunc("POST /v1/companies", a.createCompany)
	a.mux.HandleFunc("GET /v1/companies/{id}", a.getCompany)
	a.mux.HandleFunc("PATCH /v1/companies/{id}", a.updateCompany)
	a.mux.HandleFunc("DELETE /v1/companies/{id}", a.deactivateCompany)
	a.mux.HandleFunc("GET /v1/companies/{id}/statistics", a.companyStatistics)
	a.mux.HandleFunc("GET /v1/companies/{id}/branches", a.companyBranches)
	a.mux.HandleFunc("POST /v1/companies/{id}/branches", a.createBranch)
	a.mux.HandleFunc("GET /v1/companies/{id}/members", a.companyMembers)
	a.mux.HandleFunc("POST /v1/companies/{id}/members", a.addMember)
	a.mux.HandleFunc("DELETE /v1/companies/{id}/members/{userID}", a.removeMember)

	a.mux.HandleFunc("GET /v1/branches/{id}", a.getBranch)
	a.mux.HandleFunc("PATCH /v1/branches/{id}", a.updateBranch)
	a.mux.HandleFunc("DELETE /v1/branches/{id}", a.deactivateBranch)
	a.mux.HandleFunc("GET /v1/branches/{id}/access", a.branchAccess)

	a.mux.HandleFunc("GET /v1/me/companies", a.myCompanies)
	a.mux.HandleFunc("GET /v1/me/branches", a.myBranches)
}

// guardDirectory checks the service is wired and the caller holds perm. An empty perm only
// requires authentication.
func (a *API) guardDirectory(w http.ResponseWriter, r *http.Request, perm string) (auth.AuthContext, bool) {
	if a.directory == nil {
		unavailable(w, r, "directory")
		return auth.AuthContext{}, false
	}
	if perm == "" {
		return currentUser(w, r)
	}
	return a.requirePermission(w, r, perm)
}

func (a *API) createCompany(w http.ResponseWriter, r *http.Request) {
	actx, ok := a.guardDirectory(w, r, auth.PermCompaniesCreate)
	if !ok {
		return
	}
	var req directory.CompanyInput
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	company, err := a.directory.CreateCompany(r.Context(), actx.User.ID, req)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	a.record(r.Context(), "directory.company.create", map[string]any{"company_id": company.ID, "name": company.Name})
	w.Header().Set("Location", "/v1/companies/"+company.ID)
	writeJSON(w, http.StatusCreated, company)
}

func (a *API) getCompany(w http.ResponseWriter, r *http.Request) {
	if _, ok := a.guardDirectory(w, r, auth.PermCompaniesView); !ok {
		return
	}
	company, hit, err := a.directory.Company(r.Context(), r.PathValue("id"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeCached(w, hit, company)
}

func (a *API) updateCompany(w http.ResponseWriter, r *http.Request) {
	actx, ok := a.guardDirectory(w, r, auth.PermCompaniesEdit)
	if !ok {
		return
	}
	var req directory.CompanyUpdate
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	company, err := a.directory.UpdateCompany(r.Context(), r.PathValue("id"), req, actx.User.ID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	a.record(r.Context(), "directory.company.update", map[string]any{"company_id": company.ID})
	writeJSON(w, http.StatusOK, company)
}

func (a *API) deactivateCompany(w http.ResponseWriter, r *http.Request) {
	actx, ok := a.guardDirectory(w, r, auth.PermCompaniesDelete)
	if !ok {
		return
	}
	id := r.PathValue("id")
	if err := a.directory.DeactivateCompany(r.Context(), id, actx.User.ID); err != nil {
		writeServiceError(w, r, err)
		return
	}
	a.record(r.Context(), "directory.company.deactivate", map[string]any{"company_id": id})
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) companyStatistics(w http.ResponseWriter, r *http.Request) {
	if _, ok := a.guardDirectory(w, r, auth.PermCompaniesView); !ok {
		return
	}
	stats, hit, err := a.directory.CompanyStatistics(r.Context(), r.PathValue("id"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeCached(w, hit, stats)
}

func (a *API) companyBranches(w http.ResponseWriter, r *http.Request) {
	if _, ok := a.guardDirectory(w, r, auth.PermBranchesList); !ok {
		return
	}
	only := true
	if v, err := strconv.ParseBool(r.URL.Query().Get("active_only")); err == nil {
		only = v
	}
	branches, hit, err := a.directory.CompanyBranches(r.Context(), r.PathValue("id"), only)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeCached(w, hit, branches)
}

func (a *API) createBranch(w http.ResponseWriter, r *http.Request) {
	actx, ok := a.guardDirectory(w, r, auth.PermBranchesCreate)
	if !ok {
		return
	}
	var req directory.BranchInput
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	branch, err := a.directory.CreateBranch(r.Context(), r.PathValue("id"), req, actx.User.ID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	a.record(r.Context(), "directory.branch.create", map[string]any{"branch_id": branch.ID, "company_id": branch.CompanyID})
	w.Header().Set("Location", "/v1/branches/"+branch.ID)
	writeJSON(w, http.StatusCreated, branch)
}

func (a *API) companyMembers(w http.ResponseWriter, r *http.Request) {
	if _, ok := a.guardDirectory(w, r, auth.PermCompaniesView); !ok {
		return
	}
	members, err := a.directory.Members(r.Context(), r.PathValue("id"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, members)
}

func (a *API) addMember(w http.ResponseWriter, r *http.Request) {
	actx, ok := a.guardDirectory(w, r, auth.PermMembersEdit)
	if !ok {
		return
	}
	var req addMemberRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	companyID := r.PathValue("id")
	member, err := a.directory.AddMember(r.Context(), companyID, req.UserID, req.Role, actx.User.ID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	a.record(r.Context(), "directory.member.add", map[string]any{
		"company_id":     companyID,
		"target_user_id": member.UserID,
		"role":           member.Role,
	})
	writeJSON(w, http.StatusCreated, member)
}

func (a *API) removeMember(w http.ResponseWriter, r *http.Request) {
	if _, ok := a.guardDirectory(w, r, auth.PermMembersEdit); !ok {
		return
	}
	companyID, userID := r.PathValue("id"), r.PathValue("userID")
	if err := a.directory.RemoveMember(r.Context(), companyID, userID); err != nil {
		writeServiceError(w, r, err)
		return
	}
	a.record(r.Context(), "directory.member.remove", map[string]any{"company_id": companyID, "target_user_id": userID})
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) getBranch(w http.ResponseWriter, r *http.Request) {
	if _, ok := a.guardDirectory(w, r, auth.PermBranchesView); !ok {
		return
	}
	branch, hit, err := a.directory.Branch(r.Context(), r.PathValue("id"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeCached(w, hit, branch)
}

func (a *API) updateBranch(w http.ResponseWriter, r *http.Request) {
	actx, ok := a.guardDirectory(w, r, auth.PermBranchesEdit)
	if !ok {
		return
	}
	var req directory.BranchUpdate
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	branch, err := a.directory.UpdateBranch(r.Context(), r.PathValue("id"), req, actx.User.ID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	a.record(r.Context(), "directory.branch.update", map[string]any{"branch_id": branch.ID})
	writeJSON(w, http.StatusOK, branch)
}

func (a *API) deactivateBranch(w http.ResponseWriter, r *http.Request) {
	actx, ok := a.guardDirectory(w, r, auth.PermBranchesDelete)
	if !ok {
		return
	}
	id := r.PathValue("id")
	if err := a.directory.DeactivateBranch(r.Context(), id, actx.User.ID); err != nil {
		writeServiceError(w, r, err)
		return
	}
	a.record(r.Context(), "directory.branch.deactivate", map[string]any{"branch_id": id})
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) branchAccess(w http.ResponseWriter, r *http.Request) {
	actx, ok := a.guardDirectory(w, r, "")
	if !ok {
		return
	}
	branchID := r.PathValue("id")
	allowed, hit, err := a.directory.ValidateUserAccess(r.Context(), actx.User.ID, branchID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeCached(w, hit, map[string]any{"branch_id": branchID, "has_access": allowed})
}

func (a *API) myCompanies(w http.ResponseWriter, r *http.Request) {
	actx, ok := a.guardDirectory(w, r, "")
	if !ok {
		return
	}
	companies, hit, err := a.directory.UserCompanies(r.Context(), actx.User.ID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeCached(w, hit, companies)
}

func (a *API) myBranches(w http.ResponseWriter, r *http.Request) {
	actx, ok := a.guardDirectory(w, r, "")
	if !ok {
		return
	}
	branches, hit, err := a.directory.UserBranches(r.Context(), actx.User.ID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeCached(w, hit, branches)
}
