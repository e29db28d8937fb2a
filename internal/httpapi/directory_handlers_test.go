package httpapi

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"

	"recruitcore.io/internal/directory"
)

func TestCompanyReadsReportCacheStatus(t *testing.T) {
	api := newTestAPI(t)
	admin := api.adminToken()

	var company directory.Company
	resp := api.do(http.MethodPost, "/v1/companies", admin, directory.CompanyInput{Name: "Acme Hiring", Email: "hr@acme.test"})
	api.expect(resp, http.StatusCreated, &company)
	require.Equal(t, "/v1/companies/"+company.ID, resp.Header.Get("Location"))

	resp = api.do(http.MethodGet, "/v1/companies/"+company.ID, admin, nil)
	api.expect(resp, http.StatusOK, nil)
	require.Equal(t, "MISS", resp.Header.Get("X-Cache"))

	resp = api.do(http.MethodGet, "/v1/companies/"+company.ID, admin, nil)
	api.expect(resp, http.StatusOK, nil)
	require.Equal(t, "HIT", resp.Header.Get("X-Cache"))

	name := "Acme Talent"
	api.expect(api.do(http.MethodPatch, "/v1/companies/"+company.ID, admin, directory.CompanyUpdate{Name: &name}), http.StatusOK, nil)

	resp = api.do(http.MethodGet, "/v1/companies/"+company.ID, admin, nil)
	api.expect(resp, http.StatusOK, &company)
	require.Equal(t, "MISS", resp.Header.Get("X-Cache"))
	require.Equal(t, "Acme Talent", company.Name)
}

func TestBranchAccessFollowsMembership(t *testing.T) {
	api := newTestAPI(t)
	admin := api.adminToken()
	user := api.registerActive("mia@example.com", "correct-horse")
	token := api.login("mia@example.com", "correct-horse").AccessToken

	var company directory.Company
	api.expect(api.do(http.MethodPost, "/v1/companies", admin, directory.CompanyInput{Name: "Globex"}), http.StatusCreated, &company)
	var branch directory.Branch
	api.expect(api.do(http.MethodPost, "/v1/companies/"+company.ID+"/branches", admin, directory.BranchInput{Name: "Almaty", City: "Almaty"}), http.StatusCreated, &branch)

	var access map[string]any
	api.expect(api.do(http.MethodGet, "/v1/branches/"+branch.ID+"/access", token, nil), http.StatusOK, &access)
	require.Equal(t, false, access["has_access"])

	var member directory.Membership
	api.expect(api.do(http.MethodPost, "/v1/companies/"+company.ID+"/members", admin, addMemberRequest{UserID: user.ID, Role: directory.RoleManager}), http.StatusCreated, &member)
	require.Equal(t, directory.RoleManager, member.Role)
	api.expect(api.do(http.MethodPost, "/v1/companies/"+company.ID+"/members", admin, addMemberRequest{UserID: user.ID}), http.StatusConflict, nil)

	resp := api.do(http.MethodGet, "/v1/branches/"+branch.ID+"/access", token, nil)
	api.expect(resp, http.StatusOK, &access)
	require.Equal(t, true, access["has_access"])
	require.Equal(t, "MISS", resp.Header.Get("X-Cache"))

	var companies []directory.MemberCompany
	api.expect(api.do(http.MethodGet, "/v1/me/companies", token, nil), http.StatusOK, &companies)
	require.Len(t, companies, 1)
	require.Equal(t, directory.RoleManager, companies[0].Role)

	var branches []directory.Branch
	api.expect(api.do(http.MethodGet, "/v1/me/branches", token, nil), http.StatusOK, &branches)
	require.Len(t, branches, 1)

	api.expect(api.do(http.MethodDelete, "/v1/companies/"+company.ID+"/members/"+user.ID, admin, nil), http.StatusNoContent, nil)
	api.expect(api.do(http.MethodGet, "/v1/branches/"+branch.ID+"/access", token, nil), http.StatusOK, &access)
	require.Equal(t, false, access["has_access"])
}

func TestCompanyStatisticsAndDeactivation(t *testing.T) {
	api := newTestAPI(t)
	admin := api.adminToken()

	var company directory.Company
	api.expect(api.do(http.MethodPost, "/v1/companies", admin, directory.CompanyInput{Name: "Initech"}), http.StatusCreated, &company)
	for _, city := range []string{"Astana", "Shymkent"} {
		api.expect(api.do(http.MethodPost, "/v1/companies/"+company.ID+"/branches", admin, directory.BranchInput{Name: city}), http.StatusCreated, nil)
	}

	var stats directory.Statistics
	api.expect(api.do(http.MethodGet, "/v1/companies/"+company.ID+"/statistics", admin, nil), http.StatusOK, &stats)
	require.Equal(t, 2, stats.BranchCount)
	require.Equal(t, 1, stats.MemberCount)

	var members []directory.Membership
	api.expect(api.do(http.MethodGet, "/v1/companies/"+company.ID+"/members", admin, nil), http.StatusOK, &members)
	require.Len(t, members, 1)
	require.Equal(t, directory.RoleOwner, members[0].Role)

	var branches []directory.Branch
	api.expect(api.do(http.MethodGet, "/v1/companies/"+company.ID+"/branches", admin, nil), http.StatusOK, &branches)
	require.Len(t, branches, 2)

	api.expect(api.do(http.MethodDelete, "/v1/branches/"+branches[0].ID, admin, nil), http.StatusNoContent, nil)
	api.expect(api.do(http.MethodGet, "/v1/companies/"+company.ID+"/branches", admin, nil), http.StatusOK, &branches)
	require.Len(t, branches, 1)
	api.expect(api.do(http.MethodGet, "/v1/companies/"+company.ID+"/branches?active_only=false", admin, nil), http.StatusOK, &branches)
	require.Len(t, branches, 2)

	api.expect(api.do(http.MethodDelete, "/v1/companies/"+company.ID, admin, nil), http.StatusNoContent, nil)
	api.expect(api.do(http.MethodGet, "/v1/companies/"+company.ID, admin, nil), http.StatusOK, &company)
	require.False(t, company.IsActive)
}

func TestDirectoryRequiresPermission(t *testing.T) {
	api := newTestAPI(t)
	api.registerActive("cam@example.com", "correct-horse")
	token := api.login("cam@example.com", "correct-horse").AccessToken

	api.expect(api.do(http.MethodPost, "/v1/companies", token, directory.CompanyInput{Name: "Nope"}), http.StatusForbidden, nil)
	api.expect(api.do(http.MethodGet, "/v1/me/companies", token, nil), http.StatusOK, nil)
	api.expect(api.do(http.MethodGet, "/v1/me/companies", "", nil), http.StatusUnauthorized, nil)
}
