package cache

import "fmt"

// Key builders. Every derived entry has exactly one builder so readers and invalidators agree.

func UserKey(userID string) string { return "user:id:" + userID }

func UserEmailKey(email string) string { return "user:email:" + email }

// UserActorsKey holds the actor ids linked to a user.
func UserActorsKey(userID string) string { return "authz:user_actors:" + userID }

// ActorPermissionsKey holds an actor's view: the actor record and its active permissions.
func ActorPermissionsKey(actorID string) string { return "authz:actor_permissions:" + actorID }

// MarkerKey holds the token of the latest invalidation of key.
func MarkerKey(key string) string { return "inval:" + key }

func BlacklistKey(digest string) string { return "blacklist:token:" + digest }

func CompanyKey(companyID string) string { return "company:company:" + companyID }

func BranchKey(branchID string) string { return "company:branch:" + branchID }

func UserCompaniesKey(userID string) string { return "company:user_companies:" + userID }

func UserBranchesKey(userID string) string { return "company:user_branches:" + userID }

func CompanyBranchesKey(companyID string, activeOnly bool) string {
	shape := "all"
	if activeOnly {
		shape = "active"
	}
	return fmt.Sprintf("company:company_branches:%s:%s", companyID, shape)
}

func UserAccessKey(userID, branchID string) string {
	return fmt.Sprintf("company:user_access:%s:%s", userID, branchID)
}

func CompanyStatsKey(companyID string) string { return "company:stats:" + companyID }
