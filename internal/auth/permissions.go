package auth

// Permissions checked by the admin and directory endpoints.
const (
	PermPermissionsView   = "permissions:view"
	PermPermissionsList   = "permissions:list"
	PermPermissionsCreate = "permissions:create"
	PermPermissionsEdit   = "permissions:edit"
	PermPermissionsDelete = "permissions:delete"

	PermActorsView   = "actors:view"
	PermActorsList   = "actors:list"
	PermActorsCreate = "actors:create"
	PermActorsEdit   = "actors:edit"
	PermActorsDelete = "actors:delete"

	PermUsersView = "users:view"
	PermUsersEdit = "users:edit"

	PermCompaniesView   = "companies:view"
	PermCompaniesList   = "companies:list"
	PermCompaniesCreate = "companies:create"
	PermCompaniesEdit   = "companies:edit"
	PermCompaniesDelete = "companies:delete"

	PermBranchesView   = "company_branches:view"
	PermBranchesList   = "company_branches:list"
	PermBranchesCreate = "company_branches:create"
	PermBranchesEdit   = "company_branches:edit"
	PermBranchesDelete = "company_branches:delete"

	PermMembersEdit = "user_companies:edit"
)

// DefaultCollections receive view, create, edit, delete and list permissions at seed time.
var DefaultCollections = []string{
	"users",
	"companies",
	"user_companies",
	"actor_permissions",
	"permissions",
	"actors",
	"user_actors",
	"company_branches",
	"job_requirements",
	"candidate_evaluations",
	"email_otps",
	"resume_files",
	"screening_results",
	"ai_models",
	"job_applications",
}

// DefaultActions are the per-collection actions.
var DefaultActions = []string{"view", "create", "edit", "delete", "list"}

// SpecialPermissions are seeded alongside the per-collection ones.
var SpecialPermissions = []Permission{
	{Name: "resume_files:upload", Description: "Permission to upload resume files"},
	{Name: "resume_files:parse", Description: "Permission to parse resume files"},
	{Name: "resume_files:screen", Description: "Permission to screen resumes"},
	{Name: "screening_results:evaluate", Description: "Permission to evaluate screening results"},
	{Name: "ai_models:train", Description: "Permission to train AI models"},
	{Name: "ai_models:deploy", Description: "Permission to deploy AI models"},
	{Name: "jobs:match", Description: "Permission to match jobs with resumes"},
	{Name: "jobs:bulk_screen", Description: "Permission to bulk screen resumes"},
}

// DefaultActor describes a seeded actor. Patterns are anchored regular expressions expanded
// into concrete permission links when seeding.
type DefaultActor struct {
	Name        string
	Description string
	IsSystem    bool
	Patterns    []string
}

var DefaultActors = []DefaultActor{
	{
		Name:        ActorAdministrator,
		Description: "Full system administrator with all permissions",
		IsSystem:    true,
		Patterns:    []string{`^.*$`},
	},
	{
		Name:        ActorRecruiter,
		Description: "Recruiter with permissions to manage jobs and screen resumes",
		Patterns: []string{
			`^users:view$`,
			`^users:list$`,
			`^companies:view$`,
			`^companies:list$`,
			`^company_branches:view$`,
			`^company_branches:list$`,
			`^job_requirements:.*$`,
			`^resume_files:.*$`,
			`^screening_results:.*$`,
			`^candidate_evaluations:.*$`,
			`^jobs:.*$`,
		},
	},
	{
		Name:        ActorCandidate,
		Description: "Candidate with permissions to view and apply for jobs",
		Patterns: []string{
			`^users:view$`,
			`^users:edit$`,
			`^job_requirements:view$`,
			`^job_requirements:list$`,
			`^resume_files:upload$`,
			`^resume_files:view$`,
			`^resume_files:edit$`,
			`^resume_files:delete$`,
			`^screening_results:view$`,
			`^candidate_evaluations:view$`,
		},
	},
}

// CatalogPermissions returns every permission the seed ensures, collection permissions first.
func CatalogPermissions() []Permission {
	out := make([]Permission, 0, len(DefaultCollections)*len(DefaultActions)+len(SpecialPermissions))
	for _, coll := range DefaultCollections {
		for _, action := range DefaultActions {
			out = append(out, Permission{
				Name:        coll + ":" + action,
				Description: "Permission to " + action + " " + coll,
			})
		}
	}
	return append(out, SpecialPermissions...)
}
