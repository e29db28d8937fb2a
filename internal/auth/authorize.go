package auth

import "strings"

// Names of the seeded actors.
const (
	ActorAdministrator = "Administrator"
	ActorRecruiter     = "Recruiter"
	ActorCandidate     = "Candidate"
)

// AuthContext is the authorization context of one request: the user, the active actors it
// holds and the union of their active permissions. Claims is set when the context came from a
// bearer token.
type AuthContext struct {
	User        *User
	Actors      []Actor
	Permissions []Permission
	Claims      *Claims

	permSet  map[string]struct{}
	actorSet map[string]struct{}
}

// NewAuthContext indexes actors and permissions for constant-time checks.
func NewAuthContext(user *User, actors []Actor, perms []Permission) AuthContext {
	actx := AuthContext{
		User:        user,
		Actors:      actors,
		Permissions: perms,
		permSet:     make(map[string]struct{}, len(perms)),
		actorSet:    make(map[string]struct{}, len(actors)),
	}
	for _, p := range perms {
		actx.permSet[p.Name] = struct{}{}
	}
	for _, a := range actors {
		actx.actorSet[strings.ToLower(a.Name)] = struct{}{}
	}
	return actx
}

// HasPermission is an exact match; there is no wildcard expansion at check time.
func (a AuthContext) HasPermission(name string) bool {
	_, ok := a.permSet[name]
	return ok
}

func (a AuthContext) HasAnyPermission(names ...string) bool {
	for _, n := range names {
		if a.HasPermission(n) {
			return true
		}
	}
	return false
}

// HasAllPermissions is true for an empty list.
func (a AuthContext) HasAllPermissions(names ...string) bool {
	for _, n := range names {
		if !a.HasPermission(n) {
			return false
		}
	}
	return true
}

// HasScope reports whether the token carried scope when it was issued. Scopes are a snapshot
// and never used for authorization.
func (a AuthContext) HasScope(scope string) bool {
	if a.Claims == nil {
		return false
	}
	for _, s := range a.Claims.Scopes {
		if s == scope {
			return true
		}
	}
	return false
}

// HasActor matches actor names case-insensitively.
func (a AuthContext) HasActor(name string) bool {
	_, ok := a.actorSet[strings.ToLower(name)]
	return ok
}

func (a AuthContext) IsAdmin() bool     { return a.HasActor(ActorAdministrator) }
func (a AuthContext) IsRecruiter() bool { return a.HasActor(ActorRecruiter) }
func (a AuthContext) IsCandidate() bool { return a.HasActor(ActorCandidate) }

func (a AuthContext) PermissionNames() []string {
	out := make([]string, 0, len(a.Permissions))
	for _, p := range a.Permissions {
		out = append(out, p.Name)
	}
	return out
}

func (a AuthContext) ActorNames() []string {
	out := make([]string, 0, len(a.Actors))
	for _, ac := range a.Actors {
		out = append(out, ac.Name)
	}
	return out
}

// Summary is the externally visible shape of an AuthContext.
type Summary struct {
	User        *User    `json:"user"`
	Actors      []string `json:"actors"`
	Permissions []string `json:"permissions"`
	IsAdmin     bool     `json:"is_admin"`
	IsRecruiter bool     `json:"is_recruiter"`
	IsCandidate bool     `json:"is_candidate"`
}

func (a AuthContext) Summary() Summary {
	return Summary{
		User:        a.User,
		Actors:      a.ActorNames(),
		Permissions: a.PermissionNames(),
		IsAdmin:     a.IsAdmin(),
		IsRecruiter: a.IsRecruiter(),
		IsCandidate: a.IsCandidate(),
	}
}

// LoginScopes is the scopes snapshot embedded in tokens: role:<actor> and perm:<permission>.
func LoginScopes(a AuthContext) []string {
	out := make([]string, 0, len(a.Actors)+len(a.Permissions))
	for _, ac := range a.Actors {
		out = append(out, "role:"+ac.Name)
	}
	for _, p := range a.Permissions {
		out = append(out, "perm:"+p.Name)
	}
	return out
}
