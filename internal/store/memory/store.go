// Package memory implements every repository contract in process. It backs single-instance
// deployments (STORE_BACKEND=memory) and tests.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"

	"recruitcore.io/internal/auth"
	"recruitcore.io/internal/directory"
)

// Store keeps all collections behind one lock and hands out copies.
type Store struct {
	mu sync.RWMutex

	users       map[string]auth.User
	actors      map[string]auth.Actor
	permissions map[string]auth.Permission
	actorPerms  map[string]auth.ActorPermission
	userActors  map[string]auth.UserActor

	companies map[string]directory.Company
	branches  map[string]directory.Branch
	members   map[string]directory.Membership
}

var (
	_ auth.Store           = (*Store)(nil)
	_ directory.Repository = (*Store)(nil)
)

func New() *Store {
	return &Store{
		users:       make(map[string]auth.User),
		actors:      make(map[string]auth.Actor),
		permissions: make(map[string]auth.Permission),
		actorPerms:  make(map[string]auth.ActorPermission),
		userActors:  make(map[string]auth.UserActor),
		companies:   make(map[string]directory.Company),
		branches:    make(map[string]directory.Branch),
		members:     make(map[string]directory.Membership),
	}
}

// Ping always succeeds; it lets the store serve as a readiness dependency.
func (s *Store) Ping(context.Context) error { return nil }

func (s *Store) Users(context.Context) auth.UserStore             { return userStore{s} }
func (s *Store) Actors(context.Context) auth.ActorStore           { return actorStore{s} }
func (s *Store) Permissions(context.Context) auth.PermissionStore { return permissionStore{s} }
func (s *Store) Links(context.Context) auth.LinkStore             { return linkStore{s} }

func (s *Store) Companies(context.Context) directory.CompanyStore { return companyStore{s} }
func (s *Store) Branches(context.Context) directory.BranchStore   { return branchStore{s} }
func (s *Store) Members(context.Context) directory.MemberStore    { return memberStore{s} }

type userStore struct{ s *Store }

func (u userStore) Create(_ context.Context, user *auth.User) error {
	u.s.mu.Lock()
	defer u.s.mu.Unlock()
	if _, ok := u.s.users[user.ID]; ok {
		return auth.ErrAlreadyExists
	}
	for _, existing := range u.s.users {
		if strings.EqualFold(existing.Email, user.Email) {
			return auth.ErrAlreadyExists
		}
	}
	u.s.users[user.ID] = *user
	return nil
}

func (u userStore) Update(_ context.Context, user *auth.User) error {
	u.s.mu.Lock()
	defer u.s.mu.Unlock()
	if _, ok := u.s.users[user.ID]; !ok {
		return auth.ErrNotFound
	}
	for id, existing := range u.s.users {
		if id != user.ID && strings.EqualFold(existing.Email, user.Email) {
			return auth.ErrAlreadyExists
		}
	}
	u.s.users[user.ID] = *user
	return nil
}

func (u userStore) FindByID(_ context.Context, id string) (*auth.User, error) {
	u.s.mu.RLock()
	defer u.s.mu.RUnlock()
	user, ok := u.s.users[id]
	if !ok {
		return nil, auth.ErrNotFound
	}
	return &user, nil
}

func (u userStore) FindByEmail(_ context.Context, email string) (*auth.User, error) {
	u.s.mu.RLock()
	defer u.s.mu.RUnlock()
	for _, user := range u.s.users {
		if strings.EqualFold(user.Email, email) {
			out := user
			return &out, nil
		}
	}
	return nil, auth.ErrNotFound
}

type actorStore struct{ s *Store }

func (a actorStore) Create(_ context.Context, actor *auth.Actor) error {
	a.s.mu.Lock()
	defer a.s.mu.Unlock()
	if _, ok := a.s.actors[actor.ID]; ok {
		return auth.ErrAlreadyExists
	}
	for _, existing := range a.s.actors {
		if existing.Name == actor.Name {
			return auth.ErrAlreadyExists
		}
	}
	a.s.actors[actor.ID] = *actor
	return nil
}

func (a actorStore) Update(_ context.Context, actor *auth.Actor) error {
	a.s.mu.Lock()
	defer a.s.mu.Unlock()
	if _, ok := a.s.actors[actor.ID]; !ok {
		return auth.ErrNotFound
	}
	for id, existing := range a.s.actors {
		if id != actor.ID && existing.Name == actor.Name {
			return auth.ErrAlreadyExists
		}
	}
	a.s.actors[actor.ID] = *actor
	return nil
}

func (a actorStore) Delete(_ context.Context, id string) error {
	a.s.mu.Lock()
	defer a.s.mu.Unlock()
	if _, ok := a.s.actors[id]; !ok {
		return auth.ErrNotFound
	}
	delete(a.s.actors, id)
	return nil
}

func (a actorStore) FindByID(_ context.Context, id string) (*auth.Actor, error) {
	a.s.mu.RLock()
	defer a.s.mu.RUnlock()
	actor, ok := a.s.actors[id]
	if !ok {
		return nil, auth.ErrNotFound
	}
	return &actor, nil
}

func (a actorStore) FindByName(_ context.Context, name string) (*auth.Actor, error) {
	a.s.mu.RLock()
	defer a.s.mu.RUnlock()
	for _, actor := range a.s.actors {
		if actor.Name == name {
			out := actor
			return &out, nil
		}
	}
	return nil, auth.ErrNotFound
}

func (a actorStore) FindByIDs(_ context.Context, ids []string, activeOnly bool) ([]auth.Actor, error) {
	a.s.mu.RLock()
	defer a.s.mu.RUnlock()
	out := make([]auth.Actor, 0, len(ids))
	for _, id := range dedupe(ids) {
		actor, ok := a.s.actors[id]
		if !ok || (activeOnly && !actor.IsActive) {
			continue
		}
		out = append(out, actor)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (a actorStore) List(_ context.Context, activeOnly bool) ([]auth.Actor, error) {
	a.s.mu.RLock()
	defer a.s.mu.RUnlock()
	out := make([]auth.Actor, 0, len(a.s.actors))
	for _, actor := range a.s.actors {
		if activeOnly && !actor.IsActive {
			continue
		}
		out = append(out, actor)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

type permissionStore struct{ s *Store }

func (p permissionStore) Create(_ context.Context, perm *auth.Permission) error {
	p.s.mu.Lock()
	defer p.s.mu.Unlock()
	if _, ok := p.s.permissions[perm.ID]; ok {
		return auth.ErrAlreadyExists
	}
	for _, existing := range p.s.permissions {
		if existing.Name == perm.Name {
			return auth.ErrAlreadyExists
		}
	}
	p.s.permissions[perm.ID] = *perm
	return nil
}

func (p permissionStore) Update(_ context.Context, perm *auth.Permission) error {
	p.s.mu.Lock()
	defer p.s.mu.Unlock()
	if _, ok := p.s.permissions[perm.ID]; !ok {
		return auth.ErrNotFound
	}
	for id, existing := range p.s.permissions {
		if id != perm.ID && existing.Name == perm.Name {
			return auth.ErrAlreadyExists
		}
	}
	p.s.permissions[perm.ID] = *perm
	return nil
}

func (p permissionStore) FindByID(_ context.Context, id string) (*auth.Permission, error) {
	p.s.mu.RLock()
	defer p.s.mu.RUnlock()
	perm, ok := p.s.permissions[id]
	if !ok {
		return nil, auth.ErrNotFound
	}
	return &perm, nil
}

func (p permissionStore) FindByName(_ context.Context, name string) (*auth.Permission, error) {
	p.s.mu.RLock()
	defer p.s.mu.RUnlock()
	for _, perm := range p.s.permissions {
		if perm.Name == name {
			out := perm
			return &out, nil
		}
	}
	return nil, auth.ErrNotFound
}

func (p permissionStore) FindByIDs(_ context.Context, ids []string, activeOnly bool) ([]auth.Permission, error) {
	p.s.mu.RLock()
	defer p.s.mu.RUnlock()
	out := make([]auth.Permission, 0, len(ids))
	for _, id := range dedupe(ids) {
		perm, ok := p.s.permissions[id]
		if !ok || (activeOnly && !perm.IsActive) {
			continue
		}
		out = append(out, perm)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (p permissionStore) List(_ context.Context, activeOnly bool) ([]auth.Permission, error) {
	p.s.mu.RLock()
	defer p.s.mu.RUnlock()
	out := make([]auth.Permission, 0, len(p.s.permissions))
	for _, perm := range p.s.permissions {
		if activeOnly && !perm.IsActive {
			continue
		}
		out = append(out, perm)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

type linkStore struct{ s *Store }

func (l linkStore) AddActorPermission(_ context.Context, link *auth.ActorPermission) error {
	l.s.mu.Lock()
	defer l.s.mu.Unlock()
	for _, existing := range l.s.actorPerms {
		if existing.ActorID == link.ActorID && existing.PermissionID == link.PermissionID {
			return auth.ErrAlreadyExists
		}
	}
	l.s.actorPerms[link.ID] = *link
	return nil
}

func (l linkStore) RemoveActorPermission(_ context.Context, actorID, permissionID string) error {
	l.s.mu.Lock()
	defer l.s.mu.Unlock()
	for id, existing := range l.s.actorPerms {
		if existing.ActorID == actorID && existing.PermissionID == permissionID {
			delete(l.s.actorPerms, id)
			return nil
		}
	}
	return auth.ErrNotFound
}

func (l linkStore) ActorPermissionLinks(_ context.Context, actorIDs []string) ([]auth.ActorPermission, error) {
	want := set(actorIDs)
	l.s.mu.RLock()
	defer l.s.mu.RUnlock()
	var out []auth.ActorPermission
	for _, link := range l.s.actorPerms {
		if _, ok := want[link.ActorID]; ok {
			out = append(out, link)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (l linkStore) ActorsWithPermission(_ context.Context, permissionID string) ([]string, error) {
	l.s.mu.RLock()
	defer l.s.mu.RUnlock()
	var out []string
	for _, link := range l.s.actorPerms {
		if link.PermissionID == permissionID {
			out = append(out, link.ActorID)
		}
	}
	return dedupe(out), nil
}

func (l linkStore) RemoveActorLinks(_ context.Context, actorID string) error {
	l.s.mu.Lock()
	defer l.s.mu.Unlock()
	for id, link := range l.s.actorPerms {
		if link.ActorID == actorID {
			delete(l.s.actorPerms, id)
		}
	}
	for id, link := range l.s.userActors {
		if link.ActorID == actorID {
			delete(l.s.userActors, id)
		}
	}
	return nil
}

func (l linkStore) AddUserActor(_ context.Context, link *auth.UserActor) error {
	l.s.mu.Lock()
	defer l.s.mu.Unlock()
	for _, existing := range l.s.userActors {
		if existing.UserID == link.UserID && existing.ActorID == link.ActorID {
			return auth.ErrAlreadyExists
		}
	}
	l.s.userActors[link.ID] = *link
	return nil
}

func (l linkStore) RemoveUserActor(_ context.Context, userID, actorID string) error {
	l.s.mu.Lock()
	defer l.s.mu.Unlock()
	for id, existing := range l.s.userActors {
		if existing.UserID == userID && existing.ActorID == actorID {
			delete(l.s.userActors, id)
			return nil
		}
	}
	return auth.ErrNotFound
}

func (l linkStore) UserActorLinks(_ context.Context, userID string) ([]auth.UserActor, error) {
	l.s.mu.RLock()
	defer l.s.mu.RUnlock()
	var out []auth.UserActor
	for _, link := range l.s.userActors {
		if link.UserID == userID {
			out = append(out, link)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (l linkStore) UsersWithActor(_ context.Context, actorID string) ([]string, error) {
	l.s.mu.RLock()
	defer l.s.mu.RUnlock()
	var out []string
	for _, link := range l.s.userActors {
		if link.ActorID == actorID {
			out = append(out, link.UserID)
		}
	}
	return dedupe(out), nil
}

func set(values []string) map[string]struct{} {
	out := make(map[string]struct{}, len(values))
	for _, v := range values {
		out[v] = struct{}{}
	}
	return out
}

// dedupe returns the distinct values sorted.
func dedupe(values []string) []string {
	seen := set(values)
	out := make([]string, 0, len(seen))
	for v := range seen {
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}
