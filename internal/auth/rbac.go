package auth

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"recruitcore.io/internal/ids"
)

var permissionNamePattern = regexp.MustCompile(`^[a-z][a-z0-9_]*:[a-z][a-z0-9_]*$`)

// PermissionInput creates a permission.
type PermissionInput struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// PermissionUpdate patches a permission; nil fields are left unchanged.
type PermissionUpdate struct {
	Name        *string `json:"name"`
	Description *string `json:"description"`
	IsActive    *bool   `json:"is_active"`
}

// ActorInput creates an actor.
type ActorInput struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	IsDefault   bool   `json:"is_default"`
}

// ActorUpdate patches an actor; nil fields are left unchanged.
type ActorUpdate struct {
	Name        *string `json:"name"`
	Description *string `json:"description"`
	IsActive    *bool   `json:"is_active"`
	IsDefault   *bool   `json:"is_default"`
}

// AssignResult reports per-id outcomes of a bulk grant.
type AssignResult struct {
	Assigned []string `json:"assigned"`
	Skipped  []string `json:"skipped"`
	Missing  []string `json:"missing"`
}

// RBACService administers actors, permissions and their links. Every mutation invalidates the
// derived authorization entries before it returns.
type RBACService struct {
	store    Store
	resolver *Resolver
	now      func() time.Time
}

func NewRBACService(store Store, resolver *Resolver) (*RBACService, error) {
	if store == nil || resolver == nil {
		return nil, errors.New("rbac store and resolver are required")
	}
	return &RBACService{store: store, resolver: resolver, now: time.Now}, nil
}

func (s *RBACService) CreatePermission(ctx context.Context, in PermissionInput) (*Permission, error) {
	name := strings.TrimSpace(in.Name)
	if !permissionNamePattern.MatchString(name) {
		return nil, fmt.Errorf("%w: permission name must look like resource:action", ErrInvalidInput)
	}
	ps := s.store.Permissions(ctx)
	if _, err := ps.FindByName(ctx, name); err == nil {
		return nil, fmt.Errorf("%w: permission %s", ErrAlreadyExists, name)
	} else if !isNotFound(err) {
		return nil, err
	}
	ts := s.now().UTC()
	perm := &Permission{
		ID:          ids.New(),
		Name:        name,
		Description: strings.TrimSpace(in.Description),
		IsActive:    true,
		CreatedAt:   ts,
		UpdatedAt:   ts,
	}
	if err := ps.Create(ctx, perm); err != nil {
		return nil, err
	}
	return perm, nil
}

func (s *RBACService) Permission(ctx context.Context, id string) (*Permission, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, fmt.Errorf("%w: permission_id is required", ErrInvalidInput)
	}
	return s.store.Permissions(ctx).FindByID(ctx, id)
}

func (s *RBACService) ListPermissions(ctx context.Context, activeOnly bool) ([]Permission, error) {
	return s.store.Permissions(ctx).List(ctx, activeOnly)
}

func (s *RBACService) UpdatePermission(ctx context.Context, id string, upd PermissionUpdate) (*Permission, error) {
	perm, err := s.Permission(ctx, id)
	if err != nil {
		return nil, err
	}
	ps := s.store.Permissions(ctx)
	if upd.Name != nil {
		name := strings.TrimSpace(*upd.Name)
		if !permissionNamePattern.MatchString(name) {
			return nil, fmt.Errorf("%w: permission name must look like resource:action", ErrInvalidInput)
		}
		if name != perm.Name {
			if _, err := ps.FindByName(ctx, name); err == nil {
				return nil, fmt.Errorf("%w: permission %s", ErrAlreadyExists, name)
			} else if !isNotFound(err) {
				return nil, err
			}
			perm.Name = name
		}
	}
	if upd.Description != nil {
		perm.Description = strings.TrimSpace(*upd.Description)
	}
	if upd.IsActive != nil {
		perm.IsActive = *upd.IsActive
	}
	perm.UpdatedAt = s.now().UTC()
	// Linked actors are read before the write; once the write is attempted their views are
	// dropped no matter how it ends.
	actorIDs, err := s.store.Links(ctx).ActorsWithPermission(ctx, perm.ID)
	if err != nil {
		return nil, fmt.Errorf("find actors with permission: %w", err)
	}
	defer s.resolver.InvalidateActors(ctx, actorIDs...)
	if err := ps.Update(ctx, perm); err != nil {
		return nil, err
	}
	return perm, nil
}

// DeactivatePermission is the soft delete; links are kept but the permission stops resolving.
func (s *RBACService) DeactivatePermission(ctx context.Context, id string) error {
	inactive := false
	_, err := s.UpdatePermission(ctx, id, PermissionUpdate{IsActive: &inactive})
	return err
}

func (s *RBACService) CreateActor(ctx context.Context, in ActorInput) (*Actor, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, fmt.Errorf("%w: actor name is required", ErrInvalidInput)
	}
	as := s.store.Actors(ctx)
	if _, err := as.FindByName(ctx, name); err == nil {
		return nil, fmt.Errorf("%w: actor %s", ErrAlreadyExists, name)
	} else if !isNotFound(err) {
		return nil, err
	}
	ts := s.now().UTC()
	actor := &Actor{
		ID:          ids.New(),
		Name:        name,
		Description: strings.TrimSpace(in.Description),
		IsActive:    true,
		IsDefault:   in.IsDefault,
		CreatedAt:   ts,
		UpdatedAt:   ts,
	}
	if err := as.Create(ctx, actor); err != nil {
		return nil, err
	}
	return actor, nil
}

func (s *RBACService) Actor(ctx context.Context, id string) (*Actor, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, fmt.Errorf("%w: actor_id is required", ErrInvalidInput)
	}
	return s.store.Actors(ctx).FindByID(ctx, id)
}

func (s *RBACService) ListActors(ctx context.Context, activeOnly bool) ([]Actor, error) {
	return s.store.Actors(ctx).List(ctx, activeOnly)
}

// UpdateActor patches an actor. System actors keep their name and stay active.
func (s *RBACService) UpdateActor(ctx context.Context, id string, upd ActorUpdate) (*Actor, error) {
	actor, err := s.Actor(ctx, id)
	if err != nil {
		return nil, err
	}
	as := s.store.Actors(ctx)
	if upd.Name != nil {
		name := strings.TrimSpace(*upd.Name)
		if name == "" {
			return nil, fmt.Errorf("%w: actor name is required", ErrInvalidInput)
		}
		if name != actor.Name {
			if actor.IsSystem {
				return nil, fmt.Errorf("%w: %s cannot be renamed", ErrProtected, actor.Name)
			}
			if _, err := as.FindByName(ctx, name); err == nil {
				return nil, fmt.Errorf("%w: actor %s", ErrAlreadyExists, name)
			} else if !isNotFound(err) {
				return nil, err
			}
			actor.Name = name
		}
	}
	if upd.IsActive != nil {
		if actor.IsSystem && !*upd.IsActive {
			return nil, fmt.Errorf("%w: %s cannot be deactivated", ErrProtected, actor.Name)
		}
		actor.IsActive = *upd.IsActive
	}
	if upd.Description != nil {
		actor.Description = strings.TrimSpace(*upd.Description)
	}
	if upd.IsDefault != nil {
		actor.IsDefault = *upd.IsDefault
	}
	actor.UpdatedAt = s.now().UTC()
	if err := as.Update(ctx, actor); err != nil {
		return nil, err
	}
	s.resolver.InvalidateActors(ctx, actor.ID)
	return actor, nil
}

// DeleteActor removes a non-system actor and every link that references it.
func (s *RBACService) DeleteActor(ctx context.Context, id string) error {
	actor, err := s.Actor(ctx, id)
	if err != nil {
		return err
	}
	if actor.IsSystem {
		return fmt.Errorf("%w: %s cannot be deleted", ErrProtected, actor.Name)
	}
	links := s.store.Links(ctx)
	users, err := links.UsersWithActor(ctx, actor.ID)
	if err != nil {
		return err
	}
	if err := links.RemoveActorLinks(ctx, actor.ID); err != nil {
		return err
	}
	if err := s.store.Actors(ctx).Delete(ctx, actor.ID); err != nil {
		return err
	}
	s.resolver.InvalidateActors(ctx, actor.ID)
	s.resolver.InvalidateUserActors(ctx, users...)
	return nil
}

// AssignPermissions grants each permission id to the actor. Existing links are reported as
// skipped and unknown ids as missing.
func (s *RBACService) AssignPermissions(ctx context.Context, actorID string, permissionIDs []string, by string) (AssignResult, error) {
	actor, err := s.Actor(ctx, actorID)
	if err != nil {
		return AssignResult{}, err
	}
	wanted := dedupeStrings(permissionIDs)
	if len(wanted) == 0 {
		return AssignResult{}, fmt.Errorf("%w: permission_ids are required", ErrInvalidInput)
	}
	res := AssignResult{Assigned: []string{}, Skipped: []string{}, Missing: []string{}}
	ps := s.store.Permissions(ctx)
	links := s.store.Links(ctx)
	defer s.resolver.InvalidateActors(ctx, actor.ID)
	for _, pid := range wanted {
		if _, err := ps.FindByID(ctx, pid); err != nil {
			if isNotFound(err) {
				res.Missing = append(res.Missing, pid)
				continue
			}
			return res, err
		}
		err := links.AddActorPermission(ctx, &ActorPermission{
			ID:           ids.New(),
			ActorID:      actor.ID,
			PermissionID: pid,
			CreatedBy:    by,
			CreatedAt:    s.now().UTC(),
		})
		switch {
		case err == nil:
			res.Assigned = append(res.Assigned, pid)
		case errors.Is(err, ErrAlreadyExists):
			res.Skipped = append(res.Skipped, pid)
		default:
			return res, err
		}
	}
	return res, nil
}

// UnassignPermissions revokes the links and returns how many existed.
func (s *RBACService) UnassignPermissions(ctx context.Context, actorID string, permissionIDs []string) (int, error) {
	actor, err := s.Actor(ctx, actorID)
	if err != nil {
		return 0, err
	}
	wanted := dedupeStrings(permissionIDs)
	if len(wanted) == 0 {
		return 0, fmt.Errorf("%w: permission_ids are required", ErrInvalidInput)
	}
	links := s.store.Links(ctx)
	defer s.resolver.InvalidateActors(ctx, actor.ID)
	removed := 0
	for _, pid := range wanted {
		err := links.RemoveActorPermission(ctx, actor.ID, pid)
		switch {
		case err == nil:
			removed++
		case isNotFound(err):
		default:
			return removed, err
		}
	}
	return removed, nil
}

// ActorPermissions lists every permission linked to the actor, active or not.
func (s *RBACService) ActorPermissions(ctx context.Context, actorID string) ([]Permission, error) {
	actor, err := s.Actor(ctx, actorID)
	if err != nil {
		return nil, err
	}
	links, err := s.store.Links(ctx).ActorPermissionLinks(ctx, []string{actor.ID})
	if err != nil {
		return nil, err
	}
	pids := make([]string, 0, len(links))
	for _, l := range links {
		pids = append(pids, l.PermissionID)
	}
	if len(pids) == 0 {
		return []Permission{}, nil
	}
	perms, err := s.store.Permissions(ctx).FindByIDs(ctx, uniqueSorted(pids), false)
	if err != nil {
		return nil, err
	}
	sortPermissions(perms)
	return perms, nil
}

// AssignActor links an actor to a user. A user may hold several actors; a repeated assignment
// is ErrAlreadyExists.
func (s *RBACService) AssignActor(ctx context.Context, userID, actorID, by string) (*UserActor, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, fmt.Errorf("%w: user_id is required", ErrInvalidInput)
	}
	if _, err := s.store.Users(ctx).FindByID(ctx, userID); err != nil {
		return nil, err
	}
	actor, err := s.Actor(ctx, actorID)
	if err != nil {
		return nil, err
	}
	ts := s.now().UTC()
	link := &UserActor{
		ID:        ids.New(),
		UserID:    userID,
		ActorID:   actor.ID,
		CreatedBy: by,
		UpdatedBy: by,
		CreatedAt: ts,
		UpdatedAt: ts,
	}
	if err := s.store.Links(ctx).AddUserActor(ctx, link); err != nil {
		return nil, err
	}
	s.resolver.InvalidateUserActors(ctx, userID)
	return link, nil
}

func (s *RBACService) UnassignActor(ctx context.Context, userID, actorID string) error {
	userID = strings.TrimSpace(userID)
	actorID = strings.TrimSpace(actorID)
	if userID == "" || actorID == "" {
		return fmt.Errorf("%w: user_id and actor_id are required", ErrInvalidInput)
	}
	if err := s.store.Links(ctx).RemoveUserActor(ctx, userID, actorID); err != nil {
		return err
	}
	s.resolver.InvalidateUserActors(ctx, userID)
	return nil
}

// UserActors lists the actors linked to the user, active or not.
func (s *RBACService) UserActors(ctx context.Context, userID string) ([]Actor, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, fmt.Errorf("%w: user_id is required", ErrInvalidInput)
	}
	links, err := s.store.Links(ctx).UserActorLinks(ctx, userID)
	if err != nil {
		return nil, err
	}
	aids := make([]string, 0, len(links))
	for _, l := range links {
		aids = append(aids, l.ActorID)
	}
	if len(aids) == 0 {
		return []Actor{}, nil
	}
	actors, err := s.store.Actors(ctx).FindByIDs(ctx, uniqueSorted(aids), false)
	if err != nil {
		return nil, err
	}
	sortActors(actors)
	return actors, nil
}

func dedupeStrings(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	var out []string
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
