package auth

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/rs/zerolog"

	"recruitcore.io/internal/ids"
)

// SeedOptions controls default-data seeding. AdminEmail, when set, ensures an active, verified
// user holding the Administrator actor.
type SeedOptions struct {
	AdminEmail    string
	AdminPassword string
	Now           func() time.Time
}

// SeedReport counts what a Seed run created. TouchedActors lists actors that gained links so
// callers can invalidate their cached views.
type SeedReport struct {
	PermissionsCreated int      `json:"permissions_created"`
	ActorsCreated      int      `json:"actors_created"`
	LinksCreated       int      `json:"links_created"`
	AdminCreated       bool     `json:"admin_created"`
	TouchedActors      []string `json:"touched_actors,omitempty"`
	AdminUserID        string   `json:"admin_user_id,omitempty"`
}

// Seed ensures the permission catalog, the default actors with their pattern-expanded grants,
// and the optional bootstrap administrator. Running it again creates nothing new.
func Seed(ctx context.Context, store Store, opts SeedOptions) (SeedReport, error) {
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	logger := zerolog.Ctx(ctx)
	var report SeedReport

	perms, created, err := ensurePermissions(ctx, store, CatalogPermissions(), now)
	if err != nil {
		return report, err
	}
	report.PermissionsCreated = created

	for _, def := range DefaultActors {
		actor, created, err := ensureActor(ctx, store, def, now)
		if err != nil {
			return report, err
		}
		if created {
			report.ActorsCreated++
		}
		targets, err := ExpandPatterns(def.Patterns, perms)
		if err != nil {
			return report, fmt.Errorf("expand %s patterns: %w", def.Name, err)
		}
		n, err := ensureGrants(ctx, store, actor.ID, targets, now)
		if err != nil {
			return report, err
		}
		if n > 0 {
			report.LinksCreated += n
			report.TouchedActors = append(report.TouchedActors, actor.ID)
		}
		logger.Info().Str("actor", def.Name).Int("granted", n).Msg("default actor ensured")
	}

	if opts.AdminEmail != "" {
		userID, created, err := ensureAdmin(ctx, store, opts, now)
		if err != nil {
			return report, err
		}
		report.AdminCreated = created
		report.AdminUserID = userID
	}
	logger.Info().
		Int("permissions_created", report.PermissionsCreated).
		Int("actors_created", report.ActorsCreated).
		Int("links_created", report.LinksCreated).
		Msg("seed complete")
	return report, nil
}

// ExpandPatterns returns the permissions whose name matches any pattern.
func ExpandPatterns(patterns []string, perms []Permission) ([]Permission, error) {
	compiled := make([]*regexp.Regexp, 0, len(patterns))
	for _, p := range patterns {
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("%w: pattern %q: %v", ErrInvalidInput, p, err)
		}
		compiled = append(compiled, re)
	}
	var out []Permission
	for _, perm := range perms {
		for _, re := range compiled {
			if re.MatchString(perm.Name) {
				out = append(out, perm)
				break
			}
		}
	}
	return out, nil
}

func ensurePermissions(ctx context.Context, store Store, catalog []Permission, now func() time.Time) ([]Permission, int, error) {
	ps := store.Permissions(ctx)
	existing, err := ps.List(ctx, false)
	if err != nil {
		return nil, 0, fmt.Errorf("list permissions: %w", err)
	}
	byName := make(map[string]struct{}, len(existing))
	for _, p := range existing {
		byName[p.Name] = struct{}{}
	}
	created := 0
	for _, p := range catalog {
		if _, ok := byName[p.Name]; ok {
			continue
		}
		ts := now().UTC()
		perm := &Permission{
			ID:          ids.New(),
			Name:        p.Name,
			Description: p.Description,
			IsActive:    true,
			CreatedAt:   ts,
			UpdatedAt:   ts,
		}
		if err := ps.Create(ctx, perm); err != nil {
			if errors.Is(err, ErrAlreadyExists) {
				continue
			}
			return nil, created, fmt.Errorf("create permission %s: %w", p.Name, err)
		}
		byName[p.Name] = struct{}{}
		created++
	}
	all, err := ps.List(ctx, false)
	if err != nil {
		return nil, created, fmt.Errorf("list permissions: %w", err)
	}
	return all, created, nil
}

func ensureActor(ctx context.Context, store Store, def DefaultActor, now func() time.Time) (*Actor, bool, error) {
	as := store.Actors(ctx)
	actor, err := as.FindByName(ctx, def.Name)
	if err == nil {
		return actor, false, nil
	}
	if !isNotFound(err) {
		return nil, false, fmt.Errorf("find actor %s: %w", def.Name, err)
	}
	ts := now().UTC()
	actor = &Actor{
		ID:          ids.New(),
		Name:        def.Name,
		Description: def.Description,
		IsActive:    true,
		IsDefault:   true,
		IsSystem:    def.IsSystem,
		CreatedAt:   ts,
		UpdatedAt:   ts,
	}
	if err := as.Create(ctx, actor); err != nil {
		if errors.Is(err, ErrAlreadyExists) {
			actor, err = as.FindByName(ctx, def.Name)
			return actor, false, err
		}
		return nil, false, fmt.Errorf("create actor %s: %w", def.Name, err)
	}
	return actor, true, nil
}

func ensureGrants(ctx context.Context, store Store, actorID string, targets []Permission, now func() time.Time) (int, error) {
	links := store.Links(ctx)
	current, err := links.ActorPermissionLinks(ctx, []string{actorID})
	if err != nil {
		return 0, fmt.Errorf("list actor links: %w", err)
	}
	have := make(map[string]struct{}, len(current))
	for _, l := range current {
		have[l.PermissionID] = struct{}{}
	}
	created := 0
	for _, p := range targets {
		if _, ok := have[p.ID]; ok {
			continue
		}
		err := links.AddActorPermission(ctx, &ActorPermission{
			ID:           ids.New(),
			ActorID:      actorID,
			PermissionID: p.ID,
			CreatedBy:    "system",
			CreatedAt:    now().UTC(),
		})
		if err != nil && !errors.Is(err, ErrAlreadyExists) {
			return created, fmt.Errorf("grant %s: %w", p.Name, err)
		}
		if err == nil {
			created++
		}
		have[p.ID] = struct{}{}
	}
	return created, nil
}

func ensureAdmin(ctx context.Context, store Store, opts SeedOptions, now func() time.Time) (string, bool, error) {
	email := NormalizeEmail(opts.AdminEmail)
	users := store.Users(ctx)
	created := false
	user, err := users.FindByEmail(ctx, email)
	switch {
	case err == nil:
	case isNotFound(err):
		if err := ValidatePassword(opts.AdminPassword); err != nil {
			return "", false, fmt.Errorf("admin password: %w", err)
		}
		hash, err := HashPassword(opts.AdminPassword)
		if err != nil {
			return "", false, err
		}
		ts := now().UTC()
		user = &User{
			ID:           ids.New(),
			Email:        email,
			FullName:     "Administrator",
			PasswordHash: hash,
			IsActive:     true,
			IsVerified:   true,
			CreatedAt:    ts,
			UpdatedAt:    ts,
		}
		if err := users.Create(ctx, user); err != nil {
			return "", false, fmt.Errorf("create admin: %w", err)
		}
		created = true
	default:
		return "", false, fmt.Errorf("find admin: %w", err)
	}

	admin, err := store.Actors(ctx).FindByName(ctx, ActorAdministrator)
	if err != nil {
		return "", created, fmt.Errorf("find administrator actor: %w", err)
	}
	ts := now().UTC()
	err = store.Links(ctx).AddUserActor(ctx, &UserActor{
		ID:        ids.New(),
		UserID:    user.ID,
		ActorID:   admin.ID,
		CreatedBy: "system",
		UpdatedBy: "system",
		CreatedAt: ts,
		UpdatedAt: ts,
	})
	if err != nil && !errors.Is(err, ErrAlreadyExists) {
		return "", created, fmt.Errorf("assign administrator: %w", err)
	}
	return user.ID, created, nil
}
