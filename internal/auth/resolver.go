package auth

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"recruitcore.io/internal/cache"
	"recruitcore.io/internal/tracing"
)

const (
	defaultPermissionTTL = 5 * time.Minute
	defaultUserTTL       = 30 * time.Minute
)

var tracer = tracing.Tracer("auth")

// actorView is the cached derivation for one actor. Actor is nil when the actor is missing or
// inactive, in which case it contributes nothing.
type actorView struct {
	Actor       *Actor       `json:"actor"`
	Permissions []Permission `json:"permissions"`
}

// Resolver computes a user's authorization context from the actor-permission graph.
type Resolver struct {
	store   Store
	cache   *cache.Cache
	permTTL time.Duration
	userTTL time.Duration
}

type ResolverOption func(*Resolver)

// WithPermissionTTL bounds how long actor links and actor views stay cached.
func WithPermissionTTL(ttl time.Duration) ResolverOption {
	return func(r *Resolver) {
		if ttl > 0 {
			r.permTTL = ttl
		}
	}
}

func WithUserTTL(ttl time.Duration) ResolverOption {
	return func(r *Resolver) {
		if ttl > 0 {
			r.userTTL = ttl
		}
	}
}

// NewResolver wires the resolver to its store. c may be nil or disabled.
func NewResolver(store Store, c *cache.Cache, opts ...ResolverOption) *Resolver {
	if c == nil {
		c = cache.New(nil)
	}
	r := &Resolver{store: store, cache: c, permTTL: defaultPermissionTTL, userTTL: defaultUserTTL}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Cache returns the cache the resolver reads through.
func (r *Resolver) Cache() *cache.Cache { return r.cache }

// Resolve aggregates the active permissions reachable through the user's active actors.
// Unknown or inactive actors and permissions contribute nothing.
func (r *Resolver) Resolve(ctx context.Context, user *User) (AuthContext, error) {
	if user == nil {
		return AuthContext{}, fmt.Errorf("%w: user is required", ErrInvalidInput)
	}
	ctx, span := tracer.Start(ctx, "auth.Resolve")
	defer span.End()

	actorIDs, err := r.userActorIDs(ctx, user.ID)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return AuthContext{}, err
	}
	views, err := r.actorViews(ctx, actorIDs)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return AuthContext{}, err
	}

	var actors []Actor
	var perms []Permission
	seen := make(map[string]struct{})
	for _, v := range views {
		if v.Actor == nil {
			continue
		}
		actors = append(actors, *v.Actor)
		for _, p := range v.Permissions {
			if _, dup := seen[p.ID]; dup {
				continue
			}
			seen[p.ID] = struct{}{}
			perms = append(perms, p)
		}
	}
	sortActors(actors)
	sortPermissions(perms)
	span.SetAttributes(attribute.Int("auth.actors", len(actors)), attribute.Int("auth.permissions", len(perms)))
	return NewAuthContext(user, actors, perms), nil
}

func (r *Resolver) userActorIDs(ctx context.Context, userID string) ([]string, error) {
	ids, _, err := cache.Fetch(ctx, r.cache, cache.UserActorsKey(userID), r.permTTL, func(ctx context.Context) ([]string, error) {
		links, err := r.store.Links(ctx).UserActorLinks(ctx, userID)
		if err != nil {
			return nil, fmt.Errorf("load user actors: %w", err)
		}
		out := make([]string, 0, len(links))
		for _, l := range links {
			out = append(out, l.ActorID)
		}
		return uniqueSorted(out), nil
	})
	return ids, err
}

// actorViews returns one view per actor id. Cache misses are loaded with one pass over the
// actor, link and permission collections.
func (r *Resolver) actorViews(ctx context.Context, actorIDs []string) ([]actorView, error) {
	if len(actorIDs) == 0 {
		return nil, nil
	}
	keys := make([]string, len(actorIDs))
	for i, id := range actorIDs {
		keys[i] = cache.ActorPermissionsKey(id)
	}
	return cache.FetchMany(ctx, r.cache, keys, r.permTTL, func(ctx context.Context, missing []int) (map[int]actorView, error) {
		ids := make([]string, len(missing))
		for n, i := range missing {
			ids[n] = actorIDs[i]
		}
		loaded, err := r.loadActorViews(ctx, ids)
		if err != nil {
			return nil, err
		}
		out := make(map[int]actorView, len(missing))
		for _, i := range missing {
			out[i] = loaded[actorIDs[i]]
		}
		return out, nil
	})
}

func (r *Resolver) loadActorViews(ctx context.Context, actorIDs []string) (map[string]actorView, error) {
	actors, err := r.store.Actors(ctx).FindByIDs(ctx, actorIDs, true)
	if err != nil {
		return nil, fmt.Errorf("load actors: %w", err)
	}
	views := make(map[string]actorView, len(actorIDs))
	if len(actors) == 0 {
		return views, nil
	}
	activeIDs := make([]string, 0, len(actors))
	for i := range actors {
		activeIDs = append(activeIDs, actors[i].ID)
	}
	links, err := r.store.Links(ctx).ActorPermissionLinks(ctx, activeIDs)
	if err != nil {
		return nil, fmt.Errorf("load actor permissions: %w", err)
	}
	permIDs := make([]string, 0, len(links))
	for _, l := range links {
		permIDs = append(permIDs, l.PermissionID)
	}
	var perms []Permission
	if len(permIDs) > 0 {
		perms, err = r.store.Permissions(ctx).FindByIDs(ctx, uniqueSorted(permIDs), true)
		if err != nil {
			return nil, fmt.Errorf("load permissions: %w", err)
		}
	}
	byID := make(map[string]Permission, len(perms))
	for _, p := range perms {
		byID[p.ID] = p
	}
	for i := range actors {
		a := actors[i]
		view := actorView{Actor: &a, Permissions: []Permission{}}
		granted := make(map[string]struct{})
		for _, l := range links {
			if l.ActorID != a.ID {
				continue
			}
			p, ok := byID[l.PermissionID]
			if !ok {
				continue
			}
			if _, dup := granted[p.ID]; dup {
				continue
			}
			granted[p.ID] = struct{}{}
			view.Permissions = append(view.Permissions, p)
		}
		sortPermissions(view.Permissions)
		views[a.ID] = view
	}
	return views, nil
}

// UserByEmail is the cached identity lookup used by the gate. The password hash is never
// present in the result.
func (r *Resolver) UserByEmail(ctx context.Context, email string) (*User, error) {
	email = NormalizeEmail(email)
	if email == "" {
		return nil, ErrNotFound
	}
	u, _, err := cache.Fetch(ctx, r.cache, cache.UserEmailKey(email), r.userTTL, func(ctx context.Context) (*User, error) {
		return r.store.Users(ctx).FindByEmail(ctx, email)
	})
	return u, err
}

func (r *Resolver) UserByID(ctx context.Context, id string) (*User, error) {
	u, _, err := cache.Fetch(ctx, r.cache, cache.UserKey(id), r.userTTL, func(ctx context.Context) (*User, error) {
		return r.store.Users(ctx).FindByID(ctx, id)
	})
	return u, err
}

// InvalidateUser drops the cached identity of u under both its id and email keys.
func (r *Resolver) InvalidateUser(ctx context.Context, u *User) {
	if u == nil {
		return
	}
	r.cache.Invalidate(ctx, cache.UserKey(u.ID), cache.UserEmailKey(NormalizeEmail(u.Email)))
}

// InvalidateUserActors drops the cached actor links of each user.
func (r *Resolver) InvalidateUserActors(ctx context.Context, userIDs ...string) {
	keys := make([]string, 0, len(userIDs))
	for _, id := range userIDs {
		keys = append(keys, cache.UserActorsKey(id))
	}
	r.cache.Invalidate(ctx, keys...)
}

// InvalidateActors drops the cached view of each actor.
func (r *Resolver) InvalidateActors(ctx context.Context, actorIDs ...string) {
	keys := make([]string, 0, len(actorIDs))
	for _, id := range actorIDs {
		keys = append(keys, cache.ActorPermissionsKey(id))
	}
	r.cache.Invalidate(ctx, keys...)
}

// NormalizeEmail trims and lower-cases an address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func uniqueSorted(values []string) []string {
	if len(values) == 0 {
		return []string{}
	}
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}

func sortPermissions(perms []Permission) {
	sort.Slice(perms, func(i, j int) bool { return perms[i].Name < perms[j].Name })
}

func sortActors(actors []Actor) {
	sort.Slice(actors, func(i, j int) bool { return actors[i].Name < actors[j].Name })
}

func isNotFound(err error) bool { return errors.Is(err, ErrNotFound) }
