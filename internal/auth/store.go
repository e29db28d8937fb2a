package auth

import "context"

// Store describes the persistence the identity core consumes. Implementations translate their
// own not-found and duplicate-key conditions into ErrNotFound and ErrAlreadyExists.
type Store interface {
	Users(ctx context.Context) UserStore
	Actors(ctx context.Context) ActorStore
	Permissions(ctx context.Context) PermissionStore
	Links(ctx context.Context) LinkStore
}

// UserStore manages users. Emails are stored lower-cased.
type UserStore interface {
	Create(ctx context.Context, u *User) error
	Update(ctx context.Context, u *User) error
	FindByID(ctx context.Context, id string) (*User, error)
	FindByEmail(ctx context.Context, email string) (*User, error)
}

// ActorStore manages actors.
type ActorStore interface {
	Create(ctx context.Context, a *Actor) error
	Update(ctx context.Context, a *Actor) error
	Delete(ctx context.Context, id string) error
	FindByID(ctx context.Context, id string) (*Actor, error)
	FindByName(ctx context.Context, name string) (*Actor, error)
	// FindByIDs returns the actors that exist among ids; missing ids are skipped.
	FindByIDs(ctx context.Context, ids []string, activeOnly bool) ([]Actor, error)
	List(ctx context.Context, activeOnly bool) ([]Actor, error)
}

// PermissionStore manages the permission catalog. Permissions are deactivated, not deleted.
type PermissionStore interface {
	Create(ctx context.Context, p *Permission) error
	Update(ctx context.Context, p *Permission) error
	FindByID(ctx context.Context, id string) (*Permission, error)
	FindByName(ctx context.Context, name string) (*Permission, error)
	FindByIDs(ctx context.Context, ids []string, activeOnly bool) ([]Permission, error)
	List(ctx context.Context, activeOnly bool) ([]Permission, error)
}

// LinkStore manages the actor-permission and user-actor join entities.
type LinkStore interface {
	// AddActorPermission returns ErrAlreadyExists when the pair is already linked.
	AddActorPermission(ctx context.Context, link *ActorPermission) error
	RemoveActorPermission(ctx context.Context, actorID, permissionID string) error
	ActorPermissionLinks(ctx context.Context, actorIDs []string) ([]ActorPermission, error)
	ActorsWithPermission(ctx context.Context, permissionID string) ([]string, error)
	// RemoveActorLinks drops every link that references the actor.
	RemoveActorLinks(ctx context.Context, actorID string) error

	AddUserActor(ctx context.Context, link *UserActor) error
	RemoveUserActor(ctx context.Context, userID, actorID string) error
	UserActorLinks(ctx context.Context, userID string) ([]UserActor, error)
	UsersWithActor(ctx context.Context, actorID string) ([]string, error)
}
