package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"recruitcore.io/internal/auth"
	"recruitcore.io/internal/directory"
)

func TestLinksAreUniquePerPair(t *testing.T) {
	s := New()
	ctx := context.Background()
	links := s.Links(ctx)

	require.NoError(t, links.AddActorPermission(ctx, &auth.ActorPermission{ID: "l1", ActorID: "a1", PermissionID: "p1"}))
	require.ErrorIs(t, links.AddActorPermission(ctx, &auth.ActorPermission{ID: "l2", ActorID: "a1", PermissionID: "p1"}), auth.ErrAlreadyExists)
	require.NoError(t, links.AddActorPermission(ctx, &auth.ActorPermission{ID: "l3", ActorID: "a2", PermissionID: "p1"}))

	require.NoError(t, links.AddUserActor(ctx, &auth.UserActor{ID: "u1", UserID: "u", ActorID: "a1"}))
	require.ErrorIs(t, links.AddUserActor(ctx, &auth.UserActor{ID: "u2", UserID: "u", ActorID: "a1"}), auth.ErrAlreadyExists)
	require.NoError(t, links.AddUserActor(ctx, &auth.UserActor{ID: "u3", UserID: "u", ActorID: "a2"}))

	actors, err := links.ActorsWithPermission(ctx, "p1")
	require.NoError(t, err)
	require.Equal(t, []string{"a1", "a2"}, actors)

	require.NoError(t, links.RemoveActorLinks(ctx, "a1"))
	got, err := links.ActorPermissionLinks(ctx, []string{"a1", "a2"})
	require.NoError(t, err)
	require.Len(t, got, 1)
	ua, err := links.UserActorLinks(ctx, "u")
	require.NoError(t, err)
	require.Len(t, ua, 1)
	require.Equal(t, "a2", ua[0].ActorID)

	require.ErrorIs(t, links.RemoveUserActor(ctx, "u", "a1"), auth.ErrNotFound)
}

func TestUserEmailIsUniqueAndCaseInsensitive(t *testing.T) {
	s := New()
	ctx := context.Background()
	users := s.Users(ctx)
	require.NoError(t, users.Create(ctx, &auth.User{ID: "1", Email: "ada@example.com"}))
	require.ErrorIs(t, users.Create(ctx, &auth.User{ID: "2", Email: "ADA@example.com"}), auth.ErrAlreadyExists)

	u, err := users.FindByEmail(ctx, "Ada@Example.com")
	require.NoError(t, err)
	require.Equal(t, "1", u.ID)

	u.FullName = "changed"
	fresh, err := users.FindByID(ctx, "1")
	require.NoError(t, err)
	require.Empty(t, fresh.FullName)
}

func TestFindByIDsFiltersInactive(t *testing.T) {
	s := New()
	ctx := context.Background()
	perms := s.Permissions(ctx)
	require.NoError(t, perms.Create(ctx, &auth.Permission{ID: "p1", Name: "jobs:view", IsActive: true}))
	require.NoError(t, perms.Create(ctx, &auth.Permission{ID: "p2", Name: "jobs:create"}))

	all, err := perms.FindByIDs(ctx, []string{"p1", "p2", "missing"}, false)
	require.NoError(t, err)
	require.Len(t, all, 2)
	active, err := perms.FindByIDs(ctx, []string{"p1", "p2"}, true)
	require.NoError(t, err)
	require.Len(t, active, 1)
	require.Equal(t, "jobs:view", active[0].Name)
}

func TestMembershipIsUniquePerCompany(t *testing.T) {
	s := New()
	ctx := context.Background()
	members := s.Members(ctx)
	require.NoError(t, members.Add(ctx, &directory.Membership{ID: "m1", CompanyID: "c1", UserID: "u1", Role: directory.RoleOwner}))
	require.ErrorIs(t, members.Add(ctx, &directory.Membership{ID: "m2", CompanyID: "c1", UserID: "u1"}), directory.ErrAlreadyExists)

	list, err := members.ListByUser(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, list, 1)
	require.NoError(t, members.Remove(ctx, "c1", "u1"))
	require.ErrorIs(t, members.Remove(ctx, "c1", "u1"), directory.ErrNotFound)
}
