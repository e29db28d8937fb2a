package auth_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"recruitcore.io/internal/auth"
)

func TestRequirePermissionAllowsGrantedAndForbidsOthers(t *testing.T) {
	f := newFixture(t)
	recruiter := f.actor(t, "Recruiter", "jobs:view", "jobs:create")
	f.user(t, "ada@example.com", "password123", recruiter)
	pair := f.login(t, "ada@example.com", "password123")

	actx, err := f.gate.RequirePermission(f.ctx, pair.AccessToken, "jobs:create")
	require.NoError(t, err)
	require.Equal(t, []string{"jobs:create", "jobs:view"}, actx.PermissionNames())
	require.NotNil(t, actx.Claims)
	require.True(t, actx.IsRecruiter())

	_, err = f.gate.RequirePermission(f.ctx, pair.AccessToken, "jobs:delete")
	require.ErrorIs(t, err, auth.ErrForbidden)
	require.NotErrorIs(t, err, auth.ErrInvalidCredentials)
	require.True(t, auth.IsAuthError(err))
}

func TestRevokedGrantIsDeniedDespiteTokenScopes(t *testing.T) {
	f := newFixture(t)
	recruiter := f.actor(t, "Recruiter", "jobs:view", "jobs:create")
	f.user(t, "ada@example.com", "password123", recruiter)
	pair := f.login(t, "ada@example.com", "password123")

	_, err := f.gate.RequirePermission(f.ctx, pair.AccessToken, "jobs:create")
	require.NoError(t, err)

	f.revoke(t, recruiter, "jobs:create")

	actx, err := f.gate.CurrentUser(f.ctx, pair.AccessToken)
	require.NoError(t, err)
	require.Equal(t, []string{"jobs:view"}, actx.PermissionNames())
	require.True(t, actx.HasScope("perm:jobs:create"))

	_, err = f.gate.RequirePermission(f.ctx, pair.AccessToken, "jobs:create")
	require.ErrorIs(t, err, auth.ErrForbidden)
}

func TestCurrentUserRejectionsAreUniform(t *testing.T) {
	f := newFixture(t)
	recruiter := f.actor(t, "Recruiter", "jobs:view")
	u := f.user(t, "ada@example.com", "password123", recruiter)
	f.user(t, "bob@example.com", "password123", recruiter)
	pair := f.login(t, "ada@example.com", "password123")
	revoked := f.login(t, "bob@example.com", "password123")
	require.NoError(t, f.sessions.Logout(f.ctx, revoked.AccessToken, ""))

	ghost, err := f.tokens.CreateAccessToken(auth.Claims{Email: "ghost@example.com", UserID: "nobody"}, 0)
	require.NoError(t, err)
	mismatch, err := f.tokens.CreateAccessToken(auth.Claims{Email: u.Email, UserID: "someone-else"}, 0)
	require.NoError(t, err)

	past, err := auth.NewTokenService(fixtureSecret, "HS256", auth.WithTokenClock(func() time.Time {
		return time.Now().Add(-time.Hour)
	}))
	require.NoError(t, err)
	expired, err := past.CreateAccessToken(auth.Claims{Email: u.Email, UserID: u.ID}, time.Minute)
	require.NoError(t, err)

	cases := map[string]string{
		"missing":           "",
		"malformed":         "not.a.jwt",
		"refresh as bearer": pair.RefreshToken,
		"blacklisted":       revoked.AccessToken,
		"unknown user":      ghost,
		"user mismatch":     mismatch,
		"expired":           expired,
	}
	for name, token := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := f.gate.CurrentUser(f.ctx, token)
			require.ErrorIs(t, err, auth.ErrInvalidCredentials)
			require.Equal(t, auth.ErrInvalidCredentials.Error(), err.Error())
		})
	}

	_, err = f.gate.CurrentUser(f.ctx, pair.AccessToken)
	require.NoError(t, err)
}

func TestDeactivatedUserIsRejectedImmediately(t *testing.T) {
	f := newFixture(t)
	recruiter := f.actor(t, "Recruiter", "jobs:view")
	u := f.user(t, "ada@example.com", "password123", recruiter)
	pair := f.login(t, "ada@example.com", "password123")

	_, err := f.gate.CurrentUser(f.ctx, pair.AccessToken)
	require.NoError(t, err)

	_, err = f.sessions.Deactivate(f.ctx, u.ID)
	require.NoError(t, err)
	_, err = f.gate.CurrentUser(f.ctx, pair.AccessToken)
	require.ErrorIs(t, err, auth.ErrInvalidCredentials)
}

func TestAuthorizeWithoutGate(t *testing.T) {
	actx := auth.NewAuthContext(&auth.User{ID: "u1"}, nil, []auth.Permission{{ID: "p1", Name: "jobs:view"}})
	require.NoError(t, auth.Authorize(context.Background(), actx, "jobs:view"))
	require.ErrorIs(t, auth.Authorize(context.Background(), actx, "jobs:edit"), auth.ErrForbidden)
}
