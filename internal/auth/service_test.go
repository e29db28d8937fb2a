package auth_test

import (
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"

	"recruitcore.io/internal/auth"
)

func TestRegisterActivateLogin(t *testing.T) {
	f := newFixture(t)
	f.actor(t, auth.ActorCandidate, "resume_files:upload")

	u, err := f.sessions.Register(f.ctx, auth.RegisterInput{Email: " Ada@Example.com ", Password: "password123", FullName: "Ada"})
	require.NoError(t, err)
	require.Equal(t, "ada@example.com", u.Email)
	require.False(t, u.IsActive)
	require.False(t, u.IsVerified)

	_, _, err = f.sessions.Login(f.ctx, "ada@example.com", "wrong-password")
	require.ErrorIs(t, err, auth.ErrInvalidCredentials)
	_, _, err = f.sessions.Login(f.ctx, "ada@example.com", "password123")
	require.ErrorIs(t, err, auth.ErrInactive)

	activated, err := f.sessions.Activate(f.ctx, u.ID)
	require.NoError(t, err)
	require.True(t, activated.IsActive)
	require.True(t, activated.IsVerified)

	pair, actx, err := f.sessions.Login(f.ctx, "ADA@example.com", "password123")
	require.NoError(t, err)
	require.True(t, actx.IsCandidate())
	require.Equal(t, []string{"resume_files:upload"}, actx.PermissionNames())

	claims := f.tokens.Decode(pair.AccessToken)
	require.True(t, claims.OK())
	require.ElementsMatch(t, []string{"role:Candidate", "perm:resume_files:upload"}, claims.Claims.Scopes)
	require.Equal(t, u.ID, claims.Claims.UserID)
}

func TestRegisterValidation(t *testing.T) {
	f := newFixture(t)
	_, err := f.sessions.Register(f.ctx, auth.RegisterInput{Email: "not-an-email", Password: "password123"})
	require.ErrorIs(t, err, auth.ErrInvalidInput)
	_, err = f.sessions.Register(f.ctx, auth.RegisterInput{Email: "ada@example.com", Password: "short"})
	require.ErrorIs(t, err, auth.ErrInvalidInput)

	u, err := f.sessions.Register(f.ctx, auth.RegisterInput{Email: "ada@example.com", Password: "password123"})
	require.NoError(t, err)
	_, err = f.sessions.Register(f.ctx, auth.RegisterInput{Email: "ADA@example.com", Password: "password123"})
	require.ErrorIs(t, err, auth.ErrAlreadyExists)

	// No Candidate actor exists, so the user is registered without one.
	actors, err := f.rbac.UserActors(f.ctx, u.ID)
	require.NoError(t, err)
	require.Empty(t, actors)
}

func TestLoginUnknownUser(t *testing.T) {
	f := newFixture(t)
	_, _, err := f.sessions.Login(f.ctx, "nobody@example.com", "password123")
	require.ErrorIs(t, err, auth.ErrInvalidCredentials)
	_, _, err = f.sessions.Login(f.ctx, "", "")
	require.ErrorIs(t, err, auth.ErrInvalidCredentials)
}

func TestRefreshTokenIsSingleUse(t *testing.T) {
	f := newFixture(t)
	f.user(t, "ada@example.com", "password123", f.actor(t, "Recruiter", "jobs:view"))
	pair := f.login(t, "ada@example.com", "password123")

	_, err := f.sessions.Refresh(f.ctx, pair.AccessToken)
	require.ErrorIs(t, err, auth.ErrInvalidCredentials)

	next, err := f.sessions.Refresh(f.ctx, pair.RefreshToken)
	require.NoError(t, err)
	require.NotEqual(t, pair.RefreshToken, next.RefreshToken)
	require.True(t, f.tokens.IsTokenBlacklisted(f.ctx, pair.RefreshToken))

	_, err = f.sessions.Refresh(f.ctx, pair.RefreshToken)
	require.ErrorIs(t, err, auth.ErrInvalidCredentials)

	_, err = f.gate.CurrentUser(f.ctx, next.AccessToken)
	require.NoError(t, err)
	_, err = f.sessions.Refresh(f.ctx, next.RefreshToken)
	require.NoError(t, err)
}

func TestConcurrentRefreshMintsOnePair(t *testing.T) {
	f := newFixture(t)
	f.user(t, "ada@example.com", "password123")
	pair := f.login(t, "ada@example.com", "password123")

	var wins atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := f.sessions.Refresh(f.ctx, pair.RefreshToken); err == nil {
				wins.Add(1)
			}
		}()
	}
	wg.Wait()
	require.EqualValues(t, 1, wins.Load())
}

func TestLogoutRevokesBothTokens(t *testing.T) {
	f := newFixture(t)
	f.user(t, "ada@example.com", "password123")
	pair := f.login(t, "ada@example.com", "password123")

	require.NoError(t, f.sessions.Logout(f.ctx, pair.AccessToken, pair.RefreshToken))
	_, err := f.gate.CurrentUser(f.ctx, pair.AccessToken)
	require.ErrorIs(t, err, auth.ErrInvalidCredentials)
	_, err = f.sessions.Refresh(f.ctx, pair.RefreshToken)
	require.ErrorIs(t, err, auth.ErrInvalidCredentials)

	require.NoError(t, f.sessions.Logout(f.ctx, "garbage", ""))
}

func TestRefreshRejectsDeactivatedUser(t *testing.T) {
	f := newFixture(t)
	u := f.user(t, "ada@example.com", "password123")
	pair := f.login(t, "ada@example.com", "password123")

	_, err := f.sessions.Deactivate(f.ctx, u.ID)
	require.NoError(t, err)
	_, err = f.sessions.Refresh(f.ctx, pair.RefreshToken)
	require.ErrorIs(t, err, auth.ErrInvalidCredentials)

	_, err = f.sessions.Deactivate(f.ctx, "missing")
	require.ErrorIs(t, err, auth.ErrNotFound)
}
