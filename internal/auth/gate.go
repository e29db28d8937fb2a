package auth

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"recruitcore.io/internal/obs"
)

// Gate authenticates bearer tokens and enforces permissions. Every call re-resolves the
// permission set from live data; the token's scopes claim is not trusted.
type Gate struct {
	tokens   *TokenService
	resolver *Resolver
}

func NewGate(tokens *TokenService, resolver *Resolver) *Gate {
	return &Gate{tokens: tokens, resolver: resolver}
}

// CurrentUser authenticates token and resolves its context. Every authentication failure is
// ErrInvalidCredentials; the cause is logged at debug and counted. Store failures are returned
// as they are.
func (g *Gate) CurrentUser(ctx context.Context, token string) (AuthContext, error) {
	ctx, span := tracer.Start(ctx, "auth.CurrentUser")
	defer span.End()

	if token == "" {
		return AuthContext{}, reject(ctx, "missing_token")
	}
	res := g.tokens.Decode(token)
	if !res.OK() {
		return AuthContext{}, reject(ctx, res.Failure.String())
	}
	claims := res.Claims
	if claims.Type != TokenAccess {
		return AuthContext{}, reject(ctx, "wrong_token_type")
	}
	if g.tokens.IsTokenBlacklisted(ctx, token) {
		return AuthContext{}, reject(ctx, "blacklisted")
	}
	user, err := g.resolver.UserByEmail(ctx, claims.Subject)
	if err != nil {
		if isNotFound(err) {
			return AuthContext{}, reject(ctx, "unknown_user")
		}
		span.SetStatus(codes.Error, err.Error())
		return AuthContext{}, fmt.Errorf("load user: %w", err)
	}
	if !user.IsActive {
		return AuthContext{}, reject(ctx, "inactive_user")
	}
	if user.ID != claims.UserID {
		return AuthContext{}, reject(ctx, "user_mismatch")
	}
	actx, err := g.resolver.Resolve(ctx, user)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return AuthContext{}, err
	}
	actx.Claims = claims
	span.SetAttributes(attribute.String("auth.user_id", user.ID))
	obs.AuthDecision("authenticated", "ok")
	return actx, nil
}

// RequirePermission is CurrentUser followed by Authorize.
func (g *Gate) RequirePermission(ctx context.Context, token, name string) (AuthContext, error) {
	actx, err := g.CurrentUser(ctx, token)
	if err != nil {
		return AuthContext{}, err
	}
	if err := Authorize(ctx, actx, name); err != nil {
		return AuthContext{}, err
	}
	return actx, nil
}

// Authorize fails with ErrForbidden unless actx holds the permission.
func Authorize(ctx context.Context, actx AuthContext, name string) error {
	if actx.HasPermission(name) {
		obs.AuthDecision("allowed", "ok")
		return nil
	}
	obs.AuthDecision("forbidden", "missing_permission")
	ev := zerolog.Ctx(ctx).Debug().Str("permission", name)
	if actx.User != nil {
		ev = ev.Str("user_id", actx.User.ID)
	}
	ev.Msg("permission denied")
	return fmt.Errorf("%w: %s", ErrForbidden, name)
}

func reject(ctx context.Context, reason string) error {
	zerolog.Ctx(ctx).Debug().Str("reason", reason).Msg("authentication rejected")
	obs.AuthDecision("unauthenticated", reason)
	return ErrInvalidCredentials
}

// IsAuthError reports whether err is an authentication or authorization failure rather than a
// system fault.
func IsAuthError(err error) bool {
	return errors.Is(err, ErrInvalidCredentials) || errors.Is(err, ErrForbidden)
}
