package auth

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"recruitcore.io/internal/ids"
)

// Service provides the session lifecycle: registration, login, logout, refresh rotation and
// account activation.
type Service struct {
	store        Store
	tokens       *TokenService
	resolver     *Resolver
	now          func() time.Time
	defaultActor string
}

// ServiceOption configures Service behavior.
type ServiceOption func(*Service) error

// WithClock overrides time source (useful for tests).
func WithClock(fn func() time.Time) ServiceOption {
	return func(s *Service) error {
		if fn != nil {
			s.now = fn
		}
		return nil
	}
}

// WithDefaultActor names the actor linked to newly registered users. Empty disables linking.
func WithDefaultActor(name string) ServiceOption {
	return func(s *Service) error {
		s.defaultActor = strings.TrimSpace(name)
		return nil
	}
}

// NewService constructs Service with optional configuration.
func NewService(store Store, tokens *TokenService, resolver *Resolver, opts ...ServiceOption) (*Service, error) {
	if store == nil || tokens == nil || resolver == nil {
		return nil, errors.New("auth: store, token service and resolver are required")
	}
	svc := &Service{
		store:        store,
		tokens:       tokens,
		resolver:     resolver,
		now:          time.Now,
		defaultActor: ActorCandidate,
	}
	for _, opt := range opts {
		if err := opt(svc); err != nil {
			return nil, err
		}
	}
	return svc, nil
}

// Tokens exposes the token service for callers that need to blacklist directly.
func (s *Service) Tokens() *TokenService { return s.tokens }

// RegisterInput carries the registration request.
type RegisterInput struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	FullName string `json:"full_name"`
}

// Register creates an inactive, unverified user and links the default actor.
func (s *Service) Register(ctx context.Context, in RegisterInput) (*User, error) {
	email := NormalizeEmail(in.Email)
	if _, err := mail.ParseAddress(email); err != nil || email == "" {
		return nil, fmt.Errorf("%w: a valid email is required", ErrInvalidInput)
	}
	if err := ValidatePassword(in.Password); err != nil {
		return nil, err
	}
	users := s.store.Users(ctx)
	if _, err := users.FindByEmail(ctx, email); err == nil {
		return nil, fmt.Errorf("%w: email already registered", ErrAlreadyExists)
	} else if !isNotFound(err) {
		return nil, err
	}
	hash, err := HashPassword(in.Password)
	if err != nil {
		return nil, err
	}
	ts := s.now().UTC()
	user := &User{
		ID:           ids.New(),
		Email:        email,
		FullName:     strings.TrimSpace(in.FullName),
		PasswordHash: hash,
		CreatedAt:    ts,
		UpdatedAt:    ts,
	}
	if err := users.Create(ctx, user); err != nil {
		return nil, err
	}
	if err := s.linkDefaultActor(ctx, user.ID); err != nil {
		return nil, err
	}
	s.resolver.InvalidateUser(ctx, user)
	return user, nil
}

func (s *Service) linkDefaultActor(ctx context.Context, userID string) error {
	if s.defaultActor == "" {
		return nil
	}
	actor, err := s.store.Actors(ctx).FindByName(ctx, s.defaultActor)
	if isNotFound(err) {
		zerolog.Ctx(ctx).Warn().Str("actor", s.defaultActor).Msg("default actor missing; user registered without actor")
		return nil
	}
	if err != nil {
		return fmt.Errorf("find default actor: %w", err)
	}
	ts := s.now().UTC()
	err = s.store.Links(ctx).AddUserActor(ctx, &UserActor{
		ID:        ids.New(),
		UserID:    userID,
		ActorID:   actor.ID,
		CreatedBy: userID,
		UpdatedBy: userID,
		CreatedAt: ts,
		UpdatedAt: ts,
	})
	if err != nil && !errors.Is(err, ErrAlreadyExists) {
		return fmt.Errorf("link default actor: %w", err)
	}
	s.resolver.InvalidateUserActors(ctx, userID)
	return nil
}

// Login verifies credentials and issues a token pair whose scopes snapshot the resolved
// context. ErrInactive is only returned once the password has verified.
func (s *Service) Login(ctx context.Context, email, password string) (TokenPair, AuthContext, error) {
	email = NormalizeEmail(email)
	if email == "" || password == "" {
		return TokenPair{}, AuthContext{}, ErrInvalidCredentials
	}
	user, err := s.store.Users(ctx).FindByEmail(ctx, email)
	if err != nil {
		if isNotFound(err) {
			return TokenPair{}, AuthContext{}, ErrInvalidCredentials
		}
		return TokenPair{}, AuthContext{}, err
	}
	if err := VerifyPassword(user.PasswordHash, password); err != nil {
		return TokenPair{}, AuthContext{}, ErrInvalidCredentials
	}
	if !user.IsActive || !user.IsVerified {
		return TokenPair{}, AuthContext{}, ErrInactive
	}
	actx, err := s.resolver.Resolve(ctx, user)
	if err != nil {
		return TokenPair{}, AuthContext{}, err
	}
	pair, err := s.tokens.CreateTokenPair(user, LoginScopes(actx))
	if err != nil {
		return TokenPair{}, AuthContext{}, err
	}
	return pair, actx, nil
}

// Logout blacklists the presented tokens. Shared-store failures are logged; the local
// revocation still applies.
func (s *Service) Logout(ctx context.Context, accessToken, refreshToken string) error {
	for _, tok := range []string{accessToken, refreshToken} {
		if tok == "" {
			continue
		}
		if err := s.tokens.BlacklistToken(ctx, tok); err != nil {
			zerolog.Ctx(ctx).Warn().Err(err).Msg("logout revocation not shared")
		}
	}
	return nil
}

// Refresh rotates a refresh token. The presented token is consumed atomically, so it can mint
// at most one new pair.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (TokenPair, error) {
	res := s.tokens.Decode(refreshToken)
	if !res.OK() {
		return TokenPair{}, reject(ctx, "refresh_"+res.Failure.String())
	}
	claims := res.Claims
	if claims.Type != TokenRefresh {
		return TokenPair{}, reject(ctx, "refresh_wrong_token_type")
	}
	if s.tokens.IsTokenBlacklisted(ctx, refreshToken) {
		return TokenPair{}, reject(ctx, "refresh_blacklisted")
	}
	user, err := s.resolver.UserByEmail(ctx, claims.Subject)
	if err != nil {
		if isNotFound(err) {
			return TokenPair{}, reject(ctx, "refresh_unknown_user")
		}
		return TokenPair{}, err
	}
	if user.ID != claims.UserID || !user.IsActive {
		return TokenPair{}, reject(ctx, "refresh_user_mismatch")
	}
	consumed, err := s.tokens.ConsumeToken(ctx, refreshToken)
	if err != nil {
		return TokenPair{}, err
	}
	if !consumed {
		return TokenPair{}, reject(ctx, "refresh_replayed")
	}
	actx, err := s.resolver.Resolve(ctx, user)
	if err != nil {
		return TokenPair{}, err
	}
	return s.tokens.CreateTokenPair(user, LoginScopes(actx))
}

// User returns the account with the given id through the identity cache.
func (s *Service) User(ctx context.Context, userID string) (*User, error) {
	return s.resolver.UserByID(ctx, userID)
}

// Activate marks a user active and verified. It stands in for the OTP verification flow.
func (s *Service) Activate(ctx context.Context, userID string) (*User, error) {
	return s.setActive(ctx, userID, true)
}

// Deactivate soft-disables a user; outstanding tokens stop authenticating on the next request.
func (s *Service) Deactivate(ctx context.Context, userID string) (*User, error) {
	return s.setActive(ctx, userID, false)
}

func (s *Service) setActive(ctx context.Context, userID string, active bool) (*User, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, fmt.Errorf("%w: user_id is required", ErrInvalidInput)
	}
	users := s.store.Users(ctx)
	user, err := users.FindByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	user.IsActive = active
	if active {
		user.IsVerified = true
	}
	user.UpdatedAt = s.now().UTC()
	if err := users.Update(ctx, user); err != nil {
		return nil, err
	}
	s.resolver.InvalidateUser(ctx, user)
	return user, nil
}
