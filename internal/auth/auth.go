package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"recruitcore.io/internal/cache"
)

const (
	defaultAccessTTL  = 15 * time.Minute
	defaultRefreshTTL = 7 * 24 * time.Hour

	// clockLeeway absorbs clock drift between instances on iat and exp checks.
	clockLeeway = 5 * time.Second
)

// TokenType distinguishes access tokens from refresh tokens.
type TokenType string

const (
	TokenAccess  TokenType = "access"
	TokenRefresh TokenType = "refresh"
)

// Claims is the signed claim set. Subject carries the user's email.
type Claims struct {
	Email  string    `json:"email,omitempty"`
	UserID string    `json:"user_id"`
	Scopes []string  `json:"scopes"`
	Type   TokenType `json:"type"`
	jwt.RegisteredClaims
}

// Validate is invoked by the parser after the registered claims pass.
func (c Claims) Validate() error {
	if strings.TrimSpace(c.Subject) == "" {
		return errors.New("subject missing")
	}
	if strings.TrimSpace(c.UserID) == "" {
		return errors.New("user_id missing")
	}
	switch c.Type {
	case TokenAccess, TokenRefresh:
		return nil
	default:
		return fmt.Errorf("unknown token type %q", c.Type)
	}
}

// TokenPair is the response of login and refresh. Lifetimes are in seconds.
type TokenPair struct {
	AccessToken           string `json:"access_token"`
	RefreshToken          string `json:"refresh_token"`
	TokenType             string `json:"token_type"`
	ExpiresIn             int64  `json:"expires_in"`
	RefreshTokenExpiresIn int64  `json:"refresh_token_expires_in"`
}

// DecodeFailure tags why a token was rejected.
type DecodeFailure int

const (
	DecodeOK DecodeFailure = iota
	DecodeMalformed
	DecodeBadSignature
	DecodeExpired
	DecodeInvalidClaims
)

func (f DecodeFailure) String() string {
	switch f {
	case DecodeOK:
		return "ok"
	case DecodeMalformed:
		return "malformed"
	case DecodeBadSignature:
		return "bad_signature"
	case DecodeExpired:
		return "expired"
	case DecodeInvalidClaims:
		return "invalid_claims"
	default:
		return "unknown"
	}
}

// DecodeResult holds either verified claims or the failure kind, never both.
type DecodeResult struct {
	Claims  *Claims
	Failure DecodeFailure
}

func (r DecodeResult) OK() bool { return r.Failure == DecodeOK && r.Claims != nil }

// revocations is the shared blacklist contract; cache.Blacklist satisfies it.
type revocations interface {
	Add(ctx context.Context, token string, ttl time.Duration) error
	AddIfAbsent(ctx context.Context, token string, ttl time.Duration) (bool, error)
	Contains(ctx context.Context, token string) (bool, error)
}

// TokenService mints, decodes and revokes HMAC-signed session tokens.
type TokenService struct {
	secret     []byte
	method     *jwt.SigningMethodHMAC
	issuer     string
	accessTTL  time.Duration
	refreshTTL time.Duration
	now        func() time.Time

	parseOpts  []jwt.ParserOption
	verifyOpts []jwt.ParserOption

	local      *MemoryBlacklist
	shared     revocations
	failClosed bool
}

// TokenOption configures TokenService.
type TokenOption func(*TokenService) error

// WithAccessTTL configures access token lifetime.
func WithAccessTTL(ttl time.Duration) TokenOption {
	return func(s *TokenService) error {
		if ttl > 0 {
			s.accessTTL = ttl
		}
		return nil
	}
}

// WithRefreshTTL configures refresh token lifetime.
func WithRefreshTTL(ttl time.Duration) TokenOption {
	return func(s *TokenService) error {
		if ttl > 0 {
			s.refreshTTL = ttl
		}
		return nil
	}
}

// WithIssuer sets the iss claim and requires it on decode.
func WithIssuer(issuer string) TokenOption {
	return func(s *TokenService) error {
		s.issuer = strings.TrimSpace(issuer)
		return nil
	}
}

// WithTokenClock overrides the time source.
func WithTokenClock(fn func() time.Time) TokenOption {
	return func(s *TokenService) error {
		if fn != nil {
			s.now = fn
		}
		return nil
	}
}

// WithSharedBlacklist makes revocations visible to every instance sharing the cache.
// A nil blacklist leaves the service on its in-process set.
func WithSharedBlacklist(b *cache.Blacklist) TokenOption {
	return func(s *TokenService) error {
		if b != nil {
			s.shared = b
		}
		return nil
	}
}

// WithFailClosed treats tokens as revoked while the shared blacklist is unreachable.
func WithFailClosed(failClosed bool) TokenOption {
	return func(s *TokenService) error {
		s.failClosed = failClosed
		return nil
	}
}

// NewTokenService builds a token service for one of HS256, HS384 or HS512.
func NewTokenService(secret, algorithm string, opts ...TokenOption) (*TokenService, error) {
	if strings.TrimSpace(secret) == "" {
		return nil, fmt.Errorf("%w: signing secret is required", ErrInvalidInput)
	}
	var method *jwt.SigningMethodHMAC
	switch strings.ToUpper(strings.TrimSpace(algorithm)) {
	case "HS256":
		method = jwt.SigningMethodHS256
	case "HS384":
		method = jwt.SigningMethodHS384
	case "HS512":
		method = jwt.SigningMethodHS512
	default:
		return nil, fmt.Errorf("%w: unsupported signing algorithm %q", ErrInvalidInput, algorithm)
	}
	svc := &TokenService{
		secret:     []byte(secret),
		method:     method,
		accessTTL:  defaultAccessTTL,
		refreshTTL: defaultRefreshTTL,
		now:        time.Now,
	}
	for _, opt := range opts {
		if err := opt(svc); err != nil {
			return nil, err
		}
	}
	svc.parseOpts = []jwt.ParserOption{
		jwt.WithValidMethods([]string{method.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		jwt.WithLeeway(clockLeeway),
		jwt.WithTimeFunc(svc.now),
	}
	if svc.issuer != "" {
		svc.parseOpts = append(svc.parseOpts, jwt.WithIssuer(svc.issuer))
	}
	svc.verifyOpts = []jwt.ParserOption{
		jwt.WithValidMethods([]string{method.Alg()}),
		jwt.WithoutClaimsValidation(),
	}
	svc.local = NewMemoryBlacklist(svc.now)
	return svc, nil
}

func (s *TokenService) AccessTTL() time.Duration  { return s.accessTTL }
func (s *TokenService) RefreshTTL() time.Duration { return s.refreshTTL }

// LocalBlacklist exposes the in-process revocation set so it can be pruned on a schedule.
func (s *TokenService) LocalBlacklist() *MemoryBlacklist { return s.local }

// CreateAccessToken signs claims with an absolute expiry ttl from now. A non-positive ttl uses
// the configured access lifetime and an empty type defaults to access.
func (s *TokenService) CreateAccessToken(claims Claims, ttl time.Duration) (string, error) {
	if ttl <= 0 {
		ttl = s.accessTTL
	}
	if claims.Type == "" {
		claims.Type = TokenAccess
	}
	token, _, err := s.sign(claims, ttl)
	return token, err
}

// CreateTokenPair mints an access and a refresh token carrying the same scopes snapshot.
func (s *TokenService) CreateTokenPair(user *User, scopes []string) (TokenPair, error) {
	if user == nil || user.ID == "" || user.Email == "" {
		return TokenPair{}, fmt.Errorf("%w: user id and email are required", ErrInvalidInput)
	}
	snapshot := make([]string, 0, len(scopes))
	snapshot = append(snapshot, scopes...)
	base := Claims{Email: user.Email, UserID: user.ID, Scopes: snapshot}
	base.Subject = user.Email

	access := base
	access.Type = TokenAccess
	accessToken, _, err := s.sign(access, s.accessTTL)
	if err != nil {
		return TokenPair{}, err
	}
	refresh := base
	refresh.Type = TokenRefresh
	refreshToken, _, err := s.sign(refresh, s.refreshTTL)
	if err != nil {
		return TokenPair{}, err
	}
	return TokenPair{
		AccessToken:           accessToken,
		RefreshToken:          refreshToken,
		TokenType:             "bearer",
		ExpiresIn:             int64(s.accessTTL / time.Second),
		RefreshTokenExpiresIn: int64(s.refreshTTL / time.Second),
	}, nil
}

func (s *TokenService) sign(claims Claims, ttl time.Duration) (string, time.Time, error) {
	now := s.now().UTC().Truncate(time.Second)
	exp := now.Add(ttl)
	claims.IssuedAt = jwt.NewNumericDate(now)
	claims.ExpiresAt = jwt.NewNumericDate(exp)
	if claims.ID == "" {
		claims.ID = uuid.NewString()
	}
	if s.issuer != "" {
		claims.Issuer = s.issuer
	}
	if claims.Subject == "" {
		claims.Subject = claims.Email
	}
	if err := claims.Validate(); err != nil {
		return "", time.Time{}, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	signed, err := jwt.NewWithClaims(s.method, claims).SignedString(s.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign token: %w", err)
	}
	return signed, exp, nil
}

func (s *TokenService) keyFunc(*jwt.Token) (any, error) { return s.secret, nil }

// Decode verifies signature and claims. It never panics and reports failures as a tag.
func (s *TokenService) Decode(token string) DecodeResult {
	token = strings.TrimSpace(token)
	if token == "" {
		return DecodeResult{Failure: DecodeMalformed}
	}
	claims := &Claims{}
	if _, err := jwt.ParseWithClaims(token, claims, s.keyFunc, s.parseOpts...); err != nil {
		return DecodeResult{Failure: classifyParseError(err)}
	}
	return DecodeResult{Claims: claims}
}

func classifyParseError(err error) DecodeFailure {
	switch {
	case errors.Is(err, jwt.ErrTokenMalformed):
		return DecodeMalformed
	case errors.Is(err, jwt.ErrTokenSignatureInvalid), errors.Is(err, jwt.ErrTokenUnverifiable):
		return DecodeBadSignature
	case errors.Is(err, jwt.ErrTokenExpired):
		return DecodeExpired
	default:
		return DecodeInvalidClaims
	}
}

// expiry returns the exp of a token whose signature verifies, ignoring claim validity.
func (s *TokenService) expiry(token string) (time.Time, bool) {
	claims := &Claims{}
	if _, err := jwt.ParseWithClaims(strings.TrimSpace(token), claims, s.keyFunc, s.verifyOpts...); err != nil {
		return time.Time{}, false
	}
	if claims.ExpiresAt == nil {
		return time.Time{}, false
	}
	return claims.ExpiresAt.Time, true
}

// BlacklistToken revokes token for the rest of its lifetime. Tokens that do not verify or have
// already expired are ignored since the gate rejects them anyway. The local set is always
// updated; an error means the shared store did not record the revocation.
func (s *TokenService) BlacklistToken(ctx context.Context, token string) error {
	exp, ok := s.expiry(token)
	if !ok {
		return nil
	}
	ttl := exp.Sub(s.now())
	if ttl <= 0 {
		return nil
	}
	s.local.Add(token, exp)
	if s.shared == nil {
		return nil
	}
	if err := s.shared.Add(ctx, token, ttl); err != nil {
		return fmt.Errorf("shared blacklist: %w", err)
	}
	return nil
}

// IsTokenBlacklisted checks the local set, then the shared store. When the shared store is
// unreachable the answer is the fail-closed setting.
func (s *TokenService) IsTokenBlacklisted(ctx context.Context, token string) bool {
	if s.local.Contains(token) {
		return true
	}
	if s.shared == nil {
		return false
	}
	revoked, err := s.shared.Contains(ctx, token)
	if err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).
			Str("component", "blacklist").
			Bool("fail_closed", s.failClosed).
			Msg("shared blacklist lookup failed")
		return s.failClosed
	}
	return revoked
}

// ConsumeToken revokes token and reports whether this call performed the revocation, so two
// concurrent refreshes with the same token cannot both succeed.
func (s *TokenService) ConsumeToken(ctx context.Context, token string) (bool, error) {
	exp, ok := s.expiry(token)
	if !ok {
		return false, nil
	}
	ttl := exp.Sub(s.now())
	if ttl <= 0 || s.local.Contains(token) {
		return false, nil
	}
	if s.shared != nil {
		claimed, err := s.shared.AddIfAbsent(ctx, token, ttl)
		if err == nil {
			if claimed {
				s.local.Add(token, exp)
			}
			return claimed, nil
		}
		if s.failClosed {
			return false, fmt.Errorf("shared blacklist: %w", err)
		}
		zerolog.Ctx(ctx).Warn().Err(err).Str("component", "blacklist").Msg("shared blacklist unavailable; consuming locally")
	}
	return s.local.AddIfAbsent(token, exp), nil
}
