package auth

import (
	"errors"
	"fmt"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"

	"github.com/bookshelf-labs/library-service/internal/domain"
)

var (
	ErrEmptySubject    = errors.New("token subject must not be empty")
	ErrUnknownKind     = errors.New("unknown token kind")
	ErrMissingSecret   = errors.New("token secret must not be empty")
	ErrInvalidClaims   = errors.New("invalid token claims")
	ErrWrongTokenKind  = errors.New("wrong token kind")
	ErrSubjectMismatch = errors.New("token subject mismatch")
)

// Claims describes the JWT payload: {sub, role, type, iat, exp}.
type Claims struct {
	Role domain.Role      `json:"role"`
	Kind domain.TokenKind `json:"type"`
	jwt.RegisteredClaims
}

// CheckResult is the outcome of validating a token against an identity.
// Exactly one of Principal or Reason is set.
type CheckResult struct {
	Principal *domain.Principal
	Reason    string
}

// OK reports whether the token was valid.
func (r CheckResult) OK() bool {
	return r.Principal != nil
}

func valid(p domain.Principal) CheckResult {
	return CheckResult{Principal: &p}
}

func invalid(reason string) CheckResult {
	return CheckResult{Reason: reason}
}

// TokenService issues and validates HMAC-signed tokens.
type TokenService struct {
	secret     []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
	now        func() time.Time
	parser     *jwt.Parser
}

// TokenOption customizes a TokenService.
type TokenOption func(*TokenService)

// WithClock overrides the time source used for stamping and expiry checks.
func WithClock(now func() time.Time) TokenOption {
	return func(s *TokenService) {
		if now != nil {
			s.now = now
		}
	}
}

// NewTokenService builds a token service for the given secret and lifetimes.
func NewTokenService(secret []byte, accessTTL, refreshTTL time.Duration, opts ...TokenOption) (*TokenService, error) {
	if len(secret) == 0 {
		return nil, ErrMissingSecret
	}
	if accessTTL <= 0 || refreshTTL <= 0 {
		return nil, errors.New("token lifetimes must be positive")
	}
	s := &TokenService{
		secret:     append([]byte(nil), secret...),
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.parser = jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		jwt.WithStrictDecoding(),
		jwt.WithTimeFunc(func() time.Time { return s.now() }),
	)
	return s, nil
}

// TTL returns the lifetime configured for kind.
func (s *TokenService) TTL(kind domain.TokenKind) (time.Duration, error) {
	switch kind {
	case domain.TokenKindAccess:
		return s.accessTTL, nil
	case domain.TokenKindRefresh:
		return s.refreshTTL, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}
}

// Issue builds and signs a token for subject.
func (s *TokenService) Issue(subject string, role domain.Role, kind domain.TokenKind) (string, time.Time, error) {
	if subject == "" {
		return "", time.Time{}, ErrEmptySubject
	}
	ttl, err := s.TTL(kind)
	if err != nil {
		return "", time.Time{}, err
	}

	issuedAt := jwt.NewNumericDate(s.now())
	expiresAt := jwt.NewNumericDate(issuedAt.Add(ttl))
	claims := &Claims{
		Role: role,
		Kind: kind,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			IssuedAt:  issuedAt,
			ExpiresAt: expiresAt,
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, expiresAt.Time, nil
}

// Parse validates signature, algorithm and expiry and returns the claims.
func (s *TokenService) Parse(token string) (*Claims, error) {
	parsed, err := s.parser.ParseWithClaims(token, &Claims{}, func(*jwt.Token) (interface{}, error) {
		return s.secret, nil
	})
	if err != nil {
		return nil, err
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid || claims.Subject == "" {
		return nil, ErrInvalidClaims
	}
	return claims, nil
}

// Verify reports whether token is well formed, unexpired and issued for expectedSubject.
func (s *TokenService) Verify(token, expectedSubject string) bool {
	claims, err := s.Parse(token)
	if err != nil {
		return false
	}
	return expectedSubject != "" && claims.Subject == expectedSubject
}

// Check validates token for expectedSubject and expectedKind and yields the principal
// built from the token's own role claim.
func (s *TokenService) Check(token, expectedSubject string, expectedKind domain.TokenKind) CheckResult {
	claims, err := s.Parse(token)
	if err != nil {
		return invalid(err.Error())
	}
	if expectedSubject == "" || claims.Subject != expectedSubject {
		return invalid(ErrSubjectMismatch.Error())
	}
	if claims.Kind != expectedKind {
		return invalid(ErrWrongTokenKind.Error())
	}
	if !claims.Role.Valid() {
		return invalid("unknown role claim")
	}
	return valid(domain.Principal{Subject: claims.Subject, Role: claims.Role})
}

// ExtractSubject returns the sub claim.
func (s *TokenService) ExtractSubject(token string) (string, error) {
	claims, err := s.Parse(token)
	if err != nil {
		return "", err
	}
	return claims.Subject, nil
}

// ExtractRole returns the role claim.
func (s *TokenService) ExtractRole(token string) (domain.Role, error) {
	claims, err := s.Parse(token)
	if err != nil {
		return "", err
	}
	return claims.Role, nil
}

// IsRefreshKind reports whether token is a valid refresh token. Decode failures read as false.
func (s *TokenService) IsRefreshKind(token string) bool {
	claims, err := s.Parse(token)
	if err != nil {
		return false
	}
	return claims.Kind == domain.TokenKindRefresh
}
