package auth

import (
	"context"
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/bookshelf-labs/library-service/internal/domain"
)

const principalKey = "auth_principal"

// TokenChecker is the part of TokenService the gatekeeper depends on.
type TokenChecker interface {
	ExtractSubject(token string) (string, error)
	Check(token, expectedSubject string, expectedKind domain.TokenKind) CheckResult
}

// IdentityLookup loads the identity named by a token subject.
// A missing identity is reported as pgx.ErrNoRows.
type IdentityLookup interface {
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
}

// Gatekeeper runs once per request and attaches a Principal when the request
// carries a valid access token. It never rejects a request itself; route guards
// decide what anonymous callers may do.
type Gatekeeper struct {
	policy     *Policy
	tokens     TokenChecker
	identities IdentityLookup
	logger     *zap.Logger
}

// NewGatekeeper constructs the middleware.
func NewGatekeeper(policy *Policy, tokens TokenChecker, identities IdentityLookup, logger *zap.Logger) *Gatekeeper {
	if policy == nil {
		policy = DefaultPolicy()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Gatekeeper{policy: policy, tokens: tokens, identities: identities, logger: logger}
}

// Policy exposes the exemption table in use.
func (g *Gatekeeper) Policy() *Policy {
	return g.policy
}

// Handle is the fiber handler.
func (g *Gatekeeper) Handle(c *fiber.Ctx) error {
	if g.policy.Classify(c.Method(), c.Path()) == AccessPublic {
		return c.Next()
	}

	raw, ok := BearerToken(c.Get(fiber.HeaderAuthorization))
	if !ok {
		return c.Next()
	}

	subject, err := g.tokens.ExtractSubject(raw)
	if err != nil {
		g.logger.Debug("token rejected", zap.String("path", c.Path()), zap.String("reason", err.Error()))
		return c.Next()
	}

	if _, attached := PrincipalFromContext(c); attached {
		return c.Next()
	}

	result := g.authenticate(c.UserContext(), raw, subject)
	if !result.OK() {
		g.logger.Debug("token rejected",
			zap.String("path", c.Path()),
			zap.String("subject", subject),
			zap.String("reason", result.Reason))
		return c.Next()
	}

	c.Locals(principalKey, result.Principal)
	return c.Next()
}

func (g *Gatekeeper) authenticate(ctx context.Context, raw, subject string) CheckResult {
	identity, err := g.identities.GetByEmail(ctx, subject)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return invalid("identity not found")
		}
		g.logger.Warn("identity lookup failed", zap.String("subject", subject), zap.Error(err))
		return invalid("identity lookup failed")
	}
	if identity == nil {
		return invalid("identity not found")
	}
	return g.tokens.Check(raw, identity.Email, domain.TokenKindAccess)
}

// BearerToken extracts the token from an Authorization header value.
func BearerToken(header string) (string, bool) {
	parts := strings.SplitN(strings.TrimSpace(header), " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", false
	}
	token := strings.TrimSpace(parts[1])
	if token == "" {
		return "", false
	}
	return token, true
}

// PrincipalFromContext retrieves the authenticated caller, if any.
func PrincipalFromContext(c *fiber.Ctx) (*domain.Principal, bool) {
	val := c.Locals(principalKey)
	if val == nil {
		return nil, false
	}
	principal, ok := val.(*domain.Principal)
	return principal, ok && principal != nil
}
