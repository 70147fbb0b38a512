package service

import (
	"context"
	"errors"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/bookshelf-labs/library-service/internal/auth"
	"github.com/bookshelf-labs/library-service/internal/domain"
	"github.com/bookshelf-labs/library-service/internal/repository"
	apperrors "github.com/bookshelf-labs/library-service/pkg/util/errorutil"
)

// TokenPair is returned by every successful register, login or refresh.
type TokenPair struct {
	AccessToken      string
	AccessExpiresAt  time.Time
	RefreshToken     string
	RefreshExpiresAt time.Time
}

// AuthService coordinates registration, login and token refresh.
type AuthService struct {
	users      repository.UserRepository
	tokens     *auth.TokenService
	bcryptCost int
	logger     *zap.Logger
}

// NewAuthService builds the service.
func NewAuthService(users repository.UserRepository, tokens *auth.TokenService, bcryptCost int, logger *zap.Logger) *AuthService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuthService{users: users, tokens: tokens, bcryptCost: bcryptCost, logger: logger}
}

// Tokens exposes the token service for middleware wiring.
func (s *AuthService) Tokens() *auth.TokenService {
	return s.tokens
}

// Register creates a USER account and signs it in.
func (s *AuthService) Register(ctx context.Context, name, email, password string) (*domain.User, *TokenPair, error) {
	name = strings.TrimSpace(name)
	email = normalizeEmail(email)
	details := map[string]any{}
	if name == "" {
		details["name"] = "required"
	}
	if addr, err := mail.ParseAddress(email); err != nil || addr.Address != email {
		details["email"] = "must be a valid address"
	}
	if len(password) < auth.MinPasswordLength {
		details["password"] = "must be at least 8 characters"
	}
	if len(details) > 0 {
		return nil, nil, apperrors.NewValidationError("invalid registration", details)
	}

	if _, err := s.users.GetByEmail(ctx, email); err == nil {
		return nil, nil, apperrors.NewConflict("email already registered", nil)
	} else if !errors.Is(err, pgx.ErrNoRows) {
		return nil, nil, err
	}

	user, err := s.createUser(ctx, name, email, password, domain.RoleUser)
	if err != nil {
		return nil, nil, err
	}

	pair, err := s.issuePair(user.Email, user.Role)
	if err != nil {
		return nil, nil, err
	}
	s.logger.Info("user registered", zap.String("user_id", user.ID))
	return user, pair, nil
}

// Login authenticates by email and password.
func (s *AuthService) Login(ctx context.Context, email, password string) (*domain.User, *TokenPair, error) {
	user, err := s.users.GetByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil, apperrors.NewUnauthorized("invalid credentials")
		}
		return nil, nil, err
	}
	if !auth.PasswordMatches(user.PasswordHash, password) {
		return nil, nil, apperrors.NewUnauthorized("invalid credentials")
	}

	pair, err := s.issuePair(user.Email, user.Role)
	if err != nil {
		return nil, nil, err
	}
	return user, pair, nil
}

// Refresh exchanges a refresh token for a new pair. Access tokens are rejected.
// The new pair carries the role currently stored for the user.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (*domain.User, *TokenPair, error) {
	subject, err := s.tokens.ExtractSubject(refreshToken)
	if err != nil {
		return nil, nil, apperrors.NewUnauthorized("invalid refresh token")
	}
	if !s.tokens.IsRefreshKind(refreshToken) {
		return nil, nil, apperrors.NewUnauthorized("wrong token kind: refresh token required")
	}

	user, err := s.users.GetByEmail(ctx, subject)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil, apperrors.NewUnauthorized("invalid refresh token")
		}
		return nil, nil, err
	}

	if result := s.tokens.Check(refreshToken, user.Email, domain.TokenKindRefresh); !result.OK() {
		return nil, nil, apperrors.NewUnauthorized("invalid refresh token")
	}

	pair, err := s.issuePair(user.Email, user.Role)
	if err != nil {
		return nil, nil, err
	}
	return user, pair, nil
}

// Me loads the account behind the principal.
func (s *AuthService) Me(ctx context.Context, principal *domain.Principal) (*domain.User, error) {
	if principal == nil {
		return nil, apperrors.NewUnauthorized("authentication required")
	}
	user, err := s.users.GetByEmail(ctx, principal.Subject)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("user", nil)
		}
		return nil, err
	}
	return user, nil
}

// ChangeRole updates a user's stored role. Tokens already issued keep the old
// role claim until they expire.
func (s *AuthService) ChangeRole(ctx context.Context, userID string, role domain.Role) (*domain.User, error) {
	if !role.Valid() {
		return nil, apperrors.NewValidationError("invalid role", map[string]any{"role": string(role)})
	}
	if _, err := uuid.Parse(userID); err != nil {
		return nil, apperrors.NewNotFound("user", nil)
	}
	if err := s.users.UpdateRole(ctx, userID, role); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("user", nil)
		}
		return nil, err
	}
	s.logger.Info("user role changed", zap.String("user_id", userID), zap.String("role", string(role)))
	return s.users.GetByID(ctx, userID)
}

// EnsureAdmin creates the bootstrap admin account when it does not exist yet.
func (s *AuthService) EnsureAdmin(ctx context.Context, email, password string) error {
	email = normalizeEmail(email)
	if email == "" || password == "" {
		return nil
	}
	if _, err := s.users.GetByEmail(ctx, email); err == nil {
		return nil
	} else if !errors.Is(err, pgx.ErrNoRows) {
		return err
	}
	if _, err := s.createUser(ctx, "Administrator", email, password, domain.RoleAdmin); err != nil {
		return err
	}
	s.logger.Info("bootstrap admin created", zap.String("email", email))
	return nil
}

func (s *AuthService) createUser(ctx context.Context, name, email, password string, role domain.Role) (*domain.User, error) {
	hash, err := auth.HashPassword(password, s.bcryptCost)
	if err != nil {
		return nil, err
	}
	user := &domain.User{
		ID:           uuid.NewString(),
		Name:         name,
		Email:        email,
		PasswordHash: hash,
		Role:         role,
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

func (s *AuthService) issuePair(subject string, role domain.Role) (*TokenPair, error) {
	access, accessExp, err := s.tokens.Issue(subject, role, domain.TokenKindAccess)
	if err != nil {
		return nil, err
	}
	refresh, refreshExp, err := s.tokens.Issue(subject, role, domain.TokenKindRefresh)
	if err != nil {
		return nil, err
	}
	return &TokenPair{
		AccessToken:      access,
		AccessExpiresAt:  accessExp,
		RefreshToken:     refresh,
		RefreshExpiresAt: refreshExp,
	}, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
