package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/phrazzld/taskboard-api/internal/domain"
	"github.com/phrazzld/taskboard-api/internal/platform/logger"
	"github.com/phrazzld/taskboard-api/internal/service/auth"
	"github.com/phrazzld/taskboard-api/internal/store"
)

// AuthResult is returned by a successful registration or login.
type AuthResult struct {
	User  *domain.User `json:"user"`
	Token string       `json:"token"`
}

// AuthService registers users and issues bearer tokens.
type AuthService interface {
	// Register creates a user and returns it with a fresh token.
	// A taken email yields a Conflict error.
	Register(ctx context.Context, name, email, password string) (*AuthResult, error)

	// Login verifies credentials and returns a fresh token. Unknown email
	// and wrong password are indistinguishable to the caller.
	Login(ctx context.Context, email, password string) (*AuthResult, error)

	// GetUser retrieves a user by ID.
	GetUser(ctx context.Context, userID uuid.UUID) (*domain.User, error)
}

type authService struct {
	users  store.UserStore
	hasher auth.PasswordHasher
	tokens auth.JWTService
	logger *slog.Logger
}

// NewAuthService creates an AuthService.
func NewAuthService(
	users store.UserStore,
	hasher auth.PasswordHasher,
	tokens auth.JWTService,
	logger *slog.Logger,
) (AuthService, error) {
	if users == nil || hasher == nil || tokens == nil {
		return nil, errors.New("auth service dependencies cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &authService{
		users:  users,
		hasher: hasher,
		tokens: tokens,
		logger: logger.With("component", "auth_service"),
	}, nil
}

// Register implements AuthService.
func (s *authService) Register(ctx context.Context, name, email, password string) (*AuthResult, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	user, err := domain.NewUser(name, email, password)
	if err != nil {
		return nil, invalid(err)
	}

	hashed, err := s.hasher.Hash(user.Password)
	if err != nil {
		return nil, domain.NewInternalError(err, false)
	}
	user.HashedPassword = hashed
	user.Password = ""

	if err := s.users.Create(ctx, user); err != nil {
		if store.IsDuplicateError(err) {
			log.Debug("registration with existing email", "email", user.Email)
			return nil, domain.NewError(domain.KindConflict, msgEmailTaken, err)
		}
		log.Error("failed to create user", "error", err)
		return nil, domain.NewInternalError(err, false)
	}

	token, err := s.tokens.GenerateToken(ctx, user.ID, user.Email)
	if err != nil {
		return nil, domain.NewInternalError(fmt.Errorf("issue token: %w", err), false)
	}

	log.Info("user registered", "user_id", user.ID)
	return &AuthResult{User: user, Token: token}, nil
}

// Login implements AuthService.
func (s *authService) Login(ctx context.Context, email, password string) (*AuthResult, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	user, err := s.users.GetByEmail(ctx, domain.NormalizeEmail(email))
	if err != nil {
		if errors.Is(err, store.ErrUserNotFound) {
			return nil, domain.NewError(domain.KindAuthentication, msgBadCredentials, err)
		}
		log.Error("failed to look up user for login", "error", err)
		return nil, domain.NewInternalError(err, false)
	}

	if err := s.hasher.Compare(user.HashedPassword, password); err != nil {
		log.Debug("login with wrong password", "user_id", user.ID)
		return nil, domain.NewError(domain.KindAuthentication, msgBadCredentials, err)
	}

	token, err := s.tokens.GenerateToken(ctx, user.ID, user.Email)
	if err != nil {
		return nil, domain.NewInternalError(fmt.Errorf("issue token: %w", err), false)
	}
	return &AuthResult{User: user, Token: token}, nil
}

// GetUser implements AuthService.
func (s *authService) GetUser(ctx context.Context, userID uuid.UUID) (*domain.User, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, fromStore(err, "User not found")
	}
	return user, nil
}
