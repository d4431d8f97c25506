package mocks

import (
	"context"

	"github.com/google/uuid"

	"github.com/phrazzld/taskboard-api/internal/service/auth"
)

// MockJWTService implements auth.JWTService for testing.
type MockJWTService struct {
	GenerateTokenFn func(ctx context.Context, userID uuid.UUID, email string) (string, error)
	ValidateTokenFn func(ctx context.Context, tokenString string) (*auth.Claims, error)

	// Defaults used when the Fn fields are nil.
	Token       string
	Err         error
	Claims      *auth.Claims
	ValidateErr error
}

var _ auth.JWTService = (*MockJWTService)(nil)

// GenerateToken implements auth.JWTService.
func (m *MockJWTService) GenerateToken(ctx context.Context, userID uuid.UUID, email string) (string, error) {
	if m.GenerateTokenFn != nil {
		return m.GenerateTokenFn(ctx, userID, email)
	}
	return m.Token, m.Err
}

// ValidateToken implements auth.JWTService.
func (m *MockJWTService) ValidateToken(ctx context.Context, tokenString string) (*auth.Claims, error) {
	if m.ValidateTokenFn != nil {
		return m.ValidateTokenFn(ctx, tokenString)
	}
	return m.Claims, m.ValidateErr
}
