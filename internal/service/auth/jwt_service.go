// Package auth issues and verifies bearer tokens and password hashes.
package auth

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// JWTService defines operations for managing JWT authentication tokens.
type JWTService interface {
	// GenerateToken creates a signed JWT access token for the user.
	GenerateToken(ctx context.Context, userID uuid.UUID, email string) (string, error)

	// ValidateToken validates the provided token string and extracts the claims.
	// Returns ErrExpiredToken, ErrTokenNotYetValid or ErrInvalidToken on failure.
	ValidateToken(ctx context.Context, tokenString string) (*Claims, error)
}

// Claims represents the information carried by a validated token.
type Claims struct {
	UserID    uuid.UUID
	Email     string
	Subject   string
	IssuedAt  time.Time
	ExpiresAt time.Time
	ID        string
}
