package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/phrazzld/taskboard-api/internal/config"
	"github.com/phrazzld/taskboard-api/internal/platform/logger"
)

// MinSecretLength is the shortest accepted HMAC signing secret.
const MinSecretLength = 32

// hmacJWTService is an implementation of JWTService using HMAC-SHA256 signing.
type hmacJWTService struct {
	signingKey    []byte
	tokenLifetime time.Duration
	timeFunc      func() time.Time // Injectable for testing
	clockSkew     time.Duration
}

type jwtCustomClaims struct {
	UserID uuid.UUID `json:"userId"`
	Email  string    `json:"email"`
	jwt.RegisteredClaims
}

var _ JWTService = (*hmacJWTService)(nil)

// NewJWTService creates a new JWT service using HMAC-SHA256 signing.
func NewJWTService(cfg config.AuthConfig) (JWTService, error) {
	return newHMACJWTService(cfg.JWTSecret, cfg.TokenLifetime(), time.Now)
}

func newHMACJWTService(secret string, lifetime time.Duration, now func() time.Time) (*hmacJWTService, error) {
	if len(secret) < MinSecretLength {
		return nil, fmt.Errorf("jwt secret must be at least %d characters", MinSecretLength)
	}
	if lifetime <= 0 {
		return nil, fmt.Errorf("token lifetime must be positive")
	}
	return &hmacJWTService{
		signingKey:    []byte(secret),
		tokenLifetime: lifetime,
		timeFunc:      now,
		clockSkew:     2 * time.Minute,
	}, nil
}

// GenerateToken creates a signed JWT access token with user claims.
func (s *hmacJWTService) GenerateToken(ctx context.Context, userID uuid.UUID, email string) (string, error) {
	now := s.timeFunc()

	claims := jwtCustomClaims{
		UserID: userID,
		Email:  email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.tokenLifetime)),
			ID:        uuid.New().String(),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.signingKey)
	if err != nil {
		logger.FromContext(ctx).Error("failed to sign JWT",
			"error", err,
			"user_id", userID)
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

// ValidateToken validates a JWT access token and returns the claims if valid.
func (s *hmacJWTService) ValidateToken(ctx context.Context, tokenString string) (*Claims, error) {
	if tokenString == "" {
		return nil, ErrMissingToken
	}

	log := logger.FromContext(ctx)
	now := s.timeFunc()

	token, err := jwt.ParseWithClaims(
		tokenString,
		&jwtCustomClaims{},
		func(token *jwt.Token) (any, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
			}
			return s.signingKey, nil
		},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Name}),
		jwt.WithLeeway(s.clockSkew),
		jwt.WithTimeFunc(func() time.Time { return now }),
	)
	if err != nil {
		switch {
		case errors.Is(err, jwt.ErrTokenExpired):
			log.Debug("token validation failed: expired", "error", err)
			return nil, ErrExpiredToken
		case errors.Is(err, jwt.ErrTokenNotValidYet):
			log.Debug("token validation failed: not yet valid", "error", err)
			return nil, ErrTokenNotYetValid
		default:
			log.Debug("token validation failed", "error", err, "error_type", fmt.Sprintf("%T", err))
			return nil, ErrInvalidToken
		}
	}

	claims, ok := token.Claims.(*jwtCustomClaims)
	if !ok || !token.Valid || claims.UserID == uuid.Nil || claims.ExpiresAt == nil {
		log.Debug("token validation failed: invalid claims")
		return nil, ErrInvalidToken
	}

	out := &Claims{
		UserID:    claims.UserID,
		Email:     claims.Email,
		Subject:   claims.Subject,
		ExpiresAt: claims.ExpiresAt.Time,
		ID:        claims.ID,
	}
	if claims.IssuedAt != nil {
		out.IssuedAt = claims.IssuedAt.Time
	}
	return out, nil
}
