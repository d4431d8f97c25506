package auth

import "errors"

// Token validation failures. The HTTP layer answers all of them with 401;
// any other error from ValidateToken is an internal failure.
var (
	ErrMissingToken     = errors.New("authentication token is missing")
	ErrInvalidToken     = errors.New("invalid authentication token")
	ErrExpiredToken     = errors.New("authentication token has expired")
	ErrTokenNotYetValid = errors.New("authentication token not yet valid")
)
