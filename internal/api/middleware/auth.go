package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/phrazzld/taskboard-api/internal/api/shared"
	"github.com/phrazzld/taskboard-api/internal/domain"
	"github.com/phrazzld/taskboard-api/internal/platform/logger"
	"github.com/phrazzld/taskboard-api/internal/service/auth"
)

// Messages returned on rejected requests.
const (
	MsgMissingToken = "No token provided or invalid format"
	MsgInvalidToken = "Invalid or expired token"
	MsgAuthFailed   = "Authentication failed"
)

// AuthMiddleware provides JWT authentication for routes.
type AuthMiddleware struct {
	jwtService auth.JWTService
}

// NewAuthMiddleware creates a new AuthMiddleware with the given dependencies.
func NewAuthMiddleware(jwtService auth.JWTService) *AuthMiddleware {
	return &AuthMiddleware{jwtService: jwtService}
}

// Authenticate requires a valid "Bearer <token>" Authorization header and
// puts the token's user into the request context.
func (m *AuthMiddleware) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
		if !ok || strings.TrimSpace(token) == "" {
			shared.RespondWithError(w, r, http.StatusUnauthorized,
				domain.KindAuthentication.Code(), MsgMissingToken)
			return
		}

		claims, err := m.jwtService.ValidateToken(r.Context(), token)
		if err != nil {
			switch {
			case errors.Is(err, auth.ErrMissingToken),
				errors.Is(err, auth.ErrInvalidToken),
				errors.Is(err, auth.ErrExpiredToken),
				errors.Is(err, auth.ErrTokenNotYetValid):
				shared.RespondWithErrorAndLog(w, r, http.StatusUnauthorized,
					domain.KindAuthentication.Code(), MsgInvalidToken, err)
			default:
				shared.RespondWithErrorAndLog(w, r, http.StatusInternalServerError,
					domain.KindInternal.Code(), MsgAuthFailed, err)
			}
			return
		}

		ctx := shared.WithUser(r.Context(), claims.UserID, claims.Email)
		ctx = logger.WithLogger(ctx, logger.FromContext(ctx).With("user_id", claims.UserID))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
