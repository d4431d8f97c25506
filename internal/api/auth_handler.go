package api

import (
	"net/http"

	"github.com/phrazzld/taskboard-api/internal/api/shared"
	"github.com/phrazzld/taskboard-api/internal/service"
)

// AuthHandler handles authentication-related API requests.
type AuthHandler struct {
	authService service.AuthService
}

// NewAuthHandler creates a new AuthHandler with the given dependencies.
func NewAuthHandler(authService service.AuthService) *AuthHandler {
	return &AuthHandler{authService: authService}
}

// Register handles POST /api/auth/register.
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	result, err := h.authService.Register(r.Context(), req.Name, req.Email, req.Password)
	if err != nil {
		HandleAPIError(w, r, err)
		return
	}
	shared.RespondWithData(w, r, http.StatusCreated, result)
}

// Login handles POST /api/auth/login.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	result, err := h.authService.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		HandleAPIError(w, r, err)
		return
	}
	shared.RespondWithData(w, r, http.StatusOK, result)
}
