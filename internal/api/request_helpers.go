package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/phrazzld/taskboard-api/internal/api/shared"
	"github.com/phrazzld/taskboard-api/internal/domain"
	"github.com/phrazzld/taskboard-api/internal/platform/logger"
)

// getPathUUID parses the named chi path parameter as a UUID.
func getPathUUID(r *http.Request, paramName string) (uuid.UUID, error) {
	raw := chi.URLParam(r, paramName)
	if raw == "" {
		return uuid.Nil, domain.NewValidationError(paramName + " is required")
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, domain.NewError(domain.KindValidation, "Invalid "+paramName, domain.ErrInvalidID)
	}
	return id, nil
}

// requireUser returns the authenticated user's ID, writing a 401 when the
// request carries none.
func requireUser(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	userID, ok := shared.UserIDFromContext(r.Context())
	if !ok {
		logger.FromContext(r.Context()).Warn("user ID not found in request context")
		HandleAPIError(w, r, domain.NewAuthenticationError("Authentication required"))
		return uuid.Nil, false
	}
	return userID, true
}

// handleUserIDAndPathUUID extracts the authenticated user and the named
// path UUID, writing an error response when either is missing.
func handleUserIDAndPathUUID(w http.ResponseWriter, r *http.Request, paramName string) (uuid.UUID, uuid.UUID, bool) {
	userID, ok := requireUser(w, r)
	if !ok {
		return uuid.Nil, uuid.Nil, false
	}
	pathID, err := getPathUUID(r, paramName)
	if err != nil {
		HandleAPIError(w, r, err)
		return uuid.Nil, uuid.Nil, false
	}
	return userID, pathID, true
}

// decodeAndValidate decodes the body into v and validates it, writing a
// 400 on failure.
func decodeAndValidate(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := shared.DecodeJSON(w, r, v); err != nil {
		respondValidation(w, r, "Invalid request format", err)
		return false
	}
	if err := shared.ValidateRequest(v); err != nil {
		respondValidation(w, r, shared.ValidationMessage(err), err)
		return false
	}
	return true
}
