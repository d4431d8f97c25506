package api

import (
	"errors"
	"net/http"

	"github.com/phrazzld/taskboard-api/internal/api/shared"
	"github.com/phrazzld/taskboard-api/internal/domain"
)

const msgUnexpected = "An unexpected error occurred"

// MapErrorToStatusCode maps an error's kind to an HTTP status code.
// Errors without a kind are internal.
func MapErrorToStatusCode(err error) int {
	switch domain.KindOf(err) {
	case domain.KindValidation, domain.KindExportNotReady:
		return http.StatusBadRequest
	case domain.KindAuthentication:
		return http.StatusUnauthorized
	case domain.KindAuthorization:
		return http.StatusForbidden
	case domain.KindNotFound:
		return http.StatusNotFound
	case domain.KindConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// GetSafeErrorMessage returns the client-facing message of err. Internal
// errors never expose their cause.
func GetSafeErrorMessage(err error) string {
	var de *domain.Error
	if !errors.As(err, &de) || de.Kind == domain.KindInternal || de.Message == "" {
		return msgUnexpected
	}
	return de.Message
}

// HandleAPIError writes the error envelope for err and logs the redacted
// cause.
func HandleAPIError(w http.ResponseWriter, r *http.Request, err error) {
	shared.RespondWithErrorAndLog(w, r,
		MapErrorToStatusCode(err),
		domain.KindOf(err).Code(),
		GetSafeErrorMessage(err),
		err)
}

// respondValidation writes a 400 VALIDATION_ERROR with message.
func respondValidation(w http.ResponseWriter, r *http.Request, message string, err error) {
	shared.RespondWithErrorAndLog(w, r, http.StatusBadRequest,
		domain.KindValidation.Code(), message, err)
}
