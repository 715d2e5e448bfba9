package httpx

import (
	"errors"
	"net/http"
)

// Sentinel errors shared by HTTP-facing layers.
var (
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")
	ErrValidation   = errors.New("validation failed")
)

// RespondError maps domain errors to deny payloads. Unknown errors become
// an opaque 500.
func RespondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrUnauthorized):
		Unauthorized(w)
	case errors.Is(err, ErrForbidden):
		Forbidden(w, "")
	case errors.Is(err, ErrValidation):
		JSON(w, http.StatusBadRequest, ErrorBody{Error: "Requête invalide"})
	default:
		Internal(w)
	}
}
