package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/tick42/quicksilver/internal/models"
	pkghttp "github.com/tick42/quicksilver/pkg/http"
)

// respondError recovers a domain error into the HTTP boundary. The
// convention: 400 for validation, credential and state errors, 401 for
// unauthenticated callers and hidden resources, 403 for forbidden, 404 for
// missing, 409 for conflicts. Anything unrecognized is a 500 and the
// original error never crosses the boundary.
func respondError(w http.ResponseWriter, logger *slog.Logger, err error) {
	if verr, ok := models.AsValidationError(err); ok {
		pkghttp.WriteValidationError(w, verr.Messages)
		return
	}

	switch {
	case errors.Is(err, models.ErrPasswordMismatch),
		errors.Is(err, models.ErrCredentialMismatch),
		errors.Is(err, models.ErrInvalidState),
		errors.Is(err, models.ErrBadRequest):
		pkghttp.WriteBadRequest(w, err.Error())
	case errors.Is(err, models.ErrProfileUnavailable),
		errors.Is(err, models.ErrExtensionUnavailable),
		errors.Is(err, models.ErrUnauthorized):
		pkghttp.WriteUnauthorized(w, err.Error())
	case errors.Is(err, models.ErrForbidden):
		pkghttp.WriteForbidden(w, err.Error())
	case errors.Is(err, models.ErrNotFound):
		pkghttp.WriteNotFound(w, err.Error())
	case errors.Is(err, models.ErrUsernameExists),
		errors.Is(err, models.ErrConflict):
		pkghttp.WriteConflict(w, err.Error())
	default:
		logger.Error("unhandled error", slog.Any("error", err))
		pkghttp.WriteInternalError(w, "something went wrong")
	}
}
