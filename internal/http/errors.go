package http

import (
	"errors"
	"net/http"

	"finledger/internal/auth"
	"finledger/internal/core"
	applog "finledger/internal/log"
	"finledger/internal/session"
	"finledger/internal/storage"
)

// errBusy is returned while the same operation on the same entity is still
// running for the user.
var errBusy = errors.New("operation already in progress")

func classify(err error) (status int, errorType string) {
	switch {
	case errors.Is(err, auth.ErrMissingToken), errors.Is(err, auth.ErrInvalidToken), errors.Is(err, session.ErrNotSignedIn):
		return http.StatusUnauthorized, applog.ErrorTypeAuth
	case errors.Is(err, errBusy):
		return http.StatusConflict, applog.ErrorTypeConflict
	case errors.Is(err, storage.ErrTransactionNotFound), errors.Is(err, storage.ErrScheduledNotFound):
		return http.StatusNotFound, applog.ErrorTypeNotFound
	case core.IsValidationError(err):
		return http.StatusUnprocessableEntity, applog.ErrorTypeValidation
	case errors.Is(err, errBadRequest):
		return http.StatusBadRequest, applog.ErrorTypeValidation
	default:
		return http.StatusInternalServerError, applog.ErrorTypeInternal
	}
}

// writeError maps err onto a status and JSON body. Internal failures are
// logged and reported without their cause.
func writeError(w http.ResponseWriter, r *http.Request, op string, err error) {
	status, errorType := classify(err)
	message := err.Error()
	if status == http.StatusInternalServerError {
		message = "internal error"
		applog.NewStructuredLogger(applog.FromContext(r.Context())).
			LogError(r.Context(), "Request failed", err, applog.ComponentHTTP, op, applog.NewFields())
	}
	ErrorResponse(status, errorType, message).Write(w)
}

func unauthorized(w http.ResponseWriter, r *http.Request, err error) {
	writeError(w, r, applog.OpRead, err)
}

func rateLimited(w http.ResponseWriter, r *http.Request) {
	ErrorResponse(http.StatusTooManyRequests, applog.ErrorTypeRateLimit, "rate limit exceeded").Write(w)
}
