package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/celiaho/HocusFocusToDo/internal/middleware"
	"github.com/celiaho/HocusFocusToDo/internal/model"
	"github.com/celiaho/HocusFocusToDo/internal/service"
)

const maxBodyBytes = 1 << 20 // 1MB

// decodeJSON reads the request body into v. It writes the error response
// and returns false when the body is unusable.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)

	dec := json.NewDecoder(r.Body)
	dec.UseNumber()
	if err := dec.Decode(v); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeJSON(w, http.StatusRequestEntityTooLarge, errorResponse("request body too large"))
			return false
		}
		writeJSON(w, http.StatusBadRequest, errorResponse("invalid request body"))
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func errorResponse(msg string) map[string]string {
	return map[string]string{"error": msg}
}

func messageResponse(msg string) map[string]string {
	return map[string]string{"message": msg}
}

// writeServiceError maps a service error to its HTTP status. Unknown errors
// are logged and reported without detail.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var verr *model.ValidationError
	switch {
	case errors.As(err, &verr):
		writeJSON(w, http.StatusBadRequest, errorResponse(verr.Error()))
	case errors.Is(err, model.ErrAuthentication):
		writeJSON(w, http.StatusUnauthorized, errorResponse(model.ErrAuthentication.Error()))
	case errors.Is(err, model.ErrInvalidCredentials):
		writeJSON(w, http.StatusUnauthorized, errorResponse(model.ErrInvalidCredentials.Error()))
	case errors.Is(err, model.ErrDuplicateEmail):
		writeJSON(w, http.StatusConflict, errorResponse(model.ErrDuplicateEmail.Error()))
	case errors.Is(err, model.ErrValidation):
		writeJSON(w, http.StatusBadRequest, errorResponse(model.ErrValidation.Error()))
	case errors.Is(err, model.ErrInvalidResetCode):
		writeJSON(w, http.StatusBadRequest, errorResponse(model.ErrInvalidResetCode.Error()))
	case errors.Is(err, model.ErrForbidden):
		writeJSON(w, http.StatusForbidden, errorResponse(model.ErrForbidden.Error()))
	case errors.Is(err, model.ErrNotFound):
		writeJSON(w, http.StatusNotFound, errorResponse(err.Error()))
	case errors.Is(err, model.ErrSelfShare):
		writeJSON(w, http.StatusBadRequest, errorResponse(model.ErrSelfShare.Error()))
	case errors.Is(err, model.ErrTransport):
		slog.WarnContext(r.Context(), "upstream unavailable", "error", err)
		writeJSON(w, http.StatusServiceUnavailable, errorResponse(model.ErrTransport.Error()))
	default:
		slog.ErrorContext(r.Context(), "request failed", "method", r.Method, "path", r.URL.Path, "error", err)
		writeJSON(w, http.StatusInternalServerError, errorResponse("internal server error"))
	}
}

// identity returns the authenticated caller, writing 401 when there is none.
func identity(w http.ResponseWriter, r *http.Request) (service.Identity, bool) {
	id, ok := middleware.IdentityFromContext(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, errorResponse("unauthorized"))
		return service.Identity{}, false
	}
	return id, true
}
