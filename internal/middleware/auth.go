package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/celiaho/HocusFocusToDo/internal/model"
	"github.com/celiaho/HocusFocusToDo/internal/service"
)

type contextKey string

const identityKey contextKey = "identity"

// Authenticator resolves a bearer token to the caller's identity.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (service.Identity, error)
}

// Authenticate returns middleware that requires a valid Bearer token in the
// Authorization header and stores the resolved identity in the context.
func Authenticate(authn Authenticator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				writeJSONError(w, http.StatusUnauthorized, "missing authorization header")
				return
			}

			token, found := strings.CutPrefix(authHeader, "Bearer ")
			if !found || strings.TrimSpace(token) == "" {
				writeJSONError(w, http.StatusUnauthorized, "invalid authorization format")
				return
			}

			id, err := authn.Authenticate(r.Context(), strings.TrimSpace(token))
			if err != nil {
				if errors.Is(err, model.ErrAuthentication) {
					writeJSONError(w, http.StatusUnauthorized, "invalid or expired token")
					return
				}
				slog.ErrorContext(r.Context(), "authentication failed", "error", err)
				writeJSONError(w, http.StatusInternalServerError, "internal server error")
				return
			}

			if info := requestInfoFrom(r.Context()); info != nil {
				info.userID = id.UserID
			}
			next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), id)))
		})
	}
}

// WithIdentity returns a copy of ctx carrying id.
func WithIdentity(ctx context.Context, id service.Identity) context.Context {
	return context.WithValue(ctx, identityKey, id)
}

// IdentityFromContext extracts the authenticated caller from the request context.
func IdentityFromContext(ctx context.Context) (service.Identity, bool) {
	id, ok := ctx.Value(identityKey).(service.Identity)
	return id, ok && id.Authenticated()
}

func writeJSONError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
