package auth

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/joao-fontenele/marketplace-api/internal/domain"
)

// Middleware authenticates requests from a Bearer token and attaches the
// actor to the request context. The order workflow trusts that actor.
type Middleware struct {
	secret []byte
	logger *slog.Logger
}

func NewMiddleware(secret []byte, logger *slog.Logger) *Middleware {
	return &Middleware{
		secret: secret,
		logger: logger,
	}
}

// Require rejects unauthenticated requests.
func (m *Middleware) Require(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		tokenString, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || tokenString == "" {
			writeAuthError(w, http.StatusUnauthorized, "missing bearer token")
			return
		}

		actor, err := ParseToken(m.secret, tokenString)
		if err != nil {
			m.logger.Warn("rejected token", "error", err)
			writeAuthError(w, http.StatusUnauthorized, "invalid token")
			return
		}

		next(w, r.WithContext(WithActor(r.Context(), actor)))
	}
}

// RequireRole additionally demands one of the given roles.
func (m *Middleware) RequireRole(next http.HandlerFunc, roles ...string) http.HandlerFunc {
	return m.Require(func(w http.ResponseWriter, r *http.Request) {
		actor, _ := ActorFromContext(r.Context())
		for _, role := range roles {
			if actor.Role == role {
				next(w, r)
				return
			}
		}
		writeAuthError(w, http.StatusForbidden, domain.ErrForbidden.Error())
	})
}

func writeAuthError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": message})
}
