package auth

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/zineddine-nrk/SSIO-Project-Gateway/pkg/logger"
)

// TokenValidator validates a local token and returns the identity it
// asserts. Satisfied by *LocalTokens and *Bridge.
type TokenValidator interface {
	Validate(token string) (*Identity, error)
}

// Middleware returns an HTTP middleware that authenticates requests with
// the local token. On success the request context carries the caller's
// Identity; on failure the request is answered with 401 and never reaches
// the handler.
func Middleware(validator TokenValidator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := bearerToken(r)
			if !ok {
				unauthorized(w, "missing bearer token")
				return
			}

			identity, err := validator.Validate(token)
			if err != nil {
				logger.Debugf("rejected request to %s: %v", r.URL.Path, err)
				unauthorized(w, "invalid or expired token")
				return
			}

			ctx := WithIdentity(r.Context(), identity)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// bearerToken extracts the token from the Authorization header.
func bearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return "", false
	}
	scheme, token, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") || token == "" {
		return "", false
	}
	return token, true
}

func unauthorized(w http.ResponseWriter, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": message})
}
