package v1

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/zineddine-nrk/SSIO-Project-Gateway/pkg/auth"
	"github.com/zineddine-nrk/SSIO-Project-Gateway/pkg/errors"
)

// AuthRoutes defines the routes for login, logout and token validation.
type AuthRoutes struct {
	bridge *auth.Bridge
}

// AuthRouter creates the authentication router. Login and validate are
// public; logout requires an authenticated caller, so it carries the token
// middleware on its own.
func AuthRouter(bridge *auth.Bridge) http.Handler {
	routes := AuthRoutes{bridge: bridge}

	r := chi.NewRouter()
	r.Post("/login", routes.login)
	r.Post("/validate", routes.validate)
	r.With(auth.Middleware(bridge)).Post("/logout", routes.logout)

	return r
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token     string `json:"token"`
	ExpiresIn int64  `json:"expiresIn"`
	Subject   string `json:"subject"`
}

func (s *AuthRoutes) login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}

	result, err := s.bridge.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, loginResponse{
		Token:     result.Token,
		ExpiresIn: int64(time.Until(result.ExpiresAt).Seconds()),
		Subject:   result.Subject,
	})
}

type validateRequest struct {
	Token string `json:"token"`
}

type validateResponse struct {
	Valid     bool   `json:"valid"`
	Subject   string `json:"subject,omitempty"`
	ExpiresAt int64  `json:"expiresAt,omitempty"`
}

// validate is a purely local check; it answers 200 with valid=false for a
// bad token rather than failing, so callers can probe without error
// handling gymnastics.
func (s *AuthRoutes) validate(w http.ResponseWriter, r *http.Request) {
	var req validateRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if req.Token == "" {
		writeError(w, errors.NewInvalidInputError("token is required", nil))
		return
	}

	identity, err := s.bridge.Validate(req.Token)
	if err != nil {
		writeJSON(w, http.StatusOK, validateResponse{Valid: false})
		return
	}

	resp := validateResponse{Valid: true, Subject: identity.Subject}
	if exp, ok := identity.Claims["exp"].(float64); ok {
		resp.ExpiresAt = int64(exp)
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *AuthRoutes) logout(w http.ResponseWriter, r *http.Request) {
	identity, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		writeError(w, errors.NewUnauthenticatedError("no authenticated identity", nil))
		return
	}
	if err := s.bridge.Logout(r.Context(), identity.Subject); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusNoContent, nil)
}
