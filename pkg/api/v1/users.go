package v1

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/zineddine-nrk/SSIO-Project-Gateway/pkg/auth"
	"github.com/zineddine-nrk/SSIO-Project-Gateway/pkg/errors"
	"github.com/zineddine-nrk/SSIO-Project-Gateway/pkg/keyrock"
)

// credentialResolver resolves the caller's management credential.
// Satisfied by *auth.Bridge.
type credentialResolver interface {
	ResolveManagementCredential(ctx context.Context, userID string) (string, error)
}

// resolveCaller pulls the authenticated identity out of the request and
// exchanges it for the management credential every pass-through call runs
// with.
func resolveCaller(r *http.Request, resolver credentialResolver) (string, error) {
	identity, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		return "", errors.NewUnauthenticatedError("no authenticated identity", nil)
	}
	return resolver.ResolveManagementCredential(r.Context(), identity.Subject)
}

// UsersRoutes defines the pass-through routes for user administration.
type UsersRoutes struct {
	resolver credentialResolver
	client   *keyrock.Client
}

// UsersRouter creates the authenticated user administration router.
func UsersRouter(resolver credentialResolver, client *keyrock.Client) http.Handler {
	routes := UsersRoutes{resolver: resolver, client: client}

	r := chi.NewRouter()
	r.Post("/", routes.createUser)
	r.Get("/", routes.listUsers)
	r.Get("/{userId}", routes.getUser)
	r.Patch("/{userId}", routes.updateUser)
	r.Delete("/{userId}", routes.deleteUser)
	r.Get("/{userId}/roles", routes.listUserRoles)
	r.Put("/{userId}/roles/{roleId}", routes.assignRole)
	r.Delete("/{userId}/roles/{roleId}", routes.removeRole)

	return r
}

func (s *UsersRoutes) createUser(w http.ResponseWriter, r *http.Request) {
	token, err := resolveCaller(r, s.resolver)
	if err != nil {
		writeError(w, err)
		return
	}

	var req keyrock.CreateUserRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if req.Username == "" || req.Email == "" || req.Password == "" {
		writeError(w, errors.NewInvalidInputError("username, email and password are required", nil))
		return
	}

	user, err := s.client.CreateUser(r.Context(), token, req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, user)
}

func (s *UsersRoutes) listUsers(w http.ResponseWriter, r *http.Request) {
	token, err := resolveCaller(r, s.resolver)
	if err != nil {
		writeError(w, err)
		return
	}

	users, err := s.client.ListUsers(r.Context(), token)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string][]keyrock.User{"users": users})
}

func (s *UsersRoutes) getUser(w http.ResponseWriter, r *http.Request) {
	token, err := resolveCaller(r, s.resolver)
	if err != nil {
		writeError(w, err)
		return
	}

	user, err := s.client.GetUser(r.Context(), token, chi.URLParam(r, "userId"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

func (s *UsersRoutes) updateUser(w http.ResponseWriter, r *http.Request) {
	token, err := resolveCaller(r, s.resolver)
	if err != nil {
		writeError(w, err)
		return
	}

	var req keyrock.UpdateUserRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}

	user, err := s.client.UpdateUser(r.Context(), token, chi.URLParam(r, "userId"), req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

func (s *UsersRoutes) deleteUser(w http.ResponseWriter, r *http.Request) {
	token, err := resolveCaller(r, s.resolver)
	if err != nil {
		writeError(w, err)
		return
	}

	if err := s.client.DeleteUser(r.Context(), token, chi.URLParam(r, "userId")); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusNoContent, nil)
}

func (s *UsersRoutes) listUserRoles(w http.ResponseWriter, r *http.Request) {
	token, err := resolveCaller(r, s.resolver)
	if err != nil {
		writeError(w, err)
		return
	}

	assignments, err := s.client.ListUserRoles(r.Context(), token, chi.URLParam(r, "userId"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string][]keyrock.RoleAssignment{"roles": assignments})
}

func (s *UsersRoutes) assignRole(w http.ResponseWriter, r *http.Request) {
	token, err := resolveCaller(r, s.resolver)
	if err != nil {
		writeError(w, err)
		return
	}

	userID := chi.URLParam(r, "userId")
	roleID := chi.URLParam(r, "roleId")
	if err := s.client.AssignRoleToUser(r.Context(), token, userID, roleID); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusNoContent, nil)
}

func (s *UsersRoutes) removeRole(w http.ResponseWriter, r *http.Request) {
	token, err := resolveCaller(r, s.resolver)
	if err != nil {
		writeError(w, err)
		return
	}

	userID := chi.URLParam(r, "userId")
	roleID := chi.URLParam(r, "roleId")
	if err := s.client.RemoveRoleFromUser(r.Context(), token, userID, roleID); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusNoContent, nil)
}
