package v1

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/zineddine-nrk/SSIO-Project-Gateway/pkg/errors"
	"github.com/zineddine-nrk/SSIO-Project-Gateway/pkg/keyrock"
)

// RolesRoutes defines the pass-through routes for application roles.
type RolesRoutes struct {
	resolver credentialResolver
	client   *keyrock.Client
}

// RolesRouter creates the authenticated role administration router.
func RolesRouter(resolver credentialResolver, client *keyrock.Client) http.Handler {
	routes := RolesRoutes{resolver: resolver, client: client}

	r := chi.NewRouter()
	r.Post("/", routes.createRole)
	r.Get("/", routes.listRoles)
	r.Get("/{roleId}", routes.getRole)
	r.Patch("/{roleId}", routes.updateRole)
	r.Delete("/{roleId}", routes.deleteRole)
	r.Get("/{roleId}/permissions", routes.listRolePermissions)
	r.Put("/{roleId}/permissions/{permissionId}", routes.assignPermission)
	r.Delete("/{roleId}/permissions/{permissionId}", routes.removePermission)

	return r
}

type roleNameRequest struct {
	Name string `json:"name"`
}

func (s *RolesRoutes) createRole(w http.ResponseWriter, r *http.Request) {
	token, err := resolveCaller(r, s.resolver)
	if err != nil {
		writeError(w, err)
		return
	}

	var req roleNameRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if req.Name == "" {
		writeError(w, errors.NewInvalidInputError("role name is required", nil))
		return
	}

	role, err := s.client.CreateRole(r.Context(), token, req.Name)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, role)
}

func (s *RolesRoutes) listRoles(w http.ResponseWriter, r *http.Request) {
	token, err := resolveCaller(r, s.resolver)
	if err != nil {
		writeError(w, err)
		return
	}

	roles, err := s.client.ListRoles(r.Context(), token)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string][]keyrock.Role{"roles": roles})
}

func (s *RolesRoutes) getRole(w http.ResponseWriter, r *http.Request) {
	token, err := resolveCaller(r, s.resolver)
	if err != nil {
		writeError(w, err)
		return
	}

	role, err := s.client.GetRole(r.Context(), token, chi.URLParam(r, "roleId"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, role)
}

func (s *RolesRoutes) updateRole(w http.ResponseWriter, r *http.Request) {
	token, err := resolveCaller(r, s.resolver)
	if err != nil {
		writeError(w, err)
		return
	}

	var req roleNameRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if req.Name == "" {
		writeError(w, errors.NewInvalidInputError("role name is required", nil))
		return
	}

	role, err := s.client.UpdateRole(r.Context(), token, chi.URLParam(r, "roleId"), req.Name)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, role)
}

func (s *RolesRoutes) deleteRole(w http.ResponseWriter, r *http.Request) {
	token, err := resolveCaller(r, s.resolver)
	if err != nil {
		writeError(w, err)
		return
	}

	if err := s.client.DeleteRole(r.Context(), token, chi.URLParam(r, "roleId")); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusNoContent, nil)
}

func (s *RolesRoutes) listRolePermissions(w http.ResponseWriter, r *http.Request) {
	token, err := resolveCaller(r, s.resolver)
	if err != nil {
		writeError(w, err)
		return
	}

	permissions, err := s.client.ListRolePermissions(r.Context(), token, chi.URLParam(r, "roleId"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string][]keyrock.Permission{"permissions": permissions})
}

func (s *RolesRoutes) assignPermission(w http.ResponseWriter, r *http.Request) {
	token, err := resolveCaller(r, s.resolver)
	if err != nil {
		writeError(w, err)
		return
	}

	roleID := chi.URLParam(r, "roleId")
	permissionID := chi.URLParam(r, "permissionId")
	if err := s.client.AssignPermissionToRole(r.Context(), token, roleID, permissionID); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusNoContent, nil)
}

func (s *RolesRoutes) removePermission(w http.ResponseWriter, r *http.Request) {
	token, err := resolveCaller(r, s.resolver)
	if err != nil {
		writeError(w, err)
		return
	}

	roleID := chi.URLParam(r, "roleId")
	permissionID := chi.URLParam(r, "permissionId")
	if err := s.client.RemovePermissionFromRole(r.Context(), token, roleID, permissionID); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusNoContent, nil)
}

// PermissionsRoutes defines the pass-through routes for application
// permissions.
type PermissionsRoutes struct {
	resolver credentialResolver
	client   *keyrock.Client
}

// PermissionsRouter creates the authenticated permission administration
// router.
func PermissionsRouter(resolver credentialResolver, client *keyrock.Client) http.Handler {
	routes := PermissionsRoutes{resolver: resolver, client: client}

	r := chi.NewRouter()
	r.Post("/", routes.createPermission)
	r.Get("/", routes.listPermissions)
	r.Get("/{permissionId}", routes.getPermission)
	r.Patch("/{permissionId}", routes.updatePermission)
	r.Delete("/{permissionId}", routes.deletePermission)

	return r
}

func (s *PermissionsRoutes) createPermission(w http.ResponseWriter, r *http.Request) {
	token, err := resolveCaller(r, s.resolver)
	if err != nil {
		writeError(w, err)
		return
	}

	var req keyrock.PermissionRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if req.Name == "" || req.Action == "" || req.Resource == "" {
		writeError(w, errors.NewInvalidInputError("name, action and resource are required", nil))
		return
	}

	permission, err := s.client.CreatePermission(r.Context(), token, req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, permission)
}

func (s *PermissionsRoutes) listPermissions(w http.ResponseWriter, r *http.Request) {
	token, err := resolveCaller(r, s.resolver)
	if err != nil {
		writeError(w, err)
		return
	}

	permissions, err := s.client.ListPermissions(r.Context(), token)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string][]keyrock.Permission{"permissions": permissions})
}

func (s *PermissionsRoutes) getPermission(w http.ResponseWriter, r *http.Request) {
	token, err := resolveCaller(r, s.resolver)
	if err != nil {
		writeError(w, err)
		return
	}

	permission, err := s.client.GetPermission(r.Context(), token, chi.URLParam(r, "permissionId"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, permission)
}

func (s *PermissionsRoutes) updatePermission(w http.ResponseWriter, r *http.Request) {
	token, err := resolveCaller(r, s.resolver)
	if err != nil {
		writeError(w, err)
		return
	}

	var req keyrock.PermissionRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}

	permission, err := s.client.UpdatePermission(r.Context(), token, chi.URLParam(r, "permissionId"), req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, permission)
}

func (s *PermissionsRoutes) deletePermission(w http.ResponseWriter, r *http.Request) {
	token, err := resolveCaller(r, s.resolver)
	if err != nil {
		writeError(w, err)
		return
	}

	if err := s.client.DeletePermission(r.Context(), token, chi.URLParam(r, "permissionId")); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusNoContent, nil)
}
