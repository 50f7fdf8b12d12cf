package keyrock

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
)

// Role is a Keyrock role scoped to the gateway's application.
type Role struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	IsInternal bool   `json:"is_internal,omitempty"`
}

// RoleAssignment records a role held by a user.
type RoleAssignment struct {
	UserID string `json:"user_id"`
	RoleID string `json:"role_id"`
}

func (c *Client) rolesPath() string {
	return "/v1/applications/" + url.PathEscape(c.appID) + "/roles"
}

func (c *Client) rolePath(roleID string) string {
	return c.rolesPath() + "/" + url.PathEscape(roleID)
}

func (c *Client) userRolesPath(userID string) string {
	return "/v1/applications/" + url.PathEscape(c.appID) + "/users/" + url.PathEscape(userID) + "/roles"
}

// CreateRole creates a role in the application.
func (c *Client) CreateRole(ctx context.Context, token, name string) (*Role, error) {
	payload := map[string]any{"role": map[string]string{"name": name}}
	resp, body, err := c.do(ctx, "create_role", http.MethodPost, c.rolesPath(), token, payload, nil)
	if err != nil {
		return nil, err
	}
	if !is2xx(resp) {
		return nil, statusError(resp, body, "role creation failed")
	}
	return parseRole(body)
}

// GetRole fetches a single role.
func (c *Client) GetRole(ctx context.Context, token, roleID string) (*Role, error) {
	resp, body, err := c.doRetry(ctx, "get_role", http.MethodGet, c.rolePath(roleID), token, nil)
	if err != nil {
		return nil, err
	}
	if !is2xx(resp) {
		return nil, statusError(resp, body, "role not found")
	}
	return parseRole(body)
}

// ListRoles fetches every role in the application.
func (c *Client) ListRoles(ctx context.Context, token string) ([]Role, error) {
	resp, body, err := c.doRetry(ctx, "list_roles", http.MethodGet, c.rolesPath(), token, nil)
	if err != nil {
		return nil, err
	}
	if !is2xx(resp) {
		return nil, statusError(resp, body, "failed to list roles")
	}
	var parsed struct {
		Roles []Role `json:"roles"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, inconsistentRecord("role list", err)
	}
	return parsed.Roles, nil
}

// UpdateRole renames a role.
func (c *Client) UpdateRole(ctx context.Context, token, roleID, name string) (*Role, error) {
	payload := map[string]any{"role": map[string]string{"name": name}}
	resp, body, err := c.do(ctx, "update_role", http.MethodPatch, c.rolePath(roleID), token, payload, nil)
	if err != nil {
		return nil, err
	}
	if !is2xx(resp) {
		return nil, statusError(resp, body, "role update failed")
	}
	// Keyrock answers a rename with the updated values rather than the
	// full record.
	var parsed struct {
		Values Role `json:"values"`
	}
	if err := json.Unmarshal(body, &parsed); err == nil && parsed.Values.Name != "" {
		parsed.Values.ID = roleID
		return &parsed.Values, nil
	}
	return parseRole(body)
}

// DeleteRole removes a role from the application.
func (c *Client) DeleteRole(ctx context.Context, token, roleID string) error {
	resp, body, err := c.do(ctx, "delete_role", http.MethodDelete, c.rolePath(roleID), token, nil, nil)
	if err != nil {
		return err
	}
	if !is2xx(resp) {
		return statusError(resp, body, "role deletion failed")
	}
	return nil
}

// ListUserRoles returns the roles assigned to a user within the application.
func (c *Client) ListUserRoles(ctx context.Context, token, userID string) ([]RoleAssignment, error) {
	resp, body, err := c.doRetry(ctx, "list_user_roles", http.MethodGet, c.userRolesPath(userID), token, nil)
	if err != nil {
		return nil, err
	}
	if !is2xx(resp) {
		return nil, statusError(resp, body, "failed to list user roles")
	}
	var parsed struct {
		Assignments []RoleAssignment `json:"role_user_assignments"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, inconsistentRecord("role assignment list", err)
	}
	return parsed.Assignments, nil
}

// AssignRoleToUser grants a role to a user within the application.
func (c *Client) AssignRoleToUser(ctx context.Context, token, userID, roleID string) error {
	path := c.userRolesPath(userID) + "/" + url.PathEscape(roleID)
	resp, body, err := c.do(ctx, "assign_role", http.MethodPut, path, token, struct{}{}, nil)
	if err != nil {
		return err
	}
	if !is2xx(resp) {
		return statusError(resp, body, "role assignment failed")
	}
	return nil
}

// RemoveRoleFromUser revokes a role from a user within the application.
func (c *Client) RemoveRoleFromUser(ctx context.Context, token, userID, roleID string) error {
	path := c.userRolesPath(userID) + "/" + url.PathEscape(roleID)
	resp, body, err := c.do(ctx, "remove_role", http.MethodDelete, path, token, nil, nil)
	if err != nil {
		return err
	}
	if !is2xx(resp) {
		return statusError(resp, body, "role removal failed")
	}
	return nil
}

func parseRole(body []byte) (*Role, error) {
	var parsed struct {
		Role *Role `json:"role"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil || parsed.Role == nil {
		return nil, inconsistentRecord("role", err)
	}
	return parsed.Role, nil
}
