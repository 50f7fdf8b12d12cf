package keyrock

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
)

// Permission is a Keyrock permission scoped to the gateway's application.
type Permission struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Action      string `json:"action"`
	Resource    string `json:"resource"`
	IsRegex     bool   `json:"is_regex,omitempty"`
}

// PermissionRequest holds the fields for creating or updating a permission.
type PermissionRequest struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Action      string `json:"action"`
	Resource    string `json:"resource"`
}

func (c *Client) permissionsPath() string {
	return "/v1/applications/" + url.PathEscape(c.appID) + "/permissions"
}

func (c *Client) permissionPath(permissionID string) string {
	return c.permissionsPath() + "/" + url.PathEscape(permissionID)
}

func (c *Client) rolePermissionsPath(roleID string) string {
	return "/v1/applications/" + url.PathEscape(c.appID) + "/roles/" + url.PathEscape(roleID) + "/permissions"
}

// CreatePermission creates a permission in the application.
func (c *Client) CreatePermission(ctx context.Context, token string, req PermissionRequest) (*Permission, error) {
	payload := map[string]PermissionRequest{"permission": req}
	resp, body, err := c.do(ctx, "create_permission", http.MethodPost, c.permissionsPath(), token, payload, nil)
	if err != nil {
		return nil, err
	}
	if !is2xx(resp) {
		return nil, statusError(resp, body, "permission creation failed")
	}
	return parsePermission(body)
}

// GetPermission fetches a single permission.
func (c *Client) GetPermission(ctx context.Context, token, permissionID string) (*Permission, error) {
	resp, body, err := c.doRetry(ctx, "get_permission", http.MethodGet, c.permissionPath(permissionID), token, nil)
	if err != nil {
		return nil, err
	}
	if !is2xx(resp) {
		return nil, statusError(resp, body, "permission not found")
	}
	return parsePermission(body)
}

// ListPermissions fetches every permission in the application.
func (c *Client) ListPermissions(ctx context.Context, token string) ([]Permission, error) {
	resp, body, err := c.doRetry(ctx, "list_permissions", http.MethodGet, c.permissionsPath(), token, nil)
	if err != nil {
		return nil, err
	}
	if !is2xx(resp) {
		return nil, statusError(resp, body, "failed to list permissions")
	}
	var parsed struct {
		Permissions []Permission `json:"permissions"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, inconsistentRecord("permission list", err)
	}
	return parsed.Permissions, nil
}

// UpdatePermission patches a permission.
func (c *Client) UpdatePermission(ctx context.Context, token, permissionID string, req PermissionRequest) (*Permission, error) {
	payload := map[string]PermissionRequest{"permission": req}
	resp, body, err := c.do(ctx, "update_permission", http.MethodPatch, c.permissionPath(permissionID), token, payload, nil)
	if err != nil {
		return nil, err
	}
	if !is2xx(resp) {
		return nil, statusError(resp, body, "permission update failed")
	}
	var parsed struct {
		Values Permission `json:"values"`
	}
	if err := json.Unmarshal(body, &parsed); err == nil && parsed.Values.Name != "" {
		parsed.Values.ID = permissionID
		return &parsed.Values, nil
	}
	return parsePermission(body)
}

// DeletePermission removes a permission from the application.
func (c *Client) DeletePermission(ctx context.Context, token, permissionID string) error {
	resp, body, err := c.do(ctx, "delete_permission", http.MethodDelete, c.permissionPath(permissionID), token, nil, nil)
	if err != nil {
		return err
	}
	if !is2xx(resp) {
		return statusError(resp, body, "permission deletion failed")
	}
	return nil
}

// ListRolePermissions returns the permissions granted to a role.
func (c *Client) ListRolePermissions(ctx context.Context, token, roleID string) ([]Permission, error) {
	resp, body, err := c.doRetry(ctx, "list_role_permissions", http.MethodGet, c.rolePermissionsPath(roleID), token, nil)
	if err != nil {
		return nil, err
	}
	if !is2xx(resp) {
		return nil, statusError(resp, body, "failed to list role permissions")
	}
	var parsed struct {
		Permissions []Permission `json:"role_permission_assignments"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, inconsistentRecord("role permission list", err)
	}
	return parsed.Permissions, nil
}

// AssignPermissionToRole grants a permission to a role.
func (c *Client) AssignPermissionToRole(ctx context.Context, token, roleID, permissionID string) error {
	path := c.rolePermissionsPath(roleID) + "/" + url.PathEscape(permissionID)
	resp, body, err := c.do(ctx, "assign_permission", http.MethodPut, path, token, struct{}{}, nil)
	if err != nil {
		return err
	}
	if !is2xx(resp) {
		return statusError(resp, body, "permission assignment failed")
	}
	return nil
}

// RemovePermissionFromRole revokes a permission from a role.
func (c *Client) RemovePermissionFromRole(ctx context.Context, token, roleID, permissionID string) error {
	path := c.rolePermissionsPath(roleID) + "/" + url.PathEscape(permissionID)
	resp, body, err := c.do(ctx, "remove_permission", http.MethodDelete, path, token, nil, nil)
	if err != nil {
		return err
	}
	if !is2xx(resp) {
		return statusError(resp, body, "permission removal failed")
	}
	return nil
}

func parsePermission(body []byte) (*Permission, error) {
	var parsed struct {
		Permission *Permission `json:"permission"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil || parsed.Permission == nil {
		return nil, inconsistentRecord("permission", err)
	}
	return parsed.Permission, nil
}
