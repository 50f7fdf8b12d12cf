package keyrock

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
)

// User is a Keyrock user record.
type User struct {
	ID           string `json:"id"`
	Username     string `json:"username"`
	Email        string `json:"email"`
	Enabled      bool   `json:"enabled"`
	DatePassword string `json:"date_password,omitempty"`
	Admin        bool   `json:"admin,omitempty"`
}

// CreateUserRequest holds the fields for a new Keyrock user.
type CreateUserRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// UpdateUserRequest holds the mutable fields of a Keyrock user. Nil fields
// are left untouched.
type UpdateUserRequest struct {
	Username    *string `json:"username,omitempty"`
	Email       *string `json:"email,omitempty"`
	Enabled     *bool   `json:"enabled,omitempty"`
	Gravatar    *bool   `json:"gravatar,omitempty"`
	Description *string `json:"description,omitempty"`
	Website     *string `json:"website,omitempty"`
}

func userPath(userID string) string {
	return "/v1/users/" + url.PathEscape(userID)
}

// CreateUser registers a new user with the identity authority.
func (c *Client) CreateUser(ctx context.Context, token string, req CreateUserRequest) (*User, error) {
	payload := map[string]CreateUserRequest{"user": req}
	resp, body, err := c.do(ctx, "create_user", http.MethodPost, "/v1/users", token, payload, nil)
	if err != nil {
		return nil, err
	}
	if !is2xx(resp) {
		return nil, statusError(resp, body, "user creation failed")
	}
	return parseUser(body)
}

// GetUser fetches a single user record.
func (c *Client) GetUser(ctx context.Context, token, userID string) (*User, error) {
	resp, body, err := c.doRetry(ctx, "get_user", http.MethodGet, userPath(userID), token, nil)
	if err != nil {
		return nil, err
	}
	if !is2xx(resp) {
		return nil, statusError(resp, body, "user not found")
	}
	return parseUser(body)
}

// ListUsers fetches every user visible to the management credential.
func (c *Client) ListUsers(ctx context.Context, token string) ([]User, error) {
	resp, body, err := c.doRetry(ctx, "list_users", http.MethodGet, "/v1/users", token, nil)
	if err != nil {
		return nil, err
	}
	if !is2xx(resp) {
		return nil, statusError(resp, body, "failed to list users")
	}
	var parsed struct {
		Users []User `json:"users"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, inconsistentRecord("user list", err)
	}
	return parsed.Users, nil
}

// UpdateUser patches a user record and returns the updated view.
func (c *Client) UpdateUser(ctx context.Context, token, userID string, req UpdateUserRequest) (*User, error) {
	payload := map[string]UpdateUserRequest{"user": req}
	resp, body, err := c.do(ctx, "update_user", http.MethodPatch, userPath(userID), token, payload, nil)
	if err != nil {
		return nil, err
	}
	if !is2xx(resp) {
		return nil, statusError(resp, body, "user update failed")
	}
	return parseUser(body)
}

// DeleteUser removes a user record.
func (c *Client) DeleteUser(ctx context.Context, token, userID string) error {
	resp, body, err := c.do(ctx, "delete_user", http.MethodDelete, userPath(userID), token, nil, nil)
	if err != nil {
		return err
	}
	if !is2xx(resp) {
		return statusError(resp, body, "user deletion failed")
	}
	return nil
}

func parseUser(body []byte) (*User, error) {
	var parsed struct {
		User *User `json:"user"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil || parsed.User == nil {
		return nil, inconsistentRecord("user", err)
	}
	return parsed.User, nil
}
