package keyrock

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"golang.org/x/oauth2"

	"github.com/zineddine-nrk/SSIO-Project-Gateway/pkg/errors"
)

// DeviceAccount is the credential pair Keyrock mints for an IoT device
// under the gateway's application. The password only ever appears in the
// creation and reset responses.
type DeviceAccount struct {
	ID       string `json:"id"`
	Password string `json:"password,omitempty"`
}

// DeviceAccountInfo is the readable view of a device account. It never
// carries the password.
type DeviceAccountInfo struct {
	ID            string `json:"id"`
	OAuthClientID string `json:"oauth_client_id,omitempty"`
}

// PermanentGrant is the long-lived device token minted through the
// password grant, scoped "permanent".
type PermanentGrant struct {
	AccessToken string
	Scope       []string
}

func (c *Client) deviceAccountsPath() string {
	return "/v1/applications/" + url.PathEscape(c.appID) + "/iot_agents"
}

func (c *Client) deviceAccountPath(deviceID string) string {
	return c.deviceAccountsPath() + "/" + url.PathEscape(deviceID)
}

// CreateDeviceAccount provisions a new device account and returns its
// credentials. This is the only time Keyrock discloses the password for a
// fresh account.
func (c *Client) CreateDeviceAccount(ctx context.Context, token string) (*DeviceAccount, error) {
	resp, body, err := c.do(ctx, "create_device_account", http.MethodPost, c.deviceAccountsPath(), token, struct{}{}, nil)
	if err != nil {
		return nil, err
	}
	if !is2xx(resp) {
		return nil, statusError(resp, body, "failed to create device account")
	}

	var parsed struct {
		IoT DeviceAccount `json:"iot"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil || parsed.IoT.ID == "" || parsed.IoT.Password == "" {
		return nil, errors.NewUpstreamInconsistentError("device authority created an account but returned no usable credentials", err)
	}
	return &parsed.IoT, nil
}

// GetDeviceAccount returns the metadata of a device account, never the
// password.
func (c *Client) GetDeviceAccount(ctx context.Context, token, deviceID string) (*DeviceAccountInfo, error) {
	resp, body, err := c.doRetry(ctx, "get_device_account", http.MethodGet, c.deviceAccountPath(deviceID), token, nil)
	if err != nil {
		return nil, err
	}
	if !is2xx(resp) {
		return nil, statusError(resp, body, "device account not found")
	}

	var parsed struct {
		IoT DeviceAccountInfo `json:"iot"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, errors.NewUpstreamInconsistentError("device authority returned an unusable account record", err)
	}
	return &parsed.IoT, nil
}

// ListDeviceAccounts returns the identifiers of every device account under
// the application. Order is whatever Keyrock answers with.
func (c *Client) ListDeviceAccounts(ctx context.Context, token string) ([]string, error) {
	resp, body, err := c.doRetry(ctx, "list_device_accounts", http.MethodGet, c.deviceAccountsPath(), token, nil)
	if err != nil {
		return nil, err
	}
	if !is2xx(resp) {
		return nil, statusError(resp, body, "failed to list device accounts")
	}

	var parsed struct {
		IoTs []struct {
			ID string `json:"id"`
		} `json:"iots"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, errors.NewUpstreamInconsistentError("device authority returned an unusable account list", err)
	}
	ids := make([]string, 0, len(parsed.IoTs))
	for _, iot := range parsed.IoTs {
		ids = append(ids, iot.ID)
	}
	return ids, nil
}

// ResetDevicePassword invalidates the device's current password and
// returns its replacement. Keyrock performs the swap in one call; a 2xx
// answer without a new password means we cannot know which secret is live,
// so it surfaces as upstream_inconsistent rather than success.
func (c *Client) ResetDevicePassword(ctx context.Context, token, deviceID string) (string, error) {
	resp, body, err := c.do(ctx, "reset_device_password", http.MethodPatch, c.deviceAccountPath(deviceID), token, struct{}{}, nil)
	if err != nil {
		return "", err
	}
	if !is2xx(resp) {
		return "", statusError(resp, body, "device account not found")
	}

	var parsed struct {
		NewPassword string `json:"new_password"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil || parsed.NewPassword == "" {
		return "", errors.NewUpstreamInconsistentError("device authority rotated a credential but returned no new secret", err)
	}
	return parsed.NewPassword, nil
}

// DeleteDeviceAccount removes a device account. Keyrock answers 404 for an
// unknown account, so a repeated delete surfaces not_found; that policy is
// held uniformly across the gateway.
func (c *Client) DeleteDeviceAccount(ctx context.Context, token, deviceID string) error {
	resp, body, err := c.do(ctx, "delete_device_account", http.MethodDelete, c.deviceAccountPath(deviceID), token, nil, nil)
	if err != nil {
		return err
	}
	if !is2xx(resp) {
		return statusError(resp, body, "device account not found")
	}
	return nil
}

// PermanentToken performs the OAuth2 password grant with the device's own
// credentials and the gateway's client, requesting the "permanent" scope.
// This is the one operation a device calls directly, so upstream rejection
// maps to invalid_credentials.
func (c *Client) PermanentToken(ctx context.Context, deviceID, secret string) (*PermanentGrant, error) {
	if c.clientID == "" || c.clientSecret == "" {
		return nil, fmt.Errorf("keyrock OAuth client credentials are not configured")
	}

	conf := &oauth2.Config{
		ClientID:     c.clientID,
		ClientSecret: c.clientSecret,
		Scopes:       []string{"permanent"},
		Endpoint: oauth2.Endpoint{
			TokenURL:  c.baseURL + "/oauth2/token",
			AuthStyle: oauth2.AuthStyleInHeader,
		},
	}

	// Route the grant through our HTTP client so timeouts apply.
	ctx = context.WithValue(ctx, oauth2.HTTPClient, c.http)
	tok, err := conf.PasswordCredentialsToken(ctx, deviceID, secret)
	if err != nil {
		if rErr, ok := err.(*oauth2.RetrieveError); ok && rErr.Response != nil {
			msg := rErr.ErrorDescription
			if msg == "" {
				msg = "device credentials rejected"
			}
			return nil, errors.FromCredentialStatus(rErr.Response.StatusCode, msg)
		}
		return nil, errors.NewUpstreamUnavailableError("keyrock unreachable", err)
	}

	return &PermanentGrant{
		AccessToken: tok.AccessToken,
		Scope:       grantScope(tok),
	}, nil
}

// grantScope pulls the scope set out of the token response. Keyrock may
// answer with a JSON array or a space-separated string; an absent scope
// still means the grant was permanent, because that is all we ever ask for.
func grantScope(tok *oauth2.Token) []string {
	switch v := tok.Extra("scope").(type) {
	case string:
		if fields := strings.Fields(v); len(fields) > 0 {
			return fields
		}
	case []any:
		scopes := make([]string, 0, len(v))
		for _, s := range v {
			if str, ok := s.(string); ok {
				scopes = append(scopes, str)
			}
		}
		if len(scopes) > 0 {
			return scopes
		}
	}
	return []string{"permanent"}
}
