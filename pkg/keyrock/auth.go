package keyrock

import (
	"context"
	"encoding/json"
	"net/http"
	"time"
)

// Grant is the result of a successful token exchange: the management
// credential Keyrock issued for the user, and when it stops working.
type Grant struct {
	Token     string
	ExpiresAt time.Time
}

// TokenInfo describes a token Keyrock was asked about.
type TokenInfo struct {
	Valid     bool
	ExpiresAt time.Time
	User      *User
}

// Exchange trades a user's primary credentials for a management token.
// Keyrock returns the token in the X-Subject-Token response header and the
// expiry in the body. An upstream rejection is an invalid_credentials
// failure, not unauthenticated: the caller presented the credential itself.
func (c *Client) Exchange(ctx context.Context, identifier, secret string) (*Grant, error) {
	payload := map[string]string{
		"name":     identifier,
		"password": secret,
	}
	resp, body, err := c.do(ctx, "exchange", http.MethodPost, "/v1/auth/tokens", "", payload, nil)
	if err != nil {
		return nil, err
	}
	if !is2xx(resp) {
		return nil, credentialError(resp, body, "login rejected by identity authority")
	}

	token := resp.Header.Get(subjectTokenHeader)
	if token == "" {
		return nil, inconsistentExchange()
	}

	var parsed struct {
		Token struct {
			ExpiresAt time.Time `json:"expires_at"`
		} `json:"token"`
	}
	// The expiry is advisory; a body we cannot parse still leaves us with a
	// usable credential.
	_ = json.Unmarshal(body, &parsed)

	return &Grant{Token: token, ExpiresAt: parsed.Token.ExpiresAt}, nil
}

// Introspect asks Keyrock about a subject token, authenticating with a
// management token. A 401 means the subject token is dead, which is an
// answer, not a failure.
func (c *Client) Introspect(ctx context.Context, managementToken, subjectToken string) (*TokenInfo, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/v1/auth/tokens", nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set(authTokenHeader, managementToken)
	req.Header.Set(subjectTokenHeader, subjectToken)

	resp, body, err := c.doRequest(req, "introspect")
	if err != nil {
		return nil, err
	}
	if resp.StatusCode == http.StatusUnauthorized {
		return &TokenInfo{Valid: false}, nil
	}
	if !is2xx(resp) {
		return nil, statusError(resp, body, "token introspection failed")
	}

	var parsed struct {
		Expires time.Time `json:"expires"`
		User    *User     `json:"User"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, inconsistentIntrospection(err)
	}
	if parsed.User == nil || parsed.User.ID == "" {
		return nil, inconsistentIntrospection(nil)
	}
	return &TokenInfo{Valid: true, ExpiresAt: parsed.Expires, User: parsed.User}, nil
}
