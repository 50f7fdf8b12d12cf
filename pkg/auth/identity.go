// Package auth bridges the gateway's local authentication boundary to the
// upstream identity authority. It mints and validates the short-lived
// local token, holds the session bridge that exchanges user credentials
// for an upstream management token, and provides the HTTP middleware that
// authenticates API requests.
package auth

import (
	"encoding/json"
	"fmt"
)

// Identity represents the authenticated caller of a request.
type Identity struct {
	// Subject is the upstream user identifier asserted by the local token.
	Subject string

	// Claims contains the full claim set of the validated local token.
	Claims map[string]any

	// Token is the original local token (for pass-through scenarios).
	// Redacted in String() and MarshalJSON() to prevent leakage.
	Token string
}

// String returns a representation of the Identity with sensitive fields
// redacted so an Identity can be logged safely.
func (i *Identity) String() string {
	if i == nil {
		return "<nil>"
	}
	return fmt.Sprintf("Identity{Subject:%q}", i.Subject)
}

// MarshalJSON redacts the token during JSON serialization.
func (i *Identity) MarshalJSON() ([]byte, error) {
	if i == nil {
		return []byte("null"), nil
	}

	type safeIdentity struct {
		Subject string         `json:"subject"`
		Claims  map[string]any `json:"claims"`
		Token   string         `json:"token"`
	}

	token := i.Token
	if token != "" {
		token = "REDACTED"
	}

	return json.Marshal(&safeIdentity{
		Subject: i.Subject,
		Claims:  i.Claims,
		Token:   token,
	})
}
