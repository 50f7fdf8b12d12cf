package auth

import (
	"context"
	"time"

	"github.com/zineddine-nrk/SSIO-Project-Gateway/pkg/errors"
	"github.com/zineddine-nrk/SSIO-Project-Gateway/pkg/keyrock"
	"github.com/zineddine-nrk/SSIO-Project-Gateway/pkg/logger"
	"github.com/zineddine-nrk/SSIO-Project-Gateway/pkg/session"
)

// IdentityAuthority is the slice of the upstream identity client the
// bridge needs: one credential exchange and one introspection.
type IdentityAuthority interface {
	Exchange(ctx context.Context, identifier, secret string) (*keyrock.Grant, error)
	Introspect(ctx context.Context, managementToken, subjectToken string) (*keyrock.TokenInfo, error)
}

// LoginResult is what a successful login hands back to the boundary.
type LoginResult struct {
	// Token is the local token asserting the user's identity.
	Token string

	// ExpiresAt is when the local token stops validating.
	ExpiresAt time.Time

	// Subject is the upstream user identifier the session is keyed by.
	Subject string
}

// Bridge binds locally authenticated users to the upstream management
// credentials held on their behalf. It is the single gatekeeper for
// privileged operations: everything acting as a user resolves the
// management credential through the bridge first.
type Bridge struct {
	authority IdentityAuthority
	sessions  session.Store
	tokens    *LocalTokens
}

// NewBridge creates a session bridge.
func NewBridge(authority IdentityAuthority, sessions session.Store, tokens *LocalTokens) *Bridge {
	return &Bridge{
		authority: authority,
		sessions:  sessions,
		tokens:    tokens,
	}
}

// Login exchanges the user's primary credentials for an upstream
// management token, stores it keyed by the resolved user identity, and
// mints the local token returned to the caller.
//
// The session write is deliberately the last step: if the exchange or the
// identity resolution fails, or the request is cancelled mid-flight, no
// half-written session is left behind.
func (b *Bridge) Login(ctx context.Context, identifier, secret string) (*LoginResult, error) {
	if identifier == "" || secret == "" {
		return nil, errors.NewInvalidInputError("identifier and password are required", nil)
	}

	grant, err := b.authority.Exchange(ctx, identifier, secret)
	if err != nil {
		return nil, err
	}

	// Resolve which user the fresh credential belongs to. The credential
	// introspects itself.
	info, err := b.authority.Introspect(ctx, grant.Token, grant.Token)
	if err != nil {
		return nil, err
	}
	if !info.Valid || info.User == nil {
		return nil, errors.NewUpstreamInconsistentError("identity authority issued a credential it does not recognize", nil)
	}

	if err := b.sessions.Put(ctx, info.User.ID, grant.Token, grant.ExpiresAt); err != nil {
		return nil, errors.NewUpstreamUnavailableError("failed to store session", err)
	}

	token, expiresAt, err := b.tokens.Mint(info.User.ID, grant.ExpiresAt)
	if err != nil {
		// The session exists but the caller never learns about it; it ages
		// out on its own.
		return nil, err
	}

	logger.Infow("user logged in", "subject", info.User.ID)
	return &LoginResult{Token: token, ExpiresAt: expiresAt, Subject: info.User.ID}, nil
}

// ResolveManagementCredential returns the management credential held for
// the given user. This is the required precondition for every privileged
// operation: a revoked session blocks the operation even while the user's
// local token is still valid.
func (b *Bridge) ResolveManagementCredential(ctx context.Context, userID string) (string, error) {
	credential, ok, err := b.sessions.Get(ctx, userID)
	if err != nil {
		return "", errors.NewUpstreamUnavailableError("failed to read session", err)
	}
	if !ok {
		return "", errors.NewUnauthenticatedError("no active session", nil)
	}
	return credential, nil
}

// Logout destroys the user's session. The local token keeps validating
// until it expires, but without a session it no longer authorizes
// anything privileged.
func (b *Bridge) Logout(ctx context.Context, userID string) error {
	if err := b.sessions.Remove(ctx, userID); err != nil {
		return errors.NewUpstreamUnavailableError("failed to remove session", err)
	}
	logger.Infow("user logged out", "subject", userID)
	return nil
}

// Validate checks a local token without touching the session store or the
// upstream authority.
func (b *Bridge) Validate(token string) (*Identity, error) {
	return b.tokens.Validate(token)
}
