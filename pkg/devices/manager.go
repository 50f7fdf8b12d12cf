// Package devices orchestrates the lifecycle of IoT device credentials:
// issuance, lookup, rotation, revocation and trust-token minting. It owns
// the one-time-reveal rule — a device secret exists in exactly two
// responses, creation and rotation, and the manager keeps no copy of it
// after returning.
package devices

import (
	"context"

	"github.com/zineddine-nrk/SSIO-Project-Gateway/pkg/errors"
	"github.com/zineddine-nrk/SSIO-Project-Gateway/pkg/keyrock"
	"github.com/zineddine-nrk/SSIO-Project-Gateway/pkg/logger"
)

// CredentialResolver resolves the management credential held for a user.
// Satisfied by *auth.Bridge.
type CredentialResolver interface {
	ResolveManagementCredential(ctx context.Context, userID string) (string, error)
}

// DeviceAuthority is the slice of the upstream client the manager drives.
type DeviceAuthority interface {
	CreateDeviceAccount(ctx context.Context, token string) (*keyrock.DeviceAccount, error)
	GetDeviceAccount(ctx context.Context, token, deviceID string) (*keyrock.DeviceAccountInfo, error)
	ListDeviceAccounts(ctx context.Context, token string) ([]string, error)
	ResetDevicePassword(ctx context.Context, token, deviceID string) (string, error)
	DeleteDeviceAccount(ctx context.Context, token, deviceID string) error
	PermanentToken(ctx context.Context, deviceID, secret string) (*keyrock.PermanentGrant, error)
}

// Credential is the transient result of creating or rotating a device
// credential. It is the only type carrying the secret, and it exists only
// on the way out to the caller.
type Credential struct {
	DeviceID string `json:"deviceId"`
	Secret   string `json:"secret"`
}

// Metadata is the readable view of a device. It never carries the secret.
type Metadata struct {
	DeviceID      string `json:"deviceId"`
	OAuthClientID string `json:"oauthClientId,omitempty"`
}

// TrustToken is the long-lived, scope-restricted token minted for a
// device through its own credentials.
type TrustToken struct {
	AccessToken string   `json:"accessToken"`
	Scope       []string `json:"scope"`
}

// Manager runs every device-credential operation on behalf of a resolved
// caller. It holds no credential state of its own: the resolver is the
// single source of truth for who may act as whom, and the upstream
// authority is the single source of truth for which secrets are live.
type Manager struct {
	resolver  CredentialResolver
	authority DeviceAuthority
}

// NewManager creates a device credential lifecycle manager.
func NewManager(resolver CredentialResolver, authority DeviceAuthority) *Manager {
	return &Manager{resolver: resolver, authority: authority}
}

// Create provisions a new device identity and returns its credentials.
// The secret appears in this response and never again.
func (m *Manager) Create(ctx context.Context, userID string) (*Credential, error) {
	token, err := m.resolver.ResolveManagementCredential(ctx, userID)
	if err != nil {
		return nil, err
	}
	account, err := m.authority.CreateDeviceAccount(ctx, token)
	if err != nil {
		return nil, err
	}
	logger.Infow("device credential created", "device", account.ID, "subject", userID)
	return &Credential{DeviceID: account.ID, Secret: account.Password}, nil
}

// Get returns a device's metadata. The secret is not retrievable through
// any read operation.
func (m *Manager) Get(ctx context.Context, deviceID, userID string) (*Metadata, error) {
	if deviceID == "" {
		return nil, errors.NewInvalidInputError("device identifier is required", nil)
	}
	token, err := m.resolver.ResolveManagementCredential(ctx, userID)
	if err != nil {
		return nil, err
	}
	info, err := m.authority.GetDeviceAccount(ctx, token, deviceID)
	if err != nil {
		return nil, err
	}
	return &Metadata{DeviceID: info.ID, OAuthClientID: info.OAuthClientID}, nil
}

// List returns the identifiers of the tenant's devices, in upstream order.
func (m *Manager) List(ctx context.Context, userID string) ([]string, error) {
	token, err := m.resolver.ResolveManagementCredential(ctx, userID)
	if err != nil {
		return nil, err
	}
	return m.authority.ListDeviceAccounts(ctx, token)
}

// Rotate invalidates the device's current secret and returns its
// replacement, again exactly once. The upstream swap is a single call;
// when its response leaves the live secret unknowable the failure
// surfaces as upstream_inconsistent rather than silent success.
func (m *Manager) Rotate(ctx context.Context, deviceID, userID string) (*Credential, error) {
	if deviceID == "" {
		return nil, errors.NewInvalidInputError("device identifier is required", nil)
	}
	token, err := m.resolver.ResolveManagementCredential(ctx, userID)
	if err != nil {
		return nil, err
	}
	newSecret, err := m.authority.ResetDevicePassword(ctx, token, deviceID)
	if err != nil {
		return nil, err
	}
	logger.Infow("device credential rotated", "device", deviceID, "subject", userID)
	return &Credential{DeviceID: deviceID, Secret: newSecret}, nil
}

// Delete irreversibly revokes a device identity. Deleting a device that
// does not exist — including one already deleted — surfaces not_found;
// the policy is uniform across the gateway.
func (m *Manager) Delete(ctx context.Context, deviceID, userID string) error {
	if deviceID == "" {
		return errors.NewInvalidInputError("device identifier is required", nil)
	}
	token, err := m.resolver.ResolveManagementCredential(ctx, userID)
	if err != nil {
		return err
	}
	if err := m.authority.DeleteDeviceAccount(ctx, token, deviceID); err != nil {
		return err
	}
	logger.Infow("device credential deleted", "device", deviceID, "subject", userID)
	return nil
}

// MintTrustToken trades a device's own credentials for a long-lived,
// "permanent"-scoped token. Unlike every other operation here it is not
// gated by a user session: the device itself is the caller, and its
// secret is the proof. A trust token is never derived from a management
// credential.
func (m *Manager) MintTrustToken(ctx context.Context, deviceID, secret string) (*TrustToken, error) {
	if deviceID == "" || secret == "" {
		return nil, errors.NewInvalidInputError("device identifier and secret are required", nil)
	}
	grant, err := m.authority.PermanentToken(ctx, deviceID, secret)
	if err != nil {
		return nil, err
	}
	logger.Infow("trust token minted", "device", deviceID)
	return &TrustToken{AccessToken: grant.AccessToken, Scope: grant.Scope}, nil
}
