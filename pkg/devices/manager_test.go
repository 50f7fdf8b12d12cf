package devices

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zineddine-nrk/SSIO-Project-Gateway/pkg/errors"
	"github.com/zineddine-nrk/SSIO-Project-Gateway/pkg/keyrock"
)

// fakeResolver hands out a management credential for a single known user.
type fakeResolver struct {
	userID string
}

func (f *fakeResolver) ResolveManagementCredential(_ context.Context, userID string) (string, error) {
	if userID != f.userID {
		return "", errors.NewUnauthenticatedError("no active session", nil)
	}
	return "mgmt-token", nil
}

// fakeDeviceAuthority simulates the upstream device registry. Secrets are
// kept only to verify trust-token minting; the gateway itself never sees
// them again after issuance.
type fakeDeviceAuthority struct {
	mu      sync.Mutex
	next    int
	secrets map[string]string

	rotateEmptySecret bool
}

func newFakeDeviceAuthority() *fakeDeviceAuthority {
	return &fakeDeviceAuthority{secrets: make(map[string]string)}
}

func (f *fakeDeviceAuthority) checkToken(token string) error {
	if token != "mgmt-token" {
		return errors.NewUnauthenticatedError("bad management credential", nil)
	}
	return nil
}

func (f *fakeDeviceAuthority) CreateDeviceAccount(_ context.Context, token string) (*keyrock.DeviceAccount, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.checkToken(token); err != nil {
		return nil, err
	}
	f.next++
	id := fmt.Sprintf("iot_sensor_%d", f.next)
	secret := fmt.Sprintf("secret-%d-v1", f.next)
	f.secrets[id] = secret
	return &keyrock.DeviceAccount{ID: id, Password: secret}, nil
}

func (f *fakeDeviceAuthority) GetDeviceAccount(_ context.Context, token, deviceID string) (*keyrock.DeviceAccountInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.checkToken(token); err != nil {
		return nil, err
	}
	if _, ok := f.secrets[deviceID]; !ok {
		return nil, errors.NewNotFoundError("device not found", nil)
	}
	return &keyrock.DeviceAccountInfo{ID: deviceID, OAuthClientID: "oauth-" + deviceID}, nil
}

func (f *fakeDeviceAuthority) ListDeviceAccounts(_ context.Context, token string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.checkToken(token); err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(f.secrets))
	for id := range f.secrets {
		ids = append(ids, id)
	}
	return ids, nil
}

func (f *fakeDeviceAuthority) ResetDevicePassword(_ context.Context, token, deviceID string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.checkToken(token); err != nil {
		return "", err
	}
	if _, ok := f.secrets[deviceID]; !ok {
		return "", errors.NewNotFoundError("device not found", nil)
	}
	if f.rotateEmptySecret {
		return "", errors.NewUpstreamInconsistentError("rotation produced no usable secret", nil)
	}
	secret := f.secrets[deviceID] + "-rotated"
	f.secrets[deviceID] = secret
	return secret, nil
}

func (f *fakeDeviceAuthority) DeleteDeviceAccount(_ context.Context, token, deviceID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.checkToken(token); err != nil {
		return err
	}
	if _, ok := f.secrets[deviceID]; !ok {
		return errors.NewNotFoundError("device not found", nil)
	}
	delete(f.secrets, deviceID)
	return nil
}

func (f *fakeDeviceAuthority) PermanentToken(_ context.Context, deviceID, secret string) (*keyrock.PermanentGrant, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	live, ok := f.secrets[deviceID]
	if !ok || live != secret {
		return nil, errors.NewInvalidCredentialsError("invalid device credentials", nil)
	}
	return &keyrock.PermanentGrant{AccessToken: "trust-" + deviceID, Scope: []string{"permanent"}}, nil
}

func newTestManager() (*Manager, *fakeDeviceAuthority) {
	authority := newFakeDeviceAuthority()
	return NewManager(&fakeResolver{userID: "uid-alice"}, authority), authority
}

func TestCreateReturnsSecretOnce(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	manager, _ := newTestManager()

	credential, err := manager.Create(ctx, "uid-alice")
	require.NoError(t, err)
	assert.NotEmpty(t, credential.DeviceID)
	assert.NotEmpty(t, credential.Secret)

	// no read path ever returns the secret again
	metadata, err := manager.Get(ctx, credential.DeviceID, "uid-alice")
	require.NoError(t, err)
	assert.Equal(t, credential.DeviceID, metadata.DeviceID)
	assert.NotContains(t, fmt.Sprintf("%+v", metadata), credential.Secret)
}

func TestOperationsRequireSession(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	manager, _ := newTestManager()

	_, err := manager.Create(ctx, "uid-stranger")
	assert.True(t, errors.IsUnauthenticated(err))

	_, err = manager.Get(ctx, "iot_sensor_1", "uid-stranger")
	assert.True(t, errors.IsUnauthenticated(err))

	_, err = manager.List(ctx, "uid-stranger")
	assert.True(t, errors.IsUnauthenticated(err))

	_, err = manager.Rotate(ctx, "iot_sensor_1", "uid-stranger")
	assert.True(t, errors.IsUnauthenticated(err))

	err = manager.Delete(ctx, "iot_sensor_1", "uid-stranger")
	assert.True(t, errors.IsUnauthenticated(err))
}

func TestInputValidation(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	manager, _ := newTestManager()

	_, err := manager.Get(ctx, "", "uid-alice")
	assert.True(t, errors.IsInvalidInput(err))

	_, err = manager.Rotate(ctx, "", "uid-alice")
	assert.True(t, errors.IsInvalidInput(err))

	err = manager.Delete(ctx, "", "uid-alice")
	assert.True(t, errors.IsInvalidInput(err))

	_, err = manager.MintTrustToken(ctx, "", "secret")
	assert.True(t, errors.IsInvalidInput(err))

	_, err = manager.MintTrustToken(ctx, "iot_sensor_1", "")
	assert.True(t, errors.IsInvalidInput(err))
}

func TestRotateInvalidatesOldSecret(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	manager, _ := newTestManager()

	created, err := manager.Create(ctx, "uid-alice")
	require.NoError(t, err)

	rotated, err := manager.Rotate(ctx, created.DeviceID, "uid-alice")
	require.NoError(t, err)
	assert.Equal(t, created.DeviceID, rotated.DeviceID)
	assert.NotEqual(t, created.Secret, rotated.Secret)

	// the old secret no longer mints trust tokens; the new one does
	_, err = manager.MintTrustToken(ctx, created.DeviceID, created.Secret)
	assert.True(t, errors.IsInvalidCredentials(err))

	token, err := manager.MintTrustToken(ctx, created.DeviceID, rotated.Secret)
	require.NoError(t, err)
	assert.Equal(t, []string{"permanent"}, token.Scope)
}

func TestRotateInconsistentUpstream(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	manager, authority := newTestManager()

	created, err := manager.Create(ctx, "uid-alice")
	require.NoError(t, err)

	authority.rotateEmptySecret = true
	_, err = manager.Rotate(ctx, created.DeviceID, "uid-alice")
	assert.True(t, errors.IsUpstreamInconsistent(err),
		"a rotation whose response hides the live secret must not report success")
}

func TestRotateUnknownDevice(t *testing.T) {
	t.Parallel()

	manager, _ := newTestManager()

	_, err := manager.Rotate(context.Background(), "iot_sensor_999", "uid-alice")
	assert.True(t, errors.IsNotFound(err))
}

func TestDeleteIsIrreversibleAndNotIdempotent(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	manager, _ := newTestManager()

	created, err := manager.Create(ctx, "uid-alice")
	require.NoError(t, err)

	require.NoError(t, manager.Delete(ctx, created.DeviceID, "uid-alice"))

	// repeating the delete reports the device as gone
	err = manager.Delete(ctx, created.DeviceID, "uid-alice")
	assert.True(t, errors.IsNotFound(err))

	// and the deleted device's secret is dead
	_, err = manager.MintTrustToken(ctx, created.DeviceID, created.Secret)
	assert.True(t, errors.IsInvalidCredentials(err))
}

func TestListDevices(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	manager, _ := newTestManager()

	first, err := manager.Create(ctx, "uid-alice")
	require.NoError(t, err)
	second, err := manager.Create(ctx, "uid-alice")
	require.NoError(t, err)

	ids, err := manager.List(ctx, "uid-alice")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{first.DeviceID, second.DeviceID}, ids)
}

func TestMintTrustTokenWithoutUserSession(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	manager, _ := newTestManager()

	created, err := manager.Create(ctx, "uid-alice")
	require.NoError(t, err)

	// trust-token minting authenticates the device, not a user: no
	// session is involved
	token, err := manager.MintTrustToken(ctx, created.DeviceID, created.Secret)
	require.NoError(t, err)
	assert.NotEmpty(t, token.AccessToken)
	assert.Equal(t, []string{"permanent"}, token.Scope)
}

func TestMintTrustTokenBadSecret(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	manager, _ := newTestManager()

	created, err := manager.Create(ctx, "uid-alice")
	require.NoError(t, err)

	_, err = manager.MintTrustToken(ctx, created.DeviceID, "wrong")
	assert.True(t, errors.IsInvalidCredentials(err))
}
