package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zineddine-nrk/SSIO-Project-Gateway/pkg/auth"
	"github.com/zineddine-nrk/SSIO-Project-Gateway/pkg/devices"
	"github.com/zineddine-nrk/SSIO-Project-Gateway/pkg/iotagent"
	"github.com/zineddine-nrk/SSIO-Project-Gateway/pkg/keyrock"
	"github.com/zineddine-nrk/SSIO-Project-Gateway/pkg/session"
)

// fakeKeyrock simulates the slice of Keyrock the gateway talks to: token
// exchange, introspection, device accounts and the OAuth2 password grant.
type fakeKeyrock struct {
	mu      sync.Mutex
	next    int
	devices map[string]string // device id -> live secret
}

func newFakeKeyrock() *fakeKeyrock {
	return &fakeKeyrock{devices: make(map[string]string)}
}

func (f *fakeKeyrock) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/auth/tokens", f.exchange)
	mux.HandleFunc("GET /v1/auth/tokens", f.introspect)
	mux.HandleFunc("POST /v1/applications/app-1/iot_agents", f.createDevice)
	mux.HandleFunc("GET /v1/applications/app-1/iot_agents", f.listDevices)
	mux.HandleFunc("GET /v1/applications/app-1/iot_agents/{id}", f.getDevice)
	mux.HandleFunc("PATCH /v1/applications/app-1/iot_agents/{id}", f.rotateDevice)
	mux.HandleFunc("DELETE /v1/applications/app-1/iot_agents/{id}", f.deleteDevice)
	mux.HandleFunc("POST /oauth2/token", f.oauthToken)
	return mux
}

func (f *fakeKeyrock) exchange(w http.ResponseWriter, r *http.Request) {
	var payload map[string]string
	_ = json.NewDecoder(r.Body).Decode(&payload)
	if payload["name"] != "alice@example.com" || payload["password"] != "secret" {
		w.WriteHeader(http.StatusUnauthorized)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"error": map[string]any{"message": "Invalid email or password"},
		})
		return
	}
	w.Header().Set("X-Subject-Token", "mgmt-token")
	w.WriteHeader(http.StatusCreated)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"token": map[string]any{"expires_at": time.Now().Add(time.Hour)},
	})
}

func (f *fakeKeyrock) introspect(w http.ResponseWriter, r *http.Request) {
	if r.Header.Get("X-Subject-Token") != "mgmt-token" {
		w.WriteHeader(http.StatusUnauthorized)
		return
	}
	_ = json.NewEncoder(w).Encode(map[string]any{
		"expires": time.Now().Add(time.Hour),
		"User":    map[string]any{"id": "uid-alice", "username": "alice"},
	})
}

func (f *fakeKeyrock) authorized(w http.ResponseWriter, r *http.Request) bool {
	if r.Header.Get("X-Auth-Token") != "mgmt-token" {
		w.WriteHeader(http.StatusUnauthorized)
		return false
	}
	return true
}

func (f *fakeKeyrock) createDevice(w http.ResponseWriter, r *http.Request) {
	if !f.authorized(w, r) {
		return
	}
	f.mu.Lock()
	f.next++
	id := fmt.Sprintf("iot_sensor_%d", f.next)
	secret := fmt.Sprintf("secret-%d", f.next)
	f.devices[id] = secret
	f.mu.Unlock()

	w.WriteHeader(http.StatusCreated)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"iot": map[string]any{"id": id, "password": secret},
	})
}

func (f *fakeKeyrock) listDevices(w http.ResponseWriter, r *http.Request) {
	if !f.authorized(w, r) {
		return
	}
	f.mu.Lock()
	iots := make([]map[string]any, 0, len(f.devices))
	for id := range f.devices {
		iots = append(iots, map[string]any{"id": id})
	}
	f.mu.Unlock()
	_ = json.NewEncoder(w).Encode(map[string]any{"iots": iots})
}

func (f *fakeKeyrock) getDevice(w http.ResponseWriter, r *http.Request) {
	if !f.authorized(w, r) {
		return
	}
	id := r.PathValue("id")
	f.mu.Lock()
	_, ok := f.devices[id]
	f.mu.Unlock()
	if !ok {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	_ = json.NewEncoder(w).Encode(map[string]any{
		"iot": map[string]any{"id": id, "oauth_client_id": "oauth-" + id},
	})
}

func (f *fakeKeyrock) rotateDevice(w http.ResponseWriter, r *http.Request) {
	if !f.authorized(w, r) {
		return
	}
	id := r.PathValue("id")
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.devices[id]; !ok {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	f.devices[id] += "-rotated"
	_ = json.NewEncoder(w).Encode(map[string]any{"new_password": f.devices[id]})
}

func (f *fakeKeyrock) deleteDevice(w http.ResponseWriter, r *http.Request) {
	if !f.authorized(w, r) {
		return
	}
	id := r.PathValue("id")
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.devices[id]; !ok {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	delete(f.devices, id)
	w.WriteHeader(http.StatusNoContent)
}

func (f *fakeKeyrock) oauthToken(w http.ResponseWriter, r *http.Request) {
	_ = r.ParseForm()
	id := r.PostForm.Get("username")
	f.mu.Lock()
	live, ok := f.devices[id]
	f.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	if !ok || live != r.PostForm.Get("password") {
		w.WriteHeader(http.StatusBadRequest)
		_ = json.NewEncoder(w).Encode(map[string]any{"error": "invalid_grant"})
		return
	}
	_ = json.NewEncoder(w).Encode(map[string]any{
		"access_token": "trust-" + id,
		"token_type":   "Bearer",
		"scope":        "permanent",
	})
}

// newTestGateway wires real components against fake upstreams and returns
// the gateway's base URL.
func newTestGateway(t *testing.T) string {
	t.Helper()

	upstream := httptest.NewServer(newFakeKeyrock().handler())
	t.Cleanup(upstream.Close)

	agentUpstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Fiware-Service") == "" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		_, _ = w.Write([]byte(`{"count":0,"devices":[]}`))
	}))
	t.Cleanup(agentUpstream.Close)

	identity, err := keyrock.NewClient(keyrock.Config{
		BaseURL:      upstream.URL,
		AppID:        "app-1",
		ClientID:     "client-1",
		ClientSecret: "client-secret",
	}, upstream.Client())
	require.NoError(t, err)

	agent, err := iotagent.NewClient(iotagent.Config{BaseURL: agentUpstream.URL}, agentUpstream.Client())
	require.NoError(t, err)

	store := session.NewMemoryStore()
	t.Cleanup(func() { store.Close() })

	tokens, err := auth.NewLocalTokens(auth.TokenConfig{
		SigningKey: []byte("0123456789abcdef0123456789abcdef"),
	})
	require.NoError(t, err)

	bridge := auth.NewBridge(identity, store, tokens)
	manager := devices.NewManager(bridge, identity)

	gateway := httptest.NewServer(NewServer(Deps{
		Bridge:  bridge,
		Devices: manager,
		Keyrock: identity,
		Agent:   agent,
	}))
	t.Cleanup(gateway.Close)
	return gateway.URL
}

func postJSON(t *testing.T, url, token string, payload any) (*http.Response, map[string]any) {
	t.Helper()
	return doJSON(t, http.MethodPost, url, token, payload)
}

func doJSON(t *testing.T, method, url, token string, payload any) (*http.Response, map[string]any) {
	t.Helper()

	var body io.Reader
	if payload != nil {
		buf, err := json.Marshal(payload)
		require.NoError(t, err)
		body = bytes.NewReader(buf)
	}
	req, err := http.NewRequest(method, url, body)
	require.NoError(t, err)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	var decoded map[string]any
	if len(raw) > 0 {
		require.NoError(t, json.Unmarshal(raw, &decoded), "body: %s", raw)
	}
	return resp, decoded
}

func login(t *testing.T, baseURL string) string {
	t.Helper()

	resp, body := postJSON(t, baseURL+"/auth/login", "", map[string]string{
		"email":    "alice@example.com",
		"password": "secret",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	token, _ := body["token"].(string)
	require.NotEmpty(t, token)
	return token
}

func TestLoginAndValidate(t *testing.T) {
	t.Parallel()

	baseURL := newTestGateway(t)
	token := login(t, baseURL)

	resp, body := postJSON(t, baseURL+"/auth/validate", "", map[string]string{"token": token})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, true, body["valid"])
	assert.Equal(t, "uid-alice", body["subject"])

	resp, body = postJSON(t, baseURL+"/auth/validate", "", map[string]string{"token": "garbage"})
	require.Equal(t, http.StatusOK, resp.StatusCode, "a bad token is an answer, not a failure")
	assert.Equal(t, false, body["valid"])
}

func TestLoginBadPassword(t *testing.T) {
	t.Parallel()

	baseURL := newTestGateway(t)

	resp, body := postJSON(t, baseURL+"/auth/login", "", map[string]string{
		"email":    "alice@example.com",
		"password": "wrong",
	})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, "invalid_credentials", body["kind"])
}

func TestLoginResponseNeverLeaksManagementCredential(t *testing.T) {
	t.Parallel()

	baseURL := newTestGateway(t)

	resp, body := postJSON(t, baseURL+"/auth/login", "", map[string]string{
		"email":    "alice@example.com",
		"password": "secret",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	raw, err := json.Marshal(body)
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "mgmt-token")
}

func TestDeviceLifecycle(t *testing.T) {
	t.Parallel()

	baseURL := newTestGateway(t)
	token := login(t, baseURL)

	// create: the one response carrying the secret
	resp, created := postJSON(t, baseURL+"/devices", token, nil)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	deviceID, _ := created["deviceId"].(string)
	secret, _ := created["secret"].(string)
	require.NotEmpty(t, deviceID)
	require.NotEmpty(t, secret)
	assert.Contains(t, created["message"], "cannot be retrieved again")

	// read paths never reveal the secret again
	resp, metadata := doJSON(t, http.MethodGet, baseURL+"/devices/"+deviceID, token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	raw, err := json.Marshal(metadata)
	require.NoError(t, err)
	assert.NotContains(t, string(raw), secret)

	resp, list := doJSON(t, http.MethodGet, baseURL+"/devices", token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, list["devices"], deviceID)

	// rotation discloses the replacement exactly once
	resp, rotated := doJSON(t, http.MethodPatch, baseURL+"/devices/"+deviceID+"/rotate", token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	newSecret, _ := rotated["secret"].(string)
	require.NotEmpty(t, newSecret)
	assert.NotEqual(t, secret, newSecret)

	// the old secret is dead for trust tokens, the new one works
	resp, _ = postJSON(t, baseURL+"/devices/token", "", map[string]string{
		"deviceId": deviceID, "secret": secret,
	})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp, trust := postJSON(t, baseURL+"/devices/token", "", map[string]string{
		"deviceId": deviceID, "secret": newSecret,
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NotEmpty(t, trust["accessToken"])
	assert.Contains(t, trust["scope"], "permanent")

	// delete, then deleting again is not_found
	resp, _ = doJSON(t, http.MethodDelete, baseURL+"/devices/"+deviceID, token, nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp, body := doJSON(t, http.MethodDelete, baseURL+"/devices/"+deviceID, token, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "not_found", body["kind"])
}

func TestDeviceRoutesRequireAuthentication(t *testing.T) {
	t.Parallel()

	baseURL := newTestGateway(t)

	resp, _ := postJSON(t, baseURL+"/devices", "", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp, _ = doJSON(t, http.MethodGet, baseURL+"/devices", "garbage-token", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestTrustTokenNeedsNoUserSession(t *testing.T) {
	t.Parallel()

	baseURL := newTestGateway(t)
	token := login(t, baseURL)

	resp, created := postJSON(t, baseURL+"/devices", token, nil)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	// log out, then mint with only the device's own credentials
	resp, _ = postJSON(t, baseURL+"/auth/logout", token, nil)
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp, trust := postJSON(t, baseURL+"/devices/token", "", map[string]string{
		"deviceId": created["deviceId"].(string),
		"secret":   created["secret"].(string),
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NotEmpty(t, trust["accessToken"])
}

func TestLogoutBlocksPrivilegedCallsButNotValidation(t *testing.T) {
	t.Parallel()

	baseURL := newTestGateway(t)
	token := login(t, baseURL)

	resp, _ := postJSON(t, baseURL+"/auth/logout", token, nil)
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	// token still validates locally
	resp, body := postJSON(t, baseURL+"/auth/validate", "", map[string]string{"token": token})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, true, body["valid"])

	// but it no longer resolves a session for privileged work
	resp, body = postJSON(t, baseURL+"/devices", token, nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, "unauthenticated", body["kind"])
}

func TestProvisioningPassThrough(t *testing.T) {
	t.Parallel()

	baseURL := newTestGateway(t)
	token := login(t, baseURL)

	resp, body := doJSON(t, http.MethodGet, baseURL+"/iot/devices", token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, "devices")

	// unauthenticated callers are stopped at the gateway
	resp, _ = doJSON(t, http.MethodGet, baseURL+"/iot/devices", "", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestHealthAndMetrics(t *testing.T) {
	t.Parallel()

	baseURL := newTestGateway(t)

	resp, err := http.Get(baseURL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	metricsResp, err := http.Get(baseURL + "/metrics")
	require.NoError(t, err)
	defer metricsResp.Body.Close()
	assert.Equal(t, http.StatusOK, metricsResp.StatusCode)

	raw, err := io.ReadAll(metricsResp.Body)
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(raw), "ssio_upstream_requests_total") ||
		strings.Contains(string(raw), "go_goroutines"))
}

func TestInvalidJSONBody(t *testing.T) {
	t.Parallel()

	baseURL := newTestGateway(t)

	resp, err := http.Post(baseURL+"/auth/login", "application/json", strings.NewReader("{not json"))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}
