package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMiddlewareInjectsIdentity(t *testing.T) {
	t.Parallel()

	tokens := newTestTokens(t, time.Hour)
	token, _, err := tokens.Mint("user-1", time.Time{})
	require.NoError(t, err)

	var seen *Identity
	handler := Middleware(tokens)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = IdentityFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/devices", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, seen)
	assert.Equal(t, "user-1", seen.Subject)
}

func TestMiddlewareRejectsBadRequests(t *testing.T) {
	t.Parallel()

	tokens := newTestTokens(t, time.Hour)

	expired, _, err := tokens.Mint("user-1", time.Now().Add(-time.Minute))
	require.NoError(t, err)

	tests := []struct {
		name   string
		header string
	}{
		{"no header", ""},
		{"wrong scheme", "Basic dXNlcjpwYXNz"},
		{"empty token", "Bearer "},
		{"garbage token", "Bearer not-a-jwt"},
		{"expired token", "Bearer " + expired},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			handler := Middleware(tokens)(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
				t.Fatal("handler must not be reached")
			}))

			req := httptest.NewRequest(http.MethodGet, "/devices", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			assert.Equal(t, http.StatusUnauthorized, rec.Code)
			assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
		})
	}
}

func TestMiddlewareAcceptsLowercaseScheme(t *testing.T) {
	t.Parallel()

	tokens := newTestTokens(t, time.Hour)
	token, _, err := tokens.Mint("user-1", time.Time{})
	require.NoError(t, err)

	handler := Middleware(tokens)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/devices", nil)
	req.Header.Set("Authorization", "bearer "+token)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestIdentityRedaction(t *testing.T) {
	t.Parallel()

	identity := &Identity{Subject: "user-1", Token: "super-secret-token"}

	assert.NotContains(t, identity.String(), "super-secret-token")

	data, err := identity.MarshalJSON()
	require.NoError(t, err)
	assert.NotContains(t, string(data), "super-secret-token")
	assert.Contains(t, string(data), "REDACTED")
}
