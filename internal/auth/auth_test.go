package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/streamops/ivsctl/internal/config"
	"github.com/streamops/ivsctl/internal/credentials"
)

// newTestManager wires a manager against srv with file-backed credentials
// supplied through the environment.
func newTestManager(t *testing.T, srv *httptest.Server) *Manager {
	t.Helper()
	t.Setenv("IVSCTL_NO_KEYRING", "1")
	t.Setenv("IVS_CLIENT_ID", "id-1234")
	t.Setenv("IVS_CLIENT_SECRET", "secret-5678")

	cfg := config.Default()
	cfg.TokenURL = srv.URL

	store := credentials.NewStore(t.TempDir())
	return NewManager(cfg, store, srv.Client())
}

func tokenHandler(t *testing.T, requests *atomic.Int64, body string) http.Handler {
	t.Helper()
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		assert.Equal(t, http.MethodPost, r.Method)
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "client_credentials", r.PostForm.Get("grant_type"))
		assert.Equal(t, "id-1234", r.PostForm.Get("client_id"))
		assert.Equal(t, "secret-5678", r.PostForm.Get("client_secret"))
		assert.Equal(t, "ivsctl", r.PostForm.Get("device_name"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(body))
	})
}

func TestAccessTokenCachedUntilExpiry(t *testing.T) {
	var requests atomic.Int64
	srv := httptest.NewServer(tokenHandler(t, &requests,
		`{"access_token":"tok123","expires_in":3600,"token_type":"Bearer"}`))
	defer srv.Close()

	m := newTestManager(t, srv)

	tok, ok := m.AccessToken(context.Background())
	require.True(t, ok)
	assert.Equal(t, "tok123", tok)

	// Second call must reuse the cached token.
	tok, ok = m.AccessToken(context.Background())
	require.True(t, ok)
	assert.Equal(t, "tok123", tok)
	assert.Equal(t, int64(1), requests.Load())
}

func TestAccessTokenResponseDefaults(t *testing.T) {
	var requests atomic.Int64
	srv := httptest.NewServer(tokenHandler(t, &requests, `{"access_token":"tok123"}`))
	defer srv.Close()

	m := newTestManager(t, srv)
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return base }

	headers := m.AuthHeaders(context.Background())
	assert.Equal(t, map[string]string{
		"Authorization": "Bearer tok123",
		"Content-Type":  "application/json",
		"Accept":        "application/json",
	}, headers)

	// Omitted expires_in defaults to 3600; the margin comes off that.
	assert.Equal(t, base.Add(3600*time.Second-expiryMargin), m.standard.expiresAt)
}

func TestExpiryMarginConsumesShortLifetimes(t *testing.T) {
	// Lifetimes at or below the 300s margin are already expired on arrival,
	// so every accessor call re-requests.
	for _, expiresIn := range []int{0, 1, 300} {
		t.Run(fmt.Sprintf("expires_in=%d", expiresIn), func(t *testing.T) {
			var requests atomic.Int64
			srv := httptest.NewServer(tokenHandler(t, &requests,
				fmt.Sprintf(`{"access_token":"tok123","expires_in":%d}`, expiresIn)))
			defer srv.Close()

			m := newTestManager(t, srv)

			_, ok := m.AccessToken(context.Background())
			require.True(t, ok)
			_, ok = m.AccessToken(context.Background())
			require.True(t, ok)
			assert.Equal(t, int64(2), requests.Load())
		})
	}
}

func TestExpiredTokenRerequested(t *testing.T) {
	var requests atomic.Int64
	srv := httptest.NewServer(tokenHandler(t, &requests,
		`{"access_token":"tok123","expires_in":3600}`))
	defer srv.Close()

	m := newTestManager(t, srv)
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	now := base
	m.now = func() time.Time { return now }

	_, ok := m.AccessToken(context.Background())
	require.True(t, ok)
	assert.Equal(t, int64(1), requests.Load())

	// Inside the margin-adjusted lifetime: still cached.
	now = base.Add(3299 * time.Second)
	_, ok = m.AccessToken(context.Background())
	require.True(t, ok)
	assert.Equal(t, int64(1), requests.Load())

	// Past it: exactly one new request.
	now = base.Add(3300 * time.Second)
	_, ok = m.AccessToken(context.Background())
	require.True(t, ok)
	assert.Equal(t, int64(2), requests.Load())
}

func TestStandardAndAnalyticsTokensAreIndependent(t *testing.T) {
	var requests atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		require.NoError(t, r.ParseForm())
		if r.PostForm.Get("token_type") == "jwt" {
			_, _ = w.Write([]byte(`{"access_token":"jwt456","expires_in":3600}`))
			return
		}
		_, _ = w.Write([]byte(`{"access_token":"tok123","expires_in":3600}`))
	}))
	defer srv.Close()

	m := newTestManager(t, srv)

	tok, ok := m.AccessToken(context.Background())
	require.True(t, ok)
	assert.Equal(t, "tok123", tok)

	jwtTok, ok := m.JWTToken(context.Background())
	require.True(t, ok)
	assert.Equal(t, "jwt456", jwtTok)
	assert.Equal(t, int64(2), requests.Load())

	// Each accessor reuses its own cache.
	_, _ = m.AccessToken(context.Background())
	_, _ = m.JWTToken(context.Background())
	assert.Equal(t, int64(2), requests.Load())
}

func TestAnalyticsHeadersOmitBearerPrefix(t *testing.T) {
	var requests atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "jwt", r.PostForm.Get("token_type"))
		_, _ = w.Write([]byte(`{"access_token":"jwt456","expires_in":3600,"token_type":"Bearer"}`))
	}))
	defer srv.Close()

	m := newTestManager(t, srv)

	headers := m.AnalyticsAuthHeaders(context.Background())
	assert.Equal(t, map[string]string{
		"Authorization": "jwt456",
		"Content-Type":  "application/json",
		"Accept":        "application/json",
	}, headers)
}

func TestNoCredentialsSkipsNetwork(t *testing.T) {
	var requests atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
	}))
	defer srv.Close()

	t.Setenv("IVSCTL_NO_KEYRING", "1")
	t.Setenv("IVS_CLIENT_ID", "")
	t.Setenv("IVS_CLIENT_SECRET", "")

	cfg := config.Default()
	cfg.TokenURL = srv.URL
	m := NewManager(cfg, credentials.NewStore(t.TempDir()), srv.Client())

	_, ok := m.AccessToken(context.Background())
	assert.False(t, ok)
	assert.Empty(t, m.AuthHeaders(context.Background()))
	assert.Empty(t, m.AnalyticsAuthHeaders(context.Background()))
	assert.Equal(t, int64(0), requests.Load())
}

func TestRefreshForcesNewToken(t *testing.T) {
	var requests atomic.Int64
	srv := httptest.NewServer(tokenHandler(t, &requests,
		`{"access_token":"tok123","expires_in":3600}`))
	defer srv.Close()

	m := newTestManager(t, srv)

	_, ok := m.AccessToken(context.Background())
	require.True(t, ok)
	require.True(t, m.Refresh(context.Background()))
	assert.Equal(t, int64(2), requests.Load())
}

func TestTokenEndpointFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":"invalid_client"}`))
	}))
	defer srv.Close()

	m := newTestManager(t, srv)

	_, ok := m.AccessToken(context.Background())
	assert.False(t, ok)
	assert.Empty(t, m.AuthHeaders(context.Background()))
}

func TestCredentialChangeDropsTokens(t *testing.T) {
	var requests atomic.Int64
	srv := httptest.NewServer(tokenHandler(t, &requests,
		`{"access_token":"tok123","expires_in":3600}`))
	defer srv.Close()

	t.Setenv("IVSCTL_NO_KEYRING", "1")
	t.Setenv("IVS_CLIENT_ID", "id-1234")
	t.Setenv("IVS_CLIENT_SECRET", "secret-5678")

	cfg := config.Default()
	cfg.TokenURL = srv.URL
	store := credentials.NewStore(t.TempDir())
	m := NewManager(cfg, store, srv.Client())

	_, ok := m.AccessToken(context.Background())
	require.True(t, ok)
	assert.Equal(t, int64(1), requests.Load())

	// Mutating the store invalidates the cache through the listener.
	require.True(t, store.Set("id-1234", "secret-5678"))
	_, ok = m.AccessToken(context.Background())
	require.True(t, ok)
	assert.Equal(t, int64(2), requests.Load())
}

func TestJWTExpClaimTightensExpiry(t *testing.T) {
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	claimExp := base.Add(600 * time.Second)

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"exp": claimExp.Unix(),
	}).SignedString([]byte("test-key"))
	require.NoError(t, err)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := json.Marshal(map[string]any{
			"access_token": signed,
			"expires_in":   3600,
		})
		_, _ = w.Write(body)
	}))
	defer srv.Close()

	m := newTestManager(t, srv)
	m.now = func() time.Time { return base }

	_, ok := m.JWTToken(context.Background())
	require.True(t, ok)

	// The claim's 600s lifetime beats the advertised 3600s.
	assert.Equal(t, claimExp.Add(-expiryMargin), m.analytics.expiresAt)
}

func TestEndpointError(t *testing.T) {
	err := &EndpointError{Status: 401, Body: `{"error":"invalid_client"}`}
	assert.Equal(t, `token endpoint returned 401: {"error":"invalid_client"}`, err.Error())
}
