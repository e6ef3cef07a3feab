// Package auth manages OAuth 2.0 client-credentials tokens for the IBM Video
// Streaming API. Two independent tokens are maintained: a standard bearer
// token for the main API and a JWT for the analytics API.
package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/streamops/ivsctl/internal/config"
	"github.com/streamops/ivsctl/internal/credentials"
)

const (
	// expiryMargin is subtracted from the server-reported lifetime so a token
	// is refreshed before the server considers it dead.
	expiryMargin = 300 * time.Second

	defaultExpiresIn = 3600
	defaultTokenType = "Bearer"

	tokenRequestTimeout = 30 * time.Second
)

// token is one cached token with its expiry clock.
type token struct {
	value     string
	tokenType string
	expiresAt time.Time
}

// valid reports whether the token is non-empty and not yet expired.
func (t *token) valid(now time.Time) bool {
	return t.value != "" && now.Before(t.expiresAt)
}

func (t *token) clear() {
	*t = token{}
}

// Manager owns the standard and analytics token lifecycles.
type Manager struct {
	cfg        *config.Config
	creds      *credentials.Store
	httpClient *http.Client

	// now is swappable for expiry tests.
	now func() time.Time

	// mu makes check-then-request a critical section so two callers cannot
	// both observe "expired" and issue duplicate token requests.
	mu        sync.Mutex
	standard  token
	analytics token
}

// NewManager creates a token manager. It registers with the credential store
// so any credential change drops both cached tokens.
func NewManager(cfg *config.Config, creds *credentials.Store, httpClient *http.Client) *Manager {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: tokenRequestTimeout}
	}
	m := &Manager{
		cfg:        cfg,
		creds:      creds,
		httpClient: httpClient,
		now:        time.Now,
	}
	creds.OnChange(m.Invalidate)
	return m
}

// Invalidate drops both cached tokens. The next accessor call re-requests.
func (m *Manager) Invalidate() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.standard.clear()
	m.analytics.clear()
}

// AccessToken returns a valid standard access token, requesting a new one if
// needed. The second return is false when no token could be obtained; absent
// credentials never trigger a network call.
func (m *Manager) AccessToken(ctx context.Context) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.ensureLocked(ctx, &m.standard, false) {
		return "", false
	}
	return m.standard.value, true
}

// JWTToken returns a valid analytics JWT, symmetric to AccessToken but with
// its own independent lifecycle.
func (m *Manager) JWTToken(ctx context.Context) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.ensureLocked(ctx, &m.analytics, true) {
		return "", false
	}
	return m.analytics.value, true
}

// AuthHeaders returns headers for standard API requests, or an empty map when
// no token is obtainable.
func (m *Manager) AuthHeaders(ctx context.Context) map[string]string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.ensureLocked(ctx, &m.standard, false) {
		return map[string]string{}
	}
	return map[string]string{
		"Authorization": m.standard.tokenType + " " + m.standard.value,
		"Content-Type":  "application/json",
		"Accept":        "application/json",
	}
}

// AnalyticsAuthHeaders returns headers for analytics API requests. The
// analytics API rejects a "Bearer " prefix: the Authorization header carries
// the bare JWT. This asymmetry is an external protocol requirement.
func (m *Manager) AnalyticsAuthHeaders(ctx context.Context) map[string]string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.ensureLocked(ctx, &m.analytics, true) {
		return map[string]string{}
	}
	return map[string]string{
		"Authorization": m.analytics.value,
		"Content-Type":  "application/json",
		"Accept":        "application/json",
	}
}

// Refresh force-clears the standard token and requests a new one.
func (m *Manager) Refresh(ctx context.Context) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.standard.clear()
	return m.ensureLocked(ctx, &m.standard, false)
}

// RefreshJWT force-clears the analytics JWT and requests a new one.
func (m *Manager) RefreshJWT(ctx context.Context) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.analytics.clear()
	return m.ensureLocked(ctx, &m.analytics, true)
}

// ensureLocked makes t valid, requesting a new token when needed.
// Callers must hold m.mu.
func (m *Manager) ensureLocked(ctx context.Context, t *token, analytics bool) bool {
	if !m.creds.HasCredentials() {
		slog.Debug("no credentials available, skipping token request")
		return false
	}
	if t.valid(m.now()) {
		return true
	}

	fresh, err := m.requestToken(ctx, analytics)
	if err != nil {
		slog.Error("token request failed", "analytics", analytics, "err", err)
		return false
	}
	*t = fresh
	return true
}

// tokenResponse is the OAuth2 token endpoint's success body.
type tokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int64  `json:"expires_in"`
	TokenType   string `json:"token_type"`
}

// requestToken performs the client-credentials POST. The client secret is
// sent in the form body, not Basic Auth: that is the contract the token
// endpoint actually accepts.
func (m *Manager) requestToken(ctx context.Context, analytics bool) (token, error) {
	clientID, clientSecret := m.creds.Get()

	data := url.Values{}
	data.Set("grant_type", "client_credentials")
	data.Set("client_id", clientID)
	data.Set("client_secret", clientSecret)
	data.Set("device_name", m.cfg.DeviceName)
	if analytics {
		// The analytics API requires a JWT instead of the standard token.
		data.Set("token_type", "jwt")
	}

	ctx, cancel := context.WithTimeout(ctx, tokenRequestTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.cfg.TokenURL, strings.NewReader(data.Encode()))
	if err != nil {
		return token{}, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	slog.Debug("requesting token", "url", m.cfg.TokenURL, "analytics", analytics)
	resp, err := m.httpClient.Do(req)
	if err != nil {
		return token{}, err
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if resp.StatusCode != http.StatusOK {
		slog.Warn("token endpoint returned error",
			"status", resp.StatusCode,
			"body", truncate(string(body), 500))
		return token{}, &EndpointError{Status: resp.StatusCode, Body: truncate(string(body), 500)}
	}

	var tr tokenResponse
	if err := json.Unmarshal(body, &tr); err != nil {
		return token{}, err
	}
	if tr.AccessToken == "" {
		return token{}, &EndpointError{Status: resp.StatusCode, Body: "no access_token in response"}
	}

	expiresIn := tr.ExpiresIn
	if expiresIn == 0 {
		expiresIn = defaultExpiresIn
	}
	tokenType := tr.TokenType
	if tokenType == "" {
		tokenType = defaultTokenType
	}

	now := m.now()
	t := token{
		value:     tr.AccessToken,
		tokenType: tokenType,
		expiresAt: now.Add(time.Duration(expiresIn)*time.Second - expiryMargin),
	}
	if analytics {
		// When the JWT carries an exp claim earlier than the advertised
		// lifetime, trust the claim.
		if exp, ok := jwtExpiry(tr.AccessToken); ok {
			if claimed := exp.Add(-expiryMargin); claimed.Before(t.expiresAt) {
				t.expiresAt = claimed
			}
		}
	}

	slog.Debug("token obtained",
		"analytics", analytics,
		"token_type", tokenType,
		"expires_in", expiresIn)
	return t, nil
}

// jwtExpiry extracts the exp claim from a JWT without verifying the
// signature. The token is otherwise opaque to this client.
func jwtExpiry(raw string) (time.Time, bool) {
	parser := jwt.NewParser()
	claims := jwt.MapClaims{}
	if _, _, err := parser.ParseUnverified(raw, claims); err != nil {
		return time.Time{}, false
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}, false
	}
	return exp.Time, true
}

// EndpointError reports a non-200 response from the token endpoint.
type EndpointError struct {
	Status int
	Body   string
}

func (e *EndpointError) Error() string {
	return fmt.Sprintf("token endpoint returned %d: %s", e.Status, e.Body)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
