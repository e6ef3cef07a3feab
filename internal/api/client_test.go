package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/streamops/ivsctl/internal/config"
	"github.com/streamops/ivsctl/internal/output"
)

// stubHeaders is a HeaderSource with fixed headers per destination.
type stubHeaders struct {
	standard  map[string]string
	analytics map[string]string
}

func (s *stubHeaders) AuthHeaders(ctx context.Context) map[string]string {
	return s.standard
}

func (s *stubHeaders) AnalyticsAuthHeaders(ctx context.Context) map[string]string {
	return s.analytics
}

func authedHeaders() *stubHeaders {
	return &stubHeaders{
		standard: map[string]string{
			"Authorization": "Bearer tok123",
			"Content-Type":  "application/json",
			"Accept":        "application/json",
		},
		analytics: map[string]string{
			"Authorization": "jwt456",
			"Content-Type":  "application/json",
			"Accept":        "application/json",
		},
	}
}

func newTestClient(srv *httptest.Server, auth HeaderSource) *Client {
	cfg := config.Default()
	cfg.BaseURL = srv.URL
	cfg.AnalyticsBaseURL = srv.URL
	return NewClient(cfg, auth)
}

func TestGetSendsAuthHeaders(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer tok123", r.Header.Get("Authorization"))
		assert.Equal(t, "application/json", r.Header.Get("Accept"))
		assert.Contains(t, r.Header.Get("User-Agent"), "ivsctl/")
		assert.Equal(t, "/channels/ch1.json", r.URL.Path)
		_, _ = w.Write([]byte(`{"channel":{"id":"ch1"}}`))
	}))
	defer srv.Close()

	c := newTestClient(srv, authedHeaders())
	resp, err := c.Get(context.Background(), "/channels/ch1.json", nil)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var payload struct {
		Channel struct {
			ID string `json:"id"`
		} `json:"channel"`
	}
	require.NoError(t, resp.UnmarshalData(&payload))
	assert.Equal(t, "ch1", payload.Channel.ID)
}

func TestAnalyticsGetUsesBareJWT(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "jwt456", r.Header.Get("Authorization"))
		_, _ = w.Write([]byte(`{"data":[]}`))
	}))
	defer srv.Close()

	c := newTestClient(srv, authedHeaders())
	_, err := c.AnalyticsGet(context.Background(), "/v1/total-views/live/summary", nil)
	require.NoError(t, err)
}

func TestEmptyHeadersShortCircuit(t *testing.T) {
	var requests atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
	}))
	defer srv.Close()

	c := newTestClient(srv, &stubHeaders{standard: map[string]string{}, analytics: map[string]string{}})

	_, err := c.Get(context.Background(), "/channels.json", nil)
	apiErr := output.AsError(err)
	assert.Equal(t, output.CodeAuth, apiErr.Code)

	// No network call happens when no token is obtainable.
	assert.Equal(t, int64(0), requests.Load())
}

func TestStatusMapping(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		body     string
		headers  map[string]string
		wantCode string
	}{
		{name: "unauthorized", status: 401, wantCode: output.CodeAuth},
		{name: "forbidden", status: 403, wantCode: output.CodeForbidden},
		{name: "not found", status: 404, wantCode: output.CodeNotFound},
		{name: "bad request", status: 400, body: `{"message":"bad input"}`, wantCode: output.CodeAPI},
		{name: "conflict", status: 409, wantCode: output.CodeAPI},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				for k, v := range tt.headers {
					w.Header().Set(k, v)
				}
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			c := newTestClient(srv, authedHeaders())
			_, err := c.Get(context.Background(), "/test.json", nil)
			require.Error(t, err)
			assert.Equal(t, tt.wantCode, output.AsError(err).Code)
		})
	}
}

func TestRateLimitParsesRetryAfter(t *testing.T) {
	var requests atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		w.Header().Set("Retry-After", "17")
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	c := newTestClient(srv, authedHeaders())
	_, err := c.Get(context.Background(), "/test.json", nil)
	require.Error(t, err)

	apiErr := output.AsError(err)
	assert.Equal(t, output.CodeRateLimit, apiErr.Code)
	assert.Equal(t, 17, apiErr.RetryAfter)
	assert.True(t, apiErr.Retryable)

	// Retryable means all attempts were used.
	assert.Equal(t, int64(maxAttempts), requests.Load())
}

func TestServerErrorRetriedThenSucceeds(t *testing.T) {
	var requests atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if requests.Add(1) < 2 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	c := newTestClient(srv, authedHeaders())
	resp, err := c.Get(context.Background(), "/test.json", nil)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, int64(2), requests.Load())
}

func TestNotImplementedNotRetried(t *testing.T) {
	var requests atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		w.WriteHeader(http.StatusNotImplemented)
	}))
	defer srv.Close()

	c := newTestClient(srv, authedHeaders())
	_, err := c.Get(context.Background(), "/test.json", nil)
	require.Error(t, err)

	apiErr := output.AsError(err)
	assert.Equal(t, output.CodeServer, apiErr.Code)
	assert.False(t, apiErr.Retryable)
	assert.Equal(t, int64(1), requests.Load())
}

func TestSlowResponseClassifiedAsTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(500 * time.Millisecond)
	}))
	defer srv.Close()

	c := newTestClient(srv, authedHeaders())
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	_, err := c.Get(ctx, "/test.json", nil)
	require.Error(t, err)
	assert.Equal(t, output.CodeTimeout, output.AsError(err).Code)
}

func TestConnectionFailureClassifiedAsNetwork(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close()

	c := newTestClient(srv, authedHeaders())
	_, err := c.Get(context.Background(), "/test.json", nil)
	require.Error(t, err)

	apiErr := output.AsError(err)
	assert.Equal(t, output.CodeNetwork, apiErr.Code)
	assert.True(t, apiErr.Retryable)
}

func TestCancelDuringBackoffReturnsTypedError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := newTestClient(srv, authedHeaders())
	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(100*time.Millisecond, cancel)

	_, err := c.Get(ctx, "/test.json", nil)
	require.Error(t, err)
	assert.Equal(t, output.CodeNetwork, output.AsError(err).Code)
}

func TestUnauthorizedNotRetried(t *testing.T) {
	var requests atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	c := newTestClient(srv, authedHeaders())
	_, err := c.Get(context.Background(), "/test.json", nil)
	require.Error(t, err)
	assert.Equal(t, output.CodeAuth, output.AsError(err).Code)
	assert.Equal(t, int64(1), requests.Load())
}

func TestMalformedSuccessBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"broken":`))
	}))
	defer srv.Close()

	c := newTestClient(srv, authedHeaders())
	_, err := c.Get(context.Background(), "/test.json", nil)
	require.Error(t, err)

	apiErr := output.AsError(err)
	assert.Equal(t, output.CodeAPI, apiErr.Code)
	assert.Contains(t, apiErr.Message, "Invalid JSON")
}

func TestEmptySuccessBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	c := newTestClient(srv, authedHeaders())
	resp, err := c.Delete(context.Background(), "/videos/v1.json")
	require.NoError(t, err)
	assert.Empty(t, resp.Data)
}

func TestPostSendsJSONBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "howto", body["title"])
		_, _ = w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	c := newTestClient(srv, authedHeaders())
	_, err := c.Post(context.Background(), "/videos.json", map[string]string{"title": "howto"})
	require.NoError(t, err)
}

func TestPostFormOverridesContentType(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "application/x-www-form-urlencoded", r.Header.Get("Content-Type"))
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "My Channel", r.PostForm.Get("title"))
		_, _ = w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	c := newTestClient(srv, authedHeaders())
	_, err := c.PostForm(context.Background(), "/users/self/channels.json",
		url.Values{"title": {"My Channel"}})
	require.NoError(t, err)
}

func TestUploadSetsMultipartBoundary(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ct := r.Header.Get("Content-Type")
		assert.True(t, strings.HasPrefix(ct, "multipart/form-data; boundary="), "Content-Type: %s", ct)

		require.NoError(t, r.ParseMultipartForm(1<<20))
		assert.Equal(t, "clip", r.MultipartForm.Value["title"][0])
		file, header, err := r.FormFile("file")
		require.NoError(t, err)
		defer file.Close()
		assert.Equal(t, "clip.mp4", header.Filename)
		_, _ = w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	c := newTestClient(srv, authedHeaders())
	_, err := c.Upload(context.Background(), "/channels/ch1/videos.json",
		map[string]string{"title": "clip"}, "file", "clip.mp4", strings.NewReader("fake video bytes"))
	require.NoError(t, err)
}

func TestErrorMessageExtraction(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{name: "nested error message", body: `{"error":{"message":"nested"},"message":"outer"}`, want: "nested"},
		{name: "error as string", body: `{"error":"plain","message":"outer"}`, want: "plain"},
		{name: "message", body: `{"message":"outer","error_description":"desc"}`, want: "outer"},
		{name: "error description", body: `{"error_description":"desc"}`, want: "desc"},
		{name: "unknown shape", body: `{"other":"x"}`, want: ""},
		{name: "not json", body: `oops`, want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, extractErrorMessage([]byte(tt.body)))
		})
	}
}

func TestParseRetryAfter(t *testing.T) {
	assert.Equal(t, 17, parseRetryAfter("17"))
	assert.Equal(t, 0, parseRetryAfter(""))
	assert.Equal(t, 0, parseRetryAfter("Wed, 21 Oct 2026 07:28:00 GMT"))
}

func TestJoinURL(t *testing.T) {
	q := url.Values{"p": {"2"}}
	assert.Equal(t, "https://api.example.com/channels.json?p=2",
		joinURL("https://api.example.com", "/channels.json", q))
	assert.Equal(t, "https://api.example.com/channels.json",
		joinURL("https://api.example.com", "channels.json", nil))
}

func TestBackoffDelayGrows(t *testing.T) {
	for attempt := 1; attempt <= 3; attempt++ {
		d := backoffDelay(attempt)
		base := baseDelay * time.Duration(1<<(attempt-1))
		assert.GreaterOrEqual(t, d, base)
		assert.Less(t, d, base+maxJitter)
	}
}
