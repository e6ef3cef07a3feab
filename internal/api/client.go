// Package api provides the HTTP client for the IBM Video Streaming API.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/rand"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/streamops/ivsctl/internal/config"
	"github.com/streamops/ivsctl/internal/output"
	"github.com/streamops/ivsctl/internal/version"
)

const (
	maxAttempts = 3
	baseDelay   = 1 * time.Second
	maxJitter   = 100 * time.Millisecond
)

// HeaderSource supplies authentication headers per destination API. An empty
// map means no token could be obtained.
type HeaderSource interface {
	AuthHeaders(ctx context.Context) map[string]string
	AnalyticsAuthHeaders(ctx context.Context) map[string]string
}

// Client is an HTTP client for the standard and analytics APIs.
type Client struct {
	httpClient *http.Client
	auth       HeaderSource
	cfg        *config.Config
	verbose    bool
}

// Response wraps an API response.
type Response struct {
	Data       json.RawMessage
	StatusCode int
	Headers    http.Header
}

// UnmarshalData unmarshals the response data into the given value.
func (r *Response) UnmarshalData(v any) error {
	if len(r.Data) == 0 {
		return nil
	}
	return json.Unmarshal(r.Data, v)
}

// NewClient creates a new API client.
func NewClient(cfg *config.Config, auth HeaderSource) *Client {
	return &Client{
		httpClient: &http.Client{
			Timeout: cfg.Timeout(),
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		auth: auth,
		cfg:  cfg,
	}
}

// SetVerbose enables verbose output for debugging.
func (c *Client) SetVerbose(v bool) {
	c.verbose = v
}

// Get performs a GET request against the standard API.
func (c *Client) Get(ctx context.Context, path string, query url.Values) (*Response, error) {
	return c.do(ctx, http.MethodGet, c.buildURL(path, query), nil, "", false)
}

// Post performs a POST request with a JSON body against the standard API.
func (c *Client) Post(ctx context.Context, path string, body any) (*Response, error) {
	data, err := marshalBody(body)
	if err != nil {
		return nil, err
	}
	return c.do(ctx, http.MethodPost, c.buildURL(path, nil), data, "", false)
}

// Put performs a PUT request with a JSON body against the standard API.
func (c *Client) Put(ctx context.Context, path string, body any) (*Response, error) {
	data, err := marshalBody(body)
	if err != nil {
		return nil, err
	}
	return c.do(ctx, http.MethodPut, c.buildURL(path, nil), data, "", false)
}

// Patch performs a PATCH request with a JSON body against the standard API.
func (c *Client) Patch(ctx context.Context, path string, body any) (*Response, error) {
	data, err := marshalBody(body)
	if err != nil {
		return nil, err
	}
	return c.do(ctx, http.MethodPatch, c.buildURL(path, nil), data, "", false)
}

// Delete performs a DELETE request against the standard API.
func (c *Client) Delete(ctx context.Context, path string) (*Response, error) {
	return c.do(ctx, http.MethodDelete, c.buildURL(path, nil), nil, "", false)
}

// PostForm performs a POST with a form-encoded body against the standard API.
func (c *Client) PostForm(ctx context.Context, path string, form url.Values) (*Response, error) {
	return c.do(ctx, http.MethodPost, c.buildURL(path, nil), []byte(form.Encode()),
		"application/x-www-form-urlencoded", false)
}

// PutForm performs a PUT with a form-encoded body against the standard API.
func (c *Client) PutForm(ctx context.Context, path string, form url.Values) (*Response, error) {
	return c.do(ctx, http.MethodPut, c.buildURL(path, nil), []byte(form.Encode()),
		"application/x-www-form-urlencoded", false)
}

// Upload performs a multipart POST. The JSON Content-Type supplied by the
// token manager is replaced so the multipart writer controls the boundary.
func (c *Client) Upload(ctx context.Context, path string, fields map[string]string, fileField, fileName string, file io.Reader) (*Response, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for k, v := range fields {
		if err := w.WriteField(k, v); err != nil {
			return nil, err
		}
	}
	part, err := w.CreateFormFile(fileField, fileName)
	if err != nil {
		return nil, err
	}
	if _, err := io.Copy(part, file); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return c.do(ctx, http.MethodPost, c.buildURL(path, nil), buf.Bytes(), w.FormDataContentType(), false)
}

// AnalyticsGet performs a GET request against the analytics API.
func (c *Client) AnalyticsGet(ctx context.Context, path string, query url.Values) (*Response, error) {
	return c.do(ctx, http.MethodGet, c.buildAnalyticsURL(path, query), nil, "", true)
}

// AnalyticsPost performs a POST request with a JSON body against the
// analytics API.
func (c *Client) AnalyticsPost(ctx context.Context, path string, body any) (*Response, error) {
	data, err := marshalBody(body)
	if err != nil {
		return nil, err
	}
	return c.do(ctx, http.MethodPost, c.buildAnalyticsURL(path, nil), data, "", true)
}

// do runs the request with bounded retry. Responses in {429, 500, 502, 503,
// 504} and transport failures are retried with backoff; everything else
// surfaces immediately as a typed error. 401 is never retried here: a fresh
// token might still fail, and the caller decides whether to refresh.
func (c *Client) do(ctx context.Context, method, fullURL string, body []byte, contentType string, analytics bool) (*Response, error) {
	var lastErr error

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		resp, err := c.once(ctx, method, fullURL, body, contentType, analytics)
		if err == nil {
			return resp, nil
		}

		apiErr := output.AsError(err)
		if !apiErr.Retryable || attempt == maxAttempts {
			return nil, err
		}
		lastErr = err

		delay := backoffDelay(attempt)
		if c.verbose {
			fmt.Fprintf(os.Stderr, "[ivsctl] Retry %d/%d in %v: %s\n", attempt, maxAttempts-1, delay, err)
		}
		select {
		case <-ctx.Done():
			return nil, classifyTransportError(ctx.Err())
		case <-time.After(delay):
		}
	}

	return nil, lastErr
}

func (c *Client) once(ctx context.Context, method, fullURL string, body []byte, contentType string, analytics bool) (*Response, error) {
	var headers map[string]string
	if analytics {
		headers = c.auth.AnalyticsAuthHeaders(ctx)
	} else {
		headers = c.auth.AuthHeaders(ctx)
	}
	if len(headers) == 0 {
		return nil, output.ErrAuth("Not authenticated")
	}

	var bodyReader io.Reader
	if body != nil {
		bodyReader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, fullURL, bodyReader)
	if err != nil {
		return nil, err
	}

	for k, v := range headers {
		req.Header.Set(k, v)
	}
	req.Header.Set("User-Agent", version.UserAgent())
	if contentType != "" {
		// Multipart and form bodies replace the default JSON Content-Type.
		req.Header.Set("Content-Type", contentType)
	}

	if c.verbose {
		fmt.Fprintf(os.Stderr, "[ivsctl] %s %s\n", method, fullURL)
	}
	slog.Debug("api request", "method", method, "url", fullURL, "analytics", analytics)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, classifyTransportError(err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, output.ErrNetwork(err)
	}

	slog.Debug("api response", "status", resp.StatusCode, "bytes", len(respBody))
	return classifyResponse(resp, respBody)
}

// classifyResponse translates the HTTP status into the error taxonomy.
func classifyResponse(resp *http.Response, body []byte) (*Response, error) {
	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		if len(body) > 0 && !json.Valid(body) {
			return nil, output.ErrAPI(resp.StatusCode, "Invalid JSON in response body")
		}
		return &Response{
			Data:       body,
			StatusCode: resp.StatusCode,
			Headers:    resp.Header,
		}, nil

	case resp.StatusCode == http.StatusUnauthorized:
		return nil, output.ErrAuth("Invalid or expired credentials")

	case resp.StatusCode == http.StatusForbidden:
		return nil, output.ErrForbidden("Insufficient permissions")

	case resp.StatusCode == http.StatusNotFound:
		return nil, output.ErrNotFound("Resource", resp.Request.URL.Path)

	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, output.ErrRateLimit(parseRetryAfter(resp.Header.Get("Retry-After")))

	case resp.StatusCode >= 500:
		return nil, output.ErrServer(resp.StatusCode)

	default:
		msg := extractErrorMessage(body)
		if msg == "" {
			msg = fmt.Sprintf("Request failed (HTTP %d)", resp.StatusCode)
		}
		e := output.ErrAPI(resp.StatusCode, msg)
		e.Hint = truncate(string(body), 500)
		return nil, e
	}
}

// extractErrorMessage pulls a message out of known error body shapes, in
// priority order: error.message, error (string), message, error_description.
func extractErrorMessage(body []byte) string {
	var payload struct {
		Error            json.RawMessage `json:"error"`
		Message          string          `json:"message"`
		ErrorDescription string          `json:"error_description"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return ""
	}

	if len(payload.Error) > 0 {
		var nested struct {
			Message string `json:"message"`
		}
		if err := json.Unmarshal(payload.Error, &nested); err == nil && nested.Message != "" {
			return nested.Message
		}
		var plain string
		if err := json.Unmarshal(payload.Error, &plain); err == nil && plain != "" {
			return plain
		}
	}
	if payload.Message != "" {
		return payload.Message
	}
	return payload.ErrorDescription
}

func classifyTransportError(err error) error {
	var urlErr *url.Error
	if errors.As(err, &urlErr) && urlErr.Timeout() {
		return output.ErrTimeout(err)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return output.ErrTimeout(err)
	}
	return output.ErrNetwork(err)
}

func (c *Client) buildURL(path string, query url.Values) string {
	return joinURL(config.NormalizeBaseURL(c.cfg.BaseURL), path, query)
}

func (c *Client) buildAnalyticsURL(path string, query url.Values) string {
	return joinURL(config.NormalizeBaseURL(c.cfg.AnalyticsBaseURL), path, query)
}

func joinURL(base, path string, query url.Values) string {
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	u := base + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	return u
}

func marshalBody(body any) ([]byte, error) {
	if body == nil {
		return nil, nil
	}
	data, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal body: %w", err)
	}
	return data, nil
}

func backoffDelay(attempt int) time.Duration {
	// Exponential backoff: base * 2^(attempt-1), plus jitter
	delay := baseDelay * time.Duration(1<<(attempt-1))
	jitter := time.Duration(rand.Int63n(int64(maxJitter))) //nolint:gosec // G404: Jitter doesn't need crypto rand
	return delay + jitter
}

// parseRetryAfter parses the Retry-After header value in seconds.
func parseRetryAfter(header string) int {
	if header == "" {
		return 0
	}
	if seconds, err := strconv.Atoi(header); err == nil {
		return seconds
	}
	return 0
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
