// Package commands implements the ivsctl subcommands.
package commands

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/streamops/ivsctl/internal/api"
	"github.com/streamops/ivsctl/internal/appctx"
	"github.com/streamops/ivsctl/internal/output"
)

const maxPageSize = 100

// app extracts the App from the command context.
func app(cmd *cobra.Command) (*appctx.App, error) {
	a := appctx.FromContext(cmd.Context())
	if a == nil {
		return nil, output.ErrUsage("application not initialized")
	}
	return a, nil
}

type requestFunc func(ctx context.Context) (*api.Response, error)

// callAPI runs fn, and on an auth failure refreshes the standard token
// once and retries. A second auth failure is returned as-is.
func callAPI(a *appctx.App, ctx context.Context, fn requestFunc) (*api.Response, error) {
	resp, err := fn(ctx)
	if err == nil {
		return resp, nil
	}
	var apiErr *output.Error
	if errors.As(err, &apiErr) && apiErr.Code == output.CodeAuth && a.Auth.Refresh(ctx) {
		return fn(ctx)
	}
	return nil, err
}

// callAnalytics is callAPI for the analytics host, refreshing the JWT
// rather than the standard token.
func callAnalytics(a *appctx.App, ctx context.Context, fn requestFunc) (*api.Response, error) {
	resp, err := fn(ctx)
	if err == nil {
		return resp, nil
	}
	var apiErr *output.Error
	if errors.As(err, &apiErr) && apiErr.Code == output.CodeAuth && a.Auth.RefreshJWT(ctx) {
		return fn(ctx)
	}
	return nil, err
}

// writeResponse decodes the API payload and writes it through the
// output envelope. An empty body (204 deletes) emits a bare OK.
func writeResponse(a *appctx.App, resp *api.Response, opts ...output.ResponseOption) error {
	if len(resp.Data) == 0 {
		return a.OK(nil, opts...)
	}
	var data any
	if err := resp.UnmarshalData(&data); err != nil {
		return output.ErrAPI(resp.StatusCode, "Invalid JSON in response body")
	}
	return a.OK(data, opts...)
}

func validatePageSize(pagesize int) error {
	if pagesize < 1 || pagesize > maxPageSize {
		return output.ErrValidation(fmt.Sprintf("pagesize must be between 1 and %d, got %d", maxPageSize, pagesize))
	}
	return nil
}

func pageQuery(page, pagesize int) url.Values {
	q := url.Values{}
	q.Set("p", strconv.Itoa(page))
	q.Set("pagesize", strconv.Itoa(pagesize))
	return q
}
