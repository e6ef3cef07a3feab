package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"github.com/itchyny/gojq"
	"github.com/spf13/cobra"

	"github.com/streamops/ivsctl/internal/api"
	"github.com/streamops/ivsctl/internal/appctx"
	"github.com/streamops/ivsctl/internal/output"
)

// NewAPICmd creates the api command for raw API access.
func NewAPICmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "api <verb> <path>",
		Short: "Raw API access",
		Long:  "Make raw requests to any IBM Video Streaming endpoint. Useful for operations not covered by dedicated commands.",
	}

	cmd.AddCommand(
		newAPIGetCmd(),
		newAPIPostCmd(),
		newAPIPutCmd(),
		newAPIDeleteCmd(),
	)

	return cmd
}

func newAPIGetCmd() *cobra.Command {
	var analytics bool
	var jqExpr string

	cmd := &cobra.Command{
		Use:   "get <path>",
		Short: "GET request to the API",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := app(cmd)
			if err != nil {
				return err
			}
			path, query, err := parsePath(args[0])
			if err != nil {
				return err
			}

			var resp *api.Response
			if analytics {
				resp, err = callAnalytics(a, cmd.Context(), func(ctx context.Context) (*api.Response, error) {
					return a.Client.AnalyticsGet(ctx, path, query)
				})
			} else {
				resp, err = callAPI(a, cmd.Context(), func(ctx context.Context) (*api.Response, error) {
					return a.Client.Get(ctx, path, query)
				})
			}
			if err != nil {
				return err
			}
			return writeRaw(a, resp, jqExpr)
		},
	}

	cmd.Flags().BoolVar(&analytics, "analytics", false, "Send the request to the analytics API")
	cmd.Flags().StringVar(&jqExpr, "jq", "", "Filter the response through a jq expression")

	return cmd
}

func newAPIPostCmd() *cobra.Command {
	var data, jqExpr string

	cmd := &cobra.Command{
		Use:   "post <path>",
		Short: "POST request to the API",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := app(cmd)
			if err != nil {
				return err
			}
			body, err := parseBody(data)
			if err != nil {
				return err
			}
			path, _, err := parsePath(args[0])
			if err != nil {
				return err
			}

			resp, err := callAPI(a, cmd.Context(), func(ctx context.Context) (*api.Response, error) {
				return a.Client.Post(ctx, path, body)
			})
			if err != nil {
				return err
			}
			return writeRaw(a, resp, jqExpr)
		},
	}

	cmd.Flags().StringVarP(&data, "data", "d", "", "JSON request body (required)")
	cmd.Flags().StringVar(&jqExpr, "jq", "", "Filter the response through a jq expression")
	_ = cmd.MarkFlagRequired("data") // Error only if flag doesn't exist

	return cmd
}

func newAPIPutCmd() *cobra.Command {
	var data, jqExpr string

	cmd := &cobra.Command{
		Use:   "put <path>",
		Short: "PUT request to the API",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := app(cmd)
			if err != nil {
				return err
			}
			body, err := parseBody(data)
			if err != nil {
				return err
			}
			path, _, err := parsePath(args[0])
			if err != nil {
				return err
			}

			resp, err := callAPI(a, cmd.Context(), func(ctx context.Context) (*api.Response, error) {
				return a.Client.Put(ctx, path, body)
			})
			if err != nil {
				return err
			}
			return writeRaw(a, resp, jqExpr)
		},
	}

	cmd.Flags().StringVarP(&data, "data", "d", "", "JSON request body (required)")
	cmd.Flags().StringVar(&jqExpr, "jq", "", "Filter the response through a jq expression")
	_ = cmd.MarkFlagRequired("data") // Error only if flag doesn't exist

	return cmd
}

func newAPIDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <path>",
		Short: "DELETE request to the API",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := app(cmd)
			if err != nil {
				return err
			}
			path, _, err := parsePath(args[0])
			if err != nil {
				return err
			}

			resp, err := callAPI(a, cmd.Context(), func(ctx context.Context) (*api.Response, error) {
				return a.Client.Delete(ctx, path)
			})
			if err != nil {
				return err
			}
			return writeResponse(a, resp, output.WithSummary(fmt.Sprintf("DELETE %s", path)))
		},
	}
}

// parsePath normalizes the path argument, splitting off any query string
// and ensuring a leading slash.
func parsePath(input string) (string, url.Values, error) {
	path := input
	var query url.Values
	if i := strings.IndexByte(input, '?'); i >= 0 {
		path = input[:i]
		q, err := url.ParseQuery(input[i+1:])
		if err != nil {
			return "", nil, output.ErrUsage("invalid query string")
		}
		query = q
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return path, query, nil
}

func parseBody(data string) (any, error) {
	if data == "" {
		return nil, output.ErrUsage("--data is required")
	}
	var body any
	if err := json.Unmarshal([]byte(data), &body); err != nil {
		return nil, output.ErrUsageHint("Invalid JSON data", fmt.Sprintf("JSON parse error: %v", err))
	}
	return body, nil
}

// writeRaw writes the response payload, optionally filtered through a jq
// expression. Multiple jq outputs are collected into an array.
func writeRaw(a *appctx.App, resp *api.Response, jqExpr string) error {
	if jqExpr == "" {
		return writeResponse(a, resp)
	}

	var data any
	if len(resp.Data) > 0 {
		if err := resp.UnmarshalData(&data); err != nil {
			return output.ErrAPI(resp.StatusCode, "Invalid JSON in response body")
		}
	}

	query, err := gojq.Parse(jqExpr)
	if err != nil {
		return output.ErrUsageHint("Invalid jq expression", err.Error())
	}

	var results []any
	iter := query.Run(data)
	for {
		v, ok := iter.Next()
		if !ok {
			break
		}
		if jqErr, isErr := v.(error); isErr {
			return output.ErrUsageHint("jq evaluation failed", jqErr.Error())
		}
		results = append(results, v)
	}

	if len(results) == 1 {
		return a.OK(results[0])
	}
	return a.OK(results)
}
