package commands

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/streamops/ivsctl/internal/api"
	"github.com/streamops/ivsctl/internal/appctx"
	"github.com/streamops/ivsctl/internal/output"
)

// analyticsTimeLayout is the timestamp format the analytics API accepts.
const analyticsTimeLayout = "2006-01-02T15:04:05+00:00"

const analyticsPageLimit = 1000

var granularities = map[string]bool{
	"minute": true, "hour": true, "day": true, "month": true,
}

var viewDimensions = map[string]bool{
	"month": true, "day": true, "hour": true,
	"device": true, "view-source": true, "country": true, "region": true,
}

// NewAnalyticsCmd creates the analytics command group.
func NewAnalyticsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "analytics",
		Short: "Query viewing metrics",
		Long:  "Queries the analytics API. Analytics requests authenticate with a separate JWT obtained through the same client credentials.",
	}

	cmd.AddCommand(
		newAnalyticsViewsCmd(),
		newAnalyticsWatchTimeCmd(),
		newAnalyticsCurrentViewersCmd(),
		newAnalyticsViewersCmd(),
		newAnalyticsMonitorCmd(),
	)

	return cmd
}

func newAnalyticsViewsCmd() *cobra.Command {
	var contentType, contentID, dimension, from, to string

	cmd := &cobra.Command{
		Use:   "views",
		Short: "Total view counts",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := app(cmd)
			if err != nil {
				return err
			}
			if contentType != "live" && contentType != "recorded" {
				return output.ErrValidation("type must be live or recorded")
			}
			if dimension != "" && !viewDimensions[dimension] {
				return output.ErrValidation("dimension must be one of month, day, hour, device, view-source, country, region")
			}

			query, err := rangeQuery(from, to)
			if err != nil {
				return err
			}
			query.Set("_page", "1")
			query.Set("_limit", strconv.Itoa(analyticsPageLimit))
			if contentID != "" {
				query.Set("content_id", contentID)
			}

			path := fmt.Sprintf("/v1/total-views/%s/summary", contentType)
			if dimension != "" {
				path = fmt.Sprintf("/v1/total-views/%s/%s", contentType, dimension)
			}

			resp, err := callAnalytics(a, cmd.Context(), func(ctx context.Context) (*api.Response, error) {
				return a.Client.AnalyticsGet(ctx, path, query)
			})
			if err != nil {
				return err
			}
			return writeResponse(a, resp)
		},
	}

	cmd.Flags().StringVar(&contentType, "type", "live", "Content type (live or recorded)")
	cmd.Flags().StringVar(&contentID, "content-id", "", "Restrict to a channel or video ID")
	cmd.Flags().StringVar(&dimension, "dimension", "", "Break down by dimension instead of a summary")
	cmd.Flags().StringVar(&from, "from", "", "Range start (RFC 3339 or YYYY-MM-DD, default 30 days ago)")
	cmd.Flags().StringVar(&to, "to", "", "Range end (RFC 3339 or YYYY-MM-DD, default now)")

	return cmd
}

func newAnalyticsWatchTimeCmd() *cobra.Command {
	var contentType, contentID, granularity, from, to string

	cmd := &cobra.Command{
		Use:   "watch-time",
		Short: "Viewer consumption in seconds",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := app(cmd)
			if err != nil {
				return err
			}
			if contentType != "live" && contentType != "recorded" {
				return output.ErrValidation("type must be live or recorded")
			}
			if !granularities[granularity] {
				return output.ErrValidation("granularity must be one of minute, hour, day, month")
			}

			query, err := rangeQuery(from, to)
			if err != nil {
				return err
			}
			query.Set("granularity", granularity)
			query.Set("_page", "1")
			query.Set("_limit", strconv.Itoa(analyticsPageLimit))
			if contentID != "" {
				query.Set("content_id", contentID)
			}

			resp, err := callAnalytics(a, cmd.Context(), func(ctx context.Context) (*api.Response, error) {
				return a.Client.AnalyticsGet(ctx, fmt.Sprintf("/v1/viewer-seconds/%s", contentType), query)
			})
			if err != nil {
				return err
			}
			return writeResponse(a, resp)
		},
	}

	cmd.Flags().StringVar(&contentType, "type", "live", "Content type (live or recorded)")
	cmd.Flags().StringVar(&contentID, "content-id", "", "Restrict to a channel or video ID")
	cmd.Flags().StringVar(&granularity, "granularity", "day", "Bucket size (minute, hour, day, month)")
	cmd.Flags().StringVar(&from, "from", "", "Range start (RFC 3339 or YYYY-MM-DD, default 30 days ago)")
	cmd.Flags().StringVar(&to, "to", "", "Range end (RFC 3339 or YYYY-MM-DD, default now)")

	return cmd
}

func newAnalyticsCurrentViewersCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "current-viewers <channel-id>",
		Short: "Recent peak viewer numbers for a channel",
		Long:  "Reports per-minute peak viewer numbers for the last hour, the closest the analytics API offers to a live count.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := app(cmd)
			if err != nil {
				return err
			}
			resp, err := fetchCurrentViewers(a, cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return writeResponse(a, resp)
		},
	}
}

func newAnalyticsViewersCmd() *cobra.Command {
	var contentType, contentID, viewer, from, to string
	var page, limit int

	cmd := &cobra.Command{
		Use:   "viewers",
		Short: "List unique viewers",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := app(cmd)
			if err != nil {
				return err
			}
			if contentType != "" && contentType != "live" && contentType != "recorded" {
				return output.ErrValidation("type must be live or recorded")
			}

			query := url.Values{}
			query.Set("_page", strconv.Itoa(page))
			query.Set("_limit", strconv.Itoa(limit))
			if from != "" {
				t, err := parseRangeTime(from)
				if err != nil {
					return err
				}
				query.Set("date_time_from", t.UTC().Format(analyticsTimeLayout))
			}
			if to != "" {
				t, err := parseRangeTime(to)
				if err != nil {
					return err
				}
				query.Set("date_time_to", t.UTC().Format(analyticsTimeLayout))
			}
			if viewer != "" {
				query.Set("viewer_identifier", viewer)
			}
			if contentID != "" {
				query.Set("content_id", contentID)
			}

			path := "/v1/viewers"
			if contentType != "" {
				path = fmt.Sprintf("/v1/viewers/%s", contentType)
			}

			resp, err := callAnalytics(a, cmd.Context(), func(ctx context.Context) (*api.Response, error) {
				return a.Client.AnalyticsGet(ctx, path, query)
			})
			if err != nil {
				return err
			}
			return writeResponse(a, resp)
		},
	}

	cmd.Flags().StringVar(&contentType, "type", "", "Content type (live or recorded)")
	cmd.Flags().StringVar(&contentID, "content-id", "", "Restrict to a channel or video ID")
	cmd.Flags().StringVar(&viewer, "viewer", "", "Filter by viewer identifier")
	cmd.Flags().StringVar(&from, "from", "", "Range start (RFC 3339 or YYYY-MM-DD)")
	cmd.Flags().StringVar(&to, "to", "", "Range end (RFC 3339 or YYYY-MM-DD)")
	cmd.Flags().IntVar(&page, "page", 1, "Page number")
	cmd.Flags().IntVar(&limit, "limit", 100, "Results per page")

	return cmd
}

func newAnalyticsMonitorCmd() *cobra.Command {
	var interval time.Duration
	var count int

	cmd := &cobra.Command{
		Use:   "monitor <channel-id>",
		Short: "Poll viewer numbers on an interval",
		Long:  "Polls peak viewer numbers until interrupted. Each sample is written as its own envelope line.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := app(cmd)
			if err != nil {
				return err
			}
			if interval < time.Second {
				return output.ErrValidation("interval must be at least 1s")
			}

			ctx := cmd.Context()
			ticker := time.NewTicker(interval)
			defer ticker.Stop()

			for taken := 0; count == 0 || taken < count; {
				resp, err := fetchCurrentViewers(a, ctx, args[0])
				if err != nil {
					return err
				}
				if err := writeResponse(a, resp); err != nil {
					return err
				}
				taken++
				if count > 0 && taken >= count {
					break
				}

				select {
				case <-ctx.Done():
					return nil
				case <-ticker.C:
				}
			}
			return nil
		},
	}

	cmd.Flags().DurationVar(&interval, "interval", 10*time.Second, "Time between samples")
	cmd.Flags().IntVar(&count, "count", 0, "Number of samples to take (0 means until interrupted)")

	return cmd
}

// fetchCurrentViewers queries per-minute peak viewer numbers for the last
// hour of a channel.
func fetchCurrentViewers(a *appctx.App, ctx context.Context, channelID string) (*api.Response, error) {
	now := time.Now().UTC()
	query := url.Values{}
	query.Set("content_id", channelID)
	query.Set("granularity", "minute")
	query.Set("date_time_from", now.Add(-time.Hour).Format(analyticsTimeLayout))
	query.Set("date_time_to", now.Format(analyticsTimeLayout))
	query.Set("_page", "1")
	query.Set("_limit", strconv.Itoa(analyticsPageLimit))

	return callAnalytics(a, ctx, func(ctx context.Context) (*api.Response, error) {
		return a.Client.AnalyticsGet(ctx, "/v1/peak-viewer-numbers/live", query)
	})
}

// rangeQuery builds date_time_from/date_time_to, defaulting to the last 30
// days when either bound is omitted.
func rangeQuery(from, to string) (url.Values, error) {
	end := time.Now().UTC()
	if to != "" {
		t, err := parseRangeTime(to)
		if err != nil {
			return nil, err
		}
		end = t.UTC()
	}
	start := end.Add(-30 * 24 * time.Hour)
	if from != "" {
		t, err := parseRangeTime(from)
		if err != nil {
			return nil, err
		}
		start = t.UTC()
	}
	if !start.Before(end) {
		return nil, output.ErrValidation("range start must be before range end")
	}

	q := url.Values{}
	q.Set("date_time_from", start.Format(analyticsTimeLayout))
	q.Set("date_time_to", end.Format(analyticsTimeLayout))
	return q, nil
}

func parseRangeTime(s string) (time.Time, error) {
	for _, layout := range []string{time.RFC3339, "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, output.ErrValidation(fmt.Sprintf("invalid time %q, use RFC 3339 or YYYY-MM-DD", s))
}
