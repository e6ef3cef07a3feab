package commands

import (
	"context"
	"fmt"
	"net/url"

	"github.com/spf13/cobra"

	"github.com/streamops/ivsctl/internal/api"
	"github.com/streamops/ivsctl/internal/output"
)

// NewChannelsCmd creates the channels command group.
func NewChannelsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "channels",
		Short: "Manage channels",
	}

	cmd.AddCommand(
		newChannelsListCmd(),
		newChannelsGetCmd(),
		newChannelsCreateCmd(),
		newChannelsUpdateCmd(),
		newChannelsDeleteCmd(),
	)

	return cmd
}

func newChannelsListCmd() *cobra.Command {
	var page, pagesize int
	var search string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List the channels owned by the authenticated account",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := app(cmd)
			if err != nil {
				return err
			}
			if pagesize == 0 {
				pagesize = a.Config.PageSize
			}
			if err := validatePageSize(pagesize); err != nil {
				return err
			}

			query := pageQuery(page, pagesize)
			if search != "" {
				query.Set("q", search)
			}
			resp, err := callAPI(a, cmd.Context(), func(ctx context.Context) (*api.Response, error) {
				return a.Client.Get(ctx, "/users/self/channels.json", query)
			})
			if err != nil {
				return err
			}
			return writeResponse(a, resp)
		},
	}

	cmd.Flags().IntVar(&page, "page", 1, "Page number")
	cmd.Flags().IntVar(&pagesize, "pagesize", 0, "Results per page (max 100)")
	cmd.Flags().StringVar(&search, "search", "", "Filter channels by title")

	return cmd
}

func newChannelsGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <channel-id>",
		Short: "Show a channel",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := app(cmd)
			if err != nil {
				return err
			}
			resp, err := callAPI(a, cmd.Context(), func(ctx context.Context) (*api.Response, error) {
				return a.Client.Get(ctx, fmt.Sprintf("/channels/%s.json", args[0]), nil)
			})
			if err != nil {
				return err
			}
			return writeResponse(a, resp)
		},
	}
}

func newChannelsCreateCmd() *cobra.Command {
	var title string

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a channel",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := app(cmd)
			if err != nil {
				return err
			}
			if title == "" {
				return output.ErrValidation("--title is required")
			}

			form := url.Values{"title": {title}}
			resp, err := callAPI(a, cmd.Context(), func(ctx context.Context) (*api.Response, error) {
				return a.Client.PostForm(ctx, "/users/self/channels.json", form)
			})
			if err != nil {
				return err
			}
			return writeResponse(a, resp, output.WithSummary("Channel created"))
		},
	}

	cmd.Flags().StringVar(&title, "title", "", "Channel title")

	return cmd
}

func newChannelsUpdateCmd() *cobra.Command {
	var title, description string

	cmd := &cobra.Command{
		Use:   "update <channel-id>",
		Short: "Update channel attributes",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := app(cmd)
			if err != nil {
				return err
			}

			form := url.Values{}
			if cmd.Flags().Changed("title") {
				form.Set("title", title)
			}
			if cmd.Flags().Changed("description") {
				form.Set("description", description)
			}
			if len(form) == 0 {
				return output.ErrValidation("at least one of --title or --description is required")
			}

			resp, err := callAPI(a, cmd.Context(), func(ctx context.Context) (*api.Response, error) {
				return a.Client.PutForm(ctx, fmt.Sprintf("/channels/%s.json", args[0]), form)
			})
			if err != nil {
				return err
			}
			return writeResponse(a, resp, output.WithSummary("Channel updated"))
		},
	}

	cmd.Flags().StringVar(&title, "title", "", "New channel title")
	cmd.Flags().StringVar(&description, "description", "", "New channel description")

	return cmd
}

func newChannelsDeleteCmd() *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:   "delete <channel-id>",
		Short: "Delete a channel",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := app(cmd)
			if err != nil {
				return err
			}
			if !yes {
				return output.ErrUsageHint("deletion requires confirmation", "Re-run with --yes to confirm")
			}

			resp, err := callAPI(a, cmd.Context(), func(ctx context.Context) (*api.Response, error) {
				return a.Client.Delete(ctx, fmt.Sprintf("/channels/%s.json", args[0]))
			})
			if err != nil {
				return err
			}
			return writeResponse(a, resp, output.WithSummary("Channel deleted"))
		},
	}

	cmd.Flags().BoolVar(&yes, "yes", false, "Skip the confirmation prompt")

	return cmd
}
