package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/streamops/ivsctl/internal/api"
	"github.com/streamops/ivsctl/internal/output"
)

// NewVideosCmd creates the videos command group.
func NewVideosCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "videos",
		Short: "Manage recorded videos",
	}

	cmd.AddCommand(
		newVideosListCmd(),
		newVideosGetCmd(),
		newVideosUpdateCmd(),
		newVideosDeleteCmd(),
		newVideosProtectCmd(),
	)

	return cmd
}

func newVideosListCmd() *cobra.Command {
	var page, pagesize int
	var publicOnly bool

	cmd := &cobra.Command{
		Use:   "list <channel-id>",
		Short: "List the videos of a channel",
		Args:  cobra.ExactArgs(1),
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
			if publicOnly {
				query.Set("filter[protect]", "public")
			} else {
				query.Set("filter[protect]", "public,private")
			}

			resp, err := callAPI(a, cmd.Context(), func(ctx context.Context) (*api.Response, error) {
				return a.Client.Get(ctx, fmt.Sprintf("/channels/%s/videos.json", args[0]), query)
			})
			if err != nil {
				return err
			}
			return writeResponse(a, resp)
		},
	}

	cmd.Flags().IntVar(&page, "page", 1, "Page number")
	cmd.Flags().IntVar(&pagesize, "pagesize", 0, "Results per page (max 100)")
	cmd.Flags().BoolVar(&publicOnly, "public-only", false, "Exclude private videos")

	return cmd
}

func newVideosGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <video-id>",
		Short: "Show a video",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := app(cmd)
			if err != nil {
				return err
			}
			resp, err := callAPI(a, cmd.Context(), func(ctx context.Context) (*api.Response, error) {
				return a.Client.Get(ctx, fmt.Sprintf("/videos/%s.json", args[0]), nil)
			})
			if err != nil {
				return err
			}
			return writeResponse(a, resp)
		},
	}
}

func newVideosUpdateCmd() *cobra.Command {
	var title, description string

	cmd := &cobra.Command{
		Use:   "update <video-id>",
		Short: "Update video attributes",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := app(cmd)
			if err != nil {
				return err
			}

			body := map[string]string{}
			if cmd.Flags().Changed("title") {
				body["title"] = title
			}
			if cmd.Flags().Changed("description") {
				body["description"] = description
			}
			if len(body) == 0 {
				return output.ErrValidation("at least one of --title or --description is required")
			}

			resp, err := callAPI(a, cmd.Context(), func(ctx context.Context) (*api.Response, error) {
				return a.Client.Put(ctx, fmt.Sprintf("/videos/%s.json", args[0]), body)
			})
			if err != nil {
				return err
			}
			return writeResponse(a, resp, output.WithSummary("Video updated"))
		},
	}

	cmd.Flags().StringVar(&title, "title", "", "New video title")
	cmd.Flags().StringVar(&description, "description", "", "New video description")

	return cmd
}

func newVideosDeleteCmd() *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:   "delete <video-id>",
		Short: "Delete a video",
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
				return a.Client.Delete(ctx, fmt.Sprintf("/videos/%s.json", args[0]))
			})
			if err != nil {
				return err
			}
			return writeResponse(a, resp, output.WithSummary("Video deleted"))
		},
	}

	cmd.Flags().BoolVar(&yes, "yes", false, "Skip the confirmation prompt")

	return cmd
}

func newVideosProtectCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "protect <video-id> <public|private>",
		Short: "Set video protection",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := app(cmd)
			if err != nil {
				return err
			}
			level := args[1]
			if level != "public" && level != "private" {
				return output.ErrValidation("protection must be public or private")
			}

			resp, err := callAPI(a, cmd.Context(), func(ctx context.Context) (*api.Response, error) {
				return a.Client.Put(ctx, fmt.Sprintf("/videos/%s.json", args[0]), map[string]string{"protect": level})
			})
			if err != nil {
				return err
			}
			return writeResponse(a, resp, output.WithSummary(fmt.Sprintf("Video set to %s", level)))
		},
	}
}
