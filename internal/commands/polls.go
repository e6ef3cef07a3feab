package commands

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/streamops/ivsctl/internal/api"
	"github.com/streamops/ivsctl/internal/output"
)

// NewPollsCmd creates the polls command group.
func NewPollsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "polls",
		Short: "Manage channel polls",
	}

	cmd.AddCommand(
		newPollsListCmd(),
		newPollsGetCmd(),
		newPollsCreateCmd(),
		newPollsUpdateCmd(),
		newPollsCloseCmd(),
		newPollsDeleteCmd(),
	)

	return cmd
}

func newPollsListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list <channel-id>",
		Short: "List the polls of a channel",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := app(cmd)
			if err != nil {
				return err
			}
			resp, err := callAPI(a, cmd.Context(), func(ctx context.Context) (*api.Response, error) {
				return a.Client.Get(ctx, fmt.Sprintf("/channels/%s/polls.json", args[0]), nil)
			})
			if err != nil {
				return err
			}
			return writeResponse(a, resp)
		},
	}
}

func newPollsGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <channel-id> <poll-id>",
		Short: "Show a poll",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := app(cmd)
			if err != nil {
				return err
			}
			resp, err := callAPI(a, cmd.Context(), func(ctx context.Context) (*api.Response, error) {
				return a.Client.Get(ctx, fmt.Sprintf("/channels/%s/polls/%s.json", args[0], args[1]), nil)
			})
			if err != nil {
				return err
			}
			return writeResponse(a, resp)
		},
	}
}

func newPollsCreateCmd() *cobra.Command {
	var question string
	var options []string
	var duration int

	cmd := &cobra.Command{
		Use:   "create <channel-id>",
		Short: "Create a poll",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := app(cmd)
			if err != nil {
				return err
			}
			if err := validatePollQuestion(question); err != nil {
				return err
			}
			if err := validatePollOptions(options); err != nil {
				return err
			}

			opts := make([]map[string]string, 0, len(options))
			for _, o := range options {
				opts = append(opts, map[string]string{"text": o})
			}
			body := map[string]any{
				"question": question,
				"options":  opts,
			}
			if duration > 0 {
				body["duration"] = duration
			}

			resp, err := callAPI(a, cmd.Context(), func(ctx context.Context) (*api.Response, error) {
				return a.Client.Post(ctx, fmt.Sprintf("/channels/%s/polls.json", args[0]), body)
			})
			if err != nil {
				return err
			}
			return writeResponse(a, resp, output.WithSummary("Poll created"))
		},
	}

	cmd.Flags().StringVar(&question, "question", "", "Poll question")
	cmd.Flags().StringArrayVar(&options, "option", nil, "Poll option (repeat for each, 2 to 10)")
	cmd.Flags().IntVar(&duration, "duration", 0, "Poll duration in seconds")

	return cmd
}

func newPollsUpdateCmd() *cobra.Command {
	var question, status string

	cmd := &cobra.Command{
		Use:   "update <channel-id> <poll-id>",
		Short: "Update a poll",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := app(cmd)
			if err != nil {
				return err
			}

			body := map[string]any{}
			if cmd.Flags().Changed("question") {
				if err := validatePollQuestion(question); err != nil {
					return err
				}
				body["question"] = question
			}
			if cmd.Flags().Changed("status") {
				if status != "active" && status != "closed" {
					return output.ErrValidation("status must be active or closed")
				}
				body["status"] = status
			}
			if len(body) == 0 {
				return output.ErrValidation("at least one of --question or --status is required")
			}

			resp, err := callAPI(a, cmd.Context(), func(ctx context.Context) (*api.Response, error) {
				return a.Client.Put(ctx, fmt.Sprintf("/channels/%s/polls/%s.json", args[0], args[1]), body)
			})
			if err != nil {
				return err
			}
			return writeResponse(a, resp, output.WithSummary("Poll updated"))
		},
	}

	cmd.Flags().StringVar(&question, "question", "", "New poll question")
	cmd.Flags().StringVar(&status, "status", "", "New poll status (active or closed)")

	return cmd
}

func newPollsCloseCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "close <channel-id> <poll-id>",
		Short: "Close an active poll",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := app(cmd)
			if err != nil {
				return err
			}
			body := map[string]any{"status": "closed"}
			resp, err := callAPI(a, cmd.Context(), func(ctx context.Context) (*api.Response, error) {
				return a.Client.Put(ctx, fmt.Sprintf("/channels/%s/polls/%s.json", args[0], args[1]), body)
			})
			if err != nil {
				return err
			}
			return writeResponse(a, resp, output.WithSummary("Poll closed"))
		},
	}
}

func newPollsDeleteCmd() *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:   "delete <channel-id> <poll-id>",
		Short: "Delete a poll",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := app(cmd)
			if err != nil {
				return err
			}
			if !yes {
				return output.ErrUsageHint("deletion requires confirmation", "Re-run with --yes to confirm")
			}
			resp, err := callAPI(a, cmd.Context(), func(ctx context.Context) (*api.Response, error) {
				return a.Client.Delete(ctx, fmt.Sprintf("/channels/%s/polls/%s.json", args[0], args[1]))
			})
			if err != nil {
				return err
			}
			return writeResponse(a, resp, output.WithSummary("Poll deleted"))
		},
	}

	cmd.Flags().BoolVar(&yes, "yes", false, "Skip the confirmation prompt")

	return cmd
}

func validatePollQuestion(question string) error {
	q := strings.TrimSpace(question)
	if q == "" {
		return output.ErrValidation("poll question cannot be empty")
	}
	if len(q) < 5 {
		return output.ErrValidation("poll question must be at least 5 characters")
	}
	if len(q) > 500 {
		return output.ErrValidation("poll question must be less than 500 characters")
	}
	return nil
}

func validatePollOptions(options []string) error {
	if len(options) < 2 {
		return output.ErrValidation("poll must have at least 2 options")
	}
	if len(options) > 10 {
		return output.ErrValidation("poll cannot have more than 10 options")
	}
	seen := map[string]bool{}
	for i, o := range options {
		trimmed := strings.TrimSpace(o)
		if trimmed == "" {
			return output.ErrValidation(fmt.Sprintf("option %d cannot be empty", i+1))
		}
		if len(o) > 200 {
			return output.ErrValidation(fmt.Sprintf("option %d must be less than 200 characters", i+1))
		}
		key := strings.ToLower(trimmed)
		if seen[key] {
			return output.ErrValidation("poll options must be unique")
		}
		seen[key] = true
	}
	return nil
}
