package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/streamops/ivsctl/internal/api"
	"github.com/streamops/ivsctl/internal/output"
)

// NewChatCmd creates the chat command group.
func NewChatCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Manage channel chat settings",
	}

	cmd.AddCommand(
		newChatGetCmd(),
		newChatUpdateCmd(),
	)

	return cmd
}

func newChatGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <channel-id>",
		Short: "Show the chat settings of a channel",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := app(cmd)
			if err != nil {
				return err
			}
			resp, err := callAPI(a, cmd.Context(), func(ctx context.Context) (*api.Response, error) {
				return a.Client.Get(ctx, fmt.Sprintf("/channels/%s/settings/chat.json", args[0]), nil)
			})
			if err != nil {
				return err
			}
			return writeResponse(a, resp)
		},
	}
}

func newChatUpdateCmd() *cobra.Command {
	var (
		enabled, requireLogin, slowMode bool
		moderation                      string
		slowModeInterval                int
	)

	cmd := &cobra.Command{
		Use:   "update <channel-id>",
		Short: "Update chat settings",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := app(cmd)
			if err != nil {
				return err
			}

			body := map[string]any{}
			if cmd.Flags().Changed("enabled") {
				body["enabled"] = enabled
			}
			if cmd.Flags().Changed("moderation") {
				if moderation != "auto" && moderation != "manual" && moderation != "off" {
					return output.ErrValidation("moderation must be one of auto, manual, off")
				}
				body["moderation"] = moderation
			}
			if cmd.Flags().Changed("require-login") {
				body["require_login"] = requireLogin
			}
			if cmd.Flags().Changed("slow-mode") {
				body["slow_mode"] = slowMode
			}
			if cmd.Flags().Changed("slow-mode-interval") {
				if slowModeInterval < 0 {
					return output.ErrValidation("slow mode interval must be non-negative")
				}
				body["slow_mode_interval"] = slowModeInterval
			}
			if len(body) == 0 {
				return output.ErrValidation("no chat settings given")
			}

			resp, err := callAPI(a, cmd.Context(), func(ctx context.Context) (*api.Response, error) {
				return a.Client.Put(ctx, fmt.Sprintf("/channels/%s/settings/chat.json", args[0]), body)
			})
			if err != nil {
				return err
			}
			return writeResponse(a, resp, output.WithSummary("Chat settings updated"))
		},
	}

	cmd.Flags().BoolVar(&enabled, "enabled", true, "Enable chat")
	cmd.Flags().StringVar(&moderation, "moderation", "", "Moderation mode (auto, manual, off)")
	cmd.Flags().BoolVar(&requireLogin, "require-login", false, "Require login to chat")
	cmd.Flags().BoolVar(&slowMode, "slow-mode", false, "Enable slow mode")
	cmd.Flags().IntVar(&slowModeInterval, "slow-mode-interval", 0, "Slow mode interval in seconds")

	return cmd
}
