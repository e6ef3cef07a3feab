package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/streamops/ivsctl/internal/config"
	"github.com/streamops/ivsctl/internal/output"
)

// NewConfigCmd creates the config command group.
func NewConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect and change configuration",
	}

	cmd.AddCommand(
		newConfigListCmd(),
		newConfigGetCmd(),
		newConfigSetCmd(),
	)

	return cmd
}

func newConfigListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "Show the resolved configuration and where each value came from",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := app(cmd)
			if err != nil {
				return err
			}
			return a.OK(map[string]any{
				"base_url":           a.Config.BaseURL,
				"analytics_base_url": a.Config.AnalyticsBaseURL,
				"token_url":          a.Config.TokenURL,
				"device_name":        a.Config.DeviceName,
				"timeout_seconds":    a.Config.TimeoutSeconds,
				"page_size":          a.Config.PageSize,
				"format":             a.Config.Format,
				"sources":            a.Config.Sources,
				"path":               config.GlobalConfigPath(),
			})
		},
	}
}

func newConfigGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <key>",
		Short: "Show a single configuration value",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := app(cmd)
			if err != nil {
				return err
			}

			var value any
			switch args[0] {
			case "base_url":
				value = a.Config.BaseURL
			case "analytics_base_url":
				value = a.Config.AnalyticsBaseURL
			case "token_url":
				value = a.Config.TokenURL
			case "device_name":
				value = a.Config.DeviceName
			case "timeout_seconds":
				value = a.Config.TimeoutSeconds
			case "page_size":
				value = a.Config.PageSize
			case "format":
				value = a.Config.Format
			default:
				return output.ErrUsage(fmt.Sprintf("unknown config key: %s", args[0]))
			}
			return a.OK(map[string]any{args[0]: value})
		},
	}
}

func newConfigSetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "set <key> <value>",
		Short: "Write a configuration value to the global config file",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := app(cmd)
			if err != nil {
				return err
			}
			if err := config.Set(args[0], args[1]); err != nil {
				return output.ErrUsage(err.Error())
			}
			return a.OK(map[string]any{args[0]: args[1]},
				output.WithSummary(fmt.Sprintf("Wrote %s to %s", args[0], config.GlobalConfigPath())))
		},
	}
}
