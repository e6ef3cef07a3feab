// Package cli builds the cobra command tree.
package cli

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/streamops/ivsctl/internal/appctx"
	"github.com/streamops/ivsctl/internal/commands"
	"github.com/streamops/ivsctl/internal/config"
	"github.com/streamops/ivsctl/internal/output"
	"github.com/streamops/ivsctl/internal/version"
)

// NewRootCmd creates the root cobra command.
func NewRootCmd() *cobra.Command {
	var flags appctx.GlobalFlags

	cmd := &cobra.Command{
		Use:           "ivsctl",
		Short:         "Command-line console for IBM Video Streaming",
		Long:          "ivsctl manages IBM Video Streaming channels, videos, players, polls, and analytics through the platform REST API.",
		Version:       version.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// Skip setup for help and version commands
			if cmd.Name() == "help" || cmd.Name() == "version" {
				return nil
			}

			cfg, err := config.Load(config.FlagOverrides{
				BaseURL:          flags.BaseURL,
				AnalyticsBaseURL: flags.AnalyticsBaseURL,
				TokenURL:         flags.TokenURL,
			})
			if err != nil {
				return err
			}

			app := appctx.NewApp(cfg)
			app.Flags = flags
			app.ApplyFlags()

			cmd.SetContext(appctx.WithApp(cmd.Context(), app))
			return nil
		},
	}

	cmd.Flags().SetInterspersed(true)
	cmd.PersistentFlags().SetInterspersed(true)

	cmd.PersistentFlags().BoolVarP(&flags.Quiet, "quiet", "q", false, "Output data only, no envelope")
	cmd.PersistentFlags().CountVarP(&flags.Verbose, "verbose", "v", "Verbose output (-v for debug logs, -vv adds request traces)")
	cmd.PersistentFlags().StringVar(&flags.BaseURL, "base-url", "", "API base URL override")
	cmd.PersistentFlags().StringVar(&flags.AnalyticsBaseURL, "analytics-base-url", "", "Analytics API base URL override")
	cmd.PersistentFlags().StringVar(&flags.TokenURL, "token-url", "", "OAuth2 token endpoint override")

	cmd.AddCommand(
		commands.NewAuthCmd(),
		commands.NewChannelsCmd(),
		commands.NewVideosCmd(),
		commands.NewPlayersCmd(),
		commands.NewPollsCmd(),
		commands.NewChatCmd(),
		commands.NewAnalyticsCmd(),
		commands.NewAPICmd(),
		commands.NewConfigCmd(),
	)

	return cmd
}

// Execute runs the root command and exits with the mapped code on failure.
func Execute() {
	cmd := NewRootCmd()

	// Use ExecuteC to get the executed command (for correct context access)
	executedCmd, err := cmd.ExecuteC()
	if err == nil {
		return
	}

	apiErr := output.AsError(err)

	// Prefer the app writer so errors honor --quiet
	if app := appctx.FromContext(executedCmd.Context()); app != nil {
		_ = app.Err(err)
		os.Exit(apiErr.ExitCode())
	}

	// Fallback: app not available, e.g. during setup
	format := output.FormatJSON
	if quiet, _ := cmd.PersistentFlags().GetBool("quiet"); quiet {
		format = output.FormatQuiet
	}
	writer := output.New(output.Options{
		Format: format,
		Writer: os.Stdout,
	})
	_ = writer.Err(err)

	os.Exit(apiErr.ExitCode())
}
