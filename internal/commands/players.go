package commands

import (
	"context"
	"fmt"
	"net/url"
	"regexp"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/streamops/ivsctl/internal/api"
	"github.com/streamops/ivsctl/internal/output"
)

var hexColorRe = regexp.MustCompile(`^#[0-9a-fA-F]{6}$`)

var logoPositions = map[string]bool{
	"top-left": true, "top-right": true, "bottom-left": true, "bottom-right": true,
}

// NewPlayersCmd creates the players command group.
func NewPlayersCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "players",
		Short: "Manage channel player settings",
	}

	cmd.AddCommand(
		newPlayersGetCmd(),
		newPlayersUpdateCmd(),
		newPlayersResetCmd(),
		newPlayersEmbedCmd(),
	)

	return cmd
}

func newPlayersGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <channel-id>",
		Short: "Show the player settings of a channel",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := app(cmd)
			if err != nil {
				return err
			}
			resp, err := callAPI(a, cmd.Context(), func(ctx context.Context) (*api.Response, error) {
				return a.Client.Get(ctx, fmt.Sprintf("/channels/%s/settings/player.json", args[0]), nil)
			})
			if err != nil {
				return err
			}
			return writeResponse(a, resp)
		},
	}
}

func newPlayersUpdateCmd() *cobra.Command {
	var (
		autoplay, controls, responsive bool
		colorScheme, primaryColor      string
		logoURL, logoPosition          string
	)

	cmd := &cobra.Command{
		Use:   "update <channel-id>",
		Short: "Update player settings",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := app(cmd)
			if err != nil {
				return err
			}

			body := map[string]any{}
			if cmd.Flags().Changed("autoplay") {
				body["autoplay"] = autoplay
			}
			if cmd.Flags().Changed("controls") {
				body["controls"] = controls
			}
			if cmd.Flags().Changed("responsive") {
				body["responsive"] = responsive
			}
			if cmd.Flags().Changed("color-scheme") {
				if colorScheme != "light" && colorScheme != "dark" {
					return output.ErrValidation("color scheme must be light or dark")
				}
				body["color_scheme"] = colorScheme
			}
			if cmd.Flags().Changed("primary-color") {
				if !hexColorRe.MatchString(primaryColor) {
					return output.ErrValidation("primary color must be a hex code like #1a2b3c")
				}
				body["primary_color"] = primaryColor
			}
			if cmd.Flags().Changed("logo-url") {
				body["logo_url"] = logoURL
			}
			if cmd.Flags().Changed("logo-position") {
				if !logoPositions[logoPosition] {
					return output.ErrValidation("logo position must be one of top-left, top-right, bottom-left, bottom-right")
				}
				body["logo_position"] = logoPosition
			}
			if len(body) == 0 {
				return output.ErrValidation("no player settings given")
			}

			resp, err := callAPI(a, cmd.Context(), func(ctx context.Context) (*api.Response, error) {
				return a.Client.Put(ctx, fmt.Sprintf("/channels/%s/settings/player.json", args[0]), body)
			})
			if err != nil {
				return err
			}
			return writeResponse(a, resp, output.WithSummary("Player settings updated"))
		},
	}

	cmd.Flags().BoolVar(&autoplay, "autoplay", false, "Start playback automatically")
	cmd.Flags().BoolVar(&controls, "controls", true, "Show player controls")
	cmd.Flags().BoolVar(&responsive, "responsive", true, "Resize with the page")
	cmd.Flags().StringVar(&colorScheme, "color-scheme", "", "Color scheme (light or dark)")
	cmd.Flags().StringVar(&primaryColor, "primary-color", "", "Primary color hex code")
	cmd.Flags().StringVar(&logoURL, "logo-url", "", "Logo image URL")
	cmd.Flags().StringVar(&logoPosition, "logo-position", "", "Logo corner position")

	return cmd
}

func newPlayersResetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reset <channel-id>",
		Short: "Reset player settings to defaults",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := app(cmd)
			if err != nil {
				return err
			}
			body := map[string]any{
				"autoplay":     false,
				"controls":     true,
				"responsive":   true,
				"color_scheme": "dark",
			}
			resp, err := callAPI(a, cmd.Context(), func(ctx context.Context) (*api.Response, error) {
				return a.Client.Put(ctx, fmt.Sprintf("/channels/%s/settings/player.json", args[0]), body)
			})
			if err != nil {
				return err
			}
			return writeResponse(a, resp, output.WithSummary("Player settings reset"))
		},
	}
}

func newPlayersEmbedCmd() *cobra.Command {
	var width, height int
	var responsive bool

	cmd := &cobra.Command{
		Use:   "embed <channel-id>",
		Short: "Print the HTML embed code for a channel",
		Long:  "Fetches the embed code from the API. When the endpoint is unavailable the code is generated locally and the result is marked accordingly.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := app(cmd)
			if err != nil {
				return err
			}
			channelID := args[0]

			query := url.Values{
				"width":      {strconv.Itoa(width)},
				"height":     {strconv.Itoa(height)},
				"responsive": {strconv.FormatBool(responsive)},
			}
			resp, err := callAPI(a, cmd.Context(), func(ctx context.Context) (*api.Response, error) {
				return a.Client.Get(ctx, fmt.Sprintf("/channels/%s/embed.json", channelID), query)
			})
			if err == nil {
				var payload struct {
					EmbedCode string `json:"embed_code"`
				}
				if uerr := resp.UnmarshalData(&payload); uerr == nil && payload.EmbedCode != "" {
					return a.OK(map[string]any{
						"embed_code": payload.EmbedCode,
						"source":     "api",
					})
				}
			}

			return a.OK(map[string]any{
				"embed_code": localEmbedCode(channelID, width, height, responsive),
				"source":     "local",
			})
		},
	}

	cmd.Flags().IntVar(&width, "width", 640, "Player width in pixels")
	cmd.Flags().IntVar(&height, "height", 360, "Player height in pixels")
	cmd.Flags().BoolVar(&responsive, "responsive", true, "Generate a responsive wrapper")

	return cmd
}

// localEmbedCode builds the iframe snippet without the API, used when the
// embed endpoint is unreachable.
func localEmbedCode(channelID string, width, height int, responsive bool) string {
	src := fmt.Sprintf("https://video.ibm.com/embed/%s", channelID)
	if responsive {
		return fmt.Sprintf(`<div style="position: relative; padding-bottom: 56.25%%; height: 0; overflow: hidden;">
    <iframe src=%q style="position: absolute; top: 0; left: 0; width: 100%%; height: 100%%;" frameborder="0" allowfullscreen></iframe>
</div>`, src)
	}
	return fmt.Sprintf(`<iframe src=%q width="%d" height="%d" frameborder="0" allowfullscreen></iframe>`, src, width, height)
}
