package commands

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/streamops/ivsctl/internal/output"
)

// NewAuthCmd creates the auth command group.
func NewAuthCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "auth",
		Short: "Manage API credentials and tokens",
	}

	cmd.AddCommand(
		newAuthSetCredentialsCmd(),
		newAuthStatusCmd(),
		newAuthClearCmd(),
		newAuthRefreshCmd(),
		newAuthTokenCmd(),
	)

	return cmd
}

func newAuthSetCredentialsCmd() *cobra.Command {
	var clientID, clientSecret string

	cmd := &cobra.Command{
		Use:   "set-credentials",
		Short: "Store the OAuth2 client ID and secret",
		Long:  "Stores client credentials in the system keyring, falling back to a permission-restricted file when no keyring is available. Omitted values are prompted for interactively.",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := app(cmd)
			if err != nil {
				return err
			}

			if clientID == "" {
				clientID, err = promptLine("Client ID: ")
				if err != nil {
					return err
				}
			}
			if clientSecret == "" {
				clientSecret, err = promptSecret("Client secret: ")
				if err != nil {
					return err
				}
			}

			clientID = strings.TrimSpace(clientID)
			clientSecret = strings.TrimSpace(clientSecret)
			if clientID == "" || clientSecret == "" {
				return output.ErrValidation("client ID and client secret must not be empty")
			}
			if len(clientID) != 40 {
				fmt.Fprintf(os.Stderr, "warning: client ID is %d characters, expected 40\n", len(clientID))
			}

			if !a.Creds.Set(clientID, clientSecret) {
				return output.ErrAPI(0, "Failed to store credentials")
			}

			backend := "file"
			if a.Creds.UsingKeyring() {
				backend = "keyring"
			}
			return a.OK(map[string]any{
				"client_id": clientID,
				"backend":   backend,
			}, output.WithSummary("Credentials stored"))
		},
	}

	cmd.Flags().StringVar(&clientID, "client-id", "", "OAuth2 client ID")
	cmd.Flags().StringVar(&clientSecret, "client-secret", "", "OAuth2 client secret (prompted when omitted)")

	return cmd
}

func newAuthStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show credential and token state",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := app(cmd)
			if err != nil {
				return err
			}

			clientID, _ := a.Creds.Get()
			_, hasToken := a.Auth.AccessToken(cmd.Context())
			_, hasJWT := a.Auth.JWTToken(cmd.Context())

			backend := "file"
			if a.Creds.UsingKeyring() {
				backend = "keyring"
			}

			return a.OK(map[string]any{
				"has_credentials": a.Creds.HasCredentials(),
				"client_id":       clientID,
				"backend":         backend,
				"token_valid":     hasToken,
				"jwt_valid":       hasJWT,
			})
		},
	}
}

func newAuthClearCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Remove stored credentials and invalidate tokens",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := app(cmd)
			if err != nil {
				return err
			}
			a.Creds.Clear()
			return a.OK(nil, output.WithSummary("Credentials cleared"))
		},
	}
}

func newAuthRefreshCmd() *cobra.Command {
	var jwt bool

	cmd := &cobra.Command{
		Use:   "refresh",
		Short: "Force a new token request",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := app(cmd)
			if err != nil {
				return err
			}
			if !a.Creds.HasCredentials() {
				return output.ErrAuth("No credentials configured")
			}

			var ok bool
			kind := "access"
			if jwt {
				kind = "jwt"
				ok = a.Auth.RefreshJWT(cmd.Context())
			} else {
				ok = a.Auth.Refresh(cmd.Context())
			}
			if !ok {
				return output.ErrAuth("Token request failed")
			}
			return a.OK(map[string]any{"token": kind}, output.WithSummary("Token refreshed"))
		},
	}

	cmd.Flags().BoolVar(&jwt, "jwt", false, "Refresh the analytics JWT instead of the access token")

	return cmd
}

func newAuthTokenCmd() *cobra.Command {
	var jwt bool

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Print a valid token, requesting one if needed",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := app(cmd)
			if err != nil {
				return err
			}

			var value string
			var ok bool
			if jwt {
				value, ok = a.Auth.JWTToken(cmd.Context())
			} else {
				value, ok = a.Auth.AccessToken(cmd.Context())
			}
			if !ok {
				return output.ErrAuth("Could not obtain a token")
			}
			return a.OK(map[string]any{"token": value})
		},
	}

	cmd.Flags().BoolVar(&jwt, "jwt", false, "Print the analytics JWT instead of the access token")

	return cmd
}

func promptLine(prompt string) (string, error) {
	fmt.Fprint(os.Stderr, prompt)
	reader := bufio.NewReader(os.Stdin)
	line, err := reader.ReadString('\n')
	if err != nil {
		return "", output.ErrUsage("failed to read input")
	}
	return strings.TrimSpace(line), nil
}

func promptSecret(prompt string) (string, error) {
	fmt.Fprint(os.Stderr, prompt)
	if !term.IsTerminal(int(os.Stdin.Fd())) {
		reader := bufio.NewReader(os.Stdin)
		line, err := reader.ReadString('\n')
		if err != nil {
			return "", output.ErrUsage("failed to read input")
		}
		return strings.TrimSpace(line), nil
	}
	secret, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", output.ErrUsage("failed to read secret")
	}
	return strings.TrimSpace(string(secret)), nil
}
