// Package appctx provides application context helpers.
package appctx

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/streamops/ivsctl/internal/api"
	"github.com/streamops/ivsctl/internal/auth"
	"github.com/streamops/ivsctl/internal/config"
	"github.com/streamops/ivsctl/internal/credentials"
	"github.com/streamops/ivsctl/internal/output"
)

// contextKey is a private type for context keys.
type contextKey string

const appKey contextKey = "app"

// App holds the shared application context for all commands. Everything is
// wired here once; no package-level singletons.
type App struct {
	Config *config.Config
	Creds  *credentials.Store
	Auth   *auth.Manager
	Client *api.Client
	Output *output.Writer

	// Flags holds the global flag values
	Flags GlobalFlags
}

// GlobalFlags holds values for global CLI flags.
type GlobalFlags struct {
	Quiet   bool
	Verbose int

	BaseURL          string
	AnalyticsBaseURL string
	TokenURL         string
}

// NewApp creates a new App with the given configuration.
func NewApp(cfg *config.Config) *App {
	creds := credentials.NewStore(config.GlobalConfigDir())

	httpClient := &http.Client{Timeout: 30 * time.Second}
	authMgr := auth.NewManager(cfg, creds, httpClient)
	client := api.NewClient(cfg, authMgr)

	format := output.FormatJSON
	if cfg.Format == "quiet" {
		format = output.FormatQuiet
	}

	return &App{
		Config: cfg,
		Creds:  creds,
		Auth:   authMgr,
		Client: client,
		Output: output.New(output.Options{
			Format: format,
			Writer: os.Stdout,
		}),
	}
}

// ApplyFlags applies global flag values to the app configuration.
func (a *App) ApplyFlags() {
	if a.Flags.Quiet {
		a.Output = output.New(output.Options{
			Format: output.FormatQuiet,
			Writer: os.Stdout,
		})
	}

	verboseLevel := a.Flags.Verbose
	if os.Getenv("IVSCTL_DEBUG") != "" && verboseLevel == 0 {
		verboseLevel = 1
	}

	if verboseLevel > 0 {
		slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: slog.LevelDebug,
		})))
		a.Client.SetVerbose(verboseLevel > 1)
	}
}

// OK outputs a success response.
func (a *App) OK(data any, opts ...output.ResponseOption) error {
	return a.Output.OK(data, opts...)
}

// Err outputs an error response.
func (a *App) Err(err error) error {
	return a.Output.Err(err)
}

// WithApp stores the app in the context.
func WithApp(ctx context.Context, app *App) context.Context {
	return context.WithValue(ctx, appKey, app)
}

// FromContext retrieves the app from the context.
func FromContext(ctx context.Context) *App {
	app, _ := ctx.Value(appKey).(*App)
	return app
}
