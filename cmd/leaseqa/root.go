package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http/cookiejar"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"golang.org/x/net/publicsuffix"

	"github.com/imeyer/leaseqa/pkg/api"
)

type App struct {
	APIBase  string
	Email    string
	Password string
	Timeout  time.Duration
	JSON     bool

	// newClient is replaced in tests.
	newClient func(app *App) (*api.Client, error)
}

func newRootCmd() *cobra.Command {
	// A missing .env is fine.
	_ = godotenv.Load()

	app := &App{newClient: defaultClient}

	cmd := &cobra.Command{
		Use:          "leaseqa",
		Short:        "Operator CLI for the LeaseQA backend",
		SilenceUsage: true,
		Example: strings.TrimSpace(`
  # Open questions in the deposits folder, grouped by recency
  leaseqa posts list --folder deposits --status open

  # One question with its answers and discussion tree
  leaseqa posts show 65f1c0ffee0000000000abcd

  # Review a lease (needs an account)
  LEASEQA_EMAIL=me@example.com LEASEQA_PASSWORD=... leaseqa review submit lease.pdf
`),
	}

	cmd.PersistentFlags().StringVar(&app.APIBase, "api", api.ResolveBase(os.Getenv), "Backend API base URL")
	cmd.PersistentFlags().StringVar(&app.Email, "email", os.Getenv("LEASEQA_EMAIL"), "Account email for commands that need a signed-in user")
	cmd.PersistentFlags().StringVar(&app.Password, "password", os.Getenv("LEASEQA_PASSWORD"), "Account password (prefer LEASEQA_PASSWORD)")
	cmd.PersistentFlags().DurationVar(&app.Timeout, "timeout", 30*time.Second, "Timeout for each backend call")
	cmd.PersistentFlags().BoolVar(&app.JSON, "json", false, "Print JSON instead of text")

	cmd.AddCommand(newPostsCmd(app))
	cmd.AddCommand(newFoldersCmd(app))
	cmd.AddCommand(newReviewCmd(app))
	cmd.AddCommand(newStatsCmd(app))

	return cmd
}

func defaultClient(app *App) (*api.Client, error) {
	return api.New(app.APIBase,
		api.WithTimeout(app.Timeout),
		api.WithUserAgent("leaseqa-cli"),
	)
}

// client returns a backend client with its own cookie jar, so a sign-in
// lasts for the rest of the command.
func (app *App) client() (*api.Client, error) {
	c, err := app.newClient(app)
	if err != nil {
		return nil, err
	}
	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		return nil, err
	}
	return c.ForSession(jar), nil
}

// signedIn returns a client that has logged in with the configured
// credentials.
func (app *App) signedIn(ctx context.Context) (*api.Client, error) {
	if app.Email == "" || app.Password == "" {
		return nil, fmt.Errorf("this command needs an account: set --email and LEASEQA_PASSWORD")
	}
	c, err := app.client()
	if err != nil {
		return nil, err
	}
	if _, err := c.Login(ctx, api.LoginParams{Email: app.Email, Password: app.Password}); err != nil {
		return nil, fmt.Errorf("sign in: %w", err)
	}
	return c, nil
}

// writeOut prints v as JSON when --json is set, and otherwise calls text.
func writeOut(cmd *cobra.Command, app *App, v any, text func(w io.Writer) error) error {
	w := cmd.OutOrStdout()
	if app.JSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	}
	return text(w)
}
