// Package cli implements the campus command line client.
package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/emilythestrangee/campus/backend/internal/backend"
)

const defaultAPI = "http://localhost:8080"

var (
	apiURL string
	token  string
)

// RootCmd is the base command when called without any subcommands
var RootCmd = &cobra.Command{
	Use:           "campus [command] [flags]",
	Short:         "Campus rants from the terminal",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	RootCmd.PersistentFlags().StringVar(&apiURL, "api", envOr("CAMPUS_API", defaultAPI), "API base URL (env CAMPUS_API)")
	RootCmd.PersistentFlags().StringVar(&token, "token", os.Getenv("CAMPUS_TOKEN"), "session token (env CAMPUS_TOKEN)")
}

// errReported marks a failure that was already shown to the user.
var errReported = errors.New("reported")

// Execute runs the root command and exits non-zero on error.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := RootCmd.ExecuteContext(ctx); err != nil {
		if !errors.Is(err, errReported) {
			printError(RootCmd, err)
		}
		stop()
		os.Exit(1)
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// newClient builds an API client. A token given by flag or environment
// wins over the one saved by login.
func newClient() *backend.Client {
	t := token
	if t == "" {
		t, _ = loadToken()
	}
	return backend.NewClient(apiURL, t)
}

func tokenPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "campus", "token"), nil
}

func loadToken() (string, error) {
	path, err := tokenPath()
	if err != nil {
		return "", err
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(b)), nil
}

func saveToken(t string) error {
	path, err := tokenPath()
	if err != nil {
		return fmt.Errorf("locate config dir: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	return os.WriteFile(path, []byte(t+"\n"), 0o600)
}

func printError(cmd *cobra.Command, err error) {
	msg := err.Error()
	var apiErr *backend.APIError
	if errors.As(err, &apiErr) {
		msg = apiErr.Message
	}
	fmt.Fprintln(cmd.ErrOrStderr(), color.New(color.FgHiRed, color.Bold).Sprint("🚨 "+msg))
}

func printAlert(cmd *cobra.Command) func(string) {
	return func(msg string) {
		fmt.Fprintln(cmd.ErrOrStderr(), color.New(color.FgYellow, color.Bold).Sprint("⚠️  "+msg))
	}
}
