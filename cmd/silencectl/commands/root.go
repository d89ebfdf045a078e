package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/TimurManjosov/silencegate/internal/cli"
	"github.com/TimurManjosov/silencegate/internal/client"
)

var (
	// Global flags
	baseURL string
	apiKey  string
	profile string
	format  string
	quiet   bool
	timeout time.Duration
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "silencectl",
	Short: "CLI tool for the silencegate settings service",
	Long: `silencectl drives a running silencegate server: it toggles features,
edits flag sets and the repeated-call threshold, answers capability prompts
and simulates grants and revocations on the platform.

Examples:
  silencectl state
  silencectl set messages on
  silencectl prompts
  silencectl answer <request-id> --grant
  silencectl select contacted call message
  silencectl threshold 3 10
  silencectl revoke READ_SMS`,
	SilenceUsage: true,
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	// Global flags available to all commands
	rootCmd.PersistentFlags().StringVar(&baseURL, "base-url", "", "Base URL of the silencegate API")
	rootCmd.PersistentFlags().StringVar(&apiKey, "api-key", "", "Admin API key")
	rootCmd.PersistentFlags().StringVar(&profile, "profile", "", "Profile from ~/.silencegate/config.yaml")
	rootCmd.PersistentFlags().StringVar(&format, "format", "table", "Output format (table, json, yaml)")
	rootCmd.PersistentFlags().BoolVar(&quiet, "quiet", false, "Suppress output")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 30*time.Second, "Request timeout")
}

// connect resolves the profile and returns a client, the output format and a
// request context.
func connect(cmd *cobra.Command) (*client.Client, cli.OutputFormat, context.Context, context.CancelFunc, error) {
	out, err := cli.ParseFormat(format)
	if err != nil {
		return nil, "", nil, nil, err
	}
	p, err := cli.ResolveProfile(profile, baseURL, apiKey)
	if err != nil {
		return nil, "", nil, nil, fmt.Errorf("configuration error: %w", err)
	}
	c := client.NewClient(p.BaseURL, p.APIKey)
	c.HTTPClient.Timeout = timeout
	ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
	return c, out, ctx, cancel, nil
}
