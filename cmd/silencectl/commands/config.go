package commands

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/TimurManjosov/silencegate/internal/cli"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
	Long:  `Manage the silencectl configuration file.`,
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize configuration file",
	Long: `Create a default configuration file at ~/.silencegate/config.yaml with a
"local" profile pointing at http://localhost:8080.

Example:
  silencectl config init`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cli.InitConfig(); err != nil {
			return fmt.Errorf("failed to initialize config: %w", err)
		}

		configPath, _ := cli.GetConfigPath()
		w := cmd.OutOrStdout()
		fmt.Fprintf(w, "Configuration file created at: %s\n", configPath)
		fmt.Fprintln(w, "\nChange the api_key before talking to a production server:")
		fmt.Fprintln(w, "  silencectl config set local.api_key <key>")
		return nil
	},
}

var configListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all configuration",
	Long: `Display the current configuration.

Example:
  silencectl config list`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := cli.LoadConfig()
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}

		w := cmd.OutOrStdout()
		fmt.Fprintf(w, "Default Profile: %s\n\n", cfg.DefaultProfile)
		fmt.Fprintln(w, "Profiles:")
		for _, name := range cfg.ProfileNames() {
			p := cfg.Profiles[name]
			fmt.Fprintf(w, "  %s:\n", name)
			fmt.Fprintf(w, "    base_url: %s\n", p.BaseURL)
			fmt.Fprintf(w, "    api_key: %s\n", maskKey(p.APIKey))
		}
		return nil
	},
}

var configGetCmd = &cobra.Command{
	Use:   "get <profile.key>",
	Short: "Get a configuration value",
	Long: `Get a specific configuration value.

Examples:
  silencectl config get local.base_url
  silencectl config get local.api_key`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := cli.LoadConfig()
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		name, key, err := splitKey(args[0])
		if err != nil {
			return err
		}
		value, err := cfg.Get(name, key)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), value)
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <profile.key> <value>",
	Short: "Set a configuration value",
	Long: `Set a specific configuration value. The profile is created if needed;
"default_profile" selects the profile used without --profile.

Examples:
  silencectl config set local.base_url http://localhost:8080
  silencectl config set staging.api_key my-secret-key
  silencectl config set default_profile staging`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := cli.LoadConfig()
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}

		if args[0] == "default_profile" {
			cfg.DefaultProfile = args[1]
		} else {
			name, key, err := splitKey(args[0])
			if err != nil {
				return err
			}
			if err := cfg.Set(name, key, args[1]); err != nil {
				return err
			}
		}

		if err := cli.SaveConfig(cfg); err != nil {
			return fmt.Errorf("failed to save config: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Successfully set %s\n", args[0])
		return nil
	},
}

func splitKey(s string) (string, string, error) {
	parts := strings.Split(s, ".")
	if len(parts) != 2 {
		return "", "", fmt.Errorf("invalid key format, expected 'profile.key' (e.g., 'local.base_url')")
	}
	return parts[0], parts[1], nil
}

// maskKey hides all but the first four characters.
func maskKey(key string) string {
	if len(key) > 4 {
		return key[:4] + "***"
	}
	return "***"
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configListCmd)
	configCmd.AddCommand(configGetCmd)
	configCmd.AddCommand(configSetCmd)
}
