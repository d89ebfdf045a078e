// Package cli holds the silencectl configuration file and output helpers.
package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"gopkg.in/yaml.v3"
)

// Environment variables that override the configuration file.
const (
	EnvBaseURL = "SILENCEGATE_BASE_URL"
	EnvAPIKey  = "SILENCEGATE_API_KEY"
)

// Config represents the CLI configuration
type Config struct {
	DefaultProfile string             `yaml:"default_profile"`
	Profiles       map[string]Profile `yaml:"profiles"`
}

// Profile is one silencegate server the CLI can talk to.
type Profile struct {
	BaseURL string `yaml:"base_url"`
	APIKey  string `yaml:"api_key"`
}

// ProfileNames returns the configured profile names, sorted.
func (c *Config) ProfileNames() []string {
	names := make([]string, 0, len(c.Profiles))
	for name := range c.Profiles {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Get returns one field of a profile. Valid fields are base_url and api_key.
func (c *Config) Get(profile, field string) (string, error) {
	p, ok := c.Profiles[profile]
	if !ok {
		return "", fmt.Errorf("profile '%s' not found", profile)
	}
	switch field {
	case "base_url":
		return p.BaseURL, nil
	case "api_key":
		return p.APIKey, nil
	default:
		return "", fmt.Errorf("unknown key '%s', valid keys: base_url, api_key", field)
	}
}

// Set updates one field of a profile, creating the profile if needed.
func (c *Config) Set(profile, field, value string) error {
	if c.Profiles == nil {
		c.Profiles = make(map[string]Profile)
	}
	p := c.Profiles[profile]
	switch field {
	case "base_url":
		p.BaseURL = value
	case "api_key":
		p.APIKey = value
	default:
		return fmt.Errorf("unknown key '%s', valid keys: base_url, api_key", field)
	}
	c.Profiles[profile] = p
	return nil
}

// GetConfigPath returns the path to the config file
func GetConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(home, ".silencegate", "config.yaml"), nil
}

// LoadConfig loads the configuration from file
func LoadConfig() (*Config, error) {
	configPath, err := GetConfigPath()
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		if os.IsNotExist(err) {
			// Return empty config if file doesn't exist
			return &Config{
				DefaultProfile: "local",
				Profiles:       make(map[string]Profile),
			}, nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	if cfg.Profiles == nil {
		cfg.Profiles = make(map[string]Profile)
	}

	return &cfg, nil
}

// SaveConfig saves the configuration to file
func SaveConfig(cfg *Config) error {
	configPath, err := GetConfigPath()
	if err != nil {
		return err
	}

	// Create directory if it doesn't exist
	if err := os.MkdirAll(filepath.Dir(configPath), 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(configPath, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// ResolveProfile returns the connection settings to use.
// Priority per field: command flags > environment variables > config file.
// Flags or environment variables alone are enough; the file is only
// consulted for fields they leave empty.
func ResolveProfile(profileName, baseURLFlag, apiKeyFlag string) (*Profile, error) {
	p := Profile{BaseURL: baseURLFlag, APIKey: apiKeyFlag}
	if p.BaseURL == "" {
		p.BaseURL = os.Getenv(EnvBaseURL)
	}
	if p.APIKey == "" {
		p.APIKey = os.Getenv(EnvAPIKey)
	}
	if p.BaseURL != "" && p.APIKey != "" {
		return &p, nil
	}

	cfg, err := LoadConfig()
	if err != nil {
		return nil, err
	}
	if profileName == "" {
		profileName = cfg.DefaultProfile
	}
	fromFile, ok := cfg.Profiles[profileName]
	if !ok && p.BaseURL == "" {
		return nil, fmt.Errorf("profile '%s' not found in config; run 'silencectl config init' or pass --base-url", profileName)
	}
	if p.BaseURL == "" {
		p.BaseURL = fromFile.BaseURL
	}
	if p.APIKey == "" {
		p.APIKey = fromFile.APIKey
	}
	if p.BaseURL == "" {
		return nil, fmt.Errorf("base_url must be configured for profile '%s'", profileName)
	}
	return &p, nil
}

// InitConfig creates a default config file
func InitConfig() error {
	return SaveConfig(&Config{
		DefaultProfile: "local",
		Profiles: map[string]Profile{
			"local": {
				BaseURL: "http://localhost:8080",
				APIKey:  "admin-123",
			},
		},
	})
}
