package userconfig

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

const (
	configDirName  = "schedadmin"
	configFileName = "config.json"
)

// UserConfig represents the user's local configuration stored in ~/.config/schedadmin/config.json
type UserConfig struct {
	BackendURL string `json:"backend_url"`
	WebURL     string `json:"web_url,omitempty"`
	Email      string `json:"email,omitempty"`
}

// GetConfigPath returns the path to the user config file
func GetConfigPath() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user home directory: %w", err)
	}

	configDir := filepath.Join(homeDir, ".config", configDirName)
	return filepath.Join(configDir, configFileName), nil
}

// Load reads the user configuration file
func Load() (*UserConfig, error) {
	configPath, err := GetConfigPath()
	if err != nil {
		return nil, err
	}

	// If config doesn't exist, return empty config
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return &UserConfig{}, nil
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read user config file: %w", err)
	}

	var cfg UserConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse user config file: %w", err)
	}

	return &cfg, nil
}

// Save writes the user configuration, readable only by the user
func Save(cfg *UserConfig) error {
	configPath, err := GetConfigPath()
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(configPath), 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal user config: %w", err)
	}

	if err := os.WriteFile(configPath, data, 0600); err != nil {
		return fmt.Errorf("failed to write user config file: %w", err)
	}

	return nil
}

// SetBackendURL updates the backend URL and saves the config
func SetBackendURL(backendURL string) error {
	cfg, err := Load()
	if err != nil {
		return err
	}

	cfg.BackendURL = strings.TrimRight(backendURL, "/")
	return Save(cfg)
}

// SetWebURL updates the address of the web front end and saves the config
func SetWebURL(webURL string) error {
	cfg, err := Load()
	if err != nil {
		return err
	}

	cfg.WebURL = strings.TrimRight(webURL, "/")
	return Save(cfg)
}

// SetEmail remembers the last email used to sign in
func SetEmail(email string) error {
	cfg, err := Load()
	if err != nil {
		return err
	}

	cfg.Email = email
	return Save(cfg)
}
