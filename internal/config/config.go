// Package config loads the filedrop client configuration from a YAML file
// with environment-variable overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Environment variables overriding file values.
const (
	EnvIssuer   = "FILEDROP_ISSUER"
	EnvClientID = "FILEDROP_CLIENT_ID"
	EnvAPI      = "FILEDROP_API"
)

// Config is the client configuration. Zero values fall back to defaults
// at load time.
type Config struct {
	// IssuerURL is the authorization server base URL.
	IssuerURL string `yaml:"issuer_url"`

	// ClientID is the public OAuth client identifier.
	ClientID string `yaml:"client_id"`

	// APIBaseURL is the filedrop API the authenticated client talks to.
	APIBaseURL string `yaml:"api_base_url"`

	// CallbackPort is the loopback callback port. 0 uses the default.
	CallbackPort int `yaml:"callback_port,omitempty"`

	// Scopes overrides the requested scope string. Empty uses the default.
	Scopes string `yaml:"scopes,omitempty"`

	// StorageDir is where the session file lives. Empty uses the default
	// config directory.
	StorageDir string `yaml:"storage_dir,omitempty"`

	// WatchSession enables cross-process session change notifications in
	// long-running commands. Off by default.
	WatchSession bool `yaml:"watch_session,omitempty"`
}

// DefaultDir returns the default configuration directory.
func DefaultDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to determine home directory: %w", err)
	}
	return filepath.Join(home, ".config", "filedrop"), nil
}

// DefaultPath returns the default configuration file path.
func DefaultPath() (string, error) {
	dir, err := DefaultDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.yaml"), nil
}

// Load reads the configuration from path (empty selects the default
// path). A missing file is not an error and yields defaults; a file that
// exists but cannot be parsed is.
func Load(path string) (*Config, error) {
	if path == "" {
		p, err := DefaultPath()
		if err != nil {
			return nil, err
		}
		path = p
	}

	cfg := &Config{}

	data, err := os.ReadFile(path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
	} else {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	cfg.applyEnv()

	if cfg.StorageDir == "" {
		dir, err := DefaultDir()
		if err != nil {
			return nil, err
		}
		cfg.StorageDir = dir
	}

	return cfg, nil
}

// applyEnv layers environment overrides on top of file values.
func (c *Config) applyEnv() {
	if v := os.Getenv(EnvIssuer); v != "" {
		c.IssuerURL = v
	}
	if v := os.Getenv(EnvClientID); v != "" {
		c.ClientID = v
	}
	if v := os.Getenv(EnvAPI); v != "" {
		c.APIBaseURL = v
	}
}

// Validate checks that the fields required for authentication are set.
func (c *Config) Validate() error {
	if c.IssuerURL == "" {
		return fmt.Errorf("issuer_url is required (set it in the config file or %s)", EnvIssuer)
	}
	if c.ClientID == "" {
		return fmt.Errorf("client_id is required (set it in the config file or %s)", EnvClientID)
	}
	return nil
}
