package cmd

import (
	"fmt"

	"filedrop/internal/auth"
	"filedrop/internal/config"
	"filedrop/internal/fileapi"
)

// loadConfig loads and validates the client configuration.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// newManager builds the auth manager from configuration.
func newManager(cfg *config.Config) (*auth.Manager, error) {
	return auth.NewManager(auth.ManagerConfig{
		IssuerURL:    cfg.IssuerURL,
		ClientID:     cfg.ClientID,
		CallbackPort: cfg.CallbackPort,
		StorageDir:   cfg.StorageDir,
		Scopes:       cfg.Scopes,
		OnSessionExpired: func() {
			fmt.Println("Your session has expired. Run 'filedrop auth login' to sign in again.")
		},
	})
}

// newAPIClient builds the authenticated file API client. The session's
// refresh schedule is resumed so a long-running command keeps its token
// fresh.
func newAPIClient(cfg *config.Config) (*fileapi.Client, *auth.Manager, error) {
	mgr, err := newManager(cfg)
	if err != nil {
		return nil, nil, err
	}

	if cfg.APIBaseURL == "" {
		return nil, nil, fmt.Errorf("api_base_url is required (set it in the config file or %s)", config.EnvAPI)
	}

	return fileapi.NewClient(cfg.APIBaseURL, mgr.HTTPClient()), mgr, nil
}
