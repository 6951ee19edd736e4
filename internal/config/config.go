// ABOUTME: Configuration file handling for backend credentials and provider selection
// ABOUTME: JSON config under XDG config dir with atomic writes

package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/harper/superflux/internal/provider"
	"github.com/harper/superflux/internal/storage"
)

// Config stores superflux configuration.
type Config struct {
	// CharmHost overrides the charm server used for catalog cloud sync.
	CharmHost string `json:"charm_host,omitempty"`

	// BackendDSN is the Postgres connection string for the remote
	// backend; sync is disabled while it is empty.
	BackendDSN string `json:"backend_dsn,omitempty"`

	// BackendUserID scopes backend rows to one user.
	BackendUserID string `json:"backend_user_id,omitempty"`

	// Provider holds the tagged reader-service credentials, if any.
	Provider json.RawMessage `json:"provider,omitempty"`
}

// GetConfigPath returns the config file path.
func GetConfigPath() string {
	configDir := os.Getenv("XDG_CONFIG_HOME")
	if configDir == "" {
		homeDir, _ := os.UserHomeDir()
		configDir = filepath.Join(homeDir, ".config")
	}
	return filepath.Join(configDir, "superflux", "config.json")
}

// ExpandPath expands a leading ~ to the user's home directory.
func ExpandPath(path string) string {
	if path == "" {
		return ""
	}
	if path == "~" {
		home, _ := os.UserHomeDir()
		return home
	}
	if strings.HasPrefix(path, "~/") {
		home, _ := os.UserHomeDir()
		return filepath.Join(home, path[2:])
	}
	return path
}

// Load reads config from disk, returning defaults when no file exists.
func Load() (*Config, error) {
	data, err := os.ReadFile(GetConfigPath())
	if err != nil {
		if os.IsNotExist(err) {
			return &Config{}, nil
		}
		return nil, err
	}
	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	return &cfg, nil
}

// Save writes config to disk atomically.
func (c *Config) Save() error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}
	return atomicWrite(GetConfigPath(), data)
}

// OpenStorage opens the catalog's durable store, honoring the
// configured charm host.
func (c *Config) OpenStorage() (storage.Store, error) {
	if c.CharmHost != "" {
		os.Setenv("CHARM_HOST", c.CharmHost)
	}
	return storage.OpenKV()
}

// HasBackend reports whether remote sync is configured.
func (c *Config) HasBackend() bool {
	return c.BackendDSN != "" && c.BackendUserID != ""
}

// ProviderConfig decodes the configured provider credentials, if any.
func (c *Config) ProviderConfig() (provider.Config, bool, error) {
	if len(c.Provider) == 0 {
		return nil, false, nil
	}
	cfg, err := provider.DecodeConfig(c.Provider)
	if err != nil {
		return nil, false, err
	}
	return cfg, true, nil
}

// SetProviderConfig stores provider credentials in tagged form.
func (c *Config) SetProviderConfig(cfg provider.Config) error {
	raw, err := provider.EncodeConfig(cfg)
	if err != nil {
		return err
	}
	c.Provider = raw
	return nil
}

// atomicWrite writes data to a temp file in the target directory and
// renames it into place, so a crash never leaves a truncated config.
func atomicWrite(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating config dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".config-*")
	if err != nil {
		return fmt.Errorf("creating temp config: %w", err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("writing config: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}
