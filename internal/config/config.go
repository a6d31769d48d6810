package config

import (
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
)

// Store backends.
const (
	BackendSQLite = "sqlite"
	BackendRemote = "remote"
	BackendMemory = "memory"
)

// Config holds mindmap configuration.
type Config struct {
	UI     UIConfig     `toml:"ui"`
	Store  StoreConfig  `toml:"store"`
	Sync   SyncConfig   `toml:"sync"`
	Maps   MapsConfig   `toml:"maps"`
	Auth   AuthConfig   `toml:"auth"`
	Server ServerConfig `toml:"server"`
}

// UIConfig controls display options.
type UIConfig struct {
	Color bool `toml:"color"`
}

// StoreConfig selects the document store.
type StoreConfig struct {
	Backend string `toml:"backend"` // "sqlite", "remote", "memory"
	Path    string `toml:"path"`    // sqlite file; empty means <config dir>/mindmap.db
	URL     string `toml:"url"`     // remote server base URL
}

// SyncConfig controls remote writes.
type SyncConfig struct {
	TimeoutSeconds int `toml:"timeout_seconds"`
}

// MapsConfig controls map registry rules.
type MapsConfig struct {
	MinNameLength      int `toml:"min_name_length"`
	CascadeConcurrency int `toml:"cascade_concurrency"`
}

// AuthConfig controls session tokens.
type AuthConfig struct {
	Secret        string `toml:"secret"`
	TokenTTLHours int    `toml:"token_ttl_hours"`
}

// ServerConfig controls `mindmap serve`.
type ServerConfig struct {
	Addr        string `toml:"addr"`
	RequireAuth bool   `toml:"require_auth"`
}

// DefaultSecret signs tokens until a real secret is configured. It is
// public, so a server requiring auth must not run with it.
const DefaultSecret = "mindmap-dev-secret"

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		UI:     UIConfig{Color: true},
		Store:  StoreConfig{Backend: BackendSQLite, URL: "http://127.0.0.1:7420"},
		Sync:   SyncConfig{TimeoutSeconds: 10},
		Maps:   MapsConfig{MinNameLength: 2, CascadeConcurrency: 4},
		Auth:   AuthConfig{Secret: DefaultSecret, TokenTTLHours: 24 * 30},
		Server: ServerConfig{Addr: "127.0.0.1:7420"},
	}
}

// InsecureSecret reports whether tokens are signed with an empty or
// built-in secret.
func (c *Config) InsecureSecret() bool {
	return c.Auth.Secret == "" || c.Auth.Secret == DefaultSecret
}

// ConfigDir returns the mindmap config directory path.
func ConfigDir() string {
	dir := os.Getenv("XDG_CONFIG_HOME")
	if dir == "" {
		home, _ := os.UserHomeDir()
		dir = filepath.Join(home, ".config")
	}
	return filepath.Join(dir, "mindmap")
}

func configPath() string {
	return filepath.Join(ConfigDir(), "config.toml")
}

// Load reads the config file, falling back to defaults if it doesn't exist,
// then applies environment overrides.
func Load() *Config {
	cfg := Default()

	if data, err := os.ReadFile(configPath()); err == nil {
		_ = toml.Unmarshal(data, cfg)
	}
	if local := findProjectConfig(); local != "" {
		if data, err := os.ReadFile(local); err == nil {
			_ = toml.Unmarshal(data, cfg)
		}
	}

	if v := os.Getenv("MINDMAP_STORE_URL"); v != "" {
		cfg.Store.Backend = BackendRemote
		cfg.Store.URL = v
	}
	if v := os.Getenv("MINDMAP_STORE"); v != "" {
		cfg.Store.Backend = v
	}
	if v := os.Getenv("MINDMAP_SECRET"); v != "" {
		cfg.Auth.Secret = v
	}
	return cfg
}

// Save writes the config to disk.
func Save(cfg *Config) error {
	path := configPath()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	return toml.NewEncoder(f).Encode(cfg)
}

// EnsureExists creates the config file with defaults if it doesn't exist.
func EnsureExists() error {
	path := configPath()
	if _, err := os.Stat(path); err == nil {
		return nil // already exists
	}
	return Save(Default())
}

// findProjectConfig walks up from the working directory looking for a
// .mindmap.toml that overrides the user config for that tree.
func findProjectConfig() string {
	dir, err := os.Getwd()
	if err != nil {
		return ""
	}
	for {
		candidate := filepath.Join(dir, ".mindmap.toml")
		if _, err := os.Stat(candidate); err == nil {
			return candidate
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return ""
		}
		dir = parent
	}
}

// StorePath returns the sqlite database location.
func (c *Config) StorePath() string {
	if c.Store.Path != "" {
		return c.Store.Path
	}
	return filepath.Join(ConfigDir(), "mindmap.db")
}

// SyncTimeout returns the bound applied to each remote call.
func (c *Config) SyncTimeout() time.Duration {
	if c.Sync.TimeoutSeconds <= 0 {
		return 10 * time.Second
	}
	return time.Duration(c.Sync.TimeoutSeconds) * time.Second
}

// TokenTTL returns how long a login stays valid.
func (c *Config) TokenTTL() time.Duration {
	if c.Auth.TokenTTLHours <= 0 {
		return 24 * time.Hour
	}
	return time.Duration(c.Auth.TokenTTLHours) * time.Hour
}
