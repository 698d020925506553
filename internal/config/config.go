package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/pelletier/go-toml/v2"
)

// HomeEnv overrides the configuration directory.
const HomeEnv = "CUBE_BUILDER_HOME"

// Config represents the application configuration.
type Config struct {
	// Remote card database
	API APIConfig `toml:"api"`

	// Suggestions and name resolution
	Search SearchConfig `toml:"search"`

	// Backup ring
	Backup BackupConfig `toml:"backup"`

	// Local storage
	Storage StorageConfig `toml:"storage"`

	// Application configuration
	App AppConfig `toml:"app"`
}

// APIConfig contains Scryfall client settings.
type APIConfig struct {
	BaseURL      string `toml:"base_url"`      // Scryfall API root
	UserAgent    string `toml:"user_agent"`    // User-Agent header; empty means cube-builder/<version>
	RateInterval string `toml:"rate_interval"` // Minimum gap between requests (e.g., "100ms")
	Timeout      string `toml:"timeout"`       // HTTP timeout (e.g., "30s")
}

// SearchConfig contains autocomplete and resolution settings.
type SearchConfig struct {
	Debounce      string `toml:"debounce"`       // Quiet period before autocomplete (e.g., "250ms")
	MinPrefix     int    `toml:"min_prefix"`     // Shortest prefix sent upstream
	PrimaryLang   string `toml:"primary_lang"`   // Canonical language
	SecondaryLang string `toml:"secondary_lang"` // Fallback language
	MaxCandidates int    `toml:"max_candidates"` // Ambiguous candidates shown
}

// BackupConfig contains backup ring settings.
type BackupConfig struct {
	Capacity     int    `toml:"capacity"`      // Ring slots, 1-10
	MinInterval  string `toml:"min_interval"`  // Minimum gap between snapshots (e.g., "45s")
	FileInterval string `toml:"file_interval"` // Database file copies while the prompt runs ("0s" disables)
	FileKeep     int    `toml:"file_keep"`     // Database copies retained (0 = all)
}

// StorageConfig contains database settings.
type StorageConfig struct {
	Path      string `toml:"path"`      // SQLite file; empty means <home>/cube.db
	Namespace string `toml:"namespace"` // Key prefix
}

// AppConfig contains general application settings.
type AppConfig struct {
	DebugMode bool `toml:"debug_mode"` // Enable debug logging
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		API: APIConfig{
			BaseURL:      "https://api.scryfall.com",
			UserAgent:    "",
			RateInterval: "100ms",
			Timeout:      "30s",
		},
		Search: SearchConfig{
			Debounce:      "250ms",
			MinPrefix:     2,
			PrimaryLang:   "en",
			SecondaryLang: "it",
			MaxCandidates: 8,
		},
		Backup: BackupConfig{
			Capacity:     5,
			MinInterval:  "45s",
			FileInterval: "24h",
			FileKeep:     7,
		},
		Storage: StorageConfig{
			Path:      "",
			Namespace: "cube",
		},
		App: AppConfig{
			DebugMode: false,
		},
	}
}

// Dir returns the configuration directory, creating it if needed.
func Dir() (string, error) {
	dir := os.Getenv(HomeEnv)
	if dir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("get home directory: %w", err)
		}
		dir = filepath.Join(homeDir, ".cube-builder")
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create config directory: %w", err)
	}
	return dir, nil
}

// Path returns the path to the configuration file.
func Path() (string, error) {
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.toml"), nil
}

// Load loads the configuration from disk. Returns default config if file doesn't exist.
func Load() (*Config, error) {
	path, err := Path()
	if err != nil {
		return nil, err
	}
	return LoadFile(path)
}

// LoadFile loads the configuration at path. Keys missing from the file keep
// their default values.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return DefaultConfig(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	config := DefaultConfig()
	if err := toml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("parse config file: %w", err)
	}

	return config, nil
}

// Save saves the configuration to disk.
func (c *Config) Save() error {
	path, err := Path()
	if err != nil {
		return err
	}
	return c.SaveFile(path)
}

// SaveFile writes the configuration to path.
func (c *Config) SaveFile(path string) error {
	data, err := toml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write config file: %w", err)
	}

	return nil
}

// Validate validates the configuration values.
func (c *Config) Validate() error {
	if u, err := url.Parse(c.API.BaseURL); err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("invalid api base url %q", c.API.BaseURL)
	}

	durations := []struct {
		name, value string
	}{
		{"api rate interval", c.API.RateInterval},
		{"api timeout", c.API.Timeout},
		{"search debounce", c.Search.Debounce},
		{"backup min interval", c.Backup.MinInterval},
		{"backup file interval", c.Backup.FileInterval},
	}
	for _, d := range durations {
		v, err := time.ParseDuration(d.value)
		if err != nil {
			return fmt.Errorf("invalid %s %q: %w", d.name, d.value, err)
		}
		if v < 0 {
			return fmt.Errorf("%s cannot be negative: %s", d.name, d.value)
		}
	}

	if c.Search.MinPrefix < 1 {
		return fmt.Errorf("search min prefix must be at least 1: %d", c.Search.MinPrefix)
	}
	if c.Search.MaxCandidates < 1 {
		return fmt.Errorf("search max candidates must be at least 1: %d", c.Search.MaxCandidates)
	}
	if c.Search.PrimaryLang == "" || c.Search.SecondaryLang == "" {
		return errors.New("search languages cannot be empty")
	}

	// Out-of-range capacities are clamped by the ring, not rejected.
	if c.Backup.Capacity == 0 {
		return errors.New("backup capacity cannot be zero")
	}

	if c.Backup.FileKeep < 0 {
		return fmt.Errorf("backup file keep cannot be negative: %d", c.Backup.FileKeep)
	}

	if c.Storage.Namespace == "" {
		return errors.New("storage namespace cannot be empty")
	}

	return nil
}

// DatabasePath returns the configured database path, defaulting to cube.db
// in the configuration directory.
func (c *Config) DatabasePath() (string, error) {
	if c.Storage.Path != "" {
		return c.Storage.Path, nil
	}
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "cube.db"), nil
}

// GetRateInterval returns the API rate interval as a duration.
func (c *Config) GetRateInterval() (time.Duration, error) {
	return time.ParseDuration(c.API.RateInterval)
}

// GetTimeout returns the API timeout as a duration.
func (c *Config) GetTimeout() (time.Duration, error) {
	return time.ParseDuration(c.API.Timeout)
}

// GetDebounce returns the autocomplete quiet period as a duration.
func (c *Config) GetDebounce() (time.Duration, error) {
	return time.ParseDuration(c.Search.Debounce)
}

// GetBackupInterval returns the minimum gap between snapshots as a duration.
func (c *Config) GetBackupInterval() (time.Duration, error) {
	return time.ParseDuration(c.Backup.MinInterval)
}

// GetFileBackupInterval returns how often the database file is copied.
func (c *Config) GetFileBackupInterval() (time.Duration, error) {
	return time.ParseDuration(c.Backup.FileInterval)
}
