package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	// GlobalConfigDir is the directory name under XDG_CONFIG_HOME.
	GlobalConfigDir = "locdb"
	// GlobalConfigFile is the config file name.
	GlobalConfigFile = "config.yml"
)

// configCache caches the loaded configuration.
var configCache *Config

// Path returns the path to the config file.
// Respects XDG_CONFIG_HOME, defaults to ~/.config/locdb/config.yml.
// LOCDB_CONFIG overrides both.
func Path() string {
	if p := os.Getenv("LOCDB_CONFIG"); p != "" {
		return ExpandTilde(p)
	}
	configHome := os.Getenv("XDG_CONFIG_HOME")
	if configHome == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return ""
		}
		configHome = filepath.Join(home, ".config")
	}
	return filepath.Join(configHome, GlobalConfigDir, GlobalConfigFile)
}

// Load returns the defaults overlaid by the config file and then by the
// environment. A missing file is not an error. The result is validated
// and cached.
func Load() (*Config, error) {
	if configCache != nil {
		return configCache, nil
	}

	cfg, err := LoadFile(Path())
	if err != nil {
		return nil, err
	}
	if err := applyEnv(cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	configCache = cfg
	return cfg, nil
}

// LoadFile reads the YAML file at path on top of Defaults. Environment
// variables are not applied.
func LoadFile(path string) (*Config, error) {
	cfg := Defaults()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("reading config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}

	cfg.Store.Path = ExpandTilde(cfg.Store.Path)
	cfg.ScanDir = ExpandTilde(cfg.ScanDir)
	return cfg, nil
}

// ResetCache clears the cached configuration.
// Useful for testing.
func ResetCache() {
	configCache = nil
}

// Save writes c as YAML to path, creating the directory if needed.
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("creating config dir: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}
	return nil
}

// applyEnv overlays LOCDB_* variables on cfg.
func applyEnv(cfg *Config) error {
	cfg.Listen = getenv("LOCDB_LISTEN", cfg.Listen)
	cfg.ScanDir = ExpandTilde(getenv("LOCDB_SCAN_DIR", cfg.ScanDir))

	cfg.Store.Driver = getenv("LOCDB_STORE_DRIVER", cfg.Store.Driver)
	cfg.Store.Path = ExpandTilde(getenv("LOCDB_STORE_PATH", cfg.Store.Path))
	cfg.Store.DSN = getenv("LOCDB_DATABASE_URL", cfg.Store.DSN)

	cfg.Crossref.BaseURL = getenv("LOCDB_CROSSREF_URL", cfg.Crossref.BaseURL)
	cfg.Crossref.Mailto = getenv("LOCDB_CROSSREF_MAILTO", cfg.Crossref.Mailto)
	cfg.SWB.BaseURL = getenv("LOCDB_SWB_URL", cfg.SWB.BaseURL)
	cfg.GVI.BaseURL = getenv("LOCDB_GVI_URL", cfg.GVI.BaseURL)
	cfg.K10plus.BaseURL = getenv("LOCDB_K10PLUS_URL", cfg.K10plus.BaseURL)

	var err error
	if cfg.Suggestions.K, err = getenvInt("LOCDB_SUGGESTIONS_K", cfg.Suggestions.K); err != nil {
		return err
	}
	if cfg.Suggestions.Timeout, err = getenvDuration("LOCDB_SUGGESTIONS_TIMEOUT", cfg.Suggestions.Timeout); err != nil {
		return err
	}
	if cfg.Temporal.Enabled, err = getenvBool("LOCDB_TEMPORAL_ENABLED", cfg.Temporal.Enabled); err != nil {
		return err
	}
	cfg.Temporal.Address = getenv("LOCDB_TEMPORAL_ADDRESS", cfg.Temporal.Address)
	cfg.Temporal.Namespace = getenv("LOCDB_TEMPORAL_NAMESPACE", cfg.Temporal.Namespace)
	cfg.Temporal.TaskQueue = getenv("LOCDB_TEMPORAL_TASK_QUEUE", cfg.Temporal.TaskQueue)

	cfg.Log.Level = getenv("LOCDB_LOG_LEVEL", cfg.Log.Level)
	cfg.Log.Format = getenv("LOCDB_LOG_FORMAT", cfg.Log.Format)
	return nil
}

func getenv(k, fallback string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return fallback
}

func getenvInt(k string, fallback int) (int, error) {
	v := os.Getenv(k)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%w: %s=%q is not an integer", ErrInvalid, k, v)
	}
	return n, nil
}

func getenvBool(k string, fallback bool) (bool, error) {
	v := os.Getenv(k)
	if v == "" {
		return fallback, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("%w: %s=%q is not a boolean", ErrInvalid, k, v)
	}
	return b, nil
}

func getenvDuration(k string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(k)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%w: %s=%q is not a duration", ErrInvalid, k, v)
	}
	return d, nil
}

// HelpfulConfigMessage explains where the config file lives.
func HelpfulConfigMessage() string {
	configPath := Path()
	return fmt.Sprintf(`locdb reads its configuration from %s.

Create it with:
  mkdir -p %s
  locdb config init

Every field can be overridden with a LOCDB_* environment variable.`,
		configPath,
		filepath.Dir(configPath))
}
