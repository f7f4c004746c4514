// Package config handles locdb configuration: a YAML file overlaid by
// LOCDB_* environment variables.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Config is the service configuration stored in ~/.config/locdb/config.yml.
type Config struct {
	Listen      string            `yaml:"listen" json:"listen,omitempty"`
	ScanDir     string            `yaml:"scan_dir,omitempty" json:"scan_dir,omitempty"`
	Store       StoreConfig       `yaml:"store" json:"store,omitempty"`
	Crossref    CrossrefConfig    `yaml:"crossref" json:"crossref,omitempty"`
	SWB         AdapterConfig     `yaml:"swb" json:"swb,omitempty"`
	GVI         AdapterConfig     `yaml:"gvi" json:"gvi,omitempty"`
	K10plus     AdapterConfig     `yaml:"k10plus" json:"k10plus,omitempty"`
	Suggestions SuggestionsConfig `yaml:"suggestions" json:"suggestions,omitempty"`
	Temporal    TemporalConfig    `yaml:"temporal" json:"temporal,omitempty"`
	Log         LogConfig         `yaml:"log" json:"log,omitempty"`
}

// StoreConfig selects the persistence backend.
type StoreConfig struct {
	Driver string `yaml:"driver" json:"driver,omitempty"` // sqlite or postgres
	Path   string `yaml:"path,omitempty" json:"path,omitempty"`
	DSN    string `yaml:"dsn,omitempty" json:"dsn,omitempty"`
}

// AdapterConfig configures one external catalogue. An empty BaseURL
// disables the adapter.
type AdapterConfig struct {
	BaseURL   string  `yaml:"base_url,omitempty" json:"base_url,omitempty"`
	Rows      int     `yaml:"rows,omitempty" json:"rows,omitempty"`
	RateLimit float64 `yaml:"rate_limit,omitempty" json:"rate_limit,omitempty"` // requests per second, 0 = client default
}

// CrossrefConfig configures the Crossref REST adapter.
type CrossrefConfig struct {
	AdapterConfig `yaml:",inline"`
	Mailto        string `yaml:"mailto,omitempty" json:"mailto,omitempty"`
}

type SuggestionsConfig struct {
	K       int           `yaml:"k" json:"k,omitempty"`
	Timeout time.Duration `yaml:"timeout" json:"timeout,omitempty"`
}

// TemporalConfig configures background jobs. Jobs are skipped when
// Enabled is false.
type TemporalConfig struct {
	Enabled   bool   `yaml:"enabled" json:"enabled,omitempty"`
	Address   string `yaml:"address,omitempty" json:"address,omitempty"`
	Namespace string `yaml:"namespace,omitempty" json:"namespace,omitempty"`
	TaskQueue string `yaml:"task_queue,omitempty" json:"task_queue,omitempty"`
}

type LogConfig struct {
	Level  string `yaml:"level" json:"level,omitempty"`   // debug, info, warn, error
	Format string `yaml:"format" json:"format,omitempty"` // text or json
}

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"

	DefaultListen       = ":8080"
	DefaultDBFile       = "locdb.db"
	DefaultCrossrefURL  = "https://api.crossref.org"
	DefaultSWBURL       = "https://sru.k10plus.de/swb"
	DefaultK            = 10
	DefaultTimeout      = 20 * time.Second
	DefaultTemporalAddr = "localhost:7233"
	DefaultNamespace    = "default"
	DefaultTaskQueue    = "locdb-jobs"
)

// ErrInvalid is wrapped by every validation failure.
var ErrInvalid = errors.New("invalid configuration")

// Defaults returns the configuration used when no file or variable
// overrides a field.
func Defaults() *Config {
	return &Config{
		Listen: DefaultListen,
		Store: StoreConfig{
			Driver: DriverSQLite,
			Path:   filepath.Join(dataHome(), GlobalConfigDir, DefaultDBFile),
		},
		Crossref: CrossrefConfig{
			AdapterConfig: AdapterConfig{BaseURL: DefaultCrossrefURL, Rows: 20, RateLimit: 10},
		},
		SWB: AdapterConfig{BaseURL: DefaultSWBURL, Rows: 10, RateLimit: 5},
		Suggestions: SuggestionsConfig{
			K:       DefaultK,
			Timeout: DefaultTimeout,
		},
		Temporal: TemporalConfig{
			Address:   DefaultTemporalAddr,
			Namespace: DefaultNamespace,
			TaskQueue: DefaultTaskQueue,
		},
		Log: LogConfig{Level: "info", Format: "text"},
	}
}

// Validate reports the first configuration error found.
func (c *Config) Validate() error {
	switch c.Store.Driver {
	case DriverSQLite:
		if c.Store.Path == "" {
			return fmt.Errorf("%w: store.path is required for the sqlite driver", ErrInvalid)
		}
	case DriverPostgres:
		if c.Store.DSN == "" {
			return fmt.Errorf("%w: store.dsn is required for the postgres driver", ErrInvalid)
		}
	default:
		return fmt.Errorf("%w: unknown store driver %q (want sqlite or postgres)", ErrInvalid, c.Store.Driver)
	}

	for name, a := range c.adapters() {
		if a.BaseURL == "" {
			continue
		}
		u, err := url.Parse(a.BaseURL)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("%w: %s.base_url %q is not an absolute URL", ErrInvalid, name, a.BaseURL)
		}
		if a.Rows < 0 {
			return fmt.Errorf("%w: %s.rows must not be negative", ErrInvalid, name)
		}
		if a.RateLimit < 0 {
			return fmt.Errorf("%w: %s.rate_limit must not be negative", ErrInvalid, name)
		}
	}

	if c.Suggestions.K < 1 {
		return fmt.Errorf("%w: suggestions.k must be at least 1", ErrInvalid)
	}
	if c.Suggestions.Timeout <= 0 {
		return fmt.Errorf("%w: suggestions.timeout must be positive", ErrInvalid)
	}
	if c.Temporal.Enabled && (c.Temporal.Address == "" || c.Temporal.TaskQueue == "") {
		return fmt.Errorf("%w: temporal.address and temporal.task_queue are required when temporal is enabled", ErrInvalid)
	}
	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("%w: unknown log level %q", ErrInvalid, c.Log.Level)
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		return fmt.Errorf("%w: unknown log format %q", ErrInvalid, c.Log.Format)
	}
	return nil
}

func (c *Config) adapters() map[string]AdapterConfig {
	return map[string]AdapterConfig{
		"crossref": c.Crossref.AdapterConfig,
		"swb":      c.SWB,
		"gvi":      c.GVI,
		"k10plus":  c.K10plus,
	}
}

// Redacted returns a copy of c with the password removed from the
// Postgres DSN, for display.
func (c Config) Redacted() Config {
	if u, err := url.Parse(c.Store.DSN); err == nil && u.User != nil {
		c.Store.DSN = u.Redacted()
	}
	return c
}

// ExpandTilde expands a leading ~ to the user's home directory.
func ExpandTilde(path string) string {
	if path == "~" || strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, strings.TrimPrefix(path, "~"))
	}
	return path
}

// dataHome respects XDG_DATA_HOME, defaulting to ~/.local/share.
func dataHome() string {
	if dir := os.Getenv("XDG_DATA_HOME"); dir != "" {
		return dir
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, ".local", "share")
}
