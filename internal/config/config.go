package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all cardvault configuration.
type Config struct {
	// HTTP server
	Server ServerConfig `yaml:"server"`

	// Persistence backend
	Store StoreConfig `yaml:"store"`

	// Collection service behavior
	Collection CollectionConfig `yaml:"collection"`

	// Logging
	Logging LoggingConfig `yaml:"logging"`
}

// ServerConfig configures the HTTP listener.
type ServerConfig struct {
	Port            string `yaml:"port"`
	ShutdownTimeout string `yaml:"shutdown_timeout"`
	// Mode is the gin mode: debug, release or test.
	Mode string `yaml:"mode"`
}

// StoreConfig selects and tunes the collection store.
type StoreConfig struct {
	Driver          string `yaml:"driver"` // memory, sqlite
	Path            string `yaml:"path"`
	MaxOpenConns    int    `yaml:"max_open_conns"`
	MaxIdleConns    int    `yaml:"max_idle_conns"`
	ConnMaxLifetime string `yaml:"conn_max_lifetime"`
	BusyTimeout     string `yaml:"busy_timeout"`
}

// CollectionConfig configures the collection service.
type CollectionConfig struct {
	DefaultScope      string `yaml:"default_scope"`
	Timeout           string `yaml:"timeout"`
	RefreshAfterWrite bool   `yaml:"refresh_after_write"`
	// Sheet rendering
	SheetMaxCards   int      `yaml:"sheet_max_cards"`
	SheetWorkers    int      `yaml:"sheet_workers"`
	SheetImageHosts []string `yaml:"sheet_image_hosts"`
}

// LoggingConfig configures the zap logger.
type LoggingConfig struct {
	Level       string `yaml:"level"` // debug, info, warn, error
	Development bool   `yaml:"development"`
}

// MaxSheetCards caps the entries drawn on one collection sheet.
const MaxSheetCards = 500

// DefaultConfig returns sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            "8080",
			ShutdownTimeout: "5s",
			Mode:            "release",
		},
		Store: StoreConfig{
			Driver:          "sqlite",
			Path:            "data/cardvault.db",
			MaxOpenConns:    4,
			MaxIdleConns:    2,
			ConnMaxLifetime: "1h",
			BusyTimeout:     "5s",
		},
		Collection: CollectionConfig{
			DefaultScope:  "default",
			Timeout:       "5s",
			SheetMaxCards: 50,
			SheetWorkers:  4,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Load reads configuration from a YAML file over the defaults, then applies
// environment overrides. A missing file is not an error when path is empty.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	}

	cfg.applyEnvOverrides()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnvOverrides lets deployments override the file without editing it.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("PORT"); v != "" {
		c.Server.Port = v
	}
	if v := os.Getenv("CARDVAULT_STORE"); v != "" {
		c.Store.Driver = v
	}
	if v := os.Getenv("CARDVAULT_DB_PATH"); v != "" {
		c.Store.Path = v
	}
	if v := os.Getenv("CARDVAULT_SCOPE"); v != "" {
		c.Collection.DefaultScope = v
	}
	if v := os.Getenv("CARDVAULT_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
}

// Validate checks values that would otherwise fail late.
func (c *Config) Validate() error {
	switch strings.ToLower(c.Store.Driver) {
	case "memory":
	case "sqlite":
		if c.Store.Path == "" {
			return fmt.Errorf("store.path is required for the sqlite driver")
		}
		if c.Store.MaxOpenConns < 1 {
			return fmt.Errorf("store.max_open_conns must be at least 1, got %d", c.Store.MaxOpenConns)
		}
	default:
		return fmt.Errorf("unknown store driver %q (want memory or sqlite)", c.Store.Driver)
	}
	if strings.TrimSpace(c.Collection.DefaultScope) == "" {
		return fmt.Errorf("collection.default_scope must not be empty")
	}
	if c.Collection.SheetMaxCards < 1 || c.Collection.SheetMaxCards > MaxSheetCards {
		return fmt.Errorf("collection.sheet_max_cards must be between 1 and %d, got %d", MaxSheetCards, c.Collection.SheetMaxCards)
	}
	if c.Collection.SheetWorkers < 1 {
		return fmt.Errorf("collection.sheet_workers must be at least 1, got %d", c.Collection.SheetWorkers)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("unknown logging.level %q", c.Logging.Level)
	}
	for name, v := range map[string]string{
		"server.shutdown_timeout": c.Server.ShutdownTimeout,
		"store.conn_max_lifetime": c.Store.ConnMaxLifetime,
		"store.busy_timeout":      c.Store.BusyTimeout,
		"collection.timeout":      c.Collection.Timeout,
	} {
		if v == "" {
			continue
		}
		if _, err := time.ParseDuration(v); err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
	}
	return nil
}

// GetCollectionTimeout returns the per-call deadline.
func (c *Config) GetCollectionTimeout() time.Duration {
	return parseDurationOr(c.Collection.Timeout, 5*time.Second)
}

// GetShutdownTimeout returns how long the server drains on shutdown.
func (c *Config) GetShutdownTimeout() time.Duration {
	return parseDurationOr(c.Server.ShutdownTimeout, 5*time.Second)
}

// GetConnMaxLifetime returns the SQLite connection lifetime.
func (c *Config) GetConnMaxLifetime() time.Duration {
	return parseDurationOr(c.Store.ConnMaxLifetime, time.Hour)
}

// GetBusyTimeout returns the SQLite busy timeout.
func (c *Config) GetBusyTimeout() time.Duration {
	return parseDurationOr(c.Store.BusyTimeout, 5*time.Second)
}

func parseDurationOr(s string, def time.Duration) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return def
	}
	return d
}
