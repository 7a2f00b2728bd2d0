package config

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"slices"
	"strings"
)

// Store drivers.
const (
	DriverSQLite = "sqlite"
	DriverYAML   = "yaml"
	DriverMemory = "memory"
)

var drivers = []string{DriverSQLite, DriverYAML, DriverMemory}

type Config struct {
	Store  StoreConfig
	Server ServerConfig
	Log    LogConfig
}

type StoreConfig struct {
	Driver    string
	Path      string
	Watch     bool
	QueueSize int
}

type ServerConfig struct {
	Addr            string
	Token           string
	ShutdownTimeout int // seconds
}

type LogConfig struct {
	Level string
}

func defaults() Config {
	return Config{
		Store: StoreConfig{
			Driver:    DriverSQLite,
			Path:      defaultDataDir(),
			Watch:     true,
			QueueSize: 64,
		},
		Server: ServerConfig{
			Addr:            "127.0.0.1:4100",
			ShutdownTimeout: 5,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Load reads configuration from the JSON file at
// $XDG_CONFIG_HOME/prefstate/config.json, then applies PREFS_* environment
// variables on top. The server token is only read from the environment.
func Load() (Config, error) {
	return loadWith(newFileBackend(configFilePath()))
}

func loadWith(b ConfigBackend) (Config, error) {
	cfg := defaults()
	if err := applyBackend(&cfg, b); err != nil {
		return Config{}, err
	}
	applyEnvOverrides(&cfg)
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks values that cannot be repaired by falling back to a default.
func (c Config) Validate() error {
	if !slices.Contains(drivers, c.Store.Driver) {
		return fmt.Errorf("unknown store driver %q (want one of %s)", c.Store.Driver, strings.Join(drivers, ", "))
	}
	if c.Store.Driver != DriverMemory && c.Store.Path == "" {
		return fmt.Errorf("store.path is required for driver %q", c.Store.Driver)
	}
	if c.Store.QueueSize <= 0 {
		return fmt.Errorf("store.queue_size must be positive, got %d", c.Store.QueueSize)
	}
	return nil
}

// StoreFile returns the file the configured driver keeps its data in.
func (c Config) StoreFile() string {
	switch c.Store.Driver {
	case DriverYAML:
		return filepath.Join(c.Store.Path, "prefs.yaml")
	case DriverSQLite:
		return filepath.Join(c.Store.Path, "prefs.db")
	}
	return ""
}

// SlogLevel maps log.level to a slog level. Unknown values mean info.
func (c Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.Log.Level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
