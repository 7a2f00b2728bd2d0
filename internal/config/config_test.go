package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"
)

func writeTempConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.json")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, s := range specs {
		t.Setenv(s.env, "")
	}
}

// TestDefaults verifies all default values are applied when no config file exists.
func TestDefaults(t *testing.T) {
	clearEnv(t)
	t.Setenv("XDG_DATA_HOME", "/data")

	cfg, err := loadWith(newFileBackend(filepath.Join(t.TempDir(), "missing.json")))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Store.Driver != DriverSQLite {
		t.Errorf("Store.Driver = %q, want %q", cfg.Store.Driver, DriverSQLite)
	}
	if cfg.Store.Path != "/data/prefstate" {
		t.Errorf("Store.Path = %q, want %q", cfg.Store.Path, "/data/prefstate")
	}
	if !cfg.Store.Watch {
		t.Error("Store.Watch = false, want true")
	}
	if cfg.Store.QueueSize != 64 {
		t.Errorf("Store.QueueSize = %d, want 64", cfg.Store.QueueSize)
	}
	if cfg.Server.Addr != "127.0.0.1:4100" {
		t.Errorf("Server.Addr = %q, want %q", cfg.Server.Addr, "127.0.0.1:4100")
	}
	if cfg.Server.ShutdownTimeout != 5 {
		t.Errorf("Server.ShutdownTimeout = %d, want 5", cfg.Server.ShutdownTimeout)
	}
	if cfg.Log.Level != "info" {
		t.Errorf("Log.Level = %q, want %q", cfg.Log.Level, "info")
	}
}

// TestFileParsing verifies that every field is read from the JSON file.
func TestFileParsing(t *testing.T) {
	clearEnv(t)
	path := writeTempConfig(t, `{
  "store.driver": "yaml",
  "store.path": "/tmp/prefs-test",
  "store.watch": false,
  "store.queue_size": 16,
  "server.addr": "0.0.0.0:9000",
  "server.shutdown_timeout": 10,
  "server.token": "from-file",
  "log.level": "debug"
}`)

	cfg, err := loadWith(newFileBackend(path))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Store.Driver != DriverYAML {
		t.Errorf("Store.Driver = %q", cfg.Store.Driver)
	}
	if cfg.Store.Path != "/tmp/prefs-test" {
		t.Errorf("Store.Path = %q", cfg.Store.Path)
	}
	if cfg.Store.Watch {
		t.Error("Store.Watch = true, want false")
	}
	if cfg.Store.QueueSize != 16 {
		t.Errorf("Store.QueueSize = %d", cfg.Store.QueueSize)
	}
	if cfg.Server.Addr != "0.0.0.0:9000" {
		t.Errorf("Server.Addr = %q", cfg.Server.Addr)
	}
	if cfg.Server.ShutdownTimeout != 10 {
		t.Errorf("Server.ShutdownTimeout = %d", cfg.Server.ShutdownTimeout)
	}
	if cfg.Server.Token != "" {
		t.Errorf("Server.Token = %q, want secrets ignored in the file", cfg.Server.Token)
	}
	if cfg.Log.Level != "debug" {
		t.Errorf("Log.Level = %q", cfg.Log.Level)
	}
}

// TestEnvOverride verifies that environment variables override file values.
func TestEnvOverride(t *testing.T) {
	clearEnv(t)
	path := writeTempConfig(t, `{"server.addr": "0.0.0.0:9000", "store.queue_size": 16}`)
	t.Setenv("PREFS_SERVER_ADDR", "127.0.0.1:5000")
	t.Setenv("PREFS_SERVER_TOKEN", "env-token")
	t.Setenv("PREFS_STORE_WATCH", "false")

	cfg, err := loadWith(newFileBackend(path))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Server.Addr != "127.0.0.1:5000" {
		t.Errorf("Server.Addr = %q, want %q", cfg.Server.Addr, "127.0.0.1:5000")
	}
	if cfg.Server.Token != "env-token" {
		t.Errorf("Server.Token = %q, want %q", cfg.Server.Token, "env-token")
	}
	if cfg.Store.Watch {
		t.Error("Store.Watch = true, want false")
	}
	if cfg.Store.QueueSize != 16 {
		t.Errorf("Store.QueueSize = %d, want file value 16", cfg.Store.QueueSize)
	}
}

// TestBadEnvKeepsDefault verifies an unparseable env value falls back to the default.
func TestBadEnvKeepsDefault(t *testing.T) {
	clearEnv(t)
	t.Setenv("PREFS_STORE_QUEUE_SIZE", "lots")

	cfg, err := loadWith(newFileBackend(filepath.Join(t.TempDir(), "missing.json")))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Store.QueueSize != 64 {
		t.Errorf("Store.QueueSize = %d, want default 64", cfg.Store.QueueSize)
	}
}

func TestUnknownDriver(t *testing.T) {
	clearEnv(t)
	t.Setenv("PREFS_STORE_DRIVER", "redis")

	_, err := loadWith(newFileBackend(filepath.Join(t.TempDir(), "missing.json")))
	if err == nil {
		t.Fatal("expected error for unknown driver, got nil")
	}
	if !strings.Contains(err.Error(), `unknown store driver "redis"`) {
		t.Errorf("error = %q", err)
	}
}

func TestSetKey(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "prefstate", "config.json")

	if err := setKeyWith(newFileBackend(path), "store.driver", "yaml"); err != nil {
		t.Fatalf("set store.driver: %v", err)
	}
	if err := setKeyWith(newFileBackend(path), "store.queue_size", "8"); err != nil {
		t.Fatalf("set store.queue_size: %v", err)
	}
	if err := setKeyWith(newFileBackend(path), "store.watch", "no"); err == nil {
		t.Error("set store.watch=no succeeded, want bool parse error")
	}
	if err := setKeyWith(newFileBackend(path), "store.watch", "false"); err != nil {
		t.Fatalf("set store.watch: %v", err)
	}
	if err := setKeyWith(newFileBackend(path), "server.token", "x"); err == nil {
		t.Error("setting a secret succeeded")
	}
	if err := setKeyWith(newFileBackend(path), "nope", "x"); err == nil {
		t.Error("setting an unknown key succeeded")
	}

	cfg, err := loadWith(newFileBackend(path))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Store.Driver != DriverYAML || cfg.Store.QueueSize != 8 || cfg.Store.Watch {
		t.Errorf("config after SetKey = %+v", cfg.Store)
	}
}

func TestShowAllHidesSecrets(t *testing.T) {
	cfg := defaults()
	cfg.Server.Token = "hunter2"

	for _, info := range ShowAll(cfg) {
		if info.Key == "server.token" || info.Value == "hunter2" {
			t.Errorf("ShowAll exposed secret: %+v", info)
		}
	}
	if slices.Contains(ValidKeys(), "server.token") {
		t.Error("ValidKeys contains server.token")
	}
}

func TestSlogLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"WARN":    slog.LevelWarn,
		"error":   slog.LevelError,
		"info":    slog.LevelInfo,
		"verbose": slog.LevelInfo,
	}
	for in, want := range cases {
		cfg := Config{Log: LogConfig{Level: in}}
		if got := cfg.SlogLevel(); got != want {
			t.Errorf("SlogLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestStoreFile(t *testing.T) {
	cfg := Config{Store: StoreConfig{Driver: DriverYAML, Path: "/p"}}
	if got := cfg.StoreFile(); got != "/p/prefs.yaml" {
		t.Errorf("StoreFile() = %q", got)
	}
	cfg.Store.Driver = DriverMemory
	if got := cfg.StoreFile(); got != "" {
		t.Errorf("StoreFile() for memory = %q, want empty", got)
	}
}

func TestFileBoolForms(t *testing.T) {
	clearEnv(t)

	cfg, err := loadWith(newFileBackend(writeTempConfig(t, `{"store.watch": "false"}`)))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Store.Watch {
		t.Error(`"false" string: Store.Watch = true, want false`)
	}

	cfg, err = loadWith(newFileBackend(writeTempConfig(t, `{"store.watch": "off"}`)))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !cfg.Store.Watch {
		t.Error("unparseable bool: Store.Watch = false, want default true")
	}
}

func TestSetKeyUnknownListsValidKeys(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	err := setKeyWith(newFileBackend(path), "store.drvier", "yaml")
	if err == nil || !strings.Contains(err.Error(), "store.driver") {
		t.Errorf("err = %v, want a message listing store.driver", err)
	}
}
