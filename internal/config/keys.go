package config

import (
	"fmt"
	"os"
	"slices"
	"strconv"
	"strings"
)

type keyType int

const (
	kString keyType = iota
	kInt
	kBool
)

type keySpec struct {
	key     string
	typ     keyType
	env     string
	secret  bool
	apply   func(cfg *Config, v any)
	extract func(cfg Config) any
}

var specs = []keySpec{
	{
		key: "store.driver", typ: kString, env: "PREFS_STORE_DRIVER",
		apply:   func(cfg *Config, v any) { cfg.Store.Driver = v.(string) },
		extract: func(cfg Config) any { return cfg.Store.Driver },
	},
	{
		key: "store.path", typ: kString, env: "PREFS_STORE_PATH",
		apply:   func(cfg *Config, v any) { cfg.Store.Path = v.(string) },
		extract: func(cfg Config) any { return cfg.Store.Path },
	},
	{
		key: "store.watch", typ: kBool, env: "PREFS_STORE_WATCH",
		apply:   func(cfg *Config, v any) { cfg.Store.Watch = v.(bool) },
		extract: func(cfg Config) any { return cfg.Store.Watch },
	},
	{
		key: "store.queue_size", typ: kInt, env: "PREFS_STORE_QUEUE_SIZE",
		apply:   func(cfg *Config, v any) { cfg.Store.QueueSize = v.(int) },
		extract: func(cfg Config) any { return cfg.Store.QueueSize },
	},
	{
		key: "server.addr", typ: kString, env: "PREFS_SERVER_ADDR",
		apply:   func(cfg *Config, v any) { cfg.Server.Addr = v.(string) },
		extract: func(cfg Config) any { return cfg.Server.Addr },
	},
	{
		key: "server.token", typ: kString, env: "PREFS_SERVER_TOKEN",
		secret:  true,
		apply:   func(cfg *Config, v any) { cfg.Server.Token = v.(string) },
		extract: func(cfg Config) any { return cfg.Server.Token },
	},
	{
		key: "server.shutdown_timeout", typ: kInt, env: "PREFS_SERVER_SHUTDOWN_TIMEOUT",
		apply:   func(cfg *Config, v any) { cfg.Server.ShutdownTimeout = v.(int) },
		extract: func(cfg Config) any { return cfg.Server.ShutdownTimeout },
	},
	{
		key: "log.level", typ: kString, env: "PREFS_LOG_LEVEL",
		apply:   func(cfg *Config, v any) { cfg.Log.Level = v.(string) },
		extract: func(cfg Config) any { return cfg.Log.Level },
	},
}

func applyBackend(cfg *Config, b ConfigBackend) error {
	for _, s := range specs {
		if s.secret {
			continue
		}
		switch s.typ {
		case kString:
			v, ok, err := b.GetString(s.key)
			if err != nil {
				return fmt.Errorf("reading %s: %w", s.key, err)
			}
			if ok {
				s.apply(cfg, v)
			}
		case kInt:
			v, ok, err := b.GetInt(s.key)
			if err != nil {
				return fmt.Errorf("reading %s: %w", s.key, err)
			}
			if ok {
				s.apply(cfg, v)
			}
		case kBool:
			v, ok, err := b.GetBool(s.key)
			if err != nil {
				fmt.Fprintf(os.Stderr, "[WARN] could not parse bool from config key %s: %v. Using default value.\n", s.key, err)
				continue
			}
			if ok {
				s.apply(cfg, v)
			}
		}
	}
	return nil
}

func applyEnvOverrides(cfg *Config) {
	for _, s := range specs {
		raw := os.Getenv(s.env)
		if s.env == "" || raw == "" {
			continue
		}
		v, err := s.parse(raw)
		if err != nil {
			fmt.Fprintf(os.Stderr, "[WARN] ignoring env var %s=%q: %v. Using default value.\n", s.env, raw, err)
			continue
		}
		s.apply(cfg, v)
	}
}

// parse converts text from the environment or the command line to the
// key's type.
func (s keySpec) parse(raw string) (any, error) {
	switch s.typ {
	case kInt:
		i, err := strconv.Atoi(raw)
		if err != nil {
			return nil, fmt.Errorf("%s wants an integer: %w", s.key, err)
		}
		return i, nil
	case kBool:
		b, err := strconv.ParseBool(raw)
		if err != nil {
			return nil, fmt.Errorf("%s wants true or false: %w", s.key, err)
		}
		return b, nil
	default:
		return raw, nil
	}
}

// save writes v, as returned by parse, through b.
func (s keySpec) save(b ConfigBackend, v any) error {
	switch v := v.(type) {
	case int:
		return b.SetInt(s.key, v)
	case bool:
		return b.SetBool(s.key, v)
	default:
		return b.SetString(s.key, v.(string))
	}
}

func lookupSpec(key string) (keySpec, bool) {
	i := slices.IndexFunc(specs, func(s keySpec) bool { return s.key == key })
	if i < 0 {
		return keySpec{}, false
	}
	return specs[i], true
}

// KeyInfo describes a config key for display purposes.
type KeyInfo struct {
	Key    string
	EnvVar string
	Value  string
}

// ShowAll returns every non-secret key with its value in cfg, in table order.
func ShowAll(cfg Config) []KeyInfo {
	out := make([]KeyInfo, 0, len(specs))
	for _, s := range specs {
		if !s.secret {
			out = append(out, KeyInfo{Key: s.key, EnvVar: s.env, Value: fmt.Sprint(s.extract(cfg))})
		}
	}
	return out
}

// ValidKeys returns the names accepted by SetKey.
func ValidKeys() []string {
	var keys []string
	for _, info := range ShowAll(Config{}) {
		keys = append(keys, info.Key)
	}
	return keys
}

// SetKey parses value for key and writes it to the config file.
func SetKey(key, value string) error {
	return setKeyWith(newFileBackend(configFilePath()), key, value)
}

func setKeyWith(b ConfigBackend, key, value string) error {
	s, ok := lookupSpec(key)
	switch {
	case !ok:
		return fmt.Errorf("unknown config key %q (valid keys: %s)", key, strings.Join(ValidKeys(), ", "))
	case s.secret:
		return fmt.Errorf("%s is secret and only read from %s", key, s.env)
	}
	v, err := s.parse(value)
	if err != nil {
		return err
	}
	return s.save(b, v)
}
