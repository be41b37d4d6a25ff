package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	toml "github.com/pelletier/go-toml/v2"
)

// ClientConfig holds the settings of the todoctl client.
type ClientConfig struct {
	APIBase       string
	Environment   string
	StaleTime     time.Duration
	GCTime        time.Duration
	Retry         int
	MutationRetry int
	Persist       PersistConfig
}

// PersistConfig selects where the dehydrated query cache is kept between runs.
// Kind is "", "file" or "redis".
type PersistConfig struct {
	Kind      string
	Path      string
	RedisAddr string
	RedisKey  string
	MaxAge    time.Duration
}

const (
	defaultClientConfigPath = "~/.config/todoquery/client.toml"
	defaultAPIBase          = "http://127.0.0.1:8080"
	defaultCachePath        = "~/.cache/todoquery/cache.json"
	defaultRedisKey         = "todoquery:cache"
)

// DefaultClient returns the configuration used when no file exists.
func DefaultClient() ClientConfig {
	return ClientConfig{
		APIBase:       defaultAPIBase,
		Environment:   "client",
		StaleTime:     5 * time.Minute,
		GCTime:        10 * time.Minute,
		Retry:         2,
		MutationRetry: 1,
		Persist: PersistConfig{
			Path:     mustExpand(defaultCachePath),
			RedisKey: defaultRedisKey,
			MaxAge:   24 * time.Hour,
		},
	}
}

// LoadClient parses the TOML client config at path (or the default location),
// falling back to defaults when the file is missing.
func LoadClient(path string) (ClientConfig, error) {
	cfg := DefaultClient()

	resolved, err := resolvePath(path)
	if err != nil {
		return ClientConfig{}, err
	}

	file, err := os.Open(resolved)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return ClientConfig{}, fmt.Errorf("open config: %w", err)
	}
	defer file.Close()

	bytes, err := io.ReadAll(file)
	if err != nil {
		return ClientConfig{}, fmt.Errorf("read config: %w", err)
	}

	var raw struct {
		APIBase       string `toml:"api_base"`
		Environment   string `toml:"environment"`
		StaleTime     string `toml:"stale_time"`
		GCTime        string `toml:"gc_time"`
		Retry         *int   `toml:"retry"`
		MutationRetry *int   `toml:"mutation_retry"`
		Persist       struct {
			Kind      string `toml:"kind"`
			Path      string `toml:"path"`
			RedisAddr string `toml:"redis_addr"`
			RedisKey  string `toml:"redis_key"`
			MaxAge    string `toml:"max_age"`
		} `toml:"persist"`
	}
	if err := toml.Unmarshal(bytes, &raw); err != nil {
		return ClientConfig{}, fmt.Errorf("parse config: %w", err)
	}

	if v := strings.TrimSpace(raw.APIBase); v != "" {
		cfg.APIBase = v
	}
	if v := strings.TrimSpace(raw.Environment); v != "" {
		cfg.Environment = v
	}
	if cfg.StaleTime, err = parseDuration("stale_time", raw.StaleTime, cfg.StaleTime); err != nil {
		return ClientConfig{}, err
	}
	if cfg.GCTime, err = parseDuration("gc_time", raw.GCTime, cfg.GCTime); err != nil {
		return ClientConfig{}, err
	}
	if raw.Retry != nil {
		cfg.Retry = *raw.Retry
	}
	if raw.MutationRetry != nil {
		cfg.MutationRetry = *raw.MutationRetry
	}

	cfg.Persist.Kind = strings.ToLower(strings.TrimSpace(raw.Persist.Kind))
	switch cfg.Persist.Kind {
	case "", "file", "redis":
	default:
		return ClientConfig{}, fmt.Errorf("parse config: unknown persist kind %q", raw.Persist.Kind)
	}
	if v := strings.TrimSpace(raw.Persist.Path); v != "" {
		cfg.Persist.Path = mustExpand(v)
	}
	cfg.Persist.RedisAddr = strings.TrimSpace(raw.Persist.RedisAddr)
	if v := strings.TrimSpace(raw.Persist.RedisKey); v != "" {
		cfg.Persist.RedisKey = v
	}
	if cfg.Persist.MaxAge, err = parseDuration("persist.max_age", raw.Persist.MaxAge, cfg.Persist.MaxAge); err != nil {
		return ClientConfig{}, err
	}

	return cfg, nil
}

func parseDuration(field, value string, def time.Duration) (time.Duration, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return def, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("parse config: %s: %w", field, err)
	}
	return d, nil
}

func resolvePath(path string) (string, error) {
	if strings.TrimSpace(path) == "" {
		return expandPath(defaultClientConfigPath)
	}
	return expandPath(path)
}

func mustExpand(path string) string {
	expanded, err := expandPath(path)
	if err != nil {
		return path
	}
	return expanded
}

func expandPath(path string) (string, error) {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return "", fmt.Errorf("path is empty")
	}
	if strings.HasPrefix(trimmed, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home dir: %w", err)
		}
		trimmed = filepath.Join(home, strings.TrimPrefix(trimmed, "~"))
	}
	return filepath.Abs(trimmed)
}
