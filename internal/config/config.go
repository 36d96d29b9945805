package config

import (
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

// Config is the ambient, non-query configuration for one drwe invocation:
// browser/session defaults and resource bounds (§5, §6.4). HEADLESS itself
// stays a raw env var read by internal/app, per SPEC_FULL.md §2, so it
// isn't duplicated here.
type Config struct {
	Browser          string
	Channel          string
	StorageStatePath string
	WallClockBudget  time.Duration
	NavTimeout       time.Duration
	Strict           bool
	LogLevel         string
}

type rawConfig struct {
	Browser          string `toml:"browser"`
	Channel          string `toml:"channel"`
	StorageStatePath string `toml:"storage_state_path"`
	WallClockBudget  string `toml:"wall_clock_budget"`
	NavTimeout       string `toml:"nav_timeout"`
	Strict           bool   `toml:"strict"`
	LogLevel         string `toml:"log_level"`
}

// Overrides carries CLI-flag values; an empty field means "not set".
type Overrides struct {
	Browser          string
	Channel          string
	StorageStatePath string
	WallClockBudget  string
	NavTimeout       string
	Strict           *bool
	LogLevel         string
}

// Load builds a Config from defaults, then a system TOML file, then
// DRWE_*-prefixed environment variables, then overrides, in that
// precedence order — the same layering as the teacher's config.Load.
func Load(overrides Overrides) (Config, error) {
	cfg := Config{
		Browser:         "chromium",
		WallClockBudget: 2 * time.Minute,
		NavTimeout:      30 * time.Second,
		LogLevel:        "info",
	}

	if err := loadSystemConfig(&cfg); err != nil {
		return Config{}, err
	}
	applyEnv(&cfg)
	applyOverrides(&cfg, overrides)
	return cfg, nil
}

func loadSystemConfig(cfg *Config) error {
	paths := []string{
		"/opt/homebrew/etc/drwe/config.toml",
		"/usr/local/etc/drwe/config.toml",
		"/etc/drwe/config.toml",
	}
	for _, path := range paths {
		if _, err := os.Stat(path); err != nil {
			continue
		}
		var raw rawConfig
		if _, err := toml.DecodeFile(path, &raw); err != nil {
			return err
		}
		mergeRaw(cfg, raw)
		return nil
	}
	return nil
}

func mergeRaw(cfg *Config, raw rawConfig) {
	if raw.Browser != "" {
		cfg.Browser = raw.Browser
	}
	if raw.Channel != "" {
		cfg.Channel = raw.Channel
	}
	if raw.StorageStatePath != "" {
		cfg.StorageStatePath = raw.StorageStatePath
	}
	if d, err := time.ParseDuration(raw.WallClockBudget); err == nil {
		cfg.WallClockBudget = d
	}
	if d, err := time.ParseDuration(raw.NavTimeout); err == nil {
		cfg.NavTimeout = d
	}
	cfg.Strict = raw.Strict
	if raw.LogLevel != "" {
		cfg.LogLevel = raw.LogLevel
	}
}

func applyEnv(cfg *Config) {
	if v := strings.TrimSpace(os.Getenv("DRWE_BROWSER")); v != "" {
		cfg.Browser = v
	}
	if v := strings.TrimSpace(os.Getenv("DRWE_CHANNEL")); v != "" {
		cfg.Channel = v
	}
	if v := strings.TrimSpace(os.Getenv("DRWE_STORAGE_STATE")); v != "" {
		cfg.StorageStatePath = v
	}
	if v := strings.TrimSpace(os.Getenv("DRWE_WALL_CLOCK_BUDGET")); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.WallClockBudget = d
		}
	}
	if v := strings.TrimSpace(os.Getenv("DRWE_NAV_TIMEOUT")); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.NavTimeout = d
		}
	}
	if v := strings.TrimSpace(os.Getenv("DRWE_STRICT")); v != "" {
		cfg.Strict = v == "1" || strings.EqualFold(v, "true")
	}
	if v := strings.TrimSpace(os.Getenv("DRWE_LOG_LEVEL")); v != "" {
		cfg.LogLevel = v
	}
}

func applyOverrides(cfg *Config, o Overrides) {
	if o.Browser != "" {
		cfg.Browser = o.Browser
	}
	if o.Channel != "" {
		cfg.Channel = o.Channel
	}
	if o.StorageStatePath != "" {
		cfg.StorageStatePath = o.StorageStatePath
	}
	if o.WallClockBudget != "" {
		if d, err := time.ParseDuration(o.WallClockBudget); err == nil {
			cfg.WallClockBudget = d
		}
	}
	if o.NavTimeout != "" {
		if d, err := time.ParseDuration(o.NavTimeout); err == nil {
			cfg.NavTimeout = d
		}
	}
	if o.Strict != nil {
		cfg.Strict = *o.Strict
	}
	if o.LogLevel != "" {
		cfg.LogLevel = o.LogLevel
	}
}

// DefaultProfileDir mirrors the teacher's platform-aware writable-directory
// probing. Nothing in this module calls it; Load leaves StorageStatePath
// empty unless the TOML file, DRWE_STORAGE_STATE or a flag sets it.
func DefaultProfileDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "/tmp/drwe"
	}
	if runtime.GOOS == "darwin" {
		return filepath.Join(home, "Library", "Application Support", "drwe")
	}
	if xdg := strings.TrimSpace(os.Getenv("XDG_DATA_HOME")); xdg != "" {
		return filepath.Join(xdg, "drwe")
	}
	return filepath.Join(home, ".local", "share", "drwe")
}
