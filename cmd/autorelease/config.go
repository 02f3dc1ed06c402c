package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// =============================================================================
// Config Types
// =============================================================================

// Config holds all application configuration.
type Config struct {
	Log      LogConfig      `mapstructure:"log"`
	Release  ReleaseConfig  `mapstructure:"release"`
	Cargo    CargoConfig    `mapstructure:"cargo"`
	Registry RegistryConfig `mapstructure:"registry"`
	GitHub   GitHubConfig   `mapstructure:"github"`
	History  HistoryConfig  `mapstructure:"history"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// ReleaseConfig controls when and how releases are published.
type ReleaseConfig struct {
	// Branch is the only branch `ci` publishes from.
	Branch string `mapstructure:"branch"`

	// StrictMetadata rejects publishable packages without description or license.
	StrictMetadata bool `mapstructure:"strict_metadata"`

	// DryRun records the plan without publishing, tagging or pushing.
	DryRun bool `mapstructure:"dry_run"`
}

// CargoConfig holds cargo invocation settings.
type CargoConfig struct {
	Args      []string `mapstructure:"args"`
	DocFlags  string   `mapstructure:"doc_flags"`
	CheckOnly bool     `mapstructure:"check_only"`
	SkipDocs  bool     `mapstructure:"skip_docs"`
	Sudo      bool     `mapstructure:"sudo"`
}

// RegistryConfig holds the package registry credentials.
type RegistryConfig struct {
	// Token is passed to cargo publish. Set via CRATES_IO_TOKEN.
	Token string `mapstructure:"token"`
}

// GitHubConfig holds hosted release settings. Releases are created only
// when both Token and Repository are set.
type GitHubConfig struct {
	Token      string        `mapstructure:"token"`
	Repository string        `mapstructure:"repository"` // owner/name
	APIURL     string        `mapstructure:"api_url"`
	Timeout    time.Duration `mapstructure:"timeout"`
	RetryMax   int           `mapstructure:"retry_max"`
}

// Enabled reports whether hosted releases are configured.
func (c GitHubConfig) Enabled() bool {
	return c.Token != "" && c.Repository != ""
}

// HistoryConfig holds release history storage configuration.
type HistoryConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	DSN     string `mapstructure:"dsn"`
}

// =============================================================================
// Config Loading
// =============================================================================

// LoadConfig loads configuration from file and environment.
func LoadConfig(configPath string) (*Config, error) {
	v := viper.New()

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
	v.SetDefault("release.branch", "main")
	v.SetDefault("release.strict_metadata", false)
	v.SetDefault("release.dry_run", false)
	v.SetDefault("cargo.args", []string{})
	v.SetDefault("cargo.doc_flags", "-D warnings")
	v.SetDefault("cargo.check_only", false)
	v.SetDefault("cargo.skip_docs", false)
	v.SetDefault("cargo.sudo", false)
	v.SetDefault("registry.token", "")
	v.SetDefault("github.token", "")
	v.SetDefault("github.repository", "")
	v.SetDefault("github.api_url", "https://api.github.com")
	v.SetDefault("github.timeout", "30s")
	v.SetDefault("github.retry_max", 3)
	v.SetDefault("history.enabled", true)
	v.SetDefault("history.dsn", "./.autorelease/history.db")

	// Load from file if provided
	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigParseError); ok {
				return nil, fmt.Errorf("failed to parse config file: %w", err)
			}
			// File not found is OK, we'll use defaults
		}
	}

	// Enable environment variable overrides
	v.SetEnvPrefix("AUTORELEASE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Variables CI systems already set
	bindings := map[string][]string{
		"registry.token":    {"AUTORELEASE_REGISTRY_TOKEN", "CRATES_IO_TOKEN"},
		"github.token":      {"AUTORELEASE_GITHUB_TOKEN", "GITHUB_TOKEN"},
		"github.repository": {"AUTORELEASE_GITHUB_REPOSITORY", "GITHUB_REPOSITORY"},
		"cargo.sudo":        {"AUTORELEASE_CARGO_SUDO", "CICD_SUDO"},
	}
	for key, envs := range bindings {
		if err := v.BindEnv(append([]string{key}, envs...)...); err != nil {
			return nil, fmt.Errorf("failed to bind %s: %w", key, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// CI switches are on when set to anything, "0" and "false" included.
	for env, flag := range map[string]*bool{
		"CICD_CHECK_ONLY": &cfg.Cargo.CheckOnly,
		"CICD_SKIP_DOCS":  &cfg.Cargo.SkipDocs,
	} {
		if os.Getenv(env) != "" {
			*flag = true
		}
	}

	return &cfg, nil
}

// =============================================================================
// Logger Setup
// =============================================================================

// SetupLogger creates a logger from the log config. Logs go to w so stdout
// stays free for plan output; verbose forces debug level.
func SetupLogger(cfg *Config, w io.Writer, verbose bool) *slog.Logger {
	level := parseLevel(cfg.Log.Level)
	if verbose {
		level = slog.LevelDebug
	}
	opts := &slog.HandlerOptions{Level: level}

	if strings.EqualFold(cfg.Log.Format, "json") {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// parseLevel maps a level name to a slog level, defaulting to info.
func parseLevel(name string) slog.Level {
	switch strings.ToLower(name) {
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
