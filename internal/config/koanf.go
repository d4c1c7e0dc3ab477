// Audiographus - Multi-Source Music Scrobble Router
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/audiographus

package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// configFileNames lists the file names searched inside the config directory,
// in order of priority. The YAML parser handles all three: YAML 1.2 is a
// superset of JSON, so config.json parses through the same code path.
var configFileNames = []string{
	"config.yaml",
	"config.yml",
	"config.json",
}

// Environment variables that pick the config location rather than a value
// inside it.
const (
	ConfigPathEnvVar = "CONFIG_PATH"
	ConfigDirEnvVar  = "CONFIG_DIR"
	dockerConfigDir  = "/config"
)

// defaultConfig returns a Config struct with all sensible default values.
// These defaults are applied first, then overridden by config file and env vars.
func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:    DefaultHost,
			Port:    DefaultPort,
			Timeout: DefaultTimeout,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
			Caller: false,
		},
		API: APIConfig{
			CORSOrigins: []string{"*"},
			RateLimit: RateLimitConfig{
				Dashboard: 300,
				Webhooks:  100,
				Auth:      20,
			},
		},
		Notifier: NotifierConfig{
			Webhook: WebhookNotifierConfig{
				Enabled: false,
				Timeout: 10 * time.Second,
			},
		},
		DeadLetter: DeadLetterConfig{
			RetryInterval: DefaultRetryInterval,
		},
		SourceDefaults: SourceOptions{
			Interval:        DefaultPollInterval,
			MaxInterval:     DefaultMaxPollInterval,
			RetryMultiplier: DefaultRetryMultiplier,
			PlayerExpiry:    DefaultPlayerExpiry,
		},
		ClientDefaults: ClientOptions{
			ScrobbleDelay:     DefaultScrobbleDelay,
			DeadLetterRetries: DefaultDeadLetterRetries,
			MaxPollRetries:    DefaultMaxPollRetries,
			RetryMultiplier:   DefaultRetryMultiplier,
			RefreshLimit:      DefaultRefreshLimit,
		},
	}
}

// Load loads configuration using Koanf v2 with layered sources:
//  1. Defaults: Built-in sensible defaults
//  2. Config File: Optional YAML/JSON config file (if exists)
//  3. Environment Variables: Override any setting
//
// The returned Config has per-source and per-client defaults resolved and has
// passed validation.
func Load() (*Config, error) {
	return LoadFrom(findConfigFile())
}

// LoadFrom loads configuration the same way as Load but from an explicit file
// path. An empty path skips the file layer.
func LoadFrom(configPath string) (*Config, error) {
	k := koanf.New(".")

	// Layer 1: Load defaults from struct
	defaults := defaultConfig()
	if err := k.Load(structs.Provider(defaults, "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	// Layer 2: Load config file (optional)
	if configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	}

	// Layer 3: Load environment variables (highest priority)
	envProvider := env.Provider("", ".", envTransformFunc)
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	// Post-process slice fields from comma-separated strings
	if err := processSliceFields(k); err != nil {
		return nil, fmt.Errorf("failed to process slice fields: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	applyEnvironmentPolicy(cfg, configPath)
	cfg.resolveDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// applyEnvironmentPolicy settles values that depend on where the process is
// running rather than on any one config key.
func applyEnvironmentPolicy(cfg *Config, configPath string) {
	// Container deployments bind all interfaces and log machine-readably.
	if cfg.Server.IsDocker {
		cfg.Server.Host = "0.0.0.0"
		cfg.Logging.Format = "json"
	}

	if cfg.Server.ConfigDir == "" {
		cfg.Server.ConfigDir = configDir(configPath)
	}
	if cfg.DeadLetter.Path == "" {
		cfg.DeadLetter.Path = filepath.Join(cfg.Server.ConfigDir, "deadletter")
	}
}

// configDir resolves the directory holding persistent state: CONFIG_DIR env
// var first, then the directory of the loaded config file, then /config under
// Docker, then the working directory.
func configDir(configPath string) string {
	if dir := os.Getenv(ConfigDirEnvVar); dir != "" {
		return dir
	}
	if configPath != "" {
		return filepath.Dir(configPath)
	}
	if isDockerEnv() {
		return dockerConfigDir
	}
	return "."
}

// findConfigFile searches for a config file.
// Returns the path to the first file found, or empty string if none found.
func findConfigFile() string {
	// Check explicit path first
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}

	var dirs []string
	if dir := os.Getenv(ConfigDirEnvVar); dir != "" {
		dirs = append(dirs, dir)
	}
	if isDockerEnv() {
		dirs = append(dirs, dockerConfigDir)
	}
	dirs = append(dirs, ".")

	for _, dir := range dirs {
		for _, name := range configFileNames {
			path := filepath.Join(dir, name)
			if _, err := os.Stat(path); err == nil {
				return path
			}
		}
	}

	return ""
}

func isDockerEnv() bool {
	v := strings.ToLower(os.Getenv("IS_DOCKER"))
	return v == "true" || v == "1" || v == "yes"
}

// sliceConfigPaths defines which config paths should be parsed as comma-separated slices
var sliceConfigPaths = []string{
	"api.corsOrigins",
	"notifier.webhook.events",
}

// processSliceFields converts comma-separated string values to slices for known slice fields.
// This is necessary because env vars come in as strings, but the config expects slices.
func processSliceFields(k *koanf.Koanf) error {
	for _, path := range sliceConfigPaths {
		val := k.Get(path)
		if val == nil {
			continue
		}

		// If it's already a slice (from the config file), skip
		if _, ok := val.([]interface{}); ok {
			continue
		}
		if _, ok := val.([]string); ok {
			continue
		}

		// If it's a string, split by comma
		if strVal, ok := val.(string); ok {
			if strVal == "" {
				continue
			}
			parts := strings.Split(strVal, ",")
			trimmed := make([]string, 0, len(parts))
			for _, p := range parts {
				p = strings.TrimSpace(p)
				if p != "" {
					trimmed = append(trimmed, p)
				}
			}
			if len(trimmed) > 0 {
				if err := k.Set(path, trimmed); err != nil {
					return fmt.Errorf("failed to set %s: %w", path, err)
				}
			}
		}
	}
	return nil
}

// envTransformFunc transforms environment variable names to koanf config paths.
//
// Two schemes are recognized. Short names cover the settings operators touch
// most:
//
//   - PORT -> server.port
//   - LOG_LEVEL -> logging.level
//   - BASE_URL -> server.baseUrl
//
// AG_-prefixed names address any nested key by replacing underscores with
// dots, so AG_SERVER_PORT -> server.port and AG_LOGGING_LEVEL ->
// logging.level. Segments must match the lowercase koanf key exactly;
// camel-cased keys like baseUrl are reachable only through their short name.
func envTransformFunc(key string) string {
	lower := strings.ToLower(key)

	envMappings := map[string]string{
		// Server mappings
		"port":         "server.port",
		"host":         "server.host",
		"base_url":     "server.baseUrl",
		"config_dir":   "server.configDir",
		"is_docker":    "server.isDocker",
		"creds_secret": "server.credsSecret",

		// Logging mappings
		"log_level":  "logging.level",
		"log_format": "logging.format",
		"log_caller": "logging.caller",

		// API mappings
		"api_token":    "api.token",
		"cors_origins": "api.corsOrigins",

		// Notifier mappings
		"webhook_enabled": "notifier.webhook.enabled",
		"webhook_url":     "notifier.webhook.url",
		"webhook_events":  "notifier.webhook.events",

		// Dead-letter mappings
		"dead_letter_path":           "deadLetter.path",
		"dead_letter_retry_interval": "deadLetter.retryInterval",
	}

	if mapped, ok := envMappings[lower]; ok {
		return mapped
	}

	// Deep overrides: AG_SECTION_KEY -> section.key
	if rest, ok := strings.CutPrefix(lower, "ag_"); ok && rest != "" {
		return strings.ReplaceAll(rest, "_", ".")
	}

	// For unmapped keys, return empty string to skip them
	// This prevents random environment variables from polluting config
	return ""
}
