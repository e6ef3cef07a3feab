// Package config provides layered configuration loading.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Default endpoints for the IBM Video Streaming platform.
const (
	DefaultBaseURL          = "https://api.video.ibm.com"
	DefaultAnalyticsBaseURL = "https://analytics-api.video.ibm.com"
	DefaultTokenURL         = "https://video.ibm.com/oauth2/token"
	DefaultDeviceName       = "ivsctl"
)

// Config holds the resolved configuration.
type Config struct {
	// API settings
	BaseURL          string `json:"base_url"`
	AnalyticsBaseURL string `json:"analytics_base_url"`
	TokenURL         string `json:"token_url"`
	DeviceName       string `json:"device_name"`

	// Request settings
	TimeoutSeconds int `json:"timeout_seconds"`
	PageSize       int `json:"page_size"`

	// Output settings
	Format string `json:"format"`

	// Sources tracks where each value came from (for debugging).
	Sources map[string]string `json:"-"`
}

// Source indicates where a config value came from.
type Source string

const (
	SourceDefault Source = "default"
	SourceGlobal  Source = "global"
	SourceEnv     Source = "env"
	SourceFlag    Source = "flag"
)

// FlagOverrides holds command-line flag values.
type FlagOverrides struct {
	BaseURL          string
	AnalyticsBaseURL string
	TokenURL         string
	Format           string
}

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		BaseURL:          DefaultBaseURL,
		AnalyticsBaseURL: DefaultAnalyticsBaseURL,
		TokenURL:         DefaultTokenURL,
		DeviceName:       DefaultDeviceName,
		TimeoutSeconds:   30,
		PageSize:         50,
		Format:           "json",
		Sources:          make(map[string]string),
	}
}

// Load loads configuration from all sources with proper precedence.
// Precedence: flags > env > global file > defaults
func Load(overrides FlagOverrides) (*Config, error) {
	cfg := Default()

	loadFromFile(cfg, GlobalConfigPath(), SourceGlobal)
	LoadFromEnv(cfg)
	ApplyOverrides(cfg, overrides)

	return cfg, nil
}

// Timeout returns the request timeout as a duration.
func (cfg *Config) Timeout() time.Duration {
	if cfg.TimeoutSeconds <= 0 {
		return 30 * time.Second
	}
	return time.Duration(cfg.TimeoutSeconds) * time.Second
}

func loadFromFile(cfg *Config, path string, source Source) {
	data, err := os.ReadFile(path) //nolint:gosec // G304: Path is from trusted config locations
	if err != nil {
		return // File doesn't exist, skip
	}

	var fileCfg map[string]any
	if err := json.Unmarshal(data, &fileCfg); err != nil {
		fmt.Fprintf(os.Stderr, "warning: skipping malformed config at %s: %v\n", path, err)
		return
	}

	setString := func(key string, dst *string) {
		if v, ok := fileCfg[key].(string); ok && v != "" {
			*dst = v
			cfg.Sources[key] = string(source)
		}
	}
	setString("base_url", &cfg.BaseURL)
	setString("analytics_base_url", &cfg.AnalyticsBaseURL)
	setString("token_url", &cfg.TokenURL)
	setString("device_name", &cfg.DeviceName)
	setString("format", &cfg.Format)

	setInt := func(key string, dst *int) {
		if v, ok := fileCfg[key].(float64); ok && v > 0 {
			*dst = int(v)
			cfg.Sources[key] = string(source)
		}
	}
	setInt("timeout_seconds", &cfg.TimeoutSeconds)
	setInt("page_size", &cfg.PageSize)
}

// LoadFromEnv loads configuration from environment variables.
func LoadFromEnv(cfg *Config) {
	if v := os.Getenv("IVS_API_BASE_URL"); v != "" {
		cfg.BaseURL = v
		cfg.Sources["base_url"] = string(SourceEnv)
	}
	if v := os.Getenv("IVS_ANALYTICS_BASE_URL"); v != "" {
		cfg.AnalyticsBaseURL = v
		cfg.Sources["analytics_base_url"] = string(SourceEnv)
	}
	if v := os.Getenv("IVS_TOKEN_URL"); v != "" {
		cfg.TokenURL = v
		cfg.Sources["token_url"] = string(SourceEnv)
	}
	if v := os.Getenv("IVS_DEVICE_NAME"); v != "" {
		cfg.DeviceName = v
		cfg.Sources["device_name"] = string(SourceEnv)
	}
}

// ApplyOverrides applies non-empty flag overrides to cfg.
func ApplyOverrides(cfg *Config, o FlagOverrides) {
	if o.BaseURL != "" {
		cfg.BaseURL = o.BaseURL
		cfg.Sources["base_url"] = string(SourceFlag)
	}
	if o.AnalyticsBaseURL != "" {
		cfg.AnalyticsBaseURL = o.AnalyticsBaseURL
		cfg.Sources["analytics_base_url"] = string(SourceFlag)
	}
	if o.TokenURL != "" {
		cfg.TokenURL = o.TokenURL
		cfg.Sources["token_url"] = string(SourceFlag)
	}
	if o.Format != "" {
		cfg.Format = o.Format
		cfg.Sources["format"] = string(SourceFlag)
	}
}

// Set updates a single key in the global config file.
func Set(key, value string) error {
	path := GlobalConfigPath()

	fileCfg := make(map[string]any)
	if data, err := os.ReadFile(path); err == nil { //nolint:gosec // G304: trusted config path
		_ = json.Unmarshal(data, &fileCfg)
	}

	switch key {
	case "base_url", "analytics_base_url", "token_url", "device_name", "format":
		fileCfg[key] = value
	case "timeout_seconds", "page_size":
		var n int
		if _, err := fmt.Sscanf(value, "%d", &n); err != nil || n <= 0 {
			return fmt.Errorf("%s must be a positive integer", key)
		}
		fileCfg[key] = n
	default:
		return fmt.Errorf("unknown config key: %s", key)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}
	data, err := json.MarshalIndent(fileCfg, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0600)
}

// GlobalConfigDir returns the global config directory path.
func GlobalConfigDir() string {
	configDir := os.Getenv("XDG_CONFIG_HOME")
	if configDir == "" {
		home, _ := os.UserHomeDir()
		configDir = filepath.Join(home, ".config")
	}
	return filepath.Join(configDir, "ivsctl")
}

// GlobalConfigPath returns the global config file path.
func GlobalConfigPath() string {
	return filepath.Join(GlobalConfigDir(), "config.json")
}

// NormalizeBaseURL ensures consistent URL format (no trailing slash).
func NormalizeBaseURL(url string) string {
	return strings.TrimSuffix(url, "/")
}
