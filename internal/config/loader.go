package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	toml "github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// Config holds runtime parameters for the proxy.
// Zero values mean "unspecified" and will be replaced by defaults in main.
type Config struct {
	Addr            string `json:"addr" yaml:"addr" toml:"addr"`
	UpstreamURL     string `json:"upstream_url" yaml:"upstream_url" toml:"upstream_url"`
	DefaultModel    string `json:"default_model" yaml:"default_model" toml:"default_model"`
	GenerateTimeout int    `json:"generate_timeout_s" yaml:"generate_timeout_s" toml:"generate_timeout_s"`
	MaxBodyBytes    int64  `json:"max_body_bytes" yaml:"max_body_bytes" toml:"max_body_bytes"`
	ModelCacheTTL   int    `json:"model_cache_ttl_s" yaml:"model_cache_ttl_s" toml:"model_cache_ttl_s"`
	LogLevel        string `json:"log_level" yaml:"log_level" toml:"log_level"`

	CORS CORSConfig `json:"cors" yaml:"cors" toml:"cors"`
}

// CORSConfig mirrors the browser-facing CORS policy. Disabled is the
// explicit opt-out; an all-zero block keeps CORS on with permissive defaults.
type CORSConfig struct {
	Disabled       bool     `json:"disabled" yaml:"disabled" toml:"disabled"`
	AllowedOrigins []string `json:"allowed_origins" yaml:"allowed_origins" toml:"allowed_origins"`
	AllowedMethods []string `json:"allowed_methods" yaml:"allowed_methods" toml:"allowed_methods"`
	AllowedHeaders []string `json:"allowed_headers" yaml:"allowed_headers" toml:"allowed_headers"`
}

// Defaults returns the built-in configuration the daemon starts from.
func Defaults() Config {
	return Config{
		Addr:            ":3335",
		UpstreamURL:     "http://localhost:11434",
		DefaultModel:    "llama2",
		GenerateTimeout: 60,
		MaxBodyBytes:    1 << 20,
		ModelCacheTTL:   0,
		LogLevel:        "info",
		CORS: CORSConfig{
			AllowedOrigins: []string{"*"},
			AllowedMethods: []string{"GET", "POST", "OPTIONS"},
			AllowedHeaders: []string{"*"},
		},
	}
}

// Load reads a configuration file based on its extension.
// Supports: .yaml/.yml, .json, .toml
func Load(path string) (Config, error) {
	var cfg Config
	if path == "" {
		return cfg, fmt.Errorf("empty config path")
	}
	p, err := expandHome(path)
	if err != nil {
		return cfg, err
	}
	b, err := os.ReadFile(p)
	if err != nil {
		return cfg, err
	}
	switch ext := strings.ToLower(filepath.Ext(p)); ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return cfg, err
		}
	case ".json":
		if err := json.Unmarshal(b, &cfg); err != nil {
			return cfg, err
		}
	case ".toml":
		if err := toml.Unmarshal(b, &cfg); err != nil {
			return cfg, err
		}
	default:
		return cfg, fmt.Errorf("unsupported config extension: %s", ext)
	}
	return cfg, nil
}

// Merge overlays non-zero fields of b onto a and returns the result.
// Used so file values win over defaults and flag values win over both.
func Merge(a, b Config) Config {
	if b.Addr != "" {
		a.Addr = b.Addr
	}
	if b.UpstreamURL != "" {
		a.UpstreamURL = b.UpstreamURL
	}
	if b.DefaultModel != "" {
		a.DefaultModel = b.DefaultModel
	}
	if b.GenerateTimeout != 0 {
		a.GenerateTimeout = b.GenerateTimeout
	}
	if b.MaxBodyBytes != 0 {
		a.MaxBodyBytes = b.MaxBodyBytes
	}
	if b.ModelCacheTTL != 0 {
		a.ModelCacheTTL = b.ModelCacheTTL
	}
	if b.LogLevel != "" {
		a.LogLevel = b.LogLevel
	}
	if b.CORS.Disabled {
		a.CORS.Disabled = true
	}
	if len(b.CORS.AllowedOrigins) > 0 {
		a.CORS.AllowedOrigins = b.CORS.AllowedOrigins
	}
	if len(b.CORS.AllowedMethods) > 0 {
		a.CORS.AllowedMethods = b.CORS.AllowedMethods
	}
	if len(b.CORS.AllowedHeaders) > 0 {
		a.CORS.AllowedHeaders = b.CORS.AllowedHeaders
	}
	return a
}

// expandHome expands a leading '~' to the user's home directory.
func expandHome(path string) (string, error) {
	if path == "" {
		return path, nil
	}
	if path[0] != '~' {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("home dir: %w", err)
	}
	if path == "~" {
		return home, nil
	}
	// handle cases like ~/etc/llmproxy.yaml
	return filepath.Join(home, strings.TrimPrefix(path, "~/")), nil
}
