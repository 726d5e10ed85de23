// Package config resolves runtime settings from an optional YAML file and
// the process environment. Environment variables take precedence.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the complete runtime configuration.
type Config struct {
	DataPath           string       `yaml:"data_path"`
	EmbedderModel      string       `yaml:"embedder"`
	AllowedOrigins     []string     `yaml:"allowed_origins"`
	Port               string       `yaml:"port"`
	ServerMode         bool         `yaml:"server_mode"`
	LogLevel           string       `yaml:"log_level"`
	RequestTimeoutSecs int          `yaml:"request_timeout_secs"`
	Qdrant             QdrantConfig `yaml:"qdrant"`
}

// QdrantConfig locates the optional Qdrant mirror. An empty host disables it.
type QdrantConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

const (
	DefaultDataPath      = "data/code_samples.json"
	DefaultEmbedderModel = "text-embedding-3-small"
	DefaultPort          = "8000"
	DefaultQdrantPort    = 6334
)

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		DataPath:           DefaultDataPath,
		EmbedderModel:      DefaultEmbedderModel,
		AllowedOrigins:     []string{"*"},
		Port:               DefaultPort,
		ServerMode:         true,
		LogLevel:           "info",
		RequestTimeoutSecs: 60,
		Qdrant:             QdrantConfig{Port: DefaultQdrantPort},
	}
}

// Load builds the configuration: defaults, then the YAML file named by
// CODE_EXPLAINER_CONFIG (if any), then environment variables.
func Load() (*Config, error) {
	cfg := Default()

	if path := os.Getenv("CODE_EXPLAINER_CONFIG"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config file %s: %w", path, err)
		}
	}

	cfg.DataPath = getEnv("CODE_EXPLAINER_DATA", cfg.DataPath)
	cfg.EmbedderModel = getEnv("CODE_EXPLAINER_EMBEDDER", cfg.EmbedderModel)
	if origins := os.Getenv("ALLOWED_ORIGINS"); origins != "" {
		cfg.AllowedOrigins = splitList(origins)
	}
	cfg.Port = getEnv("PORT", cfg.Port)
	cfg.ServerMode = getEnvBool("SERVER_MODE", cfg.ServerMode)
	cfg.LogLevel = getEnv("LOG_LEVEL", cfg.LogLevel)
	cfg.RequestTimeoutSecs = getEnvInt("REQUEST_TIMEOUT_SECS", cfg.RequestTimeoutSecs)
	cfg.Qdrant.Host = getEnv("QDRANT_HOST", cfg.Qdrant.Host)
	cfg.Qdrant.Port = getEnvInt("QDRANT_PORT", cfg.Qdrant.Port)

	applyDefaults(cfg)
	return cfg, nil
}

// RequestTimeout is the per-request deadline enforced by the HTTP server.
func (c *Config) RequestTimeout() time.Duration {
	return time.Duration(c.RequestTimeoutSecs) * time.Second
}

// MirrorEnabled reports whether a Qdrant host is configured.
func (c *Config) MirrorEnabled() bool {
	return c.Qdrant.Host != ""
}

// NewLogger returns a text logger on stderr at the configured level.
func (c *Config) NewLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: parseLevel(c.LogLevel)}))
}

func applyDefaults(cfg *Config) {
	if cfg.DataPath == "" {
		cfg.DataPath = DefaultDataPath
	}
	if cfg.EmbedderModel == "" {
		cfg.EmbedderModel = DefaultEmbedderModel
	}
	if len(cfg.AllowedOrigins) == 0 {
		cfg.AllowedOrigins = []string{"*"}
	}
	if cfg.Port == "" {
		cfg.Port = DefaultPort
	}
	if cfg.RequestTimeoutSecs <= 0 {
		cfg.RequestTimeoutSecs = 60
	}
	if cfg.Qdrant.Port == 0 {
		cfg.Qdrant.Port = DefaultQdrantPort
	}
}

func parseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	return slog.LevelInfo
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func getEnv(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if v := os.Getenv(key); v != "" {
		var i int
		if _, err := fmt.Sscanf(v, "%d", &i); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	switch strings.ToLower(os.Getenv(key)) {
	case "true", "1", "yes":
		return true
	case "false", "0", "no":
		return false
	}
	return defaultValue
}
