// Package config loads opsdeck configuration from an optional YAML file
// with OPSDECK_-prefixed environment variables layered on top.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

type Config struct {
	Feed    FeedConfig    `koanf:"feed"`
	Chaos   ChaosConfig   `koanf:"chaos"`
	Server  ServerConfig  `koanf:"server"`
	Storage StorageConfig `koanf:"storage"`
	Log     LogConfig     `koanf:"log"`
}

type FeedConfig struct {
	// URL is the websocket endpoint of the ops backend. Local development
	// and production differ only in configuration, never in code.
	URL            string `koanf:"url"`
	ReconnectDelay string `koanf:"reconnect_delay"` // Duration string like "3s"
	EscalationTTL  string `koanf:"escalation_ttl"`  // Duration string like "10s"
}

type ChaosConfig struct {
	BaseURL string `koanf:"base_url"`
}

type ServerConfig struct {
	Port int `koanf:"port"`
}

type StorageConfig struct {
	// Path is the SQLite database file. Empty disables persistence.
	Path string `koanf:"path"`
}

type LogConfig struct {
	Level string `koanf:"level"`
}

// Load reads configPath if it exists, then applies environment overrides
// (OPSDECK_FEED__URL sets feed.url, and so on).
func Load(configPath string) (*Config, error) {
	k := koanf.New(".")

	if configPath != "" {
		if _, err := os.Stat(configPath); err == nil {
			if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
				return nil, fmt.Errorf("load config file %s: %w", configPath, err)
			}
		}
	}

	if err := k.Load(env.Provider("OPSDECK_", ".", func(s string) string {
		return strings.Replace(strings.ToLower(strings.TrimPrefix(s, "OPSDECK_")), "__", ".", -1)
	}), nil); err != nil {
		return nil, fmt.Errorf("load env config: %w", err)
	}

	applyDefaults(k)

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	return &cfg, nil
}

func applyDefaults(k *koanf.Koanf) {
	defaults := map[string]any{
		"feed.url":             "ws://localhost:8000/ws",
		"feed.reconnect_delay": "3s",
		"feed.escalation_ttl":  "10s",
		"chaos.base_url":       "http://localhost:8000",
		"server.port":          8090,
		"log.level":            "info",
	}
	for key, value := range defaults {
		if !k.Exists(key) {
			k.Set(key, value)
		}
	}
}

// ReconnectDelay parses the feed reconnect delay.
func (c *Config) ReconnectDelay() (time.Duration, error) {
	return parseDuration("feed.reconnect_delay", c.Feed.ReconnectDelay)
}

// EscalationTTL parses the escalation auto-clear interval.
func (c *Config) EscalationTTL() (time.Duration, error) {
	return parseDuration("feed.escalation_ttl", c.Feed.EscalationTTL)
}

// LogLevel maps the configured level name to a slog level, defaulting to
// info for anything unrecognized.
func (c *Config) LogLevel() slog.Level {
	switch strings.ToLower(c.Log.Level) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func parseDuration(key, value string) (time.Duration, error) {
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, value, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("%s must be positive, got %v", key, d)
	}
	return d, nil
}
