// Package config loads and validates the bot configuration from YAML,
// with environment-variable expansion and env overrides on top.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/voxbotio/voxbot/internal/commands"
	"github.com/voxbotio/voxbot/internal/observability"
	"github.com/voxbotio/voxbot/internal/plugins"
)

// Config is the main configuration structure for voxbot.
type Config struct {
	Bot      BotConfig                   `yaml:"bot" envPrefix:"VOXBOT_"`
	Database DatabaseConfig              `yaml:"database" envPrefix:"VOXBOT_DB_"`
	Logging  LoggingConfig               `yaml:"logging" envPrefix:"VOXBOT_LOG_"`
	Metrics  MetricsConfig               `yaml:"metrics" envPrefix:"VOXBOT_METRICS_"`
	Plugins  PluginsConfig               `yaml:"plugins"`
	Metadata map[string]plugins.Metadata `yaml:"metadata"`
}

// BotConfig covers the command pipeline itself.
type BotConfig struct {
	// Prefix marks a chat line as a command. Must be non-empty.
	Prefix string `yaml:"prefix" env:"PREFIX"`

	// QueueCapacity bounds the pending-command queue.
	QueueCapacity int `yaml:"queue_capacity" env:"QUEUE_CAPACITY"`

	// HistoryLimit bounds the executed-command history.
	HistoryLimit int `yaml:"history_limit" env:"HISTORY_LIMIT"`
}

// DatabaseConfig selects the persistence backend.
type DatabaseConfig struct {
	// Path is the SQLite database file. Empty selects the in-memory store.
	Path string `yaml:"path" env:"PATH"`
}

// LoggingConfig configures the dual command-log sinks. Each sink carries
// its own redaction flags.
type LoggingConfig struct {
	Level         string                    `yaml:"level" env:"LEVEL"`
	FilePath      string                    `yaml:"file_path" env:"FILE_PATH"`
	ConsoleRedact observability.RedactFlags `yaml:"console_redact" envPrefix:"CONSOLE_REDACT_"`
	FileRedact    observability.RedactFlags `yaml:"file_redact" envPrefix:"FILE_REDACT_"`
}

// MetricsConfig controls the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled" env:"ENABLED"`
	Addr    string `yaml:"addr" env:"ADDR"`
}

// PluginsConfig controls plugin metadata loading and hot reload.
type PluginsConfig struct {
	// MetadataPath points at a YAML file mapping plugin names to their
	// metadata records. Changes to the file are picked up while running.
	MetadataPath string `yaml:"metadata_path" env:"VOXBOT_PLUGIN_METADATA_PATH"`

	// ReloadDebounce coalesces bursts of file-change events.
	ReloadDebounce time.Duration `yaml:"reload_debounce" env:"VOXBOT_PLUGIN_RELOAD_DEBOUNCE"`
}

// Default returns a configuration with working defaults for every field
// the pipeline requires.
func Default() *Config {
	return &Config{
		Bot: BotConfig{
			Prefix:        commands.DefaultPrefix,
			QueueCapacity: 32,
			HistoryLimit:  100,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
		Metrics: MetricsConfig{
			Addr: ":9190",
		},
		Plugins: PluginsConfig{
			ReloadDebounce: 500 * time.Millisecond,
		},
	}
}

// Validate reports the first configuration error found.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Bot.Prefix) == "" {
		return fmt.Errorf("bot.prefix is required")
	}
	if c.Bot.QueueCapacity < 1 {
		return fmt.Errorf("bot.queue_capacity must be at least 1")
	}
	if c.Bot.HistoryLimit < 1 {
		return fmt.Errorf("bot.history_limit must be at least 1")
	}
	if c.Metrics.Enabled && strings.TrimSpace(c.Metrics.Addr) == "" {
		return fmt.Errorf("metrics.addr is required when metrics are enabled")
	}
	return nil
}
