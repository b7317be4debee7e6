// Package observability provides structured logging and metrics for the
// command pipeline.
//
// The logging system is built on Go's slog package. Command executions are
// logged to two independent sinks — a human-readable console stream and a
// JSON file — each with its own per-field privacy redaction flags, so an
// operator can keep full detail on the console while scrubbing actor names
// from the persistent log (or the reverse).
package observability

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
)

// Redacted replaces a field value when its redaction flag is set.
const Redacted = "[redacted]"

// MediaPlaceholder replaces message bodies that carry embedded images or
// hyperlinks. Applied unconditionally, before redaction flags are consulted.
const MediaPlaceholder = "[embedded media]"

// RedactFlags selects which command-log fields are scrubbed for one sink.
type RedactFlags struct {
	Command bool `yaml:"command" env:"COMMAND"`
	Actor   bool `yaml:"actor" env:"ACTOR"`
	Channel bool `yaml:"channel" env:"CHANNEL"`
	Message bool `yaml:"message" env:"MESSAGE"`
}

// SinkConfig configures the two command-log sinks.
type SinkConfig struct {
	// Level is the minimum level: debug, info, warn, error.
	Level string

	// FilePath is the JSON log file destination. Empty disables the file sink.
	FilePath string

	// ConsoleOut overrides the console writer (defaults to os.Stderr).
	ConsoleOut io.Writer

	// ConsoleRedact and FileRedact are evaluated independently per sink.
	ConsoleRedact RedactFlags
	FileRedact    RedactFlags
}

// Sinks holds the constructed loggers and their redaction flags.
type Sinks struct {
	Console       *slog.Logger
	File          *slog.Logger
	ConsoleRedact RedactFlags
	FileRedact    RedactFlags

	file *os.File
}

// NewSinks builds the console and file loggers. The file sink is nil when
// no path is configured.
func NewSinks(cfg SinkConfig) (*Sinks, error) {
	out := cfg.ConsoleOut
	if out == nil {
		out = os.Stderr
	}
	opts := &slog.HandlerOptions{Level: parseLevel(cfg.Level)}

	s := &Sinks{
		Console:       slog.New(slog.NewTextHandler(out, opts)),
		ConsoleRedact: cfg.ConsoleRedact,
		FileRedact:    cfg.FileRedact,
	}

	if cfg.FilePath != "" {
		f, err := os.OpenFile(cfg.FilePath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, fmt.Errorf("failed to open log file: %w", err)
		}
		s.file = f
		s.File = slog.New(slog.NewJSONHandler(f, opts))
	}
	return s, nil
}

// Close releases the file sink, if any.
func (s *Sinks) Close() error {
	if s.file == nil {
		return nil
	}
	return s.file.Close()
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
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

// CommandLog is the loggable projection of one executed command.
type CommandLog struct {
	Command    string
	Parameters []string
	Actor      string
	Channel    string
	Message    string
}

// Redact returns a copy with flagged fields replaced. The embedded-media
// placeholder has already been applied by Sanitize regardless of flags.
func (c CommandLog) Redact(flags RedactFlags) CommandLog {
	out := c
	if flags.Command {
		out.Command = Redacted
		out.Parameters = []string{Redacted}
	}
	if flags.Actor {
		out.Actor = Redacted
	}
	if flags.Channel {
		out.Channel = Redacted
	}
	if flags.Message {
		out.Message = Redacted
	}
	return out
}

// Sanitize replaces image- or hyperlink-bearing message bodies with the
// media placeholder.
func Sanitize(message string) string {
	lower := strings.ToLower(message)
	if strings.Contains(lower, "<img") || strings.Contains(lower, "<a href") {
		return MediaPlaceholder
	}
	return message
}

// Attrs flattens the projection into slog attributes.
func (c CommandLog) Attrs() []any {
	return []any{
		"command", c.Command,
		"parameters", strings.Join(c.Parameters, "."),
		"actor", c.Actor,
		"channel", c.Channel,
		"message", c.Message,
	}
}
