package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"relocate/internal/config"
)

// Options describes logger construction parameters.
type Options struct {
	Level string
	// Format applies to the durable file sink: "console" (default) or "json".
	// The terminal always gets console lines.
	Format string
	// Console is the terminal sink. Nil disables it.
	Console io.Writer
	// FilePath is the durable append-only log file. Empty disables it.
	FilePath string
	// Development adds source locations at every level.
	Development bool
}

// New builds a logger that writes each record to the file sink and then to
// the console.
func New(opts Options) (*slog.Logger, error) {
	format := strings.ToLower(strings.TrimSpace(opts.Format))
	switch format {
	case "":
		format = "console"
	case "console", "json":
	default:
		return nil, fmt.Errorf("log format: unsupported value %q", opts.Format)
	}

	level := parseLevel(opts.Level)
	withSource := opts.Development || level <= slog.LevelDebug

	var console, durable slog.Handler
	if opts.Console != nil {
		console = newLineHandler(opts.Console, level, withSource)
	}
	if path := strings.TrimSpace(opts.FilePath); path != "" {
		file, err := openAppend(path)
		if err != nil {
			return nil, err
		}
		if format == "json" {
			durable = newJSONHandler(file, level, withSource)
		} else {
			durable = newLineHandler(file, level, withSource)
		}
	}
	return slog.New(newTeeHandler(durable, console)), nil
}

// NewFromConfig logs to console (stderr when nil) and to cfg's log file at
// cfg's level and format.
func NewFromConfig(cfg *config.Config, console io.Writer) (*slog.Logger, error) {
	if console == nil {
		console = os.Stderr
	}
	opts := Options{Console: console}
	if cfg != nil {
		opts.Level = cfg.Logging.Level
		opts.Format = cfg.Logging.Format
		opts.FilePath = cfg.LogPath()
	}
	return New(opts)
}

// parseLevel accepts slog's level names in any case plus "warning". Anything
// else means info.
func parseLevel(name string) slog.Level {
	name = strings.TrimSpace(name)
	if strings.EqualFold(name, "warning") {
		return slog.LevelWarn
	}
	var level slog.Level
	if err := level.UnmarshalText([]byte(name)); err != nil {
		return slog.LevelInfo
	}
	return level
}

func openAppend(path string) (*os.File, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create log directory: %w", err)
	}
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o640)
	if err != nil {
		return nil, fmt.Errorf("open log file %s: %w", path, err)
	}
	return file, nil
}

// newJSONHandler writes one object per line with "ts" in UTC RFC3339, a
// lowercase level and "file:line" sources.
func newJSONHandler(w io.Writer, level slog.Leveler, withSource bool) slog.Handler {
	return slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level:       level,
		AddSource:   withSource,
		ReplaceAttr: jsonAttr,
	})
}

func jsonAttr(groups []string, attr slog.Attr) slog.Attr {
	if len(groups) > 0 {
		return attr
	}
	switch attr.Key {
	case slog.TimeKey:
		return slog.String("ts", attr.Value.Time().UTC().Format(time.RFC3339))
	case slog.LevelKey:
		return slog.String(slog.LevelKey, strings.ToLower(attr.Value.String()))
	case slog.SourceKey:
		if src, ok := attr.Value.Any().(*slog.Source); ok && src != nil {
			return slog.String(slog.SourceKey, fmt.Sprintf("%s:%d", filepath.Base(src.File), src.Line))
		}
	}
	return attr
}
