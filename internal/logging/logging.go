// Package logging configures the process-wide slog logger.
package logging

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/philipexavier/proxy-rasa/internal/config"
)

const (
	maxLogSizeMB  = 20
	maxLogBackups = 5
	maxLogAgeDays = 14
)

// Setup installs the default slog logger described by cfg and returns it
// together with a closer for the log file. Logs go to stderr unless
// cfg.LogFile is set, in which case the file is rotated by size.
func Setup(cfg *config.ServerConfig) (*slog.Logger, io.Closer, error) {
	level := ParseLevel(cfg.LogLevel)
	if cfg.Debug {
		level = slog.LevelDebug
	}
	opts := &slog.HandlerOptions{Level: level}

	var out io.Writer = os.Stderr
	var closer io.Closer = nopCloser{}
	if path := strings.TrimSpace(cfg.LogFile); path != "" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			logger := slog.New(NewHandler(cfg.LogFormat, os.Stderr, opts))
			slog.SetDefault(logger)
			return logger, closer, err
		}
		lj := &lumberjack.Logger{
			Filename:   path,
			MaxSize:    maxLogSizeMB,
			MaxBackups: maxLogBackups,
			MaxAge:     maxLogAgeDays,
			Compress:   true,
		}
		out = lj
		closer = lj
	}

	logger := slog.New(NewHandler(cfg.LogFormat, out, opts))
	slog.SetDefault(logger)
	return logger, closer, nil
}

// ParseLevel maps a level name to a slog.Level, defaulting to info.
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
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

// NewHandler returns a text handler for "text" and a JSON handler otherwise.
func NewHandler(format string, out io.Writer, opts *slog.HandlerOptions) slog.Handler {
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "text":
		return slog.NewTextHandler(out, opts)
	default:
		return slog.NewJSONHandler(out, opts)
	}
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
