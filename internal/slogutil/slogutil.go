// Package slogutil builds the process logger from configuration.
package slogutil

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"gopkg.in/natefinch/lumberjack.v2"

	"goaltracker/internal/config"
)

func ParseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
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

// Setup returns a text logger writing to console and, when logConfig.File is
// set, to a rotating file as well.
func Setup(logConfig config.LogConfig, console io.Writer) *slog.Logger {
	var writers []io.Writer
	if console != nil {
		writers = append(writers, console)
	}
	if logConfig.File != "" {
		writers = append(writers, &lumberjack.Logger{
			Filename:   logConfig.File,
			MaxSize:    logConfig.MaxSize,
			MaxBackups: logConfig.MaxBackups,
			MaxAge:     logConfig.MaxAge,
			Compress:   logConfig.Compress,
		})
	}

	var w io.Writer
	switch len(writers) {
	case 0:
		w = io.Discard
	case 1:
		w = writers[0]
	default:
		w = io.MultiWriter(writers...)
	}

	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{
		Level: ParseLevel(logConfig.Level),
	}))
}

// SetupDefault installs Setup(logConfig, os.Stderr) as the default logger.
func SetupDefault(logConfig config.LogConfig) *slog.Logger {
	logger := Setup(logConfig, os.Stderr)
	slog.SetDefault(logger)
	return logger
}
