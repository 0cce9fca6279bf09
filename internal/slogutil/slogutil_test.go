package slogutil

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"goaltracker/internal/config"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, ParseLevel("DEBUG"))
	assert.Equal(t, slog.LevelWarn, ParseLevel("warn"))
	assert.Equal(t, slog.LevelError, ParseLevel("error"))
	assert.Equal(t, slog.LevelInfo, ParseLevel(""))
}

func TestSetup_ConsoleLevel(t *testing.T) {
	var buf bytes.Buffer
	log := Setup(config.LogConfig{Level: "warn"}, &buf)

	log.Info("hidden")
	log.Warn("shown", "goal_id", 7)

	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "goal_id=7")
}

func TestSetup_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "goaltracker.log")
	log := Setup(config.LogConfig{Level: "info", File: path, MaxSize: 1}, nil)

	log.Info("written to file")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "written to file")
}
