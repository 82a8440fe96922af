package logger

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"DEBUG", slog.LevelDebug},
		{"debug", slog.LevelDebug},
		{"INFO", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"WARNING", slog.LevelWarn},
		{" error ", slog.LevelError},
		{"", slog.LevelInfo},
		{"verbose", slog.LevelInfo},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseLevel(tt.in))
		})
	}
}

func TestNew_ConsoleJSON(t *testing.T) {
	var buf bytes.Buffer
	cfg := DefaultConfig()
	cfg.ConsoleFormat = "json"
	cfg.Level = "WARN"

	l, closer, err := New(cfg, &buf)
	require.NoError(t, err)
	defer closer.Close()

	l.Info("hidden")
	l.Warn("quest handler fault", "questID", 12)

	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec), "one JSON line expected, got %q", buf.String())
	assert.Equal(t, "quest handler fault", rec["msg"])
	assert.EqualValues(t, 12, rec["questID"])
}

func TestNew_ConsoleAndFile(t *testing.T) {
	var buf bytes.Buffer
	path := filepath.Join(t.TempDir(), "logs", "quest.log")

	cfg := DefaultConfig()
	cfg.FileEnabled = true
	cfg.FilePath = path

	l, closer, err := New(cfg, &buf)
	require.NoError(t, err)

	l.With("characterID", 7).Info("quest accepted", "questID", 101)
	require.NoError(t, closer.Close())

	assert.Contains(t, buf.String(), "quest accepted")
	assert.Contains(t, buf.String(), "characterID=7")

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(raw), "questID=101")
}

func TestNew_FileWithoutPath(t *testing.T) {
	cfg := DefaultConfig()
	cfg.FileEnabled = true
	cfg.FilePath = ""

	_, _, err := New(cfg, &bytes.Buffer{})
	require.Error(t, err)
}

func TestNew_NoHandlersFallsBackToConsole(t *testing.T) {
	var buf bytes.Buffer
	cfg := DefaultConfig()
	cfg.ConsoleEnabled = false

	l, _, err := New(cfg, &buf)
	require.NoError(t, err)

	l.Info("still visible")
	assert.Contains(t, buf.String(), "still visible")
}
