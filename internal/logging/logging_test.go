package logging

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLineHandler_Format(t *testing.T) {
	var buf bytes.Buffer
	logger := New("info", &buf).With("component", "cycle")

	logger.Info("Posted article", "title", "Quantum leap", "post_id", "42")

	line := strings.TrimSuffix(buf.String(), "\n")
	parts := strings.SplitN(line, Separator, 3)
	require.Len(t, parts, 3)

	_, err := time.ParseInLocation(TimeLayout, parts[0], time.Local)
	require.NoError(t, err)
	assert.Equal(t, "INFO", parts[1])
	assert.Equal(t, `Posted article component=cycle title="Quantum leap" post_id=42`, parts[2])
}

func TestLineHandler_LevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger := New("warn", &buf)

	logger.Info("hidden")
	logger.Warn("shown")
	logger.Error("also shown")

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, " - WARNING - shown")
	assert.Contains(t, out, " - ERROR - also shown")
}

func TestLineHandler_Groups(t *testing.T) {
	var buf bytes.Buffer
	logger := New("debug", &buf).WithGroup("req").With("id", 7)

	logger.Debug("probe", slog.Group("http", "status", 404))

	assert.Contains(t, buf.String(), "probe req.id=7 req.http.status=404")
}

func TestLevelFromString(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, LevelFromString("DEBUG"))
	assert.Equal(t, slog.LevelWarn, LevelFromString("warning"))
	assert.Equal(t, slog.LevelError, LevelFromString(" error "))
	assert.Equal(t, slog.LevelInfo, LevelFromString("unknown"))
}
