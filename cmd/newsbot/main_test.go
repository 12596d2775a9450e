package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dafidxcode/tehsainesia/internal/storage/postgres"
)

func TestStatusCommand(t *testing.T) {
	dir := t.TempDir()
	logPath := filepath.Join(dir, "news_bot.log")
	dedupPath := filepath.Join(dir, "processed.json")
	configPath := filepath.Join(dir, "config.yaml")

	stamp := time.Now().Add(-time.Minute).Format("2006-01-02 15:04:05,000")
	require.NoError(t, os.WriteFile(logPath, []byte(stamp+" - INFO - Completed news processing cycle\n"), 0o644))

	state, err := json.Marshal(map[string]any{"version": 1, "fingerprints": []string{"a", "b", "c"}})
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(dedupPath, state, 0o644))

	require.NoError(t, os.WriteFile(configPath, []byte(
		"log_file: "+logPath+"\n"+
			"dedup:\n  path: "+dedupPath+"\n",
	), 0o644))

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs([]string{"status", "--config", configPath})
	require.NoError(t, rootCmd.Execute())

	assert.Contains(t, out.String(), "Bot appears to be active.")
	assert.Contains(t, out.String(), "Processed articles")
	assert.Contains(t, out.String(), "3")

	// status must not append to the event log it inspects
	data, err := os.ReadFile(logPath)
	require.NoError(t, err)
	assert.Equal(t, 1, bytes.Count(data, []byte("\n")))
}

func TestCycleRows(t *testing.T) {
	rows := cycleRows(&postgres.CycleState{ID: 1})
	require.Len(t, rows, 1)
	assert.Equal(t, "No cycle recorded yet.", rows[0][1])

	at := time.Date(2024, 5, 1, 10, 0, 0, 0, time.Local)
	rows = cycleRows(&postgres.CycleState{
		ID:             1,
		LastCycleAt:    at,
		LastPublished:  3,
		LastFailed:     1,
		TotalPublished: 42,
	})
	require.Len(t, rows, 4)
	assert.Equal(t, "2024-05-01 10:00:00", rows[0][1])
	assert.Equal(t, 3, rows[1][1])
	assert.Equal(t, 1, rows[2][1])
	assert.Equal(t, int64(42), rows[3][1])
}
