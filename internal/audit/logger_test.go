package audit

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogNoopForNilLoggerAndEmptyPath(t *testing.T) {
	var nilLogger *Logger
	assert.NoError(t, nilLogger.Log(Event{Operation: "add"}))
	assert.NoError(t, nilLogger.Close())
	assert.NoError(t, New("").Log(Event{Operation: "add"}))
}

func TestLogWritesJSONLines(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), ".opencode", "vibe-audit.log")
	logger := New(logPath)

	require.NoError(t, logger.Log(Event{
		Operation: "add",
		Phase:     "commit",
		Status:    "ok",
		Source:    "https://github.com/acme/kit.git",
		Items:     []string{"get_token", "vue"},
	}))
	require.NoError(t, logger.Log(Event{Operation: "update", Phase: "fetch", Status: "warn", Code: "SRC_FETCH", Message: "timeout"}))
	require.NoError(t, logger.Close())

	blob, err := os.ReadFile(logPath)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(blob)), "\n")
	require.Len(t, lines, 2)

	var first map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &first))
	assert.Equal(t, "add", first["operation"])
	assert.Equal(t, "commit", first["phase"])
	assert.Equal(t, "https://github.com/acme/kit.git", first["source"])
	assert.Equal(t, []any{"get_token", "vue"}, first["items"])
	ts, ok := first["timestamp"].(string)
	require.True(t, ok, "timestamp should be a string")
	_, err = time.Parse(time.RFC3339Nano, ts)
	assert.NoError(t, err)

	var second map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[1]), &second))
	assert.Equal(t, "SRC_FETCH", second["code"])
	assert.Equal(t, "timeout", second["message"])
	assert.NotContains(t, second, "items")
}

func TestLogAppendsAcrossLoggers(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "audit.log")
	for i := 0; i < 2; i++ {
		logger := New(logPath)
		require.NoError(t, logger.Log(Event{Operation: "remove", Phase: "commit", Status: "ok"}))
		require.NoError(t, logger.Close())
	}
	blob, err := os.ReadFile(logPath)
	require.NoError(t, err)
	assert.Equal(t, 2, strings.Count(string(blob), "\n"))
}

func TestLogMkdirAllFailure(t *testing.T) {
	blockedPath := filepath.Join(t.TempDir(), "blocked")
	require.NoError(t, os.WriteFile(blockedPath, []byte("x"), 0o644))

	logger := New(filepath.Join(blockedPath, "events.log"))
	assert.Error(t, logger.Log(Event{Operation: "add"}))
}

func TestLogOpenFileFailure(t *testing.T) {
	dirPath := filepath.Join(t.TempDir(), "log-dir")
	require.NoError(t, os.MkdirAll(dirPath, 0o755))

	logger := New(dirPath)
	assert.Error(t, logger.Log(Event{Operation: "add"}))
}
