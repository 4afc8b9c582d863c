package log

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestNewLogger_JSON(t *testing.T) {
	out := filepath.Join(t.TempDir(), "out.log")
	zl, err := NewLogger(WithLogLevel("warn"), WithOutputPaths(out), WithFields(zap.String("app", "counter-test")))
	require.NoError(t, err)

	zl.Info("dropped")
	zl.Warn("kept", zap.Int64("value", 2))
	require.NoError(t, zl.Sync())

	b, err := os.ReadFile(out)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(b)), "\n")
	require.Len(t, lines, 1)

	var entry map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &entry))
	assert.Equal(t, "kept", entry["msg"])
	assert.Equal(t, "warn", entry["level"])
	assert.Equal(t, "counter-test", entry["app"])
	assert.EqualValues(t, 2, entry["value"])
	assert.NotContains(t, entry, "caller")
}

func TestNewLogger_BadLevel(t *testing.T) {
	_, err := NewLogger(WithLogLevel("loud"))
	assert.Error(t, err)
}

func TestMust(t *testing.T) {
	assert.Panics(t, func() { Must(NewLogger(WithLogLevel("loud"))) })
	assert.NotPanics(t, func() { Must(NewLogger(WithOutputPaths(filepath.Join(t.TempDir(), "x.log")))) })
}
