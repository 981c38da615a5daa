package logging

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func TestBuildWritesJSONWithExpectedKeys(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.log")
	l, err := build("debug", []string{path})
	require.NoError(t, err)

	l.Debug("spot occupied", zap.Uint64("spot_id", 7))
	_ = l.Sync()

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	var line map[string]interface{}
	require.NoError(t, json.Unmarshal(raw, &line))
	assert.Equal(t, "debug", line["level"])
	assert.Equal(t, "spot occupied", line["msg"])
	assert.Contains(t, line, "ts")
	assert.EqualValues(t, 7, line["spot_id"])
}

func TestUnknownLevelFallsBackToInfo(t *testing.T) {
	l, err := build("chatty", []string{filepath.Join(t.TempDir(), "out.log")})
	require.NoError(t, err)
	assert.False(t, l.Core().Enabled(zapcore.DebugLevel))
	assert.True(t, l.Core().Enabled(zapcore.InfoLevel))
}

func TestOrNop(t *testing.T) {
	assert.NotNil(t, OrNop(nil))
	l := zap.NewExample()
	assert.Same(t, l, OrNop(l))
}
