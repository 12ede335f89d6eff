package logging

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func TestInit_FileOutput(t *testing.T) {
	require.NoError(t, Close())
	t.Cleanup(func() { _ = Close() })

	path := filepath.Join(t.TempDir(), "logs", "engine.log")
	require.NoError(t, Init(Config{Level: LevelDebug, OutputPath: path, Format: "json"}))

	err := Init(Config{})
	assert.Error(t, err, "second Init must fail")

	WithComponent("catalog").Info("table created", zap.String("table", "T1"))
	require.NoError(t, Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"component":"catalog"`)
	assert.Contains(t, string(data), `"table":"T1"`)
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, zapcore.DebugLevel, ParseLevel("debug"))
	assert.Equal(t, zapcore.WarnLevel, ParseLevel(LevelWarn))
	assert.Equal(t, zapcore.ErrorLevel, ParseLevel(LevelError))
	assert.Equal(t, zapcore.InfoLevel, ParseLevel("bogus"))
}

func TestGetLogger_LazyDefault(t *testing.T) {
	require.NoError(t, Close())
	t.Cleanup(func() { _ = Close() })

	l := GetLogger()
	require.NotNil(t, l)
	assert.Same(t, l, GetLogger())

	Replace(zap.NewNop())
	assert.NotSame(t, l, GetLogger())
}
