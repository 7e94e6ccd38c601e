package cmd

import (
	"bytes"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLogger_LevelAndFormat(t *testing.T) {
	var buf bytes.Buffer
	logger := newLogger("warn", "json", &buf)
	logger.Info("hidden")
	logger.Warn("shown", "rule", "R-1")

	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), `"msg":"shown"`)
	assert.Contains(t, buf.String(), `"rule":"R-1"`)
}

func TestLoadConfig_FlagsOverrideFile(t *testing.T) {
	inTempDir(t)
	require.NoError(t, os.WriteFile("rulec.yaml", []byte("log:\n  level: error\n"), 0o644))

	orig := rootFlags
	t.Cleanup(func() { rootFlags = orig })
	rootFlags.logLevel = "debug"
	rootFlags.logFormat = "json"

	cfg, err := loadConfig(false)
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
}

func TestLoadConfig_InvalidFlag(t *testing.T) {
	inTempDir(t)
	orig := rootFlags
	t.Cleanup(func() { rootFlags = orig })
	rootFlags.logFormat = "xml"

	_, err := loadConfig(true)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "log.format")
}
