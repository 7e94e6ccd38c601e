package cmd

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func runList(t *testing.T, category string) string {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, RunList(&buf, category))
	return buf.String()
}

func TestList_StoredRules(t *testing.T) {
	inTempDir(t)
	runInit(t)
	writeRules(t, "speed.yaml", speedRules)
	runCompile(t)

	out := runList(t, "")
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 2)
	assert.True(t, strings.HasPrefix(lines[0], "R-SPEED-1"))
	assert.Contains(t, lines[0], "speed")
	assert.Contains(t, lines[0], "p80")
	assert.Contains(t, lines[0], " 2 cond")
	assert.Contains(t, lines[1], "general")
}

func TestList_FilterByCategory(t *testing.T) {
	inTempDir(t)
	runInit(t)
	writeRules(t, "speed.yaml", speedRules)
	runCompile(t)

	out := runList(t, "speed")
	assert.Contains(t, out, "R-SPEED-1")
	assert.NotContains(t, out, "R-SPEED-2")
}

func TestList_Empty(t *testing.T) {
	inTempDir(t)
	runInit(t)
	assert.Equal(t, "", runList(t, ""))
}

func TestList_RequiresInit(t *testing.T) {
	inTempDir(t)
	var buf bytes.Buffer
	require.Error(t, RunList(&buf, ""))
}
