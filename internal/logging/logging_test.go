package logging

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewTextLevels(t *testing.T) {
	var buf bytes.Buffer
	l, err := New(Options{Writer: &buf})
	require.NoError(t, err)
	defer l.Close()

	l.Debug("hidden")
	l.Info("shown", "k", "v")
	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "msg=shown k=v")
}

func TestNewVerbose(t *testing.T) {
	var buf bytes.Buffer
	l, err := New(Options{Writer: &buf, Verbose: true})
	require.NoError(t, err)
	defer l.Close()

	l.Debug("detail")
	assert.Contains(t, buf.String(), "msg=detail")
}

func TestNewFileFanout(t *testing.T) {
	var buf bytes.Buffer
	path := filepath.Join(t.TempDir(), "frp.log")
	l, err := New(Options{Writer: &buf, File: path})
	require.NoError(t, err)

	l.Debug("file only")
	l.Info("both", "tick", 3)
	require.NoError(t, l.Close())

	assert.NotContains(t, buf.String(), "file only")
	assert.Contains(t, buf.String(), "msg=both")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 2)

	var rec map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[1]), &rec))
	assert.Equal(t, "both", rec["msg"])
	assert.Equal(t, 3.0, rec["tick"])
}

func TestNewBadFile(t *testing.T) {
	_, err := New(Options{File: filepath.Join(t.TempDir(), "missing", "frp.log")})
	assert.Error(t, err)
}

func TestLevelVarAdjustable(t *testing.T) {
	var buf bytes.Buffer
	l, err := New(Options{Writer: &buf})
	require.NoError(t, err)

	l.Level.Set(-4)
	l.Debug("now visible")
	assert.Contains(t, buf.String(), "now visible")
}
