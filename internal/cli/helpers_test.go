package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/frp/internal/testutil"
)

const (
	walkerScene = "../scene/testdata/walker.yaml"
	cycleScene  = "../scene/testdata/cycle.yaml"
)

// walkerText is the text output of the walker scene run with id run-walker.
func walkerText(t *testing.T) string {
	t.Helper()
	data, err := os.ReadFile("../sim/testdata/golden/walker_text.golden")
	require.NoError(t, err)
	return string(data)
}

// execRun runs the run command with a fixed run id and returns its stdout.
func execRun(t *testing.T, format, runID string, args ...string) (string, error) {
	t.Helper()
	buf := &bytes.Buffer{}
	cmd := newRunCommand(&RunOptions{
		RootOptions: &RootOptions{Format: format},
		IDGenerator: testutil.NewFixedIDGenerator(runID),
	})
	cmd.SetOut(buf)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}

// recordWalker runs the walker scene into a new database and returns its path.
func recordWalker(t *testing.T, runIDs ...string) string {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "runs.db")
	for _, id := range runIDs {
		_, err := execRun(t, "text", id, "--db", dbPath, walkerScene)
		require.NoError(t, err)
	}
	return dbPath
}

// syncBuffer is a bytes.Buffer safe for concurrent writes and reads.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}
