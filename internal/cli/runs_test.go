package cli

import (
	"bytes"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/frp/internal/record"
)

func execRuns(t *testing.T, format string, args ...string) (string, error) {
	t.Helper()
	buf := &bytes.Buffer{}
	cmd := NewRunsCommand(&RootOptions{Format: format})
	cmd.SetOut(buf)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}

func TestRunsMissingDatabaseFlag(t *testing.T) {
	_, err := execRuns(t, "text")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "required flag")
}

func TestRunsNonExistentDatabase(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "missing.db")
	_, err := execRuns(t, "text", "--db", dbPath)
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "failed to open database")
	assert.NoFileExists(t, dbPath, "listing must not create a database")
}

func TestRunsEmptyDatabase(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "runs.db")
	st, err := record.Open(dbPath)
	require.NoError(t, err)
	require.NoError(t, st.Close())

	out, err := execRuns(t, "text", "--db", dbPath)
	require.NoError(t, err)
	assert.Contains(t, out, "No runs recorded")
}

func TestRunsText(t *testing.T) {
	dbPath := recordWalker(t, "run-a", "run-b")
	_, err := execRun(t, "text", "run-c", "--db", dbPath, cycleScene)
	require.Error(t, err)

	out, err := execRuns(t, "text", "--db", dbPath)
	require.NoError(t, err)
	assert.Contains(t, out, "SEQ")
	assert.Contains(t, out, "run-a")
	assert.Contains(t, out, "run-b")
	assert.Contains(t, out, "run-c")
	assert.Contains(t, out, "error: tick 1: sample ping: RECURSIVE_BEHAVIOR")
}

func TestRunsJSON(t *testing.T) {
	dbPath := recordWalker(t, "run-a", "run-b")

	out, err := execRuns(t, "json", "--db", dbPath)
	require.NoError(t, err)

	var response struct {
		Status string     `json:"status"`
		Data   RunsResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &response))
	assert.Equal(t, "ok", response.Status)
	require.Len(t, response.Data.Runs, 2)

	first := response.Data.Runs[0]
	assert.Equal(t, int64(1), first.Seq)
	assert.Equal(t, "run-a", first.ID)
	assert.Equal(t, "walker", first.Scene)
	assert.Equal(t, int64(4), first.Ticks)
	assert.Equal(t, "ok", first.Status)
	assert.NotNil(t, first.EndedAt)
	assert.Equal(t, first.SceneHash, response.Data.Runs[1].SceneHash, "same scene, same hash")
}

func TestToRunInfoStatus(t *testing.T) {
	info := toRunInfo(record.Run{ID: "r"})
	assert.Equal(t, "incomplete", info.Status)
	assert.Nil(t, info.EndedAt)

	info = toRunInfo(record.Run{ID: "r", EndedAt: testEnded, Error: "boom"})
	assert.Equal(t, "error", info.Status)
	require.NotNil(t, info.EndedAt)
	assert.Equal(t, testEnded, *info.EndedAt)
}
