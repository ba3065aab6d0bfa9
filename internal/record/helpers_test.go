package record

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/roach88/frp/internal/sim"
)

var testStart = time.Date(2026, 3, 4, 5, 6, 7, 890, time.UTC)

// createTestStore creates a new store in a temporary directory.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// createTestRun creates a run with minimal required fields.
func createTestRun(id string) sim.Run {
	return sim.Run{
		ID:        id,
		Scene:     "walker",
		SceneHash: "test-hash",
		StartedAt: testStart,
	}
}

// createTestTick creates a tick sampling a position and an absent score.
func createTestTick(seq int64) sim.Tick {
	return sim.Tick{
		Seq:  seq,
		Time: float64(seq) / 2,
		Samples: []sim.Sample{
			{Ref: "player.position", Value: []any{float64(seq), 0.5}, Present: true},
			{Ref: "player.score", Present: false},
		},
	}
}
