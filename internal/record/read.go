package record

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// ErrRunNotFound is returned when a run id is not recorded.
var ErrRunNotFound = errors.New("run not found")

// Run is a recorded run.
type Run struct {
	Seq       int64
	ID        string
	Scene     string
	SceneHash string
	StartedAt time.Time
	// EndedAt is zero while the run is in progress (or was interrupted).
	EndedAt time.Time
	Ticks   int64
	// Error is the error that stopped the run, empty if none.
	Error string
}

// Sample is one recorded sample.
type Sample struct {
	RunID string
	Tick  int64
	Index int
	Time  float64
	Ref   string
	// ValueJSON is the canonical JSON of the value, empty when absent.
	ValueJSON string
	Present   bool
}

// Value decodes ValueJSON. Numbers decode as float64.
func (s Sample) Value() (any, error) {
	if !s.Present {
		return nil, nil
	}
	var v any
	if err := json.Unmarshal([]byte(s.ValueJSON), &v); err != nil {
		return nil, fmt.Errorf("decode sample %s at tick %d: %w", s.Ref, s.Tick, err)
	}
	return v, nil
}

// Runs returns all runs ordered by seq.
//
// Returns an empty slice (not nil) if no runs are recorded.
func (s *Store) Runs(ctx context.Context) ([]Run, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT seq, id, scene, scene_hash, started_at, ended_at, ticks, error
		FROM runs
		ORDER BY seq ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	runs := []Run{}
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	return runs, nil
}

// Run returns the run with the given id, or ErrRunNotFound.
func (s *Store) Run(ctx context.Context, id string) (Run, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT seq, id, scene, scene_hash, started_at, ended_at, ticks, error
		FROM runs
		WHERE id = ?
	`, id)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, fmt.Errorf("run %s: %w", id, ErrRunNotFound)
	}
	return run, err
}

// LatestRun returns the most recently started run, or ErrRunNotFound.
func (s *Store) LatestRun(ctx context.Context) (Run, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT seq, id, scene, scene_hash, started_at, ended_at, ticks, error
		FROM runs
		ORDER BY seq DESC
		LIMIT 1
	`)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, ErrRunNotFound
	}
	return run, err
}

// Samples returns every sample of a run ordered by tick, then by position in
// the scene's sample list.
func (s *Store) Samples(ctx context.Context, runID string) ([]Sample, error) {
	return s.querySamples(ctx, `
		SELECT run_id, tick, idx, time, ref, value_json, present
		FROM samples
		WHERE run_id = ?
		ORDER BY tick ASC, idx ASC
	`, runID)
}

// Series returns the samples of one reference across a run, ordered by tick.
func (s *Store) Series(ctx context.Context, runID, ref string) ([]Sample, error) {
	return s.querySamples(ctx, `
		SELECT run_id, tick, idx, time, ref, value_json, present
		FROM samples
		WHERE run_id = ? AND ref = ?
		ORDER BY tick ASC, idx ASC
	`, runID, ref)
}

func (s *Store) querySamples(ctx context.Context, query string, args ...any) ([]Sample, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query samples: %w", err)
	}
	defer rows.Close()

	samples := []Sample{}
	for rows.Next() {
		var (
			smp   Sample
			value sql.NullString
		)
		if err := rows.Scan(&smp.RunID, &smp.Tick, &smp.Index, &smp.Time, &smp.Ref, &value, &smp.Present); err != nil {
			return nil, fmt.Errorf("scan sample: %w", err)
		}
		smp.ValueJSON = value.String
		samples = append(samples, smp)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate samples: %w", err)
	}
	return samples, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(row scanner) (Run, error) {
	var (
		run       Run
		startedAt string
		endedAt   sql.NullString
		errText   sql.NullString
	)
	err := row.Scan(&run.Seq, &run.ID, &run.Scene, &run.SceneHash, &startedAt, &endedAt, &run.Ticks, &errText)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Run{}, err
		}
		return Run{}, fmt.Errorf("scan run: %w", err)
	}

	run.StartedAt, err = time.Parse(time.RFC3339Nano, startedAt)
	if err != nil {
		return Run{}, fmt.Errorf("run %s: parse started_at: %w", run.ID, err)
	}
	if endedAt.Valid {
		run.EndedAt, err = time.Parse(time.RFC3339Nano, endedAt.String)
		if err != nil {
			return Run{}, fmt.Errorf("run %s: parse ended_at: %w", run.ID, err)
		}
	}
	run.Error = errText.String
	return run, nil
}
