package record

import (
	"context"
	"fmt"
	"time"

	"github.com/roach88/frp/internal/canon"
	"github.com/roach88/frp/internal/sim"
)

// BeginRun inserts a run record.
// Uses ON CONFLICT(id) DO NOTHING for idempotency - beginning the same run
// twice is silently ignored.
func (s *Store) BeginRun(ctx context.Context, run sim.Run) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO runs (id, scene, scene_hash, started_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`,
		run.ID,
		run.Scene,
		run.SceneHash,
		run.StartedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("begin run: %w", err)
	}
	return nil
}

// WriteTick appends the samples of one tick and advances the run's tick
// count, atomically. Sample values are stored as canonical JSON; absent
// samples store NULL.
//
// Rewriting a tick that is already recorded is silently ignored.
//
// Note: The run must have been started with BeginRun (foreign key constraint).
func (s *Store) WriteTick(ctx context.Context, runID string, tick sim.Tick) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("write tick: begin tx: %w", err)
	}
	defer tx.Rollback() // No-op if committed

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO samples (run_id, tick, idx, time, ref, value_json, present)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(run_id, tick, idx) DO NOTHING
	`)
	if err != nil {
		return fmt.Errorf("write tick: prepare: %w", err)
	}
	defer stmt.Close()

	for i, smp := range tick.Samples {
		var value any
		if smp.Present {
			data, err := canon.Marshal(smp.Value)
			if err != nil {
				return fmt.Errorf("write tick %d: sample %s: %w", tick.Seq, smp.Ref, err)
			}
			value = string(data)
		}
		if _, err := stmt.ExecContext(ctx, runID, tick.Seq, i, tick.Time, smp.Ref, value, smp.Present); err != nil {
			return fmt.Errorf("write tick %d: sample %s: %w", tick.Seq, smp.Ref, err)
		}
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE runs SET ticks = MAX(ticks, ?) WHERE id = ?
	`, tick.Seq, runID); err != nil {
		return fmt.Errorf("write tick %d: update run: %w", tick.Seq, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("write tick %d: commit: %w", tick.Seq, err)
	}
	return nil
}

// EndRun marks a run finished at endedAt. cause is the error that stopped
// the run, nil if it completed or was cancelled.
func (s *Store) EndRun(ctx context.Context, runID string, endedAt time.Time, cause error) error {
	var errText any
	if cause != nil {
		errText = cause.Error()
	}
	res, err := s.db.ExecContext(ctx, `
		UPDATE runs SET ended_at = ?, error = ? WHERE id = ?
	`, endedAt.UTC().Format(time.RFC3339Nano), errText, runID)
	if err != nil {
		return fmt.Errorf("end run: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("end run: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("end run %s: %w", runID, ErrRunNotFound)
	}
	return nil
}
