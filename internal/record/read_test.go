package record

import (
	"context"
	"errors"
	"testing"
)

func TestRuns_OrderedBySeq(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	// Ids deliberately sort differently from insertion order.
	ids := []string{"c", "a", "b"}
	for _, id := range ids {
		if err := s.BeginRun(ctx, createTestRun(id)); err != nil {
			t.Fatalf("BeginRun(%s) failed: %v", id, err)
		}
	}

	runs, err := s.Runs(ctx)
	if err != nil {
		t.Fatalf("Runs() failed: %v", err)
	}
	if len(runs) != len(ids) {
		t.Fatalf("len(runs) = %d, want %d", len(runs), len(ids))
	}
	for i, run := range runs {
		if run.ID != ids[i] {
			t.Errorf("runs[%d] = %s, want %s", i, run.ID, ids[i])
		}
		if i > 0 && run.Seq <= runs[i-1].Seq {
			t.Errorf("seq not increasing at %d: %d <= %d", i, run.Seq, runs[i-1].Seq)
		}
	}

	latest, err := s.LatestRun(ctx)
	if err != nil {
		t.Fatalf("LatestRun() failed: %v", err)
	}
	if latest.ID != "b" {
		t.Errorf("LatestRun() = %s, want b", latest.ID)
	}
}

func TestRuns_Empty(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	runs, err := s.Runs(ctx)
	if err != nil {
		t.Fatalf("Runs() failed: %v", err)
	}
	if runs == nil || len(runs) != 0 {
		t.Errorf("Runs() = %#v, want empty non-nil slice", runs)
	}

	if _, err := s.LatestRun(ctx); !errors.Is(err, ErrRunNotFound) {
		t.Errorf("LatestRun() = %v, want ErrRunNotFound", err)
	}
	if _, err := s.Run(ctx, "ghost"); !errors.Is(err, ErrRunNotFound) {
		t.Errorf("Run(ghost) = %v, want ErrRunNotFound", err)
	}

	samples, err := s.Samples(ctx, "ghost")
	if err != nil {
		t.Fatalf("Samples() failed: %v", err)
	}
	if samples == nil || len(samples) != 0 {
		t.Errorf("Samples() = %#v, want empty non-nil slice", samples)
	}
}

func TestSeries(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	if err := s.BeginRun(ctx, createTestRun("run-1")); err != nil {
		t.Fatalf("BeginRun() failed: %v", err)
	}
	for seq := int64(1); seq <= 4; seq++ {
		if err := s.WriteTick(ctx, "run-1", createTestTick(seq)); err != nil {
			t.Fatalf("WriteTick(%d) failed: %v", seq, err)
		}
	}

	series, err := s.Series(ctx, "run-1", "player.position")
	if err != nil {
		t.Fatalf("Series() failed: %v", err)
	}
	if len(series) != 4 {
		t.Fatalf("len(series) = %d, want 4", len(series))
	}
	for i, smp := range series {
		if smp.Tick != int64(i+1) {
			t.Errorf("series[%d].Tick = %d", i, smp.Tick)
		}
		if smp.Ref != "player.position" {
			t.Errorf("series[%d].Ref = %s", i, smp.Ref)
		}
	}
}

func TestSample_ValueInvalidJSON(t *testing.T) {
	smp := Sample{Ref: "x", Present: true, ValueJSON: "{"}
	if _, err := smp.Value(); err == nil {
		t.Error("Value() succeeded on invalid JSON")
	}
}
