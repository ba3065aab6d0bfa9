package record

import (
	"context"
	"testing"
	"time"

	"github.com/roach88/frp"
	"github.com/roach88/frp/internal/scene"
	"github.com/roach88/frp/internal/sim"
	"github.com/roach88/frp/internal/testutil"
)

func TestSink_RecordsRun(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	sc, err := scene.Load("../scene/testdata/walker.yaml")
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}
	built, err := scene.Build(sc, frp.New())
	if err != nil {
		t.Fatalf("Build() failed: %v", err)
	}

	sink := NewSink(s)
	ended := testStart.Add(time.Minute)
	sink.now = func() time.Time { return ended }

	r := sim.NewRunner(built,
		sim.WithSink(sink),
		sim.WithIDGenerator(testutil.NewFixedIDGenerator("walker-run")),
		sim.WithNow(func() time.Time { return testStart }),
	)
	if err := r.Run(ctx); err != nil {
		t.Fatalf("Run() failed: %v", err)
	}

	run, err := s.Run(ctx, "walker-run")
	if err != nil {
		t.Fatalf("Run() failed: %v", err)
	}
	if run.Ticks != 4 || !run.EndedAt.Equal(ended) || run.Error != "" {
		t.Errorf("run = %+v", run)
	}
	want, err := sc.Hash()
	if err != nil {
		t.Fatalf("Hash() failed: %v", err)
	}
	if run.SceneHash != want {
		t.Errorf("SceneHash = %s, want %s", run.SceneHash, want)
	}

	series, err := s.Series(ctx, "walker-run", "player.position")
	if err != nil {
		t.Fatalf("Series() failed: %v", err)
	}
	wantJSON := []string{"[1,0.5]", "[2,1]", "[3,1.5]", "[4,2]"}
	if len(series) != len(wantJSON) {
		t.Fatalf("len(series) = %d, want %d", len(series), len(wantJSON))
	}
	for i, smp := range series {
		if smp.ValueJSON != wantJSON[i] {
			t.Errorf("tick %d = %s, want %s", smp.Tick, smp.ValueJSON, wantJSON[i])
		}
	}
}

func TestSink_RecordsFailure(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	sc, err := scene.Load("../scene/testdata/cycle.yaml")
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}
	built, err := scene.Build(sc, frp.New())
	if err != nil {
		t.Fatalf("Build() failed: %v", err)
	}

	r := sim.NewRunner(built,
		sim.WithSink(NewSink(s)),
		sim.WithIDGenerator(testutil.NewFixedIDGenerator("cycle-run")),
	)
	if err := r.Run(ctx); !frp.IsRecursiveError(err) {
		t.Fatalf("Run() = %v, want a recursive behavior error", err)
	}

	run, err := s.Run(ctx, "cycle-run")
	if err != nil {
		t.Fatalf("Run() failed: %v", err)
	}
	if run.Error == "" || run.EndedAt.IsZero() {
		t.Errorf("failed run not closed: %+v", run)
	}
}

// cancelOnTick cancels the run's context while it handles tick n.
type cancelOnTick struct {
	n      int64
	cancel context.CancelFunc
}

func (c *cancelOnTick) Begin(context.Context, sim.Run) error { return nil }

func (c *cancelOnTick) Tick(_ context.Context, _ sim.Run, tick sim.Tick) error {
	if tick.Seq == c.n {
		c.cancel()
	}
	return nil
}

func (c *cancelOnTick) End(context.Context, sim.Run, error) error { return nil }

func TestSink_CancelDuringTickClosesRunCleanly(t *testing.T) {
	s := createTestStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sc, err := scene.Load("../scene/testdata/walker.yaml")
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}
	built, err := scene.Build(sc, frp.New())
	if err != nil {
		t.Fatalf("Build() failed: %v", err)
	}

	r := sim.NewRunner(built,
		sim.WithTicks(0),
		sim.WithSink(&cancelOnTick{n: 3, cancel: cancel}),
		sim.WithSink(NewSink(s)),
		sim.WithIDGenerator(testutil.NewFixedIDGenerator("cancelled-run")),
	)
	if err := r.Run(ctx); err != nil {
		t.Fatalf("Run() = %v, want nil for a cancelled run", err)
	}

	run, err := s.Run(context.Background(), "cancelled-run")
	if err != nil {
		t.Fatalf("Run() failed: %v", err)
	}
	if run.Error != "" {
		t.Errorf("Error = %q, want none for a cancelled run", run.Error)
	}
	if run.EndedAt.IsZero() {
		t.Error("EndedAt is zero, want the run closed")
	}
	if run.Ticks != 3 {
		t.Errorf("Ticks = %d, want 3 (the tick in flight is written whole)", run.Ticks)
	}
}
