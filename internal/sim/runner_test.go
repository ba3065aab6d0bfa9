package sim

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/frp"
	"github.com/roach88/frp/internal/scene"
	"github.com/roach88/frp/internal/testutil"
)

var fixedStart = time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

func build(t *testing.T, sc *scene.Scene) *scene.Built {
	t.Helper()
	built, err := scene.Build(sc, frp.New())
	require.NoError(t, err)
	return built
}

func loadWalker(t *testing.T) *scene.Built {
	t.Helper()
	sc, err := scene.Load("testdata/walker.yaml")
	require.NoError(t, err)
	return build(t, sc)
}

func parse(t *testing.T, doc string) *scene.Scene {
	t.Helper()
	sc, err := scene.ParseYAML([]byte(doc))
	require.NoError(t, err)
	return sc
}

func assertGolden(t *testing.T, name string, data []byte) {
	t.Helper()
	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, name, data)
}

func TestRunWalkerGolden(t *testing.T) {
	for _, format := range []Format{FormatText, FormatJSON} {
		t.Run(string(format), func(t *testing.T) {
			var out bytes.Buffer
			r := NewRunner(loadWalker(t),
				WithSink(NewWriterSink(&out, format)),
				WithIDGenerator(testutil.NewFixedIDGenerator("run-walker")),
				WithNow(func() time.Time { return fixedStart }),
			)
			require.NoError(t, r.Run(context.Background()))
			assertGolden(t, "walker_"+string(format), out.Bytes())
		})
	}
}

func TestRunCycleGolden(t *testing.T) {
	sc, err := scene.Load("../scene/testdata/cycle.yaml")
	require.NoError(t, err)

	var out bytes.Buffer
	r := NewRunner(build(t, sc),
		WithSink(NewWriterSink(&out, FormatText)),
		WithIDGenerator(testutil.NewFixedIDGenerator("run-cycle")),
	)
	err = r.Run(context.Background())
	require.Error(t, err)
	assert.True(t, frp.IsRecursiveError(err))
	assertGolden(t, "cycle_text", out.Bytes())
}

func TestRunCollectsTicks(t *testing.T) {
	sink := &CollectSink{}
	r := NewRunner(loadWalker(t),
		WithSink(sink),
		WithTicks(2),
		WithIDGenerator(testutil.NewFixedIDGenerator("")),
		WithNow(func() time.Time { return fixedStart }),
	)
	require.NoError(t, r.Run(context.Background()))

	require.Len(t, sink.Runs, 1)
	run := sink.Runs[0]
	assert.Equal(t, "test-run-default", run.ID)
	assert.Equal(t, "walker", run.Scene)
	assert.Equal(t, fixedStart, run.StartedAt)
	assert.Len(t, run.SceneHash, 64)

	require.Len(t, sink.Ticks, 2)
	assert.Equal(t, int64(1), sink.Ticks[0].Seq)
	assert.Equal(t, 0.5, sink.Ticks[0].Time)
	assert.Equal(t, Sample{Ref: "player.position", Value: []any{1.0, 0.5}, Present: true}, sink.Ticks[0].Samples[1])
	assert.Equal(t, int64(2), sink.Ticks[1].Seq)
	assert.NoError(t, sink.Err)
}

func TestRunUsesGivenClockAndDT(t *testing.T) {
	clock := testutil.NewManualClock(100)
	sink := &CollectSink{}
	r := NewRunner(loadWalker(t), WithClock(clock), WithDT(2), WithTicks(3), WithSink(sink))
	require.NoError(t, r.Run(context.Background()))

	require.Len(t, sink.Ticks, 3)
	assert.Equal(t, []float64{102, 104, 106}, []float64{sink.Ticks[0].Time, sink.Ticks[1].Time, sink.Ticks[2].Time})
	assert.Equal(t, 106.0, clock.Now())
	assert.Equal(t, Sample{Ref: "clock", Value: 102.0, Present: true}, sink.Ticks[0].Samples[0])
}

func TestRunDefaultDT(t *testing.T) {
	sink := &CollectSink{}
	r := NewRunner(build(t, parse(t, "name: x\nticks: 2\nsample: [clock]\n")), WithSink(sink))
	require.NoError(t, r.Run(context.Background()))

	require.Len(t, sink.Ticks, 2)
	assert.Equal(t, 1.0, sink.Ticks[0].Time)
	assert.Equal(t, 2.0, sink.Ticks[1].Time)
}

func TestRunKeepsSceneClock(t *testing.T) {
	sink := &CollectSink{}
	built := build(t, parse(t, "name: x\nticks: 1\nglobals:\n  - {name: clock, constant: 42}\nsample: [clock]\n"))
	r := NewRunner(built, WithSink(sink))
	require.NoError(t, r.Run(context.Background()))

	require.Len(t, sink.Ticks, 1)
	assert.Equal(t, int64(42), sink.Ticks[0].Samples[0].Value)
	assert.Equal(t, 1.0, sink.Ticks[0].Time, "the runner clock still advances")
}

func TestRunAbsentSample(t *testing.T) {
	var out bytes.Buffer
	built := build(t, parse(t, "name: x\nticks: 1\ndt: 0.25\nglobals:\n  - {name: maybe, alias: 'global(\"nope\")'}\nsample: [maybe]\n"))
	r := NewRunner(built,
		WithSink(NewWriterSink(&out, FormatText)),
		WithIDGenerator(testutil.NewFixedIDGenerator("r")),
	)
	require.NoError(t, r.Run(context.Background()))
	assert.Equal(t, "run r scene=x\ntick=1 time=0.25 maybe=<absent>\nend ticks=1\n", out.String())
}

func TestRunStopsOnScriptFailure(t *testing.T) {
	sink := &CollectSink{}
	built := build(t, parse(t, "name: x\nticks: 5\nglobals:\n  - {name: boom, alias: '1 // (global(\"clock\") - 3)'}\nsample: [boom]\n"))
	r := NewRunner(built, WithSink(sink))

	err := r.Run(context.Background())
	require.Error(t, err)
	assert.True(t, frp.IsBehaviorFailedError(err), "got %v", err)
	assert.Contains(t, err.Error(), "tick 3: sample boom")
	assert.Len(t, sink.Ticks, 2)
	assert.Equal(t, err, sink.Err)
}

func TestRunCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	sink := &CollectSink{}
	r := NewRunner(loadWalker(t), WithSink(sink))
	require.NoError(t, r.Run(ctx))
	assert.Empty(t, sink.Ticks)
	assert.Len(t, sink.Runs, 1, "sinks still see the run begin and end")
}

func TestRunUnboundedUntilCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sink := &cancelAfter{n: 5, cancel: cancel}
	r := NewRunner(loadWalker(t), WithTicks(0), WithSink(sink))
	require.NoError(t, r.Run(ctx))
	assert.Equal(t, 5, sink.seen)
}

func TestRunCancelledDuringSinkTick(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	after := &ctxSink{}
	r := NewRunner(loadWalker(t), WithTicks(0), WithSink(&cancelAfter{n: 3, cancel: cancel}), WithSink(after))
	require.NoError(t, r.Run(ctx), "a sink reporting the cancellation does not fail the run")
	assert.Equal(t, 2, after.ticks)
	assert.NoError(t, after.err, "sinks are ended without a cause")
}

func TestRunInterval(t *testing.T) {
	sink := &CollectSink{}
	r := NewRunner(loadWalker(t), WithTicks(3), WithInterval(5*time.Millisecond), WithSink(sink))

	start := time.Now()
	require.NoError(t, r.Run(context.Background()))
	assert.Len(t, sink.Ticks, 3)
	assert.GreaterOrEqual(t, time.Since(start), 10*time.Millisecond, "two waits between three ticks")
}

func TestRunIntervalCancelled(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	sink := &CollectSink{}
	r := NewRunner(loadWalker(t), WithTicks(0), WithInterval(time.Hour), WithSink(sink))
	require.NoError(t, r.Run(ctx))
	assert.Len(t, sink.Ticks, 1, "the first tick does not wait")
}

func TestRunSinkErrors(t *testing.T) {
	t.Run("begin", func(t *testing.T) {
		first := &CollectSink{}
		r := NewRunner(loadWalker(t), WithSink(first), WithSink(failingSink{begin: true}))
		err := r.Run(context.Background())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "starting run")
		assert.Empty(t, first.Ticks)
		assert.ErrorIs(t, first.Err, errSink, "sinks already begun are ended with the cause")
	})

	t.Run("tick", func(t *testing.T) {
		r := NewRunner(loadWalker(t), WithSink(failingSink{}))
		err := r.Run(context.Background())
		require.Error(t, err)
		assert.ErrorIs(t, err, errSink)
		assert.Contains(t, err.Error(), "tick 1")
	})
}

func TestWallClock(t *testing.T) {
	now := fixedStart
	c := newWallClock(func() time.Time { return now })
	assert.Equal(t, 0.0, c.Now())

	now = now.Add(1500 * time.Millisecond)
	assert.Equal(t, 1.5, c.Now())
	assert.Equal(t, 1.5, c.Advance(10), "dt is ignored")
}

func TestStepClock(t *testing.T) {
	c := NewStepClock(1)
	assert.Equal(t, 1.0, c.Now())
	assert.Equal(t, 1.25, c.Advance(0.25))
	assert.Equal(t, 1.25, c.Now())
}

func TestUUIDv7Generator(t *testing.T) {
	g := UUIDv7Generator{}
	a, b := g.Generate(), g.Generate()
	assert.Len(t, a, 36)
	assert.NotEqual(t, a, b)
	assert.Equal(t, byte('7'), a[14], "version nibble")
}

func TestParseFormat(t *testing.T) {
	f, err := ParseFormat("json")
	require.NoError(t, err)
	assert.Equal(t, FormatJSON, f)

	_, err = ParseFormat("xml")
	assert.Error(t, err)
}

var errSink = errors.New("sink broken")

type failingSink struct {
	begin bool
}

func (s failingSink) Begin(context.Context, Run) error {
	if s.begin {
		return errSink
	}
	return nil
}

func (failingSink) Tick(context.Context, Run, Tick) error { return errSink }

func (failingSink) End(context.Context, Run, error) error { return nil }

type cancelAfter struct {
	n      int
	seen   int
	cancel context.CancelFunc
}

func (s *cancelAfter) Begin(context.Context, Run) error { return nil }

func (s *cancelAfter) Tick(context.Context, Run, Tick) error {
	s.seen++
	if s.seen == s.n {
		s.cancel()
	}
	return nil
}

func (s *cancelAfter) End(context.Context, Run, error) error { return nil }

// ctxSink fails its Tick once ctx is done, like a sink writing to a database.
type ctxSink struct {
	ticks int
	err   error
}

func (s *ctxSink) Begin(context.Context, Run) error { return nil }

func (s *ctxSink) Tick(ctx context.Context, _ Run, _ Tick) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("writing tick: %w", err)
	}
	s.ticks++
	return nil
}

func (s *ctxSink) End(_ context.Context, _ Run, cause error) error {
	s.err = cause
	return nil
}
