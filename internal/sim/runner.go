package sim

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/roach88/frp"
	"github.com/roach88/frp/internal/scene"
)

// Run describes one execution of a scene.
type Run struct {
	ID        string
	Scene     string
	SceneHash string
	StartedAt time.Time
}

// Tick is the result of one step: the clock and every sample.
type Tick struct {
	Seq     int64
	Time    float64
	Samples []Sample
	// Elapsed is how long reading the samples took.
	Elapsed time.Duration
}

// Sample is one sampled property. Value is nil when Present is false.
type Sample struct {
	Ref     string
	Value   any
	Present bool
}

// Runner steps a built scene.
type Runner struct {
	built    *scene.Built
	clock    Clock
	dt       float64
	ticks    int
	interval time.Duration
	sinks    []Sink
	ids      IDGenerator
	now      func() time.Time
	logger   *slog.Logger
}

// Option configures a Runner.
type Option func(*Runner)

// WithClock sets the clock. The default is a StepClock starting at 0.
func WithClock(c Clock) Option {
	return func(r *Runner) { r.clock = c }
}

// WithDT sets the time step passed to the clock each tick. The default is the
// scene's dt, or 1 if the scene has none.
func WithDT(dt float64) Option {
	return func(r *Runner) { r.dt = dt }
}

// WithTicks sets the number of ticks. Zero runs until the context is done.
// The default is the scene's ticks.
func WithTicks(n int) Option {
	return func(r *Runner) { r.ticks = n }
}

// WithInterval paces ticks on a wall-clock ticker. Zero runs ticks back to
// back.
func WithInterval(d time.Duration) Option {
	return func(r *Runner) { r.interval = d }
}

// WithSink adds a sink.
func WithSink(s Sink) Option {
	return func(r *Runner) { r.sinks = append(r.sinks, s) }
}

// WithIDGenerator sets the run id generator. The default generates UUIDv7.
func WithIDGenerator(g IDGenerator) Option {
	return func(r *Runner) { r.ids = g }
}

// WithNow sets the wall clock used for Run.StartedAt.
func WithNow(now func() time.Time) Option {
	return func(r *Runner) { r.now = now }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(r *Runner) { r.logger = l }
}

// NewRunner creates a runner for built. Unless the scene defines its own
// clock global, the runner registers one reading its clock.
func NewRunner(built *scene.Built, opts ...Option) *Runner {
	r := &Runner{
		built:  built,
		clock:  NewStepClock(0),
		dt:     built.Scene.DT,
		ticks:  built.Scene.Ticks,
		ids:    UUIDv7Generator{},
		now:    time.Now,
		logger: slog.New(slog.DiscardHandler),
	}
	if r.dt == 0 {
		r.dt = 1
	}
	for _, opt := range opts {
		opt(r)
	}

	clockProp := frp.Named[any](scene.ClockProperty)
	if !frp.Has(built.State, clockProp) {
		clock := r.clock
		// Cannot fail: the receiver is the store itself.
		_ = frp.Add(built.State, clockProp, frp.Alias(func(*frp.State, *frp.Entity) any {
			return clock.Now()
		}))
	}
	return r
}

// Run executes the scene until the tick count is reached, the context is
// done, or a sample fails. Context cancellation is not an error.
func (r *Runner) Run(ctx context.Context) (err error) {
	hash, err := r.built.Scene.Hash()
	if err != nil {
		return fmt.Errorf("hashing scene: %w", err)
	}
	run := Run{
		ID:        r.ids.Generate(),
		Scene:     r.built.Scene.Name,
		SceneHash: hash,
		StartedAt: r.now().UTC(),
	}
	logger := r.logger.With("run", run.ID, "scene", run.Scene)

	for i, s := range r.sinks {
		if err := s.Begin(ctx, run); err != nil {
			r.endSinks(ctx, run, r.sinks[:i], err)
			return fmt.Errorf("starting run: %w", err)
		}
	}
	logger.Info("run started", "ticks", r.ticks, "dt", r.dt, "interval", r.interval)

	var seq int64
	defer func() {
		r.endSinks(ctx, run, r.sinks, err)
		if err != nil {
			logger.Error("run failed", "tick", seq, "error", err)
			return
		}
		logger.Info("run finished", "ticks", seq)
	}()

	var ticker *time.Ticker
	if r.interval > 0 {
		ticker = time.NewTicker(r.interval)
		defer ticker.Stop()
	}

	for r.ticks == 0 || seq < int64(r.ticks) {
		if ticker != nil && seq > 0 {
			select {
			case <-ctx.Done():
				return nil
			case <-ticker.C:
			}
		} else if ctx.Err() != nil {
			return nil
		}

		seq++
		tick, err := r.step(seq)
		if err != nil {
			return err
		}
		for _, s := range r.sinks {
			if err := s.Tick(ctx, run, tick); err != nil {
				if ctx.Err() != nil && errors.Is(err, context.Canceled) {
					// Stopped mid-tick: a cancellation, not a sink failure.
					return nil
				}
				return fmt.Errorf("tick %d: %w", seq, err)
			}
		}
		logger.Debug("tick", "seq", seq, "time", tick.Time, "elapsed", tick.Elapsed)
	}
	return nil
}

// step advances the clock and reads every sample.
func (r *Runner) step(seq int64) (Tick, error) {
	tick := Tick{
		Seq:     seq,
		Time:    r.clock.Advance(r.dt),
		Samples: make([]Sample, 0, len(r.built.Samples)),
	}
	start := time.Now()
	for _, s := range r.built.Samples {
		v, ok, err := s.Read(r.built.State)
		if err != nil {
			return tick, fmt.Errorf("tick %d: sample %s: %w", seq, s.Ref, err)
		}
		tick.Samples = append(tick.Samples, Sample{Ref: s.Ref.String(), Value: v, Present: ok && v != nil})
	}
	tick.Elapsed = time.Since(start)
	return tick, nil
}

func (r *Runner) endSinks(ctx context.Context, run Run, sinks []Sink, cause error) {
	for _, s := range sinks {
		if err := s.End(ctx, run, cause); err != nil {
			r.logger.Warn("closing sink", "run", run.ID, "error", err)
		}
	}
}
