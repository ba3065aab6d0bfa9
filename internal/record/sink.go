package record

import (
	"context"
	"time"

	"github.com/roach88/frp/internal/sim"
)

// Sink records runs into a Store.
type Sink struct {
	store *Store
	now   func() time.Time
}

// NewSink returns a sim.Sink writing to store.
func NewSink(store *Store) *Sink {
	return &Sink{store: store, now: time.Now}
}

func (s *Sink) Begin(ctx context.Context, run sim.Run) error {
	return s.store.BeginRun(ctx, run)
}

// Tick writes tick whole even when ctx is cancelled while it is being
// written; the runner stops before the next one.
func (s *Sink) Tick(ctx context.Context, run sim.Run, tick sim.Tick) error {
	return s.store.WriteTick(context.WithoutCancel(ctx), run.ID, tick)
}

// End marks the run finished. It does not use ctx, so a run stopped by
// cancellation is still closed.
func (s *Sink) End(_ context.Context, run sim.Run, cause error) error {
	return s.store.EndRun(context.Background(), run.ID, s.now(), cause)
}
