package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/frp/internal/record"
	"github.com/roach88/frp/internal/sim"
)

// TraceOptions holds flags for the trace command.
type TraceOptions struct {
	*RootOptions
	Database string
	RunID    string // optional - defaults to the latest run
	Ref      string // optional - filter to one sample reference
}

// TraceSample is one sampled value in a trace.
type TraceSample struct {
	Ref     string `json:"ref"`
	Value   any    `json:"value,omitempty"`
	Present bool   `json:"present"`
}

// TraceTick groups the samples of one tick.
type TraceTick struct {
	Seq     int64         `json:"seq"`
	Time    float64       `json:"time"`
	Samples []TraceSample `json:"samples"`
}

// TraceResult holds the complete trace output.
type TraceResult struct {
	Run   RunInfo     `json:"run"`
	Ticks []TraceTick `json:"ticks"`
}

// NewTraceCommand creates the trace command.
func NewTraceCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TraceOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "trace",
		Short: "Show the samples of a recorded run",
		Long: `Show the sampled values of a run recorded with "frp run --db".

The text output has the same shape as the output of "frp run", so a trace
can be diffed against a live run. Without --run the latest run is shown.

Examples:
  frp trace --db ./runs.db
  frp trace --db ./runs.db --run 0190a1b2-... --ref player.position
  frp trace --db ./runs.db --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTrace(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (required)")
	_ = cmd.MarkFlagRequired("db")
	cmd.Flags().StringVar(&opts.RunID, "run", "", "run id to trace (default: latest run)")
	cmd.Flags().StringVar(&opts.Ref, "ref", "", "only show samples of this reference")

	return cmd
}

func runTrace(opts *TraceOptions, cmd *cobra.Command) error {
	ctx := context.Background()

	st, err := openRecorded(opts.Database)
	if err != nil {
		return err
	}
	defer st.Close()

	var run record.Run
	if opts.RunID != "" {
		run, err = st.Run(ctx, opts.RunID)
	} else {
		run, err = st.LatestRun(ctx)
	}
	if errors.Is(err, record.ErrRunNotFound) {
		if opts.RunID == "" {
			fmt.Fprintln(cmd.OutOrStdout(), "No runs recorded")
			return nil
		}
		return WrapExitError(ExitCommandError, "run not found", err)
	}
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read run", err)
	}

	var samples []record.Sample
	if opts.Ref != "" {
		samples, err = st.Series(ctx, run.ID, opts.Ref)
	} else {
		samples, err = st.Samples(ctx, run.ID)
	}
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read samples", err)
	}

	ticks, err := groupTicks(samples)
	if err != nil {
		return WrapExitError(ExitFailure, "failed to decode samples", err)
	}

	if opts.Format == "json" {
		return newFormatter(opts.RootOptions, cmd).Success(TraceResult{Run: toRunInfo(run), Ticks: ticks})
	}
	return replayText(ctx, cmd, run, ticks)
}

// groupTicks groups samples ordered by tick into one TraceTick per tick.
func groupTicks(samples []record.Sample) ([]TraceTick, error) {
	ticks := []TraceTick{}
	for _, smp := range samples {
		v, err := smp.Value()
		if err != nil {
			return nil, err
		}
		if n := len(ticks); n == 0 || ticks[n-1].Seq != smp.Tick {
			ticks = append(ticks, TraceTick{Seq: smp.Tick, Time: smp.Time})
		}
		last := &ticks[len(ticks)-1]
		last.Samples = append(last.Samples, TraceSample{Ref: smp.Ref, Value: v, Present: smp.Present})
	}
	return ticks, nil
}

// replayText feeds the recorded ticks through the same writer the run
// command prints with.
func replayText(ctx context.Context, cmd *cobra.Command, run record.Run, ticks []TraceTick) error {
	sink := sim.NewWriterSink(cmd.OutOrStdout(), sim.FormatText)
	simRun := sim.Run{ID: run.ID, Scene: run.Scene, SceneHash: run.SceneHash, StartedAt: run.StartedAt}

	if err := sink.Begin(ctx, simRun); err != nil {
		return err
	}
	for _, tt := range ticks {
		tick := sim.Tick{Seq: tt.Seq, Time: tt.Time, Samples: make([]sim.Sample, len(tt.Samples))}
		for i, smp := range tt.Samples {
			tick.Samples[i] = sim.Sample{Ref: smp.Ref, Value: smp.Value, Present: smp.Present}
		}
		if err := sink.Tick(ctx, simRun, tick); err != nil {
			return err
		}
	}

	var cause error
	if run.Error != "" {
		cause = errors.New(run.Error)
	}
	if err := sink.End(ctx, simRun, cause); err != nil {
		return err
	}
	if run.EndedAt.IsZero() {
		fmt.Fprintln(cmd.OutOrStdout(), "(run did not finish)")
	}
	return nil
}
