package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pkg/profile"
	"github.com/spf13/cobra"

	"github.com/roach88/frp"
	"github.com/roach88/frp/internal/logging"
	"github.com/roach88/frp/internal/metrics"
	"github.com/roach88/frp/internal/record"
	"github.com/roach88/frp/internal/scene"
	"github.com/roach88/frp/internal/sim"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	Database    string
	Ticks       int
	DT          float64
	Interval    time.Duration
	WallClock   bool
	Profile     string // "", "cpu", "mem" or "trace"
	ProfileDir  string
	MetricsAddr string
	Watch       bool
	LogFile     string

	ticksSet bool

	// IDGenerator allows overriding the run id generator (for testing).
	// If nil, defaults to UUIDv7Generator.
	IDGenerator sim.IDGenerator
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	return newRunCommand(&RunOptions{RootOptions: rootOpts})
}

func newRunCommand(opts *RunOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run <scene-file>",
		Short: "Run a scene and print its samples",
		Long: `Run a scene, advancing the clock every tick and printing the sampled
properties.

The tick count and step come from the scene unless overridden. With --db the
run is recorded to SQLite and can be inspected with "frp runs" and
"frp trace". With --watch the scene is reloaded and restarted whenever the
file changes, until interrupted.

Example:
  frp run ./walker.yaml
  frp run --db ./runs.db --ticks 100 ./walker.yaml
  frp run --ticks 0 --interval 100ms --watch ./walker.cue`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.ticksSet = cmd.Flags().Changed("ticks")
			return runScene(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "record the run to this SQLite database")
	cmd.Flags().IntVar(&opts.Ticks, "ticks", 0, "number of ticks (0 runs until interrupted; default from the scene)")
	cmd.Flags().Float64Var(&opts.DT, "dt", 0, "clock step per tick in seconds (default from the scene)")
	cmd.Flags().DurationVar(&opts.Interval, "interval", 0, "wall time between ticks (0 runs as fast as possible)")
	cmd.Flags().BoolVar(&opts.WallClock, "wall-clock", false, "use elapsed wall time as the clock instead of stepping by dt")
	cmd.Flags().StringVar(&opts.Profile, "profile", "", "write a profile while running (cpu|mem|trace)")
	cmd.Flags().StringVar(&opts.ProfileDir, "profile-dir", ".", "directory for profile output")
	cmd.Flags().StringVar(&opts.MetricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address")
	cmd.Flags().BoolVar(&opts.Watch, "watch", false, "restart the run when the scene file changes")
	cmd.Flags().StringVar(&opts.LogFile, "log-file", "", "also write JSON logs to this file")

	return cmd
}

func runScene(opts *RunOptions, path string, cmd *cobra.Command) error {
	format, err := sim.ParseFormat(opts.Format)
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid format", err)
	}
	if opts.Ticks < 0 {
		return NewExitError(ExitCommandError, fmt.Sprintf("--ticks must be >= 0, got %d", opts.Ticks))
	}
	if opts.DT < 0 {
		return NewExitError(ExitCommandError, fmt.Sprintf("--dt must be >= 0, got %g", opts.DT))
	}

	logger, err := logging.New(logging.Options{
		Writer:  cmd.ErrOrStderr(),
		Verbose: opts.Verbose,
		File:    opts.LogFile,
	})
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to configure logging", err)
	}
	defer logger.Close()

	if opts.Profile != "" {
		mode, err := profileMode(opts.Profile)
		if err != nil {
			return WrapExitError(ExitCommandError, "invalid profile", err)
		}
		defer profile.Start(mode, profile.ProfilePath(opts.ProfileDir), profile.Quiet, profile.NoShutdownHook).Stop()
	}

	// Setup signal handling for graceful shutdown
	// Use command's context if available (for testing), otherwise create one
	parentCtx := cmd.Context()
	if parentCtx == nil {
		parentCtx = context.Background()
	}
	ctx, cancel := context.WithCancel(parentCtx)
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan) // Prevent signal handler leak

	go func() {
		select {
		case sig := <-sigChan:
			logger.Info("received signal, shutting down", "signal", sig)
			cancel()
		case <-ctx.Done():
			// Parent context cancelled (e.g., from test)
		}
	}()

	collector := metrics.New()
	if opts.MetricsAddr != "" {
		go func() {
			logger.Info("serving metrics", "addr", opts.MetricsAddr)
			if err := collector.Serve(ctx, opts.MetricsAddr); err != nil {
				logger.Error("metrics server failed", "addr", opts.MetricsAddr, "error", err)
			}
		}()
	}

	sinks := []sim.Sink{sim.NewWriterSink(cmd.OutOrStdout(), format), collector}
	if opts.Database != "" {
		logger.Debug("opening database", "path", opts.Database)
		st, err := record.Open(opts.Database)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to open database", err)
		}
		defer func() {
			if closeErr := st.Close(); closeErr != nil {
				logger.Error("error closing database", "error", closeErr)
			}
		}()
		sinks = append(sinks, record.NewSink(st))
	}

	s := &session{
		opts:      opts,
		path:      path,
		logger:    logger.Logger,
		collector: collector,
		sinks:     sinks,
	}
	if !opts.Watch {
		return s.run(ctx)
	}
	return s.watch(ctx)
}

// session runs one scene file, possibly many times when watching.
type session struct {
	opts      *RunOptions
	path      string
	logger    *slog.Logger
	collector *metrics.Collector
	sinks     []sim.Sink
}

// run loads, builds and runs the scene once.
func (s *session) run(ctx context.Context) error {
	sc, err := scene.Load(s.path)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load scene", err)
	}

	st := frp.New(frp.WithObserver(s.collector), frp.WithLogger(s.logger))
	built, err := scene.Build(sc, st)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to build scene", err)
	}
	s.logger.Debug("scene built", "scene", sc.Name, "entities", len(built.Entities), "samples", len(built.Samples))

	runOpts := []sim.Option{
		sim.WithInterval(s.opts.Interval),
		sim.WithLogger(s.logger),
	}
	for _, sink := range s.sinks {
		runOpts = append(runOpts, sim.WithSink(sink))
	}
	if s.opts.IDGenerator != nil {
		runOpts = append(runOpts, sim.WithIDGenerator(s.opts.IDGenerator))
	}
	if s.opts.DT > 0 {
		runOpts = append(runOpts, sim.WithDT(s.opts.DT))
	}
	if s.opts.WallClock {
		runOpts = append(runOpts, sim.WithClock(sim.NewWallClock()))
	}
	if s.opts.ticksSet {
		runOpts = append(runOpts, sim.WithTicks(s.opts.Ticks))
	}

	if err := sim.NewRunner(built, runOpts...).Run(ctx); err != nil {
		return WrapExitError(ExitFailure, "run failed", err)
	}
	return nil
}

// watch reruns the scene every time its file changes until ctx is done.
// Load and run failures are logged and the next change tries again.
func (s *session) watch(ctx context.Context) error {
	changes, err := watchFile(ctx, s.path, s.logger)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to watch scene", err)
	}

	for {
		runCtx, cancelRun := context.WithCancel(ctx)
		done := make(chan error, 1)
		go func() { done <- s.run(runCtx) }()

		restart := false
		var runErr error
		select {
		case runErr = <-done:
		case <-changes:
			restart = true
			cancelRun()
			runErr = <-done
		}
		cancelRun()

		if runErr != nil {
			s.logger.Error("run failed", "path", s.path, "error", runErr)
		}
		if !restart {
			s.logger.Info("waiting for scene changes", "path", s.path)
			select {
			case <-ctx.Done():
				return nil
			case <-changes:
			}
		}
		if ctx.Err() != nil {
			return nil
		}
		s.logger.Info("scene changed, restarting", "path", s.path)
	}
}

func profileMode(name string) (func(*profile.Profile), error) {
	switch name {
	case "cpu":
		return profile.CPUProfile, nil
	case "mem":
		return profile.MemProfile, nil
	case "trace":
		return profile.TraceProfile, nil
	}
	return nil, fmt.Errorf("unknown profile %q: must be cpu, mem or trace", name)
}
