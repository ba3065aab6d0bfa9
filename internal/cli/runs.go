package cli

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/frp/internal/record"
)

// RunsOptions holds flags for the runs command.
type RunsOptions struct {
	*RootOptions
	Database string
}

// RunInfo describes a recorded run.
type RunInfo struct {
	Seq       int64      `json:"seq"`
	ID        string     `json:"id"`
	Scene     string     `json:"scene"`
	SceneHash string     `json:"scene_hash"`
	StartedAt time.Time  `json:"started_at"`
	EndedAt   *time.Time `json:"ended_at,omitempty"`
	Ticks     int64      `json:"ticks"`
	Status    string     `json:"status"` // "ok", "error" or "incomplete"
	Error     string     `json:"error,omitempty"`
}

// RunsResult holds the output of the runs command.
type RunsResult struct {
	Runs []RunInfo `json:"runs"`
}

// NewRunsCommand creates the runs command.
func NewRunsCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunsOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "runs",
		Short: "List recorded runs",
		Long: `List the runs recorded in a database by "frp run --db".

A run that never ended (the process was killed) is shown as incomplete.

Examples:
  frp runs --db ./runs.db
  frp runs --db ./runs.db --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRuns(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (required)")
	_ = cmd.MarkFlagRequired("db")

	return cmd
}

func runRuns(opts *RunsOptions, cmd *cobra.Command) error {
	st, err := openRecorded(opts.Database)
	if err != nil {
		return err
	}
	defer st.Close()

	runs, err := st.Runs(context.Background())
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to list runs", err)
	}

	result := RunsResult{Runs: make([]RunInfo, 0, len(runs))}
	for _, r := range runs {
		result.Runs = append(result.Runs, toRunInfo(r))
	}

	if opts.Format == "json" {
		return newFormatter(opts.RootOptions, cmd).Success(result)
	}

	w := cmd.OutOrStdout()
	if len(result.Runs) == 0 {
		fmt.Fprintln(w, "No runs recorded")
		return nil
	}
	fmt.Fprintf(w, "%-4s %-36s %-16s %6s  %-20s %s\n", "SEQ", "RUN", "SCENE", "TICKS", "STARTED", "STATUS")
	for _, r := range result.Runs {
		status := r.Status
		if r.Error != "" {
			status += ": " + r.Error
		}
		fmt.Fprintf(w, "%-4d %-36s %-16s %6d  %-20s %s\n",
			r.Seq, r.ID, r.Scene, r.Ticks, r.StartedAt.UTC().Format(time.DateTime), status)
	}
	return nil
}

// openRecorded opens an existing database. record.Open would create a
// missing one, which is never what a read-only command wants.
func openRecorded(path string) (*record.Store, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to open database", err)
	}
	st, err := record.Open(path)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to open database", err)
	}
	return st, nil
}

func toRunInfo(r record.Run) RunInfo {
	info := RunInfo{
		Seq:       r.Seq,
		ID:        r.ID,
		Scene:     r.Scene,
		SceneHash: r.SceneHash,
		StartedAt: r.StartedAt,
		Ticks:     r.Ticks,
		Error:     r.Error,
	}
	switch {
	case r.EndedAt.IsZero():
		info.Status = "incomplete"
	case r.Error != "":
		info.Status = "error"
	default:
		info.Status = "ok"
	}
	if !r.EndedAt.IsZero() {
		ended := r.EndedAt
		info.EndedAt = &ended
	}
	return info
}
