package sim

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"

	"github.com/roach88/frp/internal/canon"
)

// Sink receives the ticks of a run.
//
// Begin is called before the first tick and End after the last one, with
// the error that stopped the run, if any. End is called for every sink whose
// Begin succeeded.
type Sink interface {
	Begin(ctx context.Context, run Run) error
	Tick(ctx context.Context, run Run, tick Tick) error
	End(ctx context.Context, run Run, cause error) error
}

// Format selects how a WriterSink renders ticks.
type Format string

const (
	FormatText Format = "text"
	FormatJSON Format = "json"
)

// ParseFormat validates a format name.
func ParseFormat(s string) (Format, error) {
	switch Format(s) {
	case FormatText, FormatJSON:
		return Format(s), nil
	}
	return "", fmt.Errorf("invalid format %q: must be 'text' or 'json'", s)
}

// WriterSink prints ticks to a writer, one line per tick.
//
// The text format is
//
//	run <id> scene=<name>
//	tick=1 time=0.5 player.position=[1,0.5] player.score=<absent>
//	end ticks=4
//
// and the JSON format writes one canonical JSON object per line.
type WriterSink struct {
	mu     sync.Mutex
	w      io.Writer
	format Format
	ticks  int64
}

// NewWriterSink creates a sink writing to w.
func NewWriterSink(w io.Writer, format Format) *WriterSink {
	return &WriterSink{w: w, format: format}
}

func (s *WriterSink) Begin(_ context.Context, run Run) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ticks = 0
	if s.format == FormatJSON {
		return s.writeJSON(map[string]any{
			"event": "begin",
			"run":   run.ID,
			"scene": run.Scene,
		})
	}
	_, err := fmt.Fprintf(s.w, "run %s scene=%s\n", run.ID, run.Scene)
	return err
}

func (s *WriterSink) Tick(_ context.Context, _ Run, tick Tick) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ticks++
	if s.format == FormatJSON {
		samples := make([]any, len(tick.Samples))
		for i, smp := range tick.Samples {
			samples[i] = map[string]any{
				"ref":     smp.Ref,
				"value":   smp.Value,
				"present": smp.Present,
			}
		}
		return s.writeJSON(map[string]any{
			"event":   "tick",
			"seq":     tick.Seq,
			"time":    tick.Time,
			"samples": samples,
		})
	}

	var b strings.Builder
	fmt.Fprintf(&b, "tick=%d time=%s", tick.Seq, strconv.FormatFloat(tick.Time, 'f', -1, 64))
	for _, smp := range tick.Samples {
		b.WriteByte(' ')
		b.WriteString(smp.Ref)
		b.WriteByte('=')
		if !smp.Present {
			b.WriteString("<absent>")
			continue
		}
		v, err := canon.Marshal(smp.Value)
		if err != nil {
			return fmt.Errorf("sample %s: %w", smp.Ref, err)
		}
		b.Write(v)
	}
	b.WriteByte('\n')
	_, err := io.WriteString(s.w, b.String())
	return err
}

func (s *WriterSink) End(_ context.Context, _ Run, cause error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.format == FormatJSON {
		m := map[string]any{"event": "end", "ticks": s.ticks}
		if cause != nil {
			m["error"] = cause.Error()
		}
		return s.writeJSON(m)
	}
	if cause != nil {
		_, err := fmt.Fprintf(s.w, "end ticks=%d error=%q\n", s.ticks, cause.Error())
		return err
	}
	_, err := fmt.Fprintf(s.w, "end ticks=%d\n", s.ticks)
	return err
}

func (s *WriterSink) writeJSON(v any) error {
	data, err := canon.Marshal(v)
	if err != nil {
		return err
	}
	data = append(data, '\n')
	_, err = s.w.Write(data)
	return err
}

// CollectSink keeps every tick in memory.
type CollectSink struct {
	mu    sync.Mutex
	Runs  []Run
	Ticks []Tick
	Err   error
}

func (s *CollectSink) Begin(_ context.Context, run Run) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Runs = append(s.Runs, run)
	return nil
}

func (s *CollectSink) Tick(_ context.Context, _ Run, tick Tick) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Ticks = append(s.Ticks, tick)
	return nil
}

func (s *CollectSink) End(_ context.Context, _ Run, cause error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Err = cause
	return nil
}
