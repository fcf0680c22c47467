package engine

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"betfair_go/internal/domain"
)

// Source supplies raw records one at a time. It is lazy, finite and
// single-pass: once Next returns false the stream is exhausted for this
// run, and Err reports the read failure that cut it short, if any. The
// driver never blocks inside a record; suspension, timeouts and retries
// all belong to whoever implements Source.
type Source interface {
	Next() ([]byte, bool)
	Err() error
}

// LineSource adapts an io.Reader of line-delimited records to a Source.
type LineSource struct {
	scanner *bufio.Scanner
}

// maxRecordSize bounds one record; image records for large markets run
// to a few megabytes.
const maxRecordSize = 16 * 1024 * 1024

// NewLineSource wraps r, one record per line.
func NewLineSource(r io.Reader) *LineSource {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), maxRecordSize)
	return &LineSource{scanner: sc}
}

func (s *LineSource) Next() ([]byte, bool) {
	if !s.scanner.Scan() {
		return nil, false
	}
	return s.scanner.Bytes(), true
}

// Err reports the read error that stopped the scan, if any. A record
// exceeding maxRecordSize surfaces here as bufio.ErrTooLong.
func (s *LineSource) Err() error {
	return s.scanner.Err()
}

// DiagnosticKind classifies a replay diagnostic.
type DiagnosticKind string

const (
	DiagMalformed         DiagnosticKind = "malformed_record"
	DiagSequenceAnomaly   DiagnosticKind = "sequence_anomaly"
	DiagInvalidTransition DiagnosticKind = "invalid_transition"
	DiagLadderViolation   DiagnosticKind = "ladder_violation"
	DiagStreamError       DiagnosticKind = "stream_error"
)

// Diagnostic is one rejected or anomalous record surfaced to the
// caller. Nothing the engine rejects is silently swallowed.
type Diagnostic struct {
	Kind DiagnosticKind `json:"kind"`
	Line int            `json:"line"`
	Err  error          `json:"-"`
}

func (d Diagnostic) String() string {
	return fmt.Sprintf("%s at line %d: %v", d.Kind, d.Line, d.Err)
}

// ReplayStats counts what one replay saw, by error kind.
type ReplayStats struct {
	Records            int
	Applied            int
	Malformed          int
	SequenceAnomalies  int
	InvalidTransitions int
	LadderViolations   int
}

// Result is the outcome of one replay. The table holds the terminal
// snapshot of every market reachable from the stream; a cancelled or
// truncated stream yields a partial snapshot, not an error.
type Result struct {
	Table       *Table
	Stats       ReplayStats
	Diagnostics []Diagnostic
}

// Options configures one replay.
type Options struct {
	Policy        AnomalyPolicy
	LayOrder      domain.SortOrder
	SnapshotEvery int // emit an incremental snapshot every N records; 0 disables
	// OnSnapshot receives incremental snapshots (every Nth record and
	// every market-close transition) when set.
	OnSnapshot func([]domain.Market)
	// OnProgress receives the running record count when set.
	OnProgress func(records int)
	Logger     *slog.Logger
}

// Driver replays one record stream through the sequencer and state
// table in strict input order. One driver serves one stream; processing
// is single-threaded because merge results depend on application order.
type Driver struct {
	opts Options
}

// NewDriver creates a replay driver.
func NewDriver(opts Options) *Driver {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Driver{opts: opts}
}

// Replay consumes src to exhaustion: decode, sequence-check, apply, in
// input order. Cancellation is checked between records, never
// mid-record; a cancelled replay returns the partial result alongside
// ctx.Err(). Under AbortOnAnomaly the first sequence anomaly returns
// the partial result and ErrReplayAborted. A source whose read fails
// mid-stream returns the partial result alongside ErrStreamRead; only
// a cleanly exhausted source completes without error.
func (d *Driver) Replay(ctx context.Context, src Source) (*Result, error) {
	res := &Result{Table: NewTable(d.opts.LayOrder)}
	seq := NewSequencer(d.opts.Logger)

	line := 0
	for {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		raw, ok := src.Next()
		if !ok {
			if err := src.Err(); err != nil {
				res.Diagnostics = append(res.Diagnostics, Diagnostic{Kind: DiagStreamError, Line: line + 1, Err: err})
				return res, fmt.Errorf("%w: %v", domain.ErrStreamRead, err)
			}
			break
		}
		line++
		if len(raw) == 0 {
			continue
		}
		res.Stats.Records++

		msg, err := DecodeRecord(raw, line)
		if err != nil {
			res.Stats.Malformed++
			res.Diagnostics = append(res.Diagnostics, Diagnostic{Kind: DiagMalformed, Line: line, Err: err})
			d.opts.Logger.Warn("skipping malformed record", slog.Int("line", line), slog.Any("error", err))
			continue
		}

		if err := seq.Check(msg); err != nil {
			res.Stats.SequenceAnomalies++
			res.Diagnostics = append(res.Diagnostics, Diagnostic{Kind: DiagSequenceAnomaly, Line: line, Err: err})
			if d.opts.Policy == AbortOnAnomaly {
				return res, fmt.Errorf("%w: %v", domain.ErrReplayAborted, err)
			}
			d.opts.Logger.Warn("skipping out-of-order record", slog.Int("line", line), slog.Any("error", err))
			continue
		}

		closed := false
		for _, mc := range msg.MarketChanges {
			applied, err := res.Table.Apply(msg.PublishTime, mc)
			if err != nil {
				var it *domain.InvalidTransition
				if errors.As(err, &it) {
					res.Stats.InvalidTransitions++
					res.Diagnostics = append(res.Diagnostics, Diagnostic{Kind: DiagInvalidTransition, Line: line, Err: err})
					d.opts.Logger.Warn("rejected status transition", slog.Int("line", line), slog.Any("error", err))
					continue
				}
				return res, err
			}
			for _, v := range applied.Violations {
				res.Stats.LadderViolations++
				res.Diagnostics = append(res.Diagnostics, Diagnostic{Kind: DiagLadderViolation, Line: line, Err: v})
			}
			closed = closed || applied.Closed
		}
		res.Stats.Applied++

		if d.opts.OnSnapshot != nil {
			every := d.opts.SnapshotEvery > 0 && res.Stats.Applied%d.opts.SnapshotEvery == 0
			if every || closed {
				d.opts.OnSnapshot(ExtractMarkets(res.Table, ExtractOptions{}))
			}
		}
		if d.opts.OnProgress != nil {
			d.opts.OnProgress(res.Stats.Records)
		}
	}
	return res, nil
}
