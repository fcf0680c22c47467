package engine

import (
	"log/slog"

	"betfair_go/internal/domain"
)

// AnomalyPolicy decides what a sequence anomaly does to the replay.
type AnomalyPolicy int

const (
	// SkipOnAnomaly drops the offending record with a warning and
	// continues. The default for historical captures, which are
	// sometimes internally inconsistent.
	SkipOnAnomaly AnomalyPolicy = iota
	// AbortOnAnomaly stops the whole replay at the first anomaly.
	AbortOnAnomaly
)

// Sequencer enforces message ordering for one stream. It tracks the
// last-seen sequence token and publish time; a token that is not
// strictly greater than the last seen is a duplicate or reordering and
// is rejected. Token gaps and publish-time regressions only warn:
// capture files legitimately omit heartbeat-only records.
type Sequencer struct {
	lastSeq     uint64
	lastPublish int64
	seen        bool
	logger      *slog.Logger
}

// NewSequencer creates a sequencer for a fresh stream.
func NewSequencer(logger *slog.Logger) *Sequencer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Sequencer{logger: logger}
}

// Check validates msg against the stream watermark and, if the message
// is in order, advances the watermark. A rejected message leaves the
// watermark untouched and returns a SequenceAnomaly.
func (s *Sequencer) Check(msg *domain.ChangeMessage) error {
	if s.seen {
		if msg.Sequence <= s.lastSeq {
			anom := &domain.SequenceAnomaly{Expected: s.lastSeq, Got: msg.Sequence}
			if len(msg.MarketChanges) == 1 {
				anom.MarketID = msg.MarketChanges[0].MarketID
			}
			return anom
		}
		if msg.Sequence > s.lastSeq+1 {
			// Non-contiguous increase: possibly a missed update, not
			// by itself fatal.
			s.logger.Warn("sequence gap",
				slog.Uint64("last", s.lastSeq),
				slog.Uint64("got", msg.Sequence))
		}
		if msg.PublishTime < s.lastPublish {
			s.logger.Warn("publish time regression",
				slog.Int64("last", s.lastPublish),
				slog.Int64("got", msg.PublishTime))
		}
	}
	s.seen = true
	s.lastSeq = msg.Sequence
	if msg.PublishTime > s.lastPublish {
		s.lastPublish = msg.PublishTime
	}
	return nil
}

// LastSequence returns the current watermark token.
func (s *Sequencer) LastSequence() uint64 {
	return s.lastSeq
}
