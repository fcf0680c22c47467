package domain

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// MalformedRecord is returned when a raw record cannot be decoded into a
// ChangeMessage. Line is the 1-based line number within the stream.
type MalformedRecord struct {
	Line int
	Err  error
}

func (e *MalformedRecord) Error() string {
	return fmt.Sprintf("malformed record at line %d: %v", e.Line, e.Err)
}

func (e *MalformedRecord) Unwrap() error {
	return e.Err
}

// InvalidTransition is returned when a market definition attempts an
// illegal status change (e.g. CLOSED back to OPEN). The change is
// rejected and the prior state retained.
type InvalidTransition struct {
	MarketID string
	From     MarketStatus
	To       MarketStatus
}

func (e *InvalidTransition) Error() string {
	return fmt.Sprintf("market %s: invalid status transition %s -> %s", e.MarketID, e.From, e.To)
}

// SequenceAnomaly is returned when a record's sequence token is not
// strictly greater than the last one seen on the stream.
type SequenceAnomaly struct {
	MarketID string // set when the record references exactly one market
	Expected uint64 // exclusive lower bound: the last token seen
	Got      uint64
}

func (e *SequenceAnomaly) Error() string {
	return fmt.Sprintf("sequence anomaly: token %d not greater than last seen %d", e.Got, e.Expected)
}

// LadderInvariantViolation reports a cumulative-volume ladder whose
// total at a price decreased. The new value is still applied
// (last-writer-wins); the violation is surfaced as a diagnostic.
type LadderInvariantViolation struct {
	MarketID    string
	SelectionID int64
	Price       decimal.Decimal
	Previous    decimal.Decimal
	Got         decimal.Decimal
}

func (e *LadderInvariantViolation) Error() string {
	return fmt.Sprintf("market %s selection %d: cumulative volume at %s decreased from %s to %s",
		e.MarketID, e.SelectionID, e.Price, e.Previous, e.Got)
}

var (
	// ErrMissingPublishTime is wrapped by MalformedRecord when a record
	// carries no pt field.
	ErrMissingPublishTime = errors.New("missing publish time")

	// ErrMissingSequenceToken is wrapped by MalformedRecord when a
	// record carries no clk field.
	ErrMissingSequenceToken = errors.New("missing sequence token")

	// ErrReplayAborted is returned when the abort-on-anomaly policy
	// stops a replay early.
	ErrReplayAborted = errors.New("replay aborted")

	// ErrStreamRead wraps an I/O failure while reading the record
	// stream, a corrupt or truncated archive included.
	ErrStreamRead = errors.New("stream read failed")

	// ErrNotBzip2 is returned when an uploaded file lacks the BZip2
	// magic bytes.
	ErrNotBzip2 = errors.New("not a bzip2 file")

	// ErrEmptyFile is returned when an upload contains no data.
	ErrEmptyFile = errors.New("empty file")

	// ErrFileTooLarge is returned when an upload exceeds the size cap.
	ErrFileTooLarge = errors.New("file too large")

	// ErrFileNotFound is returned when a file id is unknown to the store.
	ErrFileNotFound = errors.New("file not found")

	// ErrNoRecords is returned when a decompressed file contains no
	// decodable records at all.
	ErrNoRecords = errors.New("no valid records found")
)

// IsMalformed reports whether err is (or wraps) a MalformedRecord.
func IsMalformed(err error) bool {
	var mr *MalformedRecord
	return errors.As(err, &mr)
}
