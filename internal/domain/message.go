package domain

import (
	"github.com/shopspring/decimal"
)

// ChangeMessage is one decoded record from a historical capture stream.
// It is transient: the replay driver consumes it immediately and never
// stores it.
type ChangeMessage struct {
	Op            string
	PublishTime   int64 // Unix milliseconds
	Sequence      uint64
	MarketChanges []MarketChange
}

// MarketChange carries the incremental (or full) state for one market
// inside a ChangeMessage.
type MarketChange struct {
	MarketID      string
	Definition    *MarketDefinition // nil when the record carries no definition
	Image         bool              // true = ladders fully replace prior state
	TotalVolume   *decimal.Decimal  // market-level cumulative matched volume
	RunnerChanges []RunnerChange
}

// MarketDefinition is a full replacement of a market's header fields.
type MarketDefinition struct {
	Name                  string
	MarketType            string
	EventID               string
	EventName             string
	OpenDate              string
	CountryCode           string
	Status                MarketStatus
	InPlay                bool
	NumberOfWinners       int
	NumberOfActiveRunners int
	Version               int64
	Runners               []RunnerDefinition
}

// RunnerDefinition is the per-runner slice of a market definition.
type RunnerDefinition struct {
	SelectionID      int64
	Name             string
	Status           RunnerStatus
	AdjustmentFactor *decimal.Decimal
	BSP              *decimal.Decimal // settled starting price, present near market close
	SortPriority     int
}

// RunnerChange carries price deltas for one selection. Every field is
// optional on the wire; absent fields leave prior state untouched.
type RunnerChange struct {
	SelectionID     int64
	LastTradedPrice *decimal.Decimal
	TotalVolume     *decimal.Decimal
	NearPrice       *decimal.Decimal
	FarPrice        *decimal.Decimal

	// Ladder deltas, independently maintained.
	AvailableToBack   []PriceVolume
	AvailableToLay    []PriceVolume
	TradedVolume      []PriceVolume
	BackStakeTaken    []PriceVolume
	LayLiabilityTaken []PriceVolume
}
