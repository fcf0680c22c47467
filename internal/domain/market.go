package domain

import "github.com/shopspring/decimal"

// MarketStatus is the lifecycle status of a market. CLOSED is terminal.
type MarketStatus string

const (
	MarketOpen      MarketStatus = "OPEN"
	MarketSuspended MarketStatus = "SUSPENDED"
	MarketClosed    MarketStatus = "CLOSED"

	// MarketUnknown is an export-only placeholder for a market that was
	// observed through runner changes alone and never carried a
	// definition. It is not a wire status and never enters the state
	// machine.
	MarketUnknown MarketStatus = "UNKNOWN"
)

// ValidMarketStatus reports whether s is a status this engine accepts.
func ValidMarketStatus(s MarketStatus) bool {
	switch s {
	case MarketOpen, MarketSuspended, MarketClosed:
		return true
	}
	return false
}

// CanTransitionTo validates the market status machine:
// OPEN and SUSPENDED flip freely and either may close; nothing leaves
// CLOSED. A same-status resend is not a transition.
func (s MarketStatus) CanTransitionTo(next MarketStatus) bool {
	if s == next {
		return true
	}
	return s != MarketClosed
}

// RunnerStatus is the settlement status of a selection.
type RunnerStatus string

const (
	RunnerActive  RunnerStatus = "ACTIVE"
	RunnerWinner  RunnerStatus = "WINNER"
	RunnerLoser   RunnerStatus = "LOSER"
	RunnerPlaced  RunnerStatus = "PLACED"
	RunnerRemoved RunnerStatus = "REMOVED"
)

// ValidRunnerStatus reports whether s is a known runner status.
func ValidRunnerStatus(s RunnerStatus) bool {
	switch s {
	case RunnerActive, RunnerWinner, RunnerLoser, RunnerPlaced, RunnerRemoved:
		return true
	}
	return false
}

// MarketState is the mutable per-market state reconstructed during one
// replay. It is owned by a single engine.Table and never shared across
// concurrent replays.
type MarketState struct {
	MarketID      string
	Name          string
	MarketType    string
	EventID       string
	EventName     string
	EventDate     string
	CountryCode   string
	Status        MarketStatus
	InPlay        bool
	HasDefinition bool

	NumberOfWinners int
	Version         int64
	LastPublishTime int64           // Unix ms of the last applied record
	TotalVolume     decimal.Decimal // market-level cumulative matched volume

	Runners map[int64]*RunnerState
}

// RunnerState is the mutable per-selection state within a MarketState.
type RunnerState struct {
	SelectionID      int64
	Name             string
	Status           RunnerStatus
	SortPriority     int
	LastTradedPrice  *decimal.Decimal
	AdjustmentFactor *decimal.Decimal
	TotalVolume      *decimal.Decimal

	// Starting-price snapshot. Near/far are pre-close estimates. The
	// actual price only becomes visible once the market is CLOSED; a
	// value arriving earlier is parked in PendingSP and promoted at the
	// CLOSED transition.
	NearPrice *decimal.Decimal
	FarPrice  *decimal.Decimal
	ActualSP  *decimal.Decimal
	PendingSP *decimal.Decimal

	AvailableToBack   Ladder
	AvailableToLay    Ladder
	TradedVolume      Ladder
	BackStakeTaken    Ladder
	LayLiabilityTaken Ladder
}

// HasBSPData reports whether any starting-price field was ever observed
// for this runner. Runners with no BSP data export the block as absent.
func (r *RunnerState) HasBSPData() bool {
	return r.NearPrice != nil || r.FarPrice != nil || r.ActualSP != nil ||
		len(r.BackStakeTaken.Levels) > 0 || len(r.LayLiabilityTaken.Levels) > 0
}
