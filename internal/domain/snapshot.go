package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// The types below form the immutable output entity graph handed to the
// API and export layers. Field names follow the canonical snapshot
// schema; optional fields are omitted (not zeroed) when never observed.

// RunnerBSP is the starting-price block of an exported runner.
type RunnerBSP struct {
	NearPrice         *decimal.Decimal `json:"near_price,omitempty"`
	FarPrice          *decimal.Decimal `json:"far_price,omitempty"`
	ActualSP          *decimal.Decimal `json:"actual_sp,omitempty"`
	BackStakeTaken    []PriceVolume    `json:"back_stake_taken"`
	LayLiabilityTaken []PriceVolume    `json:"lay_liability_taken"`
}

// RunnerEX is the exchange price block of an exported runner.
type RunnerEX struct {
	AvailableToBack []PriceVolume `json:"available_to_back"`
	AvailableToLay  []PriceVolume `json:"available_to_lay"`
	TradedVolume    []PriceVolume `json:"traded_volume"`
}

// Runner is one exported selection.
type Runner struct {
	SelectionID      int64            `json:"selection_id"`
	RunnerName       string           `json:"runner_name"`
	Status           RunnerStatus     `json:"status"`
	BSP              *RunnerBSP       `json:"bsp,omitempty"`
	EX               RunnerEX         `json:"ex"`
	LastPriceTraded  *decimal.Decimal `json:"last_price_traded,omitempty"`
	AdjustmentFactor *decimal.Decimal `json:"adjustment_factor,omitempty"`
}

// Market is one exported market snapshot.
type Market struct {
	MarketID        string          `json:"market_id"`
	MarketName      string          `json:"market_name"`
	MarketType      string          `json:"market_type"`
	EventID         string          `json:"event_id,omitempty"`
	EventName       string          `json:"event_name,omitempty"`
	EventDate       string          `json:"event_date,omitempty"`
	CountryCode     string          `json:"country_code,omitempty"`
	MarketStatus    MarketStatus    `json:"market_status"`
	InPlay          bool            `json:"inplay"`
	TotalMatched    decimal.Decimal `json:"total_matched"`
	TotalAvailable  decimal.Decimal `json:"total_available"`
	NumberOfRunners int             `json:"number_of_runners"`
	NumberOfWinners int             `json:"number_of_winners"`
	PublishTime     string          `json:"publish_time,omitempty"`
	Version         *int64          `json:"version,omitempty"`
	Runners         []Runner        `json:"runners"`
}

// FileMetadata describes one uploaded capture file.
type FileMetadata struct {
	FileID           string     `json:"file_id"`
	FileName         string     `json:"file_name"`
	SizeBytes        int64      `json:"size_bytes"`
	UploadTime       time.Time  `json:"upload_time"`
	ProcessingStatus string     `json:"processing_status"`
	ErrorMessage     string     `json:"error_message,omitempty"`
	ProcessedAt      *time.Time `json:"processed_at,omitempty"`
}

// ProcessingStats aggregates per-file replay statistics, including
// diagnostic counts by error kind.
type ProcessingStats struct {
	TotalRecords          int   `json:"total_records"`
	TotalRunners          int   `json:"total_runners"`
	ProcessingTimeMS      int64 `json:"processing_time_ms"`
	CompressedSizeBytes   int64 `json:"compressed_size_bytes"`
	DecompressedSizeBytes int64 `json:"decompressed_size_bytes"`
	MalformedRecords      int   `json:"malformed_records"`
	SequenceAnomalies     int   `json:"sequence_anomalies"`
	InvalidTransitions    int   `json:"invalid_transitions"`
	LadderViolations      int   `json:"ladder_violations"`
}

// FileParseResponse is the full parse result for one uploaded file.
type FileParseResponse struct {
	FileMetadata    FileMetadata    `json:"file_metadata"`
	Markets         []Market        `json:"markets"`
	ProcessingStats ProcessingStats `json:"processing_stats"`
}
