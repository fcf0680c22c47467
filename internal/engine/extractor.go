package engine

import (
	"sort"
	"time"

	"betfair_go/internal/domain"

	"github.com/shopspring/decimal"
)

// ExtractOptions controls snapshot extraction.
type ExtractOptions struct {
	// MaxDepth caps each exported ladder to its first N levels in
	// display order. Zero exports full depth.
	MaxDepth int
}

// ExtractMarkets converts the table's mutable state into the immutable
// output entity graph, sorted by market id. The result shares nothing
// with the table; callers may hold it after the replay moves on.
func ExtractMarkets(t *Table, opts ExtractOptions) []domain.Market {
	states := t.Markets()
	out := make([]domain.Market, 0, len(states))
	for _, ms := range states {
		out = append(out, extractMarket(ms, opts))
	}
	return out
}

func extractMarket(ms *domain.MarketState, opts ExtractOptions) domain.Market {
	status := ms.Status
	if status == "" {
		status = domain.MarketUnknown
	}
	m := domain.Market{
		MarketID:        ms.MarketID,
		MarketName:      ms.Name,
		MarketType:      ms.MarketType,
		EventID:         ms.EventID,
		EventName:       ms.EventName,
		EventDate:       ms.EventDate,
		CountryCode:     ms.CountryCode,
		MarketStatus:    status,
		InPlay:          ms.InPlay,
		NumberOfWinners: ms.NumberOfWinners,
	}
	if ms.Version > 0 {
		v := ms.Version
		m.Version = &v
	}
	if ms.LastPublishTime > 0 {
		m.PublishTime = time.UnixMilli(ms.LastPublishTime).UTC().Format(time.RFC3339Nano)
	}

	ids := make([]int64, 0, len(ms.Runners))
	for id := range ms.Runners {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		a, b := ms.Runners[ids[i]], ms.Runners[ids[j]]
		if a.SortPriority != b.SortPriority {
			// Runners without a sort priority go last.
			if a.SortPriority == 0 {
				return false
			}
			if b.SortPriority == 0 {
				return true
			}
			return a.SortPriority < b.SortPriority
		}
		return a.SelectionID < b.SelectionID
	})

	totalMatched := decimal.Zero
	totalAvailable := decimal.Zero
	for _, id := range ids {
		rs := ms.Runners[id]
		m.Runners = append(m.Runners, extractRunner(rs, opts))
		totalMatched = totalMatched.Add(rs.TradedVolume.TotalVolume())
		totalAvailable = totalAvailable.Add(rs.AvailableToBack.TotalVolume()).Add(rs.AvailableToLay.TotalVolume())
	}
	m.NumberOfRunners = len(m.Runners)

	// Traded ladders are omitted from some captures; fall back to the
	// market-level running total when the ladder sum has nothing.
	if totalMatched.IsZero() && !ms.TotalVolume.IsZero() {
		totalMatched = ms.TotalVolume
	}
	m.TotalMatched = totalMatched
	m.TotalAvailable = totalAvailable
	return m
}

func extractRunner(rs *domain.RunnerState, opts ExtractOptions) domain.Runner {
	r := domain.Runner{
		SelectionID:      rs.SelectionID,
		RunnerName:       rs.Name,
		Status:           rs.Status,
		LastPriceTraded:  rs.LastTradedPrice,
		AdjustmentFactor: rs.AdjustmentFactor,
		EX: domain.RunnerEX{
			AvailableToBack: capLevels(rs.AvailableToBack.Levels, opts.MaxDepth),
			AvailableToLay:  capLevels(rs.AvailableToLay.Levels, opts.MaxDepth),
			TradedVolume:    capLevels(rs.TradedVolume.Levels, opts.MaxDepth),
		},
	}
	// A runner that never reported any starting-price data exports no
	// bsp block at all rather than a zeroed one.
	if rs.HasBSPData() {
		r.BSP = &domain.RunnerBSP{
			NearPrice:         rs.NearPrice,
			FarPrice:          rs.FarPrice,
			ActualSP:          rs.ActualSP,
			BackStakeTaken:    capLevels(rs.BackStakeTaken.Levels, opts.MaxDepth),
			LayLiabilityTaken: capLevels(rs.LayLiabilityTaken.Levels, opts.MaxDepth),
		}
	}
	return r
}

// capLevels copies up to max levels (all of them when max is zero) so
// the snapshot never aliases the table's backing arrays.
func capLevels(levels []domain.PriceVolume, max int) []domain.PriceVolume {
	n := len(levels)
	if max > 0 && max < n {
		n = max
	}
	out := make([]domain.PriceVolume, n)
	copy(out, levels[:n])
	return out
}
