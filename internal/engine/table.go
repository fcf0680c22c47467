package engine

import (
	"sort"

	"betfair_go/internal/domain"
)

// Table is the mutable per-market state for one replay. It is owned by
// exactly one Driver and must never be shared between replays.
type Table struct {
	markets  map[string]*domain.MarketState
	layOrder domain.SortOrder
}

// NewTable creates an empty state table. layOrder sets the canonical
// direction of lay ladders (back and traded ladders always ascend).
func NewTable(layOrder domain.SortOrder) *Table {
	return &Table{
		markets:  make(map[string]*domain.MarketState),
		layOrder: layOrder,
	}
}

// ApplyResult describes the effects of applying one market change.
type ApplyResult struct {
	Created    bool // market seen for the first time
	Closed     bool // market transitioned to CLOSED in this change
	Violations []*domain.LadderInvariantViolation
}

// Apply routes one market change into the table. Status-machine
// violations reject the whole change and return an InvalidTransition
// with prior state retained; ladder invariant violations are collected
// in the result but the change still applies (last-writer-wins).
func (t *Table) Apply(publishTime int64, mc domain.MarketChange) (ApplyResult, error) {
	var res ApplyResult

	ms, ok := t.markets[mc.MarketID]
	if !ok {
		ms = &domain.MarketState{
			MarketID: mc.MarketID,
			Runners:  make(map[int64]*domain.RunnerState),
		}
		t.markets[mc.MarketID] = ms
		res.Created = true
	}

	// Validate the status machine before touching any state, so a
	// rejected change leaves the market exactly as it was.
	if mc.Definition != nil && ms.HasDefinition {
		if !ms.Status.CanTransitionTo(mc.Definition.Status) {
			return res, &domain.InvalidTransition{
				MarketID: mc.MarketID,
				From:     ms.Status,
				To:       mc.Definition.Status,
			}
		}
	}

	ms.LastPublishTime = publishTime

	if mc.Definition != nil {
		res.Closed = t.applyDefinition(ms, mc.Definition)
	}
	if mc.TotalVolume != nil {
		ms.TotalVolume = *mc.TotalVolume
	}

	// First sight of a market is an implicit image even without the
	// explicit wire flag.
	mode := Delta
	if mc.Image || res.Created {
		mode = Image
	}

	for _, rc := range mc.RunnerChanges {
		rs := t.runner(ms, rc.SelectionID)
		for _, v := range t.applyRunnerChange(rs, rc, mode) {
			res.Violations = append(res.Violations, &domain.LadderInvariantViolation{
				MarketID:    mc.MarketID,
				SelectionID: rc.SelectionID,
				Price:       v.Price,
				Previous:    v.Previous,
				Got:         v.Got,
			})
		}
	}
	return res, nil
}

// applyDefinition replaces the market's header fields and updates
// runner definitions. It reports whether the market closed here.
func (t *Table) applyDefinition(ms *domain.MarketState, def *domain.MarketDefinition) bool {
	closed := ms.Status != domain.MarketClosed && def.Status == domain.MarketClosed

	if def.Name != "" {
		ms.Name = def.Name
	}
	if def.MarketType != "" {
		ms.MarketType = def.MarketType
	}
	if def.EventID != "" {
		ms.EventID = def.EventID
	}
	if def.EventName != "" {
		ms.EventName = def.EventName
	}
	if def.OpenDate != "" {
		ms.EventDate = def.OpenDate
	}
	if def.CountryCode != "" {
		ms.CountryCode = def.CountryCode
	}
	ms.Status = def.Status
	ms.InPlay = def.InPlay
	if def.NumberOfWinners > 0 {
		ms.NumberOfWinners = def.NumberOfWinners
	}
	if def.Version > 0 {
		ms.Version = def.Version
	}
	ms.HasDefinition = true

	for _, rd := range def.Runners {
		rs := t.runner(ms, rd.SelectionID)
		if rd.Name != "" {
			rs.Name = rd.Name
		}
		rs.Status = rd.Status
		if rd.SortPriority > 0 {
			rs.SortPriority = rd.SortPriority
		}
		if rd.AdjustmentFactor != nil {
			rs.AdjustmentFactor = rd.AdjustmentFactor
		}
		if rd.BSP != nil {
			// An actual SP is only believable once the market is
			// CLOSED; park earlier arrivals.
			if def.Status == domain.MarketClosed {
				rs.ActualSP = rd.BSP
			} else {
				rs.PendingSP = rd.BSP
			}
		}
	}

	if closed {
		for _, rs := range ms.Runners {
			if rs.ActualSP == nil && rs.PendingSP != nil {
				rs.ActualSP = rs.PendingSP
			}
			rs.PendingSP = nil
		}
	}
	return closed
}

func (t *Table) applyRunnerChange(rs *domain.RunnerState, rc domain.RunnerChange, mode MergeMode) []Violation {
	if rc.LastTradedPrice != nil {
		rs.LastTradedPrice = rc.LastTradedPrice
	}
	if rc.TotalVolume != nil {
		rs.TotalVolume = rc.TotalVolume
	}
	if rc.NearPrice != nil {
		rs.NearPrice = rc.NearPrice
	}
	if rc.FarPrice != nil {
		rs.FarPrice = rc.FarPrice
	}

	var violations []Violation
	merge := func(l *domain.Ladder, delta []domain.PriceVolume, policy VolumePolicy) {
		if delta == nil {
			return
		}
		merged, vs := MergeLadder(*l, delta, mode, policy)
		*l = merged
		violations = append(violations, vs...)
	}
	merge(&rs.AvailableToBack, rc.AvailableToBack, Snapshot)
	merge(&rs.AvailableToLay, rc.AvailableToLay, Snapshot)
	merge(&rs.TradedVolume, rc.TradedVolume, Cumulative)
	merge(&rs.BackStakeTaken, rc.BackStakeTaken, Cumulative)
	merge(&rs.LayLiabilityTaken, rc.LayLiabilityTaken, Cumulative)
	return violations
}

// runner fetches or creates the state for a selection.
func (t *Table) runner(ms *domain.MarketState, selectionID int64) *domain.RunnerState {
	rs, ok := ms.Runners[selectionID]
	if !ok {
		rs = &domain.RunnerState{
			SelectionID:       selectionID,
			Status:            domain.RunnerActive,
			AvailableToLay:    domain.Ladder{Order: t.layOrder},
			LayLiabilityTaken: domain.Ladder{Order: t.layOrder},
		}
		ms.Runners[selectionID] = rs
	}
	return rs
}

// Get returns the state for a market id, if present.
func (t *Table) Get(marketID string) (*domain.MarketState, bool) {
	ms, ok := t.markets[marketID]
	return ms, ok
}

// Markets returns all market states sorted by market id for
// deterministic iteration.
func (t *Table) Markets() []*domain.MarketState {
	out := make([]*domain.MarketState, 0, len(t.markets))
	for _, ms := range t.markets {
		out = append(out, ms)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].MarketID < out[j].MarketID })
	return out
}

// Len returns the number of markets seen so far.
func (t *Table) Len() int {
	return len(t.markets)
}
