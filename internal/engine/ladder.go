package engine

import (
	"sort"

	"betfair_go/internal/domain"

	"github.com/shopspring/decimal"
)

// MergeMode selects between a full resend and an incremental update.
type MergeMode int

const (
	// Delta merges entries onto the existing ladder; volume zero
	// removes the level.
	Delta MergeMode = iota
	// Image discards the existing ladder and rebuilds it from the
	// delta alone.
	Image
)

// VolumePolicy describes what a level's volume means over time.
type VolumePolicy int

const (
	// Snapshot volumes (available to back/lay) move freely.
	Snapshot VolumePolicy = iota
	// Cumulative volumes (traded, BSP stakes) are running totals and
	// must never decrease at a price.
	Cumulative
)

// Violation records a cumulative level whose total went backwards. The
// new value is applied regardless; the caller wraps this into a
// LadderInvariantViolation diagnostic.
type Violation struct {
	Price    decimal.Decimal
	Previous decimal.Decimal
	Got      decimal.Decimal
}

// MergeLadder applies one delta batch onto a ladder and returns the new
// ladder. The input ladder is not mutated. Entries are applied in batch
// order, so a price repeated within one batch resolves to the later
// entry. The result keeps the ladder's canonical price order.
func MergeLadder(current domain.Ladder, delta []domain.PriceVolume, mode MergeMode, policy VolumePolicy) (domain.Ladder, []Violation) {
	var violations []Violation

	out := domain.Ladder{Order: current.Order}
	if mode == Delta {
		out = current.Clone()
	}

	for _, pv := range delta {
		if policy == Cumulative {
			// Compare against what was recorded before this batch,
			// images included: a resend below the known total is the
			// same data-quality problem as a regressing delta.
			if prev, ok := current.VolumeAt(pv.Price); ok && pv.Volume.LessThan(prev) {
				violations = append(violations, Violation{Price: pv.Price, Previous: prev, Got: pv.Volume})
			}
		}
		if pv.Volume.IsZero() {
			remove(&out, pv.Price)
			continue
		}
		upsert(&out, pv)
	}
	return out, violations
}

// search locates price within levels held in the given order. It
// returns the insertion index and whether the price is already present.
func search(levels []domain.PriceVolume, price decimal.Decimal, order domain.SortOrder) (int, bool) {
	i := sort.Search(len(levels), func(i int) bool {
		if order == domain.Ascending {
			return levels[i].Price.GreaterThanOrEqual(price)
		}
		return levels[i].Price.LessThanOrEqual(price)
	})
	if i < len(levels) && levels[i].Price.Equal(price) {
		return i, true
	}
	return i, false
}

func upsert(l *domain.Ladder, pv domain.PriceVolume) {
	i, found := search(l.Levels, pv.Price, l.Order)
	if found {
		l.Levels[i].Volume = pv.Volume
		return
	}
	l.Levels = append(l.Levels, domain.PriceVolume{})
	copy(l.Levels[i+1:], l.Levels[i:])
	l.Levels[i] = pv
}

func remove(l *domain.Ladder, price decimal.Decimal) {
	i, found := search(l.Levels, price, l.Order)
	if !found {
		return
	}
	l.Levels = append(l.Levels[:i], l.Levels[i+1:]...)
}
