package domain

import (
	"encoding/json"

	"github.com/shopspring/decimal"
)

// PriceVolume is one level of a price ladder. On the wire and in exports
// it is a two-element array [price, volume].
type PriceVolume struct {
	Price  decimal.Decimal
	Volume decimal.Decimal
}

// UnmarshalJSON decodes the [price, volume] wire pair. Decoding through
// decimal.Decimal keeps tick prices exact (1.01 stays 1.01).
func (pv *PriceVolume) UnmarshalJSON(b []byte) error {
	var pair [2]decimal.Decimal
	if err := json.Unmarshal(b, &pair); err != nil {
		return err
	}
	pv.Price = pair[0]
	pv.Volume = pair[1]
	return nil
}

// MarshalJSON encodes the level back to the [price, volume] pair.
func (pv PriceVolume) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]decimal.Decimal{pv.Price, pv.Volume})
}

// SortOrder is the canonical price order of a ladder.
type SortOrder int

const (
	Ascending SortOrder = iota
	Descending
)

// Ladder is an ordered set of price levels, unique by price. Back and
// traded ladders ascend; the lay ladder's direction is caller-configured
// (best lay first in display order).
type Ladder struct {
	Levels []PriceVolume
	Order  SortOrder
}

// Clone returns a deep copy of the ladder.
func (l Ladder) Clone() Ladder {
	out := Ladder{Order: l.Order}
	if len(l.Levels) > 0 {
		out.Levels = append(make([]PriceVolume, 0, len(l.Levels)), l.Levels...)
	}
	return out
}

// VolumeAt returns the recorded volume at a price, if present.
func (l Ladder) VolumeAt(price decimal.Decimal) (decimal.Decimal, bool) {
	for _, lv := range l.Levels {
		if lv.Price.Equal(price) {
			return lv.Volume, true
		}
	}
	return decimal.Zero, false
}

// TotalVolume sums the volume across all levels.
func (l Ladder) TotalVolume() decimal.Decimal {
	sum := decimal.Zero
	for _, lv := range l.Levels {
		sum = sum.Add(lv.Volume)
	}
	return sum
}
