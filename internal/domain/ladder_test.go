package domain

import (
	"encoding/json"
	"testing"

	"github.com/shopspring/decimal"
)

func TestPriceVolume_WirePair(t *testing.T) {
	var pv PriceVolume
	if err := json.Unmarshal([]byte(`[1.01,250.5]`), &pv); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	if pv.Price.String() != "1.01" {
		t.Errorf("tick price must stay exact, got %s", pv.Price)
	}
	if !pv.Volume.Equal(decimal.RequireFromString("250.5")) {
		t.Errorf("unexpected volume %s", pv.Volume)
	}

	out, err := json.Marshal(pv)
	if err != nil {
		t.Fatal(err)
	}
	if string(out) != `["1.01","250.5"]` {
		t.Errorf("unexpected encoding %s", out)
	}
}

func TestPriceVolume_RejectsObjects(t *testing.T) {
	var pv PriceVolume
	if err := json.Unmarshal([]byte(`{"price":1.5}`), &pv); err == nil {
		t.Fatal("expected error for non-array level")
	}
}

func TestLadder_CloneIsDeep(t *testing.T) {
	l := Ladder{Levels: []PriceVolume{
		{Price: decimal.NewFromInt(2), Volume: decimal.NewFromInt(100)},
	}}
	c := l.Clone()
	c.Levels[0].Volume = decimal.NewFromInt(999)

	if v, _ := l.VolumeAt(decimal.NewFromInt(2)); !v.Equal(decimal.NewFromInt(100)) {
		t.Errorf("clone mutation leaked into original: %s", v)
	}
}

func TestLadder_TotalVolume(t *testing.T) {
	l := Ladder{Levels: []PriceVolume{
		{Price: decimal.NewFromInt(2), Volume: decimal.RequireFromString("100.5")},
		{Price: decimal.NewFromInt(3), Volume: decimal.RequireFromString("49.5")},
	}}
	if !l.TotalVolume().Equal(decimal.NewFromInt(150)) {
		t.Errorf("unexpected total %s", l.TotalVolume())
	}
	if !(Ladder{}).TotalVolume().IsZero() {
		t.Error("empty ladder should total zero")
	}
}
