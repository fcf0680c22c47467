package engine

import (
	"testing"

	"betfair_go/internal/domain"

	"github.com/shopspring/decimal"
)

func pv(price, volume string) domain.PriceVolume {
	return domain.PriceVolume{
		Price:  decimal.RequireFromString(price),
		Volume: decimal.RequireFromString(volume),
	}
}

func ladderOf(levels ...domain.PriceVolume) domain.Ladder {
	l := domain.Ladder{}
	for _, lv := range levels {
		upsert(&l, lv)
	}
	return l
}

func assertLevels(t *testing.T, got domain.Ladder, want ...domain.PriceVolume) {
	t.Helper()
	if len(got.Levels) != len(want) {
		t.Fatalf("expected %d levels, got %d: %v", len(want), len(got.Levels), got.Levels)
	}
	for i, w := range want {
		if !got.Levels[i].Price.Equal(w.Price) || !got.Levels[i].Volume.Equal(w.Volume) {
			t.Errorf("level %d: expected %s@%s, got %s@%s",
				i, w.Volume, w.Price, got.Levels[i].Volume, got.Levels[i].Price)
		}
	}
}

func TestMergeLadder_ImageReplaces(t *testing.T) {
	current := ladderOf(pv("2.0", "100"))

	merged, violations := MergeLadder(current, []domain.PriceVolume{pv("1.5", "50")}, Image, Snapshot)

	// Full replace, not a union.
	assertLevels(t, merged, pv("1.5", "50"))
	if len(violations) != 0 {
		t.Errorf("expected no violations, got %v", violations)
	}
}

func TestMergeLadder_DeltaUpsert(t *testing.T) {
	current := ladderOf(pv("2.0", "100"))

	merged, _ := MergeLadder(current, []domain.PriceVolume{pv("1.98", "50"), pv("2.0", "120")}, Delta, Snapshot)

	assertLevels(t, merged, pv("1.98", "50"), pv("2.0", "120"))
}

func TestMergeLadder_ZeroVolumeRemoves(t *testing.T) {
	current := ladderOf(pv("1.98", "50"), pv("2.0", "100"))

	merged, _ := MergeLadder(current, []domain.PriceVolume{pv("1.98", "0")}, Delta, Snapshot)

	assertLevels(t, merged, pv("2.0", "100"))
}

func TestMergeLadder_ZeroVolumeAbsentIsNoop(t *testing.T) {
	current := ladderOf(pv("2.0", "100"))

	merged, _ := MergeLadder(current, []domain.PriceVolume{pv("3.5", "0")}, Delta, Snapshot)

	assertLevels(t, merged, pv("2.0", "100"))
}

func TestMergeLadder_LaterEntryWinsWithinBatch(t *testing.T) {
	merged, _ := MergeLadder(domain.Ladder{}, []domain.PriceVolume{pv("2.0", "100"), pv("2.0", "250")}, Delta, Snapshot)

	assertLevels(t, merged, pv("2.0", "250"))
}

func TestMergeLadder_CumulativeDecreaseReportsViolation(t *testing.T) {
	current := ladderOf(pv("2.0", "500"))

	merged, violations := MergeLadder(current, []domain.PriceVolume{pv("2.0", "300")}, Delta, Cumulative)

	if len(violations) != 1 {
		t.Fatalf("expected 1 violation, got %d", len(violations))
	}
	v := violations[0]
	if !v.Previous.Equal(decimal.RequireFromString("500")) || !v.Got.Equal(decimal.RequireFromString("300")) {
		t.Errorf("unexpected violation %+v", v)
	}
	// Last-writer-wins: the lower value still applies.
	assertLevels(t, merged, pv("2.0", "300"))
}

func TestMergeLadder_CumulativeIncreaseIsClean(t *testing.T) {
	current := ladderOf(pv("2.0", "500"))

	merged, violations := MergeLadder(current, []domain.PriceVolume{pv("2.0", "800")}, Delta, Cumulative)

	if len(violations) != 0 {
		t.Errorf("expected no violations, got %v", violations)
	}
	assertLevels(t, merged, pv("2.0", "800"))
}

func TestMergeLadder_CumulativeImageStillChecked(t *testing.T) {
	current := ladderOf(pv("2.0", "500"))

	_, violations := MergeLadder(current, []domain.PriceVolume{pv("2.0", "100")}, Image, Cumulative)

	if len(violations) != 1 {
		t.Fatalf("expected 1 violation on regressing image resend, got %d", len(violations))
	}
}

func TestMergeLadder_DescendingOrder(t *testing.T) {
	current := domain.Ladder{Order: domain.Descending}

	merged, _ := MergeLadder(current, []domain.PriceVolume{pv("1.5", "10"), pv("3.0", "20"), pv("2.0", "30")}, Delta, Snapshot)

	assertLevels(t, merged, pv("3.0", "20"), pv("2.0", "30"), pv("1.5", "10"))
}

func TestMergeLadder_InputNotMutated(t *testing.T) {
	current := ladderOf(pv("2.0", "100"), pv("2.02", "40"))

	MergeLadder(current, []domain.PriceVolume{pv("2.0", "0"), pv("2.04", "7")}, Delta, Snapshot)

	assertLevels(t, current, pv("2.0", "100"), pv("2.02", "40"))
}
