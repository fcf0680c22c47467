package engine

import (
	"errors"
	"testing"

	"betfair_go/internal/domain"

	"github.com/shopspring/decimal"
)

func TestDecodeRecord_FullRecord(t *testing.T) {
	raw := []byte(`{"op":"mcm","pt":1627938000000,"clk":"1001","mc":[{"id":"1.100","img":true,"tv":"1234.56","marketDefinition":{"name":"Match Odds","marketType":"MATCH_ODDS","eventId":"30123","eventName":"A v B","openDate":"2021-08-02T20:00:00Z","countryCode":"GB","status":"OPEN","inPlay":false,"numberOfWinners":1,"version":42,"runners":[{"id":123,"name":"Alpha","status":"ACTIVE","sortPriority":1}]},"rc":[{"id":123,"ltp":2.02,"atb":[[2.0,500],[1.98,50]],"trd":[[2.0,900]]}]}]}`)

	msg, err := DecodeRecord(raw, 1)
	if err != nil {
		t.Fatalf("DecodeRecord failed: %v", err)
	}
	if msg.PublishTime != 1627938000000 {
		t.Errorf("expected pt 1627938000000, got %d", msg.PublishTime)
	}
	if msg.Sequence != 1001 {
		t.Errorf("expected sequence 1001, got %d", msg.Sequence)
	}
	if len(msg.MarketChanges) != 1 {
		t.Fatalf("expected 1 market change, got %d", len(msg.MarketChanges))
	}

	mc := msg.MarketChanges[0]
	if mc.MarketID != "1.100" || !mc.Image {
		t.Errorf("unexpected market change header: %+v", mc)
	}
	if mc.Definition == nil || mc.Definition.Status != domain.MarketOpen {
		t.Fatalf("definition not decoded: %+v", mc.Definition)
	}
	if mc.Definition.Runners[0].Name != "Alpha" {
		t.Errorf("runner name not decoded")
	}

	rc := mc.RunnerChanges[0]
	if rc.SelectionID != 123 {
		t.Errorf("expected selection 123, got %d", rc.SelectionID)
	}
	if len(rc.AvailableToBack) != 2 || !rc.AvailableToBack[0].Volume.Equal(decimal.NewFromInt(500)) {
		t.Errorf("atb not decoded: %v", rc.AvailableToBack)
	}
	if rc.LastTradedPrice == nil || !rc.LastTradedPrice.Equal(decimal.RequireFromString("2.02")) {
		t.Errorf("ltp not decoded: %v", rc.LastTradedPrice)
	}
}

func TestDecodeRecord_MissingPublishTime(t *testing.T) {
	_, err := DecodeRecord([]byte(`{"op":"mcm","clk":"1","mc":[]}`), 7)
	if !errors.Is(err, domain.ErrMissingPublishTime) {
		t.Fatalf("expected ErrMissingPublishTime, got %v", err)
	}
	var mr *domain.MalformedRecord
	if !errors.As(err, &mr) || mr.Line != 7 {
		t.Errorf("expected MalformedRecord at line 7, got %v", err)
	}
}

func TestDecodeRecord_MissingSequenceToken(t *testing.T) {
	_, err := DecodeRecord([]byte(`{"op":"mcm","pt":123,"mc":[]}`), 1)
	if !errors.Is(err, domain.ErrMissingSequenceToken) {
		t.Fatalf("expected ErrMissingSequenceToken, got %v", err)
	}
}

func TestDecodeRecord_NonNumericToken(t *testing.T) {
	_, err := DecodeRecord([]byte(`{"op":"mcm","pt":123,"clk":"abc","mc":[]}`), 1)
	if !domain.IsMalformed(err) {
		t.Fatalf("expected malformed record, got %v", err)
	}
}

func TestDecodeRecord_InvalidJSON(t *testing.T) {
	_, err := DecodeRecord([]byte(`{"op":`), 3)
	if !domain.IsMalformed(err) {
		t.Fatalf("expected malformed record, got %v", err)
	}
}

func TestDecodeRecord_UnknownMarketStatus(t *testing.T) {
	raw := []byte(`{"op":"mcm","pt":1,"clk":"1","mc":[{"id":"1.1","marketDefinition":{"status":"HIDDEN"}}]}`)
	_, err := DecodeRecord(raw, 1)
	if !domain.IsMalformed(err) {
		t.Fatalf("expected malformed record for unknown status, got %v", err)
	}
}

func TestDecodeRecord_FieldOrderIrrelevant(t *testing.T) {
	a := []byte(`{"pt":1,"clk":"2","op":"mcm"}`)
	b := []byte(`{"op":"mcm","clk":"2","pt":1}`)

	ma, err := DecodeRecord(a, 1)
	if err != nil {
		t.Fatal(err)
	}
	mb, err := DecodeRecord(b, 1)
	if err != nil {
		t.Fatal(err)
	}
	if ma.Sequence != mb.Sequence || ma.PublishTime != mb.PublishTime {
		t.Error("field order changed decode result")
	}
}

// Tick prices must survive decoding without float rounding.
func TestDecodeRecord_DecimalExactness(t *testing.T) {
	raw := []byte(`{"op":"mcm","pt":1,"clk":"1","mc":[{"id":"1.1","rc":[{"id":5,"atb":[[1.01,2.30]]}]}]}`)

	msg, err := DecodeRecord(raw, 1)
	if err != nil {
		t.Fatal(err)
	}
	lv := msg.MarketChanges[0].RunnerChanges[0].AvailableToBack[0]
	if lv.Price.String() != "1.01" {
		t.Errorf("price lost precision: %s", lv.Price)
	}
	if !lv.Volume.Equal(decimal.RequireFromString("2.3")) {
		t.Errorf("volume lost precision: %s", lv.Volume)
	}
}

// A heartbeat record carries no market changes and decodes cleanly.
func TestDecodeRecord_Heartbeat(t *testing.T) {
	msg, err := DecodeRecord([]byte(`{"op":"mcm","pt":55,"clk":"9"}`), 1)
	if err != nil {
		t.Fatal(err)
	}
	if len(msg.MarketChanges) != 0 {
		t.Errorf("expected no market changes, got %d", len(msg.MarketChanges))
	}
}
