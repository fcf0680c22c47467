package engine

import (
	"encoding/json"
	"fmt"
	"strconv"

	"betfair_go/internal/domain"

	"github.com/shopspring/decimal"
)

// Wire shapes of the historical stream schema. Field names are fixed by
// the upstream provider and must match exactly. All prices and volumes
// decode as decimals, never float64, so tick prices round-trip exactly.

type wireRecord struct {
	Op  string            `json:"op"`
	Pt  *int64            `json:"pt"`
	Clk *string           `json:"clk"`
	Mc  []wireMarketChange `json:"mc"`
}

type wireMarketChange struct {
	ID               string                `json:"id"`
	MarketDefinition *wireMarketDefinition `json:"marketDefinition"`
	Rc               []wireRunnerChange    `json:"rc"`
	Img              bool                  `json:"img"`
	Tv               *decimal.Decimal      `json:"tv"`
}

type wireMarketDefinition struct {
	Name                  string                 `json:"name"`
	MarketType            string                 `json:"marketType"`
	EventID               string                 `json:"eventId"`
	EventName             string                 `json:"eventName"`
	OpenDate              string                 `json:"openDate"`
	CountryCode           string                 `json:"countryCode"`
	Status                string                 `json:"status"`
	InPlay                bool                   `json:"inPlay"`
	NumberOfWinners       int                    `json:"numberOfWinners"`
	NumberOfActiveRunners int                    `json:"numberOfActiveRunners"`
	Version               int64                  `json:"version"`
	Runners               []wireRunnerDefinition `json:"runners"`
}

type wireRunnerDefinition struct {
	ID               int64            `json:"id"`
	Name             string           `json:"name"`
	Status           string           `json:"status"`
	AdjustmentFactor *decimal.Decimal `json:"adjustmentFactor"`
	Bsp              *decimal.Decimal `json:"bsp"`
	SortPriority     int              `json:"sortPriority"`
}

type wireRunnerChange struct {
	ID  int64                `json:"id"`
	Ltp *decimal.Decimal     `json:"ltp"`
	Tv  *decimal.Decimal     `json:"tv"`
	Spn *decimal.Decimal     `json:"spn"`
	Spf *decimal.Decimal     `json:"spf"`
	Atb []domain.PriceVolume `json:"atb"`
	Atl []domain.PriceVolume `json:"atl"`
	Trd []domain.PriceVolume `json:"trd"`
	Spb []domain.PriceVolume `json:"spb"`
	Spl []domain.PriceVolume `json:"spl"`
}

// DecodeRecord parses one raw text record into a ChangeMessage. Records
// missing the publish timestamp or sequence token are rejected. line is
// the 1-based line number used for error context.
func DecodeRecord(raw []byte, line int) (*domain.ChangeMessage, error) {
	var rec wireRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, &domain.MalformedRecord{Line: line, Err: err}
	}
	if rec.Pt == nil {
		return nil, &domain.MalformedRecord{Line: line, Err: domain.ErrMissingPublishTime}
	}
	if rec.Clk == nil || *rec.Clk == "" {
		return nil, &domain.MalformedRecord{Line: line, Err: domain.ErrMissingSequenceToken}
	}
	seq, err := strconv.ParseUint(*rec.Clk, 10, 64)
	if err != nil {
		return nil, &domain.MalformedRecord{Line: line, Err: fmt.Errorf("sequence token %q: %w", *rec.Clk, err)}
	}

	msg := &domain.ChangeMessage{
		Op:          rec.Op,
		PublishTime: *rec.Pt,
		Sequence:    seq,
	}
	for _, mc := range rec.Mc {
		if mc.ID == "" {
			return nil, &domain.MalformedRecord{Line: line, Err: fmt.Errorf("market change missing id")}
		}
		dmc, err := decodeMarketChange(mc)
		if err != nil {
			return nil, &domain.MalformedRecord{Line: line, Err: err}
		}
		msg.MarketChanges = append(msg.MarketChanges, dmc)
	}
	return msg, nil
}

func decodeMarketChange(mc wireMarketChange) (domain.MarketChange, error) {
	out := domain.MarketChange{
		MarketID:    mc.ID,
		Image:       mc.Img,
		TotalVolume: mc.Tv,
	}
	if mc.MarketDefinition != nil {
		def, err := decodeDefinition(mc.MarketDefinition)
		if err != nil {
			return out, fmt.Errorf("market %s: %w", mc.ID, err)
		}
		out.Definition = def
	}
	for _, rc := range mc.Rc {
		if rc.ID == 0 {
			return out, fmt.Errorf("market %s: runner change missing selection id", mc.ID)
		}
		out.RunnerChanges = append(out.RunnerChanges, domain.RunnerChange{
			SelectionID:       rc.ID,
			LastTradedPrice:   rc.Ltp,
			TotalVolume:       rc.Tv,
			NearPrice:         rc.Spn,
			FarPrice:          rc.Spf,
			AvailableToBack:   rc.Atb,
			AvailableToLay:    rc.Atl,
			TradedVolume:      rc.Trd,
			BackStakeTaken:    rc.Spb,
			LayLiabilityTaken: rc.Spl,
		})
	}
	return out, nil
}

func decodeDefinition(def *wireMarketDefinition) (*domain.MarketDefinition, error) {
	status := domain.MarketStatus(def.Status)
	if !domain.ValidMarketStatus(status) {
		return nil, fmt.Errorf("unknown market status %q", def.Status)
	}
	out := &domain.MarketDefinition{
		Name:                  def.Name,
		MarketType:            def.MarketType,
		EventID:               def.EventID,
		EventName:             def.EventName,
		OpenDate:              def.OpenDate,
		CountryCode:           def.CountryCode,
		Status:                status,
		InPlay:                def.InPlay,
		NumberOfWinners:       def.NumberOfWinners,
		NumberOfActiveRunners: def.NumberOfActiveRunners,
		Version:               def.Version,
	}
	for _, rd := range def.Runners {
		rs := domain.RunnerStatus(rd.Status)
		if rd.Status == "" {
			rs = domain.RunnerActive
		} else if !domain.ValidRunnerStatus(rs) {
			return nil, fmt.Errorf("runner %d: unknown status %q", rd.ID, rd.Status)
		}
		out.Runners = append(out.Runners, domain.RunnerDefinition{
			SelectionID:      rd.ID,
			Name:             rd.Name,
			Status:           rs,
			AdjustmentFactor: rd.AdjustmentFactor,
			BSP:              rd.Bsp,
			SortPriority:     rd.SortPriority,
		})
	}
	return out, nil
}
